package main

import (
	"database/sql"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/config"
	"field-route-service/internal/platform/db"
	"flag"
	"log/slog"
	"os"
	"strings"
)

func main() {
	seedPath := flag.String("seed", "", "seed file (defaults to SEED_PATH)")
	schemaOnly := flag.Bool("schema-only", false, "create tables without seeding")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config failed", "err", err)
		os.Exit(1)
	}

	var (
		conn    *sql.DB
		dialect db.Dialect
	)
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		conn, err = db.Open(cfg.DatabaseURL)
		dialect = db.Postgres
	} else {
		conn, err = db.OpenSqlite(cfg.DBPath)
		dialect = db.SQLite
	}
	if err != nil {
		slog.Error("open database failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	path := cfg.SeedPath
	if *seedPath != "" {
		path = *seedPath
	}
	if *schemaOnly {
		path = ""
	}

	if err := initAndSeed(conn, dialect, path); err != nil {
		slog.Error("database setup failed", "db", dialect.String(), "err", err)
		os.Exit(1)
	}
}

func initAndSeed(conn *sql.DB, dialect db.Dialect, seedPath string) error {
	slog.Info("initializing database schema", "db", dialect.String())
	if err := repositories.InitSchema(conn); err != nil {
		return err
	}
	slog.Info("schema ready")

	if seedPath == "" {
		return nil
	}

	slog.Info("seeding database", "path", seedPath)
	if err := repositories.SeedFromYAML(conn, dialect, seedPath); err != nil {
		return err
	}
	slog.Info("seeding complete")

	return nil
}
