package main

import (
	"context"
	"database/sql"
	"errors"
	"field-route-service/internal/adapters/cache"
	"field-route-service/internal/adapters/distance"
	"field-route-service/internal/adapters/events"
	"field-route-service/internal/adapters/geoindex"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/api"
	"field-route-service/internal/api/handlers"
	"field-route-service/internal/config"
	"field-route-service/internal/metrics"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/ports"
	"field-route-service/internal/services"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (SQL, Redis, ORS, AMQP) behind ports and starts the HTTP server.
func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, dialect, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Initialize schema and seed demo data on startup for local runs.
	if err := initAndSeed(conn, dialect, cfg.SeedPath); err != nil {
		return err
	}
	repo := repositories.NewSQLReferenceRepository(conn, dialect)

	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	providerOpts := []distance.ProviderOption{distance.WithLogger(logger)}
	if rdb != nil {
		providerOpts = append(providerOpts, distance.WithCache(cache.NewRedisDistanceCache(rdb, cfg.Redis.CacheTTL)))
	} else {
		providerOpts = append(providerOpts, distance.WithCache(cache.NewSQLDistanceCache(conn, dialect)))
	}

	engineOpts := []services.EngineOption{services.WithEngineLogger(logger)}

	if strings.TrimSpace(cfg.ORS.APIKey) != "" {
		ors, err := distance.NewORSClient(cfg.ORS.APIKey,
			distance.WithBaseURL(cfg.ORS.BaseURL),
			distance.WithProfile(cfg.ORS.Profile),
			distance.WithTimeout(cfg.ORS.Timeout),
			distance.WithRetry(cfg.ORS.MaxAttempts, cfg.ORS.Backoff),
			distance.WithRequestsPerMinute(cfg.ORS.RequestsPerMinute),
		)
		if err != nil {
			return err
		}
		providerOpts = append(providerOpts, distance.WithRouter(ors))
		engineOpts = append(engineOpts, services.WithGeocoder(cache.NewSQLGeocodeCache(conn, dialect, ors)))
	} else {
		logger.Warn("ORS_API_KEY not set, distances are geodesic")
	}

	if rdb != nil {
		// Reloaded from the roster at the start of every candidate search.
		engineOpts = append(engineOpts, services.WithAgentIndex(geoindex.NewRedisAgentIndex(rdb, cfg.Redis.IndexKey)))
		logger.Info("agent index enabled", "key", cfg.Redis.IndexKey)
	}

	engine, err := services.NewEngine(distance.NewProvider(providerOpts...), cfg.EngineConfig(), engineOpts...)
	if err != nil {
		return err
	}

	var publisher ports.ResultPublisher = events.LogPublisher{Logger: logger}
	if cfg.AMQP.URL != "" {
		mq, err := amqp.Dial(cfg.AMQP.URL)
		if err != nil {
			return fmt.Errorf("connect amqp: %w", err)
		}
		defer mq.Close()

		ch, err := mq.Channel()
		if err != nil {
			return fmt.Errorf("open amqp channel: %w", err)
		}
		defer ch.Close()

		if err := events.DeclareQueue(ch, cfg.AMQP.Queue); err != nil {
			return err
		}
		p, err := events.NewAMQPPublisher(ch, cfg.AMQP.Queue, cfg.AMQP.PublishTimeout)
		if err != nil {
			return err
		}
		publisher = p
	}

	handler := handlers.NewAssignmentHandler(repo, engine, publisher, cfg.Engine.PlanTimeout)

	// Timeouts are tuned for cold-cache runs (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Engine.PlanTimeout + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "db", dialect.String())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDB(cfg *config.Config) (*sql.DB, db.Dialect, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		return conn, db.Postgres, err
	}
	conn, err := db.OpenSqlite(cfg.DBPath)
	return conn, db.SQLite, err
}

func initAndSeed(conn *sql.DB, dialect db.Dialect, seedPath string) error {
	if err := repositories.InitSchema(conn); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	if seedPath == "" {
		return nil
	}
	if err := repositories.SeedFromYAML(conn, dialect, seedPath); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}

	return nil
}
