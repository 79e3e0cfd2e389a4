package config

import (
	"errors"
	"field-route-service/internal/services"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// DatabaseURL selects Postgres when set; otherwise DBPath is opened with SQLite.
	DatabaseURL string `env:"DATABASE_URL"`
	DBPath      string `env:"DB_PATH" envDefault:"data/app.db"`
	SeedPath    string `env:"SEED_PATH" envDefault:"data/seeds/reference.yaml"`

	ORS struct {
		APIKey            string        `env:"API_KEY"`
		BaseURL           string        `env:"BASE_URL" envDefault:"https://api.openrouteservice.org"`
		Profile           string        `env:"PROFILE" envDefault:"driving-car"`
		Timeout           time.Duration `env:"TIMEOUT" envDefault:"10s"`
		MaxAttempts       int           `env:"MAX_ATTEMPTS" envDefault:"4"`
		Backoff           time.Duration `env:"BACKOFF" envDefault:"200ms"`
		RequestsPerMinute int           `env:"REQUESTS_PER_MINUTE" envDefault:"40"`
	} `envPrefix:"ORS_"`

	Redis struct {
		URL      string        `env:"URL"`
		CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"720h"`
		IndexKey string        `env:"INDEX_KEY" envDefault:"agents:homes"`
	} `envPrefix:"REDIS_"`

	AMQP struct {
		URL            string        `env:"URL"`
		Queue          string        `env:"QUEUE" envDefault:"assignment_runs"`
		PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" envDefault:"10s"`
	} `envPrefix:"AMQP_"`

	Engine struct {
		DropoffDiscount        float64       `env:"DROPOFF_DISCOUNT" envDefault:"0.2"`
		CapacityMultiplier     float64       `env:"CAPACITY_MULTIPLIER" envDefault:"4"`
		DefaultAverageWorkload float64       `env:"DEFAULT_AVERAGE_WORKLOAD" envDefault:"1000"`
		BaseRadiusMiles        float64       `env:"BASE_RADIUS_MILES" envDefault:"30"`
		RadiusStepMiles        float64       `env:"RADIUS_STEP_MILES" envDefault:"20"`
		MaxRadiusMiles         float64       `env:"MAX_RADIUS_MILES" envDefault:"100"`
		AreaOnly               bool          `env:"AREA_ONLY" envDefault:"true"`
		Workers                int           `env:"WORKERS" envDefault:"5"`
		AverageSpeedMPH        float64       `env:"AVERAGE_SPEED_MPH" envDefault:"30"`
		MinLegTravel           time.Duration `env:"MIN_LEG_TRAVEL" envDefault:"5m"`
		PlanTimeout            time.Duration `env:"PLAN_TIMEOUT" envDefault:"2m"`
	} `envPrefix:"ENGINE_"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	return Parse(env.Options{})
}

// Parse reads the configuration using opts, which tests use to inject an
// environment map.
func Parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		aggErr := env.AggregateError{}
		if errors.As(err, &aggErr) && len(aggErr.Errors) > 0 {
			return nil, fmt.Errorf("load config: %w", aggErr.Errors[0])
		}
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.EngineConfig().Validate(); err != nil {
		return nil, fmt.Errorf("load config: engine: %w", err)
	}

	return cfg, nil
}

func (c *Config) EngineConfig() services.Config {
	return services.Config{
		DropoffDiscount:        c.Engine.DropoffDiscount,
		CapacityMultiplier:     c.Engine.CapacityMultiplier,
		DefaultAverageWorkload: c.Engine.DefaultAverageWorkload,
		BaseRadiusMiles:        c.Engine.BaseRadiusMiles,
		RadiusStepMiles:        c.Engine.RadiusStepMiles,
		MaxRadiusMiles:         c.Engine.MaxRadiusMiles,
		AreaOnly:               c.Engine.AreaOnly,
		Workers:                c.Engine.Workers,
		AverageSpeedMPH:        c.Engine.AverageSpeedMPH,
		MinLegTravel:           c.Engine.MinLegTravel,
	}
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
