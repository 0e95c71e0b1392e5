// config/config.go
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config is read once at startup from the environment (and .env when present).
type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"mongo"`
	MongoURI      string `env:"MONGO_URI"`
	MongoURIAlt   string `env:"MONGODB_URI"`
	DBName        string `env:"DB_NAME" envDefault:"rmhse"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret   string   `env:"JWT_SECRET"`
	CORSOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	AdminName     string `env:"ADMIN_NAME" envDefault:"Administrator"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	CommissionBudget int64 `env:"COMMISSION_BUDGET" envDefault:"350"`
	BMPayout         int64 `env:"BM_PAYOUT" envDefault:"10"`
	DefaultLimit     int   `env:"DEFAULT_LIMIT" envDefault:"25"`
	LimitStep        int   `env:"LIMIT_STEP" envDefault:"25"`
	ChainMaxDepth    int   `env:"CHAIN_MAX_DEPTH" envDefault:"10"`
}

// Load parses the environment into a Config and checks the values that have no
// usable default.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = cfg.MongoURIAlt
	}

	switch cfg.StorageDriver {
	case "mongo":
		if cfg.MongoURI == "" {
			return nil, errors.New("MONGO_URI or MONGODB_URI environment variable is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q (want mongo or memory)", cfg.StorageDriver)
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET environment variable is required in production")
		}
		cfg.JWTSecret = "development-secret"
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}
