package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":5000"`

	// DB
	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBDSN    string `envconfig:"DB_DSN" default:"data/loan.db"`

	// JWT
	JWTSecret string        `envconfig:"JWT_SECRET_KEY" required:"true"`
	TokenTTL  time.Duration `envconfig:"JWT_ACCESS_TOKEN_EXPIRES" default:"1h"`

	// OAuth
	GoogleClientID     string `envconfig:"GOOGLE_CLIENT_ID"`
	GitHubClientID     string `envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `envconfig:"GITHUB_CLIENT_SECRET"`

	// Model
	ModelBackend string        `envconfig:"MODEL_BACKEND" default:"formula"`
	ModelURL     string        `envconfig:"MODEL_URL"`
	ModelTimeout time.Duration `envconfig:"MODEL_TIMEOUT" default:"10s"`
	ModelFile    string        `envconfig:"MODEL_FILE"`

	// Events
	RabbitURL      string `envconfig:"RABBIT_URL"`
	RabbitExchange string `envconfig:"RABBIT_EXCHANGE" default:"loan.events"`

	// Seeded admin
	AdminEmail    string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminPassword string `envconfig:"ADMIN_PASSWORD" default:"adminpass"`

	CORSOrigins    []string `envconfig:"CORS_ORIGINS" default:"*"`
	HistoryByEmail bool     `envconfig:"HISTORY_BY_EMAIL" default:"false"`

	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogDevelopment bool   `envconfig:"LOG_DEVELOPMENT" default:"false"`
}

// Load reads an optional .env file, then the environment.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}

	switch c.ModelBackend {
	case "formula", "random":
	case "remote":
		if c.ModelURL == "" {
			return errors.New("MODEL_URL is required when MODEL_BACKEND=remote")
		}
	default:
		return fmt.Errorf("MODEL_BACKEND must be formula, remote or random, got %q", c.ModelBackend)
	}

	if c.TokenTTL <= 0 {
		return errors.New("JWT_ACCESS_TOKEN_EXPIRES must be positive")
	}
	return nil
}
