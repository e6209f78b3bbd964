package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"marmotshop"`
	Port     string `envconfig:"APP_PORT" default:"8080"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type PostgresConfig struct {
	Host            string        `envconfig:"DB_HOST" required:"true"`
	Port            string        `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" required:"true"`
	Password        string        `envconfig:"DB_PASSWORD" required:"true"`
	DBName          string        `envconfig:"DB_NAME" required:"true"`
	SSLMode         string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxConns        int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int32         `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	MigrationsPath  string        `envconfig:"DB_MIGRATIONS_PATH" default:"migrations"`
}

// TxConfig bounds every unit of work. RetryAttempts of 1 disables retries.
type TxConfig struct {
	Timeout       time.Duration `envconfig:"TX_TIMEOUT" default:"5s"`
	RetryAttempts int           `envconfig:"TX_RETRY_ATTEMPTS" default:"1"`
	RetryBackoff  time.Duration `envconfig:"TX_RETRY_BACKOFF" default:"50ms"`
}

type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Tx       TxConfig
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// DSN builds a keyword/value connection string for pgx.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Load reads an optional .env file at path and then the process environment.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	var cfg Config
	// Sections are processed one by one so nested keys are not prefixed.
	for name, section := range map[string]any{"app": &cfg.App, "postgres": &cfg.Postgres, "tx": &cfg.Tx} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("failed to process %s config: %w", name, err)
		}
	}

	if cfg.Tx.RetryAttempts < 1 {
		return nil, fmt.Errorf("TX_RETRY_ATTEMPTS must be at least 1, got %d", cfg.Tx.RetryAttempts)
	}
	if cfg.Tx.Timeout <= 0 {
		return nil, fmt.Errorf("TX_TIMEOUT must be positive, got %s", cfg.Tx.Timeout)
	}

	return &cfg, nil
}
