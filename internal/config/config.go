package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv       string   `env:"APP_ENV" envDefault:"development"`
	AppPort      string   `env:"APP_PORT" envDefault:"8000"`
	BaseURL      string   `env:"BASE_URL"`
	Debug        bool     `env:"DEBUG" envDefault:"false"`
	AllowedHosts []string `env:"ALLOWED_HOSTS" envSeparator:"," envDefault:"localhost,127.0.0.1"`
	SecretKey    string   `env:"SECRET_KEY"`

	DB     Database `envPrefix:"DB_"`
	Stripe Stripe   `envPrefix:"STRIPE_"`
}

type Database struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"5432"`
	User     string `env:"USER"`
	Password string `env:"PASSWORD"`
	Name     string `env:"NAME"`
	SSLMode  string `env:"SSLMODE" envDefault:"disable"`
}

type Stripe struct {
	SecretKey  string `env:"SECRET_KEY"`
	APIBaseURL string `env:"API_BASE_URL" envDefault:"https://api.stripe.com"`
	Currency   string `env:"CURRENCY" envDefault:"inr"`
}

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabase reads only the DB_* settings, for tools that never serve HTTP.
func LoadDatabase() (Database, error) {
	_ = godotenv.Load()

	var d Database
	if err := env.ParseWithOptions(&d, env.Options{Prefix: "DB_"}); err != nil {
		return d, fmt.Errorf("parse database config: %w", err)
	}
	if d.Host == "" {
		return d, errors.New("DB_HOST is not set")
	}
	return d, nil
}

func (c *Config) Validate() error {
	if c.DB.Host == "" {
		return errors.New("DB_HOST is not set")
	}
	if c.SecretKey == "" {
		return errors.New("SECRET_KEY is not set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
