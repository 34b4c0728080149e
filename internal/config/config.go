// Package config loads the console configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full console configuration.
type Config struct {
	AppName    string `env:"APP_NAME" envDefault:"Billing Console"`
	Env        string `env:"ENV" envDefault:"DEV"`
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// APIBaseURL is the billing backend; AuthBaseURL defaults to it when
	// the identity service is not split out.
	APIBaseURL  string `env:"API_BASE_URL" envDefault:"http://localhost:5219"`
	AuthBaseURL string `env:"API_BASE_URL_AUTH"`

	// Auth endpoint paths; each may be an absolute URL override.
	AuthLoginPath    string `env:"API_AUTH_LOGIN_PATH" envDefault:"/login"`
	AuthValidatePath string `env:"API_AUTH_IDENT_PATH" envDefault:"/ident"`
	AuthRefreshPath  string `env:"API_AUTH_REFRESH_PATH" envDefault:"/refresh"`

	RefreshInterval time.Duration `env:"SESSION_REFRESH_INTERVAL" envDefault:"60s"`
	SessionDir      string        `env:"SESSION_DIR" envDefault:"."`
	// SessionKey, when set, encrypts the persisted session at rest.
	SessionKey string `env:"SESSION_KEY"`
}

// Load reads the configuration from the environment. A missing .env file is
// not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("[config.Load] %w", err)
	}
	if strings.TrimSpace(cfg.AuthBaseURL) == "" {
		cfg.AuthBaseURL = cfg.APIBaseURL
	}
	return cfg, nil
}

// IsDev reports whether the console runs in a development environment.
func (c Config) IsDev() bool {
	return strings.EqualFold(c.Env, "DEV")
}
