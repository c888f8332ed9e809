// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/crypto/bcrypt"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL       string        `env:"DATABASE_URL,required,notEmpty"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"20"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	// Session
	SessionSecret          string        `env:"SESSION_SECRET,required,notEmpty"`
	SessionMaxAge          int           `env:"SESSION_MAX_AGE" envDefault:"86400"`
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"1h"`
	ClientIdleTTL          time.Duration `env:"CLIENT_IDLE_TTL" envDefault:"30m"`
	BcryptCost             int           `env:"BCRYPT_COST" envDefault:"10"`

	// Roles
	StrictRoles bool `env:"STRICT_ROLES" envDefault:"false"`

	// i18n
	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"en"`
	RedisURL        string `env:"REDIS_URL"`

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL" envDefault:"120"`
	RateLimitLogin   int `env:"RATE_LIMIT_LOGIN" envDefault:"10"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Server
	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	BaseURL    string `env:"BASE_URL,required,notEmpty"`

	// Cookie
	CookieSecure bool   `env:"-"`
	CookieDomain string `env:"COOKIE_DOMAIN"`

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SlogLevel はLOG_LEVELをslog.Levelに変換する。
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func (c *Config) validate() error {
	var errs []error

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error: %q", c.LogLevel))
	}
	if c.SessionMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_AGE must be positive: %d", c.SessionMaxAge))
	}
	if c.RateLimitGeneral <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_GENERAL must be positive: %d", c.RateLimitGeneral))
	}
	if c.RateLimitLogin <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_LOGIN must be positive: %d", c.RateLimitLogin))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d: %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost))
	}
	if c.ClientIdleTTL <= 0 {
		errs = append(errs, fmt.Errorf("CLIENT_IDLE_TTL must be positive: %s", c.ClientIdleTTL))
	}
	if c.SessionCleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_CLEANUP_INTERVAL must be positive: %s", c.SessionCleanupInterval))
	}
	if len(c.SessionSecret) < 32 {
		errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
