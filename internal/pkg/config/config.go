// Package config loads process settings from defaults, an optional YAML
// file and ORDERDESK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ORDERDESK_STORE_DRIVER.
const EnvPrefix = "ORDERDESK"

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type Config struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Store StoreConfig `mapstructure:"store"`
	Auth  AuthConfig  `mapstructure:"auth"`
	Retry RetryConfig `mapstructure:"retry"`
	CORS  CORSConfig  `mapstructure:"cors"`
	Log   LogConfig   `mapstructure:"log"`
	OTel  OTelConfig  `mapstructure:"otel"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the document backend. Collection groups the users,
// products and orders documents.
type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	Collection  string `mapstructure:"collection"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisPrefix string `mapstructure:"redis_prefix"`
}

type AuthConfig struct {
	JWTKey    string        `mapstructure:"jwt_key"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// RetryConfig bounds optimistic update loops. Zero means retry until the
// write wins or the request is cancelled.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
}

type CORSConfig struct {
	Origins []string `mapstructure:"origins"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type OTelConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Endpoint    string `mapstructure:"endpoint"`
	Environment string `mapstructure:"environment"`
}

var defaults = map[string]any{
	"http.addr":             ":8080",
	"http.shutdown_timeout": 10 * time.Second,
	"store.driver":          DriverMemory,
	"store.collection":      "data",
	"store.sqlite_path":     "data/order-desk.db",
	"store.redis_addr":      "localhost:6379",
	"store.redis_prefix":    "orderdesk",
	"auth.jwt_key":          "dev-secret-key-change-me-please",
	"auth.jwt_issuer":       "OrdersApp",
	"auth.token_ttl":        8 * time.Hour,
	"retry.max_attempts":    0,
	"cors.origins":          []string{"http://localhost:5173"},
	"log.level":             "info",
	"otel.enabled":          false,
	"otel.service_name":     "order-desk",
	"otel.endpoint":         "localhost:4317",
	"otel.environment":      "local",
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	default:
		errs = append(errs, fmt.Errorf("store.driver %q is not one of memory, sqlite, redis", c.Store.Driver))
	}
	if c.Store.Collection == "" {
		errs = append(errs, errors.New("store.collection is required"))
	}
	if c.Auth.JWTKey == "" {
		errs = append(errs, errors.New("auth.jwt_key is required"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry.max_attempts must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// SlogLevel maps log.level to a slog level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}
