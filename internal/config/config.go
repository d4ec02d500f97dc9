// Package config loads process configuration from the environment and an
// optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/store"
	"github.com/spf13/viper"
)

// DevelopmentSecret is the signing secret used when JWT_SECRET is unset. It is
// refused when APP_ENV is production.
const DevelopmentSecret = "your-secret-key-change-this-in-production"

// Config holds process configuration loaded from the environment.
type Config struct {
	// Env is the deployment environment; "production" enables strict checks.
	Env string `mapstructure:"APP_ENV"`
	// HTTPAddr is the listen address of HTTP front ends.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTIssuer string        `mapstructure:"JWT_ISSUER"`
	TokenTTL  time.Duration `mapstructure:"TOKEN_TTL"`

	RedisURL string `mapstructure:"REDIS_URL"`
	// RedisDefaultExpiry is the cache default TTL; zero keeps entries until deleted.
	RedisDefaultExpiry     time.Duration `mapstructure:"REDIS_DEFAULT_EXPIRY"`
	RedisConnectionTimeout time.Duration `mapstructure:"REDIS_CONNECTION_TIMEOUT"`
	RedisMaxConnections    int           `mapstructure:"REDIS_MAX_CONNECTIONS"`
	StoreOpTimeout         time.Duration `mapstructure:"STORE_OP_TIMEOUT"`

	SweepInterval          time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SingleSessionPerDevice bool          `mapstructure:"SINGLE_SESSION_PER_DEVICE"`
	AuditLog               bool          `mapstructure:"AUDIT_LOG"`
}

// Load reads .env from the working directory (if present), then the
// environment. Env vars override .env.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit env file path. A missing file is ignored;
// an unreadable or malformed one is an error.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:3000")
	v.SetDefault("JWT_SECRET", DevelopmentSecret)
	v.SetDefault("JWT_ISSUER", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("REDIS_DEFAULT_EXPIRY", "0s")
	v.SetDefault("REDIS_CONNECTION_TIMEOUT", "30s")
	v.SetDefault("REDIS_MAX_CONNECTIONS", 10)
	v.SetDefault("STORE_OP_TIMEOUT", "3s")
	v.SetDefault("SWEEP_INTERVAL", "0s")
	v.SetDefault("SINGLE_SESSION_PER_DEVICE", true)
	v.SetDefault("AUDIT_LOG", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Production() && c.JWTSecret == DevelopmentSecret {
		return errors.New("config: JWT_SECRET must be set when APP_ENV=production")
	}
	if len(c.JWTSecret) < 16 {
		return errors.New("config: JWT_SECRET must be at least 16 bytes")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: TOKEN_TTL must be > 0")
	}
	if c.RedisURL == "" {
		return errors.New("config: REDIS_URL must be set")
	}
	if c.RedisDefaultExpiry < 0 || c.SweepInterval < 0 || c.StoreOpTimeout < 0 {
		return errors.New("config: durations must not be negative")
	}
	return nil
}

// Production reports whether APP_ENV is production.
func (c *Config) Production() bool {
	return c != nil && c.Env == "production"
}

// Engine maps the process configuration onto an engine configuration.
func (c *Config) Engine() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.TTL = c.TokenTTL
	cfg.Session.SingleSessionPerDevice = c.SingleSessionPerDevice
	cfg.Session.SweepInterval = c.SweepInterval
	cfg.Cache.DefaultTTL = c.RedisDefaultExpiry
	cfg.Store.OperationTimeout = c.StoreOpTimeout
	cfg.Audit.Enabled = c.AuditLog
	return cfg
}

// Dial returns the Redis connection settings.
func (c *Config) Dial() store.DialConfig {
	return store.DialConfig{
		URL:            c.RedisURL,
		ConnectTimeout: c.RedisConnectionTimeout,
		OpTimeout:      c.StoreOpTimeout,
		PoolSize:       c.RedisMaxConnections,
	}
}
