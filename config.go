package goSession

import (
	"errors"
	"time"

	"github.com/MrEthical07/goSession/internal"
	"github.com/MrEthical07/goSession/jwt"
)

// Config is the full engine configuration. Obtain one from [DefaultConfig],
// adjust it, and pass it to [Builder.WithConfig].
type Config struct {
	JWT       JWTConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	Codes     CodeConfig
	Cache     CacheConfig
	Store     StoreConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/* ==== JWT CONFIG ==== */

// JWTConfig configures credential signing. For hs256 PrivateKey is the shared secret.
type JWTConfig struct {
	TTL           time.Duration
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	// Leeway is the clock-skew tolerance on exp and iat. Zero, the default,
	// allows none.
	Leeway time.Duration
	KeyID  string
}

/* ==== SESSION CONFIG ==== */

// SessionConfig configures the session registry.
type SessionConfig struct {
	SingleSessionPerDevice bool
	VerifySubject          bool
	IndexGrace             time.Duration
	// SweepInterval enables the background maintenance sweep when positive.
	SweepInterval time.Duration
}

/* ==== RATE LIMIT CONFIG ==== */

// RateLimitConfig holds the default budget used by the HTTP middleware.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

/* ==== VERIFICATION CODE CONFIG ==== */

// CodeConfig configures generated one-time codes.
type CodeConfig struct {
	Digits int
	TTL    time.Duration
}

/* ==== CACHE CONFIG ==== */

// CacheConfig configures the generic cache. Zero DefaultTTL means no expiry.
type CacheConfig struct {
	DefaultTTL time.Duration
}

/* ==== STORE CONFIG ==== */

// StoreConfig bounds every store operation.
type StoreConfig struct {
	OperationTimeout time.Duration
}

/* ==== AUDIT CONFIG ==== */

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/* ==== METRICS CONFIG ==== */

// MetricsConfig controls in-process counters and the verify latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production-leaning defaults. JWT.PrivateKey must
// still be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			TTL:           jwt.DefaultTTL,
			SigningMethod: string(jwt.MethodHS256),
		},
		Session: SessionConfig{
			SingleSessionPerDevice: true,
			VerifySubject:          true,
			IndexGrace:             time.Hour,
		},
		RateLimit: RateLimitConfig{
			Limit:  100,
			Window: time.Minute,
		},
		Codes: CodeConfig{
			Digits: 6,
			TTL:    5 * time.Minute,
		},
		Store: StoreConfig{
			OperationTimeout: 3 * time.Second,
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
		if len(c.JWT.PrivateKey) < 16 {
			return errors.New("hs256 PrivateKey must be at least 16 bytes")
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PrivateKey) == 0 || len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PrivateKey and PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Session
	if c.Session.IndexGrace <= 0 {
		return errors.New("Session IndexGrace must be > 0")
	}
	if c.Session.SweepInterval < 0 {
		return errors.New("Session SweepInterval must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Limit <= 0 {
		return errors.New("RateLimit Limit must be > 0")
	}
	if c.RateLimit.Window < time.Second {
		return errors.New("RateLimit Window must be >= 1s")
	}

	// Codes
	if _, err := internal.NewOTP(c.Codes.Digits); err != nil {
		return errors.New("Codes Digits must be within [6, 10]")
	}
	if c.Codes.TTL < time.Second {
		return errors.New("Codes TTL must be >= 1s")
	}

	if c.Cache.DefaultTTL < 0 {
		return errors.New("Cache DefaultTTL must be >= 0")
	}
	if c.Store.OperationTimeout < 0 {
		return errors.New("Store OperationTimeout must be >= 0")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	return nil
}
