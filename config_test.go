package goSession

import (
	"crypto/ed25519"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{
			name:      "defaults with secret",
			mutate:    func(*Config) {},
			wantValid: true,
		},
		{
			name: "missing secret",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = nil
			},
			wantValid: false,
		},
		{
			name: "short secret",
			mutate: func(c *Config) {
				c.JWT.PrivateKey = []byte("too-short")
			},
			wantValid: false,
		},
		{
			name: "jwt leeway valid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 45 * time.Second
			},
			wantValid: true,
		},
		{
			name: "jwt leeway invalid",
			mutate: func(c *Config) {
				c.JWT.Leeway = 3 * time.Minute
			},
			wantValid: false,
		},
		{
			name: "jwt signing invalid",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "rs256"
			},
			wantValid: false,
		},
		{
			name: "ed25519 requires both keys",
			mutate: func(c *Config) {
				c.JWT.SigningMethod = "ed25519"
				c.JWT.PublicKey = nil
			},
			wantValid: false,
		},
		{
			name: "zero ttl",
			mutate: func(c *Config) {
				c.JWT.TTL = 0
			},
			wantValid: false,
		},
		{
			name: "zero index grace",
			mutate: func(c *Config) {
				c.Session.IndexGrace = 0
			},
			wantValid: false,
		},
		{
			name: "negative sweep interval",
			mutate: func(c *Config) {
				c.Session.SweepInterval = -time.Second
			},
			wantValid: false,
		},
		{
			name: "sub-second rate window",
			mutate: func(c *Config) {
				c.RateLimit.Window = 500 * time.Millisecond
			},
			wantValid: false,
		},
		{
			name: "zero rate limit",
			mutate: func(c *Config) {
				c.RateLimit.Limit = 0
			},
			wantValid: false,
		},
		{
			name: "code digits too short",
			mutate: func(c *Config) {
				c.Codes.Digits = 4
			},
			wantValid: false,
		},
		{
			name: "code digits max",
			mutate: func(c *Config) {
				c.Codes.Digits = 10
			},
			wantValid: true,
		},
		{
			name: "negative cache ttl",
			mutate: func(c *Config) {
				c.Cache.DefaultTTL = -time.Second
			},
			wantValid: false,
		},
		{
			name: "audit enabled without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
			wantValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tt.wantValid && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigEd25519Valid(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	cfg := DefaultConfig()
	cfg.JWT.SigningMethod = "ed25519"
	cfg.JWT.PrivateKey = priv
	cfg.JWT.PublicKey = pub
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid ed25519 config, got %v", err)
	}
	engine := buildMemoryEngine(t, cfg)

	issued, err := engine.IssueSession(t.Context(), "u1")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := engine.Verify(t.Context(), issued.Credential); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.TTL != 24*time.Hour {
		t.Fatalf("expected 24h ttl, got %v", cfg.JWT.TTL)
	}
	if cfg.Session.IndexGrace != time.Hour {
		t.Fatalf("expected 1h index grace, got %v", cfg.Session.IndexGrace)
	}
	if !cfg.Session.SingleSessionPerDevice || !cfg.Session.VerifySubject {
		t.Fatal("expected replacement and subject checks enabled by default")
	}
	if cfg.Session.SweepInterval != 0 {
		t.Fatal("expected sweeper disabled by default")
	}
	if cfg.JWT.Leeway != 0 {
		t.Fatalf("expected no clock-skew tolerance by default, got %v", cfg.JWT.Leeway)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected defaults without a key to be invalid")
	}
}

func TestCloneConfigCopiesKeys(t *testing.T) {
	cfg := testConfig()
	clone := cloneConfig(cfg)
	clone.JWT.PrivateKey[0] ^= 0xff
	if cfg.JWT.PrivateKey[0] == clone.JWT.PrivateKey[0] {
		t.Fatal("expected clone to own its key bytes")
	}
}

func TestBuilderRequiresBackend(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected error without redis client or store")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	b := New().WithConfig(testConfig()).WithRedis(rdb)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	defer engine.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	_, rdb := newTestRedis(t)
	if _, err := New().WithRedis(rdb).Build(); err == nil {
		t.Fatal("expected error for config without a signing key")
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	_, rdb := newTestRedis(t)
	engine, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer engine.Close()

	cfg.JWT.PrivateKey[0] ^= 0xff
	if engine.Config().JWT.PrivateKey[0] == cfg.JWT.PrivateKey[0] {
		t.Fatal("engine config aliased caller key bytes")
	}
}
