package goSession

import (
	"context"
	"errors"

	"github.com/MrEthical07/goSession/cache"
	"github.com/MrEthical07/goSession/internal/rate"
	"github.com/MrEthical07/goSession/internal/stores"
	"github.com/MrEthical07/goSession/jwt"
	"github.com/MrEthical07/goSession/session"
	"github.com/MrEthical07/goSession/store"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an [Engine].
//
// Builder instances are intended to be configured during initialization and
// used once. Build fails on a second call.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  store.Store

	logger    *zap.Logger
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The config is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis backs the engine with a go-redis client (single node, sentinel
// or cluster). The caller keeps ownership of the client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore backs the engine with an arbitrary [store.Store]. It takes
// precedence over WithRedis.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verify latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. When
// Session.SweepInterval is positive a background sweeper is started; stop it
// with [Engine.Close].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- STORE --------
	st := b.store
	if st == nil {
		if b.redis == nil {
			return nil, errors.New("redis client or store required")
		}
		st = store.NewRedis(b.redis, cfg.Store.OperationTimeout)
	}

	log := b.logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("gosession")

	// -------- CODEC --------
	jm, err := jwt.NewManager(jwt.Config{
		TTL:           cfg.JWT.TTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	// -------- SESSION REGISTRY --------
	registry := session.NewRegistry(st, jm, session.Config{
		SingleSessionPerDevice: cfg.Session.SingleSessionPerDevice,
		VerifySubject:          cfg.Session.VerifySubject,
		IndexGrace:             cfg.Session.IndexGrace,
	}, session.WithLogger(log.Named("session")))

	engine := &Engine{
		config:   cfg,
		store:    st,
		codec:    jm,
		registry: registry,
		limiter:  rate.New(st),
		codes:    stores.NewCodeStore(st),
		cache:    cache.New(st, cfg.Cache.DefaultTTL),
		metrics:  NewMetrics(cfg.Metrics),
		audit:    newAuditDispatcher(cfg.Audit, b.auditSink, log.Named("audit")),
		log:      log,
	}

	if cfg.Session.SweepInterval > 0 {
		engine.sweeper = session.NewSweeper(registry, cfg.Session.SweepInterval, func(removed int, err error) {
			engine.recordSweep(context.Background(), removed, err)
			if err != nil {
				_ = engine.storeFailure(context.Background(), "sweep", err)
			}
		})
		engine.sweeper.Start(context.Background())
	}

	b.built = true

	return engine, nil
}
