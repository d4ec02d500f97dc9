package goSession

import (
	"testing"

	"github.com/MrEthical07/goSession/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "engine-test-secret-0123456789abcdef"

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	return cfg
}

// buildRedisEngine returns an engine over miniredis. Close runs on cleanup.
func buildRedisEngine(t *testing.T, cfg Config, sink AuditSink) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	b := New().WithConfig(cfg).WithRedis(rdb)
	if sink != nil {
		b = b.WithAuditSink(sink)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine, mr
}

func buildMemoryEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	engine, err := New().WithConfig(cfg).WithStore(store.NewMemory()).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}
