package prometheus

import (
	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/store"
)

func testConfig() goSession.Config {
	cfg := goSession.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("prometheus-test-secret-0123456789")
	return cfg
}

func newMemoryStore() store.Store {
	return store.NewMemory()
}
