package store

import (
	"fmt"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendDir    = "dir"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend  string
	Dir      string
	Compress bool
	Redis    RedisConfig
}

// Open creates the configured store.
func Open(cfg Config, c clock.Clock) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryStore(c), nil
	case "", BackendDir:
		return NewDirStore(cfg.Dir, cfg.Compress, c)
	case BackendRedis:
		return NewRedisStore(&cfg.Redis, c)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
