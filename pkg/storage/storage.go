package storage

import (
	"context"

	"github.com/SmitUplenchwar2687/splitghost/internal/store"
	"github.com/SmitUplenchwar2687/splitghost/pkg/clock"
)

// Backend names accepted by Open.
const (
	BackendMemory = store.BackendMemory
	BackendDir    = store.BackendDir
	BackendRedis  = store.BackendRedis
)

// Store holds replays keyed by a generated ID.
type Store = store.Store

// Entry describes a stored replay.
type Entry = store.Entry

// Loaded is one replay returned by LoadAll.
type Loaded = store.Loaded

// Config selects and configures a backend.
type Config = store.Config

// RedisConfig configures the Redis backend.
type RedisConfig = store.RedisConfig

// MemoryStore keeps replays in memory.
type MemoryStore = store.MemoryStore

// DirStore keeps replays as .dcg files in a directory.
type DirStore = store.DirStore

// RedisStore keeps replays in Redis.
type RedisStore = store.RedisStore

// ErrNotFound is returned when no replay has the requested ID.
var ErrNotFound = store.ErrNotFound

// Open creates the configured store.
func Open(cfg Config, c clock.Clock) (Store, error) {
	return store.Open(cfg, c)
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(c clock.Clock) *MemoryStore {
	return store.NewMemoryStore(c)
}

// NewDirStore opens a directory store, creating dir if needed.
func NewDirStore(dir string, compress bool, c clock.Clock) (*DirStore, error) {
	return store.NewDirStore(dir, compress, c)
}

// NewRedisStore connects to Redis.
func NewRedisStore(cfg *RedisConfig, c clock.Clock) (*RedisStore, error) {
	return store.NewRedisStore(cfg, c)
}

// LoadAll reads every replay in s. Replays that fail to load are
// reported and skipped.
func LoadAll(ctx context.Context, s Store) ([]Loaded, []error) {
	return store.LoadAll(ctx, s)
}
