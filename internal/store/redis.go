package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	msgpack "github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/redis/go-redis/v9"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/keyframe"
)

const (
	defaultRedisPoolSize    = 20
	defaultRedisMaxRetries  = 3
	defaultRedisDialTimeout = 5 * time.Second
	defaultRedisPrefix      = "splitghost:"
)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	Prefix       string
	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	Cluster      bool
	ClusterNodes []string
}

// record is the msgpack form of an Entry.
type record struct {
	ID        string  `codec:"id"`
	Name      string  `codec:"name"`
	Version   string  `codec:"version"`
	Nodes     int     `codec:"nodes"`
	Keyframes int     `codec:"keyframes"`
	Duration  float32 `codec:"duration"`
	CreatedMS int64   `codec:"created_ms"`
}

var msgpackHandle msgpack.MsgpackHandle

func encodeRecord(e Entry) ([]byte, error) {
	r := record{
		ID:        e.ID,
		Name:      e.Name,
		Version:   e.Version,
		Nodes:     e.Nodes,
		Keyframes: e.Keyframes,
		Duration:  e.Duration,
		CreatedMS: e.CreatedAt.UnixMilli(),
	}
	var buf []byte
	if err := msgpack.NewEncoderBytes(&buf, &msgpackHandle).Encode(r); err != nil {
		return nil, fmt.Errorf("encoding entry: %w", err)
	}
	return buf, nil
}

func decodeRecord(b []byte) (Entry, error) {
	var r record
	if err := msgpack.NewDecoderBytes(b, &msgpackHandle).Decode(&r); err != nil {
		return Entry{}, fmt.Errorf("decoding entry: %w", err)
	}
	return Entry{
		ID:        r.ID,
		Name:      r.Name,
		Version:   r.Version,
		Nodes:     r.Nodes,
		Keyframes: r.Keyframes,
		Duration:  r.Duration,
		CreatedAt: time.UnixMilli(r.CreatedMS).UTC(),
	}, nil
}

// RedisStore keeps replays in Redis: a zstd-compressed codec blob and a
// msgpack entry per replay, plus a sorted set indexing IDs by creation
// time.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	clock  clock.Clock

	closeOnce sync.Once
	closeErr  error
}

// NewRedisStore connects and pings the server.
func NewRedisStore(cfg *RedisConfig, c clock.Clock) (*RedisStore, error) {
	conf, err := normalizeRedisConfig(cfg)
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = clock.NewRealClock()
	}

	client := newRedisClient(conf)
	s := &RedisStore{client: client, prefix: conf.Prefix, clock: c}

	if err := s.pingWithRetry(context.Background(), conf.MaxRetries); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

// Keys share a hash tag per replay so cluster deployments keep a
// replay's blob and entry on one slot.
func (s *RedisStore) blobKey(id string) string  { return s.prefix + "{" + id + "}:blob" }
func (s *RedisStore) entryKey(id string) string { return s.prefix + "{" + id + "}:entry" }
func (s *RedisStore) indexKey() string          { return s.prefix + "index" }

func (s *RedisStore) Put(ctx context.Context, name string, rf keyframe.ReplayFile) (Entry, error) {
	blob, err := EncodeBlob(rf, true)
	if err != nil {
		return Entry{}, err
	}
	e := newEntry(name, rf, s.clock.Now().Truncate(time.Millisecond))
	meta, err := encodeRecord(e)
	if err != nil {
		return Entry{}, err
	}

	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, s.blobKey(e.ID), blob, 0)
		p.Set(ctx, s.entryKey(e.ID), meta, 0)
		p.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(e.CreatedAt.UnixMilli()), Member: e.ID})
		return nil
	})
	if err != nil {
		return Entry{}, fmt.Errorf("storing replay: %w", err)
	}
	return e, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (keyframe.ReplayFile, Entry, error) {
	e, err := s.entry(ctx, id)
	if err != nil {
		return keyframe.ReplayFile{}, Entry{}, err
	}
	blob, err := s.client.Get(ctx, s.blobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return keyframe.ReplayFile{}, Entry{}, ErrNotFound
	}
	if err != nil {
		return keyframe.ReplayFile{}, Entry{}, fmt.Errorf("reading replay: %w", err)
	}
	rf, err := DecodeBlob(blob)
	if err != nil {
		return keyframe.ReplayFile{}, Entry{}, err
	}
	return rf, e, nil
}

func (s *RedisStore) entry(ctx context.Context, id string) (Entry, error) {
	meta, err := s.client.Get(ctx, s.entryKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("reading entry: %w", err)
	}
	return decodeRecord(meta)
}

// List walks the index in creation order. IDs whose entry has vanished
// are skipped.
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		e, err := s.entry(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	removed, err := s.client.ZRem(ctx, s.indexKey(), id).Result()
	if err != nil {
		return fmt.Errorf("deleting replay: %w", err)
	}
	deleted, err := s.client.Del(ctx, s.blobKey(id), s.entryKey(id)).Result()
	if err != nil {
		return fmt.Errorf("deleting replay: %w", err)
	}
	if removed == 0 && deleted == 0 {
		return ErrNotFound
	}
	return nil
}

// Close releases Redis resources. It is idempotent.
func (s *RedisStore) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Close()
	})
	return s.closeErr
}

func (s *RedisStore) pingWithRetry(ctx context.Context, maxRetries int) error {
	attempts := maxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	backoff := 100 * time.Millisecond
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := s.client.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
	}
	return lastErr
}

func normalizeRedisConfig(cfg *RedisConfig) (*RedisConfig, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	conf := *cfg
	if conf.PoolSize <= 0 {
		conf.PoolSize = defaultRedisPoolSize
	}
	if conf.MaxRetries <= 0 {
		conf.MaxRetries = defaultRedisMaxRetries
	}
	if conf.DialTimeout <= 0 {
		conf.DialTimeout = defaultRedisDialTimeout
	}
	if conf.Prefix == "" {
		conf.Prefix = defaultRedisPrefix
	}

	if conf.Cluster {
		if len(conf.ClusterNodes) == 0 {
			return nil, fmt.Errorf("cluster_nodes is required when cluster=true")
		}
	} else {
		if conf.Host == "" {
			return nil, fmt.Errorf("host is required when cluster=false")
		}
		if conf.Port <= 0 {
			return nil, fmt.Errorf("port must be positive when cluster=false, got %d", conf.Port)
		}
	}

	return &conf, nil
}

func newRedisClient(cfg *RedisConfig) redis.UniversalClient {
	if cfg.Cluster {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:       cfg.ClusterNodes,
			Password:    cfg.Password,
			PoolSize:    cfg.PoolSize,
			MaxRetries:  cfg.MaxRetries,
			DialTimeout: cfg.DialTimeout,
		})
	}

	return redis.NewClient(&redis.Options{
		Addr:        cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
	})
}
