package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/SmitUplenchwar2687/splitghost/internal/session"
	"github.com/SmitUplenchwar2687/splitghost/internal/splits"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
	"github.com/SmitUplenchwar2687/splitghost/internal/timersync"
)

// Config is the top-level configuration for splitghost.
type Config struct {
	Recording RecordingConfig   `json:"recording"`
	Timer     TimerConfig       `json:"timer"`
	Splits    splits.Thresholds `json:"splits"`
	Store     StoreConfig       `json:"store"`
	Server    ServerConfig      `json:"server"`
	Log       LogConfig         `json:"log"`
}

// RecordingConfig controls the recording cadence.
type RecordingConfig struct {
	Interval  float32 `json:"interval"`
	SyncEvery int     `json:"sync_every"`
	Version   string  `json:"version"`
	ReplayDir string  `json:"replay_dir"`
}

// TimerConfig holds the split timer connection settings.
type TimerConfig struct {
	Enabled         bool          `json:"enabled"`
	Transport       string        `json:"transport"`
	Address         string        `json:"address"`
	LineEnding      string        `json:"line_ending"`
	UseInGameTime   bool          `json:"use_in_game_time"`
	UseGrabSplits   bool          `json:"use_grab_splits"`
	SplitNames      []string      `json:"split_names"`
	AckTimeout      time.Duration `json:"ack_timeout"`
	SyncInterval    time.Duration `json:"sync_interval"`
	BackoffInitial  time.Duration `json:"backoff_initial"`
	BackoffStep     time.Duration `json:"backoff_step"`
	BackoffMax      time.Duration `json:"backoff_max"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	QueueSize       int           `json:"queue_size"`
}

// StoreConfig selects the replay store.
type StoreConfig struct {
	Backend  string      `json:"backend"`
	Dir      string      `json:"dir"`
	Compress bool        `json:"compress"`
	Redis    RedisConfig `json:"redis"`
}

// RedisConfig holds redis store settings.
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	Prefix       string        `json:"prefix"`
	PoolSize     int           `json:"pool_size"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	Cluster      bool          `json:"cluster"`
	ClusterNodes []string      `json:"cluster_nodes"`
}

// ServerConfig holds the fake timer server addresses.
type ServerConfig struct {
	LineAddr string `json:"line_addr"`
	HTTPAddr string `json:"http_addr"`
}

// LogConfig controls log output.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	rec := session.DefaultConfig()
	tc := timersync.DefaultConfig()
	return Config{
		Recording: RecordingConfig{
			Interval:  rec.Interval,
			SyncEvery: rec.SyncEvery,
			Version:   rec.Version,
			ReplayDir: "Replays",
		},
		Timer: TimerConfig{
			Enabled:         true,
			Transport:       "tcp",
			Address:         "localhost:16834",
			LineEnding:      tc.LineEnding,
			UseInGameTime:   tc.UseInGameTime,
			UseGrabSplits:   true,
			SplitNames:      tc.SplitNames,
			AckTimeout:      tc.AckTimeout,
			SyncInterval:    tc.SyncInterval,
			BackoffInitial:  tc.BackoffInitial,
			BackoffStep:     tc.BackoffStep,
			BackoffMax:      tc.BackoffMax,
			ShutdownTimeout: tc.ShutdownTimeout,
			QueueSize:       tc.QueueSize,
		},
		Splits: splits.DefaultThresholds(),
		Store: StoreConfig{
			Backend: store.BackendDir,
			Redis: RedisConfig{
				Host:        "localhost",
				Port:        6379,
				Prefix:      "splitghost:",
				PoolSize:    20,
				MaxRetries:  3,
				DialTimeout: 5 * time.Second,
			},
		},
		Server: ServerConfig{
			LineAddr: ":16834",
			HTTPAddr: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the config is valid.
func (c Config) Validate() error {
	if c.Recording.Interval <= 0 {
		return fmt.Errorf("recording.interval must be positive, got %v", c.Recording.Interval)
	}
	if c.Recording.SyncEvery <= 0 {
		return fmt.Errorf("recording.sync_every must be positive, got %d", c.Recording.SyncEvery)
	}
	switch c.Timer.Transport {
	case "tcp", "unix", "websocket":
	default:
		return fmt.Errorf("unknown timer.transport %q, must be one of: tcp, unix, websocket", c.Timer.Transport)
	}
	switch c.Timer.LineEnding {
	case "crlf", "lf":
	default:
		return fmt.Errorf("unknown timer.line_ending %q, must be crlf or lf", c.Timer.LineEnding)
	}
	if c.Timer.Address == "" {
		return fmt.Errorf("timer.address is required")
	}
	if n := len(c.Timer.SplitNames); n != int(splits.SplitFinal-splits.SplitIntro)+1 {
		return fmt.Errorf("timer.split_names must list %d names, got %d", splits.SplitFinal-splits.SplitIntro+1, n)
	}
	if c.Timer.AckTimeout <= 0 {
		return fmt.Errorf("timer.ack_timeout must be positive, got %s", c.Timer.AckTimeout)
	}
	if c.Timer.BackoffInitial <= 0 || c.Timer.BackoffMax < c.Timer.BackoffInitial {
		return fmt.Errorf("timer backoff must satisfy 0 < backoff_initial <= backoff_max")
	}
	if c.Timer.QueueSize <= 0 {
		return fmt.Errorf("timer.queue_size must be positive, got %d", c.Timer.QueueSize)
	}
	switch c.Store.Backend {
	case store.BackendMemory, store.BackendDir, store.BackendRedis:
	default:
		return fmt.Errorf("unknown store.backend %q, must be one of: memory, dir, redis", c.Store.Backend)
	}
	if c.Store.Backend == store.BackendRedis {
		r := c.Store.Redis
		if r.Cluster && len(r.ClusterNodes) == 0 {
			return fmt.Errorf("store.redis.cluster_nodes is required when cluster=true")
		}
		if !r.Cluster && (r.Host == "" || r.Port <= 0) {
			return fmt.Errorf("store.redis requires host and a positive port")
		}
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log.format %q, must be text or json", c.Log.Format)
	}
	return nil
}

// TimerClient returns the timer-sync client settings.
func (c Config) TimerClient() timersync.Config {
	return timersync.Config{
		LineEnding:      c.Timer.LineEnding,
		UseInGameTime:   c.Timer.UseInGameTime,
		SplitNames:      append([]string(nil), c.Timer.SplitNames...),
		QueueSize:       c.Timer.QueueSize,
		AckTimeout:      c.Timer.AckTimeout,
		SyncInterval:    c.Timer.SyncInterval,
		BackoffInitial:  c.Timer.BackoffInitial,
		BackoffStep:     c.Timer.BackoffStep,
		BackoffMax:      c.Timer.BackoffMax,
		ShutdownTimeout: c.Timer.ShutdownTimeout,
	}
}

// SplitOptions returns the split detection options.
func (c Config) SplitOptions() splits.Options {
	return splits.Options{
		UseGrabSplits: c.Timer.UseGrabSplits,
		UseInGameTime: c.Timer.UseInGameTime,
	}
}

// Session returns the recording settings.
func (c Config) Session() session.Config {
	return session.Config{
		Interval:  c.Recording.Interval,
		SyncEvery: c.Recording.SyncEvery,
		Version:   c.Recording.Version,
	}
}

// StoreOptions returns the store settings. A dir backend with no dir
// uses the recording replay directory.
func (c Config) StoreOptions() store.Config {
	dir := c.Store.Dir
	if dir == "" {
		dir = c.Recording.ReplayDir
	}
	r := c.Store.Redis
	return store.Config{
		Backend:  c.Store.Backend,
		Dir:      dir,
		Compress: c.Store.Compress,
		Redis: store.RedisConfig{
			Host:         r.Host,
			Port:         r.Port,
			Password:     r.Password,
			DB:           r.DB,
			Prefix:       r.Prefix,
			PoolSize:     r.PoolSize,
			MaxRetries:   r.MaxRetries,
			DialTimeout:  r.DialTimeout,
			Cluster:      r.Cluster,
			ClusterNodes: append([]string(nil), r.ClusterNodes...),
		},
	}
}

// LoadFile reads a JSON config file and merges it with defaults.
// Fields not specified in the file retain their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	// Use a raw intermediate struct to handle duration parsing.
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	rec := raw.Recording
	if rec.Interval > 0 {
		cfg.Recording.Interval = rec.Interval
	}
	if rec.SyncEvery > 0 {
		cfg.Recording.SyncEvery = rec.SyncEvery
	}
	if rec.Version != "" {
		cfg.Recording.Version = rec.Version
	}
	if rec.ReplayDir != "" {
		cfg.Recording.ReplayDir = rec.ReplayDir
	}

	tm := raw.Timer
	if tm.Enabled != nil {
		cfg.Timer.Enabled = *tm.Enabled
	}
	if tm.Transport != "" {
		cfg.Timer.Transport = tm.Transport
	}
	if tm.Address != "" {
		cfg.Timer.Address = tm.Address
	}
	if tm.LineEnding != "" {
		cfg.Timer.LineEnding = tm.LineEnding
	}
	if tm.UseInGameTime != nil {
		cfg.Timer.UseInGameTime = *tm.UseInGameTime
	}
	if tm.UseGrabSplits != nil {
		cfg.Timer.UseGrabSplits = *tm.UseGrabSplits
	}
	if len(tm.SplitNames) > 0 {
		cfg.Timer.SplitNames = tm.SplitNames
	}
	if tm.QueueSize > 0 {
		cfg.Timer.QueueSize = tm.QueueSize
	}
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timer.ack_timeout", tm.AckTimeout, &cfg.Timer.AckTimeout},
		{"timer.sync_interval", tm.SyncInterval, &cfg.Timer.SyncInterval},
		{"timer.backoff_initial", tm.BackoffInitial, &cfg.Timer.BackoffInitial},
		{"timer.backoff_step", tm.BackoffStep, &cfg.Timer.BackoffStep},
		{"timer.backoff_max", tm.BackoffMax, &cfg.Timer.BackoffMax},
		{"timer.shutdown_timeout", tm.ShutdownTimeout, &cfg.Timer.ShutdownTimeout},
		{"store.redis.dial_timeout", raw.Store.Redis.DialTimeout, &cfg.Store.Redis.DialTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if len(raw.Splits) > 0 {
		if err := json.Unmarshal(raw.Splits, &cfg.Splits); err != nil {
			return cfg, fmt.Errorf("parsing splits: %w", err)
		}
	}

	st := raw.Store
	if st.Backend != "" {
		cfg.Store.Backend = st.Backend
	}
	if st.Dir != "" {
		cfg.Store.Dir = st.Dir
	}
	if st.Compress != nil {
		cfg.Store.Compress = *st.Compress
	}
	rd := st.Redis
	if rd.Host != "" {
		cfg.Store.Redis.Host = rd.Host
	}
	if rd.Port > 0 {
		cfg.Store.Redis.Port = rd.Port
	}
	if rd.Password != "" {
		cfg.Store.Redis.Password = rd.Password
	}
	if rd.DB > 0 {
		cfg.Store.Redis.DB = rd.DB
	}
	if rd.Prefix != "" {
		cfg.Store.Redis.Prefix = rd.Prefix
	}
	if rd.PoolSize > 0 {
		cfg.Store.Redis.PoolSize = rd.PoolSize
	}
	if rd.MaxRetries > 0 {
		cfg.Store.Redis.MaxRetries = rd.MaxRetries
	}
	if rd.Cluster != nil {
		cfg.Store.Redis.Cluster = *rd.Cluster
	}
	if len(rd.ClusterNodes) > 0 {
		cfg.Store.Redis.ClusterNodes = rd.ClusterNodes
	}

	if raw.Server.LineAddr != "" {
		cfg.Server.LineAddr = raw.Server.LineAddr
	}
	if raw.Server.HTTPAddr != "" {
		cfg.Server.HTTPAddr = raw.Server.HTTPAddr
	}
	if raw.Log.Level != "" {
		cfg.Log.Level = raw.Log.Level
	}
	if raw.Log.Format != "" {
		cfg.Log.Format = raw.Log.Format
	}

	return cfg, nil
}

// rawConfig is the JSON-friendly representation with string durations.
// Booleans are pointers so an explicit false overrides a true default.
type rawConfig struct {
	Recording RecordingConfig `json:"recording"`
	Timer     struct {
		Enabled         *bool    `json:"enabled"`
		Transport       string   `json:"transport"`
		Address         string   `json:"address"`
		LineEnding      string   `json:"line_ending"`
		UseInGameTime   *bool    `json:"use_in_game_time"`
		UseGrabSplits   *bool    `json:"use_grab_splits"`
		SplitNames      []string `json:"split_names"`
		AckTimeout      string   `json:"ack_timeout"`
		SyncInterval    string   `json:"sync_interval"`
		BackoffInitial  string   `json:"backoff_initial"`
		BackoffStep     string   `json:"backoff_step"`
		BackoffMax      string   `json:"backoff_max"`
		ShutdownTimeout string   `json:"shutdown_timeout"`
		QueueSize       int      `json:"queue_size"`
	} `json:"timer"`
	Splits json.RawMessage `json:"splits"`
	Store  struct {
		Backend  string `json:"backend"`
		Dir      string `json:"dir"`
		Compress *bool  `json:"compress"`
		Redis    struct {
			Host         string   `json:"host"`
			Port         int      `json:"port"`
			Password     string   `json:"password"`
			DB           int      `json:"db"`
			Prefix       string   `json:"prefix"`
			PoolSize     int      `json:"pool_size"`
			MaxRetries   int      `json:"max_retries"`
			DialTimeout  string   `json:"dial_timeout"`
			Cluster      *bool    `json:"cluster"`
			ClusterNodes []string `json:"cluster_nodes"`
		} `json:"redis"`
	} `json:"store"`
	Server ServerConfig `json:"server"`
	Log    LogConfig    `json:"log"`
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	example := `{
  "recording": {
    "interval": 0.05,
    "sync_every": 200,
    "version": "1",
    "replay_dir": "Replays"
  },
  "timer": {
    "enabled": true,
    "transport": "tcp",
    "address": "localhost:16834",
    "line_ending": "crlf",
    "use_in_game_time": true,
    "use_grab_splits": true,
    "split_names": ["Intro", "Jungle", "Gears", "Pool", "Construction", "Cave", "Ice", "Ending"],
    "ack_timeout": "2s",
    "sync_interval": "10s",
    "backoff_initial": "1s",
    "backoff_step": "2s",
    "backoff_max": "10s",
    "shutdown_timeout": "1s",
    "queue_size": 64
  },
  "splits": {
    "final_y": 240,
    "intro_grab": 33,
    "intro_y": 31
  },
  "store": {
    "backend": "dir",
    "dir": "Replays",
    "compress": false,
    "redis": {
      "host": "localhost",
      "port": 6379,
      "prefix": "splitghost:",
      "dial_timeout": "5s"
    }
  },
  "server": {
    "line_addr": ":16834",
    "http_addr": ":8080"
  },
  "log": {
    "level": "info",
    "format": "text"
  }
}
`
	return os.WriteFile(path, []byte(example), 0o644)
}
