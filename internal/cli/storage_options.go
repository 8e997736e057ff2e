package cli

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/SmitUplenchwar2687/splitghost/internal/clock"
	"github.com/SmitUplenchwar2687/splitghost/internal/config"
	"github.com/SmitUplenchwar2687/splitghost/internal/store"
)

type storeOptions struct {
	backend           string
	dir               string
	compress          bool
	redisHost         string
	redisPort         int
	redisPassword     string
	redisDB           int
	redisPrefix       string
	redisCluster      bool
	redisClusterNodes []string
	redisPoolSize     int
	redisMaxRetries   int
	redisDialTimeout  time.Duration
}

func defaultStoreOptions() storeOptions {
	d := config.Default().Store
	return storeOptions{
		backend:          d.Backend,
		dir:              d.Dir,
		redisHost:        d.Redis.Host,
		redisPort:        d.Redis.Port,
		redisPrefix:      d.Redis.Prefix,
		redisPoolSize:    d.Redis.PoolSize,
		redisMaxRetries:  d.Redis.MaxRetries,
		redisDialTimeout: d.Redis.DialTimeout,
	}
}

func (o *storeOptions) addFlags(cmd *cobra.Command) {
	o.register(cmd.Flags())
}

// addPersistentFlags registers the store flags for cmd and its subcommands.
func (o *storeOptions) addPersistentFlags(cmd *cobra.Command) {
	o.register(cmd.PersistentFlags())
}

func (o *storeOptions) register(fs *pflag.FlagSet) {
	d := defaultStoreOptions()
	fs.StringVar(&o.backend, "store", d.backend, "replay store backend (memory, dir, redis)")
	fs.StringVar(&o.dir, "store-dir", d.dir, "replay directory for the dir backend (default: recording.replay_dir)")
	fs.BoolVar(&o.compress, "store-compress", false, "zstd-compress replays written by the dir backend")
	fs.StringVar(&o.redisHost, "redis-host", d.redisHost, "redis host (or host:port)")
	fs.IntVar(&o.redisPort, "redis-port", d.redisPort, "redis port")
	fs.StringVar(&o.redisPassword, "redis-password", "", "redis password")
	fs.IntVar(&o.redisDB, "redis-db", 0, "redis database index")
	fs.StringVar(&o.redisPrefix, "redis-prefix", d.redisPrefix, "redis key prefix")
	fs.BoolVar(&o.redisCluster, "redis-cluster", false, "enable redis cluster mode")
	fs.StringSliceVar(&o.redisClusterNodes, "redis-cluster-nodes", nil, "redis cluster nodes host:port list")
	fs.IntVar(&o.redisPoolSize, "redis-pool-size", d.redisPoolSize, "redis connection pool size")
	fs.IntVar(&o.redisMaxRetries, "redis-max-retries", d.redisMaxRetries, "redis max retries")
	fs.DurationVar(&o.redisDialTimeout, "redis-dial-timeout", d.redisDialTimeout, "redis dial timeout")
}

func (o *storeOptions) applyConfigIfUnset(cmd *cobra.Command, cfg *config.StoreConfig) {
	if cfg == nil {
		return
	}

	if !cmd.Flags().Changed("store") {
		o.backend = cfg.Backend
	}
	if !cmd.Flags().Changed("store-dir") {
		o.dir = cfg.Dir
	}
	if !cmd.Flags().Changed("store-compress") {
		o.compress = cfg.Compress
	}
	if !cmd.Flags().Changed("redis-host") {
		o.redisHost = cfg.Redis.Host
	}
	if !cmd.Flags().Changed("redis-port") {
		o.redisPort = cfg.Redis.Port
	}
	if !cmd.Flags().Changed("redis-password") {
		o.redisPassword = cfg.Redis.Password
	}
	if !cmd.Flags().Changed("redis-db") {
		o.redisDB = cfg.Redis.DB
	}
	if !cmd.Flags().Changed("redis-prefix") {
		o.redisPrefix = cfg.Redis.Prefix
	}
	if !cmd.Flags().Changed("redis-cluster") {
		o.redisCluster = cfg.Redis.Cluster
	}
	if !cmd.Flags().Changed("redis-cluster-nodes") {
		o.redisClusterNodes = cfg.Redis.ClusterNodes
	}
	if !cmd.Flags().Changed("redis-pool-size") {
		o.redisPoolSize = cfg.Redis.PoolSize
	}
	if !cmd.Flags().Changed("redis-max-retries") {
		o.redisMaxRetries = cfg.Redis.MaxRetries
	}
	if !cmd.Flags().Changed("redis-dial-timeout") {
		o.redisDialTimeout = cfg.Redis.DialTimeout
	}
}

func (o *storeOptions) normalize() error {
	if o.backend != store.BackendRedis || o.redisCluster {
		return nil
	}

	host, port, err := normalizeRedisHostPort(o.redisHost, o.redisPort)
	if err != nil {
		return err
	}
	o.redisHost = host
	o.redisPort = port
	return nil
}

func (o *storeOptions) toConfig() config.StoreConfig {
	return config.StoreConfig{
		Backend:  o.backend,
		Dir:      o.dir,
		Compress: o.compress,
		Redis: config.RedisConfig{
			Host:         o.redisHost,
			Port:         o.redisPort,
			Password:     o.redisPassword,
			DB:           o.redisDB,
			Prefix:       o.redisPrefix,
			Cluster:      o.redisCluster,
			ClusterNodes: append([]string(nil), o.redisClusterNodes...),
			PoolSize:     o.redisPoolSize,
			MaxRetries:   o.redisMaxRetries,
			DialTimeout:  o.redisDialTimeout,
		},
	}
}

// openStore merges the store flags into cfg and opens the store.
func (o *storeOptions) openStore(cmd *cobra.Command, cfg *config.Config, clk clock.Clock) (store.Store, error) {
	o.applyConfigIfUnset(cmd, &cfg.Store)
	if err := o.normalize(); err != nil {
		return nil, err
	}
	cfg.Store = o.toConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	st, err := store.Open(cfg.StoreOptions(), clk)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}
	return st, nil
}

func normalizeRedisHostPort(host string, port int) (string, int, error) {
	if strings.Contains(host, ":") {
		h, p, err := net.SplitHostPort(host)
		if err != nil {
			return "", 0, fmt.Errorf("invalid --redis-host value %q: %w", host, err)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, fmt.Errorf("invalid redis port in --redis-host %q: %w", host, err)
		}
		host = h
		port = n
	}

	if host == "" {
		return "", 0, fmt.Errorf("redis host cannot be empty")
	}
	if port <= 0 {
		return "", 0, fmt.Errorf("redis port must be positive, got %d", port)
	}

	return host, port, nil
}
