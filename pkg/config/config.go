package config

import internalconfig "github.com/SmitUplenchwar2687/splitghost/internal/config"

// Config is the top-level configuration for splitghost.
type Config = internalconfig.Config

// RecordingConfig controls the recording cadence.
type RecordingConfig = internalconfig.RecordingConfig

// TimerConfig holds the split timer connection settings.
type TimerConfig = internalconfig.TimerConfig

// StoreConfig selects the replay store.
type StoreConfig = internalconfig.StoreConfig

// RedisConfig configures the Redis replay store.
type RedisConfig = internalconfig.RedisConfig

// ServerConfig holds the fake timer server addresses.
type ServerConfig = internalconfig.ServerConfig

// LogConfig controls log output.
type LogConfig = internalconfig.LogConfig

// Default returns a Config with sensible defaults.
func Default() Config {
	return internalconfig.Default()
}

// LoadFile reads a JSON config file and merges it with defaults.
func LoadFile(path string) (Config, error) {
	return internalconfig.LoadFile(path)
}

// WriteExample writes an example config file to the given path.
func WriteExample(path string) error {
	return internalconfig.WriteExample(path)
}
