// Package config loads FIF's tunables using Viper, matching the layered
// config-file/environment/default resolution the rest of the ambient
// stack uses (spec.md SPEC_FULL.md "Configuration").
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the tunables an archive's reader/writer needs that are not
// themselves part of the archive's own persisted properties.
type Config struct {
	// ChunkSize is the configured Image stream chunk size in bytes. The
	// streams package does not read it; it uses its own DefaultChunkSize
	// constant when a stream's 'chunk_size' property is absent.
	ChunkSize int64 `mapstructure:"chunk_size"`
	// EncryptedChunkSize is the configured chunk size for Encrypted
	// streams, which the original format sizes larger than plain Image
	// streams (16MB vs 32KB) to amortize per-chunk AES/SHA overhead. The
	// streams package does not read it; it uses DefaultEncryptedChunkSize.
	EncryptedChunkSize int64 `mapstructure:"encrypted_chunk_size"`
	// CacheSize is the default ChunkCache byte budget.
	CacheSize int `mapstructure:"cache_size"`
	// PSKEnvVar is the configured name of the pre-shared key environment
	// variable. internal/keyprovider does not read it; it always checks
	// its own EnvVar constant ("FIF_PSK").
	PSKEnvVar string `mapstructure:"psk_env_var"`
}

// Load resolves Config from (in increasing priority) built-in defaults, a
// fif-config.yaml found on the search path, and FIF_-prefixed environment
// variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("fif-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../..")
	v.AddConfigPath("$HOME/.fif")
	v.AddConfigPath("/etc/fif")

	v.SetDefault("chunk_size", 32*1024)
	v.SetDefault("encrypted_chunk_size", 16*1024*1024)
	v.SetDefault("cache_size", 5*1024*1024)
	v.SetDefault("psk_env_var", "FIF_PSK")

	v.SetEnvPrefix("FIF")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return &cfg, nil
}
