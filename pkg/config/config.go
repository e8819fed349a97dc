package config

// Package config provides a reusable loader for forgedb configuration files
// and environment variables. It is versioned so that applications can depend
// on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/forgedb/forgedb/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a forgedb store, mirroring the
// structure of the YAML files under cmd/config.
type Config struct {
	Storage struct {
		DataDir                     string `mapstructure:"data_dir" json:"data_dir"`
		HashAlgorithm               string `mapstructure:"hash_algorithm" json:"hash_algorithm"`
		MemtableFlushThresholdBytes int64  `mapstructure:"memtable_flush_threshold_bytes" json:"memtable_flush_threshold_bytes"`
		CompactionPolicy            string `mapstructure:"compaction_policy" json:"compaction_policy"`
		WALSyncMode                 string `mapstructure:"wal_sync_mode" json:"wal_sync_mode"`
		CompactionTombstoneGraceSeconds int64 `mapstructure:"compaction_tombstone_grace_seconds" json:"compaction_tombstone_grace_seconds"`
	} `mapstructure:"storage" json:"storage"`

	DAG struct {
		BlockCacheSize int `mapstructure:"block_cache_size" json:"block_cache_size"`
	} `mapstructure:"dag" json:"dag"`

	MVCC struct {
		SnapshotCacheCapacity int `mapstructure:"snapshot_cache_capacity" json:"snapshot_cache_capacity"`
	} `mapstructure:"mvcc" json:"mvcc"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	applyDefaults(&AppConfig)
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the FORGEDB_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("FORGEDB_ENV", ""))
}

func applyDefaults(c *Config) {
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = utils.EnvOrDefault("FORGEDB_DATA_DIR", "./data")
	}
	if c.Storage.HashAlgorithm == "" {
		c.Storage.HashAlgorithm = "sha2-256"
	}
	if c.Storage.MemtableFlushThresholdBytes <= 0 {
		c.Storage.MemtableFlushThresholdBytes = 4 << 20
	}
	if c.Storage.CompactionPolicy == "" {
		c.Storage.CompactionPolicy = "size_tiered"
	}
	if c.Storage.WALSyncMode == "" {
		c.Storage.WALSyncMode = "per_write"
	}
	if c.Storage.CompactionTombstoneGraceSeconds <= 0 {
		c.Storage.CompactionTombstoneGraceSeconds = 3600
	}
	if c.DAG.BlockCacheSize <= 0 {
		c.DAG.BlockCacheSize = 1024
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
