package config

// Package config provides a reusable loader for Modality node configuration
// files and environment variables, following the teacher's viper-backed
// Load/LoadFromEnv shape (re-specified for the Modality domain's network,
// consensus, predicate-executor, storage, and logging concerns).
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/modality-network/modality-core/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a Modality node.
type Config struct {
	Network struct {
		PeerID         string   `mapstructure:"peer_id" json:"peer_id"`
		PassfilePath   string   `mapstructure:"passfile_path" json:"passfile_path"`
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		MaxPeers       int      `mapstructure:"max_peers" json:"max_peers"`
	} `mapstructure:"network" json:"network"`

	Consensus struct {
		ScribeCount        int   `mapstructure:"scribe_count" json:"scribe_count"`
		RoundTimeoutMS     int   `mapstructure:"round_timeout_ms" json:"round_timeout_ms"`
		EpochLength        uint64 `mapstructure:"epoch_length" json:"epoch_length"`
		ReputationWeighted bool  `mapstructure:"reputation_weighted" json:"reputation_weighted"`
	} `mapstructure:"consensus" json:"consensus"`

	PredicateExecutor struct {
		DefaultGasLimit uint64 `mapstructure:"default_gas_limit" json:"default_gas_limit"`
		MaxGasLimit     uint64 `mapstructure:"max_gas_limit" json:"max_gas_limit"`
		ModuleCacheSize int    `mapstructure:"module_cache_size" json:"module_cache_size"`
	} `mapstructure:"predicate_executor" json:"predicate_executor"`

	Storage struct {
		DBPath string `mapstructure:"db_path" json:"db_path"`
		Prune  bool   `mapstructure:"prune" json:"prune"`
	} `mapstructure:"storage" json:"storage"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned.
//
// The function uses the provided environment name to merge additional
// config files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
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

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the MODALITY_ENV environment
// variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("MODALITY_ENV", ""))
}
