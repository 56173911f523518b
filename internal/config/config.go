// Package config loads process configuration with spf13/viper, grounded on
// the teacher pack's config package (VidIsWandering-secure-payment-gateway):
// defaults first, then environment variables layered on with a prefix. This
// broker is local-first and env-var driven, so no config file is required.
package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all process configuration.
type Config struct {
	DemoMode bool   `mapstructure:"demo_mode"`
	Port     int    `mapstructure:"port"`
	Network  string `mapstructure:"network"`

	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`

	DataDir string `mapstructure:"data_dir"`

	BaseRPCURL        string `mapstructure:"base_rpc_url"`
	BaseSepoliaRPCURL string `mapstructure:"base_sepolia_rpc_url"`
}

// Load reads configuration from environment variables prefixed CLAWLET_
// (nested keys use underscore, e.g. CLAWLET_LOG_LEVEL, CLAWLET_DEMO_MODE),
// layered over sensible defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("demo_mode", false)
	v.SetDefault("port", 3000)
	v.SetDefault("network", "base")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("data_dir", ".clawlet")
	v.SetDefault("base_rpc_url", "")
	v.SetDefault("base_sepolia_rpc_url", "")

	v.SetEnvPrefix("CLAWLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
