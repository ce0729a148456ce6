package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	SupabaseURL        string `mapstructure:"supabase_url"`
	SupabaseKey        string `mapstructure:"supabase_key"`
	ListenAddr         string `mapstructure:"listen_addr"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds"`
}

// Load reads settings from an optional metrics-service.toml and the
// environment, environment winning. The Supabase URL and key have no
// sensible default and must be present.
func Load() (*Config, error) {
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("http_timeout_seconds", 10)

	viper.SetConfigName("metrics-service")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("/etc/metrics-service")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.BindEnv("supabase_url", "SUPABASE_URL")
	viper.BindEnv("supabase_key", "SUPABASE_KEY")
	viper.BindEnv("listen_addr", "LISTEN_ADDR")
	viper.BindEnv("http_timeout_seconds", "HTTP_TIMEOUT_SECONDS")

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.SupabaseURL == "" {
		return nil, errors.New("supabase URL is not configured (set SUPABASE_URL)")
	}
	if config.SupabaseKey == "" {
		return nil, errors.New("supabase access key is not configured (set SUPABASE_KEY)")
	}

	return config, nil
}

func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}
