// Package config loads the client configuration from a yaml file and
// STORMLOOP_* environment variables, env taking precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stormloop-dev/stormloop/pkg/realtime"
)

// Config is the full client configuration.
type Config struct {
	API         APIConfig         `mapstructure:"api"`
	Realtime    RealtimeConfig    `mapstructure:"realtime"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Log         LogConfig         `mapstructure:"log"`
}

// APIConfig holds the REST endpoint settings.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// RealtimeConfig holds the websocket gateway settings.
type RealtimeConfig struct {
	URL         string        `mapstructure:"url"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
	BackoffCap  time.Duration `mapstructure:"backoff_cap"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// CacheConfig holds the local sqlite cache settings.
type CacheConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// DiagnosticsConfig holds the metrics endpoint settings.
type DiagnosticsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads configuration from path (optional) and the environment.
// Environment variables use the STORMLOOP_ prefix with underscores, e.g.
// STORMLOOP_API_BASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("STORMLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("stormloop")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.stormloop")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080/api")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("realtime.url", "ws://localhost:8080/ws")
	v.SetDefault("realtime.dial_timeout", 10*time.Second)
	v.SetDefault("realtime.backoff_base", realtime.DefaultBackoffBase)
	v.SetDefault("realtime.backoff_cap", realtime.DefaultBackoffCap)
	v.SetDefault("realtime.max_attempts", realtime.DefaultMaxAttempts)
	v.SetDefault("cache.path", "$HOME/.stormloop/cache.db")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("diagnostics.enabled", false)
	v.SetDefault("diagnostics.addr", "127.0.0.1:9114")
	v.SetDefault("log.level", "info")
}

// Validate checks settings that would otherwise fail deep inside a command.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Realtime.URL == "" {
		return fmt.Errorf("realtime.url is required")
	}
	if c.Realtime.MaxAttempts <= 0 {
		return fmt.Errorf("realtime.max_attempts must be positive")
	}
	return nil
}

// RealtimeOptions maps the realtime section onto manager options.
func (c *Config) RealtimeOptions() realtime.Options {
	return realtime.Options{
		URL:         c.Realtime.URL,
		DialTimeout: c.Realtime.DialTimeout,
		BackoffBase: c.Realtime.BackoffBase,
		BackoffCap:  c.Realtime.BackoffCap,
		MaxAttempts: c.Realtime.MaxAttempts,
	}
}
