// Package config loads anchorctl configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all settings for the CLI and SDK.
type Config struct {
	// BaseURL is the platform API root.
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// APIKey switches the client to static API-key authentication,
	// bypassing the bearer/refresh flow.
	APIKey string `mapstructure:"api_key"`

	Credentials  CredentialsConfig `mapstructure:"credentials"`
	PollInterval time.Duration     `mapstructure:"poll_interval"`
	DevServer    DevServerConfig   `mapstructure:"devserver"`
}

// CredentialsConfig selects where the session record is persisted.
type CredentialsConfig struct {
	Backend string      `mapstructure:"backend"` // file, memory, or redis
	Path    string      `mapstructure:"path"`    // file backend only
	Redis   RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the redis credential backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DevServerConfig tunes the local stub platform.
type DevServerConfig struct {
	Addr         string        `mapstructure:"addr"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	AccessTTL    time.Duration `mapstructure:"access_ttl"`
	RefreshTTL   time.Duration `mapstructure:"refresh_ttl"`
	PipelineStep time.Duration `mapstructure:"pipeline_step"`
}

// Load reads configuration from the given file, or from the default search
// paths when path is empty. Environment variables with the ANCHORCTL_ prefix
// override file values (e.g. ANCHORCTL_BASE_URL). A missing config file is
// not an error; defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("anchorctl")
	v.SetConfigType("yaml")

	v.SetDefault("base_url", "http://localhost:8080/api/v1")
	v.SetDefault("timeout", 30*time.Second)
	v.SetDefault("credentials.backend", "file")
	v.SetDefault("poll_interval", 3*time.Second)
	v.SetDefault("devserver.addr", ":8080")
	v.SetDefault("devserver.access_ttl", 15*time.Minute)
	v.SetDefault("devserver.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("devserver.pipeline_step", 2*time.Second)

	if path == "" {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/anchorctl")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ANCHORCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Credentials.Backend {
	case "file", "memory":
	case "redis":
		if c.Credentials.Redis.Addr == "" {
			return errors.New("credentials.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown credentials backend %q", c.Credentials.Backend)
	}
	return nil
}
