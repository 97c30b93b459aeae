// Package config loads server configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server struct {
		Port         string        `mapstructure:"port"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	} `mapstructure:"server"`

	Database struct {
		URL      string `mapstructure:"url"`
		MaxConns int32  `mapstructure:"max_conns"`
		MinConns int32  `mapstructure:"min_conns"`
	} `mapstructure:"database"`

	Auth struct {
		JWTSecret      string        `mapstructure:"jwt_secret"`
		AccessTokenTTL time.Duration `mapstructure:"access_token_ttl"`
	} `mapstructure:"auth"`

	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`

	Refill struct {
		Enabled  bool   `mapstructure:"enabled"`
		Schedule string `mapstructure:"schedule"`
	} `mapstructure:"refill"`
}

// Load reads configuration. configPath may be empty; environment
// variables with the IDGEN_ prefix override everything
// (IDGEN_DATABASE_URL, IDGEN_AUTH_JWT_SECRET, ...).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("refill.enabled", true)
	v.SetDefault("refill.schedule", "*/5 * * * *")

	if configPath != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("IDGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database url is required (IDGEN_DATABASE_URL)")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required (IDGEN_AUTH_JWT_SECRET)")
	}

	return cfg, nil
}
