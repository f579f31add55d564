package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "FOUNTAINHEAD"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "fountainhead.db"
	defaultCachePath    = "fountainhead-cache.db"
	defaultLogLevel     = "info"
)

// AppConfig captures runtime configuration for the collaboration backend.
type AppConfig struct {
	HTTPAddress   string
	SigningSecret string
	DatabasePath  string
	CachePath     string
	RedisAddress  string
	LogLevel      string
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("cache.path", defaultCachePath)
	configViper.SetDefault("redis.address", "")
	configViper.SetDefault("log.level", defaultLogLevel)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		SigningSecret: configViper.GetString("session.signing_secret"),
		DatabasePath:  configViper.GetString("database.path"),
		CachePath:     configViper.GetString("cache.path"),
		RedisAddress:  configViper.GetString("redis.address"),
		LogLevel:      configViper.GetString("log.level"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("session.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	return nil
}
