package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. VIEWSET_SERVER_PORT or VIEWSET_STORE_DRIVER.
const EnvPrefix = "VIEWSET"

// ConfigDirEnv names an optional directory searched for config.yaml.
const ConfigDirEnv = "VIEWSET_CONFIG_DIR"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// setDefaults registers every key so AutomaticEnv can resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout_seconds", 10)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.url", "")
	v.SetDefault("store.database", "")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "viewset")
	v.SetDefault("auth.max_age_minutes", 24*60)
	v.SetDefault("auth.header_name", "Authorization")

	v.SetDefault("api.base_path", "/api")
	v.SetDefault("api.page_size", 50)
	v.SetDefault("api.issue_tokens", false)
}
