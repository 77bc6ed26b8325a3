package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables use the
// TASKBOARD_ prefix with underscores for nesting (TASKBOARD_SERVER_PORT)
// and take precedence over file values.
// Returns a populated Config struct or an error if loading or
// validation fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("auth.token_lifetime_minutes", 60)
	v.SetDefault("auth.bcrypt_cost", 0)
	v.SetDefault("storage.root", "storage")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("job.worker_count", 2)
	v.SetDefault("job.queue_size", 100)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys to Unmarshal, so
	// bind each known key explicitly.
	for _, key := range []string{
		"server.port", "server.log_level",
		"database.url",
		"auth.jwt_secret", "auth.token_lifetime_minutes", "auth.bcrypt_cost",
		"storage.root",
		"smtp.host", "smtp.port", "smtp.username", "smtp.password", "smtp.from",
		"job.worker_count", "job.queue_size",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env key %q: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
