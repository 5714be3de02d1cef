package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/cfab/hwagent/internal/apperr"
)

// Load reads configuration from an optional JSON config file and environment
// variables. Environment variables use the HWAGENT_ prefix with underscores
// for nesting (HWAGENT_SERVER_PORT) and take precedence over file values.
// Returns a populated, validated Config or an error.
func Load(paths ...string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("hwagent")
	v.SetConfigType("json")
	if len(paths) == 0 {
		v.AddConfigPath(".")
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetEnvPrefix("HWAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults plus env cover it.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeConfig, "failed to unmarshal config")
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8750)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.queue_size", 1000)
	v.SetDefault("logging.blocked_after", 5*time.Second)

	v.SetDefault("pool.workers", 4)
	v.SetDefault("pool.queue_size", 100)
	v.SetDefault("pool.task_timeout", 5*time.Minute)
	v.SetDefault("pool.health_interval", 30*time.Second)
	v.SetDefault("pool.overload_threshold", 0.8)
	v.SetDefault("pool.long_running_after", 10*time.Minute)
	v.SetDefault("pool.handle_retention", time.Minute)

	v.SetDefault("hardware.profile_path", "hardware.json")
	v.SetDefault("hardware.probe_timeout", 30*time.Second)

	v.SetDefault("i18n.dir", "translations")
	v.SetDefault("i18n.default_language", "en")
}

func validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return apperr.Newf(apperr.CodeValidation, "invalid configuration: %s",
			strings.Join(fields, ", "))
	}
	return apperr.Wrap(err, apperr.CodeValidation, "config validation failed")
}
