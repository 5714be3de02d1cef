package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Logging  LoggingConfig  `mapstructure:"logging"  validate:"required"`
	Pool     PoolConfig     `mapstructure:"pool"     validate:"required"`
	Hardware HardwareConfig `mapstructure:"hardware" validate:"required"`
	I18n     I18nConfig     `mapstructure:"i18n"     validate:"required"`
}

// ServerConfig contains the status API settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             validate:"required,gt=0,lt=65536"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0"`
}

// LoggingConfig contains the structured logging and log queue settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// QueueSize bounds the log delivery queue. Zero disables the queue
	// and logs synchronously.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`

	// BlockedAfter is how long the log consumer may stall with entries
	// pending before the queue is reported blocked.
	BlockedAfter time.Duration `mapstructure:"blocked_after" validate:"gt=0"`
}

// PoolConfig contains the background task runner and health monitor settings.
type PoolConfig struct {
	Workers           int           `mapstructure:"workers"            validate:"required,gte=1"`
	QueueSize         int           `mapstructure:"queue_size"         validate:"required,gte=1"`
	TaskTimeout       time.Duration `mapstructure:"task_timeout"       validate:"gt=0"`
	HealthInterval    time.Duration `mapstructure:"health_interval"    validate:"gt=0"`
	OverloadThreshold float64       `mapstructure:"overload_threshold" validate:"gt=0,lte=1"`
	LongRunningAfter  time.Duration `mapstructure:"long_running_after" validate:"gt=0"`
	HandleRetention   time.Duration `mapstructure:"handle_retention"   validate:"gt=0"`
}

// HardwareConfig contains the hardware profile store settings.
type HardwareConfig struct {
	ProfilePath  string        `mapstructure:"profile_path"  validate:"required"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" validate:"gt=0"`
}

// I18nConfig contains the translation catalog settings.
type I18nConfig struct {
	Dir             string `mapstructure:"dir"              validate:"required"`
	DefaultLanguage string `mapstructure:"default_language" validate:"required"`
}
