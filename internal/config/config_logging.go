package config

// LoggingConfig configures the slog JSON handler. Level is hot-reloadable.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

func defaultLoggingConfig() LoggingConfig {
	return LoggingConfig{Level: "info"}
}
