package config

// ServerConfig carries structural, restart-required settings.
type ServerConfig struct {
	BindAddr       string `yaml:"bind_addr"`
	MetricsAddr    string `yaml:"metrics_addr"`
	SessionLogDir  string `yaml:"session_log_dir"`
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		BindAddr:               ":8080",
		MetricsAddr:            ":9090",
		SessionLogDir:          "./sessions",
		ShutdownTimeoutSeconds: 30,
	}
}
