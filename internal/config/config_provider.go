package config

// ProviderTransport selects how deskmuxd dials the LLM provider process.
type ProviderTransport string

const (
	ProviderTransportStdio     ProviderTransport = "stdio"
	ProviderTransportWebsocket ProviderTransport = "websocket"
)

// ProviderConfig configures the Provider warm pool's dialer.
type ProviderConfig struct {
	Transport ProviderTransport `yaml:"transport"`

	// Command/Args apply when Transport is stdio.
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`

	// URL applies when Transport is websocket.
	URL string `yaml:"url"`

	// WarmPoolSize is the number of pre-dialed handles kept ready.
	WarmPoolSize int `yaml:"warm_pool_size"`
}

func defaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Transport:    ProviderTransportStdio,
		Command:      "deskmux-agent",
		WarmPoolSize: 2,
	}
}
