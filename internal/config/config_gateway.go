package config

// GatewayConfig configures the WebSocket gateway layer.
type GatewayConfig struct {
	ReadBufferSize  int `yaml:"read_buffer_size"`
	WriteBufferSize int `yaml:"write_buffer_size"`

	// SendBufferSize is the per-connection outgoing buffered channel depth
	// before BroadcastCenter starts reporting a sink as dropped.
	SendBufferSize int `yaml:"send_buffer_size"`

	PingIntervalSeconds int `yaml:"ping_interval_seconds"`
}

func defaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ReadBufferSize:      4096,
		WriteBufferSize:     4096,
		SendBufferSize:      64,
		PingIntervalSeconds: 15,
	}
}
