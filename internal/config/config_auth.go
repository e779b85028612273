package config

// AuthConfig configures the connection-handshake JWT validation.
type AuthConfig struct {
	// JWTSecretEnv names the environment variable holding the HMAC secret;
	// kept out of the YAML file itself.
	JWTSecretEnv string `yaml:"jwt_secret_env"`
	Required     bool   `yaml:"required"`
}

func defaultAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecretEnv: "DESKMUX_JWT_SECRET",
		Required:     true,
	}
}
