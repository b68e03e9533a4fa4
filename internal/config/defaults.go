package config

// Default configuration values.
const (
	DefaultSessionDir = ".scriptbox/sessions"
	DefaultTransport  = "http"
	DefaultHost       = "127.0.0.1"
	DefaultPort       = 8300
)

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.SessionDir == "" {
		c.SessionDir = DefaultSessionDir
	}
	if c.Registry.Transport == "" {
		c.Registry.Transport = DefaultTransport
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
}
