// Package config provides configuration loading for scriptbox. Settings are
// layered from defaults, an optional scriptbox.yaml file, SCRIPTBOX_
// environment variables, and CLI flags, in increasing precedence.
package config

// Config holds the full scriptbox configuration.
type Config struct {
	// SessionDir is where per-session variable records are persisted.
	SessionDir string `koanf:"session_dir"`

	// Registry configures the external tool provider.
	Registry RegistryConfig `koanf:"registry"`

	// Server configures the HTTP API.
	Server ServerConfig `koanf:"server"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`
}

// RegistryConfig holds Tool Invocation Registry settings. An empty endpoint
// means no external registry: the sandbox runs with no tool proxies.
type RegistryConfig struct {
	// Endpoint is the MCP server URL.
	Endpoint string `koanf:"endpoint"`

	// Transport is the MCP client transport: "http" or "sse".
	Transport string `koanf:"transport"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}
