package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names searched in the working directory.
const (
	ConfigFileName    = "scriptbox.yaml"
	ConfigFileNameAlt = "scriptbox.yml"
)

// flagKeys maps CLI flag names to config keys. Only listed flags feed the
// configuration; everything else on the flag set is command-local.
var flagKeys = map[string]string{
	"session-dir":        "session_dir",
	"registry-endpoint":  "registry.endpoint",
	"registry-transport": "registry.transport",
	"host":               "server.host",
	"port":               "server.port",
	"verbose":            "verbose",
}

// findConfigFile picks the config file to use.
// Priority: explicit path > scriptbox.yaml > scriptbox.yml.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// Load loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"session_dir":        DefaultSessionDir,
		"registry.transport": DefaultTransport,
		"server.host":        DefaultHost,
		"server.port":        DefaultPort,
		"verbose":            false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configFile := findConfigFile(cfgFile); configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	}

	// Double underscore separates nesting levels:
	// SCRIPTBOX_REGISTRY__ENDPOINT -> registry.endpoint
	// SCRIPTBOX_SESSION_DIR        -> session_dir
	if err := k.Load(env.Provider("SCRIPTBOX_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "SCRIPTBOX_"))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}
