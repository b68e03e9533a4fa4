package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultSessionDir, cfg.SessionDir)
	assert.Equal(t, DefaultTransport, cfg.Registry.Transport)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Empty(t, cfg.Registry.Endpoint)
	assert.False(t, cfg.Verbose)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scriptbox.yaml")
	content := `
session_dir: /var/lib/scriptbox
registry:
  endpoint: http://localhost:9000/mcp
  transport: sse
server:
  port: 9100
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/scriptbox", cfg.SessionDir)
	assert.Equal(t, "http://localhost:9000/mcp", cfg.Registry.Endpoint)
	assert.Equal(t, "sse", cfg.Registry.Transport)
	assert.Equal(t, 9100, cfg.Server.Port)
	// Unset file keys keep their defaults.
	assert.Equal(t, DefaultHost, cfg.Server.Host)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scriptbox.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session_dir: /from/file\n"), 0o644))

	t.Setenv("SCRIPTBOX_SESSION_DIR", "/from/env")
	t.Setenv("SCRIPTBOX_REGISTRY__ENDPOINT", "http://env:9000/mcp")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.SessionDir)
	assert.Equal(t, "http://env:9000/mcp", cfg.Registry.Endpoint)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("SCRIPTBOX_SESSION_DIR", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("session-dir", "", "")
	flags.Int("port", 0, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{
		"--session-dir=/from/flag",
		"--port=9200",
		"--unrelated=ignored",
	}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "/from/flag", cfg.SessionDir)
	assert.Equal(t, 9200, cfg.Server.Port)
}

func TestLoad_UnchangedFlagsDoNotOverride(t *testing.T) {
	t.Setenv("SCRIPTBOX_SESSION_DIR", "/from/env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("session-dir", "/flag/default", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.SessionDir)
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultSessionDir, cfg.SessionDir)
	assert.Equal(t, DefaultTransport, cfg.Registry.Transport)
	assert.Equal(t, DefaultHost, cfg.Server.Host)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
}
