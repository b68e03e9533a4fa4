// Package commands implements the scriptbox subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/scriptbox/internal/config"
	"github.com/leapstack-labs/scriptbox/internal/registry"
	"github.com/leapstack-labs/scriptbox/pkg/core"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded config in the command context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFromContext retrieves the loaded config, or a default one.
func ConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	return cfg
}

// WithLogger stores the logger in the command context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFromContext retrieves the logger, or a discard logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.New(slog.DiscardHandler)
}

// buildInvoker constructs the Tool Invocation Registry from config: an MCP
// client when an endpoint is configured, otherwise an empty in-process
// registry. The returned closer is non-nil for connected registries.
func buildInvoker(ctx context.Context, cfg *config.Config, logger *slog.Logger) (core.Invoker, func() error, error) {
	if cfg.Registry.Endpoint == "" {
		return registry.NewStatic(), nil, nil
	}

	mcpReg, err := registry.ConnectMCP(ctx, registry.MCPConfig{
		Endpoint:  cfg.Registry.Endpoint,
		Transport: cfg.Registry.Transport,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return mcpReg, mcpReg.Close, nil
}
