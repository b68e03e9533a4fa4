package commands

import (
	"os/signal"
	"syscall"

	"github.com/leapstack-labs/scriptbox/internal/sandbox"
	"github.com/leapstack-labs/scriptbox/internal/server"
	"github.com/leapstack-labs/scriptbox/internal/session"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP execution API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := ConfigFromContext(ctx)
			logger := LoggerFromContext(ctx)

			invoker, closeInvoker, err := buildInvoker(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if closeInvoker != nil {
				defer func() { _ = closeInvoker() }()
			}

			engine := sandbox.New(sandbox.Config{
				Invoker:  invoker,
				Sessions: session.NewFileStore(cfg.SessionDir, logger),
				Logger:   logger,
			})

			srv := server.New(server.Config{
				Engine:  engine,
				Invoker: invoker,
				Host:    cfg.Server.Host,
				Port:    cfg.Server.Port,
				Logger:  logger,
			})
			return srv.Serve(ctx)
		},
	}
	return cmd
}
