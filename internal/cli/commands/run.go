package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/leapstack-labs/scriptbox/internal/sandbox"
	"github.com/leapstack-labs/scriptbox/internal/session"
	"github.com/spf13/cobra"
)

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "run [script-file]",
		Short: "Execute a script file (or stdin with \"-\") in the sandbox",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := ConfigFromContext(ctx)
			logger := LoggerFromContext(ctx)

			var src []byte
			var err error
			if len(args) == 0 || args[0] == "-" {
				src, err = io.ReadAll(cmd.InOrStdin())
			} else {
				src, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read script: %w", err)
			}

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

			resp := engine.Execute(ctx, sandbox.Request{
				Script:    string(src),
				SessionID: sessionID,
			})

			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode response: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if resp.Status != sandbox.StatusSuccess {
				return fmt.Errorf("script failed: %s", resp.ErrorKind)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "Session id scoping persisted variables")
	return cmd
}
