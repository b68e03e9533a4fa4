package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewToolsCmd creates the tools command.
func NewToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List tools available from the configured registry",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := ConfigFromContext(ctx)
			logger := LoggerFromContext(ctx)

			invoker, closeInvoker, err := buildInvoker(ctx, cfg, logger)
			if err != nil {
				return err
			}
			if closeInvoker != nil {
				defer func() { _ = closeInvoker() }()
			}

			tools, err := invoker.Tools(ctx)
			if err != nil {
				return fmt.Errorf("failed to list tools: %w", err)
			}
			if len(tools) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tools registered.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Tool", "Description"})
			for _, tool := range tools {
				t.AppendRow(table.Row{tool.Name, tool.Description})
			}
			t.Render()
			return nil
		},
	}
	return cmd
}
