// Package cli provides the command-line interface for scriptbox.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/leapstack-labs/scriptbox/internal/cli/commands"
	"github.com/leapstack-labs/scriptbox/internal/config"
	"github.com/spf13/cobra"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scriptbox",
		Short: "scriptbox - sandboxed script execution engine",
		Long: `scriptbox executes generated script fragments inside a capability-restricted
Starlark sandbox: scripts see only an allow-listed namespace of library
modules and tool proxies, run under a complexity-derived timeout, and
always produce a classified result envelope.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			// A .env file in the working directory supplies SCRIPTBOX_ vars.
			_ = godotenv.Load()

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))

			ctx := commands.WithConfig(cmd.Context(), cfg)
			ctx = commands.WithLogger(ctx, logger)
			cmd.SetContext(ctx)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./scriptbox.yaml)")
	rootCmd.PersistentFlags().String("session-dir", "", "Directory for persisted session variables")
	rootCmd.PersistentFlags().String("registry-endpoint", "", "MCP tool registry endpoint URL")
	rootCmd.PersistentFlags().String("registry-transport", "", "MCP transport: http or sse")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(
		commands.NewRunCmd(),
		commands.NewServeCmd(),
		commands.NewToolsCmd(),
		commands.NewVersionCmd(Version, BuildDate, GitCommit),
	)

	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
