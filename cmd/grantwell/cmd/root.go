// Package cmd provides the CLI commands for Grantwell.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/grantwell/grantwell/internal/logging"
	"github.com/grantwell/grantwell/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the grantwell CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grantwell",
		Short: "Hybrid retrieval engine for grant-writing corpora",
		Long: `Grantwell retrieves the most relevant chunks from a corpus of
grant documents, fusing keyword and semantic similarity signals with
recency decay and per-document diversification.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("grantwell version {{.Version}}\n")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.grantwell/logs/")

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		cfg := logging.DefaultConfig()
		cfg.WriteToStderr = false
		if debugMode {
			cfg.Level = "debug"
			cfg.WriteToStderr = true
		}
		logger, cleanup, err := logging.Setup(cfg)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		return nil
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newRetrieveCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
