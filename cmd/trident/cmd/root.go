// Package cmd provides the CLI commands for Trident.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/trident-search/trident/internal/logging"
	"github.com/trident-search/trident/pkg/version"
)

var (
	debugMode      bool
	dataDirFlag    string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the trident CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trident",
		Short: "Hybrid retrieval engine for multimodal knowledge bases",
		Long: `Trident answers search queries by fanning out to graph, vector, and
keyword backends, then merging their scores into one deterministic ranking.

A backend that fails or times out degrades the result set instead of
failing the query.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("trident version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default from config, ~/.trident)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.trident/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupLogging routes slog to the rotating log file so command output
// stays clean. Failures fall back to the default handler.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = false

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		slog.Debug("log_setup_failed", slog.String("error", err.Error()))
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}
