// Package cmd provides the CLI commands for skysift.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skysift/skysift/internal/logging"
	"github.com/skysift/skysift/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the skysift CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skysift",
		Short: "Semantic fuzzy search over short social text",
		Long: `Skysift searches posts and profiles across a local store and remote
APIs, ranking results with subword-embedding similarity and fuzzy
matching. Queries support quoted phrases, /regex/, date ranges, and
from:/to: author filters.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("skysift version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.skysift/logs/")
	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRun = stopLogging

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging is observability, not a reason to refuse the command.
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}
