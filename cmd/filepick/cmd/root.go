// Package cmd provides the filepick CLI commands.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fastfind/filepick/internal/config"
	amerrors "github.com/fastfind/filepick/internal/errors"
	"github.com/fastfind/filepick/internal/logging"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd builds the filepick root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filepick",
		Short: "Fuzzy file search engine for interactive pickers",
		Long: `filepick indexes a working directory tree and answers interactive
fuzzy-search queries, blending lexical similarity, frecency, and git
status into a single ranking.`,
		SilenceErrors:      true, // Execute formats and prints errors itself
		SilenceUsage:       true,
		PersistentPreRunE:  startLogging,
		PersistentPostRunE: stopLogging,
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	cmd.AddCommand(newScanCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	return cmd
}

// Execute runs the root command, logging and printing any failure in
// the engine's own error format rather than cobra's default
// "Error: <message>\nUsage: ..." dump.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		slog.Error("command_failed", slog.Any("attrs", amerrors.FormatForLog(err)))
		if debugMode {
			fmt.Fprintln(os.Stderr, amerrors.FormatForUser(err, true))
		} else {
			fmt.Fprint(os.Stderr, amerrors.FormatForCLI(err))
		}
	}
	return err
}

func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	} else if root, err := config.FindProjectRoot("."); err == nil {
		if loaded, err := config.Load(root); err == nil {
			cfg.Level = logging.ServerLogLevel(loaded.Server.LogLevel)
		}
	}
	cfg.WriteToStderr = debugMode
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// resolveBase returns the explicit path if given, else the nearest
// project root from the working directory.
func resolveBase(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	root, err := config.FindProjectRoot(".")
	if err != nil {
		return os.Getwd()
	}
	return root, nil
}

// dataDirFor returns the engine's data directory for base, used for the
// frecency database. Logs are not written here; the default log path is
// logging.DefaultLogPath under the home directory.
func dataDirFor(base string) string {
	return filepath.Join(base, ".filepick")
}
