package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fastfind/filepick/internal/config"
	"github.com/fastfind/filepick/internal/coordinator"
	"github.com/fastfind/filepick/internal/logging"
	"github.com/fastfind/filepick/internal/mcp"
	"github.com/fastfind/filepick/internal/profiling"
)

func newServeCmd() *cobra.Command {
	var path string
	var logLevel string
	var cpuProfile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP stdio server over the indexed tree",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// The stdio transport reserves stdout exclusively for
			// JSON-RPC; root.go's shared startLogging only disables
			// stderr when --debug is absent, which isn't the
			// protocol-safety guarantee serve needs. Force
			// MCP-safe file-only logging instead.
			var mcpCleanup func()
			var err error
			if logLevel != "" {
				mcpCleanup, err = logging.SetupMCPModeWithLevel(logging.ServerLogLevel(logLevel))
			} else {
				mcpCleanup, err = logging.SetupMCPMode()
			}
			if err != nil {
				return fmt.Errorf("failed to set up MCP-safe logging: %w", err)
			}
			if loggingCleanup != nil {
				loggingCleanup()
			}
			loggingCleanup = mcpCleanup
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), path, cpuProfile)
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "project root (defaults to the nearest detected root)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "override the MCP server's log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&cpuProfile, "cpu-profile", "", "write a CPU profile to this path for the lifetime of the server")
	return cmd
}

func runServe(ctx context.Context, path, cpuProfile string) error {
	base, err := resolveBase(path)
	if err != nil {
		return fmt.Errorf("resolve base path: %w", err)
	}

	cfg, err := config.Load(base)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Server.Transport != "stdio" {
		return fmt.Errorf("unsupported server.transport %q: only stdio is available", cfg.Server.Transport)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cpuProfile != "" {
		stopProfile, err := profiling.NewProfiler().StartCPU(cpuProfile)
		if err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer stopProfile()
	}

	c := coordinator.Get(cfg, slog.Default())
	if err := c.InitDB(dataDirFor(base), true); err != nil {
		return err
	}
	if err := c.InitFilePicker(ctx, base); err != nil {
		return err
	}
	defer c.CleanupFilePicker()

	server := mcp.NewServer(c, slog.Default())
	return server.Serve(ctx)
}
