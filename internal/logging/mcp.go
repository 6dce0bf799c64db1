package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for the `filepick serve` command
// (internal/mcp.Server), which speaks JSON-RPC over stdio:
//   - Logs ONLY to file (never stdout/stderr)
//   - Uses JSON format for structured logs
//   - Always enables debug level, since there is no interactive console
//     to fall back to if something goes wrong mid-session
//
// cmd/filepick/cmd/serve.go calls this instead of the CLI's shared
// startLogging, which only suppresses stderr when --debug is absent -
// not the unconditional guarantee a stdio transport needs.
func SetupMCPMode() (func(), error) {
	cfg := Config{
		Level:         "debug", // Always debug in MCP mode for full diagnostics
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // CRITICAL: Never write to stderr in MCP mode
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	// Log that MCP mode logging is initialized
	slog.Info("MCP mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}

// SetupMCPModeWithLevel is SetupMCPMode with an operator-chosen level,
// wired to serve's --log-level flag for turning down verbosity without
// giving up the file-only write discipline.
func SetupMCPModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // CRITICAL: Never write to stderr in MCP mode
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
