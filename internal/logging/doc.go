// Package logging provides file-based logging with rotation for filepick.
// Every CLI command logs to ~/.filepick/logs/filepick.log (DefaultLogPath).
// The --debug flag lowers the level to debug and also copies log lines to
// stderr.
//
// Without --debug, log lines go to the file only, at the project's
// server.log_level (info when unset).
package logging
