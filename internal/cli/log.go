package cli

import (
	"log/slog"
	"strings"
)

// logLevel picks the log level from the log_level setting (which
// ABIPS_LOG_LEVEL overrides); each -v lowers it one step.
func logLevel(verbosity int, configured string) slog.Level {
	var level slog.Level
	switch strings.ToLower(configured) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning", "":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		slog.Warn("Invalid log level, using WARN", "value", configured)
		level = slog.LevelWarn
	}

	level -= slog.Level(4 * verbosity)
	if level < slog.LevelDebug {
		level = slog.LevelDebug
	}
	return level
}
