package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the process-wide logger: JSON records on stdout, level
// taken from LOG_LEVEL. Called before config loads so startup failures
// are already structured.
func Setup() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: LevelFromEnv(),
	})))
}

// LevelFromEnv reads LOG_LEVEL (debug, info, warn, error); anything
// unset or unrecognized means info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
