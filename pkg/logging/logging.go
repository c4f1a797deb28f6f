// Package logging configures the process-wide log/slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging configuration options.
type Config struct {
	// Level is the minimum log level to output.
	Level slog.Level
	// JSON selects the JSON handler instead of text.
	JSON bool
	// Output is the writer to write logs to. Defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig reads LOG_LEVEL (DEBUG, INFO, WARN, ERROR; default INFO)
// and LOG_FORMAT (text or json; default text) from the environment.
func DefaultConfig() Config {
	return FromSettings(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

// FromSettings builds a configuration from LOG_LEVEL and LOG_FORMAT style
// values. Format "json" selects the JSON handler; anything else is text.
func FromSettings(level, format string) Config {
	return Config{
		Level:  parseLogLevel(level),
		JSON:   strings.EqualFold(strings.TrimSpace(format), "json"),
		Output: os.Stderr,
	}
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a logger built from cfg as the slog default and returns it.
func Setup(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	logger := slog.New(handler).With("app", "ledgerview")
	slog.SetDefault(logger)
	return logger
}

// Component returns a child logger tagged with a component name.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}
