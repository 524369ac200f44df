package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config controls logger construction.
type Config struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string

	// Format is "json" or "text".
	Format string

	// Writer is the output destination, os.Stdout by default.
	Writer io.Writer
}

// New builds a slog.Logger from cfg. Every record passes through credential
// redaction before it reaches the handler.
func New(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	redactor := NewRedactor()
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redactor.ReplaceAttr,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	case FormatJSON, "":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", cfg.Format)
	}

	return slog.New(handler), nil
}

// Setup builds a logger from cfg and installs it as the process default so
// plain slog call sites pick it up.
func Setup(cfg Config) (*slog.Logger, error) {
	logger, err := New(cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

// parseLevel maps a level string to a slog.Level.
func parseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}
