// Package logging configures the process-wide slog logger and carries
// job and client IDs through context so pipeline stages log with the
// right correlation fields.
//
// Output format follows LOG_FORMAT (text/json); unset, it is text on a
// TTY and JSON otherwise. LOG_LEVEL picks the minimum level.
package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New builds a logger from the environment.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(os.Getenv("LOG_LEVEL")),
		AddSource:   true,
		ReplaceAttr: trimSource(),
	}

	format := os.Getenv("LOG_FORMAT")
	if format == "text" || (format == "" && isTerminal(os.Stdout)) {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// SetDefault builds a logger and installs it as the slog default.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// trimSource rewrites source attrs to paths relative to the working
// directory. Absolute build paths are noise in every log line.
func trimSource() func(groups []string, a slog.Attr) slog.Attr {
	wd, _ := os.Getwd()

	return func(groups []string, a slog.Attr) slog.Attr {
		if a.Key != slog.SourceKey {
			return a
		}
		src, ok := a.Value.Any().(*slog.Source)
		if !ok {
			return a
		}
		if rel, err := filepath.Rel(wd, src.File); err == nil {
			src.File = rel
		} else {
			src.File = filepath.Base(src.File)
		}
		return a
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func isTerminal(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
