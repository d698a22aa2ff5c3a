package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a structured JSON logger using slog. Development builds log at
// debug level so cookie reads and gating decisions show up locally.
func New(environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, environment)
}

// NewWithWriter is New writing to w.
func NewWithWriter(w io.Writer, environment string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: levelFor(environment),
	}
	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler).With("service", "optin")
}

func levelFor(environment string) slog.Level {
	switch strings.ToLower(environment) {
	case "development", "dev", "local":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
