package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const keyLogLevel = "LOG_LEVEL"

type Logger interface {
	Info(msg string, keyvals ...interface{})

	Warn(msg string, keyvals ...interface{})

	Error(msg string, keyvals ...interface{})

	Debug(msg string, keyvals ...interface{})
}

func New() Logger {
	return NewWithWriter(os.Stderr)
}

// NewWithWriter is used by the interactive client, which keeps stderr for logs
// separate from the prompt.
func NewWithWriter(w io.Writer) Logger {
	opts := &slog.HandlerOptions{
		Level:     levelFromEnv(), // minimum log level
		AddSource: true,           // include file + line number
	}
	handler := slog.NewJSONHandler(w, opts)
	return slog.New(handler)
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv(keyLogLevel)) {
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
