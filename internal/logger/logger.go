package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

var levelVar = new(slog.LevelVar)

var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))

// SetLevel configures the global log level (debug, info, warn, error).
func SetLevel(lvl string) {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn", "warning":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
}

// Setup replaces L with a handler for the given format. "text" writes
// colored lines to stderr for interactive use; anything else keeps JSON on stdout.
func Setup(lvl, format string) {
	SetLevel(lvl)
	L = New(format, os.Stdout, os.Stderr)
	slog.SetDefault(L)
}

// New builds a logger sharing the global level.
func New(format string, stdout, stderr io.Writer) *slog.Logger {
	if strings.EqualFold(format, "text") {
		return slog.New(tint.NewHandler(stderr, &tint.Options{Level: levelVar, TimeFormat: "15:04:05.000"}))
	}
	return slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{Level: levelVar}))
}
