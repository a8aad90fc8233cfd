package log

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger *slog.Logger
	level  = new(slog.LevelVar)
	mu     sync.RWMutex
)

// Output receives log records. Stdout is reserved for command output.
var Output io.Writer = os.Stderr

// ParseLogLevel converts a string log level to a slog.Level.
// Valid values are "debug", "info", "warn", "error"; anything else is info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func newHandler(format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.NewTextHandler(Output, opts)
	}
	return slog.NewJSONHandler(Output, opts)
}

// InitLog replaces the logger with one writing format ("json" or "text") to
// Output at logLevel.
func InitLog(logLevel, format string) {
	mu.Lock()
	defer mu.Unlock()

	level.Set(ParseLogLevel(logLevel))
	logger = slog.New(newHandler(format))
}

// SetLevel changes the level of the current logger, including loggers
// derived from it with With.
func SetLevel(logLevel string) {
	level.Set(ParseLogLevel(logLevel))
}

// Level returns the current level.
func Level() slog.Level {
	return level.Level()
}

// GetLog returns the configured logger, creating a JSON logger at info level
// if InitLog has not been called yet.
func GetLog() *slog.Logger {
	mu.RLock()
	if logger != nil {
		defer mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		logger = slog.New(newHandler("json"))
	}
	return logger
}

// With returns a logger carrying the given attributes, e.g. a component name.
func With(args ...any) *slog.Logger { return GetLog().With(args...) }

func Debug(msg string, args ...any) { GetLog().Debug(msg, args...) }

func Info(msg string, args ...any) { GetLog().Info(msg, args...) }

func Warn(msg string, args ...any) { GetLog().Warn(msg, args...) }

func Error(msg string, args ...any) { GetLog().Error(msg, args...) }

// Errorf logs a formatted message at error level and returns it as an error.
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	Error(err.Error())
	return err
}
