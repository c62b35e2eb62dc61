package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the application logger interface.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger

	// Slog returns the underlying slog.Logger for components that take one.
	Slog() *slog.Logger
}

// Config holds logger configuration.
type Config struct {
	// Level is debug, info, warn or error.
	Level string
	// Format is json (default) or text; console is accepted as text.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
}

// levels maps accepted level names to slog levels.
var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// level is shared by every logger built with New so SetLevel applies
// process-wide.
var level = new(slog.LevelVar)

type handle struct {
	sl *slog.Logger
}

// New builds a logger writing cfg.Format records at cfg.Level and sets the
// process-wide level.
func New(cfg Config) (Logger, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			return redactSensitive(a)
		},
	}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		h = slog.NewJSONHandler(out, opts)
	case "text", "console":
		h = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("logger: unknown format %q", cfg.Format)
	}

	level.Set(parseLevel(cfg.Level))
	return &handle{sl: slog.New(h)}, nil
}

// FromSlog wraps l as a Logger. A nil l yields the default logger.
func FromSlog(l *slog.Logger) Logger {
	if l == nil {
		return Default()
	}
	return &handle{sl: l}
}

// SetLevel changes the level of every logger built with New. Unknown
// names select info.
func SetLevel(name string) {
	level.Set(parseLevel(name))
}

// GetLevel returns the current level name.
func GetLevel() string {
	return strings.ToLower(level.Level().String())
}

// ValidLevel reports whether name is an accepted level.
func ValidLevel(name string) bool {
	_, ok := levels[strings.ToLower(name)]
	return ok
}

func parseLevel(name string) slog.Level {
	if l, ok := levels[strings.ToLower(name)]; ok {
		return l
	}
	return slog.LevelInfo
}

func (h *handle) Debug(msg string, args ...any) { h.sl.Debug(msg, args...) }
func (h *handle) Info(msg string, args ...any)  { h.sl.Info(msg, args...) }
func (h *handle) Warn(msg string, args ...any)  { h.sl.Warn(msg, args...) }
func (h *handle) Error(msg string, args ...any) { h.sl.Error(msg, args...) }

func (h *handle) With(args ...any) Logger {
	return &handle{sl: h.sl.With(args...)}
}

func (h *handle) Slog() *slog.Logger {
	return h.sl
}

var defaultLogger atomic.Pointer[handle]

func init() {
	l, _ := New(Config{})
	defaultLogger.Store(l.(*handle))
}

// SetDefault installs l as the package default and the slog default.
func SetDefault(l Logger) {
	h := &handle{sl: l.Slog()}
	defaultLogger.Store(h)
	slog.SetDefault(h.sl)
}

// Default returns the package default logger.
func Default() Logger {
	return defaultLogger.Load()
}
