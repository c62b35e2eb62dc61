package logger

import (
	"bytes"
	"context"
	"io"
	"log"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// hclogAdapter adapts slog.Logger to the hashicorp/go-hclog.Logger interface.
type hclogAdapter struct {
	logger *slog.Logger
	name   string
	args   []any
}

// HCLog returns an hclog.Logger writing through l.
func HCLog(l *slog.Logger) hclog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return &hclogAdapter{logger: l}
}

func toSlogLevel(level hclog.Level) slog.Level {
	switch level {
	case hclog.Trace, hclog.Debug:
		return slog.LevelDebug
	case hclog.Warn:
		return slog.LevelWarn
	case hclog.Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *hclogAdapter) Log(level hclog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), toSlogLevel(level), msg, args...)
}

func (l *hclogAdapter) Trace(msg string, args ...any) { l.Log(hclog.Trace, msg, args...) }
func (l *hclogAdapter) Debug(msg string, args ...any) { l.Log(hclog.Debug, msg, args...) }
func (l *hclogAdapter) Info(msg string, args ...any)  { l.Log(hclog.Info, msg, args...) }
func (l *hclogAdapter) Warn(msg string, args ...any)  { l.Log(hclog.Warn, msg, args...) }
func (l *hclogAdapter) Error(msg string, args ...any) { l.Log(hclog.Error, msg, args...) }

func (l *hclogAdapter) enabled(level hclog.Level) bool {
	return l.logger.Enabled(context.Background(), toSlogLevel(level))
}

func (l *hclogAdapter) IsTrace() bool { return l.enabled(hclog.Trace) }
func (l *hclogAdapter) IsDebug() bool { return l.enabled(hclog.Debug) }
func (l *hclogAdapter) IsInfo() bool  { return l.enabled(hclog.Info) }
func (l *hclogAdapter) IsWarn() bool  { return l.enabled(hclog.Warn) }
func (l *hclogAdapter) IsError() bool { return l.enabled(hclog.Error) }

func (l *hclogAdapter) ImpliedArgs() []any { return l.args }

func (l *hclogAdapter) With(args ...any) hclog.Logger {
	implied := make([]any, 0, len(l.args)+len(args))
	implied = append(implied, l.args...)
	implied = append(implied, args...)
	return &hclogAdapter{logger: l.logger.With(args...), name: l.name, args: implied}
}

func (l *hclogAdapter) Name() string { return l.name }

func (l *hclogAdapter) Named(name string) hclog.Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return l.ResetNamed(name)
}

func (l *hclogAdapter) ResetNamed(name string) hclog.Logger {
	return &hclogAdapter{logger: l.logger.With("component", name), name: name, args: l.args}
}

// SetLevel is a no-op; the level is owned by the slog handler (see SetLevel).
func (l *hclogAdapter) SetLevel(hclog.Level) {}

func (l *hclogAdapter) GetLevel() hclog.Level {
	for _, lv := range []hclog.Level{hclog.Debug, hclog.Info, hclog.Warn, hclog.Error} {
		if l.enabled(lv) {
			return lv
		}
	}
	return hclog.Off
}

func (l *hclogAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(l.StandardWriter(opts), "", 0)
}

func (l *hclogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	if opts == nil {
		opts = &hclog.StandardLoggerOptions{}
	}
	return &stdWriter{log: l, inferLevels: opts.InferLevels, forceLevel: opts.ForceLevel}
}

// stdWriter turns standard library log lines into leveled log records.
type stdWriter struct {
	log         *hclogAdapter
	inferLevels bool
	forceLevel  hclog.Level
}

func (w *stdWriter) Write(p []byte) (int, error) {
	line := string(bytes.TrimRight(p, " \t\n"))

	level := hclog.Info
	switch {
	case w.forceLevel != hclog.NoLevel:
		level = w.forceLevel
		if w.inferLevels {
			_, line = inferLevel(line)
		}
	case w.inferLevels:
		level, line = inferLevel(line)
	}

	w.log.Log(level, line)
	return len(p), nil
}

// inferLevel strips a "[LEVEL]" prefix as written by memberlist.
func inferLevel(line string) (hclog.Level, string) {
	prefixes := []struct {
		tag   string
		level hclog.Level
	}{
		{"[TRACE]", hclog.Trace},
		{"[DEBUG]", hclog.Debug},
		{"[INFO]", hclog.Info},
		{"[WARN]", hclog.Warn},
		{"[ERR]", hclog.Error},
		{"[ERROR]", hclog.Error},
	}

	trimmed := strings.TrimSpace(line)
	for _, p := range prefixes {
		if strings.HasPrefix(trimmed, p.tag) {
			return p.level, strings.TrimSpace(trimmed[len(p.tag):])
		}
	}
	return hclog.Info, trimmed
}
