// Package logging provides structured logging for the attendance engine
// using zerolog: console output on a terminal, JSON everywhere else.
//
// Example usage:
//
//	log := logging.New(logging.Config{Level: "debug"})
//	log.Info().Str("date", "10-03-2025").Msg("reconciled")
//
//	ctx := logging.WithLogger(context.Background(), log)
//	logging.FromContext(ctx).Warn().Msg("identity not found")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/warp/attendance-engine/attendance"
)

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum level (trace, debug, info, warn, error).
	Level string
	// Format is auto, console or json. Auto picks console on a terminal.
	Format string
	// Output is stderr, stdout, discard, or a file path.
	Output string
	// Writer overrides Output when set (tests).
	Writer io.Writer
}

// DefaultConfig reads LOG_LEVEL and LOG_FORMAT, falling back to info/auto.
func DefaultConfig() Config {
	return Config{
		Level:  envOr("LOG_LEVEL", "info"),
		Format: envOr("LOG_FORMAT", "auto"),
		Output: "stderr",
	}
}

// New builds a logger from cfg.
func New(cfg Config) zerolog.Logger {
	level := ParseLevel(cfg.Level)
	return zerolog.New(writer(cfg)).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level; unknown names give info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return zerolog.WarnLevel
	case "off", "none":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func writer(cfg Config) io.Writer {
	out := cfg.Writer
	if out == nil {
		switch strings.ToLower(cfg.Output) {
		case "", "stderr":
			out = os.Stderr
		case "stdout":
			out = os.Stdout
		case "discard", "none":
			out = io.Discard
		default:
			f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				out = os.Stderr
			} else {
				out = f
			}
		}
	}

	format := strings.ToLower(cfg.Format)
	if format == "" || format == "auto" {
		format = "json"
		if f, ok := out.(*os.File); ok && isTerminal(f) {
			format = "console"
		}
	}
	if format == "console" || format == "pretty" {
		return zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.Kitchen,
			NoColor:    os.Getenv("NO_COLOR") != "",
		}
	}
	return out
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// =============================================================================
// CONTEXT
// =============================================================================

type ctxKey struct{}

// WithLogger attaches a logger to ctx.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the attached logger, or a disabled one.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

// =============================================================================
// ENGINE ADAPTER
// =============================================================================

// LineLogger routes engine and parser warnings to l at warn level.
func LineLogger(l zerolog.Logger) attendance.LineLogger {
	return func(line string) {
		l.Warn().Msg(line)
	}
}
