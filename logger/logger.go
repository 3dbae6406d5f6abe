// Package logger configures the process-wide zerolog logger and carries
// request-scoped loggers through contexts.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLevel maps a LOG_LEVEL value onto a zerolog level. Unknown values
// fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Init sets the global level and output. Pretty output uses the console
// writer and is meant for development; otherwise lines are JSON.
func Init(level string, pretty bool) {
	zerolog.SetGlobalLevel(ParseLevel(level))

	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
}

// WithRequestID returns a context whose logger tags every line with id.
func WithRequestID(ctx context.Context, id string) context.Context {
	l := FromContext(ctx).With().Str("request_id", id).Logger()
	return l.WithContext(ctx)
}

// WithUserID adds the authenticated user to the context logger.
func WithUserID(ctx context.Context, userID string) context.Context {
	l := FromContext(ctx).With().Str("user_id", userID).Logger()
	return l.WithContext(ctx)
}

// FromContext returns the logger stored in ctx, or the global logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
