// Package logger wraps zerolog with the constructors and context helpers used
// throughout the engine. Services obtain request-scoped loggers via
// FromContext so per-operation fields (request id, vault id) travel with the
// context instead of being rethreaded by hand.
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
)

// Logger embeds zerolog.Logger so the full zerolog API is available while
// letting us add helpers without touching the upstream type.
type Logger struct {
	zerolog.Logger
}

// New constructs a JSON stdout logger for the given role label
// (e.g. "server", "outbox-worker").
func New(role string) *Logger {
	l := zerolog.New(os.Stdout).With().
		Str("role", role).
		Timestamp().
		Logger()
	return &Logger{l}
}

// Nop returns a logger that discards everything. Used by tests and as the
// default when no logger option is supplied.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

type ctxKey struct{}

// WithContext stores the logger in the context.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a Nop logger so call sites
// never nil-check.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
