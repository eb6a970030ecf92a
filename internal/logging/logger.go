// Package logging defines the minimal structured-logging interface used across
// the server. The variadic args are key–value pairs, e.g.:
//
//	log.Info(ctx, "starting server", "addr", addr)
//
// Secrets never pass through this interface: the master key, unwrapped user
// keys and plaintext credentials are not valid log arguments anywhere.
package logging

import "context"

// Logger is a context-aware, structured logger.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
