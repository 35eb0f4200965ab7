package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// New returns the JSON logger used by every tatuticket process.
// local and dev log at debug; everything else at info.
func New(appEnv string) *slog.Logger {
	return NewWithWriter(appEnv, os.Stdout)
}

// NewWithWriter is New with an explicit sink, used by tests and the CLI.
func NewWithWriter(appEnv string, w io.Writer) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(appEnv)})
	return slog.New(h).With("service", "tatuticket")
}

func levelFor(appEnv string) slog.Level {
	switch appEnv {
	case "local", "dev":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}

// Tenant scopes a logger to a tenant and stores it in context.
func Tenant(ctx context.Context, base *slog.Logger, tenantID string) (context.Context, *slog.Logger) {
	if base == nil {
		base = From(ctx)
	}
	l := base.With("tenant_id", tenantID)
	return With(ctx, l), l
}
