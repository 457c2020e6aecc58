package main

import (
	"context"

	"github.com/elightspay/paymentcore/pkg/log"
)

// Logger extends the structured logger with a convenience constructor for
// naming a module-scoped child, the way every long-lived component
// (ledger store, rail adapters, reconciliation loop) tags its own logs.
type Logger interface {
	log.Logger
	NewSystem(name string) Logger
}

type systemLogger struct {
	log.Logger
}

// NewSystemLogger wraps a base structured logger so that NewSystem can be
// called on it repeatedly to derive per-component child loggers.
func NewSystemLogger(base log.Logger) Logger {
	if base == nil {
		base = log.NewNoopLogger()
	}
	return &systemLogger{Logger: base}
}

func (s *systemLogger) NewSystem(name string) Logger {
	return &systemLogger{Logger: s.Logger.WithName(name)}
}

// SetContextLogger attaches lg to ctx, delegating to pkg/log so the
// OpenTelemetry span-wrapping behavior documented there still applies.
func SetContextLogger(ctx context.Context, lg Logger) context.Context {
	return log.SetContextLogger(ctx, lg)
}

// ContextLogger retrieves the logger stored in ctx, wrapping it back into a
// Logger so NewSystem stays available to callers that pulled it from a
// context passed across a package boundary.
func ContextLogger(ctx context.Context) Logger {
	return NewSystemLogger(log.FromContext(ctx))
}
