package main

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/elightspay/paymentcore"

// Tracer returns the package-wide tracer. The processor opens spans from it
// around ProcessOutbound, each rail Submit call, submission reconciliation
// and UpdateStatus; rail Query calls and LedgerStore methods open none.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan opens a span for a suspension point (external call or DB
// transaction boundary) and returns a finish function that records the
// error, if any, and ends the span. Use as:
//
//	ctx, finish := StartSpan(ctx, "rail.ach.submit", attribute.String("transaction_id", id))
//	defer finish(&err)
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(errp *error)) {
	ctx, span := Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, (*errp).Error())
		}
		span.End()
	}
}
