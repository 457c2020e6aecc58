package main

import (
	"github.com/google/uuid"
)

// AnalyticsEvent is a fire-and-forget signal distinct from the append-only
// AuditLog row: the audit row is written inside the mutating DB
// transaction, while an AnalyticsEvent is queued for an external sink and
// may be silently dropped under backpressure (§4.8, §5).
type AnalyticsEvent struct {
	Name          string
	TransactionID string
	Rail          string
	Detail        JSONMap
}

const (
	AnalyticsTransactionCreated   = "TRANSACTION_CREATED"
	AnalyticsTransactionCompleted = "TRANSACTION_COMPLETED"
	AnalyticsTransactionFailed    = "TRANSACTION_FAILED"
)

// AnalyticsSink is a bounded, non-blocking queue to an external analytics
// collector. Publish never blocks the caller: on a full queue the event is
// dropped and AnalyticsQueueDropped is incremented, per §5's backpressure
// rule.
type AnalyticsSink struct {
	events  chan AnalyticsEvent
	metrics *Metrics
	logger  Logger
}

func NewAnalyticsSink(bufferSize int, metrics *Metrics, logger Logger) *AnalyticsSink {
	return &AnalyticsSink{
		events:  make(chan AnalyticsEvent, bufferSize),
		metrics: metrics,
		logger:  logger.NewSystem("analytics"),
	}
}

// Publish enqueues an event without blocking; a full buffer drops it.
func (s *AnalyticsSink) Publish(event AnalyticsEvent) {
	select {
	case s.events <- event:
	default:
		s.metrics.AnalyticsQueueDropped.Inc()
		s.logger.Warn("analytics queue full, dropping event", "event", event.Name, "transaction_id", event.TransactionID)
	}
}

// Run drains the queue until it is closed, handing each event to sink.
// Intended to be launched with `go sink.Run(externalSink)` at startup.
func (s *AnalyticsSink) Run(deliver func(AnalyticsEvent)) {
	for event := range s.events {
		deliver(event)
	}
}

func (s *AnalyticsSink) Close() {
	close(s.events)
}

// auditEntry builds an AuditLog row the way log_db_audit_event does,
// keyed by actor identifier (a username, "SYSTEM", or an API-key id)
// rather than a bare user ID.
func auditEntry(userID *uuid.UUID, actorIdentifier, action, targetType, targetID string, outcome AuditOutcome, details JSONMap, errMsg *string) *AuditLog {
	return &AuditLog{
		UserID:          userID,
		ActorIdentifier: actorIdentifier,
		Action:          action,
		TargetType:      targetType,
		TargetID:        targetID,
		Outcome:         outcome,
		Details:         details,
		ErrorMessage:    errMsg,
	}
}
