package main

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsSink_PublishDeliversToRun(t *testing.T) {
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	sink := NewAnalyticsSink(4, metrics, NewSystemLogger(nil))

	var mu sync.Mutex
	var received []AnalyticsEvent
	done := make(chan struct{})
	go func() {
		sink.Run(func(e AnalyticsEvent) {
			mu.Lock()
			received = append(received, e)
			mu.Unlock()
		})
		close(done)
	}()

	sink.Publish(AnalyticsEvent{Name: AnalyticsTransactionCreated, TransactionID: "tx-1"})
	sink.Close()
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	require.Equal(t, "tx-1", received[0].TransactionID)
}

func TestAnalyticsSink_PublishDropsWhenFull(t *testing.T) {
	metrics := NewMetricsWithRegistry(prometheus.NewRegistry())
	sink := NewAnalyticsSink(1, metrics, NewSystemLogger(nil))
	t.Cleanup(sink.Close)

	sink.Publish(AnalyticsEvent{Name: AnalyticsTransactionCreated})
	sink.Publish(AnalyticsEvent{Name: AnalyticsTransactionFailed})

	require.Eventually(t, func() bool {
		return counterValue(t, metrics.AnalyticsQueueDropped) == 1
	}, time.Second, 10*time.Millisecond)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestAuditEntry_BuildsExpectedRow(t *testing.T) {
	userID := uuid.New()
	errMsg := "boom"
	entry := auditEntry(&userID, "jane.doe", "payment.submit", "transaction", "tx-1", OutcomeSuccess, JSONMap{"rail": "ach"}, &errMsg)

	require.Equal(t, &userID, entry.UserID)
	require.Equal(t, "jane.doe", entry.ActorIdentifier)
	require.Equal(t, "payment.submit", entry.Action)
	require.Equal(t, "transaction", entry.TargetType)
	require.Equal(t, "tx-1", entry.TargetID)
	require.Equal(t, OutcomeSuccess, entry.Outcome)
	require.Equal(t, "ach", entry.Details["rail"])
	require.Equal(t, &errMsg, entry.ErrorMessage)
}
