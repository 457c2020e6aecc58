package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

// Metrics contains every Prometheus metric the orchestrator exposes, built
// with the same promauto.With(registry) factory idiom the teacher's
// channel/app-session metrics used — only the domain changed.
type Metrics struct {
	PaymentsInitiated *prometheus.CounterVec
	PaymentsCompleted *prometheus.CounterVec
	PaymentsFailed    *prometheus.CounterVec
	PaymentsReversed  *prometheus.CounterVec

	RailSubmitLatency *prometheus.HistogramVec
	RailRetries       *prometheus.CounterVec

	WebhookReceived *prometheus.CounterVec
	WebhookRejected *prometheus.CounterVec

	WalletBalanceTotal *prometheus.GaugeVec
	TransactionsByStatus *prometheus.GaugeVec

	AnalyticsQueueDropped prometheus.Counter
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		PaymentsInitiated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paymentcore_payments_initiated_total",
			Help: "Total number of payments handed to process_outbound, by rail",
		}, []string{"rail"}),
		PaymentsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paymentcore_payments_completed_total",
			Help: "Total number of payments that reached a settled/completed status, by rail",
		}, []string{"rail"}),
		PaymentsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paymentcore_payments_failed_total",
			Help: "Total number of payments that reached a failed/returned/chargeback status, by rail",
		}, []string{"rail", "reason"}),
		PaymentsReversed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paymentcore_payments_reversed_total",
			Help: "Total number of compensating re-credits issued after a failure, by rail",
		}, []string{"rail"}),
		RailSubmitLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "paymentcore_rail_submit_latency_seconds",
			Help:    "Latency of RailAdapter.Submit calls, by rail",
			Buckets: prometheus.DefBuckets,
		}, []string{"rail"}),
		RailRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paymentcore_rail_retries_total",
			Help: "Total number of Retryable outcomes observed from a rail adapter",
		}, []string{"rail"}),
		WebhookReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paymentcore_webhook_received_total",
			Help: "Total number of webhook deliveries accepted for processing, by provider",
		}, []string{"provider"}),
		WebhookRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "paymentcore_webhook_rejected_total",
			Help: "Total number of webhook deliveries rejected (bad signature or malformed payload), by provider",
		}, []string{"provider", "reason"}),
		WalletBalanceTotal: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "paymentcore_wallet_balance_total",
			Help: "Sum of wallet balances, by currency code",
		}, []string{"currency_code"}),
		TransactionsByStatus: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "paymentcore_transactions_by_status",
			Help: "Number of transactions currently in each status",
		}, []string{"status"}),
		AnalyticsQueueDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "paymentcore_analytics_queue_dropped_total",
			Help: "Total number of analytics events dropped because the bounded queue was full",
		}),
	}
}

// RecordMetricsPeriodically refreshes both DB-derived gauges (transactions
// by status, wallet balance by currency) on a single 15-second ticker.
func (m *Metrics) RecordMetricsPeriodically(db *gorm.DB, logger Logger) {
	logger = logger.NewSystem("metrics")
	dbTicker := time.NewTicker(15 * time.Second)
	defer dbTicker.Stop()

	for range dbTicker.C {
		if err := m.updateTransactionStatusGauge(db); err != nil {
			logger.Warn("failed to update transaction status gauge", "error", err)
		}
		if err := m.updateWalletBalanceGauge(db); err != nil {
			logger.Warn("failed to update wallet balance gauge", "error", err)
		}
	}
}

func (m *Metrics) updateTransactionStatusGauge(db *gorm.DB) error {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	if err := db.Model(&Transaction{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}

	m.TransactionsByStatus.Reset()
	for _, r := range rows {
		m.TransactionsByStatus.WithLabelValues(r.Status).Set(float64(r.Count))
	}
	return nil
}

func (m *Metrics) updateWalletBalanceGauge(db *gorm.DB) error {
	type currencyTotal struct {
		CurrencyCode string
		Total        float64
	}

	var rows []currencyTotal
	if err := db.Model(&Wallet{}).
		Select("currency_code, SUM(balance) as total").
		Group("currency_code").
		Scan(&rows).Error; err != nil {
		return err
	}

	m.WalletBalanceTotal.Reset()
	for _, r := range rows {
		m.WalletBalanceTotal.WithLabelValues(r.CurrencyCode).Set(r.Total)
	}
	return nil
}
