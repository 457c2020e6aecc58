package main

import (
	"testing"

	"github.com/google/uuid"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMetricsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &Wallet{}, &Transaction{}, &AuditLog{}))
	return db
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func TestNewMetricsWithRegistry_RegistersAllCollectors(t *testing.T) {
	m := NewMetricsWithRegistry(prometheus.NewRegistry())
	require.NotNil(t, m.PaymentsInitiated)
	require.NotNil(t, m.WebhookReceived)
	require.NotNil(t, m.AnalyticsQueueDropped)
}

func TestMetrics_UpdateTransactionStatusGauge(t *testing.T) {
	db := setupMetricsTestDB(t)
	m := NewMetricsWithRegistry(prometheus.NewRegistry())
	ledger := NewLedgerStore(db)

	walletID := uuid.New()
	_, err := ledger.InsertTransaction(&Transaction{
		Type:           TxAchCredit,
		Status:         StatusPending,
		Amount:         decimal.RequireFromString("10.00"),
		CurrencyCode:   "USD",
		CreditWalletID: &walletID,
	})
	require.NoError(t, err)

	require.NoError(t, m.updateTransactionStatusGauge(db))
	require.Equal(t, float64(1), gaugeValue(t, m.TransactionsByStatus.WithLabelValues(string(StatusPending))))
}

func TestMetrics_UpdateWalletBalanceGauge(t *testing.T) {
	db := setupMetricsTestDB(t)
	m := NewMetricsWithRegistry(prometheus.NewRegistry())

	wallet := Wallet{
		UserID:       uuid.New(),
		WalletType:   WalletFiatUSD,
		CurrencyCode: "USD",
		Balance:      decimal.RequireFromString("250.00"),
		Status:       WalletActive,
	}
	require.NoError(t, db.Create(&wallet).Error)

	require.NoError(t, m.updateWalletBalanceGauge(db))
	require.Equal(t, 250.0, gaugeValue(t, m.WalletBalanceTotal.WithLabelValues("USD")))
}
