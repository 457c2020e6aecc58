package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newBTCPayTestServer(t *testing.T, invoiceStatus string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "token test-api-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(btcpayInvoice{
			ID:       "inv-123",
			Amount:   "0.01",
			Currency: "BTC",
			Status:   invoiceStatus,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestBTCPayClient_CreateInvoice(t *testing.T) {
	srv := newBTCPayTestServer(t, "New")
	client := NewBTCPayClient(srv.URL, "test-api-key", "store-1")

	invoice, err := client.CreateInvoice(context.Background(), decimal.RequireFromString("0.01"), "BTC", "order-1")
	require.NoError(t, err)
	require.Equal(t, "inv-123", invoice.ID)
}

func TestBTCPayClient_CreateInvoice_RejectsNonPositiveAmount(t *testing.T) {
	client := NewBTCPayClient("http://unused", "key", "store")
	_, err := client.CreateInvoice(context.Background(), decimal.Zero, "BTC", "order-1")
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
}

func TestBTCPayClient_Do_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"unauthorized"}`))
	}))
	defer srv.Close()

	client := NewBTCPayClient(srv.URL, "bad-key", "store-1")
	_, err := client.GetInvoice(context.Background(), "inv-1")
	require.Error(t, err)
	require.Equal(t, KindExternalService, KindOf(err))
}

func TestCryptoBtcAdapter_Submit_Success(t *testing.T) {
	srv := newBTCPayTestServer(t, "New")
	adapter := NewCryptoBtcAdapter(NewBTCPayClient(srv.URL, "test-api-key", "store-1"), NewSystemLogger(nil))

	req := PaymentRequest{
		TransactionID:     "btc-tx-1",
		Amount:            decimal.RequireFromString("0.01"),
		Currency:          "BTC",
		Type:              TxCryptoBtcSend,
		CryptoDestAddress: "1BvBMSEYstWetqTFn5Au4m4GFg7xJaNVN2",
	}

	outcome, err := adapter.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeAcceptedPendingWebhook, outcome.Kind)
	require.Equal(t, "inv-123", outcome.ExternalRefID)
}

func TestCryptoBtcAdapter_Submit_InvalidAddressRejected(t *testing.T) {
	adapter := NewCryptoBtcAdapter(NewBTCPayClient("http://unused", "key", "store"), NewSystemLogger(nil))

	req := PaymentRequest{
		TransactionID:     "btc-tx-1",
		Amount:            decimal.RequireFromString("0.01"),
		Currency:          "BTC",
		Type:              TxCryptoBtcSend,
		CryptoDestAddress: "not-a-valid-address",
	}

	outcome, err := adapter.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, outcome.Kind)
}

func TestCryptoBtcAdapter_Submit_MissingAddress(t *testing.T) {
	adapter := NewCryptoBtcAdapter(NewBTCPayClient("http://unused", "key", "store"), NewSystemLogger(nil))
	_, err := adapter.Submit(context.Background(), PaymentRequest{Type: TxCryptoBtcSend})
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
}

func TestCryptoBtcAdapter_Query_MapsStatuses(t *testing.T) {
	cases := []struct {
		invoiceStatus string
		want          TransactionStatus
	}{
		{"Settled", StatusCompleted},
		{"Complete", StatusCompleted},
		{"Invalid", StatusFailed},
		{"Expired", StatusExpired},
		{"New", StatusSubmitted},
	}

	for _, tc := range cases {
		t.Run(tc.invoiceStatus, func(t *testing.T) {
			srv := newBTCPayTestServer(t, tc.invoiceStatus)
			adapter := NewCryptoBtcAdapter(NewBTCPayClient(srv.URL, "test-api-key", "store-1"), NewSystemLogger(nil))

			status, err := adapter.Query(context.Background(), "inv-123")
			require.NoError(t, err)
			require.Equal(t, tc.want, status.Status)
		})
	}
}
