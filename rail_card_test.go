package main

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupCardTestLedger(t *testing.T) *LedgerStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &Wallet{}, &Transaction{}, &AuditLog{}))
	return NewLedgerStore(db)
}

func cardPaymentRequest(intent GatewayIntent, amount string) PaymentRequest {
	return PaymentRequest{
		TransactionID: "card-tx-1",
		Amount:        decimal.RequireFromString(amount),
		Currency:      "USD",
		Type:          TxCardAuthorization,
		CardDetails: &CardDetails{
			CardToken: "tok_visa",
			Intent:    intent,
		},
	}
}

func TestCardAdapter_Name(t *testing.T) {
	adapter := NewCardAdapter(&MockPaymentGateway{}, setupCardTestLedger(t), NewSystemLogger(nil))
	require.Equal(t, "card", adapter.Name())
}

func TestCardAdapter_Submit_AuthorizationSuccess(t *testing.T) {
	adapter := NewCardAdapter(&MockPaymentGateway{}, setupCardTestLedger(t), NewSystemLogger(nil))

	outcome, err := adapter.Submit(context.Background(), cardPaymentRequest(IntentAuthorize, "50.00"))
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, outcome.Kind)
	require.NotEmpty(t, outcome.ExternalRefID)
}

func TestCardAdapter_Submit_GatewayFailureIsRejected(t *testing.T) {
	gateway := &MockPaymentGateway{ShouldFail: true, FailCode: "card_declined", FailReason: "insufficient funds"}
	adapter := NewCardAdapter(gateway, setupCardTestLedger(t), NewSystemLogger(nil))

	outcome, err := adapter.Submit(context.Background(), cardPaymentRequest(IntentAuthorize, "50.00"))
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, outcome.Kind)
	require.Equal(t, "card_declined", outcome.RejectCode)
}

func TestCardAdapter_Submit_MissingCardDetails(t *testing.T) {
	adapter := NewCardAdapter(&MockPaymentGateway{}, setupCardTestLedger(t), NewSystemLogger(nil))
	req := cardPaymentRequest(IntentAuthorize, "50.00")
	req.CardDetails = nil

	_, err := adapter.Submit(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, KindValidation, KindOf(err))
}

func TestCardAdapter_Submit_CaptureExceedsAuthorizationRejected(t *testing.T) {
	ledger := setupCardTestLedger(t)
	walletID := uuid.New()
	original, err := ledger.InsertTransaction(&Transaction{
		Type:           TxCardAuthorization,
		Status:         StatusAuthorized,
		Amount:         decimal.RequireFromString("40.00"),
		CurrencyCode:   "USD",
		CreditWalletID: &walletID,
	})
	require.NoError(t, err)

	adapter := NewCardAdapter(&MockPaymentGateway{}, ledger, NewSystemLogger(nil))
	req := cardPaymentRequest(IntentCapture, "50.00")
	req.CardDetails.AuthorizationTransactionID = original.TransactionID.String()

	outcome, err := adapter.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, outcome.Kind)
	require.Equal(t, "exceeds_original_authorization", outcome.RejectCode)
}

func TestCardAdapter_Submit_CaptureWithinAuthorizationAccepted(t *testing.T) {
	ledger := setupCardTestLedger(t)
	walletID := uuid.New()
	original, err := ledger.InsertTransaction(&Transaction{
		Type:           TxCardAuthorization,
		Status:         StatusAuthorized,
		Amount:         decimal.RequireFromString("40.00"),
		CurrencyCode:   "USD",
		CreditWalletID: &walletID,
	})
	require.NoError(t, err)

	adapter := NewCardAdapter(&MockPaymentGateway{}, ledger, NewSystemLogger(nil))
	req := cardPaymentRequest(IntentCapture, "40.00")
	req.CardDetails.AuthorizationTransactionID = original.TransactionID.String()

	outcome, err := adapter.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeAccepted, outcome.Kind)
}

func TestCardAdapter_Submit_CaptureMissingAuthorizationReference(t *testing.T) {
	adapter := NewCardAdapter(&MockPaymentGateway{}, setupCardTestLedger(t), NewSystemLogger(nil))
	req := cardPaymentRequest(IntentCapture, "10.00")

	outcome, err := adapter.Submit(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeRejected, outcome.Kind)
}

func TestCardAdapter_Query(t *testing.T) {
	adapter := NewCardAdapter(&MockPaymentGateway{}, setupCardTestLedger(t), NewSystemLogger(nil))

	status, err := adapter.Query(context.Background(), "mock-gw-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, status.Status)
}
