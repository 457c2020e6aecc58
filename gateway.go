package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// GatewayIntent mirrors original_source's PaymentIntent enum: what a card
// gateway call is meant to accomplish.
type GatewayIntent string

const (
	IntentAuthorize           GatewayIntent = "authorize"
	IntentCapture             GatewayIntent = "capture"
	IntentAuthorizeAndCapture GatewayIntent = "authorize_and_capture"
	IntentRefund              GatewayIntent = "refund"
	IntentValidate            GatewayIntent = "validate"
)

// GatewayRequest is what PaymentGateway.SubmitPayment receives.
type GatewayRequest struct {
	Amount      decimal.Decimal
	Currency    string
	CardToken   string
	Intent      GatewayIntent
	Description string
	CustomerID  string
	Metadata    JSONMap
}

// GatewayResponse is what PaymentGateway.SubmitPayment returns.
type GatewayResponse struct {
	Success             bool
	GatewayTransactionID string
	Status               string
	ErrorCode            string
	ErrorMessage         string
}

// PaymentGateway is the abstract boundary to a card acquirer. Concrete
// implementations live outside the core (§4.9); this package only
// specifies the trait and a configurable mock for tests.
type PaymentGateway interface {
	SubmitPayment(ctx context.Context, req GatewayRequest) (GatewayResponse, error)
	GetTransactionStatus(ctx context.Context, gatewayTransactionID string) (GatewayResponse, error)
}

// BankTransaction is a single statement line as recovered from a
// camt.053 parse or a bank API transaction list.
type BankTransaction struct {
	ExternalID string
	Amount     decimal.Decimal
	Currency   string
	BookedAt   time.Time
	Reference  string
}

// BankClient is the abstract boundary to a retail bank's API, per §4.9.
type BankClient interface {
	FetchAccountInfo(ctx context.Context, accountRef string) (map[string]string, error)
	FetchBalance(ctx context.Context, accountRef string) (decimal.Decimal, error)
	ListTransactions(ctx context.Context, accountRef string, from, to time.Time, limit int) ([]BankTransaction, error)
	InitiatePayment(ctx context.Context, req PaymentRequest) (RailOutcome, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (RailStatus, error)
}

// Quote is what RateService.GetRate returns.
type Quote struct {
	Rate      decimal.Decimal
	Timestamp time.Time
}

// RateService is the abstract boundary to an FX/crypto rate source.
type RateService interface {
	GetRate(ctx context.Context, from, to string) (Quote, error)
}

// MockPaymentGateway is a configurable test double: toggle ShouldFail,
// set Latency to exercise timeout handling, per §4.9's "MUST exist" rule.
type MockPaymentGateway struct {
	ShouldFail bool
	FailCode   string
	FailReason string
	Latency    time.Duration
	nextID     int
}

func (m *MockPaymentGateway) SubmitPayment(ctx context.Context, req GatewayRequest) (GatewayResponse, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return GatewayResponse{}, err
	}
	m.nextID++
	if m.ShouldFail {
		return GatewayResponse{
			Success:      false,
			ErrorCode:    m.FailCode,
			ErrorMessage: m.FailReason,
		}, nil
	}
	return GatewayResponse{
		Success:              true,
		GatewayTransactionID: fmt.Sprintf("mock-gw-%d", m.nextID),
		Status:                "approved",
	}, nil
}

func (m *MockPaymentGateway) GetTransactionStatus(ctx context.Context, gatewayTransactionID string) (GatewayResponse, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return GatewayResponse{}, err
	}
	return GatewayResponse{Success: true, GatewayTransactionID: gatewayTransactionID, Status: "approved"}, nil
}

// MockBankClient is a configurable test double for BankClient.
type MockBankClient struct {
	ShouldFail bool
	Latency    time.Duration
	Balance    decimal.Decimal
}

func (m *MockBankClient) FetchAccountInfo(ctx context.Context, accountRef string) (map[string]string, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return nil, err
	}
	if m.ShouldFail {
		return nil, ExternalServiceErrorf("mock bank client: fetch account info failed")
	}
	return map[string]string{"account_ref": accountRef}, nil
}

func (m *MockBankClient) FetchBalance(ctx context.Context, accountRef string) (decimal.Decimal, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return decimal.Zero, err
	}
	if m.ShouldFail {
		return decimal.Zero, ExternalServiceErrorf("mock bank client: fetch balance failed")
	}
	return m.Balance, nil
}

func (m *MockBankClient) ListTransactions(ctx context.Context, accountRef string, from, to time.Time, limit int) ([]BankTransaction, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return nil, err
	}
	if m.ShouldFail {
		return nil, ExternalServiceErrorf("mock bank client: list transactions failed")
	}
	return nil, nil
}

func (m *MockBankClient) InitiatePayment(ctx context.Context, req PaymentRequest) (RailOutcome, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return RailOutcome{}, err
	}
	if m.ShouldFail {
		return Rejected("mock_bank_rejected", "mock bank client configured to fail"), nil
	}
	return AcceptedPendingWebhook("mock-bank-ref"), nil
}

func (m *MockBankClient) GetPaymentStatus(ctx context.Context, paymentID string) (RailStatus, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return RailStatus{}, err
	}
	return RailStatus{Status: StatusSubmitted, ExternalRefID: paymentID}, nil
}

// MockRateService is a configurable test double for RateService.
type MockRateService struct {
	ShouldFail bool
	Latency    time.Duration
	Rate       decimal.Decimal
}

func (m *MockRateService) GetRate(ctx context.Context, from, to string) (Quote, error) {
	if err := sleepOrCancel(ctx, m.Latency); err != nil {
		return Quote{}, err
	}
	if m.ShouldFail {
		return Quote{}, ExternalServiceErrorf("mock rate service: get rate failed for %s->%s", from, to)
	}
	return Quote{Rate: m.Rate, Timestamp: time.Now().UTC()}, nil
}

// sleepOrCancel simulates injected latency while still honoring ctx
// cancellation, the shape every suspension point in §5 must respect.
func sleepOrCancel(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return TimeoutErrorf("operation cancelled: %w", ctx.Err())
	}
}
