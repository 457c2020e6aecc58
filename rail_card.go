package main

import (
	"context"
)

// CardAdapter implements RailAdapter over the abstract PaymentGateway
// boundary (gateway.go), dispatching by GatewayIntent per §4.5's
// CardAdapter description. A Capture is rejected before it ever reaches
// the gateway if it would exceed the original Authorization amount —
// Open Question (b)'s resolution.
type CardAdapter struct {
	gateway PaymentGateway
	ledger  *LedgerStore
	logger  Logger
}

func NewCardAdapter(gateway PaymentGateway, ledger *LedgerStore, logger Logger) *CardAdapter {
	return &CardAdapter{gateway: gateway, ledger: ledger, logger: logger.NewSystem("rail.card")}
}

func (a *CardAdapter) Name() string { return "card" }

func (a *CardAdapter) Submit(ctx context.Context, req PaymentRequest) (RailOutcome, error) {
	if req.CardDetails == nil {
		return RailOutcome{}, ValidationErrorf("card submission requires CardDetails")
	}

	if req.CardDetails.Intent == IntentCapture || req.CardDetails.Intent == IntentRefund {
		if err := a.enforceAgainstOriginal(req); err != nil {
			return Rejected("exceeds_original_authorization", err.Error()), nil
		}
	}

	resp, err := a.gateway.SubmitPayment(ctx, GatewayRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		CardToken:   req.CardDetails.CardToken,
		Intent:      req.CardDetails.Intent,
		Description: req.Description,
		Metadata:    JSONMap{"transaction_id": req.TransactionID},
	})
	if err != nil {
		return Retryable(err.Error()), nil
	}

	if !resp.Success {
		return Rejected(resp.ErrorCode, resp.ErrorMessage), nil
	}

	return Accepted(resp.GatewayTransactionID), nil
}

func (a *CardAdapter) Query(ctx context.Context, externalRef string) (RailStatus, error) {
	resp, err := a.gateway.GetTransactionStatus(ctx, externalRef)
	if err != nil {
		return RailStatus{}, err
	}
	status := StatusProcessing
	switch resp.Status {
	case "approved", "Succeeded", "Authorized":
		status = StatusCompleted
	case "Failed":
		status = StatusFailed
	}
	return RailStatus{Status: status, ExternalRefID: resp.GatewayTransactionID}, nil
}

// enforceAgainstOriginal checks that a Capture or Refund never exceeds the
// amount of the Authorization transaction it references.
func (a *CardAdapter) enforceAgainstOriginal(req PaymentRequest) error {
	if req.CardDetails.AuthorizationTransactionID == "" {
		return ValidationErrorf("capture/refund requires AuthorizationTransactionID")
	}
	original, err := a.ledger.FindTransactionByID(req.CardDetails.AuthorizationTransactionID)
	if err != nil {
		return err
	}
	if original == nil {
		return NotFoundErrorf("referenced authorization %s not found", req.CardDetails.AuthorizationTransactionID)
	}
	if req.Amount.GreaterThan(original.Amount) {
		return ValidationErrorf("amount %s exceeds original authorization %s", req.Amount, original.Amount)
	}
	return nil
}
