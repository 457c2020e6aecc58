package main

import (
	"context"
	"fmt"

	"github.com/elightspay/paymentcore/formats/nacha"
	"github.com/shopspring/decimal"
)

// AchOutboundPort abstracts the ODFI submission channel an AchAdapter hands
// a built Entry Detail record to. Concrete transport (SFTP, direct API) is
// outside the core's scope; tests supply a stub.
type AchOutboundPort interface {
	SubmitEntry(ctx context.Context, record string) (traceNumber string, err error)
	QueryEntry(ctx context.Context, traceNumber string) (RailStatus, error)
}

// AchAdapter implements RailAdapter for ACH credits/debits, producing one
// NACHA Entry Detail record per transaction (§4.5). Batching records into a
// single File/Batch pair for ODFI submission is the outbound port's job,
// not this adapter's.
type AchAdapter struct {
	originatingDFI string
	port           AchOutboundPort
	logger         Logger
}

func NewAchAdapter(originatingDFI string, port AchOutboundPort, logger Logger) *AchAdapter {
	return &AchAdapter{originatingDFI: originatingDFI, port: port, logger: logger.NewSystem("rail.ach")}
}

func (a *AchAdapter) Name() string { return "ach" }

func (a *AchAdapter) Submit(ctx context.Context, req PaymentRequest) (RailOutcome, error) {
	if req.ACHDetails == nil {
		return RailOutcome{}, ValidationErrorf("ACH submission requires ACHDetails")
	}

	sec := nacha.SECCode(req.ACHDetails.SECCode)
	if sec != nacha.SECPPD && sec != nacha.SECCCD {
		return Rejected("unsupported_sec_code", fmt.Sprintf("SEC code %s not supported", req.ACHDetails.SECCode)), nil
	}

	txCode := nacha.CheckingCredit
	if req.Type == TxAchDebit {
		txCode = nacha.CheckingDebit
	}

	cents, err := decimalToCents(req.Amount)
	if err != nil {
		return RailOutcome{}, err
	}

	entry := nacha.EntryDetail{
		TransactionCode: txCode,
		RoutingNumber:   req.ACHDetails.RoutingNumber,
		AccountNumber:   req.ACHDetails.AccountNumber,
		Amount:          cents,
		IndividualID:    req.ACHDetails.IndividualID,
		IndividualName:  req.ACHDetails.IndividualName,
		SECCode:         sec,
		TraceNumber:     a.originatingDFI + fmt.Sprintf("%07d", traceSequenceFromTxID(req.TransactionID)),
	}

	record, err := nacha.BuildEntryDetail(entry)
	if err != nil {
		return Rejected("invalid_entry_detail", err.Error()), nil
	}

	traceNumber, err := a.port.SubmitEntry(ctx, record)
	if err != nil {
		return Retryable(err.Error()), nil
	}

	return AcceptedPendingWebhook(traceNumber), nil
}

func (a *AchAdapter) Query(ctx context.Context, externalRef string) (RailStatus, error) {
	return a.port.QueryEntry(ctx, externalRef)
}

// traceSequenceFromTxID derives a stable 7-digit sequence number from a
// hash over every character of the transaction ID, since NACHA trace
// numbers must be numeric.
func traceSequenceFromTxID(txID string) int {
	sum := 0
	for _, c := range txID {
		sum = (sum*31 + int(c)) % 10000000
	}
	if sum < 0 {
		sum = -sum
	}
	return sum
}

// decimalToCents converts a display-precision fiat amount into integer
// cents, the unit NACHA's Entry Detail amount field expects. ACH never
// carries a crypto leg, so minor units are always 2 decimal places.
func decimalToCents(amount decimal.Decimal) (int64, error) {
	cents := amount.Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, ValidationErrorf("ACH amount %s is not representable in whole cents", amount)
	}
	return cents.IntPart(), nil
}
