package main

import (
	"context"
	"time"

	"github.com/elightspay/paymentcore/formats/iso20022"
	"github.com/elightspay/paymentcore/formats/swiftmt"
	"github.com/google/uuid"
)

// WireOutboundPort abstracts the correspondent/RTGS submission channel a
// WireAdapter hands a built pacs.008 or MT103 message to.
type WireOutboundPort interface {
	SubmitMessage(ctx context.Context, uetr string, message []byte) error
	QueryMessage(ctx context.Context, uetr string) (RailStatus, error)
}

// WireAdapter implements RailAdapter for wire transfers, choosing ISO 20022
// or MT103 per WireDetails.UseISO20022 (§4.5). A UETR is generated here
// when the caller did not already carry one in metadata.
type WireAdapter struct {
	debtorName     string
	debtorIBAN     string
	debtorAgentBIC string
	port           WireOutboundPort
	logger         Logger
}

func NewWireAdapter(debtorName, debtorIBAN, debtorAgentBIC string, port WireOutboundPort, logger Logger) *WireAdapter {
	return &WireAdapter{
		debtorName:     debtorName,
		debtorIBAN:     debtorIBAN,
		debtorAgentBIC: debtorAgentBIC,
		port:           port,
		logger:         logger.NewSystem("rail.wire"),
	}
}

func (a *WireAdapter) Name() string { return "wire" }

func (a *WireAdapter) Submit(ctx context.Context, req PaymentRequest) (RailOutcome, error) {
	if req.WireDetails == nil {
		return RailOutcome{}, ValidationErrorf("wire submission requires WireDetails")
	}

	uetr := uuid.NewString()

	var message []byte
	var err error
	if req.WireDetails.UseISO20022 {
		message, err = a.buildPacs008(req, uetr)
	} else {
		message, err = a.buildMT103(req, uetr)
	}
	if err != nil {
		return Rejected("invalid_wire_message", err.Error()), nil
	}

	if submitErr := a.port.SubmitMessage(ctx, uetr, message); submitErr != nil {
		return Retryable(submitErr.Error()), nil
	}

	return AcceptedPendingWebhook(uetr), nil
}

func (a *WireAdapter) Query(ctx context.Context, externalRef string) (RailStatus, error) {
	return a.port.QueryMessage(ctx, externalRef)
}

func (a *WireAdapter) buildPacs008(req PaymentRequest, uetr string) ([]byte, error) {
	amount, err := RoundToCurrency(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	ct := iso20022.CreditTransfer{
		InstructionID:    req.TransactionID,
		EndToEndID:       req.TransactionID,
		TransactionID:    req.TransactionID,
		UETR:             uetr,
		Currency:         req.Currency,
		Amount:           amount.StringFixed(2),
		DebtorName:       a.debtorName,
		DebtorIBAN:       a.debtorIBAN,
		DebtorAgentBIC:   a.debtorAgentBIC,
		CreditorAgentBIC: req.WireDetails.BeneficiaryBIC,
		CreditorName:     req.WireDetails.BeneficiaryName,
		CreditorIBAN:     req.WireDetails.BeneficiaryAccount,
		RemittanceInfo:   req.WireDetails.RemittanceInfo,
	}

	return iso20022.BuildPacs008(ct, "MSG-"+req.TransactionID, time.Now().UTC())
}

func (a *WireAdapter) buildMT103(req PaymentRequest, uetr string) ([]byte, error) {
	amount, err := RoundToCurrency(req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}

	msg := swiftmt.MT103{
		SenderReference:    truncate(req.TransactionID, 16),
		BankOperationCode:  "CRED",
		ValueDate:          time.Now().UTC(),
		Currency:           req.Currency,
		Amount:             amount.StringFixed(2),
		DebtorOption:       "K",
		DebtorIdentifier:   a.debtorIBAN,
		CorrespondentBIC:   req.WireDetails.IntermediaryBIC,
		BeneficiaryBankBIC: req.WireDetails.BeneficiaryBIC,
		BeneficiaryOption:  "",
		BeneficiaryIdentifier: req.WireDetails.BeneficiaryAccount,
		RemittanceLines:    splitRemittance(req.WireDetails.RemittanceInfo),
		ChargesOption:      swiftmt.ChargesSHA,
		UETR:               uetr,
	}

	text, err := swiftmt.Build(msg)
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func splitRemittance(info string) []string {
	if info == "" {
		return nil
	}
	lines := make([]string, 0, 4)
	for len(info) > 0 && len(lines) < 4 {
		if len(info) <= 35 {
			lines = append(lines, info)
			break
		}
		lines = append(lines, info[:35])
		info = info[35:]
	}
	return lines
}
