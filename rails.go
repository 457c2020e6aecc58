package main

import (
	"context"

	"github.com/shopspring/decimal"
)

// RailOutcomeKind classifies what a rail adapter reported for a Submit
// call, driving the processor's §4.6 step-8 status transition.
type RailOutcomeKind string

const (
	OutcomeAccepted               RailOutcomeKind = "accepted"
	OutcomeAcceptedPendingWebhook RailOutcomeKind = "accepted_pending_webhook"
	OutcomeRejected               RailOutcomeKind = "rejected"
	OutcomeRetryable              RailOutcomeKind = "retryable"
)

// RailOutcome is the uniform result every adapter's Submit returns, per
// §4.5's contract.
type RailOutcome struct {
	Kind          RailOutcomeKind
	ExternalRefID string
	RejectCode    string
	Message       string
}

func Accepted(ref string) RailOutcome {
	return RailOutcome{Kind: OutcomeAccepted, ExternalRefID: ref}
}

func AcceptedPendingWebhook(ref string) RailOutcome {
	return RailOutcome{Kind: OutcomeAcceptedPendingWebhook, ExternalRefID: ref}
}

func Rejected(code, message string) RailOutcome {
	return RailOutcome{Kind: OutcomeRejected, RejectCode: code, Message: message}
}

func Retryable(reason string) RailOutcome {
	return RailOutcome{Kind: OutcomeRetryable, Message: reason}
}

// RailStatus is the result of an adapter's Query call, carrying the
// adapter's own status code translated into the shared TransactionStatus
// space per each adapter's mapping table.
type RailStatus struct {
	Status        TransactionStatus
	ExternalRefID string
	RawCode       string
}

// PaymentRequest is what the Processor hands a rail adapter's Submit
// method once a source wallet has been debited and a Pending transaction
// row exists (§4.6 steps 1-6).
type PaymentRequest struct {
	TransactionID       string
	InitiatingUserID    string
	Amount              decimal.Decimal `validate:"required"`
	Currency            string          `validate:"required,len=3"`
	Type                TransactionType `validate:"required"`
	SourceWalletID      *string
	DestinationWalletID *string
	Description         string `validate:"max=140"`
	ACHDetails          *ACHDetails
	WireDetails         *WireDetails
	CardDetails         *CardDetails
	CryptoDestAddress   string
	Metadata            JSONMap
}

// RailAdapter is the uniform contract every settlement rail implements, per
// §4.5.
type RailAdapter interface {
	Name() string
	Submit(ctx context.Context, req PaymentRequest) (RailOutcome, error)
	Query(ctx context.Context, externalRef string) (RailStatus, error)
}

// ACHDetails carries the routing/account pair an ACH entry detail record
// needs, per original_source's AchDetails model. SECCode is restricted to
// PPD/CCD per the processor's Open Question decision (DESIGN.md).
type ACHDetails struct {
	RoutingNumber  string `validate:"required,len=9,numeric"`
	AccountNumber  string `validate:"required"`
	SECCode        string `validate:"required,oneof=PPD CCD"`
	IndividualID   string
	IndividualName string `validate:"required"`
}

// WireDetails carries the bank/beneficiary detail a pacs.008 or MT103
// message needs, per original_source's WireDetails model.
type WireDetails struct {
	BeneficiaryName    string `validate:"required"`
	BeneficiaryAccount string `validate:"required"`
	BeneficiaryBIC     string `validate:"required"`
	IntermediaryBIC    string
	RemittanceInfo     string `validate:"max=140"`
	UseISO20022        bool
}

// CardDetails carries a tokenized card reference — never a raw PAN — plus
// the gateway intent, per original_source's gateway.rs trait.
type CardDetails struct {
	CardToken                  string `validate:"required"`
	Intent                     GatewayIntent `validate:"required"`
	AuthorizationTransactionID string // set for Capture/Refund
}
