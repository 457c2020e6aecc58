package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WalletType enumerates the rails a wallet is provisioned on. CurrencyCode
// must agree with WalletType (I2): fiat types carry an ISO 4217 code,
// crypto types carry a ticker.
type WalletType string

const (
	WalletFiatUSD WalletType = "fiat_usd"
	WalletFiatEUR WalletType = "fiat_eur"
	WalletCryptoBTC WalletType = "crypto_btc"
	WalletCryptoXMR WalletType = "crypto_xmr"
)

type WalletStatus string

const (
	WalletActive    WalletStatus = "active"
	WalletInactive  WalletStatus = "inactive"
	WalletSuspended WalletStatus = "suspended"
	WalletClosed    WalletStatus = "closed"
)

// TransactionType enumerates every settlement shape the processor can drive
// through the ledger, one per rail plus the internal, non-rail types.
type TransactionType string

const (
	TxAchCredit          TransactionType = "ach_credit"
	TxAchDebit           TransactionType = "ach_debit"
	TxWireOutbound       TransactionType = "wire_outbound"
	TxWireInbound        TransactionType = "wire_inbound"
	TxCardAuthorization  TransactionType = "card_authorization"
	TxCardCapture        TransactionType = "card_capture"
	TxCardRefund         TransactionType = "card_refund"
	TxCheckDeposit       TransactionType = "check_deposit"
	TxCryptoBtcSend      TransactionType = "crypto_btc_send"
	TxCryptoBtcReceive   TransactionType = "crypto_btc_receive"
	TxCryptoXmrSend      TransactionType = "crypto_xmr_send"
	TxCryptoXmrReceive   TransactionType = "crypto_xmr_receive"
	TxInternalTransfer   TransactionType = "internal_transfer"
	TxConversion         TransactionType = "conversion"
	TxFee                TransactionType = "fee"
	TxRtgsCreditTransfer TransactionType = "rtgs_credit_transfer"
)

// allTransactionTypes enumerates every TransactionType, used to invert
// railForType's mapping for rail-scoped queries (e.g. reconciliation).
var allTransactionTypes = []TransactionType{
	TxAchCredit, TxAchDebit,
	TxWireOutbound, TxWireInbound,
	TxCardAuthorization, TxCardCapture, TxCardRefund,
	TxCheckDeposit,
	TxCryptoBtcSend, TxCryptoBtcReceive,
	TxCryptoXmrSend, TxCryptoXmrReceive,
	TxInternalTransfer, TxConversion, TxFee,
	TxRtgsCreditTransfer,
}

// TransactionStatus is the full lifecycle a Transaction may occupy. The
// legal transitions between these are enforced by the ledger store, not by
// this type; see transitionTable in ledger.go.
type TransactionStatus string

const (
	StatusPending        TransactionStatus = "pending"
	StatusProcessing     TransactionStatus = "processing"
	StatusRequiresAction TransactionStatus = "requires_action"
	StatusAuthorized     TransactionStatus = "authorized"
	StatusSubmitted      TransactionStatus = "submitted"
	StatusSettled        TransactionStatus = "settled"
	StatusCompleted      TransactionStatus = "completed"
	StatusFailed         TransactionStatus = "failed"
	StatusCancelled      TransactionStatus = "cancelled"
	StatusReturned       TransactionStatus = "returned"
	StatusChargeback     TransactionStatus = "chargeback"
	StatusExpired        TransactionStatus = "expired"
)

// terminalStatuses are the end states of a payment's processing. Completed
// is included although the transition table still lets a Completed
// transaction move to Chargeback or Returned. The processor keys its
// completed/failed metrics and analytics off this set.
var terminalStatuses = map[TransactionStatus]bool{
	StatusCompleted:  true,
	StatusFailed:     true,
	StatusCancelled:  true,
	StatusReturned:   true,
	StatusChargeback: true,
	StatusExpired:    true,
}

func (s TransactionStatus) IsTerminal() bool {
	return terminalStatuses[s]
}

// failureStatuses are the terminal statuses that require the original
// debit to be reversed (I8's counterpart on the failure path).
var failureStatuses = map[TransactionStatus]bool{
	StatusFailed:     true,
	StatusCancelled:  true,
	StatusReturned:   true,
	StatusChargeback: true,
	StatusExpired:    true,
}

func (s TransactionStatus) RequiresReversal() bool {
	return failureStatuses[s]
}

type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
)

// User is the opaque identity that owns wallets. The core never mutates it
// beyond creation; registration, password rotation, etc. are out of scope.
type User struct {
	UserID       uuid.UUID `gorm:"column:user_id;type:uuid;primaryKey"`
	Username     string    `gorm:"column:username;uniqueIndex;not null"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

// Wallet holds a balance on a single rail for a single user. Sensitive
// rail-specific identifiers (account number, IBAN, routing number) are
// never stored in plaintext (I4); only their salted hash lives here, set
// via HashIdentifier in validate.go.
type Wallet struct {
	WalletID         uuid.UUID       `gorm:"column:wallet_id;type:uuid;primaryKey"`
	UserID           uuid.UUID       `gorm:"column:user_id;type:uuid;index;not null"`
	WalletType       WalletType      `gorm:"column:wallet_type;not null"`
	CurrencyCode     string          `gorm:"column:currency_code;not null"`
	Balance          decimal.Decimal `gorm:"column:balance;type:numeric(36,12);not null"`
	Status           WalletStatus    `gorm:"column:status;not null"`
	BankName         *string         `gorm:"column:bank_name"`
	AccountHash      *string         `gorm:"column:account_hash"`
	RoutingHash      *string         `gorm:"column:routing_hash"`
	IBANHash         *string         `gorm:"column:iban_hash"`
	BIC              *string         `gorm:"column:bic"`
	CryptoAddress    *string         `gorm:"column:crypto_address"`
	SubaddressIndex  *uint64         `gorm:"column:subaddress_index"`
	CreatedAt        time.Time       `gorm:"column:created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at"`
}

func (Wallet) TableName() string { return "wallets" }

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.WalletID == uuid.Nil {
		w.WalletID = uuid.New()
	}
	return nil
}

// IsDebitEligible enforces I3: only an Active wallet may be the source of
// an outbound debit.
func (w *Wallet) IsDebitEligible() bool {
	return w.Status == WalletActive
}

// ExpectedCurrencyCode returns the currency code WalletType implies, for
// I2 validation at wallet-creation time.
func (wt WalletType) ExpectedCurrencyCode() string {
	switch wt {
	case WalletFiatUSD:
		return "USD"
	case WalletFiatEUR:
		return "EUR"
	case WalletCryptoBTC:
		return "BTC"
	case WalletCryptoXMR:
		return "XMR"
	default:
		return ""
	}
}

// Transaction is the unit the Processor creates, dispatches, and reconciles.
// Metadata carries rail-specific detail (CardDetails, AchDetails, WireDetails,
// CryptoDetails) as a JSON blob rather than per-rail columns, the way the
// teacher's app-session layer kept a flexible JSON "allocations" payload
// alongside typed top-level fields.
type Transaction struct {
	TransactionID  uuid.UUID         `gorm:"column:transaction_id;type:uuid;primaryKey"`
	DebitWalletID  *uuid.UUID        `gorm:"column:debit_wallet_id;type:uuid;index"`
	CreditWalletID *uuid.UUID        `gorm:"column:credit_wallet_id;type:uuid;index"`
	Type           TransactionType   `gorm:"column:transaction_type;not null"`
	Status         TransactionStatus `gorm:"column:status;not null;index"`
	Amount         decimal.Decimal   `gorm:"column:amount;type:numeric(36,12);not null"`
	CurrencyCode   string            `gorm:"column:currency_code;not null"`
	Description    string            `gorm:"column:description"`
	ExternalRefID  *string           `gorm:"column:external_ref_id;index"`
	Metadata       JSONMap           `gorm:"column:metadata;type:jsonb"`
	InitiatingUser *uuid.UUID        `gorm:"column:initiating_user_id;index"`
	IdempotencyKey *string           `gorm:"column:idempotency_key;index"`
	CreatedAt      time.Time         `gorm:"column:created_at"`
	UpdatedAt      time.Time         `gorm:"column:updated_at"`
	SettlementAt   *time.Time        `gorm:"column:settlement_at"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TransactionID == uuid.Nil {
		t.TransactionID = uuid.New()
	}
	return nil
}

// HasWalletLeg enforces I5: at least one of debit/credit wallet must be set.
func (t *Transaction) HasWalletLeg() bool {
	return t.DebitWalletID != nil || t.CreditWalletID != nil
}

// AuditLog is an append-only record of every ledger state mutation.
// No Update/Delete path exists for this model anywhere in the codebase.
type AuditLog struct {
	LogID           int64        `gorm:"column:log_id;primaryKey;autoIncrement"`
	Timestamp       time.Time    `gorm:"column:timestamp;not null;index"`
	UserID          *uuid.UUID   `gorm:"column:user_id;index"`
	ActorIdentifier string       `gorm:"column:actor_identifier;not null"`
	Action          string       `gorm:"column:action;not null"`
	TargetType      string       `gorm:"column:target_type;not null"`
	TargetID        string       `gorm:"column:target_id;not null;index"`
	Outcome         AuditOutcome `gorm:"column:outcome;not null"`
	Details         JSONMap      `gorm:"column:details;type:jsonb"`
	ErrorMessage    *string      `gorm:"column:error_message"`
}

func (AuditLog) TableName() string { return "audit_logs" }
