package main

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// transitionTable enumerates every legal TransactionStatus move, per §4.6.
// A transition not present here is rejected by UpdateTransaction.
var transitionTable = map[TransactionStatus]map[TransactionStatus]bool{
	StatusPending: {
		StatusProcessing: true,
		StatusCancelled:  true,
		StatusFailed:      true,
	},
	StatusProcessing: {
		StatusSubmitted: true,
		StatusAuthorized: true,
		StatusCompleted: true,
		StatusFailed:    true,
	},
	StatusAuthorized: {
		StatusProcessing: true,
		StatusCancelled:  true,
		StatusExpired:    true,
		StatusFailed:     true,
	},
	StatusSubmitted: {
		StatusSettled:   true,
		StatusCompleted: true,
		StatusReturned:  true,
		StatusFailed:    true,
	},
	StatusSettled: {
		StatusChargeback: true,
		StatusReturned:   true,
	},
	StatusCompleted: {
		StatusChargeback: true,
		StatusReturned:   true,
	},
}

// CanTransition reports whether a status change from->to is permitted by
// the table above. Replaying the same status (from == to) is always
// permitted and treated as a no-op by UpdateTransaction, to support
// idempotent webhook replay (§4.7).
func CanTransition(from, to TransactionStatus) bool {
	if from == to {
		return true
	}
	return transitionTable[from][to]
}

// LedgerStore is the ACID-transactional persistence boundary the Processor
// drives. It mirrors the teacher's WalletLedger: a thin wrapper over a
// *gorm.DB handing out typed operations instead of letting callers build
// raw queries, but keyed by wallet/transaction UUIDs rather than an
// Ethereum AccountID/asset-symbol pair.
type LedgerStore struct {
	db *gorm.DB
}

func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// BeginTx starts a new ledger transaction. Callers MUST call Commit or
// Rollback on the returned store exactly once; both are safe to call from
// a deferred function guarded by a success flag, the way the teacher's
// db.Transaction callback guarantees rollback-on-panic.
func (l *LedgerStore) BeginTx() *LedgerStore {
	return &LedgerStore{db: l.db.Begin()}
}

func (l *LedgerStore) Commit() error {
	return l.db.Commit().Error
}

func (l *LedgerStore) Rollback() error {
	return l.db.Rollback().Error
}

// WithTx runs fn inside a ledger transaction, committing on a nil return
// and rolling back otherwise — the same shape as gorm's own
// db.Transaction(func(tx *gorm.DB) error {...}), generalized to hand the
// callback a *LedgerStore instead of a bare *gorm.DB.
func (l *LedgerStore) WithTx(fn func(tx *LedgerStore) error) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		return fn(&LedgerStore{db: tx})
	})
}

// LoadWalletForUpdate acquires a row-level write lock for the remaining
// duration of the transaction (SELECT ... FOR UPDATE), serializing
// concurrent mutations to the same wallet per §5's ordering guarantee.
func (l *LedgerStore) LoadWalletForUpdate(walletID uuid.UUID) (*Wallet, error) {
	var w Wallet
	err := l.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&w, "wallet_id = ?", walletID).Error
	if err == gorm.ErrRecordNotFound {
		return nil, NotFoundErrorf("wallet not found: %s", walletID)
	}
	if err != nil {
		return nil, InternalErrorf("failed to load wallet %s: %w", walletID, err)
	}
	return &w, nil
}

// AdjustBalance applies delta to the wallet's balance, rejecting the
// change with InsufficientFunds if the post-balance would go negative
// (I1). The caller must already hold the write lock via
// LoadWalletForUpdate within the same transaction.
func (l *LedgerStore) AdjustBalance(walletID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	wallet, err := l.LoadWalletForUpdate(walletID)
	if err != nil {
		return decimal.Zero, err
	}

	newBalance := wallet.Balance.Add(delta)
	if newBalance.IsNegative() {
		return decimal.Zero, InsufficientFundsErrorf("wallet %s: balance %s cannot absorb delta %s", walletID, wallet.Balance, delta)
	}

	if err := l.db.Model(&Wallet{}).
		Where("wallet_id = ?", walletID).
		Updates(map[string]any{"balance": newBalance, "updated_at": time.Now().UTC()}).Error; err != nil {
		return decimal.Zero, InternalErrorf("failed to persist balance for wallet %s: %w", walletID, err)
	}

	return newBalance, nil
}

// InsertTransaction creates a new Transaction row, generating its UUID and
// timestamps. tx.Status is expected to already be set by the caller
// (typically StatusPending).
func (l *LedgerStore) InsertTransaction(tx *Transaction) (*Transaction, error) {
	if !tx.HasWalletLeg() {
		return nil, ValidationErrorf("transaction must reference at least one wallet")
	}
	if !tx.Amount.IsPositive() {
		return nil, ValidationErrorf("transaction amount must be positive: %s", tx.Amount)
	}

	now := time.Now().UTC()
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if err := l.db.Create(tx).Error; err != nil {
		return nil, InternalErrorf("failed to insert transaction: %w", err)
	}
	return tx, nil
}

// UpdateTransaction enforces the status-transition table in §4.6 and I9
// (external_ref_id immutable once Submitted or later) before persisting.
type TransactionUpdate struct {
	Status        TransactionStatus
	ExternalRefID *string
	SettlementAt  *time.Time
	MetadataPatch JSONMap
}

func (l *LedgerStore) UpdateTransaction(transactionID uuid.UUID, update TransactionUpdate) (*Transaction, error) {
	var current Transaction
	if err := l.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&current, "transaction_id = ?", transactionID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NotFoundErrorf("transaction not found: %s", transactionID)
		}
		return nil, InternalErrorf("failed to load transaction %s: %w", transactionID, err)
	}

	if !CanTransition(current.Status, update.Status) {
		return nil, ConflictErrorf("illegal status transition for %s: %s -> %s", transactionID, current.Status, update.Status)
	}

	patch := map[string]any{
		"status":     update.Status,
		"updated_at": time.Now().UTC(),
	}

	if update.ExternalRefID != nil {
		refLocked := current.Status != StatusPending && current.Status != StatusProcessing
		if refLocked && current.ExternalRefID != nil && *current.ExternalRefID != *update.ExternalRefID {
			return nil, ConflictErrorf("external_ref_id is immutable once status reaches %s", current.Status)
		}
		patch["external_ref_id"] = *update.ExternalRefID
	}
	if update.SettlementAt != nil {
		patch["settlement_at"] = *update.SettlementAt
	}
	if update.MetadataPatch != nil {
		merged := mergeJSONMap(current.Metadata, update.MetadataPatch)
		patch["metadata"] = merged
	}

	if err := l.db.Model(&Transaction{}).
		Where("transaction_id = ?", transactionID).
		Updates(patch).Error; err != nil {
		return nil, InternalErrorf("failed to update transaction %s: %w", transactionID, err)
	}

	if err := l.db.First(&current, "transaction_id = ?", transactionID).Error; err != nil {
		return nil, InternalErrorf("failed to reload transaction %s: %w", transactionID, err)
	}
	return &current, nil
}

// FindTransactionByIdempotencyKey backs the processor's idempotent-replay
// lookup on (initiating_user_id, idempotency_key).
func (l *LedgerStore) FindTransactionByIdempotencyKey(userID uuid.UUID, key string) (*Transaction, error) {
	var tx Transaction
	err := l.db.
		Where("initiating_user_id = ? AND idempotency_key = ?", userID, key).
		First(&tx).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, InternalErrorf("failed to look up idempotency key: %w", err)
	}
	return &tx, nil
}

// FindTransactionByExternalRef backs webhook reconciliation's lookup step
// (§4.7.3): locate the internal transaction a provider's event refers to.
func (l *LedgerStore) FindTransactionByExternalRef(externalRef string) (*Transaction, error) {
	var tx Transaction
	err := l.db.Where("external_ref_id = ?", externalRef).First(&tx).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, InternalErrorf("failed to look up external ref %s: %w", externalRef, err)
	}
	return &tx, nil
}

// pendingStatuses are the non-terminal statuses a rail reconciliation pass
// polls forward.
var pendingStatuses = []TransactionStatus{StatusProcessing, StatusSubmitted, StatusAuthorized}

// FindPendingByRail lists every non-terminal transaction whose type maps to
// rail, for the offline reconciliation pass (§4.7's webhook counterpart).
func (l *LedgerStore) FindPendingByRail(rail string) ([]Transaction, error) {
	var allTypes []TransactionType
	for _, t := range allTransactionTypes {
		if name, err := railForType(t); err == nil && name == rail {
			allTypes = append(allTypes, t)
		}
	}
	if len(allTypes) == 0 {
		return nil, ValidationErrorf("unknown rail: %s", rail)
	}

	var transactions []Transaction
	err := l.db.
		Where("transaction_type IN ? AND status IN ?", allTypes, pendingStatuses).
		Order("created_at").
		Find(&transactions).Error
	if err != nil {
		return nil, InternalErrorf("failed to list pending transactions for rail %s: %w", rail, err)
	}
	return transactions, nil
}

// FindTransactionByID looks up a transaction by its UUID primary key,
// accepting the string form callers outside the ledger layer carry it in
// (e.g. CardDetails.AuthorizationTransactionID).
func (l *LedgerStore) FindTransactionByID(transactionID string) (*Transaction, error) {
	id, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, ValidationErrorf("invalid transaction id %q: %w", transactionID, err)
	}
	var tx Transaction
	err = l.db.Where("transaction_id = ?", id).First(&tx).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, InternalErrorf("failed to look up transaction %s: %w", transactionID, err)
	}
	return &tx, nil
}

// AppendAudit writes an append-only audit row. Per §4.3, failure is
// best-effort: the caller logs it but it does not abort the enclosing
// ledger transaction when called outside of one (e.g. from the async
// analytics path); when called inside WithTx it participates in the same
// transaction and will roll back with everything else.
func (l *LedgerStore) AppendAudit(entry *AuditLog) error {
	entry.Timestamp = time.Now().UTC()
	if err := l.db.Create(entry).Error; err != nil {
		return InternalErrorf("failed to append audit log: %w", err)
	}
	return nil
}

func mergeJSONMap(base, patch JSONMap) JSONMap {
	merged := make(JSONMap, len(base)+len(patch))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
