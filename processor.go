package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// PaymentProcessor is the orchestrator: validate -> debit -> dispatch ->
// reconcile, per §4.6. It owns no long-lived DB transaction; every ledger
// mutation opens and commits its own, and the rail adapter is always
// invoked outside of one (§5's external-call boundary rule).
type PaymentProcessor struct {
	ledger   *LedgerStore
	adapters map[string]RailAdapter
	metrics  *Metrics
	analytics *AnalyticsSink
	logger   Logger
	submitRetry retry.Backoff
}

func NewPaymentProcessor(ledger *LedgerStore, adapters map[string]RailAdapter, metrics *Metrics, analytics *AnalyticsSink, logger Logger) *PaymentProcessor {
	backoff, err := retry.NewExponential(100 * time.Millisecond)
	if err != nil {
		// Only returns an error for a non-positive base duration, a
		// programmer error in the constant above.
		panic(err)
	}
	backoff = retry.WithMaxRetries(3, backoff)

	return &PaymentProcessor{
		ledger:      ledger,
		adapters:    adapters,
		metrics:     metrics,
		analytics:   analytics,
		logger:      logger.NewSystem("processor"),
		submitRetry: backoff,
	}
}

// railForType maps a TransactionType to the rail name used to look up an
// adapter in the registry, per §4.5's per-rail adapter split.
func railForType(t TransactionType) (string, error) {
	switch t {
	case TxAchCredit, TxAchDebit:
		return "ach", nil
	case TxWireOutbound, TxWireInbound, TxRtgsCreditTransfer:
		return "wire", nil
	case TxCardAuthorization, TxCardCapture, TxCardRefund:
		return "card", nil
	case TxCryptoBtcSend, TxCryptoBtcReceive:
		return "crypto_btc", nil
	case TxCryptoXmrSend, TxCryptoXmrReceive:
		return "crypto_xmr", nil
	default:
		return "", ValidationErrorf("payment type %s has no rail adapter", t)
	}
}

// synchronousTypes are the types whose Accepted outcome completes the
// transaction immediately rather than leaving it Submitted/Authorized
// pending a webhook or poll. XMR sends are deliberately absent: there is no
// webhook for that rail, so a submitted transfer stays Submitted until
// CryptoXmrAdapter.Query observes enough confirmations.
var synchronousTypes = map[TransactionType]bool{
	TxCardCapture:      true,
	TxInternalTransfer: true,
}

func (p *PaymentProcessor) acceptedStatus(t TransactionType) TransactionStatus {
	switch {
	case t == TxCardAuthorization:
		return StatusAuthorized
	case synchronousTypes[t]:
		return StatusCompleted
	default:
		return StatusSubmitted
	}
}

// ProcessOutbound implements §4.6's process_outbound: validate, debit,
// dispatch, reconcile.
func (p *PaymentProcessor) ProcessOutbound(ctx context.Context, req PaymentRequest, initiatingUserID uuid.UUID, idempotencyKey string) (*Transaction, error) {
	ctx, finish := StartSpan(ctx, "processor.process_outbound")
	var err error
	defer func() { finish(&err) }()

	if idempotencyKey != "" {
		existing, lookupErr := p.ledger.FindTransactionByIdempotencyKey(initiatingUserID, idempotencyKey)
		if lookupErr != nil {
			err = lookupErr
			return nil, err
		}
		if existing != nil {
			p.logger.Info("idempotent replay", "transaction_id", existing.TransactionID, "key", idempotencyKey)
			return existing, nil
		}
	}

	if err = p.validateOutbound(req); err != nil {
		return nil, err
	}

	rail, err := railForType(req.Type)
	if err != nil {
		return nil, err
	}
	adapter, ok := p.adapters[rail]
	if !ok {
		err = ExternalServiceErrorf("no adapter registered for rail %s", rail)
		return nil, err
	}

	var tx *Transaction
	err = p.ledger.WithTx(func(store *LedgerStore) error {
		sourceID, perr := uuid.Parse(*req.SourceWalletID)
		if perr != nil {
			return ValidationErrorf("invalid source wallet id: %w", perr)
		}

		wallet, lerr := store.LoadWalletForUpdate(sourceID)
		if lerr != nil {
			return lerr
		}
		if !wallet.IsDebitEligible() {
			return ValidationErrorf("source wallet %s is not active", sourceID)
		}
		if wallet.CurrencyCode != req.Currency {
			return ValidationErrorf("source wallet currency %s does not match request currency %s", wallet.CurrencyCode, req.Currency)
		}

		if _, aerr := store.AdjustBalance(sourceID, req.Amount.Neg()); aerr != nil {
			return aerr
		}

		var creditWalletID *uuid.UUID
		if req.DestinationWalletID != nil {
			id, derr := uuid.Parse(*req.DestinationWalletID)
			if derr != nil {
				return ValidationErrorf("invalid destination wallet id: %w", derr)
			}
			creditWalletID = &id
		}

		newTx := &Transaction{
			DebitWalletID:  &sourceID,
			CreditWalletID: creditWalletID,
			Type:           req.Type,
			Status:         StatusPending,
			Amount:         req.Amount,
			CurrencyCode:   req.Currency,
			Description:    req.Description,
			InitiatingUser: &initiatingUserID,
			Metadata:       req.Metadata,
		}
		if idempotencyKey != "" {
			newTx.IdempotencyKey = &idempotencyKey
		}

		inserted, ierr := store.InsertTransaction(newTx)
		if ierr != nil {
			return ierr
		}

		updated, uerr := store.UpdateTransaction(inserted.TransactionID, TransactionUpdate{Status: StatusProcessing})
		if uerr != nil {
			return uerr
		}

		if aerr := store.AppendAudit(auditEntry(&initiatingUserID, initiatingUserID.String(), "INITIATE_OUTBOUND_PAYMENT", "TRANSACTION", updated.TransactionID.String(), OutcomeSuccess, JSONMap{
			"amount":   req.Amount.String(),
			"currency": req.Currency,
			"type":     string(req.Type),
		}, nil)); aerr != nil {
			p.logger.Error("failed to append audit log", "error", aerr)
		}

		tx = updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.metrics.PaymentsInitiated.WithLabelValues(rail).Inc()
	p.analytics.Publish(AnalyticsEvent{Name: AnalyticsTransactionCreated, TransactionID: tx.TransactionID.String(), Rail: rail})

	// §5: the ledger transaction MUST be committed before the rail adapter
	// is invoked, and a fresh one opened after it returns.
	req.TransactionID = tx.TransactionID.String()
	outcome, submitErr := p.submitWithRetry(ctx, adapter, req, rail)

	return p.reconcileSubmission(ctx, tx, rail, outcome, submitErr)
}

func (p *PaymentProcessor) submitWithRetry(ctx context.Context, adapter RailAdapter, req PaymentRequest, rail string) (RailOutcome, error) {
	ctx, finish := StartSpan(ctx, fmt.Sprintf("rail.%s.submit", rail))
	start := time.Now()
	var outcome RailOutcome
	var err error
	defer func() {
		p.metrics.RailSubmitLatency.WithLabelValues(rail).Observe(time.Since(start).Seconds())
		finish(&err)
	}()

	err = retry.Do(ctx, p.submitRetry, func(ctx context.Context) error {
		var attemptErr error
		outcome, attemptErr = adapter.Submit(ctx, req)
		if attemptErr != nil {
			return retry.RetryableError(attemptErr)
		}
		return nil
	})
	if outcome.Kind == OutcomeRetryable {
		p.metrics.RailRetries.WithLabelValues(rail).Inc()
	}
	return outcome, err
}

// reconcileSubmission applies §4.6 step 8: a fresh ledger transaction
// interpreting the adapter's outcome.
func (p *PaymentProcessor) reconcileSubmission(ctx context.Context, tx *Transaction, rail string, outcome RailOutcome, submitErr error) (*Transaction, error) {
	ctx, finish := StartSpan(ctx, "processor.reconcile_submission")
	var err error
	defer func() { finish(&err) }()

	var result *Transaction
	err = p.ledger.WithTx(func(store *LedgerStore) error {
		switch {
		case submitErr != nil:
			updated, uerr := store.UpdateTransaction(tx.TransactionID, TransactionUpdate{Status: StatusFailed})
			if uerr != nil {
				return uerr
			}
			if rerr := p.reverseDebit(store, updated); rerr != nil {
				return rerr
			}
			if aerr := store.AppendAudit(auditEntry(updated.InitiatingUser, "SYSTEM", "SUBMIT_PAYMENT", "TRANSACTION", updated.TransactionID.String(), OutcomeFailure, nil, strPtr(submitErr.Error()))); aerr != nil {
				p.logger.Error("failed to append audit log", "error", aerr)
			}
			result = updated
			return nil

		case outcome.Kind == OutcomeRejected:
			updated, uerr := store.UpdateTransaction(tx.TransactionID, TransactionUpdate{Status: StatusFailed, MetadataPatch: JSONMap{"reject_code": outcome.RejectCode}})
			if uerr != nil {
				return uerr
			}
			if rerr := p.reverseDebit(store, updated); rerr != nil {
				return rerr
			}
			if aerr := store.AppendAudit(auditEntry(updated.InitiatingUser, "SYSTEM", "SUBMIT_PAYMENT", "TRANSACTION", updated.TransactionID.String(), OutcomeFailure, JSONMap{"reject_code": outcome.RejectCode}, strPtr(outcome.Message))); aerr != nil {
				p.logger.Error("failed to append audit log", "error", aerr)
			}
			result = updated
			return nil

		case outcome.Kind == OutcomeRetryable:
			// Status stays Processing; an external scheduler re-invokes later.
			result = tx
			return nil

		default: // Accepted or AcceptedPendingWebhook
			ref := outcome.ExternalRefID
			newStatus := p.acceptedStatus(tx.Type)
			update := TransactionUpdate{Status: newStatus, ExternalRefID: &ref}
			if newStatus == StatusCompleted {
				now := time.Now().UTC()
				update.SettlementAt = &now
			}
			updated, uerr := store.UpdateTransaction(tx.TransactionID, update)
			if uerr != nil {
				return uerr
			}
			if newStatus == StatusCompleted && updated.CreditWalletID != nil {
				if _, aerr := store.AdjustBalance(*updated.CreditWalletID, updated.Amount); aerr != nil {
					return aerr
				}
			}
			if aerr := store.AppendAudit(auditEntry(updated.InitiatingUser, "SYSTEM", "SUBMIT_PAYMENT", "TRANSACTION", updated.TransactionID.String(), OutcomeSuccess, JSONMap{"external_ref_id": ref}, nil)); aerr != nil {
				p.logger.Error("failed to append audit log", "error", aerr)
			}
			result = updated
			return nil
		}
	})
	if err != nil {
		return nil, err
	}

	if result.Status.IsTerminal() {
		if result.Status == StatusCompleted {
			p.metrics.PaymentsCompleted.WithLabelValues(rail).Inc()
			p.analytics.Publish(AnalyticsEvent{Name: AnalyticsTransactionCompleted, TransactionID: result.TransactionID.String(), Rail: rail})
		} else {
			p.metrics.PaymentsFailed.WithLabelValues(rail, string(result.Status)).Inc()
			p.analytics.Publish(AnalyticsEvent{Name: AnalyticsTransactionFailed, TransactionID: result.TransactionID.String(), Rail: rail})
		}
	}

	return result, nil
}

// UpdateStatus implements §4.6's update_status, used both by the webhook
// intake and by any out-of-scope polling scheduler. Reversal semantics
// (§4.6) apply when the new status requires one and a transition actually
// occurs — replaying the same terminal status is a no-op (§4.7.4's
// idempotent-replay rule), so no double reversal happens.
func (p *PaymentProcessor) UpdateStatus(ctx context.Context, transactionID uuid.UUID, newStatus TransactionStatus, externalRef *string, settlementAt *time.Time, metadataPatch JSONMap) (*Transaction, error) {
	ctx, finish := StartSpan(ctx, "processor.update_status")
	var err error
	defer func() { finish(&err) }()

	var result *Transaction
	var rail string
	err = p.ledger.WithTx(func(store *LedgerStore) error {
		var before Transaction
		if derr := store.db.First(&before, "transaction_id = ?", transactionID).Error; derr != nil {
			return NotFoundErrorf("transaction not found: %s", transactionID)
		}

		updated, uerr := store.UpdateTransaction(transactionID, TransactionUpdate{
			Status:        newStatus,
			ExternalRefID: externalRef,
			SettlementAt:  settlementAt,
			MetadataPatch: metadataPatch,
		})
		if uerr != nil {
			return uerr
		}

		if before.Status == newStatus {
			// Idempotent replay: already in this status, no financial side effects.
			result = updated
			return nil
		}

		if newStatus.RequiresReversal() && updated.DebitWalletID != nil {
			if rerr := p.reverseDebit(store, updated); rerr != nil {
				return rerr
			}
		}
		if (newStatus == StatusCompleted || newStatus == StatusSettled) && updated.CreditWalletID != nil {
			if _, aerr := store.AdjustBalance(*updated.CreditWalletID, updated.Amount); aerr != nil {
				return aerr
			}
		}

		if aerr := store.AppendAudit(auditEntry(nil, "SYSTEM", "UPDATE_PAYMENT_STATUS", "TRANSACTION", updated.TransactionID.String(), OutcomeSuccess, JSONMap{"new_status": string(newStatus)}, nil)); aerr != nil {
			p.logger.Error("failed to append audit log", "error", aerr)
		}

		result = updated
		if r, rerr := railForType(updated.Type); rerr == nil {
			rail = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Status == StatusCompleted && rail != "" {
		p.metrics.PaymentsCompleted.WithLabelValues(rail).Inc()
		p.analytics.Publish(AnalyticsEvent{Name: AnalyticsTransactionCompleted, TransactionID: result.TransactionID.String(), Rail: rail})
	}
	return result, nil
}

// reverseDebit re-credits the originally debited wallet and records a
// linked compensating transaction, per §4.6's reversal semantics. This
// closes the TODO original_source's payment_processor.rs left
// unimplemented ("CRITICAL - Need to re-credit the source wallet").
func (p *PaymentProcessor) reverseDebit(store *LedgerStore, original *Transaction) error {
	if original.DebitWalletID == nil {
		return nil
	}

	if _, err := store.AdjustBalance(*original.DebitWalletID, original.Amount); err != nil {
		return err
	}

	reversal := &Transaction{
		CreditWalletID: original.DebitWalletID,
		Type:           TxInternalTransfer,
		Status:         StatusCompleted,
		Amount:         original.Amount,
		CurrencyCode:   original.CurrencyCode,
		Description:    fmt.Sprintf("reversal of %s", original.TransactionID),
		Metadata: JSONMap{
			"original_transaction_id": original.TransactionID.String(),
			"reversal":                true,
		},
	}
	if _, err := store.InsertTransaction(reversal); err != nil {
		return err
	}

	rail, _ := railForType(original.Type)
	p.metrics.PaymentsReversed.WithLabelValues(rail).Inc()
	return nil
}

func (p *PaymentProcessor) validateOutbound(req PaymentRequest) error {
	if err := ValidateStruct(req); err != nil {
		return err
	}
	if !req.Amount.IsPositive() {
		return ValidationErrorf("amount must be positive: %s", req.Amount)
	}
	if err := ValidateCurrencyCode(req.Currency); err != nil {
		return err
	}
	if req.SourceWalletID == nil {
		return ValidationErrorf("source wallet id required for outbound payment")
	}

	// Nested detail structs were already struct-validated above as part of
	// req; what remains here is the algorithmic checks a tag can't express.
	switch req.Type {
	case TxAchCredit, TxAchDebit:
		if req.ACHDetails == nil {
			return ValidationErrorf("missing ACH details for %s", req.Type)
		}
		if err := ValidateABARouting(req.ACHDetails.RoutingNumber); err != nil {
			return err
		}
	case TxWireOutbound, TxRtgsCreditTransfer:
		if req.WireDetails == nil {
			return ValidationErrorf("missing wire details for %s", req.Type)
		}
		if err := ValidateBIC(req.WireDetails.BeneficiaryBIC); err != nil {
			return err
		}
	case TxCardAuthorization, TxCardCapture, TxCardRefund:
		if req.CardDetails == nil {
			return ValidationErrorf("missing card details for %s", req.Type)
		}
	case TxCryptoBtcSend:
		if err := ValidateBTCAddress(req.CryptoDestAddress); err != nil {
			return err
		}
	case TxCryptoXmrSend:
		if err := ValidateXMRAddress(req.CryptoDestAddress); err != nil {
			return err
		}
	}

	return nil
}

func strPtr(s string) *string { return &s }
