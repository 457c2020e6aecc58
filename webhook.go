package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// WebhookEvent is the provider-neutral shape every intake path normalizes
// into before handing off to the processor, per §4.7.
type WebhookEvent struct {
	Provider        string
	EventType       string
	ExternalRefID   string
	NewStatus       TransactionStatus
	RejectReason    string
	Amount          string
	Currency        string
	DestinationAddr string
	Raw             JSONMap
}

// WebhookIntake verifies, parses, and dispatches inbound rail events. One
// instance is shared across providers; the per-provider secret and event
// mapping are supplied at registration time.
type WebhookIntake struct {
	processor *PaymentProcessor
	ledger    *LedgerStore
	metrics   *Metrics
	logger    Logger
	providers map[string]*providerConfig
}

type providerConfig struct {
	secret    []byte
	parseFunc func(body []byte) (WebhookEvent, error)
}

func NewWebhookIntake(processor *PaymentProcessor, ledger *LedgerStore, metrics *Metrics, logger Logger) *WebhookIntake {
	return &WebhookIntake{
		processor: processor,
		ledger:    ledger,
		metrics:   metrics,
		logger:    logger.NewSystem("webhook"),
		providers: make(map[string]*providerConfig),
	}
}

// RegisterProvider wires a provider's shared secret and payload parser. The
// parser translates the provider's wire format into a WebhookEvent; it does
// not verify the signature, which Handle does uniformly.
func (w *WebhookIntake) RegisterProvider(name string, secret []byte, parseFunc func(body []byte) (WebhookEvent, error)) {
	w.providers[name] = &providerConfig{secret: secret, parseFunc: parseFunc}
}

// Handle implements §4.7's four steps: verify, parse, locate, drive status.
// signatureHeader is the raw header value (e.g. "sha256=<hex>" for BTCPay);
// VerifySignature strips any algorithm prefix before comparing.
func (w *WebhookIntake) Handle(ctx context.Context, provider string, signatureHeader string, body []byte) error {
	cfg, ok := w.providers[provider]
	if !ok {
		return ValidationErrorf("unknown webhook provider: %s", provider)
	}

	if !VerifySignature(cfg.secret, signatureHeader, body) {
		w.metrics.WebhookRejected.WithLabelValues(provider, "bad_signature").Inc()
		return AuthErrorf("webhook signature verification failed for provider %s", provider)
	}

	event, err := cfg.parseFunc(body)
	if err != nil {
		w.metrics.WebhookRejected.WithLabelValues(provider, "malformed_payload").Inc()
		return ValidationErrorf("failed to parse %s webhook payload: %w", provider, err)
	}
	event.Provider = provider

	w.metrics.WebhookReceived.WithLabelValues(provider).Inc()

	if event.NewStatus == "" {
		// Unknown/unacted-upon event type (§4.7 step 2): acknowledge, do nothing.
		w.logger.Info("acknowledging webhook event with no status mapping", "provider", provider, "event_type", event.EventType)
		return nil
	}

	tx, err := w.ledger.FindTransactionByExternalRef(event.ExternalRefID)
	if err != nil {
		return err
	}

	if tx == nil {
		return w.handleUnsolicited(ctx, event)
	}

	_, err = w.processor.UpdateStatus(ctx, tx.TransactionID, event.NewStatus, &event.ExternalRefID, nil, JSONMap{"webhook_event_type": event.EventType})
	return err
}

// unsolicitedCreatableProviders names the providers whose settlement events
// are allowed to create an inbound transaction on first sight rather than
// being rejected as spurious, per spec.md's Open Question (c) resolution:
// inbound wire settlement (and, per §4.7's own example, a BTCPay invoice
// settling with no prior record) both create rather than reject.
var unsolicitedCreatableProviders = map[string]TransactionType{
	"btcpay": TxCryptoBtcReceive,
	"wire":   TxWireInbound,
}

func (w *WebhookIntake) handleUnsolicited(ctx context.Context, event WebhookEvent) error {
	txType, creatable := unsolicitedCreatableProviders[event.Provider]
	if !creatable || event.NewStatus != StatusCompleted {
		w.metrics.WebhookRejected.WithLabelValues(event.Provider, "no_matching_transaction").Inc()
		return NotFoundErrorf("no transaction matches external ref %s", event.ExternalRefID)
	}

	amount, err := decimalFromString(event.Amount)
	if err != nil {
		return ValidationErrorf("invalid amount in unsolicited webhook: %w", err)
	}

	return w.ledger.WithTx(func(store *LedgerStore) error {
		newTx := &Transaction{
			Type:          txType,
			Status:        StatusPending,
			Amount:        amount,
			CurrencyCode:  event.Currency,
			Description:   fmt.Sprintf("unsolicited inbound %s settlement", event.Provider),
			ExternalRefID: &event.ExternalRefID,
			Metadata: JSONMap{
				"unsolicited_credit":   true,
				"destination_address": event.DestinationAddr,
			},
		}
		inserted, ierr := store.InsertTransaction(newTx)
		if ierr != nil {
			return ierr
		}
		updated, uerr := store.UpdateTransaction(inserted.TransactionID, TransactionUpdate{Status: StatusCompleted})
		if uerr != nil {
			return uerr
		}
		return store.AppendAudit(auditEntry(nil, "SYSTEM", "CREATE_UNSOLICITED_CREDIT", "TRANSACTION", updated.TransactionID.String(), OutcomeSuccess, JSONMap{"external_ref_id": event.ExternalRefID}, nil))
	})
}

// VerifySignature compares an HMAC-SHA256 digest in constant time, the way
// BTCPay's `BTCPay-Sig: sha256=<hex>` header is checked. header may or may
// not carry the "sha256=" prefix; both forms are accepted.
func VerifySignature(secret []byte, header string, body []byte) bool {
	if header == "" {
		return false
	}
	digest := strings.TrimPrefix(header, "sha256=")

	expected := hmac.New(sha256.New, secret)
	expected.Write(body)
	expectedHex := hex.EncodeToString(expected.Sum(nil))

	return subtle.ConstantTimeCompare([]byte(strings.ToLower(digest)), []byte(expectedHex)) == 1
}

// ParseBTCPayEvent maps a BTCPay Server invoice webhook payload onto a
// WebhookEvent, per §4.5's CryptoBtcAdapter event table.
func ParseBTCPayEvent(body []byte) (WebhookEvent, error) {
	var payload struct {
		Type      string `json:"type"`
		InvoiceID string `json:"invoiceId"`
		Data      struct {
			Amount  string `json:"amount"`
			Currency string `json:"currency"`
			Metadata struct {
				DestinationAddress string `json:"destinationAddress"`
			} `json:"metadata"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, err
	}

	event := WebhookEvent{
		EventType:       payload.Type,
		ExternalRefID:   payload.InvoiceID,
		Amount:          payload.Data.Amount,
		Currency:        payload.Data.Currency,
		DestinationAddr: payload.Data.Metadata.DestinationAddress,
	}

	switch payload.Type {
	case "InvoiceSettled":
		event.NewStatus = StatusCompleted
	case "InvoiceProcessing":
		event.NewStatus = StatusSubmitted
	case "InvoiceInvalid":
		event.NewStatus = StatusFailed
		event.RejectReason = "btcpay_invoice_invalid"
	case "InvoiceExpired":
		event.NewStatus = StatusExpired
	default:
		// NewStatus left empty: unknown event types are acknowledged, not acted on.
	}

	return event, nil
}

// ParseACHReturnEvent maps an NACHA return-file entry (R01, R02, ...) onto a
// WebhookEvent triggering the reversal path described in §4.5's AchAdapter.
func ParseACHReturnEvent(body []byte) (WebhookEvent, error) {
	var payload struct {
		TraceNumber string `json:"trace_number"`
		ReturnCode  string `json:"return_code"`
		Amount      string `json:"amount"`
		Currency    string `json:"currency"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return WebhookEvent{}, err
	}

	return WebhookEvent{
		EventType:     "ach_return",
		ExternalRefID: payload.TraceNumber,
		NewStatus:     StatusReturned,
		RejectReason:  payload.ReturnCode,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
	}, nil
}
