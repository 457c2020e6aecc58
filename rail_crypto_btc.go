package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// BTCPayClient is the narrow slice of the BTCPay Server Greenfield API the
// adapter needs: create an invoice for receives, look one up for status
// polling. Grounded on original_source's btcpay/client.rs.
type BTCPayClient struct {
	BaseURL string
	APIKey  string
	StoreID string
	http    *http.Client
}

func NewBTCPayClient(baseURL, apiKey, storeID string) *BTCPayClient {
	return &BTCPayClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		StoreID: storeID,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type btcpayInvoiceRequest struct {
	Amount   string         `json:"amount"`
	Currency string         `json:"currency"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type btcpayInvoice struct {
	ID           string `json:"id"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	CheckoutLink string `json:"checkoutLink"`
}

func (c *BTCPayClient) CreateInvoice(ctx context.Context, amount decimal.Decimal, currency, orderID string) (btcpayInvoice, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return btcpayInvoice{}, ValidationErrorf("invoice amount must be positive")
	}

	reqBody, err := json.Marshal(btcpayInvoiceRequest{
		Amount:   amount.String(),
		Currency: currency,
		Metadata: map[string]any{"orderId": orderID},
	})
	if err != nil {
		return btcpayInvoice{}, InternalErrorf("failed to encode btcpay invoice request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/stores/%s/invoices", c.BaseURL, c.StoreID)
	return c.do(ctx, http.MethodPost, url, reqBody)
}

func (c *BTCPayClient) GetInvoice(ctx context.Context, invoiceID string) (btcpayInvoice, error) {
	url := fmt.Sprintf("%s/api/v1/stores/%s/invoices/%s", c.BaseURL, c.StoreID, invoiceID)
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *BTCPayClient) do(ctx context.Context, method, url string, body []byte) (btcpayInvoice, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return btcpayInvoice{}, InternalErrorf("failed to build btcpay request: %w", err)
	}
	req.Header.Set("Authorization", "token "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return btcpayInvoice{}, ExternalServiceErrorf("btcpay request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return btcpayInvoice{}, ExternalServiceErrorf("failed to read btcpay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return btcpayInvoice{}, ExternalServiceErrorf("btcpay API error: status=%d body=%s", resp.StatusCode, respBody)
	}

	var invoice btcpayInvoice
	if err := json.Unmarshal(respBody, &invoice); err != nil {
		return btcpayInvoice{}, ExternalServiceErrorf("failed to parse btcpay invoice: %w", err)
	}
	return invoice, nil
}

// CryptoBtcAdapter implements RailAdapter for bitcoin settlement via
// BTCPay Server. Outbound sends and inbound receives both resolve through
// invoice creation; status updates arrive via the webhook path
// (ParseBTCPayEvent), not polling, except as a fallback in Query.
type CryptoBtcAdapter struct {
	client *BTCPayClient
	logger Logger
}

func NewCryptoBtcAdapter(client *BTCPayClient, logger Logger) *CryptoBtcAdapter {
	return &CryptoBtcAdapter{client: client, logger: logger.NewSystem("rail.crypto_btc")}
}

func (a *CryptoBtcAdapter) Name() string { return "crypto_btc" }

func (a *CryptoBtcAdapter) Submit(ctx context.Context, req PaymentRequest) (RailOutcome, error) {
	if req.CryptoDestAddress == "" {
		return RailOutcome{}, ValidationErrorf("crypto_btc submission requires CryptoDestAddress")
	}
	if err := ValidateBTCAddress(req.CryptoDestAddress); err != nil {
		return Rejected("invalid_btc_address", err.Error()), nil
	}

	invoice, err := a.client.CreateInvoice(ctx, req.Amount, req.Currency, req.TransactionID)
	if err != nil {
		return Retryable(err.Error()), nil
	}

	return AcceptedPendingWebhook(invoice.ID), nil
}

func (a *CryptoBtcAdapter) Query(ctx context.Context, externalRef string) (RailStatus, error) {
	invoice, err := a.client.GetInvoice(ctx, externalRef)
	if err != nil {
		return RailStatus{}, err
	}

	status := StatusSubmitted
	switch invoice.Status {
	case "Settled", "Complete":
		status = StatusCompleted
	case "Invalid":
		status = StatusFailed
	case "Expired":
		status = StatusExpired
	}
	return RailStatus{Status: status, ExternalRefID: invoice.ID, RawCode: invoice.Status}, nil
}
