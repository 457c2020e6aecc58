package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// jsonRPCRequest/jsonRPCResponse mirror the generic JSON-RPC 2.0 envelope
// the Monero wallet RPC speaks, grounded on original_source's
// monero_wallet/json_rpc.rs.
type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error"`
}

type jsonRPCError struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// moneroRPCError marks a JSON-RPC application-level error returned inside a
// successful HTTP response: the wallet processed the request and rejected
// it (e.g. "not enough money"). Retrying an identical request would get the
// same rejection, so this is a terminal outcome, not a transient one.
type moneroRPCError struct {
	Code    int64
	Message string
}

func (e *moneroRPCError) Error() string { return e.Message }

// MoneroWalletClient calls a monero-wallet-rpc instance over JSON-RPC 2.0.
type MoneroWalletClient struct {
	RPCURL   string
	User     string
	Password string
	http     *http.Client
}

func NewMoneroWalletClient(rpcURL, user, password string) *MoneroWalletClient {
	return &MoneroWalletClient{
		RPCURL:   rpcURL,
		User:     user,
		Password: password,
		http:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *MoneroWalletClient) call(ctx context.Context, method string, params, result any) error {
	reqBody, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: "0", Method: method, Params: params})
	if err != nil {
		return InternalErrorf("failed to encode monero rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.RPCURL+"/json_rpc", bytes.NewReader(reqBody))
	if err != nil {
		return InternalErrorf("failed to build monero rpc request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.User != "" {
		req.SetBasicAuth(c.User, c.Password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return ExternalServiceErrorf("monero rpc request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExternalServiceErrorf("failed to read monero rpc response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ExternalServiceErrorf("monero rpc HTTP error: status=%d body=%s", resp.StatusCode, body)
	}

	var rpcResp jsonRPCResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return ExternalServiceErrorf("failed to parse monero rpc envelope: %w", err)
	}
	if rpcResp.Error != nil {
		return ExternalServiceErrorf("monero rpc error %d: %w", rpcResp.Error.Code, &moneroRPCError{Code: rpcResp.Error.Code, Message: rpcResp.Error.Message})
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, result); err != nil {
		return ExternalServiceErrorf("failed to parse monero rpc result: %w", err)
	}
	return nil
}

func (c *MoneroWalletClient) GetBalance(ctx context.Context) (uint64, uint64, error) {
	var result struct {
		Balance         uint64 `json:"balance"`
		UnlockedBalance uint64 `json:"unlocked_balance"`
	}
	if err := c.call(ctx, "get_balance", struct{}{}, &result); err != nil {
		return 0, 0, err
	}
	return result.Balance, result.UnlockedBalance, nil
}

func (c *MoneroWalletClient) GetAddress(ctx context.Context, accountIndex uint32) (string, error) {
	var result struct {
		Address string `json:"address"`
	}
	if err := c.call(ctx, "get_address", map[string]any{"account_index": accountIndex}, &result); err != nil {
		return "", err
	}
	return result.Address, nil
}

type moneroDestination struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

func (c *MoneroWalletClient) Transfer(ctx context.Context, destAddress string, atomicAmount uint64) (string, error) {
	var result struct {
		TxHash string `json:"tx_hash"`
	}
	params := map[string]any{
		"destinations":  []moneroDestination{{Amount: atomicAmount, Address: destAddress}},
		"account_index": 0,
		"get_tx_key":    true,
	}
	if err := c.call(ctx, "transfer", params, &result); err != nil {
		return "", err
	}
	return result.TxHash, nil
}

// GetTransferByTxID reports a transfer's confirmation depth. 0 means the
// transfer is still in the mempool.
func (c *MoneroWalletClient) GetTransferByTxID(ctx context.Context, txID string) (confirmations uint64, err error) {
	var result struct {
		Transfer struct {
			Confirmations uint64 `json:"confirmations"`
		} `json:"transfer"`
	}
	if err := c.call(ctx, "get_transfer_by_txid", map[string]any{"txid": txID}, &result); err != nil {
		return 0, err
	}
	return result.Transfer.Confirmations, nil
}

// CryptoXmrAdapter implements RailAdapter for monero settlement. There is
// no webhook path for XMR (§4.5): status is recovered only by polling
// get_transfer_by_txid through Query, so the processor always submits
// these synchronously.
type CryptoXmrAdapter struct {
	client *MoneroWalletClient
	logger Logger
}

func NewCryptoXmrAdapter(client *MoneroWalletClient, logger Logger) *CryptoXmrAdapter {
	return &CryptoXmrAdapter{client: client, logger: logger.NewSystem("rail.crypto_xmr")}
}

func (a *CryptoXmrAdapter) Name() string { return "crypto_xmr" }

func (a *CryptoXmrAdapter) Submit(ctx context.Context, req PaymentRequest) (RailOutcome, error) {
	if req.CryptoDestAddress == "" {
		return RailOutcome{}, ValidationErrorf("crypto_xmr submission requires CryptoDestAddress")
	}
	if err := ValidateXMRAddress(req.CryptoDestAddress); err != nil {
		return Rejected("invalid_xmr_address", err.Error()), nil
	}

	atomic, err := XMRToAtomic(req.Amount)
	if err != nil {
		return Rejected("invalid_amount", err.Error()), nil
	}

	txHash, err := a.client.Transfer(ctx, req.CryptoDestAddress, atomic)
	if err != nil {
		var rpcErr *moneroRPCError
		if errors.As(err, &rpcErr) {
			return Rejected(fmt.Sprintf("monero_rpc_error_%d", rpcErr.Code), rpcErr.Message), nil
		}
		return Retryable(err.Error()), nil
	}

	return Accepted(txHash), nil
}

// xmrConfirmationThreshold is the depth at which a monero transfer is
// treated as final, matching the wallet's default unlock behavior for a
// standard (non-coinbase) output.
const xmrConfirmationThreshold = 10

func (a *CryptoXmrAdapter) Query(ctx context.Context, externalRef string) (RailStatus, error) {
	confirmations, err := a.client.GetTransferByTxID(ctx, externalRef)
	if err != nil {
		return RailStatus{}, err
	}

	status := StatusSubmitted
	if confirmations >= xmrConfirmationThreshold {
		status = StatusCompleted
	}
	return RailStatus{Status: status, ExternalRefID: externalRef}, nil
}
