package main

import (
	"context"
	"os"
)

// runReconcileCli polls every Submitted/Authorized transaction on a rail
// against that rail's adapter and drives its status forward, the offline
// counterpart to the webhook intake path (§4.7) for rails whose provider
// doesn't push events reliably.
// Usage: paymentcore reconcile <rail>
func runReconcileCli(logger Logger) {
	logger = logger.NewSystem("reconcile")
	if len(os.Args) != 3 {
		logger.Fatal("usage: paymentcore reconcile <rail>")
	}
	rail := os.Args[2]

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	db, err := ConnectToDB(config.DB, logger)
	if err != nil {
		logger.Fatal("failed to set up database", "error", err)
	}

	metrics := NewMetrics()
	ledger := NewLedgerStore(db)
	analytics := NewAnalyticsSink(256, metrics, logger)
	adapters := buildAdapters(config, ledger, logger)
	processor := NewPaymentProcessor(ledger, adapters, metrics, analytics, logger)

	adapter, ok := adapters[rail]
	if !ok {
		logger.Fatal("no adapter configured for rail", "rail", rail)
	}

	ctx := context.Background()
	pending, err := ledger.FindPendingByRail(rail)
	if err != nil {
		logger.Fatal("failed to list pending transactions", "rail", rail, "error", err)
	}

	logger.Info("reconciling pending transactions", "rail", rail, "count", len(pending))

	for _, tx := range pending {
		if tx.ExternalRefID == nil {
			continue
		}
		status, err := adapter.Query(ctx, *tx.ExternalRefID)
		if err != nil {
			logger.Warn("rail query failed", "transaction_id", tx.TransactionID, "error", err)
			continue
		}
		if status.Status == tx.Status {
			continue
		}

		if _, err := processor.UpdateStatus(ctx, tx.TransactionID, status.Status, tx.ExternalRefID, nil, nil); err != nil {
			logger.Warn("failed to apply reconciled status", "transaction_id", tx.TransactionID, "new_status", status.Status, "error", err)
			continue
		}
		logger.Info("reconciled transaction", "transaction_id", tx.TransactionID, "from", tx.Status, "to", status.Status)
	}
}
