package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elightspay/paymentcore/pkg/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := NewSystemLogger(log.NewZapLogger(log.Config{Format: "console", Level: log.LevelInfo, Output: "stderr"}))

	if len(os.Args) > 1 {
		runCli(logger, os.Args[1])
		return
	}

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
	intake := NewWebhookIntake(processor, ledger, metrics, logger)
	registerWebhookProviders(intake, config)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhooks/", webhookHandler(intake, logger))

	listenAddr := ":8080"
	server := &http.Server{Addr: listenAddr, Handler: mux}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: ":4242", Handler: metricsMux}

	go func() {
		logger.Info("webhook server listening", "addr", listenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("webhook server failure", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server listening", "addr", ":4242")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	go metrics.RecordMetricsPeriodically(db, logger)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down webhook server", "error", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	analytics.Close()
	logger.Info("shutdown complete")
}

// buildAdapters wires one RailAdapter per rail named in railForType, using
// whatever external clients the loaded config makes available. A rail
// whose client cannot be constructed (e.g. BTCPay not configured) is
// simply omitted; ProcessOutbound requests to it fail with an
// ExternalService error instead of panicking at startup.
func buildAdapters(config *Config, ledger *LedgerStore, logger Logger) map[string]RailAdapter {
	adapters := make(map[string]RailAdapter)

	adapters["ach"] = NewAchAdapter("00000000", &stubAchPort{}, logger)
	adapters["wire"] = NewWireAdapter("Elightspay Operating Account", "US00ELIGHTSPAY0000000000", "ELGTUS33XXX", &stubWirePort{}, logger)
	adapters["card"] = NewCardAdapter(&MockPaymentGateway{}, ledger, logger)

	if config.BTCPayURL != "" {
		btcClient := NewBTCPayClient(config.BTCPayURL, config.BTCPayAPIKey, config.BTCPayDefaultStoreID)
		adapters["crypto_btc"] = NewCryptoBtcAdapter(btcClient, logger)
	}
	if config.MoneroWalletRPC != "" {
		xmrClient := NewMoneroWalletClient(config.MoneroWalletRPC, config.MoneroWalletUser, config.MoneroWalletPassword)
		adapters["crypto_xmr"] = NewCryptoXmrAdapter(xmrClient, logger)
	}

	return adapters
}

// registerWebhookProviders wires the intake's known providers. BTCPay's
// secret doubles as its webhook HMAC key; ACH returns arrive through a
// bank-specific channel keyed the same way as its API key.
func registerWebhookProviders(intake *WebhookIntake, config *Config) {
	if config.BTCPayAPIKey != "" {
		intake.RegisterProvider("btcpay", []byte(config.BTCPayAPIKey), ParseBTCPayEvent)
	}
	for bank, key := range config.BankAPIKeys {
		intake.RegisterProvider(bank+"_ach_returns", []byte(key), ParseACHReturnEvent)
	}
}

func webhookHandler(intake *WebhookIntake, logger Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.URL.Path[len("/webhooks/"):]
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		sig := r.Header.Get("BTCPay-Sig")
		if sig == "" {
			sig = r.Header.Get("X-Signature")
		}

		if err := intake.Handle(r.Context(), provider, sig, body); err != nil {
			if IsKind(err, KindAuth) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			logger.Error("webhook handling failed", "provider", provider, "error", err)
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func runCli(logger Logger, name string) {
	switch name {
	case "reconcile":
		runReconcileCli(logger)
	case "export-transactions":
		runExportTransactionsCli(logger)
	default:
		logger.Fatal("unknown CLI command", "name", name)
	}
}

// stubAchPort and stubWirePort satisfy AchOutboundPort/WireOutboundPort
// until a real ODFI/correspondent transport is configured; both rails are
// abstract boundaries per §4.5, so the core ships a safe no-op rather than
// guessing at a vendor integration.
type stubAchPort struct{}

func (stubAchPort) SubmitEntry(ctx context.Context, record string) (string, error) {
	return "", ExternalServiceErrorf("no ACH outbound transport configured")
}

func (stubAchPort) QueryEntry(ctx context.Context, traceNumber string) (RailStatus, error) {
	return RailStatus{}, ExternalServiceErrorf("no ACH outbound transport configured")
}

type stubWirePort struct{}

func (stubWirePort) SubmitMessage(ctx context.Context, uetr string, message []byte) error {
	return ExternalServiceErrorf("no wire outbound transport configured")
}

func (stubWirePort) QueryMessage(ctx context.Context, uetr string) (RailStatus, error) {
	return RailStatus{}, ExternalServiceErrorf("no wire outbound transport configured")
}
