package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"gorm.io/gorm"
)

// ExportOptions restricts a CSV export to a user and, optionally, a
// currency and transaction type.
type ExportOptions struct {
	UserID       string
	CurrencyCode string
	TxType       *TransactionType
	OutputDir    string
}

// TransactionExporter writes Transaction rows to CSV, applying the same
// filters a user-facing statement export would.
type TransactionExporter struct {
	db     *gorm.DB
	logger Logger
}

func NewTransactionExporter(db *gorm.DB, logger Logger) *TransactionExporter {
	return &TransactionExporter{db: db, logger: logger.NewSystem("export-transactions")}
}

func (e *TransactionExporter) query(options ExportOptions) ([]Transaction, error) {
	userID, err := uuid.Parse(options.UserID)
	if err != nil {
		return nil, ValidationErrorf("invalid user id %q: %w", options.UserID, err)
	}

	q := e.db.Where("initiating_user_id = ?", userID)
	if options.CurrencyCode != "" {
		q = q.Where("currency_code = ?", options.CurrencyCode)
	}
	if options.TxType != nil {
		q = q.Where("transaction_type = ?", *options.TxType)
	}

	var transactions []Transaction
	if err := q.Order("created_at").Find(&transactions).Error; err != nil {
		return nil, InternalErrorf("failed to query transactions: %w", err)
	}
	return transactions, nil
}

// ExportToCSV writes every matching transaction to writer.
func (e *TransactionExporter) ExportToCSV(writer io.Writer, options ExportOptions) error {
	transactions, err := e.query(options)
	if err != nil {
		return err
	}

	csvWriter := csv.NewWriter(writer)
	defer csvWriter.Flush()

	header := []string{"TransactionID", "Type", "Status", "DebitWalletID", "CreditWalletID", "CurrencyCode", "Amount", "ExternalRefID", "CreatedAt"}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, tx := range transactions {
		row := []string{
			tx.TransactionID.String(),
			string(tx.Type),
			string(tx.Status),
			walletIDString(tx.DebitWalletID),
			walletIDString(tx.CreditWalletID),
			tx.CurrencyCode,
			tx.Amount.String(),
			stringOrEmpty(tx.ExternalRefID),
			tx.CreatedAt.Format(time.RFC3339),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// ExportToFile writes the CSV to a file under options.OutputDir and returns
// its path.
func (e *TransactionExporter) ExportToFile(options ExportOptions) (string, error) {
	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", options.OutputDir, err)
	}

	fileName := filepath.Join(options.OutputDir, fmt.Sprintf("transactions_%s.csv", options.UserID))
	file, err := os.Create(fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file %s: %w", fileName, err)
	}
	defer file.Close()

	if err := e.ExportToCSV(file, options); err != nil {
		return "", fmt.Errorf("failed to export to CSV: %w", err)
	}
	return fileName, nil
}

// PrintSummary renders a short tabular summary to stdout alongside the CSV
// export, the way the teacher's CLI tooling gave an at-a-glance view before
// pointing the operator at the full export file.
func (e *TransactionExporter) PrintSummary(options ExportOptions) error {
	transactions, err := e.query(options)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Type", "Status", "Currency", "Amount", "Created"})
	for _, tx := range transactions {
		table.Append([]string{
			string(tx.Type),
			string(tx.Status),
			tx.CurrencyCode,
			tx.Amount.String(),
			tx.CreatedAt.Format(time.RFC3339),
		})
	}
	table.Render()
	return nil
}

func walletIDString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func runExportTransactionsCli(logger Logger) {
	logger = logger.NewSystem("export-transactions")
	if len(os.Args) < 3 || len(os.Args) > 5 {
		logger.Fatal("usage: paymentcore export-transactions <userID> [currency] [txType]")
	}

	userID := os.Args[2]

	var currencyCode string
	var txType *TransactionType

	if len(os.Args) > 3 {
		currencyCode = os.Args[3]
	}
	if len(os.Args) > 4 {
		parsed := TransactionType(os.Args[4])
		txType = &parsed
	}

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	db, err := ConnectToDB(config.DB, logger)
	if err != nil {
		logger.Fatal("failed to set up database", "error", err)
	}

	exporter := NewTransactionExporter(db, logger)
	options := ExportOptions{
		UserID:       userID,
		CurrencyCode: currencyCode,
		TxType:       txType,
		OutputDir:    "csv_export",
	}

	if err := exporter.PrintSummary(options); err != nil {
		logger.Fatal("failed to print summary", "error", err)
	}

	fileName, err := exporter.ExportToFile(options)
	if err != nil {
		logger.Fatal("failed to export transactions", "error", err)
	}
	logger.Info("successfully exported transactions", "file", fileName)
}
