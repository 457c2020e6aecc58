package main

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupExportTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&User{}, &Wallet{}, &Transaction{}, &AuditLog{}))
	return db
}

func insertTestTransaction(t *testing.T, db *gorm.DB, userID uuid.UUID, txType TransactionType, currency string, amount int64) Transaction {
	t.Helper()
	tx := Transaction{
		Type:           txType,
		Status:         StatusCompleted,
		Amount:         decimal.NewFromInt(amount),
		CurrencyCode:   currency,
		InitiatingUser: &userID,
	}
	require.NoError(t, db.Create(&tx).Error)
	return tx
}

func TestTransactionExporter_ExportToCSV(t *testing.T) {
	db := setupExportTestDB(t)
	logger := NewSystemLogger(nil)
	exporter := NewTransactionExporter(db, logger)

	userID := uuid.New()
	otherUserID := uuid.New()

	insertTestTransaction(t, db, userID, TxAchCredit, "USD", 100)
	insertTestTransaction(t, db, userID, TxWireOutbound, "EUR", 50)
	insertTestTransaction(t, db, userID, TxAchDebit, "USD", 25)
	insertTestTransaction(t, db, otherUserID, TxAchCredit, "USD", 999)

	t.Run("Export", func(t *testing.T) {
		var buf bytes.Buffer
		options := ExportOptions{UserID: userID.String()}

		err := exporter.ExportToCSV(&buf, options)
		require.NoError(t, err)

		reader := csv.NewReader(&buf)
		records, err := reader.ReadAll()
		require.NoError(t, err)

		require.Len(t, records, 4) // header + 3 transactions
		expectedHeader := []string{"TransactionID", "Type", "Status", "DebitWalletID", "CreditWalletID", "CurrencyCode", "Amount", "ExternalRefID", "CreatedAt"}
		require.Equal(t, expectedHeader, records[0])

		var foundCredit, foundWire, foundDebit bool
		for _, record := range records[1:] {
			switch record[1] {
			case string(TxAchCredit):
				require.Equal(t, "USD", record[5])
				require.Equal(t, "100", record[6])
				foundCredit = true
			case string(TxWireOutbound):
				require.Equal(t, "EUR", record[5])
				require.Equal(t, "50", record[6])
				foundWire = true
			case string(TxAchDebit):
				require.Equal(t, "USD", record[5])
				require.Equal(t, "25", record[6])
				foundDebit = true
			}
		}
		require.True(t, foundCredit)
		require.True(t, foundWire)
		require.True(t, foundDebit)
	})

	t.Run("ExportWithCurrencyFilter", func(t *testing.T) {
		var buf bytes.Buffer
		options := ExportOptions{UserID: userID.String(), CurrencyCode: "USD"}

		err := exporter.ExportToCSV(&buf, options)
		require.NoError(t, err)

		reader := csv.NewReader(&buf)
		records, err := reader.ReadAll()
		require.NoError(t, err)

		require.Len(t, records, 3) // header + 2 USD transactions
		for _, record := range records[1:] {
			require.Equal(t, "USD", record[5])
		}
	})

	t.Run("ExportWithTypeFilter", func(t *testing.T) {
		var buf bytes.Buffer
		txType := TxWireOutbound
		options := ExportOptions{UserID: userID.String(), TxType: &txType}

		err := exporter.ExportToCSV(&buf, options)
		require.NoError(t, err)

		reader := csv.NewReader(&buf)
		records, err := reader.ReadAll()
		require.NoError(t, err)

		require.Len(t, records, 2)
		require.Equal(t, string(TxWireOutbound), records[1][1])
	})

	t.Run("ExportNoTransactions", func(t *testing.T) {
		var buf bytes.Buffer
		options := ExportOptions{UserID: uuid.New().String()}

		err := exporter.ExportToCSV(&buf, options)
		require.NoError(t, err)

		reader := csv.NewReader(&buf)
		records, err := reader.ReadAll()
		require.NoError(t, err)

		require.Len(t, records, 1)
	})

	t.Run("ExportInvalidUserID", func(t *testing.T) {
		var buf bytes.Buffer
		options := ExportOptions{UserID: "not-a-uuid"}

		err := exporter.ExportToCSV(&buf, options)
		require.Error(t, err)
	})
}
