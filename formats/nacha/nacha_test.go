package nacha

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validEntry() EntryDetail {
	return EntryDetail{
		TransactionCode: CheckingCredit,
		RoutingNumber:   "021000021",
		AccountNumber:   "1234567890",
		Amount:          12550,
		IndividualID:    "EMP001",
		IndividualName:  "JANE DOE",
		SECCode:         SECPPD,
		TraceNumber:     "021000021000001",
	}
}

func TestEntryDetail_Validate(t *testing.T) {
	require.NoError(t, validEntry().Validate())
}

func TestEntryDetail_Validate_RejectsUnsupportedSECCode(t *testing.T) {
	e := validEntry()
	e.SECCode = "WEB"
	require.Error(t, e.Validate())
}

func TestEntryDetail_Validate_RejectsBadRoutingLength(t *testing.T) {
	e := validEntry()
	e.RoutingNumber = "123"
	require.Error(t, e.Validate())
}

func TestEntryDetail_Validate_RejectsNegativeAmount(t *testing.T) {
	e := validEntry()
	e.Amount = -1
	require.Error(t, e.Validate())
}

func TestBuildEntryDetail_FixedWidth(t *testing.T) {
	record, err := BuildEntryDetail(validEntry())
	require.NoError(t, err)
	require.Len(t, record, 94)
	require.True(t, record[0] == '6')
	require.Equal(t, "22", record[1:3])
	require.Equal(t, "021000021", record[3:12])
}

func TestBuildEntryDetail_RejectsInvalidEntry(t *testing.T) {
	e := validEntry()
	e.TraceNumber = "123"
	_, err := BuildEntryDetail(e)
	require.Error(t, err)
}

func TestBuildAddenda_FixedWidth(t *testing.T) {
	line := BuildAddenda(1, "invoice 42")
	require.Len(t, line, 1+2+80+4)
	require.Equal(t, "7", line[0:1])
	require.Equal(t, "05", line[1:3])
}

func TestFileHeader(t *testing.T) {
	creation := time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC)
	header := FileHeader("1234567890", "0987654321", "A", creation)
	require.Equal(t, "101", header[0:3])
}

func TestBatchHeader(t *testing.T) {
	effective := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	header := BatchHeader("Elightspay", "1234567890", SECPPD, "PAYROLL", effective, "00000001")
	require.Equal(t, "5200", header[0:4])
}
