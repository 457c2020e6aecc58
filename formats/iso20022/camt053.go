package iso20022

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// StatementEntry is a single reconciled line recovered from a camt.053
// BankToCustomerStatement, mapped onto the core's BankTransaction shape at
// the call site (gateway.go defines BankTransaction; this package stays
// free of a dependency on the root package).
type StatementEntry struct {
	EntryReference string
	Amount         string
	Currency       string
	CreditDebit    string // "CRDT" or "DBIT"
	BookingDate    time.Time
	ValueDate      time.Time
	AdditionalInfo string
}

type entryXML struct {
	Amt        amountXML `xml:"Amt"`
	CdtDbtInd  string    `xml:"CdtDbtInd"`
	BookgDt    dateXML   `xml:"BookgDt"`
	ValDt      dateXML   `xml:"ValDt"`
	NtryRef    string    `xml:"NtryRef"`
	AddtlNtryInf string  `xml:"AddtlNtryInf"`
}

type dateXML struct {
	Dt   string `xml:"Dt"`
	DtTm string `xml:"DtTm"`
}

func (d dateXML) parse() time.Time {
	if d.DtTm != "" {
		if t, err := time.Parse(time.RFC3339, d.DtTm); err == nil {
			return t
		}
	}
	if d.Dt != "" {
		if t, err := time.Parse("2006-01-02", d.Dt); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ParseCamt053 streams a BankToCustomerStatement document and returns its
// entries, using encoding/xml's token reader rather than unmarshalling the
// whole document, per §4.4's "streaming read" requirement.
func ParseCamt053(r io.Reader) ([]StatementEntry, error) {
	decoder := xml.NewDecoder(r)

	var entries []StatementEntry
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("camt.053 token read failed: %w", err)
		}

		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "Ntry" {
			continue
		}

		var raw entryXML
		if err := decoder.DecodeElement(&raw, &se); err != nil {
			return nil, fmt.Errorf("camt.053 entry decode failed: %w", err)
		}

		entries = append(entries, StatementEntry{
			EntryReference: raw.NtryRef,
			Amount:         raw.Amt.Value,
			Currency:       raw.Amt.Currency,
			CreditDebit:    raw.CdtDbtInd,
			BookingDate:    raw.BookgDt.parse(),
			ValueDate:      raw.ValDt.parse(),
			AdditionalInfo: raw.AddtlNtryInf,
		})
	}

	return entries, nil
}
