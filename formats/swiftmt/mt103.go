// Package swiftmt builds the fixed-block SWIFT MT103 message format.
package swiftmt

import (
	"fmt"
	"strings"
	"time"
)

// ChargesOption restricts Field 71A to the three SWIFT-defined values.
type ChargesOption string

const (
	ChargesBEN ChargesOption = "BEN"
	ChargesOUR ChargesOption = "OUR"
	ChargesSHA ChargesOption = "SHA"
)

// MT103 carries every field format_mt103 needs.
type MT103 struct {
	SenderReference      string // Field 20, <=16 chars, no leading/trailing/double slash
	BankOperationCode    string // Field 23B, e.g. "CRED"
	ValueDate            time.Time
	Currency             string
	Amount               string // decimal string with '.' separator; converted to ',' on render
	DebtorOption         string // "K" or "F"
	DebtorIdentifier     string
	DebtorAddressLines   []string // max 4
	CorrespondentBIC     string   // Field 54A, optional
	BeneficiaryBankBIC   string   // Field 57A, 8 or 11 chars
	BeneficiaryOption    string   // "" or "A"
	BeneficiaryIdentifier string
	BeneficiaryAddressLines []string // max 4
	RemittanceLines      []string // max 4, <=35 chars each
	ChargesOption        ChargesOption
	UETR                 string
}

// Build renders the MT103 message, validating the fields §4.4 calls out
// explicitly. Line terminator is CRLF within block 4, per the SWIFT FIN
// wire format.
func Build(m MT103) (string, error) {
	if len(m.SenderReference) > 16 || strings.Contains(m.SenderReference, "//") ||
		strings.HasPrefix(m.SenderReference, "/") || strings.HasSuffix(m.SenderReference, "/") {
		return "", fmt.Errorf("invalid sender reference (field 20): %q", m.SenderReference)
	}
	if len(m.BeneficiaryBankBIC) != 8 && len(m.BeneficiaryBankBIC) != 11 {
		return "", fmt.Errorf("invalid beneficiary bank BIC (field 57A): %q", m.BeneficiaryBankBIC)
	}
	if m.ChargesOption != ChargesBEN && m.ChargesOption != ChargesOUR && m.ChargesOption != ChargesSHA {
		return "", fmt.Errorf("invalid charges option (field 71A): %q", m.ChargesOption)
	}
	for _, l := range m.RemittanceLines {
		if len(l) > 35 {
			return "", fmt.Errorf("remittance line exceeds 35 characters: %q", l)
		}
	}
	if len(m.RemittanceLines) > 4 {
		return "", fmt.Errorf("remittance information exceeds 4 lines")
	}

	var b strings.Builder
	crlf := "\r\n"

	b.WriteString(fmt.Sprintf("{3:{121:%s}}", m.UETR))
	b.WriteString(crlf)
	b.WriteString("{4:")
	b.WriteString(crlf)

	b.WriteString(fmt.Sprintf(":20:%s", m.SenderReference))
	b.WriteString(crlf)
	b.WriteString(fmt.Sprintf(":23B:%s", m.BankOperationCode))
	b.WriteString(crlf)

	dateStr := m.ValueDate.Format("060102")
	amountStr := strings.ReplaceAll(m.Amount, ".", ",")
	b.WriteString(fmt.Sprintf(":32A:%s%s%s", dateStr, m.Currency, amountStr))
	b.WriteString(crlf)

	debtorOpt := m.DebtorOption
	if debtorOpt == "" {
		debtorOpt = "K"
	}
	b.WriteString(fmt.Sprintf(":50%s:%s", debtorOpt, m.DebtorIdentifier))
	b.WriteString(crlf)
	for _, l := range firstN(m.DebtorAddressLines, 4) {
		b.WriteString(l)
		b.WriteString(crlf)
	}

	if m.CorrespondentBIC != "" {
		b.WriteString(fmt.Sprintf(":54A:%s", m.CorrespondentBIC))
		b.WriteString(crlf)
	}

	b.WriteString(fmt.Sprintf(":57A:%s", m.BeneficiaryBankBIC))
	b.WriteString(crlf)

	if m.BeneficiaryOption == "A" {
		b.WriteString(":59A:")
	} else {
		b.WriteString(":59:")
	}
	b.WriteString(m.BeneficiaryIdentifier)
	b.WriteString(crlf)
	for _, l := range firstN(m.BeneficiaryAddressLines, 4) {
		b.WriteString(l)
		b.WriteString(crlf)
	}

	if len(m.RemittanceLines) > 0 {
		b.WriteString(":70:")
		b.WriteString(m.RemittanceLines[0])
		b.WriteString(crlf)
		for _, l := range firstN(m.RemittanceLines[1:], 3) {
			b.WriteString(l)
			b.WriteString(crlf)
		}
	}

	b.WriteString(fmt.Sprintf(":71A:%s", m.ChargesOption))
	b.WriteString(crlf)
	b.WriteString("-}")
	b.WriteString(crlf)

	return b.String(), nil
}

func firstN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[:n]
}
