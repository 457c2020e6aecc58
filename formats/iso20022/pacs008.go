// Package iso20022 builds and parses the ISO 20022 message subset the
// engine needs: pacs.008 (FIToFICustomerCreditTransfer) for outbound wires,
// and camt.053 (BankToCustomerStatement) for reconciliation.
package iso20022

import (
	"encoding/xml"
	"fmt"
	"time"
)

// CreditTransfer carries the fields needed to build one CdtTrfTxInf block.
type CreditTransfer struct {
	InstructionID      string
	EndToEndID         string
	TransactionID      string
	UETR               string
	Currency           string
	Amount             string // decimal string, currency-precision already applied
	DebtorName         string
	DebtorIBAN         string
	DebtorAgentBIC     string
	CreditorAgentBIC   string
	CreditorName       string
	CreditorIBAN       string
	RemittanceInfo     string
}

type pacs008Document struct {
	XMLName xml.Name  `xml:"Document"`
	Xmlns   string    `xml:"xmlns,attr"`
	FICdt   fiCdtTrfWrapper `xml:"FIToFICstmrCdtTrf"`
}

type fiCdtTrfWrapper struct {
	GrpHdr  groupHeader       `xml:"GrpHdr"`
	CdtTrfs []creditTransferXML `xml:"CdtTrfTxInf"`
}

type groupHeader struct {
	MsgID    string `xml:"MsgId"`
	CreDtTm  string `xml:"CreDtTm"`
	NbOfTxs  int    `xml:"NbOfTxs"`
}

type creditTransferXML struct {
	PmtID          pmtID      `xml:"PmtId"`
	IntrBkSttlmAmt amountXML  `xml:"IntrBkSttlmAmt"`
	Dbtr           party      `xml:"Dbtr"`
	DbtrAcct       account    `xml:"DbtrAcct"`
	DbtrAgt        agent      `xml:"DbtrAgt"`
	CdtrAgt        agent      `xml:"CdtrAgt"`
	Cdtr           party      `xml:"Cdtr"`
	CdtrAcct       account    `xml:"CdtrAcct"`
	RmtInf         *remittance `xml:"RmtInf,omitempty"`
}

type pmtID struct {
	InstrID    string `xml:"InstrId"`
	EndToEndID string `xml:"EndToEndId"`
	TxID       string `xml:"TxId"`
	UETR       string `xml:"UETR"`
}

type amountXML struct {
	Currency string `xml:"Ccy,attr"`
	Value    string `xml:",chardata"`
}

type party struct {
	Name string `xml:"Nm"`
}

type account struct {
	IBAN string `xml:"Id>IBAN"`
}

type agent struct {
	BICFI string `xml:"FinInstnId>BICFI"`
}

type remittance struct {
	Unstructured string `xml:"Ustrd,omitempty"`
}

// BuildPacs008 renders a single-transaction pacs.008 message. now is
// injected by the caller rather than read internally, since this package
// must stay free of wall-clock calls to remain a pure function over its
// input.
func BuildPacs008(ct CreditTransfer, msgID string, now time.Time) ([]byte, error) {
	if ct.Currency == "" || ct.Amount == "" {
		return nil, fmt.Errorf("currency and amount are required")
	}

	var rmt *remittance
	if ct.RemittanceInfo != "" {
		rmt = &remittance{Unstructured: ct.RemittanceInfo}
	}

	doc := pacs008Document{
		Xmlns: "urn:iso:std:iso:20022:tech:xsd:pacs.008.001.08",
		FICdt: fiCdtTrfWrapper{
			GrpHdr: groupHeader{
				MsgID:   msgID,
				CreDtTm: now.UTC().Format(time.RFC3339),
				NbOfTxs: 1,
			},
			CdtTrfs: []creditTransferXML{{
				PmtID: pmtID{
					InstrID:    ct.InstructionID,
					EndToEndID: ct.EndToEndID,
					TxID:       ct.TransactionID,
					UETR:       ct.UETR,
				},
				IntrBkSttlmAmt: amountXML{Currency: ct.Currency, Value: ct.Amount},
				Dbtr:           party{Name: ct.DebtorName},
				DbtrAcct:       account{IBAN: ct.DebtorIBAN},
				DbtrAgt:        agent{BICFI: ct.DebtorAgentBIC},
				CdtrAgt:        agent{BICFI: ct.CreditorAgentBIC},
				Cdtr:           party{Name: ct.CreditorName},
				CdtrAcct:       account{IBAN: ct.CreditorIBAN},
				RmtInf:         rmt,
			}},
		},
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pacs.008 document: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
