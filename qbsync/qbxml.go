package qbsync

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
)

const qbxmlVersion = "16.0"

// xmlEscape sanitizes a value for embedding in a qbXML request: illegal
// XML 1.0 code points are stripped first, then the usual five are escaped.
func xmlEscape(s string) string {
	s = utils.StripIllegalXMLChars(s)
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}

func qbxmlEnvelope(inner string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<?qbxml version=%q?>
<QBXML>
  <QBXMLMsgsRq onError="continueOnError">
%s
  </QBXMLMsgsRq>
</QBXML>`, qbxmlVersion, inner)
}

func buildInvoiceQuery(refNumber string) string {
	return qbxmlEnvelope(fmt.Sprintf(`    <InvoiceQueryRq>
      <RefNumber>%s</RefNumber>
      <OwnerID>0</OwnerID>
    </InvoiceQueryRq>`, xmlEscape(refNumber)))
}

func buildReceivePaymentQuery() string {
	return qbxmlEnvelope(`    <ReceivePaymentQueryRq>
      <IncludeLineItems>false</IncludeLineItems>
    </ReceivePaymentQueryRq>`)
}

func buildReceivePaymentAdd(term models.PaymentTermRecord, allocation models.Allocation) string {
	var applied strings.Builder
	for _, line := range allocation.Lines {
		fmt.Fprintf(&applied, `      <AppliedToTxnAdd>
        <TxnID>%s</TxnID>
        <PaymentAmount>%s</PaymentAmount>
      </AppliedToTxnAdd>
`, xmlEscape(line.InvoiceTxnID), utils.QBAmount(line.AppliedAmount))
	}

	memo := term.Memo
	if memo == "" {
		memo = term.RecordKey
	}

	return qbxmlEnvelope(fmt.Sprintf(`    <ReceivePaymentAddRq>
      <ReceivePaymentAdd>
        <CustomerRef>
          <FullName>%s</FullName>
        </CustomerRef>
        <TxnDate>%s</TxnDate>
        <TotalAmount>%s</TotalAmount>
        <Memo>%s</Memo>
%s      </ReceivePaymentAdd>
    </ReceivePaymentAddRq>`,
		xmlEscape(term.Customer),
		utils.QBDate(term.TransactionDate),
		utils.QBAmount(allocation.Total),
		xmlEscape(memo),
		applied.String()))
}

// Response envelope. QuickBooks reports per-request status in attributes;
// statusCode 0 is success, 1 is "no match" on queries.
type qbxmlResponse struct {
	XMLName xml.Name    `xml:"QBXML"`
	MsgsRs  qbxmlMsgsRs `xml:"QBXMLMsgsRs"`
}

type qbxmlMsgsRs struct {
	InvoiceQueryRs        *invoiceQueryRs        `xml:"InvoiceQueryRs"`
	ReceivePaymentQueryRs *receivePaymentQueryRs `xml:"ReceivePaymentQueryRs"`
	ReceivePaymentAddRs   *receivePaymentAddRs   `xml:"ReceivePaymentAddRs"`
}

type responseStatus struct {
	StatusCode     int    `xml:"statusCode,attr"`
	StatusSeverity string `xml:"statusSeverity,attr"`
	StatusMessage  string `xml:"statusMessage,attr"`
}

const statusCodeNoMatch = 1

func (s responseStatus) failed() bool {
	return s.StatusCode != 0 && s.StatusCode != statusCodeNoMatch
}

type invoiceQueryRs struct {
	responseStatus
	Invoices []invoiceRet `xml:"InvoiceRet"`
}

type invoiceRet struct {
	TxnID            string `xml:"TxnID"`
	TimeCreated      string `xml:"TimeCreated"`
	TxnDate          string `xml:"TxnDate"`
	RefNumber        string `xml:"RefNumber"`
	BalanceRemaining string `xml:"BalanceRemaining"`
	IsPaid           string `xml:"IsPaid"`
}

type receivePaymentQueryRs struct {
	responseStatus
	Payments []receivePaymentRet `xml:"ReceivePaymentRet"`
}

type receivePaymentRet struct {
	TxnID       string `xml:"TxnID"`
	TxnDate     string `xml:"TxnDate"`
	RefNumber   string `xml:"RefNumber"`
	Memo        string `xml:"Memo"`
	TotalAmount string `xml:"TotalAmount"`
	CustomerRef struct {
		FullName string `xml:"FullName"`
	} `xml:"CustomerRef"`
}

type receivePaymentAddRs struct {
	responseStatus
	Payment *receivePaymentRet `xml:"ReceivePaymentRet"`
}

func parseQBXMLResponse(body []byte) (*qbxmlResponse, error) {
	var parsed qbxmlResponse
	if err := xml.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed qbXML response: %w", err)
	}
	return &parsed, nil
}

// toOpenInvoice converts one InvoiceRet. Balance parsing failures surface the
// raw value; date parsing failures degrade to a nil date so the invoice still
// allocates, just last.
func (inv invoiceRet) toOpenInvoice() (models.OpenInvoice, error) {
	balance, err := utils.ParseDecimal(inv.BalanceRemaining)
	if err != nil {
		return models.OpenInvoice{}, fmt.Errorf("invoice %s: balance remaining: %w", inv.TxnID, err)
	}
	open := models.OpenInvoice{
		TxnID:            inv.TxnID,
		RefNumber:        inv.RefNumber,
		BalanceRemaining: balance,
		IsPaid:           strings.EqualFold(strings.TrimSpace(inv.IsPaid), "true"),
	}
	if raw := strings.TrimSpace(inv.TxnDate); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			open.TxnDate = &t
		}
	}
	if raw := strings.TrimSpace(inv.TimeCreated); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			open.TimeCreated = &t
		}
	}
	return open, nil
}

// toPaymentTermRecord converts a ledger payment into the comparable record
// shape. The memo carries the workbook record key; a payment without one
// cannot be matched and is skipped by the caller.
func (pay receivePaymentRet) toPaymentTermRecord() models.PaymentTermRecord {
	record := models.PaymentTermRecord{
		RecordKey:     utils.NormalizeRecordKey(pay.Memo),
		Customer:      pay.CustomerRef.FullName,
		InvoiceNumber: pay.RefNumber,
		Memo:          pay.Memo,
		Origin:        models.RecordOriginLedger,
	}
	if amount, err := utils.ParseDecimal(pay.TotalAmount); err == nil {
		record.Amount.Decimal = amount
		record.Amount.Valid = true
	}
	if raw := strings.TrimSpace(pay.TxnDate); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			record.TransactionDate = &t
		}
	}
	return record
}
