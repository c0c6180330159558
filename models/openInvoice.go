package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OpenInvoice is one ledger invoice returned by an invoice query, candidate
// for receiving a payment application. TxnDate is the primary ordering date;
// TimeCreated is the fallback when the ledger omitted TxnDate. An invoice
// with neither sorts after every dated invoice.
type OpenInvoice struct {
	TxnID            string          `json:"txn_id"`
	RefNumber        string          `json:"ref_number"`
	BalanceRemaining decimal.Decimal `json:"balance_remaining"`
	TxnDate          *time.Time      `json:"txn_date"`
	TimeCreated      *time.Time      `json:"time_created"`
	IsPaid           bool            `json:"is_paid"`
}

type AllocationLine struct {
	InvoiceTxnID  string          `json:"invoice_txn_id"`
	AppliedAmount decimal.Decimal `json:"applied_amount"`
}

// Allocation is the ordered distribution of a payment across open invoices.
// Every line amount is positive and Total is the sum of the lines. An empty
// allocation (Total zero) is a valid outcome, not an error.
type Allocation struct {
	Lines []AllocationLine `json:"lines"`
	Total decimal.Decimal  `json:"total"`
}

func (a Allocation) IsEmpty() bool {
	return len(a.Lines) == 0
}

// PaymentApplication is the outcome of applying one payment term to the
// ledger: the allocation that was submitted and the ledger-assigned
// transaction id. A zero-total application means no invoice was open.
type PaymentApplication struct {
	PaymentTxnID string          `json:"payment_txn_id"`
	AppliedTotal decimal.Decimal `json:"applied_total"`
	Allocation   Allocation      `json:"allocation"`
}
