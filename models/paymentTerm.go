package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentTermRecord is one customer receive-payment entry as seen by either
// the workbook or the ledger. RecordKey is the identity used to match the two
// sides; it must be unique within a single source. Numeric workbook keys are
// normalized to their canonical decimal string before a record is built, so
// key equality inside the engine is plain string equality.
type PaymentTermRecord struct {
	RecordKey       string              `json:"record_key"`
	Customer        string              `json:"customer"`
	InvoiceNumber   string              `json:"invoice_number"`
	Amount          decimal.NullDecimal `json:"amount"`
	TransactionDate *time.Time          `json:"transaction_date"`
	Memo            string              `json:"memo,omitempty"`
	Origin          RecordOrigin        `json:"origin"`
}

// SameCalendarDate compares two nullable dates on the calendar day only,
// ignoring any time-of-day or zone that leaked in during parsing.
func SameCalendarDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// SameAmount compares two nullable amounts by numeric value, so 10 equals
// 10.00. String comparison of amounts is a defect.
func SameAmount(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return a.Decimal.Equal(b.Decimal)
}
