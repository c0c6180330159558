package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConflictRecord describes a field-level disagreement between a workbook
// record and the ledger record that matched it by key. It always carries the
// full set of per-field values from both sides, even when only one field
// differs, so the report loses no information whichever reason is tagged.
type ConflictRecord struct {
	RecordKey string         `json:"record_key"`
	Reason    ConflictReason `json:"reason"`

	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`

	SourceDate *time.Time `json:"source_date"`
	TargetDate *time.Time `json:"target_date"`

	SourceInvoiceNumber string `json:"source_invoice_number"`
	TargetInvoiceNumber string `json:"target_invoice_number"`

	SourceAmount decimal.NullDecimal `json:"source_amount"`
	TargetAmount decimal.NullDecimal `json:"target_amount"`
}

// ReconciliationReport partitions two record sets after matching by key.
// Ordering follows the inputs: SourceOnly keeps the source's original order,
// TargetOnly the target's, and Conflicts the source order of the matched keys,
// so identical inputs always serialize to identical bytes.
type ReconciliationReport struct {
	SourceOnly []PaymentTermRecord `json:"source_only"`
	TargetOnly []PaymentTermRecord `json:"target_only"`
	Conflicts  []ConflictRecord    `json:"conflicts"`
}
