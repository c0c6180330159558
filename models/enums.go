package models

// RecordOrigin identifies which side of the reconciliation a payment term
// record came from.
type RecordOrigin string

const (
	RecordOriginSpreadsheet RecordOrigin = "spreadsheet"
	RecordOriginLedger      RecordOrigin = "ledger"
)

type ConflictReason string

const (
	ConflictReasonNameMismatch          ConflictReason = "NAME_MISMATCH"
	ConflictReasonDateMismatch          ConflictReason = "DATE_MISMATCH"
	ConflictReasonInvoiceNumberMismatch ConflictReason = "INVOICE_NUMBER_MISMATCH"
	ConflictReasonAmountMismatch        ConflictReason = "AMOUNT_MISMATCH"
	ConflictReasonDataMismatch          ConflictReason = "DATA_MISMATCH"
)

type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusError   RunStatus = "error"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
