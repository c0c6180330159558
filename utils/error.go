package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrInvalidAmount rejects a requested allocation amount that is zero or
// negative, before any allocation math runs.
var ErrInvalidAmount = errors.New("amount must be greater than zero")

// ErrMissingRequiredField rejects a record whose customer or invoice number
// is absent, before the ledger is ever queried.
var ErrMissingRequiredField = errors.New("required field missing")
