package models

import "time"

// IdempotencyKey provides durable, DB-backed idempotency for payment
// applications. A workbook record that was already applied in a previous run
// must not be applied again when reconciliation is rerun.
// Unique constraint: (handler_name, record_key).
type IdempotencyKey struct {
	ID           int               `gorm:"primary_key" json:"id"`
	HandlerName  string            `gorm:"size:100;not null;index:uniq_idem,unique" json:"handler_name"`
	RecordKey    string            `gorm:"size:255;not null;index:uniq_idem,unique" json:"record_key"`
	Status       IdempotencyStatus `gorm:"size:20;not null;index" json:"status"`
	PaymentTxnId string            `gorm:"size:64" json:"payment_txn_id"`
	LastError    *string           `gorm:"type:text" json:"last_error"`
	CreatedAt    time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}
