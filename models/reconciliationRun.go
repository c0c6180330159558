package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/config"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"gorm.io/gorm"
)

// AppliedPayment is one workbook record that was turned into a ledger
// receive-payment, with the ledger-assigned transaction id and the total that
// was actually allocated. AlreadyApplied marks the idempotent rerun case: the
// ledger (or a previous run) had the payment, so nothing was submitted.
type AppliedPayment struct {
	RecordKey      string `json:"record_key"`
	Customer       string `json:"customer"`
	InvoiceNumber  string `json:"invoice_number"`
	PaymentTxnId   string `json:"payment_txn_id"`
	AppliedTotal   string `json:"applied_total"`
	AlreadyApplied bool   `json:"already_applied,omitempty"`
}

// FailedApplication is one workbook record whose ledger application failed.
// Failures are collected per record; a failure never aborts the batch.
type FailedApplication struct {
	RecordKey     string `json:"record_key"`
	Customer      string `json:"customer"`
	InvoiceNumber string `json:"invoice_number"`
	StatusCode    int    `json:"status_code,omitempty"`
	Error         string `json:"error"`
}

// RunReportPayload is the persisted structured document produced by one
// reconciliation run.
type RunReportPayload struct {
	Status             RunStatus           `json:"status"`
	GeneratedAt        string              `json:"generated_at"`
	SourceCount        int                 `json:"source_count"`
	TargetCount        int                 `json:"target_count"`
	AppliedPayments    []AppliedPayment    `json:"applied_payments"`
	FailedApplications []FailedApplication `json:"failed_applications"`
	Conflicts          []ConflictRecord    `json:"conflicts"`
	SourceOnly         []PaymentTermRecord `json:"source_only"`
	TargetOnly         []PaymentTermRecord `json:"target_only"`
	Error              *string             `json:"error"`
}

type ReconciliationRun struct {
	ID            int       `gorm:"primary_key" json:"id"`
	RunKey        string    `gorm:"size:36;not null;uniqueIndex" json:"run_key"`
	Status        RunStatus `gorm:"size:20;not null;index" json:"status"`
	WorkbookPath  string    `gorm:"size:500" json:"workbook_path"`
	SourceCount   int       `json:"source_count"`
	TargetCount   int       `json:"target_count"`
	AppliedCount  int       `json:"applied_count"`
	FailedCount   int       `json:"failed_count"`
	ConflictCount int       `json:"conflict_count"`
	Report        []byte    `gorm:"type:json" json:"report"`
	ErrorMessage  *string   `gorm:"type:text" json:"error_message"`
	GeneratedAt   time.Time `gorm:"not null" json:"generated_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetReconciliationRun(ctx context.Context, id int) (*ReconciliationRun, error) {
	db := config.GetDB()
	var run ReconciliationRun
	if err := db.WithContext(ctx).First(&run, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func GetReconciliationRunByKey(ctx context.Context, runKey string) (*ReconciliationRun, error) {
	db := config.GetDB()
	var run ReconciliationRun
	if err := db.WithContext(ctx).Where("run_key = ?", runKey).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &run, nil
}

func ListReconciliationRuns(ctx context.Context, limit int) ([]ReconciliationRun, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	db := config.GetDB()
	var runs []ReconciliationRun
	if err := db.WithContext(ctx).
		Select("id, run_key, status, workbook_path, source_count, target_count, applied_count, failed_count, conflict_count, generated_at, created_at, updated_at").
		Order("id DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}
