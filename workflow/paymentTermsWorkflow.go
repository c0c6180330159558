package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/config"
	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/qbsync"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"bitbucket.org/mmdatafocus/paymentsync_backend/workbook"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const DefaultReportName = "customer_payment_terms_report.json"

const runLockKey = "paymentsync:run"

// ErrRunInProgress is returned when another reconciliation run holds the run
// lock. Concurrent runs against one company file are not supported.
var ErrRunInProgress = errors.New("another reconciliation run is in progress")

// LedgerGateway is the external collaborator that owns the ledger side of a
// run: one fetch of recorded payments, and one apply per missing record.
type LedgerGateway interface {
	FetchPaymentTerms(ctx context.Context) ([]models.PaymentTermRecord, error)
	ApplyPaymentTerm(ctx context.Context, term models.PaymentTermRecord) (*models.PaymentApplication, error)
}

type RunOptions struct {
	WorkbookPath string
	// ReportPath defaults to DefaultReportName in the working directory.
	ReportPath string
	// Gateway defaults to the qbsync gateway wired with AllocatePayment.
	Gateway LedgerGateway
	// ReadWorkbook defaults to workbook.ReadPaymentTerms.
	ReadWorkbook func(path string, logger *logrus.Logger) ([]models.PaymentTermRecord, error)
	// DisableLock skips the redis run lock (tests, offline tooling).
	DisableLock bool
}

// RunPaymentTermsSync executes one reconciliation run end to end: read the
// workbook, fetch the ledger, compare, apply every record the ledger is
// missing, and persist the report. A failure anywhere is converted into a
// status=error report that is still persisted and written; the function only
// errors when no report could be produced at all (or the run lock is held).
func RunPaymentTermsSync(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts RunOptions) (*models.ReconciliationRun, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	reportPath := opts.ReportPath
	if reportPath == "" {
		reportPath = DefaultReportName
	}

	if !opts.DisableLock {
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(ctx, runLockKey, 15*time.Minute, nil)
			if err != nil {
				if errors.Is(err, redislock.ErrNotObtained) {
					return nil, ErrRunInProgress
				}
				// Redis being down must not block reconciliation; the
				// idempotency keys still prevent double payment.
				config.LogError(logger, "paymentTermsWorkflow.go", "RunPaymentTermsSync", "ObtainRunLock", nil, err)
			} else {
				defer lock.Release(context.WithoutCancel(ctx))
			}
		}
	}

	generatedAt := time.Now().UTC()
	payload := models.RunReportPayload{
		Status:             models.RunStatusSuccess,
		GeneratedAt:        generatedAt.Format(time.RFC3339),
		AppliedPayments:    []models.AppliedPayment{},
		FailedApplications: []models.FailedApplication{},
		Conflicts:          []models.ConflictRecord{},
		SourceOnly:         []models.PaymentTermRecord{},
		TargetOnly:         []models.PaymentTermRecord{},
	}

	if err := executeRun(ctx, db, logger, opts, &payload); err != nil {
		msg := err.Error()
		payload.Status = models.RunStatusError
		payload.Error = &msg
		config.LogError(logger, "paymentTermsWorkflow.go", "RunPaymentTermsSync", "executeRun", opts.WorkbookPath, err)
	}

	run, persistErr := persistRun(ctx, db, logger, opts.WorkbookPath, generatedAt, &payload)
	writeErr := utils.WriteJSONFile(reportPath, payload)
	if writeErr != nil {
		config.LogError(logger, "paymentTermsWorkflow.go", "RunPaymentTermsSync", "WriteReportFile", reportPath, writeErr)
	}
	uploadReport(ctx, logger, run, &payload)
	publishRunCompleted(ctx, logger, run, &payload)

	if persistErr != nil && writeErr != nil {
		return run, fmt.Errorf("run report lost: persist: %v; write %s: %v", persistErr, reportPath, writeErr)
	}
	return run, nil
}

func executeRun(ctx context.Context, db *gorm.DB, logger *logrus.Logger, opts RunOptions, payload *models.RunReportPayload) error {
	readWorkbook := opts.ReadWorkbook
	if readWorkbook == nil {
		readWorkbook = workbook.ReadPaymentTerms
	}
	sourceTerms, err := readWorkbook(opts.WorkbookPath, logger)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}

	gateway := opts.Gateway
	if gateway == nil {
		qbGateway, err := qbsync.NewGateway(AllocatePayment, logger)
		if err != nil {
			return fmt.Errorf("ledger gateway: %w", err)
		}
		gateway = qbGateway
	}

	// One fetch per run; the bridge round-trip is expensive.
	targetTerms, err := gateway.FetchPaymentTerms(ctx)
	if err != nil {
		return fmt.Errorf("fetch ledger payment terms: %w", err)
	}

	comparison := ComparePaymentTerms(sourceTerms, targetTerms)
	payload.SourceCount = len(sourceTerms)
	payload.TargetCount = len(targetTerms)
	payload.Conflicts = comparison.Conflicts
	payload.SourceOnly = comparison.SourceOnly
	payload.TargetOnly = comparison.TargetOnly

	if config.DryRun() {
		config.LogInfo(logger, "paymentTermsWorkflow.go", "executeRun", "dry run: skipping payment applications", len(comparison.SourceOnly))
		return nil
	}

	for _, record := range comparison.SourceOnly {
		applyOne(ctx, db, logger, gateway, record, payload)
	}
	return nil
}

// applyOne applies a single missing record to the ledger. Every outcome ends
// up in the payload; nothing here may abort the surrounding batch.
func applyOne(ctx context.Context, db *gorm.DB, logger *logrus.Logger, gateway LedgerGateway, record models.PaymentTermRecord, payload *models.RunReportPayload) {
	fail := func(statusCode int, failErr error) {
		payload.FailedApplications = append(payload.FailedApplications, models.FailedApplication{
			RecordKey:     record.RecordKey,
			Customer:      record.Customer,
			InvoiceNumber: record.InvoiceNumber,
			StatusCode:    statusCode,
			Error:         failErr.Error(),
		})
		if markErr := MarkApplyFailed(db, record.RecordKey, failErr); markErr != nil {
			config.LogError(logger, "paymentTermsWorkflow.go", "applyOne", "MarkApplyFailed", record.RecordKey, markErr)
		}
	}

	// Required-field checks happen before any ledger traffic.
	if strings.TrimSpace(record.Customer) == "" {
		fail(0, fmt.Errorf("%w: customer", utils.ErrMissingRequiredField))
		return
	}
	if strings.TrimSpace(record.InvoiceNumber) == "" {
		fail(0, fmt.Errorf("%w: invoice number", utils.ErrMissingRequiredField))
		return
	}

	skip, existing, err := BeginApplyIdempotency(db, record.RecordKey)
	if err != nil {
		fail(0, fmt.Errorf("idempotency: %w", err))
		return
	}
	if skip {
		applied := models.AppliedPayment{
			RecordKey:      record.RecordKey,
			Customer:       record.Customer,
			InvoiceNumber:  record.InvoiceNumber,
			AlreadyApplied: true,
		}
		if existing != nil {
			applied.PaymentTxnId = existing.PaymentTxnId
		}
		payload.AppliedPayments = append(payload.AppliedPayments, applied)
		return
	}

	application, err := gateway.ApplyPaymentTerm(ctx, record)
	if err != nil {
		if errors.Is(err, qbsync.ErrPaymentAlreadyExists) {
			// Idempotent outcome, not a failure: the ledger already has it.
			if markErr := MarkApplySucceeded(db, record.RecordKey, ""); markErr != nil {
				config.LogError(logger, "paymentTermsWorkflow.go", "applyOne", "MarkApplySucceeded", record.RecordKey, markErr)
			}
			payload.AppliedPayments = append(payload.AppliedPayments, models.AppliedPayment{
				RecordKey:      record.RecordKey,
				Customer:       record.Customer,
				InvoiceNumber:  record.InvoiceNumber,
				AlreadyApplied: true,
			})
			return
		}
		statusCode := 0
		var applyErr *qbsync.ApplyError
		if errors.As(err, &applyErr) {
			statusCode = applyErr.StatusCode
		}
		fail(statusCode, err)
		return
	}

	if markErr := MarkApplySucceeded(db, record.RecordKey, application.PaymentTxnID); markErr != nil {
		config.LogError(logger, "paymentTermsWorkflow.go", "applyOne", "MarkApplySucceeded", record.RecordKey, markErr)
	}
	payload.AppliedPayments = append(payload.AppliedPayments, models.AppliedPayment{
		RecordKey:     record.RecordKey,
		Customer:      record.Customer,
		InvoiceNumber: record.InvoiceNumber,
		PaymentTxnId:  application.PaymentTxnID,
		AppliedTotal:  utils.QBAmount(application.AppliedTotal),
	})
}

func persistRun(ctx context.Context, db *gorm.DB, logger *logrus.Logger, workbookPath string, generatedAt time.Time, payload *models.RunReportPayload) (*models.ReconciliationRun, error) {
	reportJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	run := &models.ReconciliationRun{
		RunKey:        uuid.NewString(),
		Status:        payload.Status,
		WorkbookPath:  workbookPath,
		SourceCount:   payload.SourceCount,
		TargetCount:   payload.TargetCount,
		AppliedCount:  len(payload.AppliedPayments),
		FailedCount:   len(payload.FailedApplications),
		ConflictCount: len(payload.Conflicts),
		Report:        reportJSON,
		ErrorMessage:  payload.Error,
		GeneratedAt:   generatedAt,
	}
	if db == nil {
		return run, nil
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		config.LogError(logger, "paymentTermsWorkflow.go", "persistRun", "CreateReconciliationRun", run.RunKey, err)
		return run, err
	}
	return run, nil
}

// uploadReport mirrors the report document to the reports bucket when one is
// configured. Best effort: an upload failure is logged, never fatal.
func uploadReport(ctx context.Context, logger *logrus.Logger, run *models.ReconciliationRun, payload *models.RunReportPayload) {
	if run == nil || utils.ReportsBucket() == "" {
		return
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	objectName := fmt.Sprintf("payment-terms/%s.json", run.RunKey)
	if err := utils.UploadReportToGCS(ctx, objectName, data); err != nil {
		config.LogError(logger, "paymentTermsWorkflow.go", "uploadReport", "UploadReportToGCS", objectName, err)
	}
}

// publishRunCompleted emits the run summary event. Best effort as well.
func publishRunCompleted(ctx context.Context, logger *logrus.Logger, run *models.ReconciliationRun, payload *models.RunReportPayload) {
	if run == nil || !config.RunEventsEnabled() {
		return
	}
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	msg := config.RunCompletedMessage{
		RunKey:        run.RunKey,
		Status:        string(payload.Status),
		GeneratedAt:   run.GeneratedAt,
		SourceCount:   run.SourceCount,
		TargetCount:   run.TargetCount,
		AppliedCount:  run.AppliedCount,
		FailedCount:   run.FailedCount,
		ConflictCount: run.ConflictCount,
		CorrelationId: correlationId,
	}
	if _, err := config.PublishRunCompleted(ctx, msg); err != nil {
		config.LogError(logger, "paymentTermsWorkflow.go", "publishRunCompleted", "PublishRunCompleted", run.RunKey, err)
	}
}
