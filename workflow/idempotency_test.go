package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"github.com/DATA-DOG/go-sqlmock"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockDB opens gorm over a sqlmock connection so the idempotency state
// machine can be driven without a MySQL instance.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	return db, mock
}

func duplicateKeyError() error {
	return &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry 'ReceivePaymentApply-77' for key 'uniq_idem'"}
}

func idempotencyRow(id int, key string, status models.IdempotencyStatus, txnId string, lastError interface{}) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "handler_name", "record_key", "status", "payment_txn_id", "last_error", "created_at", "updated_at",
	}).AddRow(id, applyHandlerName, key, string(status), txnId, lastError, now, now)
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet database expectations: %v", err)
	}
}

func TestBeginApplyIdempotency_FreshKeyProceeds(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO `idempotency_keys`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	skip, existing, err := BeginApplyIdempotency(db, "77")
	if err != nil {
		t.Fatalf("BeginApplyIdempotency error: %v", err)
	}
	if skip {
		t.Fatalf("a fresh key must not skip the apply")
	}
	if existing != nil {
		t.Fatalf("a fresh key has no existing row, got %+v", existing)
	}
	expectationsMet(t, mock)
}

func TestBeginApplyIdempotency_SucceededKeySkips(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO `idempotency_keys`").
		WillReturnError(duplicateKeyError())
	mock.ExpectQuery("SELECT (.+) FROM `idempotency_keys`").
		WillReturnRows(idempotencyRow(5, "77", models.IdempotencyStatusSucceeded, "TXN-42", nil))

	skip, existing, err := BeginApplyIdempotency(db, "77")
	if err != nil {
		t.Fatalf("BeginApplyIdempotency error: %v", err)
	}
	if !skip {
		t.Fatalf("a SUCCEEDED key must skip the apply")
	}
	if existing == nil || existing.PaymentTxnId != "TXN-42" {
		t.Fatalf("the stored payment txn id must come back with the skip, got %+v", existing)
	}
	expectationsMet(t, mock)
}

func TestBeginApplyIdempotency_FailedKeyResetsAndRetries(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO `idempotency_keys`").
		WillReturnError(duplicateKeyError())
	mock.ExpectQuery("SELECT (.+) FROM `idempotency_keys`").
		WillReturnRows(idempotencyRow(5, "77", models.IdempotencyStatusFailed, "", "statusCode 3120"))
	mock.ExpectExec("UPDATE `idempotency_keys` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	skip, existing, err := BeginApplyIdempotency(db, "77")
	if err != nil {
		t.Fatalf("BeginApplyIdempotency error: %v", err)
	}
	if skip {
		t.Fatalf("a FAILED key must be retried, not skipped")
	}
	if existing == nil || existing.Status != models.IdempotencyStatusFailed {
		t.Fatalf("the prior FAILED row must be returned, got %+v", existing)
	}
	expectationsMet(t, mock)
}

func TestBeginApplyIdempotency_StalledStartedKeyRetries(t *testing.T) {
	db, mock := newMockDB(t)

	// STARTED left behind by a crashed run: reset, then retry.
	mock.ExpectExec("INSERT INTO `idempotency_keys`").
		WillReturnError(duplicateKeyError())
	mock.ExpectQuery("SELECT (.+) FROM `idempotency_keys`").
		WillReturnRows(idempotencyRow(9, "88", models.IdempotencyStatusStarted, "", nil))
	mock.ExpectExec("UPDATE `idempotency_keys` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	skip, existing, err := BeginApplyIdempotency(db, "88")
	if err != nil {
		t.Fatalf("BeginApplyIdempotency error: %v", err)
	}
	if skip || existing == nil {
		t.Fatalf("a stalled STARTED key must be retried, got skip=%v existing=%+v", skip, existing)
	}
	expectationsMet(t, mock)
}

func TestBeginApplyIdempotency_InsertFailureSurfaces(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("INSERT INTO `idempotency_keys`").
		WillReturnError(errors.New("connection reset"))

	skip, existing, err := BeginApplyIdempotency(db, "77")
	if err == nil {
		t.Fatalf("a non-duplicate insert failure must surface")
	}
	if skip || existing != nil {
		t.Fatalf("a failed begin must not skip, got skip=%v existing=%+v", skip, existing)
	}
	expectationsMet(t, mock)
}

func TestMarkApplySucceededStoresTxnId(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE `idempotency_keys` SET (.*)`payment_txn_id`=").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := MarkApplySucceeded(db, "77", "TXN-9"); err != nil {
		t.Fatalf("MarkApplySucceeded error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestMarkApplyFailedRecordsMessage(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE `idempotency_keys` SET (.*)`last_error`=").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := MarkApplyFailed(db, "77", errors.New("bridge timeout")); err != nil {
		t.Fatalf("MarkApplyFailed error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestIdempotencyHelpersTolerateNilDB(t *testing.T) {
	skip, existing, err := BeginApplyIdempotency(nil, "77")
	if skip || existing != nil || err != nil {
		t.Fatalf("nil db must disable the store, got skip=%v existing=%+v err=%v", skip, existing, err)
	}
	if err := MarkApplySucceeded(nil, "77", "TXN-1"); err != nil {
		t.Fatalf("MarkApplySucceeded with nil db: %v", err)
	}
	if err := MarkApplyFailed(nil, "77", errors.New("x")); err != nil {
		t.Fatalf("MarkApplyFailed with nil db: %v", err)
	}
}

// Full run against the mocked store: the SUCCEEDED key short-circuits the
// gateway and the stored txn id lands in the report as already applied.
func TestRunPaymentTermsSync_SucceededKeyReportedAlreadyApplied(t *testing.T) {
	db, mock := newMockDB(t)
	source := []models.PaymentTermRecord{record("77", "Acme Ltd", "INV-77", "50.00", nil)}
	gateway := &fakeGateway{}

	mock.ExpectExec("INSERT INTO `idempotency_keys`").
		WillReturnError(duplicateKeyError())
	mock.ExpectQuery("SELECT (.+) FROM `idempotency_keys`").
		WillReturnRows(idempotencyRow(5, "77", models.IdempotencyStatusSucceeded, "TXN-11", nil))
	mock.ExpectExec("INSERT INTO `reconciliation_runs`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	opts, _ := runOptions(t, gateway, source)
	run, err := RunPaymentTermsSync(context.Background(), db, quietLogger(), opts)
	if err != nil {
		t.Fatalf("RunPaymentTermsSync error: %v", err)
	}

	if len(gateway.appliedKeys) != 0 {
		t.Fatalf("an already-applied record must not hit the ledger again, applied %v", gateway.appliedKeys)
	}
	if run.AppliedCount != 1 || run.FailedCount != 0 {
		t.Fatalf("expected 1 applied 0 failed, got %d/%d", run.AppliedCount, run.FailedCount)
	}
	payload := decodeReport(t, run)
	applied := payload.AppliedPayments[0]
	if !applied.AlreadyApplied || applied.PaymentTxnId != "TXN-11" {
		t.Fatalf("expected already-applied entry carrying TXN-11, got %+v", applied)
	}
	expectationsMet(t, mock)
}

// Full run on a fresh key: begin, apply through the gateway, mark SUCCEEDED,
// persist the run row.
func TestRunPaymentTermsSync_FreshKeyAppliesAndMarksSucceeded(t *testing.T) {
	db, mock := newMockDB(t)
	source := []models.PaymentTermRecord{record("78", "Beta Co", "INV-78", "25.00", nil)}
	gateway := &fakeGateway{}

	mock.ExpectExec("INSERT INTO `idempotency_keys`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `idempotency_keys` SET (.*)`payment_txn_id`=").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO `reconciliation_runs`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	opts, _ := runOptions(t, gateway, source)
	run, err := RunPaymentTermsSync(context.Background(), db, quietLogger(), opts)
	if err != nil {
		t.Fatalf("RunPaymentTermsSync error: %v", err)
	}

	if len(gateway.appliedKeys) != 1 || gateway.appliedKeys[0] != "78" {
		t.Fatalf("the fresh record must reach the ledger, applied %v", gateway.appliedKeys)
	}
	payload := decodeReport(t, run)
	if len(payload.AppliedPayments) != 1 || payload.AppliedPayments[0].AlreadyApplied {
		t.Fatalf("expected one freshly applied payment, got %+v", payload.AppliedPayments)
	}
	expectationsMet(t, mock)
}
