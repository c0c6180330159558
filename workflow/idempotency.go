package workflow

import (
	"errors"

	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Handler name under which payment applications record their idempotency keys.
const applyHandlerName = "ReceivePaymentApply"

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// BeginApplyIdempotency inserts STARTED for the record key. When a previous
// run already SUCCEEDED, it returns the existing key so the caller can report
// the payment as already applied instead of re-submitting it. A nil db
// (engine-only runs and tests) disables the store.
func BeginApplyIdempotency(tx *gorm.DB, recordKey string) (skip bool, existing *models.IdempotencyKey, err error) {
	if tx == nil {
		return false, nil, nil
	}
	key := models.IdempotencyKey{
		HandlerName: applyHandlerName,
		RecordKey:   recordKey,
		Status:      models.IdempotencyStatusStarted,
	}
	if err := tx.Create(&key).Error; err == nil {
		return false, nil, nil
	} else if !isDuplicateKeyErr(err) {
		return false, nil, err
	}

	var found models.IdempotencyKey
	if err := tx.Where("handler_name = ? AND record_key = ?", applyHandlerName, recordKey).
		First(&found).Error; err != nil {
		return false, nil, err
	}

	if found.Status == models.IdempotencyStatusSucceeded {
		return true, &found, nil
	}
	// STARTED from a crashed run, or FAILED: retry by reusing the same row.
	return false, &found, tx.Model(&models.IdempotencyKey{}).
		Where("id = ?", found.ID).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusStarted, "last_error": nil}).Error
}

func MarkApplySucceeded(tx *gorm.DB, recordKey string, paymentTxnId string) error {
	if tx == nil {
		return nil
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND record_key = ?", applyHandlerName, recordKey).
		Updates(map[string]interface{}{
			"status":         models.IdempotencyStatusSucceeded,
			"payment_txn_id": paymentTxnId,
			"last_error":     nil,
		}).Error
}

func MarkApplyFailed(tx *gorm.DB, recordKey string, applyErr error) error {
	if tx == nil {
		return nil
	}
	msg := ""
	if applyErr != nil {
		msg = applyErr.Error()
	}
	return tx.Model(&models.IdempotencyKey{}).
		Where("handler_name = ? AND record_key = ?", applyHandlerName, recordKey).
		Updates(map[string]interface{}{"status": models.IdempotencyStatusFailed, "last_error": utils.NilIfEmpty(msg)}).Error
}
