// Package workbook reads expected customer payment terms from the operator's
// Excel workbook. Rows that fail validation are skipped and logged, never
// fatal: one bad row must not block the run.
package workbook

import (
	"fmt"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/config"
	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "account credit vendor"

// Column headers as they appear in the operator workbook's first row.
const (
	headerRecordKey     = "Child ID"
	headerCustomer      = "Customer"
	headerDate          = "Bank Date"
	headerAmount        = "Check Amount"
	headerInvoiceNumber = "Invoice Number"
)

var validate = validator.New()

type paymentTermRow struct {
	RecordKey     string `validate:"required"`
	Customer      string `validate:"required"`
	Date          string
	Amount        string `validate:"required"`
	InvoiceNumber string `validate:"required"`
}

func SheetName() string {
	if v := strings.TrimSpace(os.Getenv("WORKBOOK_SHEET")); v != "" {
		return v
	}
	return defaultSheetName
}

// ReadPaymentTerms loads every valid payment term row from the workbook.
// A valid row has a usable record key, a non-empty customer, a positive
// amount, a non-empty invoice number and a parseable-or-absent date.
func ReadPaymentTerms(path string, logger *logrus.Logger) ([]models.PaymentTermRecord, error) {
	if logger == nil {
		logger = config.GetLogger()
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	sheet := SheetName()
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("worksheet %q not found in workbook %s: %w", sheet, path, err)
	}
	if len(rows) == 0 {
		return []models.PaymentTermRecord{}, nil
	}

	headerIndex := make(map[string]int, len(rows[0]))
	for idx, header := range rows[0] {
		headerIndex[strings.TrimSpace(header)] = idx
	}

	cell := func(row []string, column string) string {
		idx, ok := headerIndex[column]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	terms := make([]models.PaymentTermRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rowNumber := i + 2 // 1-based, after the header row

		raw := paymentTermRow{
			RecordKey:     utils.NormalizeRecordKey(cell(row, headerRecordKey)),
			Customer:      cell(row, headerCustomer),
			Date:          cell(row, headerDate),
			Amount:        cell(row, headerAmount),
			InvoiceNumber: cell(row, headerInvoiceNumber),
		}
		if raw == (paymentTermRow{}) {
			continue // fully blank row
		}
		if err := validate.Struct(raw); err != nil {
			logSkippedRow(logger, path, rowNumber, fmt.Sprintf("%v", utils.ProcessValidationErrors(err)))
			continue
		}

		amount, err := utils.ParseDecimal(raw.Amount)
		if err != nil {
			logSkippedRow(logger, path, rowNumber, err.Error())
			continue
		}
		if !amount.IsPositive() {
			logSkippedRow(logger, path, rowNumber, fmt.Sprintf("amount must be positive, got %s", raw.Amount))
			continue
		}

		var transactionDate *time.Time
		if raw.Date != "" {
			parsed, err := utils.ParseFlexibleDate(raw.Date)
			if err != nil {
				logSkippedRow(logger, path, rowNumber, err.Error())
				continue
			}
			transactionDate = &parsed
		}

		terms = append(terms, models.PaymentTermRecord{
			RecordKey:       raw.RecordKey,
			Customer:        raw.Customer,
			InvoiceNumber:   raw.InvoiceNumber,
			Amount:          decimalNullFrom(amount),
			TransactionDate: transactionDate,
			Origin:          models.RecordOriginSpreadsheet,
		})
	}
	return terms, nil
}

func decimalNullFrom(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func logSkippedRow(logger *logrus.Logger, path string, rowNumber int, reason string) {
	logger.WithFields(logrus.Fields{
		"module":   "reader.go",
		"workbook": path,
		"row":      rowNumber,
		"reason":   reason,
	}).Warn("skipping invalid payment term row")
}
