package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/config"
	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

func cell(col string, row int) string {
	return col + fmt.Sprint(row)
}

func formatDate(t *models.PaymentTermRecord) string {
	if t.TransactionDate == nil {
		return ""
	}
	return t.TransactionDate.Format("2006-01-02")
}

func formatAmount(t *models.PaymentTermRecord) string {
	if !t.Amount.Valid {
		return ""
	}
	return utils.QBAmount(t.Amount.Decimal)
}

func writeRecordSheet(f *excelize.File, sheet string, records []models.PaymentTermRecord) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	f.SetCellValue(sheet, "A1", "RecordKey")
	f.SetCellValue(sheet, "B1", "Customer")
	f.SetCellValue(sheet, "C1", "InvoiceNumber")
	f.SetCellValue(sheet, "D1", "Amount")
	f.SetCellValue(sheet, "E1", "TransactionDate")
	for i := range records {
		r := &records[i]
		row := i + 2
		f.SetCellValue(sheet, cell("A", row), r.RecordKey)
		f.SetCellValue(sheet, cell("B", row), r.Customer)
		f.SetCellValue(sheet, cell("C", row), r.InvoiceNumber)
		f.SetCellValue(sheet, cell("D", row), formatAmount(r))
		f.SetCellValue(sheet, cell("E", row), formatDate(r))
	}
	return nil
}

func writeConflictSheet(f *excelize.File, conflicts []models.ConflictRecord) error {
	const sheet = "Conflicts"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	headers := []string{"RecordKey", "Reason", "SourceName", "TargetName", "SourceDate", "TargetDate",
		"SourceInvoiceNumber", "TargetInvoiceNumber", "SourceAmount", "TargetAmount"}
	cols := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	for i, h := range headers {
		f.SetCellValue(sheet, cell(cols[i], 1), h)
	}
	for i, c := range conflicts {
		row := i + 2
		values := []string{c.RecordKey, string(c.Reason), c.SourceName, c.TargetName,
			formatConflictDate(c.SourceDate), formatConflictDate(c.TargetDate),
			c.SourceInvoiceNumber, c.TargetInvoiceNumber,
			formatConflictAmount(c.SourceAmount), formatConflictAmount(c.TargetAmount)}
		for j, v := range values {
			f.SetCellValue(sheet, cell(cols[j], row), v)
		}
	}
	return nil
}

func formatConflictDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatConflictAmount(a decimal.NullDecimal) string {
	if !a.Valid {
		return ""
	}
	return utils.QBAmount(a.Decimal)
}

func writeAppliedSheet(f *excelize.File, payload *models.RunReportPayload) error {
	const sheet = "Applied"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	f.SetCellValue(sheet, "A1", "RecordKey")
	f.SetCellValue(sheet, "B1", "Customer")
	f.SetCellValue(sheet, "C1", "InvoiceNumber")
	f.SetCellValue(sheet, "D1", "PaymentTxnId")
	f.SetCellValue(sheet, "E1", "AppliedTotal")
	f.SetCellValue(sheet, "F1", "AlreadyApplied")
	for i, a := range payload.AppliedPayments {
		row := i + 2
		f.SetCellValue(sheet, cell("A", row), a.RecordKey)
		f.SetCellValue(sheet, cell("B", row), a.Customer)
		f.SetCellValue(sheet, cell("C", row), a.InvoiceNumber)
		f.SetCellValue(sheet, cell("D", row), a.PaymentTxnId)
		f.SetCellValue(sheet, cell("E", row), a.AppliedTotal)
		f.SetCellValue(sheet, cell("F", row), a.AlreadyApplied)
	}
	return nil
}

func writeFailedSheet(f *excelize.File, payload *models.RunReportPayload) error {
	const sheet = "Failed"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	f.SetCellValue(sheet, "A1", "RecordKey")
	f.SetCellValue(sheet, "B1", "Customer")
	f.SetCellValue(sheet, "C1", "InvoiceNumber")
	f.SetCellValue(sheet, "D1", "StatusCode")
	f.SetCellValue(sheet, "E1", "Error")
	for i, fa := range payload.FailedApplications {
		row := i + 2
		f.SetCellValue(sheet, cell("A", row), fa.RecordKey)
		f.SetCellValue(sheet, cell("B", row), fa.Customer)
		f.SetCellValue(sheet, cell("C", row), fa.InvoiceNumber)
		f.SetCellValue(sheet, cell("D", row), fa.StatusCode)
		f.SetCellValue(sheet, cell("E", row), fa.Error)
	}
	return nil
}

func loadPayload(run string, reportFile string) (*models.RunReportPayload, error) {
	if reportFile != "" {
		var payload models.RunReportPayload
		if err := utils.ReadJSONFile(reportFile, &payload); err != nil {
			return nil, err
		}
		return &payload, nil
	}

	config.ConnectDatabaseWithRetry()
	var (
		rec *models.ReconciliationRun
		err error
	)
	if id, convErr := strconv.Atoi(run); convErr == nil {
		rec, err = models.GetReconciliationRun(context.Background(), id)
	} else {
		rec, err = models.GetReconciliationRunByKey(context.Background(), run)
	}
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil, fmt.Errorf("run %q not found", run)
		}
		return nil, err
	}
	var payload models.RunReportPayload
	if err := utils.UnmarshalFromJSON(rec.Report, &payload); err != nil {
		return nil, fmt.Errorf("decode stored report: %w", err)
	}
	return &payload, nil
}

func main() {
	run := flag.String("run", "", "Run id or run key to export (reads from MySQL)")
	reportFile := flag.String("report-file", "", "Export from a JSON report file instead of the DB")
	out := flag.String("out", "payment_terms_report.xlsx", "Output .xlsx path")
	flag.Parse()

	if strings.TrimSpace(*run) == "" && strings.TrimSpace(*reportFile) == "" {
		fmt.Fprintln(os.Stderr, "--run or --report-file is required")
		os.Exit(1)
	}

	payload, err := loadPayload(*run, *reportFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load report: %v\n", err)
		os.Exit(1)
	}

	f := excelize.NewFile()
	steps := []func() error{
		func() error { return writeConflictSheet(f, payload.Conflicts) },
		func() error { return writeRecordSheet(f, "Missing In Ledger", payload.SourceOnly) },
		func() error { return writeRecordSheet(f, "Missing In Workbook", payload.TargetOnly) },
		func() error { return writeAppliedSheet(f, payload) },
		func() error { return writeFailedSheet(f, payload) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			fmt.Fprintf(os.Stderr, "build workbook: %v\n", err)
			os.Exit(1)
		}
	}
	// Drop the default empty sheet.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		fmt.Fprintf(os.Stderr, "build workbook: %v\n", err)
		os.Exit(1)
	}

	if err := f.SaveAs(*out); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("report exported to %s\n", *out)
}
