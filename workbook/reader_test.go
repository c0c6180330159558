package workbook

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

func writeTestWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := SheetName()
	if _, err := f.NewSheet(sheet); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cellRef, &row); err != nil {
			t.Fatalf("set row %d: %v", i+1, err)
		}
	}

	path := filepath.Join(t.TempDir(), "payments.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
	return path
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestReadPaymentTerms_ValidAndInvalidRows(t *testing.T) {
	path := writeTestWorkbook(t, [][]interface{}{
		{"Child ID", "Customer", "Bank Date", "Check Amount", "Invoice Number"},
		{"1001", "Acme Ltd", "03/05/2024", "250.00", "INV-1"},
		{"", "", "", "", ""},                             // blank row
		{"1003", "", "03/06/2024", "10.00", "INV-3"},     // missing customer
		{"1004", "Delta Co", "03/07/2024", "0", "INV-4"}, // non-positive amount
		{"1005", "Eps Co", "garbage", "5.00", "INV-5"},   // unparseable date
		{"1002.0", "Beta Co", "", "99.9", "INV-2"},       // float key, no date
	})

	terms, err := ReadPaymentTerms(path, testLogger())
	if err != nil {
		t.Fatalf("ReadPaymentTerms error: %v", err)
	}

	if len(terms) != 2 {
		t.Fatalf("expected 2 valid rows, got %d: %+v", len(terms), terms)
	}

	first := terms[0]
	if first.RecordKey != "1001" || first.Customer != "Acme Ltd" || first.InvoiceNumber != "INV-1" {
		t.Fatalf("unexpected first record: %+v", first)
	}
	if !first.Amount.Valid || !first.Amount.Decimal.Equal(decimal.RequireFromString("250.00")) {
		t.Fatalf("unexpected first amount: %+v", first.Amount)
	}
	if first.TransactionDate == nil ||
		!first.TransactionDate.Equal(time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected first date: %v", first.TransactionDate)
	}
	if first.Origin != models.RecordOriginSpreadsheet {
		t.Fatalf("expected spreadsheet origin, got %s", first.Origin)
	}

	second := terms[1]
	// Float-formatted keys normalize to the canonical integer string.
	if second.RecordKey != "1002" {
		t.Fatalf("expected key 1002, got %q", second.RecordKey)
	}
	if second.TransactionDate != nil {
		t.Fatalf("empty date cell must stay nil, got %v", second.TransactionDate)
	}
}

func TestReadPaymentTerms_MissingWorkbook(t *testing.T) {
	if _, err := ReadPaymentTerms(filepath.Join(t.TempDir(), "nope.xlsx"), testLogger()); err == nil {
		t.Fatalf("expected error for missing workbook")
	}
}

func TestReadPaymentTerms_EmptySheet(t *testing.T) {
	path := writeTestWorkbook(t, nil)

	terms, err := ReadPaymentTerms(path, testLogger())
	if err != nil {
		t.Fatalf("ReadPaymentTerms error: %v", err)
	}
	if len(terms) != 0 {
		t.Fatalf("expected no records from an empty sheet, got %d", len(terms))
	}
}

func TestSheetName_EnvOverride(t *testing.T) {
	t.Setenv("WORKBOOK_SHEET", "custom tab")
	if got := SheetName(); got != "custom tab" {
		t.Fatalf("expected override, got %q", got)
	}
}
