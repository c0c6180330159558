package qbsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/paymentsync_backend/config"
	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrPaymentAlreadyExists marks the idempotent outcome: the ledger already
// holds this payment, so a rerun must not double-pay. Not a failure.
var ErrPaymentAlreadyExists = errors.New("payment already exists in ledger")

// ApplyError is one record's ledger rejection. Collected per record by the
// orchestrator, never fatal to the batch.
type ApplyError struct {
	RecordKey  string
	StatusCode int
	Message    string
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply payment for record %s failed (status %d): %s", e.RecordKey, e.StatusCode, e.Message)
}

// AllocateFunc computes the distribution of a payment across open invoices.
// Injected so the gateway stays decoupled from the engine package.
type AllocateFunc func(requested *decimal.Decimal, openInvoices []models.OpenInvoice) (models.Allocation, error)

// Gateway performs the ledger-side operations of a reconciliation run.
type Gateway struct {
	client   *qbClient
	allocate AllocateFunc
	logger   *logrus.Logger
}

func NewGateway(allocate AllocateFunc, logger *logrus.Logger) (*Gateway, error) {
	if allocate == nil {
		return nil, errors.New("allocate func is required")
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	client, err := newQBClient()
	if err != nil {
		return nil, err
	}
	return &Gateway{client: client, allocate: allocate, logger: logger}, nil
}

// FetchPaymentTerms returns every receive-payment currently recorded in the
// ledger, as comparable records. Payments without a memo record key cannot
// match anything and are dropped here. One bridge round-trip per run.
func (g *Gateway) FetchPaymentTerms(ctx context.Context) ([]models.PaymentTermRecord, error) {
	body, err := g.client.sendQBXML(ctx, buildReceivePaymentQuery())
	if err != nil {
		config.LogError(g.logger, "gateway.go", "FetchPaymentTerms", "sendQBXML", nil, err)
		return nil, err
	}
	parsed, err := parseQBXMLResponse(body)
	if err != nil {
		config.LogError(g.logger, "gateway.go", "FetchPaymentTerms", "parseQBXMLResponse", string(body), err)
		return nil, err
	}
	rs := parsed.MsgsRs.ReceivePaymentQueryRs
	if rs == nil {
		return nil, errors.New("ledger response missing ReceivePaymentQueryRs")
	}
	if rs.failed() {
		return nil, fmt.Errorf("receive payment query failed (status %d): %s", rs.StatusCode, rs.StatusMessage)
	}

	records := make([]models.PaymentTermRecord, 0, len(rs.Payments))
	for _, payment := range rs.Payments {
		record := payment.toPaymentTermRecord()
		if record.RecordKey == "" {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// QueryOpenInvoices returns all invoices matching the ref number, converted
// and ready for allocation (paid and zero-balance invoices included; the
// allocator filters them).
func (g *Gateway) QueryOpenInvoices(ctx context.Context, refNumber string) ([]models.OpenInvoice, error) {
	body, err := g.client.sendQBXML(ctx, buildInvoiceQuery(refNumber))
	if err != nil {
		config.LogError(g.logger, "gateway.go", "QueryOpenInvoices", "sendQBXML", refNumber, err)
		return nil, err
	}
	parsed, err := parseQBXMLResponse(body)
	if err != nil {
		config.LogError(g.logger, "gateway.go", "QueryOpenInvoices", "parseQBXMLResponse", string(body), err)
		return nil, err
	}
	rs := parsed.MsgsRs.InvoiceQueryRs
	if rs == nil {
		return nil, errors.New("ledger response missing InvoiceQueryRs")
	}
	if rs.failed() {
		return nil, fmt.Errorf("invoice query for %q failed (status %d): %s", refNumber, rs.StatusCode, rs.StatusMessage)
	}

	invoices := make([]models.OpenInvoice, 0, len(rs.Invoices))
	for _, ret := range rs.Invoices {
		if strings.TrimSpace(ret.TxnID) == "" {
			continue
		}
		invoice, err := ret.toOpenInvoice()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, invoice)
	}
	return invoices, nil
}

// ApplyPaymentTerm creates one receive-payment that applies the term's amount
// across all open invoices for its invoice number, oldest first. A nil/absent
// amount pays every open balance in full. An empty allocation returns a
// zero-total application without touching the ledger.
func (g *Gateway) ApplyPaymentTerm(ctx context.Context, term models.PaymentTermRecord) (*models.PaymentApplication, error) {
	if strings.TrimSpace(term.Customer) == "" {
		return nil, fmt.Errorf("%w: customer", utils.ErrMissingRequiredField)
	}
	if strings.TrimSpace(term.InvoiceNumber) == "" {
		return nil, fmt.Errorf("%w: invoice number", utils.ErrMissingRequiredField)
	}

	openInvoices, err := g.QueryOpenInvoices(ctx, term.InvoiceNumber)
	if err != nil {
		return nil, err
	}

	var requested *decimal.Decimal
	if term.Amount.Valid {
		requested = &term.Amount.Decimal
	}
	allocation, err := g.allocate(requested, openInvoices)
	if err != nil {
		return nil, err
	}
	if allocation.IsEmpty() {
		// Nothing open under this ref number: already paid or not found.
		// The caller decides whether that is a no-op or a problem.
		return &models.PaymentApplication{Allocation: allocation, AppliedTotal: decimal.Zero}, nil
	}

	body, err := g.client.sendQBXML(ctx, buildReceivePaymentAdd(term, allocation))
	if err != nil {
		config.LogError(g.logger, "gateway.go", "ApplyPaymentTerm", "sendQBXML", term.RecordKey, err)
		return nil, err
	}
	parsed, err := parseQBXMLResponse(body)
	if err != nil {
		config.LogError(g.logger, "gateway.go", "ApplyPaymentTerm", "parseQBXMLResponse", string(body), err)
		return nil, err
	}
	rs := parsed.MsgsRs.ReceivePaymentAddRs
	if rs == nil {
		return nil, errors.New("ledger response missing ReceivePaymentAddRs")
	}
	if rs.failed() {
		if isAlreadyExistsStatus(rs.responseStatus) {
			return nil, fmt.Errorf("record %s: %w", term.RecordKey, ErrPaymentAlreadyExists)
		}
		return nil, &ApplyError{
			RecordKey:  term.RecordKey,
			StatusCode: rs.StatusCode,
			Message:    rs.StatusMessage,
		}
	}

	application := &models.PaymentApplication{
		Allocation:   allocation,
		AppliedTotal: allocation.Total,
	}
	if rs.Payment != nil {
		application.PaymentTxnID = strings.TrimSpace(rs.Payment.TxnID)
	}
	return application, nil
}

// Status 3100 is QuickBooks' duplicate-name/transaction rejection; some
// bridge versions only surface it in the message text.
func isAlreadyExistsStatus(status responseStatus) bool {
	if status.StatusCode == 3100 {
		return true
	}
	return strings.Contains(strings.ToLower(status.StatusMessage), "already exists")
}
