package workflow

import (
	"fmt"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"github.com/shopspring/decimal"
)

// distantFuture is the ordering date of an invoice that carries neither a
// TxnDate nor a TimeCreated: it is paid only after every dated invoice.
var distantFuture = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// AllocatePayment distributes a payment across a customer's open invoices,
// oldest first. A nil requested amount means pay-in-full: every eligible
// invoice receives its full remaining balance. A non-nil amount must be
// strictly positive and is walked greedily across the sorted invoices; any
// remainder left after the last invoice is dropped, not carried over.
//
// No eligible invoices is not an error: the result is an empty Allocation
// with total zero and the caller decides what that means.
//
// All arithmetic stays in decimal; rounding to two digits happens only when
// an amount is serialized for the ledger (utils.QBAmount).
func AllocatePayment(requested *decimal.Decimal, openInvoices []models.OpenInvoice) (models.Allocation, error) {
	eligible := make([]models.OpenInvoice, 0, len(openInvoices))
	for _, invoice := range openInvoices {
		if invoice.IsPaid || !invoice.BalanceRemaining.IsPositive() {
			continue
		}
		eligible = append(eligible, invoice)
	}

	// Ascending by ordering date, ties broken by the fallback timestamp.
	// SliceStable keeps the original input order as the final tiebreak.
	sort.SliceStable(eligible, func(i, j int) bool {
		di, dj := orderingDate(eligible[i]), orderingDate(eligible[j])
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return fallbackTimestamp(eligible[i]).Before(fallbackTimestamp(eligible[j]))
	})

	allocation := models.Allocation{
		Lines: []models.AllocationLine{},
		Total: decimal.Zero,
	}

	if requested == nil {
		for _, invoice := range eligible {
			allocation.Lines = append(allocation.Lines, models.AllocationLine{
				InvoiceTxnID:  invoice.TxnID,
				AppliedAmount: invoice.BalanceRemaining,
			})
			allocation.Total = allocation.Total.Add(invoice.BalanceRemaining)
		}
		return allocation, nil
	}

	if !requested.IsPositive() {
		return models.Allocation{}, fmt.Errorf("%w: got %s", utils.ErrInvalidAmount, requested.String())
	}

	remaining := *requested
	for _, invoice := range eligible {
		if !remaining.IsPositive() {
			break
		}
		applied := decimal.Min(invoice.BalanceRemaining, remaining)
		if !applied.IsPositive() {
			continue
		}
		allocation.Lines = append(allocation.Lines, models.AllocationLine{
			InvoiceTxnID:  invoice.TxnID,
			AppliedAmount: applied,
		})
		allocation.Total = allocation.Total.Add(applied)
		remaining = remaining.Sub(applied)
	}
	return allocation, nil
}

// orderingDate prefers TxnDate, falls back to TimeCreated, and treats an
// invoice with neither as dated in the distant future.
func orderingDate(invoice models.OpenInvoice) time.Time {
	if invoice.TxnDate != nil {
		return *invoice.TxnDate
	}
	if invoice.TimeCreated != nil {
		return *invoice.TimeCreated
	}
	return distantFuture
}

func fallbackTimestamp(invoice models.OpenInvoice) time.Time {
	if invoice.TimeCreated != nil {
		return *invoice.TimeCreated
	}
	return distantFuture
}
