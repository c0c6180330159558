package workflow

import (
	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
)

// ComparePaymentTerms matches two payment term record sets by RecordKey and
// partitions them into source-only, target-only and conflicting records.
// Pure function: no I/O, deterministic output ordering for deterministic
// input ordering.
func ComparePaymentTerms(sourceTerms, targetTerms []models.PaymentTermRecord) models.ReconciliationReport {
	sourceByKey, sourceOrder := indexByKey(sourceTerms)
	targetByKey, targetOrder := indexByKey(targetTerms)

	report := models.ReconciliationReport{
		SourceOnly: []models.PaymentTermRecord{},
		TargetOnly: []models.PaymentTermRecord{},
		Conflicts:  []models.ConflictRecord{},
	}

	for _, key := range sourceOrder {
		source := sourceByKey[key]
		target, matched := targetByKey[key]
		if !matched {
			report.SourceOnly = append(report.SourceOnly, source)
			continue
		}
		if conflict, mismatched := classifyConflict(key, source, target); mismatched {
			report.Conflicts = append(report.Conflicts, conflict)
		}
	}

	for _, key := range targetOrder {
		if _, matched := sourceByKey[key]; !matched {
			report.TargetOnly = append(report.TargetOnly, targetByKey[key])
		}
	}

	return report
}

// indexByKey builds the per-source key map. RecordKey must be unique within
// one set; when a duplicate appears, the later record overwrites the earlier
// one while keeping the first occurrence's position. Explicit rule, tested
// directly, not an accident of map iteration.
func indexByKey(terms []models.PaymentTermRecord) (map[string]models.PaymentTermRecord, []string) {
	byKey := make(map[string]models.PaymentTermRecord, len(terms))
	order := make([]string, 0, len(terms))
	for _, term := range terms {
		if _, seen := byKey[term.RecordKey]; !seen {
			order = append(order, term.RecordKey)
		}
		byKey[term.RecordKey] = term
	}
	return byKey, order
}

// classifyConflict compares the matched pair field by field, in fixed order:
// customer name, transaction date, invoice number, amount. Exactly one
// differing field yields that field's reason; two or more collapse into a
// single DATA_MISMATCH record that still carries every per-field value.
func classifyConflict(key string, source, target models.PaymentTermRecord) (models.ConflictRecord, bool) {
	reasons := make([]models.ConflictReason, 0, 4)
	if source.Customer != target.Customer {
		reasons = append(reasons, models.ConflictReasonNameMismatch)
	}
	if !models.SameCalendarDate(source.TransactionDate, target.TransactionDate) {
		reasons = append(reasons, models.ConflictReasonDateMismatch)
	}
	if source.InvoiceNumber != target.InvoiceNumber {
		reasons = append(reasons, models.ConflictReasonInvoiceNumberMismatch)
	}
	if !models.SameAmount(source.Amount, target.Amount) {
		reasons = append(reasons, models.ConflictReasonAmountMismatch)
	}
	if len(reasons) == 0 {
		return models.ConflictRecord{}, false
	}

	reason := reasons[0]
	if len(reasons) > 1 {
		reason = models.ConflictReasonDataMismatch
	}
	return models.ConflictRecord{
		RecordKey:           key,
		Reason:              reason,
		SourceName:          source.Customer,
		TargetName:          target.Customer,
		SourceDate:          source.TransactionDate,
		TargetDate:          target.TransactionDate,
		SourceInvoiceNumber: source.InvoiceNumber,
		TargetInvoiceNumber: target.InvoiceNumber,
		SourceAmount:        source.Amount,
		TargetAmount:        target.Amount,
	}, true
}
