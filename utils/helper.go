package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Date layouts accepted from workbook cells and ledger responses, tried in
// order. The slash/dash month-day vs day-month ambiguity is resolved by
// precedence: US ordering wins when both parse.
var acceptedDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"01-02-2006",
	"02-01-2006",
}

// ParseFlexibleDate parses a calendar date in any accepted layout. The error
// carries the offending raw value.
func ParseFlexibleDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date string")
	}
	for _, layout := range acceptedDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %q", value)
}

// QBDate renders a date the way the ledger expects it. A nil date defaults
// to today.
func QBDate(t *time.Time) string {
	if t == nil {
		now := time.Now()
		return now.Format("2006-01-02")
	}
	return t.Format("2006-01-02")
}

// QBAmount renders a decimal with exactly two fraction digits, rounding
// half-up. This is the only place allocation amounts are rounded; all
// intermediate arithmetic keeps full precision.
func QBAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q: %w", value, err)
	}
	return dec, nil
}

// NormalizeRecordKey canonicalizes a workbook cell value into the string key
// used for matching. Numeric cells often arrive as "7" or "7.0"; both
// normalize to "7" so the same logical key always compares equal.
func NormalizeRecordKey(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return raw
}

// XML 1.0 disallows most C0/C1 control characters; the ledger rejects
// requests containing them.
var xml10Illegal = regexp.MustCompile("[\u0000-\u0008\u000B\u000C\u000E-\u001F\u007F-\u0084\u0086-\u009F]")

func StripIllegalXMLChars(s string) string {
	return xml10Illegal.ReplaceAllString(s, "")
}

func ProcessValidationErrors(err error) map[string]string {
	errorsMap := make(map[string]string)
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldErr := range validationErrors {
			errorsMap[fieldErr.Field()] = fieldErr.Tag()
		}
	}
	return errorsMap
}

func DereferencePtr[T any](ptr *T, defaults ...T) T {
	if ptr != nil {
		return *ptr
	}
	var def T
	if len(defaults) > 0 {
		def = defaults[0]
	}
	return def
}

func NilIfEmpty[T comparable](value T) *T {
	var zero T
	if value == zero {
		return nil
	}
	return &value
}
