package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeRecordKey(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"7", "7"},
		{"7.0", "7"},
		{"  12345.0  ", "12345"},
		{"0012", "12"}, // numeric cells lose leading zeros
		{"7.5", "7.5"}, // non-integral floats stay as written
		{"AB-77", "AB-77"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := NormalizeRecordKey(tc.in); got != tc.expected {
			t.Fatalf("NormalizeRecordKey(%q): expected %q, got %q", tc.in, tc.expected, got)
		}
	}
}

func TestParseFlexibleDate(t *testing.T) {
	cases := []struct {
		in       string
		expected time.Time
	}{
		{"2024-03-05", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"03/05/2024", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"2024/03/05", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		{"03-05-2024", time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)},
		// Day > 12 forces day-month interpretation.
		{"25/03/2024", time.Date(2024, time.March, 25, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := ParseFlexibleDate(tc.in)
		if err != nil {
			t.Fatalf("ParseFlexibleDate(%q) error: %v", tc.in, err)
		}
		if !got.Equal(tc.expected) {
			t.Fatalf("ParseFlexibleDate(%q): expected %v, got %v", tc.in, tc.expected, got)
		}
	}

	for _, bad := range []string{"", "garbage", "2024-13-40"} {
		if _, err := ParseFlexibleDate(bad); err == nil {
			t.Fatalf("ParseFlexibleDate(%q): expected error", bad)
		}
	}
}

func TestQBAmount_RoundsHalfUpAtTwoDigits(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"10", "10.00"},
		{"10.005", "10.01"},
		{"10.004", "10.00"},
		{"0.3", "0.30"},
		{"99.999", "100.00"},
	}
	for _, tc := range cases {
		if got := QBAmount(decimal.RequireFromString(tc.in)); got != tc.expected {
			t.Fatalf("QBAmount(%s): expected %s, got %s", tc.in, tc.expected, got)
		}
	}
}

func TestQBDate(t *testing.T) {
	d := time.Date(2024, time.July, 9, 15, 30, 0, 0, time.UTC)
	if got := QBDate(&d); got != "2024-07-09" {
		t.Fatalf("QBDate: expected 2024-07-09, got %s", got)
	}
	if got := QBDate(nil); got != time.Now().Format("2006-01-02") {
		t.Fatalf("QBDate(nil) must default to today, got %s", got)
	}
}

func TestParseDecimal_ErrorCarriesRawValue(t *testing.T) {
	if _, err := ParseDecimal("not-a-number"); err == nil || !strings.Contains(err.Error(), "not-a-number") {
		t.Fatalf("expected error carrying the raw value, got %v", err)
	}
	if _, err := ParseDecimal("  "); err == nil {
		t.Fatalf("expected error for blank input")
	}
	got, err := ParseDecimal(" 12.50 ")
	if err != nil {
		t.Fatalf("ParseDecimal error: %v", err)
	}
	if !got.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected 12.5, got %s", got)
	}
}

func TestStripIllegalXMLChars(t *testing.T) {
	in := "ok\x00\x08\x0b\x1ftext\ttab\nnewline"
	got := StripIllegalXMLChars(in)
	if got != "oktext\ttab\nnewline" {
		t.Fatalf("unexpected result: %q", got)
	}
}
