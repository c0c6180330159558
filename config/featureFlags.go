package config

import (
	"os"
	"strings"
)

// DryRun disables the apply step: records missing from the ledger are
// compared and reported but no receive-payment is ever submitted.
//
// Set via env:
// - PAYMENTSYNC_DRY_RUN=true
func DryRun() bool {
	return boolFromEnv("PAYMENTSYNC_DRY_RUN")
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
