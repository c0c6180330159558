package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/paymentsync_backend/config"
	"bitbucket.org/mmdatafocus/paymentsync_backend/models"
	"bitbucket.org/mmdatafocus/paymentsync_backend/utils"
	"bitbucket.org/mmdatafocus/paymentsync_backend/workflow"
)

func main() {
	workbookPath := flag.String("workbook", os.Getenv("WORKBOOK_PATH"), "Path to the payment terms workbook (.xlsx)")
	reportPath := flag.String("report", workflow.DefaultReportName, "Path for the JSON report file")
	skipDB := flag.Bool("skip-db", false, "Run without MySQL (no run persistence, no idempotency keys)")
	skipLock := flag.Bool("skip-lock", false, "Run without the redis run lock")
	flag.Parse()

	if strings.TrimSpace(*workbookPath) == "" {
		fmt.Fprintln(os.Stderr, "--workbook is required (or set WORKBOOK_PATH)")
		os.Exit(1)
	}

	logger := config.GetLogger()

	if !*skipDB {
		config.ConnectDatabaseWithRetry()
		models.MigrateTable()
	}
	if !*skipLock {
		config.ConnectRedisWithRetry()
	}

	run, err := workflow.RunPaymentTermsSync(context.Background(), config.GetDB(), logger, workflow.RunOptions{
		WorkbookPath: *workbookPath,
		ReportPath:   *reportPath,
		DisableLock:  *skipLock,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrRunInProgress) {
			fmt.Fprintln(os.Stderr, "another run is already in progress")
			os.Exit(1)
		}
		// Only fatal when no report could be produced at all.
		fmt.Fprintf(os.Stderr, "run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("run %s finished: status=%s source=%d target=%d applied=%d failed=%d conflicts=%d\n",
		run.RunKey, run.Status, run.SourceCount, run.TargetCount, run.AppliedCount, run.FailedCount, run.ConflictCount)
	fmt.Printf("report written to %s\n", *reportPath)
	if run.Status == models.RunStatusError {
		fmt.Fprintf(os.Stderr, "run ended with error: %s\n", utils.DereferencePtr(run.ErrorMessage, "unknown"))
		os.Exit(2)
	}
}
