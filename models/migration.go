package models

import (
	"log"

	"bitbucket.org/mmdatafocus/paymentsync_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ReconciliationRun{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
