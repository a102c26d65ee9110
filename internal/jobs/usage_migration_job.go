package jobs

import (
	"context"
	"log"

	"opsdesk/internal/services"
)

// UsageMigrationJob sweeps current-period usage records onto the latest
// quota ceiling so subjects pick up limit raises without waiting for
// their next request.
type UsageMigrationJob struct {
	ledger *services.UsageLedgerService
}

func NewUsageMigrationJob(ledger *services.UsageLedgerService) *UsageMigrationJob {
	return &UsageMigrationJob{ledger: ledger}
}

func (j *UsageMigrationJob) Run(ctx context.Context) {
	migrated, err := j.ledger.MigrateCurrentPeriod(ctx)
	if err != nil {
		log.Printf("❌ [USAGE-MIGRATION] Sweep failed: %v", err)
		return
	}
	if migrated > 0 {
		log.Printf("✅ [USAGE-MIGRATION] Migrated %d usage records to current ceiling", migrated)
	} else {
		log.Println("✅ [USAGE-MIGRATION] All usage records already on current ceiling")
	}
}
