package jobs

import (
	"context"
	"log"
	"time"

	"opsdesk/internal/database"
	"opsdesk/internal/services"
)

// UsageReportJob logs an hourly summary of message consumption for the
// current billing period.
type UsageReportJob struct {
	store services.Store
}

func NewUsageReportJob(store services.Store) *UsageReportJob {
	return &UsageReportJob{store: store}
}

func (j *UsageReportJob) Run(ctx context.Context) {
	period := services.PeriodKey(time.Now())
	docs, err := j.store.ScanByField(ctx, database.CollectionUsagePeriods, "period", period)
	if err != nil {
		log.Printf("❌ [USAGE-REPORT] Failed to scan usage records: %v", err)
		return
	}

	var total int64
	atLimit := 0
	for i := range docs {
		used, _ := docs[i].Field("messageCount").(int64)
		if used == 0 {
			if f, ok := docs[i].Field("messageCount").(int32); ok {
				used = int64(f)
			}
		}
		max, _ := docs[i].Field("maxMessages").(int64)
		if max == 0 {
			if f, ok := docs[i].Field("maxMessages").(int32); ok {
				max = int64(f)
			}
		}
		total += used
		if max > 0 && used >= max {
			atLimit++
		}
	}

	log.Printf("📊 [USAGE-REPORT] Period %s: %d active subjects, %d messages consumed, %d at limit",
		period, len(docs), total, atLimit)
}
