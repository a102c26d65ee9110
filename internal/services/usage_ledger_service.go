package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"opsdesk/internal/config"
	"opsdesk/internal/database"
	"opsdesk/internal/models"

	"go.mongodb.org/mongo-driver/bson"
)

// UsageLedgerService tracks and enforces the monthly assistant message quota
// per subject. One UsagePeriod document per (subject, calendar month),
// created lazily on first access and never deleted. The ledger is a pure
// function of store contents plus the injected clock.
type UsageLedgerService struct {
	store    Store
	locks    *KeyedLocks
	ceilings atomic.Pointer[config.CeilingHistory]
	now      func() time.Time
}

// NewUsageLedgerService creates a new usage ledger.
func NewUsageLedgerService(store Store, locks *KeyedLocks, history *config.CeilingHistory) *UsageLedgerService {
	s := &UsageLedgerService{
		store: store,
		locks: locks,
		now:   time.Now,
	}
	s.ceilings.Store(history)
	return s
}

// ReloadCeilings swaps in a new ceiling history (quota.yaml hot reload).
func (s *UsageLedgerService) ReloadCeilings(history *config.CeilingHistory) {
	s.ceilings.Store(history)
	log.Printf("🔄 [USAGE] Ceiling history reloaded (current: %d)", history.Current())
}

// PeriodKey returns the calendar-month bucket for t, in UTC.
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func periodDocID(subjectID, period string) string {
	return subjectID + ":" + period
}

// ResolveOrCreate returns the subject's usage period for the current month,
// creating it with a zero count and the current ceiling when absent. An
// existing period carrying an obsolete ceiling is silently migrated forward
// to the current one; migration failure is logged and never surfaced.
func (s *UsageLedgerService) ResolveOrCreate(ctx context.Context, subjectID string) (*models.UsagePeriod, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject ID is required")
	}

	period := PeriodKey(s.now())
	id := periodDocID(subjectID, period)
	ceilings := s.ceilings.Load()

	doc, err := s.store.Get(ctx, database.CollectionUsagePeriods, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		_, err = s.store.Create(ctx, database.CollectionUsagePeriods, bson.M{
			"subjectId":    subjectID,
			"period":       period,
			"messageCount": 0,
			"maxMessages":  ceilings.Current(),
		}, id)
		if err != nil {
			return nil, err
		}
		return &models.UsagePeriod{
			ID:          id,
			SubjectID:   subjectID,
			Period:      period,
			MaxMessages: ceilings.Current(),
		}, nil
	}

	up := usagePeriodFromDoc(doc)

	if ceilings.IsStale(up.MaxMessages) {
		err := s.store.Update(ctx, database.CollectionUsagePeriods, id, bson.M{
			"maxMessages": ceilings.Current(),
		})
		if err != nil {
			log.Printf("⚠️ [USAGE] Ceiling migration failed for %s: %v", id, err)
		} else {
			up.MaxMessages = ceilings.Current()
		}
	}

	return up, nil
}

// CanConsume reports whether the subject has quota left this month.
func (s *UsageLedgerService) CanConsume(ctx context.Context, subjectID string) (bool, error) {
	up, err := s.ResolveOrCreate(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return up.MessageCount < up.MaxMessages, nil
}

// Increment consumes one message from the subject's monthly quota. The
// check and the write run under the subject's lock so sequential callers see
// exact counts; it fails with QuotaExceededError at the ceiling.
func (s *UsageLedgerService) Increment(ctx context.Context, subjectID string) error {
	release, err := s.locks.Acquire(ctx, "usage:"+subjectID)
	if err != nil {
		return err
	}
	defer release()

	up, err := s.ResolveOrCreate(ctx, subjectID)
	if err != nil {
		return err
	}

	if up.MessageCount >= up.MaxMessages {
		return &QuotaExceededError{
			SubjectID:      subjectID,
			Used:           up.MessageCount,
			Limit:          up.MaxMessages,
			DaysUntilReset: DaysUntilReset(s.now()),
		}
	}

	return s.store.Update(ctx, database.CollectionUsagePeriods, up.ID, bson.M{
		"messageCount":  up.MessageCount + 1,
		"lastMessageAt": s.now().UTC(),
	})
}

// Stats returns the subject's quota view for the current period.
func (s *UsageLedgerService) Stats(ctx context.Context, subjectID string) (*models.UsageStats, error) {
	up, err := s.ResolveOrCreate(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	return &models.UsageStats{
		Period:         up.Period,
		MessagesUsed:   up.MessageCount,
		MaxMessages:    up.MaxMessages,
		DaysUntilReset: DaysUntilReset(s.now()),
	}, nil
}

// MigrateCurrentPeriod sweeps the current period's documents and raises any
// obsolete ceilings. Used by the nightly migration job; returns the number of
// documents migrated.
func (s *UsageLedgerService) MigrateCurrentPeriod(ctx context.Context) (int, error) {
	period := PeriodKey(s.now())
	ceilings := s.ceilings.Load()

	docs, err := s.store.ScanByField(ctx, database.CollectionUsagePeriods, "period", period)
	if err != nil {
		return 0, err
	}

	migrated := 0
	for i := range docs {
		up := usagePeriodFromDoc(&docs[i])
		if !ceilings.IsStale(up.MaxMessages) {
			continue
		}
		err := s.store.Update(ctx, database.CollectionUsagePeriods, up.ID, bson.M{
			"maxMessages": ceilings.Current(),
		})
		if err != nil {
			log.Printf("⚠️ [USAGE] Sweep migration failed for %s: %v", up.ID, err)
			continue
		}
		migrated++
	}
	return migrated, nil
}

// DaysUntilReset returns the days remaining until the first day of the next
// month, rounding any partial day up.
func DaysUntilReset(now time.Time) int {
	now = now.UTC()
	firstOfNext := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	remaining := firstOfNext.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func usagePeriodFromDoc(doc *models.Document) *models.UsagePeriod {
	up := &models.UsagePeriod{
		ID:           doc.ID,
		SubjectID:    doc.StringField("subjectId"),
		Period:       doc.StringField("period"),
		MessageCount: asInt(doc.Field("messageCount")),
		MaxMessages:  asInt(doc.Field("maxMessages")),
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
	if t := asTime(doc.Field("lastMessageAt")); !t.IsZero() {
		up.LastMessageAt = &t
	}
	return up
}

// asInt normalizes the numeric types the BSON decoder may hand back.
func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
