package services

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DateKeyService allocates human-readable, date-prefixed document ids of the
// form DDMMYYYY, with a numeric suffix starting at 1 for the second and later
// documents of a day. Ids for a fixed day are allocated in increasing suffix
// order and never reused.
type DateKeyService struct {
	store Store
	locks *KeyedLocks
}

// NewDateKeyService creates a new date-keyed id allocator.
func NewDateKeyService(store Store, locks *KeyedLocks) *DateKeyService {
	return &DateKeyService{store: store, locks: locks}
}

// Allocate returns the next free date-keyed id for the given collection and
// day. The day is taken as the caller supplied it; no timezone normalization
// happens here. The read-probe window is held under a per (collection, day)
// lock so concurrent callers cannot pick the same id.
func (s *DateKeyService) Allocate(ctx context.Context, collection string, day time.Time) (string, error) {
	base := day.Format("02012006")

	release, err := s.locks.Acquire(ctx, "docid:"+collection+":"+base)
	if err != nil {
		return "", err
	}
	defer release()

	// "z" sorts above any digit suffix in ASCII, bounding the range for the day.
	existing, err := s.store.ScanIDRange(ctx, collection, base, base+"z")
	if err != nil {
		return "", fmt.Errorf("allocate date key for %s: %w", collection, err)
	}

	return nextDateKey(base, existing), nil
}

// nextDateKey probes base, base+"1", base+"2", ... and returns the first
// candidate not present in existing. The bare base is always tried first, so
// the first document of a day carries no suffix (and never a "0").
func nextDateKey(base string, existing []string) string {
	taken := make(map[string]struct{}, len(existing))
	for _, id := range existing {
		taken[id] = struct{}{}
	}

	if _, ok := taken[base]; !ok {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + strconv.Itoa(n)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}
