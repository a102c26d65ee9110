package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"opsdesk/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

// fakeStore is an in-memory Store honoring the same contract as the MongoDB
// implementation: Create stamps both timestamps, Update fails with ErrNotFound
// on missing ids, Delete is idempotent and scans come back newest first.
// Writes get strictly increasing createdAt stamps so scan order is
// deterministic in tests.
type fakeStore struct {
	mu    sync.Mutex
	data  map[string]map[string]*models.Document
	clock time.Time

	updateErr error // returned by Update when set
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data:  make(map[string]map[string]*models.Document),
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fakeStore) tick() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fakeStore) collection(name string) map[string]*models.Document {
	if f.data[name] == nil {
		f.data[name] = make(map[string]*models.Document)
	}
	return f.data[name]
}

func (f *fakeStore) Create(ctx context.Context, collection string, data bson.M, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	now := f.tick()
	copied := make(bson.M, len(data))
	for k, v := range data {
		copied[k] = v
	}
	f.collection(collection)[id] = &models.Document{
		ID:        id,
		Data:      copied,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

func (f *fakeStore) Update(ctx context.Context, collection, id string, partial bson.M) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.updateErr != nil {
		return f.updateErr
	}
	doc, ok := f.collection(collection)[id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range partial {
		doc.Data[k] = v
	}
	doc.UpdatedAt = f.tick()
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, collection, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collection(collection), id)
	return nil
}

func (f *fakeStore) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.collection(collection)[id]
	if !ok {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
	}
	out := *doc
	out.Data = make(bson.M, len(doc.Data))
	for k, v := range doc.Data {
		out.Data[k] = v
	}
	return &out, nil
}

func (f *fakeStore) ScanAll(ctx context.Context, collection string) ([]models.Document, error) {
	return f.scan(collection, nil)
}

func (f *fakeStore) ScanByField(ctx context.Context, collection, field string, value interface{}) ([]models.Document, error) {
	return f.scan(collection, func(doc *models.Document) bool {
		return doc.Data[field] == value
	})
}

func (f *fakeStore) scan(collection string, keep func(*models.Document) bool) ([]models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var docs []models.Document
	for _, doc := range f.collection(collection) {
		if keep != nil && !keep(doc) {
			continue
		}
		docs = append(docs, *doc)
	}
	SortByCreatedAtDesc(docs)
	return docs, nil
}

func (f *fakeStore) ScanIDRange(ctx context.Context, collection, lo, hi string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var ids []string
	for id := range f.collection(collection) {
		if id >= lo && id < hi {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) CountByField(ctx context.Context, collection, field string, value interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for _, doc := range f.collection(collection) {
		if doc.Data[field] == value {
			count++
		}
	}
	return count, nil
}

var _ Store = (*fakeStore)(nil)
