package services

import (
	"context"
	"log"
	"sync"

	"opsdesk/internal/database"
	"opsdesk/internal/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// SnapshotFunc receives the full, re-sorted member set of a collection.
// Each call replaces prior state wholesale; it is never a diff.
type SnapshotFunc func(docs []models.Document)

// ErrorFunc receives subscription failures.
type ErrorFunc func(err error)

// ChangeFeed pushes collection snapshots to subscribers on every remote
// mutation, using one MongoDB change stream per subscription. Callbacks for
// one subscription are delivered strictly sequentially from a single
// goroutine.
type ChangeFeed struct {
	db      *database.MongoDB
	store   Store
	metrics *Metrics
}

// NewChangeFeed creates a new change feed over the given store.
func NewChangeFeed(db *database.MongoDB, store Store, metrics *Metrics) *ChangeFeed {
	return &ChangeFeed{db: db, store: store, metrics: metrics}
}

// Subscribe opens a change stream on the collection and invokes onSnapshot
// with the full sorted member set, first immediately and then after every
// remote add/update/delete. The returned unsubscribe function is safe to
// call multiple times; after it returns, at most the callback already in
// flight is still observed.
func (f *ChangeFeed) Subscribe(collection string, onSnapshot SnapshotFunc, onError ErrorFunc) (unsubscribe func()) {
	ctx, cancel := context.WithCancel(context.Background())
	var once sync.Once
	unsubscribe = func() {
		once.Do(cancel)
	}

	stream, err := f.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		onError(&StoreUnavailableError{Op: "subscribe", Collection: collection, Err: err})
		return unsubscribe
	}

	go f.run(ctx, stream, collection, onSnapshot, onError)

	log.Printf("📡 [CHANGEFEED] Subscribed to collection: %s", collection)
	return unsubscribe
}

// run owns the subscription lifecycle: initial snapshot, one refetch per
// stream event, stream teardown. Because it is the only goroutine invoking
// onSnapshot, deliveries never overlap.
func (f *ChangeFeed) run(ctx context.Context, stream *mongo.ChangeStream, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) {
	defer stream.Close(context.Background())

	if !f.deliver(ctx, collection, onSnapshot, onError) {
		return
	}

	for stream.Next(ctx) {
		if !f.deliver(ctx, collection, onSnapshot, onError) {
			return
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		onError(&StoreUnavailableError{Op: "subscribe", Collection: collection, Err: err})
	}
}

// deliver refetches the collection and pushes one snapshot. Returns false
// once the subscription is cancelled or broken.
func (f *ChangeFeed) deliver(ctx context.Context, collection string, onSnapshot SnapshotFunc, onError ErrorFunc) bool {
	if ctx.Err() != nil {
		return false
	}

	docs, err := f.store.ScanAll(ctx, collection)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		onError(err)
		return false
	}

	if ctx.Err() != nil {
		return false
	}
	onSnapshot(docs)

	if f.metrics != nil {
		f.metrics.SnapshotsDelivered.WithLabelValues(collection).Inc()
	}
	return true
}
