package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"opsdesk/internal/database"
	"opsdesk/internal/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the persistence contract the assistant subsystems and handlers
// build on. DocumentStore is the MongoDB-backed production implementation;
// tests substitute an in-memory fake.
type Store interface {
	// Create writes a document. An empty id allocates an opaque one; a given
	// id upserts with overwrite semantics. Both createdAt and updatedAt are
	// stamped. Returns the document id.
	Create(ctx context.Context, collection string, data bson.M, id string) (string, error)

	// Update applies a partial update to an existing document and re-stamps
	// updatedAt. Returns ErrNotFound when no document exists at id; silent
	// upsert is forbidden here, unlike Create.
	Update(ctx context.Context, collection, id string, partial bson.M) error

	// Delete removes a document. Idempotent: deleting a missing id succeeds.
	Delete(ctx context.Context, collection, id string) error

	// Get reads a single document by id. Returns ErrNotFound when absent.
	Get(ctx context.Context, collection, id string) (*models.Document, error)

	// ScanAll returns every document in the collection, sorted descending by
	// createdAt.
	ScanAll(ctx context.Context, collection string) ([]models.Document, error)

	// ScanByField returns the documents whose field equals value, sorted
	// descending by createdAt. The scan is a full-collection read filtered
	// client-side: no server-side index is assumed.
	ScanByField(ctx context.Context, collection, field string, value interface{}) ([]models.Document, error)

	// ScanIDRange returns the ids in [lo, hi), descending.
	ScanIDRange(ctx context.Context, collection, lo, hi string) ([]string, error)

	// CountByField counts the documents whose field equals value.
	CountByField(ctx context.Context, collection, field string, value interface{}) (int64, error)
}

// DocumentStore provides generic CRUD over named MongoDB collections.
type DocumentStore struct {
	db *database.MongoDB
}

// NewDocumentStore creates a new document store backed by the given connection.
func NewDocumentStore(db *database.MongoDB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Create writes a document, allocating a UUID id when the caller supplies
// none. A caller-supplied id upserts with full-replace semantics.
func (s *DocumentStore) Create(ctx context.Context, collection string, data bson.M, id string) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	doc := make(bson.M, len(data)+3)
	for k, v := range data {
		doc[k] = v
	}
	doc["_id"] = id
	doc["createdAt"] = now
	doc["updatedAt"] = now

	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return "", &StoreUnavailableError{Op: "create", Collection: collection, Err: err}
	}
	return id, nil
}

// Update checks existence first, then applies a $set of the partial data.
// The existence check can go stale between read and write under concurrent
// deletes; that window is accepted (single-writer discipline upstream).
func (s *DocumentStore) Update(ctx context.Context, collection, id string, partial bson.M) error {
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
		}
		return &StoreUnavailableError{Op: "update", Collection: collection, Err: err}
	}

	set := make(bson.M, len(partial)+1)
	for k, v := range partial {
		set[k] = v
	}
	set["updatedAt"] = time.Now().UTC()

	_, err = s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return &StoreUnavailableError{Op: "update", Collection: collection, Err: err}
	}
	return nil
}

// Delete removes a document if present. A missing id is not an error.
func (s *DocumentStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return &StoreUnavailableError{Op: "delete", Collection: collection, Err: err}
	}
	return nil
}

// Get reads a single document by id.
func (s *DocumentStore) Get(ctx context.Context, collection, id string) (*models.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("get %s/%s: %w", collection, id, ErrNotFound)
		}
		return nil, &StoreUnavailableError{Op: "get", Collection: collection, Err: err}
	}
	doc := toDocument(raw)
	return &doc, nil
}

// ScanAll reads the whole collection and sorts it locally.
func (s *DocumentStore) ScanAll(ctx context.Context, collection string) ([]models.Document, error) {
	return s.scan(ctx, collection, nil)
}

// ScanByField reads the whole collection and filters client-side. Trading a
// full scan for not having to provision an index per queried field.
func (s *DocumentStore) ScanByField(ctx context.Context, collection, field string, value interface{}) ([]models.Document, error) {
	return s.scan(ctx, collection, func(raw bson.M) bool {
		return raw[field] == value
	})
}

func (s *DocumentStore) scan(ctx context.Context, collection string, keep func(bson.M) bool) ([]models.Document, error) {
	cursor, err := s.db.Collection(collection).Find(ctx, bson.M{})
	if err != nil {
		return nil, &StoreUnavailableError{Op: "scan", Collection: collection, Err: err}
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, &StoreUnavailableError{Op: "scan", Collection: collection, Err: err}
		}
		if keep != nil && !keep(raw) {
			continue
		}
		docs = append(docs, toDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, &StoreUnavailableError{Op: "scan", Collection: collection, Err: err}
	}

	SortByCreatedAtDesc(docs)
	return docs, nil
}

// ScanIDRange returns the ids in [lo, hi), descending by id.
func (s *DocumentStore) ScanIDRange(ctx context.Context, collection, lo, hi string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: -1}}).
		SetProjection(bson.M{"_id": 1})

	cursor, err := s.db.Collection(collection).Find(ctx,
		bson.M{"_id": bson.M{"$gte": lo, "$lt": hi}}, opts)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "scanIDRange", Collection: collection, Err: err}
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var row struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, &StoreUnavailableError{Op: "scanIDRange", Collection: collection, Err: err}
		}
		ids = append(ids, row.ID)
	}
	if err := cursor.Err(); err != nil {
		return nil, &StoreUnavailableError{Op: "scanIDRange", Collection: collection, Err: err}
	}
	return ids, nil
}

// CountByField counts matching documents server-side.
func (s *DocumentStore) CountByField(ctx context.Context, collection, field string, value interface{}) (int64, error) {
	count, err := s.db.Collection(collection).CountDocuments(ctx, bson.M{field: value})
	if err != nil {
		return 0, &StoreUnavailableError{Op: "count", Collection: collection, Err: err}
	}
	return count, nil
}

// SortByCreatedAtDesc orders documents newest-first. Documents without a
// createdAt stamp compare equal among themselves; the sort is stable so
// their relative order is preserved.
func SortByCreatedAtDesc(docs []models.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt.After(docs[j].CreatedAt)
	})
}

// toDocument splits a raw BSON document into id, timestamps and payload.
func toDocument(raw bson.M) models.Document {
	doc := models.Document{Data: make(bson.M, len(raw))}
	for k, v := range raw {
		switch k {
		case "_id":
			if id, ok := v.(string); ok {
				doc.ID = id
			} else {
				doc.ID = fmt.Sprintf("%v", v)
			}
		case "createdAt":
			doc.CreatedAt = asTime(v)
		case "updatedAt":
			doc.UpdatedAt = asTime(v)
		default:
			doc.Data[k] = v
		}
	}
	return doc
}

func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	default:
		return time.Time{}
	}
}
