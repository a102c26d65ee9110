package services

import (
	"testing"
	"time"

	"opsdesk/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestSortByCreatedAtDesc(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)

	docs := []models.Document{
		{ID: "b", CreatedAt: t2},
		{ID: "a", CreatedAt: t1},
		{ID: "c", CreatedAt: t3},
	}
	SortByCreatedAtDesc(docs)

	want := []string{"c", "b", "a"}
	for i, id := range want {
		if docs[i].ID != id {
			t.Errorf("docs[%d].ID = %q, want %q", i, docs[i].ID, id)
		}
	}
}

func TestSortByCreatedAtDescStable(t *testing.T) {
	ts := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := []models.Document{
		{ID: "first", CreatedAt: ts},
		{ID: "second", CreatedAt: ts},
		{ID: "third", CreatedAt: ts},
	}
	SortByCreatedAtDesc(docs)

	// Equal timestamps keep their relative order.
	want := []string{"first", "second", "third"}
	for i, id := range want {
		if docs[i].ID != id {
			t.Errorf("docs[%d].ID = %q, want %q", i, docs[i].ID, id)
		}
	}
}

func TestToDocument(t *testing.T) {
	created := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	doc := toDocument(bson.M{
		"_id":       "05032024",
		"createdAt": primitive.NewDateTimeFromTime(created),
		"updatedAt": updated,
		"clientId":  "client-1",
		"status":    "pending",
	})

	if doc.ID != "05032024" {
		t.Errorf("ID = %q, want %q", doc.ID, "05032024")
	}
	if !doc.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", doc.CreatedAt, created)
	}
	if !doc.UpdatedAt.Equal(updated) {
		t.Errorf("UpdatedAt = %v, want %v", doc.UpdatedAt, updated)
	}
	if doc.StringField("clientId") != "client-1" {
		t.Errorf("clientId = %q, want %q", doc.StringField("clientId"), "client-1")
	}
	// Reserved keys never leak into the payload.
	for _, k := range []string{"_id", "createdAt", "updatedAt"} {
		if _, ok := doc.Data[k]; ok {
			t.Errorf("payload contains reserved key %q", k)
		}
	}
}

func TestAsTime(t *testing.T) {
	ts := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)

	if got := asTime(ts); !got.Equal(ts) {
		t.Errorf("asTime(time.Time) = %v, want %v", got, ts)
	}
	if got := asTime(primitive.NewDateTimeFromTime(ts)); !got.Equal(ts) {
		t.Errorf("asTime(primitive.DateTime) = %v, want %v", got, ts)
	}
	if got := asTime("not a time"); !got.IsZero() {
		t.Errorf("asTime(string) = %v, want zero", got)
	}
	if got := asTime(nil); !got.IsZero() {
		t.Errorf("asTime(nil) = %v, want zero", got)
	}
}
