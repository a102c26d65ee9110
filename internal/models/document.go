package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Document is a single addressable record within a collection. The store
// keeps the id under "_id", the payload fields at the top level of the BSON
// document and stamps "createdAt"/"updatedAt" on every write.
type Document struct {
	ID        string    `json:"id"`
	Data      bson.M    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Field returns a payload field, or nil if absent.
func (d *Document) Field(name string) interface{} {
	if d.Data == nil {
		return nil
	}
	return d.Data[name]
}

// StringField returns a payload field as a string ("" if absent or not a string).
func (d *Document) StringField(name string) string {
	s, _ := d.Field(name).(string)
	return s
}
