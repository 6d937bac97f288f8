package store

import (
	"context"
	"strings"
)

// Reserved document keys.
const (
	// IDField is the fallback identity key for models without a primary key field.
	IDField = "_id"

	// Meta fields are managed by collections and never exported to clients.
	CreatedField = "__created"
	UpdatedField = "__updated"
	DeletedField = "__deleted"
)

// Document is a decoded JSON object as stored in a collection.
type Document map[string]any

// Clone returns a shallow copy.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Deleted reports whether the document carries a soft-delete marker.
func (d Document) Deleted() bool {
	v, ok := d[DeletedField]
	return ok && v != nil && v != false
}

// IsMetaField reports whether a key is collection-managed.
func IsMetaField(name string) bool {
	return strings.HasPrefix(name, "__")
}

// InsertResult reports the outcome of a bulk insert.
type InsertResult struct {
	InsertedCount int
	InsertedIDs   []any
}

// Query is a chainable, lazily executed query over one collection.
// Builder methods return a new Query and never mutate the receiver.
type Query interface {
	// Filter restricts results to documents whose field equals value.
	Filter(field string, value any) Query
	// FilterIn restricts results to documents whose field is one of values.
	FilterIn(field string, values []any) Query
	// Active excludes soft-deleted documents.
	Active() Query
	// Limit caps the number of returned documents. Zero means unlimited.
	Limit(n int) Query
	// Skip drops the first n matches.
	Skip(n int) Query

	// Get returns the first match or ErrNotFound.
	Get(ctx context.Context) (Document, error)
	// All returns every match in insertion order.
	All(ctx context.Context) ([]Document, error)
}

// Collection is a named set of documents keyed by a primary key field.
type Collection interface {
	Name() string
	// Key is the primary key field name.
	Key() string
	Query() Query

	// Insert stores one document, assigning a primary key when absent,
	// and returns the stored document.
	Insert(ctx context.Context, doc Document) (Document, error)
	// BulkInsert stores documents and reports how many were stored.
	// Documents rejected individually (duplicate keys) are skipped and only
	// reflected in the count; the error is reserved for backend failures.
	BulkInsert(ctx context.Context, docs []Document) (InsertResult, error)
	// Update merges fields into the active document with the given id.
	Update(ctx context.Context, id any, fields Document) error
	// Delete soft-deletes the active document with the given id.
	Delete(ctx context.Context, id any) error
}

// Provider hands out collections by name. Each storage backend implements it
// so the server can pick a driver from configuration.
type Provider interface {
	Collection(name, key string) Collection
}
