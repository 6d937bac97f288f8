// Package model binds a resource name to its field schema and the
// primary key used for identity lookups.
package model

import (
	"strings"

	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/store"
)

// Model describes a stored resource.
type Model struct {
	Name   string
	Schema *field.Schema
	// AllowExtraFields accepts input keys that are not declared in Schema.
	AllowExtraFields bool
}

// Option configures a Model.
type Option func(*Model)

// WithExtraFields lets serializers accept undeclared keys.
func WithExtraFields() Option {
	return func(m *Model) { m.AllowExtraFields = true }
}

// New builds a model. A nil schema makes the model schemaless.
func New(name string, schema *field.Schema, opts ...Option) *Model {
	if name == "" {
		panic("model: name is required") // ALLOW-PANIC
	}
	m := &Model{Name: name, Schema: schema}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PrimaryKey returns the identity field name: the first primary key field in
// the schema, or store.IDField.
func (m *Model) PrimaryKey() string {
	if f, ok := m.Schema.PrimaryKey(); ok {
		return f.Name
	}
	return store.IDField
}

// LowerName is the lowercased model name.
func (m *Model) LowerName() string {
	return strings.ToLower(m.Name)
}

// LookupParam is the default route parameter naming one instance, e.g. "note_id".
func (m *Model) LookupParam() string {
	return m.LowerName() + "_id"
}

// Field returns the declared field for name.
func (m *Model) Field(name string) (*field.Field, bool) {
	return m.Schema.Field(name)
}

// ParseKey converts a raw route parameter into the primary key's value type.
func (m *Model) ParseKey(raw string) (any, error) {
	if f, ok := m.Field(m.PrimaryKey()); ok {
		return f.Parse(raw)
	}
	return raw, nil
}

// ApplyDefaults returns a copy of doc with defaults filled in for absent fields.
func (m *Model) ApplyDefaults(doc store.Document) store.Document {
	out := doc.Clone()
	if out == nil {
		out = store.Document{}
	}
	for _, f := range m.Schema.Fields() {
		if _, present := out[f.Name]; present || !f.HasDefault() {
			continue
		}
		out[f.Name] = f.DefaultValue()
	}
	return out
}

// Export returns the client-visible representation of a stored document.
// Collection-managed meta fields are dropped.
func (m *Model) Export(doc store.Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if store.IsMetaField(k) {
			continue
		}
		out[k] = v
	}
	return out
}
