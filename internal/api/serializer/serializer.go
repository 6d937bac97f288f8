// Package serializer converts between stored documents and wire JSON.
// A Generic serializer restricts output to a declared field set, derives
// values through per-field getters, and validates input against the model
// schema, collecting every field error before failing.
package serializer

import (
	"context"
	"fmt"
	"reflect"

	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/model"
	"github.com/phrazzld/viewset/internal/store"
)

// Options configure one serializer instance.
type Options struct {
	Model *model.Model
	// Instance is a store.Document or map[string]any, or a slice of them when Many.
	Instance any
	// Data is decoded JSON: an object, or an array when Many.
	Data    any
	Many    bool
	Partial bool
}

// Serializer is constructed per call and not reused across requests.
type Serializer interface {
	// Serialize returns map[string]any, or []map[string]any when Many.
	Serialize(ctx context.Context) (any, error)
	// Deserialize returns store.Document, or []store.Document when Many.
	Deserialize(ctx context.Context) (any, error)
}

// Factory builds serializers for views.
type Factory interface {
	New(opts Options) (Serializer, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(opts Options) (Serializer, error)

// New implements Factory.
func (f FactoryFunc) New(opts Options) (Serializer, error) { return f(opts) }

// Getter derives the serialized value of one field from a stored document.
type Getter func(ctx context.Context, doc store.Document) (any, error)

// Generic is the default Factory.
type Generic struct {
	// Fields whitelists serialized and accepted keys. Nil means every key of
	// the exported document on output and every schema field on input.
	Fields []string
	// Getters derive the value of individual fields on output. Derived
	// fields are accepted but ignored on input.
	Getters map[string]Getter
}

var _ Factory = Generic{}

// New implements Factory.
func (g Generic) New(opts Options) (Serializer, error) {
	if opts.Model == nil {
		return nil, contractError("new", fmt.Errorf("%w: model is required", ErrContract))
	}
	return &generic{cfg: g, opts: opts}, nil
}

type generic struct {
	cfg  Generic
	opts Options
}

func isSlice(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func toDocument(v any) (store.Document, bool) {
	switch d := v.(type) {
	case store.Document:
		return d, true
	case map[string]any:
		return store.Document(d), true
	default:
		return nil, false
	}
}

// Serialize implements Serializer.
func (s *generic) Serialize(ctx context.Context) (any, error) {
	inst := s.opts.Instance
	if inst == nil {
		return nil, contractError("serialize", ErrNoInstance)
	}
	if s.opts.Many != isSlice(inst) {
		return nil, contractError("serialize", ErrArrayMismatch)
	}

	if !s.opts.Many {
		doc, ok := toDocument(inst)
		if !ok {
			return nil, contractError("serialize", fmt.Errorf("%w: %T", ErrInstanceType, inst))
		}
		return s.serializeOne(ctx, doc)
	}

	items := reflect.ValueOf(inst)
	out := make([]map[string]any, 0, items.Len())
	for i := 0; i < items.Len(); i++ {
		doc, ok := toDocument(items.Index(i).Interface())
		if !ok {
			return nil, contractError("serialize",
				fmt.Errorf("%w: item %d is %T", ErrInstanceType, i, items.Index(i).Interface()))
		}
		m, err := s.serializeOne(ctx, doc)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *generic) serializeOne(ctx context.Context, doc store.Document) (map[string]any, error) {
	exported := s.opts.Model.Export(doc)
	if s.cfg.Fields == nil {
		return exported, nil
	}

	out := make(map[string]any, len(s.cfg.Fields))
	for _, name := range s.cfg.Fields {
		if getter, ok := s.cfg.Getters[name]; ok {
			v, err := getter(ctx, doc)
			if err != nil {
				return nil, fmt.Errorf("get %s: %w", name, err)
			}
			out[name] = v
			continue
		}
		if v, ok := exported[name]; ok {
			out[name] = v
		}
	}
	return out, nil
}

// Deserialize implements Serializer.
func (s *generic) Deserialize(ctx context.Context) (any, error) {
	data := s.opts.Data
	if data == nil {
		return nil, contractError("deserialize", ErrNoData)
	}
	if s.opts.Many != isSlice(data) {
		return nil, contractError("deserialize", ErrArrayMismatch)
	}

	if !s.opts.Many {
		doc, errs := s.deserializeOne(data)
		if len(errs) > 0 {
			return nil, &DeserializationError{Errors: errs}
		}
		return doc, nil
	}

	items := reflect.ValueOf(data)
	out := make([]store.Document, 0, items.Len())
	all := map[string]string{}
	for i := 0; i < items.Len(); i++ {
		doc, errs := s.deserializeOne(items.Index(i).Interface())
		for k, msg := range errs {
			all[fmt.Sprintf("%d.%s", i, k)] = msg
		}
		out = append(out, doc)
	}
	if len(all) > 0 {
		return nil, &DeserializationError{Errors: all}
	}
	return out, nil
}

// declared is the set of accepted input keys in order.
func (s *generic) declared() []string {
	if s.cfg.Fields != nil {
		return s.cfg.Fields
	}
	return s.opts.Model.Schema.Names()
}

func (s *generic) deserializeOne(item any) (store.Document, map[string]string) {
	in, ok := toDocument(item)
	if !ok {
		return nil, map[string]string{NonFieldKey: "Invalid value: expected object"}
	}

	m := s.opts.Model
	names := s.declared()
	errs := map[string]string{}

	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}
	restricted := s.cfg.Fields != nil || m.Schema != nil
	if restricted && !m.AllowExtraFields {
		for key := range in {
			if !known[key] {
				errs[key] = "Field not recognized"
			}
		}
	}

	out := store.Document{}
	for _, name := range names {
		if _, derived := s.cfg.Getters[name]; derived {
			continue
		}
		value, present := in[name]
		f, hasField := m.Field(name)
		if !hasField {
			if present {
				out[name] = value
			}
			continue
		}
		if f.ReadOnly {
			continue
		}
		if s.opts.Partial && !present {
			continue
		}
		if err := f.Validate(value, present); err != nil {
			errs[name] = err.Error()
			continue
		}
		switch {
		case present:
			out[name] = f.Clean(value)
		case f.HasDefault():
			out[name] = f.DefaultValue()
		default:
			out[name] = nil
		}
	}

	if m.AllowExtraFields || !restricted {
		for key, value := range in {
			if _, done := out[key]; done || known[key] {
				continue
			}
			out[key] = value
		}
	}

	delete(out, store.IDField)
	for key := range out {
		if store.IsMetaField(key) {
			delete(out, key)
		}
	}
	return out, errs
}

// FieldsOf returns the serializer's declared output fields for documentation
// purposes, falling back to the schema.
func FieldsOf(g Generic, m *model.Model) []*field.Field {
	if g.Fields == nil {
		return m.Schema.Fields()
	}
	out := make([]*field.Field, 0, len(g.Fields))
	for _, name := range g.Fields {
		if f, ok := m.Field(name); ok {
			out = append(out, f)
			continue
		}
		out = append(out, field.Any(name))
	}
	return out
}
