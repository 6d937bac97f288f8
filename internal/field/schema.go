package field

import "fmt"

// Schema is an ordered set of fields with unique names.
type Schema struct {
	fields []*Field
	byName map[string]*Field
}

// NewSchema builds a schema. Duplicate names are a programming error.
func NewSchema(fields ...*Field) *Schema {
	s := &Schema{byName: make(map[string]*Field, len(fields))}
	for _, f := range fields {
		if f == nil || f.Name == "" {
			panic("field: schema fields must be named") // ALLOW-PANIC
		}
		if _, dup := s.byName[f.Name]; dup {
			panic(fmt.Sprintf("field: duplicate field %q", f.Name)) // ALLOW-PANIC
		}
		s.fields = append(s.fields, f)
		s.byName[f.Name] = f
	}
	return s
}

// Fields returns the fields in declaration order.
func (s *Schema) Fields() []*Field {
	if s == nil {
		return nil
	}
	return s.fields
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (*Field, bool) {
	if s == nil {
		return nil, false
	}
	f, ok := s.byName[name]
	return f, ok
}

// Names returns field names in declaration order.
func (s *Schema) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// PrimaryKey returns the first primary key field, if any.
func (s *Schema) PrimaryKey() (*Field, bool) {
	for _, f := range s.Fields() {
		if f.Kind == KindPrimaryKey {
			return f, true
		}
	}
	return nil, false
}
