// Package openapi describes mounted resources as an OpenAPI 3 document.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"

	"github.com/phrazzld/viewset/internal/api/controller"
	"github.com/phrazzld/viewset/internal/api/serializer"
	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/api/view"
	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/model"
)

// Version is the OpenAPI version emitted.
const Version = "3.0.3"

// Mount is a resource registered under Prefix.
type Mount struct {
	Prefix   string
	Resource *view.Resource
}

// Build produces a validated document for the given mounts.
func Build(ctx context.Context, info openapi3.Info, mounts ...Mount) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI:    Version,
		Info:       &info,
		Paths:      openapi3.NewPaths(),
		Components: &openapi3.Components{Schemas: openapi3.Schemas{}},
	}
	b := &builder{doc: doc, errSchema: errorSchema()}
	doc.Components.Schemas[errorSchemaName] = openapi3.NewSchemaRef("", b.errSchema)

	for _, mount := range mounts {
		if mount.Resource == nil {
			return nil, fmt.Errorf("openapi: mount %q has no resource", mount.Prefix)
		}
		b.addResource(mount)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: invalid document: %w", err)
	}
	return doc, nil
}

const errorSchemaName = "Error"

func errorSchema() *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Description = "Either a message or a map of field name to message."
	s.Properties = openapi3.Schemas{"error": openapi3.NewSchemaRef("", openapi3.NewSchema())}
	s.Required = []string{"error"}
	return s
}

func componentRef(name string) string {
	return "#/components/schemas/" + name
}

// fieldsOf returns the fields a resource exposes. Only Generic serializers
// can be introspected; other factories fall back to the model schema.
func fieldsOf(res *view.Resource) []*field.Field {
	m := res.Model()
	if g, ok := res.DefaultSerializer().(serializer.Generic); ok {
		return serializer.FieldsOf(g, m)
	}
	return m.Schema.Fields()
}

// ModelSchema converts field descriptors into an object schema.
func ModelSchema(m *model.Model, fields []*field.Field) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	s.Title = m.Name
	s.Properties = make(openapi3.Schemas, len(fields))
	extra := m.AllowExtraFields
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: &extra}

	var required []string
	for _, f := range fields {
		s.Properties[f.Name] = openapi3.NewSchemaRef("", FieldSchema(f))
		if f.Required && !f.HasDefault() && !f.ReadOnly {
			required = append(required, f.Name)
		}
	}
	s.Required = required
	return s
}

// FieldSchema converts one field descriptor.
func FieldSchema(f *field.Field) *openapi3.Schema {
	var s *openapi3.Schema
	switch f.Kind {
	case field.KindString, field.KindPrimaryKey:
		s = openapi3.NewStringSchema()
		if !f.Blank || f.Kind == field.KindPrimaryKey {
			s.MinLength = 1
		}
	case field.KindInteger:
		s = openapi3.NewInt64Schema()
	case field.KindNumber:
		s = openapi3.NewFloat64Schema()
	case field.KindBoolean:
		s = openapi3.NewBoolSchema()
	case field.KindArray:
		s = openapi3.NewArraySchema().WithItems(openapi3.NewSchema())
	case field.KindObject:
		s = openapi3.NewObjectSchema()
	default:
		s = openapi3.NewSchema()
	}

	s.Nullable = f.Nullable
	s.ReadOnly = f.ReadOnly
	if len(f.Choices) > 0 {
		s.Enum = append([]any(nil), f.Choices...)
	}
	if f.HasDefault() && f.DefaultFunc == nil {
		s.Default = f.Default
	}
	if f.Rules != "" {
		s.Description = "Constraints: " + f.Rules
	}
	return s
}

type builder struct {
	doc       *openapi3.T
	errSchema *openapi3.Schema
}

// errorRef points at the shared error component. The resolved value is kept
// so the document validates without a loader pass.
func (b *builder) errorRef() *openapi3.SchemaRef {
	return openapi3.NewSchemaRef(componentRef(errorSchemaName), b.errSchema)
}

func (b *builder) addResource(mount Mount) {
	res := mount.Resource
	m := res.Model()
	name := m.Name
	tag := m.LowerName()
	doc := b.doc

	schema := ModelSchema(m, fieldsOf(res))
	doc.Components.Schemas[name] = openapi3.NewSchemaRef("", schema)
	one := openapi3.NewSchemaRef(componentRef(name), schema)
	arr := openapi3.NewArraySchema()
	arr.Items = one
	list := openapi3.NewSchemaRef("", arr)

	collectionPath, detailPath := res.Paths(mount.Prefix)
	collection := &openapi3.PathItem{}
	detail := &openapi3.PathItem{}

	idParam := openapi3.NewPathParameter(res.LookupName()).WithSchema(openapi3.NewStringSchema())
	idParam.Description = "Value of the " + res.LookupField() + " field."

	for _, method := range res.HandledMethods() {
		switch method {
		case http.MethodGet:
			op := b.newOperation(tag, tag+".list", "List "+name+" documents")
			op.AddParameter(openapi3.NewQueryParameter(view.ParamLimit).WithSchema(openapi3.NewIntegerSchema().WithMin(0)))
			op.AddParameter(openapi3.NewQueryParameter(view.ParamOffset).WithSchema(openapi3.NewIntegerSchema().WithMin(0)))
			op.AddParameter(openapi3.NewQueryParameter(view.ParamIncludeDeleted).WithSchema(openapi3.NewBoolSchema()))
			respond(op, http.StatusOK, "Matching documents", list)
			respond(op, http.StatusBadRequest, "Invalid query parameter", b.errorRef())
			collection.SetOperation(method, op)

			op = b.newOperation(tag, tag+".retrieve", "Retrieve one "+name)
			op.AddParameter(idParam)
			respond(op, http.StatusOK, "The document", one)
			respond(op, http.StatusNotFound, "No such document", nil)
			detail.SetOperation(method, op)

		case http.MethodPost:
			op := b.newOperation(tag, tag+".create", "Create one "+name+" or many from an array")
			body := openapi3.NewOneOfSchema()
			body.OneOf = openapi3.SchemaRefs{one, list}
			op.RequestBody = requestBody(openapi3.NewSchemaRef("", body))
			respond(op, http.StatusCreated, "Created document or documents", nil)
			respond(op, http.StatusBadRequest, "Validation failed", b.errorRef())
			respond(op, http.StatusExpectationFailed, "Only some documents were inserted", b.errorRef())
			collection.SetOperation(method, op)

		case http.MethodPatch:
			op := b.newOperation(tag, tag+".bulkUpdate", "Update many "+name+" documents by "+res.LookupField())
			op.RequestBody = requestBody(list)
			respond(op, http.StatusOK, "Updated documents", list)
			respond(op, http.StatusBadRequest, "Validation failed", b.errorRef())
			collection.SetOperation(method, op)

			op = b.newOperation(tag, tag+".update", "Partially update one "+name)
			op.AddParameter(idParam)
			op.RequestBody = requestBody(one)
			respond(op, http.StatusOK, "The updated document", one)
			respond(op, http.StatusBadRequest, "Validation failed", b.errorRef())
			respond(op, http.StatusNotFound, "No such document", nil)
			detail.SetOperation(method, op)

		case http.MethodDelete:
			op := b.newOperation(tag, tag+".bulkDelete", "Delete many "+name+" documents")
			op.RequestBody = requestBody(openapi3.NewSchemaRef("",
				openapi3.NewArraySchema().WithItems(openapi3.NewSchema())))
			respond(op, http.StatusNoContent, "Deleted", nil)
			respond(op, http.StatusBadRequest, "Invalid body", b.errorRef())
			collection.SetOperation(method, op)

			op = b.newOperation(tag, tag+".delete", "Delete one "+name)
			op.AddParameter(idParam)
			respond(op, http.StatusNoContent, "Deleted", nil)
			respond(op, http.StatusNotFound, "No such document", nil)
			detail.SetOperation(method, op)
		}
	}

	if len(collection.Operations()) > 0 {
		doc.Paths.Set(controller.Pattern(collectionPath), collection)
	}
	if len(detail.Operations()) > 0 {
		doc.Paths.Set(controller.Pattern(detailPath), detail)
	}
}

func (b *builder) newOperation(tag, id, summary string) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.OperationID = id
	op.Summary = summary
	op.Tags = []string{tag}
	op.Responses = openapi3.NewResponsesWithCapacity(4)
	respond(op, http.StatusForbidden, "Denied by the authorizer", b.errorRef())
	return op
}

func requestBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(schema),
	}
}

func respond(op *openapi3.Operation, status int, description string, schema *openapi3.SchemaRef) {
	resp := openapi3.NewResponse().WithDescription(description)
	if schema != nil {
		resp = resp.WithJSONSchemaRef(schema)
	}
	op.AddResponse(status, resp)
}

// YAML renders doc as block-style YAML, keeping the JSON key order.
func YAML(doc *openapi3.T) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("openapi: marshal json: %w", err)
	}

	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("openapi: convert to yaml: %w", err)
	}
	blockStyle(&node)

	var b strings.Builder
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("openapi: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("openapi: encode yaml: %w", err)
	}
	return []byte(b.String()), nil
}

// blockStyle clears the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		blockStyle(child)
	}
}

// JSONHandler serves doc as JSON.
func JSONHandler(doc *openapi3.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, doc)
	}
}

// YAMLHandler serves doc as YAML. The document is rendered once.
func YAMLHandler(doc *openapi3.T) (http.HandlerFunc, error) {
	body, err := YAML(doc)
	if err != nil {
		return nil, err
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}, nil
}
