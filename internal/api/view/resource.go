package view

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/viewset/internal/api/controller"
	"github.com/phrazzld/viewset/internal/api/serializer"
	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/model"
	"github.com/phrazzld/viewset/internal/platform/logger"
	"github.com/phrazzld/viewset/internal/store"
)

// SaveParamsFunc returns values merged over every created document, such as
// an owner taken from the auth context.
type SaveParamsFunc func(r *http.Request) (map[string]any, error)

// ResourceConfig configures a Resource.
type ResourceConfig struct {
	Model      *model.Model
	Collection store.Collection

	// Serializer defaults to serializer.Generic{}.
	Serializer     serializer.Factory
	SerializerFunc func(r *http.Request) serializer.Factory
	Authorizer     Authorizer
	AllowedMethods []string

	// LookupField defaults to the model's primary key.
	LookupField string
	// PageSize applies when Queries is nil.
	PageSize   int
	Queries    QueryProvider
	SaveParams SaveParamsFunc

	IgnoreSerializerMethods  []string
	PartialSerializerMethods []string

	Logger *slog.Logger
}

// Resource is a View providing CRUD over one store collection.
type Resource struct {
	*View

	coll        store.Collection
	lookupField string
	queries     QueryProvider
	saveParams  SaveParamsFunc
}

// NewResource builds a Resource. Model and Collection are required.
func NewResource(cfg ResourceConfig) *Resource {
	if cfg.Model == nil {
		panic("view: resource model cannot be nil") // ALLOW-PANIC
	}
	if cfg.Collection == nil {
		panic("view: resource collection cannot be nil") // ALLOW-PANIC
	}

	res := &Resource{
		coll:        cfg.Collection,
		lookupField: cfg.LookupField,
		queries:     cfg.Queries,
		saveParams:  cfg.SaveParams,
	}
	if res.lookupField == "" {
		res.lookupField = cfg.Model.PrimaryKey()
	}
	if res.queries == nil {
		res.queries = DefaultQueries{PageSize: cfg.PageSize}
	}

	factory := cfg.Serializer
	if factory == nil {
		factory = serializer.Generic{}
	}

	res.View = New(Config{
		Name:  cfg.Model.Name,
		Model: cfg.Model,
		Handlers: map[string]Handler{
			http.MethodGet:    res.retrieve,
			http.MethodPost:   res.create,
			http.MethodPatch:  res.update,
			http.MethodDelete: res.destroy,
		},
		AllowedMethods:           cfg.AllowedMethods,
		Authorizer:               cfg.Authorizer,
		Serializer:               factory,
		SerializerFunc:           cfg.SerializerFunc,
		IgnoreSerializerMethods:  cfg.IgnoreSerializerMethods,
		PartialSerializerMethods: cfg.PartialSerializerMethods,
		Logger:                   cfg.Logger,
	})
	return res
}

// Collection returns the backing collection.
func (res *Resource) Collection() store.Collection { return res.coll }

// LookupField is the document field matched against the detail path parameter.
func (res *Resource) LookupField() string { return res.lookupField }

// LookupName is the detail path parameter name, e.g. "note_id".
func (res *Resource) LookupName() string { return res.model.LookupParam() }

// LookupPath is the detail path suffix, e.g. "/:note_id".
func (res *Resource) LookupPath() string { return "/:" + res.LookupName() }

// Paths returns the collection and detail paths under prefix.
func (res *Resource) Paths(prefix string) (collection, detail string) {
	base := strings.TrimSuffix(prefix, "/")
	collection = base
	if collection == "" {
		collection = "/"
	}
	return collection, base + res.LookupPath()
}

// Register mounts the resource under prefix: GET, POST, PATCH and DELETE on
// the collection path and GET, PATCH and DELETE on the detail path.
// Authorization always runs before the instance lookup.
func (res *Resource) Register(c *controller.Controller, prefix string) {
	collection, detail := res.Paths(prefix)

	for _, method := range Methods {
		c.Handle(method, collection, res.View, res.Guard, res.AuthorizerMiddleware(AuthParams{}))
	}
	for _, method := range []string{http.MethodGet, http.MethodPatch, http.MethodDelete} {
		c.Handle(method, detail, res.View,
			res.Guard, res.AuthorizerMiddleware(AuthParams{Lookup: true}), res.LookupMiddleware)
	}
}

// Instance returns the document resolved by LookupMiddleware.
func (res *Resource) Instance(r *http.Request) (store.Document, bool) {
	return InstanceOf(r, res.model.LowerName())
}

// Queryset builds the request's query from the QueryProvider hooks.
// Pagination is skipped for instance lookups.
func (res *Resource) Queryset(r *http.Request, paginate bool) (store.Query, error) {
	q, err := res.queries.Base(r, res.coll)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, contractErrorf("base query hook returned nil")
	}

	if q, err = res.queries.Filter(r, q); err != nil {
		return nil, err
	}
	if q == nil {
		return nil, contractErrorf("filter query hook returned nil")
	}

	if !paginate {
		return q, nil
	}
	if q, err = res.queries.Paginate(r, q); err != nil {
		return nil, err
	}
	if q == nil {
		return nil, contractErrorf("paginate query hook returned nil")
	}
	return q, nil
}

// LookupMiddleware resolves the detail path parameter to a document and
// attaches it to the request. Unknown keys respond 404 with an empty body.
func (res *Resource) LookupMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := res.LookupName()
		raw := shared.PathParam(r, name)
		if raw == "" {
			fail(w, r, contractErrorf("route has no %q path parameter", name))
			return
		}

		key, err := res.parseKey(raw)
		if err != nil {
			fail(w, r, errNotFound(err))
			return
		}

		q, err := res.Queryset(r, false)
		if err != nil {
			fail(w, r, err)
			return
		}
		doc, err := q.Filter(res.lookupField, key).Get(r.Context())
		if err != nil {
			fail(w, r, mapStoreError(err))
			return
		}

		ctx := WithInstance(r.Context(), res.model.LowerName(), doc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (res *Resource) parseKey(raw string) (any, error) {
	if f, ok := res.model.Field(res.lookupField); ok {
		return f.Parse(raw)
	}
	return raw, nil
}

func (res *Resource) cleanKey(v any) any {
	if f, ok := res.model.Field(res.lookupField); ok {
		return f.Clean(v)
	}
	return v
}

// mapStoreError gives store failures their client contract where one exists.
func mapStoreError(err error) error {
	switch {
	case store.IsNotFoundError(err):
		return errNotFound(err)
	case store.IsDuplicateError(err):
		return shared.NewRequestError(http.StatusConflict, "Duplicate key").Wrap(err)
	default:
		return err
	}
}

func (res *Resource) retrieve(r *http.Request, _ any) (any, error) {
	if doc, ok := res.Instance(r); ok {
		return doc, nil
	}

	q, err := res.Queryset(r, true)
	if err != nil {
		return nil, err
	}
	docs, err := q.All(r.Context())
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

func (res *Resource) create(r *http.Request, body any) (any, error) {
	if body == nil {
		return nil, errBodyRequired()
	}
	docs, many, err := documents(body)
	if err != nil {
		return nil, err
	}

	var params map[string]any
	if res.saveParams != nil {
		if params, err = res.saveParams(r); err != nil {
			return nil, err
		}
	}
	for i, doc := range docs {
		doc = res.model.ApplyDefaults(doc)
		for k, v := range params {
			doc[k] = v
		}
		docs[i] = doc
	}

	if !many {
		created, err := res.coll.Insert(r.Context(), docs[0])
		if err != nil {
			return nil, mapStoreError(err)
		}
		return res.respond(r, http.StatusCreated, created)
	}

	if len(docs) == 0 {
		return res.respond(r, http.StatusCreated, []store.Document{})
	}

	result, err := res.coll.BulkInsert(r.Context(), docs)
	if err != nil {
		return nil, err
	}
	if result.InsertedCount != len(docs) {
		logger.FromContext(r.Context()).Warn("bulk insert was partial",
			slog.Int("requested", len(docs)),
			slog.Int("inserted", result.InsertedCount))
		return nil, &PartialInsertError{
			Requested:   len(docs),
			Inserted:    result.InsertedCount,
			InsertedIDs: result.InsertedIDs,
		}
	}

	created, err := res.coll.Query().FilterIn(res.coll.Key(), result.InsertedIDs).All(r.Context())
	if err != nil {
		return nil, err
	}
	if created == nil {
		created = []store.Document{}
	}
	return res.respond(r, http.StatusCreated, created)
}

func (res *Resource) update(r *http.Request, body any) (any, error) {
	if body == nil {
		return nil, errBodyRequired()
	}
	docs, many, err := documents(body)
	if err != nil {
		return nil, err
	}

	if doc, ok := res.Instance(r); ok {
		if many {
			return nil, shared.NewRequestError(http.StatusBadRequest, "Expected an object")
		}
		return res.updateOne(r, doc, docs[0])
	}

	if !many {
		return nil, shared.NewRequestError(http.StatusBadRequest, "Expected an array of objects")
	}
	return res.updateMany(r, docs)
}

func (res *Resource) updateOne(r *http.Request, doc, fields store.Document) (any, error) {
	changes := res.changes(fields)
	if len(changes) > 0 {
		if err := res.coll.Update(r.Context(), doc[res.coll.Key()], changes); err != nil {
			return nil, mapStoreError(err)
		}
	}

	q, err := res.Queryset(r, false)
	if err != nil {
		return nil, err
	}
	updated, err := q.Filter(res.lookupField, doc[res.lookupField]).Get(r.Context())
	if err != nil {
		return nil, mapStoreError(err)
	}
	return updated, nil
}

// updateMany applies each item to the document it identifies. Items are
// applied one at a time; a failure leaves earlier updates in place.
func (res *Resource) updateMany(r *http.Request, docs []store.Document) (any, error) {
	raw, _ := RawBody(r)
	ids, err := res.identifiers(raw, false)
	if err != nil {
		return nil, err
	}

	q, err := res.Queryset(r, false)
	if err != nil {
		return nil, err
	}
	existing, err := q.FilterIn(res.lookupField, ids).All(r.Context())
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		match := findByField(existing, res.lookupField, id)
		if match == nil || i >= len(docs) {
			continue
		}
		changes := res.changes(docs[i])
		if len(changes) == 0 {
			continue
		}
		err := res.coll.Update(r.Context(), match[res.coll.Key()], changes)
		if err != nil && !store.IsNotFoundError(err) {
			return nil, err
		}
	}

	updated, err := q.FilterIn(res.lookupField, ids).All(r.Context())
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = []store.Document{}
	}
	return updated, nil
}

func (res *Resource) destroy(r *http.Request, _ any) (any, error) {
	if doc, ok := res.Instance(r); ok {
		if err := res.coll.Delete(r.Context(), doc[res.coll.Key()]); err != nil {
			return nil, mapStoreError(err)
		}
		return NewResponse(http.StatusNoContent, nil), nil
	}

	raw, present := RawBody(r)
	if !present {
		var err error
		if raw, present, err = shared.DecodeBody(r); err != nil {
			return nil, errMalformed(err)
		}
	}
	if !present {
		return nil, errBodyRequired()
	}

	ids, err := res.identifiers(raw, true)
	if err != nil {
		return nil, err
	}

	q, err := res.Queryset(r, false)
	if err != nil {
		return nil, err
	}
	docs, err := q.FilterIn(res.lookupField, ids).All(r.Context())
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		err := res.coll.Delete(r.Context(), doc[res.coll.Key()])
		if err != nil && !store.IsNotFoundError(err) {
			return nil, err
		}
	}
	return NewResponse(http.StatusNoContent, nil), nil
}

// identifiers extracts lookup values from a raw array body. Items are
// id-bearing objects, or bare ids when allowScalars is set.
func (res *Resource) identifiers(raw any, allowScalars bool) ([]any, error) {
	items, ok := raw.([]any)
	if !ok {
		msg := "Expected an array of objects"
		if allowScalars {
			msg = "Expected an array of ids or objects"
		}
		return nil, shared.NewRequestError(http.StatusBadRequest, msg)
	}

	ids := make([]any, 0, len(items))
	errs := map[string]string{}
	for i, item := range items {
		obj, isObj := item.(map[string]any)
		if !isObj {
			if allowScalars && item != nil {
				ids = append(ids, res.cleanKey(item))
				continue
			}
			errs[fmt.Sprintf("%d.%s", i, serializer.NonFieldKey)] = "Invalid value: expected object"
			continue
		}
		id, has := obj[res.lookupField]
		if !has || id == nil {
			errs[fmt.Sprintf("%d.%s", i, res.lookupField)] = "Required value"
			continue
		}
		ids = append(ids, res.cleanKey(id))
	}
	if len(errs) > 0 {
		return nil, &serializer.DeserializationError{Errors: errs}
	}
	return ids, nil
}

// changes drops identity fields from an update.
func (res *Resource) changes(fields store.Document) store.Document {
	out := fields.Clone()
	delete(out, res.coll.Key())
	delete(out, res.lookupField)
	delete(out, store.IDField)
	return out
}

func (res *Resource) respond(r *http.Request, status int, result any) (*Response, error) {
	out, err := res.Serialize(r, result)
	if err != nil {
		return nil, err
	}
	return NewResponse(status, out), nil
}

// documents normalizes a deserialized body into documents.
func documents(body any) ([]store.Document, bool, error) {
	switch b := body.(type) {
	case store.Document:
		return []store.Document{b}, false, nil
	case map[string]any:
		return []store.Document{store.Document(b)}, false, nil
	case []store.Document:
		return b, true, nil
	case []any:
		out := make([]store.Document, 0, len(b))
		for _, item := range b {
			switch m := item.(type) {
			case store.Document:
				out = append(out, m)
			case map[string]any:
				out = append(out, store.Document(m))
			default:
				return nil, true, errInvalidItems()
			}
		}
		return out, true, nil
	default:
		return nil, false, errInvalidItems()
	}
}

func errInvalidItems() error {
	return shared.NewRequestError(http.StatusBadRequest, "Expected an object or an array of objects")
}

func findByField(docs []store.Document, name string, value any) store.Document {
	for _, doc := range docs {
		if field.Equal(doc[name], value) {
			return doc
		}
	}
	return nil
}
