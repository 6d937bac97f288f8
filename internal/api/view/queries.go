package view

import (
	"net/http"

	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/store"
)

// DefaultPageSize is the list limit when none is requested.
const DefaultPageSize = 50

// Query parameters understood by DefaultQueries.
const (
	ParamIncludeDeleted = "include_deleted"
	ParamLimit          = "limit"
	ParamOffset         = "offset"
)

// QueryProvider builds the query a Resource reads from. Each hook receives
// the previous stage's query and must return a non-nil query.
type QueryProvider interface {
	Base(r *http.Request, coll store.Collection) (store.Query, error)
	Filter(r *http.Request, q store.Query) (store.Query, error)
	Paginate(r *http.Request, q store.Query) (store.Query, error)
}

// DefaultQueries reads every document, hides soft-deleted ones unless
// include_deleted is present, and paginates with limit and offset.
type DefaultQueries struct {
	PageSize int
}

var _ QueryProvider = DefaultQueries{}

// Base implements QueryProvider.
func (DefaultQueries) Base(_ *http.Request, coll store.Collection) (store.Query, error) {
	return coll.Query(), nil
}

// Filter implements QueryProvider.
func (DefaultQueries) Filter(r *http.Request, q store.Query) (store.Query, error) {
	if shared.HasQueryParam(r, ParamIncludeDeleted) {
		return q, nil
	}
	return q.Active(), nil
}

// Paginate implements QueryProvider. A zero limit falls back to the page size.
func (d DefaultQueries) Paginate(r *http.Request, q store.Query) (store.Query, error) {
	size := d.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	limit, err := shared.QueryInt(r, ParamLimit, size)
	if err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = size
	}
	offset, err := shared.QueryInt(r, ParamOffset, 0)
	if err != nil {
		return nil, err
	}

	q = q.Limit(limit)
	if offset > 0 {
		q = q.Skip(offset)
	}
	return q, nil
}
