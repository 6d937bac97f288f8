package store

import "context"

// Condition matches documents whose Field equals one of Values.
// An empty Values matches nothing.
type Condition struct {
	Field  string
	Values []any
}

// Criteria is the accumulated state of a Query.
type Criteria struct {
	Conditions []Condition
	ActiveOnly bool
	Limit      int
	Skip       int
}

// Finder executes criteria against a backend. Collection implementations
// provide one and get the Query builder from NewQuery.
type Finder interface {
	Find(ctx context.Context, c Criteria) ([]Document, error)
}

// FinderFunc adapts a function to Finder.
type FinderFunc func(ctx context.Context, c Criteria) ([]Document, error)

// Find implements Finder.
func (f FinderFunc) Find(ctx context.Context, c Criteria) ([]Document, error) {
	return f(ctx, c)
}

type query struct {
	finder   Finder
	criteria Criteria
}

// NewQuery returns an empty query executed by finder.
func NewQuery(finder Finder) Query {
	return &query{finder: finder}
}

func (q *query) with(fn func(*Criteria)) Query {
	next := q.criteria
	next.Conditions = append([]Condition(nil), q.criteria.Conditions...)
	fn(&next)
	return &query{finder: q.finder, criteria: next}
}

func (q *query) Filter(field string, value any) Query {
	return q.with(func(c *Criteria) {
		c.Conditions = append(c.Conditions, Condition{Field: field, Values: []any{value}})
	})
}

func (q *query) FilterIn(field string, values []any) Query {
	return q.with(func(c *Criteria) {
		c.Conditions = append(c.Conditions, Condition{Field: field, Values: append([]any{}, values...)})
	})
}

func (q *query) Active() Query {
	return q.with(func(c *Criteria) { c.ActiveOnly = true })
}

func (q *query) Limit(n int) Query {
	return q.with(func(c *Criteria) { c.Limit = max(n, 0) })
}

func (q *query) Skip(n int) Query {
	return q.with(func(c *Criteria) { c.Skip = max(n, 0) })
}

func (q *query) Get(ctx context.Context) (Document, error) {
	c := q.criteria
	c.Limit = 1
	docs, err := q.finder.Find(ctx, c)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

func (q *query) All(ctx context.Context) ([]Document, error) {
	return q.finder.Find(ctx, q.criteria)
}

// CriteriaOf exposes the accumulated criteria of a query built by NewQuery.
// It returns false for foreign Query implementations.
func CriteriaOf(q Query) (Criteria, bool) {
	impl, ok := q.(*query)
	if !ok {
		return Criteria{}, false
	}
	return impl.criteria, true
}
