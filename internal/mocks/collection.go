package mocks

import (
	"context"

	"github.com/phrazzld/viewset/internal/store"
)

// MockCollection implements store.Collection. Unset function fields delegate
// to Inner, so a test can override a single operation of a real collection.
type MockCollection struct {
	Inner store.Collection

	QueryFn      func() store.Query
	InsertFn     func(ctx context.Context, doc store.Document) (store.Document, error)
	BulkInsertFn func(ctx context.Context, docs []store.Document) (store.InsertResult, error)
	UpdateFn     func(ctx context.Context, id any, fields store.Document) error
	DeleteFn     func(ctx context.Context, id any) error
}

var _ store.Collection = (*MockCollection)(nil)

// Name implements store.Collection.
func (m *MockCollection) Name() string {
	if m.Inner == nil {
		return "mock"
	}
	return m.Inner.Name()
}

// Key implements store.Collection.
func (m *MockCollection) Key() string {
	if m.Inner == nil {
		return store.IDField
	}
	return m.Inner.Key()
}

// Query implements store.Collection.
func (m *MockCollection) Query() store.Query {
	if m.QueryFn != nil {
		return m.QueryFn()
	}
	return m.Inner.Query()
}

// Insert implements store.Collection.
func (m *MockCollection) Insert(ctx context.Context, doc store.Document) (store.Document, error) {
	if m.InsertFn != nil {
		return m.InsertFn(ctx, doc)
	}
	return m.Inner.Insert(ctx, doc)
}

// BulkInsert implements store.Collection.
func (m *MockCollection) BulkInsert(ctx context.Context, docs []store.Document) (store.InsertResult, error) {
	if m.BulkInsertFn != nil {
		return m.BulkInsertFn(ctx, docs)
	}
	return m.Inner.BulkInsert(ctx, docs)
}

// Update implements store.Collection.
func (m *MockCollection) Update(ctx context.Context, id any, fields store.Document) error {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, id, fields)
	}
	return m.Inner.Update(ctx, id, fields)
}

// Delete implements store.Collection.
func (m *MockCollection) Delete(ctx context.Context, id any) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, id)
	}
	return m.Inner.Delete(ctx, id)
}

// FailingQuery returns a query whose execution always fails with err.
func FailingQuery(err error) store.Query {
	return store.NewQuery(store.FinderFunc(func(context.Context, store.Criteria) ([]store.Document, error) {
		return nil, err
	}))
}
