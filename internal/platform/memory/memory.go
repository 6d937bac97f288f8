// Package memory is an in-process store.Provider used by tests and by the
// server's default "memory" driver.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/viewset/internal/field"
	"github.com/phrazzld/viewset/internal/store"
)

// Store holds named in-memory collections.
type Store struct {
	mu          sync.Mutex
	collections map[string]*Collection
	opts        []Option
}

var _ store.Provider = (*Store)(nil)

// NewStore creates an empty store. Options apply to every collection it creates.
func NewStore(opts ...Option) *Store {
	return &Store{collections: make(map[string]*Collection), opts: opts}
}

// Collection returns the named collection, creating it on first use.
func (s *Store) Collection(name, key string) store.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.collections[name]; ok {
		return c
	}
	c := NewCollection(name, key, s.opts...)
	s.collections[name] = c
	return c
}

// Option configures a Collection.
type Option func(*Collection)

// WithHardDelete removes documents on Delete instead of marking them.
func WithHardDelete() Option {
	return func(c *Collection) { c.hardDelete = true }
}

// WithClock overrides the timestamp source for meta fields.
func WithClock(now func() time.Time) Option {
	return func(c *Collection) { c.now = now }
}

// Collection keeps documents in insertion order behind a mutex.
type Collection struct {
	name       string
	key        string
	hardDelete bool
	now        func() time.Time

	mu   sync.RWMutex
	docs []store.Document
}

var _ store.Collection = (*Collection)(nil)

// NewCollection creates an empty collection keyed by key.
func NewCollection(name, key string, opts ...Option) *Collection {
	if key == "" {
		key = store.IDField
	}
	c := &Collection{name: name, key: key, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements store.Collection.
func (c *Collection) Name() string { return c.name }

// Key implements store.Collection.
func (c *Collection) Key() string { return c.key }

// Query implements store.Collection.
func (c *Collection) Query() store.Query {
	return store.NewQuery(store.FinderFunc(c.find))
}

func (c *Collection) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}

// Insert implements store.Collection.
func (c *Collection) Insert(ctx context.Context, doc store.Document) (store.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, err := c.insertLocked(doc)
	if err != nil {
		return nil, err
	}
	return stored.Clone(), nil
}

// BulkInsert implements store.Collection.
func (c *Collection) BulkInsert(ctx context.Context, docs []store.Document) (store.InsertResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result store.InsertResult
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		stored, err := c.insertLocked(doc)
		if err != nil {
			if store.IsDuplicateError(err) {
				continue
			}
			return result, err
		}
		result.InsertedCount++
		result.InsertedIDs = append(result.InsertedIDs, stored[c.key])
	}
	return result, nil
}

func (c *Collection) insertLocked(doc store.Document) (store.Document, error) {
	stored := doc.Clone()
	if stored == nil {
		stored = store.Document{}
	}
	if id, ok := stored[c.key]; !ok || id == nil {
		stored[c.key] = uuid.NewString()
	}
	if c.indexLocked(stored[c.key], false) >= 0 {
		return nil, store.NewStoreError(c.name, "insert",
			fmt.Sprintf("%s %v already exists", c.key, stored[c.key]), store.ErrDuplicate)
	}

	ts := c.timestamp()
	stored[store.CreatedField] = ts
	stored[store.UpdatedField] = ts
	stored[store.DeletedField] = nil
	c.docs = append(c.docs, stored)
	return stored, nil
}

// indexLocked finds the document with the given key; deleted documents only
// count when activeOnly is false.
func (c *Collection) indexLocked(id any, activeOnly bool) int {
	for i, doc := range c.docs {
		if activeOnly && doc.Deleted() {
			continue
		}
		if field.Equal(doc[c.key], id) {
			return i
		}
	}
	return -1
}

// Update implements store.Collection. The primary key cannot be changed.
func (c *Collection) Update(ctx context.Context, id any, fields store.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id, true)
	if i < 0 {
		return store.NewStoreError(c.name, "update", fmt.Sprintf("no active document %v", id), store.ErrNotFound)
	}

	updated := c.docs[i].Clone()
	for k, v := range fields {
		if k == c.key || store.IsMetaField(k) {
			continue
		}
		updated[k] = v
	}
	updated[store.UpdatedField] = c.timestamp()
	c.docs[i] = updated
	return nil
}

// Delete implements store.Collection.
func (c *Collection) Delete(ctx context.Context, id any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id, true)
	if i < 0 {
		return store.NewStoreError(c.name, "delete", fmt.Sprintf("no active document %v", id), store.ErrNotFound)
	}

	if c.hardDelete {
		c.docs = append(c.docs[:i], c.docs[i+1:]...)
		return nil
	}

	deleted := c.docs[i].Clone()
	ts := c.timestamp()
	deleted[store.DeletedField] = ts
	deleted[store.UpdatedField] = ts
	c.docs[i] = deleted
	return nil
}

func (c *Collection) find(ctx context.Context, criteria store.Criteria) ([]store.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []store.Document
	skipped := 0
	for _, doc := range c.docs {
		if criteria.ActiveOnly && doc.Deleted() {
			continue
		}
		if !matches(doc, criteria.Conditions) {
			continue
		}
		if skipped < criteria.Skip {
			skipped++
			continue
		}
		out = append(out, doc.Clone())
		if criteria.Limit > 0 && len(out) == criteria.Limit {
			break
		}
	}
	return out, nil
}

func matches(doc store.Document, conditions []store.Condition) bool {
	for _, cond := range conditions {
		value, ok := doc[cond.Field]
		if !ok {
			return false
		}
		hit := false
		for _, want := range cond.Values {
			if field.Equal(value, want) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}
