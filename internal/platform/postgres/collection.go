package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/viewset/internal/store"
)

// Store hands out collections backed by the documents table.
type Store struct {
	db *sql.DB
}

var _ store.Provider = (*Store)(nil)

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Collection implements store.Provider.
func (s *Store) Collection(name, key string) store.Collection {
	return NewCollection(s.db, name, key)
}

// Collection is one logical collection inside the documents table.
type Collection struct {
	db   *sql.DB
	name string
	key  string
}

var _ store.Collection = (*Collection)(nil)

// NewCollection creates a collection keyed by key.
func NewCollection(db *sql.DB, name, key string) *Collection {
	if key == "" {
		key = store.IDField
	}
	return &Collection{db: db, name: name, key: key}
}

// Name implements store.Collection.
func (c *Collection) Name() string { return c.name }

// Key implements store.Collection.
func (c *Collection) Key() string { return c.key }

// Query implements store.Collection.
func (c *Collection) Query() store.Query {
	return store.NewQuery(store.FinderFunc(c.find))
}

// keyString is the id column value for a primary key.
func keyString(id any) string {
	if f, ok := id.(float64); ok && f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(id)
}

// encode prepares a document for the data column, assigning a key if needed.
func (c *Collection) encode(doc store.Document) (string, []byte, error) {
	data := make(store.Document, len(doc)+1)
	for k, v := range doc {
		if store.IsMetaField(k) {
			continue
		}
		data[k] = v
	}
	if id, ok := data[c.key]; !ok || id == nil {
		data[c.key] = uuid.NewString()
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", store.ErrInvalidDocument, err)
	}
	return keyString(data[c.key]), raw, nil
}

const insertSQL = `INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`

// Insert implements store.Collection.
func (c *Collection) Insert(ctx context.Context, doc store.Document) (store.Document, error) {
	id, raw, err := c.encode(doc)
	if err != nil {
		return nil, store.NewStoreError(c.name, "insert", "failed to encode document", err)
	}

	var created, updated time.Time
	err = c.db.QueryRowContext(ctx, insertSQL+` RETURNING created_at, updated_at`, c.name, id, string(raw)).
		Scan(&created, &updated)
	if err != nil {
		return nil, store.NewStoreError(c.name, "insert", "failed to insert document", MapError(err))
	}

	return decode(raw, created, updated, sql.NullTime{})
}

// BulkInsert implements store.Collection. Rows run in one transaction;
// key collisions are skipped rather than failing the batch.
func (c *Collection) BulkInsert(ctx context.Context, docs []store.Document) (store.InsertResult, error) {
	var result store.InsertResult

	err := store.RunInTransaction(ctx, c.db, func(ctx context.Context, tx *sql.Tx) error {
		for _, doc := range docs {
			id, raw, err := c.encode(doc)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, insertSQL+` ON CONFLICT (collection, id) DO NOTHING`, c.name, id, string(raw))
			if err != nil {
				return MapError(err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n == 1 {
				result.InsertedCount++
				result.InsertedIDs = append(result.InsertedIDs, id)
			}
		}
		return nil
	})
	if err != nil {
		return store.InsertResult{}, store.NewStoreError(c.name, "bulk insert", "transaction aborted", err)
	}
	return result, nil
}

// Update implements store.Collection.
func (c *Collection) Update(ctx context.Context, id any, fields store.Document) error {
	patch := make(store.Document, len(fields))
	for k, v := range fields {
		if k == c.key || store.IsMetaField(k) {
			continue
		}
		patch[k] = v
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return store.NewStoreError(c.name, "update", "failed to encode fields",
			fmt.Errorf("%w: %v", store.ErrInvalidDocument, err))
	}

	res, err := c.db.ExecContext(ctx,
		`UPDATE documents SET data = data || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2 AND deleted_at IS NULL`,
		c.name, keyString(id), string(raw))
	if err != nil {
		return store.NewStoreError(c.name, "update", "failed to update document", MapError(err))
	}
	if err := CheckRowsAffected(res, fmt.Sprintf("%s %v", c.key, id)); err != nil {
		return store.NewStoreError(c.name, "update", "no active document", err)
	}
	return nil
}

// Delete implements store.Collection as a soft delete.
func (c *Collection) Delete(ctx context.Context, id any) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE documents SET deleted_at = now(), updated_at = now()
		 WHERE collection = $1 AND id = $2 AND deleted_at IS NULL`,
		c.name, keyString(id))
	if err != nil {
		return store.NewStoreError(c.name, "delete", "failed to delete document", MapError(err))
	}
	if err := CheckRowsAffected(res, fmt.Sprintf("%s %v", c.key, id)); err != nil {
		return store.NewStoreError(c.name, "delete", "no active document", err)
	}
	return nil
}

// buildSelect renders criteria as SQL with positional arguments.
func (c *Collection) buildSelect(criteria store.Criteria) (string, []any, error) {
	var b strings.Builder
	args := []any{c.name}
	b.WriteString(`SELECT data, created_at, updated_at, deleted_at FROM documents WHERE collection = $1`)

	if criteria.ActiveOnly {
		b.WriteString(` AND deleted_at IS NULL`)
	}

	for _, cond := range criteria.Conditions {
		if len(cond.Values) == 0 {
			b.WriteString(` AND FALSE`)
			continue
		}
		args = append(args, cond.Field)
		fieldArg := len(args)
		placeholders := make([]string, 0, len(cond.Values))
		for _, v := range cond.Values {
			raw, err := json.Marshal(v)
			if err != nil {
				return "", nil, fmt.Errorf("%w: filter %s: %v", store.ErrInvalidDocument, cond.Field, err)
			}
			args = append(args, string(raw))
			placeholders = append(placeholders, fmt.Sprintf("$%d::jsonb", len(args)))
		}
		fmt.Fprintf(&b, ` AND data -> $%d IN (%s)`, fieldArg, strings.Join(placeholders, ", "))
	}

	b.WriteString(` ORDER BY seq`)
	if criteria.Limit > 0 {
		fmt.Fprintf(&b, ` LIMIT %d`, criteria.Limit)
	}
	if criteria.Skip > 0 {
		fmt.Fprintf(&b, ` OFFSET %d`, criteria.Skip)
	}
	return b.String(), args, nil
}

func (c *Collection) find(ctx context.Context, criteria store.Criteria) ([]store.Document, error) {
	query, args, err := c.buildSelect(criteria)
	if err != nil {
		return nil, store.NewStoreError(c.name, "query", "invalid criteria", err)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewStoreError(c.name, "query", "failed to query documents", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var docs []store.Document
	for rows.Next() {
		var (
			raw              []byte
			created, updated time.Time
			deleted          sql.NullTime
		)
		if err := rows.Scan(&raw, &created, &updated, &deleted); err != nil {
			return nil, store.NewStoreError(c.name, "query", "failed to scan document", err)
		}
		doc, err := decode(raw, created, updated, deleted)
		if err != nil {
			return nil, store.NewStoreError(c.name, "query", "failed to decode document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError(c.name, "query", "failed to iterate documents", MapError(err))
	}
	return docs, nil
}

func decode(raw []byte, created, updated time.Time, deleted sql.NullTime) (store.Document, error) {
	var doc store.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	doc[store.CreatedField] = created.UTC().Format(time.RFC3339Nano)
	doc[store.UpdatedField] = updated.UTC().Format(time.RFC3339Nano)
	if deleted.Valid {
		doc[store.DeletedField] = deleted.Time.UTC().Format(time.RFC3339Nano)
	} else {
		doc[store.DeletedField] = nil
	}
	return doc, nil
}
