// Package mongo implements store.Provider on MongoDB. Each collection maps to
// a MongoDB collection; the primary key is mirrored into _id so the server
// enforces uniqueness.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/viewset/internal/store"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoIDField = "_id"

// Connect opens a client and verifies the deployment is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}
	return client, nil
}

// Store hands out collections from one database.
type Store struct {
	db *mongo.Database
}

var _ store.Provider = (*Store)(nil)

// NewStore wraps a database handle.
func NewStore(db *mongo.Database) *Store {
	return &Store{db: db}
}

// Collection implements store.Provider.
func (s *Store) Collection(name, key string) store.Collection {
	return NewCollection(s.db.Collection(name), key)
}

// Collection adapts a MongoDB collection.
type Collection struct {
	coll *mongo.Collection
	key  string
	now  func() time.Time
}

var _ store.Collection = (*Collection)(nil)

// NewCollection wraps coll keyed by key.
func NewCollection(coll *mongo.Collection, key string) *Collection {
	if key == "" {
		key = store.IDField
	}
	return &Collection{coll: coll, key: key, now: time.Now}
}

// Name implements store.Collection.
func (c *Collection) Name() string { return c.coll.Name() }

// Key implements store.Collection.
func (c *Collection) Key() string { return c.key }

// Query implements store.Collection.
func (c *Collection) Query() store.Query {
	return store.NewQuery(store.FinderFunc(c.find))
}

// toBSON prepares a document for insertion.
func (c *Collection) toBSON(doc store.Document, now time.Time) bson.M {
	out := make(bson.M, len(doc)+4)
	for k, v := range doc {
		if store.IsMetaField(k) {
			continue
		}
		out[k] = v
	}
	if id, ok := out[c.key]; !ok || id == nil {
		out[c.key] = uuid.NewString()
	}
	out[mongoIDField] = out[c.key]

	ts := primitive.NewDateTimeFromTime(now)
	out[store.CreatedField] = ts
	out[store.UpdatedField] = ts
	out[store.DeletedField] = nil
	return out
}

// fromBSON converts a stored document back to plain Go values.
func (c *Collection) fromBSON(m bson.M) store.Document {
	doc := make(store.Document, len(m))
	for k, v := range m {
		if k == mongoIDField && c.key != mongoIDField {
			continue
		}
		doc[k] = plain(v)
	}
	return doc
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = plain(inner)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plain(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = plain(inner)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	default:
		return v
	}
}

// Insert implements store.Collection.
func (c *Collection) Insert(ctx context.Context, doc store.Document) (store.Document, error) {
	m := c.toBSON(doc, c.now())
	if _, err := c.coll.InsertOne(ctx, m); err != nil {
		return nil, store.NewStoreError(c.Name(), "insert", "failed to insert document", mapError(err))
	}
	return c.fromBSON(m), nil
}

// BulkInsert implements store.Collection with an unordered insert so one
// duplicate key does not stop the batch.
func (c *Collection) BulkInsert(ctx context.Context, docs []store.Document) (store.InsertResult, error) {
	if len(docs) == 0 {
		return store.InsertResult{}, nil
	}

	now := c.now()
	batch := make([]any, len(docs))
	ids := make([]any, len(docs))
	for i, doc := range docs {
		m := c.toBSON(doc, now)
		batch[i] = m
		ids[i] = m[c.key]
	}

	_, err := c.coll.InsertMany(ctx, batch, options.InsertMany().SetOrdered(false))
	result, err := insertOutcome(ids, err)
	if err != nil {
		return result, store.NewStoreError(c.Name(), "bulk insert", "failed to insert documents", mapError(err))
	}
	return result, nil
}

// insertOutcome derives the stored IDs from an unordered InsertMany. Write
// errors that are all duplicate keys count as skipped documents.
func insertOutcome(ids []any, err error) (store.InsertResult, error) {
	failed := map[int]bool{}
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) || bwe.WriteConcernError != nil {
			return store.InsertResult{}, err
		}
		for _, we := range bwe.WriteErrors {
			if !isDuplicateCode(we.Code) {
				return store.InsertResult{}, err
			}
			failed[we.Index] = true
		}
	}

	var result store.InsertResult
	for i, id := range ids {
		if failed[i] {
			continue
		}
		result.InsertedCount++
		result.InsertedIDs = append(result.InsertedIDs, id)
	}
	return result, nil
}

func isDuplicateCode(code int) bool {
	return code == 11000 || code == 11001 || code == 12582
}

func activeFilter(id any) bson.M {
	return bson.M{mongoIDField: id, store.DeletedField: nil}
}

// Update implements store.Collection.
func (c *Collection) Update(ctx context.Context, id any, fields store.Document) error {
	set := bson.M{store.UpdatedField: primitive.NewDateTimeFromTime(c.now())}
	for k, v := range fields {
		if k == c.key || k == mongoIDField || store.IsMetaField(k) {
			continue
		}
		set[k] = v
	}

	res, err := c.coll.UpdateOne(ctx, activeFilter(id), bson.M{"$set": set})
	if err != nil {
		return store.NewStoreError(c.Name(), "update", "failed to update document", mapError(err))
	}
	if res.MatchedCount == 0 {
		return store.NewStoreError(c.Name(), "update", fmt.Sprintf("no active document %v", id), store.ErrNotFound)
	}
	return nil
}

// Delete implements store.Collection as a soft delete.
func (c *Collection) Delete(ctx context.Context, id any) error {
	ts := primitive.NewDateTimeFromTime(c.now())
	res, err := c.coll.UpdateOne(ctx, activeFilter(id),
		bson.M{"$set": bson.M{store.DeletedField: ts, store.UpdatedField: ts}})
	if err != nil {
		return store.NewStoreError(c.Name(), "delete", "failed to delete document", mapError(err))
	}
	if res.MatchedCount == 0 {
		return store.NewStoreError(c.Name(), "delete", fmt.Sprintf("no active document %v", id), store.ErrNotFound)
	}
	return nil
}

// buildFind renders criteria as a filter and find options.
func buildFind(criteria store.Criteria) (bson.M, *options.FindOptions) {
	filter := bson.M{}
	if criteria.ActiveOnly {
		filter[store.DeletedField] = nil
	}

	var and bson.A
	for _, cond := range criteria.Conditions {
		values := cond.Values
		if values == nil {
			values = []any{}
		}
		and = append(and, bson.M{cond.Field: bson.M{"$in": values}})
	}
	if len(and) > 0 {
		filter["$and"] = and
	}

	opts := options.Find().SetSort(bson.D{{Key: store.CreatedField, Value: 1}, {Key: mongoIDField, Value: 1}})
	if criteria.Limit > 0 {
		opts.SetLimit(int64(criteria.Limit))
	}
	if criteria.Skip > 0 {
		opts.SetSkip(int64(criteria.Skip))
	}
	return filter, opts
}

func (c *Collection) find(ctx context.Context, criteria store.Criteria) ([]store.Document, error) {
	filter, opts := buildFind(criteria)

	cursor, err := c.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, store.NewStoreError(c.Name(), "query", "failed to query documents", mapError(err))
	}
	defer func() { _ = cursor.Close(ctx) }()

	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, store.NewStoreError(c.Name(), "query", "failed to decode documents", err)
	}

	docs := make([]store.Document, 0, len(raw))
	for _, m := range raw {
		docs = append(docs, c.fromBSON(m))
	}
	return docs, nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	default:
		return err
	}
}
