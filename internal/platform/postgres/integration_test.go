//go:build integration

package postgres_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/viewset/internal/platform/logger"
	"github.com/phrazzld/viewset/internal/platform/postgres"
	"github.com/phrazzld/viewset/internal/store"
)

// testDatabaseEnv names the database used by integration tests.
const testDatabaseEnv = "VIEWSET_TEST_DATABASE_URL"

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv(testDatabaseEnv)
	if url == "" {
		t.Skipf("%s not set", testDatabaseEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log, _ := logger.NewTestLogger(t)
	require.NoError(t, postgres.Migrate(ctx, db, log))

	version, err := postgres.MigrationVersion(ctx, db, log)
	require.NoError(t, err)
	require.Positive(t, version)
	return db
}

// newTestCollection returns a collection under a random name so tests never
// observe each other's rows.
func newTestCollection(t *testing.T, db *sql.DB) store.Collection {
	t.Helper()
	name := "it_" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = db.Exec(`DELETE FROM documents WHERE collection = $1`, name)
	})
	return postgres.NewStore(db).Collection(name, "id")
}

func TestCollectionAgainstPostgres(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	coll := newTestCollection(t, db)

	doc, err := coll.Insert(ctx, store.Document{"id": "a", "title": "first", "n": 1})
	require.NoError(t, err)
	assert.Equal(t, "first", doc["title"])
	assert.NotNil(t, doc[store.CreatedField])

	_, err = coll.Insert(ctx, store.Document{"id": "a", "title": "again"})
	assert.True(t, store.IsDuplicateError(err), "got %v", err)

	result, err := coll.BulkInsert(ctx, []store.Document{
		{"id": "a", "title": "collides"},
		{"id": "b", "title": "second"},
		{"id": "c", "title": "third"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.InsertedCount)
	assert.ElementsMatch(t, []any{"b", "c"}, result.InsertedIDs)

	require.NoError(t, coll.Update(ctx, "b", store.Document{"title": "edited"}))
	got, err := coll.Query().Filter("id", "b").Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "edited", got["title"])

	require.NoError(t, coll.Delete(ctx, "c"))
	active, err := coll.Query().Active().All(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	all, err := coll.Query().All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := coll.Query().Active().Skip(1).Limit(1).All(ctx)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0]["id"])

	_, err = coll.Query().Filter("id", "missing").Get(ctx)
	assert.True(t, store.IsNotFoundError(err), "got %v", err)
}
