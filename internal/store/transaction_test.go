package store_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/phrazzld/viewset/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTransaction(t *testing.T) {
	t.Parallel()

	t.Run("commits on success", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err = store.RunInTransaction(context.Background(), db, func(ctx context.Context, tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO documents VALUES (1)")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectRollback()

		cause := errors.New("insert failed")
		err = store.RunInTransaction(context.Background(), db, func(context.Context, *sql.Tx) error {
			return cause
		})
		assert.ErrorIs(t, err, cause)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin().WillReturnError(errors.New("no connection"))

		called := false
		err = store.RunInTransaction(context.Background(), db, func(context.Context, *sql.Tx) error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, store.ErrTransactionFailed)
		assert.False(t, called)
	})

	t.Run("commit failure", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

		err = store.RunInTransaction(context.Background(), db, func(context.Context, *sql.Tx) error {
			return nil
		})
		assert.ErrorIs(t, err, store.ErrTransactionFailed)
	})

	t.Run("rolls back and re-panics", func(t *testing.T) {
		t.Parallel()

		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = store.RunInTransaction(context.Background(), db, func(context.Context, *sql.Tx) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
