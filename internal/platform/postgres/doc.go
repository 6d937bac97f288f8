// Package postgres implements store.Provider on PostgreSQL. Every collection
// shares a single JSONB "documents" table partitioned by collection name;
// soft deletes set deleted_at. Schema changes are goose migrations embedded
// in the binary.
package postgres
