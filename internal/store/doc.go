// Package store defines the persistence contract used by resource views:
// named document collections with a chainable query builder, soft delete
// and bulk insert. Implementations live under internal/platform.
package store
