// Package shared holds the HTTP plumbing every view and middleware relies on:
// JSON responses, the status-carrying error taxonomy, request-scoped context
// values and request body decoding.
package shared
