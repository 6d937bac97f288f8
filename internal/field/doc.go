// Package field declares field descriptors: the per-attribute constraints a
// model schema is built from. Each descriptor validates a single candidate
// value (presence, nullability, kind, blankness, choices and optional
// validator rules) and reports the first problem as an *Error whose message
// is safe to return to API clients.
package field
