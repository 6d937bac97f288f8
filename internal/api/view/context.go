package view

import (
	"context"
	"net/http"

	"github.com/phrazzld/viewset/internal/store"
)

type contextKey string

const rawBodyKey contextKey = "view.raw_body"

func instanceKey(name string) contextKey {
	return contextKey("view.instance." + name)
}

// WithInstance attaches a resolved resource instance to ctx under name.
func WithInstance(ctx context.Context, name string, doc store.Document) context.Context {
	return context.WithValue(ctx, instanceKey(name), doc)
}

// InstanceOf returns the instance the lookup middleware resolved under name.
func InstanceOf(r *http.Request, name string) (store.Document, bool) {
	doc, ok := r.Context().Value(instanceKey(name)).(store.Document)
	return doc, ok && doc != nil
}

func withRawBody(ctx context.Context, body any) context.Context {
	return context.WithValue(ctx, rawBodyKey, body)
}

// RawBody returns the decoded request body as received, before
// deserialization.
func RawBody(r *http.Request) (any, bool) {
	v := r.Context().Value(rawBodyKey)
	return v, v != nil
}
