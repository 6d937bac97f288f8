// Package view implements declarative HTTP views.
//
// A View runs each request through a fixed pipeline: authorize, dispatch on
// the verb, deserialize the body, invoke the handler, serialize the result,
// and write exactly one response. Errors that carry an HTTP contract
// (shared.StatusError) are written as-is; everything else reaches a single
// generic boundary that responds 500 and logs the redacted cause.
//
// A Resource is a View bound to a model and a store collection. It provides
// list, retrieve, create, update and delete operations, including bulk
// variants, on a collection path and a detail path.
package view
