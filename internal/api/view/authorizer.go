package view

import "net/http"

// AuthParams describe the route being authorized.
type AuthParams struct {
	// Lookup is true on detail routes, before the instance is resolved.
	Lookup bool
}

// Result is the outcome of authorization.
type Result struct {
	allowed bool
	value   any
	message string
}

// Allow permits the request.
func Allow() Result { return Result{allowed: true} }

// AllowWith permits the request and attaches v as the request's auth context.
func AllowWith(v any) Result { return Result{allowed: true, value: v} }

// Deny rejects the request with 403. An empty message means "Forbidden".
func Deny(message string) Result { return Result{message: message} }

// Allowed reports whether the request may proceed.
func (res Result) Allowed() bool { return res.allowed }

// Value returns the attached auth context.
func (res Result) Value() any { return res.value }

// Authorizer decides whether a request may reach the view. It runs once per
// request, before any lookup, and may block on I/O using r.Context().
// Returning a shared.StatusError writes that error's response.
type Authorizer interface {
	Authorize(r *http.Request, params AuthParams) (Result, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request, params AuthParams) (Result, error)

// Authorize implements Authorizer.
func (f AuthorizerFunc) Authorize(r *http.Request, params AuthParams) (Result, error) {
	return f(r, params)
}

// AllowAll is the default Authorizer.
var AllowAll Authorizer = AuthorizerFunc(func(*http.Request, AuthParams) (Result, error) {
	return Allow(), nil
})
