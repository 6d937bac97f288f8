// Package controller is an ordered route registry. Views declare their
// routes on a Controller; the table is compiled once into a chi router or
// registered onto any router exposing Method(method, pattern, handler).
package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Supported route verbs. MethodUse registers middleware for every verb
// under a path prefix.
const (
	MethodGet    = http.MethodGet
	MethodPost   = http.MethodPost
	MethodPatch  = http.MethodPatch
	MethodDelete = http.MethodDelete
	MethodUse    = "USE"
)

// ErrRouteNotFound is returned by Find when no route matches.
var ErrRouteNotFound = errors.New("route not found")

// Middleware wraps a handler.
type Middleware = func(http.Handler) http.Handler

// Route is one registered (verb, path, chain) entry.
type Route struct {
	Method     string
	Path       string
	Middleware []Middleware
	// Handler is nil for MethodUse entries.
	Handler http.Handler
}

// Chain composes the route's middleware around its handler; Middleware[0]
// runs first.
func (rt Route) Chain() http.Handler {
	return wrap(rt.Handler, rt.Middleware)
}

func wrap(h http.Handler, mw []Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// Router is the subset of a router needed to receive compiled routes.
// chi.Router satisfies it.
type Router interface {
	Method(method, pattern string, h http.Handler)
}

// Controller is an ordered route table. Registration happens at setup time;
// after the first compilation the table is frozen.
type Controller struct {
	mu       sync.RWMutex
	routes   []Route
	frozen   bool
	once     sync.Once
	compiled chi.Router
}

// New creates an empty Controller.
func New() *Controller {
	return &Controller{}
}

func normalizeMethod(method string) string {
	m := strings.ToUpper(strings.TrimSpace(method))
	switch m {
	case MethodGet, MethodPost, MethodPatch, MethodDelete, MethodUse:
		return m
	default:
		panic(fmt.Sprintf("controller: unsupported method %q", method)) // ALLOW-PANIC
	}
}

func (c *Controller) add(rt Route) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		panic(fmt.Sprintf("controller: cannot register %s %s after compilation", rt.Method, rt.Path)) // ALLOW-PANIC
	}
	c.routes = append(c.routes, rt)
}

// Handle registers h for method and path behind the given middleware.
// Methods are case-insensitive; unsupported methods panic.
func (c *Controller) Handle(method, path string, h http.Handler, mw ...Middleware) {
	m := normalizeMethod(method)
	if m == MethodUse {
		c.Use(path, mw...)
		return
	}
	if h == nil {
		panic("controller: handler cannot be nil") // ALLOW-PANIC
	}
	c.add(Route{Method: m, Path: path, Middleware: append([]Middleware(nil), mw...), Handler: h})
}

// Use registers middleware for every verb route registered after it whose
// path lies under prefix.
func (c *Controller) Use(prefix string, mw ...Middleware) {
	c.add(Route{Method: MethodUse, Path: prefix, Middleware: append([]Middleware(nil), mw...)})
}

// Get registers a GET route.
func (c *Controller) Get(path string, h http.HandlerFunc, mw ...Middleware) {
	c.Handle(MethodGet, path, h, mw...)
}

// Post registers a POST route.
func (c *Controller) Post(path string, h http.HandlerFunc, mw ...Middleware) {
	c.Handle(MethodPost, path, h, mw...)
}

// Patch registers a PATCH route.
func (c *Controller) Patch(path string, h http.HandlerFunc, mw ...Middleware) {
	c.Handle(MethodPatch, path, h, mw...)
}

// Delete registers a DELETE route.
func (c *Controller) Delete(path string, h http.HandlerFunc, mw ...Middleware) {
	c.Handle(MethodDelete, path, h, mw...)
}

// Routes returns a copy of the table in registration order.
func (c *Controller) Routes() []Route {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Route(nil), c.routes...)
}

// Find returns the first route registered for exactly method and path.
func (c *Controller) Find(method, path string) (Route, error) {
	m := normalizeMethod(method)
	for _, rt := range c.Routes() {
		if rt.Method == m && rt.Path == path {
			return rt, nil
		}
	}
	return Route{}, fmt.Errorf("%w: %s %s", ErrRouteNotFound, m, path)
}

// Filter returns every route registered for method and path, or nil.
func (c *Controller) Filter(method, path string) []Route {
	m := normalizeMethod(method)
	var out []Route
	for _, rt := range c.Routes() {
		if rt.Method == m && rt.Path == path {
			out = append(out, rt)
		}
	}
	return out
}

// Compile builds a chi router from the table on first call and returns the
// cached router afterwards.
func (c *Controller) Compile() chi.Router {
	c.once.Do(func() {
		r := chi.NewRouter()
		c.CompileInto(r)
		c.compiled = r
	})
	return c.compiled
}

// ServeHTTP serves through the compiled router.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.Compile().ServeHTTP(w, r)
}

// CompileInto registers every verb route onto r in registration order and
// freezes the table. Only the first entry for a given (verb, path) is
// registered. USE middleware is folded into the routes that follow it.
func (c *Controller) CompileInto(r Router) {
	c.mu.Lock()
	c.frozen = true
	routes := append([]Route(nil), c.routes...)
	c.mu.Unlock()

	seen := map[string]bool{}
	var uses []Route
	for _, rt := range routes {
		if rt.Method == MethodUse {
			uses = append(uses, rt)
			continue
		}

		key := rt.Method + " " + rt.Path
		if seen[key] {
			continue
		}
		seen[key] = true

		var mw []Middleware
		for _, u := range uses {
			if underPrefix(rt.Path, u.Path) {
				mw = append(mw, u.Middleware...)
			}
		}
		mw = append(mw, rt.Middleware...)

		r.Method(rt.Method, Pattern(rt.Path), wrap(rt.Handler, mw))
	}
}

// Pattern converts ":name" path segments to chi's "{name}" form.
func Pattern(path string) string {
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") && len(s) > 1 {
			segments[i] = "{" + s[1:] + "}"
		}
	}
	out := strings.Join(segments, "/")
	if !strings.HasPrefix(out, "/") {
		out = "/" + out
	}
	return out
}

// underPrefix reports whether path lies under prefix on segment boundaries.
func underPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	p := strings.TrimSuffix(path, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}
