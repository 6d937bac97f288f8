package view

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/phrazzld/viewset/internal/api/controller"
	"github.com/phrazzld/viewset/internal/api/serializer"
	"github.com/phrazzld/viewset/internal/api/shared"
	"github.com/phrazzld/viewset/internal/model"
	"github.com/phrazzld/viewset/internal/platform/logger"
)

// Handler handles one verb. body is the deserialized request body, or nil for
// body-less verbs. Returning a *Response writes it verbatim; any other value
// is serialized and written with 200.
type Handler func(r *http.Request, body any) (any, error)

// Verbs a View dispatches.
var Methods = []string{
	controller.MethodGet,
	controller.MethodPost,
	controller.MethodPatch,
	controller.MethodDelete,
}

// Default serializer method sets.
var (
	DefaultIgnoreSerializerMethods  = []string{http.MethodGet, http.MethodDelete, http.MethodHead, http.MethodOptions}
	DefaultPartialSerializerMethods = []string{http.MethodPatch}
)

// Config configures a View.
type Config struct {
	Name string
	// Model is passed to serializers. Required when Serializer is set.
	Model    *model.Model
	Handlers map[string]Handler
	// AllowedMethods restricts dispatch; nil allows every verb.
	AllowedMethods []string
	Authorizer     Authorizer
	// Serializer converts bodies and results; nil passes them through.
	Serializer serializer.Factory
	// SerializerFunc picks a serializer per request, overriding Serializer.
	SerializerFunc func(r *http.Request) serializer.Factory

	IgnoreSerializerMethods  []string
	PartialSerializerMethods []string

	Logger *slog.Logger
}

// View is a declarative HTTP endpoint. Its configuration is fixed at
// construction and safe for concurrent use.
type View struct {
	name       string
	model      *model.Model
	handlers   map[string]Handler
	allowed    map[string]bool
	authorizer Authorizer
	factory    serializer.Factory
	factoryFn  func(r *http.Request) serializer.Factory
	ignore     map[string]bool
	partial    map[string]bool
	logger     *slog.Logger
}

func methodSet(methods []string) map[string]bool {
	set := make(map[string]bool, len(methods))
	for _, m := range methods {
		set[strings.ToUpper(m)] = true
	}
	return set
}

// New builds a View, resolving its verb handler map once.
func New(cfg Config) *View {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	name := cfg.Name
	if name == "" && cfg.Model != nil {
		name = cfg.Model.Name
	}

	v := &View{
		name:       name,
		model:      cfg.Model,
		handlers:   make(map[string]Handler, len(cfg.Handlers)),
		authorizer: cfg.Authorizer,
		factory:    cfg.Serializer,
		factoryFn:  cfg.SerializerFunc,
		logger:     log.With(slog.String("component", "view"), slog.String("view", name)),
	}
	for method, h := range cfg.Handlers {
		if h != nil {
			v.handlers[strings.ToUpper(method)] = h
		}
	}
	if cfg.AllowedMethods != nil {
		v.allowed = methodSet(cfg.AllowedMethods)
	}
	if v.authorizer == nil {
		v.authorizer = AllowAll
	}

	ignore := cfg.IgnoreSerializerMethods
	if ignore == nil {
		ignore = DefaultIgnoreSerializerMethods
	}
	v.ignore = methodSet(ignore)

	partial := cfg.PartialSerializerMethods
	if partial == nil {
		partial = DefaultPartialSerializerMethods
	}
	v.partial = methodSet(partial)

	return v
}

// Name is the view's name, used in logs.
func (v *View) Name() string { return v.name }

// Model returns the view's model, which may be nil.
func (v *View) Model() *model.Model { return v.model }

// IsMethodAllowed reports whether method passes the allow-list.
func (v *View) IsMethodAllowed(method string) bool {
	return v.allowed == nil || v.allowed[strings.ToUpper(method)]
}

// Serializer returns the factory for r, or nil for pass-through.
func (v *View) Serializer(r *http.Request) serializer.Factory {
	if v.factoryFn != nil {
		return v.factoryFn(r)
	}
	return v.factory
}

// DefaultSerializer returns the configured factory, ignoring SerializerFunc.
func (v *View) DefaultSerializer() serializer.Factory { return v.factory }

// Guard installs the single-write response guard and a logger tagged with the
// view name. It must be the outermost middleware of a view route.
func (v *View) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := v.logger
		if reqLog, ok := logger.Lookup(r.Context()); ok {
			log = reqLog.With(slog.String("view", v.name))
		}
		ctx := logger.WithContext(r.Context(), log)
		next.ServeHTTP(&guardedWriter{ResponseWriter: w}, r.WithContext(ctx))
	})
}

// AuthorizerMiddleware runs the Authorizer. A denial writes 403 and stops;
// an allow marks the request authorized and attaches any auth context.
func (v *View) AuthorizerMiddleware(params AuthParams) controller.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := v.authorizer.Authorize(r, params)
			if err != nil {
				fail(w, r, err)
				return
			}
			if !res.Allowed() {
				logger.FromContext(r.Context()).Debug("request denied by authorizer",
					slog.String("path", r.URL.Path),
					slog.String("method", r.Method))
				shared.RespondWithStatusError(w, r, shared.NewAuthorizationError(res.message))
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.WithAuthorization(r.Context(), res.Value())))
		})
	}
}

// ServeHTTP dispatches an already-authorized request: verb checks, body
// deserialization, the handler and result serialization.
func (v *View) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := strings.ToUpper(r.Method)

	if !v.IsMethodAllowed(method) {
		fail(w, r, shared.NewRequestError(http.StatusMethodNotAllowed,
			fmt.Sprintf("Method %s not allowed", method)))
		return
	}

	h, ok := v.handlers[method]
	if !ok {
		fail(w, r, shared.NewRequestError(http.StatusNotImplemented,
			fmt.Sprintf("Method %s is not implemented", method)))
		return
	}

	body, r, err := v.deserialize(r, method)
	if err != nil {
		fail(w, r, err)
		return
	}

	result, err := h(r, body)
	if err != nil {
		fail(w, r, err)
		return
	}

	if resp, ok := result.(*Response); ok {
		resp.write(w, r)
		return
	}

	out, err := v.Serialize(r, result)
	if err != nil {
		fail(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// deserialize reads and converts the request body. It returns the request
// with the raw body attached to its context.
func (v *View) deserialize(r *http.Request, method string) (any, *http.Request, error) {
	if v.ignore[method] {
		return nil, r, nil
	}

	raw, present, err := shared.DecodeBody(r)
	if err != nil {
		return nil, r, errMalformed(err)
	}
	if present {
		r = r.WithContext(withRawBody(r.Context(), raw))
	}

	factory := v.Serializer(r)
	if factory == nil {
		return raw, r, nil
	}
	if !present {
		return nil, r, errBodyRequired()
	}

	s, err := factory.New(serializer.Options{
		Model:   v.model,
		Data:    raw,
		Many:    isList(raw),
		Partial: v.partial[method],
	})
	if err != nil {
		return nil, r, err
	}
	body, err := s.Deserialize(r.Context())
	if err != nil {
		return nil, r, err
	}
	return body, r, nil
}

// Serialize converts a handler result with the request's serializer. Slices
// serialize with many=true. Nil results and pass-through views return
// result unchanged.
func (v *View) Serialize(r *http.Request, result any) (any, error) {
	factory := v.Serializer(r)
	if factory == nil || result == nil {
		return result, nil
	}
	s, err := factory.New(serializer.Options{
		Model:    v.model,
		Instance: result,
		Many:     isList(result),
	})
	if err != nil {
		return nil, err
	}
	return s.Serialize(r.Context())
}

// Handler returns the full middleware chain for one route of the view.
func (v *View) Handler(params AuthParams, extra ...controller.Middleware) http.Handler {
	chain := append([]controller.Middleware{v.Guard, v.AuthorizerMiddleware(params)}, extra...)
	return controller.Route{Handler: v, Middleware: chain}.Chain()
}

// Register mounts the view at path for every dispatched verb. Verbs without
// a handler respond 501.
func (v *View) Register(c *controller.Controller, path string) {
	for _, method := range Methods {
		c.Handle(method, path, v, v.Guard, v.AuthorizerMiddleware(AuthParams{}))
	}
}

// HandledMethods lists the verbs with a handler, in dispatch order.
func (v *View) HandledMethods() []string {
	var out []string
	for _, m := range Methods {
		if _, ok := v.handlers[m]; ok && v.IsMethodAllowed(m) {
			out = append(out, m)
		}
	}
	return slices.Clip(out)
}

func isList(v any) bool {
	if v == nil {
		return false
	}
	k := reflect.ValueOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}
