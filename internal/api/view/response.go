package view

import (
	"net/http"

	"github.com/phrazzld/viewset/internal/api/shared"
)

// Response is a handler result written verbatim. A zero Status means 200.
type Response struct {
	Status  int
	Body    any
	Headers http.Header
}

// NewResponse creates a Response.
func NewResponse(status int, body any) *Response {
	return &Response{Status: status, Body: body}
}

func (resp *Response) write(w http.ResponseWriter, r *http.Request) {
	for key, values := range resp.Headers {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	shared.RespondWithJSON(w, r, status, resp.Body)
}

// guardedWriter enforces a single response per request.
type guardedWriter struct {
	http.ResponseWriter
	written bool
}

func (g *guardedWriter) WriteHeader(status int) {
	if g.written {
		panic("view: response already written") // ALLOW-PANIC
	}
	g.written = true
	g.ResponseWriter.WriteHeader(status)
}

func (g *guardedWriter) Write(p []byte) (int, error) {
	if !g.written {
		g.WriteHeader(http.StatusOK)
	}
	return g.ResponseWriter.Write(p)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (g *guardedWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// Written reports whether w already carries a response. It is false for
// writers not installed by a View.
func Written(w http.ResponseWriter) bool {
	g, ok := w.(*guardedWriter)
	return ok && g.written
}
