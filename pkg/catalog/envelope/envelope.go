// Package envelope writes every API result as
// {"success": bool, "data": any, "error": any}.
package envelope

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
)

// Response is a built envelope together with its HTTP status.
type Response struct {
	Status  int  `json:"-"`
	Success bool `json:"success"`
	Data    any  `json:"data"`
	Error   any  `json:"error"`
}

// Build assembles an envelope. It has no side effects.
func Build(data any, status int, success bool, errBody any) Response {
	return Response{
		Status:  status,
		Success: success,
		Data:    data,
		Error:   errBody,
	}
}

// Render implements render.Renderer.
func (resp Response) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, resp.Status)
	return nil
}

// HTTPError is a framework-level error with a status and a client-facing
// body, e.g. {"title": ["title is required"]} or {"detail": "..."}.
type HTTPError struct {
	Status int
	Body   any
	Err    error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("http error (%d)", e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError wraps err with a status and body.
func NewHTTPError(status int, body any, err error) *HTTPError {
	return &HTTPError{Status: status, Body: body, Err: err}
}

// Detail is the body shape for errors without field detail.
func Detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

// StandardErrorAdapter rewrites a recognized HTTP error into the envelope,
// keeping its status. Unrecognized errors and errors without a body are not
// handled and ok is false.
func StandardErrorAdapter(err error) (resp Response, ok bool) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Body == nil {
		return Response{}, false
	}
	return Build(nil, httpErr.Status, false, httpErr.Body), true
}

// Write renders resp as JSON.
func Write(w http.ResponseWriter, r *http.Request, resp Response) {
	if err := render.Render(w, r, resp); err != nil {
		slog.Error("Failed to render response", "err", err)
	}
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, r *http.Request, status int, data any) {
	Write(w, r, Build(data, status, true, nil))
}

// Fail writes err through StandardErrorAdapter. Errors it does not handle
// become a generic 500 outside the envelope.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	resp, ok := StandardErrorAdapter(err)
	if !ok {
		slog.Error("Unhandled error", "method", r.Method, "path", r.URL.Path, "err", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	Write(w, r, resp)
}
