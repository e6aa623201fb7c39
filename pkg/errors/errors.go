// Package errors renders API errors in the response envelope the clients
// expect, on top of go-openapi typed errors.
package errors

import (
	"encoding/json"
	"net/http"

	openapierrors "github.com/go-openapi/errors"

	"github.com/mila-iqia/clockwork-sub001/internal/pkg/response"
)

// NotFound builds a 404 error.
func NotFound(message string, args ...any) error {
	return openapierrors.New(http.StatusNotFound, message, args...)
}

// MethodNotAllowed builds a 405 error.
func MethodNotAllowed(message string, args ...any) error {
	return openapierrors.New(http.StatusMethodNotAllowed, message, args...)
}

// ServeError writes err as a JSON envelope. The status code comes from the
// typed error when there is one, 500 otherwise.
func ServeError(rw http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	if apiErr, ok := err.(openapierrors.Error); ok {
		code = int(apiErr.Code())
		if code < 400 || code > 599 {
			code = http.StatusInternalServerError
		}
	}
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	if r != nil && r.Method == http.MethodHead {
		return
	}
	detail := "internal error"
	if err != nil {
		detail = err.Error()
	}
	_ = json.NewEncoder(rw).Encode(response.Response{Detail: detail})
}
