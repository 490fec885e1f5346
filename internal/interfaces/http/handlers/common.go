// Package handlers implements the overlay HTTP API.  Every handler that
// touches diagram or overlay state runs its work on the event loop.
package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/turtacn/pathway-overlay/pkg/errors"
)

// Executor runs fn on the goroutine that owns overlay state and waits for
// it.  *eventloop.Loop implements it.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err's code to a status.  Unmapped errors are masked.
func writeAppError(w http.ResponseWriter, err error) {
	var ae *errors.AppError
	if !errors.As(err, &ae) {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    string(errors.ErrCodeInternal),
			Message: "internal server error",
		})
		return
	}
	status := errors.HTTPStatusForCode(ae.Code)
	resp := ErrorResponse{Code: string(ae.Code), Message: ae.Message, Detail: ae.Detail}
	if status >= 500 && ae.Code == errors.ErrCodeInternal {
		resp.Message, resp.Detail = "internal server error", ""
	}
	writeJSON(w, status, resp)
}

// decodeJSON decodes the request body into dst.  An empty body leaves dst
// untouched and reports false.
func decodeJSON(r *http.Request, dst interface{}) (bool, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeBadRequest, "reading request body")
	}
	if len(body) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return false, errors.New(errors.ErrCodeBadRequest, "malformed request body").WithDetail(err.Error())
	}
	return true, nil
}

func int64Param(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.InvalidParam(name + " must be an integer").WithDetail(raw)
	}
	return v, nil
}

func floatQuery(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.InvalidParam(name + " must be a number").WithDetail(raw)
	}
	return v, nil
}
