package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/brokernuam/calificaciones/internal/calificacion"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Method string
	Path   string
	Status int
	Data   []byte

	// RequestID is the X-Request-ID the client sent.
	RequestID string

	// Message is the top level "error"/"detail" text when the body carries one.
	Message string
	// FieldErrors holds DRF style {"field": ["msg", ...]} validation messages.
	FieldErrors calificacion.FieldErrors
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && len(e.FieldErrors) > 0 {
		msg = e.FieldErrors.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// RequestID returns the request id of err when it is an *Error.
func RequestID(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.RequestID
	}
	return ""
}

// StatusCode returns the HTTP status of err when it is an *Error, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Details returns human readable lines for err: backend messages when it is an *Error,
// nothing otherwise.
func Details(err error) []string {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return nil
	}
	var lines []string
	if apiErr.Message != "" {
		lines = append(lines, apiErr.Message)
	}
	return append(lines, apiErr.FieldErrors.Lines()...)
}

func newError(method, path string, status int, data []byte) *Error {
	e := &Error{Method: method, Path: path, Status: status, Data: data}

	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		text := strings.TrimSpace(string(data))
		if len(text) > 200 {
			text = text[:200]
		}
		e.Message = text
		return e
	}
	fields := calificacion.FieldErrors{}
	for k, v := range body {
		switch k {
		case "error", "detail":
			var s string
			if json.Unmarshal(v, &s) == nil {
				e.Message = s
				continue
			}
		}
		var list []string
		if json.Unmarshal(v, &list) == nil {
			fields[k] = list
			continue
		}
		var one string
		if json.Unmarshal(v, &one) == nil {
			fields[k] = []string{one}
		}
	}
	if len(fields) > 0 {
		e.FieldErrors = fields
	}
	return e
}
