package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/desertthunder/orbitune/internal/shared"
)

// APIError is a non-2xx backend response.
//
// Detail holds the structured error field when the body carried one.
type APIError struct {
	StatusCode int
	Detail     string
	Body       string
}

func newAPIError(r *APIResponse) *APIError {
	return &APIError{
		StatusCode: r.StatusCode,
		Detail:     detailFromBody(r.Body),
		Body:       strings.TrimSpace(string(r.Body)),
	}
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Body != "":
		return fmt.Sprintf("backend error: status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("backend error: status %d", e.StatusCode)
	}
}

// Unwrap exposes [shared.ErrAPIRequest], plus [shared.ErrServiceUnavailable] for 5xx responses.
func (e *APIError) Unwrap() []error {
	if e.StatusCode >= 500 {
		return []error{shared.ErrAPIRequest, shared.ErrServiceUnavailable}
	}
	return []error{shared.ErrAPIRequest}
}

// ErrorMessage derives a human-readable message from err.
//
// Priority: structured backend field, serialized backend body, the error's own message.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		if apiErr.Body != "" {
			return apiErr.Body
		}
	}
	return err.Error()
}

// detailFromBody pulls the error text out of FastAPI-style bodies:
// {"detail": "..."}, {"detail": [{"msg": "..."}]}, {"message": "..."} or {"error": "..."}.
func detailFromBody(body []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, field := range []string{"detail", "message", "error"} {
		raw, ok := payload[field]
		if !ok {
			continue
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil && s != "" {
			return s
		}

		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &items); err == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			if len(msgs) > 0 {
				return strings.Join(msgs, "; ")
			}
		}
	}
	return ""
}
