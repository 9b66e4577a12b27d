// ABOUTME: Error taxonomy for backend API calls
// ABOUTME: ValidationError for client-side preconditions, RequestError for backend failures

package api

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports a client-side precondition failure. It is raised
// before any network call and surfaced to the initiating caller only.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// RequestError reports a non-success backend response unrelated to
// authorization. Message carries the backend-provided detail when present.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.Status, e.Message)
}

// genericFailure is the fallback message when the backend gives no usable
// error body.
const genericFailure = "request failed"

// extractMessage pulls a human-readable message out of a backend error body.
// The backend answers either {"detail": "..."} or a field-error map like
// {"username": ["already taken"]}; anything else falls back to a generic
// message.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return genericFailure
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		return detail.Detail
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err == nil {
		for _, raw := range fields {
			var msgs []string
			if err := json.Unmarshal(raw, &msgs); err == nil && len(msgs) > 0 {
				return msgs[0]
			}
			var msg string
			if err := json.Unmarshal(raw, &msg); err == nil && msg != "" {
				return msg
			}
		}
	}

	return genericFailure
}
