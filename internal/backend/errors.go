// Package backend is the REST client for the ML backend that stores datasets
// and models, extracts intents and runs training.
package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is returned for every failed backend call.
// Transport is true when the backend could not be reached or the call was
// cancelled; otherwise the backend answered and rejected the request, either
// with a non-2xx status or with success:false.
type APIError struct {
	Operation string
	Status    int
	Message   string
	Transport bool
	Cause     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Status != 0 {
		msg = http.StatusText(e.Status)
	}
	switch {
	case e.Transport && e.Cause != nil:
		return fmt.Sprintf("%s: backend unreachable: %v", e.Operation, e.Cause)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %s: %v", e.Operation, msg, e.Cause)
	case e.Status != 0:
		return fmt.Sprintf("%s: status=%d: %s", e.Operation, e.Status, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Operation, msg)
	}
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// ServerMessage returns the message supplied by the backend, if any
func (e *APIError) ServerMessage() string {
	if e.Transport {
		return ""
	}
	return e.Message
}

// IsNotFound reports whether err is a backend 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsTransport reports whether err means the backend was never reached
func IsTransport(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Transport
}

// ServerMessage extracts a backend-supplied message from err, or "".
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.ServerMessage()
	}
	return ""
}

// parseErrorBody pulls a human-readable message out of an error body.
// The backend answers with {"error": ...}, {"detail": ...}, {"message": ...}
// or per-field lists such as {"file": ["This field is required."]}.
func parseErrorBody(raw []byte) string {
	var env map[string]json.RawMessage
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	for _, key := range []string{"error", "detail", "message"} {
		if v, ok := env[key]; ok {
			var s string
			if json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		var list []string
		if json.Unmarshal(env[k], &list) == nil && len(list) > 0 {
			parts = append(parts, fmt.Sprintf("%s: %s", k, list[0]))
		}
	}
	return strings.Join(parts, "; ")
}
