package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/moogar0880/problems"
)

// GenericMessage is shown when no better message can be extracted.
const GenericMessage = "An unexpected error occurred. Please try again."

var (
	// ErrUnauthorized is returned when a request stays unauthorized after the
	// refresh-and-retry attempt. The session has been cleared.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTransport wraps network level failures.
	ErrTransport = errors.New("transport error")
)

// APIError is a non-2xx answer of the backend.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Message())
}

// Message extracts a user facing message from the body: a JSON string body,
// the detail field, error or message fields, then the first key of an
// arbitrary error object.
func (e *APIError) Message() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return GenericMessage
	}

	var decoded any
	if err := json.Unmarshal(e.Body, &decoded); err != nil {
		if len(body) < 200 && !strings.HasPrefix(body, "<") {
			return body
		}

		return GenericMessage
	}

	switch v := decoded.(type) {
	case string:
		if v != "" {
			return v
		}
	case []any:
		if msg, ok := firstString(v); ok {
			return msg
		}
	case map[string]any:
		return objectMessage(e.Body, v)
	}

	return GenericMessage
}

// Contains reports whether the raw body contains text.
func (e *APIError) Contains(text string) bool {
	return strings.Contains(string(e.Body), text)
}

func objectMessage(raw []byte, object map[string]any) string {
	var problem problems.Problem
	if err := json.Unmarshal(raw, &problem); err == nil && problem.Detail != "" {
		return problem.Detail
	}

	for _, key := range []string{"error", "message", "non_field_errors"} {
		if msg, ok := asMessage(object[key]); ok {
			return msg
		}
	}

	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}

	slices.Sort(keys)

	for _, key := range keys {
		if msg, ok := asMessage(object[key]); ok {
			return key + ": " + msg
		}
	}

	return GenericMessage
}

func asMessage(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, v != ""
	case []any:
		return firstString(v)
	default:
		return "", false
	}
}

func firstString(values []any) (string, bool) {
	for _, value := range values {
		if s, ok := value.(string); ok && s != "" {
			return s, true
		}
	}

	return "", false
}

// Message returns what should be shown to a user for err.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}

	if errors.Is(err, ErrUnauthorized) {
		return "Your session has expired. Please log in again."
	}

	return GenericMessage
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError

	return errors.As(err, &apiErr) && apiErr.Status == status
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}
