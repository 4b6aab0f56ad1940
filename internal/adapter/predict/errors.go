package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Malformed success responses. Both are wrapped with the service name, e.g.
// "Prediction API returned empty response".
var (
	ErrEmptyResponse   = errors.New("API returned empty response")
	ErrInvalidResponse = errors.New("API returned invalid JSON")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Service    string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: HTTP %d - %s", e.Service, e.StatusCode, e.Detail)
}

// Temporary reports server-side failures and rate limiting.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// TransportError is a request that never produced an HTTP response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "Network error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Temporary is always true: the backend was not reached.
func (e *TransportError) Temporary() bool { return true }

// errorDetail extracts the message of an error body. A JSON object's
// "detail" field wins; strings are used as is and other values are
// re-encoded. Non-JSON bodies are returned trimmed.
func errorDetail(body []byte) string {
	text := strings.TrimSpace(string(body))
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return text
	}
	if obj, ok := parsed.(map[string]any); ok {
		if d, ok := obj["detail"]; ok && d != nil {
			if s, ok := d.(string); ok {
				return s
			}
			return compactJSON(d)
		}
	}
	if s, ok := parsed.(string); ok {
		return s
	}
	return compactJSON(parsed)
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
