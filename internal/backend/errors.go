package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func IsUnauthorized(err error) bool {
	return IsStatus(err, http.StatusUnauthorized)
}

func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// IsValidation reports a 400-class rejection of submitted data.
func IsValidation(err error) bool {
	return IsStatus(err, http.StatusBadRequest) || IsStatus(err, http.StatusUnprocessableEntity)
}

// newAPIError lifts the single human message out of the error body. The
// backend uses "detail" for most errors, "message"/"error" for a few
// custom views, and a field map for serializer validation.
func newAPIError(status int, payload []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body map[string]any
	if err := json.Unmarshal(payload, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(payload))
		if len(apiErr.Message) > 200 || strings.HasPrefix(apiErr.Message, "<") {
			apiErr.Message = http.StatusText(status)
		}
		return apiErr
	}
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := body[key].(string); ok && s != "" {
			apiErr.Message = s
			return apiErr
		}
	}

	apiErr.Fields = make(map[string][]string)
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		msgs := toStrings(body[k])
		if len(msgs) == 0 {
			continue
		}
		apiErr.Fields[k] = msgs
		if apiErr.Message == "" {
			if k == "non_field_errors" {
				apiErr.Message = msgs[0]
			} else {
				apiErr.Message = k + ": " + msgs[0]
			}
		}
	}
	if msgs, ok := apiErr.Fields["non_field_errors"]; ok {
		apiErr.Message = msgs[0]
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, toStrings(item)...)
		}
		return out
	default:
		return nil
	}
}
