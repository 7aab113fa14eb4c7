package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
)

// Fallback messages used when the server gives no usable text.
const (
	FallbackUpload  = "Upload failed"
	FallbackConfirm = "Failed to save transactions"
	FallbackRequest = "Request failed"
)

const maxErrorBody = 64 << 10

// APIError is a non-2xx or unreadable answer from the expense tracker API.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// parseError builds an APIError from resp. The message is taken from the JSON
// "error" or "message" field, else the raw body text, else fallback.
func parseError(resp *http.Response, fallback string) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return &APIError{Status: resp.StatusCode, Message: fallback, Err: err}
	}
	return &APIError{Status: resp.StatusCode, Message: errorMessage(body, fallback)}
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error   any `json:"error"`
		Message any `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Error.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		if s, ok := payload.Message.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
		return fallback
	}

	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fallback
}
