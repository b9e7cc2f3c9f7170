package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type envelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// APIError is a response the backend rejected. Message prefers the body's
// own message over anything generic.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	msg := MessageFromBody(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if msg == "" {
		msg = "request failed"
	}
	return &APIError{StatusCode: status, Message: msg}
}

// MessageFromBody pulls "message" (or "error") out of a JSON body.
func MessageFromBody(body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	if env.Message != "" {
		return env.Message
	}
	return env.Error
}

func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// UserMessage is what a chat user should see for err.
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
