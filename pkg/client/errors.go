package client

import (
	"errors"
	"fmt"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrNoSession      = errors.New("not logged in")
)

// APIError is a non-2xx response. Message and Code come from the
// {"error": ..., "code": ...} body when present.
type APIError struct {
	Status  int
	Message string
	Code    string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return e.Message
}
