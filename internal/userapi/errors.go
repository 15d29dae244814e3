package userapi

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	NetworkErrorMessage    = "Network error. Please check your connection."
	UnexpectedErrorMessage = "An unexpected error occurred."
)

type Kind int

const (
	KindUnexpected Kind = iota
	KindNetwork
	KindHTTP
)

// Error is the normalized failure of a call to the upstream user API.
type Error struct {
	Kind          Kind
	StatusCode    int
	ServerMessage string
	Err           error
}

func (e *Error) Error() string {
	return Message(e)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message reduces err to the single string shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return UnexpectedErrorMessage
	}

	switch apiErr.Kind {
	case KindNetwork:
		return NetworkErrorMessage
	case KindHTTP:
		if apiErr.ServerMessage != "" {
			return apiErr.ServerMessage
		}
		return statusMessage(apiErr.StatusCode)
	default:
		return UnexpectedErrorMessage
	}
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Invalid request. Please try again."
	case http.StatusUnauthorized:
		return "Unauthorized. Please log in."
	case http.StatusForbidden:
		return "Access forbidden."
	case http.StatusNotFound:
		return "Resource not found."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	default:
		return fmt.Sprintf("Request failed with status %d", status)
	}
}

func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindHTTP && apiErr.StatusCode == http.StatusNotFound
}

// IsRetryable reports whether repeating the request could succeed.
// Client errors (4xx) are final.
func IsRetryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return true
	}
	if apiErr.Kind == KindHTTP && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return false
	}
	return true
}
