package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidConfig is returned when the client configuration is unusable
	ErrInvalidConfig = errors.New("invalid gateway config")

	// ErrInvalidQuantity is returned before any request when a quantity is below 1
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")

	// ErrNetworkError is returned when the backend could not be reached
	ErrNetworkError = errors.New("network error")

	// ErrDecode is returned when the backend answered with malformed JSON
	ErrDecode = errors.New("malformed backend response")
)

// APIError is a response the backend rejected, with its message when it
// sent one.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("cart backend error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("cart backend error: status %d: %s", e.StatusCode, e.Message)
}

// absentMarkers are the messages the backend uses when an identity has no
// cart yet.
var absentMarkers = []string{
	"cart not found",
	"carrito no encontrado",
	"no cart",
	"not found",
}

// IsCartAbsent reports whether err means "there is no cart for this
// identity", which callers treat as an empty cart rather than a failure.
func IsCartAbsent(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.StatusCode == http.StatusNotFound {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	for _, marker := range absentMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// Message returns a human-readable message for err: the backend's own text
// when there is one, a generic description otherwise.
func Message(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrNetworkError):
		return "Could not reach the store. Check your connection and try again."
	case errors.Is(err, ErrDecode):
		return "The store sent an unexpected response. Please try again."
	case errors.Is(err, ErrInvalidQuantity):
		return "Quantity must be at least 1."
	default:
		return "Something went wrong with your cart. Please try again."
	}
}
