package errors

import (
	"errors"
	"net/http"

	"github.com/ikkim/storefront-cart/internal/gateway"
	"github.com/ikkim/storefront-cart/internal/search"
)

// ErrorInfo is how an error is presented to the browser.
type ErrorInfo struct {
	Status  int
	Code    string
	Message string
}

// ParseError maps gateway and search errors to a status, code and message.
// Backend messages are passed through; transport details are not.
func ParseError(err error) ErrorInfo {
	var apiErr *gateway.APIError

	switch {
	case err == nil:
		return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalServerError, Message: "Something went wrong. Please try again later."}
	case errors.Is(err, search.ErrSuperseded):
		return ErrorInfo{Status: http.StatusConflict, Code: SearchSuperseded, Message: "A newer search replaced this one"}
	case errors.Is(err, gateway.ErrInvalidQuantity):
		return ErrorInfo{Status: http.StatusBadRequest, Code: ValidationInvalidQuantity, Message: gateway.Message(err)}
	case errors.Is(err, gateway.ErrNetworkError):
		return ErrorInfo{Status: http.StatusServiceUnavailable, Code: CartUnavailable, Message: gateway.Message(err)}
	case errors.Is(err, gateway.ErrDecode):
		return ErrorInfo{Status: http.StatusBadGateway, Code: CartInvalidResponse, Message: gateway.Message(err)}
	case errors.As(err, &apiErr):
		status := apiErr.StatusCode
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		return ErrorInfo{Status: status, Code: CartRejected, Message: gateway.Message(err)}
	default:
		return ErrorInfo{Status: http.StatusInternalServerError, Code: InternalServerError, Message: gateway.Message(err)}
	}
}
