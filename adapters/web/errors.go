package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// APIError is the JSON body of every failed shell request.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

func NewBadRequestError(code string, message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewBadGatewayError reports a failure of the inventory backend. The cause is
// kept out of the response, backend errors are opaque to the shell.
func NewBadGatewayError(code string, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadGateway,
		Code:    code,
		Message: message,
	}
}

// ErrorHandler renders errors as APIError JSON.
// Usage: e.HTTPErrorHandler = ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	var (
		apiErr  *APIError
		httpErr *echo.HTTPError
	)

	if c.Response().Committed {
		return
	}

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
	}

	_ = c.JSON(apiErr.Status, apiErr)
}
