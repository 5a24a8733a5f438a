package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse represents a standardized API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// AppError represents a custom application error
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Predefined error constructors
func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with ID %v not found", resource, id),
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    "VALIDATION_ERROR",
		Message: message,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Message: message,
	}
}

// NewUnavailableError marks a work-list or upstream resource that could not be
// fetched. Callers must not treat this as an empty result: an empty work-list
// legitimately ends traversal, an unavailable one must stay retryable.
func NewUnavailableError(resource string, err error) *AppError {
	return &AppError{
		Code:    "UNAVAILABLE",
		Message: fmt.Sprintf("%s is unavailable", resource),
		Err:     err,
	}
}

// NewUpstreamError wraps a non-2xx response from the pipeline API.
func NewUpstreamError(message string, err error) *AppError {
	return &AppError{
		Code:    "UPSTREAM_ERROR",
		Message: message,
		Err:     err,
	}
}

// NewRateLimitedError marks a request rejected by a rate limit window.
func NewRateLimitedError(resource string, retryAfter time.Duration) *AppError {
	return &AppError{
		Code:    "RATE_LIMITED",
		Message: fmt.Sprintf("rate limit exceeded for %s, retry in %s", resource, retryAfter.Round(time.Second)),
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
		Err:     err,
	}
}

// IsNotFound reports whether err is an AppError with code NOT_FOUND.
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == "NOT_FOUND"
}

// IsUnavailable reports whether err is an AppError with code UNAVAILABLE.
func IsUnavailable(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == "UNAVAILABLE"
}

// StatusForError maps an error to the HTTP status it should be reported with.
func StatusForError(err error) int {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return fiber.StatusInternalServerError
	}
	switch appErr.Code {
	case "NOT_FOUND":
		return fiber.StatusNotFound
	case "VALIDATION_ERROR":
		return fiber.StatusBadRequest
	case "UNAUTHORIZED":
		return fiber.StatusUnauthorized
	case "UNAVAILABLE", "UPSTREAM_ERROR":
		return fiber.StatusBadGateway
	case "RATE_LIMITED":
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// RespondWithError creates a standardized error response
func RespondWithError(c *fiber.Ctx, status int, err error) error {
	var response ErrorResponse

	var appErr *AppError
	if errors.As(err, &appErr) {
		response = ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		}
		if appErr.Err != nil {
			response.Details = appErr.Err.Error()
		}
	} else {
		response = ErrorResponse{
			Error: err.Error(),
		}
	}

	return c.Status(status).JSON(response)
}
