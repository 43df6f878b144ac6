package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error type the API layer knows how to render. Code and
// Message are safe for clients; Internal is for logs only.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	default:
		return e.Message
	}
}

// Unwrap exposes the internal error for errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// WithInternal copies the error and attaches err for logging. The sentinel
// itself is never mutated.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Sentinels shared across the application.
var (
	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrForbidden          = New("FORBIDDEN", "Access denied", http.StatusForbidden)
	ErrNotFound           = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest         = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrInternalServer     = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)

	ErrAlreadyProcessed     = New("ALREADY_PROCESSED", "Notification has already been processed", http.StatusConflict)
	ErrCalendarNotConnected = New("CALENDAR_NOT_CONNECTED", "Google Calendar is not connected for this account", http.StatusBadRequest)
	ErrCalendarAuthExpired  = New("CALENDAR_AUTH_EXPIRED", "Google Calendar authorization expired, please reconnect", http.StatusUnauthorized)
	ErrUpstream             = New("UPSTREAM_ERROR", "Upstream service failed", http.StatusBadGateway)
)

// New builds an application error.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// Wrap turns any error into an internal AppError, keeping the original for
// logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError extracts an AppError from err or degrades to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest reports a request validation failure.
func NewBadRequest(message string) *AppError {
	return New(ErrBadRequest.Code, message, http.StatusBadRequest)
}

// NewConflict reports an operation rejected by resource lifecycle state.
func NewConflict(message string) *AppError {
	return New("CONFLICT", message, http.StatusConflict)
}
