package errors

import (
	stderrors "errors"
	"fmt"
	"os"
)

// Standard error codes
const (
	ErrInvalidRequest      = 400
	ErrUnauthorized        = 401
	ErrForbidden           = 403
	ErrNotFound            = 404
	ErrConflict            = 409
	ErrInternalServerError = 500
	ErrServiceUnavailable  = 503

	// Client error taxonomy (2000+)
	ErrAuth            = 2001 // no session, or the session was rejected
	ErrValidation      = 2002 // local, never sent to the server
	ErrTransport       = 2003 // network or 5xx on a single request
	ErrTerminalFailure = 2004 // server reported FAILED/CANCELED
	ErrTimeout         = 2005 // client-side deadline elapsed
	ErrRejected        = 2006 // server refused the request (4xx with a detail)
	ErrRoundInProgress = 2007
	ErrConfigError     = 2008
)

// AppError represents a custom application error
type AppError struct {
	Code         int    `json:"code"`
	Message      string `json:"message"`
	DebugMessage string `json:"debug_message,omitempty"`
	Err          error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.DebugMessage != "" {
		return fmt.Sprintf("[%d] %s: %s", e.Code, e.Message, e.DebugMessage)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s [%v]", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewWithDebug creates a new AppError with a debug message
func NewWithDebug(code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
	}
}

// Wrap wraps an existing error into an AppError
func Wrap(err error, code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WrapWithDebug wraps an existing error into an AppError with a debug message
func WrapWithDebug(err error, code int, message string, debugMessage string) *AppError {
	return &AppError{
		Code:         code,
		Message:      message,
		DebugMessage: debugMessage,
		Err:          err,
	}
}

// Auth creates an AuthError.
func Auth(message string) *AppError { return New(ErrAuth, message) }

// Validation creates a ValidationError. The message is meant for inline display.
func Validation(message string) *AppError { return New(ErrValidation, message) }

// Transport wraps a network or server failure.
func Transport(err error, message string) *AppError { return Wrap(err, ErrTransport, message) }

// Response returns a map suitable for JSON response
func (e *AppError) Response() map[string]interface{} {
	response := map[string]interface{}{
		"code":    e.Code,
		"message": e.Message,
	}

	env := os.Getenv("APP_ENV")
	if (env == "dev" || env == "development") && e.DebugMessage != "" {
		response["debug_message"] = e.DebugMessage
	}

	return response
}

// IsAppError checks if an error is an AppError anywhere in the chain
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode extracts error code from an error
func GetCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternalServerError
}

// UserMessage returns the message that is safe to show to a player.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}

func hasCode(err error, code int) bool {
	return err != nil && GetCode(err) == code
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool { return hasCode(err, ErrAuth) }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return hasCode(err, ErrValidation) }

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool { return hasCode(err, ErrTransport) }

// IsRejected reports whether the server refused the request.
func IsRejected(err error) bool { return hasCode(err, ErrRejected) }

// IsTimeout reports whether err is a client-side TimeoutError.
func IsTimeout(err error) bool { return hasCode(err, ErrTimeout) }

// IsTerminalFailure reports whether err is a server-declared failure.
func IsTerminalFailure(err error) bool { return hasCode(err, ErrTerminalFailure) }

// FromHTTPStatus maps a non-2xx response to the client taxonomy.
// detail is the server's human readable reason, if any.
func FromHTTPStatus(status int, detail string) *AppError {
	debug := fmt.Sprintf("HTTP %d", status)
	switch {
	case status == 401:
		if detail == "" {
			detail = "Your session has expired. Please log in again."
		}
		return NewWithDebug(ErrAuth, detail, debug)
	case status >= 500:
		if detail == "" {
			detail = "The server is not reachable right now."
		}
		return NewWithDebug(ErrTransport, detail, debug)
	default:
		if detail == "" {
			detail = "The request was rejected."
		}
		return NewWithDebug(ErrRejected, detail, debug)
	}
}

// HTTPStatusFromCode maps error codes to HTTP status codes
func HTTPStatusFromCode(code int) int {
	switch code {
	case ErrInvalidRequest, ErrValidation, ErrRejected:
		return 400
	case ErrUnauthorized, ErrAuth:
		return 401
	case ErrForbidden:
		return 403
	case ErrNotFound:
		return 404
	case ErrConflict, ErrRoundInProgress:
		return 409
	case ErrServiceUnavailable, ErrTransport:
		return 503
	case ErrTimeout:
		return 504
	default:
		return 500
	}
}
