package faults

import "errors"

type ErrorCategory string

const (
	ValidationError ErrorCategory = "ValidationError"
	NotFoundError   ErrorCategory = "NotFoundError"
	ConflictError   ErrorCategory = "ConflictError"
	AuthError       ErrorCategory = "AuthError"
	TransportError  ErrorCategory = "TransportError"
	InternalError   ErrorCategory = "InternalError"
)

// TypedError carries a category and, for input errors, the configuration path
// of the offending value (for example "services[1].routes[0]").
type TypedError struct {
	Category ErrorCategory
	Message  string
	Path     string
	Cause    error
}

func (e *TypedError) Error() string {
	if e == nil {
		return "<nil>"
	}

	message := e.Message
	if e.Path != "" {
		if message == "" {
			message = e.Path
		} else {
			message = e.Path + ": " + message
		}
	}

	if message != "" && e.Cause != nil {
		return message + ": " + e.Cause.Error()
	}
	if message != "" {
		return message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Category)
}

func (e *TypedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewTypedError(category ErrorCategory, message string, cause error) *TypedError {
	return &TypedError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func NewPathError(category ErrorCategory, path string, message string) *TypedError {
	return &TypedError{
		Category: category,
		Message:  message,
		Path:     path,
	}
}

func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}

	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return false
	}
	return typedErr.Category == category
}

// PathOf returns the input path recorded on the first typed error in the chain.
func PathOf(err error) string {
	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return ""
	}
	return typedErr.Path
}
