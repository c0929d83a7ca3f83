package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every error that crosses a service boundary.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// UnauthorizedReason is a stable sub-classification of KindUnauthorized
// errors, suitable for logs and metrics.
type UnauthorizedReason string

const (
	ReasonMissingHeader      UnauthorizedReason = "missing_header"
	ReasonBadScheme          UnauthorizedReason = "bad_scheme"
	ReasonMissingToken       UnauthorizedReason = "missing_token"
	ReasonTokenExpired       UnauthorizedReason = "token_expired"
	ReasonTokenMalformed     UnauthorizedReason = "token_malformed"
	ReasonTokenInvalid       UnauthorizedReason = "token_invalid"
	ReasonTokenNotActive     UnauthorizedReason = "token_not_active"
	ReasonUnknownSubject     UnauthorizedReason = "unknown_subject"
	ReasonInvalidCredentials UnauthorizedReason = "invalid_credentials"
)

// FieldError describes one failed input rule.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// Error is the closed error type returned by services. Message is always
// safe to show to a client; Err carries the internal cause for logging.
type Error struct {
	Kind    ErrorKind
	Reason  UnauthorizedReason
	Message string
	Details []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(message string, details ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: message, Details: details}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Unauthorized(reason UnauthorizedReason, message string) *Error {
	return &Error{Kind: KindUnauthorized, Reason: reason, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Internal wraps cause; message must not leak cause details.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

// AsError extracts the *Error from err. Unclassified errors come back as
// KindInternal with a generic message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Internal("Internal server error", err)
}

// KindOf is shorthand for AsError(err).Kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindInternal
	}
	return AsError(err).Kind
}
