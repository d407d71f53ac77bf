package auth

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the machine-readable category of an authentication or
// authorization failure. Messages attached to these codes are coarse on
// purpose: the agent-session path in particular must not reveal whether a
// handle never existed, expired, or was revoked.
type Code string

const (
	// CodeUnauthenticated means no credential material was presented at all.
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	// CodeInvalidCredential means a bearer token was presented but is
	// malformed or was never issued by us.
	CodeInvalidCredential Code = "INVALID_CREDENTIAL"

	CodeCredentialExpired Code = "CREDENTIAL_EXPIRED"
	CodeCredentialRevoked Code = "CREDENTIAL_REVOKED"

	// CodeSessionInvalid collapses not-found, revoked and expired for the
	// agent-session path.
	CodeSessionInvalid Code = "AGENT_SESSION_INVALID"

	// CodeInvalidAPIKey means the channel shared secret did not match.
	CodeInvalidAPIKey Code = "INVALID_API_KEY"

	CodeSubjectNotFound Code = "SUBJECT_NOT_FOUND"

	CodeForbidden  Code = "FORBIDDEN"
	CodeBadRequest Code = "BAD_REQUEST"

	// CodeUpstreamUnavailable means the external platform's token endpoint
	// was unreachable or errored.
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"

	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeInternal      Code = "INTERNAL"
)

// Error is a terminal authentication/authorization failure. It carries the
// HTTP status so the presenter can translate it without a mapping table.
type Error struct {
	Code    Code
	Status  int
	Message string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Wrapped)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Is makes errors.Is match on the code, so tests and callers can compare
// against sentinel errors without caring about the wrapped cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

func newError(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

var (
	ErrUnauthenticated = newError(CodeUnauthenticated, http.StatusUnauthorized,
		"access denied: no authentication provided")
	ErrInvalidCredential = newError(CodeInvalidCredential, http.StatusUnauthorized,
		"invalid token")
	ErrCredentialExpired = newError(CodeCredentialExpired, http.StatusUnauthorized,
		"token has expired")
	ErrCredentialRevoked = newError(CodeCredentialRevoked, http.StatusUnauthorized,
		"token has been revoked")
	ErrSessionInvalid = newError(CodeSessionInvalid, http.StatusUnauthorized,
		"invalid or expired agent session")
	ErrInvalidAPIKey = newError(CodeInvalidAPIKey, http.StatusUnauthorized,
		"invalid API key")
	ErrSubjectNotFound = newError(CodeSubjectNotFound, http.StatusUnauthorized,
		"user not found")
	ErrForbidden = newError(CodeForbidden, http.StatusForbidden,
		"insufficient permissions")
)

// BadRequest returns a 400 failure with the given message.
func BadRequest(message string) *Error {
	return newError(CodeBadRequest, http.StatusBadRequest, message)
}

// Forbidden returns a 403 failure with the given message.
func Forbidden(message string) *Error {
	return newError(CodeForbidden, http.StatusForbidden, message)
}

// UpstreamUnavailable wraps a failed call to the external platform.
func UpstreamUnavailable(err error) *Error {
	return &Error{
		Code:    CodeUpstreamUnavailable,
		Status:  http.StatusBadGateway,
		Message: "external platform unavailable",
		Wrapped: err,
	}
}

// ConfigurationError reports a fatal misconfiguration (e.g. missing
// signing key). The server refuses to start on these.
func ConfigurationError(message string) *Error {
	return newError(CodeConfiguration, http.StatusInternalServerError, message)
}

// Internal wraps an unexpected fault without leaking its cause to callers.
func Internal(err error) *Error {
	return &Error{
		Code:    CodeInternal,
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Wrapped: err,
	}
}
