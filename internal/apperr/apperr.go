// Package apperr defines the errors the gateway reports to callers and how
// they map onto HTTP statuses.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a caller-facing error
type Kind int

const (
	Internal Kind = iota
	RateLimitExceeded
	InvalidAPIKey
	InsufficientFunds
	UserLocked
	ProviderError
	UserAlreadyExists
	UserNotFound
	InvalidRequest
)

var kindInfo = map[Kind]struct {
	code    string
	status  int
	errType string
	message string
}{
	Internal:          {"internal_server_error", http.StatusInternalServerError, "server_error", "internal server error"},
	RateLimitExceeded: {"rate_limit_exceeded", http.StatusTooManyRequests, "rate_limit_error", "rate limit exceeded"},
	InvalidAPIKey:     {"invalid_api_key", http.StatusUnauthorized, "authentication_error", "invalid API key"},
	InsufficientFunds: {"insufficient_funds", http.StatusPaymentRequired, "billing_error", "insufficient funds"},
	UserLocked:        {"user_locked", http.StatusForbidden, "billing_error", "user is locked"},
	ProviderError:     {"provider_error", http.StatusBadGateway, "upstream_error", "provider request failed"},
	UserAlreadyExists: {"user_already_exists", http.StatusConflict, "invalid_request_error", "user already exists"},
	UserNotFound:      {"user_not_found", http.StatusNotFound, "invalid_request_error", "user not found"},
	InvalidRequest:    {"invalid_request", http.StatusBadRequest, "invalid_request_error", "invalid request"},
}

// Code returns the stable machine-readable code
func (k Kind) Code() string {
	return kindInfo[k].code
}

// HTTPStatus returns the status a handler responds with
func (k Kind) HTTPStatus() int {
	return kindInfo[k].status
}

// Type returns the OpenAI-style error type
func (k Kind) Type() string {
	return kindInfo[k].errType
}

func (k Kind) String() string {
	return k.Code()
}

// Error is a classified error with an optional cause and details
type Error struct {
	Kind    Kind
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind.Code(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Code(), e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given kind. An empty message uses the kind's default.
func New(kind Kind, message string) *Error {
	if message == "" {
		message = kindInfo[kind].message
	}
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an error of the given kind around a cause
func Wrap(kind Kind, err error, message string) *Error {
	e := New(kind, message)
	e.Err = err
	return e
}

// WithDetails attaches caller-visible details
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or Internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// From returns err as an *Error, classifying unknown errors as Internal
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(Internal, err, "")
}

// PublicMessage is the message safe to return to a caller. Internal causes are hidden.
func (e *Error) PublicMessage() string {
	if e.Kind == Internal {
		return kindInfo[Internal].message
	}
	return e.Message
}
