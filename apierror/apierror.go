// Package apierror is the error vocabulary handlers return when they want a
// specific client-facing outcome.
//
// Every *Error carries a Kind from a closed set of categories. The classifier
// maps kinds to HTTP statuses and error codes; callers only choose the kind
// and, optionally, an explicit code, a custom status or field-level details.
//
//	return nil, apierror.NotFound(fmt.Sprintf("User (%d) was not found.", id))
//	return nil, apierror.Validation("invalid payload", "name is required")
//	return nil, apierror.Application(http.StatusPaymentRequired, "QUOTA_EXHAUSTED", "Upgrade your plan.")
package apierror

import (
	"errors"
	"fmt"
)

// Kind identifies the category of an *Error.
type Kind uint8

const (
	// KindUnknown marks errors that carry no category; they take the catch-all
	// path unless they are exposed.
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindBadRequest
	KindTimeout
	KindRateLimited
	KindServiceUnavailable
	KindBusinessRule
	// KindCustomStatus takes its HTTP status from the error instance.
	KindCustomStatus
	// KindApplication carries an explicit code, status and message that are
	// used verbatim.
	KindApplication
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindValidation:         "validation",
	KindNotFound:           "not_found",
	KindConflict:           "conflict",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindBadRequest:         "bad_request",
	KindTimeout:            "timeout",
	KindRateLimited:        "rate_limited",
	KindServiceUnavailable: "service_unavailable",
	KindBusinessRule:       "business_rule_violation",
	KindCustomStatus:       "custom_status",
	KindApplication:        "application",
}

// String returns the snake_case category name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error is a categorised application error.
type Error struct {
	Kind Kind
	// Code overrides the category error code when set.
	Code string
	// Status is honoured for KindCustomStatus and KindApplication only.
	Status int
	// Message is safe to show to clients.
	Message string
	// Details lists individual problems, e.g. one entry per invalid field.
	Details []string
	// Expose allows an otherwise uncategorised error to surface its own
	// message with status 400. Set it through Expose, never by inference.
	Expose bool
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode reports the explicit code, satisfying Coder.
func (e *Error) ErrorCode() string {
	return e.Code
}

// StatusCode reports the status carried by the instance, or zero.
func (e *Error) StatusCode() int {
	return e.Status
}

// WithCode returns a copy of e with an explicit error code.
func (e *Error) WithCode(code string) *Error {
	c := *e
	c.Code = code
	return &c
}

// WithCause returns a copy of e wrapping err.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// Coder is implemented by errors that carry a machine-readable code. The
// classifier looks for it anywhere in the wrap chain.
type Coder interface {
	ErrorCode() string
}

// New creates an error of the given kind.
func New(kind Kind, message string, details ...string) *Error {
	return &Error{Kind: kind, Message: message, Details: details}
}

// Wrap creates an error of the given kind around err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation reports invalid input; details list the offending fields.
func Validation(message string, details ...string) *Error {
	return New(KindValidation, message, details...)
}

// NotFound reports a missing resource.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict reports a clash with the current state of a resource.
func Conflict(message string) *Error { return New(KindConflict, message) }

// Unauthorized reports missing or invalid credentials.
func Unauthorized(message string) *Error { return New(KindUnauthorized, message) }

// Forbidden reports an authenticated caller lacking permission.
func Forbidden(message string) *Error { return New(KindForbidden, message) }

// BadRequest reports a malformed request.
func BadRequest(message string) *Error { return New(KindBadRequest, message) }

// Timeout reports an operation that ran out of time.
func Timeout(message string) *Error { return New(KindTimeout, message) }

// RateLimited reports a caller over its request quota.
func RateLimited(message string) *Error { return New(KindRateLimited, message) }

// ServiceUnavailable reports a dependency that cannot serve right now.
func ServiceUnavailable(message string) *Error { return New(KindServiceUnavailable, message) }

// BusinessRule reports a well-formed request that breaks a domain rule.
func BusinessRule(message string) *Error { return New(KindBusinessRule, message) }

// WithStatus creates a custom-status error. Statuses outside 400-599 are
// replaced by 500 when classified.
func WithStatus(status int, message string) *Error {
	return &Error{Kind: KindCustomStatus, Status: status, Message: message}
}

// Application creates an error whose status, code and message are used as
// declared. A zero status means 500.
func Application(status int, code, message string) *Error {
	return &Error{Kind: KindApplication, Status: status, Code: code, Message: message}
}

// Expose marks err as safe to show verbatim. When err is not otherwise
// categorised the response becomes a 400 carrying err's message; an err that
// already has a category is returned unchanged.
func Expose(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Kind != KindUnknown {
			return err
		}
		c := *ae
		c.Expose = true
		return &c
	}
	return &Error{Kind: KindUnknown, Expose: true, Err: err}
}

// IsExposed reports whether err was marked with Expose.
func IsExposed(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Expose
}

type annotated struct {
	err  error
	code string
}

func (a *annotated) Error() string     { return a.err.Error() }
func (a *annotated) Unwrap() error     { return a.err }
func (a *annotated) ErrorCode() string { return a.code }

// Annotate attaches a machine-readable code to any error without changing
// its category. Use it for errors produced outside this package.
func Annotate(err error, code string) error {
	if err == nil {
		return nil
	}
	return &annotated{err: err, code: code}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// CodeOf returns the first non-empty code found in err's chain.
func CodeOf(err error) string {
	for err != nil {
		if c, ok := err.(Coder); ok && c.ErrorCode() != "" {
			return c.ErrorCode()
		}
		err = errors.Unwrap(err)
	}
	return ""
}
