package classifier

import (
	"context"
	"errors"
	"io"
	"net"
)

// Message table keys.
const (
	MessageValidation         = "validation"
	MessageNotFound           = "not_found"
	MessageConflict           = "conflict"
	MessageUnauthorized       = "unauthorized"
	MessageForbidden          = "forbidden"
	MessageBadRequest         = "bad_request"
	MessageTimeout            = "timeout"
	MessageRateLimited        = "rate_limited"
	MessageServiceUnavailable = "service_unavailable"
	MessageBusinessRule       = "business_rule_violation"
	MessageCustomStatus       = "custom_status"
	MessageApplication        = "application"
	MessageInternal           = "internal"
	MessageInternalCancelled  = "internal.cancelled"
	MessageInternalNetwork    = "internal.network"
	MessageInternalIO         = "internal.io"
)

// MessageTable maps message keys to user-facing text.
type MessageTable map[string]string

// DefaultMessages returns the built-in messages. Every key the classifier
// looks up is present, so classification never yields an empty message.
func DefaultMessages() MessageTable {
	return MessageTable{
		MessageValidation:         "One or more validation errors occurred.",
		MessageNotFound:           "The requested resource was not found.",
		MessageConflict:           "The request conflicts with the current state of the resource.",
		MessageUnauthorized:       "Authentication is required to access this resource.",
		MessageForbidden:          "You do not have permission to perform this action.",
		MessageBadRequest:         "The request is invalid.",
		MessageTimeout:            "The request timed out.",
		MessageRateLimited:        "Too many requests. Please try again later.",
		MessageServiceUnavailable: "The service is temporarily unavailable.",
		MessageBusinessRule:       "The request violates a business rule.",
		MessageCustomStatus:       "The request could not be completed.",
		MessageApplication:        "The request could not be completed.",
		MessageInternal:           "An unexpected error occurred. Please try again later.",
		MessageInternalCancelled:  "The operation was cancelled before it could complete.",
		MessageInternalNetwork:    "A dependent service could not be reached.",
		MessageInternalIO:         "The data could not be read completely.",
	}
}

func (t MessageTable) merge(overrides MessageTable) MessageTable {
	merged := make(MessageTable, len(t)+len(overrides))
	for k, v := range t {
		merged[k] = v
	}
	for k, v := range overrides {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}

func (t MessageTable) lookup(key string) string {
	if msg := t[key]; msg != "" {
		return msg
	}
	if msg := t[MessageInternal]; msg != "" {
		return msg
	}
	return DefaultMessages()[MessageInternal]
}

// safeMessage maps common low-level failures to generic phrases so the
// catch-all never echoes an internal error string.
func (c *Classifier) safeMessage(err error) string {
	var netErr net.Error
	switch {
	case err == nil:
		return c.messages.lookup(MessageInternal)
	case errors.Is(err, context.Canceled):
		return c.messages.lookup(MessageInternalCancelled)
	case errors.As(err, &netErr):
		return c.messages.lookup(MessageInternalNetwork)
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return c.messages.lookup(MessageInternalIO)
	default:
		return c.messages.lookup(MessageInternal)
	}
}
