package classifier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"github.com/drblury/apienvelope/apierror"
)

// DefaultRules returns the built-in category table. Every entry is an
// expected, client-driven outcome and therefore logs at info severity.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:       "validation",
			Kind:       apierror.KindValidation,
			Match:      isValidationError,
			Status:     http.StatusBadRequest,
			Code:       "VALIDATION_ERROR",
			MessageKey: MessageValidation,
			Details:    validationDetails,
		},
		{
			Name:       "not_found",
			Kind:       apierror.KindNotFound,
			Match:      isNotFound,
			Status:     http.StatusNotFound,
			Code:       "NOT_FOUND",
			MessageKey: MessageNotFound,
		},
		{
			Name:       "conflict",
			Kind:       apierror.KindConflict,
			Match:      isConflict,
			Status:     http.StatusConflict,
			Code:       "CONFLICT",
			MessageKey: MessageConflict,
		},
		{
			Name:       "unauthorized",
			Kind:       apierror.KindUnauthorized,
			Status:     http.StatusUnauthorized,
			Code:       "UNAUTHORIZED",
			MessageKey: MessageUnauthorized,
		},
		{
			Name:       "forbidden",
			Kind:       apierror.KindForbidden,
			Status:     http.StatusForbidden,
			Code:       "FORBIDDEN",
			MessageKey: MessageForbidden,
		},
		{
			Name:       "bad_request",
			Kind:       apierror.KindBadRequest,
			Status:     http.StatusBadRequest,
			Code:       "BAD_REQUEST",
			MessageKey: MessageBadRequest,
		},
		{
			Name:       "timeout",
			Kind:       apierror.KindTimeout,
			Match:      isTimeout,
			Status:     http.StatusRequestTimeout,
			Code:       "TIMEOUT",
			MessageKey: MessageTimeout,
		},
		{
			Name:       "rate_limited",
			Kind:       apierror.KindRateLimited,
			Status:     http.StatusTooManyRequests,
			Code:       "RATE_LIMIT_EXCEEDED",
			MessageKey: MessageRateLimited,
		},
		{
			Name:       "service_unavailable",
			Kind:       apierror.KindServiceUnavailable,
			Status:     http.StatusServiceUnavailable,
			Code:       "SERVICE_UNAVAILABLE",
			MessageKey: MessageServiceUnavailable,
		},
		{
			Name:       "business_rule_violation",
			Kind:       apierror.KindBusinessRule,
			Status:     http.StatusUnprocessableEntity,
			Code:       "BUSINESS_RULE_VIOLATION",
			MessageKey: MessageBusinessRule,
		},
		{
			Name:       "custom_status",
			Kind:       apierror.KindCustomStatus,
			StatusFrom: instanceStatus,
			CodeFrom:   codeForStatus,
			MessageKey: MessageCustomStatus,
		},
	}
}

func isValidationError(err error) bool {
	var ve validator.ValidationErrors
	return errors.As(err, &ve)
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, mongo.ErrNoDocuments) ||
		errors.Is(err, sql.ErrNoRows)
}

func isConflict(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || mongo.IsDuplicateKeyError(err)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}

func instanceStatus(err error) int {
	var ae *apierror.Error
	if errors.As(err, &ae) {
		return ae.Status
	}
	return http.StatusInternalServerError
}

// codeForStatus turns a status text into an upper snake case code, e.g. 418
// becomes I_M_A_TEAPOT.
func codeForStatus(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "CUSTOM_ERROR"
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(text) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func validationDetails(err error) []string {
	var details []string

	var ae *apierror.Error
	if errors.As(err, &ae) && len(ae.Details) > 0 {
		details = append(details, ae.Details...)
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			details = append(details, describeFieldError(fe))
		}
	}
	return details
}

func describeFieldError(fe validator.FieldError) string {
	switch {
	case fe.Tag() == "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case fe.Param() != "":
		return fmt.Sprintf("%s failed on the '%s=%s' rule", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
	}
}
