package classifier

import (
	"errors"
	"net/http"

	"github.com/drblury/apienvelope/apierror"
)

// CodeInternal is the error code of the catch-all classification.
const CodeInternal = "INTERNAL_ERROR"

// Result is the outcome of classifying an error.
type Result struct {
	Status int
	Code   string
	// Message is the summary placed in the envelope message field.
	Message string
	// Errors is the detail list placed in the envelope errors field.
	Errors []string
	// LogAsError selects error severity; expected outcomes log at info.
	LogAsError bool
	// Category is the name of the rule that produced the result.
	Category string
}

// Rule maps a category of errors to a response. A rule matches either
// *apierror.Error values of Kind or, for errors produced elsewhere, any error
// accepted by Match.
type Rule struct {
	Name       string
	Kind       apierror.Kind
	Match      func(err error) bool
	Status     int
	Code       string
	MessageKey string
	LogAsError bool
	// StatusFrom derives the status from the error instance when set.
	StatusFrom func(err error) int
	// CodeFrom derives the fallback code from the resolved status when set.
	CodeFrom func(status int) string
	// Details produces the client-visible detail lines when set.
	Details func(err error) []string
}

// Option configures a Classifier.
type Option func(*Classifier)

// Classifier evaluates rules most-specific-first: explicit application
// errors, then categorised errors, then foreign-error predicates in table
// order, then the exposed-message downgrade and finally the catch-all.
// A Classifier is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules    []Rule
	messages MessageTable
}

// New builds a classifier with the default rule table.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		rules:    DefaultRules(),
		messages: DefaultMessages(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// WithMessageTable overrides default messages key by key.
func WithMessageTable(table MessageTable) Option {
	return func(c *Classifier) {
		c.messages = c.messages.merge(table)
	}
}

// WithRules places additional rules ahead of the default table so they win
// over the built-in foreign-error predicates.
func WithRules(rules ...Rule) Option {
	return func(c *Classifier) {
		extra := make([]Rule, 0, len(rules)+len(c.rules))
		for _, rule := range rules {
			if rule.Match != nil || rule.Kind != apierror.KindUnknown {
				extra = append(extra, rule)
			}
		}
		c.rules = append(extra, c.rules...)
	}
}

// Messages returns the message table in use.
func (c *Classifier) Messages() MessageTable {
	return c.messages
}

// Classify maps err to a response.
func (c *Classifier) Classify(err error) Result {
	if err == nil {
		return c.Fallback(nil)
	}

	if ae := categorised(err); ae != nil {
		if ae.Kind == apierror.KindApplication {
			return c.application(err, ae)
		}
		for _, rule := range c.rules {
			if rule.Kind == ae.Kind {
				return c.fromRule(rule, err)
			}
		}
	}

	for _, rule := range c.rules {
		if rule.Match != nil && rule.Match(err) {
			return c.fromRule(rule, err)
		}
	}

	if apierror.IsExposed(err) {
		return c.exposed(err)
	}

	res := c.Fallback(err)
	res.Code = resolveCode(err, CodeInternal)
	return res
}

// Fallback returns the catch-all classification without consulting the rule
// table or any code carried by err. Failures inside the response pipeline
// itself use it directly.
func (c *Classifier) Fallback(err error) Result {
	msg := c.safeMessage(err)
	return Result{
		Status:     http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    msg,
		Errors:     []string{msg},
		LogAsError: true,
		Category:   "unexpected",
	}
}

func (c *Classifier) fromRule(rule Rule, err error) Result {
	status := rule.Status
	if rule.StatusFrom != nil {
		status = rule.StatusFrom(err)
	}
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}

	fallbackCode := rule.Code
	if rule.CodeFrom != nil {
		fallbackCode = rule.CodeFrom(status)
	}

	summary := c.messages.lookup(rule.MessageKey)

	var details []string
	if rule.Details != nil {
		details = rule.Details(err)
	}
	if len(details) == 0 {
		details = publicDetails(err, summary)
	}

	return Result{
		Status:     status,
		Code:       resolveCode(err, fallbackCode),
		Message:    summary,
		Errors:     details,
		LogAsError: rule.LogAsError,
		Category:   rule.Name,
	}
}

func (c *Classifier) application(err error, ae *apierror.Error) Result {
	status := ae.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := ae.Message
	if msg == "" {
		msg = c.messages.lookup(MessageApplication)
	}
	details := ae.Details
	if len(details) == 0 {
		details = []string{msg}
	}
	return Result{
		Status:     status,
		Code:       resolveCode(err, CodeInternal),
		Message:    msg,
		Errors:     append([]string(nil), details...),
		LogAsError: true,
		Category:   apierror.KindApplication.String(),
	}
}

func (c *Classifier) exposed(err error) Result {
	var ae *apierror.Error
	errors.As(err, &ae)

	msg := ae.Message
	if msg == "" && ae.Err != nil {
		msg = ae.Err.Error()
	}
	if msg == "" {
		msg = c.messages.lookup(MessageBadRequest)
	}
	return Result{
		Status:   http.StatusBadRequest,
		Code:     resolveCode(err, "BAD_REQUEST"),
		Message:  msg,
		Errors:   []string{msg},
		Category: "exposed",
	}
}

// categorised returns the first *apierror.Error in err's chain that has a
// kind, looking past uncategorised wrappers such as the one Expose adds.
func categorised(err error) *apierror.Error {
	for err != nil {
		var ae *apierror.Error
		if !errors.As(err, &ae) {
			return nil
		}
		if ae.Kind != apierror.KindUnknown {
			return ae
		}
		err = ae.Err
	}
	return nil
}

// resolveCode applies the code precedence: the explicit code of the first
// *apierror.Error, then any Coder annotation in the chain, then fallback,
// then CodeInternal.
func resolveCode(err error, fallback string) string {
	var ae *apierror.Error
	if errors.As(err, &ae) && ae.Code != "" {
		return ae.Code
	}
	if code := apierror.CodeOf(err); code != "" {
		return code
	}
	if fallback != "" {
		return fallback
	}
	return CodeInternal
}

func publicDetails(err error, summary string) []string {
	ae := categorised(err)
	if ae == nil {
		errors.As(err, &ae)
	}
	if ae != nil {
		if len(ae.Details) > 0 {
			return append([]string(nil), ae.Details...)
		}
		if ae.Message != "" {
			return []string{ae.Message}
		}
	}
	return []string{summary}
}
