package promotion

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Rejection kinds. A business-rule rejection is a *RejectionError whose Kind
// is one of these; match with errors.Is.
var (
	ErrInvalidCode           = errors.New("invalid promotion code")
	ErrInactiveOrExpired     = errors.New("promotion inactive or expired")
	ErrUsageLimitExceeded    = errors.New("promotion usage limit exceeded")
	ErrBelowMinimumPurchase  = errors.New("below minimum purchase")
	ErrConditionNotSatisfied = errors.New("promotion condition not satisfied")
	ErrMalformedCondition    = errors.New("malformed condition payload")
	ErrPromotionNotFound     = errors.New("promotion not found")
	ErrInvalidInput          = errors.New("invalid input")
	ErrCodeExists            = errors.New("promotion code already exists")
)

// UsageScope tells which cap an ErrUsageLimitExceeded rejection hit.
type UsageScope string

const (
	ScopeGlobal UsageScope = "global"
	ScopeUser   UsageScope = "user"
)

// RejectionError is a business-rule rejection with a user-facing message.
// Rejections are never retried.
type RejectionError struct {
	Kind    error
	Message string
	// Scope is set for ErrUsageLimitExceeded.
	Scope UsageScope
	// Condition is set for condition failures.
	Condition ConditionType
}

func (e *RejectionError) Error() string {
	return e.Message
}

func (e *RejectionError) Unwrap() error {
	return e.Kind
}

// KindName returns the machine-checkable name of the rejection kind.
func (e *RejectionError) KindName() string {
	return KindName(e.Kind)
}

// KindName maps a rejection sentinel to its wire name. Unknown errors map to
// "internal".
func KindName(kind error) string {
	switch {
	case errors.Is(kind, ErrInvalidCode):
		return "invalid_code"
	case errors.Is(kind, ErrInactiveOrExpired):
		return "inactive_or_expired"
	case errors.Is(kind, ErrUsageLimitExceeded):
		return "usage_limit_exceeded"
	case errors.Is(kind, ErrBelowMinimumPurchase):
		return "below_minimum_purchase"
	case errors.Is(kind, ErrConditionNotSatisfied):
		return "condition_not_satisfied"
	case errors.Is(kind, ErrMalformedCondition):
		return "malformed_condition_payload"
	case errors.Is(kind, ErrPromotionNotFound):
		return "promotion_not_found"
	case errors.Is(kind, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(kind, ErrCodeExists):
		return "code_exists"
	default:
		return "internal"
	}
}

// IsRejection reports whether err is a business-rule rejection rather than
// an infrastructure failure.
func IsRejection(err error) bool {
	var rej *RejectionError
	return errors.As(err, &rej)
}

func reject(kind error, format string, args ...any) *RejectionError {
	return &RejectionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func conditionFailed(t ConditionType, msg string) *RejectionError {
	return &RejectionError{Kind: ErrConditionNotSatisfied, Message: msg, Condition: t}
}

func invalidInput(format string, args ...any) *RejectionError {
	return reject(ErrInvalidInput, format, args...)
}
