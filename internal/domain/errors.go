package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable failure code
type ErrorCode string

const (
	CodeCapacityExceeded        ErrorCode = "CAPACITY_EXCEEDED"
	CodeRefundExpired           ErrorCode = "REFUND_EXPIRED"
	CodeRefundForbidden         ErrorCode = "REFUND_FORBIDDEN"
	CodeEventHasActivePurchases ErrorCode = "EVENT_HAS_ACTIVE_PURCHASES"
	CodeTicketHasPurchases      ErrorCode = "TICKET_HAS_PURCHASES"
	CodeMixedEventPurchase      ErrorCode = "MIXED_EVENT_PURCHASE"
	CodeSalesClosed             ErrorCode = "SALES_CLOSED"
	CodeEntityNotFound          ErrorCode = "ENTITY_NOT_FOUND"
	CodeForbidden               ErrorCode = "FORBIDDEN"
	CodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	CodeInvalidStatusTransition ErrorCode = "INVALID_STATUS_TRANSITION"
)

// Error is a tagged domain failure. Two Errors match under errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e carrying an extra detail
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: details, Err: e.Err}
}

// Sentinels for errors.Is
var (
	ErrCapacityExceeded        = &Error{Code: CodeCapacityExceeded, Message: "not enough tickets left"}
	ErrRefundExpired           = &Error{Code: CodeRefundExpired, Message: "refund deadline has passed"}
	ErrRefundForbidden         = &Error{Code: CodeRefundForbidden, Message: "refund is not available for this ticket"}
	ErrEventHasActivePurchases = &Error{Code: CodeEventHasActivePurchases, Message: "event has active purchases"}
	ErrTicketHasPurchases      = &Error{Code: CodeTicketHasPurchases, Message: "ticket has purchases"}
	ErrMixedEventPurchase      = &Error{Code: CodeMixedEventPurchase, Message: "all tickets must belong to the same event"}
	ErrSalesClosed             = &Error{Code: CodeSalesClosed, Message: "ticket sales are closed"}
	ErrEntityNotFound          = &Error{Code: CodeEntityNotFound, Message: "entity not found"}
	ErrForbidden               = &Error{Code: CodeForbidden, Message: "operation not permitted"}
	ErrValidation              = &Error{Code: CodeValidationFailed, Message: "validation failed"}
	ErrInvalidStatusTransition = &Error{Code: CodeInvalidStatusTransition, Message: "invalid status transition"}
)

// NotFound builds an ENTITY_NOT_FOUND error naming the entity
func NotFound(entity string, id int64) *Error {
	return &Error{
		Code:    CodeEntityNotFound,
		Message: fmt.Sprintf("%s not found", entity),
		Details: map[string]any{"entity": entity, "id": id},
	}
}

// Validation builds a VALIDATION_FAILED error
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidationFailed, Message: fmt.Sprintf(format, args...)}
}

// Forbidden builds a FORBIDDEN error
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// CodeOf returns the code of a domain error in err's chain, or "" for other errors
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
