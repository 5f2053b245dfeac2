package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors (VALIDATION_*)
	ErrorCodeValidationFailed           ErrorCode = "VALIDATION_FAILED"
	ErrorCodeValidationMissingField     ErrorCode = "VALIDATION_MISSING_FIELD"
	ErrorCodeValidationInvalidQuantity  ErrorCode = "VALIDATION_INVALID_QUANTITY"
	ErrorCodeValidationOrderLineMissing ErrorCode = "VALIDATION_ORDER_LINE_NOT_FOUND"
	ErrorCodeValidationMerchantAmbig    ErrorCode = "VALIDATION_MERCHANT_AMBIGUOUS"

	// State Errors (STATE_*) - integrity violations, never silently skipped
	ErrorCodeStateRefundNotApproved     ErrorCode = "STATE_REFUND_NOT_APPROVED"
	ErrorCodeStateRefundProcessed       ErrorCode = "STATE_REFUND_ALREADY_PROCESSED"
	ErrorCodeStateRefundTransition      ErrorCode = "STATE_REFUND_INVALID_TRANSITION"
	ErrorCodeStateAlreadySettled        ErrorCode = "STATE_ALREADY_SETTLED"
	ErrorCodeStateDuplicateDebitNote    ErrorCode = "STATE_DUPLICATE_DEBIT_NOTE"
	ErrorCodeStateSettlementAlreadyPaid ErrorCode = "STATE_SETTLEMENT_ALREADY_PAID"

	// Computation Errors (COMPUTATION_*)
	ErrorCodeComputationNegative   ErrorCode = "COMPUTATION_NEGATIVE_AMOUNT"
	ErrorCodeComputationDegenerate ErrorCode = "COMPUTATION_DEGENERATE_AMOUNT"

	// External Dependency Errors (EXTERNAL_*)
	ErrorCodeStorageUnavailable ErrorCode = "EXTERNAL_STORAGE_UNAVAILABLE"

	// Not Found Errors (NOT_FOUND_*)
	ErrorCodeRefundNotFound     ErrorCode = "NOT_FOUND_REFUND"
	ErrorCodeSettlementNotFound ErrorCode = "NOT_FOUND_SETTLEMENT"
	ErrorCodeOrderNotFound      ErrorCode = "NOT_FOUND_ORDER"
	ErrorCodeOrderLineNotFound  ErrorCode = "NOT_FOUND_ORDER_LINE"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on error code, so copies made by WithDetail still match their sentinel.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// WithDetail returns a copy of the error carrying an extra detail field.
// The receiver is never mutated.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Code: e.Code, Message: e.Message, Err: e.Err, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeValidationFailed,
		ErrorCodeValidationMissingField,
		ErrorCodeValidationInvalidQuantity,
		ErrorCodeValidationOrderLineMissing,
		ErrorCodeValidationMerchantAmbig:
		return true
	}
	return false
}

// IsStateError checks if an error is a ledger state/integrity violation
func IsStateError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeStateRefundNotApproved,
		ErrorCodeStateRefundProcessed,
		ErrorCodeStateRefundTransition,
		ErrorCodeStateAlreadySettled,
		ErrorCodeStateDuplicateDebitNote,
		ErrorCodeStateSettlementAlreadyPaid:
		return true
	}
	return false
}

// IsComputationError checks if an error came from a degenerate amount
func IsComputationError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeComputationNegative || code == ErrorCodeComputationDegenerate
}

// IsExternalDependencyError checks if the store was unavailable
func IsExternalDependencyError(err error) bool {
	return GetErrorCode(err) == ErrorCodeStorageUnavailable
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodeRefundNotFound,
		ErrorCodeSettlementNotFound,
		ErrorCodeOrderNotFound,
		ErrorCodeOrderLineNotFound:
		return true
	}
	return false
}

// IsRetryable reports whether a batch job failing with err can be re-run as-is.
func IsRetryable(err error) bool {
	return IsExternalDependencyError(err) || IsComputationError(err)
}

var (
	ErrValidationFailed       = NewDomainError(ErrorCodeValidationFailed, "validation failed")
	ErrValidationMissingField = NewDomainError(ErrorCodeValidationMissingField, "required field missing")
	ErrInvalidQuantity        = NewDomainError(ErrorCodeValidationInvalidQuantity, "invalid refund quantity")
	ErrOrderLineNotInOrder    = NewDomainError(ErrorCodeValidationOrderLineMissing, "order line does not belong to order")
	ErrMerchantAmbiguous      = NewDomainError(ErrorCodeValidationMerchantAmbig, "refund lines span several merchants")

	ErrRefundNotApproved      = NewDomainError(ErrorCodeStateRefundNotApproved, "refund must be approved before processing")
	ErrRefundAlreadyProcessed = NewDomainError(ErrorCodeStateRefundProcessed, "refund already processed")
	ErrRefundTransition       = NewDomainError(ErrorCodeStateRefundTransition, "invalid refund status transition")
	ErrAlreadySettled         = NewDomainError(ErrorCodeStateAlreadySettled, "order already settled for merchant")
	ErrDuplicateDebitNote     = NewDomainError(ErrorCodeStateDuplicateDebitNote, "debit note already issued for refund")
	ErrSettlementAlreadyPaid  = NewDomainError(ErrorCodeStateSettlementAlreadyPaid, "settlement already paid")

	ErrNegativeAmount   = NewDomainError(ErrorCodeComputationNegative, "amount must not be negative")
	ErrDegenerateAmount = NewDomainError(ErrorCodeComputationDegenerate, "degenerate amount")

	ErrStorageUnavailable = NewDomainError(ErrorCodeStorageUnavailable, "ledger storage unavailable")

	ErrRefundNotFound     = NewDomainError(ErrorCodeRefundNotFound, "refund not found")
	ErrSettlementNotFound = NewDomainError(ErrorCodeSettlementNotFound, "settlement not found")
	ErrOrderNotFound      = NewDomainError(ErrorCodeOrderNotFound, "order not found")
	ErrOrderLineNotFound  = NewDomainError(ErrorCodeOrderLineNotFound, "order line not found")
)
