package tinypay

import (
	"errors"
	"fmt"
)

// EngineError represents an engine-specific failure with a stable code
type EngineError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Common error codes
const (
	// Config errors
	ErrCodeAlreadyInitialized = "already_initialized"
	ErrCodeNotInitialized     = "not_initialized"
	ErrCodeInvalidFeeRate     = "invalid_fee_rate"
	ErrCodeUnauthorized       = "unauthorized"

	// Asset errors
	ErrCodeAssetNotSupported = "asset_not_supported"
	ErrCodeValueMismatch     = "value_mismatch"
	ErrCodeInvalidAmount     = "invalid_amount"

	// Authorization errors
	ErrCodeInvalidOpt              = "invalid_opt"
	ErrCodeInvalidTail             = "invalid_tail"
	ErrCodeNoPrecommit             = "no_precommit"
	ErrCodePrecommitMismatch       = "precommit_mismatch"
	ErrCodePaymentLimitExceeded    = "payment_limit_exceeded"
	ErrCodeTailUpdateLimitExceeded = "tail_update_limit_exceeded"
	ErrCodePaymentAborted          = "payment_aborted"

	// Funds errors
	ErrCodeInsufficientBalance = "insufficient_balance"
	ErrCodeTransferFailed      = "transfer_failed"
	ErrCodeReentrantCall       = "reentrant_call"
)

// NewEngineError creates a new engine error
func NewEngineError(code, message string, details map[string]interface{}) *EngineError {
	return &EngineError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// IsCode reports whether err is an EngineError carrying the given code
func IsCode(err error, code string) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}
