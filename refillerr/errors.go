// Package refillerr defines the closed set of error codes the refill
// automation system can surface, and the *Error type every internal
// operation returns beside its success payload (a nil *Error means success)
// instead of the exception-driven control flow the
// underlying custody SDKs favor (§9 of the system design: "replace with a
// single result sum type carrying {code, data}").
package refillerr

import "net/http"

// Code is a member of the closed error-code set. Any condition that does not
// map to one of these is INTERNAL_ERROR — the sink for unclassified failure.
type Code string

const (
	// Admission pipeline (C4)
	CodeMissingFields                    Code = "MISSING_FIELDS"
	CodeBlockchainNotFound               Code = "BLOCKCHAIN_NOT_FOUND"
	CodeAssetNotFound                    Code = "ASSET_NOT_FOUND"
	CodeRefillInProgress                 Code = "REFILL_IN_PROGRESS"
	CodeCooldownPeriodActive             Code = "COOLDOWN_PERIOD_ACTIVE"
	CodeHotWalletAddressValidation       Code = "HOT_WALLET_ADDRESS_VALIDATION_ERROR"
	CodeSweepWalletMismatch              Code = "SWEEP_WALLET_MISMATCH"
	CodeNoSweepWalletConfigured          Code = "NO_SWEEP_WALLET_CONFIGURED"
	CodeNoProviderAvailable              Code = "NO_PROVIDER_AVAILABLE"
	CodeNoLiminalColdWalletConfigured    Code = "NO_LIMINAL_COLD_WALLET_CONFIGURED"
	CodeNoFireblocksColdWalletConfigured Code = "NO_FIREBLOCKS_COLD_WALLET_CONFIGURED"
	CodeUnsupportedProvider              Code = "UNSUPPORTED_PROVIDER"
	CodeInsufficientBalance              Code = "INSUFFICIENT_BALANCE"
	CodeInvalidWalletType                Code = "INVALID_WALLET_TYPE"
	CodeInvalidAmount                    Code = "INVALID_AMOUNT"
	CodeSufficientBalance                Code = "SUFFICIENT_BALANCE"
	CodeAboveTriggerThreshold            Code = "ABOVE_TRIGGER_THRESHOLD"
	CodeWillOverfillTarget               Code = "WILL_OVERFILL_TARGET"

	// Orchestrator (C5)
	CodeTransactionExists      Code = "TRANSACTION_EXISTS"
	CodeTransactionCreationErr Code = "TRANSACTION_CREATION_ERROR"
	CodeTransactionUpdateErr   Code = "TRANSACTION_UPDATE_ERROR"
	CodeRefillInitiationErr    Code = "REFILL_INITIATION_ERROR"

	// Monitor (C7)
	CodeStatusCheckErr Code = "STATUS_CHECK_ERROR"

	// Query surface (C8)
	CodeTransactionNotFound Code = "TRANSACTION_NOT_FOUND"

	// Provider registry (C2)
	CodeProviderNotAvailable Code = "PROVIDER_NOT_AVAILABLE"
	CodeUnknownProvider      Code = "UNKNOWN_PROVIDER"

	// Signed envelope (C3)
	CodeJWTLifetimeExceeded        Code = "JWT_LIFETIME_EXCEEDED"
	CodeTokenExpired               Code = "TOKEN_EXPIRED"
	CodeInvalidToken               Code = "INVALID_TOKEN"
	CodeMissingAuthorizationHeader Code = "MISSING_AUTHORIZATION_HEADER"
	CodeInvalidAuthorizationFormat Code = "INVALID_AUTHORIZATION_FORMAT"
	CodeMissingBearerToken         Code = "MISSING_BEARER_TOKEN"
	CodeRefillRequestIDMismatch    Code = "REFILL_REQUEST_ID_MISMATCH"
	CodeAuthConfigError            Code = "AUTH_CONFIG_ERROR"

	// HTTP surface
	CodeMissingParameter Code = "MISSING_PARAMETER"

	// Catch-all
	CodeInternalError Code = "INTERNAL_ERROR"
)

// httpStatus is the closed mapping from Code to HTTP status named in §6.1/§7:
// "HTTP status is a pure function of code."
var httpStatus = map[Code]int{
	CodeMissingFields:                    http.StatusBadRequest,
	CodeBlockchainNotFound:               http.StatusBadRequest,
	CodeAssetNotFound:                    http.StatusBadRequest,
	CodeRefillInProgress:                 http.StatusConflict,
	CodeCooldownPeriodActive:             http.StatusBadRequest,
	CodeHotWalletAddressValidation:       http.StatusBadRequest,
	CodeSweepWalletMismatch:              http.StatusBadRequest,
	CodeNoSweepWalletConfigured:          http.StatusBadRequest,
	CodeNoProviderAvailable:              http.StatusBadRequest,
	CodeNoLiminalColdWalletConfigured:    http.StatusBadRequest,
	CodeNoFireblocksColdWalletConfigured: http.StatusBadRequest,
	CodeUnsupportedProvider:              http.StatusBadRequest,
	CodeInsufficientBalance:              http.StatusBadRequest,
	CodeInvalidWalletType:                http.StatusBadRequest,
	CodeInvalidAmount:                    http.StatusBadRequest,
	CodeSufficientBalance:                http.StatusBadRequest,
	CodeAboveTriggerThreshold:            http.StatusBadRequest,
	CodeWillOverfillTarget:               http.StatusBadRequest,
	CodeTransactionExists:                http.StatusBadRequest,
	CodeTransactionCreationErr:           http.StatusInternalServerError,
	CodeTransactionUpdateErr:             http.StatusInternalServerError,
	CodeRefillInitiationErr:              http.StatusBadRequest,
	CodeStatusCheckErr:                   http.StatusInternalServerError,
	CodeTransactionNotFound:              http.StatusNotFound,
	CodeProviderNotAvailable:             http.StatusBadRequest,
	CodeUnknownProvider:                  http.StatusBadRequest,
	CodeJWTLifetimeExceeded:              http.StatusUnauthorized,
	CodeTokenExpired:                     http.StatusUnauthorized,
	CodeInvalidToken:                     http.StatusUnauthorized,
	CodeMissingAuthorizationHeader:       http.StatusUnauthorized,
	CodeInvalidAuthorizationFormat:       http.StatusUnauthorized,
	CodeMissingBearerToken:               http.StatusUnauthorized,
	CodeRefillRequestIDMismatch:          http.StatusBadRequest,
	CodeAuthConfigError:                  http.StatusInternalServerError,
	CodeMissingParameter:                 http.StatusBadRequest,
	CodeInternalError:                    http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code a Code maps to, defaulting to 500
// for any code this build doesn't recognize (should not happen with the
// closed set above, but keeps the mapping total).
func HTTPStatus(code Code) int {
	if status, ok := httpStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the failure half of a (payload, *Error) return: a code, a human-readable message, and
// optional structured data describing the specifics (e.g. the existing row
// on REFILL_IN_PROGRESS, the projected/target numbers on WILL_OVERFILL_TARGET).
type Error struct {
	Code    Code                   `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New builds an *Error with no data payload.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithData builds an *Error carrying structured data.
func WithData(code Code, message string, data map[string]interface{}) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// Internal wraps an unclassified failure as INTERNAL_ERROR, the sink named
// in §7 for exceptions with no closed-set mapping.
func Internal(err error) *Error {
	if err == nil {
		return New(CodeInternalError, "internal error")
	}
	return New(CodeInternalError, err.Error())
}
