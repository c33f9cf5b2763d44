// Package errors provides the typed error taxonomy shared by the wallet
// connector, the contract gateway, the indexer client and the controller.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode identifies a class of failure.
type ErrorCode string

const (
	CodeNetworkMismatch    ErrorCode = "NETWORK_MISMATCH"
	CodeUserRejected       ErrorCode = "USER_REJECTED"
	CodeContractCallFailed ErrorCode = "CONTRACT_CALL_FAILED"
	CodeIndexerFetchFailed ErrorCode = "INDEXER_FETCH_FAILED"
	CodeInvalidInput       ErrorCode = "INVALID_INPUT"
	CodeInvalidConfig      ErrorCode = "INVALID_CONFIG"
	CodeNotConnected       ErrorCode = "NOT_CONNECTED"
	CodeBusy               ErrorCode = "BUSY"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeInternal           ErrorCode = "INTERNAL"
)

// ServiceError is a coded error with optional details and a wrapped cause.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	Details    map[string]interface{}
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches any ServiceError carrying the same code, so callers can test
// errors.Is(err, errors.ErrNetworkMismatch) regardless of message or details.
func (e *ServiceError) Is(target error) bool {
	var t *ServiceError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetails returns a copy of the error with an extra detail attached.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	cp := *e
	cp.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Sentinels for errors.Is checks.
var (
	ErrNetworkMismatch    = &ServiceError{Code: CodeNetworkMismatch}
	ErrUserRejected       = &ServiceError{Code: CodeUserRejected}
	ErrContractCallFailed = &ServiceError{Code: CodeContractCallFailed}
	ErrIndexerFetchFailed = &ServiceError{Code: CodeIndexerFetchFailed}
	ErrInvalidInput       = &ServiceError{Code: CodeInvalidInput}
	ErrInvalidConfig      = &ServiceError{Code: CodeInvalidConfig}
	ErrNotConnected       = &ServiceError{Code: CodeNotConnected}
	ErrBusy               = &ServiceError{Code: CodeBusy}
	ErrRateLimited        = &ServiceError{Code: CodeRateLimited}
)

// =============================================================================
// Constructors
// =============================================================================

// NetworkMismatch reports that the wallet is connected to the wrong chain.
func NetworkMismatch(expected, actual int64) *ServiceError {
	return &ServiceError{
		Code:       CodeNetworkMismatch,
		Message:    fmt.Sprintf("connected to chain %d, expected %d", actual, expected),
		HTTPStatus: http.StatusConflict,
		Details: map[string]interface{}{
			"expected_chain_id": expected,
			"actual_chain_id":   actual,
		},
	}
}

// UserRejected reports that the wallet prompt was dismissed.
func UserRejected(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeUserRejected,
		Message:    "wallet authorization rejected",
		HTTPStatus: http.StatusForbidden,
		Err:        err,
	}
}

// ContractCallFailed reports a failed read, a rejected or reverted write.
func ContractCallFailed(method string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeContractCallFailed,
		Message:    fmt.Sprintf("contract call %s failed", method),
		HTTPStatus: http.StatusBadGateway,
		Details:    map[string]interface{}{"method": method},
		Err:        err,
	}
}

// IndexerFetchFailed reports a failed indexer query.
func IndexerFetchFailed(err error) *ServiceError {
	return &ServiceError{
		Code:       CodeIndexerFetchFailed,
		Message:    "indexer query failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// InvalidInput reports a rejected user value.
func InvalidInput(field, reason string) *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidInput,
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]interface{}{"field": field},
	}
}

// InvalidConfig reports a missing or malformed configuration value.
func InvalidConfig(key, reason string) *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidConfig,
		Message:    fmt.Sprintf("config %s: %s", key, reason),
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]interface{}{"key": key},
	}
}

// NotConnected reports an operation attempted without a wallet connection.
func NotConnected() *ServiceError {
	return &ServiceError{
		Code:       CodeNotConnected,
		Message:    "wallet not connected",
		HTTPStatus: http.StatusPreconditionFailed,
	}
}

// Busy reports that a write is already pending.
func Busy(operation string) *ServiceError {
	return &ServiceError{
		Code:       CodeBusy,
		Message:    fmt.Sprintf("%s refused: a transaction is pending", operation),
		HTTPStatus: http.StatusConflict,
	}
}

// RateLimited reports a client over its request budget.
func RateLimited(requestsPerSecond float64, retryAfter string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimited,
		Message:    "too many requests",
		HTTPStatus: http.StatusTooManyRequests,
		Details: map[string]interface{}{
			"limit_per_second": requestsPerSecond,
			"retry_after":      retryAfter,
		},
	}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// GetServiceError extracts the first ServiceError in err's chain.
func GetServiceError(err error) *ServiceError {
	var se *ServiceError
	if stderrors.As(err, &se) {
		return se
	}
	return nil
}

// CodeOf returns the code of err, or CodeInternal when err carries none.
func CodeOf(err error) ErrorCode {
	if se := GetServiceError(err); se != nil {
		return se.Code
	}
	return CodeInternal
}
