package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to an HTTP response.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // internal cause, never sent to the client
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Wrap attaches an internal cause to an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Err: err}
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrMissingCompany() *AppError {
	return New("AUTH_002", "Token carries no company scope", http.StatusForbidden)
}

// ---- Sync (SYNC) ----

func ErrSyncInProgress() *AppError {
	return New("SYNC_001", "Another sync batch is running for this company", http.StatusConflict)
}

func ErrBatchTooLarge(limit int) *AppError {
	return New("SYNC_002", fmt.Sprintf("Sync batch exceeds %d operations", limit), http.StatusBadRequest)
}

func ErrInvalidSyncTimestamp(err error) *AppError {
	return Wrap("SYNC_003", "lastSyncTimestamp must be an ISO-8601 timestamp", http.StatusBadRequest, err)
}

func ErrSyncTimeout(err error) *AppError {
	return Wrap("SYNC_004", "Sync batch deadline exceeded", http.StatusGatewayTimeout, err)
}

// ---- Events (EVT) ----

func ErrEventPublish(err error) *AppError {
	return Wrap("EVT_001", "Failed to publish payment event", http.StatusBadGateway, err)
}

func ErrInvalidPaymentStatus(status string) *AppError {
	return New("EVT_002", fmt.Sprintf("Unsupported payment status: %s", status), http.StatusBadRequest)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- Validation (VAL) ----

func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

func ErrBodyTooLarge(limit int64) *AppError {
	return New("VAL_003", fmt.Sprintf("Request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
}

func ErrNotFound(entity string) *AppError {
	return New("VAL_002", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

func ErrCacheError(err error) *AppError {
	return Wrap("SYS_002", "Cache unavailable", http.StatusServiceUnavailable, err)
}

func ErrEncryptionFailure(err error) *AppError {
	return Wrap("SYS_003", "Encryption service failure", http.StatusInternalServerError, err)
}

// InternalError wraps any unexpected error as SYS_000.
func InternalError(err error) *AppError {
	return Wrap("SYS_000", "Internal server error", http.StatusInternalServerError, err)
}
