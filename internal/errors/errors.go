// Package errors provides error code definitions for Go-Dart boundary bridging.
package errors

import "fmt"

// ErrorCode represents a unique error code that can be bridged to Dart.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrDatabase       ErrorCode = "DATABASE_ERROR"
	ErrStoreCorrupted ErrorCode = "STORE_CORRUPTED"

	// Draft errors
	ErrDraftNotFound ErrorCode = "DRAFT_NOT_FOUND"
	ErrDraftInvalid  ErrorCode = "DRAFT_INVALID"

	// Queue errors
	ErrQueueItemNotFound ErrorCode = "QUEUE_ITEM_NOT_FOUND"
	ErrQueueItemInvalid  ErrorCode = "QUEUE_ITEM_INVALID"

	// Sync errors
	ErrSyncInProgress    ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncOffline       ErrorCode = "SYNC_OFFLINE"
	ErrSyncFailed        ErrorCode = "SYNC_FAILED"
	ErrSyncConflict      ErrorCode = "SYNC_CONFLICT"
	ErrSyncAuthFailed    ErrorCode = "SYNC_AUTH_FAILED"
	ErrSyncQuotaExceeded ErrorCode = "SYNC_QUOTA_EXCEEDED"
	ErrSyncTimeout       ErrorCode = "SYNC_TIMEOUT"

	// Media errors
	ErrMediaDecodeFailed ErrorCode = "MEDIA_DECODE_FAILED"
	ErrBlobUploadFailed  ErrorCode = "BLOB_UPLOAD_FAILED"
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"

	// Crypto errors
	ErrCryptoFailed ErrorCode = "CRYPTO_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the error code of an AppError, or ErrInternal for
// any other error.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}

// Retryable reports whether an error represents a transient dispatch
// failure worth retrying on a later pass. Auth and validation failures
// need operator action and are not retryable.
func Retryable(err error) bool {
	switch CodeOf(err) {
	case ErrSyncAuthFailed, ErrValidation, ErrInvalid:
		return false
	default:
		return true
	}
}
