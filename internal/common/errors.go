package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried by AppError
const (
	CodeInvalidInput = "INVALID_INPUT"
	CodeNotFound     = "NOT_FOUND"
	CodeDatabase     = "DATABASE_ERROR"
	CodeDuplicate    = "DUPLICATE_INVOICE"
	CodeExtraction   = "EXTRACTION_ERROR"
	CodeOCR          = "OCR_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")

	// ErrDuplicateInvoice is returned by the approval transaction when an
	// invoice with the same (supplier, invoice number) already exists and the
	// caller did not confirm the replace. Recoverable, user-directed.
	ErrDuplicateInvoice = errors.New("duplicate invoice")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsNotFound reports whether err is the not-found sentinel, directly or
// wrapped.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
