package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeMalformedInput covers unreadable files and unparsable directives.
	// It aborts the whole parse.
	ErrTypeMalformedInput ErrorType = "MALFORMED_INPUT"
	// ErrTypeEmptySelection is advisory: a pattern matched zero columns.
	ErrTypeEmptySelection ErrorType = "EMPTY_SELECTION"
	// ErrTypeFormulaOperand fails a single evaluation call.
	ErrTypeFormulaOperand ErrorType = "FORMULA_OPERAND"
	ErrTypeFormulaSyntax  ErrorType = "FORMULA_SYNTAX"
	ErrTypeNotFound       ErrorType = "NOT_FOUND"
	ErrTypeValidation     ErrorType = "VALIDATION"
	ErrTypeStorage        ErrorType = "STORAGE"
	ErrTypeConfig         ErrorType = "CONFIG"
)

// AppError represents an application-specific error
type AppError struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap allows errors.Is and errors.As to work with AppError
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// IsType reports whether err wraps an AppError of the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// TypeOf returns the AppError type carried by err, or "" if there is none
func TypeOf(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ""
}

// NewMalformedInputError creates an input parsing error
func NewMalformedInputError(message string, cause error) *AppError {
	return NewAppError(ErrTypeMalformedInput, message, cause)
}

// NewEmptySelectionError creates the advisory raised when a pattern selects nothing
func NewEmptySelectionError(field, pattern string) *AppError {
	return NewAppError(ErrTypeEmptySelection, fmt.Sprintf("no %s column was selected", field), nil).
		WithContext("field", field).
		WithContext("pattern", pattern)
}

// NewFormulaOperandError creates an operand precondition error
func NewFormulaOperandError(message string) *AppError {
	return NewAppError(ErrTypeFormulaOperand, message, nil)
}

// NewFormulaSyntaxError creates a formula grammar error
func NewFormulaSyntaxError(message string, pos int) *AppError {
	return NewAppError(ErrTypeFormulaSyntax, message, nil).WithContext("position", pos)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrTypeNotFound, fmt.Sprintf("%s not found", resource), nil)
}

// NewAppValidationError creates a validation error for AppError type
func NewAppValidationError(message string) *AppError {
	return NewAppError(ErrTypeValidation, message, nil)
}

// NewStorageError creates a storage-related error
func NewStorageError(message string, cause error) *AppError {
	return NewAppError(ErrTypeStorage, message, cause)
}

// NewConfigError creates a configuration error
func NewConfigError(message string, cause error) *AppError {
	return NewAppError(ErrTypeConfig, message, cause)
}
