package models

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

const (
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeIntegrity        = "INTEGRITY_ERROR"
	CodeInternal         = "INTERNAL_ERROR"
)

// AppError is the error type every module returns to its handlers.
// Field is set for validation and integrity failures that belong to a form field.
type AppError struct {
	Code    string
	Message string
	Field   string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewNotFoundError(resource string, id interface{}) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s %v not found", resource, id),
	}
}

func NewValidationError(field, message string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Field:   field,
		Message: message,
	}
}

func NewPermissionDeniedError(message string) *AppError {
	return &AppError{
		Code:    CodePermissionDenied,
		Message: message,
	}
}

func NewIntegrityError(field, message string, err error) *AppError {
	return &AppError{
		Code:    CodeIntegrity,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

func NewInternalError(err error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// CodeOf reports the AppError code carried by err. Missing GORM rows count as
// NOT_FOUND and duplicate keys as INTEGRITY_ERROR.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return CodeNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return CodeIntegrity
	}
	return CodeInternal
}

func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

func IsPermissionDenied(err error) bool {
	return CodeOf(err) == CodePermissionDenied
}
