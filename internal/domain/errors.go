package domain

import (
	"errors"
	"fmt"
)

// Code classifies application errors for transport mapping.
type Code string

const (
	CodeUnknown            Code = "UNKNOWN"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeInternal           Code = "INTERNAL"
)

// AppError carries a code alongside a human-readable message and an
// optional cause.
type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Constructors
func NewError(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func WrapError(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error {
	return NewError(CodeInvalidArgument, msg)
}

func NotFound(msg string) error {
	return NewError(CodeNotFound, msg)
}

func AlreadyExists(msg string) error {
	return NewError(CodeAlreadyExists, msg)
}

func Unauthenticated(msg string) error {
	return NewError(CodeUnauthenticated, msg)
}

func PermissionDenied(msg string) error {
	return NewError(CodePermissionDenied, msg)
}

func FailedPrecondition(msg string) error {
	return NewError(CodeFailedPrecondition, msg)
}

func Internal(msg string) error {
	return NewError(CodeInternal, msg)
}

// ErrCode extracts the code from err, or CodeUnknown for plain errors.
func ErrCode(err error) Code {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return CodeUnknown
}
