package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes exposed to API clients.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeAssignment        = "ASSIGNMENT_FAILED"
	CodeConflict          = "CONFLICT"
	CodeInternal          = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError reports caller-fixable input problems. Every message is
// kept in Details["errors"].
func NewValidationError(messages ...string) error {
	return NewDomainError(CodeValidation, "Validation failed: "+strings.Join(messages, ", "),
		http.StatusBadRequest, map[string]any{"errors": messages})
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewInvalidTransition names both ends of a rejected status change.
func NewInvalidTransition(from, to string) error {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("Invalid status transition from %s to %s", from, to),
		http.StatusConflict, map[string]any{"from": from, "to": to})
}

func NewAssignmentError(messages ...string) error {
	return NewDomainError(CodeAssignment, "Assignment failed: "+strings.Join(messages, ", "),
		http.StatusUnprocessableEntity, map[string]any{"errors": messages})
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func IsValidation(err error) bool        { return HasCode(err, CodeValidation) }
func IsNotFound(err error) bool          { return HasCode(err, CodeNotFound) }
func IsInvalidTransition(err error) bool { return HasCode(err, CodeInvalidTransition) }
func IsAssignment(err error) bool        { return HasCode(err, CodeAssignment) }
func IsConflict(err error) bool          { return HasCode(err, CodeConflict) }
