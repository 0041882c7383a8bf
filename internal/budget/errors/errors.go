package errors

import (
	"errors"
	"fmt"
)

// Stable error codes reported to clients in per-event failure records.
const (
	CodeBudgetExists            = "BUDGET_EXISTS"
	CodeBudgetNotExists         = "BUDGET_NOT_EXISTS"
	CodeCategoryExists          = "CATEGORY_EXISTS"
	CodeCategoryNotExists       = "CATEGORY_NOT_EXISTS"
	CodeNotCategoryOfBudget     = "NOT_CATEGORY_OF_BUDGET"
	CodeExpenseExists           = "EXPENSE_EXISTS"
	CodeExpenseNotExists        = "EXPENSE_NOT_EXISTS"
	CodeParticipantExists       = "PARTICIPANT_EXISTS"
	CodeNotParticipant          = "NOT_PARTICIPANT"
	CodeParticipantLimitReached = "PARTICIPANT_LIMIT_REACHED"
	CodeNotCreator              = "NOT_CREATOR"
	CodeVersionMismatch         = "VERSION_MISMATCH"
	CodeUnsupportedEvent        = "UNSUPPORTED_EVENT"
	CodeUserExists              = "USER_EXISTS"
	CodeUserNotExists           = "USER_NOT_EXISTS"
	CodeInternal                = "INTERNAL_ERROR"
)

// ValidationError rejects malformed input before any authorization or side
// effect.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func NewFieldValidationError(field, msg string) error {
	return &ValidationError{Msg: fmt.Sprintf("%s: %s", field, msg)}
}

// ValidationErrors collects every problem found in one client event so the
// failure record can report all of them at once.
type ValidationErrors struct {
	Errors []error
}

func (ve *ValidationErrors) Error() string {
	msgs := make([]string, len(ve.Errors))
	for i, err := range ve.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed: %v", msgs)
}

func (ve *ValidationErrors) Add(err error) {
	ve.Errors = append(ve.Errors, err)
}

func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Errors) > 0
}

// AuthorizationError is a policy denial: the actor may not perform the
// mutation.
type AuthorizationError struct {
	Code string
}

func (e *AuthorizationError) Error() string {
	return e.Code
}

func NewAuthorizationError(code string) error {
	return &AuthorizationError{Code: code}
}

// ConflictError reports an already existing entity or a lost optimistic
// concurrency race (VERSION_MISMATCH).
type ConflictError struct {
	Code string
}

func (e *ConflictError) Error() string {
	return e.Code
}

func NewConflictError(code string) error {
	return &ConflictError{Code: code}
}

// NotFoundError reports an absent referenced aggregate.
type NotFoundError struct {
	Code string
}

func (e *NotFoundError) Error() string {
	return e.Code
}

func NewNotFoundError(code string) error {
	return &NotFoundError{Code: code}
}

// InternalError wraps anything outside the known taxonomy. Its cause is
// logged but never leaked to callers.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

func NewInternalError(err error) error {
	return &InternalError{Err: err}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	var ves *ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}

func IsAuthorizationError(err error) bool {
	var ae *AuthorizationError
	return errors.As(err, &ae)
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsNotFoundError(err error) bool {
	var ne *NotFoundError
	return errors.As(err, &ne)
}

// Codes flattens an error into the list of codes a failure record carries.
// Unknown errors collapse to a single INTERNAL_ERROR so internals never leak.
func Codes(err error) []string {
	var ves *ValidationErrors
	if errors.As(err, &ves) {
		codes := make([]string, 0, len(ves.Errors))
		for _, e := range ves.Errors {
			codes = append(codes, e.Error())
		}
		return codes
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return []string{ve.Msg}
	}
	var ae *AuthorizationError
	if errors.As(err, &ae) {
		return []string{ae.Code}
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return []string{ce.Code}
	}
	var ne *NotFoundError
	if errors.As(err, &ne) {
		return []string{ne.Code}
	}
	return []string{CodeInternal}
}
