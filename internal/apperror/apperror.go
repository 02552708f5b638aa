// Package apperror carries the ledger's business errors with a stable code,
// an HTTP status and optional structured details.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal   = "INTERNAL_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeForbidden  = "FORBIDDEN"

	CodeNoOpenShift       = "NO_OPEN_SHIFT"
	CodeShiftAlreadyOpen  = "SHIFT_ALREADY_OPEN"
	CodeSplitMismatch     = "SPLIT_MISMATCH"
	CodeOverReturn        = "OVER_RETURN"
	CodeAlreadyCancelled  = "ALREADY_CANCELLED"
	CodeHeldOrdersPending = "HELD_ORDERS_PENDING"
	CodeReadOnlyTerminal  = "READ_ONLY_TERMINAL"
	CodeInvalidState      = "INVALID_STATE"
)

type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on Code so that a detailed copy still satisfies errors.Is
// against the package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e with key set, leaving e untouched so that
// sentinels can be decorated safely.
func (e *AppError) WithDetail(key string, value any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

func New(code string, status int, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

var (
	ErrNoOpenShift       = New(CodeNoOpenShift, http.StatusConflict, "no open shift for this cashier")
	ErrShiftAlreadyOpen  = New(CodeShiftAlreadyOpen, http.StatusConflict, "cashier already has an open shift")
	ErrSplitMismatch     = New(CodeSplitMismatch, http.StatusUnprocessableEntity, "split payments do not add up to the sale total")
	ErrOverReturn        = New(CodeOverReturn, http.StatusUnprocessableEntity, "return quantity exceeds remaining quantity")
	ErrAlreadyCancelled  = New(CodeAlreadyCancelled, http.StatusConflict, "sale is already cancelled")
	ErrHeldOrdersPending = New(CodeHeldOrdersPending, http.StatusConflict, "held orders must be resumed or discarded before closing the shift")
	ErrReadOnlyTerminal  = New(CodeReadOnlyTerminal, http.StatusForbidden, "terminal is in use by another cashier's open shift")
	ErrInvalidState      = New(CodeInvalidState, http.StatusConflict, "operation not allowed in the current state")
)

func NewValidation(message string) *AppError {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

func NewForbidden(message string) *AppError {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func NewConflict(message string) *AppError {
	return New(CodeConflict, http.StatusConflict, message)
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// As extracts an *AppError from err. Anything else is reported as internal.
func As(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternal(err)
}
