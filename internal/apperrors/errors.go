package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrConflict indicates the operation conflicts with the current state of the resource.
var ErrConflict = errors.New("resource state conflict")

// ErrForbidden indicates the caller is not allowed to perform the operation.
var ErrForbidden = errors.New("operation forbidden")

// ErrInternal indicates an unexpected internal failure.
var ErrInternal = errors.New("internal error")

// ErrConcurrencyConflict indicates an optimistic concurrency failure on an
// aggregate's expected sequence number. Callers should re-read and retry.
var ErrConcurrencyConflict = errors.New("concurrency conflict: expected sequence number already taken")

// ErrUnbalancedTransaction indicates debit and credit entry sums differ.
var ErrUnbalancedTransaction = errors.New("transaction entries do not balance")

// ErrPeriodNotOpen indicates an attempt to post into a closed or locked period.
var ErrPeriodNotOpen = errors.New("period is not open for posting")

// ErrOpenTransactionsRemain indicates a period close was attempted while draft
// transactions still reference the period.
var ErrOpenTransactionsRemain = errors.New("draft transactions remain in period")

// ErrProjection indicates a reducer failed while applying an event; the
// affected aggregate's catch-up halts until an operator replays it.
var ErrProjection = errors.New("projection error")

// AppError carries a status code alongside a message and wrapped cause.
type AppError struct {
	Code    int
	Message string
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

// NewAppError creates an AppError wrapping an underlying cause.
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// NewNotFoundError creates an AppError that matches errors.Is(_, ErrNotFound).
func NewNotFoundError(message string) *AppError {
	return &AppError{Code: 404, Message: message, Err: ErrNotFound}
}
