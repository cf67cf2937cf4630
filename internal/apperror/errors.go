// Package apperror defines the error taxonomy shared by the scheduling core.
//
// Callers compare with errors.Is against the sentinels; typed errors carry the
// extra context the boundary needs for its messages and unwrap to a sentinel.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRange              = errors.New("invalid range")
	ErrSlotNotFound              = errors.New("slot not found")
	ErrSlotAlreadyBooked         = errors.New("slot already booked")
	ErrBookingNotFound           = errors.New("booking not found")
	ErrInvalidTransition         = errors.New("invalid booking status transition")
	ErrForbidden                 = errors.New("forbidden")
	ErrCancellationWindowExpired = errors.New("cancellation window expired")
	ErrTooEarly                  = errors.New("too early")
	ErrStoreUnavailable          = errors.New("store unavailable")

	ErrSlotOverlap     = errors.New("slot overlaps an existing slot")
	ErrSlotInPast      = errors.New("slot start is not in the future")
	ErrSlotMismatch    = errors.New("slot belongs to another consultant")
	ErrRuleNotFound    = errors.New("availability rule not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// TransitionError reports an operation attempted from a status that does not allow it.
type TransitionError struct {
	Op   string
	From string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot %s a %s booking", ErrInvalidTransition, e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// InvalidTransition builds a TransitionError.
func InvalidTransition(op, from string) error {
	return &TransitionError{Op: op, From: from}
}

// WindowError is returned when a client acts inside the cancellation buffer.
type WindowError struct {
	Buffer time.Duration
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("%s: bookings can only be changed more than %s before the start", ErrCancellationWindowExpired, e.Buffer)
}

func (e *WindowError) Unwrap() error { return ErrCancellationWindowExpired }

// CancellationWindowExpired builds a WindowError.
func CancellationWindowExpired(buffer time.Duration) error {
	return &WindowError{Buffer: buffer}
}

// StoreUnavailable marks err as a persistence failure. The caller must treat the
// operation as not applied.
func StoreUnavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// Invalid wraps a field-level validation message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// Retryable reports whether the caller may retry the failed operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
