package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/consultation-booking/internal/apperror"
)

const slotTakenMessage = "this time is no longer available, please pick another"

// toStatus maps a scheduling error onto a gRPC status with a message the
// caller can show as is.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var window *apperror.WindowError

	switch {
	case errors.Is(err, apperror.ErrSlotAlreadyBooked):
		return status.Error(codes.AlreadyExists, slotTakenMessage)
	case errors.Is(err, apperror.ErrSlotOverlap):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.As(err, &window):
		return status.Errorf(codes.FailedPrecondition,
			"bookings can only be cancelled or rescheduled more than %s before the start", humanDuration(window.Buffer))
	case errors.Is(err, apperror.ErrCancellationWindowExpired),
		errors.Is(err, apperror.ErrInvalidTransition),
		errors.Is(err, apperror.ErrTooEarly),
		errors.Is(err, apperror.ErrSlotInPast):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, apperror.ErrInvalidRange),
		errors.Is(err, apperror.ErrInvalidArgument),
		errors.Is(err, apperror.ErrSlotMismatch):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, apperror.ErrSlotNotFound),
		errors.Is(err, apperror.ErrBookingNotFound),
		errors.Is(err, apperror.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperror.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, apperror.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, apperror.ErrStoreUnavailable):
		return status.Error(codes.Unavailable, "storage is temporarily unavailable, please retry")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

// humanDuration prints whole hours as "24 hours", anything else as time.Duration does.
func humanDuration(d time.Duration) string {
	if d > 0 && d%time.Hour == 0 {
		if h := int(d / time.Hour); h != 1 {
			return fmt.Sprintf("%d hours", h)
		}
		return "1 hour"
	}
	return d.String()
}
