// Package notify delivers committed booking lifecycle events to the outside
// world. Delivery is best effort; callers log failures and move on.
package notify

import (
	"context"
	"errors"

	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, event model.LifecycleEvent) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, event model.LifecycleEvent) error

func (f DispatcherFunc) Dispatch(ctx context.Context, event model.LifecycleEvent) error {
	return f(ctx, event)
}

// LogDispatcher writes events to the structured log only.
type LogDispatcher struct {
	log *logging.Logger
}

func NewLogDispatcher(log *logging.Logger) *LogDispatcher {
	if log == nil {
		log = logging.Default()
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, ev model.LifecycleEvent) error {
	d.log.InfoContext(ctx, "booking lifecycle event",
		"event", string(ev.Type),
		"booking_id", ev.BookingID.String(),
		"consultant_id", ev.ConsultantID.String(),
		"client_id", ev.ClientID.String(),
		"status", string(ev.Status),
	)
	return nil
}

// Multi fans an event out to every dispatcher and joins their errors.
type Multi []Dispatcher

func (m Multi) Dispatch(ctx context.Context, ev model.LifecycleEvent) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
