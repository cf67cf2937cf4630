// Package booking applies booking state transitions. Slot exclusivity is
// delegated to the ledger; every transition runs in one store transaction and
// its lifecycle event is dispatched only after commit.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/clock"
	"github.com/Leganyst/consultation-booking/internal/ledger"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

const DefaultCancellationBuffer = 24 * time.Hour

// Dispatcher receives lifecycle events after the transition is committed.
type Dispatcher interface {
	Dispatch(ctx context.Context, event model.LifecycleEvent) error
}

type Options struct {
	// Clients may cancel or reschedule only while the slot starts more than
	// CancellationBuffer from now. Zero means DefaultCancellationBuffer.
	CancellationBuffer time.Duration
	Clock              clock.Clock
	Dispatcher         Dispatcher
	Logger             *logging.Logger
}

type Manager struct {
	store  repository.Store
	buffer time.Duration
	clock  clock.Clock
	events Dispatcher
	log    *logging.Logger
}

func NewManager(store repository.Store, opts Options) *Manager {
	m := &Manager{
		store:  store,
		buffer: opts.CancellationBuffer,
		clock:  opts.Clock,
		events: opts.Dispatcher,
		log:    opts.Logger,
	}
	if m.buffer <= 0 {
		m.buffer = DefaultCancellationBuffer
	}
	if m.clock == nil {
		m.clock = clock.System{}
	}
	if m.log == nil {
		m.log = logging.Default()
	}
	return m
}

// CancellationBuffer is the effective client buffer.
func (m *Manager) CancellationBuffer() time.Duration { return m.buffer }

type CreateInput struct {
	ClientID     uuid.UUID
	ConsultantID uuid.UUID // optional; when set it must own the slot
	SlotID       uuid.UUID
	Notes        string
}

// Create claims the slot and records a pending booking in one transaction.
// Nothing is persisted when the claim fails.
func (m *Manager) Create(ctx context.Context, in CreateInput) (*model.Booking, error) {
	var (
		result *model.Booking
		ev     model.LifecycleEvent
	)
	now := m.clock.Now()

	err := m.store.Transaction(ctx, func(tx repository.Store) error {
		l := ledger.New(tx.Slots())

		// 1. Слот существует, принадлежит консультанту и ещё не начался.
		slot, err := l.Get(ctx, in.SlotID)
		if err != nil {
			return err
		}
		if in.ConsultantID != uuid.Nil && slot.ConsultantID != in.ConsultantID {
			return apperror.ErrSlotMismatch
		}
		if slot.ConsultantID == in.ClientID {
			return fmt.Errorf("%w: consultants cannot book their own slots", apperror.ErrForbidden)
		}
		if !slot.StartsAt.After(now) {
			return apperror.ErrSlotInPast
		}

		// 2. Атомарный захват слота.
		b := &model.Booking{
			ID:           uuid.New(),
			ClientID:     in.ClientID,
			ConsultantID: slot.ConsultantID,
			SlotID:       slot.ID,
			Status:       model.BookingStatusPending,
			Notes:        in.Notes,
			CreatedAt:    now,
		}
		if err := l.Claim(ctx, slot.ID, b.ID); err != nil {
			return err
		}

		// 3. Бронирование и событие аудита.
		if err := tx.Bookings().Create(ctx, b); err != nil {
			return err
		}
		slot.Booked = true
		slot.BookingID = &b.ID
		b.Slot = slot

		result = b
		ev, err = m.record(ctx, tx, model.EventTypeBookingCreated, b, &in.ClientID, nil, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	m.dispatch(ctx, ev)
	return result, nil
}

// Confirm accepts a pending booking. Only the booking's consultant may confirm.
func (m *Manager) Confirm(ctx context.Context, bookingID, actorID uuid.UUID) (*model.Booking, error) {
	now := m.clock.Now()
	b, ev, err := m.transition(ctx, bookingID, func(tx repository.Store, b *model.Booking) (eventSpec, error) {
		if actorID != b.ConsultantID {
			return eventSpec{}, apperror.ErrForbidden
		}
		if !b.Status.CanTransitionTo(model.BookingStatusConfirmed) {
			return eventSpec{}, apperror.InvalidTransition("confirm", string(b.Status))
		}
		b.Status = model.BookingStatusConfirmed
		b.ConfirmedAt = &now
		return eventSpec{typ: model.EventTypeBookingConfirmed, actor: &actorID}, nil
	}, now)
	if err != nil {
		return nil, err
	}

	m.dispatch(ctx, ev)
	return b, nil
}

type CancelInput struct {
	BookingID uuid.UUID
	ActorID   uuid.UUID
	Reason    string
}

// Cancel moves a pending or confirmed booking to cancelled and releases its
// slot. The client must act more than the buffer before the start, the
// consultant any time before the end.
func (m *Manager) Cancel(ctx context.Context, in CancelInput) (*model.Booking, error) {
	now := m.clock.Now()
	b, ev, err := m.transition(ctx, in.BookingID, func(tx repository.Store, b *model.Booking) (eventSpec, error) {
		if !b.Participant(in.ActorID) {
			return eventSpec{}, apperror.ErrForbidden
		}
		if !b.Status.CanTransitionTo(model.BookingStatusCancelled) {
			return eventSpec{}, apperror.InvalidTransition("cancel", string(b.Status))
		}
		if err := m.checkCancelWindow(b, in.ActorID, now); err != nil {
			return eventSpec{}, err
		}
		if err := m.cancel(ctx, tx, b, in.ActorID, in.Reason, now); err != nil {
			return eventSpec{}, err
		}
		return eventSpec{typ: model.EventTypeBookingCancelled, actor: &in.ActorID}, nil
	}, now)
	if err != nil {
		return nil, err
	}

	m.dispatch(ctx, ev)
	return b, nil
}

func (m *Manager) checkCancelWindow(b *model.Booking, actorID uuid.UUID, now time.Time) error {
	if actorID == b.ConsultantID {
		if !now.Before(b.Slot.EndsAt) {
			return fmt.Errorf("%w: the session has already ended", apperror.ErrCancellationWindowExpired)
		}
		return nil
	}
	if b.Slot.StartsAt.Sub(now) <= m.buffer {
		return apperror.CancellationWindowExpired(m.buffer)
	}
	return nil
}

// cancel releases the slot and marks b cancelled. The caller persists b.
func (m *Manager) cancel(
	ctx context.Context,
	tx repository.Store,
	b *model.Booking,
	actorID uuid.UUID,
	reason string,
	now time.Time,
) error {
	if err := ledger.New(tx.Slots()).Release(ctx, b.SlotID, b.ID, now); err != nil {
		return err
	}
	b.Status = model.BookingStatusCancelled
	b.CancelledAt = &now
	b.CancelledBy = &actorID
	b.CancelReason = reason
	return nil
}

// Complete closes a confirmed booking once its slot has ended.
func (m *Manager) Complete(ctx context.Context, bookingID uuid.UUID) (*model.Booking, error) {
	now := m.clock.Now()
	b, ev, err := m.transition(ctx, bookingID, func(_ repository.Store, b *model.Booking) (eventSpec, error) {
		if !b.Status.CanTransitionTo(model.BookingStatusCompleted) {
			return eventSpec{}, apperror.InvalidTransition("complete", string(b.Status))
		}
		if !now.After(b.Slot.EndsAt) {
			return eventSpec{}, fmt.Errorf("%w: the session ends at %s", apperror.ErrTooEarly, b.Slot.EndsAt.Format(time.RFC3339))
		}
		b.Status = model.BookingStatusCompleted
		b.CompletedAt = &now
		return eventSpec{typ: model.EventTypeBookingCompleted}, nil
	}, now)
	if err != nil {
		return nil, err
	}

	m.dispatch(ctx, ev)
	return b, nil
}

type RescheduleInput struct {
	BookingID uuid.UUID
	NewSlotID uuid.UUID
	ActorID   uuid.UUID
}

// Reschedule moves an active booking to another slot of the same consultant.
// The new slot is claimed before the old one is released; any failure leaves
// the booking and both slots as they were.
func (m *Manager) Reschedule(ctx context.Context, in RescheduleInput) (*model.Booking, error) {
	now := m.clock.Now()

	b, ev, err := m.transition(ctx, in.BookingID, func(tx repository.Store, b *model.Booking) (eventSpec, error) {
		if !b.Participant(in.ActorID) {
			return eventSpec{}, apperror.ErrForbidden
		}
		if !b.Status.Active() {
			return eventSpec{}, apperror.InvalidTransition("reschedule", string(b.Status))
		}
		if b.Slot.StartsAt.Sub(now) <= m.buffer {
			return eventSpec{}, apperror.CancellationWindowExpired(m.buffer)
		}
		if in.NewSlotID == b.SlotID {
			return eventSpec{}, apperror.Invalid("booking already holds slot %s", in.NewSlotID)
		}

		l := ledger.New(tx.Slots())
		next, err := l.Get(ctx, in.NewSlotID)
		if err != nil {
			return eventSpec{}, err
		}
		if next.ConsultantID != b.ConsultantID {
			return eventSpec{}, apperror.ErrSlotMismatch
		}
		if !next.StartsAt.After(now) {
			return eventSpec{}, apperror.ErrSlotInPast
		}

		// сначала новый слот, потом освобождаем старый
		if err := l.Claim(ctx, next.ID, b.ID); err != nil {
			return eventSpec{}, err
		}
		if err := l.Release(ctx, b.SlotID, b.ID, now); err != nil {
			return eventSpec{}, err
		}

		previous := b.SlotID
		b.SlotID = next.ID
		next.Booked = true
		next.BookingID = &b.ID
		b.Slot = next
		return eventSpec{typ: model.EventTypeBookingRescheduled, actor: &in.ActorID, previousSlot: &previous}, nil
	}, now)
	if err != nil {
		return nil, err
	}

	m.dispatch(ctx, ev)
	return b, nil
}

// Get returns a booking visible to actorID.
func (m *Manager) Get(ctx context.Context, bookingID, actorID uuid.UUID) (*model.Booking, error) {
	b, err := m.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Participant(actorID) {
		return nil, apperror.ErrForbidden
	}
	return b, nil
}

type ListInput struct {
	UserID       uuid.UUID
	AsConsultant bool
	Statuses     []model.BookingStatus
	Page         calendar.PageRequest
}

// List returns the user's bookings newest first.
func (m *Manager) List(ctx context.Context, in ListInput) (calendar.Page[model.Booking], error) {
	req := in.Page.Normalize()
	f := repository.BookingFilter{
		Statuses: in.Statuses,
		Limit:    req.Limit(),
		Offset:   req.Offset(),
	}
	if in.AsConsultant {
		f.ConsultantID = &in.UserID
	} else {
		f.ClientID = &in.UserID
	}

	items, total, err := m.store.Bookings().List(ctx, f)
	if err != nil {
		return calendar.Page[model.Booking]{}, err
	}
	return calendar.NewPage(items, int(total), req), nil
}

type BulkCancelInput struct {
	ConsultantID uuid.UUID
	ActorID      uuid.UUID
	From         time.Time
	To           time.Time
	Reason       string
}

type BulkCancelResult struct {
	Cancelled      []model.Booking
	WithdrawnSlots int
}

// BulkCancelWindow clears a consultant's window: every active booking whose
// slot starts in [From, To) is cancelled with consultant rights and every
// free slot starting there is withdrawn. Slots that already ended are kept.
func (m *Manager) BulkCancelWindow(ctx context.Context, in BulkCancelInput) (*BulkCancelResult, error) {
	if in.ActorID != in.ConsultantID {
		return nil, apperror.ErrForbidden
	}
	if _, err := calendar.NewTimeRange(in.From, in.To); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrInvalidRange, err)
	}

	now := m.clock.Now()
	result := &BulkCancelResult{}
	var events []model.LifecycleEvent

	err := m.store.Transaction(ctx, func(tx repository.Store) error {
		result.Cancelled = result.Cancelled[:0]
		result.WithdrawnSlots = 0
		events = events[:0]

		// 1. Активные бронирования в окне.
		active, _, err := tx.Bookings().List(ctx, repository.BookingFilter{
			ConsultantID: &in.ConsultantID,
			Statuses:     []model.BookingStatus{model.BookingStatusPending, model.BookingStatusConfirmed},
			SlotFrom:     in.From.UTC(),
			SlotTo:       in.To.UTC(),
		})
		if err != nil {
			return err
		}
		for i := range active {
			b := &active[i]
			if b.Slot == nil || !now.Before(b.Slot.EndsAt) {
				continue
			}
			locked, err := tx.Bookings().GetByIDForUpdate(ctx, b.ID)
			if err != nil {
				return err
			}
			if err := m.cancel(ctx, tx, locked, in.ActorID, in.Reason, now); err != nil {
				return err
			}
			if err := tx.Bookings().Update(ctx, locked); err != nil {
				return err
			}
			ev, err := m.record(ctx, tx, model.EventTypeBookingCancelled, locked, &in.ActorID, nil, now)
			if err != nil {
				return err
			}
			result.Cancelled = append(result.Cancelled, *locked)
			events = append(events, ev)
		}

		// 2. Свободные слоты в окне больше не предлагаются.
		l := ledger.New(tx.Slots())
		slots, err := l.Existing(ctx, in.ConsultantID, in.From, in.To)
		if err != nil {
			return err
		}
		for _, s := range slots {
			if s.Booked || s.StartsAt.Before(in.From) || !now.Before(s.EndsAt) {
				continue
			}
			if err := l.Withdraw(ctx, s.ID, now); err != nil {
				return err
			}
			result.WithdrawnSlots++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		m.dispatch(ctx, ev)
	}
	return result, nil
}

// History returns the audit trail of a booking visible to actorID.
func (m *Manager) History(ctx context.Context, bookingID, actorID uuid.UUID) ([]model.Event, error) {
	if _, err := m.Get(ctx, bookingID, actorID); err != nil {
		return nil, err
	}
	return m.store.Events().ListByBooking(ctx, bookingID)
}

type eventSpec struct {
	typ          model.EventType
	actor        *uuid.UUID
	previousSlot *uuid.UUID
}

// transition loads and locks the booking, lets apply mutate it, then persists
// the booking and its audit event, all inside one transaction.
func (m *Manager) transition(
	ctx context.Context,
	bookingID uuid.UUID,
	apply func(tx repository.Store, b *model.Booking) (eventSpec, error),
	now time.Time,
) (*model.Booking, model.LifecycleEvent, error) {
	var (
		result *model.Booking
		ev     model.LifecycleEvent
	)
	err := m.store.Transaction(ctx, func(tx repository.Store) error {
		b, err := tx.Bookings().GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Slot == nil {
			return apperror.ErrSlotNotFound
		}
		change, err := apply(tx, b)
		if err != nil {
			return err
		}
		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}
		ev, err = m.record(ctx, tx, change.typ, b, change.actor, change.previousSlot, now)
		if err != nil {
			return err
		}
		result = b
		return nil
	})
	if err != nil {
		return nil, model.LifecycleEvent{}, err
	}
	return result, ev, nil
}

// record appends the audit row for a transition and returns the event to dispatch.
func (m *Manager) record(
	ctx context.Context,
	tx repository.Store,
	t model.EventType,
	b *model.Booking,
	actorID, previousSlotID *uuid.UUID,
	at time.Time,
) (model.LifecycleEvent, error) {
	ev := model.NewLifecycleEvent(t, b, actorID, at)
	ev.PreviousSlotID = previousSlotID
	payload, err := json.Marshal(ev)
	if err != nil {
		return model.LifecycleEvent{}, err
	}
	err = tx.Events().Append(ctx, &model.Event{
		ID:        ev.ID,
		Type:      t,
		BookingID: b.ID,
		ActorID:   actorID,
		Payload:   datatypes.JSON(payload),
		CreatedAt: at,
	})
	if err != nil {
		return model.LifecycleEvent{}, err
	}
	return ev, nil
}

// dispatch is fire-and-forget: the transition is already committed.
func (m *Manager) dispatch(ctx context.Context, ev model.LifecycleEvent) {
	if m.events == nil {
		return
	}
	if err := m.events.Dispatch(ctx, ev); err != nil {
		m.log.Warn("dispatch lifecycle event failed",
			"event", string(ev.Type),
			"booking_id", ev.BookingID.String(),
			"error", err,
		)
	}
}
