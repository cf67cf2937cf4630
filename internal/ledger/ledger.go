// Package ledger is the authoritative record of slot state and the only
// writer of time_slots. At most one booking ever holds a slot.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
)

type Ledger struct {
	slots repository.SlotRepository
}

// New binds a ledger to slots. Pass tx.Slots() to take part in a transaction.
func New(slots repository.SlotRepository) *Ledger {
	return &Ledger{slots: slots}
}

// ListAvailable returns unbooked slots starting at or after from, earliest first.
func (l *Ledger) ListAvailable(ctx context.Context, consultantID uuid.UUID, from time.Time) ([]model.TimeSlot, error) {
	return l.slots.ListFree(ctx, consultantID, from.UTC())
}

func (l *Ledger) Get(ctx context.Context, slotID uuid.UUID) (*model.TimeSlot, error) {
	return l.slots.GetByID(ctx, slotID)
}

// Claim marks the slot booked by bookingID. Losing a race and claiming an
// already booked slot both give ErrSlotAlreadyBooked.
func (l *Ledger) Claim(ctx context.Context, slotID, bookingID uuid.UUID) error {
	n, err := l.slots.Claim(ctx, slotID, bookingID)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if _, err := l.slots.GetByID(ctx, slotID); err != nil {
		return err
	}
	return apperror.ErrSlotAlreadyBooked
}

// Release records that bookingID no longer holds the slot. The slot stays
// booked and is never offered again. Releasing twice is a no-op.
func (l *Ledger) Release(ctx context.Context, slotID, bookingID uuid.UUID, at time.Time) error {
	n, err := l.slots.Release(ctx, slotID, bookingID, at.UTC())
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	slot, err := l.slots.GetByID(ctx, slotID)
	if err != nil {
		return err
	}
	if slot.BookingID != nil && *slot.BookingID == bookingID && slot.Released() {
		return nil
	}
	return apperror.Invalid("slot %s is not held by booking %s", slotID, bookingID)
}

// Withdraw takes an unbooked slot out of availability for good.
func (l *Ledger) Withdraw(ctx context.Context, slotID uuid.UUID, at time.Time) error {
	n, err := l.slots.Withdraw(ctx, slotID, at.UTC())
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	if _, err := l.slots.GetByID(ctx, slotID); err != nil {
		return err
	}
	return apperror.ErrSlotAlreadyBooked
}

// Add persists a manually defined slot. It must not overlap any slot the
// consultant already has, booked or not.
func (l *Ledger) Add(ctx context.Context, slot *model.TimeSlot) error {
	slot.StartsAt = slot.StartsAt.UTC()
	slot.EndsAt = slot.EndsAt.UTC()
	if !slot.EndsAt.After(slot.StartsAt) {
		return apperror.ErrInvalidRange
	}

	existing, err := l.slots.ListByConsultantRange(ctx, slot.ConsultantID, slot.StartsAt, slot.EndsAt)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return apperror.ErrSlotOverlap
	}
	return l.slots.Create(ctx, slot)
}

// Materialize persists generated slots, skipping any start another writer
// inserted meanwhile. It returns the slots actually stored.
func (l *Ledger) Materialize(ctx context.Context, slots []model.TimeSlot) ([]model.TimeSlot, error) {
	stored := make([]model.TimeSlot, 0, len(slots))
	for i := range slots {
		slot := slots[i]
		created, err := l.slots.CreateIfAbsent(ctx, &slot)
		if err != nil {
			return nil, err
		}
		if created {
			stored = append(stored, slot)
		}
	}
	return stored, nil
}

// Existing lists the consultant's slots overlapping [from, to).
func (l *Ledger) Existing(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]model.TimeSlot, error) {
	return l.slots.ListByConsultantRange(ctx, consultantID, from.UTC(), to.UTC())
}

// IsConflict reports errors that mean the slot was taken by someone else.
func IsConflict(err error) bool {
	return errors.Is(err, apperror.ErrSlotAlreadyBooked)
}
