package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/model"
)

// Store bundles the repositories of the scheduling core. Repositories taken
// from the store passed to Transaction's callback share one transaction.
type Store interface {
	Slots() SlotRepository
	Bookings() BookingRepository
	Rules() RuleRepository
	Events() EventRepository

	// Transaction commits when fn returns nil and rolls back otherwise.
	// fn's error is returned unchanged.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
}

type SlotRepository interface {
	// Создать слот. Дубликат (consultant_id, starts_at) → ErrSlotOverlap.
	Create(ctx context.Context, slot *model.TimeSlot) error
	// CreateIfAbsent inserts slot unless the consultant already has a slot at that start.
	CreateIfAbsent(ctx context.Context, slot *model.TimeSlot) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error)
	// Свободные слоты консультанта, начиная с from, по возрастанию начала.
	ListFree(ctx context.Context, consultantID uuid.UUID, from time.Time) ([]model.TimeSlot, error)
	// Все слоты консультанта, пересекающие [from, to).
	ListByConsultantRange(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]model.TimeSlot, error)

	// Claim sets booked and booking_id only where booked is still false.
	// It returns the number of rows changed, 0 or 1.
	Claim(ctx context.Context, slotID, bookingID uuid.UUID) (int64, error)
	// Release stamps released_at on a slot held by bookingID. booked stays true.
	Release(ctx context.Context, slotID, bookingID uuid.UUID, at time.Time) (int64, error)
	// Withdraw consumes an unbooked slot without a booking.
	Withdraw(ctx context.Context, slotID uuid.UUID, at time.Time) (int64, error)
}

// BookingFilter: условия выборки бронирований. Пустые поля не фильтруют.
type BookingFilter struct {
	ClientID     *uuid.UUID
	ConsultantID *uuid.UUID
	Statuses     []model.BookingStatus

	// Окно по началу слота, [SlotFrom, SlotTo).
	SlotFrom time.Time
	SlotTo   time.Time

	Limit  int
	Offset int
}

type BookingRepository interface {
	// Создать бронирование. Второе бронирование того же слота → ErrSlotAlreadyBooked.
	Create(ctx context.Context, booking *model.Booking) error
	// Получить бронирование по ID вместе со слотом.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// GetByIDForUpdate also locks the booking row until the transaction ends.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// Update writes the mutable columns of booking.
	Update(ctx context.Context, booking *model.Booking) error
	// List returns a page of bookings, newest first, with the total count.
	List(ctx context.Context, filter BookingFilter) ([]model.Booking, int64, error)
}

type RuleRepository interface {
	// Upsert creates the rule when it has no ID, otherwise updates it.
	Upsert(ctx context.Context, rule *model.AvailabilityRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityRule, error)
	ListByConsultant(ctx context.Context, consultantID uuid.UUID, activeOnly bool) ([]model.AvailabilityRule, error)
}

type EventRepository interface {
	Append(ctx context.Context, event *model.Event) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error)
}

// translate maps driver errors onto the error taxonomy. notFound and duplicate
// may be nil when the query cannot produce them.
func translate(err error, notFound, duplicate error) error {
	switch {
	case err == nil:
		return nil
	case notFound != nil && errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case duplicate != nil && errors.Is(err, gorm.ErrDuplicatedKey):
		return duplicate
	default:
		return apperror.StoreUnavailable(err)
	}
}
