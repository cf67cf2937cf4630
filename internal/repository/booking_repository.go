package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/model"
)

type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	err := r.db.WithContext(ctx).Omit(clause.Associations).Create(booking).Error
	return translate(err, nil, apperror.ErrSlotAlreadyBooked)
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).Preload("Slot").First(&b, "id = ?", id).Error; err != nil {
		return nil, translate(err, apperror.ErrBookingNotFound, nil)
	}
	return &b, nil
}

func (r *GormBookingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Slot").
		First(&b, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, apperror.ErrBookingNotFound, nil)
	}
	return &b, nil
}

func (r *GormBookingRepository) Update(ctx context.Context, booking *model.Booking) error {
	res := r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", booking.ID).
		Updates(map[string]any{
			"status":        booking.Status,
			"slot_id":       booking.SlotID,
			"notes":         booking.Notes,
			"confirmed_at":  booking.ConfirmedAt,
			"completed_at":  booking.CompletedAt,
			"cancelled_at":  booking.CancelledAt,
			"cancelled_by":  booking.CancelledBy,
			"cancel_reason": booking.CancelReason,
		})
	if res.Error != nil {
		return translate(res.Error, nil, apperror.ErrSlotAlreadyBooked)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrBookingNotFound
	}
	return nil
}

func (r *GormBookingRepository) List(ctx context.Context, f BookingFilter) ([]model.Booking, int64, error) {
	var (
		bookings []model.Booking
		total    int64
	)

	q := r.db.WithContext(ctx).Model(&model.Booking{})
	if f.ClientID != nil {
		q = q.Where("bookings.client_id = ?", *f.ClientID)
	}
	if f.ConsultantID != nil {
		q = q.Where("bookings.consultant_id = ?", *f.ConsultantID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("bookings.status IN ?", f.Statuses)
	}
	if !f.SlotFrom.IsZero() || !f.SlotTo.IsZero() {
		q = q.Joins("JOIN time_slots ON time_slots.id = bookings.slot_id")
		if !f.SlotFrom.IsZero() {
			q = q.Where("time_slots.starts_at >= ?", f.SlotFrom)
		}
		if !f.SlotTo.IsZero() {
			q = q.Where("time_slots.starts_at < ?", f.SlotTo)
		}
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err, nil, nil)
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	err := q.Preload("Slot").
		Order("bookings.created_at DESC").
		Order("bookings.id").
		Find(&bookings).Error
	if err != nil {
		return nil, 0, translate(err, nil, nil)
	}

	return bookings, total, nil
}
