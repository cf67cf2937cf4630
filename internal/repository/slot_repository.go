package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/model"
)

type GormSlotRepository struct {
	db *gorm.DB
}

func NewGormSlotRepository(db *gorm.DB) *GormSlotRepository {
	return &GormSlotRepository{db: db}
}

func (r *GormSlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	err := r.db.WithContext(ctx).Create(slot).Error
	return translate(err, nil, apperror.ErrSlotOverlap)
}

func (r *GormSlotRepository) CreateIfAbsent(ctx context.Context, slot *model.TimeSlot) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "consultant_id"}, {Name: "starts_at"}},
			DoNothing: true,
		}).
		Create(slot)
	if res.Error != nil {
		return false, translate(res.Error, nil, nil)
	}
	return res.RowsAffected == 1, nil
}

func (r *GormSlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	var slot model.TimeSlot
	if err := r.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, translate(err, apperror.ErrSlotNotFound, nil)
	}
	return &slot, nil
}

func (r *GormSlotRepository) ListFree(ctx context.Context, consultantID uuid.UUID, from time.Time) ([]model.TimeSlot, error) {
	var slots []model.TimeSlot
	err := r.db.WithContext(ctx).
		Where("consultant_id = ?", consultantID).
		Where("booked = ?", false).
		Where("starts_at >= ?", from).
		Order("starts_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return slots, nil
}

func (r *GormSlotRepository) ListByConsultantRange(
	ctx context.Context,
	consultantID uuid.UUID,
	from, to time.Time,
) ([]model.TimeSlot, error) {
	var slots []model.TimeSlot
	err := r.db.WithContext(ctx).
		Where("consultant_id = ?", consultantID).
		Where("starts_at < ? AND ends_at > ?", to, from).
		Order("starts_at ASC").
		Find(&slots).Error
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return slots, nil
}

// Claim is one conditional UPDATE; the WHERE on booked makes concurrent claims
// for the same slot serialize in the database with exactly one winner.
func (r *GormSlotRepository) Claim(ctx context.Context, slotID, bookingID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id = ? AND booked = ?", slotID, false).
		Updates(map[string]any{
			"booked":     true,
			"booking_id": bookingID,
		})
	if res.Error != nil {
		return 0, translate(res.Error, nil, nil)
	}
	return res.RowsAffected, nil
}

func (r *GormSlotRepository) Release(ctx context.Context, slotID, bookingID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id = ? AND booking_id = ? AND released_at IS NULL", slotID, bookingID).
		Update("released_at", at)
	if res.Error != nil {
		return 0, translate(res.Error, nil, nil)
	}
	return res.RowsAffected, nil
}

func (r *GormSlotRepository) Withdraw(ctx context.Context, slotID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.TimeSlot{}).
		Where("id = ? AND booked = ?", slotID, false).
		Updates(map[string]any{
			"booked":      true,
			"released_at": at,
		})
	if res.Error != nil {
		return 0, translate(res.Error, nil, nil)
	}
	return res.RowsAffected, nil
}
