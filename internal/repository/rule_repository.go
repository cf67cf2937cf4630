package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/model"
)

type GormRuleRepository struct {
	db *gorm.DB
}

func NewGormRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

func (r *GormRuleRepository) Upsert(ctx context.Context, rule *model.AvailabilityRule) error {
	if rule.ID == uuid.Nil {
		return translate(r.db.WithContext(ctx).Create(rule).Error, nil, nil)
	}

	res := r.db.WithContext(ctx).
		Model(&model.AvailabilityRule{}).
		Where("id = ? AND consultant_id = ?", rule.ID, rule.ConsultantID).
		Updates(map[string]any{
			"day_of_week": rule.DayOfWeek,
			"start_time":  rule.StartTime,
			"end_time":    rule.EndTime,
			"time_zone":   rule.TimeZone,
			"active":      rule.Active,
		})
	if res.Error != nil {
		return translate(res.Error, nil, nil)
	}
	if res.RowsAffected == 0 {
		return apperror.ErrRuleNotFound
	}
	return nil
}

func (r *GormRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityRule, error) {
	var rule model.AvailabilityRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, translate(err, apperror.ErrRuleNotFound, nil)
	}
	return &rule, nil
}

// ListByConsultant возвращает правила консультанта по дню недели и началу.
func (r *GormRuleRepository) ListByConsultant(
	ctx context.Context,
	consultantID uuid.UUID,
	activeOnly bool,
) ([]model.AvailabilityRule, error) {
	var rules []model.AvailabilityRule
	q := r.db.WithContext(ctx).Where("consultant_id = ?", consultantID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	if err := q.Order("day_of_week ASC").Order("start_time ASC").Find(&rules).Error; err != nil {
		return nil, translate(err, nil, nil)
	}
	return rules, nil
}
