package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Leganyst/consultation-booking/internal/apperror"
)

// Реализация на GORM.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Slots() SlotRepository       { return NewGormSlotRepository(s.db) }
func (s *GormStore) Bookings() BookingRepository { return NewGormBookingRepository(s.db) }
func (s *GormStore) Rules() RuleRepository       { return NewGormRuleRepository(s.db) }
func (s *GormStore) Events() EventRepository     { return NewGormEventRepository(s.db) }
func (s *GormStore) DB() *gorm.DB                { return s.db }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	var fnErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fnErr = fn(NewGormStore(tx))
		return fnErr
	})
	if err != nil && fnErr == nil {
		// begin или commit не прошли
		return apperror.StoreUnavailable(err)
	}
	return err
}

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	return translate(sqlDB.PingContext(ctx), nil, nil)
}
