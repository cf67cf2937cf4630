package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AvailabilityRule: недельное окно доступности консультанта.
// Start and end are times of day in the rule's time zone, the window is [StartTime, EndTime).
type AvailabilityRule struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ConsultantID uuid.UUID `gorm:"type:uuid;not null;index:idx_rules_consultant_day,priority:1"`

	// 0 = Sunday ... 6 = Saturday, as time.Weekday.
	DayOfWeek int `gorm:"not null;index:idx_rules_consultant_day,priority:2"`

	StartTime datatypes.Time `gorm:"not null"`
	EndTime   datatypes.Time `gorm:"not null"`

	TimeZone string `gorm:"type:varchar(64);not null"`

	Active bool `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (AvailabilityRule) TableName() string { return "availability_rules" }

func (r *AvailabilityRule) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Weekday returns the rule day as time.Weekday.
func (r AvailabilityRule) Weekday() time.Weekday { return time.Weekday(r.DayOfWeek) }

// Location resolves the rule's time zone; empty means UTC.
func (r AvailabilityRule) Location() (*time.Location, error) {
	if r.TimeZone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.TimeZone)
}

// StartOffset and EndOffset are durations since local midnight.
func (r AvailabilityRule) StartOffset() time.Duration { return time.Duration(r.StartTime) }
func (r AvailabilityRule) EndOffset() time.Duration   { return time.Duration(r.EndTime) }

// Validate checks the rule invariants.
func (r AvailabilityRule) Validate() error {
	if r.ConsultantID == uuid.Nil {
		return fmt.Errorf("consultant_id is required")
	}
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be within 0..6, got %d", r.DayOfWeek)
	}
	if r.StartOffset() < 0 || r.EndOffset() > 24*time.Hour {
		return fmt.Errorf("times of day must be within 00:00..24:00")
	}
	if r.StartOffset() >= r.EndOffset() {
		return fmt.Errorf("start_time %s must be before end_time %s", r.StartTime, r.EndTime)
	}
	if _, err := r.Location(); err != nil {
		return fmt.Errorf("unknown time zone %q", r.TimeZone)
	}
	return nil
}
