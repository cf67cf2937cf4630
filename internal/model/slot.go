package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// time_slots
//
// A slot is single-use: once Booked flips to true it never flips back. ReleasedAt marks a
// slot whose booking was cancelled or moved away; BookingID keeps the claiming booking for history.
type TimeSlot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	ConsultantID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_slots_consultant_start,priority:1"`
	RuleID       *uuid.UUID `gorm:"type:uuid;index"`

	StartsAt time.Time `gorm:"not null;uniqueIndex:idx_slots_consultant_start,priority:2"`
	EndsAt   time.Time `gorm:"not null"`

	Booked     bool       `gorm:"not null;index"`
	BookingID  *uuid.UUID `gorm:"type:uuid;index"`
	ReleasedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TimeSlot) TableName() string { return "time_slots" }

func (s *TimeSlot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Released reports whether the slot is consumed without an active booking.
func (s TimeSlot) Released() bool { return s.ReleasedAt != nil }

// ActiveBookingID returns the booking currently holding the slot.
func (s TimeSlot) ActiveBookingID() (uuid.UUID, bool) {
	if !s.Booked || s.BookingID == nil || s.Released() {
		return uuid.Nil, false
	}
	return *s.BookingID, true
}
