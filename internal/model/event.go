package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lifecycle event types; they double as message routing keys.
type EventType string

const (
	EventTypeBookingCreated     EventType = "booking.created"
	EventTypeBookingConfirmed   EventType = "booking.confirmed"
	EventTypeBookingCancelled   EventType = "booking.cancelled"
	EventTypeBookingCompleted   EventType = "booking.completed"
	EventTypeBookingRescheduled EventType = "booking.rescheduled"
)

// LifecycleEvent is what the notification dispatcher receives after a committed transition.
type LifecycleEvent struct {
	ID             uuid.UUID     `json:"id"`
	Type           EventType     `json:"type"`
	BookingID      uuid.UUID     `json:"booking_id"`
	ConsultantID   uuid.UUID     `json:"consultant_id"`
	ClientID       uuid.UUID     `json:"client_id"`
	Status         BookingStatus `json:"status"`
	SlotID         uuid.UUID     `json:"slot_id"`
	PreviousSlotID *uuid.UUID    `json:"previous_slot_id,omitempty"`
	ActorID        *uuid.UUID    `json:"actor_id,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}

// NewLifecycleEvent snapshots b after a transition of the given type.
func NewLifecycleEvent(t EventType, b *Booking, actorID *uuid.UUID, at time.Time) LifecycleEvent {
	return LifecycleEvent{
		ID:           uuid.New(),
		Type:         t,
		BookingID:    b.ID,
		ConsultantID: b.ConsultantID,
		ClientID:     b.ClientID,
		Status:       b.Status,
		SlotID:       b.SlotID,
		ActorID:      actorID,
		OccurredAt:   at,
	}
}

// events: audit trail of lifecycle events, written in the transition's transaction.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Type EventType `gorm:"type:varchar(64);not null;index"`

	BookingID uuid.UUID  `gorm:"type:uuid;not null;index"`
	ActorID   *uuid.UUID `gorm:"type:uuid;index"`

	Payload datatypes.JSON

	CreatedAt time.Time `gorm:"not null;index"`
}

func (Event) TableName() string { return "events" }

func (e *Event) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
