// Package bookingv1 is the wire contract of the booking scheduling API.
// Messages travel as JSON over gRPC (content-subtype "json").
package bookingv1

import (
	"encoding/json"
	"time"
)

type Slot struct {
	ID           string    `json:"id"`
	ConsultantID string    `json:"consultant_id"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Booked       bool      `json:"booked"`
}

// AvailabilityRule times are "HH:MM" in TimeZone; EndTime may be "24:00".
type AvailabilityRule struct {
	ID           string `json:"id,omitempty" validate:"omitempty,uuid"`
	ConsultantID string `json:"consultant_id" validate:"required,uuid"`
	DayOfWeek    int    `json:"day_of_week" validate:"min=0,max=6"`
	StartTime    string `json:"start_time" validate:"required,clock"`
	EndTime      string `json:"end_time" validate:"required,clock"`
	TimeZone     string `json:"time_zone,omitempty" validate:"omitempty,timezone"`
	Active       bool   `json:"active"`
}

type Booking struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	ConsultantID string     `json:"consultant_id"`
	SlotID       string     `json:"slot_id"`
	Status       string     `json:"status"`
	Notes        string     `json:"notes,omitempty"`
	Slot         *Slot      `json:"slot,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	ConfirmedAt  *time.Time `json:"confirmed_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy  string     `json:"cancelled_by,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	BookingID string          `json:"booking_id"`
	ActorID   string          `json:"actor_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// From and To are calendar dates, "YYYY-MM-DD", both inclusive.
type GenerateSlotsRequest struct {
	ConsultantID string `json:"consultant_id" validate:"required,uuid"`
	From         string `json:"from" validate:"required,datetime=2006-01-02"`
	To           string `json:"to" validate:"required,datetime=2006-01-02"`
}

type ListAvailableSlotsRequest struct {
	ConsultantID string     `json:"consultant_id" validate:"required,uuid"`
	From         *time.Time `json:"from,omitempty"`
}

type SlotsResponse struct {
	Slots []Slot `json:"slots"`
}

type CreateSlotRequest struct {
	ConsultantID string    `json:"consultant_id" validate:"required,uuid"`
	StartsAt     time.Time `json:"starts_at" validate:"required"`
	EndsAt       time.Time `json:"ends_at" validate:"required"`
}

type SlotResponse struct {
	Slot Slot `json:"slot"`
}

type UpsertRuleRequest struct {
	Rule AvailabilityRule `json:"rule"`
}

type RuleResponse struct {
	Rule AvailabilityRule `json:"rule"`
}

type ListRulesRequest struct {
	ConsultantID string `json:"consultant_id" validate:"required,uuid"`
}

type RulesResponse struct {
	Rules []AvailabilityRule `json:"rules"`
}

type CreateBookingRequest struct {
	SlotID       string `json:"slot_id" validate:"required,uuid"`
	ConsultantID string `json:"consultant_id,omitempty" validate:"omitempty,uuid"`
	Notes        string `json:"notes,omitempty" validate:"max=2000"`
}

type ConfirmBookingRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type CancelBookingRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	Reason    string `json:"reason,omitempty" validate:"max=500"`
}

type CompleteBookingRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type RescheduleBookingRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
	NewSlotID string `json:"new_slot_id" validate:"required,uuid"`
}

type GetBookingRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type BookingResponse struct {
	Booking Booking `json:"booking"`
}

// ListBookingsRequest lists the caller's bookings: as consultant for the
// consultant role, as client otherwise.
type ListBookingsRequest struct {
	Statuses []string `json:"statuses,omitempty" validate:"dive,oneof=pending confirmed completed cancelled"`
	Page     int      `json:"page,omitempty" validate:"min=0"`
	PageSize int      `json:"page_size,omitempty" validate:"min=0,max=100"`
}

type ListBookingsResponse struct {
	Bookings   []Booking `json:"bookings"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	HasNext    bool      `json:"has_next"`
}

type BookingHistoryRequest struct {
	BookingID string `json:"booking_id" validate:"required,uuid"`
}

type BookingHistoryResponse struct {
	Events []Event `json:"events"`
}

type BulkCancelRequest struct {
	ConsultantID string    `json:"consultant_id" validate:"required,uuid"`
	From         time.Time `json:"from" validate:"required"`
	To           time.Time `json:"to" validate:"required"`
	Reason       string    `json:"reason,omitempty" validate:"max=500"`
}

type BulkCancelResponse struct {
	Cancelled      []Booking `json:"cancelled"`
	WithdrawnSlots int       `json:"withdrawn_slots"`
}
