package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	bookingv1 "github.com/Leganyst/consultation-booking/internal/api/booking/v1"
	"github.com/Leganyst/consultation-booking/internal/model"
)

func mapSlot(s model.TimeSlot) bookingv1.Slot {
	return bookingv1.Slot{
		ID:           s.ID.String(),
		ConsultantID: s.ConsultantID.String(),
		StartsAt:     s.StartsAt.UTC(),
		EndsAt:       s.EndsAt.UTC(),
		Booked:       s.Booked,
	}
}

func mapSlots(slots []model.TimeSlot) []bookingv1.Slot {
	out := make([]bookingv1.Slot, 0, len(slots))
	for _, s := range slots {
		out = append(out, mapSlot(s))
	}
	return out
}

func mapBooking(b *model.Booking) bookingv1.Booking {
	out := bookingv1.Booking{
		ID:           b.ID.String(),
		ClientID:     b.ClientID.String(),
		ConsultantID: b.ConsultantID.String(),
		SlotID:       b.SlotID.String(),
		Status:       string(b.Status),
		Notes:        b.Notes,
		CreatedAt:    b.CreatedAt.UTC(),
		ConfirmedAt:  b.ConfirmedAt,
		CompletedAt:  b.CompletedAt,
		CancelledAt:  b.CancelledAt,
		CancelReason: b.CancelReason,
	}
	if b.CancelledBy != nil {
		out.CancelledBy = b.CancelledBy.String()
	}
	if b.Slot != nil {
		slot := mapSlot(*b.Slot)
		out.Slot = &slot
	}
	return out
}

func mapEvent(e model.Event) bookingv1.Event {
	out := bookingv1.Event{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		BookingID: e.BookingID.String(),
		Payload:   json.RawMessage(e.Payload),
		CreatedAt: e.CreatedAt.UTC(),
	}
	if e.ActorID != nil {
		out.ActorID = e.ActorID.String()
	}
	return out
}

func mapRule(r model.AvailabilityRule) bookingv1.AvailabilityRule {
	return bookingv1.AvailabilityRule{
		ID:           r.ID.String(),
		ConsultantID: r.ConsultantID.String(),
		DayOfWeek:    r.DayOfWeek,
		StartTime:    clockTime(r.StartOffset()),
		EndTime:      clockTime(r.EndOffset()),
		TimeZone:     r.TimeZone,
		Active:       r.Active,
	}
}

func clockTime(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

var errClock = errors.New(`want "HH:MM" between 00:00 and 24:00`)

// parseClock reads a wall-clock "HH:MM". "24:00" is accepted as end of day.
func parseClock(s string) (hour, minute int, err error) {
	if s == "24:00" {
		return 24, 0, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, errClock
	}
	return t.Hour(), t.Minute(), nil
}

// parseRule expects a request already checked by the validator.
func parseRule(in bookingv1.AvailabilityRule) (*model.AvailabilityRule, error) {
	sh, sm, err := parseClock(in.StartTime)
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	eh, em, err := parseClock(in.EndTime)
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}

	rule := &model.AvailabilityRule{
		ConsultantID: uuid.MustParse(in.ConsultantID),
		DayOfWeek:    in.DayOfWeek,
		StartTime:    datatypes.NewTime(sh, sm, 0, 0),
		EndTime:      datatypes.NewTime(eh, em, 0, 0),
		TimeZone:     in.TimeZone,
		Active:       in.Active,
	}
	if in.ID != "" {
		rule.ID = uuid.MustParse(in.ID)
	}
	return rule, nil
}
