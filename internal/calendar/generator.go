package calendar

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/model"
)

const (
	DefaultSlotDuration = time.Hour
	MaxHorizonDays      = 366
)

// GenerateInput describes one materialisation pass for a consultant.
type GenerateInput struct {
	ConsultantID uuid.UUID

	// Horizon bounds are calendar dates; the clock part is ignored. Both ends are inclusive.
	From time.Time
	To   time.Time

	Rules []model.AvailabilityRule

	// Existing are the consultant's already materialised slots around the horizon.
	Existing []TimeRange

	SlotDuration time.Duration

	// Candidates starting before NotBefore are skipped. Zero disables the bound.
	NotBefore time.Time
}

// GenerateSlots expands weekly rules into the slots that are still missing.
// It is pure: nothing is persisted and the output depends only on the input.
// A consultant without matching active rules gets an empty result, not an error.
func GenerateSlots(in GenerateInput) ([]model.TimeSlot, error) {
	if in.From.IsZero() || in.To.IsZero() {
		return nil, fmt.Errorf("%w: horizon dates are required", apperror.ErrInvalidRange)
	}
	from := utcDate(in.From)
	to := utcDate(in.To)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: horizon end %s is before start %s",
			apperror.ErrInvalidRange, to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	days := int(to.Sub(from).Hours()/24) + 1
	if days > MaxHorizonDays {
		return nil, fmt.Errorf("%w: horizon of %d days exceeds %d", apperror.ErrInvalidRange, days, MaxHorizonDays)
	}

	step := in.SlotDuration
	if step == 0 {
		step = DefaultSlotDuration
	}
	if step < 0 {
		return nil, ErrSlotDuration
	}

	taken := append([]TimeRange(nil), in.Existing...)
	out := []model.TimeSlot{}

	for i := 0; i < days; i++ {
		day := from.AddDate(0, 0, i)
		for _, rule := range in.Rules {
			if !rule.Active || rule.ConsultantID != in.ConsultantID || rule.Weekday() != day.Weekday() {
				continue
			}
			window, err := ruleWindow(rule, day)
			if err != nil {
				return nil, err
			}
			parts, err := SplitToTimeSlots(window, step)
			if err != nil {
				return nil, err
			}
			for _, part := range parts {
				if !in.NotBefore.IsZero() && part.Start.Before(in.NotBefore) {
					continue
				}
				if conflict, _ := HasOverlap(part, taken, false); conflict {
					continue
				}
				taken = append(taken, part)

				ruleID := rule.ID
				out = append(out, model.TimeSlot{
					ID:           uuid.New(),
					ConsultantID: in.ConsultantID,
					RuleID:       &ruleID,
					StartsAt:     part.Start.UTC(),
					EndsAt:       part.End.UTC(),
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// ruleWindow places the rule's times of day on the given date in the rule's zone.
// Wall-clock construction keeps DST days correct.
func ruleWindow(rule model.AvailabilityRule, day time.Time) (TimeRange, error) {
	loc, err := rule.Location()
	if err != nil {
		return TimeRange{}, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	y, m, d := day.Date()
	at := func(offset time.Duration) time.Time {
		h := int(offset / time.Hour)
		mm := int(offset % time.Hour / time.Minute)
		sec := int(offset % time.Minute / time.Second)
		return time.Date(y, m, d, h, mm, sec, 0, loc)
	}
	return TimeRange{Start: at(rule.StartOffset()), End: at(rule.EndOffset())}, nil
}

func utcDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
