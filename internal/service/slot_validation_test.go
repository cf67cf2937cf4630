package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	bookingv1 "github.com/Leganyst/consultation-booking/internal/api/booking/v1"
)

func TestValidateSlotWindow_OK(t *testing.T) {
	ok, reason := validateSlotWindow(
		uuid.New().String(),
		time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 11, 0, 0, 0, time.UTC),
	)
	if !ok {
		t.Fatalf("expected valid, got reason=%q", reason)
	}
	if reason != "" {
		t.Fatalf("expected empty reason, got %q", reason)
	}
}

func TestValidateSlotWindow_InvalidRange(t *testing.T) {
	at := time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC)

	ok, reason := validateSlotWindow(uuid.New().String(), at, at)
	if ok {
		t.Fatalf("expected invalid")
	}
	if reason != "invalid slot time range" {
		t.Fatalf("expected reason %q, got %q", "invalid slot time range", reason)
	}
}

func TestValidateSlotWindow_ZeroTimes(t *testing.T) {
	ok, reason := validateSlotWindow(uuid.New().String(), time.Time{}, time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC))
	if ok {
		t.Fatalf("expected invalid")
	}
	if reason != "invalid slot time range" {
		t.Fatalf("expected reason %q, got %q", "invalid slot time range", reason)
	}
}

func TestValidateSlotWindow_BadConsultant(t *testing.T) {
	ok, reason := validateSlotWindow(
		"consultant-1",
		time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2030, 1, 1, 11, 0, 0, 0, time.UTC),
	)
	if ok {
		t.Fatalf("expected invalid")
	}
	if reason != "invalid consultant_id" {
		t.Fatalf("expected reason %q, got %q", "invalid consultant_id", reason)
	}
}

func TestClockTime(t *testing.T) {
	cases := map[time.Duration]string{
		0:                             "00:00",
		9*time.Hour + 30*time.Minute:  "09:30",
		23*time.Hour + 59*time.Minute: "23:59",
		24 * time.Hour:                "24:00",
	}
	for d, want := range cases {
		if got := clockTime(d); got != want {
			t.Fatalf("clockTime(%s) = %q, want %q", d, got, want)
		}
	}
}

func TestParseClock(t *testing.T) {
	ok := map[string][2]int{
		"00:00": {0, 0},
		"09:30": {9, 30},
		"23:59": {23, 59},
		"24:00": {24, 0},
	}
	for in, want := range ok {
		h, m, err := parseClock(in)
		if err != nil {
			t.Fatalf("parseClock(%q): unexpected error %v", in, err)
		}
		if h != want[0] || m != want[1] {
			t.Fatalf("parseClock(%q) = %02d:%02d, want %02d:%02d", in, h, m, want[0], want[1])
		}
	}

	for _, in := range []string{"", "24:01", "24:30", "25:00", "9:30am", "12:60"} {
		if _, _, err := parseClock(in); err == nil {
			t.Fatalf("parseClock(%q): expected error", in)
		}
	}
}

func TestParseRule_EndOfDay(t *testing.T) {
	rule, err := parseRule(bookingv1.AvailabilityRule{
		ConsultantID: uuid.NewString(),
		DayOfWeek:    1,
		StartTime:    "20:00",
		EndTime:      "24:00",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.EndOffset() != 24*time.Hour {
		t.Fatalf("expected end offset 24h, got %s", rule.EndOffset())
	}
	if err := rule.Validate(); err != nil {
		t.Fatalf("expected 20:00-24:00 rule to validate, got %v", err)
	}
}
