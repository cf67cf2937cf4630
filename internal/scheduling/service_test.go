package scheduling

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/booking"
	"github.com/Leganyst/consultation-booking/internal/clock"
	"github.com/Leganyst/consultation-booking/internal/db"
	"github.com/Leganyst/consultation-booking/internal/metrics"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/notify"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// Week of Saturday 2030-06-01 .. Friday 2030-06-07, Monday is 2030-06-03.
var (
	weekStart = time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	weekEnd   = time.Date(2030, 6, 7, 0, 0, 0, 0, time.UTC)
	monday9   = time.Date(2030, 6, 3, 9, 0, 0, 0, time.UTC)
)

type harness struct {
	svc        *Service
	registry   *prometheus.Registry
	clock      *clock.Manual
	metrics    *metrics.SchedulingMetrics
	dispatched []model.LifecycleEvent
	consultant uuid.UUID
}

func newHarness(t *testing.T, store repository.Store) *harness {
	t.Helper()
	h := &harness{
		registry:   prometheus.NewRegistry(),
		clock:      clock.NewManual(time.Date(2030, 5, 20, 12, 0, 0, 0, time.UTC)),
		consultant: uuid.New(),
	}
	h.metrics = metrics.NewSchedulingMetrics(h.registry)
	record := notify.DispatcherFunc(func(_ context.Context, ev model.LifecycleEvent) error {
		h.dispatched = append(h.dispatched, ev)
		return nil
	})
	h.svc = New(Deps{
		Store:      store,
		Clock:      h.clock,
		Dispatcher: record,
		Metrics:    h.metrics,
		Logger:     logging.Discard(),
	}, Config{CancellationBuffer: 24 * time.Hour, SlotDuration: time.Hour, HorizonDays: 14})
	return h
}

func stores(t *testing.T) map[string]func(t *testing.T) repository.Store {
	return map[string]func(t *testing.T) repository.Store{
		"memory": func(*testing.T) repository.Store { return repository.NewMemoryStore() },
		"gorm": func(t *testing.T) repository.Store {
			gdb, err := db.NewTestDB(strings.ReplaceAll(t.Name(), "/", "_"))
			require.NoError(t, err)
			require.NoError(t, model.AutoMigrate(gdb))
			sqlDB, err := gdb.DB()
			require.NoError(t, err)
			t.Cleanup(func() { _ = sqlDB.Close() })
			return repository.NewGormStore(gdb)
		},
	}
}

func (h *harness) mondayRule(t *testing.T) model.AvailabilityRule {
	t.Helper()
	rule := model.AvailabilityRule{
		ConsultantID: h.consultant,
		DayOfWeek:    int(time.Monday),
		StartTime:    datatypes.NewTime(9, 0, 0, 0),
		EndTime:      datatypes.NewTime(11, 0, 0, 0),
		Active:       true,
	}
	require.NoError(t, h.svc.UpsertAvailabilityRule(context.Background(), &rule))
	return rule
}

func TestExampleScenario(t *testing.T) {
	for name, mk := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, mk(t))
			h.mondayRule(t)

			slots, err := h.svc.GenerateSlots(ctx, h.consultant, weekStart, weekEnd)
			require.NoError(t, err)
			require.Len(t, slots, 2)
			assert.True(t, slots[0].StartsAt.Equal(monday9))
			assert.True(t, slots[0].EndsAt.Equal(monday9.Add(time.Hour)))
			assert.True(t, slots[1].StartsAt.Equal(monday9.Add(time.Hour)))
			assert.True(t, slots[1].EndsAt.Equal(monday9.Add(2*time.Hour)))

			again, err := h.svc.GenerateSlots(ctx, h.consultant, weekStart, weekEnd)
			require.NoError(t, err)
			assert.Empty(t, again, "generation is idempotent")

			available, err := h.svc.ListAvailableSlots(ctx, h.consultant, time.Time{})
			require.NoError(t, err)
			require.Len(t, available, 2)

			b, err := h.svc.CreateBooking(ctx, booking.CreateInput{ClientID: uuid.New(), ConsultantID: h.consultant, SlotID: available[0].ID})
			require.NoError(t, err)
			assert.Equal(t, model.BookingStatusPending, b.Status)

			_, err = h.svc.CreateBooking(ctx, booking.CreateInput{ClientID: uuid.New(), ConsultantID: h.consultant, SlotID: available[0].ID})
			assert.ErrorIs(t, err, apperror.ErrSlotAlreadyBooked)

			left, err := h.svc.ListAvailableSlots(ctx, h.consultant, time.Time{})
			require.NoError(t, err)
			require.Len(t, left, 1)
			assert.Equal(t, available[1].ID, left[0].ID)

			require.Len(t, h.dispatched, 1)
			assert.Equal(t, model.EventTypeBookingCreated, h.dispatched[0].Type)
			assert.Equal(t, b.ID, h.dispatched[0].BookingID)
			assert.Equal(t, h.consultant, h.dispatched[0].ConsultantID)
		})
	}
}

func TestGenerateSlots_InvalidRangeAndNoRules(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repository.NewMemoryStore())

	_, err := h.svc.GenerateSlots(ctx, h.consultant, weekEnd, weekStart)
	assert.ErrorIs(t, err, apperror.ErrInvalidRange)

	slots, err := h.svc.GenerateSlots(ctx, h.consultant, weekStart, weekEnd)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestGenerateHorizon_SkipsPast(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repository.NewMemoryStore())
	h.mondayRule(t)
	h.clock.Set(monday9.Add(30 * time.Minute))

	slots, err := h.svc.GenerateHorizon(ctx, h.consultant)
	require.NoError(t, err)
	// 10:00 today plus both slots of the following Monday
	require.Len(t, slots, 3)
	assert.True(t, slots[0].StartsAt.Equal(monday9.Add(time.Hour)))
}

func TestRulesChangeDoesNotTouchExistingSlots(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repository.NewMemoryStore())
	rule := h.mondayRule(t)

	_, err := h.svc.GenerateSlots(ctx, h.consultant, weekStart, weekEnd)
	require.NoError(t, err)

	rule.StartTime = datatypes.NewTime(10, 30, 0, 0)
	rule.EndTime = datatypes.NewTime(12, 30, 0, 0)
	require.NoError(t, h.svc.UpsertAvailabilityRule(ctx, &rule))

	added, err := h.svc.GenerateSlots(ctx, h.consultant, weekStart, weekEnd)
	require.NoError(t, err)
	// 10:30 and 11:30 would overlap the 10:00 slot; only 11:30-12:30 fits
	require.Len(t, added, 1)
	assert.Equal(t, 11, added[0].StartsAt.Hour())

	all, err := h.svc.ListAvailableSlots(ctx, h.consultant, weekStart)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	rules, err := h.svc.ListAvailabilityRules(ctx, h.consultant)
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestUpsertAvailabilityRule_Invalid(t *testing.T) {
	h := newHarness(t, repository.NewMemoryStore())
	rule := model.AvailabilityRule{
		ConsultantID: h.consultant,
		DayOfWeek:    1,
		StartTime:    datatypes.NewTime(11, 0, 0, 0),
		EndTime:      datatypes.NewTime(9, 0, 0, 0),
	}
	assert.ErrorIs(t, h.svc.UpsertAvailabilityRule(context.Background(), &rule), apperror.ErrInvalidArgument)

	rule.EndTime = datatypes.NewTime(12, 0, 0, 0)
	rule.TimeZone = "Mars/Olympus"
	assert.ErrorIs(t, h.svc.UpsertAvailabilityRule(context.Background(), &rule), apperror.ErrInvalidArgument)
}

func TestCreateSlot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repository.NewMemoryStore())

	slot, err := h.svc.CreateSlot(ctx, h.consultant, monday9, monday9.Add(45*time.Minute))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, slot.ID)

	_, err = h.svc.CreateSlot(ctx, h.consultant, monday9.Add(30*time.Minute), monday9.Add(time.Hour))
	assert.ErrorIs(t, err, apperror.ErrSlotOverlap)

	_, err = h.svc.CreateSlot(ctx, h.consultant, h.clock.Now().Add(-time.Hour), h.clock.Now())
	assert.ErrorIs(t, err, apperror.ErrSlotInPast)

	_, err = h.svc.CreateSlot(ctx, h.consultant, monday9.Add(2*time.Hour), monday9.Add(time.Hour))
	assert.ErrorIs(t, err, apperror.ErrInvalidRange)
}

func TestOperationsAreMetered(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, repository.NewMemoryStore())
	h.mondayRule(t)

	slots, err := h.svc.GenerateSlots(ctx, h.consultant, weekStart, weekEnd)
	require.NoError(t, err)
	_, err = h.svc.CreateBooking(ctx, booking.CreateInput{ClientID: uuid.New(), SlotID: slots[0].ID})
	require.NoError(t, err)
	_, err = h.svc.CreateBooking(ctx, booking.CreateInput{ClientID: uuid.New(), SlotID: slots[0].ID})
	require.Error(t, err)

	// upsert, generate, create ok, create conflict
	n, err := testutil.GatherAndCount(h.registry, "booking_scheduling_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	expected := `
# HELP booking_ledger_claim_conflicts_total Slot claims lost because the slot was already booked
# TYPE booking_ledger_claim_conflicts_total counter
booking_ledger_claim_conflicts_total 1
# HELP booking_generator_slots_generated_total Slots materialised from availability rules
# TYPE booking_generator_slots_generated_total counter
booking_generator_slots_generated_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(h.registry, strings.NewReader(expected),
		"booking_ledger_claim_conflicts_total", "booking_generator_slots_generated_total"))
}
