// Package scheduling is the single entry point of the booking scheduling
// core: slot generation, the slot ledger and the booking lifecycle behind one
// operation surface. Consumers re-read state from here after every mutation.
package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/booking"
	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/clock"
	"github.com/Leganyst/consultation-booking/internal/ledger"
	"github.com/Leganyst/consultation-booking/internal/metrics"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/internal/repository"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

const DefaultHorizonDays = 14

type Config struct {
	CancellationBuffer time.Duration
	SlotDuration       time.Duration
	HorizonDays        int
}

type Deps struct {
	Store      repository.Store
	Clock      clock.Clock
	Dispatcher booking.Dispatcher
	Metrics    *metrics.SchedulingMetrics
	Logger     *logging.Logger
}

type Service struct {
	store    repository.Store
	bookings *booking.Manager
	clock    clock.Clock
	cfg      Config
	metrics  *metrics.SchedulingMetrics
	log      *logging.Logger
	tracer   trace.Tracer
}

func New(deps Deps, cfg Config) *Service {
	if deps.Clock == nil {
		deps.Clock = clock.System{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = calendar.DefaultSlotDuration
	}
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = DefaultHorizonDays
	}

	mgr := booking.NewManager(deps.Store, booking.Options{
		CancellationBuffer: cfg.CancellationBuffer,
		Clock:              deps.Clock,
		Dispatcher:         deps.Dispatcher,
		Logger:             deps.Logger,
	})
	cfg.CancellationBuffer = mgr.CancellationBuffer()

	return &Service{
		store:    deps.Store,
		bookings: mgr,
		clock:    deps.Clock,
		cfg:      cfg,
		metrics:  deps.Metrics,
		log:      deps.Logger,
		tracer:   otel.Tracer("consultation-booking/scheduling"),
	}
}

func (s *Service) CancellationBuffer() time.Duration { return s.cfg.CancellationBuffer }

func (s *Service) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

// GenerateSlots materialises the consultant's missing slots for the dates
// [from, to] and returns the ones it stored. A second call over the same
// range with unchanged rules returns nothing.
func (s *Service) GenerateSlots(ctx context.Context, consultantID uuid.UUID, from, to time.Time) (slots []model.TimeSlot, err error) {
	ctx, done := s.begin(ctx, "generate_slots", attribute.String("consultant_id", consultantID.String()))
	defer func() { done(err) }()

	now := s.clock.Now()
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		rules, err := tx.Rules().ListByConsultant(ctx, consultantID, true)
		if err != nil {
			return err
		}

		l := ledger.New(tx.Slots())
		// правила в локальных зонах могут выходить за границы UTC-дат
		existing, err := l.Existing(ctx, consultantID, from.AddDate(0, 0, -1), to.AddDate(0, 0, 2))
		if err != nil {
			return err
		}
		taken := make([]calendar.TimeRange, 0, len(existing))
		for _, e := range existing {
			taken = append(taken, calendar.TimeRange{Start: e.StartsAt, End: e.EndsAt})
		}

		candidates, err := calendar.GenerateSlots(calendar.GenerateInput{
			ConsultantID: consultantID,
			From:         from,
			To:           to,
			Rules:        rules,
			Existing:     taken,
			SlotDuration: s.cfg.SlotDuration,
			NotBefore:    now,
		})
		if err != nil {
			return err
		}

		slots, err = l.Materialize(ctx, candidates)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveSlotsGenerated(len(slots))
	s.log.InfoContext(ctx, "slots generated",
		"consultant_id", consultantID.String(),
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
		"count", len(slots),
	)
	return slots, nil
}

// GenerateHorizon runs GenerateSlots from today over the configured horizon.
func (s *Service) GenerateHorizon(ctx context.Context, consultantID uuid.UUID) ([]model.TimeSlot, error) {
	today := calendar.DateOnly(s.clock.Now())
	return s.GenerateSlots(ctx, consultantID, today, today.AddDate(0, 0, s.cfg.HorizonDays-1))
}

// ListAvailableSlots returns unbooked slots starting at or after from,
// earliest first. A zero from means now.
func (s *Service) ListAvailableSlots(ctx context.Context, consultantID uuid.UUID, from time.Time) (slots []model.TimeSlot, err error) {
	ctx, done := s.begin(ctx, "list_available_slots", attribute.String("consultant_id", consultantID.String()))
	defer func() { done(err) }()

	if from.IsZero() {
		from = s.clock.Now()
	}
	return ledger.New(s.store.Slots()).ListAvailable(ctx, consultantID, from)
}

// CreateSlot adds a one-off slot outside the weekly rules.
func (s *Service) CreateSlot(ctx context.Context, consultantID uuid.UUID, start, end time.Time) (slot *model.TimeSlot, err error) {
	ctx, done := s.begin(ctx, "create_slot", attribute.String("consultant_id", consultantID.String()))
	defer func() { done(err) }()

	if !start.After(s.clock.Now()) {
		return nil, apperror.ErrSlotInPast
	}
	slot = &model.TimeSlot{ConsultantID: consultantID, StartsAt: start, EndsAt: end}
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		return ledger.New(tx.Slots()).Add(ctx, slot)
	})
	if err != nil {
		return nil, err
	}
	return slot, nil
}

// UpsertAvailabilityRule creates a rule (zero ID) or replaces an existing
// one. Slots already materialised keep their times.
func (s *Service) UpsertAvailabilityRule(ctx context.Context, rule *model.AvailabilityRule) (err error) {
	ctx, done := s.begin(ctx, "upsert_availability_rule", attribute.String("consultant_id", rule.ConsultantID.String()))
	defer func() { done(err) }()

	if rule.TimeZone == "" {
		rule.TimeZone = "UTC"
	}
	if err := rule.Validate(); err != nil {
		return apperror.Invalid("%s", err.Error())
	}
	return s.store.Rules().Upsert(ctx, rule)
}

func (s *Service) ListAvailabilityRules(ctx context.Context, consultantID uuid.UUID) (rules []model.AvailabilityRule, err error) {
	ctx, done := s.begin(ctx, "list_availability_rules", attribute.String("consultant_id", consultantID.String()))
	defer func() { done(err) }()

	return s.store.Rules().ListByConsultant(ctx, consultantID, false)
}

func (s *Service) CreateBooking(ctx context.Context, in booking.CreateInput) (b *model.Booking, err error) {
	ctx, done := s.begin(ctx, "create_booking", attribute.String("slot_id", in.SlotID.String()))
	defer func() { done(err) }()

	return s.bookings.Create(ctx, in)
}

func (s *Service) ConfirmBooking(ctx context.Context, bookingID, actorID uuid.UUID) (b *model.Booking, err error) {
	ctx, done := s.begin(ctx, "confirm_booking", attribute.String("booking_id", bookingID.String()))
	defer func() { done(err) }()

	return s.bookings.Confirm(ctx, bookingID, actorID)
}

func (s *Service) CancelBooking(ctx context.Context, in booking.CancelInput) (b *model.Booking, err error) {
	ctx, done := s.begin(ctx, "cancel_booking", attribute.String("booking_id", in.BookingID.String()))
	defer func() { done(err) }()

	return s.bookings.Cancel(ctx, in)
}

func (s *Service) CompleteBooking(ctx context.Context, bookingID uuid.UUID) (b *model.Booking, err error) {
	ctx, done := s.begin(ctx, "complete_booking", attribute.String("booking_id", bookingID.String()))
	defer func() { done(err) }()

	return s.bookings.Complete(ctx, bookingID)
}

func (s *Service) RescheduleBooking(ctx context.Context, in booking.RescheduleInput) (b *model.Booking, err error) {
	ctx, done := s.begin(ctx, "reschedule_booking",
		attribute.String("booking_id", in.BookingID.String()),
		attribute.String("slot_id", in.NewSlotID.String()),
	)
	defer func() { done(err) }()

	return s.bookings.Reschedule(ctx, in)
}

func (s *Service) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID) (b *model.Booking, err error) {
	ctx, done := s.begin(ctx, "get_booking", attribute.String("booking_id", bookingID.String()))
	defer func() { done(err) }()

	return s.bookings.Get(ctx, bookingID, actorID)
}

func (s *Service) ListBookings(ctx context.Context, in booking.ListInput) (page calendar.Page[model.Booking], err error) {
	ctx, done := s.begin(ctx, "list_bookings")
	defer func() { done(err) }()

	return s.bookings.List(ctx, in)
}

func (s *Service) BookingHistory(ctx context.Context, bookingID, actorID uuid.UUID) (events []model.Event, err error) {
	ctx, done := s.begin(ctx, "booking_history", attribute.String("booking_id", bookingID.String()))
	defer func() { done(err) }()

	return s.bookings.History(ctx, bookingID, actorID)
}

func (s *Service) BulkCancelWindow(ctx context.Context, in booking.BulkCancelInput) (res *booking.BulkCancelResult, err error) {
	ctx, done := s.begin(ctx, "bulk_cancel_window", attribute.String("consultant_id", in.ConsultantID.String()))
	defer func() { done(err) }()

	return s.bookings.BulkCancelWindow(ctx, in)
}

// begin opens a span for op; the returned func records the outcome.
func (s *Service) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, "scheduling."+op, trace.WithAttributes(attrs...))

	return ctx, func(err error) {
		defer span.End()
		s.metrics.ObserveOperation(op, started, err)
		if err == nil {
			return
		}

		span.RecordError(err)
		span.SetStatus(otelcodes.Error, metrics.Outcome(err))
		if errors.Is(err, apperror.ErrStoreUnavailable) {
			s.log.ErrorContext(ctx, "scheduling operation failed", "op", op, "error", err)
			return
		}
		s.log.DebugContext(ctx, "scheduling operation rejected", "op", op, "error", err)
	}
}
