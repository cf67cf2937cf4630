package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	bookingv1 "github.com/Leganyst/consultation-booking/internal/api/booking/v1"
	"github.com/Leganyst/consultation-booking/internal/auth"
	"github.com/Leganyst/consultation-booking/internal/booking"
	"github.com/Leganyst/consultation-booking/internal/calendar"
	"github.com/Leganyst/consultation-booking/internal/model"
	"github.com/Leganyst/consultation-booking/pkg/logging"
)

// Scheduler is the operation surface of the scheduling core.
type Scheduler interface {
	GenerateSlots(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]model.TimeSlot, error)
	ListAvailableSlots(ctx context.Context, consultantID uuid.UUID, from time.Time) ([]model.TimeSlot, error)
	CreateSlot(ctx context.Context, consultantID uuid.UUID, start, end time.Time) (*model.TimeSlot, error)
	UpsertAvailabilityRule(ctx context.Context, rule *model.AvailabilityRule) error
	ListAvailabilityRules(ctx context.Context, consultantID uuid.UUID) ([]model.AvailabilityRule, error)
	CreateBooking(ctx context.Context, in booking.CreateInput) (*model.Booking, error)
	ConfirmBooking(ctx context.Context, bookingID, actorID uuid.UUID) (*model.Booking, error)
	CancelBooking(ctx context.Context, in booking.CancelInput) (*model.Booking, error)
	CompleteBooking(ctx context.Context, bookingID uuid.UUID) (*model.Booking, error)
	RescheduleBooking(ctx context.Context, in booking.RescheduleInput) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID, actorID uuid.UUID) (*model.Booking, error)
	ListBookings(ctx context.Context, in booking.ListInput) (calendar.Page[model.Booking], error)
	BookingHistory(ctx context.Context, bookingID, actorID uuid.UUID) ([]model.Event, error)
	BulkCancelWindow(ctx context.Context, in booking.BulkCancelInput) (*booking.BulkCancelResult, error)
}

// CalendarService: gRPC-фасад над ядром планирования.
// The caller comes from the auth interceptor, never from the request body.
type CalendarService struct {
	scheduler Scheduler
	validate  *validator.Validate
	log       *logging.Logger
}

var _ bookingv1.BookingServiceServer = (*CalendarService)(nil)

func NewCalendarService(scheduler Scheduler, log *logging.Logger) *CalendarService {
	if log == nil {
		log = logging.Default()
	}
	return &CalendarService{
		scheduler: scheduler,
		validate:  newValidator(),
		log:       log,
	}
}

// GenerateSlots: материализация слотов из правил за диапазон дат.
func (s *CalendarService) GenerateSlots(ctx context.Context, req *bookingv1.GenerateSlotsRequest) (*bookingv1.SlotsResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	consultantID := uuid.MustParse(req.ConsultantID)
	if _, err := s.managing(ctx, consultantID); err != nil {
		return nil, err
	}

	from, _ := time.Parse(time.DateOnly, req.From)
	to, _ := time.Parse(time.DateOnly, req.To)
	slots, err := s.scheduler.GenerateSlots(ctx, consultantID, from, to)
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.SlotsResponse{Slots: mapSlots(slots)}, nil
}

// ListAvailableSlots: свободные слоты консультанта, по возрастанию начала.
func (s *CalendarService) ListAvailableSlots(ctx context.Context, req *bookingv1.ListAvailableSlotsRequest) (*bookingv1.SlotsResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if _, err := caller(ctx); err != nil {
		return nil, err
	}

	var from time.Time
	if req.From != nil {
		from = req.From.UTC()
	}
	slots, err := s.scheduler.ListAvailableSlots(ctx, uuid.MustParse(req.ConsultantID), from)
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.SlotsResponse{Slots: mapSlots(slots)}, nil
}

func (s *CalendarService) CreateSlot(ctx context.Context, req *bookingv1.CreateSlotRequest) (*bookingv1.SlotResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if ok, reason := validateSlotWindow(req.ConsultantID, req.StartsAt, req.EndsAt); !ok {
		return nil, status.Error(codes.InvalidArgument, reason)
	}
	consultantID := uuid.MustParse(req.ConsultantID)
	if _, err := s.managing(ctx, consultantID); err != nil {
		return nil, err
	}

	slot, err := s.scheduler.CreateSlot(ctx, consultantID, req.StartsAt.UTC(), req.EndsAt.UTC())
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.SlotResponse{Slot: mapSlot(*slot)}, nil
}

func (s *CalendarService) UpsertAvailabilityRule(ctx context.Context, req *bookingv1.UpsertRuleRequest) (*bookingv1.RuleResponse, error) {
	if err := s.check(&req.Rule); err != nil {
		return nil, err
	}
	rule, err := parseRule(req.Rule)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.managing(ctx, rule.ConsultantID); err != nil {
		return nil, err
	}

	if err := s.scheduler.UpsertAvailabilityRule(ctx, rule); err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.RuleResponse{Rule: mapRule(*rule)}, nil
}

func (s *CalendarService) ListAvailabilityRules(ctx context.Context, req *bookingv1.ListRulesRequest) (*bookingv1.RulesResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	consultantID := uuid.MustParse(req.ConsultantID)
	if _, err := s.managing(ctx, consultantID); err != nil {
		return nil, err
	}

	rules, err := s.scheduler.ListAvailabilityRules(ctx, consultantID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &bookingv1.RulesResponse{Rules: make([]bookingv1.AvailabilityRule, 0, len(rules))}
	for _, r := range rules {
		resp.Rules = append(resp.Rules, mapRule(r))
	}
	return resp, nil
}

// CreateBooking: запись клиента на слот.
func (s *CalendarService) CreateBooking(ctx context.Context, req *bookingv1.CreateBookingRequest) (*bookingv1.BookingResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if !id.Is(auth.RoleClient) {
		return nil, status.Error(codes.PermissionDenied, "only clients can book consultations")
	}

	in := booking.CreateInput{
		ClientID: id.UserID,
		SlotID:   uuid.MustParse(req.SlotID),
		Notes:    req.Notes,
	}
	if req.ConsultantID != "" {
		in.ConsultantID = uuid.MustParse(req.ConsultantID)
	}
	b, err := s.scheduler.CreateBooking(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.BookingResponse{Booking: mapBooking(b)}, nil
}

func (s *CalendarService) ConfirmBooking(ctx context.Context, req *bookingv1.ConfirmBookingRequest) (*bookingv1.BookingResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.scheduler.ConfirmBooking(ctx, uuid.MustParse(req.BookingID), id.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.BookingResponse{Booking: mapBooking(b)}, nil
}

func (s *CalendarService) CancelBooking(ctx context.Context, req *bookingv1.CancelBookingRequest) (*bookingv1.BookingResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.scheduler.CancelBooking(ctx, booking.CancelInput{
		BookingID: uuid.MustParse(req.BookingID),
		ActorID:   id.UserID,
		Reason:    req.Reason,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.BookingResponse{Booking: mapBooking(b)}, nil
}

// CompleteBooking: консультант (или админ) закрывает прошедшую сессию.
func (s *CalendarService) CompleteBooking(ctx context.Context, req *bookingv1.CompleteBookingRequest) (*bookingv1.BookingResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	bookingID := uuid.MustParse(req.BookingID)

	switch id.Role {
	case auth.RoleAdmin:
	case auth.RoleConsultant:
		current, err := s.scheduler.GetBooking(ctx, bookingID, id.UserID)
		if err != nil {
			return nil, toStatus(err)
		}
		if current.ConsultantID != id.UserID {
			return nil, status.Error(codes.PermissionDenied, "only the consultant can complete a booking")
		}
	default:
		return nil, status.Error(codes.PermissionDenied, "only the consultant can complete a booking")
	}

	b, err := s.scheduler.CompleteBooking(ctx, bookingID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.BookingResponse{Booking: mapBooking(b)}, nil
}

func (s *CalendarService) RescheduleBooking(ctx context.Context, req *bookingv1.RescheduleBookingRequest) (*bookingv1.BookingResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.scheduler.RescheduleBooking(ctx, booking.RescheduleInput{
		BookingID: uuid.MustParse(req.BookingID),
		NewSlotID: uuid.MustParse(req.NewSlotID),
		ActorID:   id.UserID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.BookingResponse{Booking: mapBooking(b)}, nil
}

func (s *CalendarService) GetBooking(ctx context.Context, req *bookingv1.GetBookingRequest) (*bookingv1.BookingResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	b, err := s.scheduler.GetBooking(ctx, uuid.MustParse(req.BookingID), id.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &bookingv1.BookingResponse{Booking: mapBooking(b)}, nil
}

// ListBookings: записи вызывающего, новые сверху, постранично.
func (s *CalendarService) ListBookings(ctx context.Context, req *bookingv1.ListBookingsRequest) (*bookingv1.ListBookingsResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	statuses := make([]model.BookingStatus, 0, len(req.Statuses))
	for _, st := range req.Statuses {
		statuses = append(statuses, model.BookingStatus(st))
	}
	page, err := s.scheduler.ListBookings(ctx, booking.ListInput{
		UserID:       id.UserID,
		AsConsultant: id.Is(auth.RoleConsultant),
		Statuses:     statuses,
		Page:         calendar.PageRequest{Page: req.Page, Size: req.PageSize},
	})
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &bookingv1.ListBookingsResponse{
		Bookings:   make([]bookingv1.Booking, 0, len(page.Items)),
		TotalCount: page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		HasNext:    page.HasNext,
	}
	for i := range page.Items {
		resp.Bookings = append(resp.Bookings, mapBooking(&page.Items[i]))
	}
	return resp, nil
}

func (s *CalendarService) BookingHistory(ctx context.Context, req *bookingv1.BookingHistoryRequest) (*bookingv1.BookingHistoryResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	events, err := s.scheduler.BookingHistory(ctx, uuid.MustParse(req.BookingID), id.UserID)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &bookingv1.BookingHistoryResponse{Events: make([]bookingv1.Event, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, mapEvent(e))
	}
	return resp, nil
}

// BulkCancelWindow отменяет все активные записи консультанта в окне
// и снимает свободные слоты из этого окна.
func (s *CalendarService) BulkCancelWindow(ctx context.Context, req *bookingv1.BulkCancelRequest) (*bookingv1.BulkCancelResponse, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if ok, reason := validateSlotWindow(req.ConsultantID, req.From, req.To); !ok {
		return nil, status.Error(codes.InvalidArgument, reason)
	}
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.scheduler.BulkCancelWindow(ctx, booking.BulkCancelInput{
		ConsultantID: uuid.MustParse(req.ConsultantID),
		ActorID:      id.UserID,
		From:         req.From.UTC(),
		To:           req.To.UTC(),
		Reason:       req.Reason,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	s.log.InfoContext(ctx, "bulk cancel window",
		"consultant_id", req.ConsultantID,
		"cancelled", len(res.Cancelled),
		"withdrawn_slots", res.WithdrawnSlots,
	)

	resp := &bookingv1.BulkCancelResponse{
		Cancelled:      make([]bookingv1.Booking, 0, len(res.Cancelled)),
		WithdrawnSlots: res.WithdrawnSlots,
	}
	for i := range res.Cancelled {
		resp.Cancelled = append(resp.Cancelled, mapBooking(&res.Cancelled[i]))
	}
	return resp, nil
}

func caller(ctx context.Context) (auth.Identity, error) {
	id, err := auth.FromContext(ctx)
	if err != nil {
		return auth.Identity{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	return id, nil
}

// managing resolves the caller and checks it may act on the consultant's calendar.
func (s *CalendarService) managing(ctx context.Context, consultantID uuid.UUID) (auth.Identity, error) {
	id, err := caller(ctx)
	if err != nil {
		return auth.Identity{}, err
	}
	if !id.ManagesConsultant(consultantID) {
		return auth.Identity{}, status.Error(codes.PermissionDenied, "only the consultant can manage their calendar")
	}
	return id, nil
}
