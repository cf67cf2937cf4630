package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/consultation-booking/internal/apperror"
	"github.com/Leganyst/consultation-booking/internal/model"
)

// MemoryStore keeps everything in process memory. One mutex guards all state,
// so every single operation is atomic; Transaction holds it for the whole
// callback and restores a snapshot when the callback fails.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
	view  *memView
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{state: newMemState()}
	s.view = &memView{st: s.state, locker: &s.mu}
	return s
}

func (s *MemoryStore) Slots() SlotRepository       { return memSlots{s.view} }
func (s *MemoryStore) Bookings() BookingRepository { return memBookings{s.view} }
func (s *MemoryStore) Rules() RuleRepository       { return memRules{s.view} }
func (s *MemoryStore) Events() EventRepository     { return memEvents{s.view} }

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return apperror.StoreUnavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	tx := &memTx{view: &memView{st: s.state}}
	if err := fn(tx); err != nil {
		*s.state = *snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

// memTx is the store seen inside a transaction; the lock is already held.
type memTx struct {
	view *memView
}

func (t *memTx) Slots() SlotRepository       { return memSlots{t.view} }
func (t *memTx) Bookings() BookingRepository { return memBookings{t.view} }
func (t *memTx) Rules() RuleRepository       { return memRules{t.view} }
func (t *memTx) Events() EventRepository     { return memEvents{t.view} }

// Nested transactions join the outer one.
func (t *memTx) Transaction(_ context.Context, fn func(tx Store) error) error { return fn(t) }

func (t *memTx) Ping(context.Context) error { return nil }

type memState struct {
	slots    map[uuid.UUID]model.TimeSlot
	bookings map[uuid.UUID]model.Booking
	rules    map[uuid.UUID]model.AvailabilityRule
	events   []model.Event
}

func newMemState() *memState {
	return &memState{
		slots:    make(map[uuid.UUID]model.TimeSlot),
		bookings: make(map[uuid.UUID]model.Booking),
		rules:    make(map[uuid.UUID]model.AvailabilityRule),
	}
}

func (st *memState) clone() *memState {
	c := newMemState()
	for k, v := range st.slots {
		c.slots[k] = v
	}
	for k, v := range st.bookings {
		c.bookings[k] = v
	}
	for k, v := range st.rules {
		c.rules[k] = v
	}
	c.events = slices.Clone(st.events)
	return c
}

type memView struct {
	st     *memState
	locker sync.Locker // nil inside a transaction
}

func (v *memView) enter(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	if v.locker == nil {
		return func() {}, nil
	}
	v.locker.Lock()
	return v.locker.Unlock, nil
}

func now() time.Time { return time.Now().UTC() }

func ptr[T any](v T) *T { return &v }

// slots

type memSlots struct{ v *memView }

func (r memSlots) Create(ctx context.Context, slot *model.TimeSlot) error {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if r.startTaken(slot) {
		return apperror.ErrSlotOverlap
	}
	r.insert(slot)
	return nil
}

func (r memSlots) CreateIfAbsent(ctx context.Context, slot *model.TimeSlot) (bool, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	if r.startTaken(slot) {
		return false, nil
	}
	r.insert(slot)
	return true, nil
}

func (r memSlots) startTaken(slot *model.TimeSlot) bool {
	for _, s := range r.v.st.slots {
		if s.ConsultantID == slot.ConsultantID && s.StartsAt.Equal(slot.StartsAt) {
			return true
		}
	}
	return false
}

func (r memSlots) insert(slot *model.TimeSlot) {
	_ = slot.BeforeCreate(nil)
	ts := now()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = ts
	}
	slot.UpdatedAt = ts
	r.v.st.slots[slot.ID] = *slot
}

func (r memSlots) GetByID(ctx context.Context, id uuid.UUID) (*model.TimeSlot, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	s, ok := r.v.st.slots[id]
	if !ok {
		return nil, apperror.ErrSlotNotFound
	}
	return &s, nil
}

func (r memSlots) ListFree(ctx context.Context, consultantID uuid.UUID, from time.Time) ([]model.TimeSlot, error) {
	return r.list(ctx, func(s model.TimeSlot) bool {
		return s.ConsultantID == consultantID && !s.Booked && !s.StartsAt.Before(from)
	})
}

func (r memSlots) ListByConsultantRange(ctx context.Context, consultantID uuid.UUID, from, to time.Time) ([]model.TimeSlot, error) {
	return r.list(ctx, func(s model.TimeSlot) bool {
		return s.ConsultantID == consultantID && s.StartsAt.Before(to) && s.EndsAt.After(from)
	})
}

func (r memSlots) list(ctx context.Context, keep func(model.TimeSlot) bool) ([]model.TimeSlot, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := []model.TimeSlot{}
	for _, s := range r.v.st.slots {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r memSlots) Claim(ctx context.Context, slotID, bookingID uuid.UUID) (int64, error) {
	return r.update(ctx, slotID, func(s *model.TimeSlot) bool {
		if s.Booked {
			return false
		}
		s.Booked = true
		s.BookingID = ptr(bookingID)
		return true
	})
}

func (r memSlots) Release(ctx context.Context, slotID, bookingID uuid.UUID, at time.Time) (int64, error) {
	return r.update(ctx, slotID, func(s *model.TimeSlot) bool {
		if s.BookingID == nil || *s.BookingID != bookingID || s.ReleasedAt != nil {
			return false
		}
		s.ReleasedAt = ptr(at)
		return true
	})
}

func (r memSlots) Withdraw(ctx context.Context, slotID uuid.UUID, at time.Time) (int64, error) {
	return r.update(ctx, slotID, func(s *model.TimeSlot) bool {
		if s.Booked {
			return false
		}
		s.Booked = true
		s.ReleasedAt = ptr(at)
		return true
	})
}

func (r memSlots) update(ctx context.Context, id uuid.UUID, apply func(*model.TimeSlot) bool) (int64, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	s, ok := r.v.st.slots[id]
	if !ok || !apply(&s) {
		return 0, nil
	}
	s.UpdatedAt = now()
	r.v.st.slots[id] = s
	return 1, nil
}

// bookings

type memBookings struct{ v *memView }

func (r memBookings) Create(ctx context.Context, booking *model.Booking) error {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	for _, b := range r.v.st.bookings {
		if b.SlotID == booking.SlotID {
			return apperror.ErrSlotAlreadyBooked
		}
	}
	_ = booking.BeforeCreate(nil)
	ts := now()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = ts
	}
	booking.UpdatedAt = ts

	stored := *booking
	stored.Slot = nil
	r.v.st.bookings[booking.ID] = stored
	return nil
}

func (r memBookings) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, ok := r.v.st.bookings[id]
	if !ok {
		return nil, apperror.ErrBookingNotFound
	}
	return r.withSlot(b), nil
}

// The memory store serializes transactions, which already covers row locking.
func (r memBookings) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r memBookings) withSlot(b model.Booking) *model.Booking {
	if s, ok := r.v.st.slots[b.SlotID]; ok {
		b.Slot = &s
	}
	return &b
}

func (r memBookings) Update(ctx context.Context, booking *model.Booking) error {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	cur, ok := r.v.st.bookings[booking.ID]
	if !ok {
		return apperror.ErrBookingNotFound
	}
	if booking.SlotID != cur.SlotID {
		for id, b := range r.v.st.bookings {
			if id != booking.ID && b.SlotID == booking.SlotID {
				return apperror.ErrSlotAlreadyBooked
			}
		}
	}

	cur.Status = booking.Status
	cur.SlotID = booking.SlotID
	cur.Notes = booking.Notes
	cur.ConfirmedAt = booking.ConfirmedAt
	cur.CompletedAt = booking.CompletedAt
	cur.CancelledAt = booking.CancelledAt
	cur.CancelledBy = booking.CancelledBy
	cur.CancelReason = booking.CancelReason
	cur.UpdatedAt = now()
	r.v.st.bookings[booking.ID] = cur
	booking.UpdatedAt = cur.UpdatedAt
	return nil
}

func (r memBookings) List(ctx context.Context, f BookingFilter) ([]model.Booking, int64, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer unlock()

	matched := []model.Booking{}
	for _, b := range r.v.st.bookings {
		if f.ClientID != nil && b.ClientID != *f.ClientID {
			continue
		}
		if f.ConsultantID != nil && b.ConsultantID != *f.ConsultantID {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status) {
			continue
		}
		if !f.SlotFrom.IsZero() || !f.SlotTo.IsZero() {
			s, ok := r.v.st.slots[b.SlotID]
			if !ok {
				continue
			}
			if !f.SlotFrom.IsZero() && s.StartsAt.Before(f.SlotFrom) {
				continue
			}
			if !f.SlotTo.IsZero() && !s.StartsAt.Before(f.SlotTo) {
				continue
			}
		}
		matched = append(matched, b)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	total := int64(len(matched))
	if f.Limit > 0 {
		start := min(f.Offset, len(matched))
		end := min(start+f.Limit, len(matched))
		matched = matched[start:end]
	}

	out := make([]model.Booking, 0, len(matched))
	for _, b := range matched {
		out = append(out, *r.withSlot(b))
	}
	return out, total, nil
}

// rules

type memRules struct{ v *memView }

func (r memRules) Upsert(ctx context.Context, rule *model.AvailabilityRule) error {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ts := now()
	if rule.ID == uuid.Nil {
		_ = rule.BeforeCreate(nil)
		rule.CreatedAt = ts
		rule.UpdatedAt = ts
		r.v.st.rules[rule.ID] = *rule
		return nil
	}

	cur, ok := r.v.st.rules[rule.ID]
	if !ok || cur.ConsultantID != rule.ConsultantID {
		return apperror.ErrRuleNotFound
	}
	rule.CreatedAt = cur.CreatedAt
	rule.UpdatedAt = ts
	r.v.st.rules[rule.ID] = *rule
	return nil
}

func (r memRules) GetByID(ctx context.Context, id uuid.UUID) (*model.AvailabilityRule, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	rule, ok := r.v.st.rules[id]
	if !ok {
		return nil, apperror.ErrRuleNotFound
	}
	return &rule, nil
}

func (r memRules) ListByConsultant(ctx context.Context, consultantID uuid.UUID, activeOnly bool) ([]model.AvailabilityRule, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := []model.AvailabilityRule{}
	for _, rule := range r.v.st.rules {
		if rule.ConsultantID != consultantID || (activeOnly && !rule.Active) {
			continue
		}
		out = append(out, rule)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

// events

type memEvents struct{ v *memView }

func (r memEvents) Append(ctx context.Context, event *model.Event) error {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	_ = event.BeforeCreate(nil)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now()
	}
	r.v.st.events = append(r.v.st.events, *event)
	return nil
}

func (r memEvents) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error) {
	unlock, err := r.v.enter(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	out := []model.Event{}
	for _, e := range r.v.st.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}
