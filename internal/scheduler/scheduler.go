// Package scheduler is the appointment engine: a customer registry and a
// single calendar where each exact date-time holds at most one appointment.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/barbershop-scheduling/internal/observability"
	redisclient "github.com/hackgods/barbershop-scheduling/internal/redis"
	"github.com/hackgods/barbershop-scheduling/internal/validate"
)

const (
	EventCustomerRegistered   = "CUSTOMER_REGISTERED"
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

// Scheduler serializes every mutation behind one lock so the slot check and
// the insert in BookAppointment cannot interleave. When a Locker is set the
// same critical section is also guarded across processes.
type Scheduler struct {
	repo    Repository
	locker  redisclient.Locker
	clock   func() time.Time
	log     *zap.Logger
	metrics *observability.Metrics

	mu sync.RWMutex
}

type Option func(*Scheduler)

// WithClock overrides time.Now for the no-past-bookings check.
func WithClock(clock func() time.Time) Option {
	return func(s *Scheduler) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLocker(locker redisclient.Locker) Option {
	return func(s *Scheduler) {
		s.locker = locker
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func New(repo Repository, opts ...Option) *Scheduler {
	s := &Scheduler{
		repo:  repo,
		clock: time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterCustomer validates the phone and stores a new customer.
func (s *Scheduler) RegisterCustomer(ctx context.Context, name, phone string) (_ *Customer, err error) {
	defer func() { s.observe("register_customer", err) }()

	if !validate.Phone(phone) {
		return nil, ErrInvalidPhoneFormat
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.repo.CreateCustomer(ctx, Customer{
		Name:      name,
		Phone:     phone,
		CreatedAt: s.clock(),
	})
	if err != nil {
		return nil, backendError("create customer", err)
	}

	id := c.ID
	s.logEvent(ctx, EventCustomerRegistered, nil, &id, map[string]any{
		"customer_id": int64(c.ID),
		"name":        c.Name,
	})
	s.log.Info("customer registered", zap.Int64("customer_id", int64(c.ID)), zap.String("name", c.Name))
	return c, nil
}

// ListCustomers returns every registered customer in registration order.
func (s *Scheduler) ListCustomers(ctx context.Context) (_ []Customer, err error) {
	defer func() { s.observe("list_customers", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	customers, err := s.repo.ListCustomers(ctx)
	if err != nil {
		return nil, backendError("list customers", err)
	}
	if customers == nil {
		customers = []Customer{}
	}
	return customers, nil
}

// BookAppointment books slot for the most recently registered customer whose
// name matches customerName case-insensitively. Checks run in order: customer
// exists, date-time is valid and not past, slot is free.
func (s *Scheduler) BookAppointment(ctx context.Context, customerName, slot string) (_ *Appointment, err error) {
	defer func() { s.observe("book_appointment", err) }()

	customer, err := s.findCustomer(ctx, customerName)
	if err != nil {
		return nil, err
	}

	startsAt, err := s.checkSlot(slot)
	if err != nil {
		return nil, err
	}

	var booked *Appointment
	err = s.withSlotLock(ctx, slot, func(lockCtx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		existing, err := s.repo.GetAppointment(lockCtx, slot)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			return backendError("check slot", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		appt, err := s.repo.CreateAppointment(lockCtx, Appointment{
			Slot:       slot,
			StartsAt:   startsAt,
			CustomerID: customer.ID,
			CreatedAt:  s.clock(),
		})
		if err != nil {
			if errors.Is(err, ErrSlotTaken) || errors.Is(err, ErrUnknownCustomer) {
				return err
			}
			return backendError("create appointment", err)
		}
		booked = appt

		id := customer.ID
		s.logEvent(lockCtx, EventAppointmentBooked, &slot, &id, map[string]any{
			"slot":          slot,
			"customer_id":   int64(customer.ID),
			"customer_name": customer.Name,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("slot", booked.Slot),
		zap.Int64("customer_id", int64(booked.CustomerID)),
		zap.String("customer_name", booked.CustomerName),
	)
	return booked, nil
}

// CancelAppointment removes the appointment at slot, leaving the slot
// immediately bookable again.
func (s *Scheduler) CancelAppointment(ctx context.Context, slot string) (_ *Appointment, err error) {
	defer func() { s.observe("cancel_appointment", err) }()

	var removed *Appointment
	err = s.withSlotLock(ctx, slot, func(lockCtx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		appt, err := s.repo.DeleteAppointment(lockCtx, slot)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return backendError("delete appointment", err)
		}
		removed = appt

		id := appt.CustomerID
		s.logEvent(lockCtx, EventAppointmentCancelled, &slot, &id, map[string]any{
			"slot": slot,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("appointment cancelled", zap.String("slot", removed.Slot), zap.String("customer_name", removed.CustomerName))
	return removed, nil
}

// ListAppointments returns every appointment sorted ascending by date-time.
func (s *Scheduler) ListAppointments(ctx context.Context) (_ []Appointment, err error) {
	defer func() { s.observe("list_appointments", err) }()

	s.mu.RLock()
	defer s.mu.RUnlock()

	appts, err := s.repo.ListAppointments(ctx)
	if err != nil {
		return nil, backendError("list appointments", err)
	}
	if appts == nil {
		appts = []Appointment{}
	}
	return appts, nil
}

// Ping checks the storage backend.
func (s *Scheduler) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return backendError("ping", err)
	}
	return nil
}

func (s *Scheduler) findCustomer(ctx context.Context, name string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, err := s.repo.FindLatestCustomerByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUnknownCustomer) {
			return nil, ErrUnknownCustomer
		}
		return nil, backendError("find customer", err)
	}
	return c, nil
}

func (s *Scheduler) checkSlot(slot string) (time.Time, error) {
	now := s.clock()
	startsAt, err := validate.ParseSlot(slot, now.Location())
	if err != nil {
		return time.Time{}, ErrDateTimeMalformed
	}
	if startsAt.Before(now) {
		return time.Time{}, ErrDateTimeInPast
	}
	return startsAt, nil
}

func (s *Scheduler) withSlotLock(ctx context.Context, slot string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}

	err := s.locker.WithSlotLock(ctx, slot, fn)
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return ErrSlotBeingBooked
	case errors.Is(err, redisclient.ErrLockUnavailable):
		return backendError("slot lock", err)
	}
	return err
}

func (s *Scheduler) logEvent(ctx context.Context, eventType string, slot *string, customerID *CustomerID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event_type", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:  eventType,
		Slot:       slot,
		CustomerID: customerID,
		Payload:    data,
		CreatedAt:  s.clock(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("failed to insert event log", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (s *Scheduler) observe(op string, err error) {
	outcome := ReasonCode(err)
	s.metrics.RecordOperation(op, outcome)

	switch {
	case err == nil:
	case IsRejection(err):
		s.log.Debug("operation rejected", zap.String("op", op), zap.String("reason", outcome))
	default:
		s.log.Error("operation failed", zap.String("op", op), zap.Error(err))
	}
}
