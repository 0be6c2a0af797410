package scheduler

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepository keeps customers and appointments in process memory.
// Everything is lost when the process exits.
type MemoryRepository struct {
	mu           sync.RWMutex
	customers    []Customer // index i holds CustomerID i+1
	appointments map[string]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		appointments: make(map[string]Appointment),
	}
}

func (r *MemoryRepository) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.ID = CustomerID(len(r.customers) + 1)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	r.customers = append(r.customers, c)
	return &c, nil
}

func (r *MemoryRepository) ListCustomers(ctx context.Context) ([]Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Customer, len(r.customers))
	copy(out, r.customers)
	return out, nil
}

func (r *MemoryRepository) FindLatestCustomerByName(ctx context.Context, name string) (*Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(name)
	for i := len(r.customers) - 1; i >= 0; i-- {
		if strings.ToLower(r.customers[i].Name) == key {
			c := r.customers[i]
			return &c, nil
		}
	}
	return nil, ErrUnknownCustomer
}

func (r *MemoryRepository) GetAppointment(ctx context.Context, slot string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[slot]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.CustomerName = r.customerName(a.CustomerID)
	return &a, nil
}

func (r *MemoryRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.appointments[a.Slot]; ok {
		return nil, ErrSlotTaken
	}
	if a.CustomerID < 1 || int(a.CustomerID) > len(r.customers) {
		return nil, ErrUnknownCustomer
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	a.CustomerName = ""
	r.appointments[a.Slot] = a

	a.CustomerName = r.customerName(a.CustomerID)
	return &a, nil
}

func (r *MemoryRepository) DeleteAppointment(ctx context.Context, slot string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[slot]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	delete(r.appointments, slot)

	a.CustomerName = r.customerName(a.CustomerID)
	return &a, nil
}

func (r *MemoryRepository) ListAppointments(ctx context.Context) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Appointment, 0, len(r.appointments))
	for _, a := range r.appointments {
		a.CustomerName = r.customerName(a.CustomerID)
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Slot < out[j].Slot
	})
	return out, nil
}

func (r *MemoryRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]EventLog, len(r.events))
	copy(out, r.events)
	return out
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// caller holds r.mu
func (r *MemoryRepository) customerName(id CustomerID) string {
	if id < 1 || int(id) > len(r.customers) {
		return ""
	}
	return r.customers[id-1].Name
}
