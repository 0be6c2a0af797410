package scheduler

import (
	"context"
)

// Repository is the storage contract the Scheduler drives. Implementations
// return the scheduler's sentinel errors for the not-found and conflict cases
// below; any other error is treated as a backend failure.
type Repository interface {
	CreateCustomer(ctx context.Context, c Customer) (*Customer, error)
	ListCustomers(ctx context.Context) ([]Customer, error)

	// FindLatestCustomerByName matches name case-insensitively and returns
	// the most recently registered match, or ErrUnknownCustomer.
	FindLatestCustomerByName(ctx context.Context, name string) (*Customer, error)

	// GetAppointment returns ErrAppointmentNotFound when the slot is empty.
	GetAppointment(ctx context.Context, slot string) (*Appointment, error)
	// CreateAppointment returns ErrSlotTaken when the slot is already booked
	// and ErrUnknownCustomer when the customer does not exist.
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	// DeleteAppointment returns the removed appointment or ErrAppointmentNotFound.
	DeleteAppointment(ctx context.Context, slot string) (*Appointment, error)
	// ListAppointments returns every appointment sorted ascending by slot.
	ListAppointments(ctx context.Context) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error

	Ping(ctx context.Context) error
}
