// Package menu is the interactive text front end over the scheduler.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hackgods/barbershop-scheduling/internal/scheduler"
)

type Service interface {
	RegisterCustomer(ctx context.Context, name, phone string) (*scheduler.Customer, error)
	ListCustomers(ctx context.Context) ([]scheduler.Customer, error)
	BookAppointment(ctx context.Context, customerName, slot string) (*scheduler.Appointment, error)
	CancelAppointment(ctx context.Context, slot string) (*scheduler.Appointment, error)
	ListAppointments(ctx context.Context) ([]scheduler.Appointment, error)
}

type Menu struct {
	svc Service
	in  *bufio.Scanner
	out io.Writer
}

func New(svc Service, in io.Reader, out io.Writer) *Menu {
	return &Menu{
		svc: svc,
		in:  bufio.NewScanner(in),
		out: out,
	}
}

// Run loops until the user picks exit, input ends or ctx is done.
func (m *Menu) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.printOptions()
		choice, ok := m.prompt("Choose an option: ")
		if !ok {
			return m.in.Err()
		}

		switch strings.TrimSpace(choice) {
		case "1":
			m.register(ctx)
		case "2":
			m.listCustomers(ctx)
		case "3":
			m.book(ctx)
		case "4":
			m.listAppointments(ctx)
		case "5":
			m.cancel(ctx)
		case "6":
			m.println("Goodbye!")
			return nil
		default:
			m.println("Invalid option. Try again.")
		}
	}
}

func (m *Menu) printOptions() {
	m.println("")
	m.println("Barbershop scheduling")
	m.println("1. Register customer")
	m.println("2. List customers")
	m.println("3. Book appointment")
	m.println("4. List appointments")
	m.println("5. Cancel appointment")
	m.println("6. Exit")
}

func (m *Menu) register(ctx context.Context) {
	name, ok := m.prompt("Customer name: ")
	if !ok {
		return
	}
	phone, ok := m.prompt("Customer phone (e.g. (11) 91234-5678): ")
	if !ok {
		return
	}

	c, err := m.svc.RegisterCustomer(ctx, name, phone)
	if err != nil {
		m.reportError(err)
		return
	}
	m.printf("Customer %s registered.\n", c.Name)
}

func (m *Menu) listCustomers(ctx context.Context) {
	customers, err := m.svc.ListCustomers(ctx)
	if err != nil {
		m.reportError(err)
		return
	}
	if len(customers) == 0 {
		m.println("No customers registered.")
		return
	}

	m.println("Registered customers:")
	for _, c := range customers {
		m.printf("%s - %s\n", c.Name, c.Phone)
	}
}

func (m *Menu) book(ctx context.Context) {
	name, ok := m.prompt("Customer name: ")
	if !ok {
		return
	}
	slot, ok := m.prompt("Date and time (e.g. 2030-10-10 15:30): ")
	if !ok {
		return
	}

	appt, err := m.svc.BookAppointment(ctx, name, slot)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrUnknownCustomer):
			m.printf("Customer %s not found.\n", name)
		case errors.Is(err, scheduler.ErrSlotTaken):
			if holder, ok := m.slotHolder(ctx, slot); ok {
				m.printf("There is already an appointment for %s at %s.\n", holder, slot)
			} else {
				m.printf("There is already an appointment at %s.\n", slot)
			}
		default:
			m.reportError(err)
		}
		return
	}
	m.printf("Appointment confirmed for %s at %s.\n", appt.CustomerName, appt.Slot)
}

// slotHolder names the customer booked at slot. A failed lookup is not
// reported; the caller falls back to a message without the name.
func (m *Menu) slotHolder(ctx context.Context, slot string) (string, bool) {
	appts, err := m.svc.ListAppointments(ctx)
	if err != nil {
		return "", false
	}
	for _, a := range appts {
		if a.Slot == slot {
			return a.CustomerName, true
		}
	}
	return "", false
}

func (m *Menu) listAppointments(ctx context.Context) {
	appts, err := m.svc.ListAppointments(ctx)
	if err != nil {
		m.reportError(err)
		return
	}
	if len(appts) == 0 {
		m.println("No appointments booked.")
		return
	}

	m.println("Booked appointments:")
	for _, a := range appts {
		m.printf("%s: %s\n", a.Slot, a.CustomerName)
	}
}

func (m *Menu) cancel(ctx context.Context) {
	slot, ok := m.prompt("Date and time to cancel (e.g. 2030-10-10 15:30): ")
	if !ok {
		return
	}

	appt, err := m.svc.CancelAppointment(ctx, slot)
	if err != nil {
		if errors.Is(err, scheduler.ErrAppointmentNotFound) {
			m.printf("No appointment found at %s.\n", slot)
			return
		}
		m.reportError(err)
		return
	}
	m.printf("Appointment for %s at %s cancelled.\n", appt.CustomerName, appt.Slot)
}

func (m *Menu) reportError(err error) {
	switch {
	case errors.Is(err, scheduler.ErrInvalidPhoneFormat):
		m.println("Invalid phone. Use the format (XX) XXXXX-XXXX.")
	case errors.Is(err, scheduler.ErrDateTimeInPast):
		m.println("Date and time cannot be in the past.")
	case errors.Is(err, scheduler.ErrInvalidDateTime):
		m.println("Invalid date and time. Use the format YYYY-MM-DD HH:MM.")
	case errors.Is(err, scheduler.ErrSlotBeingBooked):
		m.println("That slot is being booked right now. Try again.")
	case errors.Is(err, scheduler.ErrBackendUnavailable):
		m.println("Storage is unavailable right now. Try again later.")
	default:
		m.printf("Unexpected error: %v\n", err)
	}
}

// prompt returns false once input is exhausted.
func (m *Menu) prompt(label string) (string, bool) {
	fmt.Fprint(m.out, label)
	if !m.in.Scan() {
		return "", false
	}
	return strings.TrimRight(m.in.Text(), "\r"), true
}

func (m *Menu) println(s string) {
	fmt.Fprintln(m.out, s)
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}
