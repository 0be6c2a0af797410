package scheduler

import (
	"time"
)

// CustomerID is the synthetic key assigned at registration. It never changes.
type CustomerID int64

type Customer struct {
	ID        CustomerID
	Name      string
	Phone     string
	CreatedAt time.Time
}

// Appointment is keyed by Slot, the canonical "YYYY-MM-DD HH:MM" text.
// At most one appointment exists per slot.
type Appointment struct {
	Slot         string
	StartsAt     time.Time
	CustomerID   CustomerID
	CustomerName string
	CreatedAt    time.Time
}

type EventLog struct {
	ID         int64
	EventType  string
	Slot       *string
	CustomerID *CustomerID
	Payload    []byte
	CreatedAt  time.Time
}
