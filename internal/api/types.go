package api

import (
	"time"

	"github.com/hackgods/barbershop-scheduling/internal/scheduler"
)

type RegisterCustomerRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CustomerResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type BookAppointmentRequest struct {
	CustomerName string `json:"customer_name"`
	DateTime     string `json:"datetime"`
}

type AppointmentResponse struct {
	DateTime     string    `json:"datetime"`
	CustomerID   int64     `json:"customer_id"`
	CustomerName string    `json:"customer_name"`
	StartsAt     time.Time `json:"starts_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toCustomerResponse(c scheduler.Customer) CustomerResponse {
	return CustomerResponse{
		ID:        int64(c.ID),
		Name:      c.Name,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
	}
}

func toAppointmentResponse(a scheduler.Appointment) AppointmentResponse {
	return AppointmentResponse{
		DateTime:     a.Slot,
		CustomerID:   int64(a.CustomerID),
		CustomerName: a.CustomerName,
		StartsAt:     a.StartsAt,
	}
}
