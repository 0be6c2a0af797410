package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/barbershop-scheduling/internal/scheduler"
)

// Service is the part of *scheduler.Scheduler the HTTP layer drives.
type Service interface {
	RegisterCustomer(ctx context.Context, name, phone string) (*scheduler.Customer, error)
	ListCustomers(ctx context.Context) ([]scheduler.Customer, error)
	BookAppointment(ctx context.Context, customerName, slot string) (*scheduler.Appointment, error)
	CancelAppointment(ctx context.Context, slot string) (*scheduler.Appointment, error)
	ListAppointments(ctx context.Context) ([]scheduler.Appointment, error)
	Ping(ctx context.Context) error
}

func registerCustomerHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterCustomerRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		c, err := svc.RegisterCustomer(r.Context(), req.Name, req.Phone)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toCustomerResponse(*c))
	}
}

func listCustomersHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := svc.ListCustomers(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]CustomerResponse, 0, len(customers))
		for _, c := range customers {
			resp = append(resp, toCustomerResponse(c))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		appt, err := svc.BookAppointment(r.Context(), req.CustomerName, req.DateTime)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func listAppointmentsHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListAppointments(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// cancelAppointmentHandler takes the slot from ?datetime=. The value is only
// used as a lookup key, so a malformed one simply matches nothing.
func cancelAppointmentHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot := r.URL.Query().Get("datetime")

		appt, err := svc.CancelAppointment(r.Context(), slot)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	code := scheduler.ReasonCode(err)

	switch {
	case errors.Is(err, scheduler.ErrBackendUnavailable):
		writeError(w, http.StatusServiceUnavailable, code, "storage backend unavailable, please retry")
	case errors.Is(err, scheduler.ErrInvalidPhoneFormat),
		errors.Is(err, scheduler.ErrInvalidDateTime):
		writeError(w, http.StatusUnprocessableEntity, code, err.Error())
	case errors.Is(err, scheduler.ErrUnknownCustomer),
		errors.Is(err, scheduler.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, code, err.Error())
	case errors.Is(err, scheduler.ErrSlotTaken),
		errors.Is(err, scheduler.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, code, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, code, "unexpected error")
	}
}

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// decodeJSON reads a bounded JSON body into v, writing the error response
// and returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
