package scheduler

import (
	"errors"
	"fmt"
)

// Rejections. These are normal outcomes of bad caller input or a busy slot
// and are never fatal.
var (
	ErrInvalidPhoneFormat  = errors.New("phone must use the format (DD) DDDDD-DDDD")
	ErrUnknownCustomer     = errors.New("customer not found")
	ErrInvalidDateTime     = errors.New("invalid date/time")
	ErrSlotTaken           = errors.New("slot already has an appointment")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotBeingBooked     = errors.New("slot is currently being booked, please retry")

	// Both reasons render as ErrInvalidDateTime to callers.
	ErrDateTimeMalformed = fmt.Errorf("%w: expected YYYY-MM-DD HH:MM", ErrInvalidDateTime)
	ErrDateTimeInPast    = fmt.Errorf("%w: date/time is in the past", ErrInvalidDateTime)
)

// ErrBackendUnavailable matches every *BackendError.
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// BackendError reports a storage or lock infrastructure failure.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrBackendUnavailable, e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func (e *BackendError) Is(target error) bool {
	return target == ErrBackendUnavailable
}

func backendError(op string, err error) error {
	return &BackendError{Op: op, Err: err}
}

var rejections = []struct {
	err  error
	code string
}{
	{ErrInvalidPhoneFormat, "invalid_phone_format"},
	{ErrUnknownCustomer, "unknown_customer"},
	{ErrInvalidDateTime, "invalid_datetime"},
	{ErrSlotTaken, "slot_taken"},
	{ErrAppointmentNotFound, "appointment_not_found"},
	{ErrSlotBeingBooked, "slot_being_booked"},
}

// IsRejection reports whether err is a caller-facing rejection rather than a fault.
func IsRejection(err error) bool {
	if err == nil || errors.Is(err, ErrBackendUnavailable) {
		return false
	}
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return true
		}
	}
	return false
}

// ReasonCode returns a stable snake_case code for err: "ok" for nil, the
// rejection code for rejections, "backend_unavailable" for backend faults and
// "internal_error" for anything else.
func ReasonCode(err error) string {
	if err == nil {
		return "ok"
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return "backend_unavailable"
	}
	for _, r := range rejections {
		if errors.Is(err, r.err) {
			return r.code
		}
	}
	return "internal_error"
}
