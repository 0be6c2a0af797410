// Package validate holds the input checks applied before the scheduler
// mutates anything. Every function here is pure.
package validate

import (
	"errors"
	"regexp"
	"time"
)

// SlotLayout is the canonical appointment date-time format.
const SlotLayout = "2006-01-02 15:04"

var (
	phonePattern = regexp.MustCompile(`^\(\d{2}\) \d{5}-\d{4}$`)

	// time.Parse accepts a single-digit hour for "15", so the shape is
	// checked separately to keep slot strings zero-padded and sortable.
	slotPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}$`)
)

var ErrSlotFormat = errors.New("date/time must use the format YYYY-MM-DD HH:MM")

// Phone reports whether phone is exactly "(DD) DDDDD-DDDD".
func Phone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ParseSlot parses a canonical slot string in loc.
func ParseSlot(text string, loc *time.Location) (time.Time, error) {
	if !slotPattern.MatchString(text) {
		return time.Time{}, ErrSlotFormat
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(SlotLayout, text, loc)
	if err != nil {
		return time.Time{}, ErrSlotFormat
	}
	return t, nil
}

// DateTime reports whether text is a well-formed slot that is not strictly
// before now. Malformed and past values both return false.
func DateTime(text string, now time.Time) bool {
	t, err := ParseSlot(text, now.Location())
	if err != nil {
		return false
	}
	return !t.Before(now)
}
