package schedule

import "errors"

var (
	// ErrOutOfRange is returned for dates outside the configured range
	ErrOutOfRange = errors.New("date outside the configured range")

	// ErrInvalidTimeSlot is returned for time slots other than morning/evening
	ErrInvalidTimeSlot = errors.New("invalid time slot")
)
