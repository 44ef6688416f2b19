package store

import "errors"

var (
	ErrShiftNotFound     = errors.New("shift not found")
	ErrEmergencyNotFound = errors.New("emergency request not found")
	ErrInvalidState      = errors.New("invalid state for action")
	ErrEmptyQueue        = errors.New("no applications in queue")
	ErrNotInQueue        = errors.New("nurse not in queue")
	ErrFull              = errors.New("emergency request at capacity")
	ErrNotNotified       = errors.New("nurse was not notified")
	ErrSessionNotFound   = errors.New("session not found")
)
