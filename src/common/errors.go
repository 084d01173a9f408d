package common

import "errors"

var (
	ErrSlotNotFound           = errors.New("Slot not found")
	ErrSlotUnavailable        = errors.New("Slot is not available for locking")
	ErrSlotAlreadyLocked      = errors.New("Slot is already locked")
	ErrLockNotAcquired        = errors.New("Failed to acquire lock")
	ErrLockNotFound           = errors.New("Lock not found for slot")
	ErrSlotAlreadyBooked      = errors.New("Slot is already booked")
	ErrLockRequired           = errors.New("A valid slot lock is required")
	ErrLockExpired            = errors.New("Slot lock has expired")
	ErrLockOwnedByAnotherUser = errors.New("Slot lock belongs to another user")
	ErrInstructorMissing      = errors.New("Instructor profile is missing")
	ErrBookingNotFound        = errors.New("Booking not found")
)
