package chat

import "errors"

var (
	ErrSessionNotFound   = errors.New("chat: session not found")
	ErrEmptyMessage      = errors.New("chat: message text is required")
	ErrTurnInFlight      = errors.New("chat: a turn is already in progress for this session")
	ErrSlotUnavailable   = errors.New("chat: selected time slot is not available")
	ErrIncompleteBooking = errors.New("chat: booking requires name, email, preferred date and a time slot")
)
