package chat

import (
	"time"

	"github.com/wolfman30/storage-assistant/internal/calendar"
)

// State is the orchestrator state of a session.
type State string

const (
	StateIdle                State = "idle"
	StateReplying            State = "replying"
	StateAwaitingBookingForm State = "awaiting_booking_form"
	StateBooking             State = "booking"
)

// Session is the persisted per-conversation state.
type Session struct {
	ID             string              `json:"id"`
	Transcript     Transcript          `json:"transcript"`
	Draft          *BookingDraft       `json:"draft,omitempty"`
	FormOpensAt    *time.Time          `json:"formOpensAt,omitempty"`
	AvailableSlots []calendar.TimeSlot `json:"availableSlots,omitempty"`
	Loading        bool                `json:"loading"`
	TurnStartedAt  *time.Time          `json:"turnStartedAt,omitempty"`
	Submitting     bool                `json:"submitting"`
	State          State               `json:"state"`
	CreatedAt      time.Time           `json:"createdAt"`
	UpdatedAt      time.Time           `json:"updatedAt"`
}

// Snapshot is the immutable view of a session handed to the presentation layer.
type Snapshot struct {
	SessionID       string              `json:"sessionId"`
	Transcript      Transcript          `json:"transcript"`
	BookingDraft    *BookingDraft       `json:"bookingDraft"`
	ShowBookingForm bool                `json:"showBookingForm"`
	FormOpensAt     *time.Time          `json:"formOpensAt,omitempty"`
	AvailableSlots  []calendar.TimeSlot `json:"availableSlots"`
	CanSubmit       bool                `json:"canSubmit"`
	Loading         bool                `json:"loading"`
	Submitting      bool                `json:"submitting"`
	State           State               `json:"state"`
}

// snapshot deep-copies s as seen at now.
func (s *Session) snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		SessionID:      s.ID,
		Transcript:     s.Transcript.clone(),
		BookingDraft:   s.Draft.clone(),
		AvailableSlots: append([]calendar.TimeSlot{}, s.AvailableSlots...),
		Loading:        s.Loading,
		Submitting:     s.Submitting,
		State:          s.State,
	}
	if s.FormOpensAt != nil {
		opens := *s.FormOpensAt
		snap.FormOpensAt = &opens
		snap.ShowBookingForm = s.Draft != nil && !now.Before(opens)
	}
	if s.Draft != nil {
		snap.CanSubmit = s.Draft.CanSubmit() && !s.Submitting
	}
	return snap
}

func (s *Session) clone() *Session {
	out := *s
	out.Transcript = s.Transcript.clone()
	out.Draft = s.Draft.clone()
	out.AvailableSlots = append([]calendar.TimeSlot(nil), s.AvailableSlots...)
	if s.FormOpensAt != nil {
		t := *s.FormOpensAt
		out.FormOpensAt = &t
	}
	if s.TurnStartedAt != nil {
		t := *s.TurnStartedAt
		out.TurnStartedAt = &t
	}
	return &out
}

// closeForm drops the draft and everything derived from it.
func (s *Session) closeForm() {
	s.Draft = nil
	s.FormOpensAt = nil
	s.AvailableSlots = nil
	s.Submitting = false
	s.State = StateIdle
}
