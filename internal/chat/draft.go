package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/completion"
	"github.com/wolfman30/storage-assistant/internal/records"
)

// BookingDraft is the editable booking form.
type BookingDraft struct {
	Type          records.ServiceRequestType `json:"type"`
	CustomerName  string                     `json:"customerName"`
	CustomerEmail string                     `json:"customerEmail"`
	CustomerPhone string                     `json:"customerPhone"`
	Description   string                     `json:"description"`
	PreferredDate *time.Time                 `json:"preferredDate,omitempty"`
	Slot          calendar.TimeSlot          `json:"slot,omitempty"`
}

// DefaultDraft is the empty form.
func DefaultDraft() BookingDraft {
	return BookingDraft{Type: records.TypeCollection}
}

// draftFromIntent fills a draft from extraction output, falling back to a
// collection described by the original message.
func draftFromIntent(intent completion.ExtractedIntent, message string, loc *time.Location) BookingDraft {
	draft := DefaultDraft()
	if intent.Type != "" {
		draft.Type = intent.Type
	}
	draft.CustomerName = intent.CustomerName
	draft.CustomerEmail = intent.CustomerEmail
	draft.CustomerPhone = intent.CustomerPhone
	draft.Description = intent.Description
	if strings.TrimSpace(draft.Description) == "" {
		draft.Description = message
	}
	draft.PreferredDate = parsePreferredDate(intent.PreferredDate, loc)
	return draft
}

// parsePreferredDate reads bare dates as midnight in loc and anything else as
// an ISO-8601 instant.
func parsePreferredDate(s string, loc *time.Location) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return &t
	}
	if t, ok := records.ParseTime(s); ok {
		return &t
	}
	return nil
}

// missing lists the fields that block submission.
func (d BookingDraft) missing() []string {
	var fields []string
	if strings.TrimSpace(d.CustomerName) == "" {
		fields = append(fields, "customerName")
	}
	if strings.TrimSpace(d.CustomerEmail) == "" {
		fields = append(fields, "customerEmail")
	}
	if d.PreferredDate == nil || d.PreferredDate.IsZero() {
		fields = append(fields, "preferredDate")
	}
	if _, ok := d.Slot.Hour(); !ok {
		fields = append(fields, "slot")
	}
	return fields
}

// Validate reports ErrIncompleteBooking naming the missing fields.
func (d BookingDraft) Validate() error {
	if missing := d.missing(); len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteBooking, strings.Join(missing, ", "))
	}
	return nil
}

// CanSubmit reports whether the form is ready to submit.
func (d BookingDraft) CanSubmit() bool {
	return len(d.missing()) == 0
}

func sameDay(a, b *time.Time, loc *time.Location) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func (d *BookingDraft) clone() *BookingDraft {
	if d == nil {
		return nil
	}
	out := *d
	if d.PreferredDate != nil {
		t := *d.PreferredDate
		out.PreferredDate = &t
	}
	return &out
}
