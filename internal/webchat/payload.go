package webchat

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/chat"
	"github.com/wolfman30/storage-assistant/internal/records"
)

var errInvalidPayload = errors.New("webchat: invalid payload")

// QuickActions are the canned openers the widget offers before the first turn.
var QuickActions = []string{
	"I'd like to schedule a storage service",
	"I need a delivery service",
	"I'd like to inquire about storage options",
	"I need help with my existing storage",
}

// DraftPayload is the booking form as the widget sends it. PreferredDate is
// either a bare YYYY-MM-DD date or an RFC 3339 instant.
type DraftPayload struct {
	Type          string `json:"type"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	Description   string `json:"description"`
	PreferredDate string `json:"preferredDate"`
	Slot          string `json:"slot"`
}

// toDraft converts the payload, reading bare dates in loc.
func (p DraftPayload) toDraft(loc *time.Location) (chat.BookingDraft, error) {
	draft := chat.DefaultDraft()
	if strings.TrimSpace(p.Type) != "" {
		t, ok := records.ParseServiceRequestType(p.Type)
		if !ok {
			return chat.BookingDraft{}, fmt.Errorf("%w: unknown service type %q", errInvalidPayload, p.Type)
		}
		draft.Type = t
	}
	draft.CustomerName = p.CustomerName
	draft.CustomerEmail = p.CustomerEmail
	draft.CustomerPhone = p.CustomerPhone
	draft.Description = p.Description
	draft.Slot = calendar.TimeSlot(strings.TrimSpace(p.Slot))
	if strings.TrimSpace(p.PreferredDate) != "" {
		date, err := parseDate(p.PreferredDate, loc)
		if err != nil {
			return chat.BookingDraft{}, err
		}
		draft.PreferredDate = &date
	}
	return draft, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD, got %q", errInvalidPayload, raw)
}
