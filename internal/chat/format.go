package chat

import (
	"fmt"
	"time"

	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/records"
)

// LongDate renders t as "June 10th, 2024".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%s %d%s, %d", t.Month(), t.Day(), ordinalSuffix(t.Day()), t.Year())
}

func ordinalSuffix(day int) string {
	if day%100 >= 11 && day%100 <= 13 {
		return "th"
	}
	switch day % 10 {
	case 1:
		return "st"
	case 2:
		return "nd"
	case 3:
		return "rd"
	default:
		return "th"
	}
}

// ConfirmationMessage is appended after a successful booking.
func ConfirmationMessage(t records.ServiceRequestType, date time.Time, slot calendar.TimeSlot) string {
	label := string(t)
	if label == "" {
		label = "service request"
	}
	return fmt.Sprintf("Great! I've scheduled your %s for %s at %s. You can check your google calendar. Is there anything else I can help you with?",
		label, LongDate(date), slot)
}
