package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Business hours are hour-granular; the close hour itself is not bookable.
const (
	OpenHour  = 9
	CloseHour = 17
)

// TimeSlot is an hour label such as "9:00" or "14:00". The label doubles as the
// join key between booked events and candidate slots, so it never carries a
// leading zero or an AM/PM suffix.
type TimeSlot string

// SlotForHour formats hour as a TimeSlot label.
func SlotForHour(hour int) TimeSlot {
	return TimeSlot(fmt.Sprintf("%d:00", hour))
}

// Hour returns the hour encoded in the label.
func (s TimeSlot) Hour() (int, bool) {
	h, rest, ok := strings.Cut(string(s), ":")
	if !ok || rest != "00" {
		return 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, false
	}
	return hour, true
}

// At returns the instant on day (interpreted in loc) at the slot's hour.
func (s TimeSlot) At(day time.Time, loc *time.Location) (time.Time, bool) {
	hour, ok := s.Hour()
	if !ok {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc), true
}

// BusinessSlots returns every candidate slot in ascending order.
func BusinessSlots() []TimeSlot {
	slots := make([]TimeSlot, 0, CloseHour-OpenHour)
	for hour := OpenHour; hour < CloseHour; hour++ {
		slots = append(slots, SlotForHour(hour))
	}
	return slots
}

// FreeSlots removes every candidate whose label appears among booked,
// preserving candidate order.
func FreeSlots(candidates, booked []TimeSlot) []TimeSlot {
	taken := make(map[TimeSlot]struct{}, len(booked))
	for _, slot := range booked {
		taken[slot] = struct{}{}
	}
	free := make([]TimeSlot, 0, len(candidates))
	for _, slot := range candidates {
		if _, ok := taken[slot]; !ok {
			free = append(free, slot)
		}
	}
	return free
}
