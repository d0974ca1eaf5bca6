package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	defaultCalendarID = "primary"
	defaultTimeout    = 20 * time.Second
	eventDuration     = 60 * time.Minute
	eventTimeZone     = "UTC"
)

var (
	ErrMissingCredentials    = errors.New("calendar: google oauth client id, secret and refresh token are required")
	ErrPreferredDateRequired = errors.New("calendar: preferred date is required for scheduling")
	ErrScheduledDateRequired = errors.New("calendar: scheduled date is required for updating")
	ErrEventIDRequired       = errors.New("calendar: event id is required")
)

// Config configures the Google Calendar client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RefreshToken string
	CalendarID   string
	Location     *time.Location
	Timeout      time.Duration
}

// Event is the subset of a calendar event the assistant reads and writes.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"allDay,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

// Client schedules service requests on a single Google calendar.
type Client struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
	timeout    time.Duration
	logger     *logging.Logger
}

// NewClient builds a client that authenticates with a stored OAuth2 refresh token.
func NewClient(ctx context.Context, cfg Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" ||
		strings.TrimSpace(cfg.ClientSecret) == "" ||
		strings.TrimSpace(cfg.RefreshToken) == "" {
		return nil, ErrMissingCredentials
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
	tokens := oauthCfg.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := gcal.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("calendar: failed to create google calendar service: %w", err)
	}
	return NewClientWithService(svc, cfg, logger), nil
}

// NewClientWithService wraps an existing calendar service.
func NewClientWithService(svc *gcal.Service, cfg Config, logger *logging.Logger) *Client {
	if svc == nil {
		panic("calendar: service cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	calendarID := strings.TrimSpace(cfg.CalendarID)
	if calendarID == "" {
		calendarID = defaultCalendarID
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		svc:        svc,
		calendarID: calendarID,
		loc:        loc,
		timeout:    timeout,
		logger:     logger,
	}
}

// Location returns the business location used for day bounds and slot hours.
func (c *Client) Location() *time.Location {
	return c.loc
}

// ListEventsInRange returns single events whose start lies in [start, end],
// ordered by start time. On failure it returns an empty slice together with
// the error so best-effort callers can use the result directly.
func (c *Client) ListEventsInRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	events := []Event{}
	call := c.svc.Events.List(c.calendarID).
		TimeMin(start.Format(time.RFC3339Nano)).
		TimeMax(end.Format(time.RFC3339Nano)).
		SingleEvents(true).
		OrderBy("startTime")
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			ev, ok := c.fromAPI(item)
			if !ok {
				continue
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return []Event{}, fmt.Errorf("calendar: list events: %w", err)
	}
	return events, nil
}

// AvailableSlotsForDate returns the business slots on date with no event
// starting in that hour. Any upstream error yields no slots.
//
// Listing and booking are separate calls with no reservation in between, so
// two sessions looking at the same date may both be offered the same slot.
func (c *Client) AvailableSlotsForDate(ctx context.Context, date time.Time) []TimeSlot {
	d := date.In(c.loc)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, c.loc)
	dayEnd := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), c.loc)

	events, err := c.ListEventsInRange(ctx, dayStart, dayEnd)
	if err != nil {
		c.logger.Warn("calendar slot lookup failed", "date", dayStart.Format(time.DateOnly), "error", err)
		return []TimeSlot{}
	}

	booked := make([]TimeSlot, 0, len(events))
	for _, ev := range events {
		booked = append(booked, SlotForHour(ev.Start.In(c.loc).Hour()))
	}
	return FreeSlots(BusinessSlots(), booked)
}

// BookEvent creates a one hour event at the request's preferred date.
func (c *Client) BookEvent(ctx context.Context, req records.ServiceRequest) (*Event, error) {
	if req.PreferredDate == nil || req.PreferredDate.IsZero() {
		return nil, ErrPreferredDateRequired
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.svc.Events.Insert(c.calendarID, eventBody(req, *req.PreferredDate)).Context(ctx).Do()
	if err != nil {
		c.logger.Error("calendar booking failed", "type", req.Type, "error", err)
		return nil, fmt.Errorf("calendar: schedule %s: %w", req.Type, err)
	}
	ev, _ := c.fromAPI(created)
	return &ev, nil
}

// UpdateScheduledEvent moves eventID to the request's scheduled date and
// refreshes its summary and description.
func (c *Client) UpdateScheduledEvent(ctx context.Context, eventID string, req records.ServiceRequest) (*Event, error) {
	if strings.TrimSpace(eventID) == "" {
		return nil, ErrEventIDRequired
	}
	if req.ScheduledDate == nil || req.ScheduledDate.IsZero() {
		return nil, ErrScheduledDateRequired
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	updated, err := c.svc.Events.Update(c.calendarID, eventID, eventBody(req, *req.ScheduledDate)).Context(ctx).Do()
	if err != nil {
		c.logger.Error("calendar update failed", "event_id", eventID, "type", req.Type, "error", err)
		return nil, fmt.Errorf("calendar: update scheduled %s: %w", req.Type, err)
	}
	ev, _ := c.fromAPI(updated)
	return &ev, nil
}

func eventBody(req records.ServiceRequest, start time.Time) *gcal.Event {
	start = start.UTC()
	end := start.Add(eventDuration)
	return &gcal.Event{
		Summary:     Summary(req.Type),
		Description: Description(req),
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339Nano), TimeZone: eventTimeZone},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339Nano), TimeZone: eventTimeZone},
	}
}

// Summary is the event title for a request type, e.g. "Storage Collection".
func Summary(t records.ServiceRequestType) string {
	return "Storage " + capitalize(string(t))
}

// Description renders the event body shown on the calendar.
func Description(req records.ServiceRequest) string {
	phone := req.CustomerPhone
	if strings.TrimSpace(phone) == "" {
		phone = "Not provided"
	}
	return fmt.Sprintf("%s for %s\nEmail: %s\nPhone: %s\n\nDetails: %s",
		capitalize(string(req.Type)), req.CustomerName, req.CustomerEmail, phone, req.Description)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fromAPI converts an API event. Events without a usable start are dropped;
// all-day events start at midnight in the business location.
func (c *Client) fromAPI(item *gcal.Event) (Event, bool) {
	if item == nil {
		return Event{}, false
	}
	ev := Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		HTMLLink:    item.HtmlLink,
	}
	start, allDay, ok := c.parseEventTime(item.Start)
	if !ok {
		return ev, false
	}
	ev.Start = start
	ev.AllDay = allDay
	if end, _, ok := c.parseEventTime(item.End); ok {
		ev.End = end
	}
	return ev, true
}

func (c *Client) parseEventTime(dt *gcal.EventDateTime) (time.Time, bool, bool) {
	if dt == nil {
		return time.Time{}, false, false
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, false, true
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(time.DateOnly, dt.Date, c.loc)
		if err != nil {
			return time.Time{}, false, false
		}
		return t, true, true
	}
	return time.Time{}, false, false
}
