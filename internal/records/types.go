package records

import (
	"strings"
	"time"
)

// ServiceRequestType classifies what the customer is asking for.
type ServiceRequestType string

const (
	TypeCollection ServiceRequestType = "collection"
	TypeDelivery   ServiceRequestType = "delivery"
	TypeInquiry    ServiceRequestType = "inquiry"
	TypeOther      ServiceRequestType = "other"
)

// ParseServiceRequestType returns the canonical type for s, or false when s is
// not one of the known types.
func ParseServiceRequestType(s string) (ServiceRequestType, bool) {
	switch t := ServiceRequestType(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeCollection, TypeDelivery, TypeInquiry, TypeOther:
		return t, true
	default:
		return "", false
	}
}

// ServiceRequestStatus tracks a request through its lifecycle.
type ServiceRequestStatus string

const (
	StatusPending   ServiceRequestStatus = "pending"
	StatusScheduled ServiceRequestStatus = "scheduled"
	StatusCompleted ServiceRequestStatus = "completed"
	StatusCancelled ServiceRequestStatus = "cancelled"
)

// Valid reports whether s is a known status.
func (s ServiceRequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ServiceRequest is a customer-initiated storage task.
type ServiceRequest struct {
	ID            string               `json:"id,omitempty"`
	Type          ServiceRequestType   `json:"type"`
	Status        ServiceRequestStatus `json:"status"`
	CustomerName  string               `json:"customerName"`
	CustomerEmail string               `json:"customerEmail"`
	CustomerPhone string               `json:"customerPhone,omitempty"`
	Description   string               `json:"description"`
	PreferredDate *time.Time           `json:"preferredDate,omitempty"`
	ScheduledDate *time.Time           `json:"scheduledDate,omitempty"`
	CreatedAt     time.Time            `json:"createdAt"`
	UpdatedAt     *time.Time           `json:"updatedAt,omitempty"`
}

// Validate checks the fields that must be present before a request is persisted.
func (r *ServiceRequest) Validate() error {
	if strings.TrimSpace(r.CustomerName) == "" {
		return ErrMissingName
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		return ErrMissingEmail
	}
	if r.PreferredDate == nil || r.PreferredDate.IsZero() {
		return ErrMissingPreferredDate
	}
	return nil
}

// Inquiry is one logged chat exchange.
type Inquiry struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	Response string `json:"response"`
}

// FAQ is a question/answer pair injected into the assistant prompt.
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// isoMillis matches the millisecond ISO-8601 form already stored in the tables.
const isoMillis = "2006-01-02T15:04:05.000Z"

// FormatTime renders t the way dates are stored in the record tables.
func FormatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return FormatTime(*t)
}

// ParseTime accepts RFC 3339 timestamps (with or without fractional seconds)
// and bare dates.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func parseOptionalTime(s string) *time.Time {
	t, ok := ParseTime(s)
	if !ok {
		return nil
	}
	return &t
}
