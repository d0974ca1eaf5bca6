package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

// ServiceRequestStore is the record store surface the admin API uses.
type ServiceRequestStore interface {
	ListServiceRequests(ctx context.Context) ([]records.ServiceRequest, error)
	GetServiceRequest(ctx context.Context, id string) (*records.ServiceRequest, error)
	UpdateServiceRequest(ctx context.Context, req records.ServiceRequest) (*records.ServiceRequest, error)
}

// CalendarAdmin moves booked events and lists what is on the calendar.
type CalendarAdmin interface {
	UpdateScheduledEvent(ctx context.Context, eventID string, req records.ServiceRequest) (*calendar.Event, error)
	ListEventsInRange(ctx context.Context, start, end time.Time) ([]calendar.Event, error)
}

// AdminServiceRequestsHandler serves the back-office view of service requests.
type AdminServiceRequestsHandler struct {
	store    ServiceRequestStore
	calendar CalendarAdmin
	loc      *time.Location
	logger   *logging.Logger
}

// NewAdminServiceRequestsHandler creates the handler. A nil calendar disables
// rescheduling and the events listing.
func NewAdminServiceRequestsHandler(store ServiceRequestStore, cal CalendarAdmin, loc *time.Location, logger *logging.Logger) *AdminServiceRequestsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &AdminServiceRequestsHandler{store: store, calendar: cal, loc: loc, logger: logger}
}

// ServiceRequestListResponse wraps the list endpoint.
type ServiceRequestListResponse struct {
	ServiceRequests []records.ServiceRequest `json:"service_requests"`
	Total           int                      `json:"total"`
}

// ServiceRequestPatch is the editable subset of a service request. Absent
// fields are left unchanged.
type ServiceRequestPatch struct {
	Type          *string `json:"type"`
	Status        *string `json:"status"`
	CustomerName  *string `json:"customer_name"`
	CustomerEmail *string `json:"customer_email"`
	CustomerPhone *string `json:"customer_phone"`
	Description   *string `json:"description"`
	PreferredDate *string `json:"preferred_date"`
	ScheduledDate *string `json:"scheduled_date"`
}

// RescheduleRequest moves a booked request to a new time.
type RescheduleRequest struct {
	EventID       string `json:"event_id"`
	ScheduledDate string `json:"scheduled_date"`
}

// ListServiceRequests returns every request. Store failures degrade to an
// empty list so the dashboard still renders.
func (h *AdminServiceRequestsHandler) ListServiceRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListServiceRequests(r.Context())
	if err != nil {
		h.logger.Warn("admin: list service requests failed", "error", err)
		list = nil
	}
	if list == nil {
		list = []records.ServiceRequest{}
	}
	if status := strings.TrimSpace(r.URL.Query().Get("status")); status != "" {
		filtered := list[:0:0]
		for _, req := range list {
			if string(req.Status) == status {
				filtered = append(filtered, req)
			}
		}
		list = filtered
	}
	writeJSON(w, http.StatusOK, ServiceRequestListResponse{ServiceRequests: list, Total: len(list)})
}

// GetServiceRequest returns one request or 404.
func (h *AdminServiceRequestsHandler) GetServiceRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.store.GetServiceRequest(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		h.logger.Debug("admin: service request lookup failed", "error", err)
		writeError(w, http.StatusNotFound, "service request not found")
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// UpdateServiceRequest applies a patch to an existing request.
func (h *AdminServiceRequestsHandler) UpdateServiceRequest(w http.ResponseWriter, r *http.Request) {
	var patch ServiceRequestPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "requestID"))
	if id == "" {
		writeError(w, http.StatusBadRequest, records.ErrIDRequired.Error())
		return
	}
	current, err := h.store.GetServiceRequest(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "service request not found")
		return
	}
	next := *current
	if err := h.apply(&next, patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := h.store.UpdateServiceRequest(r.Context(), next)
	if err != nil {
		h.writeStoreError(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// RescheduleServiceRequest stores the new scheduled date and then moves the
// calendar event. A calendar failure is reported as 502 with the record
// already updated.
func (h *AdminServiceRequestsHandler) RescheduleServiceRequest(w http.ResponseWriter, r *http.Request) {
	if h.calendar == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar is not configured")
		return
	}
	var body RescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.EventID) == "" {
		writeError(w, http.StatusBadRequest, calendar.ErrEventIDRequired.Error())
		return
	}
	when, ok := records.ParseTime(body.ScheduledDate)
	if !ok {
		writeError(w, http.StatusBadRequest, calendar.ErrScheduledDateRequired.Error())
		return
	}

	current, err := h.store.GetServiceRequest(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "service request not found")
		return
	}
	next := *current
	next.ScheduledDate = &when
	next.Status = records.StatusScheduled
	updated, err := h.store.UpdateServiceRequest(r.Context(), next)
	if err != nil {
		h.writeStoreError(w, "reschedule", err)
		return
	}

	event, err := h.calendar.UpdateScheduledEvent(r.Context(), body.EventID, *updated)
	if err != nil {
		h.logger.Error("admin: calendar reschedule failed", "request_id", updated.ID, "event_id", body.EventID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":           "calendar update failed",
			"service_request": updated,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"service_request": updated,
		"event":           event,
	})
}

// ListCalendarEvents lists events between ?start and ?end (dates or RFC 3339),
// defaulting to the next seven days.
func (h *AdminServiceRequestsHandler) ListCalendarEvents(w http.ResponseWriter, r *http.Request) {
	if h.calendar == nil {
		writeError(w, http.StatusServiceUnavailable, "calendar is not configured")
		return
	}
	now := time.Now().In(h.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	end := start.AddDate(0, 0, 7)
	if raw := r.URL.Query().Get("start"); raw != "" {
		t, ok := h.parseBound(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid start")
			return
		}
		start = t
	}
	if raw := r.URL.Query().Get("end"); raw != "" {
		t, ok := h.parseBound(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid end")
			return
		}
		end = t
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end must be after start")
		return
	}
	events, err := h.calendar.ListEventsInRange(r.Context(), start, end)
	if err != nil {
		h.logger.Error("admin: list calendar events failed", "error", err)
		writeError(w, http.StatusBadGateway, "calendar unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *AdminServiceRequestsHandler) parseBound(raw string) (time.Time, bool) {
	if t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(raw), h.loc); err == nil {
		return t, true
	}
	return records.ParseTime(raw)
}

func (h *AdminServiceRequestsHandler) apply(req *records.ServiceRequest, patch ServiceRequestPatch) error {
	if patch.Type != nil {
		t, ok := records.ParseServiceRequestType(*patch.Type)
		if !ok {
			return errors.New("unknown service request type")
		}
		req.Type = t
	}
	if patch.Status != nil {
		status := records.ServiceRequestStatus(strings.ToLower(strings.TrimSpace(*patch.Status)))
		if !status.Valid() {
			return errors.New("unknown service request status")
		}
		req.Status = status
	}
	if patch.CustomerName != nil {
		req.CustomerName = *patch.CustomerName
	}
	if patch.CustomerEmail != nil {
		req.CustomerEmail = *patch.CustomerEmail
	}
	if patch.CustomerPhone != nil {
		req.CustomerPhone = *patch.CustomerPhone
	}
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	if patch.PreferredDate != nil {
		t, err := h.optionalTime(*patch.PreferredDate)
		if err != nil {
			return err
		}
		req.PreferredDate = t
	}
	if patch.ScheduledDate != nil {
		t, err := h.optionalTime(*patch.ScheduledDate)
		if err != nil {
			return err
		}
		req.ScheduledDate = t
	}
	return req.Validate()
}

// optionalTime clears the field on "" and otherwise requires a parseable time.
func (h *AdminServiceRequestsHandler) optionalTime(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	t, ok := h.parseBound(raw)
	if !ok {
		return nil, errors.New("dates must be YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}

func (h *AdminServiceRequestsHandler) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, records.ErrIDRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, records.ErrNotFound):
		writeError(w, http.StatusNotFound, "service request not found")
	default:
		h.logger.Error("admin: service request store failed", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, "record store unavailable")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
