package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/storage-assistant/internal/chat"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

// Service is the chat flow the handler drives.
type Service interface {
	StartSession(ctx context.Context) (chat.Snapshot, error)
	Snapshot(ctx context.Context, id string) (chat.Snapshot, error)
	SendMessage(ctx context.Context, id, text string) (chat.Snapshot, error)
	SelectDate(ctx context.Context, id string, date time.Time) (chat.Snapshot, error)
	UpdateDraft(ctx context.Context, id string, draft chat.BookingDraft) (chat.Snapshot, error)
	SubmitBooking(ctx context.Context, id string, draft chat.BookingDraft) (chat.Snapshot, error)
	CloseBookingForm(ctx context.Context, id string) (chat.Snapshot, error)
}

// Handler exposes chat sessions over JSON HTTP and a websocket.
type Handler struct {
	chat   Service
	loc    *time.Location
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // sessionID -> active connection
}

// NewHandler creates a web chat handler. Bare dates are read in loc.
func NewHandler(svc Service, loc *time.Location, logger *logging.Logger) *Handler {
	if svc == nil {
		panic("webchat: chat service cannot be nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		chat:     svc,
		loc:      loc,
		logger:   logger,
		sessions: make(map[string]*wsConn),
	}
}

// Routes mounts the chat endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/quick-actions", h.HandleQuickActions)
	r.Get("/ws", h.HandleWebSocket)
	r.Post("/sessions", h.HandleStartSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.HandleGetSession)
		r.Post("/messages", h.HandleSendMessage)
		r.Post("/date", h.HandleSelectDate)
		r.Put("/draft", h.HandleUpdateDraft)
		r.Post("/booking", h.HandleSubmitBooking)
		r.Delete("/booking", h.HandleCloseBooking)
	})
	return r
}

// HandleQuickActions lists the canned openers.
func (h *Handler) HandleQuickActions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"actions": QuickActions})
}

// HandleStartSession opens a conversation with the greeting.
func (h *Handler) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.chat.StartSession(r.Context())
	if err != nil {
		h.writeError(w, "start session", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// HandleGetSession returns the current snapshot.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := h.chat.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, "get session", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleSendMessage runs one chat turn.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	id := chi.URLParam(r, "sessionID")
	snap, err := h.chat.SendMessage(r.Context(), id, req.Text)
	h.respond(w, "send message", snap, err)
}

// HandleSelectDate picks a preferred date from the date picker.
func (h *Handler) HandleSelectDate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	date, err := parseDate(req.Date, h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	snap, err := h.chat.SelectDate(r.Context(), chi.URLParam(r, "sessionID"), date)
	h.respond(w, "select date", snap, err)
}

// HandleUpdateDraft replaces the booking form fields.
func (h *Handler) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	snap, err := h.chat.UpdateDraft(r.Context(), chi.URLParam(r, "sessionID"), draft)
	h.respond(w, "update draft", snap, err)
}

// HandleSubmitBooking submits the booking form.
func (h *Handler) HandleSubmitBooking(w http.ResponseWriter, r *http.Request) {
	draft, ok := h.decodeDraft(w, r)
	if !ok {
		return
	}
	snap, err := h.chat.SubmitBooking(r.Context(), chi.URLParam(r, "sessionID"), draft)
	h.respond(w, "submit booking", snap, err)
}

// HandleCloseBooking dismisses the booking form.
func (h *Handler) HandleCloseBooking(w http.ResponseWriter, r *http.Request) {
	snap, err := h.chat.CloseBookingForm(r.Context(), chi.URLParam(r, "sessionID"))
	h.respond(w, "close booking form", snap, err)
}

func (h *Handler) decodeDraft(w http.ResponseWriter, r *http.Request) (chat.BookingDraft, bool) {
	var req struct {
		Draft *DraftPayload `json:"draft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Draft == nil {
		writeJSON(w, http.StatusBadRequest, errorBody("draft is required"))
		return chat.BookingDraft{}, false
	}
	draft, err := req.Draft.toDraft(h.loc)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return chat.BookingDraft{}, false
	}
	return draft, true
}

// respond writes the snapshot and mirrors it to any websocket open on the
// same session.
func (h *Handler) respond(w http.ResponseWriter, op string, snap chat.Snapshot, err error) {
	if err != nil {
		h.writeError(w, op, err)
		return
	}
	h.publish(snap)
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("webchat: request failed", "op", op, "error", err)
		writeJSON(w, status, errorBody("something went wrong, please try again"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}

func statusFor(err error) int {
	switch {
	case chat.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrTurnInFlight):
		return http.StatusConflict
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, errInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrIncompleteBooking), errors.Is(err, chat.ErrSlotUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
