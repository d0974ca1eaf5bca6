package webchat

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/storage-assistant/internal/chat"
	"golang.org/x/net/websocket"
)

type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is a command from the widget.
type InboundMessage struct {
	Type  string        `json:"type"` // "message", "select_date", "update_draft", "submit_booking", "close_form", "ping"
	Text  string        `json:"text,omitempty"`
	Date  string        `json:"date,omitempty"`
	Draft *DraftPayload `json:"draft,omitempty"`
}

// OutboundMessage is what we push to the widget.
type OutboundMessage struct {
	Type     string         `json:"type"` // "snapshot", "typing", "pong", "error"
	Snapshot *chat.Snapshot `json:"snapshot,omitempty"`
	Error    string         `json:"error,omitempty"`
	Status   int            `json:"status,omitempty"`
}

// HandleWebSocket upgrades to a websocket bound to ?session=, starting a new
// session when none is given.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	wsc := &wsConn{conn: conn}

	var (
		snap chat.Snapshot
		err  error
	)
	if id := r.URL.Query().Get("session"); id != "" {
		snap, err = h.chat.Snapshot(ctx, id)
	} else {
		snap, err = h.chat.StartSession(ctx)
	}
	if err != nil {
		_ = wsc.send(errorMessage(err))
		return
	}
	sessionID := snap.SessionID

	h.mu.Lock()
	h.sessions[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == wsc {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
	}()

	h.logger.Info("webchat: connection opened", "session_id", sessionID)
	_ = wsc.send(snapshotMessage(snap))
	h.scheduleFormPush(snap)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}
		if msg.Type == "ping" {
			_ = wsc.send(OutboundMessage{Type: "pong"})
			continue
		}
		snap, err := h.dispatch(ctx, wsc, sessionID, msg)
		if err != nil {
			_ = wsc.send(errorMessage(err))
			continue
		}
		_ = wsc.send(snapshotMessage(snap))
		h.scheduleFormPush(snap)
	}
}

func (h *Handler) dispatch(ctx context.Context, wsc *wsConn, id string, msg InboundMessage) (chat.Snapshot, error) {
	switch msg.Type {
	case "message":
		_ = wsc.send(OutboundMessage{Type: "typing"})
		return h.chat.SendMessage(ctx, id, msg.Text)
	case "select_date":
		date, err := parseDate(msg.Date, h.loc)
		if err != nil {
			return chat.Snapshot{}, err
		}
		return h.chat.SelectDate(ctx, id, date)
	case "update_draft", "submit_booking":
		if msg.Draft == nil {
			return chat.Snapshot{}, errInvalidPayload
		}
		draft, err := msg.Draft.toDraft(h.loc)
		if err != nil {
			return chat.Snapshot{}, err
		}
		if msg.Type == "update_draft" {
			return h.chat.UpdateDraft(ctx, id, draft)
		}
		return h.chat.SubmitBooking(ctx, id, draft)
	case "close_form":
		return h.chat.CloseBookingForm(ctx, id)
	default:
		return chat.Snapshot{}, errInvalidPayload
	}
}

// SendToSession pushes a message to the session's websocket, if one is open.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) {
	h.mu.RLock()
	wsc, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	if err := wsc.send(msg); err != nil {
		h.logger.Debug("webchat: push failed", "session_id", sessionID, "error", err)
	}
}

// publish mirrors an HTTP-driven transition to the websocket.
func (h *Handler) publish(snap chat.Snapshot) {
	h.SendToSession(snap.SessionID, snapshotMessage(snap))
	h.scheduleFormPush(snap)
}

// scheduleFormPush re-sends the snapshot once a pending booking form opens so
// the widget does not have to poll.
func (h *Handler) scheduleFormPush(snap chat.Snapshot) {
	if snap.BookingDraft == nil || snap.ShowBookingForm || snap.FormOpensAt == nil {
		return
	}
	id := snap.SessionID
	delay := max(time.Until(*snap.FormOpensAt), 0)
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		current, err := h.chat.Snapshot(ctx, id)
		if err != nil || !current.ShowBookingForm {
			return
		}
		h.SendToSession(id, snapshotMessage(current))
	})
}

func snapshotMessage(snap chat.Snapshot) OutboundMessage {
	return OutboundMessage{Type: "snapshot", Snapshot: &snap}
}

func errorMessage(err error) OutboundMessage {
	status := statusFor(err)
	text := err.Error()
	if status >= http.StatusInternalServerError {
		text = "something went wrong, please try again"
	}
	return OutboundMessage{Type: "error", Error: text, Status: status}
}
