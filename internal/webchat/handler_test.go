package webchat

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/storage-assistant/internal/calendar"
	"github.com/wolfman30/storage-assistant/internal/chat"
	"github.com/wolfman30/storage-assistant/internal/completion"
	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

type stubEngine struct{}

func (stubEngine) GenerateReply(_ context.Context, message string, _ []completion.ChatMessage) string {
	return "We offer climate controlled units."
}

func (stubEngine) ExtractIntent(_ context.Context, message string, _ []completion.ChatMessage) completion.ExtractedIntent {
	if !strings.Contains(strings.ToLower(message), "pick up") {
		return completion.ExtractedIntent{}
	}
	return completion.ExtractedIntent{
		IsServiceRequest: true,
		Type:             records.TypeCollection,
		CustomerName:     "Jane Doe",
		CustomerEmail:    "jane@example.com",
		PreferredDate:    "2024-06-10",
		Description:      "Pick up three boxes",
	}
}

type stubScheduler struct {
	mu     sync.Mutex
	booked []records.ServiceRequest
}

func (s *stubScheduler) AvailableSlotsForDate(context.Context, time.Time) []calendar.TimeSlot {
	return []calendar.TimeSlot{"9:00", "10:00", "14:00"}
}

func (s *stubScheduler) BookEvent(_ context.Context, req records.ServiceRequest) (*calendar.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.booked = append(s.booked, req)
	return &calendar.Event{ID: "evt1"}, nil
}

type testEnv struct {
	handler   *Handler
	server    *httptest.Server
	store     *records.InMemoryStore
	scheduler *stubScheduler
}

func newTestEnv(t *testing.T, formDelay time.Duration) *testEnv {
	t.Helper()
	store := records.NewInMemoryStore()
	scheduler := &stubScheduler{}
	logger := logging.New("error")
	orch := chat.NewOrchestrator(stubEngine{}, store, scheduler, chat.NewMemorySessionStore(), chat.Options{
		FormDelay: formDelay,
		Logger:    logger,
	})
	h := NewHandler(orch, time.UTC, logger)
	r := chi.NewRouter()
	r.Mount("/chat", h.Routes())
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &testEnv{handler: h, server: srv, store: store, scheduler: scheduler}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, chat.Snapshot) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var snap chat.Snapshot
	if resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	}
	return resp, snap
}

func (e *testEnv) start(t *testing.T) chat.Snapshot {
	t.Helper()
	resp, snap := e.do(t, http.MethodPost, "/chat/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return snap
}

func TestStartSession_Greets(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)

	assert.NotEmpty(t, snap.SessionID)
	require.Len(t, snap.Transcript, 1)
	assert.Equal(t, chat.GreetingMessage, snap.Transcript[0].Content)
	assert.False(t, snap.ShowBookingForm)

	resp, got := env.do(t, http.MethodGet, "/chat/sessions/"+snap.SessionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, snap.SessionID, got.SessionID)
}

func TestGetSession_NotFound(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	resp, _ := env.do(t, http.MethodGet, "/chat/sessions/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSendMessage_ReplyAndInquiryLog(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)

	resp, got := env.do(t, http.MethodPost, "/chat/sessions/"+snap.SessionID+"/messages", map[string]string{"text": "What units do you have?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, got.Transcript, 3)
	assert.Equal(t, "We offer climate controlled units.", got.Transcript[2].Content)
	assert.Nil(t, got.BookingDraft)
	require.Len(t, env.store.Inquiries(), 1)
}

func TestSendMessage_EmptyText(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)

	resp, _ := env.do(t, http.MethodPost, "/chat/sessions/"+snap.SessionID+"/messages", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_InvalidBody(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/chat/sessions/"+snap.SessionID+"/messages", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessage_ServiceRequestOpensFormAfterDelay(t *testing.T) {
	env := newTestEnv(t, 50*time.Millisecond)
	snap := env.start(t)

	resp, got := env.do(t, http.MethodPost, "/chat/sessions/"+snap.SessionID+"/messages", map[string]string{"text": "Please pick up my boxes Monday"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, got.BookingDraft)
	assert.Equal(t, chat.FormPromptMessage, got.Transcript[len(got.Transcript)-1].Content)
	assert.False(t, got.ShowBookingForm)
	assert.Equal(t, []calendar.TimeSlot{"9:00", "10:00", "14:00"}, got.AvailableSlots)
	assert.Equal(t, calendar.TimeSlot("9:00"), got.BookingDraft.Slot)

	require.Eventually(t, func() bool {
		_, later := env.do(t, http.MethodGet, "/chat/sessions/"+snap.SessionID, nil)
		return later.ShowBookingForm
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSelectDateAndSubmitBooking(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)
	path := "/chat/sessions/" + snap.SessionID

	resp, got := env.do(t, http.MethodPost, path+"/date", map[string]string{"date": "2024-06-10"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, got.BookingDraft)
	assert.True(t, got.ShowBookingForm)
	assert.Equal(t, calendar.TimeSlot("9:00"), got.BookingDraft.Slot)

	draft := DraftPayload{
		Type:          "delivery",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@example.com",
		PreferredDate: "2024-06-10",
		Slot:          "14:00",
		Description:   "Bring my bike back",
	}
	resp, got = env.do(t, http.MethodPut, path+"/draft", map[string]any{"draft": draft})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, got.CanSubmit)

	resp, got = env.do(t, http.MethodPost, path+"/booking", map[string]any{"draft": draft})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, got.BookingDraft)
	assert.False(t, got.ShowBookingForm)
	last := got.Transcript[len(got.Transcript)-1].Content
	assert.Contains(t, last, "delivery for June 10th, 2024 at 14:00")

	requests, err := env.store.ListServiceRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Equal(t, records.StatusPending, requests[0].Status)
	require.Len(t, env.scheduler.booked, 1)
}

func TestSubmitBooking_Incomplete(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)

	resp, _ := env.do(t, http.MethodPost, "/chat/sessions/"+snap.SessionID+"/booking", map[string]any{
		"draft": DraftPayload{CustomerName: "Jane"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUpdateDraft_Validation(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)
	path := "/chat/sessions/" + snap.SessionID

	resp, _ := env.do(t, http.MethodPut, path+"/draft", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPut, path+"/draft", map[string]any{"draft": DraftPayload{Type: "teleport"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, path+"/date", map[string]string{"date": "10/06/2024"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, _ = env.do(t, http.MethodPost, path+"/date", map[string]string{"date": "2024-06-10"})
	resp, _ = env.do(t, http.MethodPut, path+"/draft", map[string]any{"draft": DraftPayload{PreferredDate: "2024-06-10", Slot: "16:00"}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCloseBooking(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	snap := env.start(t)
	path := "/chat/sessions/" + snap.SessionID

	_, _ = env.do(t, http.MethodPost, path+"/date", map[string]string{"date": "2024-06-10"})
	resp, got := env.do(t, http.MethodDelete, path+"/booking", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, got.BookingDraft)
	assert.Empty(t, got.AvailableSlots)
}

func TestQuickActions(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	resp, err := http.Get(env.server.URL + "/chat/quick-actions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Actions []string `json:"actions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body.Actions, 4)
	assert.Equal(t, "I'd like to schedule a storage service", body.Actions[0])
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		chat.ErrSessionNotFound:   http.StatusNotFound,
		chat.ErrTurnInFlight:      http.StatusConflict,
		chat.ErrEmptyMessage:      http.StatusBadRequest,
		errInvalidPayload:         http.StatusBadRequest,
		chat.ErrIncompleteBooking: http.StatusUnprocessableEntity,
		chat.ErrSlotUnavailable:   http.StatusUnprocessableEntity,
		context.DeadlineExceeded:  http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestDraftPayload_ToDraft(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	draft, err := DraftPayload{PreferredDate: "2024-06-10", Slot: " 11:00 "}.toDraft(loc)
	require.NoError(t, err)
	assert.Equal(t, records.TypeCollection, draft.Type)
	assert.Equal(t, calendar.TimeSlot("11:00"), draft.Slot)
	require.NotNil(t, draft.PreferredDate)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, loc), *draft.PreferredDate)

	draft, err = DraftPayload{Type: "Inquiry", PreferredDate: "2024-06-10T15:00:00Z"}.toDraft(loc)
	require.NoError(t, err)
	assert.Equal(t, records.TypeInquiry, draft.Type)
	assert.True(t, draft.PreferredDate.Equal(time.Date(2024, 6, 10, 15, 0, 0, 0, time.UTC)))
}
