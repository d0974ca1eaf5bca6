package webchat

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/storage-assistant/internal/chat"
	"golang.org/x/net/websocket"
)

func dialWS(t *testing.T, env *testEnv, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/chat/ws" + query
	conn, err := websocket.Dial(wsURL, "", env.server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return conn
}

// nextOfType skips frames until one of the wanted type arrives.
func nextOfType(t *testing.T, conn *websocket.Conn, typ string) OutboundMessage {
	t.Helper()
	for {
		var msg OutboundMessage
		require.NoError(t, websocket.JSON.Receive(conn, &msg))
		if msg.Type == typ {
			return msg
		}
	}
}

func TestWebSocket_StartsSessionAndPings(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	conn := dialWS(t, env, "")

	first := nextOfType(t, conn, "snapshot")
	require.NotNil(t, first.Snapshot)
	assert.NotEmpty(t, first.Snapshot.SessionID)
	assert.Equal(t, chat.GreetingMessage, first.Snapshot.Transcript[0].Content)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", nextOfType(t, conn, "pong").Type)
}

func TestWebSocket_UnknownSession(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	conn := dialWS(t, env, "?session=nope")

	msg := nextOfType(t, conn, "error")
	assert.Equal(t, http.StatusNotFound, msg.Status)
}

func TestWebSocket_MessagePushesFormWhenItOpens(t *testing.T) {
	env := newTestEnv(t, 50*time.Millisecond)
	conn := dialWS(t, env, "")
	_ = nextOfType(t, conn, "snapshot")

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "Can you pick up my boxes?"}))
	_ = nextOfType(t, conn, "typing")

	prompt := nextOfType(t, conn, "snapshot")
	require.NotNil(t, prompt.Snapshot.BookingDraft)
	assert.False(t, prompt.Snapshot.ShowBookingForm)

	opened := nextOfType(t, conn, "snapshot")
	assert.True(t, opened.Snapshot.ShowBookingForm)
	assert.Equal(t, "Jane Doe", opened.Snapshot.BookingDraft.CustomerName)
}

func TestWebSocket_CommandErrors(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	conn := dialWS(t, env, "")
	_ = nextOfType(t, conn, "snapshot")

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "submit_booking"}))
	assert.Equal(t, http.StatusBadRequest, nextOfType(t, conn, "error").Status)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "select_date", Date: "2024-06-10"}))
	selected := nextOfType(t, conn, "snapshot")
	assert.True(t, selected.Snapshot.ShowBookingForm)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "close_form"}))
	closed := nextOfType(t, conn, "snapshot")
	assert.Nil(t, closed.Snapshot.BookingDraft)
}

func TestHTTPTransitionsMirrorToWebSocket(t *testing.T) {
	env := newTestEnv(t, time.Millisecond)
	conn := dialWS(t, env, "")
	first := nextOfType(t, conn, "snapshot")

	resp, _ := env.do(t, http.MethodPost, "/chat/sessions/"+first.Snapshot.SessionID+"/date", map[string]string{"date": "2024-06-10"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	pushed := nextOfType(t, conn, "snapshot")
	require.NotNil(t, pushed.Snapshot.BookingDraft)
	assert.Equal(t, first.Snapshot.SessionID, pushed.Snapshot.SessionID)
}
