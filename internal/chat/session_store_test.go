package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/storage-assistant/internal/calendar"
)

func sampleSession() *Session {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	d := DefaultDraft()
	d.CustomerName = "Jane"
	d.PreferredDate = &now
	d.Slot = "9:00"
	return &Session{
		ID:             "s1",
		Transcript:     Transcript{}.Append(SenderAssistant, GreetingMessage, now),
		Draft:          &d,
		FormOpensAt:    &now,
		AvailableSlots: []calendar.TimeSlot{"9:00", "10:00"},
		State:          StateAwaitingBookingForm,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session := sampleSession()
	require.NoError(t, store.Save(ctx, session))
	session.Draft.CustomerName = "changed after save"

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", got.Draft.CustomerName)
}

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisSessionStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	session := sampleSession()
	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, time.Hour, mr.TTL(sessionKey("s1")))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.Transcript[0].Content, got.Transcript[0].Content)
	assert.True(t, session.Draft.PreferredDate.Equal(*got.Draft.PreferredDate))
	assert.Equal(t, session.AvailableSlots, got.AvailableSlots)
	assert.Equal(t, StateAwaitingBookingForm, got.State)

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStore_CorruptDocument(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisSessionStore(client, 0)

	require.NoError(t, mr.Set(sessionKey("bad"), "{not json"))
	_, err := store.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}
