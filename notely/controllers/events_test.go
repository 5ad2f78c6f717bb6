package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"notely/notely/types"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventHub_UnsubscribeIsIdempotent(t *testing.T) {
	hub := NewEventHub()
	events, stop := hub.Subscribe("alice")
	stop()
	stop()

	_, open := <-events
	assert.False(t, open)
	hub.Publish(types.NoteEvent{Type: types.NoteCreated, NoteID: 1, UserID: "alice"})
}

func TestEventHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewEventHub()
	_, stop := hub.Subscribe("alice")
	defer stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < eventBuffer*2; i++ {
			hub.Publish(types.NoteEvent{Type: types.NoteUpdated, NoteID: int64(i), UserID: "alice"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestEventHub_ServeEvents(t *testing.T) {
	hub := NewEventHub()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		hub.ServeEvents(r.Context(), conn, r.URL.Query().Get("user"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"?user=alice", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.subs["alice"]) == 1
	}, time.Second, 5*time.Millisecond)

	hub.Publish(types.NoteEvent{Type: types.NoteCreated, NoteID: 9, UserID: "bob"})
	hub.Publish(types.NoteEvent{Type: types.NoteCreated, NoteID: 7, UserID: "alice"})

	var ev types.NoteEvent
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, types.NoteEvent{Type: types.NoteCreated, NoteID: 7, UserID: "alice"}, ev)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		return len(hub.subs["alice"]) == 0
	}, time.Second, 5*time.Millisecond, "closing the socket unsubscribes")
}
