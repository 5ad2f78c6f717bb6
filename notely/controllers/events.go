package controllers

import (
	"context"
	"sync"
	"time"

	"notely/notely/types"
	"notely/notely/utils/logging"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	eventBuffer       = 16
	eventWriteTimeout = 5 * time.Second
)

// EventHub fans note change events out to every open feed of the note's owner.
type EventHub struct {
	mu   sync.Mutex
	subs map[string]map[chan types.NoteEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: make(map[string]map[chan types.NoteEvent]struct{})}
}

// Subscribe returns a channel of userID's events and a func that closes it.
func (h *EventHub) Subscribe(userID string) (<-chan types.NoteEvent, func()) {
	ch := make(chan types.NoteEvent, eventBuffer)
	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan types.NoteEvent]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()
	eventSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
			eventSubscribers.Dec()
		})
	}
}

// Publish never blocks; a subscriber whose buffer is full misses the event.
func (h *EventHub) Publish(ev types.NoteEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.UserID] {
		select {
		case ch <- ev:
		default:
			eventsDropped.Inc()
			logging.AppLogger.Warn("note event dropped for slow subscriber",
				zap.String("user_id", ev.UserID), zap.Int64("note_id", ev.NoteID))
		}
	}
}

// ServeEvents writes userID's events to conn until the client goes away or ctx ends.
func (h *EventHub) ServeEvents(ctx context.Context, conn *websocket.Conn, userID string) {
	defer conn.Close(websocket.StatusInternalError, "internal error")
	ctx = conn.CloseRead(ctx)

	events, unsubscribe := h.Subscribe(userID)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case ev := <-events:
			wctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
			err := wsjson.Write(wctx, conn, ev)
			cancel()
			if err != nil {
				logging.ErrorLogger.Error("websocket write error", zap.String("user_id", userID), zap.Error(err))
				return
			}
		}
	}
}
