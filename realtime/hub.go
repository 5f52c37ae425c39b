package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"dailyboard/core"
)

// Hub is a simple pub/sub for broadcasting events to channels.
// Slow subscribers lose events rather than block the publisher.
type Hub struct {
	mu      sync.RWMutex
	subs    map[int]chan core.Event
	next    int
	dropped atomic.Int64
}

func NewHub() *Hub { return &Hub{subs: map[int]chan core.Event{}} }

func (h *Hub) Subscribe(buffer int) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	ch := make(chan core.Event, buffer)
	h.subs[id] = ch
	return id, ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Broadcast offers ev to every subscriber. It never fails; full buffers are
// counted in Dropped.
func (h *Hub) Broadcast(_ context.Context, ev core.Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Len returns the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }
