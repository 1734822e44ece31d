package reservation

import "sync"

// Action describes a reservation state change.
type Action string

const (
	ActionCreated  Action = "created"
	ActionApproved Action = "approved"
	ActionRejected Action = "rejected"
)

// Event is published on every workflow transition so consumers
// (eg. the websocket watch feed) can re-fetch or patch their view.
type Event struct {
	Action      Action      `json:"action"`
	Reservation Reservation `json:"reservation"`
}

// Hub fans reservation events out to subscribers.
// A slow subscriber drops events instead of blocking a transition.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener; the returned func unsubscribes it.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	unsub := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, unsub
}

func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- evt:
		default: // subscriber too slow; it will re-fetch on the next event
		}
	}
}
