package devtools

import (
	"encoding/json"
	"sync"
)

// subscriberBuffer is how many events a slow websocket client may fall
// behind before events are dropped for it.
const subscriberBuffer = 64

// event is a server-initiated protocol message.
type event struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type subscriber struct {
	targetID string
	ch       chan []byte
}

// Hub fans events out to websocket subscribers. Publish never blocks.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	dropped int64
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

func (h *Hub) subscribe(targetID string) *subscriber {
	s := &subscriber{targetID: targetID, ch: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
	h.mu.Unlock()
}

// Publish sends method/params to every subscriber of targetID.
func (h *Hub) Publish(targetID, method string, params any) {
	data, err := json.Marshal(event{Method: method, Params: params})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.targetID != targetID {
			continue
		}
		select {
		case s.ch <- data:
		default:
			h.dropped++
		}
	}
}

// Dropped reports how many events were discarded for slow subscribers.
func (h *Hub) Dropped() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Subscribers reports the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
