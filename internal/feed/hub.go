package feed

import (
	"sync"
	"time"
)

// Event types published after a successful commit.
const (
	TypePlanCreated     = "plan.created"
	TypePlansImported   = "plans.imported"
	TypeSpeciesCreated  = "species.created"
	TypeSpeciesImported = "species.imported"
)

type Event struct {
	Type     string    `json:"type"`
	EntityID string    `json:"entityId,omitempty"`
	Count    int       `json:"count,omitempty"`
	ActorID  string    `json:"actorId,omitempty"`
	At       time.Time `json:"at"`
}

const subscriberBuffer = 32

// Hub fans events out to websocket subscribers. Slow subscribers miss
// events rather than block publishers. A nil *Hub discards everything.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned function unregisters it and
// closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(ev Event) {
	if h == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
