package events

import (
	"log"
	"sync"
	"van-dispatch-service/internal/domain"
	"van-dispatch-service/internal/ports"
)

// AllVans subscribes to events of every van.
const AllVans = ""

// Hub fans fleet events out to in-process subscribers, one buffered channel
// per subscriber. A subscriber that falls behind loses events rather than
// blocking publishers.
//
// The hub is per process; separate replicas do not see each other's events.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan domain.FleetEvent]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{
		subs:   make(map[string]map[chan domain.FleetEvent]struct{}),
		buffer: buffer,
	}
}

// Subscribe returns a channel of events for vanID (AllVans for every van)
// and a cancel func that unsubscribes and closes the channel.
func (h *Hub) Subscribe(vanID string) (<-chan domain.FleetEvent, func()) {
	ch := make(chan domain.FleetEvent, h.buffer)

	h.mu.Lock()
	set, ok := h.subs[vanID]
	if !ok {
		set = make(map[chan domain.FleetEvent]struct{})
		h.subs[vanID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, vanID)
			}
			close(ch)
			h.mu.Unlock()
		})
	}

	return ch, cancel
}

func (h *Hub) Publish(ev domain.FleetEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.deliver(h.subs[ev.VanID], ev)
	if ev.VanID != AllVans {
		h.deliver(h.subs[AllVans], ev)
	}
}

func (h *Hub) deliver(set map[chan domain.FleetEvent]struct{}, ev domain.FleetEvent) {
	for ch := range set {
		select {
		case ch <- ev:
		default:
			log.Printf("event dropped: type=%s van_id=%s reason=subscriber full", ev.Type, ev.VanID)
		}
	}
}

// Subscribers returns the number of live subscriptions for vanID.
func (h *Hub) Subscribers(vanID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[vanID])
}

// Fanout publishes every event to each publisher in turn.
type Fanout []ports.EventPublisher

func (f Fanout) Publish(ev domain.FleetEvent) {
	for _, p := range f {
		if p != nil {
			p.Publish(ev)
		}
	}
}
