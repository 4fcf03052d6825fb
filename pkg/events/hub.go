// Package events fans out application lifecycle events to in-process subscribers.
package events

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Event types published by the admission workflow.
const (
	TypeApplicationSubmitted = "application.submitted"
	TypeStatusChanged        = "application.status_changed"
	TypeNotificationSent     = "application.notification_sent"
)

// Event is a single lifecycle message.
type Event struct {
	Type          string    `json:"type"`
	ApplicationID string    `json:"application_id"`
	ApplicantID   string    `json:"applicant_id,omitempty"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Subscription receives events until Close is called.
type Subscription struct {
	C      <-chan Event
	ch     chan Event
	hub    *Hub
	id     uint64
	filter func(Event) bool
	once   sync.Once
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

// Hub is a non-blocking broadcaster. Slow subscribers lose events instead of stalling publishers.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription
	nextID  uint64
	buffer  int
	logger  *zap.Logger
	dropped uint64
}

// NewHub constructs a hub with the given per-subscriber buffer.
func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{subs: make(map[uint64]*Subscription), buffer: buffer, logger: logger}
}

// Subscribe registers a subscriber. A nil filter receives everything.
func (h *Hub) Subscribe(filter func(Event) bool) *Subscription {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{C: ch, ch: ch, hub: h, id: h.nextID, filter: filter}
	h.subs[sub.id] = sub
	return sub
}

// Publish delivers evt to every matching subscriber.
func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if sub.filter != nil && !sub.filter(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			atomic.AddUint64(&h.dropped, 1)
			h.logger.Warn("event dropped for slow subscriber", zap.Uint64("subscriber", sub.id), zap.String("type", evt.Type))
		}
	}
}

// Dropped reports how many deliveries were skipped for full subscriber buffers.
func (h *Hub) Dropped() uint64 {
	return atomic.LoadUint64(&h.dropped)
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(sub.ch)
	}
}
