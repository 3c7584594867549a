package notify

import (
	"sync"
	"time"
)

// Topic names a change-notification channel the UI layer subscribes to.
type Topic string

const (
	TopicBasketSync       Topic = "basket_sync"
	TopicStageChanged     Topic = "stage_changed"
	TopicCouponsChanged   Topic = "coupons_changed"
	TopicShipmentsChanged Topic = "shipments_changed"
	TopicPaymentsChanged  Topic = "payments_changed"
)

// Event is one published notification.
type Event struct {
	Topic Topic     `json:"topic"`
	At    time.Time `json:"at"`
	Data  any       `json:"data,omitempty"`
}

type subscriber struct {
	topic Topic
	ch    chan Event
}

// Hub is an in-process publish/subscribe fan-out. The engine publishes, the
// UI layer subscribes; the engine never calls into the UI directly.
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// Subscribe registers a buffered listener on one topic. The returned cancel
// function removes the subscription and closes the channel.
func (h *Hub) Subscribe(topic Topic, buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &subscriber{topic: topic, ch: make(chan Event, buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[sub]; ok {
			delete(h.subs, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of the topic. Slow consumers
// with a full buffer miss the event rather than blocking a basket mutation.
func (h *Hub) Publish(topic Topic, data any) {
	event := Event{Topic: topic, At: time.Now(), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if sub.topic != topic {
			continue
		}
		select {
		case sub.ch <- event:
		default:
		}
	}
}
