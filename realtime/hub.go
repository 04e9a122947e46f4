package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TopicOrders = "orders"
	TopicChat   = "chat"

	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
	EventChatMessage        = "chat.message"
)

// Event is a row-level change notification. Key carries the order id so
// subscribers can filter per order.
type Event struct {
	Topic      string          `json:"topic"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewEvent marshals payload into an Event.
func NewEvent(topic, eventType, key string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Topic:      topic,
		Type:       eventType,
		Key:        key,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

type Filter func(Event) bool

// KeyFilter matches events for a single key.
func KeyFilter(key string) Filter {
	return func(ev Event) bool { return ev.Key == key }
}

// TypeFilter matches any of the given event types.
func TypeFilter(types ...string) Filter {
	return func(ev Event) bool {
		for _, t := range types {
			if ev.Type == t {
				return true
			}
		}
		return false
	}
}

type subscription struct {
	topic  string
	filter Filter
	ch     chan Event
}

// Hub fans events out to in-process subscribers. Delivery is best effort:
// a subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]*subscription
	nextID uint64
	buffer int
	closed bool
	logger *zap.Logger
}

func NewHub(buffer int, logger *zap.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[uint64]*subscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe registers interest in topic. The returned disposer removes the
// subscription and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(topic string, filter Filter) (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := h.nextID
	h.nextID++
	h.subs[id] = &subscription{topic: topic, filter: filter, ch: ch}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Broadcast delivers ev to every matching subscriber without blocking.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.topic != ev.Topic {
			continue
		}
		if sub.filter != nil && !sub.filter(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("Dropping realtime event for slow subscriber",
				zap.String("topic", ev.Topic),
				zap.String("type", ev.Type),
				zap.String("key", ev.Key),
			)
		}
	}
}

func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscribers receive a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
	}
}
