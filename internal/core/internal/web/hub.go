package web

import (
	"context"

	"github.com/jfk9w-go/flu/logf"
	"github.com/jfk9w-go/flu/syncf"
)

const subscriberBuffer = 16

// Hub broadcasts messages to per-topic subscribers.
// Slow subscribers miss messages instead of blocking publishers.
type Hub struct {
	topics map[string]map[chan []byte]bool
	mu     syncf.RWMutex
}

func (h *Hub) String() string {
	return "core.web.hub"
}

func (h *Hub) Subscribe(ctx context.Context, topic string) (<-chan []byte, context.CancelFunc) {
	ctx, cancel := h.mu.Lock(ctx)
	if ctx.Err() != nil {
		return nil, func() {}
	}

	defer cancel()
	if h.topics == nil {
		h.topics = make(map[string]map[chan []byte]bool)
	}

	subscribers, ok := h.topics[topic]
	if !ok {
		subscribers = make(map[chan []byte]bool)
		h.topics[topic] = subscribers
	}

	c := make(chan []byte, subscriberBuffer)
	subscribers[c] = true
	return c, func() { h.unsubscribe(topic, c) }
}

func (h *Hub) unsubscribe(topic string, c chan []byte) {
	_, cancel := h.mu.Lock(nil)
	defer cancel()
	if subscribers, ok := h.topics[topic]; ok {
		delete(subscribers, c)
		if len(subscribers) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) Publish(ctx context.Context, topic string, msg []byte) {
	ctx, cancel := h.mu.RLock(ctx)
	if ctx.Err() != nil {
		return
	}

	defer cancel()
	for c := range h.topics[topic] {
		select {
		case c <- msg:
		default:
			logf.Get(h).Debugf(ctx, "dropped message for slow subscriber on [%s]", topic)
		}
	}
}
