package ws

import (
	"encoding/json"
	"sync"

	"github.com/arvind-99/commune/internal/metrics"
	"go.uber.org/zap"
)

// Hub is the channel router: the one piece of shared mutable state in
// the realtime path. It maps channel names (usernames) to the set of
// live connections subscribed to them.
//
// The hub is an owned object created in main and passed by reference to
// every connection handler; its state lives and dies with the process.
// A single mutex guards the registry — join, leave and the dispatch
// snapshot are all short map operations, so finer-grained locking buys
// nothing at this scale.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{}

	metrics *metrics.Collector
	logger  *zap.Logger
}

func NewHub(collector *metrics.Collector, logger *zap.Logger) *Hub {
	return &Hub{
		channels: make(map[string]map[*Client]struct{}),
		metrics:  collector,
		logger:   logger,
	}
}

// Join subscribes the client to the channel. Idempotent: joining a
// channel twice leaves the client in the set exactly once.
func (h *Hub) Join(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.channels[channel]
	if subs == nil {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	c.channels[channel] = struct{}{}
}

// Leave unsubscribes the client. Idempotent; an emptied channel entry
// is removed so absent and empty are the same observable state.
func (h *Hub) Leave(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveLocked(c, channel)
}

func (h *Hub) leaveLocked(c *Client, channel string) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(c.channels, channel)
}

// Disconnect removes the client from every channel it joined. Safe to
// call twice; the second call finds nothing to remove.
func (h *Hub) Disconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel := range c.channels {
		h.leaveLocked(c, channel)
	}
}

// Dispatch delivers one event to every connection subscribed to any of
// the named channels, exactly once per connection even when it is
// subscribed through more than one of them.
//
// The subscriber set is snapshotted under the lock and iterated outside
// it, so a concurrent disconnect can't mutate a set mid-broadcast.
// Delivery is best-effort: a connection whose send buffer is full has
// the frame dropped rather than stalling everyone else.
func (h *Hub) Dispatch(event string, payload any, channels ...string) {
	data, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		h.logger.Error("marshal dispatch payload", zap.String("event", event), zap.Error(err))
		return
	}

	targets := h.subscribers(channels...)

	delivered := 0
	for _, c := range targets {
		select {
		case c.send <- data:
			delivered++
		default:
			h.metrics.MessageDropped(metrics.DropSlowConsumer)
			h.logger.Warn("dropping frame for slow consumer",
				zap.String("event", event),
				zap.String("client", c.Name()),
			)
		}
	}
	h.metrics.Delivered(delivered)
}

// subscribers returns the deduplicated union of the subscriber sets.
func (h *Hub) subscribers(channels ...string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	out := make([]*Client, 0)
	for _, channel := range channels {
		for c := range h.channels[channel] {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// subscriberCount reports how many connections a channel currently has.
// Zero for channels the hub does not track.
func (h *Hub) subscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
