package gateway

import (
	"context"
	"sync"

	"github.com/flightfinder-eu/flightbot/internal/model"
)

// Collector is a Replier that buffers replies for request/response transports.
type Collector struct {
	mu      sync.Mutex
	replies []Reply
}

// Send appends the reply.
func (c *Collector) Send(_ context.Context, r Reply) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, r)
	return nil
}

// Replies returns a copy of the collected replies in send order.
func (c *Collector) Replies() []Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Reply, len(c.replies))
	copy(out, c.replies)
	return out
}

// Texts returns the text of every collected reply.
func (c *Collector) Texts() []string {
	replies := c.Replies()
	out := make([]string, len(replies))
	for i, r := range replies {
		out[i] = r.Text
	}
	return out
}

// NopPublisher drops search events. It is used when no broker is configured.
type NopPublisher struct{}

// PublishSearchEvent does nothing.
func (NopPublisher) PublishSearchEvent(context.Context, model.SearchEvent) error { return nil }
