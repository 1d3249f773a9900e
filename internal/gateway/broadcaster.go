// ABOUTME: In-memory fan-out broadcaster for gateway push events.
// ABOUTME: Delivers each event to every active subscription without blocking the reader loop.

package gateway

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscription.
const subscriberBufferSize = 64

// Broadcaster fans out push events to zero or more active
// subscriptions. Publishing never blocks: a subscriber whose channel is
// full has that event dropped for it alone, so a slow consumer cannot
// stall delivery to others or stall the connection's reader loop.
// Run filtering is the consumer's responsibility.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan *PushEvent
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]chan *PushEvent),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a new subscription and returns its event channel
// and subscription ID. The subscription is detached when ctx is
// cancelled; detaching one subscription never affects the others.
func (b *Broadcaster) Subscribe(ctx context.Context) (<-chan *PushEvent, string) {
	subID := uuid.New().String()
	ch := make(chan *PushEvent, subscriberBufferSize)

	b.mu.Lock()
	b.subscribers[subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(subID)
	}()

	return ch, subID
}

// Publish delivers an event to all active subscriptions. Events are
// dropped for subscribers whose channels are full; with no subscribers
// the event is dropped entirely (push frames are never buffered).
func (b *Broadcaster) Publish(event *PushEvent) {
	b.mu.RLock()
	targets := make([]chan *PushEvent, 0, len(b.subscribers))
	for _, ch := range b.subscribers {
		targets = append(targets, ch)
	}
	b.mu.RUnlock()

	for _, ch := range targets {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"run_id", event.RunID,
				"stream", string(event.Stream))
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.subscribers[subID]
	if !ok {
		return
	}

	delete(b.subscribers, subID)
	close(ch)

	b.logger.Debug("subscriber removed", "sub_id", subID)
}

// Close shuts down the broadcaster and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subID, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, subID)
	}
}
