// ABOUTME: In-memory fan-out of batch progress events
// ABOUTME: Subscribers follow one batch ID or every batch; slow subscribers drop events

package progress

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/quarkdown-mcp/internal/batch"
)

const (
	// subscriberBufferSize is the channel buffer for each subscriber.
	subscriberBufferSize = 64

	// AllBatches subscribes to events from every batch.
	AllBatches = ""
)

// Broadcaster provides pub/sub for batch.Events keyed by batch ID.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan batch.Event // batchID -> subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewBroadcaster creates a broadcaster. Pass nil logger for default.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		subscribers: make(map[string]map[string]chan batch.Event),
		logger:      logger.With("component", "progress"),
	}
}

// Subscribe registers for events of batchID, or of every batch when batchID
// is AllBatches. The subscription is removed and its channel closed when ctx
// is cancelled. Subscribing to a closed broadcaster returns a closed channel.
func (b *Broadcaster) Subscribe(ctx context.Context, batchID string) (<-chan batch.Event, string) {
	subID := uuid.New().String()
	ch := make(chan batch.Event, subscriberBufferSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if _, ok := b.subscribers[batchID]; !ok {
		b.subscribers[batchID] = make(map[string]chan batch.Event)
	}
	b.subscribers[batchID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "batch_id", batchID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(batchID, subID)
	}()

	return ch, subID
}

// Publish delivers ev to subscribers of its batch and to AllBatches
// subscribers. It never blocks: full subscriber channels drop the event.
func (b *Broadcaster) Publish(ev batch.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.deliverLocked(b.subscribers[ev.BatchID], ev)
	if ev.BatchID != AllBatches {
		b.deliverLocked(b.subscribers[AllBatches], ev)
	}
}

// deliverLocked must be called with mu held. Holding the lock while sending
// keeps Unsubscribe from closing a channel mid-send.
func (b *Broadcaster) deliverLocked(subs map[string]chan batch.Event, ev batch.Event) {
	for subID, ch := range subs {
		select {
		case ch <- ev:
		default:
			b.logger.Debug("dropped event for slow subscriber",
				"batch_id", ev.BatchID,
				"sub_id", subID,
				"kind", ev.Kind)
		}
	}
}

// Observer returns a batch.Observer that publishes to b.
func (b *Broadcaster) Observer() batch.Observer {
	return b.Publish
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(batchID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[batchID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, batchID)
	}

	b.logger.Debug("subscriber removed", "batch_id", batchID, "sub_id", subID)
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, subs := range b.subscribers {
		n += len(subs)
	}
	return n
}

// Close closes every subscriber channel. Later subscriptions get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for batchID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, batchID)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
