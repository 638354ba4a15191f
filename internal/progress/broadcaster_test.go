// ABOUTME: Tests for the batch progress broadcaster
// ABOUTME: Covers subscribe, publish, wildcard subscribers, cancellation and slow consumers

package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/quarkdown-mcp/internal/batch"
)

func makeEvent(batchID string, index int) batch.Event {
	return batch.Event{Kind: batch.EventDocumentFinished, BatchID: batchID, Index: index, Time: time.Now()}
}

func receive(t *testing.T, ch <-chan batch.Event) batch.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return batch.Event{}
}

func TestBroadcaster_SubscriberReceivesEvent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "batch-1")
	b.Publish(makeEvent("batch-1", 3))

	assert.Equal(t, 3, receive(t, ch).Index)
}

func TestBroadcaster_BatchesAreIsolated(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(t.Context(), "batch-1")
	ch2, _ := b.Subscribe(t.Context(), "batch-2")

	b.Publish(makeEvent("batch-1", 0))

	assert.Equal(t, "batch-1", receive(t, ch1).BatchID)
	select {
	case ev := <-ch2:
		t.Fatalf("batch-2 subscriber got %v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcaster_AllBatchesSubscriber(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	all, _ := b.Subscribe(t.Context(), AllBatches)
	b.Publish(makeEvent("batch-1", 0))
	b.Publish(makeEvent("batch-2", 1))

	assert.Equal(t, "batch-1", receive(t, all).BatchID)
	assert.Equal(t, "batch-2", receive(t, all).BatchID)
}

func TestBroadcaster_ContextCancelUnsubscribes(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx, "batch-1")
	require.Equal(t, 1, b.SubscriberCount())

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return b.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestBroadcaster_SlowSubscriberDropsEvents(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), "batch-1")
	for i := 0; i < subscriberBufferSize+10; i++ {
		b.Publish(makeEvent("batch-1", i))
	}

	assert.Len(t, ch, subscriberBufferSize)
}

func TestBroadcaster_UnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	_, id := b.Subscribe(t.Context(), "batch-1")
	b.Unsubscribe("batch-1", id)
	b.Unsubscribe("batch-1", id)
	b.Unsubscribe("missing", id)
	assert.Zero(t, b.SubscriberCount())
}

func TestBroadcaster_SubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster(nil)
	b.Close()

	ch, _ := b.Subscribe(t.Context(), "batch-1")
	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(makeEvent("batch-1", 0))
}

func TestBroadcaster_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		ctx, cancel := context.WithCancel(context.Background())
		b.Subscribe(ctx, AllBatches)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Publish(makeEvent("batch-x", j))
			}
		}()
		go func() {
			defer wg.Done()
			cancel()
		}()
	}
	wg.Wait()
}

func TestBroadcaster_ObserverFeedsEngine(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(t.Context(), AllBatches)
	observe := b.Observer()
	observe(batch.Event{Kind: batch.EventBatchStarted, BatchID: "b", Total: 2})

	ev := receive(t, ch)
	assert.Equal(t, batch.EventBatchStarted, ev.Kind)
	assert.Equal(t, 2, ev.Total)
}
