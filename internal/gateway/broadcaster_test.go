// ABOUTME: Tests for the push-event fan-out broadcaster.
// ABOUTME: Covers subscribe, publish, unsubscribe, cancellation, backpressure, concurrency.

package gateway

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeEvent(runID, delta string) *PushEvent {
	return &PushEvent{
		Event:  agentEventName,
		RunID:  runID,
		Stream: StreamAssistant,
		Data:   EventData{Delta: delta},
	}
}

func TestBroadcaster_SingleSubscriberReceivesEvent(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	ch, _ := b.Subscribe(context.Background())

	b.Publish(makeEvent("r1", "hello"))

	select {
	case received := <-ch:
		assert.Equal(t, "r1", received.RunID)
		assert.Equal(t, "hello", received.Data.Delta)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBroadcaster_MultipleSubscribersReceiveSameEvent(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	ch1, _ := b.Subscribe(context.Background())
	ch2, _ := b.Subscribe(context.Background())
	ch3, _ := b.Subscribe(context.Background())

	b.Publish(makeEvent("r1", "fan-out"))

	for i, ch := range []<-chan *PushEvent{ch1, ch2, ch3} {
		select {
		case received := <-ch:
			assert.Equal(t, "fan-out", received.Data.Delta, "subscriber %d got wrong event", i)
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d timed out", i)
		}
	}
}

func TestBroadcaster_UnsubscribeDoesNotAffectOthers(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	ch1, sub1 := b.Subscribe(context.Background())
	ch2, _ := b.Subscribe(context.Background())

	b.Unsubscribe(sub1)

	// ch1 is closed; ch2 still receives.
	_, open := <-ch1
	assert.False(t, open, "unsubscribed channel should be closed")

	b.Publish(makeEvent("r1", "still here"))
	select {
	case received := <-ch2:
		assert.Equal(t, "still here", received.Data.Delta)
	case <-time.After(time.Second):
		t.Fatal("remaining subscriber timed out")
	}
}

func TestBroadcaster_ContextCancellationDetaches(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "subscription not cleaned up after cancel")
}

func TestBroadcaster_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	slow, _ := b.Subscribe(context.Background())
	_ = slow // never drained

	done := make(chan struct{})
	go func() {
		// Well past the buffer size; must not block.
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Publish(makeEvent("r1", "x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.Len(t, slow, subscriberBufferSize)
}

func TestBroadcaster_PublishWithNoSubscribersIsDropped(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	// Must not panic or block.
	b.Publish(makeEvent("r1", "into the void"))
}

func TestBroadcaster_CloseClosesAllChannels(t *testing.T) {
	b := NewBroadcaster(testLogger())

	ch1, _ := b.Subscribe(context.Background())
	ch2, _ := b.Subscribe(context.Background())

	b.Close()

	for i, ch := range []<-chan *PushEvent{ch1, ch2} {
		_, open := <-ch
		assert.False(t, open, "channel %d should be closed", i)
	}
}

func TestBroadcaster_ConcurrentPublishAndSubscribe(t *testing.T) {
	b := NewBroadcaster(testLogger())
	defer b.Close()

	var wg sync.WaitGroup
	for n := 0; n < 10; n++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			ch, _ := b.Subscribe(ctx)
			for n := 0; n < 5; n++ {
				select {
				case <-ch:
				case <-time.After(100 * time.Millisecond):
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for n := 0; n < 20; n++ {
				b.Publish(makeEvent("r1", "stress"))
			}
		}()
	}
	wg.Wait()
}
