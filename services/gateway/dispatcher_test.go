package gateway

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendo/models"
)

func msgEvent(instance, sender, text string) models.InboundEvent {
	return models.InboundEvent{
		InstanceID: instance,
		Kind:       models.EventKindMessage,
		Sender:     sender,
		Text:       text,
	}
}

func TestDispatcher_FIFOPerSender(t *testing.T) {
	var mu sync.Mutex
	got := make(map[string][]string)
	done := make(chan struct{}, 20)

	d := NewDispatcher(func(ev models.InboundEvent) {
		mu.Lock()
		got[ev.Sender] = append(got[ev.Sender], ev.Text)
		mu.Unlock()
		done <- struct{}{}
	}, 32, time.Minute)

	for i := 0; i < 10; i++ {
		require.NoError(t, d.Enqueue(msgEvent("inst", "alice", fmt.Sprintf("a%d", i))))
		require.NoError(t, d.Enqueue(msgEvent("inst", "bob", fmt.Sprintf("b%d", i))))
	}
	for i := 0; i < 20; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < 10; i++ {
		assert.Equal(t, fmt.Sprintf("a%d", i), got["alice"][i])
		assert.Equal(t, fmt.Sprintf("b%d", i), got["bob"][i])
	}
}

func TestDispatcher_FullLaneRejects(t *testing.T) {
	block := make(chan struct{})
	d := NewDispatcher(func(models.InboundEvent) { <-block }, 2, time.Minute)
	defer close(block)

	// First event occupies the worker, two more fill the buffer.
	require.NoError(t, d.Enqueue(msgEvent("inst", "alice", "1")))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, d.Enqueue(msgEvent("inst", "alice", "2")))
	require.NoError(t, d.Enqueue(msgEvent("inst", "alice", "3")))

	err := d.Enqueue(msgEvent("inst", "alice", "4"))
	assert.ErrorIs(t, err, ErrQueueFull)

	// A different sender has its own lane and is unaffected.
	assert.NoError(t, d.Enqueue(msgEvent("inst", "bob", "1")))
}

func TestDispatcher_ShutdownDrains(t *testing.T) {
	var mu sync.Mutex
	var processed []string
	d := NewDispatcher(func(ev models.InboundEvent) {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		processed = append(processed, ev.Text)
		mu.Unlock()
	}, 8, time.Minute)

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(msgEvent("inst", "alice", fmt.Sprintf("%d", i))))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, processed, 5, "buffered events must drain on shutdown")

	assert.ErrorIs(t, d.Enqueue(msgEvent("inst", "alice", "late")), ErrShuttingDown)
}

func TestDispatcher_ReapsIdleLanes(t *testing.T) {
	d := NewDispatcher(func(models.InboundEvent) {}, 4, 30*time.Millisecond)

	require.NoError(t, d.Enqueue(msgEvent("inst", "alice", "1")))

	assert.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.lanes) == 0
	}, time.Second, 10*time.Millisecond, "idle lane should be reaped")

	// The sender comes back; a fresh lane is created transparently.
	assert.NoError(t, d.Enqueue(msgEvent("inst", "alice", "2")))
}
