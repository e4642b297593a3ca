package mux

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu      sync.Mutex
	written []Item
}

func (r *recordingTransport) Write(ctx context.Context, item Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.written = append(r.written, item)
	return nil
}

func (r *recordingTransport) snapshot() []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Item, len(r.written))
	copy(out, r.written)
	return out
}

func TestMultiplexer_DrainsInPriorityOrder(t *testing.T) {
	transport := &recordingTransport{}
	m := New(transport)

	require.NoError(t, m.EnqueueClipboard(context.Background(), []byte("c")))
	require.NoError(t, m.EnqueueControl(context.Background(), []byte("k")))
	m.EnqueueGraphics(Item{Payload: []byte("g")})
	require.NoError(t, m.EnqueueInput(context.Background(), []byte("i")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(transport.snapshot()) == 4 }, time.Second, time.Millisecond)
	cancel()
	<-done

	written := transport.snapshot()
	assert.Equal(t, PriorityInput, written[0].Priority)
	assert.Equal(t, PriorityControl, written[1].Priority)
	assert.Equal(t, PriorityClipboard, written[2].Priority)
	assert.Equal(t, PriorityGraphics, written[3].Priority)
}

func TestGraphicsQueue_CoalescesWhenFull(t *testing.T) {
	var q graphicsQueue
	for i := 0; i < graphicsBound; i++ {
		q.push(Item{Payload: []byte{byte(i)}})
	}
	q.push(Item{Payload: []byte{99}}) // queue full, oldest non-keyframe evicted

	item, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, byte(1), item.Payload[0], "oldest item should have been evicted")
}

func TestGraphicsQueue_NeverDropsKeyframeForNonKeyframe(t *testing.T) {
	var q graphicsQueue
	q.push(Item{Payload: []byte{0}, IsKeyframe: true})
	for i := 1; i < graphicsBound; i++ {
		q.push(Item{Payload: []byte{byte(i)}})
	}
	// Queue full, oldest is a keyframe; a non-keyframe arrival must be dropped.
	q.push(Item{Payload: []byte{99}})

	item, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, byte(0), item.Payload[0])
	assert.True(t, item.IsKeyframe)
}

func TestGraphicsQueue_KeyframeEvictsOldestEvenIfQueuedIsKeyframe(t *testing.T) {
	var q graphicsQueue
	for i := 0; i < graphicsBound; i++ {
		q.push(Item{Payload: []byte{byte(i)}, IsKeyframe: true})
	}
	q.push(Item{Payload: []byte{99}, IsKeyframe: true})

	item, _ := q.pop()
	assert.Equal(t, byte(1), item.Payload[0])
}

func TestMultiplexer_EnqueueGraphicsNeverBlocks(t *testing.T) {
	transport := &recordingTransport{}
	m := New(transport)
	for i := 0; i < graphicsBound*4; i++ {
		m.EnqueueGraphics(Item{Payload: []byte{byte(i)}})
	}
}
