// Package mux implements the channel multiplexer: four priority classes
// draining to one underlying transport connection, each with its own
// queuing discipline. Input, Control, and Clipboard are bounded blocking
// queues; Graphics is a non-blocking, coalescing queue that never
// suspends its producer (the Orchestrator's encode tick) and never drops
// a keyframe in favor of a later non-keyframe.
package mux

import (
	"context"
	"sync"
)

// Priority identifies one of the four multiplexed channel classes, in
// strict drain order (Input first, Graphics last).
type Priority int

const (
	PriorityInput Priority = iota
	PriorityControl
	PriorityClipboard
	PriorityGraphics
)

func (p Priority) String() string {
	switch p {
	case PriorityInput:
		return "input"
	case PriorityControl:
		return "control"
	case PriorityClipboard:
		return "clipboard"
	case PriorityGraphics:
		return "graphics"
	default:
		return "unknown"
	}
}

// Item is one multiplexed payload. IsKeyframe only matters for Graphics
// items; the other classes ignore it.
type Item struct {
	Priority   Priority
	Payload    []byte
	IsKeyframe bool
}

// Transport is the single underlying connection the drain task writes
// to. The Multiplexer guarantees at most one Write call in flight at a
// time, preserving write order.
type Transport interface {
	Write(ctx context.Context, item Item) error
}

const (
	inputBound     = 32
	controlBound   = 16
	clipboardBound = 8
	graphicsBound  = 4
)

// Multiplexer owns the four priority queues and the single-threaded
// drain task that writes them to a Transport in strict priority order.
type Multiplexer struct {
	input     chan Item
	control   chan Item
	clipboard chan Item

	graphics      graphicsQueue
	graphicsReady chan struct{}

	transport Transport
}

// New builds a Multiplexer draining to transport. Run must be called to
// start the drain task.
func New(transport Transport) *Multiplexer {
	return &Multiplexer{
		input:         make(chan Item, inputBound),
		control:       make(chan Item, controlBound),
		clipboard:     make(chan Item, clipboardBound),
		graphicsReady: make(chan struct{}, 1),
		transport:     transport,
	}
}

// EnqueueInput blocks until the Input queue has room or ctx is canceled.
func (m *Multiplexer) EnqueueInput(ctx context.Context, payload []byte) error {
	return enqueueBlocking(ctx, m.input, Item{Priority: PriorityInput, Payload: payload})
}

// EnqueueControl blocks until the Control queue has room or ctx is canceled.
func (m *Multiplexer) EnqueueControl(ctx context.Context, payload []byte) error {
	return enqueueBlocking(ctx, m.control, Item{Priority: PriorityControl, Payload: payload})
}

// EnqueueClipboard blocks until the Clipboard queue has room or ctx is
// canceled.
func (m *Multiplexer) EnqueueClipboard(ctx context.Context, payload []byte) error {
	return enqueueBlocking(ctx, m.clipboard, Item{Priority: PriorityClipboard, Payload: payload})
}

func enqueueBlocking(ctx context.Context, ch chan Item, item Item) error {
	select {
	case ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EnqueueGraphics never blocks the caller. If the Graphics queue has
// room the item is appended; otherwise it coalesces per the
// specification's rule: a queued keyframe is never evicted in favor of
// a later non-keyframe.
func (m *Multiplexer) EnqueueGraphics(item Item) {
	item.Priority = PriorityGraphics
	m.graphics.push(item)
	select {
	case m.graphicsReady <- struct{}{}:
	default:
	}
}

// Run drives the priority-ordered drain loop until ctx is canceled. On
// cancellation, queued Graphics items are discarded and Run returns once
// Input/Control/Clipboard are empty or a write fails. Those final writes
// use context.Background(); no overall shutdown deadline is applied, only
// whatever per-write limit the Transport itself enforces.
func (m *Multiplexer) Run(ctx context.Context) error {
	for {
		if done, err := m.drainOneReady(ctx); done {
			return err
		}
	}
}

// drainOneReady writes at most one item, chosen in strict priority
// order, and reports whether the loop should stop (either a write
// failed or ctx was canceled).
func (m *Multiplexer) drainOneReady(ctx context.Context) (bool, error) {
	select {
	case item := <-m.input:
		return m.writeOrStop(ctx, item)
	default:
	}
	select {
	case item := <-m.control:
		return m.writeOrStop(ctx, item)
	default:
	}
	select {
	case item := <-m.clipboard:
		return m.writeOrStop(ctx, item)
	default:
	}
	if item, ok := m.graphics.pop(); ok {
		return m.writeOrStop(ctx, item)
	}

	select {
	case item := <-m.input:
		return m.writeOrStop(ctx, item)
	case item := <-m.control:
		return m.writeOrStop(ctx, item)
	case item := <-m.clipboard:
		return m.writeOrStop(ctx, item)
	case <-m.graphicsReady:
		if item, ok := m.graphics.pop(); ok {
			return m.writeOrStop(ctx, item)
		}
		return false, nil
	case <-ctx.Done():
		return true, m.drainShutdown(ctx)
	}
}

func (m *Multiplexer) writeOrStop(ctx context.Context, item Item) (bool, error) {
	if err := m.write(ctx, item); err != nil {
		return true, err
	}
	return false, nil
}

func (m *Multiplexer) write(ctx context.Context, item Item) error {
	return m.transport.Write(ctx, item)
}

// drainShutdown empties Input/Control/Clipboard without the caller's
// canceled context, discarding any queued Graphics items, per the
// cancellation contract.
func (m *Multiplexer) drainShutdown(ctx context.Context) error {
	m.graphics.clear()
	for {
		select {
		case item := <-m.input:
			if err := m.transport.Write(context.Background(), item); err != nil {
				return err
			}
		case item := <-m.control:
			if err := m.transport.Write(context.Background(), item); err != nil {
				return err
			}
		case item := <-m.clipboard:
			if err := m.transport.Write(context.Background(), item); err != nil {
				return err
			}
		default:
			return ctx.Err()
		}
	}
}

// graphicsQueue is the bounded, coalescing Graphics queue. It is
// protected by its own mutex rather than a channel because its push
// operation must apply the keyframe-preserving eviction rule instead of
// a plain bounded-channel drop.
type graphicsQueue struct {
	mu    sync.Mutex
	items []Item
}

func (q *graphicsQueue) push(item Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) < graphicsBound {
		q.items = append(q.items, item)
		return
	}

	if !item.IsKeyframe && q.items[0].IsKeyframe {
		// Never drop a queued keyframe in favor of a later non-keyframe:
		// drop the incoming item instead.
		return
	}
	q.items = append(q.items[1:], item)
}

func (q *graphicsQueue) pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *graphicsQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
}
