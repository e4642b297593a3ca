package capture

import (
	"context"
	"sync"
)

// FakeSource is a test double implementing Source, used by orchestrator
// tests to drive a deterministic sequence of frames and reconfigure
// events without a real compositor or cgo.
type FakeSource struct {
	mu      sync.Mutex
	ch      chan Event
	stopped bool
}

// NewFakeSource builds a FakeSource with the given channel buffer depth.
func NewFakeSource(buffer int) *FakeSource {
	return &FakeSource{ch: make(chan Event, buffer)}
}

func (s *FakeSource) Start(ctx context.Context, mediaSocketFD int, streamID uint32) (<-chan Event, error) {
	return s.ch, nil
}

// Push delivers an Event to the stream. A no-op after Stop.
func (s *FakeSource) Push(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.ch <- e
}

func (s *FakeSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.ch)
}
