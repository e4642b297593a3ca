package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

func TestFakeSource_DeliversPushedEvents(t *testing.T) {
	s := NewFakeSource(4)
	ch, err := s.Start(context.Background(), -1, 0)
	require.NoError(t, err)

	f := &frame.Frame{Width: 4, Height: 4}
	s.Push(Event{Frame: f})

	got := <-ch
	assert.Same(t, f, got.Frame)
}

func TestFakeSource_StopClosesChannel(t *testing.T) {
	s := NewFakeSource(1)
	ch, err := s.Start(context.Background(), -1, 0)
	require.NoError(t, err)

	s.Stop()
	_, ok := <-ch
	assert.False(t, ok)

	s.Push(Event{}) // must not panic after Stop
}
