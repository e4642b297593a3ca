// Package capture implements CaptureSource: negotiating and reading
// frames from the zero-copy media-capture socket a Wayland compositor's
// screencast endpoint exposes, and wrapping them as frame.Frame values
// for the rest of the pipeline.
package capture

import (
	"context"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

// ReconfigureEvent is delivered on the frame stream when the remote
// endpoint changes pixel format or resolution mid-session, distinct from
// the normal frame flow so the Orchestrator can reset its damage
// baseline and encoder state before the next frame.
type ReconfigureEvent struct {
	Width, Height int
	Format        frame.PixelFormat
}

// Event is one item from a Source's stream: either a captured Frame or a
// ReconfigureEvent, never both.
type Event struct {
	Frame       *frame.Frame
	Reconfigure *ReconfigureEvent
}

// Source negotiates a pixel format and resolution with the remote media
// endpoint over mediaSocketFD, then delivers frames in capture order
// until ctx is canceled or Stop is called.
type Source interface {
	// Start begins reading from the negotiated media-capture socket
	// identified by mediaSocketFD and streamID, returning a channel of
	// Events. The channel is closed when the stream ends.
	Start(ctx context.Context, mediaSocketFD int, streamID uint32) (<-chan Event, error)
	// Stop releases all resources Start acquired. Safe to call more than
	// once and safe to call without a prior Start.
	Stop()
}
