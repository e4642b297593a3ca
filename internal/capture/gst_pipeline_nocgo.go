//go:build !cgo

package capture

import (
	"context"
	"errors"
	"log/slog"
)

// ErrCGORequired is returned by GstSource when the binary was built
// without cgo, since go-gst's bindings require it.
var ErrCGORequired = errors.New("capture: GStreamer support requires cgo")

// GstSource is a stub when cgo is disabled; every method fails or
// no-ops so callers built without cgo get a clear error instead of a
// link failure.
type GstSource struct{}

// NewGstSource returns a GstSource stub. Arguments are accepted for
// interface parity with the cgo build and otherwise unused.
func NewGstSource(log *slog.Logger, width, height int) *GstSource {
	return &GstSource{}
}

func (g *GstSource) Start(ctx context.Context, mediaSocketFD int, streamID uint32) (<-chan Event, error) {
	return nil, ErrCGORequired
}

func (g *GstSource) Stop() {}
