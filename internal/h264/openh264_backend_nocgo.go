//go:build !cgo

package h264

import (
	"errors"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

// ErrCGORequired is returned by every openh264Backend entry point when
// built without cgo, mirroring the teacher's gst_pipeline_nocgo.go stub
// pattern for its GStreamer bindings.
var ErrCGORequired = errors.New("h264: openh264 encoding requires cgo")

type openh264Backend struct{}

// NewOpenH264Backend returns an error when cgo is disabled.
func NewOpenH264Backend(cfg BackendConfig) (*openh264Backend, error) {
	return nil, ErrCGORequired
}

func (b *openh264Backend) Encode(y frame.YuvFrame, opts EncodeOptions) ([]byte, bool, error) {
	return nil, false, ErrCGORequired
}

func (b *openh264Backend) Close() error { return ErrCGORequired }
