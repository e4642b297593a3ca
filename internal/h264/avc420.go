package h264

import (
	"time"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// Avc420Encoder wraps a single H.264 encoder producing one Annex-B
// bitstream from YUV 4:2:0 input, for the mono (non-444) codec mode.
type Avc420Encoder struct {
	backend encoderBackend
	seq     uint64
}

// NewAvc420Encoder builds an Avc420Encoder bound to the given backend.
// The caller owns the backend's lifetime via Close.
func NewAvc420Encoder(backend encoderBackend) *Avc420Encoder {
	return &Avc420Encoder{backend: backend}
}

// Encode produces one EncodedUnit from yuv420. forceKeyframe requests an
// IDR on this tick regardless of the encoder's own rate control.
func (e *Avc420Encoder) Encode(yuv420 frame.YuvFrame, forceKeyframe bool) (frame.EncodedUnit, error) {
	if yuv420.Subsampling != frame.Subsampling420 {
		return frame.EncodedUnit{}, rdperrors.Protocolf("h264.avc420", "Encode requires 4:2:0 input, got subsampling %d", yuv420.Subsampling)
	}
	data, isKey, err := e.backend.Encode(yuv420, EncodeOptions{ForceKeyframe: forceKeyframe})
	if err != nil {
		return frame.EncodedUnit{}, rdperrors.Transient("h264.avc420", err)
	}
	e.seq++
	return frame.EncodedUnit{
		Data:       data,
		IsKeyframe: isKey,
		Kind:       frame.KindMono,
		Seq:        e.seq,
		EncodedAt:  time.Now(),
	}, nil
}

// Close releases the underlying backend.
func (e *Avc420Encoder) Close() error {
	return e.backend.Close()
}
