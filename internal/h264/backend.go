package h264

import "github.com/lamco-admin/wayland-rdp-bridge/internal/frame"

// EncodeOptions controls one call into the underlying encoder.
type EncodeOptions struct {
	// ForceKeyframe requests an IDR regardless of the encoder's own
	// rate-control/scene-change decision.
	ForceKeyframe bool
	// NonReference marks the resulting picture so the encoder's DPB never
	// offers it as a reference for subsequent frames. Used for Auxiliary
	// subframes in the AVC444 single-encoder state machine, so an
	// Auxiliary picture can never be selected as the prediction source
	// for a Main picture. Main pictures are not marked, so an Auxiliary
	// picture may still predict from an earlier Main.
	NonReference bool
}

// BackendConfig is the static configuration an encoderBackend is built
// with; it does not change across the life of the backend.
type BackendConfig struct {
	Width, Height int
	Matrix        frame.ColorMatrix
	Range         frame.ColorRange
	TargetFPS     int
}

// encoderBackend is the minimal surface Avc420Encoder and Avc444Encoder
// need from an underlying H.264 encoder. It is implemented by
// openh264Backend (cgo) and a test fake, so the dual-subframe state
// machine and omission logic in this package are testable without cgo or
// a real codec.
type encoderBackend interface {
	Encode(y frame.YuvFrame, opts EncodeOptions) (data []byte, isKeyframe bool, err error)
	Close() error
}
