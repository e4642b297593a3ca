//go:build cgo

// openh264Backend adapts github.com/y9o/go-openh264's cgo-bound encoder
// to the encoderBackend interface. It is the only place in this package
// that knows about the concrete codec library, so the dual-subframe
// state machine and omission logic stay testable against fakeBackend
// without cgo.
package h264

import (
	"fmt"

	"github.com/y9o/go-openh264/openh264"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

// openh264Backend wraps one openh264.Encoder instance. It is not safe for
// concurrent use; Avc420Encoder/Avc444Encoder serialize calls through the
// Orchestrator's single per-tick goroutine.
type openh264Backend struct {
	enc *openh264.Encoder
	cfg BackendConfig
}

// NewOpenH264Backend constructs the single encoder instance an
// Avc420Encoder or Avc444Encoder wraps for the life of a session.
//
// Scene-change detection must stay disabled: the encoder must never
// insert a keyframe the OmissionController/Orchestrator didn't ask for,
// since an unrequested Auxiliary keyframe would desync the LC-flag
// bookkeeping both sides rely on. VUI color-signaling is set from
// cfg.Matrix/cfg.Range so every SPS the encoder emits declares exactly
// what ColorConverter actually produced.
func NewOpenH264Backend(cfg BackendConfig) (*openh264Backend, error) {
	primaries, transfer, coeffs, fullRange := expectedSignal(cfg.Matrix, cfg.Range)
	params := openh264.EncoderParams{
		Width:                   cfg.Width,
		Height:                  cfg.Height,
		FrameRate:               float32(cfg.TargetFPS),
		RateControl:             openh264.RateControlQuality,
		EnableDenoise:           false,
		EnableSceneChangeDetect: false,
		ColourPrimaries:         uint8(primaries),
		TransferCharacteristics: uint8(transfer),
		MatrixCoefficients:      uint8(coeffs),
		VideoFullRangeFlag:      fullRange,
	}
	enc, err := openh264.NewEncoder(params)
	if err != nil {
		return nil, fmt.Errorf("openh264: new encoder: %w", err)
	}
	return &openh264Backend{enc: enc, cfg: cfg}, nil
}

func (b *openh264Backend) Encode(y frame.YuvFrame, opts EncodeOptions) ([]byte, bool, error) {
	img := openh264.YUVImage{
		Width:  y.Width,
		Height: y.Height,
		Y:      y.Y.Data,
		YStride: y.Y.Stride,
		U:      y.U.Data,
		UStride: y.U.Stride,
		V:      y.V.Data,
		VStride: y.V.Stride,
	}
	b.enc.SetForceNonReference(opts.NonReference)
	if opts.ForceKeyframe {
		b.enc.ForceIntraFrame()
	}
	out, err := b.enc.EncodeFrame(img)
	if err != nil {
		return nil, false, fmt.Errorf("openh264: encode: %w", err)
	}
	if err := verifySPSColorSignaling(out.Data, b.cfg.Matrix, b.cfg.Range); err != nil {
		return nil, false, err
	}
	return out.Data, out.IsKeyframe, nil
}

// verifySPSColorSignaling checks any SPS NAL unit present in accessUnit
// against matrix/rng. Not every access unit carries an SPS (only the
// ones accompanying a keyframe typically do); access units with none are
// not checked.
func verifySPSColorSignaling(accessUnit []byte, matrix frame.ColorMatrix, rng frame.ColorRange) error {
	for _, nal := range SplitNALUnits(accessUnit) {
		if NALType(nal) != NALTypeSPS {
			continue
		}
		if err := VerifyColorSignaling(nal, matrix, rng); err != nil {
			return err
		}
	}
	return nil
}

func (b *openh264Backend) Close() error {
	b.enc.Close()
	return nil
}
