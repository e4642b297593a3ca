package h264

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// fakeBackend is a test double for encoderBackend: it records every call's
// options so the dual-subframe state machine can be tested without cgo or
// a real codec.
type fakeBackend struct {
	calls   []EncodeOptions
	nextErr error
	closed  bool
}

func (f *fakeBackend) Encode(y frame.YuvFrame, opts EncodeOptions) ([]byte, bool, error) {
	f.calls = append(f.calls, opts)
	if f.nextErr != nil {
		err := f.nextErr
		f.nextErr = nil
		return nil, false, err
	}
	return []byte{0x65, 0xAA}, opts.ForceKeyframe, nil
}

func (f *fakeBackend) Close() error {
	f.closed = true
	return nil
}

func yuv420(w, h int) frame.YuvFrame {
	return frame.YuvFrame{
		Width: w, Height: h, Subsampling: frame.Subsampling420,
		Y: frame.Plane{Data: make([]byte, w*h), Stride: w},
		U: frame.Plane{Data: make([]byte, w*h/4), Stride: w / 2},
		V: frame.Plane{Data: make([]byte, w*h/4), Stride: w / 2},
	}
}

func TestAvc444Encoder_MainThenAuxOrder(t *testing.T) {
	backend := &fakeBackend{}
	enc := NewAvc444Encoder(backend)

	main, err := enc.EncodeMain(yuv420(16, 16), false)
	require.NoError(t, err)
	assert.Equal(t, frame.KindMain, main.Kind)

	aux, err := enc.EncodeAux(yuv420(16, 16), false)
	require.NoError(t, err)
	assert.Equal(t, frame.KindAux, aux.Kind)

	require.Len(t, backend.calls, 2)
	assert.False(t, backend.calls[0].NonReference, "Main must be a reference picture")
	assert.True(t, backend.calls[1].NonReference, "Auxiliary must be marked non-reference")
}

func TestAvc444Encoder_KeyframeForced(t *testing.T) {
	backend := &fakeBackend{}
	enc := NewAvc444Encoder(backend)

	main, err := enc.EncodeMain(yuv420(16, 16), true)
	require.NoError(t, err)
	assert.True(t, main.IsKeyframe)
}

func TestAvc444Encoder_AuxEncodeErrorIsTransient(t *testing.T) {
	backend := &fakeBackend{nextErr: errors.New("codec failure")}
	enc := NewAvc444Encoder(backend)

	_, err := enc.EncodeAux(yuv420(16, 16), false)
	require.Error(t, err)
	assert.True(t, rdperrors.Is(err, rdperrors.KindTransient))
}

func TestAvc444Encoder_RejectsNon420Input(t *testing.T) {
	backend := &fakeBackend{}
	enc := NewAvc444Encoder(backend)

	bad := yuv420(16, 16)
	bad.Subsampling = frame.Subsampling444
	_, err := enc.EncodeMain(bad, false)
	assert.Error(t, err)
}

func TestStripParameterSets_RemovesSPSPPS(t *testing.T) {
	var stream []byte
	stream = AppendNALUnit(stream, []byte{0x67, 0x11}) // SPS
	stream = AppendNALUnit(stream, []byte{0x68, 0x22}) // PPS
	stream = AppendNALUnit(stream, []byte{0x65, 0x33}) // IDR

	out := stripParameterSets(stream)
	units := SplitNALUnits(out)
	require.Len(t, units, 1)
	assert.Equal(t, NALTypeIDRSlice, int(NALType(units[0])))
}

func TestAvc420Encoder_Encode(t *testing.T) {
	backend := &fakeBackend{}
	enc := NewAvc420Encoder(backend)

	u, err := enc.Encode(yuv420(16, 16), false)
	require.NoError(t, err)
	assert.Equal(t, frame.KindMono, u.Kind)
	assert.Equal(t, uint64(1), u.Seq)
}
