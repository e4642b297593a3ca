// Avc444Encoder implements the RDP-4:4:4 dual-subframe, single-encoder
// protocol: Main and Auxiliary are fed through one underlying H.264
// encoder, in that fixed order, with the Auxiliary picture marked
// non-reference so it can never serve as a cross-kind prediction source
// for a later Main picture (the failure mode that produces a visible
// purple/lavender chrominance shift in motion regions).
package h264

import (
	"time"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// Avc444Encoder owns the single encoder instance shared by the Main and
// Auxiliary subframe streams for one session.
type Avc444Encoder struct {
	backend encoderBackend
	seq     uint64
}

// NewAvc444Encoder builds an Avc444Encoder bound to the given backend.
func NewAvc444Encoder(backend encoderBackend) *Avc444Encoder {
	return &Avc444Encoder{backend: backend}
}

// EncodeMain encodes the Main subframe. Main is always a reference
// picture: later Main (and, transitively through the DPB, Auxiliary)
// pictures may predict from it.
func (e *Avc444Encoder) EncodeMain(main frame.YuvFrame, forceKeyframe bool) (frame.EncodedUnit, error) {
	if main.Subsampling != frame.Subsampling420 {
		return frame.EncodedUnit{}, rdperrors.Protocolf("h264.avc444", "EncodeMain requires 4:2:0 input, got subsampling %d", main.Subsampling)
	}
	data, isKey, err := e.backend.Encode(main, EncodeOptions{ForceKeyframe: forceKeyframe})
	if err != nil {
		return frame.EncodedUnit{}, rdperrors.Transient("h264.avc444.main", err)
	}
	e.seq++
	return frame.EncodedUnit{Data: data, IsKeyframe: isKey, Kind: frame.KindMain, Seq: e.seq, EncodedAt: time.Now()}, nil
}

// EncodeAux encodes the Auxiliary subframe, immediately after the Main
// subframe of the same tick and before the next tick's Main, marked
// non-reference. On any encoder error the caller must treat this as a
// TransientError and fail over to Main-only for the tick (§OmissionController
// fail-safe); EncodeAux itself does not decide omission, it only encodes
// what it is given.
func (e *Avc444Encoder) EncodeAux(aux frame.YuvFrame, forceKeyframe bool) (frame.EncodedUnit, error) {
	if aux.Subsampling != frame.Subsampling420 {
		return frame.EncodedUnit{}, rdperrors.Protocolf("h264.avc444", "EncodeAux requires 4:2:0 input, got subsampling %d", aux.Subsampling)
	}
	data, isKey, err := e.backend.Encode(aux, EncodeOptions{ForceKeyframe: forceKeyframe, NonReference: true})
	if err != nil {
		return frame.EncodedUnit{}, rdperrors.Transient("h264.avc444.aux", err)
	}
	data = stripParameterSets(data)
	e.seq++
	return frame.EncodedUnit{Data: data, IsKeyframe: isKey, Kind: frame.KindAux, Seq: e.seq, EncodedAt: time.Now()}, nil
}

// stripParameterSets removes SPS/PPS NAL units from an Auxiliary
// bitstream. Parameter sets belong on Main only; if the encoder emits
// them on Auxiliary anyway (since it is told it is producing one logical
// stream and does not distinguish Main from Auxiliary), they must not
// reach the client duplicated.
func stripParameterSets(annexB []byte) []byte {
	var out []byte
	for _, nal := range SplitNALUnits(annexB) {
		switch NALType(nal) {
		case NALTypeSPS, NALTypePPS:
			continue
		}
		out = AppendNALUnit(out, nal)
	}
	return out
}

// Close releases the underlying backend.
func (e *Avc444Encoder) Close() error {
	return e.backend.Close()
}
