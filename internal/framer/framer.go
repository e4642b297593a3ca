// Package framer wraps EncodedUnits into the graphics channel's PDU
// format: a single Annex-B bitstream for the 4:2:0 mono path, or a
// composite Luma/Chroma-flagged PDU carrying Main and optionally
// Auxiliary for the 4:4:4 path. The framer does not know about encoding;
// it only knows the omission contract and enforces it.
package framer

import (
	"encoding/binary"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/h264"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// GraphicsFramer builds PDU byte payloads for the Multiplexer's Graphics
// queue. It holds no mutable state and is safe for concurrent use.
type GraphicsFramer struct{}

// New builds a GraphicsFramer.
func New() *GraphicsFramer { return &GraphicsFramer{} }

// FrameMono builds the 4:2:0 PDU: the Annex-B bitstream with no subframe
// header.
func (f *GraphicsFramer) FrameMono(data []byte) []byte {
	out := make([]byte, len(data))
	copy(out, data)
	return out
}

// Frame444 builds the 4:4:4 composite PDU: `u8 lc_flag` followed by
// little-endian `(u32 length, bytes)` pairs for each present payload, in
// the order Main then Auxiliary. aux may be nil when lc is LCLumaOnly.
// Returns ProtocolError if lc is out of range, or if lc declares a
// payload present that is empty.
func (f *GraphicsFramer) Frame444(lc h264.LCFlag, main, aux []byte) ([]byte, error) {
	switch lc {
	case h264.LCBoth:
		if len(main) == 0 || len(aux) == 0 {
			return nil, rdperrors.Protocolf("framer", "lc=Both requires non-empty Main and Auxiliary payloads")
		}
	case h264.LCLumaOnly:
		if len(main) == 0 {
			return nil, rdperrors.Protocolf("framer", "lc=LumaOnly requires a non-empty Main payload")
		}
	case h264.LCChromaOnly:
		if len(aux) == 0 {
			return nil, rdperrors.Protocolf("framer", "lc=ChromaOnly requires a non-empty Auxiliary payload")
		}
	default:
		return nil, rdperrors.Protocolf("framer", "invalid lc_flag %d", lc)
	}

	size := 1
	if lc == h264.LCBoth || lc == h264.LCLumaOnly {
		size += 4 + len(main)
	}
	if lc == h264.LCBoth || lc == h264.LCChromaOnly {
		size += 4 + len(aux)
	}

	out := make([]byte, size)
	out[0] = byte(lc)
	off := 1
	if lc == h264.LCBoth || lc == h264.LCLumaOnly {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(main)))
		off += 4
		off += copy(out[off:], main)
	}
	if lc == h264.LCBoth || lc == h264.LCChromaOnly {
		binary.LittleEndian.PutUint32(out[off:], uint32(len(aux)))
		off += 4
		off += copy(out[off:], aux)
	}
	return out, nil
}
