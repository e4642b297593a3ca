// Annex-B framing helpers: start-code prepending and NAL-unit splitting,
// grounded in the teacher's rtp_h264.go appendNALUnit/keyframe detection
// (same start code, same IDR-type check), generalized from RTP payloads
// to raw encoder output.
package h264

// H.264 NAL unit types this package cares about (Rec. ITU-T H.264 §7.4.1).
const (
	NALTypeNonIDRSlice = 1
	NALTypeIDRSlice    = 5
	NALTypeSEI         = 6
	NALTypeSPS         = 7
	NALTypePPS         = 8
	NALTypeAUD         = 9
)

var annexBStartCode = []byte{0x00, 0x00, 0x00, 0x01}

// AppendNALUnit appends nal to dst prefixed with an Annex-B start code.
func AppendNALUnit(dst, nal []byte) []byte {
	if len(nal) == 0 {
		return dst
	}
	dst = append(dst, annexBStartCode...)
	dst = append(dst, nal...)
	return dst
}

// NALType returns the nal_unit_type field of a NAL unit's header byte. nal
// must include its header byte (the byte immediately after a start code).
func NALType(nal []byte) byte {
	if len(nal) == 0 {
		return 0
	}
	return nal[0] & 0x1F
}

// ContainsIDR reports whether an Annex-B access unit contains an IDR slice
// NAL unit.
func ContainsIDR(accessUnit []byte) bool {
	for _, nal := range SplitNALUnits(accessUnit) {
		if NALType(nal) == NALTypeIDRSlice {
			return true
		}
	}
	return false
}

// SplitNALUnits splits an Annex-B byte stream into its constituent NAL
// units (header byte included, start codes stripped).
func SplitNALUnits(annexB []byte) [][]byte {
	var units [][]byte
	starts := findStartCodes(annexB)
	for i, start := range starts {
		end := len(annexB)
		if i+1 < len(starts) {
			end = starts[i+1].offset
		}
		nalStart := start.offset + start.length
		if nalStart >= end {
			continue
		}
		units = append(units, annexB[nalStart:end])
	}
	return units
}

type startCode struct {
	offset int
	length int
}

// findStartCodes locates every 3-byte (00 00 01) or 4-byte (00 00 00 01)
// Annex-B start code in data, in order.
func findStartCodes(data []byte) []startCode {
	var codes []startCode
	i := 0
	for i+2 < len(data) {
		if data[i] == 0 && data[i+1] == 0 && data[i+2] == 1 {
			start, length := i, 3
			if i >= 1 && data[i-1] == 0 {
				start, length = i-1, 4
			}
			codes = append(codes, startCode{offset: start, length: length})
			i += 3
			continue
		}
		i++
	}
	return codes
}
