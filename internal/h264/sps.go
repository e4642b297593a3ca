// Verifies that an encoded SPS's VUI color-signaling attributes match the
// configured ColorConverter output, using mp4ff's AVC parser. Grounded in
// the teacher's h264_sps.go ParseSPS, trimmed to the fields the core
// specification requires (matrix/range verification) rather than the
// teacher's zero-latency DPB VUI rewrite, which this system has no need
// for.
package h264

import (
	"fmt"

	"github.com/Eyevinn/mp4ff/avc"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
	"github.com/lamco-admin/wayland-rdp-bridge/internal/rdperrors"
)

// H.264 colour_primaries / transfer_characteristics / matrix_coefficients
// values (Rec. ITU-T H.264 Annex E, Table E-3/E-4/E-5).
const (
	colourBT601_625 = 5
	colourBT601_525 = 6
	colourBT709     = 1
	transferBT601   = 6
	transferBT709   = 1
	matrixBT601     = 6
	matrixBT709     = 1
)

// ColorSignalInfo is the subset of SPS VUI fields the wire contract must
// match against ColorConverter's configured matrix and range.
type ColorSignalInfo struct {
	VideoSignalTypePresent bool
	FullRange              bool
	ColourDescription      bool
	ColourPrimaries        uint
	TransferCharacteristics uint
	MatrixCoefficients     uint
}

// ParseColorSignal extracts VUI color-signaling fields from a raw SPS NAL
// unit (including its NAL header byte).
func ParseColorSignal(spsData []byte) (ColorSignalInfo, error) {
	if len(spsData) < 4 {
		return ColorSignalInfo{}, fmt.Errorf("SPS data too short: %d bytes", len(spsData))
	}
	sps, err := avc.ParseSPSNALUnit(spsData, true)
	if err != nil {
		return ColorSignalInfo{}, fmt.Errorf("decode SPS: %w", err)
	}
	if sps.VUI == nil {
		return ColorSignalInfo{}, nil
	}
	return ColorSignalInfo{
		VideoSignalTypePresent:  sps.VUI.VideoSignalTypePresentFlag,
		FullRange:               sps.VUI.VideoFullRangeFlag,
		ColourDescription:       sps.VUI.ColourDescriptionFlag,
		ColourPrimaries:         sps.VUI.ColourPrimaries,
		TransferCharacteristics: sps.VUI.TransferCharacteristics,
		MatrixCoefficients:      sps.VUI.MatrixCoefficients,
	}, nil
}

func expectedSignal(matrix frame.ColorMatrix, rng frame.ColorRange) (primaries, transfer, coeffs uint, fullRange bool) {
	if matrix == frame.MatrixBT709 {
		primaries, transfer, coeffs = colourBT709, transferBT709, matrixBT709
	} else {
		primaries, transfer, coeffs = colourBT601_625, transferBT601, matrixBT601
	}
	fullRange = rng == frame.RangeFull
	return
}

// VerifyColorSignaling parses spsData and returns a ProtocolError if its
// VUI color-signaling attributes do not exactly match matrix/rng — the
// values the encoder was configured with and the values ColorConverter
// actually produced must agree, or the client will decode with the wrong
// chromaticity.
func VerifyColorSignaling(spsData []byte, matrix frame.ColorMatrix, rng frame.ColorRange) error {
	info, err := ParseColorSignal(spsData)
	if err != nil {
		return rdperrors.Protocol("h264.sps", err)
	}
	if !info.VideoSignalTypePresent || !info.ColourDescription {
		return rdperrors.Protocolf("h264.sps", "SPS VUI missing video_signal_type or colour_description")
	}
	wantPrimaries, wantTransfer, wantCoeffs, wantFullRange := expectedSignal(matrix, rng)
	if info.FullRange != wantFullRange {
		return rdperrors.Protocolf("h264.sps", "SPS video_full_range_flag=%v, want %v", info.FullRange, wantFullRange)
	}
	if info.ColourPrimaries != wantPrimaries || info.TransferCharacteristics != wantTransfer || info.MatrixCoefficients != wantCoeffs {
		return rdperrors.Protocolf("h264.sps", "SPS colour signaling (%d,%d,%d) does not match configured (%d,%d,%d)",
			info.ColourPrimaries, info.TransferCharacteristics, info.MatrixCoefficients,
			wantPrimaries, wantTransfer, wantCoeffs)
	}
	return nil
}
