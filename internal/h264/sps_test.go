package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

func TestExpectedSignal_BT709Full(t *testing.T) {
	primaries, transfer, coeffs, fullRange := expectedSignal(frame.MatrixBT709, frame.RangeFull)
	assert.Equal(t, uint(colourBT709), primaries)
	assert.Equal(t, uint(transferBT709), transfer)
	assert.Equal(t, uint(matrixBT709), coeffs)
	assert.True(t, fullRange)
}

func TestExpectedSignal_BT601Studio(t *testing.T) {
	primaries, transfer, coeffs, fullRange := expectedSignal(frame.MatrixBT601, frame.RangeStudio)
	assert.Equal(t, uint(colourBT601_625), primaries)
	assert.Equal(t, uint(transferBT601), transfer)
	assert.Equal(t, uint(matrixBT601), coeffs)
	assert.False(t, fullRange)
}

func TestParseColorSignal_RejectsShortData(t *testing.T) {
	_, err := ParseColorSignal([]byte{0x67, 0x00})
	require.Error(t, err)
}

func TestVerifyColorSignaling_RejectsUnparsableSPS(t *testing.T) {
	// A NAL header declaring type=SPS followed by bytes that are not a
	// valid SPS bitstream.
	garbage := append([]byte{0x67}, bytesOf(16, 0xFF)...)
	err := VerifyColorSignaling(garbage, frame.MatrixBT709, frame.RangeFull)
	assert.Error(t, err)
}

func TestVerifySPSColorSignaling_NoSPSIsNotChecked(t *testing.T) {
	var accessUnit []byte
	accessUnit = AppendNALUnit(accessUnit, []byte{0x65, 0x01, 0x02}) // IDR slice, no SPS
	assert.NoError(t, verifySPSColorSignaling(accessUnit, frame.MatrixBT709, frame.RangeFull))
}

func TestVerifySPSColorSignaling_MalformedSPSPropagatesError(t *testing.T) {
	var accessUnit []byte
	sps := append([]byte{0x67}, bytesOf(16, 0xFF)...)
	accessUnit = AppendNALUnit(accessUnit, sps)
	accessUnit = AppendNALUnit(accessUnit, []byte{0x65, 0x01, 0x02})
	assert.Error(t, verifySPSColorSignaling(accessUnit, frame.MatrixBT709, frame.RangeFull))
}
