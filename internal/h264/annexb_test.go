package h264

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendNALUnit_PrependsStartCode(t *testing.T) {
	var dst []byte
	dst = AppendNALUnit(dst, []byte{0x67, 0x42, 0x00})
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0x00}, dst)
}

func TestSplitNALUnits_MultipleUnits(t *testing.T) {
	var stream []byte
	stream = AppendNALUnit(stream, []byte{0x67, 0xAA}) // SPS
	stream = AppendNALUnit(stream, []byte{0x68, 0xBB}) // PPS
	stream = AppendNALUnit(stream, []byte{0x65, 0xCC}) // IDR

	units := SplitNALUnits(stream)
	require.Len(t, units, 3)
	assert.Equal(t, NALTypeSPS, int(NALType(units[0])))
	assert.Equal(t, NALTypePPS, int(NALType(units[1])))
	assert.Equal(t, NALTypeIDRSlice, int(NALType(units[2])))
}

func TestContainsIDR(t *testing.T) {
	var stream []byte
	stream = AppendNALUnit(stream, []byte{0x67, 0xAA})
	stream = AppendNALUnit(stream, []byte{0x68, 0xBB})
	assert.False(t, ContainsIDR(stream))

	stream = AppendNALUnit(stream, []byte{0x65, 0xCC})
	assert.True(t, ContainsIDR(stream))
}

func TestSplitNALUnits_ThreeByteStartCode(t *testing.T) {
	stream := []byte{0x00, 0x00, 0x01, 0x67, 0x11, 0x00, 0x00, 0x01, 0x65, 0x22}
	units := SplitNALUnits(stream)
	require.Len(t, units, 2)
	assert.Equal(t, []byte{0x67, 0x11}, units[0])
	assert.Equal(t, []byte{0x65, 0x22}, units[1])
}
