package colorconv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

func bgraFrame(w, h int, fill func(x, y int) (b, g, r, a byte)) *frame.Frame {
	stride := w * 4
	pix := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b, g, r, a := fill(x, y)
			off := y*stride + x*4
			pix[off+0], pix[off+1], pix[off+2], pix[off+3] = b, g, r, a
		}
	}
	return frame.NewFrame(w, h, stride, frame.FormatBGRA, pix, 0, time.Time{}, nil)
}

func TestConvert_Deterministic(t *testing.T) {
	f := bgraFrame(4, 4, func(x, y int) (byte, byte, byte, byte) {
		return byte(x * 17), byte(y * 23), byte((x + y) * 5), 255
	})
	c := NewConverter()

	a := c.Convert(f, frame.MatrixBT709, frame.RangeStudio, frame.Subsampling420)
	b := c.Convert(f, frame.MatrixBT709, frame.RangeStudio, frame.Subsampling420)

	assert.Equal(t, a.Y.Data, b.Y.Data)
	assert.Equal(t, a.U.Data, b.U.Data)
	assert.Equal(t, a.V.Data, b.V.Data)
}

func TestConvert_StudioRangeClamped(t *testing.T) {
	f := bgraFrame(2, 2, func(x, y int) (byte, byte, byte, byte) {
		return 255, 255, 255, 255 // white
	})
	c := NewConverter()
	y := c.Convert(f, frame.MatrixBT709, frame.RangeStudio, frame.Subsampling444)

	for _, v := range y.Y.Data {
		require.LessOrEqual(t, v, byte(235))
		require.GreaterOrEqual(t, v, byte(16))
	}
}

func TestConvert_FullRangeBlackIsZero(t *testing.T) {
	f := bgraFrame(2, 2, func(x, y int) (byte, byte, byte, byte) {
		return 0, 0, 0, 255 // black
	})
	c := NewConverter()
	y := c.Convert(f, frame.MatrixBT601, frame.RangeFull, frame.Subsampling444)

	for _, v := range y.Y.Data {
		assert.Equal(t, byte(0), v)
	}
}

func TestConvert_420ChromaDims(t *testing.T) {
	f := bgraFrame(8, 6, func(x, y int) (byte, byte, byte, byte) {
		return byte(x * 10), byte(y * 10), byte(x + y), 255
	})
	c := NewConverter()
	y := c.Convert(f, frame.MatrixBT601, frame.RangeStudio, frame.Subsampling420)

	cw, ch := y.ChromaDims()
	assert.Equal(t, 4, cw)
	assert.Equal(t, 3, ch)
	assert.Len(t, y.U.Data, cw*ch)
	assert.Len(t, y.V.Data, cw*ch)
}

func TestConvert_444ChromaMatchesLumaDims(t *testing.T) {
	f := bgraFrame(6, 4, func(x, y int) (byte, byte, byte, byte) {
		return byte(x), byte(y), byte(x ^ y), 255
	})
	c := NewConverter()
	y := c.Convert(f, frame.MatrixBT601, frame.RangeStudio, frame.Subsampling444)

	cw, ch := y.ChromaDims()
	assert.Equal(t, y.Width, cw)
	assert.Equal(t, y.Height, ch)
}
