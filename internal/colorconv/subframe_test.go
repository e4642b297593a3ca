package colorconv

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

func yuv444Pattern(w, h int) frame.YuvFrame {
	y := make([]byte, w*h)
	u := make([]byte, w*h)
	v := make([]byte, w*h)
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			idx := row*w + col
			y[idx] = byte((row*31 + col*7) % 256)
			u[idx] = byte((row*13 + col*53) % 256)
			v[idx] = byte((row*89 + col*3) % 256)
		}
	}
	return frame.YuvFrame{
		Width: w, Height: h, Subsampling: frame.Subsampling444,
		Matrix: frame.MatrixBT709, Range: frame.RangeStudio,
		Y: frame.Plane{Data: y, Stride: w},
		U: frame.Plane{Data: u, Stride: w},
		V: frame.Plane{Data: v, Stride: w},
	}
}

func TestPackUnpackSubframes_Bijection(t *testing.T) {
	sizes := [][2]int{{32, 32}, {64, 48}, {128, 64}, {8, 8}}
	for _, sz := range sizes {
		src := yuv444Pattern(sz[0], sz[1])
		pair := PackSubframes(src)
		got := UnpackSubframes(pair)

		require.Equal(t, src.Width, got.Width)
		require.Equal(t, src.Height, got.Height)
		require.Equal(t, src.Y.Data, got.Y.Data[:sz[0]*sz[1]])
		require.Equal(t, src.U.Data, got.U.Data[:sz[0]*sz[1]])
		require.Equal(t, src.V.Data, got.V.Data[:sz[0]*sz[1]])
	}
}

func TestPackSubframes_SharedDimensions(t *testing.T) {
	src := yuv444Pattern(64, 32)
	pair := PackSubframes(src)

	require.Equal(t, pair.Main.Width, pair.Aux.Width)
	require.Equal(t, pair.Main.Height, pair.Aux.Height)
	require.Equal(t, frame.Subsampling420, pair.Main.Subsampling)
	require.Equal(t, frame.Subsampling420, pair.Aux.Subsampling)
}

func TestPackSubframes_Deterministic(t *testing.T) {
	src := yuv444Pattern(48, 48)
	a := PackSubframes(src)
	b := PackSubframes(src)

	require.Equal(t, a.Main.Y.Data, b.Main.Y.Data)
	require.Equal(t, a.Aux.Y.Data, b.Aux.Y.Data)
}
