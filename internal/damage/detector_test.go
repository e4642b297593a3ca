package damage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

func solidFrame(w, h int, v byte) *frame.Frame {
	stride := w * 4
	pix := make([]byte, stride*h)
	for i := range pix {
		pix[i] = v
	}
	return frame.NewFrame(w, h, stride, frame.FormatBGRA, pix, 0, time.Time{}, nil)
}

func TestDetector_FirstFrameIsFullyDamaged(t *testing.T) {
	d := NewDetector(64, 32, 0.05)
	f := solidFrame(128, 128, 10)

	dm := d.Detect(f)
	require.False(t, dm.Empty())
	require.Len(t, dm.Rects, 1)
	assert.Equal(t, frame.Rect{X: 0, Y: 0, W: 128, H: 128}, dm.Rects[0])
}

func TestDetector_IdenticalFrameIsClean(t *testing.T) {
	d := NewDetector(64, 32, 0.05)
	f := solidFrame(128, 128, 10)
	d.Detect(f)
	d.Commit(f)

	f2 := solidFrame(128, 128, 10)
	dm := d.Detect(f2)
	assert.True(t, dm.Empty())
}

func TestDetector_SinglePixelChangeBelowThresholdIsClean(t *testing.T) {
	d := NewDetector(64, 32, 0.5) // 50% of tile bytes must change
	f := solidFrame(128, 128, 10)
	d.Detect(f)
	d.Commit(f)

	f2 := solidFrame(128, 128, 10)
	f2.Pix[0] = 200 // one byte in tile (0,0)
	dm := d.Detect(f2)
	assert.True(t, dm.Empty())
}

func TestDetector_ChangeAboveThresholdIsDamaged(t *testing.T) {
	d := NewDetector(64, 32, 0.05)
	f := solidFrame(128, 128, 10)
	d.Detect(f)
	d.Commit(f)

	f2 := solidFrame(128, 128, 10)
	// Flip every byte in the top-left 64x64 tile.
	stride := f2.Stride
	for y := 0; y < 64; y++ {
		for x := 0; x < 64*4; x++ {
			f2.Pix[y*stride+x] = 255
		}
	}
	dm := d.Detect(f2)
	require.False(t, dm.Empty())
	assert.Equal(t, frame.Rect{X: 0, Y: 0, W: 64, H: 64}, dm.Rects[0])
}

func TestDetector_ResolutionChangeForcesFullDamage(t *testing.T) {
	d := NewDetector(64, 32, 0.05)
	f := solidFrame(128, 128, 10)
	d.Detect(f)
	d.Commit(f)

	f2 := solidFrame(256, 256, 10)
	dm := d.Detect(f2)
	require.False(t, dm.Empty())
	assert.Equal(t, frame.Rect{X: 0, Y: 0, W: 256, H: 256}, dm.Rects[0])
}

func TestDetector_ResetForcesFullDamage(t *testing.T) {
	d := NewDetector(64, 32, 0.05)
	f := solidFrame(128, 128, 10)
	d.Detect(f)
	d.Commit(f)
	d.Reset()

	dm := d.Detect(f)
	assert.False(t, dm.Empty())
}

func TestDetector_AdjacentChangedTilesMerge(t *testing.T) {
	d := NewDetector(64, 16, 0.05)
	f := solidFrame(256, 64, 10)
	d.Detect(f)
	d.Commit(f)

	f2 := solidFrame(256, 64, 10)
	stride := f2.Stride
	// Damage two horizontally adjacent tiles: columns 0..127.
	for y := 0; y < 64; y++ {
		for x := 0; x < 128*4; x++ {
			f2.Pix[y*stride+x] = 255
		}
	}
	dm := d.Detect(f2)
	require.Len(t, dm.Rects, 1)
	assert.Equal(t, frame.Rect{X: 0, Y: 0, W: 128, H: 64}, dm.Rects[0])
}
