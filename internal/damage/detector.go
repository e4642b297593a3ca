// Package damage implements tile-granularity change detection between a
// captured frame and a retained baseline, grounded in the whole-frame
// CRC32 differ the teacher uses for DXGI capture (frameDiffer in
// LanternOps-breeze's frame_diff.go) but generalized to per-tile
// byte comparison and merged rectangles, as the specification requires.
package damage

import (
	"github.com/lamco-admin/wayland-rdp-bridge/internal/frame"
)

// Detector partitions frames into fixed tiles, compares each tile's bytes
// against the retained baseline, and merges adjacent changed tiles into
// rectangles. It holds no mutable shared state beyond its own baseline,
// which the Orchestrator owns and advances explicitly. The baseline is
// kept tightly packed (no stride padding) so tile comparison cost stays
// strictly linear in frame bytes regardless of the capture buffer's
// reported stride.
type Detector struct {
	tileSize      int
	mergeDistance int
	threshold     float64

	baseline  []byte // tightly packed width*height*4, nil until first Commit
	baselineW int
	baselineH int
}

// NewDetector builds a Detector with the given tile size, merge distance,
// and diff threshold. A non-positive argument falls back to the
// specification's default: tile size 64, merge distance 32px, threshold
// 5% of tile bytes.
func NewDetector(tileSize, mergeDistance int, threshold float64) *Detector {
	if tileSize <= 0 {
		tileSize = 64
	}
	if mergeDistance <= 0 {
		mergeDistance = 32
	}
	if threshold <= 0 {
		threshold = 0.05
	}
	return &Detector{tileSize: tileSize, mergeDistance: mergeDistance, threshold: threshold}
}

// Reset drops the retained baseline. Called on resolution change: the
// specification requires the next frame be treated as the first frame.
func (d *Detector) Reset() {
	d.baseline = nil
}

// Detect compares f against the retained baseline and returns the union
// of changed-tile rectangles. It does not update the baseline — the
// caller advances it explicitly via Commit, after the encoded unit
// derived from f has reached the multiplexer, so a failed encode does
// not advance the baseline.
func (d *Detector) Detect(f *frame.Frame) frame.DamageMap {
	tilesX := (f.Width + d.tileSize - 1) / d.tileSize
	tilesY := (f.Height + d.tileSize - 1) / d.tileSize

	if d.baseline == nil || d.baselineW != f.Width || d.baselineH != f.Height {
		// No baseline (or resolution changed): every tile is "changed" so
		// the first frame after any reconfigure is always fully damaged.
		return fullFrameDamage(f.Width, f.Height, d.tileSize)
	}

	changed := make([]bool, tilesX*tilesY)
	anyChanged := false
	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			idx := ty*tilesX + tx
			if d.tileChanged(f, tx, ty) {
				changed[idx] = true
				anyChanged = true
			}
		}
	}
	if !anyChanged {
		return frame.DamageMap{}
	}
	return mergeTiles(changed, tilesX, tilesY, d.tileSize, f.Width, f.Height, d.mergeDistance)
}

// Commit advances the baseline to f. Must be called only after the
// encoded unit derived from f has been handed to the multiplexer.
func (d *Detector) Commit(f *frame.Frame) {
	packed := make([]byte, f.Width*f.Height*4)
	rowBytes := f.Width * 4
	for y := 0; y < f.Height; y++ {
		src := f.Pix[y*f.Stride : y*f.Stride+rowBytes]
		copy(packed[y*rowBytes:(y+1)*rowBytes], src)
	}
	d.baseline = packed
	d.baselineW = f.Width
	d.baselineH = f.Height
}

// tileChanged reports whether the tile at (tx,ty) differs from the
// baseline by more than threshold fraction of its bytes.
func (d *Detector) tileChanged(f *frame.Frame, tx, ty int) bool {
	x0 := tx * d.tileSize
	y0 := ty * d.tileSize
	x1 := x0 + d.tileSize
	if x1 > f.Width {
		x1 = f.Width
	}
	y1 := y0 + d.tileSize
	if y1 > f.Height {
		y1 = f.Height
	}

	rowBytes := (x1 - x0) * 4
	baseRowBytes := d.baselineW * 4
	totalBytes := rowBytes * (y1 - y0)
	if totalBytes == 0 {
		return false
	}
	limit := int(float64(totalBytes) * d.threshold)

	diffCount := 0
	for y := y0; y < y1; y++ {
		srcRow := f.Pix[y*f.Stride+x0*4 : y*f.Stride+x0*4+rowBytes]
		baseRow := d.baseline[y*baseRowBytes+x0*4 : y*baseRowBytes+x0*4+rowBytes]
		for i := range srcRow {
			if srcRow[i] != baseRow[i] {
				diffCount++
				if diffCount > limit {
					return true
				}
			}
		}
	}
	return false
}

func fullFrameDamage(width, height, tileSize int) frame.DamageMap {
	return frame.DamageMap{Rects: []frame.Rect{{X: 0, Y: 0, W: width, H: height}}}
}

// mergeTiles unions changed tiles into rectangles, combining tiles within
// mergeDistance pixels of each other along each axis.
func mergeTiles(changed []bool, tilesX, tilesY, tileSize, frameW, frameH, mergeDistance int) frame.DamageMap {
	visited := make([]bool, len(changed))
	radius := (mergeDistance + tileSize - 1) / tileSize
	var rects []frame.Rect

	for ty := 0; ty < tilesY; ty++ {
		for tx := 0; tx < tilesX; tx++ {
			idx := ty*tilesX + tx
			if !changed[idx] || visited[idx] {
				continue
			}
			// Flood-fill a rectangular run of changed tiles within
			// radius tiles of each other.
			minTX, minTY, maxTX, maxTY := tx, ty, tx, ty
			stack := []struct{ x, y int }{{tx, ty}}
			visited[idx] = true
			for len(stack) > 0 {
				cur := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if cur.x < minTX {
					minTX = cur.x
				}
				if cur.y < minTY {
					minTY = cur.y
				}
				if cur.x > maxTX {
					maxTX = cur.x
				}
				if cur.y > maxTY {
					maxTY = cur.y
				}
				for dy := -radius; dy <= radius; dy++ {
					for dx := -radius; dx <= radius; dx++ {
						nx, ny := cur.x+dx, cur.y+dy
						if nx < 0 || ny < 0 || nx >= tilesX || ny >= tilesY {
							continue
						}
						nidx := ny*tilesX + nx
						if changed[nidx] && !visited[nidx] {
							visited[nidx] = true
							stack = append(stack, struct{ x, y int }{nx, ny})
						}
					}
				}
			}

			x0 := minTX * tileSize
			y0 := minTY * tileSize
			x1 := (maxTX + 1) * tileSize
			if x1 > frameW {
				x1 = frameW
			}
			y1 := (maxTY + 1) * tileSize
			if y1 > frameH {
				y1 = frameH
			}
			rects = append(rects, frame.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0})
		}
	}
	return frame.DamageMap{Rects: rects}
}
