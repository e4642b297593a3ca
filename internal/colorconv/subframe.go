package colorconv

import "github.com/lamco-admin/wayland-rdp-bridge/internal/frame"

// auxBandLines is the band size the core specification's packing rule
// uses to interleave U and V odd-row samples into the Auxiliary luma
// plane: 16-line bands alternating between the two chroma channels.
const auxBandLines = 16

// PackSubframes decomposes a YUV-4:4:4 frame into the Main/Auxiliary
// 4:2:0 pair the AVC444 path encodes. Width and height must be even; the
// caller (ColorConverter's consumer) negotiates capture dimensions
// accordingly.
//
// Main carries full-resolution luma and the even-row/even-column chroma
// sample of each 2x2 block — a plain top-left-sample 4:2:0 subsample, not
// an averaged one, so that Main and Auxiliary together retain every
// source sample and UnpackSubframes can reconstruct the original 4:4:4
// frame exactly. Auxiliary's luma plane carries the source's odd-row U
// and V samples, interleaved in auxBandLines-line bands; Auxiliary's
// chroma planes carry the even-row/odd-column U and V samples. Together
// Main (even-row/even-col) + Auxiliary (odd-row, full width + even-row/
// odd-col) cover all four samples of every 2x2 chroma block.
func PackSubframes(src frame.YuvFrame) frame.SubframePair {
	w, h := src.Width, src.Height
	cw, ch := w/2, h/2

	mainY := getBuf(w * h)
	copy(mainY, src.Y.Data[:w*h])

	mainU := getBuf(cw * ch)
	mainV := getBuf(cw * ch)
	for cy := 0; cy < ch; cy++ {
		sy := cy * 2
		for cx := 0; cx < cw; cx++ {
			sx := cx * 2
			mainU[cy*cw+cx] = planeAt(src.U, sx, sy)
			mainV[cy*cw+cx] = planeAt(src.V, sx, sy)
		}
	}

	auxY := getBuf(w * h)
	packOddRows(src.U, src.V, auxY, w, h)

	auxU := getBuf(cw * ch)
	auxV := getBuf(cw * ch)
	for cy := 0; cy < ch; cy++ {
		sy := cy * 2
		for cx := 0; cx < cw; cx++ {
			sx := cx*2 + 1
			auxU[cy*cw+cx] = planeAt(src.U, sx, sy)
			auxV[cy*cw+cx] = planeAt(src.V, sx, sy)
		}
	}

	return frame.SubframePair{
		Main: frame.YuvFrame{
			Width: w, Height: h, Subsampling: frame.Subsampling420,
			Matrix: src.Matrix, Range: src.Range,
			Y: frame.Plane{Data: mainY, Stride: w},
			U: frame.Plane{Data: mainU, Stride: cw},
			V: frame.Plane{Data: mainV, Stride: cw},
		},
		Aux: frame.YuvFrame{
			Width: w, Height: h, Subsampling: frame.Subsampling420,
			Matrix: src.Matrix, Range: src.Range,
			Y: frame.Plane{Data: auxY, Stride: w},
			U: frame.Plane{Data: auxU, Stride: cw},
			V: frame.Plane{Data: auxV, Stride: cw},
		},
	}
}

// UnpackSubframes reconstructs the source YUV-4:4:4 frame from a Main/
// Auxiliary pair produced by PackSubframes. It is the exact inverse: equal
// packed input yields a byte-equal reconstruction of the original.
func UnpackSubframes(pair frame.SubframePair) frame.YuvFrame {
	w, h := pair.Main.Width, pair.Main.Height
	cw, ch := w/2, h/2

	yPlane := getBuf(w * h)
	copy(yPlane, pair.Main.Y.Data[:w*h])

	uPlane := getBuf(w * h)
	vPlane := getBuf(w * h)

	for cy := 0; cy < ch; cy++ {
		sy := cy * 2
		for cx := 0; cx < cw; cx++ {
			sx := cx * 2
			setPlaneAt(uPlane, w, sx, sy, planeAt(pair.Main.U, cx, cy))
			setPlaneAt(vPlane, w, sx, sy, planeAt(pair.Main.V, cx, cy))
			setPlaneAt(uPlane, w, sx+1, sy, planeAt(pair.Aux.U, cx, cy))
			setPlaneAt(vPlane, w, sx+1, sy, planeAt(pair.Aux.V, cx, cy))
		}
	}

	unpackOddRows(pair.Aux.Y, uPlane, vPlane, w, h)

	return frame.YuvFrame{
		Width: w, Height: h, Subsampling: frame.Subsampling444,
		Matrix: pair.Main.Matrix, Range: pair.Main.Range,
		Y: frame.Plane{Data: yPlane, Stride: w},
		U: frame.Plane{Data: uPlane, Stride: w},
		V: frame.Plane{Data: vPlane, Stride: w},
	}
}

func planeAt(p frame.Plane, x, y int) byte {
	return p.Data[y*p.Stride+x]
}

func setPlaneAt(data []byte, stride, x, y int, v byte) {
	data[y*stride+x] = v
}

// packOddRows writes every odd source row of U then V (each H/2 rows of
// width W) into dst's H rows, auxBandLines destination rows at a time,
// alternating which channel supplies the next band.
func packOddRows(u, v frame.Plane, dst []byte, w, h int) {
	halfRows := h / 2
	uRow, vRow := 0, 0
	band := 0
	for dstRow := 0; dstRow < h; dstRow++ {
		if dstRow > 0 && dstRow%auxBandLines == 0 {
			band++
		}
		fromU := band%2 == 0
		if !fromU && vRow >= halfRows {
			fromU = true // source rows always sum to h; fall back once one side is exhausted
		} else if fromU && uRow >= halfRows {
			fromU = false
		}
		if fromU {
			copy(dst[dstRow*w:dstRow*w+w], u.Data[(uRow*2+1)*u.Stride:(uRow*2+1)*u.Stride+w])
			uRow++
		} else {
			copy(dst[dstRow*w:dstRow*w+w], v.Data[(vRow*2+1)*v.Stride:(vRow*2+1)*v.Stride+w])
			vRow++
		}
	}
}

// unpackOddRows is the inverse of packOddRows: it reads auxY's bands back
// into the odd rows of the destination U/V planes.
func unpackOddRows(auxY frame.Plane, uPlane, vPlane []byte, w, h int) {
	halfRows := h / 2
	uRow, vRow := 0, 0
	band := 0
	for srcRow := 0; srcRow < h; srcRow++ {
		if srcRow > 0 && srcRow%auxBandLines == 0 {
			band++
		}
		line := auxY.Data[srcRow*auxY.Stride : srcRow*auxY.Stride+w]
		fromU := band%2 == 0
		if !fromU && vRow >= halfRows {
			fromU = true
		} else if fromU && uRow >= halfRows {
			fromU = false
		}
		if fromU {
			copy(uPlane[(uRow*2+1)*w:(uRow*2+1)*w+w], line)
			uRow++
		} else {
			copy(vPlane[(vRow*2+1)*w:(vRow*2+1)*w+w], line)
			vRow++
		}
	}
}
