// Package video implements the video-side Transform chain operating on
// media.VideoFrame's planar YUV 4:2:0 layout: scale, crop, pad, rotate,
// flip, box blur, and brightness, each applied per-plane.
package video

import (
	"github.com/linuxmatters/codecflux/internal/media"
)

// ScaleMode selects Scale's resampling kernel.
type ScaleMode int

const (
	// Nearest is the default per this module's idempotence expectations:
	// scaling to the same dimensions with nearest-neighbour sampling is
	// exactly a no-op, which bilinear interpolation is not guaranteed to be
	// at fractional pixel ratios.
	Nearest ScaleMode = iota
	Bilinear
)

// Scale resizes a frame from (SrcWidth,SrcHeight) to (TargetWidth,
// TargetHeight).
type Scale struct {
	SrcWidth, SrcHeight       int
	TargetWidth, TargetHeight int
	Mode                      ScaleMode
}

func NewScale(srcW, srcH, targetW, targetH int) *Scale {
	return &Scale{SrcWidth: srcW, SrcHeight: srcH, TargetWidth: targetW, TargetHeight: targetH, Mode: Nearest}
}

func (s *Scale) WithMode(mode ScaleMode) *Scale {
	s.Mode = mode
	return s
}

func (s *Scale) Process(f media.Frame) (media.Frame, error) {
	video, ok := f.Video()
	if !ok {
		return f, nil
	}

	out := media.NewVideoFrame(s.TargetWidth, s.TargetHeight)
	s.scalePlane(video.Y, out.Y, s.SrcWidth, s.SrcHeight, s.TargetWidth, s.TargetHeight)

	srcCW, srcCH := (s.SrcWidth+1)/2, (s.SrcHeight+1)/2
	dstCW, dstCH := (s.TargetWidth+1)/2, (s.TargetHeight+1)/2
	s.scalePlane(video.U, out.U, srcCW, srcCH, dstCW, dstCH)
	s.scalePlane(video.V, out.V, srcCW, srcCH, dstCW, dstCH)

	return media.NewVideoFrameWrapper(f.StreamIdx, f.PTS, f.Timebase, out), nil
}

func (s *Scale) scalePlane(src, dst []byte, srcW, srcH, dstW, dstH int) {
	if s.Mode == Bilinear {
		scaleBilinear(src, dst, srcW, srcH, dstW, dstH)
		return
	}
	scaleNearest(src, dst, srcW, srcH, dstW, dstH)
}

func scaleNearest(src, dst []byte, srcW, srcH, dstW, dstH int) {
	if dstW == 0 || dstH == 0 {
		return
	}
	xRatio := float64(srcW) / float64(dstW)
	yRatio := float64(srcH) / float64(dstH)

	for y := 0; y < dstH; y++ {
		srcY := int(float64(y) * yRatio)
		for x := 0; x < dstW; x++ {
			srcX := int(float64(x) * xRatio)
			srcIdx := srcY*srcW + srcX
			dstIdx := y*dstW + x
			if srcIdx < len(src) && dstIdx < len(dst) {
				dst[dstIdx] = src[srcIdx]
			}
		}
	}
}

func scaleBilinear(src, dst []byte, srcW, srcH, dstW, dstH int) {
	if dstW == 0 || dstH == 0 {
		return
	}
	xRatio := float64(srcW-1) / maxFloat(float64(dstW-1), 1)
	yRatio := float64(srcH-1) / maxFloat(float64(dstH-1), 1)

	getPixel := func(px, py int) float64 {
		idx := py*srcW + px
		if idx >= 0 && idx < len(src) {
			return float64(src[idx])
		}
		return 0
	}

	for y := 0; y < dstH; y++ {
		srcYf := float64(y) * yRatio
		y0 := int(srcYf)
		y1 := minInt(y0+1, srcH-1)
		yFrac := srcYf - float64(y0)

		for x := 0; x < dstW; x++ {
			srcXf := float64(x) * xRatio
			x0 := int(srcXf)
			x1 := minInt(x0+1, srcW-1)
			xFrac := srcXf - float64(x0)

			p00 := getPixel(x0, y0)
			p10 := getPixel(x1, y0)
			p01 := getPixel(x0, y1)
			p11 := getPixel(x1, y1)

			top := p00*(1-xFrac) + p10*xFrac
			bottom := p01*(1-xFrac) + p11*xFrac
			value := top*(1-yFrac) + bottom*yFrac

			dstIdx := y*dstW + x
			if dstIdx < len(dst) {
				dst[dstIdx] = byte(clampFloat(value, 0, 255))
			}
		}
	}
}

func (s *Scale) Name() string { return "scale" }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
