package video

import (
	"github.com/linuxmatters/codecflux/internal/media"
)

// Pad places the source frame at (X, Y) inside a larger Width x Height
// canvas filled with limited-range black (Y=16, U=V=128). Like Crop,
// geometry is rounded down to even values for chroma alignment.
type Pad struct {
	X, Y          int
	Width, Height int
}

func NewPad(width, height, x, y int) *Pad {
	return &Pad{X: x &^ 1, Y: y &^ 1, Width: width &^ 1, Height: height &^ 1}
}

func (p *Pad) Process(f media.Frame) (media.Frame, error) {
	src, ok := f.Video()
	if !ok {
		return f, nil
	}
	w, h := p.Width, p.Height
	if w < src.Width || h < src.Height || p.X < 0 || p.Y < 0 || p.X+src.Width > w || p.Y+src.Height > h {
		return f, nil
	}

	out := media.NewVideoFrame(w, h)
	for i := range out.Y {
		out.Y[i] = 16
	}
	for i := range out.U {
		out.U[i] = 128
	}
	for i := range out.V {
		out.V[i] = 128
	}

	pasteRect(src.Y, out.Y, src.YStride, out.YStride, p.X, p.Y, src.Width, src.Height)
	cw, ch := src.ChromaSize()
	pasteRect(src.U, out.U, src.CStride, out.CStride, p.X/2, p.Y/2, cw, ch)
	pasteRect(src.V, out.V, src.CStride, out.CStride, p.X/2, p.Y/2, cw, ch)

	return media.NewVideoFrameWrapper(f.StreamIdx, f.PTS, f.Timebase, out), nil
}

func (p *Pad) Name() string { return "pad" }

func pasteRect(src, dst []byte, srcStride, dstStride, x, y, w, h int) {
	for row := 0; row < h; row++ {
		srcOff := row * srcStride
		dstOff := (y+row)*dstStride + x
		copy(dst[dstOff:dstOff+w], src[srcOff:srcOff+w])
	}
}
