package video

import (
	"github.com/linuxmatters/codecflux/internal/media"
)

// Crop extracts the Width x Height rectangle whose top-left corner sits
// at (X, Y) in the source frame. Offsets and dimensions are rounded
// down to even values so the chroma planes stay aligned to the luma
// grid.
type Crop struct {
	X, Y          int
	Width, Height int
}

func NewCrop(width, height, x, y int) *Crop {
	return &Crop{X: x &^ 1, Y: y &^ 1, Width: width &^ 1, Height: height &^ 1}
}

func (c *Crop) Process(f media.Frame) (media.Frame, error) {
	src, ok := f.Video()
	if !ok {
		return f, nil
	}
	w, h := c.Width, c.Height
	if w <= 0 || h <= 0 || c.X < 0 || c.Y < 0 || c.X+w > src.Width || c.Y+h > src.Height {
		return f, nil
	}

	out := media.NewVideoFrame(w, h)
	copyRect(src.Y, out.Y, src.YStride, out.YStride, c.X, c.Y, w, h)
	copyRect(src.U, out.U, src.CStride, out.CStride, c.X/2, c.Y/2, w/2, h/2)
	copyRect(src.V, out.V, src.CStride, out.CStride, c.X/2, c.Y/2, w/2, h/2)

	return media.NewVideoFrameWrapper(f.StreamIdx, f.PTS, f.Timebase, out), nil
}

func (c *Crop) Name() string { return "crop" }

func copyRect(src, dst []byte, srcStride, dstStride, x, y, w, h int) {
	for row := 0; row < h; row++ {
		srcOff := (y+row)*srcStride + x
		dstOff := row * dstStride
		copy(dst[dstOff:dstOff+w], src[srcOff:srcOff+w])
	}
}
