package video

import (
	"github.com/linuxmatters/codecflux/internal/media"
)

// Rotate turns a frame by a multiple of 90 degrees clockwise. 90 and
// 270 swap the frame's width and height; both dimensions must be even
// for the chroma planes, which YUV420 already guarantees.
type Rotate struct {
	Degrees int
}

func NewRotate(degrees int) *Rotate {
	return &Rotate{Degrees: ((degrees % 360) + 360) % 360}
}

func (r *Rotate) Process(f media.Frame) (media.Frame, error) {
	src, ok := f.Video()
	if !ok {
		return f, nil
	}

	var out *media.VideoFrame
	switch r.Degrees {
	case 90, 270:
		out = media.NewVideoFrame(src.Height, src.Width)
	case 180:
		out = media.NewVideoFrame(src.Width, src.Height)
	default:
		return f, nil
	}

	cw, ch := src.ChromaSize()
	rotatePlane(src.Y, out.Y, src.Width, src.Height, r.Degrees)
	rotatePlane(src.U, out.U, cw, ch, r.Degrees)
	rotatePlane(src.V, out.V, cw, ch, r.Degrees)

	return media.NewVideoFrameWrapper(f.StreamIdx, f.PTS, f.Timebase, out), nil
}

func rotatePlane(src, dst []byte, w, h, degrees int) {
	switch degrees {
	case 90:
		// (x, y) -> (h-1-y, x) in an h-wide destination
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst[x*h+(h-1-y)] = src[y*w+x]
			}
		}
	case 180:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst[(h-1-y)*w+(w-1-x)] = src[y*w+x]
			}
		}
	case 270:
		// (x, y) -> (y, w-1-x)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				dst[(w-1-x)*h+y] = src[y*w+x]
			}
		}
	}
}

func (r *Rotate) Name() string { return "rotate" }
