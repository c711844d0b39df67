package video

import (
	"github.com/linuxmatters/codecflux/internal/media"
)

// FlipDirection selects Flip's mirror axis.
type FlipDirection int

const (
	Horizontal FlipDirection = iota // mirror left-right
	Vertical                        // mirror top-bottom
)

// Flip mirrors a frame in place.
type Flip struct {
	Direction FlipDirection
}

func NewFlip(direction FlipDirection) *Flip {
	return &Flip{Direction: direction}
}

func (fl *Flip) Process(f media.Frame) (media.Frame, error) {
	v, ok := f.Video()
	if !ok {
		return f, nil
	}

	cw, ch := v.ChromaSize()
	if fl.Direction == Horizontal {
		flipHorizontal(v.Y, v.Width, v.Height)
		flipHorizontal(v.U, cw, ch)
		flipHorizontal(v.V, cw, ch)
	} else {
		flipVertical(v.Y, v.Width, v.Height)
		flipVertical(v.U, cw, ch)
		flipVertical(v.V, cw, ch)
	}
	return f, nil
}

func flipHorizontal(plane []byte, w, h int) {
	for y := 0; y < h; y++ {
		row := plane[y*w : y*w+w]
		for i, j := 0, w-1; i < j; i, j = i+1, j-1 {
			row[i], row[j] = row[j], row[i]
		}
	}
}

func flipVertical(plane []byte, w, h int) {
	tmp := make([]byte, w)
	for top, bottom := 0, h-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := plane[top*w : top*w+w]
		b := plane[bottom*w : bottom*w+w]
		copy(tmp, a)
		copy(a, b)
		copy(b, tmp)
	}
}

func (fl *Flip) Name() string { return "flip" }
