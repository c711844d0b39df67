package video

import (
	"github.com/linuxmatters/codecflux/internal/media"
)

// Brightness shifts the luma plane by Factor*255, leaving chroma
// untouched so colours change in intensity without changing hue. Factor
// 0 is the identity, positive factors brighten toward white, negative
// factors darken toward black.
type Brightness struct {
	Factor float64
}

func NewBrightness(factor float64) *Brightness {
	return &Brightness{Factor: factor}
}

func (b *Brightness) Process(f media.Frame) (media.Frame, error) {
	v, ok := f.Video()
	if !ok {
		return f, nil
	}
	offset := b.Factor * 255
	for i, y := range v.Y {
		v.Y[i] = byte(clampFloat(float64(y)+offset, 0, 255))
	}
	return f, nil
}

func (b *Brightness) Name() string { return "brightness" }
