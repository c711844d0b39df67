package audio

import "github.com/linuxmatters/codecflux/internal/media"

// Gain multiplies every sample by a fixed linear factor, clamping to the
// representable [-1, 1] range.
type Gain struct {
	Factor float64
}

func NewGain(factor float64) *Gain {
	return &Gain{Factor: factor}
}

func (g *Gain) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}
	for _, ch := range audio.Samples {
		for i, s := range ch {
			ch[i] = clamp(s*g.Factor, -1, 1)
		}
	}
	return f, nil
}

func (g *Gain) Name() string { return "gain" }
