package audio

import (
	"github.com/linuxmatters/codecflux/internal/media"
)

// Normalize scales a frame so its peak absolute sample reaches TargetPeak
// (default 0.95), leaving silent frames untouched.
type Normalize struct {
	TargetPeak float64
}

func NewNormalize(targetPeak float64) *Normalize {
	return &Normalize{TargetPeak: clamp(targetPeak, 0, 1)}
}

func DefaultNormalize() *Normalize {
	return NewNormalize(0.95)
}

func (n *Normalize) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}

	peak := peakAmplitude(audio.Samples)
	if peak == 0 {
		return f, nil
	}

	scale := n.TargetPeak / peak
	for _, ch := range audio.Samples {
		for i, s := range ch {
			ch[i] = clamp(s*scale, -1, 1)
		}
	}
	return f, nil
}

func (n *Normalize) Name() string { return "normalize" }

func peakAmplitude(samples [][]float64) float64 {
	var peak float64
	for _, ch := range samples {
		if p := peakOf(ch); p > peak {
			peak = p
		}
	}
	return peak
}
