package audio

import (
	"math"

	"github.com/linuxmatters/codecflux/internal/media"
)

// Lowpass is a second-order Butterworth-style lowpass biquad (RBJ cookbook
// coefficients), re-derived whenever the incoming frame's sample rate
// changes.
type Lowpass struct {
	Cutoff     float64
	Q          float64
	coeffs     biquadCoeffs
	states     []biquadState
	sampleRate int
}

func NewLowpass(cutoff float64) *Lowpass {
	return &Lowpass{Cutoff: cutoff, Q: 0.707}
}

func (l *Lowpass) WithQ(q float64) *Lowpass {
	l.Q = q
	return l
}

func (l *Lowpass) calculateCoeffs(sampleRate int) {
	l.sampleRate = sampleRate
	omega := 2 * math.Pi * l.Cutoff / float64(sampleRate)
	sinOmega, cosOmega := math.Sin(omega), math.Cos(omega)
	alpha := sinOmega / (2 * l.Q)

	b0 := (1 - cosOmega) / 2
	b1 := 1 - cosOmega
	b2 := (1 - cosOmega) / 2
	a0 := 1 + alpha
	a1 := -2 * cosOmega
	a2 := 1 - alpha

	l.coeffs = biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0}
}

func (l *Lowpass) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}

	if l.sampleRate != audio.SampleRate {
		l.calculateCoeffs(audio.SampleRate)
	}
	if len(l.states) != audio.Channels {
		l.states = make([]biquadState, audio.Channels)
	}

	for ch, samples := range audio.Samples {
		for i, s := range samples {
			samples[i] = clamp(l.states[ch].process(l.coeffs, s), -1, 1)
		}
	}
	return f, nil
}

func (l *Lowpass) Name() string { return "lowpass" }
