// Package audio implements the audio-side Transform chain: gain,
// normalization, biquad-filter-based EQ/lowpass, limiting, fades, channel
// mixing, and linear-interpolation resampling, all operating on
// media.AudioFrame's planar float64 samples in the [-1, 1] range.
package audio

// biquadCoeffs holds a Direct-Form-I biquad's normalized (a0==1)
// coefficients, shared by Lowpass and the Equalizer's per-band filters.
type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

// biquadState is one channel's running history for a single biquad stage.
type biquadState struct {
	x1, x2, y1, y2 float64
}

func (s *biquadState) process(c biquadCoeffs, sample float64) float64 {
	y := c.b0*sample + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2
	s.x2, s.x1 = s.x1, sample
	s.y2, s.y1 = s.y1, y
	return y
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
