package audio

import (
	"math"

	"github.com/linuxmatters/codecflux/internal/media"
)

// FilterType selects an EqBand's RBJ biquad topology.
type FilterType int

const (
	LowShelf FilterType = iota
	HighShelf
	Peaking
)

// EqBand describes one stage of a multi-band Equalizer.
type EqBand struct {
	Type      FilterType
	Frequency float64
	GainDB    float64
	Q         float64
}

func LowShelfBand(freq, gainDB float64) EqBand {
	return EqBand{Type: LowShelf, Frequency: freq, GainDB: gainDB, Q: 0.707}
}

func HighShelfBand(freq, gainDB float64) EqBand {
	return EqBand{Type: HighShelf, Frequency: freq, GainDB: gainDB, Q: 0.707}
}

func PeakingBand(freq, gainDB, q float64) EqBand {
	return EqBand{Type: Peaking, Frequency: freq, GainDB: gainDB, Q: q}
}

// Equalizer chains an arbitrary number of biquad bands per channel.
type Equalizer struct {
	Bands       []EqBand
	coeffs      []biquadCoeffs
	states      [][]biquadState // states[channel][band]
	sampleRate  int
	initialized bool
}

func NewEqualizer(bands []EqBand) *Equalizer {
	return &Equalizer{Bands: bands, sampleRate: 44100}
}

// ThreeBandEqualizer builds the common bass/mid/treble shelving+peaking
// stack used by codecflux's CLI "eq" transform shorthand.
func ThreeBandEqualizer(bassDB, midDB, trebleDB float64) *Equalizer {
	return NewEqualizer([]EqBand{
		LowShelfBand(200, bassDB),
		PeakingBand(1000, midDB, 1.0),
		HighShelfBand(4000, trebleDB),
	})
}

func (e *Equalizer) calculateCoeffs(sampleRate int) {
	e.coeffs = e.coeffs[:0]
	e.sampleRate = sampleRate

	for _, band := range e.Bands {
		omega := 2 * math.Pi * band.Frequency / float64(sampleRate)
		sinOmega, cosOmega := math.Sin(omega), math.Cos(omega)
		alpha := sinOmega / (2 * band.Q)
		a := math.Pow(10, band.GainDB/40)

		var b0, b1, b2, a0, a1, a2 float64
		switch band.Type {
		case LowShelf:
			sqrtA := math.Sqrt(a)
			b0 = a * ((a + 1) - (a-1)*cosOmega + 2*sqrtA*alpha)
			b1 = 2 * a * ((a - 1) - (a+1)*cosOmega)
			b2 = a * ((a + 1) - (a-1)*cosOmega - 2*sqrtA*alpha)
			a0 = (a + 1) + (a-1)*cosOmega + 2*sqrtA*alpha
			a1 = -2 * ((a - 1) + (a+1)*cosOmega)
			a2 = (a + 1) + (a-1)*cosOmega - 2*sqrtA*alpha
		case HighShelf:
			sqrtA := math.Sqrt(a)
			b0 = a * ((a + 1) + (a-1)*cosOmega + 2*sqrtA*alpha)
			b1 = -2 * a * ((a - 1) + (a+1)*cosOmega)
			b2 = a * ((a + 1) + (a-1)*cosOmega - 2*sqrtA*alpha)
			a0 = (a + 1) - (a-1)*cosOmega + 2*sqrtA*alpha
			a1 = 2 * ((a - 1) - (a+1)*cosOmega)
			a2 = (a + 1) - (a-1)*cosOmega - 2*sqrtA*alpha
		case Peaking:
			b0 = 1 + alpha*a
			b1 = -2 * cosOmega
			b2 = 1 - alpha*a
			a0 = 1 + alpha/a
			a1 = -2 * cosOmega
			a2 = 1 - alpha/a
		}

		e.coeffs = append(e.coeffs, biquadCoeffs{b0: b0 / a0, b1: b1 / a0, b2: b2 / a0, a1: a1 / a0, a2: a2 / a0})
	}
}

func (e *Equalizer) processSample(ch int, sample float64) float64 {
	output := sample
	for band, c := range e.coeffs {
		output = e.states[ch][band].process(c, output)
	}
	return output
}

func (e *Equalizer) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}

	if !e.initialized || e.sampleRate != audio.SampleRate {
		e.calculateCoeffs(audio.SampleRate)
		e.states = make([][]biquadState, audio.Channels)
		for ch := range e.states {
			e.states[ch] = make([]biquadState, len(e.Bands))
		}
		e.initialized = true
	}

	for ch, samples := range audio.Samples {
		for i, s := range samples {
			samples[i] = clamp(e.processSample(ch, s), -1, 1)
		}
	}
	return f, nil
}

func (e *Equalizer) Name() string { return "eq" }
