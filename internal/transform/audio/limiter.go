package audio

import (
	"math"

	"github.com/linuxmatters/codecflux/internal/media"
)

// PeakLimiter tracks an instantaneous peak and applies a smoothed gain
// reduction so no sample exceeds Threshold (linear), attacking
// immediately and releasing exponentially.
type PeakLimiter struct {
	Threshold    float64
	ReleaseCoeff float64
	currentGain  float64
}

func NewPeakLimiter(thresholdDB float64) *PeakLimiter {
	return &PeakLimiter{Threshold: dbToLinear(thresholdDB), ReleaseCoeff: 0.9999, currentGain: 1}
}

func (p *PeakLimiter) WithRelease(releaseMs float64, sampleRate int) *PeakLimiter {
	releaseSamples := releaseMs * float64(sampleRate) / 1000
	p.ReleaseCoeff = math.Exp(-1 / releaseSamples)
	return p
}

func (p *PeakLimiter) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}
	n := audio.NumSamples()
	for i := 0; i < n; i++ {
		for ch := range audio.Samples {
			sample := audio.Samples[ch][i]
			peak := math.Abs(sample)
			target := 1.0
			if peak > p.Threshold {
				target = p.Threshold / peak
			}
			if target < p.currentGain {
				p.currentGain = target
			} else {
				p.currentGain = p.currentGain*p.ReleaseCoeff + target*(1-p.ReleaseCoeff)
			}
			audio.Samples[ch][i] = clamp(sample*p.currentGain, -1, 1)
		}
	}
	return f, nil
}

func (p *PeakLimiter) Name() string { return "peak_limiter" }

// RmsLimiter limits based on a windowed RMS estimate rather than an
// instantaneous sample peak, giving gentler gain reduction on transients.
type RmsLimiter struct {
	ThresholdDB   float64
	ReleaseCoeff  float64
	windowSamples int
	currentGain   float64
	rmsBuffer     []float64
	bufferPos     int
}

func NewRmsLimiter(thresholdDB, windowMs float64, sampleRate int) *RmsLimiter {
	windowSamples := int(windowMs * float64(sampleRate) / 1000)
	if windowSamples < 1 {
		windowSamples = 1
	}
	return &RmsLimiter{
		ThresholdDB: thresholdDB, ReleaseCoeff: 0.9995, currentGain: 1,
		windowSamples: windowSamples, rmsBuffer: make([]float64, windowSamples),
	}
}

func (r *RmsLimiter) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}
	threshold := dbToLinear(r.ThresholdDB)
	n := audio.NumSamples()

	for i := 0; i < n; i++ {
		for ch := range audio.Samples {
			sample := audio.Samples[ch][i]
			r.rmsBuffer[r.bufferPos] = sample
			r.bufferPos = (r.bufferPos + 1) % r.windowSamples

			rms := rmsOf(r.rmsBuffer)
			target := 1.0
			if rms > threshold {
				target = threshold / rms
			}
			if target < r.currentGain {
				r.currentGain = target
			} else {
				r.currentGain = r.currentGain*r.ReleaseCoeff + target*(1-r.ReleaseCoeff)
			}
			audio.Samples[ch][i] = clamp(sample*r.currentGain, -1, 1)
		}
	}
	return f, nil
}

func (r *RmsLimiter) Name() string { return "rms_limiter" }
