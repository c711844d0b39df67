package audio

import "github.com/linuxmatters/codecflux/internal/media"

// Resample converts a frame to TargetRate via per-channel linear
// interpolation, rewriting the frame's PTS and Timebase to match.
type Resample struct {
	TargetRate int
}

func NewResample(targetRate int) *Resample { return &Resample{TargetRate: targetRate} }

func ResampleTo48k() *Resample  { return NewResample(48000) }
func ResampleTo96k() *Resample  { return NewResample(96000) }
func ResampleTo44k1() *Resample { return NewResample(44100) }

func linearInterpolate(samples []float64, srcRate, dstRate int) []float64 {
	if srcRate == dstRate {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples))/ratio + 0.999999999)
	out := make([]float64, outLen)

	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		switch {
		case srcIdx+1 < len(samples):
			out[i] = samples[srcIdx]*(1-frac) + samples[srcIdx+1]*frac
		case srcIdx < len(samples):
			out[i] = samples[srcIdx]
		default:
			out[i] = 0
		}
	}
	return out
}

func (r *Resample) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}
	if audio.SampleRate == r.TargetRate {
		return f, nil
	}

	channels := make([][]float64, audio.Channels)
	for ch, samples := range audio.Samples {
		channels[ch] = linearInterpolate(samples, audio.SampleRate, r.TargetRate)
	}

	out := &media.AudioFrame{SampleRate: r.TargetRate, Channels: audio.Channels, Samples: channels}

	newTimebase := media.Timebase{Num: 1, Den: int64(r.TargetRate)}
	newPTS := f.Timebase.Rescale(f.PTS, newTimebase)

	return media.NewAudioFrameWrapper(f.StreamIdx, newPTS, newTimebase, out), nil
}

func (r *Resample) Name() string { return "resample" }
