package audio

import "github.com/linuxmatters/codecflux/internal/media"

// FadeIn ramps gain linearly from 0 to 1 over DurationSamples, then holds
// at unity for the rest of the stream.
type FadeIn struct {
	DurationSamples int
	currentSample   int
}

func NewFadeIn(durationMs float64, sampleRate int) *FadeIn {
	return &FadeIn{DurationSamples: int(durationMs * float64(sampleRate) / 1000)}
}

func (fi *FadeIn) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}
	n := audio.NumSamples()
	for i := 0; i < n; i++ {
		gain := 1.0
		if fi.currentSample < fi.DurationSamples {
			gain = float64(fi.currentSample) / float64(fi.DurationSamples)
		}
		for ch := range audio.Samples {
			audio.Samples[ch][i] = clamp(audio.Samples[ch][i]*gain, -1, 1)
		}
		fi.currentSample++
	}
	return f, nil
}

func (fi *FadeIn) Name() string { return "fade_in" }

// FadeOut ramps gain linearly down to 0 over the final DurationSamples of
// a TotalSamples-long stream.
type FadeOut struct {
	DurationSamples int
	TotalSamples    int
	currentSample   int
}

func NewFadeOut(durationMs, totalDurationMs float64, sampleRate int) *FadeOut {
	return &FadeOut{
		DurationSamples: int(durationMs * float64(sampleRate) / 1000),
		TotalSamples:    int(totalDurationMs * float64(sampleRate) / 1000),
	}
}

func NewFadeOutFromSampleCount(durationSamples, totalSamples int) *FadeOut {
	return &FadeOut{DurationSamples: durationSamples, TotalSamples: totalSamples}
}

func (fo *FadeOut) Process(f media.Frame) (media.Frame, error) {
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}
	fadeStart := fo.TotalSamples - fo.DurationSamples
	if fadeStart < 0 {
		fadeStart = 0
	}
	n := audio.NumSamples()
	for i := 0; i < n; i++ {
		gain := 1.0
		if fo.currentSample >= fadeStart {
			fadePos := fo.currentSample - fadeStart
			frac := float64(fadePos) / float64(fo.DurationSamples)
			if frac > 1 {
				frac = 1
			}
			gain = 1 - frac
		}
		for ch := range audio.Samples {
			audio.Samples[ch][i] = clamp(audio.Samples[ch][i]*gain, -1, 1)
		}
		fo.currentSample++
	}
	return f, nil
}

func (fo *FadeOut) Name() string { return "fade_out" }

// Crossfade blends a buffered tail of the previous stream into the start
// of the next one. FeedPrevious captures the trailing DurationSamples of
// the outgoing stream; StartCrossfade then arms the blend for the
// following Process calls.
type Crossfade struct {
	DurationSamples int
	currentSample   int
	buffer          [][]float64 // buffer[channel][sample]
	channels        int
	inCrossfade     bool
}

func NewCrossfade(durationMs float64, sampleRate, channels int) *Crossfade {
	n := int(durationMs * float64(sampleRate) / 1000)
	buf := make([][]float64, channels)
	for ch := range buf {
		buf[ch] = make([]float64, n)
	}
	return &Crossfade{DurationSamples: n, buffer: buf, channels: channels}
}

func (c *Crossfade) StartCrossfade() {
	c.inCrossfade = true
	c.currentSample = 0
}

// FeedPrevious captures the trailing window of samples from the stream
// that's about to end.
func (c *Crossfade) FeedPrevious(f media.Frame) {
	audio, ok := f.Audio()
	if !ok {
		return
	}
	for ch := 0; ch < c.channels && ch < len(audio.Samples); ch++ {
		src := audio.Samples[ch]
		start := len(src) - c.DurationSamples
		if start < 0 {
			start = 0
		}
		tail := src[start:]
		copy(c.buffer[ch], tail)
	}
}

func (c *Crossfade) Process(f media.Frame) (media.Frame, error) {
	if !c.inCrossfade {
		return f, nil
	}
	audio, ok := f.Audio()
	if !ok {
		return f, nil
	}
	n := audio.NumSamples()
	for i := 0; i < n; i++ {
		if c.currentSample >= c.DurationSamples {
			c.inCrossfade = false
			break
		}
		fadeOut := 1 - float64(c.currentSample)/float64(c.DurationSamples)
		fadeIn := float64(c.currentSample) / float64(c.DurationSamples)

		for ch := range audio.Samples {
			var old float64
			if ch < len(c.buffer) && c.currentSample < len(c.buffer[ch]) {
				old = c.buffer[ch][c.currentSample]
			}
			audio.Samples[ch][i] = clamp(old*fadeOut+audio.Samples[ch][i]*fadeIn, -1, 1)
		}
		c.currentSample++
	}
	return f, nil
}

func (c *Crossfade) Name() string { return "crossfade" }
