package audio

import (
	"math"
	"testing"

	"github.com/linuxmatters/codecflux/internal/media"
)

func toneFrame(sampleRate, channels, n int, amplitude float64) media.Frame {
	af := media.NewAudioFrame(sampleRate, channels, n)
	for ch := range af.Samples {
		for i := range af.Samples[ch] {
			af.Samples[ch][i] = amplitude * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
		}
	}
	return media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: int64(sampleRate)}, af)
}

func TestGainClamps(t *testing.T) {
	f := toneFrame(8000, 1, 100, 0.9)
	g := NewGain(2.0)
	out, err := g.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	for _, s := range audio.Samples[0] {
		if s > 1 || s < -1 {
			t.Fatalf("sample out of range: %v", s)
		}
	}
}

func TestNormalizeReachesTargetPeak(t *testing.T) {
	f := toneFrame(8000, 1, 200, 0.2)
	n := NewNormalize(0.9)
	out, err := n.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	peak := peakAmplitude(audio.Samples)
	if math.Abs(peak-0.9) > 1e-6 {
		t.Fatalf("expected peak ~0.9, got %v", peak)
	}
}

func TestNormalizeSkipsSilence(t *testing.T) {
	af := media.NewAudioFrame(8000, 1, 10)
	f := media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 8000}, af)
	n := NewNormalize(0.9)
	out, err := n.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	for _, s := range audio.Samples[0] {
		if s != 0 {
			t.Fatalf("expected silence to remain silent, got %v", s)
		}
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	f := toneFrame(8000, 1, 200, 0.4)
	n := NewNormalize(0.95)

	once, err := n.Process(f)
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	onceAudio, _ := once.Audio()
	want := append([]float64(nil), onceAudio.Samples[0]...)

	twice, err := NewNormalize(0.95).Process(once)
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	twiceAudio, _ := twice.Audio()
	for i, s := range twiceAudio.Samples[0] {
		if math.Abs(s-want[i]) > 1.0/32768 {
			t.Fatalf("sample %d drifted on second normalize: %v vs %v", i, s, want[i])
		}
	}
}

func TestLowpassAttenuatesToneNearCutoff(t *testing.T) {
	const rate = 44100
	lp := NewLowpass(500)
	f := toneFrame(rate, 1, 4096, 1.0)
	out, err := lp.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	if peakOf(audio.Samples[0]) >= 1.0 {
		t.Fatalf("expected lowpass to attenuate a 440Hz tone below a 500Hz cutoff's steady-state gain")
	}
}

func TestPeakLimiterCapsOutput(t *testing.T) {
	l := NewPeakLimiter(-6)
	f := toneFrame(8000, 1, 500, 1.0)
	out, err := l.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	threshold := dbToLinear(-6)
	for i, s := range audio.Samples[0] {
		if i > 50 && math.Abs(s) > threshold+0.05 {
			t.Fatalf("sample %d exceeds limiter threshold: %v > %v", i, s, threshold)
		}
	}
}

func TestFadeInRampsFromZero(t *testing.T) {
	f := toneFrame(1000, 1, 100, 1.0)
	fi := NewFadeIn(100, 1000) // 100 samples
	out, err := fi.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	if audio.Samples[0][0] != 0 {
		t.Fatalf("expected first faded sample to be silent, got %v", audio.Samples[0][0])
	}
}

func TestChannelMixerMonoToStereo(t *testing.T) {
	f := toneFrame(8000, 1, 10, 0.5)
	m := MonoToStereo()
	out, err := m.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	if audio.Channels != 2 {
		t.Fatalf("expected 2 channels, got %d", audio.Channels)
	}
	for i := range audio.Samples[0] {
		if audio.Samples[0][i] != audio.Samples[1][i] {
			t.Fatalf("expected duplicated channels at %d", i)
		}
	}
}

func TestChannelMixerStereoToMono(t *testing.T) {
	af := media.NewAudioFrame(8000, 2, 4)
	af.Samples[0] = []float64{1, 1, 1, 1}
	af.Samples[1] = []float64{-1, -1, -1, -1}
	f := media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 8000}, af)

	m := StereoToMono()
	out, err := m.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	if audio.Channels != 1 {
		t.Fatalf("expected mono output, got %d channels", audio.Channels)
	}
	for _, s := range audio.Samples[0] {
		if s != 0 {
			t.Fatalf("expected averaged silence, got %v", s)
		}
	}
}

func TestResampleRewritesTimebase(t *testing.T) {
	f := toneFrame(8000, 1, 800, 0.5)
	r := ResampleTo48k()
	out, err := r.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	if audio.SampleRate != 48000 {
		t.Fatalf("expected 48000Hz output, got %d", audio.SampleRate)
	}
	if out.Timebase.Den != 48000 {
		t.Fatalf("expected rewritten timebase, got %+v", out.Timebase)
	}
	wantLen := 800 * 48000 / 8000
	if len(audio.Samples[0]) != wantLen {
		t.Fatalf("unexpected resampled length: got %d want %d", len(audio.Samples[0]), wantLen)
	}
}

func TestResampleNoopAtSameRate(t *testing.T) {
	f := toneFrame(8000, 1, 10, 0.5)
	r := NewResample(8000)
	out, err := r.Process(f)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	audio, _ := out.Audio()
	if audio.SampleRate != 8000 {
		t.Fatalf("expected unchanged sample rate")
	}
}
