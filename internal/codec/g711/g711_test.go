package g711

import (
	"testing"

	"github.com/linuxmatters/codecflux/internal/media"
)

func TestMuLawRoundTripApproximate(t *testing.T) {
	fmtDesc := media.AudioFormat{SampleRate: 8000, Channels: 1}
	enc := NewEncoder(fmtDesc, MuLaw)
	dec := NewDecoder(fmtDesc, MuLaw)

	af := media.NewAudioFrame(8000, 1, 4)
	af.Samples[0] = []float64{0, 0.5, -0.5, 0.1}
	frame := media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 8000}, af)

	p, ok, err := enc.Encode(frame)
	if err != nil || !ok {
		t.Fatalf("encode failed: %v", err)
	}
	if len(p.Data) != 4 {
		t.Fatalf("expected 1 byte per sample, got %d bytes", len(p.Data))
	}

	out, ok, err := dec.Decode(p)
	if err != nil || !ok {
		t.Fatalf("decode failed: %v", err)
	}
	outAudio, _ := out.Audio()
	for i := range af.Samples[0] {
		diff := outAudio.Samples[0][i] - af.Samples[0][i]
		if diff > 0.02 || diff < -0.02 {
			t.Errorf("sample %d drifted too far: got %v want %v", i, outAudio.Samples[0][i], af.Samples[0][i])
		}
	}
}

func TestALawRoundTripApproximate(t *testing.T) {
	fmtDesc := media.AudioFormat{SampleRate: 8000, Channels: 2}
	enc := NewEncoder(fmtDesc, ALaw)
	dec := NewDecoder(fmtDesc, ALaw)

	af := media.NewAudioFrame(8000, 2, 3)
	af.Samples[0] = []float64{0, 0.3, -0.3}
	af.Samples[1] = []float64{0, -0.6, 0.6}
	frame := media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 8000}, af)

	p, ok, err := enc.Encode(frame)
	if err != nil || !ok {
		t.Fatalf("encode failed: %v", err)
	}
	out, ok, err := dec.Decode(p)
	if err != nil || !ok {
		t.Fatalf("decode failed: %v", err)
	}
	outAudio, _ := out.Audio()
	if outAudio.Channels != 2 || outAudio.NumSamples() != 3 {
		t.Fatalf("unexpected frame shape: channels=%d samples=%d", outAudio.Channels, outAudio.NumSamples())
	}
}

func TestMuLawZeroRoundTrips(t *testing.T) {
	if got := ulawDecodeSample(ulawEncodeSample(0)); got < -10 || got > 10 {
		t.Errorf("zero sample drifted too far after round trip: %d", got)
	}
}
