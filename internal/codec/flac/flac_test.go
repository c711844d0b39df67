package flac

import (
	"math"
	"testing"

	"github.com/linuxmatters/codecflux/internal/media"
)

func TestRoundTripFixedPredictor(t *testing.T) {
	info := StreamInfo{SampleRate: 44100, Channels: 1, BitsPerSample: 16, MaxBlockSize: 64}
	enc := NewEncoder(info)
	dec := NewDecoder(info)

	af := media.NewAudioFrame(44100, 1, 64)
	for i := range af.Samples[0] {
		af.Samples[0][i] = 0.4 * math.Sin(float64(i)*0.2)
	}
	frame := media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 44100}, af)

	p, ok, err := enc.Encode(frame)
	if err != nil || !ok {
		t.Fatalf("encode failed: ok=%v err=%v", ok, err)
	}

	out, ok, err := dec.Decode(p)
	if err != nil || !ok {
		t.Fatalf("decode failed: ok=%v err=%v", ok, err)
	}
	outAudio, _ := out.Audio()
	if outAudio.NumSamples() != 64 {
		t.Fatalf("expected 64 samples back, got %d", outAudio.NumSamples())
	}

	tolerance := 2.0 / (1 << 15)
	for i := range af.Samples[0] {
		diff := outAudio.Samples[0][i] - af.Samples[0][i]
		if diff > tolerance || diff < -tolerance {
			t.Errorf("sample %d: got %v want %v (diff %v)", i, outAudio.Samples[0][i], af.Samples[0][i], diff)
		}
	}
}

func TestConstantSubframeRoundTrip(t *testing.T) {
	info := StreamInfo{SampleRate: 8000, Channels: 1, BitsPerSample: 16, MaxBlockSize: 16}
	enc := NewEncoder(info)
	dec := NewDecoder(info)

	af := media.NewAudioFrame(8000, 1, 16)
	for i := range af.Samples[0] {
		af.Samples[0][i] = 0.25
	}
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
	for i, v := range outAudio.Samples[0] {
		if v != af.Samples[0][0] {
			t.Errorf("sample %d: got %v want %v", i, v, af.Samples[0][0])
		}
	}
}

func TestZigzagRoundTrip(t *testing.T) {
	for _, v := range []int32{0, 1, -1, 42, -42, 1000, -1000} {
		if got := zigzagDecode(zigzagEncode(v)); got != v {
			t.Errorf("zigzag round trip failed for %d: got %d", v, got)
		}
	}
}
