package pcm

import (
	"math"
	"testing"

	"github.com/linuxmatters/codecflux/internal/media"
)

func TestRoundTripS16LE(t *testing.T) {
	fmtDesc := media.AudioFormat{SampleRate: 44100, Channels: 2, SampleFmt: media.SampleS16LE}
	enc := NewEncoder(fmtDesc)
	dec := NewDecoder(fmtDesc)

	af := media.NewAudioFrame(44100, 2, 4)
	af.Samples[0] = []float64{0, 0.5, -0.5, 0.999}
	af.Samples[1] = []float64{0, -0.25, 0.25, -0.999}
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

	for c := 0; c < 2; c++ {
		for i := range af.Samples[c] {
			diff := math.Abs(outAudio.Samples[c][i] - af.Samples[c][i])
			if diff > 1.0/maxS16 {
				t.Errorf("ch%d[%d]: got %v want %v", c, i, outAudio.Samples[c][i], af.Samples[c][i])
			}
		}
	}
}

func TestDecodeRejectsMisalignedPacket(t *testing.T) {
	fmtDesc := media.AudioFormat{SampleRate: 8000, Channels: 2, SampleFmt: media.SampleS16LE}
	dec := NewDecoder(fmtDesc)
	_, ok, err := dec.Decode(media.Packet{Data: []byte{1, 2, 3}})
	if err == nil || ok {
		t.Fatalf("expected error for misaligned packet")
	}
}

func TestU8Midpoint(t *testing.T) {
	fmtDesc := media.AudioFormat{SampleRate: 8000, Channels: 1, SampleFmt: media.SampleU8}
	dec := NewDecoder(fmtDesc)
	frame, ok, err := dec.Decode(media.Packet{Data: []byte{128}})
	if err != nil || !ok {
		t.Fatalf("decode failed: %v", err)
	}
	af, _ := frame.Audio()
	if af.Samples[0][0] != 0 {
		t.Fatalf("expected midpoint 128 to decode to 0.0, got %v", af.Samples[0][0])
	}
}
