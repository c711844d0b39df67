package transform

import (
	"testing"

	"github.com/linuxmatters/codecflux/internal/media"
)

var testParams = StreamParams{SampleRate: 44100, Channels: 2, Width: 320, Height: 240}

func TestParseRecognisedSpecs(t *testing.T) {
	cases := []struct {
		spec string
		name string
	}{
		{"gain=2.0", "gain"},
		{"normalize", "normalize"},
		{"normalize=0.9", "normalize"},
		{"lowpass=4000", "lowpass"},
		{"lowpass=4000,1.2", "lowpass"},
		{"eq=3,-2,1.5", "eq"},
		{"peak_limiter=-3", "peak_limiter"},
		{"rms_limiter=-6,50", "rms_limiter"},
		{"fadein=500", "fade_in"},
		{"fadeout=500,30000", "fade_out"},
		{"crossfade=250", "crossfade"},
		{"mix=mono", "channel_mixer"},
		{"mix=stereo", "channel_mixer"},
		{"resample=48000", "resample"},
		{"scale=640x480", "scale"},
		{"crop=160x120@8,8", "crop"},
		{"pad=640x480@160,120", "pad"},
		{"rotate=90", "rotate"},
		{"flip=h", "flip"},
		{"flip=v", "flip"},
		{"blur=3", "blur"},
		{"brightness=1.2", "brightness"},
	}
	for _, tc := range cases {
		tr, err := Parse(tc.spec, testParams)
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.spec, err)
			continue
		}
		if tr.Name() != tc.name {
			t.Errorf("Parse(%q).Name() = %q, want %q", tc.spec, tr.Name(), tc.name)
		}
	}
}

func TestParseRejectsMalformedSpecs(t *testing.T) {
	bad := []string{
		"", "wobble=1", "gain", "gain=loud", "eq=1,2", "mix=quad",
		"rotate=45", "flip=x", "scale=abc", "scale=640", "crop=160x120",
		"resample=-8000", "blur=-1",
	}
	for _, spec := range bad {
		if _, err := Parse(spec, testParams); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", spec)
		}
	}
}

func TestChainAppliesInOrder(t *testing.T) {
	chain, err := ParseChain([]string{"gain=2.0", "gain=0.5"}, testParams)
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	if chain.Len() != 2 {
		t.Fatalf("chain length: got %d want 2", chain.Len())
	}
	if chain.Name() != "gain,gain" {
		t.Fatalf("chain name: got %q", chain.Name())
	}

	af := media.NewAudioFrame(44100, 1, 4)
	for i := range af.Samples[0] {
		af.Samples[0][i] = 0.25
	}
	out, err := chain.Process(media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 44100}, af))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got, _ := out.Audio()
	for i, s := range got.Samples[0] {
		if s != 0.25 {
			t.Errorf("sample %d: got %v want 0.25 (gain 2 then 0.5)", i, s)
		}
	}
}

func TestEmptyChainIsIdentity(t *testing.T) {
	chain := NewChain()
	if chain.Name() != "identity" {
		t.Fatalf("empty chain name: got %q", chain.Name())
	}
	af := media.NewAudioFrame(8000, 1, 2)
	af.Samples[0][0] = 0.5
	in := media.NewAudioFrameWrapper(0, 7, media.Timebase{Num: 1, Den: 8000}, af)
	out, err := chain.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if out.PTS != 7 {
		t.Fatalf("empty chain changed PTS: got %d", out.PTS)
	}
}
