package media

import "testing"

func TestTimebaseRescale(t *testing.T) {
	src := Timebase{Num: 1, Den: 44100}
	dst := Timebase{Num: 1, Den: 1000}

	ticks := src.Rescale(44100, dst) // exactly one second
	if ticks != 1000 {
		t.Fatalf("expected 1000 ms ticks, got %d", ticks)
	}
}

func TestTimebaseSeconds(t *testing.T) {
	tb := Timebase{Num: 1, Den: 48000}
	if got := tb.Seconds(48000); got != 1.0 {
		t.Fatalf("expected 1.0s, got %v", got)
	}
}

func TestFrameAudioVideoAccessors(t *testing.T) {
	af := NewAudioFrame(44100, 2, 10)
	frame := NewAudioFrameWrapper(0, 0, Timebase{1, 44100}, af)

	if _, ok := frame.Video(); ok {
		t.Fatalf("audio frame should not report a video payload")
	}
	got, ok := frame.Audio()
	if !ok || got != af {
		t.Fatalf("expected audio accessor to round-trip the frame")
	}

	vf := NewVideoFrame(64, 48)
	vframe := NewVideoFrameWrapper(1, 0, Timebase{1001, 30000}, vf)
	if _, ok := vframe.Audio(); ok {
		t.Fatalf("video frame should not report an audio payload")
	}
	if gv, ok := vframe.Video(); !ok || gv != vf {
		t.Fatalf("expected video accessor to round-trip the frame")
	}
}

func TestAudioFrameClone(t *testing.T) {
	af := NewAudioFrame(8000, 1, 4)
	af.Samples[0][0] = 0.5
	clone := af.Clone()
	clone.Samples[0][0] = 0.9
	if af.Samples[0][0] != 0.5 {
		t.Fatalf("clone mutated the source frame")
	}
}

func TestVideoFrameChromaSize(t *testing.T) {
	vf := NewVideoFrame(65, 49)
	w, h := vf.ChromaSize()
	if w != 33 || h != 25 {
		t.Fatalf("expected ceil-halved chroma dims (33,25), got (%d,%d)", w, h)
	}
}
