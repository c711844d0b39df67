package rawvideo

import (
	"testing"

	"github.com/linuxmatters/codecflux/internal/media"
)

func TestRoundTrip(t *testing.T) {
	fmtDesc := media.VideoFormat{Width: 4, Height: 2}
	enc := NewEncoder(fmtDesc)
	dec := NewDecoder(fmtDesc)

	vf := media.NewVideoFrame(4, 2)
	for i := range vf.Y {
		vf.Y[i] = byte(i + 1)
	}
	for i := range vf.U {
		vf.U[i] = byte(100 + i)
	}
	frame := media.NewVideoFrameWrapper(0, 0, media.Timebase{Num: 1001, Den: 30000}, vf)

	p, ok, err := enc.Encode(frame)
	if err != nil || !ok {
		t.Fatalf("encode failed: %v", err)
	}

	out, ok, err := dec.Decode(p)
	if err != nil || !ok {
		t.Fatalf("decode failed: %v", err)
	}
	outVideo, _ := out.Video()
	for i := range vf.Y {
		if outVideo.Y[i] != vf.Y[i] {
			t.Fatalf("Y plane mismatch at %d: got %d want %d", i, outVideo.Y[i], vf.Y[i])
		}
	}
}

func TestDecodeRejectsWrongSize(t *testing.T) {
	dec := NewDecoder(media.VideoFormat{Width: 4, Height: 2})
	_, ok, err := dec.Decode(media.Packet{Data: []byte{1, 2, 3}})
	if err == nil || ok {
		t.Fatalf("expected error for undersized packet")
	}
}
