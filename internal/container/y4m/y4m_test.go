package y4m

import (
	"testing"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

func TestMuxDemuxRoundTrip(t *testing.T) {
	buf := ioutil.NewCursor(make([]byte, 0, 4096))
	m := NewMuxer(buf)

	format := media.VideoFormat{Width: 4, Height: 2, FrameRate: media.Timebase{Num: 1, Den: 25}}
	if err := m.WriteHeader([]media.StreamInfo{{Kind: media.KindVideo, Video: &format}}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	vf := media.NewVideoFrame(4, 2)
	for i := range vf.Y {
		vf.Y[i] = byte(i)
	}
	if err := m.WritePacket(media.Packet{Data: append(append(append([]byte{}, vf.Y...), vf.U...), vf.V...)}); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	dm, err := NewDemuxer(ioutil.NewCursor(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	streams := dm.Streams()
	if streams[0].Video.Width != 4 || streams[0].Video.Height != 2 {
		t.Fatalf("unexpected format: %+v", streams[0].Video)
	}
	if streams[0].Video.FrameRate.Num != 1 || streams[0].Video.FrameRate.Den != 25 {
		t.Fatalf("frame rate did not round-trip: %+v", streams[0].Video.FrameRate)
	}

	p, err := dm.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if len(p.Data) != len(vf.Y)+len(vf.U)+len(vf.V) {
		t.Fatalf("unexpected packet size: %d", len(p.Data))
	}
}

func TestDemuxerRejectsWrongMagic(t *testing.T) {
	_, err := NewDemuxer(ioutil.NewCursor([]byte("not y4m\n")))
	if err == nil {
		t.Fatalf("expected error for bad magic")
	}
}
