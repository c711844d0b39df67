package avi

import (
	"testing"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

func TestMuxDemuxRoundTripVideoOnly(t *testing.T) {
	buf := ioutil.NewCursor(make([]byte, 0, 4096))
	m := NewMuxer(buf)

	vf := media.VideoFormat{Width: 4, Height: 2, FrameRate: media.Timebase{Num: 1, Den: 25}}
	if err := m.WriteHeader([]media.StreamInfo{{Kind: media.KindVideo, Video: &vf}}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	frame := media.NewVideoFrame(4, 2)
	for i := range frame.Y {
		frame.Y[i] = byte(i + 1)
	}
	payload := append(append(append([]byte{}, frame.Y...), frame.U...), frame.V...)
	if err := m.WritePacket(media.Packet{Kind: media.KindVideo, Data: payload}); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dm, err := NewDemuxer(ioutil.NewCursor(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	streams := dm.Streams()
	if len(streams) != 1 || streams[0].Video.Width != 4 || streams[0].Video.Height != 2 {
		t.Fatalf("unexpected streams: %+v", streams)
	}

	p, err := dm.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if len(p.Data) != len(payload) {
		t.Fatalf("unexpected packet size: got %d want %d", len(p.Data), len(payload))
	}
}

func TestDemuxerRejectsNonRIFF(t *testing.T) {
	_, err := NewDemuxer(ioutil.NewCursor([]byte("not an avi file at all")))
	if err == nil {
		t.Fatalf("expected error for non-RIFF input")
	}
}
