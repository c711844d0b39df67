package mp4

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// box32 builds a standard 32-bit-size ISO-BMFF box from a type tag and body.
func box32(typ string, body []byte) []byte {
	out := make([]byte, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(8+len(body)))
	copy(out[4:8], typ)
	copy(out[8:], body)
	return out
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func cat(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
	}
	return buf.Bytes()
}

// buildMinimalMp4 assembles a single-video-track file with one sample
// living in mdat, enough for the demuxer to walk moov and recover exactly
// one packet.
func buildMinimalMp4(sampleData []byte) []byte {
	ftyp := box32("ftyp", cat([]byte("isom"), be32(0)))

	mdhdBody := cat(
		[]byte{0, 0, 0, 0}, // version + flags
		be32(0),            // creation_time
		be32(0),            // modification_time
		be32(1000),         // timescale
		be32(0),            // duration
		be16(0),            // language
		be16(0),            // pre_defined
	)
	mdhd := box32("mdhd", mdhdBody)

	hdlrBody := cat(
		[]byte{0, 0, 0, 0}, // version + flags
		be32(0),            // pre_defined
		[]byte("vide"),     // handler_type
		make([]byte, 12),   // reserved
		[]byte{0},          // name (empty, null-terminated)
	)
	hdlr := box32("hdlr", hdlrBody)

	stsdEntryBody := cat(
		make([]byte, 6), // reserved
		be16(0),         // data_reference_index
		make([]byte, 16),
		be16(4), be16(2), // width, height
		make([]byte, 50), // remaining fixed sample-entry fields, unused by the reader
	)
	stsdEntry := box32("avc1", stsdEntryBody)
	stsd := box32("stsd", cat([]byte{0, 0, 0, 0}, be32(1), stsdEntry))

	stts := box32("stts", cat([]byte{0, 0, 0, 0}, be32(1), be32(1), be32(100)))
	stsc := box32("stsc", cat([]byte{0, 0, 0, 0}, be32(1), be32(1), be32(1), be32(1)))
	stsz := box32("stsz", cat([]byte{0, 0, 0, 0}, be32(uint32(len(sampleData))), be32(1)))
	stco := box32("stco", cat([]byte{0, 0, 0, 0}, be32(1), be32(0))) // offset patched below

	stbl := box32("stbl", cat(stsd, stts, stsc, stsz, stco))
	minf := box32("minf", stbl)
	mdia := box32("mdia", cat(mdhd, hdlr, minf))
	trak := box32("trak", mdia)
	moov := box32("moov", trak)

	mdatOffset := len(ftyp) + len(moov) + 8 // 8 = mdat's own box header

	stcoOffsetPos := len(ftyp) + indexOf(moov, stco) + 8 /*box header*/ + 8 /*version/flags+count*/
	binary.BigEndian.PutUint32(moov[stcoOffsetPos-len(ftyp):], uint32(mdatOffset))

	mdat := box32("mdat", sampleData)

	return cat(ftyp, moov, mdat)
}

func indexOf(haystack, needle []byte) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if bytes.Equal(haystack[i:i+len(needle)], needle) {
			return i
		}
	}
	return -1
}

func TestDemuxerReadsSingleVideoSample(t *testing.T) {
	sample := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	data := buildMinimalMp4(sample)

	d, err := NewDemuxer(ioutil.NewCursor(data))
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	streams := d.Streams()
	if len(streams) != 1 || streams[0].Video == nil {
		t.Fatalf("expected one video stream, got %+v", streams)
	}
	if streams[0].Video.Width != 4 || streams[0].Video.Height != 2 {
		t.Fatalf("unexpected video dims: %+v", streams[0].Video)
	}

	p, err := d.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if !bytes.Equal(p.Data, sample) {
		t.Fatalf("sample mismatch: got %v want %v", p.Data, sample)
	}

	if _, err := d.ReadPacket(); err == nil {
		t.Fatalf("expected error after the single sample is exhausted")
	}
}

func TestMuxDemuxRoundTrip(t *testing.T) {
	buf := ioutil.NewCursor(nil)
	m := NewMuxer(buf)

	vf := media.VideoFormat{Codec: "rawvideo", Width: 4, Height: 2, FrameRate: media.Timebase{Num: 1, Den: 30}}
	if err := m.WriteHeader([]media.StreamInfo{{Kind: media.KindVideo, Video: &vf}}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	samples := [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8, 9}}
	for i, s := range samples {
		p := media.Packet{
			Kind: media.KindVideo, StreamIdx: 0, PTS: int64(i), Duration: 1,
			Timebase: media.Timebase{Num: 1, Den: 30}, Data: s,
		}
		if err := m.WritePacket(p); err != nil {
			t.Fatalf("WritePacket %d: %v", i, err)
		}
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	d, err := NewDemuxer(ioutil.NewCursor(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	streams := d.Streams()
	if len(streams) != 1 || streams[0].Video == nil {
		t.Fatalf("expected one video stream, got %+v", streams)
	}
	if streams[0].Video.Width != 4 || streams[0].Video.Height != 2 {
		t.Fatalf("unexpected dims: %+v", streams[0].Video)
	}
	for i, want := range samples {
		p, err := d.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket %d: %v", i, err)
		}
		if !bytes.Equal(p.Data, want) {
			t.Fatalf("sample %d mismatch: got %v want %v", i, p.Data, want)
		}
	}
}

func TestDemuxerRejectsMissingFtyp(t *testing.T) {
	_, err := NewDemuxer(ioutil.NewCursor(box32("moov", nil)))
	if err == nil {
		t.Fatalf("expected error for missing ftyp box")
	}
}
