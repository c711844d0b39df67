// Package mp3 implements an MPEG audio container demuxer: it scans for
// frame sync codes, slices out one Packet per frame using the header's
// computed frame length, and skips any leading ID3v2 tag. The muxer is
// pure pass-through: this module never synthesizes MP3 frames, it only
// re-concatenates frames it demuxed, so writing is a verbatim copy.
package mp3

import (
	"io"

	"github.com/linuxmatters/codecflux/internal/codec/mp3"
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// Demuxer reads an entire MP3 stream into memory and walks frame sync
// codes. Buffering the whole stream (rather than a sliding window) keeps
// FindSync's one-frame-lookahead check simple; MP3 files this module
// targets are small enough for that to be reasonable.
type Demuxer struct {
	buf   []byte
	pos   int
	first mp3.Header
	pts   int64
}

func NewDemuxer(r ioutil.Reader) (*Demuxer, error) {
	br := ioutil.NewBufferedReader(r)
	var all []byte
	chunk := make([]byte, 32*1024)
	for {
		n, err := br.Read(chunk)
		if n > 0 {
			all = append(all, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}

	start := skipID3v2(all)
	pos, header, ok := mp3.FindSync(all, start)
	if !ok {
		return nil, ioutil.InvalidData("no valid mp3 frame sync found")
	}

	return &Demuxer{buf: all, pos: pos, first: header}, nil
}

// skipID3v2 returns the offset past a leading "ID3" tag, or 0 if none.
func skipID3v2(buf []byte) int {
	if len(buf) < 10 || string(buf[0:3]) != "ID3" {
		return 0
	}
	size := int(buf[6]&0x7f)<<21 | int(buf[7]&0x7f)<<14 | int(buf[8]&0x7f)<<7 | int(buf[9]&0x7f)
	return 10 + size
}

func (d *Demuxer) Streams() []media.StreamInfo {
	af := media.AudioFormat{
		Codec:      "mp3",
		SampleRate: d.first.SampleRate,
		Channels:   d.first.NumChannels(),
	}
	return []media.StreamInfo{{Kind: media.KindAudio, Audio: &af}}
}

func (d *Demuxer) ReadPacket() (media.Packet, error) {
	pos, header, ok := mp3.FindSync(d.buf, d.pos)
	if !ok {
		return media.Packet{}, io.EOF
	}
	end := pos + header.FrameLen
	if end > len(d.buf) {
		end = len(d.buf)
	}
	data := d.buf[pos:end]
	d.pos = end

	p := media.Packet{
		Kind:     media.KindAudio,
		PTS:      d.pts,
		Duration: int64(header.SamplesPerFrame),
		Timebase: media.Timebase{Num: 1, Den: int64(header.SampleRate)},
		KeyFrame: true,
		Data:     data,
	}
	d.pts += int64(header.SamplesPerFrame)
	return p, nil
}

func (d *Demuxer) Close() error { return nil }

// Muxer concatenates MP3 frames verbatim. Frames carry their own sync
// and length information, so the container needs no header and no
// back-patching on Close.
type Muxer struct {
	w ioutil.Writer
}

func NewMuxer(w ioutil.Writer) *Muxer {
	return &Muxer{w: w}
}

func (m *Muxer) WriteHeader(streams []media.StreamInfo) error { return nil }

func (m *Muxer) WritePacket(p media.Packet) error {
	_, err := m.w.Write(p.Data)
	return err
}

func (m *Muxer) Close() error { return nil }
