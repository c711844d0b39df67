// Package avi implements a minimal AVI (RIFF) reader/writer: it walks
// the "hdrl" LIST for stream headers and formats, then reads video/audio
// chunks out of the "movi" LIST by their two-character stream tag
// ("00dc"/"00db" for stream 0 video, "01wb" for stream 1 audio). An
// unknown chunk is skipped by its declared size. Declared chunk sizes
// are not checked against the remaining size of the enclosing LIST.
package avi

import (
	"io"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// StreamHeader mirrors the fields of an AVI "strh" chunk this module
// cares about.
type StreamHeader struct {
	Type        string // "vids" or "auds"
	Handler     string // fourCC codec tag, e.g. "I420"
	Scale, Rate uint32 // frame rate = Rate/Scale
}

type Demuxer struct {
	r        *ioutil.BufferedReader
	video    *media.VideoFormat
	audio    *media.AudioFormat
	videoIdx int
	audioIdx int
	entries  []movEntry // remaining movi chunks to hand out, parsed eagerly
	pos      int
	vpts     int64
	apts     int64
}

type movEntry struct {
	tag  string
	data []byte
}

func NewDemuxer(r ioutil.Reader) (*Demuxer, error) {
	br := ioutil.NewBufferedReader(r)

	tag, err := br.ReadTag()
	if err != nil || tag != "RIFF" {
		return nil, ioutil.InvalidData("not a RIFF file")
	}
	if _, err := br.ReadU32LE(); err != nil {
		return nil, err
	}
	tag, err = br.ReadTag()
	if err != nil || tag != "AVI " {
		return nil, ioutil.InvalidData("not an AVI file")
	}

	d := &Demuxer{r: br, videoIdx: -1, audioIdx: -1}
	if err := d.walk(); err != nil {
		return nil, err
	}
	return d, nil
}

// walk reads top-level RIFF chunks/LISTs until EOF, collecting header
// info from "hdrl" and chunk data from "movi".
func (d *Demuxer) walk() error {
	streamCount := 0
	for {
		id, err := d.r.ReadTag()
		if err != nil {
			break // EOF ends the top-level walk
		}
		size, err := d.r.ReadU32LE()
		if err != nil {
			return err
		}

		if id == "LIST" {
			listType, err := d.r.ReadTag()
			if err != nil {
				return err
			}
			remaining := int64(size) - 4
			switch listType {
			case "hdrl":
				if err := d.readHdrl(remaining, &streamCount); err != nil {
					return err
				}
			case "movi":
				if err := d.readMovi(remaining); err != nil {
					return err
				}
			default:
				if err := d.r.Skip(remaining); err != nil {
					return err
				}
			}
		} else {
			if err := d.r.Skip(int64(size) + int64(size&1)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Demuxer) readHdrl(remaining int64, streamCount *int) error {
	for remaining > 0 {
		id, err := d.r.ReadTag()
		if err != nil {
			return err
		}
		size, err := d.r.ReadU32LE()
		if err != nil {
			return err
		}
		remaining -= 8

		if id == "LIST" {
			listType, err := d.r.ReadTag()
			if err != nil {
				return err
			}
			innerRemaining := int64(size) - 4
			remaining -= 4
			if listType == "strl" {
				if err := d.readStrl(innerRemaining, *streamCount); err != nil {
					return err
				}
				*streamCount++
			} else {
				if err := d.r.Skip(innerRemaining); err != nil {
					return err
				}
			}
			remaining -= innerRemaining
		} else {
			if err := d.r.Skip(int64(size) + int64(size&1)); err != nil {
				return err
			}
			remaining -= int64(size) + int64(size&1)
		}
	}
	return nil
}

func (d *Demuxer) readStrl(remaining int64, streamIdx int) error {
	var strType, handler string
	var scale, rate uint32
	for remaining > 0 {
		id, err := d.r.ReadTag()
		if err != nil {
			return err
		}
		size, err := d.r.ReadU32LE()
		if err != nil {
			return err
		}
		remaining -= 8

		switch id {
		case "strh":
			chunk := make([]byte, size)
			if err := d.r.ReadFull(chunk); err != nil {
				return err
			}
			strType = string(chunk[0:4])
			handler = string(chunk[4:8])
			_ = handler
			scale = leUint32(chunk[20:24])
			rate = leUint32(chunk[24:28])
			if size&1 == 1 {
				if err := d.r.Skip(1); err != nil {
					return err
				}
			}
		case "strf":
			chunk := make([]byte, size)
			if err := d.r.ReadFull(chunk); err != nil {
				return err
			}
			if strType == "vids" && len(chunk) >= 8 {
				w := int(leUint32(chunk[4:8]))
				h := int(int32(leUint32(chunk[8:12])))
				if h < 0 {
					h = -h
				}
				vf := &media.VideoFormat{
					Codec: "rawvideo", Width: w, Height: h, PixelFormat: "yuv420p",
					FrameRate: media.Timebase{Num: int64(scale), Den: int64(rate)},
				}
				d.video = vf
				d.videoIdx = streamIdx
			} else if strType == "auds" && len(chunk) >= 16 {
				af := &media.AudioFormat{
					Codec:      "pcm",
					Channels:   int(leUint16(chunk[2:4])),
					SampleRate: int(leUint32(chunk[4:8])),
					BitDepth:   int(leUint16(chunk[14:16])),
					SampleFmt:  media.SampleS16LE,
				}
				d.audio = af
				d.audioIdx = streamIdx
			}
			if size&1 == 1 {
				if err := d.r.Skip(1); err != nil {
					return err
				}
			}
		default:
			if err := d.r.Skip(int64(size) + int64(size&1)); err != nil {
				return err
			}
		}
		remaining -= int64(size) + int64(size&1)
	}
	return nil
}

func (d *Demuxer) readMovi(remaining int64) error {
	for remaining > 0 {
		id, err := d.r.ReadTag()
		if err != nil {
			return err
		}
		size, err := d.r.ReadU32LE()
		if err != nil {
			return err
		}
		remaining -= 8

		if id == "LIST" {
			// rec list: recurse by reading its contents as more chunks.
			if _, err := d.r.ReadTag(); err != nil {
				return err
			}
			if err := d.readMovi(int64(size) - 4); err != nil {
				return err
			}
			remaining -= int64(size)
			continue
		}

		chunk := make([]byte, size)
		if err := d.r.ReadFull(chunk); err != nil {
			return err
		}
		d.entries = append(d.entries, movEntry{tag: id, data: chunk})
		if size&1 == 1 {
			if err := d.r.Skip(1); err != nil {
				return err
			}
		}
		remaining -= int64(size) + int64(size&1)
	}
	return nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint16(b []byte) uint16 {
	return uint16(b[0]) | uint16(b[1])<<8
}

func (d *Demuxer) Streams() []media.StreamInfo {
	var out []media.StreamInfo
	if d.video != nil {
		out = append(out, media.StreamInfo{Kind: media.KindVideo, Index: d.videoIdx, Video: d.video})
	}
	if d.audio != nil {
		out = append(out, media.StreamInfo{Kind: media.KindAudio, Index: d.audioIdx, Audio: d.audio})
	}
	return out
}

func (d *Demuxer) ReadPacket() (media.Packet, error) {
	for d.pos < len(d.entries) {
		e := d.entries[d.pos]
		d.pos++
		switch e.tag[2:4] {
		case "dc", "db":
			p := media.Packet{
				Kind: media.KindVideo, StreamIdx: 0, PTS: d.vpts, Duration: 1,
				Timebase: media.Timebase{Num: d.video.FrameRate.Num, Den: d.video.FrameRate.Den},
				KeyFrame: true, Data: e.data,
			}
			d.vpts++
			return p, nil
		case "wb":
			channels := 1
			bytesPerSample := 2
			if d.audio != nil {
				channels = d.audio.Channels
				bytesPerSample = d.audio.BitDepth / 8
			}
			n := int64(len(e.data) / (channels * bytesPerSample))
			p := media.Packet{
				Kind: media.KindAudio, StreamIdx: d.audioIdx, PTS: d.apts, Duration: n,
				Timebase: media.Timebase{Num: 1, Den: int64(d.audio.SampleRate)},
				KeyFrame: true, Data: e.data,
			}
			d.apts += n
			return p, nil
		}
	}
	return media.Packet{}, io.EOF
}

func (d *Demuxer) Close() error { return nil }

// Muxer writes a minimal single-video[+audio] AVI file: RIFF/AVI header,
// an hdrl LIST with one strl per stream, and a movi LIST holding the
// packet data, with the riff and movi sizes patched in Close.
type Muxer struct {
	w         *ioutil.BufferedWriter
	seeker    ioutil.Seeker
	video     *media.VideoFormat
	audio     *media.AudioFormat
	moviStart int64
	moviBytes uint32
}

func NewMuxer(w ioutil.WriteSeeker) *Muxer {
	return &Muxer{w: ioutil.NewBufferedWriter(w), seeker: w}
}

func (m *Muxer) WriteHeader(streams []media.StreamInfo) error {
	for _, s := range streams {
		if s.Video != nil {
			m.video = s.Video
		}
		if s.Audio != nil {
			m.audio = s.Audio
		}
	}
	if m.video == nil {
		return ioutil.InvalidData("avi muxer requires a video stream")
	}

	if err := m.w.WriteTag("RIFF"); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(0); err != nil {
		return err
	}
	if err := m.w.WriteTag("AVI "); err != nil {
		return err
	}

	if err := m.writeHdrl(); err != nil {
		return err
	}

	if err := m.w.WriteTag("LIST"); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(0); err != nil { // movi size placeholder
		return err
	}
	if err := m.w.WriteTag("movi"); err != nil {
		return err
	}
	pos, err := m.seeker.Seek(0, ioutil.SeekCurrent)
	if err != nil {
		return err
	}
	m.moviStart = pos
	return nil
}

func (m *Muxer) writeHdrl() error {
	// A single strl per stream, sized to exactly the bytes this writer
	// emits (strh=56 bytes payload, strf sized per stream kind).
	videoStrfSize := 40
	hdrlSize := 4 /*hdrl*/ + (8 + 56) /*strh chunk*/ + (8 + videoStrfSize)
	hdrlSize += 12 // strl LIST header itself
	if m.audio != nil {
		hdrlSize += 8 + 56 + 8 + 16 + 12
	}

	if err := m.w.WriteTag("LIST"); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(uint32(hdrlSize)); err != nil {
		return err
	}
	if err := m.w.WriteTag("hdrl"); err != nil {
		return err
	}

	if err := m.writeStrl("vids", "I420", uint32(m.video.FrameRate.Num), uint32(m.video.FrameRate.Den), videoStrfVideo(m.video)); err != nil {
		return err
	}
	if m.audio != nil {
		if err := m.writeStrl("auds", "\x01\x00\x00\x00", 1, uint32(m.audio.SampleRate), strfAudio(m.audio)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Muxer) writeStrl(strType, handler string, scale, rate uint32, strf []byte) error {
	strlSize := 4 + (8 + 56) + (8 + len(strf))
	if err := m.w.WriteTag("LIST"); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(uint32(strlSize)); err != nil {
		return err
	}
	if err := m.w.WriteTag("strl"); err != nil {
		return err
	}

	if err := m.w.WriteTag("strh"); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(56); err != nil {
		return err
	}
	strh := make([]byte, 56)
	copy(strh[0:4], strType)
	copy(strh[4:8], handler)
	putLeUint32(strh[20:24], scale)
	putLeUint32(strh[24:28], rate)
	if _, err := m.w.Write(strh); err != nil {
		return err
	}

	if err := m.w.WriteTag("strf"); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(uint32(len(strf))); err != nil {
		return err
	}
	_, err := m.w.Write(strf)
	return err
}

func videoStrfVideo(v *media.VideoFormat) []byte {
	b := make([]byte, 40)
	putLeUint32(b[0:4], 40)
	putLeUint32(b[4:8], uint32(v.Width))
	putLeUint32(b[8:12], uint32(v.Height))
	return b
}

func strfAudio(a *media.AudioFormat) []byte {
	b := make([]byte, 16)
	b[0], b[1] = 1, 0
	putLeUint16(b[2:4], uint16(a.Channels))
	putLeUint32(b[4:8], uint32(a.SampleRate))
	putLeUint16(b[14:16], uint16(a.BitDepth))
	return b
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLeUint16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func (m *Muxer) WritePacket(p media.Packet) error {
	tag := "00db"
	if p.Kind == media.KindAudio {
		tag = "01wb"
	}
	if err := m.w.WriteTag(tag); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(uint32(len(p.Data))); err != nil {
		return err
	}
	if _, err := m.w.Write(p.Data); err != nil {
		return err
	}
	m.moviBytes += uint32(8 + len(p.Data))
	if len(p.Data)&1 == 1 {
		if err := m.w.WriteByte(0); err != nil {
			return err
		}
		m.moviBytes++
	}
	return nil
}

func (m *Muxer) Close() error {
	end, err := m.seeker.Seek(0, ioutil.SeekCurrent)
	if err != nil {
		return err
	}
	riffSize := uint32(end - 8)
	if _, err := m.seeker.Seek(4, ioutil.SeekStart); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(riffSize); err != nil {
		return err
	}
	if _, err := m.seeker.Seek(m.moviStart-8, ioutil.SeekStart); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(m.moviBytes + 4); err != nil {
		return err
	}
	_, err = m.seeker.Seek(end, ioutil.SeekStart)
	return err
}
