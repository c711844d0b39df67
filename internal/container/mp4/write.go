package mp4

import (
	"bytes"
	"encoding/binary"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// Muxer writes a minimal ISO-BMFF file: ftyp, an mdat holding every
// sample back to back, and a moov built on Close from the sample
// offsets/sizes/durations recorded while writing. Each sample becomes
// its own chunk, which keeps stsc to a single entry at the cost of a
// longer stco; for the file sizes this module produces that trade is
// fine and every box stays 32-bit.
type Muxer struct {
	w       *ioutil.BufferedWriter
	seeker  ioutil.Seeker
	streams []media.StreamInfo
	tracks  []*muxTrack
	mdatPos int64 // offset of the mdat size field
	pos     int64 // current absolute write position
}

type muxTrack struct {
	info      media.StreamInfo
	offsets   []uint32
	sizes     []uint32
	durations []uint32
}

func NewMuxer(w ioutil.WriteSeeker) *Muxer {
	return &Muxer{w: ioutil.NewBufferedWriter(w), seeker: w}
}

func (m *Muxer) WriteHeader(streams []media.StreamInfo) error {
	if len(streams) == 0 {
		return ioutil.InvalidData("mp4 muxer requires at least one stream")
	}
	m.streams = streams
	for _, s := range streams {
		m.tracks = append(m.tracks, &muxTrack{info: s})
	}

	ftyp := buildBox("ftyp",
		[]byte("isom"),
		beU32(0x200),
		[]byte("isomiso2"),
	)
	if _, err := m.w.Write(ftyp); err != nil {
		return err
	}
	m.pos = int64(len(ftyp))

	m.mdatPos = m.pos
	if err := m.w.WriteU32BE(8); err != nil { // patched in Close
		return err
	}
	if err := m.w.WriteTag("mdat"); err != nil {
		return err
	}
	m.pos += 8
	return nil
}

func (m *Muxer) WritePacket(p media.Packet) error {
	if p.StreamIdx < 0 || p.StreamIdx >= len(m.tracks) {
		return ioutil.InvalidData("packet stream index %d out of range", p.StreamIdx)
	}
	t := m.tracks[p.StreamIdx]
	t.offsets = append(t.offsets, uint32(m.pos))
	t.sizes = append(t.sizes, uint32(len(p.Data)))
	dur := uint32(p.Duration)
	if dur == 0 {
		dur = 1
	}
	t.durations = append(t.durations, dur)

	if _, err := m.w.Write(p.Data); err != nil {
		return err
	}
	m.pos += int64(len(p.Data))
	return nil
}

func (m *Muxer) Close() error {
	mdatSize := uint32(m.pos - m.mdatPos)
	if _, err := m.seeker.Seek(m.mdatPos, ioutil.SeekStart); err != nil {
		return err
	}
	if err := m.w.WriteU32BE(mdatSize); err != nil {
		return err
	}
	if _, err := m.seeker.Seek(0, ioutil.SeekEnd); err != nil {
		return err
	}
	_, err := m.w.Write(m.buildMoov())
	return err
}

const movieTimescale = 1000

func (m *Muxer) buildMoov() []byte {
	var longest uint64
	traks := make([][]byte, 0, len(m.tracks))
	for i, t := range m.tracks {
		trak, movieDur := t.buildTrak(uint32(i + 1))
		traks = append(traks, trak)
		if movieDur > longest {
			longest = movieDur
		}
	}

	mvhd := buildFullBox("mvhd", 0, 0,
		beU32(0), beU32(0), // creation/modification time
		beU32(movieTimescale),
		beU32(uint32(longest)),
		beU32(0x00010000),  // rate 1.0
		[]byte{0x01, 0x00}, // volume 1.0
		make([]byte, 10),
		identityMatrix(),
		make([]byte, 24),               // pre-defined
		beU32(uint32(len(m.tracks)+1)), // next track id
	)

	parts := append([][]byte{mvhd}, traks...)
	return buildBox("moov", parts...)
}

func (t *muxTrack) timescale() uint32 {
	if t.info.Audio != nil {
		return uint32(t.info.Audio.SampleRate)
	}
	if v := t.info.Video; v != nil && v.FrameRate.Num > 0 {
		return uint32(v.FrameRate.Den)
	}
	return movieTimescale
}

func (t *muxTrack) totalDuration() uint64 {
	var d uint64
	for _, dur := range t.durations {
		d += uint64(dur)
	}
	return d
}

// buildTrak returns the trak box and the track's duration rescaled to
// the movie timescale for mvhd.
func (t *muxTrack) buildTrak(trackID uint32) ([]byte, uint64) {
	ts := t.timescale()
	dur := t.totalDuration()
	movieDur := dur * movieTimescale / uint64(ts)

	var width, height uint32
	handler, handlerName := "soun", "SoundHandler\x00"
	if t.info.Video != nil {
		handler, handlerName = "vide", "VideoHandler\x00"
		width = uint32(t.info.Video.Width) << 16
		height = uint32(t.info.Video.Height) << 16
	}

	var volume []byte
	if handler == "soun" {
		volume = []byte{0x01, 0x00}
	} else {
		volume = []byte{0x00, 0x00}
	}

	tkhd := buildFullBox("tkhd", 0, 0x0007, // enabled | in movie | in preview
		beU32(0), beU32(0),
		beU32(trackID),
		beU32(0), // reserved
		beU32(uint32(movieDur)),
		make([]byte, 8),
		beU16(0), beU16(0), // layer, alternate group
		volume, beU16(0),
		identityMatrix(),
		beU32(width), beU32(height),
	)

	mdhd := buildFullBox("mdhd", 0, 0,
		beU32(0), beU32(0),
		beU32(ts),
		beU32(uint32(dur)),
		beU16(0x55c4), // language "und"
		beU16(0),
	)

	hdlr := buildFullBox("hdlr", 0, 0,
		beU32(0),
		[]byte(handler),
		make([]byte, 12),
		[]byte(handlerName),
	)

	minf := buildBox("minf",
		t.mediaHeader(),
		buildBox("dinf", buildFullBox("dref", 0, 0,
			beU32(1),
			buildFullBox("url ", 0, 1), // self-contained
		)),
		t.buildStbl(),
	)

	mdia := buildBox("mdia", mdhd, hdlr, minf)
	return buildBox("trak", tkhd, mdia), movieDur
}

func (t *muxTrack) mediaHeader() []byte {
	if t.info.Video != nil {
		return buildFullBox("vmhd", 0, 1, make([]byte, 8))
	}
	return buildFullBox("smhd", 0, 0, beU32(0))
}

func (t *muxTrack) buildStbl() []byte {
	stsd := buildFullBox("stsd", 0, 0, beU32(1), t.sampleEntry())

	// stts as run-length (count, delta) pairs.
	var sttsEntries [][]byte
	i := 0
	for i < len(t.durations) {
		j := i
		for j < len(t.durations) && t.durations[j] == t.durations[i] {
			j++
		}
		sttsEntries = append(sttsEntries, beU32(uint32(j-i)), beU32(t.durations[i]))
		i = j
	}
	stts := buildFullBox("stts", 0, 0, append([][]byte{beU32(uint32(len(sttsEntries) / 2))}, sttsEntries...)...)

	stsc := buildFullBox("stsc", 0, 0,
		beU32(1),
		beU32(1), beU32(1), beU32(1), // from chunk 1: 1 sample/chunk, desc 1
	)

	stszParts := [][]byte{beU32(0), beU32(uint32(len(t.sizes)))}
	for _, s := range t.sizes {
		stszParts = append(stszParts, beU32(s))
	}
	stsz := buildFullBox("stsz", 0, 0, stszParts...)

	stcoParts := [][]byte{beU32(uint32(len(t.offsets)))}
	for _, o := range t.offsets {
		stcoParts = append(stcoParts, beU32(o))
	}
	stco := buildFullBox("stco", 0, 0, stcoParts...)

	return buildBox("stbl", stsd, stts, stsc, stsz, stco)
}

func (t *muxTrack) sampleEntry() []byte {
	if v := t.info.Video; v != nil {
		return buildBox("raw ",
			make([]byte, 6), beU16(1), // reserved, data ref index
			make([]byte, 16), // pre-defined/reserved
			beU16(uint16(v.Width)), beU16(uint16(v.Height)),
			beU32(0x00480000), beU32(0x00480000), // 72 dpi
			beU32(0),
			beU16(1),           // frame count
			make([]byte, 32),   // compressor name
			beU16(24),          // depth
			[]byte{0xff, 0xff}, // pre-defined -1
		)
	}
	a := t.info.Audio
	channels, bits, rate := 2, 16, 44100
	if a != nil {
		if a.Channels > 0 {
			channels = a.Channels
		}
		if a.BitDepth > 0 {
			bits = a.BitDepth
		}
		if a.SampleRate > 0 {
			rate = a.SampleRate
		}
	}
	return buildBox("sowt", // 16-bit little-endian PCM
		make([]byte, 6), beU16(1),
		make([]byte, 8),
		beU16(uint16(channels)), beU16(uint16(bits)),
		beU32(0),
		beU32(uint32(rate)<<16), // 16.16 fixed point
	)
}

func buildBox(boxType string, parts ...[]byte) []byte {
	var body bytes.Buffer
	for _, p := range parts {
		body.Write(p)
	}
	out := make([]byte, 8, 8+body.Len())
	binary.BigEndian.PutUint32(out, uint32(8+body.Len()))
	copy(out[4:], boxType)
	return append(out, body.Bytes()...)
}

func buildFullBox(boxType string, version byte, flags uint32, parts ...[]byte) []byte {
	head := []byte{version, byte(flags >> 16), byte(flags >> 8), byte(flags)}
	return buildBox(boxType, append([][]byte{head}, parts...)...)
}

func identityMatrix() []byte {
	var b bytes.Buffer
	for _, v := range [9]uint32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000} {
		var tmp [4]byte
		binary.BigEndian.PutUint32(tmp[:], v)
		b.Write(tmp[:])
	}
	return b.Bytes()
}

func beU16(v uint16) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

func beU32(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}
