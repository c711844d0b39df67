// Package mp4 implements the ISO-BMFF (MP4) container: a box walker that
// recovers each track's sample table from ftyp/moov/trak/mdia/stbl and
// reconstructs per-sample byte ranges from the chunk offset, sample-to-
// chunk, and sample-size boxes, plus a minimal ftyp+mdat+moov writer.
package mp4

import (
	"io"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

type box struct {
	typ   string
	start int64 // offset of box body (after the 8-byte header)
	size  int64 // body size, not including the header
}

// track holds the sample table fields this module needs to read an ISO
// track's samples back out in order, independent of the original
// mdat layout.
type track struct {
	kind          media.StreamKind
	video         *media.VideoFormat
	audio         *media.AudioFormat
	id            uint32
	timescale     uint32
	sampleSize    uint32   // stsz: nonzero means every sample is this many bytes
	sampleSizes   []uint32 // stsz: per-sample sizes when sampleSize == 0
	chunkOffsets  []int64  // stco/co64
	sampleToChunk []stscEntry
	stts          []sttsEntry
}

type stscEntry struct {
	firstChunk      uint32
	samplesPerChunk uint32
}

type sttsEntry struct {
	count uint32
	delta uint32
}

type Demuxer struct {
	r           ioutil.ReadSeeker
	br          *ioutil.BufferedReader
	tracks      []*track
	majorBrand  string
	mvTimescale uint32
	mvDuration  uint64
	// per-track read cursor
	pos        []int
	byteRanges [][][2]int64 // per track, per sample: [offset,size]
}

func NewDemuxer(r ioutil.ReadSeeker) (*Demuxer, error) {
	br := ioutil.NewBufferedReader(r)
	d := &Demuxer{r: r, br: br}

	boxes, err := readBoxes(br, r, 0, -1)
	if err != nil {
		return nil, err
	}

	sawFtyp := false
	for _, b := range boxes {
		if b.typ == "ftyp" {
			sawFtyp = true
			if err := d.readFtyp(r, b); err != nil {
				return nil, err
			}
		}
		if b.typ == "moov" {
			if err := d.readMoov(r, b); err != nil {
				return nil, err
			}
		}
	}
	if !sawFtyp {
		return nil, ioutil.InvalidData("missing ftyp box")
	}
	if len(d.tracks) == 0 {
		return nil, ioutil.InvalidData("no tracks found in moov")
	}

	d.pos = make([]int, len(d.tracks))
	d.byteRanges = make([][][2]int64, len(d.tracks))
	for i, t := range d.tracks {
		d.byteRanges[i] = buildByteRanges(t)
	}
	return d, nil
}

// readBoxes walks sibling boxes starting at offset within [offset,
// offset+limit) (limit<0 means "until EOF"), returning their headers
// without consuming their bodies (callers seek into a body explicitly).
func readBoxes(br *ioutil.BufferedReader, r ioutil.ReadSeeker, offset, limit int64) ([]box, error) {
	if _, err := r.Seek(offset, ioutil.SeekStart); err != nil {
		return nil, err
	}
	var boxes []box
	pos := offset
	for limit < 0 || pos < offset+limit {
		sizeBuf, err := br.ReadU32BE()
		if err != nil {
			break // EOF ends the walk
		}
		typ, err := br.ReadTag()
		if err != nil {
			return nil, err
		}
		headerLen := int64(8)
		size := int64(sizeBuf)
		if size == 1 {
			large, err := br.ReadU64BE()
			if err != nil {
				return nil, err
			}
			size = int64(large)
			headerLen = 16
		}
		bodyStart := pos + headerLen
		bodySize := size - headerLen
		if size == 0 {
			bodySize = -1 // extends to EOF; not needed by any box this module reads
		}
		boxes = append(boxes, box{typ: typ, start: bodyStart, size: bodySize})

		if bodySize < 0 {
			break
		}
		pos = bodyStart + bodySize
		if _, err := r.Seek(pos, ioutil.SeekStart); err != nil {
			return nil, err
		}
		// The seek moved the source under br; read on from a fresh buffer.
		br = ioutil.NewBufferedReader(r)
	}
	return boxes, nil
}

func (d *Demuxer) readMoov(r ioutil.ReadSeeker, moov box) error {
	br := ioutil.NewBufferedReader(r)
	children, err := readBoxes(br, r, moov.start, moov.size)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.typ == "mvhd" {
			if err := d.readMvhd(r, c); err != nil {
				return err
			}
		}
		if c.typ == "trak" {
			t, err := d.readTrak(r, c)
			if err != nil {
				return err
			}
			if t != nil {
				d.tracks = append(d.tracks, t)
			}
		}
	}
	return nil
}

// readFtyp records the major brand; compatible brands are skipped.
func (d *Demuxer) readFtyp(r ioutil.ReadSeeker, b box) error {
	if b.size < 4 {
		return ioutil.InvalidData("ftyp box too short")
	}
	if _, err := r.Seek(b.start, ioutil.SeekStart); err != nil {
		return err
	}
	br := ioutil.NewBufferedReader(r)
	brand, err := br.ReadTag()
	if err != nil {
		return err
	}
	d.majorBrand = brand
	return nil
}

// readMvhd records the movie-level timescale and duration.
func (d *Demuxer) readMvhd(r ioutil.ReadSeeker, b box) error {
	if _, err := r.Seek(b.start, ioutil.SeekStart); err != nil {
		return err
	}
	br := ioutil.NewBufferedReader(r)
	version, err := br.ReadByte()
	if err != nil {
		return err
	}
	if err := br.Skip(3); err != nil { // flags
		return err
	}
	if version == 1 {
		if err := br.Skip(16); err != nil { // creation/modification, 64-bit
			return err
		}
		ts, err := br.ReadU32BE()
		if err != nil {
			return err
		}
		dur, err := br.ReadU64BE()
		if err != nil {
			return err
		}
		d.mvTimescale, d.mvDuration = ts, dur
		return nil
	}
	if err := br.Skip(8); err != nil {
		return err
	}
	ts, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	dur, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	d.mvTimescale, d.mvDuration = ts, uint64(dur)
	return nil
}

// readTkhd records the track id; presentation dimensions come from the
// sample description instead, which reports coded pixels rather than
// the display transform.
func readTkhd(r ioutil.ReadSeeker, b box, t *track) error {
	if _, err := r.Seek(b.start, ioutil.SeekStart); err != nil {
		return err
	}
	br := ioutil.NewBufferedReader(r)
	version, err := br.ReadByte()
	if err != nil {
		return err
	}
	if err := br.Skip(3); err != nil {
		return err
	}
	skip := int64(8) // 32-bit creation + modification
	if version == 1 {
		skip = 16
	}
	if err := br.Skip(skip); err != nil {
		return err
	}
	id, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	t.id = id
	return nil
}

// MajorBrand reports the ftyp box's major brand four-character code.
func (d *Demuxer) MajorBrand() string { return d.majorBrand }

// MovieTimescale reports mvhd's ticks-per-second.
func (d *Demuxer) MovieTimescale() uint32 { return d.mvTimescale }

// MovieDuration reports mvhd's duration in movie-timescale ticks.
func (d *Demuxer) MovieDuration() uint64 { return d.mvDuration }

// TrackIDs lists the tkhd id of every recognised track, in track order.
func (d *Demuxer) TrackIDs() []uint32 {
	ids := make([]uint32, len(d.tracks))
	for i, t := range d.tracks {
		ids[i] = t.id
	}
	return ids
}

func (d *Demuxer) readTrak(r ioutil.ReadSeeker, trak box) (*track, error) {
	br := ioutil.NewBufferedReader(r)
	children, err := readBoxes(br, r, trak.start, trak.size)
	if err != nil {
		return nil, err
	}
	t := &track{}
	var mdiaBox *box
	for i := range children {
		if children[i].typ == "tkhd" {
			if err := readTkhd(r, children[i], t); err != nil {
				return nil, err
			}
		}
		if children[i].typ == "mdia" {
			mdiaBox = &children[i]
		}
	}
	if mdiaBox == nil {
		return nil, nil
	}
	if err := d.readMdia(r, *mdiaBox, t); err != nil {
		return nil, err
	}
	if t.video == nil && t.audio == nil {
		return nil, nil // unsupported handler type (e.g. hint tracks); skip
	}
	return t, nil
}

func (d *Demuxer) readMdia(r ioutil.ReadSeeker, mdia box, t *track) error {
	br := ioutil.NewBufferedReader(r)
	children, err := readBoxes(br, r, mdia.start, mdia.size)
	if err != nil {
		return err
	}
	for _, c := range children {
		switch c.typ {
		case "mdhd":
			if _, err := r.Seek(c.start, ioutil.SeekStart); err != nil {
				return err
			}
			b2 := ioutil.NewBufferedReader(r)
			version, err := b2.ReadByte()
			if err != nil {
				return err
			}
			if err := b2.ReadFull(make([]byte, 3)); err != nil { // flags
				return err
			}
			if version == 1 {
				if _, err := b2.ReadU64BE(); err != nil {
					return err
				}
				if _, err := b2.ReadU64BE(); err != nil {
					return err
				}
			} else {
				if _, err := b2.ReadU32BE(); err != nil {
					return err
				}
				if _, err := b2.ReadU32BE(); err != nil {
					return err
				}
			}
			scale, err := b2.ReadU32BE()
			if err != nil {
				return err
			}
			t.timescale = scale
		case "hdlr":
			if _, err := r.Seek(c.start+8, ioutil.SeekStart); err != nil { // version/flags + predefined
				return err
			}
			b2 := ioutil.NewBufferedReader(r)
			handlerType, err := b2.ReadTag()
			if err != nil {
				return err
			}
			switch handlerType {
			case "vide":
				t.kind = media.KindVideo
			case "soun":
				t.kind = media.KindAudio
			}
		case "minf":
			if err := d.readMinf(r, c, t); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Demuxer) readMinf(r ioutil.ReadSeeker, minf box, t *track) error {
	br := ioutil.NewBufferedReader(r)
	children, err := readBoxes(br, r, minf.start, minf.size)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.typ == "stbl" {
			return d.readStbl(r, c, t)
		}
	}
	return nil
}

func (d *Demuxer) readStbl(r ioutil.ReadSeeker, stbl box, t *track) error {
	br := ioutil.NewBufferedReader(r)
	children, err := readBoxes(br, r, stbl.start, stbl.size)
	if err != nil {
		return err
	}
	for _, c := range children {
		switch c.typ {
		case "stsd":
			if err := d.readStsd(r, c, t); err != nil {
				return err
			}
		case "stts":
			if err := d.readStts(r, c, t); err != nil {
				return err
			}
		case "stsc":
			if err := d.readStsc(r, c, t); err != nil {
				return err
			}
		case "stsz":
			if err := d.readStsz(r, c, t); err != nil {
				return err
			}
		case "stco":
			if err := d.readStco(r, c, t, false); err != nil {
				return err
			}
		case "co64":
			if err := d.readStco(r, c, t, true); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Demuxer) readStsd(r ioutil.ReadSeeker, stsd box, t *track) error {
	if _, err := r.Seek(stsd.start+8, ioutil.SeekStart); err != nil { // version/flags + entry count
		return err
	}
	br := ioutil.NewBufferedReader(r)
	entrySize, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	format, err := br.ReadTag()
	if err != nil {
		return err
	}
	_ = entrySize

	if t.kind == media.KindVideo {
		// skip reserved(6)+index(2)+pre_defined/reserved(16)+width/height fields start here
		if err := br.ReadFull(make([]byte, 6+2+16)); err != nil {
			return err
		}
		width, err := br.ReadU16BE()
		if err != nil {
			return err
		}
		height, err := br.ReadU16BE()
		if err != nil {
			return err
		}
		t.video = &media.VideoFormat{
			Codec: videoCodecName(format), Width: int(width), Height: int(height),
			PixelFormat: "yuv420p",
		}
	} else if t.kind == media.KindAudio {
		if err := br.ReadFull(make([]byte, 6+2+8)); err != nil { // reserved, index, reserved[2]
			return err
		}
		channels, err := br.ReadU16BE()
		if err != nil {
			return err
		}
		sampleSize, err := br.ReadU16BE()
		if err != nil {
			return err
		}
		if err := br.ReadFull(make([]byte, 4)); err != nil { // pre_defined + reserved
			return err
		}
		sampleRate, err := br.ReadU32BE()
		if err != nil {
			return err
		}
		t.audio = &media.AudioFormat{
			Codec: audioCodecName(format), Channels: int(channels),
			BitDepth: int(sampleSize), SampleRate: int(sampleRate >> 16),
			SampleFmt: media.SampleS16LE,
		}
	}
	return nil
}

func videoCodecName(format string) string {
	if format == "avc1" {
		return "h264" // header-only: this module never decodes H.264 payloads
	}
	return "rawvideo"
}

func audioCodecName(format string) string {
	switch format {
	case "mp4a":
		return "aac" // header-only: AAC payloads are never decoded, matching mp3's treatment
	case "twos", "sowt", "in24", "in32":
		return "pcm"
	}
	return "pcm"
}

func (d *Demuxer) readStts(r ioutil.ReadSeeker, b box, t *track) error {
	if _, err := r.Seek(b.start+4, ioutil.SeekStart); err != nil {
		return err
	}
	br := ioutil.NewBufferedReader(r)
	count, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	t.stts = make([]sttsEntry, count)
	for i := range t.stts {
		c, err := br.ReadU32BE()
		if err != nil {
			return err
		}
		delta, err := br.ReadU32BE()
		if err != nil {
			return err
		}
		t.stts[i] = sttsEntry{count: c, delta: delta}
	}
	return nil
}

func (d *Demuxer) readStsc(r ioutil.ReadSeeker, b box, t *track) error {
	if _, err := r.Seek(b.start+4, ioutil.SeekStart); err != nil {
		return err
	}
	br := ioutil.NewBufferedReader(r)
	count, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	t.sampleToChunk = make([]stscEntry, count)
	for i := range t.sampleToChunk {
		first, err := br.ReadU32BE()
		if err != nil {
			return err
		}
		perChunk, err := br.ReadU32BE()
		if err != nil {
			return err
		}
		if _, err := br.ReadU32BE(); err != nil { // sample_description_index, unused here
			return err
		}
		t.sampleToChunk[i] = stscEntry{firstChunk: first, samplesPerChunk: perChunk}
	}
	return nil
}

func (d *Demuxer) readStsz(r ioutil.ReadSeeker, b box, t *track) error {
	if _, err := r.Seek(b.start+4, ioutil.SeekStart); err != nil {
		return err
	}
	br := ioutil.NewBufferedReader(r)
	uniform, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	count, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	t.sampleSize = uniform
	if uniform == 0 {
		t.sampleSizes = make([]uint32, count)
		for i := range t.sampleSizes {
			s, err := br.ReadU32BE()
			if err != nil {
				return err
			}
			t.sampleSizes[i] = s
		}
	}
	return nil
}

func (d *Demuxer) readStco(r ioutil.ReadSeeker, b box, t *track, is64 bool) error {
	if _, err := r.Seek(b.start+4, ioutil.SeekStart); err != nil {
		return err
	}
	br := ioutil.NewBufferedReader(r)
	count, err := br.ReadU32BE()
	if err != nil {
		return err
	}
	t.chunkOffsets = make([]int64, count)
	for i := range t.chunkOffsets {
		if is64 {
			v, err := br.ReadU64BE()
			if err != nil {
				return err
			}
			t.chunkOffsets[i] = int64(v)
		} else {
			v, err := br.ReadU32BE()
			if err != nil {
				return err
			}
			t.chunkOffsets[i] = int64(v)
		}
	}
	return nil
}

// buildByteRanges expands a track's stco/stsc/stsz tables into an ordered
// [offset,size] pair per sample.
func buildByteRanges(t *track) [][2]int64 {
	var ranges [][2]int64
	if len(t.chunkOffsets) == 0 || len(t.sampleToChunk) == 0 {
		return ranges
	}

	sampleIdx := 0
	nextSize := func() int64 {
		if t.sampleSize != 0 {
			return int64(t.sampleSize)
		}
		if sampleIdx < len(t.sampleSizes) {
			s := int64(t.sampleSizes[sampleIdx])
			return s
		}
		return 0
	}

	for chunkIdx := 0; chunkIdx < len(t.chunkOffsets); chunkIdx++ {
		chunkNum := uint32(chunkIdx + 1)
		samplesPerChunk := uint32(1)
		for i, entry := range t.sampleToChunk {
			if chunkNum >= entry.firstChunk {
				if i+1 < len(t.sampleToChunk) && chunkNum >= t.sampleToChunk[i+1].firstChunk {
					continue
				}
				samplesPerChunk = entry.samplesPerChunk
			}
		}
		offset := t.chunkOffsets[chunkIdx]
		for s := uint32(0); s < samplesPerChunk; s++ {
			size := nextSize()
			ranges = append(ranges, [2]int64{offset, size})
			offset += size
			sampleIdx++
		}
	}
	return ranges
}

func (d *Demuxer) Streams() []media.StreamInfo {
	var out []media.StreamInfo
	for i, t := range d.tracks {
		if t.kind == media.KindVideo {
			out = append(out, media.StreamInfo{Kind: media.KindVideo, Index: i, Video: t.video})
		} else {
			out = append(out, media.StreamInfo{Kind: media.KindAudio, Index: i, Audio: t.audio})
		}
	}
	return out
}

// ReadPacket returns the sample that sits earliest in the file across
// all tracks, so cross-track packet order follows the mdat interleaving
// the muxer chose rather than draining one track at a time.
func (d *Demuxer) ReadPacket() (media.Packet, error) {
	ti := -1
	for i := range d.tracks {
		if d.pos[i] >= len(d.byteRanges[i]) {
			continue
		}
		if ti < 0 || d.byteRanges[i][d.pos[i]][0] < d.byteRanges[ti][d.pos[ti]][0] {
			ti = i
		}
	}
	if ti >= 0 {
		t := d.tracks[ti]
		idx := d.pos[ti]
		rng := d.byteRanges[ti][idx]
		d.pos[ti]++

		buf := make([]byte, rng[1])
		if _, err := d.r.Seek(rng[0], ioutil.SeekStart); err != nil {
			return media.Packet{}, err
		}
		if err := ioutil.NewBufferedReader(d.r).ReadFull(buf); err != nil {
			return media.Packet{}, err
		}

		ts := t.timescale
		if ts == 0 {
			ts = 1
		}
		return media.Packet{
			Kind: t.kind, StreamIdx: ti, PTS: samplePTS(t, idx),
			Timebase: media.Timebase{Num: 1, Den: int64(ts)},
			KeyFrame: true, Data: buf,
		}, nil
	}
	return media.Packet{}, io.EOF
}

func samplePTS(t *track, sampleIdx int) int64 {
	var pts int64
	remaining := sampleIdx
	for _, e := range t.stts {
		if remaining <= 0 {
			break
		}
		n := int(e.count)
		if n > remaining {
			n = remaining
		}
		pts += int64(n) * int64(e.delta)
		remaining -= n
	}
	return pts
}

func (d *Demuxer) Close() error { return nil }
