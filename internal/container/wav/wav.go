// Package wav implements the RIFF/WAVE container: chunk walking for
// "fmt " and "data", dispatching to PCM, IMA ADPCM, MS ADPCM, or G.711
// based on the format tag. Every format, plain PCM included, goes
// through the hand-rolled chunk walker; go-audio/wav is used only by
// IsValidWav's cheap signature check.
package wav

import (
	"io"

	"github.com/go-audio/wav"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// Format tags from the WAVEFORMATEX fmt chunk.
const (
	TagPCM       = 0x0001
	TagADPCM     = 0x0002 // Microsoft ADPCM
	TagIEEEFloat = 0x0003
	TagALaw      = 0x0006
	TagMuLaw     = 0x0007
	TagIMAADPCM  = 0x0011
)

// Demuxer walks a WAV file's RIFF chunks and slices the "data" chunk
// into Packets: at most 4 KiB per packet, except MS ADPCM where each
// packet is exactly one nBlockAlign-sized block.
type Demuxer struct {
	r          *ioutil.BufferedReader
	raw        ioutil.Reader
	format     media.AudioFormat
	tag        int
	blockAlign int
	dataLeft   int64
	pts        int64
}

func NewDemuxer(r ioutil.Reader) (*Demuxer, error) {
	br := ioutil.NewBufferedReader(r)

	tag, err := br.ReadTag()
	if err != nil || tag != "RIFF" {
		return nil, ioutil.InvalidData("not a RIFF file")
	}
	if _, err := br.ReadU32LE(); err != nil { // riff size, unused
		return nil, err
	}
	tag, err = br.ReadTag()
	if err != nil || tag != "WAVE" {
		return nil, ioutil.InvalidData("not a WAVE file")
	}

	d := &Demuxer{r: br, raw: r}
	var haveFmt bool

	for {
		chunkID, err := br.ReadTag()
		if err != nil {
			return nil, err
		}
		chunkSize, err := br.ReadU32LE()
		if err != nil {
			return nil, err
		}

		switch chunkID {
		case "fmt ":
			if err := d.readFmt(int(chunkSize)); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, ioutil.InvalidData("data chunk before fmt chunk")
			}
			d.dataLeft = int64(chunkSize)
			return d, nil
		default:
			if err := br.Skip(int64(chunkSize) + int64(chunkSize&1)); err != nil {
				return nil, err
			}
		}
		if chunkID == "fmt " && chunkSize%2 == 1 {
			if err := br.Skip(1); err != nil {
				return nil, err
			}
		}
	}
}

func (d *Demuxer) readFmt(size int) error {
	tag, err := d.r.ReadU16LE()
	if err != nil {
		return err
	}
	channels, err := d.r.ReadU16LE()
	if err != nil {
		return err
	}
	sampleRate, err := d.r.ReadU32LE()
	if err != nil {
		return err
	}
	if _, err := d.r.ReadU32LE(); err != nil { // byte rate
		return err
	}
	blockAlign, err := d.r.ReadU16LE()
	if err != nil {
		return err
	}
	bitsPerSample, err := d.r.ReadU16LE()
	if err != nil {
		return err
	}

	read := 16
	if size > read {
		if err := d.r.Skip(int64(size - read)); err != nil {
			return err
		}
	}

	d.tag = int(tag)
	d.blockAlign = int(blockAlign)

	sf := media.SampleS16LE
	switch bitsPerSample {
	case 8:
		sf = media.SampleU8
	case 16:
		sf = media.SampleS16LE
	case 24:
		sf = media.SampleS24LE
	case 32:
		if tag == TagIEEEFloat {
			sf = media.SampleF32LE
		} else {
			sf = media.SampleS32LE
		}
	}

	codecName := "pcm"
	switch tag {
	case TagIMAADPCM:
		codecName = "adpcm_ima"
	case TagADPCM:
		codecName = "adpcm_ms"
	case TagALaw:
		codecName = "g711_alaw"
	case TagMuLaw:
		codecName = "g711_ulaw"
	}

	d.format = media.AudioFormat{
		Codec:      codecName,
		SampleRate: int(sampleRate),
		Channels:   int(channels),
		BitDepth:   int(bitsPerSample),
		SampleFmt:  sf,
		BlockAlign: int(blockAlign),
	}
	return nil
}

func (d *Demuxer) Streams() []media.StreamInfo {
	f := d.format
	return []media.StreamInfo{{Kind: media.KindAudio, Audio: &f}}
}

func (d *Demuxer) timebase() media.Timebase {
	return media.Timebase{Num: 1, Den: int64(d.format.SampleRate)}
}

func (d *Demuxer) ReadPacket() (media.Packet, error) {
	if d.dataLeft <= 0 {
		return media.Packet{}, io.EOF
	}

	// MS ADPCM is the only block-structured payload here: one block per
	// packet. Everything else (PCM/float/G.711, and the flat IMA ADPCM
	// nibble stream) has no inherent framing; packets are capped at
	// 4 KiB, trimmed to whole sample frames.
	blockSize := d.blockAlign
	if d.tag != TagADPCM || blockSize == 0 {
		blockSize = 4096
		if ba := d.blockAlign; ba > 0 && blockSize%ba != 0 {
			blockSize -= blockSize % ba
		}
	}
	if int64(blockSize) > d.dataLeft {
		blockSize = int(d.dataLeft)
	}

	buf := make([]byte, blockSize)
	if err := d.r.ReadFull(buf); err != nil {
		return media.Packet{}, err
	}
	d.dataLeft -= int64(blockSize)

	samplesThisPacket := d.samplesPerBlock(blockSize)

	p := media.Packet{
		Kind:      media.KindAudio,
		StreamIdx: 0,
		PTS:       d.pts,
		Duration:  int64(samplesThisPacket),
		Timebase:  d.timebase(),
		KeyFrame:  true,
		Data:      buf,
	}
	d.pts += int64(samplesThisPacket)
	return p, nil
}

func (d *Demuxer) samplesPerBlock(blockBytes int) int {
	channels := d.format.Channels
	if channels == 0 {
		channels = 1
	}
	switch d.tag {
	case TagIMAADPCM:
		// Flat nibble stream: two samples per byte, no headers.
		return blockBytes * 2 / channels
	case TagADPCM:
		headerBytes := 7 * channels
		dataBytes := blockBytes - headerBytes
		if dataBytes < 0 {
			return 0
		}
		return 2 + dataBytes*2/channels
	default:
		bytesPerSample := d.format.BitDepth / 8
		if bytesPerSample == 0 {
			bytesPerSample = 1
		}
		return blockBytes / (bytesPerSample * channels)
	}
}

func (d *Demuxer) Close() error { return nil }

// Muxer writes a minimal canonical WAV file: RIFF/WAVE header, fmt
// chunk, then a data chunk whose size is patched in Close. The fmt
// chunk is always the 16-byte base form; its format tag follows the
// stream's codec, so ADPCM and G.711 encoders write through the same
// Muxer as PCM.
type Muxer struct {
	w         *ioutil.BufferedWriter
	seeker    ioutil.Seeker
	format    media.AudioFormat
	dataStart int64
	dataBytes uint32
}

func NewMuxer(w ioutil.WriteSeeker) *Muxer {
	return &Muxer{w: ioutil.NewBufferedWriter(w), seeker: w}
}

func (m *Muxer) WriteHeader(streams []media.StreamInfo) error {
	if len(streams) == 0 || streams[0].Audio == nil {
		return ioutil.InvalidData("wav muxer requires exactly one audio stream")
	}
	m.format = *streams[0].Audio

	if err := m.w.WriteTag("RIFF"); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(0); err != nil { // placeholder
		return err
	}
	if err := m.w.WriteTag("WAVE"); err != nil {
		return err
	}
	if err := m.w.WriteTag("fmt "); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(16); err != nil {
		return err
	}

	tag := uint16(tagForCodec(m.format.Codec))
	blockAlign := uint16(m.format.BlockAlign)
	if blockAlign == 0 {
		blockAlign = uint16(m.format.Channels * bytesForBitDepth(m.format.BitDepth))
	}
	byteRate := uint32(m.format.SampleRate) * uint32(blockAlign)

	if err := m.w.WriteU16LE(tag); err != nil {
		return err
	}
	if err := m.w.WriteU16LE(uint16(m.format.Channels)); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(uint32(m.format.SampleRate)); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(byteRate); err != nil {
		return err
	}
	if err := m.w.WriteU16LE(blockAlign); err != nil {
		return err
	}
	if err := m.w.WriteU16LE(uint16(m.format.BitDepth)); err != nil {
		return err
	}

	if err := m.w.WriteTag("data"); err != nil {
		return err
	}
	pos, err := m.seeker.Seek(0, ioutil.SeekCurrent)
	if err != nil {
		return err
	}
	m.dataStart = pos
	return m.w.WriteU32LE(0) // placeholder, patched in Close
}

func (m *Muxer) WritePacket(p media.Packet) error {
	if _, err := m.w.Write(p.Data); err != nil {
		return err
	}
	m.dataBytes += uint32(len(p.Data))
	return nil
}

func (m *Muxer) Close() error {
	riffSize := uint32(4 + 8 + 16 + 8 + m.dataBytes)
	if _, err := m.seeker.Seek(4, ioutil.SeekStart); err != nil {
		return err
	}
	if err := m.w.WriteU32LE(riffSize); err != nil {
		return err
	}
	if _, err := m.seeker.Seek(m.dataStart, ioutil.SeekStart); err != nil {
		return err
	}
	return m.w.WriteU32LE(m.dataBytes)
}

func tagForCodec(codec string) int {
	switch codec {
	case "adpcm_ima":
		return TagIMAADPCM
	case "adpcm_ms":
		return TagADPCM
	case "g711_alaw":
		return TagALaw
	case "g711_ulaw":
		return TagMuLaw
	default:
		return TagPCM
	}
}

func bytesForBitDepth(bits int) int {
	if bits == 0 {
		return 2
	}
	return bits / 8
}

// IsValidWav sanity-checks a file cheaply before the full chunk walk
// above, reusing go-audio/wav's own validity check rather than
// duplicating its RIFF/WAVE magic-number logic.
func IsValidWav(r ioutil.ReadSeeker) bool {
	return wav.NewDecoder(readSeekAdapter{r}).IsValidFile()
}

type readSeekAdapter struct{ rs ioutil.ReadSeeker }

func (a readSeekAdapter) Read(p []byte) (int, error) { return a.rs.Read(p) }

func (a readSeekAdapter) Seek(offset int64, whence int) (int64, error) {
	var w ioutil.Whence
	switch whence {
	case 1:
		w = ioutil.SeekCurrent
	case 2:
		w = ioutil.SeekEnd
	default:
		w = ioutil.SeekStart
	}
	return a.rs.Seek(offset, w)
}
