// Package flac implements the FLAC container: the "fLaC" stream marker,
// metadata block walking (STREAMINFO is parsed; others are skipped), and
// frame-sync scanning to split the audio payload into one Packet per
// frame. The actual subframe math lives in internal/codec/flac; this
// package only handles the bitstream framing around it.
package flac

import (
	"io"

	"github.com/linuxmatters/codecflux/internal/codec/flac"
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// Demuxer reads fLaC metadata blocks and scans audio frames by sync
// code, handing each one back as an opaque Packet for internal/codec/flac
// to decode.
type Demuxer struct {
	r    *ioutil.BufferedReader
	info flac.StreamInfo
	data []byte // audio frames, buffered whole after the metadata blocks
	pos  int
	pts  int64
}

func NewDemuxer(r ioutil.Reader) (*Demuxer, error) {
	br := ioutil.NewBufferedReader(r)

	var magic [4]byte
	if err := br.ReadFull(magic[:]); err != nil {
		return nil, err
	}
	if string(magic[:]) != "fLaC" {
		return nil, ioutil.InvalidData("missing fLaC stream marker")
	}

	d := &Demuxer{r: br}
	var haveStreamInfo bool

	for {
		blockHeader, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		last := blockHeader&0x80 != 0
		blockType := blockHeader & 0x7f

		var lenBuf [3]byte
		if err := br.ReadFull(lenBuf[:]); err != nil {
			return nil, err
		}
		blockLen := int(lenBuf[0])<<16 | int(lenBuf[1])<<8 | int(lenBuf[2])

		if blockType == 0 { // STREAMINFO
			if err := d.readStreamInfo(blockLen); err != nil {
				return nil, err
			}
			haveStreamInfo = true
		} else {
			if err := br.Skip(int64(blockLen)); err != nil {
				return nil, err
			}
		}

		if last {
			break
		}
	}

	if !haveStreamInfo {
		return nil, ioutil.InvalidData("flac stream has no STREAMINFO block")
	}

	// Buffer the audio frames whole; sync scanning needs lookahead past
	// packet boundaries, and FLAC files this module handles are small
	// enough that a sliding window isn't worth its complexity.
	chunk := make([]byte, 32*1024)
	for {
		n, err := br.Read(chunk)
		if n > 0 {
			d.data = append(d.data, chunk[:n]...)
		}
		if err != nil {
			break
		}
	}
	return d, nil
}

func (d *Demuxer) readStreamInfo(blockLen int) error {
	if blockLen < 34 {
		return ioutil.InvalidData("STREAMINFO block too short (%d bytes)", blockLen)
	}
	minBlock, err := d.r.ReadU16BE()
	if err != nil {
		return err
	}
	maxBlock, err := d.r.ReadU16BE()
	if err != nil {
		return err
	}
	var minFrameBuf, maxFrameBuf [3]byte
	if err := d.r.ReadFull(minFrameBuf[:]); err != nil {
		return err
	}
	if err := d.r.ReadFull(maxFrameBuf[:]); err != nil {
		return err
	}
	packed, err := d.r.ReadU64BE() // sample rate(20) | channels-1(3) | bps-1(5) | total samples(36)
	if err != nil {
		return err
	}
	var md5 [16]byte
	if err := d.r.ReadFull(md5[:]); err != nil {
		return err
	}
	if err := d.r.Skip(int64(blockLen - 34)); err != nil {
		return err
	}

	sampleRate := uint32(packed >> 44)
	channels := uint8((packed>>41)&0x7) + 1
	bps := uint8((packed>>36)&0x1f) + 1
	totalSamples := packed & 0xfffffffff

	d.info = flac.StreamInfo{
		MinBlockSize:  minBlock,
		MaxBlockSize:  maxBlock,
		MinFrameSize:  uint32(minFrameBuf[0])<<16 | uint32(minFrameBuf[1])<<8 | uint32(minFrameBuf[2]),
		MaxFrameSize:  uint32(maxFrameBuf[0])<<16 | uint32(maxFrameBuf[1])<<8 | uint32(maxFrameBuf[2]),
		SampleRate:    sampleRate,
		Channels:      channels,
		BitsPerSample: bps,
		TotalSamples:  totalSamples,
		MD5Signature:  md5,
	}
	return nil
}

func (d *Demuxer) Streams() []media.StreamInfo {
	af := media.AudioFormat{
		Codec:      "flac",
		SampleRate: int(d.info.SampleRate),
		Channels:   int(d.info.Channels),
		BitDepth:   int(d.info.BitsPerSample),
		SampleFmt:  media.SampleS32LE,
	}
	return []media.StreamInfo{{Kind: media.KindAudio, Audio: &af}}
}

// StreamInfo exposes the parsed STREAMINFO block for codec construction.
func (d *Demuxer) StreamInfo() flac.StreamInfo {
	return d.info
}

// ReadPacket returns the next whole FLAC frame. Frame boundaries are
// found by scanning for the masked 0xFFF8 sync code and confirming the
// candidate with a full frame-header parse (CRC-8 included), the same
// validate-after-sync discipline the MP3 demuxer uses; a sync byte pair
// occurring inside subframe data fails the header parse and is skipped.
func (d *Demuxer) ReadPacket() (media.Packet, error) {
	start, ok := d.nextSync(d.pos)
	if !ok {
		return media.Packet{}, io.EOF
	}
	header, err := flac.ParseFrameHeader(d.data[start:], d.info)
	if err != nil {
		return media.Packet{}, err
	}
	end, ok := d.nextSync(start + header.HeaderLen)
	if !ok {
		end = len(d.data)
	}

	p := media.Packet{
		Kind:     media.KindAudio,
		PTS:      d.pts,
		Duration: int64(header.BlockSize),
		Timebase: media.Timebase{Num: 1, Den: int64(d.info.SampleRate)},
		KeyFrame: true,
		Data:     d.data[start:end],
	}
	d.pts += int64(header.BlockSize)
	d.pos = end
	return p, nil
}

// nextSync returns the offset of the next byte pair matching the frame
// sync code whose following bytes parse as a valid frame header.
func (d *Demuxer) nextSync(from int) (int, bool) {
	for i := from; i+1 < len(d.data); i++ {
		if d.data[i] != 0xff || d.data[i+1]&0xfc != 0xf8 {
			continue
		}
		if _, err := flac.ParseFrameHeader(d.data[i:], d.info); err == nil {
			return i, true
		}
	}
	return 0, false
}

func (d *Demuxer) Close() error { return nil }

// Muxer writes the fLaC marker, a STREAMINFO block (flagged as the last
// metadata block), then every frame verbatim. When the destination also
// supports seeking, Close back-patches STREAMINFO's total-samples field
// with the number of samples actually written; the MD5 signature is left
// zeroed, which FLAC defines as "unknown".
type Muxer struct {
	w            *ioutil.BufferedWriter
	raw          ioutil.Writer
	info         flac.StreamInfo
	totalSamples uint64
}

func NewMuxer(w ioutil.Writer) *Muxer {
	return &Muxer{w: ioutil.NewBufferedWriter(w), raw: w}
}

func (m *Muxer) WriteHeader(streams []media.StreamInfo) error {
	if len(streams) == 0 || streams[0].Audio == nil {
		return ioutil.InvalidData("flac muxer requires exactly one audio stream")
	}
	af := streams[0].Audio
	m.info = flac.StreamInfo{
		MinBlockSize:  4096,
		MaxBlockSize:  4096,
		SampleRate:    uint32(af.SampleRate),
		Channels:      uint8(af.Channels),
		BitsPerSample: uint8(af.BitDepth),
	}

	if _, err := m.w.Write([]byte("fLaC")); err != nil {
		return err
	}
	if err := m.w.WriteByte(0x80); err != nil { // last-block flag set, type=0 STREAMINFO
		return err
	}
	if err := m.w.WriteByte(0); err != nil {
		return err
	}
	if err := m.w.WriteByte(0); err != nil {
		return err
	}
	if err := m.w.WriteByte(34); err != nil {
		return err
	}
	if err := m.w.WriteU16BE(m.info.MinBlockSize); err != nil {
		return err
	}
	if err := m.w.WriteU16BE(m.info.MaxBlockSize); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if _, err := m.w.Write([]byte{0, 0, 0}); err != nil {
			return err
		}
	}
	packed := uint64(m.info.SampleRate)<<44 |
		uint64(m.info.Channels-1)<<41 |
		uint64(m.info.BitsPerSample-1)<<36
	if err := m.w.WriteU64BE(packed); err != nil {
		return err
	}
	var md5 [16]byte
	if _, err := m.w.Write(md5[:]); err != nil {
		return err
	}
	return nil
}

func (m *Muxer) WritePacket(p media.Packet) error {
	_, err := m.w.Write(p.Data)
	m.totalSamples += uint64(p.Duration)
	return err
}

// streamInfoPackedOffset is where STREAMINFO's packed sample-rate/
// channels/bps/total-samples field sits: "fLaC" (4) + block header (4)
// + block sizes (4) + frame sizes (6).
const streamInfoPackedOffset = 18

func (m *Muxer) Close() error {
	ws, ok := m.raw.(ioutil.WriteSeeker)
	if !ok {
		return nil
	}
	if _, err := ws.Seek(streamInfoPackedOffset, ioutil.SeekStart); err != nil {
		return err
	}
	packed := uint64(m.info.SampleRate)<<44 |
		uint64(m.info.Channels-1)<<41 |
		uint64(m.info.BitsPerSample-1)<<36 |
		m.totalSamples&0xfffffffff
	if err := m.w.WriteU64BE(packed); err != nil {
		return err
	}
	_, err := ws.Seek(0, ioutil.SeekEnd)
	return err
}
