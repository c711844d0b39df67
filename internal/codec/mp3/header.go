// Package mp3 parses MPEG audio frame headers and Layer III side
// information for metadata and stream-shape purposes. It deliberately
// does not implement Huffman decoding, dequantisation, or the inverse
// MDCT: Decode always reports ok=false, matching every other container
// in this module that treats perceptually-coded audio as parse-only.
package mp3

import (
	"bytes"

	"github.com/icza/bitio"

	"github.com/linuxmatters/codecflux/internal/ioutil"
)

// MPEG version and layer identifiers as they appear in the frame header.
const (
	Mpeg1  = 1
	Mpeg2  = 2
	Mpeg25 = 3 // unofficial MPEG 2.5 extension

	Layer1 = 1
	Layer2 = 2
	Layer3 = 3
)

var bitrateTable = map[[2]int][16]int{
	// [version][layer] -> kbps table indexed by the 4-bit bitrate index
	{Mpeg1, Layer1}: {0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, -1},
	{Mpeg1, Layer2}: {0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, -1},
	{Mpeg1, Layer3}: {0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, -1},
	{Mpeg2, Layer1}: {0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, -1},
	{Mpeg2, Layer2}: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
	{Mpeg2, Layer3}: {0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, -1},
}

var sampleRateTable = map[int][4]int{
	Mpeg1:  {44100, 48000, 32000, -1},
	Mpeg2:  {22050, 24000, 16000, -1},
	Mpeg25: {11025, 12000, 8000, -1},
}

var samplesPerFrameTable = map[[2]int]int{
	{Mpeg1, Layer1}:  384,
	{Mpeg1, Layer2}:  1152,
	{Mpeg1, Layer3}:  1152,
	{Mpeg2, Layer1}:  384,
	{Mpeg2, Layer2}:  1152,
	{Mpeg2, Layer3}:  576,
	{Mpeg25, Layer1}: 384,
	{Mpeg25, Layer2}: 1152,
	{Mpeg25, Layer3}: 576,
}

// ChannelMode mirrors the 2-bit channel_mode field.
type ChannelMode int

const (
	Stereo ChannelMode = iota
	JointStereo
	DualChannel
	Mono
)

// Header is a fully parsed MPEG audio frame header.
type Header struct {
	Version         int
	Layer           int
	Protected       bool // CRC present
	BitrateKbps     int
	SampleRate      int
	Padding         bool
	ChannelMode     ChannelMode
	ModeExt         int
	FrameLen        int
	SamplesPerFrame int
}

// ParseHeader decodes the 4-byte MPEG audio frame header starting at the
// sync word 0xFFE (11 set bits). buf must be at least 4 bytes.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < 4 {
		return Header{}, ioutil.InvalidData("mp3 header needs at least 4 bytes, got %d", len(buf))
	}
	if buf[0] != 0xFF || buf[1]&0xE0 != 0xE0 {
		return Header{}, ioutil.InvalidData("mp3 sync word not found")
	}

	versionBits := (buf[1] >> 3) & 0x03
	layerBits := (buf[1] >> 1) & 0x03
	protectionBit := buf[1] & 0x01

	var version int
	switch versionBits {
	case 0x00:
		version = Mpeg25
	case 0x02:
		version = Mpeg2
	case 0x03:
		version = Mpeg1
	default:
		return Header{}, ioutil.InvalidData("reserved mpeg version bits")
	}

	var layer int
	switch layerBits {
	case 0x01:
		layer = Layer3
	case 0x02:
		layer = Layer2
	case 0x03:
		layer = Layer1
	default:
		return Header{}, ioutil.InvalidData("reserved mpeg layer bits")
	}

	bitrateIdx := (buf[2] >> 4) & 0x0f
	sampleRateIdx := (buf[2] >> 2) & 0x03
	padding := (buf[2]>>1)&0x01 == 1

	channelModeBits := (buf[3] >> 6) & 0x03
	modeExt := int((buf[3] >> 4) & 0x03)

	rateVersion := version
	if version == Mpeg25 {
		rateVersion = Mpeg2 // MPEG-2.5 uses the MPEG-2 bitrate tables
	}
	rates, ok := bitrateTable[[2]int{rateVersion, layer}]
	if !ok {
		return Header{}, ioutil.InvalidData("unsupported version/layer combination")
	}
	if int(bitrateIdx) >= len(rates) || rates[bitrateIdx] < 0 {
		return Header{}, ioutil.InvalidData("invalid bitrate index %d", bitrateIdx)
	}
	bitrate := rates[bitrateIdx]

	srTable := sampleRateTable[version]
	if int(sampleRateIdx) >= len(srTable) || srTable[sampleRateIdx] < 0 {
		return Header{}, ioutil.InvalidData("invalid sample rate index %d", sampleRateIdx)
	}
	sampleRate := srTable[sampleRateIdx]

	samplesPerFrame := samplesPerFrameTable[[2]int{version, layer}]

	frameLen := frameLength(layer, bitrate, sampleRate, padding, samplesPerFrame)

	h := Header{
		Version:         version,
		Layer:           layer,
		Protected:       protectionBit == 0,
		BitrateKbps:     bitrate,
		SampleRate:      sampleRate,
		Padding:         padding,
		ChannelMode:     ChannelMode(channelModeBits),
		ModeExt:         modeExt,
		FrameLen:        frameLen,
		SamplesPerFrame: samplesPerFrame,
	}
	return h, nil
}

func frameLength(layer, bitrateKbps, sampleRate int, padding bool, samplesPerFrame int) int {
	pad := 0
	if padding {
		pad = 1
	}
	if layer == Layer1 {
		slots := (12*bitrateKbps*1000/sampleRate + pad) * 4
		return slots
	}
	return samplesPerFrame/8*bitrateKbps*1000/sampleRate + pad
}

// NumChannels reports how many channels the header's channel mode implies.
func (h Header) NumChannels() int {
	if h.ChannelMode == Mono {
		return 1
	}
	return 2
}

// FindSync scans buf for the next valid frame header starting at or
// after offset, returning its position and parsed header, or ok=false if
// none is found. When enough bytes remain and a valid header parses at
// the following frame position, it must share version/layer/sample-rate,
// to reject spurious 0xFFE byte pairs inside encoded audio data; bytes
// there that do not parse as a header do not reject the match.
func FindSync(buf []byte, offset int) (pos int, header Header, ok bool) {
	for i := offset; i+4 <= len(buf); i++ {
		if buf[i] != 0xFF || buf[i+1]&0xE0 != 0xE0 {
			continue
		}
		h, err := ParseHeader(buf[i:])
		if err != nil {
			continue
		}
		if i+h.FrameLen+4 <= len(buf) {
			next, err := ParseHeader(buf[i+h.FrameLen:])
			if err == nil && (next.Version != h.Version || next.Layer != h.Layer || next.SampleRate != h.SampleRate) {
				continue
			}
		}
		return i, h, true
	}
	return 0, Header{}, false
}

// newBitReader wraps a byte slice for the MSB-first bit reads side-info
// parsing needs.
func newBitReader(b []byte) *bitio.Reader {
	return bitio.NewReader(bytes.NewReader(b))
}
