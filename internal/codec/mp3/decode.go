package mp3

import "github.com/linuxmatters/codecflux/internal/media"

// Decoder parses MPEG audio frame headers (and, for Layer III, side
// information) out of each Packet's Data for metadata purposes. It never
// performs Huffman decoding, dequantisation or the inverse MDCT, so
// Decode always returns ok=false: there is no PCM to hand downstream.
// Callers that need MP3 audio reproduced as samples should route the
// original packets through a separate full decoder; this module's scope
// stops at parsing.
type Decoder struct {
	fmt media.AudioFormat
}

func NewDecoder(fmt media.AudioFormat) *Decoder {
	return &Decoder{fmt: fmt}
}

func (d *Decoder) Close() error { return nil }

// Decode parses the frame header (and side info, if present) enough to
// validate the packet, but never returns samples.
func (d *Decoder) Decode(p media.Packet) (media.Frame, bool, error) {
	h, err := ParseHeader(p.Data)
	if err != nil {
		return media.Frame{}, false, err
	}

	off := 4
	if h.Protected {
		off += 2 // 16-bit CRC
	}
	if h.Layer == Layer3 && len(p.Data) >= off+sideInfoLength(h) {
		if _, err := ParseSideInfo(h, p.Data[off:]); err != nil {
			return media.Frame{}, false, err
		}
	}

	return media.Frame{}, false, nil
}

// FrameInfo is the subset of a parsed header that pipeline/show.go
// surfaces for MP3 streams.
type FrameInfo struct {
	SampleRate      int
	Channels        int
	BitrateKbps     int
	SamplesPerFrame int
	FrameLen        int
}

// Inspect parses just the header and returns a summary, for use by show
// mode without constructing a full Decoder.
func Inspect(buf []byte) (FrameInfo, error) {
	h, err := ParseHeader(buf)
	if err != nil {
		return FrameInfo{}, err
	}
	return FrameInfo{
		SampleRate:      h.SampleRate,
		Channels:        h.NumChannels(),
		BitrateKbps:     h.BitrateKbps,
		SamplesPerFrame: h.SamplesPerFrame,
		FrameLen:        h.FrameLen,
	}, nil
}
