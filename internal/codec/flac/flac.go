// Package flac implements the FLAC frame codec: the byte-aligned frame
// header (sync code, coded frame number, CRC-8) with its trailing
// CRC-16, and the constant, verbatim, and fixed-predictor subframe
// types with Rice-coded residuals, which together cover everything a
// non-LPC FLAC encoder needs to round-trip losslessly. An LPC subframe
// in the input is rejected with InvalidData rather than decoded
// approximately; this module's own encoder only ever emits constant and
// fixed-predictor (order 0-4) subframes, chosen by smallest residual sum.
package flac

import (
	"io"

	"github.com/icza/bitio"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// SubframeType identifies how a channel's samples are coded within a
// FLAC frame.
type SubframeType int

const (
	SubframeConstant SubframeType = iota
	SubframeVerbatim
	SubframeFixed
	SubframeLPC
)

// StreamInfo mirrors FLAC's STREAMINFO metadata block.
type StreamInfo struct {
	MinBlockSize, MaxBlockSize uint16
	MinFrameSize, MaxFrameSize uint32
	SampleRate                 uint32
	Channels                   uint8
	BitsPerSample              uint8
	TotalSamples               uint64
	MD5Signature               [16]byte
}

// Decoder decodes one FLAC frame (one Packet) into PCM. It supports
// constant, verbatim, and fixed-predictor subframes with Rice-coded
// residuals; an LPC subframe returns an error rather than silently
// producing wrong audio, since this module does not implement the
// coefficient-quantisation math needed to decode it exactly.
type Decoder struct {
	info StreamInfo
}

func NewDecoder(info StreamInfo) *Decoder {
	return &Decoder{info: info}
}

func (d *Decoder) Close() error { return nil }

func (d *Decoder) Decode(p media.Packet) (media.Frame, bool, error) {
	h, err := ParseFrameHeader(p.Data, d.info)
	if err != nil {
		return media.Frame{}, false, err
	}
	if len(p.Data) < h.HeaderLen+2 {
		return media.Frame{}, false, ioutil.InvalidData("flac frame truncated after header")
	}
	body := p.Data[:len(p.Data)-2]
	wantCRC := uint16(p.Data[len(p.Data)-2])<<8 | uint16(p.Data[len(p.Data)-1])
	if got := crc16(body); got != wantCRC {
		return media.Frame{}, false, ioutil.InvalidData("flac frame CRC-16 mismatch: got %04x want %04x", got, wantCRC)
	}

	br := bitio.NewReader(newByteReader(body[h.HeaderLen:]))
	channels := h.Channels
	blockSize := h.BlockSize

	af := media.NewAudioFrame(h.SampleRate, channels, blockSize)
	for c := 0; c < channels; c++ {
		samples, err := decodeSubframe(br, blockSize, h.BitsPerSample)
		if err != nil {
			return media.Frame{}, false, err
		}
		scale := float64(int64(1) << (h.BitsPerSample - 1))
		for i, s := range samples {
			af.Samples[c][i] = float64(s) / scale
		}
	}

	return media.NewAudioFrameWrapper(p.StreamIdx, p.PTS, p.Timebase, af), true, nil
}

func decodeSubframe(br *bitio.Reader, blockSize, bitsPerSample int) ([]int32, error) {
	header, err := br.ReadByte()
	if err != nil {
		return nil, ioutil.FromIOError(err)
	}
	typeBits := (header >> 1) & 0x3f
	wastedBit := header & 0x01
	wasted := 0
	if wastedBit == 1 {
		for {
			b, err := br.ReadBool()
			if err != nil {
				return nil, ioutil.FromIOError(err)
			}
			wasted++
			if b {
				break
			}
		}
	}
	bps := bitsPerSample - wasted

	samples := make([]int32, blockSize)

	switch {
	case typeBits == 0: // constant
		v, err := readSigned(br, bps)
		if err != nil {
			return nil, err
		}
		for i := range samples {
			samples[i] = v
		}
	case typeBits == 1: // verbatim
		for i := range samples {
			v, err := readSigned(br, bps)
			if err != nil {
				return nil, err
			}
			samples[i] = v
		}
	case typeBits >= 8 && typeBits <= 12: // fixed, order = typeBits-8
		order := int(typeBits - 8)
		if err := decodeFixed(br, samples, order, bps); err != nil {
			return nil, err
		}
	default:
		return nil, ioutil.InvalidData("unsupported flac subframe type %d (LPC subframes are not decoded)", typeBits)
	}

	if wasted > 0 {
		for i := range samples {
			samples[i] <<= uint(wasted)
		}
	}
	return samples, nil
}

func decodeFixed(br *bitio.Reader, out []int32, order, bps int) error {
	n := len(out)
	if order > n {
		return ioutil.InvalidData("fixed predictor order %d exceeds block size %d", order, n)
	}
	warmup := make([]int32, order)
	for i := 0; i < order; i++ {
		v, err := readSigned(br, bps)
		if err != nil {
			return err
		}
		warmup[i] = v
	}
	residual := make([]int32, n-order)
	if err := decodeResidual(br, residual, n, order); err != nil {
		return err
	}

	copy(out, warmup)
	for i := order; i < n; i++ {
		r := residual[i-order]
		switch order {
		case 0:
			out[i] = r
		case 1:
			out[i] = r + out[i-1]
		case 2:
			out[i] = r + 2*out[i-1] - out[i-2]
		case 3:
			out[i] = r + 3*out[i-1] - 3*out[i-2] + out[i-3]
		case 4:
			out[i] = r + 4*out[i-1] - 6*out[i-2] + 4*out[i-3] - out[i-4]
		}
	}
	return nil
}

// decodeResidual reads a Rice-coded partitioned residual (method 0 with
// 4-bit parameters or method 1 with 5-bit parameters) covering
// n-predictorOrder values.
func decodeResidual(br *bitio.Reader, out []int32, blockSize, predictorOrder int) error {
	method, err := br.ReadBits(2)
	if err != nil {
		return ioutil.FromIOError(err)
	}
	paramBits := uint8(4)
	if method == 1 {
		paramBits = 5
	} else if method > 1 {
		return ioutil.InvalidData("unsupported residual coding method %d", method)
	}

	partOrderBits, err := br.ReadBits(4)
	if err != nil {
		return ioutil.FromIOError(err)
	}
	partitions := 1 << partOrderBits
	if blockSize%partitions != 0 {
		return ioutil.InvalidData("block size %d not divisible by %d partitions", blockSize, partitions)
	}
	samplesPerPartition := blockSize / partitions

	idx := 0
	for part := 0; part < partitions; part++ {
		n := samplesPerPartition
		if part == 0 {
			n -= predictorOrder
		}
		param, err := br.ReadBits(paramBits)
		if err != nil {
			return ioutil.FromIOError(err)
		}
		for i := 0; i < n; i++ {
			v, err := readRice(br, uint(param))
			if err != nil {
				return err
			}
			out[idx] = v
			idx++
		}
	}
	return nil
}

func readRice(br *bitio.Reader, k uint) (int32, error) {
	var q uint64
	for {
		b, err := br.ReadBool()
		if err != nil {
			return 0, ioutil.FromIOError(err)
		}
		if b {
			break
		}
		q++
	}
	var rem uint64
	if k > 0 {
		var err error
		rem, err = br.ReadBits(uint8(k))
		if err != nil {
			return 0, ioutil.FromIOError(err)
		}
	}
	uv := (q << k) | rem
	return zigzagDecode(uv), nil
}

func zigzagDecode(uv uint64) int32 {
	if uv&1 != 0 {
		return int32(-((uv + 1) >> 1))
	}
	return int32(uv >> 1)
}

func zigzagEncode(v int32) uint64 {
	if v >= 0 {
		return uint64(v) << 1
	}
	return (uint64(-v) << 1) - 1
}

func readSigned(br *bitio.Reader, bits int) (int32, error) {
	v, err := br.ReadBits(uint8(bits))
	if err != nil {
		return 0, ioutil.FromIOError(err)
	}
	shift := uint(64 - bits)
	return int32(int64(v<<shift) >> shift), nil
}

func writeSigned(bw *bitio.Writer, v int32, bits int) error {
	mask := uint64(1)<<uint(bits) - 1
	return bw.WriteBits(uint64(v)&mask, uint8(bits))
}

// byteReader adapts a []byte to io.Reader for bitio.
type byteReader struct {
	b   []byte
	pos int
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
