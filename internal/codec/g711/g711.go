// Package g711 implements the ITU-T G.711 companded logarithmic PCM
// codecs: mu-law and A-law, both 8-bit-per-sample single-byte codes.
package g711

import (
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

const (
	ulawBias = 0x84
	ulawClip = 32635
)

func ulawEncodeSample(sample int16) byte {
	sign := byte(0x00)
	if sample < 0 {
		sign = 0x80
		sample = -sample
	}
	if int(sample) > ulawClip {
		sample = ulawClip
	}
	sample += ulawBias

	exponent := byte(7)
	for mask := int16(0x4000); (sample&mask) == 0 && exponent > 0; mask >>= 1 {
		exponent--
	}
	mantissa := byte((sample >> (exponent + 3)) & 0x0f)
	return ^(sign | (exponent << 4) | mantissa)
}

func ulawDecodeSample(b byte) int16 {
	b = ^b
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0f

	sample := int32(mantissa)<<3 + ulawBias
	sample <<= exponent
	sample -= ulawBias
	if sign != 0 {
		sample = -sample
	}
	return int16(sample)
}

const alawClip = 32635

func alawEncodeSample(sample int16) byte {
	sign := byte(0x00)
	if sample >= 0 {
		sign = 0x80
	} else {
		sample = -sample - 1
	}
	if int(sample) > alawClip {
		sample = alawClip
	}

	var exponent byte
	var mantissa byte
	if sample >= 256 {
		for v := sample >> 8; v != 0; v >>= 1 {
			exponent++
		}
		mantissa = byte((sample >> (exponent + 3)) & 0x0f)
	} else {
		mantissa = byte(sample >> 4)
	}

	alaw := sign | (exponent << 4) | mantissa
	return alaw ^ 0x55
}

func alawDecodeSample(b byte) int16 {
	b ^= 0x55
	sign := b & 0x80
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0f

	var sample int32
	if exponent == 0 {
		sample = int32(mantissa)<<4 + 8
	} else {
		sample = (int32(mantissa)<<4 + 0x108) << (exponent - 1)
	}
	if sign == 0 {
		sample = -sample
	}
	return int16(sample)
}

// Variant selects between the two companding laws.
type Variant int

const (
	MuLaw Variant = iota
	ALaw
)

type Decoder struct {
	fmt     media.AudioFormat
	variant Variant
}

func NewDecoder(fmt media.AudioFormat, variant Variant) *Decoder {
	return &Decoder{fmt: fmt, variant: variant}
}

func (d *Decoder) Close() error { return nil }

func (d *Decoder) Decode(p media.Packet) (media.Frame, bool, error) {
	channels := d.fmt.Channels
	if channels < 1 {
		channels = 1
	}
	if len(p.Data)%channels != 0 {
		return media.Frame{}, false, ioutil.InvalidData("g711 packet length %d not a multiple of channel count %d", len(p.Data), channels)
	}
	n := len(p.Data) / channels
	af := media.NewAudioFrame(d.fmt.SampleRate, channels, n)

	decode := ulawDecodeSample
	if d.variant == ALaw {
		decode = alawDecodeSample
	}

	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			af.Samples[c][i] = float64(decode(p.Data[i*channels+c])) / 32768.0
		}
	}
	return media.NewAudioFrameWrapper(p.StreamIdx, p.PTS, p.Timebase, af), true, nil
}

type Encoder struct {
	fmt     media.AudioFormat
	variant Variant
}

func NewEncoder(fmt media.AudioFormat, variant Variant) *Encoder {
	return &Encoder{fmt: fmt, variant: variant}
}

func (e *Encoder) Close() error { return nil }
func (e *Encoder) Flush() (media.Packet, bool, error) {
	return media.Packet{}, false, nil
}

func (e *Encoder) Encode(f media.Frame) (media.Packet, bool, error) {
	af, ok := f.Audio()
	if !ok {
		return media.Packet{}, false, ioutil.InvalidData("g711 encoder received a non-audio frame")
	}
	n := af.NumSamples()
	out := make([]byte, n*af.Channels)

	encode := ulawEncodeSample
	if e.variant == ALaw {
		encode = alawEncodeSample
	}

	for i := 0; i < n; i++ {
		for c := 0; c < af.Channels; c++ {
			sample := clampS16(af.Samples[c][i] * 32768)
			out[i*af.Channels+c] = encode(int16(sample))
		}
	}
	return media.Packet{
		Kind:      media.KindAudio,
		StreamIdx: f.StreamIdx,
		PTS:       f.PTS,
		Duration:  int64(n),
		Timebase:  f.Timebase,
		KeyFrame:  true,
		Data:      out,
	}, true, nil
}

func clampS16(v float64) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int32(v)
}
