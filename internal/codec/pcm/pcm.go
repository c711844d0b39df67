// Package pcm implements the identity codec: linear PCM in U8/S16LE/
// S24LE/S32LE/F32LE, de-interleaved into media.AudioFrame's planar
// float64 layout and back.
package pcm

import (
	"encoding/binary"
	"math"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

const (
	maxS16 = 1 << 15
	maxS24 = 1 << 23
	maxS32 = 1 << 31
)

// Decoder converts raw interleaved PCM packets into planar AudioFrames.
type Decoder struct {
	fmt media.AudioFormat
}

func NewDecoder(fmt media.AudioFormat) *Decoder {
	return &Decoder{fmt: fmt}
}

func (d *Decoder) Close() error { return nil }

func (d *Decoder) Decode(p media.Packet) (media.Frame, bool, error) {
	bytesPerSample := bytesPerSample(d.fmt.SampleFmt)
	channels := d.fmt.Channels
	if channels == 0 {
		channels = 1
	}
	frameSize := bytesPerSample * channels
	if frameSize == 0 || len(p.Data)%frameSize != 0 {
		return media.Frame{}, false, ioutil.InvalidData("pcm packet length %d not a multiple of frame size %d", len(p.Data), frameSize)
	}
	n := len(p.Data) / frameSize
	af := media.NewAudioFrame(d.fmt.SampleRate, channels, n)

	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			off := i*frameSize + c*bytesPerSample
			af.Samples[c][i] = decodeSample(d.fmt.SampleFmt, p.Data[off:off+bytesPerSample])
		}
	}

	frame := media.NewAudioFrameWrapper(p.StreamIdx, p.PTS, p.Timebase, af)
	return frame, true, nil
}

func decodeSample(sf media.SampleFormat, b []byte) float64 {
	switch sf {
	case media.SampleU8:
		return (float64(b[0]) - 128) / 128
	case media.SampleS16LE:
		v := int16(binary.LittleEndian.Uint16(b))
		return float64(v) / maxS16
	case media.SampleS24LE:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^0xFFFFFF
		}
		return float64(v) / maxS24
	case media.SampleS32LE:
		v := int32(binary.LittleEndian.Uint32(b))
		return float64(v) / maxS32
	case media.SampleF32LE:
		bits := binary.LittleEndian.Uint32(b)
		return float64(math.Float32frombits(bits))
	default:
		return 0
	}
}

func bytesPerSample(sf media.SampleFormat) int {
	switch sf {
	case media.SampleU8:
		return 1
	case media.SampleS16LE:
		return 2
	case media.SampleS24LE:
		return 3
	case media.SampleS32LE, media.SampleF32LE:
		return 4
	default:
		return 2
	}
}

// Encoder converts planar AudioFrames back into interleaved PCM packets.
type Encoder struct {
	fmt media.AudioFormat
}

func NewEncoder(fmt media.AudioFormat) *Encoder {
	return &Encoder{fmt: fmt}
}

func (e *Encoder) Close() error { return nil }

func (e *Encoder) Flush() (media.Packet, bool, error) {
	return media.Packet{}, false, nil
}

func (e *Encoder) Encode(f media.Frame) (media.Packet, bool, error) {
	af, ok := f.Audio()
	if !ok {
		return media.Packet{}, false, ioutil.InvalidData("pcm encoder received a non-audio frame")
	}
	bytesPerSample := bytesPerSample(e.fmt.SampleFmt)
	n := af.NumSamples()
	out := make([]byte, n*af.Channels*bytesPerSample)

	for i := 0; i < n; i++ {
		for c := 0; c < af.Channels; c++ {
			off := i*af.Channels*bytesPerSample + c*bytesPerSample
			encodeSample(e.fmt.SampleFmt, out[off:off+bytesPerSample], af.Samples[c][i])
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

func encodeSample(sf media.SampleFormat, b []byte, v float64) {
	switch sf {
	case media.SampleU8:
		b[0] = byte(clamp(v*128+128, 0, 255))
	case media.SampleS16LE:
		binary.LittleEndian.PutUint16(b, uint16(int16(clamp(v*maxS16, -maxS16, maxS16-1))))
	case media.SampleS24LE:
		iv := int32(clamp(v*maxS24, -maxS24, maxS24-1))
		b[0] = byte(iv)
		b[1] = byte(iv >> 8)
		b[2] = byte(iv >> 16)
	case media.SampleS32LE:
		binary.LittleEndian.PutUint32(b, uint32(int32(clamp(v*maxS32, -maxS32, maxS32-1))))
	case media.SampleF32LE:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
