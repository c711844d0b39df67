package adpcm

import (
	"encoding/binary"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

var msAdaptionTable = []int32{230, 230, 230, 230, 307, 409, 512, 614, 768, 614, 512, 409, 307, 230, 230, 230}

// msCoeffPair holds a predictor-coefficient pair. These seven pairs are
// the fixed table the format defines; block headers index into it with
// a predictor byte clamped to 6.
type msCoeffPair struct{ c1, c2 int32 }

var msDefaultCoeffs = []msCoeffPair{
	{256, 0}, {512, -256}, {0, 0}, {192, 64}, {240, 0}, {460, -208}, {392, -232},
}

type msChannelState struct {
	delta            int32
	sample1, sample2 int32
	coeff1, coeff2   int32
}

func (s *msChannelState) decodeNibble(nibble byte) int16 {
	signed := int32(nibble)
	if signed >= 8 {
		signed -= 16
	}

	predictor := (s.sample1*s.coeff1 + s.sample2*s.coeff2) >> 8
	predictor += signed * s.delta
	if predictor > 32767 {
		predictor = 32767
	} else if predictor < -32768 {
		predictor = -32768
	}

	s.delta = (msAdaptionTable[nibble] * s.delta) >> 8
	if s.delta < 16 {
		s.delta = 16
	}

	s.sample2 = s.sample1
	s.sample1 = predictor
	return int16(predictor)
}

func (s *msChannelState) encodeNibble(sample int16) byte {
	predictor := (s.sample1*s.coeff1 + s.sample2*s.coeff2) >> 8
	errDelta := int32(sample) - predictor

	nibble := int32(0)
	if s.delta != 0 {
		nibble = errDelta / s.delta
	}
	if nibble > 7 {
		nibble = 7
	} else if nibble < -8 {
		nibble = -8
	}

	predictor += nibble * s.delta
	if predictor > 32767 {
		predictor = 32767
	} else if predictor < -32768 {
		predictor = -32768
	}

	out := byte(nibble & 0x0f)
	s.delta = (msAdaptionTable[out] * s.delta) >> 8
	if s.delta < 16 {
		s.delta = 16
	}

	s.sample2 = s.sample1
	s.sample1 = predictor
	return out
}

// MSDecoder decodes Microsoft ADPCM blocks.
type MSDecoder struct {
	fmt media.AudioFormat
}

func NewMSDecoder(fmt media.AudioFormat) *MSDecoder {
	return &MSDecoder{fmt: fmt}
}

func (d *MSDecoder) Close() error { return nil }

// msBlockHeaderSize is the fixed per-channel header: predictor index (1),
// delta (2), sample1 (2), sample2 (2).
const msBlockHeaderSize = 7

func (d *MSDecoder) Decode(p media.Packet) (media.Frame, bool, error) {
	channels := d.fmt.Channels
	if channels < 1 {
		channels = 1
	}
	block := p.Data
	headerLen := msBlockHeaderSize * channels
	if len(block) < headerLen {
		return media.Frame{}, false, ioutil.InvalidData("ms adpcm block shorter than header (%d bytes)", len(block))
	}

	states := make([]msChannelState, channels)
	off := 0
	for c := 0; c < channels; c++ {
		coeffIdx := int(block[off])
		if coeffIdx > 6 {
			coeffIdx = 6
		}
		pair := msDefaultCoeffs[coeffIdx]
		delta := int32(int16(binary.LittleEndian.Uint16(block[off+1 : off+3])))
		if delta < 16 {
			delta = 16
		}
		sample1 := int16(binary.LittleEndian.Uint16(block[off+3 : off+5]))
		sample2 := int16(binary.LittleEndian.Uint16(block[off+5 : off+7]))
		states[c] = msChannelState{
			delta:   delta,
			sample1: int32(sample1),
			sample2: int32(sample2),
			coeff1:  pair.c1,
			coeff2:  pair.c2,
		}
		off += msBlockHeaderSize
	}

	out := make([][]int16, channels)
	for c := 0; c < channels; c++ {
		// Output order for MS ADPCM is sample2 then sample1 (oldest first).
		out[c] = append(out[c], int16(states[c].sample2), int16(states[c].sample1))
	}

	data := block[off:]
	nibbleIdx := 0
	for _, b := range data {
		for _, nibble := range [2]byte{b >> 4, b & 0x0f} {
			c := nibbleIdx % channels
			out[c] = append(out[c], states[c].decodeNibble(nibble))
			nibbleIdx++
		}
	}

	n := len(out[0])
	af := media.NewAudioFrame(d.fmt.SampleRate, channels, n)
	for c := 0; c < channels; c++ {
		for i, s := range out[c] {
			af.Samples[c][i] = float64(s) / 32768.0
		}
	}

	return media.NewAudioFrameWrapper(p.StreamIdx, p.PTS, p.Timebase, af), true, nil
}

// MSEncoder encodes PCM into fixed-size Microsoft ADPCM blocks,
// buffering samples across frames so every block except a final partial
// one carries exactly samplesPerBlk samples per channel. Per block and
// channel, the predictor is the coefficient pair with the smallest
// squared prediction error over the first ten samples; the initial
// delta seed uses the absolute difference between the first two
// samples, floored to the format's minimum step of 16.
type MSEncoder struct {
	fmt           media.AudioFormat
	samplesPerBlk int
	pending       [][]float64
	pendingPTS    int64
	timebase      media.Timebase
	streamIdx     int
}

func NewMSEncoder(fmt media.AudioFormat, samplesPerBlock int) *MSEncoder {
	if samplesPerBlock < 4 {
		samplesPerBlock = 4
	}
	return &MSEncoder{fmt: fmt, samplesPerBlk: samplesPerBlock}
}

func (e *MSEncoder) Close() error { return nil }

func (e *MSEncoder) Encode(f media.Frame) (media.Packet, bool, error) {
	af, ok := f.Audio()
	if !ok {
		return media.Packet{}, false, ioutil.InvalidData("ms adpcm encoder received a non-audio frame")
	}
	e.buffer(f, af)

	n := len(e.pending[0])
	blocks := n / e.samplesPerBlk
	if blocks == 0 {
		return media.Packet{}, false, nil
	}
	return e.emit(blocks * e.samplesPerBlk), true, nil
}

func (e *MSEncoder) Flush() (media.Packet, bool, error) {
	if len(e.pending) == 0 || len(e.pending[0]) < 2 {
		return media.Packet{}, false, nil
	}
	return e.emit(len(e.pending[0])), true, nil
}

func (e *MSEncoder) buffer(f media.Frame, af *media.AudioFrame) {
	if e.pending == nil {
		e.pending = make([][]float64, af.Channels)
		e.timebase = f.Timebase
		e.streamIdx = f.StreamIdx
		e.pendingPTS = f.PTS
	}
	for c := range e.pending {
		if c < len(af.Samples) {
			e.pending[c] = append(e.pending[c], af.Samples[c]...)
		}
	}
}

// emit encodes the first count buffered samples as consecutive blocks
// and advances the pending window past them.
func (e *MSEncoder) emit(count int) media.Packet {
	var out []byte
	for start := 0; start < count; start += e.samplesPerBlk {
		blockLen := e.samplesPerBlk
		if start+blockLen > count {
			blockLen = count - start
		}
		if blockLen < 2 {
			break
		}
		out = append(out, e.encodeBlock(start, blockLen)...)
	}

	p := media.Packet{
		Kind:      media.KindAudio,
		StreamIdx: e.streamIdx,
		PTS:       e.pendingPTS,
		Duration:  int64(count),
		Timebase:  e.timebase,
		KeyFrame:  true,
		Data:      out,
	}
	for c := range e.pending {
		e.pending[c] = e.pending[c][count:]
	}
	e.pendingPTS += int64(count)
	return p
}

func (e *MSEncoder) encodeBlock(start, count int) []byte {
	channels := len(e.pending)
	toS16 := func(c, i int) int16 {
		return int16(clampS16(e.pending[c][start+i] * 32768))
	}

	states := make([]msChannelState, channels)
	var out []byte
	for c := 0; c < channels; c++ {
		s1, s2 := toS16(c, 1), toS16(c, 0)
		delta := int32(s1) - int32(s2)
		if delta < 0 {
			delta = -delta
		}
		if delta < 16 {
			delta = 16
		}
		predictor := bestPredictor(e.pending[c][start:start+count], delta)
		pair := msDefaultCoeffs[predictor]
		states[c] = msChannelState{delta: delta, sample1: int32(s1), sample2: int32(s2), coeff1: pair.c1, coeff2: pair.c2}

		var hdr [msBlockHeaderSize]byte
		hdr[0] = byte(predictor)
		binary.LittleEndian.PutUint16(hdr[1:3], uint16(delta))
		binary.LittleEndian.PutUint16(hdr[3:5], uint16(s1))
		binary.LittleEndian.PutUint16(hdr[5:7], uint16(s2))
		out = append(out, hdr[:]...)
	}

	var pendingNibble byte
	haveNibble := false
	for i := 2; i < count; i++ {
		for c := 0; c < channels; c++ {
			nibble := states[c].encodeNibble(toS16(c, i))
			if !haveNibble {
				pendingNibble = nibble << 4
				haveNibble = true
			} else {
				out = append(out, pendingNibble|nibble)
				haveNibble = false
			}
		}
	}
	if haveNibble {
		out = append(out, pendingNibble)
	}
	return out
}

// bestPredictor runs each coefficient pair over the first ten samples
// of the block and returns the index with the smallest squared
// prediction error.
func bestPredictor(samples []float64, delta int32) int {
	probe := len(samples)
	if probe > 10 {
		probe = 10
	}
	toS16 := func(i int) int16 {
		return int16(clampS16(samples[i] * 32768))
	}

	best, bestErr := 0, int64(1)<<62
	for idx, pair := range msDefaultCoeffs {
		st := msChannelState{
			delta: delta, sample1: int32(toS16(1)), sample2: int32(toS16(0)),
			coeff1: pair.c1, coeff2: pair.c2,
		}
		var errSum int64
		for i := 2; i < probe; i++ {
			predicted := (st.sample1*st.coeff1 + st.sample2*st.coeff2) >> 8
			diff := int64(toS16(i)) - int64(predicted)
			errSum += diff * diff
			st.encodeNibble(toS16(i))
		}
		if errSum < bestErr {
			bestErr = errSum
			best = idx
		}
	}
	return best
}
