package flac

import (
	"bytes"

	"github.com/icza/bitio"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// Encoder produces one FLAC frame per input AudioFrame, choosing for
// each channel whichever of {constant, fixed order 0-4} predictor
// yields the smallest residual sum, then Rice-coding that residual with
// a single partition (order 0) whose parameter is the smallest k with
// 2^k >= mean zigzag-coded residual + 1, capped at 14 so it fits the
// 4-bit field below the escape code. This never reaches for LPC, trading a little
// compression ratio for an encoder whose coefficients don't need a
// windowed-autocorrelation solver.
type Encoder struct {
	info     StreamInfo
	frameNum uint64
}

func NewEncoder(info StreamInfo) *Encoder {
	return &Encoder{info: info}
}

func (e *Encoder) Close() error { return nil }
func (e *Encoder) Flush() (media.Packet, bool, error) {
	return media.Packet{}, false, nil
}

func (e *Encoder) Encode(f media.Frame) (media.Packet, bool, error) {
	af, ok := f.Audio()
	if !ok {
		return media.Packet{}, false, ioutil.InvalidData("flac encoder received a non-audio frame")
	}
	n := af.NumSamples()
	bps := int(e.info.BitsPerSample)
	scale := float64(int64(1) << (bps - 1))

	var buf bytes.Buffer
	buf.Write(writeFrameHeader(FrameHeader{
		BlockSize:     n,
		SampleRate:    int(e.info.SampleRate),
		Channels:      af.Channels,
		BitsPerSample: bps,
		FrameNumber:   e.frameNum,
	}))
	e.frameNum++

	bw := bitio.NewWriter(&buf)
	for c := 0; c < af.Channels; c++ {
		samples := make([]int32, n)
		for i, v := range af.Samples[c] {
			samples[i] = int32(v * scale)
		}
		if err := encodeSubframe(bw, samples, bps); err != nil {
			return media.Packet{}, false, err
		}
	}
	// Close pads the last partial byte with zeros, aligning the frame
	// for its trailing CRC-16.
	if err := bw.Close(); err != nil {
		return media.Packet{}, false, ioutil.FromIOError(err)
	}
	frameCRC := crc16(buf.Bytes())
	buf.WriteByte(byte(frameCRC >> 8))
	buf.WriteByte(byte(frameCRC))

	return media.Packet{
		Kind:      media.KindAudio,
		StreamIdx: f.StreamIdx,
		PTS:       f.PTS,
		Duration:  int64(n),
		Timebase:  f.Timebase,
		KeyFrame:  true,
		Data:      buf.Bytes(),
	}, true, nil
}

func encodeSubframe(bw *bitio.Writer, samples []int32, bps int) error {
	if isConstant(samples) {
		if err := bw.WriteByte(0x00); err != nil { // type=constant(0), wasted=0
			return ioutil.FromIOError(err)
		}
		return writeSigned(bw, samples[0], bps)
	}

	order, residuals := bestFixedPredictor(samples)
	header := byte(0x08|order) << 1
	if err := bw.WriteByte(header); err != nil {
		return ioutil.FromIOError(err)
	}
	for i := 0; i < order; i++ {
		if err := writeSigned(bw, samples[i], bps); err != nil {
			return err
		}
	}
	return writeResidual(bw, residuals)
}

func isConstant(samples []int32) bool {
	for _, s := range samples {
		if s != samples[0] {
			return false
		}
	}
	return true
}

// bestFixedPredictor tries fixed predictor orders 0-4 and returns the one
// whose residual has the smallest sum of absolute values, the standard
// cheap proxy for Rice-coded size.
func bestFixedPredictor(samples []int32) (int, []int32) {
	n := len(samples)
	bestOrder := 0
	var bestResidual []int32
	bestSum := int64(1) << 62

	for order := 0; order <= 4 && order < n; order++ {
		residual := make([]int32, n-order)
		for i := order; i < n; i++ {
			var pred int32
			switch order {
			case 0:
				pred = 0
			case 1:
				pred = samples[i-1]
			case 2:
				pred = 2*samples[i-1] - samples[i-2]
			case 3:
				pred = 3*samples[i-1] - 3*samples[i-2] + samples[i-3]
			case 4:
				pred = 4*samples[i-1] - 6*samples[i-2] + 4*samples[i-3] - samples[i-4]
			}
			residual[i-order] = samples[i] - pred
		}
		var sum int64
		for _, r := range residual {
			if r < 0 {
				sum += int64(-r)
			} else {
				sum += int64(r)
			}
		}
		if sum < bestSum {
			bestSum = sum
			bestOrder = order
			bestResidual = residual
		}
	}
	return bestOrder, bestResidual
}

// writeResidual emits method 0 (4-bit Rice parameters), partition order
// 0 (a single partition covering the whole residual).
func writeResidual(bw *bitio.Writer, residual []int32) error {
	if err := bw.WriteBits(0, 2); err != nil { // method
		return ioutil.FromIOError(err)
	}
	if err := bw.WriteBits(0, 4); err != nil { // partition order 0
		return ioutil.FromIOError(err)
	}
	k := bestRiceParam(residual)
	if err := bw.WriteBits(uint64(k), 4); err != nil {
		return ioutil.FromIOError(err)
	}
	for _, r := range residual {
		if err := writeRice(bw, r, uint(k)); err != nil {
			return err
		}
	}
	return nil
}

func bestRiceParam(residual []int32) int {
	var mean float64
	for _, r := range residual {
		mean += float64(zigzagEncode(r))
	}
	if len(residual) > 0 {
		mean /= float64(len(residual))
	}
	k := 0
	for float64(int64(1)<<uint(k)) < mean+1 && k < 14 {
		k++
	}
	return k
}

func writeRice(bw *bitio.Writer, v int32, k uint) error {
	uv := zigzagEncode(v)
	q := uv >> k
	for i := uint64(0); i < q; i++ {
		if err := bw.WriteBool(false); err != nil {
			return ioutil.FromIOError(err)
		}
	}
	if err := bw.WriteBool(true); err != nil {
		return ioutil.FromIOError(err)
	}
	if k > 0 {
		if err := bw.WriteBits(uv&((1<<k)-1), uint8(k)); err != nil {
			return ioutil.FromIOError(err)
		}
	}
	return nil
}
