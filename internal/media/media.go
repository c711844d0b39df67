// Package media defines the packet/frame data model and the
// demuxer/decoder/encoder/muxer/transform interfaces that every
// container and codec package in codecflux implements against.
package media

import "fmt"

// Timebase expresses timestamps as a rational multiple of seconds:
// a PTS of n ticks represents n*Num/Den seconds. Containers and codecs
// each carry their own natural timebase (1/sampleRate for PCM audio,
// 1/frameRate for raw video) and rescale when packets cross a boundary.
type Timebase struct {
	Num int64
	Den int64
}

// Seconds converts a tick count expressed in this timebase to seconds.
func (t Timebase) Seconds(ticks int64) float64 {
	if t.Den == 0 {
		return 0
	}
	return float64(ticks) * float64(t.Num) / float64(t.Den)
}

// Rescale converts a tick count from this timebase into another.
func (t Timebase) Rescale(ticks int64, to Timebase) int64 {
	if t == to || t.Den == 0 || to.Num == 0 {
		return ticks
	}
	// ticks * t.Num/t.Den * to.Den/to.Num, kept in int64 with a
	// float64 intermediate since exact rational rescaling isn't worth
	// the complexity for the sample rates this module deals with.
	seconds := t.Seconds(ticks)
	return int64(seconds * float64(to.Den) / float64(to.Num))
}

func (t Timebase) String() string {
	return fmt.Sprintf("%d/%d", t.Num, t.Den)
}

// StreamKind distinguishes the two media kinds the pipeline moves.
type StreamKind int

const (
	KindAudio StreamKind = iota
	KindVideo
)

func (k StreamKind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "audio"
}

// Packet is an opaque, still-encoded chunk of media as produced by a
// Demuxer and consumed by a Decoder. Ownership is linear: once handed to
// a Decoder the Demuxer must not reuse the backing slice.
type Packet struct {
	Kind      StreamKind
	StreamIdx int
	PTS       int64
	DTS       int64
	Duration  int64
	Timebase  Timebase
	KeyFrame  bool
	Data      []byte
}

// AudioFrame is decoded PCM held as planar float64, one slice per channel,
// so that downstream transforms can operate on a single channel without
// de-interleaving first. Decoders that natively interleave (PCM, ADPCM)
// de-interleave once at decode time.
type AudioFrame struct {
	SampleRate int
	Channels   int
	Samples    [][]float64 // Samples[ch][n], all channels equal length
}

func NewAudioFrame(sampleRate, channels, numSamples int) *AudioFrame {
	samples := make([][]float64, channels)
	for c := range samples {
		samples[c] = make([]float64, numSamples)
	}
	return &AudioFrame{SampleRate: sampleRate, Channels: channels, Samples: samples}
}

func (f *AudioFrame) NumSamples() int {
	if len(f.Samples) == 0 {
		return 0
	}
	return len(f.Samples[0])
}

// Clone deep-copies the sample data so a transform can mutate its output
// without aliasing the input frame.
func (f *AudioFrame) Clone() *AudioFrame {
	out := &AudioFrame{SampleRate: f.SampleRate, Channels: f.Channels}
	out.Samples = make([][]float64, len(f.Samples))
	for i, ch := range f.Samples {
		out.Samples[i] = append([]float64(nil), ch...)
	}
	return out
}

// VideoFrame holds a planar YUV 4:2:0 image: Y at full resolution, U and V
// each at half width and half height, matching the layout Y4M and most
// raw/AVI video payloads use.
type VideoFrame struct {
	Width, Height int
	Y, U, V       []byte
	YStride       int
	CStride       int // stride of U and V planes
}

// NewVideoFrame allocates a frame with tightly packed strides equal to
// the plane width (YStride=Width, CStride=(Width+1)/2).
func NewVideoFrame(width, height int) *VideoFrame {
	cw, ch := (width+1)/2, (height+1)/2
	return &VideoFrame{
		Width: width, Height: height,
		Y:       make([]byte, width*height),
		U:       make([]byte, cw*ch),
		V:       make([]byte, cw*ch),
		YStride: width,
		CStride: cw,
	}
}

// ChromaSize returns the dimensions of the U and V planes.
func (f *VideoFrame) ChromaSize() (w, h int) {
	return (f.Width + 1) / 2, (f.Height + 1) / 2
}

func (f *VideoFrame) Clone() *VideoFrame {
	out := &VideoFrame{Width: f.Width, Height: f.Height, YStride: f.YStride, CStride: f.CStride}
	out.Y = append([]byte(nil), f.Y...)
	out.U = append([]byte(nil), f.U...)
	out.V = append([]byte(nil), f.V...)
	return out
}

// Frame is the decoded-media analogue of Packet: a tagged union over the
// two concrete frame kinds, carrying the same PTS/Timebase metadata.
type Frame struct {
	Kind      StreamKind
	StreamIdx int
	PTS       int64
	Timebase  Timebase
	audio     *AudioFrame
	video     *VideoFrame
}

func NewAudioFrameWrapper(streamIdx int, pts int64, tb Timebase, audio *AudioFrame) Frame {
	return Frame{Kind: KindAudio, StreamIdx: streamIdx, PTS: pts, Timebase: tb, audio: audio}
}

func NewVideoFrameWrapper(streamIdx int, pts int64, tb Timebase, video *VideoFrame) Frame {
	return Frame{Kind: KindVideo, StreamIdx: streamIdx, PTS: pts, Timebase: tb, video: video}
}

// Audio returns the audio payload and whether this frame actually carries
// one (false for a video frame).
func (f Frame) Audio() (*AudioFrame, bool) {
	return f.audio, f.Kind == KindAudio && f.audio != nil
}

// Video returns the video payload and whether this frame actually carries
// one (false for an audio frame).
func (f Frame) Video() (*VideoFrame, bool) {
	return f.video, f.Kind == KindVideo && f.video != nil
}
