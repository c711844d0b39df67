package media

// SampleFormat names the PCM sample layout a codec expects/produces
// before it is normalised into AudioFrame's planar float64.
type SampleFormat int

const (
	SampleU8 SampleFormat = iota
	SampleS16LE
	SampleS24LE
	SampleS32LE
	SampleF32LE
)

// AudioFormat is the demuxer-independent description of an audio stream's
// static parameters, populated from whichever container header carries
// them (WAV fmt chunk, FLAC STREAMINFO, Xiph comment header, ...).
type AudioFormat struct {
	Codec      string // "pcm", "adpcm_ima", "adpcm_ms", "g711_ulaw", "g711_alaw", "flac", "mp3"
	SampleRate int
	Channels   int
	BitDepth   int
	SampleFmt  SampleFormat
	BlockAlign int // ADPCM/compressed block size in bytes, 0 for PCM
}

// VideoFormat is the demuxer-independent description of a video stream.
// Colorspace, Interlacing, and AspectRatio hold Y4M's raw header tokens
// when the source container carries them, so a remux can mirror the
// header it read.
type VideoFormat struct {
	Codec       string // "rawvideo", "h264" (header-only, never decoded)
	Width       int
	Height      int
	FrameRate   Timebase // seconds per frame as Num/Den, e.g. 1001/30000 for 29.97 fps
	PixelFormat string   // "yuv420p" for everything this module decodes
	Colorspace  string
	Interlacing string
	AspectRatio string
}

// StreamInfo pairs a StreamKind with whichever concrete format applies,
// used by container readers to report what they found without forcing
// callers to type-switch on a Demuxer implementation.
type StreamInfo struct {
	Kind  StreamKind
	Index int
	Audio *AudioFormat
	Video *VideoFormat
}

// Demuxer reads packets of still-encoded data out of a container.
// ReadPacket returns io.EOF (via the ioutil error taxonomy) once the
// stream is exhausted. Implementations are single-producer: the returned
// Packet.Data must not be reused by the Demuxer after it's returned.
type Demuxer interface {
	Streams() []StreamInfo
	ReadPacket() (Packet, error)
	Close() error
}

// Decoder turns Packets from one stream into Frames. A Decoder that
// cannot produce samples for a given packet (MP3 in this module) returns
// a zero Frame and ok=false rather than an error.
type Decoder interface {
	Decode(p Packet) (frame Frame, ok bool, err error)
	Close() error
}

// Encoder is the inverse of Decoder: turns Frames into Packets ready for
// a Muxer. Some encoders buffer internally (block-based ADPCM, FLAC) and
// may return ok=false while accumulating a partial block.
type Encoder interface {
	Encode(f Frame) (p Packet, ok bool, err error)
	Flush() (p Packet, ok bool, err error)
	Close() error
}

// Muxer writes encoded Packets to a container, patching any header
// fields that depend on the final size/duration in Close.
type Muxer interface {
	WriteHeader(streams []StreamInfo) error
	WritePacket(p Packet) error
	Close() error
}

// Transform mutates decoded Frames in place in a single-threaded,
// sequential chain: one Frame in, one Frame out, no internal buffering
// across calls except where the transform is explicitly block-based
// (crossfade) and documents it.
type Transform interface {
	Process(f Frame) (Frame, error)
	Name() string
}
