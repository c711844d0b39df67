// Package pipeline wires demuxers, codecs, transform chains, muxers,
// and encoders into end-to-end flows: Transcode streams one input file
// into one output file, Inspect reads structural metadata without
// producing output. Container and codec selection is driven entirely by
// file extension and the stream descriptions the demuxer reports.
package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/codecflux/internal/codec/adpcm"
	codecflac "github.com/linuxmatters/codecflux/internal/codec/flac"
	"github.com/linuxmatters/codecflux/internal/codec/g711"
	codecmp3 "github.com/linuxmatters/codecflux/internal/codec/mp3"
	"github.com/linuxmatters/codecflux/internal/codec/pcm"
	"github.com/linuxmatters/codecflux/internal/codec/rawvideo"
	"github.com/linuxmatters/codecflux/internal/container/avi"
	"github.com/linuxmatters/codecflux/internal/container/flac"
	"github.com/linuxmatters/codecflux/internal/container/mp3"
	"github.com/linuxmatters/codecflux/internal/container/mp4"
	"github.com/linuxmatters/codecflux/internal/container/ogg"
	"github.com/linuxmatters/codecflux/internal/container/wav"
	"github.com/linuxmatters/codecflux/internal/container/y4m"
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// Container names a supported file format family.
type Container int

const (
	ContainerWAV Container = iota
	ContainerFLAC
	ContainerMP3
	ContainerOGG
	ContainerY4M
	ContainerAVI
	ContainerMP4
)

func (c Container) String() string {
	switch c {
	case ContainerWAV:
		return "wav"
	case ContainerFLAC:
		return "flac"
	case ContainerMP3:
		return "mp3"
	case ContainerOGG:
		return "ogg"
	case ContainerY4M:
		return "y4m"
	case ContainerAVI:
		return "avi"
	case ContainerMP4:
		return "mp4"
	}
	return "unknown"
}

// DetectContainer maps a path's extension to its container family.
func DetectContainer(path string) (Container, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return ContainerWAV, nil
	case ".flac":
		return ContainerFLAC, nil
	case ".mp3":
		return ContainerMP3, nil
	case ".ogg", ".oga":
		return ContainerOGG, nil
	case ".y4m":
		return ContainerY4M, nil
	case ".avi":
		return ContainerAVI, nil
	case ".mp4", ".m4a", ".m4v":
		return ContainerMP4, nil
	}
	return 0, ioutil.InvalidData("unrecognised container extension on %q", path)
}

// fileIO adapts *os.File to the ioutil reader/writer/seeker contracts.
type fileIO struct {
	f *os.File
}

func (x fileIO) Read(p []byte) (int, error)  { return x.f.Read(p) }
func (x fileIO) Write(p []byte) (int, error) { return x.f.Write(p) }

func (x fileIO) Seek(offset int64, whence ioutil.Whence) (int64, error) {
	return ioutil.StdSeeker{Seeker: x.f}.Seek(offset, whence)
}

func openDemuxer(c Container, r ioutil.ReadSeeker) (media.Demuxer, error) {
	switch c {
	case ContainerWAV:
		return wav.NewDemuxer(r)
	case ContainerFLAC:
		return flac.NewDemuxer(r)
	case ContainerMP3:
		return mp3.NewDemuxer(r)
	case ContainerOGG:
		return ogg.NewDemuxer(r)
	case ContainerY4M:
		return y4m.NewDemuxer(r)
	case ContainerAVI:
		return avi.NewDemuxer(r)
	case ContainerMP4:
		return mp4.NewDemuxer(r)
	}
	return nil, ioutil.InvalidData("no demuxer for container %s", c)
}

// defaultOggSerial is used when writing an Ogg stream whose input was
// not itself Ogg (and so carries no serial to preserve).
const defaultOggSerial = 0x0000cf1a

func openMuxer(c Container, w ioutil.WriteSeeker, oggSerial uint32) (media.Muxer, error) {
	switch c {
	case ContainerWAV:
		return wav.NewMuxer(w), nil
	case ContainerFLAC:
		return flac.NewMuxer(w), nil
	case ContainerMP3:
		return mp3.NewMuxer(w), nil
	case ContainerOGG:
		if oggSerial == 0 {
			oggSerial = defaultOggSerial
		}
		return ogg.NewMuxer(w, oggSerial), nil
	case ContainerY4M:
		return y4m.NewMuxer(w), nil
	case ContainerAVI:
		return avi.NewMuxer(w), nil
	case ContainerMP4:
		return mp4.NewMuxer(w), nil
	}
	return nil, ioutil.InvalidData("no muxer for container %s", c)
}

// newDecoder picks the decoder matching a demuxed stream. The FLAC
// decoder needs the demuxer's parsed STREAMINFO, which is why the
// demuxer itself is in the signature.
func newDecoder(d media.Demuxer, s media.StreamInfo) (media.Decoder, error) {
	if s.Video != nil {
		switch s.Video.Codec {
		case "rawvideo":
			return rawvideo.NewDecoder(*s.Video), nil
		}
		return nil, ioutil.InvalidData("video codec %q cannot be decoded", s.Video.Codec)
	}
	if s.Audio == nil {
		return nil, ioutil.InvalidData("stream carries neither audio nor video format")
	}
	switch s.Audio.Codec {
	case "pcm":
		return pcm.NewDecoder(*s.Audio), nil
	case "adpcm_ima":
		return adpcm.NewIMADecoder(*s.Audio), nil
	case "adpcm_ms":
		return adpcm.NewMSDecoder(*s.Audio), nil
	case "g711_ulaw":
		return g711.NewDecoder(*s.Audio, g711.MuLaw), nil
	case "g711_alaw":
		return g711.NewDecoder(*s.Audio, g711.ALaw), nil
	case "flac":
		fd, ok := d.(*flac.Demuxer)
		if !ok {
			return nil, ioutil.InvalidData("flac stream outside a flac container")
		}
		return codecflac.NewDecoder(fd.StreamInfo()), nil
	case "mp3":
		return codecmp3.NewDecoder(*s.Audio), nil
	}
	return nil, ioutil.InvalidData("audio codec %q cannot be decoded", s.Audio.Codec)
}

// outputStream derives the stream description the muxer will write for
// a given post-transform frame, and the encoder that produces it. The
// input stream's description supplies header fields that survive a
// remux unchanged (Y4M interlacing/aspect/colorspace tokens).
// codecOverride only applies to WAV audio output ("pcm" or "adpcm").
func outputStream(c Container, f media.Frame, codecOverride string, in media.StreamInfo) (media.Encoder, media.StreamInfo, error) {
	if af, ok := f.Audio(); ok {
		out := media.AudioFormat{
			Codec:      "pcm",
			SampleRate: af.SampleRate,
			Channels:   af.Channels,
			BitDepth:   16,
			SampleFmt:  media.SampleS16LE,
		}
		switch c {
		case ContainerWAV:
			if codecOverride == "adpcm" {
				// Flat IMA nibble stream: no block framing, so the fmt
				// chunk's nBlockAlign collapses to a single byte.
				out.Codec = "adpcm_ima"
				out.BitDepth = 4
				out.BlockAlign = 1
				enc := adpcm.NewIMAEncoder(out)
				return enc, media.StreamInfo{Kind: media.KindAudio, Index: f.StreamIdx, Audio: &out}, nil
			}
			out.BlockAlign = 2 * af.Channels
			return pcm.NewEncoder(out), media.StreamInfo{Kind: media.KindAudio, Index: f.StreamIdx, Audio: &out}, nil
		case ContainerAVI, ContainerMP4:
			out.BlockAlign = 2 * af.Channels
			return pcm.NewEncoder(out), media.StreamInfo{Kind: media.KindAudio, Index: f.StreamIdx, Audio: &out}, nil
		case ContainerFLAC:
			out.Codec = "flac"
			info := codecflac.StreamInfo{
				MinBlockSize:  4096,
				MaxBlockSize:  4096,
				SampleRate:    uint32(af.SampleRate),
				Channels:      uint8(af.Channels),
				BitsPerSample: 16,
			}
			return codecflac.NewEncoder(info), media.StreamInfo{Kind: media.KindAudio, Index: f.StreamIdx, Audio: &out}, nil
		}
		return nil, media.StreamInfo{}, ioutil.InvalidData("container %s cannot hold encoded audio", c)
	}

	vf, ok := f.Video()
	if !ok {
		return nil, media.StreamInfo{}, ioutil.InvalidData("frame carries neither audio nor video")
	}
	switch c {
	case ContainerY4M, ContainerAVI, ContainerMP4:
		out := media.VideoFormat{
			Codec:       "rawvideo",
			Width:       vf.Width,
			Height:      vf.Height,
			FrameRate:   f.Timebase,
			PixelFormat: "yuv420p",
		}
		if in.Video != nil {
			out.Colorspace = in.Video.Colorspace
			out.Interlacing = in.Video.Interlacing
			out.AspectRatio = in.Video.AspectRatio
		}
		return rawvideo.NewEncoder(out), media.StreamInfo{Kind: media.KindVideo, Index: f.StreamIdx, Video: &out}, nil
	}
	return nil, media.StreamInfo{}, ioutil.InvalidData("container %s cannot hold video", c)
}

// passThroughOnly reports whether a stream's packets can only be copied,
// never decoded to frames (compressed payloads this module parses but
// does not synthesize).
func passThroughOnly(s media.StreamInfo) bool {
	if s.Audio != nil {
		switch s.Audio.Codec {
		case "mp3", "aac", "vorbis", "opus":
			return true
		}
		// Ogg payloads are opaque: the demuxer reports no codec name.
		if s.Audio.Codec == "" {
			return true
		}
	}
	if s.Video != nil && s.Video.Codec == "h264" {
		return true
	}
	return false
}
