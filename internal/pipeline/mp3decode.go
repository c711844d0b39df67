package pipeline

import (
	"io"
	"os"

	gomp3 "github.com/hajimehoshi/go-mp3"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
	"github.com/linuxmatters/codecflux/internal/transform"
)

// mp3ChunkFrames is how many stereo sample frames each decoded
// AudioFrame carries (16 KiB of go-mp3's 16-bit stereo output).
const mp3ChunkFrames = 4096

// transcodeMP3 handles MP3 input bound for any non-MP3 container. The
// frame-level mp3 codec in this module stops at header/side-info
// parsing, so full PCM synthesis is delegated to go-mp3 over the whole
// file, the chunk-reading pattern the decoder's API is built for.
// go-mp3 always emits interleaved 16-bit stereo.
func transcodeMP3(inPath, outPath string, outC Container, opts Options) (*Result, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return nil, ioutil.FromIOError(err)
	}
	defer in.Close()

	dec, err := gomp3.NewDecoder(in)
	if err != nil {
		return nil, ioutil.InvalidData("mp3 decode: %v", err)
	}

	sampleRate := dec.SampleRate()
	const channels = 2
	params := transform.StreamParams{SampleRate: sampleRate, Channels: channels}
	chain, err := transform.ParseChain(opts.Transforms, params)
	if err != nil {
		return nil, err
	}

	out, err := os.Create(outPath)
	if err != nil {
		return nil, ioutil.FromIOError(err)
	}
	defer out.Close()

	mux, err := openMuxer(outC, fileIO{out}, 0)
	if err != nil {
		return nil, err
	}

	inInfo := media.StreamInfo{Kind: media.KindAudio, Audio: &media.AudioFormat{
		Codec: "mp3", SampleRate: sampleRate, Channels: channels, SampleFmt: media.SampleS16LE,
	}}
	timebase := media.Timebase{Num: 1, Den: int64(sampleRate)}

	r := &Result{Input: ContainerMP3, Output: outC}
	var enc media.Encoder
	var pts int64
	buf := make([]byte, mp3ChunkFrames*channels*2)

	for {
		n, err := io.ReadFull(dec, buf)
		if n == 0 {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, ioutil.FromIOError(err)
		}
		r.PacketsRead++
		r.BytesRead += int64(n)

		nSamples := n / (channels * 2)
		af := media.NewAudioFrame(sampleRate, channels, nSamples)
		for i := 0; i < nSamples; i++ {
			for c := 0; c < channels; c++ {
				v := int16(buf[i*4+c*2]) | int16(buf[i*4+c*2+1])<<8
				af.Samples[c][i] = float64(v) / 32768.0
			}
		}

		frame := media.NewAudioFrameWrapper(0, pts, timebase, af)
		pts += int64(nSamples)

		frame, err2 := chain.Process(frame)
		if err2 != nil {
			return nil, err2
		}
		r.FramesProcessed++

		if enc == nil {
			var info media.StreamInfo
			enc, info, err2 = outputStream(outC, frame, opts.Codec, inInfo)
			if err2 != nil {
				return nil, err2
			}
			if err2 := mux.WriteHeader([]media.StreamInfo{info}); err2 != nil {
				return nil, err2
			}
		}
		p, ok, err2 := enc.Encode(frame)
		if err2 != nil {
			return nil, err2
		}
		if ok {
			p.StreamIdx = 0
			if err2 := mux.WritePacket(p); err2 != nil {
				return nil, err2
			}
			r.PacketsWritten++
			r.BytesWritten += int64(len(p.Data))
		}
		reportProgress(opts, r)

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
	}
	if enc == nil {
		return nil, ioutil.InvalidData("mp3 input produced no samples")
	}
	for {
		p, ok, err := enc.Flush()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		p.StreamIdx = 0
		if err := mux.WritePacket(p); err != nil {
			return nil, err
		}
		r.PacketsWritten++
		r.BytesWritten += int64(len(p.Data))
	}
	if err := mux.Close(); err != nil {
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, ioutil.FromIOError(err)
	}
	return r, nil
}
