package pipeline

import (
	"errors"
	"io"
	"os"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
	"github.com/linuxmatters/codecflux/internal/transform"
)

// Options configures one Transcode run.
type Options struct {
	// Transforms are "name=args" specifications applied to every
	// decoded frame, in order.
	Transforms []string
	// Codec overrides the output audio codec for WAV output: "pcm"
	// (default) or "adpcm".
	Codec string
	// OnProgress, when set, is called after every demuxed packet.
	OnProgress func(Progress)
}

// Progress is a running count of pipeline work, fed to Options.OnProgress.
type Progress struct {
	PacketsRead     int
	FramesProcessed int
	PacketsWritten  int
	BytesRead       int64
	BytesWritten    int64
}

// Result summarises a completed Transcode.
type Result struct {
	Input, Output   Container
	PacketsRead     int
	FramesProcessed int
	PacketsWritten  int
	BytesRead       int64
	BytesWritten    int64
	PassThrough     bool
}

// Transcode streams inPath into outPath: demux, decode, transform,
// encode, mux, then finalize the output container. Inputs whose payload
// this module parses but cannot decode to frames (MP3 frames, opaque
// Ogg packets) are remuxed packet-by-packet instead, which requires the
// output container to match and no transforms.
func Transcode(inPath, outPath string, opts Options) (*Result, error) {
	inC, err := DetectContainer(inPath)
	if err != nil {
		return nil, err
	}
	outC, err := DetectContainer(outPath)
	if err != nil {
		return nil, err
	}

	// MP3 bound for another container takes the whole-file decode path;
	// the packet-level mp3 codec never synthesizes PCM.
	if inC == ContainerMP3 && outC != ContainerMP3 {
		return transcodeMP3(inPath, outPath, outC, opts)
	}

	in, err := os.Open(inPath)
	if err != nil {
		return nil, ioutil.FromIOError(err)
	}
	defer in.Close()

	demux, err := openDemuxer(inC, fileIO{in})
	if err != nil {
		return nil, err
	}
	defer demux.Close()

	streams := demux.Streams()
	if len(streams) == 0 {
		return nil, ioutil.InvalidData("input has no streams")
	}

	chain, err := transform.ParseChain(opts.Transforms, paramsFrom(streams))
	if err != nil {
		return nil, err
	}

	passThrough := true
	for _, s := range streams {
		if !passThroughOnly(s) {
			passThrough = false
		}
	}
	if passThrough {
		if outC != inC {
			return nil, ioutil.InvalidData("%s payload can only be copied back into a %s container", inC, inC)
		}
		if chain.Len() > 0 {
			return nil, ioutil.InvalidData("transforms need decodable frames; %s payload is copy-only", inC)
		}
	}

	out, err := os.Create(outPath)
	if err != nil {
		return nil, ioutil.FromIOError(err)
	}
	defer out.Close()

	var oggSerial uint32
	if og, ok := demux.(interface{ Serial() uint32 }); ok {
		oggSerial = og.Serial()
	}
	mux, err := openMuxer(outC, fileIO{out}, oggSerial)
	if err != nil {
		return nil, err
	}

	r := &Result{Input: inC, Output: outC, PassThrough: passThrough}
	if passThrough {
		err = runPassThrough(demux, mux, streams, opts, r)
	} else {
		err = runTranscode(demux, mux, chain, outC, streams, opts, r)
	}
	if err != nil {
		return nil, err
	}
	if err := mux.Close(); err != nil {
		return nil, err
	}
	if err := out.Close(); err != nil {
		return nil, ioutil.FromIOError(err)
	}
	return r, nil
}

// paramsFrom seeds transform construction from the first audio and
// video stream descriptions.
func paramsFrom(streams []media.StreamInfo) transform.StreamParams {
	var p transform.StreamParams
	for _, s := range streams {
		if s.Audio != nil && p.SampleRate == 0 {
			p.SampleRate = s.Audio.SampleRate
			p.Channels = s.Audio.Channels
		}
		if s.Video != nil && p.Width == 0 {
			p.Width = s.Video.Width
			p.Height = s.Video.Height
		}
	}
	return p
}

func runPassThrough(demux media.Demuxer, mux media.Muxer, streams []media.StreamInfo, opts Options, r *Result) error {
	if err := mux.WriteHeader(streams); err != nil {
		return err
	}
	for {
		p, err := demux.ReadPacket()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		r.PacketsRead++
		r.BytesRead += int64(len(p.Data))
		if err := mux.WritePacket(p); err != nil {
			return err
		}
		r.PacketsWritten++
		r.BytesWritten += int64(len(p.Data))
		reportProgress(opts, r)
	}
}

// streamState tracks one input stream through a decoding transcode.
type streamState struct {
	decoder media.Decoder
	encoder media.Encoder
	outIdx  int
	info    media.StreamInfo // output description, set with the encoder
	active  bool
}

func runTranscode(demux media.Demuxer, mux media.Muxer, chain *transform.Chain, outC Container, streams []media.StreamInfo, opts Options, r *Result) error {
	states := make([]*streamState, len(streams))
	activeCount := 0
	for i, s := range streams {
		st := &streamState{}
		if !passThroughOnly(s) && holdable(outC, s) {
			dec, err := newDecoder(demux, s)
			if err != nil {
				return err
			}
			st.decoder = dec
			st.active = true
			activeCount++
		}
		states[i] = st
	}
	if activeCount == 0 {
		return ioutil.InvalidData("no input stream can be carried into a %s container", outC)
	}

	headerWritten := false
	type heldPacket struct {
		st *streamState
		p  media.Packet
	}
	var pending []heldPacket

	writeOrHold := func(st *streamState, p media.Packet) error {
		if !headerWritten {
			// The stream's final output index isn't known until the
			// header is written, so held packets are re-stamped then.
			pending = append(pending, heldPacket{st, p})
			return nil
		}
		p.StreamIdx = st.outIdx
		if err := mux.WritePacket(p); err != nil {
			return err
		}
		r.PacketsWritten++
		r.BytesWritten += int64(len(p.Data))
		return nil
	}

	flushHeader := func(force bool) error {
		if headerWritten {
			return nil
		}
		ready := 0
		withEncoder := 0
		for _, st := range states {
			if st.active {
				ready++
				if st.encoder != nil {
					withEncoder++
				}
			}
		}
		if withEncoder == 0 {
			if force {
				return ioutil.InvalidData("input produced no decodable frames")
			}
			return nil
		}
		if withEncoder < ready && !force {
			return nil
		}
		// Streams that never produced a frame are dropped here.
		var outStreams []media.StreamInfo
		for _, st := range states {
			if st.active && st.encoder != nil {
				st.outIdx = len(outStreams)
				outStreams = append(outStreams, st.info)
			}
		}
		if err := mux.WriteHeader(outStreams); err != nil {
			return err
		}
		headerWritten = true
		held := pending
		pending = nil
		for _, h := range held {
			h.p.StreamIdx = h.st.outIdx
			if err := mux.WritePacket(h.p); err != nil {
				return err
			}
			r.PacketsWritten++
			r.BytesWritten += int64(len(h.p.Data))
		}
		return nil
	}

	for {
		p, err := demux.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		r.PacketsRead++
		r.BytesRead += int64(len(p.Data))
		reportProgress(opts, r)

		if p.StreamIdx < 0 || p.StreamIdx >= len(states) {
			continue
		}
		st := states[p.StreamIdx]
		if !st.active {
			continue
		}

		frame, ok, err := st.decoder.Decode(p)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		frame, err = chain.Process(frame)
		if err != nil {
			return err
		}
		r.FramesProcessed++

		if st.encoder == nil {
			enc, info, err := outputStream(outC, frame, opts.Codec, streams[p.StreamIdx])
			if err != nil {
				return err
			}
			st.encoder = enc
			st.info = info
			if err := flushHeader(false); err != nil {
				return err
			}
		}

		outP, ok, err := st.encoder.Encode(frame)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := writeOrHold(st, outP); err != nil {
			return err
		}
	}

	if err := flushHeader(true); err != nil {
		return err
	}
	for _, st := range states {
		if st.encoder == nil {
			continue
		}
		for {
			outP, ok, err := st.encoder.Flush()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			outP.StreamIdx = st.outIdx
			if err := mux.WritePacket(outP); err != nil {
				return err
			}
			r.PacketsWritten++
			r.BytesWritten += int64(len(outP.Data))
		}
	}
	reportProgress(opts, r)
	return nil
}

// holdable reports whether the output container can carry the given
// stream's media kind at all.
func holdable(c Container, s media.StreamInfo) bool {
	switch c {
	case ContainerWAV, ContainerFLAC:
		return s.Kind == media.KindAudio
	case ContainerY4M:
		return s.Kind == media.KindVideo
	case ContainerAVI, ContainerMP4:
		return true
	}
	return false
}

func reportProgress(opts Options, r *Result) {
	if opts.OnProgress == nil {
		return
	}
	opts.OnProgress(Progress{
		PacketsRead:     r.PacketsRead,
		FramesProcessed: r.FramesProcessed,
		PacketsWritten:  r.PacketsWritten,
		BytesRead:       r.BytesRead,
		BytesWritten:    r.BytesWritten,
	})
}
