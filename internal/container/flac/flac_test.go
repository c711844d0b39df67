package flac

import (
	"bytes"
	"math"
	"testing"

	mewkiz "github.com/mewkiz/flac"

	codec "github.com/linuxmatters/codecflux/internal/codec/flac"
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

func TestMuxDemuxRoundTrip(t *testing.T) {
	buf := ioutil.NewCursor(nil)
	m := NewMuxer(buf)

	af := media.AudioFormat{SampleRate: 44100, Channels: 1, BitDepth: 16}
	if err := m.WriteHeader([]media.StreamInfo{{Kind: media.KindAudio, Audio: &af}}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	enc := codec.NewEncoder(codec.StreamInfo{SampleRate: 44100, Channels: 1, BitsPerSample: 16})
	frame := media.NewAudioFrame(44100, 1, 128)
	for i := range frame.Samples[0] {
		frame.Samples[0][i] = 0.3 * math.Sin(float64(i)*0.1)
	}
	p, ok, err := enc.Encode(media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 44100}, frame))
	if err != nil || !ok {
		t.Fatalf("encode: ok=%v err=%v", ok, err)
	}
	if err := m.WritePacket(p); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	dm, err := NewDemuxer(ioutil.NewCursor(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	info := dm.StreamInfo()
	if info.SampleRate != 44100 || info.Channels != 1 || info.BitsPerSample != 16 {
		t.Fatalf("unexpected stream info: %+v", info)
	}
	if info.TotalSamples != 128 {
		t.Fatalf("total samples not patched: got %d want 128", info.TotalSamples)
	}

	got, err := dm.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if len(got.Data) != len(p.Data) {
		t.Fatalf("frame size changed through container: got %d want %d", len(got.Data), len(p.Data))
	}
	for i := range got.Data {
		if got.Data[i] != p.Data[i] {
			t.Fatalf("frame byte %d changed through container", i)
		}
	}
	if got.Duration != 128 {
		t.Fatalf("frame header block size: got %d want 128", got.Duration)
	}
}

// TestMuxerOutputParsesWithReferenceLibrary checks the written
// signature and STREAMINFO layout against an independent FLAC parser.
func TestMuxerOutputParsesWithReferenceLibrary(t *testing.T) {
	buf := ioutil.NewCursor(nil)
	m := NewMuxer(buf)
	af := media.AudioFormat{SampleRate: 48000, Channels: 2, BitDepth: 16}
	if err := m.WriteHeader([]media.StreamInfo{{Kind: media.KindAudio, Audio: &af}}); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}

	enc := codec.NewEncoder(codec.StreamInfo{SampleRate: 48000, Channels: 2, BitsPerSample: 16})
	frame := media.NewAudioFrame(48000, 2, 256)
	for c := range frame.Samples {
		for i := range frame.Samples[c] {
			frame.Samples[c][i] = 0.2 * math.Sin(float64(i)*0.05*float64(c+1))
		}
	}
	p, ok, err := enc.Encode(media.NewAudioFrameWrapper(0, 0, media.Timebase{Num: 1, Den: 48000}, frame))
	if err != nil || !ok {
		t.Fatalf("encode: ok=%v err=%v", ok, err)
	}
	if err := m.WritePacket(p); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	stream, err := mewkiz.New(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reference parser rejected the written stream: %v", err)
	}
	info := stream.Info
	if info.SampleRate != 48000 || info.NChannels != 2 || info.BitsPerSample != 16 {
		t.Fatalf("reference parser read different stream info: %+v", info)
	}
	if info.NSamples != 256 {
		t.Fatalf("reference parser total samples: got %d want 256", info.NSamples)
	}
}

func TestDemuxerRejectsMissingMarker(t *testing.T) {
	_, err := NewDemuxer(ioutil.NewCursor([]byte("nope")))
	if err == nil {
		t.Fatalf("expected error for missing fLaC marker")
	}
}
