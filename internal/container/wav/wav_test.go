package wav

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

func TestMuxDemuxRoundTripPCM(t *testing.T) {
	buf := ioutil.NewCursor(make([]byte, 0, 1024))
	m := NewMuxer(buf)

	format := media.AudioFormat{Codec: "pcm", SampleRate: 8000, Channels: 1, BitDepth: 16, SampleFmt: media.SampleS16LE}
	if err := m.WriteHeader([]media.StreamInfo{{Kind: media.KindAudio, Audio: &format}}); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}

	data := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	if err := m.WritePacket(media.Packet{Data: data}); err != nil {
		t.Fatalf("WritePacket failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reader := ioutil.NewCursor(buf.Bytes())
	dm, err := NewDemuxer(reader)
	if err != nil {
		t.Fatalf("NewDemuxer failed: %v", err)
	}
	streams := dm.Streams()
	if len(streams) != 1 || streams[0].Audio == nil {
		t.Fatalf("expected one audio stream")
	}
	if streams[0].Audio.SampleRate != 8000 || streams[0].Audio.Channels != 1 {
		t.Fatalf("unexpected format: %+v", streams[0].Audio)
	}

	p, err := dm.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket failed: %v", err)
	}
	if len(p.Data) != len(data) {
		t.Fatalf("expected %d bytes back, got %d", len(data), len(p.Data))
	}
	for i := range data {
		if p.Data[i] != data[i] {
			t.Errorf("byte %d mismatch: got %d want %d", i, p.Data[i], data[i])
		}
	}
}

// TestDemuxerReadsReferenceEncoderOutput feeds this demuxer a file
// written by go-audio's own WAV encoder, so the chunk walk is checked
// against an independent writer rather than only our muxer.
func TestDemuxerReadsReferenceEncoderOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ref.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating temp wav: %v", err)
	}
	enc := gowav.NewEncoder(f, 22050, 16, 1, 1)
	samples := []int{0, 1000, -1000, 2000, -2000, 3000, -3000, 0}
	buf := &audio.IntBuffer{
		Data:           samples,
		Format:         &audio.Format{NumChannels: 1, SampleRate: 22050},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("reference encoder write: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("reference encoder close: %v", err)
	}
	f.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading temp wav: %v", err)
	}
	if !IsValidWav(ioutil.NewCursor(data)) {
		t.Fatalf("IsValidWav rejected the reference encoder's file")
	}

	dm, err := NewDemuxer(ioutil.NewCursor(data))
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	af := dm.Streams()[0].Audio
	if af.SampleRate != 22050 || af.Channels != 1 || af.BitDepth != 16 {
		t.Fatalf("unexpected format from reference file: %+v", af)
	}
	p, err := dm.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if len(p.Data) != len(samples)*2 {
		t.Fatalf("payload size: got %d want %d", len(p.Data), len(samples)*2)
	}
	for i, want := range samples {
		got := int(int16(uint16(p.Data[i*2]) | uint16(p.Data[i*2+1])<<8))
		if got != want {
			t.Fatalf("sample %d: got %d want %d", i, got, want)
		}
	}
}

func TestDemuxerRejectsNonRIFF(t *testing.T) {
	reader := ioutil.NewCursor([]byte("not-a-wav-file-at-all!!"))
	_, err := NewDemuxer(reader)
	if err == nil {
		t.Fatalf("expected error for non-RIFF input")
	}
}
