package mp3

import (
	"testing"

	"github.com/linuxmatters/codecflux/internal/media"
)

// A 128kbps, 44100Hz, stereo, no-CRC MPEG-1 Layer III frame header.
// 0xFFFB9064: sync=11111111111, version=11(MPEG1), layer=01(III),
// protection=1(off), bitrate=1001(128k), samplerate=00(44100),
// padding=0, mode=01(joint stereo), ...
var layer3HeaderBytes = []byte{0xFF, 0xFB, 0x90, 0x64}

func TestParseHeaderMpeg1Layer3(t *testing.T) {
	h, err := ParseHeader(layer3HeaderBytes)
	if err != nil {
		t.Fatalf("ParseHeader failed: %v", err)
	}
	if h.Version != Mpeg1 {
		t.Errorf("expected MPEG1, got %d", h.Version)
	}
	if h.Layer != Layer3 {
		t.Errorf("expected Layer III, got %d", h.Layer)
	}
	if h.SampleRate != 44100 {
		t.Errorf("expected 44100 Hz, got %d", h.SampleRate)
	}
	if h.BitrateKbps != 128 {
		t.Errorf("expected 128 kbps, got %d", h.BitrateKbps)
	}
	if h.FrameLen <= 0 {
		t.Errorf("expected positive frame length, got %d", h.FrameLen)
	}
}

func TestParseHeaderRejectsBadSync(t *testing.T) {
	_, err := ParseHeader([]byte{0x00, 0x00, 0x00, 0x00})
	if err == nil {
		t.Fatalf("expected error for missing sync word")
	}
}

func TestDecodeNeverProducesSamples(t *testing.T) {
	dec := NewDecoder(media.AudioFormat{SampleRate: 44100, Channels: 2})
	frame, ok, err := dec.Decode(media.Packet{Data: layer3HeaderBytes})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ok {
		t.Fatalf("mp3 decoder must never report ok=true; there is no PCM decode path")
	}
	if _, isAudio := frame.Audio(); isAudio {
		t.Fatalf("expected zero-value frame with no audio payload")
	}
}

func TestFindSyncSkipsGarbage(t *testing.T) {
	buf := append([]byte{0x00, 0x01, 0x02}, layer3HeaderBytes...)
	pos, h, ok := FindSync(buf, 0)
	if !ok {
		t.Fatalf("expected to find sync")
	}
	if pos != 3 {
		t.Errorf("expected sync at offset 3, got %d", pos)
	}
	if h.SampleRate != 44100 {
		t.Errorf("unexpected parsed header: %+v", h)
	}
}
