package pipeline

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// buildWav assembles a canonical 44-byte-header 16-bit PCM WAV file.
func buildWav(sampleRate int, samples [][]int16) []byte {
	channels := len(samples)
	n := len(samples[0])
	dataSize := n * channels * 2

	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(channels))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(sampleRate*channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(channels*2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(dataSize))
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			binary.Write(&buf, binary.LittleEndian, samples[c][i])
		}
	}
	return buf.Bytes()
}

func sine(n int, freq float64, rate int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func wavSamples(t *testing.T, data []byte) []int16 {
	t.Helper()
	if len(data) < 44 {
		t.Fatalf("wav output too short: %d bytes", len(data))
	}
	payload := data[44:]
	out := make([]int16, len(payload)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	return out
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestWavRoundTripPreservesPayload(t *testing.T) {
	src := buildWav(44100, [][]int16{sine(512, 440, 44100, 16000)})
	in := writeTemp(t, "in.wav", src)
	out := filepath.Join(filepath.Dir(in), "out.wav")

	res, err := Transcode(in, out, Options{})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if res.PassThrough {
		t.Fatalf("PCM WAV should decode, not pass through")
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if len(got) != len(src) {
		t.Fatalf("output size %d, want %d", len(got), len(src))
	}
	if !bytes.Equal(got[44:], src[44:]) {
		t.Fatalf("payload changed through pcm round trip")
	}
}

func TestGainDoublesAndSaturates(t *testing.T) {
	orig := sine(512, 440, 44100, 20000) // loud enough to clip when doubled
	in := writeTemp(t, "in.wav", buildWav(44100, [][]int16{orig}))
	out := filepath.Join(filepath.Dir(in), "out.wav")

	if _, err := Transcode(in, out, Options{Transforms: []string{"gain=2.0"}}); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	got := wavSamples(t, data)
	if len(got) != len(orig) {
		t.Fatalf("sample count: got %d want %d", len(got), len(orig))
	}
	for i, s := range orig {
		doubled := int32(s) * 2
		want := doubled
		if doubled > 32767 {
			want = 32767
		} else if doubled < -32768 {
			want = -32768
		}
		diff := int32(got[i]) - want
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: got %d want %d", i, got[i], want)
		}
	}
}

func TestMixMonoAveragesChannels(t *testing.T) {
	left := sine(256, 440, 44100, 12000)
	right := sine(256, 880, 44100, 12000)
	in := writeTemp(t, "in.wav", buildWav(44100, [][]int16{left, right}))
	out := filepath.Join(filepath.Dir(in), "out.wav")

	if _, err := Transcode(in, out, Options{Transforms: []string{"mix=mono"}}); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	channels := binary.LittleEndian.Uint16(data[22:24])
	if channels != 1 {
		t.Fatalf("output channels: got %d want 1", channels)
	}
	got := wavSamples(t, data)
	if len(got) != 256 {
		t.Fatalf("sample count: got %d want 256", len(got))
	}
	for i := range got {
		want := (int32(left[i]) + int32(right[i])) / 2
		diff := int32(got[i]) - want
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: got %d want ~%d", i, got[i], want)
		}
	}
}

func buildY4m(w, h, frames int, extras string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "YUV4MPEG2 W%d H%d F30:1 Ip", w, h)
	if extras != "" {
		buf.WriteString(" ")
		buf.WriteString(extras)
	}
	buf.WriteString(" C420\n")
	frameSize := w*h + 2*(w/2)*(h/2)
	for f := 0; f < frames; f++ {
		buf.WriteString("FRAME\n")
		for i := 0; i < frameSize; i++ {
			buf.WriteByte(byte(i*7 + f))
		}
	}
	return buf.Bytes()
}

func TestY4mRoundTripPreservesFrames(t *testing.T) {
	src := buildY4m(320, 240, 3, "")
	in := writeTemp(t, "in.y4m", src)
	out := filepath.Join(filepath.Dir(in), "out.y4m")

	res, err := Transcode(in, out, Options{})
	if err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	if res.FramesProcessed != 3 {
		t.Fatalf("frames processed: got %d want 3", res.FramesProcessed)
	}

	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	frameSize := 320*240 + 2*160*120
	wantBody := src[bytes.IndexByte(src, '\n')+1:]
	gotBody := got[bytes.IndexByte(got, '\n')+1:]
	if !bytes.Equal(wantBody, gotBody) {
		t.Fatalf("frame payload changed through y4m round trip (frame size %d)", frameSize)
	}
}

func TestY4mRoundTripPreservesAspectRatio(t *testing.T) {
	src := buildY4m(32, 16, 1, "A128:117")
	in := writeTemp(t, "in.y4m", src)
	out := filepath.Join(filepath.Dir(in), "out.y4m")

	if _, err := Transcode(in, out, Options{}); err != nil {
		t.Fatalf("Transcode: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	header := got[:bytes.IndexByte(got, '\n')]
	if !bytes.Contains(header, []byte("A128:117")) {
		t.Fatalf("aspect ratio token lost: header %q", header)
	}
	if !bytes.Contains(header, []byte("C420")) {
		t.Fatalf("colorspace token lost: header %q", header)
	}
}

func TestWavToFlacAndBack(t *testing.T) {
	orig := sine(600, 220, 8000, 9000)
	in := writeTemp(t, "in.wav", buildWav(8000, [][]int16{orig}))
	dir := filepath.Dir(in)
	mid := filepath.Join(dir, "mid.flac")
	out := filepath.Join(dir, "out.wav")

	if _, err := Transcode(in, mid, Options{}); err != nil {
		t.Fatalf("wav->flac: %v", err)
	}
	if _, err := Transcode(mid, out, Options{}); err != nil {
		t.Fatalf("flac->wav: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	got := wavSamples(t, data)
	if len(got) != len(orig) {
		t.Fatalf("sample count: got %d want %d", len(got), len(orig))
	}
	for i := range got {
		diff := int32(got[i]) - int32(orig[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: got %d want %d", i, got[i], orig[i])
		}
	}
}

func TestTranscodeRejectsUnencodableTarget(t *testing.T) {
	in := writeTemp(t, "in.wav", buildWav(44100, [][]int16{sine(64, 440, 44100, 1000)}))
	out := filepath.Join(filepath.Dir(in), "out.mp3")
	if _, err := Transcode(in, out, Options{}); err == nil {
		t.Fatalf("expected error: mp3 frames cannot be synthesized")
	}
}

func TestDetectContainer(t *testing.T) {
	cases := map[string]Container{
		"a.wav": ContainerWAV, "b.FLAC": ContainerFLAC, "c.mp3": ContainerMP3,
		"d.ogg": ContainerOGG, "d.oga": ContainerOGG, "e.y4m": ContainerY4M,
		"f.avi": ContainerAVI, "g.mp4": ContainerMP4, "g.m4a": ContainerMP4,
		"g.m4v": ContainerMP4,
	}
	for path, want := range cases {
		got, err := DetectContainer(path)
		if err != nil {
			t.Errorf("DetectContainer(%q): %v", path, err)
			continue
		}
		if got != want {
			t.Errorf("DetectContainer(%q) = %s, want %s", path, got, want)
		}
	}
	if _, err := DetectContainer("notes.txt"); err == nil {
		t.Errorf("expected error for unknown extension")
	}
}

func TestInspectReportsWavStream(t *testing.T) {
	in := writeTemp(t, "in.wav", buildWav(44100, [][]int16{sine(100, 440, 44100, 1000)}))

	info, err := Inspect(in, true)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Container != "wav" {
		t.Fatalf("container: got %q want wav", info.Container)
	}
	if len(info.Streams) != 1 {
		t.Fatalf("streams: got %d want 1", len(info.Streams))
	}
	s := info.Streams[0]
	if s.Codec != "pcm" || s.SampleRate != 44100 || s.Channels != 1 || s.BitDepth != 16 {
		t.Fatalf("unexpected stream record: %+v", s)
	}
	if len(info.Packets) == 0 {
		t.Fatalf("expected packet records")
	}
	if info.Packets[0].PTS != 0 {
		t.Fatalf("first packet pts: got %d want 0", info.Packets[0].PTS)
	}
}
