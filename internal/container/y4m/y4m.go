// Package y4m implements the YUV4MPEG2 container: a single text header
// line describing the stream, followed by one "FRAME" line plus raw
// planar YUV420 bytes per frame. This is the simplest container in
// codecflux and the one most test fixtures are built from.
package y4m

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

const streamMagic = "YUV4MPEG2"
const frameMagic = "FRAME"

// Demuxer parses a Y4M stream header and yields one raw planar frame
// per ReadPacket call.
type Demuxer struct {
	r      *ioutil.BufferedReader
	format media.VideoFormat
	frameN int64
}

func NewDemuxer(r ioutil.Reader) (*Demuxer, error) {
	br := ioutil.NewBufferedReader(r)
	line, err := readLine(br)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != streamMagic {
		return nil, ioutil.InvalidData("missing YUV4MPEG2 stream header")
	}

	format := media.VideoFormat{PixelFormat: "yuv420p", FrameRate: media.Timebase{Num: 1, Den: 30}}
	for _, f := range fields[1:] {
		if len(f) == 0 {
			continue
		}
		tag, val := f[0], f[1:]
		switch tag {
		case 'W':
			format.Width, _ = strconv.Atoi(val)
		case 'H':
			format.Height, _ = strconv.Atoi(val)
		case 'F':
			num, den, ok := parseRatio(val)
			if ok {
				format.FrameRate = media.Timebase{Num: den, Den: num} // Y4M's F is frames/sec as N:D meaning N/D fps
			}
		case 'C':
			if val != "420" && val != "420jpeg" && val != "420mpeg2" && val != "420paldv" {
				return nil, ioutil.InvalidData("unsupported y4m colour space %q (only 4:2:0 variants are supported)", val)
			}
			format.Colorspace = val
		case 'I':
			format.Interlacing = val
		case 'A':
			format.AspectRatio = val
		}
	}
	format.Codec = "rawvideo"
	if format.Width == 0 || format.Height == 0 {
		return nil, ioutil.InvalidData("y4m header missing W/H parameters")
	}

	return &Demuxer{r: br, format: format}, nil
}

// parseRatio parses Y4M's "N:D" rational fields, returning them in N,D
// order exactly as written (Y4M's F tag is fps = N/D).
func parseRatio(s string) (num, den int64, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	n, err1 := strconv.ParseInt(parts[0], 10, 64)
	d, err2 := strconv.ParseInt(parts[1], 10, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0, 0, false
	}
	return n, d, true
}

func readLine(r *ioutil.BufferedReader) (string, error) {
	var sb strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			return sb.String(), nil
		}
		sb.WriteByte(b)
	}
}

func (d *Demuxer) Streams() []media.StreamInfo {
	f := d.format
	return []media.StreamInfo{{Kind: media.KindVideo, Video: &f}}
}

func (d *Demuxer) frameSize() int {
	w, h := d.format.Width, d.format.Height
	cw, ch := (w+1)/2, (h+1)/2
	return w*h + 2*cw*ch
}

func (d *Demuxer) ReadPacket() (media.Packet, error) {
	line, err := readLine(d.r)
	if err != nil {
		return media.Packet{}, err
	}
	if !strings.HasPrefix(line, frameMagic) {
		return media.Packet{}, ioutil.InvalidData("expected FRAME marker, got %q", line)
	}

	size := d.frameSize()
	buf := make([]byte, size)
	if err := d.r.ReadFull(buf); err != nil {
		return media.Packet{}, err
	}

	p := media.Packet{
		Kind:     media.KindVideo,
		PTS:      d.frameN,
		Duration: 1,
		Timebase: media.Timebase{Num: d.format.FrameRate.Num, Den: d.format.FrameRate.Den},
		KeyFrame: true,
		Data:     buf,
	}
	d.frameN++
	return p, nil
}

func (d *Demuxer) Close() error { return nil }

// Muxer writes the YUV4MPEG2 stream header and one FRAME block per
// WritePacket call.
type Muxer struct {
	w      ioutil.Writer
	format media.VideoFormat
}

func NewMuxer(w ioutil.Writer) *Muxer {
	return &Muxer{w: w}
}

func (m *Muxer) WriteHeader(streams []media.StreamInfo) error {
	var video *media.VideoFormat
	for _, s := range streams {
		if s.Video != nil {
			video = s.Video
		}
	}
	if video == nil {
		return ioutil.InvalidData("y4m muxer requires a video stream")
	}
	m.format = *video

	fps := video.FrameRate
	if fps.Den == 0 {
		fps = media.Timebase{Num: 1, Den: 30}
	}
	interlacing := video.Interlacing
	if interlacing == "" {
		interlacing = "p"
	}
	aspect := video.AspectRatio
	if aspect == "" {
		aspect = "1:1"
	}
	colorspace := video.Colorspace
	if colorspace == "" {
		colorspace = "420mpeg2"
	}
	header := fmt.Sprintf("%s W%d H%d F%d:%d I%s A%s C%s\n",
		streamMagic, video.Width, video.Height, fps.Den, fps.Num, interlacing, aspect, colorspace)
	_, err := m.w.Write([]byte(header))
	return err
}

func (m *Muxer) WritePacket(p media.Packet) error {
	if _, err := m.w.Write([]byte(frameMagic + "\n")); err != nil {
		return err
	}
	_, err := m.w.Write(p.Data)
	return err
}

func (m *Muxer) Close() error { return nil }
