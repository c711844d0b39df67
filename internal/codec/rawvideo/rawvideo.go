// Package rawvideo implements the identity codec for planar YUV 4:2:0
// frames: a Packet's Data is the Y, U, and V planes concatenated in
// that order with no header, as used by Y4M's FRAME payloads and AVI's
// uncompressed "I420" video streams.
package rawvideo

import (
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

type Decoder struct {
	fmt media.VideoFormat
}

func NewDecoder(fmt media.VideoFormat) *Decoder {
	return &Decoder{fmt: fmt}
}

func (d *Decoder) Close() error { return nil }

func (d *Decoder) Decode(p media.Packet) (media.Frame, bool, error) {
	w, h := d.fmt.Width, d.fmt.Height
	cw, ch := (w+1)/2, (h+1)/2
	ySize, cSize := w*h, cw*ch
	want := ySize + 2*cSize
	if len(p.Data) != want {
		return media.Frame{}, false, ioutil.InvalidData("rawvideo packet is %d bytes, want %d for %dx%d yuv420p", len(p.Data), want, w, h)
	}

	vf := &media.VideoFrame{
		Width: w, Height: h,
		YStride: w, CStride: cw,
		Y: append([]byte(nil), p.Data[:ySize]...),
		U: append([]byte(nil), p.Data[ySize:ySize+cSize]...),
		V: append([]byte(nil), p.Data[ySize+cSize:want]...),
	}

	return media.NewVideoFrameWrapper(p.StreamIdx, p.PTS, p.Timebase, vf), true, nil
}

type Encoder struct {
	fmt media.VideoFormat
}

func NewEncoder(fmt media.VideoFormat) *Encoder {
	return &Encoder{fmt: fmt}
}

func (e *Encoder) Close() error { return nil }
func (e *Encoder) Flush() (media.Packet, bool, error) {
	return media.Packet{}, false, nil
}

func (e *Encoder) Encode(f media.Frame) (media.Packet, bool, error) {
	vf, ok := f.Video()
	if !ok {
		return media.Packet{}, false, ioutil.InvalidData("rawvideo encoder received a non-video frame")
	}

	out := make([]byte, 0, len(vf.Y)+len(vf.U)+len(vf.V))
	out = append(out, vf.Y...)
	out = append(out, vf.U...)
	out = append(out, vf.V...)

	return media.Packet{
		Kind:      media.KindVideo,
		StreamIdx: f.StreamIdx,
		PTS:       f.PTS,
		Duration:  1,
		Timebase:  f.Timebase,
		KeyFrame:  true,
		Data:      out,
	}, true, nil
}
