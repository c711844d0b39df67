package pipeline

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/linuxmatters/codecflux/internal/container/flac"
	"github.com/linuxmatters/codecflux/internal/container/mp4"
	"github.com/linuxmatters/codecflux/internal/container/ogg"
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

// StreamRecord is the JSON-friendly description of one stream surfaced
// by show mode.
type StreamRecord struct {
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	BitDepth   int    `json:"bit_depth,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	FrameRate  string `json:"frame_rate,omitempty"`
}

// PacketRecord is one packet's positional information.
type PacketRecord struct {
	Index     int     `json:"index"`
	StreamIdx int     `json:"stream"`
	PTS       int64   `json:"pts"`
	Seconds   float64 `json:"seconds"`
	Size      int     `json:"size"`
	KeyFrame  bool    `json:"keyframe"`
}

// MediaInfo is everything show mode reports for one file.
type MediaInfo struct {
	Path      string            `json:"path"`
	Container string            `json:"container"`
	Streams   []StreamRecord    `json:"streams"`
	Details   map[string]string `json:"details,omitempty"`
	Packets   []PacketRecord    `json:"packets,omitempty"`
}

// Inspect opens a file read-only and reports its structure. When
// withPackets is set, every packet is walked for its positional record;
// payload bytes are discarded as they are read, so memory stays
// bounded by one packet.
func Inspect(path string, withPackets bool) (*MediaInfo, error) {
	c, err := DetectContainer(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, ioutil.FromIOError(err)
	}
	defer f.Close()

	demux, err := openDemuxer(c, fileIO{f})
	if err != nil {
		return nil, err
	}
	defer demux.Close()

	info := &MediaInfo{
		Path:      path,
		Container: c.String(),
		Details:   describe(demux),
	}
	for _, s := range demux.Streams() {
		info.Streams = append(info.Streams, streamRecord(s))
	}

	if withPackets {
		for i := 0; ; i++ {
			p, err := demux.ReadPacket()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, err
			}
			info.Packets = append(info.Packets, PacketRecord{
				Index:     i,
				StreamIdx: p.StreamIdx,
				PTS:       p.PTS,
				Seconds:   p.Timebase.Seconds(p.PTS),
				Size:      len(p.Data),
				KeyFrame:  p.KeyFrame,
			})
		}
	}
	return info, nil
}

func streamRecord(s media.StreamInfo) StreamRecord {
	r := StreamRecord{Index: s.Index, Kind: s.Kind.String()}
	if s.Audio != nil {
		r.Codec = s.Audio.Codec
		r.SampleRate = s.Audio.SampleRate
		r.Channels = s.Audio.Channels
		r.BitDepth = s.Audio.BitDepth
	}
	if s.Video != nil {
		r.Codec = s.Video.Codec
		r.Width = s.Video.Width
		r.Height = s.Video.Height
		if fr := s.Video.FrameRate; fr.Num > 0 {
			r.FrameRate = fmt.Sprintf("%d/%d", fr.Den, fr.Num) // fps as a ratio
		}
	}
	if r.Codec == "" {
		r.Codec = "unknown"
	}
	return r
}

// describe surfaces container-specific header fields the generic stream
// records can't carry.
func describe(d media.Demuxer) map[string]string {
	switch dm := d.(type) {
	case *flac.Demuxer:
		si := dm.StreamInfo()
		return map[string]string{
			"min_block_size": strconv.Itoa(int(si.MinBlockSize)),
			"max_block_size": strconv.Itoa(int(si.MaxBlockSize)),
			"total_samples":  strconv.FormatUint(si.TotalSamples, 10),
			"md5_signature":  hex.EncodeToString(si.MD5Signature[:]),
		}
	case *ogg.Demuxer:
		return map[string]string{
			"bitstream_serial": fmt.Sprintf("%08x", dm.Serial()),
		}
	case *mp4.Demuxer:
		details := map[string]string{
			"major_brand": dm.MajorBrand(),
			"timescale":   strconv.FormatUint(uint64(dm.MovieTimescale()), 10),
			"duration":    strconv.FormatUint(dm.MovieDuration(), 10),
		}
		for i, id := range dm.TrackIDs() {
			details["track_"+strconv.Itoa(i)+"_id"] = strconv.FormatUint(uint64(id), 10)
		}
		return details
	}
	return nil
}
