// Package ogg implements the Ogg bitstream container: page framing with
// lacing-value segment tables and the CRC-32 checksum Ogg defines with
// its own (non-IEEE) polynomial, built directly from the Ogg bitstream
// format. Packets recovered from pages are passed through
// uninterpreted: this module does not decode Vorbis/Opus payloads, only
// recovers their packet framing, matching its read-only treatment of
// other perceptually coded formats.
package ogg

import (
	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

const pageMagic = "OggS"

// crcTable is built with Ogg's defining polynomial 0x04c11db7, reflected
// on neither input nor output (unlike the far more common CRC-32/IEEE
// polynomial 0xedb88320 that PNG/gzip/zlib use).
var crcTable [256]uint32

func init() {
	const poly = 0x04c11db7
	for i := 0; i < 256; i++ {
		crc := uint32(i) << 24
		for b := 0; b < 8; b++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

func oggCRC32(data []byte) uint32 {
	var crc uint32
	for _, b := range data {
		crc = (crc << 8) ^ crcTable[byte(crc>>24)^b]
	}
	return crc
}

// Page is one parsed Ogg page: a header plus the concatenated segment
// data, with segmentEnds marking packet boundaries within that data
// (a packet that doesn't end on this page has its final segment length
// equal to 255, signalling continuation onto the next page).
type Page struct {
	Version        byte
	HeaderType     byte
	GranulePos     int64
	SerialNumber   uint32
	SequenceNumber uint32
	Data           []byte
	SegmentEnds    []int // cumulative offsets into Data where each packet/continuation ends
}

func (p Page) Continued() bool { return p.HeaderType&0x01 != 0 }
func (p Page) FirstPage() bool { return p.HeaderType&0x02 != 0 }
func (p Page) LastPage() bool  { return p.HeaderType&0x04 != 0 }

// ReadPage reads and validates one Ogg page from r, including its CRC.
func ReadPage(r *ioutil.BufferedReader) (Page, error) {
	var header [27]byte
	if err := r.ReadFull(header[:]); err != nil {
		return Page{}, err
	}
	if string(header[0:4]) != pageMagic {
		return Page{}, ioutil.InvalidData("missing OggS page capture pattern")
	}

	numSegments := int(header[26])
	segTable := make([]byte, numSegments)
	if err := r.ReadFull(segTable); err != nil {
		return Page{}, err
	}

	totalData := 0
	for _, s := range segTable {
		totalData += int(s)
	}
	data := make([]byte, totalData)
	if err := r.ReadFull(data); err != nil {
		return Page{}, err
	}

	var ends []int
	offset := 0
	for _, s := range segTable {
		offset += int(s)
		if s < 255 {
			ends = append(ends, offset)
		}
	}
	if len(segTable) > 0 && segTable[len(segTable)-1] == 255 {
		// final packet continues onto the next page; record its
		// current extent so the caller can still see the bytes.
		ends = append(ends, offset)
	}

	page := Page{
		Version:        header[4],
		HeaderType:     header[5],
		GranulePos:     int64(leUint64(header[6:14])),
		SerialNumber:   leUint32(header[14:18]),
		SequenceNumber: leUint32(header[18:22]),
		Data:           data,
		SegmentEnds:    ends,
	}

	// Verify checksum: recompute over header (with checksum field
	// zeroed) + segment table + data.
	full := make([]byte, 0, 27+numSegments+totalData)
	var zeroed [27]byte
	copy(zeroed[:], header[:])
	zeroed[22], zeroed[23], zeroed[24], zeroed[25] = 0, 0, 0, 0
	full = append(full, zeroed[:]...)
	full = append(full, segTable...)
	full = append(full, data...)
	want := leUint32(header[22:26])
	if got := oggCRC32(full); got != want {
		return Page{}, ioutil.InvalidData("ogg page CRC mismatch: got %08x want %08x", got, want)
	}

	return page, nil
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func leUint64(b []byte) uint64 {
	var v uint64
	for i := 7; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// Demuxer reads a sequence of Ogg pages and yields each page's payload
// as one Packet. Serial reports the first page's serial number; pages
// carrying other serial numbers are not filtered out.
type Demuxer struct {
	r      *ioutil.BufferedReader
	serial uint32
	format media.AudioFormat
	pts    int64
	first  *Page // page read by NewDemuxer, handed out by the first ReadPacket
}

func NewDemuxer(r ioutil.Reader) (*Demuxer, error) {
	br := ioutil.NewBufferedReader(r)
	page, err := ReadPage(br)
	if err != nil {
		return nil, err
	}
	if !page.FirstPage() {
		return nil, ioutil.InvalidData("first ogg page is not marked as a stream start")
	}
	d := &Demuxer{r: br, serial: page.SerialNumber, first: &page}
	return d, nil
}

func (d *Demuxer) Streams() []media.StreamInfo {
	f := d.format
	return []media.StreamInfo{{Kind: media.KindAudio, Audio: &f}}
}

// ReadPacket returns the next full page's data as one Packet. A proper
// Vorbis/Opus demuxer would reassemble packets that straddle page
// boundaries; this module treats each page's payload as an opaque
// packet since it never decodes the payload itself, only needs
// pass-through framing for S2/S6-style remux scenarios.
func (d *Demuxer) ReadPacket() (media.Packet, error) {
	var page Page
	if d.first != nil {
		page, d.first = *d.first, nil
	} else {
		var err error
		if page, err = ReadPage(d.r); err != nil {
			return media.Packet{}, err
		}
	}
	p := media.Packet{
		Kind:     media.KindAudio,
		PTS:      d.pts,
		Timebase: media.Timebase{Num: 1, Den: 1},
		KeyFrame: page.FirstPage(),
		Data:     page.Data,
	}
	d.pts = page.GranulePos
	return p, nil
}

func (d *Demuxer) Close() error { return nil }

// Serial reports the logical bitstream's serial number, so a remux can
// carry it into the output stream.
func (d *Demuxer) Serial() uint32 {
	return d.serial
}

// Muxer writes pages for a single logical bitstream, one page per
// WritePacket call. Each packet is laced into 255-byte segments; a page
// holds at most 255 lacing values, so a packet of 255*255 bytes or more
// is rejected rather than spread across pages.
type Muxer struct {
	w          ioutil.Writer
	serial     uint32
	sequence   uint32
	headerSent bool
}

func NewMuxer(w ioutil.Writer, serial uint32) *Muxer {
	return &Muxer{w: w, serial: serial}
}

func (m *Muxer) WriteHeader(streams []media.StreamInfo) error {
	return nil // first packet write carries the "first page" flag
}

func (m *Muxer) WritePacket(p media.Packet) error {
	segTable := lacingFor(len(p.Data))
	if len(segTable) > 255 {
		return ioutil.InvalidData("ogg packet of %d bytes needs %d lacing values, a page holds 255", len(p.Data), len(segTable))
	}

	header := make([]byte, 27)
	copy(header[0:4], pageMagic)
	header[4] = 0
	headerType := byte(0)
	if !m.headerSent {
		headerType |= 0x02
	}
	header[5] = headerType
	putLeUint64(header[6:14], uint64(p.PTS))
	putLeUint32(header[14:18], m.serial)
	putLeUint32(header[18:22], m.sequence)
	header[26] = byte(len(segTable))

	body := append(append([]byte{}, segTable...), p.Data...)
	full := append(header, body...)
	crc := oggCRC32(full)
	putLeUint32(full[22:26], crc)

	if _, err := m.w.Write(full); err != nil {
		return err
	}
	m.sequence++
	m.headerSent = true
	return nil
}

func (m *Muxer) Close() error { return nil }

func lacingFor(n int) []byte {
	var table []byte
	for n >= 255 {
		table = append(table, 255)
		n -= 255
	}
	table = append(table, byte(n))
	return table
}

func putLeUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putLeUint64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
