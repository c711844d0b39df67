package ioutil

import (
	"encoding/binary"
	"io"
)

// Reader is the minimal byte-source contract every demuxer reads through.
// It mirrors io.Reader exactly so stdlib readers satisfy it directly.
type Reader interface {
	Read(p []byte) (n int, err error)
}

// Writer is the minimal byte-sink contract every muxer writes through.
type Writer interface {
	Write(p []byte) (n int, err error)
}

// Whence mirrors io.Seeker's whence constants under our own name so
// container code never has to import io just for SeekStart/SeekCurrent.
type Whence int

const (
	SeekStart   Whence = iota // offset from the beginning of the stream
	SeekCurrent               // offset relative to the current position
	SeekEnd                   // offset from the end of the stream
)

// Seeker is implemented by any backing store that supports random access.
// Code that needs seeking (the MP4 demuxer, and the WAV, AVI, and MP4
// muxers that patch sizes after the fact) depends on this instead of
// concrete *os.File so it also works against Cursor in tests.
type Seeker interface {
	Seek(offset int64, whence Whence) (int64, error)
}

// ReadSeeker is the combination most container readers actually need.
type ReadSeeker interface {
	Reader
	Seeker
}

// WriteSeeker is the combination muxers that patch header fields after the
// fact (RIFF sizes, MP4 box lengths) need.
type WriteSeeker interface {
	Writer
	Seeker
}

func toStdWhence(w Whence) int {
	switch w {
	case SeekCurrent:
		return io.SeekCurrent
	case SeekEnd:
		return io.SeekEnd
	default:
		return io.SeekStart
	}
}

// StdSeeker adapts a stdlib io.Seeker (such as *os.File) to our Seeker
// interface, translating the whence constants.
type StdSeeker struct {
	io.Seeker
}

func (s StdSeeker) Seek(offset int64, whence Whence) (int64, error) {
	return s.Seeker.Seek(offset, toStdWhence(whence))
}

// Cursor is an in-memory ReadSeeker/WriteSeeker over a byte slice, used
// throughout the test suite in place of temp files.
type Cursor struct {
	buf []byte
	pos int64
}

func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

func (c *Cursor) Read(p []byte) (int, error) {
	if c.pos >= int64(len(c.buf)) {
		return 0, io.EOF
	}
	n := copy(p, c.buf[c.pos:])
	c.pos += int64(n)
	return n, nil
}

func (c *Cursor) Write(p []byte) (int, error) {
	end := c.pos + int64(len(p))
	if end > int64(len(c.buf)) {
		grown := make([]byte, end)
		copy(grown, c.buf)
		c.buf = grown
	}
	n := copy(c.buf[c.pos:end], p)
	c.pos += int64(n)
	return n, nil
}

func (c *Cursor) Seek(offset int64, whence Whence) (int64, error) {
	var target int64
	switch whence {
	case SeekStart:
		target = offset
	case SeekCurrent:
		target = c.pos + offset
	case SeekEnd:
		target = int64(len(c.buf)) + offset
	}
	if target < 0 {
		return 0, InvalidData("negative seek position %d", target)
	}
	c.pos = target
	return c.pos, nil
}

// Bytes returns the cursor's current backing slice.
func (c *Cursor) Bytes() []byte {
	return c.buf
}

// Len reports the total length of the backing buffer.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// BufferedReader wraps a Reader with a fixed internal buffer and adds the
// fixed-width and endian-aware primitive reads that container parsers
// need constantly: magic numbers, four-character tags, little/big-endian
// integers.
type BufferedReader struct {
	r   *bufReader
	raw Reader
}

// bufReader is a tiny hand-rolled buffered reader so we don't pull in
// bufio just for this, keeping the surface minimal and tailored to
// container parsing (ReadFull semantics by default).
type bufReader struct {
	src  Reader
	buf  []byte
	r, w int
}

func newBufReader(src Reader, size int) *bufReader {
	if size < 16 {
		size = 16
	}
	return &bufReader{src: src, buf: make([]byte, size)}
}

func (b *bufReader) fill() error {
	if b.r > 0 {
		copy(b.buf, b.buf[b.r:b.w])
		b.w -= b.r
		b.r = 0
	}
	n, err := b.src.Read(b.buf[b.w:])
	b.w += n
	if n > 0 {
		return nil
	}
	return err
}

func (b *bufReader) Read(p []byte) (int, error) {
	if b.r == b.w {
		if len(p) >= len(b.buf) {
			return b.src.Read(p)
		}
		if err := b.fill(); err != nil {
			return 0, err
		}
	}
	n := copy(p, b.buf[b.r:b.w])
	b.r += n
	return n, nil
}

func NewBufferedReader(r Reader) *BufferedReader {
	return &BufferedReader{r: newBufReader(r, 32*1024), raw: r}
}

func NewBufferedReaderSize(r Reader, size int) *BufferedReader {
	return &BufferedReader{r: newBufReader(r, size), raw: r}
}

func (b *BufferedReader) Read(p []byte) (int, error) {
	return b.r.Read(p)
}

// ReadFull reads exactly len(p) bytes or returns a classified error.
func (b *BufferedReader) ReadFull(p []byte) error {
	_, err := io.ReadFull(b.r, p)
	if err != nil {
		// A clean EOF before the first byte passes through unwrapped so
		// demuxers can report end-of-stream; EOF mid-read is the error.
		if err == io.EOF {
			return err
		}
		if err == io.ErrUnexpectedEOF {
			return WrapError(KindUnexpectedEOF, "short read", err)
		}
		return FromIOError(err)
	}
	return nil
}

func (b *BufferedReader) ReadByte() (byte, error) {
	var buf [1]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

func (b *BufferedReader) ReadU16LE() (uint16, error) {
	var buf [2]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (b *BufferedReader) ReadU16BE() (uint16, error) {
	var buf [2]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

func (b *BufferedReader) ReadU32LE() (uint32, error) {
	var buf [4]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (b *BufferedReader) ReadU32BE() (uint32, error) {
	var buf [4]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func (b *BufferedReader) ReadU64LE() (uint64, error) {
	var buf [8]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (b *BufferedReader) ReadU64BE() (uint64, error) {
	var buf [8]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func (b *BufferedReader) ReadI16LE() (int16, error) {
	v, err := b.ReadU16LE()
	return int16(v), err
}

func (b *BufferedReader) ReadI32LE() (int32, error) {
	v, err := b.ReadU32LE()
	return int32(v), err
}

// ReadTag reads exactly 4 bytes and returns them as a string, used for
// RIFF/ISO-BMFF four-character codes ("RIFF", "WAVE", "fmt ", "ftyp"...).
func (b *BufferedReader) ReadTag() (string, error) {
	var buf [4]byte
	if err := b.ReadFull(buf[:]); err != nil {
		return "", err
	}
	return string(buf[:]), nil
}

// Skip discards n bytes by reading and dropping them, which works even
// when the underlying Reader isn't a Seeker.
func (b *BufferedReader) Skip(n int64) error {
	const chunk = 4096
	buf := make([]byte, chunk)
	for n > 0 {
		take := int64(chunk)
		if n < take {
			take = n
		}
		if err := b.ReadFull(buf[:take]); err != nil {
			return err
		}
		n -= take
	}
	return nil
}

// BufferedWriter wraps a Writer with endian-aware primitive writes.
type BufferedWriter struct {
	w   Writer
	buf []byte
}

func NewBufferedWriter(w Writer) *BufferedWriter {
	return &BufferedWriter{w: w, buf: make([]byte, 0, 32*1024)}
}

func (b *BufferedWriter) Write(p []byte) (int, error) {
	return b.w.Write(p)
}

func (b *BufferedWriter) WriteByte(v byte) error {
	_, err := b.w.Write([]byte{v})
	return err
}

func (b *BufferedWriter) WriteU16LE(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := b.w.Write(buf[:])
	return err
}

func (b *BufferedWriter) WriteU16BE(v uint16) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, err := b.w.Write(buf[:])
	return err
}

func (b *BufferedWriter) WriteU32LE(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := b.w.Write(buf[:])
	return err
}

func (b *BufferedWriter) WriteU32BE(v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := b.w.Write(buf[:])
	return err
}

func (b *BufferedWriter) WriteU64LE(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := b.w.Write(buf[:])
	return err
}

func (b *BufferedWriter) WriteU64BE(v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := b.w.Write(buf[:])
	return err
}

func (b *BufferedWriter) WriteTag(tag string) error {
	if len(tag) != 4 {
		return InvalidData("tag %q must be exactly 4 bytes", tag)
	}
	_, err := b.w.Write([]byte(tag))
	return err
}
