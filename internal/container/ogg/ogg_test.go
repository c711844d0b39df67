package ogg

import (
	"testing"

	"github.com/linuxmatters/codecflux/internal/ioutil"
	"github.com/linuxmatters/codecflux/internal/media"
)

func TestMuxDemuxRoundTrip(t *testing.T) {
	buf := ioutil.NewCursor(make([]byte, 0, 256))
	m := NewMuxer(buf, 1234)
	if err := m.WriteHeader(nil); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	payload := []byte("hello ogg page payload")
	if err := m.WritePacket(media.Packet{Data: payload, PTS: 42}); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	dm, err := NewDemuxer(ioutil.NewCursor(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewDemuxer: %v", err)
	}
	p, err := dm.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if string(p.Data) != string(payload) {
		t.Fatalf("payload mismatch: got %q want %q", p.Data, payload)
	}
}

func TestReadPageRejectsBadCRC(t *testing.T) {
	buf := ioutil.NewCursor(make([]byte, 0, 64))
	m := NewMuxer(buf, 1)
	_ = m.WriteHeader(nil)
	_ = m.WritePacket(media.Packet{Data: []byte("x")})

	corrupted := append([]byte(nil), buf.Bytes()...)
	corrupted[28] ^= 0xff // flip a data byte without fixing the CRC

	br := ioutil.NewBufferedReader(ioutil.NewCursor(corrupted))
	_, err := ReadPage(br)
	if err == nil {
		t.Fatalf("expected CRC mismatch error")
	}
}

func TestLacingForLargePacket(t *testing.T) {
	table := lacingFor(600)
	if len(table) != 3 {
		t.Fatalf("expected 3 lacing entries for 600 bytes, got %d", len(table))
	}
	sum := 0
	for _, v := range table {
		sum += int(v)
	}
	if sum != 600 {
		t.Fatalf("lacing table sums to %d, want 600", sum)
	}
}
