package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
)

// packetSource hands out one queued packet per bulk read and fails when a
// read buffer is not a whole number of packets.
type packetSource struct {
	packet  int
	packets [][]byte
}

func (s *packetSource) ReadContext(_ context.Context, p []byte) (int, error) {
	if len(p)%s.packet != 0 {
		return 0, errors.New("overflow: buffer is not a packet multiple")
	}
	if len(s.packets) == 0 {
		return 0, errors.New("timeout")
	}
	n := copy(p, s.packets[0])
	s.packets = s.packets[1:]
	return n, nil
}

type packetSink struct{ bytes.Buffer }

func (s *packetSink) WriteContext(_ context.Context, p []byte) (int, error) {
	return s.Write(p)
}

func TestUSBPipeRead(t *testing.T) {
	src := &packetSource{packet: 64, packets: [][]byte{
		bytes.Repeat([]byte{0xaa}, 62),
		{0x01, 0x02, 0x03},
	}}
	pipe := newUSBPipe(src, &packetSink{}, 64)

	got := make([]byte, 65)
	if _, err := io.ReadFull(pipe, got); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	want := append(bytes.Repeat([]byte{0xaa}, 62), 0x01, 0x02, 0x03)
	if !bytes.Equal(got, want) {
		t.Errorf("ReadFull() = % x, want % x", got, want)
	}

	if _, err := pipe.Read(got[:1]); err == nil {
		t.Error("Read() error = nil with nothing left")
	}
}

func TestUSBPipeKeepsLeftover(t *testing.T) {
	src := &packetSource{packet: 512, packets: [][]byte{{1, 2, 3, 4}}}
	pipe := newUSBPipe(src, &packetSink{}, 512)

	b := make([]byte, 3)
	if n, err := pipe.Read(b); err != nil || n != 3 {
		t.Fatalf("Read() = %d, %v", n, err)
	}
	if n, err := pipe.Read(b); err != nil || n != 1 || b[0] != 4 {
		t.Fatalf("Read() = %d %v, %v; want the leftover byte", n, b[:n], err)
	}
}

func TestUSBPipeWrite(t *testing.T) {
	sink := &packetSink{}
	pipe := newUSBPipe(&packetSource{packet: 64}, sink, 0)
	if _, err := pipe.Write([]byte{0x70, 0, 0, 0, 1, 0}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !bytes.Equal(sink.Bytes(), []byte{0x70, 0, 0, 0, 1, 0}) {
		t.Errorf("written = % x", sink.Bytes())
	}
}

func TestParseBusAddr(t *testing.T) {
	tests := []struct {
		in        string
		bus, addr int
	}{
		{"1:4", 1, 4},
		{"003:017", 3, 17},
		{"1", -1, -1},
		{"1:x", -1, -1},
		{"300:1", -1, -1},
	}
	for _, tt := range tests {
		bus, addr := parseBusAddr(tt.in)
		if bus != tt.bus || addr != tt.addr {
			t.Errorf("parseBusAddr(%q) = %d, %d; want %d, %d", tt.in, bus, addr, tt.bus, tt.addr)
		}
	}
}
