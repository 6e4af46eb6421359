package blaster

import (
	"bytes"
	"testing"

	"github.com/moffa90/go-ordb3/jtag"
	"github.com/moffa90/go-ordb3/jtag/jtagtest"
	"periph.io/x/conn/v3/gpio"
)

func newLoopbackEngine() (*Engine, *jtagtest.Loopback) {
	lb := &jtagtest.Loopback{}
	return New(jtag.NewShifter(lb)), lb
}

func TestProcessByteFraming(t *testing.T) {
	e, lb := newLoopbackEngine()

	if _, ok := e.ProcessByte(0x81); ok {
		t.Error("header produced a reply")
	}
	if got := e.State(); got.BytesToShift != 1 || got.ReadEnabled {
		t.Fatalf("State() after 0x81 = %+v", got)
	}

	before := lb.Clocks
	if _, ok := e.ProcessByte(0xab); ok {
		t.Error("data byte without read flag produced a reply")
	}
	if lb.Clocks-before != 8 {
		t.Errorf("data byte clocked %d bits, want 8", lb.Clocks-before)
	}
	if got := e.State(); got.BytesToShift != 0 {
		t.Fatalf("BytesToShift = %d, want 0", got.BytesToShift)
	}

	before = lb.Clocks
	e.ProcessByte(0x00)
	if lb.Clocks != before {
		t.Error("0x00 after the run was treated as shift data")
	}
	if lb.TCK || lb.TMS || lb.TDI {
		t.Errorf("bit command 0x00 left pins %+v", lb)
	}
}

func TestProcessByteBitMode(t *testing.T) {
	tests := []struct {
		name      string
		in        byte
		wantReply byte
		wantOK    bool
		wantPins  jtagtest.Loopback
	}{
		{
			name:     "clock high without read",
			in:       BitTCK,
			wantPins: jtagtest.Loopback{TCK: gpio.High},
		},
		{
			name:      "read with TDI high",
			in:        BitTDI | BitRead,
			wantReply: 1,
			wantOK:    true,
			wantPins:  jtagtest.Loopback{TDI: gpio.High},
		},
		{
			name:     "read with TDI low",
			in:       BitTMS | BitLED | BitRead,
			wantOK:   true,
			wantPins: jtagtest.Loopback{TMS: gpio.High, LED: gpio.High},
		},
		{
			name:     "unused bits ignored",
			in:       0x0c,
			wantPins: jtagtest.Loopback{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, lb := newLoopbackEngine()
			lb.Clocks = 0

			reply, ok := e.ProcessByte(tt.in)
			if reply != tt.wantReply || ok != tt.wantOK {
				t.Errorf("ProcessByte(0x%02X) = (%d, %v), want (%d, %v)",
					tt.in, reply, ok, tt.wantReply, tt.wantOK)
			}
			lb.Clocks = tt.wantPins.Clocks
			if *lb != tt.wantPins {
				t.Errorf("pins = %+v, want %+v", *lb, tt.wantPins)
			}
		})
	}
}

func TestProcessBufferCompactsReplies(t *testing.T) {
	e, _ := newLoopbackEngine()

	buf := []byte{
		BitTDI | BitRead, // reply 1
		0x00,             // no reply
		BitByteMode | BitRead | 3, 0x11, 0x22, 0x33,
		BitByteMode | 2, 0x44, 0x55,
		BitRead, // reply 0
	}
	n := e.ProcessBuffer(buf)

	want := []byte{1, 0x11, 0x22, 0x33, 0}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("reply = % X, want % X", buf[:n], want)
	}
}

func TestProcessBufferStateSpansPackets(t *testing.T) {
	e, _ := newLoopbackEngine()

	first := []byte{BitByteMode | BitRead | 4, 0xde, 0xad}
	n := e.ProcessBuffer(first)
	if !bytes.Equal(first[:n], []byte{0xde, 0xad}) {
		t.Fatalf("first reply = % X", first[:n])
	}
	if got := e.State().BytesToShift; got != 2 {
		t.Fatalf("BytesToShift = %d, want 2", got)
	}

	second := []byte{0xbe, 0xef, BitTDI | BitRead}
	n = e.ProcessBuffer(second)
	if !bytes.Equal(second[:n], []byte{0xbe, 0xef, 1}) {
		t.Errorf("second reply = % X", second[:n])
	}
}

func TestProcessBufferMatchesScalar(t *testing.T) {
	enc := &Encoder{}
	enc.TMS(0b0011111, 7)
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i * 7)
	}
	enc.Data(data[:70], true)
	enc.Clock(true, true, true)
	enc.Data(data[70:], false)
	enc.Data(data[:5], true)
	stream := enc.Bytes()

	scalar, _ := newLoopbackEngine()
	var want []byte
	for _, b := range stream {
		if r, ok := scalar.ProcessByte(b); ok {
			want = append(want, r)
		}
	}

	fl := &jtagtest.FastLoopback{}
	batched := New(jtag.NewShifter(fl))
	var got []byte
	for off := 0; off < len(stream); off += 64 {
		end := off + 64
		if end > len(stream) {
			end = len(stream)
		}
		pkt := append([]byte(nil), stream[off:end]...)
		n := batched.ProcessBuffer(pkt)
		got = append(got, pkt[:n]...)
	}

	if !bytes.Equal(got, want) {
		t.Fatalf("batched reply (%d bytes) differs from scalar (%d bytes)", len(got), len(want))
	}
	if len(got) != enc.Replies() {
		t.Errorf("reply count = %d, Encoder.Replies() = %d", len(got), enc.Replies())
	}
	for _, n := range fl.Runs {
		if n > MaxShiftCount {
			t.Errorf("run of %d bytes exceeds %d", n, MaxShiftCount)
		}
	}
}

func TestZeroLengthHeader(t *testing.T) {
	e, _ := newLoopbackEngine()

	buf := []byte{BitByteMode | BitRead, BitTDI | BitRead}
	n := e.ProcessBuffer(buf)
	if n != 1 || buf[0] != 1 {
		t.Errorf("reply = % X, want 01", buf[:n])
	}
}

func TestReset(t *testing.T) {
	e, _ := newLoopbackEngine()
	e.ProcessByte(BitByteMode | BitRead | 10)
	e.Reset()
	if got := e.State(); got != (State{}) {
		t.Errorf("State() after Reset = %+v", got)
	}
}
