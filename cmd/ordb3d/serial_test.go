package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/moffa90/go-ordb3/adapter"
	"github.com/moffa90/go-ordb3/jtag"
	"github.com/moffa90/go-ordb3/jtag/jtagtest"
	"github.com/moffa90/go-ordb3/nand"
	"github.com/moffa90/go-ordb3/nand/nandtest"
)

// scriptedPort returns the queued reads, then times out until fail is
// set.
type scriptedPort struct {
	mu      sync.Mutex
	reads   [][]byte
	fail    error
	written bytes.Buffer
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.reads) > 0 {
		n := copy(b, p.reads[0])
		if p.reads[0] = p.reads[0][n:]; len(p.reads[0]) == 0 {
			p.reads = p.reads[1:]
		}
		return n, nil
	}
	if p.fail != nil {
		return 0, p.fail
	}
	time.Sleep(time.Millisecond)
	return 0, io.EOF
}

func (p *scriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func TestPortEndpointPump(t *testing.T) {
	port := &scriptedPort{
		reads: [][]byte{[]byte("ab"), []byte("cd")},
		fail:  errors.New("port gone"),
	}
	ep := newPortEndpoint(adapter.EndpointFlash, port)

	var notified []adapter.EndpointID
	err := ep.pump(context.Background(), func(id adapter.EndpointID) {
		notified = append(notified, id)
	})

	var epErr *adapter.EndpointError
	if !errors.As(err, &epErr) || epErr.Endpoint != adapter.EndpointFlash {
		t.Fatalf("pump() error = %v, want EndpointError on flash", err)
	}
	if len(notified) != 2 {
		t.Errorf("notify called %d times, want 2", len(notified))
	}
	if ep.Buffered() != 4 {
		t.Errorf("Buffered() = %d, want 4", ep.Buffered())
	}

	buf := make([]byte, 3)
	if n := ep.Receive(buf); n != 3 || string(buf) != "abc" {
		t.Errorf("Receive() = %d %q, want 3 \"abc\"", n, buf[:n])
	}
	if n := ep.Receive(buf); n != 1 || buf[0] != 'd' {
		t.Errorf("Receive() = %d %q, want 1 \"d\"", n, buf[:n])
	}
}

func TestPortEndpointCancel(t *testing.T) {
	ep := newPortEndpoint(adapter.EndpointBlaster, &scriptedPort{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ep.pump(ctx, func(adapter.EndpointID) {}) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("pump() error = %v after cancel", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after cancel")
	}
}

func TestPortEndpointBackpressure(t *testing.T) {
	full := make([]byte, maxBuffered)
	port := &scriptedPort{reads: [][]byte{full, []byte("x")}}
	ep := newPortEndpoint(adapter.EndpointBlaster, port)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = ep.pump(ctx, func(adapter.EndpointID) {}) }()

	deadline := time.Now().Add(2 * time.Second)
	for ep.Buffered() < maxBuffered && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	if got := ep.Buffered(); got != maxBuffered {
		t.Fatalf("Buffered() = %d with a full buffer, want %d", got, maxBuffered)
	}

	ep.Receive(make([]byte, 512))
	for ep.Buffered() != maxBuffered-512+1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := ep.Buffered(); got != maxBuffered-512+1 {
		t.Errorf("Buffered() = %d after draining, want %d", got, maxBuffered-512+1)
	}
}

func TestPortEndpointSend(t *testing.T) {
	port := &scriptedPort{}
	ep := newPortEndpoint(adapter.EndpointBlaster, port)
	if err := ep.Send(nil); err != nil {
		t.Fatalf("Send(nil) error = %v", err)
	}
	if err := ep.Send([]byte{0x31, 0x60, 0xaa}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got := port.written.Bytes(); !bytes.Equal(got, []byte{0x31, 0x60, 0xaa}) {
		t.Errorf("written = % x", got)
	}
}

func TestPortTransportFail(t *testing.T) {
	tr := newPortTransport(&scriptedPort{}, &scriptedPort{})
	if tr.State() != adapter.StateActive {
		t.Fatalf("State() = %v, want active", tr.State())
	}
	if tr.Endpoint(adapter.EndpointFlash) != tr.flash || tr.Endpoint(adapter.EndpointBlaster) != tr.blaster {
		t.Error("Endpoint() returned the wrong endpoint")
	}

	ctl := adapter.New(tr, jtag.NewShifter(&jtagtest.Loopback{}), nand.New(nandtest.New(nandtest.SmallGeometry)))
	tr.fail(ctl)
	if tr.State() != adapter.StateError {
		t.Errorf("State() = %v after fail, want error", tr.State())
	}
}
