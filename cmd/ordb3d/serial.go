package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/jacobsa/go-serial/serial"

	"github.com/moffa90/go-ordb3/adapter"
)

// maxBuffered bounds the bytes queued from the host before the pump stops
// reading and lets the kernel buffer fill, as a full OUT FIFO NAKs.
const maxBuffered = 64 * 1024

// openPort opens a gadget serial device in raw mode. Reads return after
// 100 ms without data so the pump can notice cancellation.
func openPort(name string) (io.ReadWriteCloser, error) {
	port, err := serial.Open(serial.OpenOptions{
		PortName:              name,
		BaudRate:              115200,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	})
	if err != nil {
		return nil, fmt.Errorf("serial.Open %s: %w", name, err)
	}
	return port, nil
}

// portEndpoint is an adapter.Endpoint over a byte stream. A pump goroutine
// moves host bytes into rx; Send writes straight to the port.
type portEndpoint struct {
	id   adapter.EndpointID
	port io.ReadWriter

	mu   sync.Mutex
	rx   []byte
	room *sync.Cond
}

func newPortEndpoint(id adapter.EndpointID, port io.ReadWriter) *portEndpoint {
	e := &portEndpoint{id: id, port: port}
	e.room = sync.NewCond(&e.mu)
	return e
}

func (e *portEndpoint) Buffered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rx)
}

func (e *portEndpoint) Receive(p []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := copy(p, e.rx)
	e.rx = e.rx[n:]
	if n > 0 {
		e.room.Broadcast()
	}
	return n
}

// Send writes p. Zero-length packets have no equivalent on a tty and are
// skipped.
func (e *portEndpoint) Send(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	_, err := e.port.Write(p)
	return err
}

// pump reads from the port until ctx ends or the port fails, calling
// notify after every chunk.
func (e *portEndpoint) pump(ctx context.Context, notify func(adapter.EndpointID)) error {
	buf := make([]byte, 512)
	for ctx.Err() == nil {
		n, err := e.port.Read(buf)
		if n > 0 {
			e.mu.Lock()
			for len(e.rx) >= maxBuffered && ctx.Err() == nil {
				e.room.Wait()
			}
			e.rx = append(e.rx, buf[:n]...)
			e.mu.Unlock()
			notify(e.id)
		}
		switch {
		case err == nil, errors.Is(err, io.EOF):
			// read timeout
		case ctx.Err() != nil:
			return nil
		default:
			return &adapter.EndpointError{Endpoint: e.id, Err: err}
		}
	}
	return nil
}

// wake releases a pump blocked on a full buffer.
func (e *portEndpoint) wake() {
	e.mu.Lock()
	e.room.Broadcast()
	e.mu.Unlock()
}

// portTransport serves both endpoints from gadget serial ports. It is
// active while both pumps run.
type portTransport struct {
	blaster *portEndpoint
	flash   *portEndpoint
	state   atomic.Int32
}

func newPortTransport(blaster, flash io.ReadWriter) *portTransport {
	t := &portTransport{
		blaster: newPortEndpoint(adapter.EndpointBlaster, blaster),
		flash:   newPortEndpoint(adapter.EndpointFlash, flash),
	}
	t.state.Store(int32(adapter.StateActive))
	return t
}

func (t *portTransport) State() adapter.ConnState {
	return adapter.ConnState(t.state.Load())
}

func (t *portTransport) Endpoint(id adapter.EndpointID) adapter.Endpoint {
	if id == adapter.EndpointFlash {
		return t.flash
	}
	return t.blaster
}

// fail marks the transport broken and tells the controller.
func (t *portTransport) fail(ctl *adapter.Controller) {
	t.state.Store(int32(adapter.StateError))
	ctl.NotifyState()
}
