// Package adaptertest provides an in-memory USB transport for driving an
// adapter.Controller without hardware.
package adaptertest

import (
	"errors"
	"sync"

	"github.com/moffa90/go-ordb3/adapter"
)

// Endpoint is an in-memory bulk endpoint pair. Bytes pushed by the host
// queue up as one stream; packets sent by the device are kept whole.
type Endpoint struct {
	mu   sync.Mutex
	rx   []byte
	tx   [][]byte
	fail error
}

// Push queues bytes from the host.
func (e *Endpoint) Push(p []byte) {
	e.mu.Lock()
	e.rx = append(e.rx, p...)
	e.mu.Unlock()
}

// Buffered implements adapter.Endpoint.
func (e *Endpoint) Buffered() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rx)
}

// Receive implements adapter.Endpoint.
func (e *Endpoint) Receive(p []byte) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := copy(p, e.rx)
	e.rx = e.rx[n:]
	return n
}

// Send implements adapter.Endpoint. It keeps a copy of p.
func (e *Endpoint) Send(p []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return e.fail
	}
	e.tx = append(e.tx, append([]byte{}, p...))
	return nil
}

// FailSends makes every Send return err until called with nil.
func (e *Endpoint) FailSends(err error) {
	e.mu.Lock()
	e.fail = err
	e.mu.Unlock()
}

// Sent returns and clears the packets sent so far.
func (e *Endpoint) Sent() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.tx
	e.tx = nil
	return out
}

// Data returns and clears the sent packets joined, skipping zero-length
// ones.
func (e *Endpoint) Data() []byte {
	var out []byte
	for _, p := range e.Sent() {
		out = append(out, p...)
	}
	return out
}

// next pops the first non-empty sent packet.
func (e *Endpoint) next() ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for len(e.tx) > 0 {
		p := e.tx[0]
		e.tx = e.tx[1:]
		if len(p) > 0 {
			return p, true
		}
	}
	return nil, false
}

// Transport is an in-memory adapter.Transport, active by default.
type Transport struct {
	Blaster Endpoint
	Flash   Endpoint

	mu    sync.Mutex
	state adapter.ConnState
}

// New returns an active transport.
func New() *Transport {
	return &Transport{state: adapter.StateActive}
}

// State implements adapter.Transport.
func (t *Transport) State() adapter.ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState changes the connection state.
func (t *Transport) SetState(s adapter.ConnState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Endpoint implements adapter.Transport.
func (t *Transport) Endpoint(id adapter.EndpointID) adapter.Endpoint {
	if id == adapter.EndpointFlash {
		return &t.Flash
	}
	return &t.Blaster
}

// ErrNoResponse is returned by Host.Read when the controller produced no
// packet within the poll budget.
var ErrNoResponse = errors.New("adaptertest: no response from controller")

// DefaultPolls is the poll budget of a Host.
const DefaultPolls = 10000

// Host is an io.ReadWriter over one endpoint, as the host side of the bus
// sees it. Writes and reads run the controller's main loop in the calling
// goroutine, so a test needs no scheduler.
type Host struct {
	ep      *Endpoint
	poll    func() error
	pending []byte

	// Polls bounds the number of loop passes per call.
	Polls int
}

// NewHost returns a Host on ep that calls poll to run the device.
//
// Example:
//
//	tr := adaptertest.New()
//	ctl := adapter.New(tr, shifter, flash)
//	host := adaptertest.NewHost(&tr.Flash, ctl.Poll)
//	client := flashclient.New(host)
func NewHost(ep *Endpoint, poll func() error) *Host {
	return &Host{ep: ep, poll: poll, Polls: DefaultPolls}
}

// Write queues p and polls until the controller consumed it.
func (h *Host) Write(p []byte) (int, error) {
	h.ep.Push(p)
	for i := 0; i < h.Polls && h.ep.Buffered() > 0; i++ {
		if err := h.poll(); err != nil {
			return len(p), err
		}
	}
	return len(p), nil
}

// Read returns the next packet, or its remainder if p is shorter. It
// polls until a packet arrives.
func (h *Host) Read(p []byte) (int, error) {
	for i := 0; len(h.pending) == 0; i++ {
		if pkt, ok := h.ep.next(); ok {
			h.pending = pkt
			break
		}
		if i >= h.Polls {
			return 0, ErrNoResponse
		}
		if err := h.poll(); err != nil {
			return 0, err
		}
	}
	n := copy(p, h.pending)
	h.pending = h.pending[n:]
	return n, nil
}
