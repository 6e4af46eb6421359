package adapter

import (
	"github.com/moffa90/go-ordb3/flashproto"
	"github.com/moffa90/go-ordb3/nand"
)

// flashSession tracks the request being served on the flash endpoint. The
// counts in req go down as bytes move; the session is waiting for a new
// header when they are all zero.
type flashSession struct {
	dev *nand.Device
	req flashproto.Request
	buf [flashproto.MaxPacketSize]byte

	// accepted and rejected count headers, for diagnostics
	accepted, rejected int
}

// service runs one step of the flash endpoint. It returns true when it
// moved data and the loop should not sleep.
func (s *flashSession) service(c *Controller, ep Endpoint) (bool, error) {
	if !s.dev.Ready() {
		return false, nil
	}

	switch {
	case s.req.Idle():
		s.release(c)
		n := ep.Buffered()
		if n >= flashproto.HeaderSize {
			got := ep.Receive(s.buf[:flashproto.HeaderSize])
			req, err := flashproto.ParseRequest(s.buf[:got])
			if err != nil {
				s.rejected++
				s.drain(ep)
				c.logDebug("flash request dropped", "error", err)
				return true, nil
			}
			s.accept(c, req)
			return true, nil
		}
		if n > 0 {
			// too short to be a header
			s.rejected++
			s.drain(ep)
			return true, nil
		}
		return false, nil

	case s.req.AddressBytes+s.req.WriteLength > 0:
		want := s.req.AddressBytes + s.req.WriteLength
		if want > len(s.buf) {
			want = len(s.buf)
		}
		n := ep.Receive(s.buf[:want])
		if n == 0 {
			return false, nil
		}
		s.feed(s.buf[:n])
		return true, nil

	default:
		n := s.req.ReadLength
		if n > flashproto.MaxPacketRead {
			n = flashproto.MaxPacketRead
		}
		s.dev.ReadData(s.buf[:n])
		s.req.ReadLength -= n
		if err := ep.Send(s.buf[:n]); err != nil {
			return true, &EndpointError{Endpoint: EndpointFlash, Err: err}
		}
		return true, nil
	}
}

// accept opens the flash, lifts write protection and latches the command.
func (s *flashSession) accept(c *Controller, req flashproto.Request) {
	if err := s.dev.Open(); err != nil {
		c.logError("flash open failed", "error", err)
		return
	}
	c.flashOpen.Store(true)
	s.dev.SetWriteProtect(false)
	s.dev.Command(req.Command)
	s.req = req
	s.accepted++
}

// feed sends address bytes with ALE, then write data. Address and data
// never share a latch cycle.
func (s *flashSession) feed(p []byte) {
	if s.req.AddressBytes > 0 {
		n := s.req.AddressBytes
		if n > len(p) {
			n = len(p)
		}
		s.dev.Address(p[:n]...)
		s.req.AddressBytes -= n
		p = p[n:]
	}
	if len(p) > 0 && s.req.WriteLength > 0 {
		n := s.req.WriteLength
		if n > len(p) {
			n = len(p)
		}
		s.dev.WriteData(p[:n])
		s.req.WriteLength -= n
	}
}

// release protects and closes the flash between requests so its data
// lines can carry FPGA commands.
func (s *flashSession) release(c *Controller) {
	if !s.dev.IsOpen() {
		return
	}
	s.dev.SetWriteProtect(true)
	if err := s.dev.Close(); err != nil {
		c.logError("flash close failed", "error", err)
	}
	c.flashOpen.Store(false)
}

// drain discards everything buffered on ep and resets to idle.
func (s *flashSession) drain(ep Endpoint) {
	for ep.Buffered() > 0 {
		if ep.Receive(s.buf[:]) == 0 {
			break
		}
	}
	s.req = flashproto.Request{}
}
