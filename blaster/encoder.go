package blaster

import (
	"github.com/moffa90/go-ordb3/jtag"
	"periph.io/x/conn/v3/gpio"
)

// Encoder builds a USB-Blaster stream and counts the reply bytes the
// adapter will send back for it.
type Encoder struct {
	buf     []byte
	replies int
	pins    jtag.PinState
}

// Pins appends one bit-mode command.
func (e *Encoder) Pins(p jtag.PinState, read bool) *Encoder {
	e.pins = p
	e.buf = append(e.buf, Encode(p, read))
	if read {
		e.replies++
	}
	return e
}

// Clock appends one full TCK cycle with the given TMS and TDI. When read is
// set, TDO is returned for the rising edge.
func (e *Encoder) Clock(tms, tdi, read bool) *Encoder {
	p := e.pins
	p.TMS, p.TDI = gpio.Level(tms), gpio.Level(tdi)
	p.TCK = gpio.High
	e.Pins(p, read)
	p.TCK = gpio.Low
	return e.Pins(p, false)
}

// TMS clocks n bits of tms, least significant first, with TDI low.
func (e *Encoder) TMS(tms uint64, n int) *Encoder {
	for i := 0; i < n; i++ {
		e.Clock(tms&(1<<uint(i)) != 0, false, false)
	}
	return e
}

// Data appends byte-mode runs for data, split at MaxShiftCount bytes.
func (e *Encoder) Data(data []byte, read bool) *Encoder {
	for len(data) > 0 {
		n := len(data)
		if n > MaxShiftCount {
			n = MaxShiftCount
		}
		h := byte(BitByteMode | n)
		if read {
			h |= BitRead
			e.replies += n
		}
		e.buf = append(e.buf, h)
		e.buf = append(e.buf, data[:n]...)
		data = data[n:]
	}
	return e
}

// Bytes returns the stream built so far.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Replies returns how many reply bytes the stream produces.
func (e *Encoder) Replies() int {
	return e.replies
}

// Reset empties the encoder.
func (e *Encoder) Reset() {
	*e = Encoder{buf: e.buf[:0]}
}
