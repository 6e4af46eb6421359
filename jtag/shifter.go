package jtag

import "periph.io/x/conn/v3/gpio"

// MaxBits is the largest bit count accepted by ShiftBits.
const MaxBits = 8

// Shifter clocks bits and bytes through a JTAG chain.
//
// It keeps no TAP state; callers steer the TAP with TMS sequences. The only
// state it holds is the TMS level, which byte shifts keep constant, and
// whether a fast transfer is still outstanding.
//
// Shifter is not safe for concurrent use. One scan chain has one owner.
type Shifter struct {
	pins    Pins
	fast    FastEngine
	tms     gpio.Level
	pending bool
}

// NewShifter creates a shifter over pins and drives the lines to their idle
// levels. If pins implements FastEngine, byte runs use it.
func NewShifter(pins Pins) *Shifter {
	if pins == nil {
		panic("pins cannot be nil")
	}

	s := &Shifter{pins: pins}
	if f, ok := pins.(FastEngine); ok {
		s.fast = f
	}
	s.Reset()
	return s
}

// Reset finishes any pending transfer and drives TCK low with TMS and TDI
// high. It does not move the TAP.
func (s *Shifter) Reset() {
	s.finish()
	s.pins.SetTCK(gpio.Low)
	s.pins.SetTDI(gpio.High)
	s.setTMS(gpio.High)
	s.pins.SetLED(gpio.Low)
}

// TMS returns the level TMS is currently held at.
func (s *Shifter) TMS() gpio.Level {
	return s.tms
}

// ShiftBits clocks n bits of tdi and tms, least significant bit first, and
// returns the TDO bits sampled after each rising edge in the same order.
// n outside [1, 8] is clamped; n <= 0 returns 0 without clocking.
func (s *Shifter) ShiftBits(tdi, tms byte, n int) byte {
	if n <= 0 {
		return 0
	}
	if n > MaxBits {
		n = MaxBits
	}
	s.finish()

	var tdo byte
	for i := 0; i < n; i++ {
		s.pins.SetTDI(level(tdi))
		s.setTMS(level(tms))
		s.pins.SetTCK(gpio.High)
		if s.pins.TDO() {
			tdo |= 1 << uint(i)
		}
		s.pins.SetTCK(gpio.Low)
		tdi >>= 1
		tms >>= 1
	}
	return tdo
}

// StartShiftBytes starts shifting out through the chain with TMS held at its
// current level. Captured bytes land in in, which may be nil or must be as
// long as out. in and out may be the same slice.
//
// Without a fast engine the transfer runs to completion before returning.
func (s *Shifter) StartShiftBytes(out, in []byte) {
	s.finish()
	if len(out) == 0 {
		return
	}

	if s.fast != nil {
		s.fast.StartShift(out, in)
		s.pending = true
		return
	}

	var tms byte
	if s.tms {
		tms = 0xff
	}
	for i, b := range out {
		r := s.ShiftBits(b, tms, 8)
		if in != nil {
			in[i] = r
		}
	}
}

// FinishShiftBytes completes a transfer begun by StartShiftBytes. It is a
// no-op when nothing is pending.
func (s *Shifter) FinishShiftBytes() {
	s.finish()
}

// ShiftBytes shifts out and waits for the result.
func (s *Shifter) ShiftBytes(out, in []byte) {
	s.StartShiftBytes(out, in)
	s.finish()
}

// JustClock pulses TCK count times with TMS and TDI unchanged.
func (s *Shifter) JustClock(count int) {
	s.finish()
	for ; count > 0; count-- {
		s.pins.SetTCK(gpio.High)
		s.pins.SetTCK(gpio.Low)
	}
}

// CheckOneBit shifts total zero bits through the chain with TMS low and
// returns the TDO level seen at position bit. The result is meaningless if
// bit is outside [0, total).
func (s *Shifter) CheckOneBit(total, bit int) gpio.Level {
	var seen gpio.Level
	for pos := 0; pos < total; pos += MaxBits {
		n := total - pos
		if n > MaxBits {
			n = MaxBits
		}
		v := s.ShiftBits(0, 0, n)
		if bit >= pos && bit < pos+n {
			seen = level(v >> uint(bit-pos))
		}
	}
	return seen
}

// Drive applies one bit-mode step: TDI, TMS and LED first, then TCK. It
// returns the state with TDO sampled after the clock edge.
func (s *Shifter) Drive(p PinState) PinState {
	s.finish()
	s.pins.SetTDI(p.TDI)
	s.setTMS(p.TMS)
	s.pins.SetLED(p.LED)
	s.pins.SetTCK(p.TCK)
	p.TDO = s.pins.TDO()
	return p
}

func (s *Shifter) setTMS(l gpio.Level) {
	s.tms = l
	s.pins.SetTMS(l)
}

func (s *Shifter) finish() {
	if s.pending {
		s.pending = false
		s.fast.FinishShift()
	}
}
