package jtagtest

import "periph.io/x/conn/v3/gpio"

// Loopback is a chain with TDI wired to TDO. It counts rising TCK edges.
type Loopback struct {
	TCK, TMS, TDI, LED gpio.Level

	// Clocks counts rising TCK edges driven through the pins.
	Clocks int
}

func (l *Loopback) SetTCK(v gpio.Level) {
	if v && !l.TCK {
		l.Clocks++
	}
	l.TCK = v
}

func (l *Loopback) SetTMS(v gpio.Level) { l.TMS = v }
func (l *Loopback) SetTDI(v gpio.Level) { l.TDI = v }
func (l *Loopback) SetLED(v gpio.Level) { l.LED = v }
func (l *Loopback) TDO() gpio.Level     { return l.TDI }

// FastLoopback is a Loopback with a byte engine that echoes out into in.
type FastLoopback struct {
	Loopback

	// Runs records the length of every byte run.
	Runs []int
	// HeldTMS records the TMS level seen at the start of every run.
	HeldTMS []gpio.Level

	out, in []byte
	busy    bool
}

func (f *FastLoopback) StartShift(out, in []byte) {
	if f.busy {
		panic("jtagtest: StartShift while a run is pending")
	}
	f.busy = true
	f.out = append(f.out[:0], out...)
	f.in = in
	f.Runs = append(f.Runs, len(out))
	f.HeldTMS = append(f.HeldTMS, f.TMS)
}

func (f *FastLoopback) FinishShift() {
	if !f.busy {
		panic("jtagtest: FinishShift without StartShift")
	}
	f.busy = false
	if f.in != nil {
		copy(f.in, f.out)
	}
	if len(f.out) > 0 {
		f.TDI = f.out[len(f.out)-1]&0x80 != 0
	}
	f.in = nil
}

// Pending reports whether a run was started and not finished.
func (f *FastLoopback) Pending() bool {
	return f.busy
}
