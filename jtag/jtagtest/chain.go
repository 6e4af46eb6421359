package jtagtest

import "periph.io/x/conn/v3/gpio"

// Scan is one completed shift through IR or DR.
type Scan struct {
	// IR is true for instruction register scans.
	IR bool

	// Instruction is the IR value in effect during a DR scan, or the value
	// loaded by an IR scan.
	Instruction uint64

	// Bits is the number of bits shifted.
	Bits int

	// Data holds the shifted TDI bits, least significant bit first. It is
	// only filled for DR scans when Chain.KeepData is set, and for every
	// IR scan.
	Data []byte
}

// Chain simulates a single-device scan chain behind a TAP controller.
//
// TDO changes on the falling edge like real parts do, so a driver that
// samples after the rising edge sees the bit presented before it.
type Chain struct {
	// Respond returns the TDO level for bit index of the current DR scan.
	// A nil Respond reads all zeros.
	Respond func(instruction uint64, bit int) gpio.Level

	// KeepData stores DR scan contents in Scans.
	KeepData bool

	// Scans lists completed scans in order.
	Scans []Scan

	// Idle counts rising edges spent in Run-Test/Idle.
	Idle int

	// Resets counts entries into Test-Logic-Reset.
	Resets int

	state State
	ir    uint64
	tck   gpio.Level
	tms   gpio.Level
	tdi   gpio.Level
	led   gpio.Level
	tdo   gpio.Level

	shift Scan
	count int
}

// State returns the current TAP state.
func (c *Chain) State() State { return c.state }

// IR returns the instruction last loaded through Update-IR.
func (c *Chain) IR() uint64 { return c.ir }

// LED returns the indicator level.
func (c *Chain) LED() gpio.Level { return c.led }

// DRScans returns the DR scans made while instruction was loaded.
func (c *Chain) DRScans(instruction uint64) []Scan {
	var out []Scan
	for _, s := range c.Scans {
		if !s.IR && s.Instruction == instruction {
			out = append(out, s)
		}
	}
	return out
}

// IRValues lists the instructions loaded so far.
func (c *Chain) IRValues() []uint64 {
	var out []uint64
	for _, s := range c.Scans {
		if s.IR {
			out = append(out, s.Instruction)
		}
	}
	return out
}

func (c *Chain) SetTCK(v gpio.Level) {
	switch {
	case v == gpio.High && c.tck == gpio.Low:
		c.rise()
	case v == gpio.Low && c.tck == gpio.High:
		c.fall()
	}
	c.tck = v
}

func (c *Chain) SetTMS(v gpio.Level) { c.tms = v }
func (c *Chain) SetTDI(v gpio.Level) { c.tdi = v }
func (c *Chain) SetLED(v gpio.Level) { c.led = v }
func (c *Chain) TDO() gpio.Level     { return c.tdo }

func (c *Chain) rise() {
	switch c.state {
	case ShiftDR, ShiftIR:
		keep := c.state == ShiftIR || c.KeepData
		if keep {
			if c.count%8 == 0 {
				c.shift.Data = append(c.shift.Data, 0)
			}
			if c.tdi {
				c.shift.Data[c.count/8] |= 1 << uint(c.count%8)
			}
		}
		c.count++
	case RunTestIdle:
		c.Idle++
	}

	prev := c.state
	c.state = c.state.Next(bool(c.tms))

	switch c.state {
	case TestLogicReset:
		if prev != TestLogicReset {
			c.Resets++
		}
		c.ir = 0
	case CaptureDR:
		c.shift = Scan{Instruction: c.ir}
		c.count = 0
	case CaptureIR:
		c.shift = Scan{IR: true}
		c.count = 0
	case UpdateDR:
		c.shift.Bits = c.count
		c.Scans = append(c.Scans, c.shift)
	case UpdateIR:
		c.shift.Bits = c.count
		var v uint64
		for i := 0; i < c.count && i < 64; i++ {
			if c.shift.Data[i/8]&(1<<uint(i%8)) != 0 {
				v |= 1 << uint(i)
			}
		}
		c.shift.Instruction = v
		c.ir = v
		c.Scans = append(c.Scans, c.shift)
	}
}

func (c *Chain) fall() {
	c.tdo = gpio.Low
	if c.state == ShiftDR && c.Respond != nil {
		c.tdo = c.Respond(c.ir, c.count)
	}
}

// FastChain adds a byte engine to Chain. Each byte is clocked bit by bit
// with TMS held, exactly as the serial controller would.
type FastChain struct {
	Chain

	// Runs records the length of every byte run.
	Runs []int

	in   []byte
	out  []byte
	busy bool
}

func (f *FastChain) StartShift(out, in []byte) {
	if f.busy {
		panic("jtagtest: StartShift while a run is pending")
	}
	f.busy = true
	f.Runs = append(f.Runs, len(out))
	f.in = in
	f.out = f.out[:0]
	for _, b := range out {
		var r byte
		for i := 0; i < 8; i++ {
			f.tdi = b&(1<<uint(i)) != 0
			f.SetTCK(gpio.High)
			if f.tdo {
				r |= 1 << uint(i)
			}
			f.SetTCK(gpio.Low)
		}
		f.out = append(f.out, r)
	}
}

func (f *FastChain) FinishShift() {
	if !f.busy {
		panic("jtagtest: FinishShift without StartShift")
	}
	f.busy = false
	if f.in != nil {
		copy(f.in, f.out)
	}
	f.in = nil
}
