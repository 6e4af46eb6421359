package jtagtest

import (
	"testing"

	"periph.io/x/conn/v3/gpio"
)

// clock drives one full TCK cycle with the given TMS and TDI.
func clock(c *Chain, tms, tdi gpio.Level) {
	c.SetTMS(tms)
	c.SetTDI(tdi)
	c.SetTCK(gpio.High)
	c.SetTCK(gpio.Low)
}

func TestChainEdges(t *testing.T) {
	c := &Chain{}
	clock(c, gpio.Low, gpio.Low)
	if c.State() != RunTestIdle {
		t.Fatalf("State() = %v after one TMS=0 clock, want Run-Test/Idle", c.State())
	}

	// Holding TCK high or low is not an edge.
	c.SetTMS(gpio.High)
	c.SetTCK(gpio.High)
	c.SetTCK(gpio.High)
	if c.State() != SelectDRScan {
		t.Fatalf("State() = %v after a held TCK, want Select-DR-Scan", c.State())
	}
	c.SetTCK(gpio.Low)
	c.SetTCK(gpio.Low)
	if c.State() != SelectDRScan {
		t.Errorf("falling edge moved the TAP to %v", c.State())
	}

	for i := 0; i < 5; i++ {
		clock(c, gpio.High, gpio.Low)
	}
	if c.State() != TestLogicReset || c.Resets != 1 {
		t.Errorf("State() = %v, Resets = %d; want Test-Logic-Reset, 1", c.State(), c.Resets)
	}
}

func TestChainIdleCount(t *testing.T) {
	c := &Chain{}
	for i := 0; i < 4; i++ {
		clock(c, gpio.Low, gpio.Low)
	}
	if c.Idle != 3 {
		t.Errorf("Idle = %d, want 3", c.Idle)
	}
}

func TestChainIRScan(t *testing.T) {
	c := &Chain{}
	clock(c, gpio.Low, gpio.Low) // Run-Test/Idle
	for _, tms := range []gpio.Level{gpio.High, gpio.High, gpio.Low, gpio.Low} {
		clock(c, tms, gpio.Low)
	}
	if c.State() != ShiftIR {
		t.Fatalf("State() = %v, want Shift-IR", c.State())
	}

	// 0b1010, least significant bit first, TMS high on the last bit.
	bits := []gpio.Level{gpio.Low, gpio.High, gpio.Low, gpio.High}
	for i, b := range bits {
		clock(c, gpio.Level(i == len(bits)-1), b)
	}
	clock(c, gpio.High, gpio.Low) // Update-IR
	clock(c, gpio.Low, gpio.Low)  // Run-Test/Idle

	if c.IR() != 0xa {
		t.Errorf("IR() = %#x, want 0xa", c.IR())
	}
	if ir := c.IRValues(); len(ir) != 1 || ir[0] != 0xa {
		t.Errorf("IRValues() = %#x, want [0xa]", ir)
	}
}
