// Package jtag drives a JTAG scan chain from four logical signals.
//
// The package is split between a board capability (Pins) and the shifter
// that implements IEEE 1149.1 edge timing on top of it. Boards differ in
// which physical pin carries which signal, so every board provides its own
// Pins implementation; the Shifter never touches hardware directly.
//
// # Edge Semantics
//
// Every clocked bit follows the same order:
//
//	TDI/TMS set -> TCK rising edge -> TDO sampled -> TCK falling edge
//
// Data is shifted least significant bit first, both out on TDI and back in
// from TDO.
//
// # Fast Path
//
// A Pins implementation may also implement FastEngine. The shifter then
// sends byte runs through the hardware serial engine with TMS held at its
// last driven level. A started fast transfer must be finished before any
// other JTAG operation; the Shifter does this automatically.
//
//	s := jtag.NewShifter(pins)
//	s.ShiftBits(0xff, 0xff, 8) // five TMS ones reach Test-Logic-Reset
//	s.ShiftBytes(out, in)
//
// # Board Variants
//
// GPIOPins drives periph.io pins and can offload byte runs to an
// spi.Conn. RPiPins drives the Raspberry Pi header directly with go-rpio
// and borrows the SPI0 controller for byte runs.
package jtag
