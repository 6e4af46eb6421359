package jtag

import "periph.io/x/conn/v3/gpio"

// Pins is the board capability the shifter drives.
//
// Implementations map the logical JTAG signals onto whatever physical pins
// a board revision uses. Methods must not block.
type Pins interface {
	SetTCK(l gpio.Level)
	SetTMS(l gpio.Level)
	SetTDI(l gpio.Level)
	SetLED(l gpio.Level)
	TDO() gpio.Level
}

// FastEngine is implemented by Pins that can clock whole bytes through a
// synchronous serial controller.
//
// StartShift begins clocking len(out) bytes, least significant bit first,
// and may return before the transfer is done. in is either nil or as long
// as out. FinishShift waits for the transfer, stores the captured bytes in
// the in buffer passed to StartShift and returns the lines to plain GPIO.
type FastEngine interface {
	StartShift(out, in []byte)
	FinishShift()
}

// PinState is a snapshot of the JTAG lines for one bit-mode step.
type PinState struct {
	TCK gpio.Level
	TMS gpio.Level
	TDI gpio.Level
	TDO gpio.Level

	// LED drives the activity indicator, which doubles as output enable
	// on some boards.
	LED gpio.Level
}

// level converts the low bit of b to a pin level.
func level(b byte) gpio.Level {
	return gpio.Level(b&1 != 0)
}
