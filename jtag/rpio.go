package jtag

import (
	"fmt"
	"math/bits"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
)

// Raspberry Pi SPI0 lines, BCM numbering.
const (
	RPiSPI0MOSI = 10
	RPiSPI0MISO = 9
	RPiSPI0SCLK = 11
)

// RPiPins drives a JTAG chain wired to the Raspberry Pi header through
// /dev/gpiomem. The caller owns rpio.Open and rpio.Close.
//
// When Fast is set and TCK/TDI/TDO sit on the SPI0 SCLK/MOSI/MISO lines,
// byte runs temporarily switch those pins to the SPI0 function, the same
// way the adapter MCU swaps its pin mux.
type RPiPins struct {
	TCKPin rpio.Pin
	TMSPin rpio.Pin
	TDIPin rpio.Pin
	TDOPin rpio.Pin
	LEDPin rpio.Pin

	// HasLED enables LEDPin.
	HasLED bool

	// SpeedHz is the SPI0 clock used for byte runs. Zero keeps the
	// controller default.
	SpeedHz int

	in  []byte
	buf []byte
	err error
}

// Setup configures pin directions. TDO gets a pull-up so an unplugged
// chain reads as all ones.
func (p *RPiPins) Setup() {
	p.TCKPin.Output()
	p.TMSPin.Output()
	p.TDIPin.Output()
	p.TDOPin.Input()
	p.TDOPin.PullUp()
	if p.HasLED {
		p.LEDPin.Output()
	}
}

// Release returns every JTAG pin to a floating input.
func (p *RPiPins) Release() {
	for _, pin := range []rpio.Pin{p.TCKPin, p.TMSPin, p.TDIPin, p.TDOPin} {
		pin.Input()
		pin.PullOff()
	}
	if p.HasLED {
		p.LEDPin.Input()
	}
}

// OnSPI0 reports whether TCK/TDI/TDO are wired to the SPI0 lines, which is
// what the fast path needs.
func (p *RPiPins) OnSPI0() bool {
	return p.TCKPin == RPiSPI0SCLK && p.TDIPin == RPiSPI0MOSI && p.TDOPin == RPiSPI0MISO
}

// Pins returns p with the fast path exposed only when the wiring allows it.
func (p *RPiPins) Pins() Pins {
	if !p.OnSPI0() {
		return rpiSlow{p}
	}
	return p
}

// Err returns the first SPI error.
func (p *RPiPins) Err() error {
	return p.err
}

func (p *RPiPins) SetTCK(l gpio.Level) { write(p.TCKPin, l) }
func (p *RPiPins) SetTMS(l gpio.Level) { write(p.TMSPin, l) }
func (p *RPiPins) SetTDI(l gpio.Level) { write(p.TDIPin, l) }

func (p *RPiPins) SetLED(l gpio.Level) {
	if p.HasLED {
		write(p.LEDPin, l)
	}
}

func (p *RPiPins) TDO() gpio.Level {
	return p.TDOPin.Read() == rpio.High
}

// StartShift borrows SPI0 for the run. rpio.SpiExchange is synchronous, so
// the capture is complete on return.
func (p *RPiPins) StartShift(out, in []byte) {
	if cap(p.buf) < len(out) {
		p.buf = make([]byte, len(out))
	}
	buf := p.buf[:len(out)]
	for i, b := range out {
		buf[i] = bits.Reverse8(b)
	}
	p.in = in

	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("spi0 begin: %w", err)
		}
		for i := range buf {
			buf[i] = 0
		}
		return
	}
	if p.SpeedHz > 0 {
		rpio.SpiSpeed(p.SpeedHz)
	}
	rpio.SpiMode(0, 0)
	rpio.SpiExchange(buf)
	rpio.SpiEnd(rpio.Spi0)

	// SpiEnd leaves the lines as inputs.
	p.TCKPin.Output()
	p.TCKPin.Low()
	p.TDIPin.Output()
	p.TDOPin.Input()
	p.TDOPin.PullUp()
}

func (p *RPiPins) FinishShift() {
	if p.in != nil {
		for i := range p.in {
			p.in[i] = bits.Reverse8(p.buf[i])
		}
		p.in = nil
	}
}

func write(pin rpio.Pin, l gpio.Level) {
	if l {
		pin.High()
	} else {
		pin.Low()
	}
}

type rpiSlow struct{ p *RPiPins }

func (s rpiSlow) SetTCK(l gpio.Level) { s.p.SetTCK(l) }
func (s rpiSlow) SetTMS(l gpio.Level) { s.p.SetTMS(l) }
func (s rpiSlow) SetTDI(l gpio.Level) { s.p.SetTDI(l) }
func (s rpiSlow) SetLED(l gpio.Level) { s.p.SetLED(l) }
func (s rpiSlow) TDO() gpio.Level     { return s.p.TDO() }
