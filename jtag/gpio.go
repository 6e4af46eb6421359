package jtag

import (
	"errors"
	"fmt"
	"math/bits"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// GPIOPins drives a JTAG chain through periph.io pins.
//
// Pin writes cannot report errors through the Pins interface, so the first
// failure is kept and returned by Err.
type GPIOPins struct {
	tck gpio.PinOut
	tms gpio.PinOut
	tdi gpio.PinOut
	tdo gpio.PinIn
	led gpio.PinOut

	conn spi.Conn
	mux  func(fast bool) error

	wbuf []byte
	rbuf []byte
	in   []byte
	err  error
}

// GPIOConfig names the pins of a GPIO board.
type GPIOConfig struct {
	TCK gpio.PinOut
	TMS gpio.PinOut
	TDI gpio.PinOut
	TDO gpio.PinIn

	// LED is optional.
	LED gpio.PinOut

	// SPI, when set, clocks byte runs. The controller must be MSB first,
	// mode 0, with chip select unused; bytes are bit reversed on the way
	// in and out.
	SPI spi.Conn

	// Mux, when set, is called with true before a byte run and false after
	// it so the board can hand TCK/TDI/TDO over to the SPI controller.
	Mux func(fast bool) error
}

// NewGPIOPins configures TDO as a pulled-up input and returns the pin set.
// The returned value implements FastEngine only when cfg.SPI is set; use
// Pins to obtain the right interface value.
func NewGPIOPins(cfg GPIOConfig) (*GPIOPins, error) {
	if cfg.TCK == nil || cfg.TMS == nil || cfg.TDI == nil || cfg.TDO == nil {
		return nil, errors.New("TCK, TMS, TDI and TDO pins are required")
	}
	if err := cfg.TDO.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure TDO %s: %w", cfg.TDO, err)
	}
	return &GPIOPins{
		tck:  cfg.TCK,
		tms:  cfg.TMS,
		tdi:  cfg.TDI,
		tdo:  cfg.TDO,
		led:  cfg.LED,
		conn: cfg.SPI,
		mux:  cfg.Mux,
	}, nil
}

// Pins returns p as a Pins value that exposes FastEngine only when an SPI
// connection was configured.
func (p *GPIOPins) Pins() Pins {
	if p.conn == nil {
		return slowPins{p}
	}
	return p
}

// Err returns the first pin or bus error seen since creation.
func (p *GPIOPins) Err() error {
	return p.err
}

func (p *GPIOPins) SetTCK(l gpio.Level) { p.out(p.tck, l) }
func (p *GPIOPins) SetTMS(l gpio.Level) { p.out(p.tms, l) }
func (p *GPIOPins) SetTDI(l gpio.Level) { p.out(p.tdi, l) }

func (p *GPIOPins) SetLED(l gpio.Level) {
	if p.led != nil {
		p.out(p.led, l)
	}
}

func (p *GPIOPins) TDO() gpio.Level {
	return p.tdo.Read()
}

// StartShift runs the whole SPI transaction; FinishShift copies the result.
func (p *GPIOPins) StartShift(out, in []byte) {
	if cap(p.wbuf) < len(out) {
		p.wbuf = make([]byte, len(out))
		p.rbuf = make([]byte, len(out))
	}
	w, r := p.wbuf[:len(out)], p.rbuf[:len(out)]
	for i, b := range out {
		w[i] = bits.Reverse8(b)
	}
	p.in = in

	if p.mux != nil {
		p.keep(p.mux(true))
	}
	if err := p.conn.Tx(w, r); err != nil {
		p.keep(fmt.Errorf("spi %s: %w", p.conn, err))
		for i := range r {
			r[i] = 0
		}
	}
	if p.mux != nil {
		p.keep(p.mux(false))
	}
}

func (p *GPIOPins) FinishShift() {
	if p.in != nil {
		for i := range p.in {
			p.in[i] = bits.Reverse8(p.rbuf[i])
		}
		p.in = nil
	}
}

func (p *GPIOPins) out(pin gpio.PinOut, l gpio.Level) {
	p.keep(pin.Out(l))
}

func (p *GPIOPins) keep(err error) {
	if err != nil && p.err == nil {
		p.err = err
	}
}

// slowPins hides the FastEngine methods of a GPIOPins without SPI.
type slowPins struct{ p *GPIOPins }

func (s slowPins) SetTCK(l gpio.Level) { s.p.SetTCK(l) }
func (s slowPins) SetTMS(l gpio.Level) { s.p.SetTMS(l) }
func (s slowPins) SetTDI(l gpio.Level) { s.p.SetTDI(l) }
func (s slowPins) SetLED(l gpio.Level) { s.p.SetLED(l) }
func (s slowPins) TDO() gpio.Level     { return s.p.TDO() }
