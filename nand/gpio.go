package nand

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
)

// GPIOBus bit-bangs the NAND interface over periph.io pins.
//
// Strobe and latch writes cannot fail through the Bus interface, so the
// first pin error is kept and returned by Err and by Close.
type GPIOBus struct {
	data [8]gpio.PinIO
	cle  gpio.PinIO
	ale  gpio.PinIO
	we   gpio.PinIO
	re   gpio.PinIO
	ce   gpio.PinIO
	wp   gpio.PinIO
	rb   gpio.PinIO

	driving bool
	err     error
}

// GPIOConfig names the NAND pins. The control lines are the active-low
// chip pins: WE is WE#, RE is RE#, CE is CE#, WP is WP# and RB is R/B#.
type GPIOConfig struct {
	Data [8]gpio.PinIO
	CLE  gpio.PinIO
	ALE  gpio.PinIO
	WE   gpio.PinIO
	RE   gpio.PinIO
	CE   gpio.PinIO
	RB   gpio.PinIO

	// WP is optional; without it the chip is assumed hard-wired writable.
	WP gpio.PinIO
}

// NewGPIOBus checks the pin set and returns a closed bus.
func NewGPIOBus(cfg GPIOConfig) (*GPIOBus, error) {
	for i, p := range cfg.Data {
		if p == nil {
			return nil, fmt.Errorf("data pin D%d is required", i)
		}
	}
	if cfg.CLE == nil || cfg.ALE == nil || cfg.WE == nil || cfg.RE == nil || cfg.CE == nil || cfg.RB == nil {
		return nil, errors.New("CLE, ALE, WE, RE, CE and RB pins are required")
	}
	return &GPIOBus{
		data: cfg.Data,
		cle:  cfg.CLE,
		ale:  cfg.ALE,
		we:   cfg.WE,
		re:   cfg.RE,
		ce:   cfg.CE,
		wp:   cfg.WP,
		rb:   cfg.RB,
	}, nil
}

// Err returns the first pin error since Open.
func (b *GPIOBus) Err() error {
	return b.err
}

func (b *GPIOBus) Open() error {
	b.err = nil
	b.out(b.cle, gpio.Low)
	b.out(b.ale, gpio.Low)
	b.out(b.we, gpio.High)
	b.out(b.re, gpio.High)
	if b.wp != nil {
		b.out(b.wp, gpio.Low)
	}
	b.keep(b.rb.In(gpio.PullUp, gpio.NoEdge))
	b.driving = true
	b.dataIn()
	b.out(b.ce, gpio.Low)
	return b.err
}

// Close deselects the chip and floats every line with a pull-up, except
// WP# which is pulled low so the chip stays write protected while another
// master owns the lines.
func (b *GPIOBus) Close() error {
	b.out(b.ce, gpio.High)
	pins := append(b.data[:0:0], b.data[:]...)
	pins = append(pins, b.cle, b.ale, b.we, b.re, b.ce)
	for _, p := range pins {
		b.keep(p.In(gpio.PullUp, gpio.NoEdge))
	}
	if b.wp != nil {
		b.keep(b.wp.In(gpio.PullDown, gpio.NoEdge))
	}
	b.driving = false
	return b.err
}

func (b *GPIOBus) SetCLE(high bool) { b.out(b.cle, gpio.Level(high)) }
func (b *GPIOBus) SetALE(high bool) { b.out(b.ale, gpio.Level(high)) }

func (b *GPIOBus) SetWriteProtect(protect bool) {
	if b.wp != nil {
		b.out(b.wp, gpio.Level(!protect))
	}
}

func (b *GPIOBus) Write(p []byte) {
	for _, v := range p {
		b.out(b.we, gpio.Low)
		for i, pin := range b.data {
			b.out(pin, gpio.Level(v&(1<<uint(i)) != 0))
		}
		b.driving = true
		b.out(b.we, gpio.High)
	}
}

func (b *GPIOBus) Read(p []byte) {
	b.dataIn()
	for n := range p {
		b.out(b.re, gpio.Low)
		var v byte
		for i, pin := range b.data {
			if pin.Read() {
				v |= 1 << uint(i)
			}
		}
		b.out(b.re, gpio.High)
		p[n] = v
	}
}

func (b *GPIOBus) Ready() bool {
	return bool(b.rb.Read())
}

func (b *GPIOBus) dataIn() {
	if !b.driving {
		return
	}
	for _, pin := range b.data {
		b.keep(pin.In(gpio.PullNoChange, gpio.NoEdge))
	}
	b.driving = false
}

func (b *GPIOBus) out(p gpio.PinIO, l gpio.Level) {
	b.keep(p.Out(l))
}

func (b *GPIOBus) keep(err error) {
	if err != nil && b.err == nil {
		b.err = err
	}
}
