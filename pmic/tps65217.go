package pmic

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
)

// ErrUnknownChip is returned when the chip ID names neither a TPS65217A
// nor a TPS65217B.
var ErrUnknownChip = errors.New("pmic: not a TPS65217A/B")

// VerifyError reports a protected register that did not keep its value.
type VerifyError struct {
	Reg       byte
	Want, Got byte
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("pmic: register 0x%02X reads 0x%02X after writing 0x%02X", e.Reg, e.Got, e.Want)
}

// Rail is one register setting of the power-on sequence.
type Rail struct {
	Reg   byte
	Value byte
}

// ORDB3ARails are the rail voltages of an ORDB3A board: 1.5 V DDR, 3.3 V
// I/O, 1.1 V FPGA core, 3.3 V MCU, 1.1 V transceivers, 2.5 V PLL.
var ORDB3ARails = []Rail{
	{RegDefDCDC1, DCDC1V5},
	{RegDefDCDC2, DCDC3V3},
	{RegDefDCDC3, DCDC1V1},
	{RegDefLDO1, LDO3V3},
	{RegDefLDO2, LDO1V1},
	{RegDefLS1, LSAsLDO | LS2V5},
	{RegDefLS2, LS3V3},
}

// Option configures a TPS65217.
type Option func(*TPS65217)

// WithButton reads the push button from pin instead of the status
// register. The pin is active low.
func WithButton(pin gpio.PinIn) Option {
	return func(t *TPS65217) {
		t.button = pin
	}
}

// WithEnablePin drives pin high at the end of Init to let the chip power
// the remaining rails.
func WithEnablePin(pin gpio.PinOut) Option {
	return func(t *TPS65217) {
		t.enable = pin
	}
}

// WithRails replaces the rail settings Init programs.
func WithRails(rails []Rail) Option {
	return func(t *TPS65217) {
		t.rails = rails
	}
}

// TPS65217 is a TPS65217 on an I2C bus.
type TPS65217 struct {
	dev    i2c.Dev
	button gpio.PinIn
	enable gpio.PinOut
	rails  []Rail
}

// New returns the chip at Addr on bus. It does not talk to the chip.
func New(bus i2c.Bus, opts ...Option) *TPS65217 {
	t := &TPS65217{
		dev:   i2c.Dev{Bus: bus, Addr: Addr},
		rails: ORDB3ARails,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *TPS65217) String() string {
	return fmt.Sprintf("TPS65217(%s)", &t.dev)
}

// ReadRegister returns the value of reg.
func (t *TPS65217) ReadRegister(reg byte) (byte, error) {
	var b [1]byte
	if err := t.dev.Tx([]byte{reg}, b[:]); err != nil {
		return 0, fmt.Errorf("pmic: read 0x%02X: %w", reg, err)
	}
	return b[0], nil
}

// WriteRegister writes an unprotected register.
func (t *TPS65217) WriteRegister(reg, v byte) error {
	if err := t.dev.Tx([]byte{reg, v}, nil); err != nil {
		return fmt.Errorf("pmic: write 0x%02X: %w", reg, err)
	}
	return nil
}

// WriteProtected writes a password protected register. level is 1 or 2;
// level 2 registers need the unlock and write sequence twice.
func (t *TPS65217) WriteProtected(reg, v byte, level int) error {
	for i := 0; i < level; i++ {
		if err := t.WriteRegister(RegPassword, PasswordKey^reg); err != nil {
			return err
		}
		if err := t.WriteRegister(reg, v); err != nil {
			return err
		}
	}
	return nil
}

// setVerified writes a level 2 register and reads it back.
func (t *TPS65217) setVerified(reg, v byte) error {
	if err := t.WriteProtected(reg, v, 2); err != nil {
		return err
	}
	got, err := t.ReadRegister(reg)
	if err != nil {
		return err
	}
	if got != v {
		return &VerifyError{Reg: reg, Want: v, Got: got}
	}
	return nil
}

// ChipID returns the chip number and revision.
func (t *TPS65217) ChipID() (chip, rev byte, err error) {
	id, err := t.ReadRegister(RegChipID)
	if err != nil {
		return 0, 0, err
	}
	return id >> 4, id & 0x0f, nil
}

// Init checks the chip ID, programs the rail voltages, applies them and
// enables every rail. With an enable pin it finally raises the pin so the
// chip powers the FPGA side of the board.
func (t *TPS65217) Init() error {
	chip, rev, err := t.ChipID()
	if err != nil {
		return err
	}
	if chip != ChipA && chip != ChipB {
		return fmt.Errorf("%w: chip 0x%X rev %d", ErrUnknownChip, chip, rev)
	}

	for _, r := range t.rails {
		if err := t.setVerified(r.Reg, r.Value); err != nil {
			return err
		}
	}

	// GO self-clears, so no read back.
	if err := t.WriteProtected(RegDefSlew, SlewGo|SlewFast, 2); err != nil {
		return err
	}
	if err := t.setVerified(RegEnable, EnableAll); err != nil {
		return err
	}

	if t.enable != nil {
		if err := t.enable.Out(gpio.High); err != nil {
			return fmt.Errorf("pmic: enable pin: %w", err)
		}
	}
	return nil
}

// PowerUp starts the sequencer's power-up of the FPGA rails.
func (t *TPS65217) PowerUp() error {
	return t.WriteProtected(RegSeq6, Seq6Up, 1)
}

// PowerDown starts the sequencer's power-down. The MCU supply stays on.
func (t *TPS65217) PowerDown() error {
	return t.WriteProtected(RegSeq6, Seq6Down, 1)
}

// ButtonPressed reports whether the push button is held.
func (t *TPS65217) ButtonPressed() (bool, error) {
	if t.button != nil {
		return t.button.Read() == gpio.Low, nil
	}
	s, err := t.ReadRegister(RegStatus)
	if err != nil {
		return false, err
	}
	return s&StatusPushButton != 0, nil
}
