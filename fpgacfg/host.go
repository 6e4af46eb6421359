package fpgacfg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/go-ordb3/jtag"
)

// Player interprets a JTAG programming file and drives a Host.
type Player interface {
	Play(ctx context.Context, h *Host) error
}

// PlayerFunc adapts a function to Player.
type PlayerFunc func(ctx context.Context, h *Host) error

// Play calls f(ctx, h).
func (f PlayerFunc) Play(ctx context.Context, h *Host) error {
	return f(ctx, h)
}

// Host is the callback surface a Player uses: pins through the shifter and
// the programming file through the image source.
//
// The integer conventions follow the common player host interface: a TDI
// or TDO argument of -1 means "don't care", and PulseTCK returns -1 on a
// TDO mismatch.
type Host struct {
	shifter *jtag.Shifter
	src     ImageSource
	config  Config
	errs    []*HostError
	open    bool
}

// NewHost creates a Host. Players normally receive one from
// Configurator.ConfigureFromFlash instead.
func NewHost(shifter *jtag.Shifter, src ImageSource, cfg Config) *Host {
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Host{shifter: shifter, src: src, config: cfg}
}

// Setup opens the image source.
func (h *Host) Setup() error {
	if h.open {
		return nil
	}
	if err := h.src.Setup(); err != nil {
		_ = h.src.Teardown()
		return err
	}
	h.open = true
	return nil
}

// Shutdown releases the image source. It is safe to call more than once.
func (h *Host) Shutdown() error {
	if !h.open {
		return nil
	}
	h.open = false
	return h.src.Teardown()
}

// Delay clocks TCK clocks times with TMS at tms and then waits at least
// usecs microseconds.
func (h *Host) Delay(usecs int, tms int, clocks int) {
	for ; clocks > 0; clocks-- {
		h.shifter.ShiftBits(0xff, byte(tms&1), 1)
	}
	if usecs > 0 {
		h.config.Sleep(time.Duration(usecs) * time.Microsecond)
	}
}

// GetByte returns the next byte of the programming file, or -1 at the end
// of the file or on a read error.
func (h *Host) GetByte() int {
	b, err := h.src.ReadByte()
	if err != nil {
		return -1
	}
	return int(b)
}

// PulseTCK clocks one bit. tdi of -1 keeps TDI high. When tdo is 0 or 1
// the sampled TDO must match it. The sampled bit is returned, or -1 on a
// mismatch. rmask and sync are accepted for interface compatibility; the
// shifter is always synchronous.
func (h *Host) PulseTCK(tms, tdi, tdo, rmask int, sync bool) int {
	in := byte(1)
	if tdi >= 0 {
		in = byte(tdi & 1)
	}
	got := int(h.shifter.ShiftBits(in, byte(tms&1), 1))
	if tdo >= 0 && got != tdo&1 {
		return -1
	}
	return got
}

// ReportError records an error raised by the player.
func (h *Host) ReportError(file string, line int, message string) {
	e := &HostError{File: file, Line: line, Message: message}
	h.errs = append(h.errs, e)
	if h.config.Logger != nil {
		h.config.Logger.Error("player error", "file", file, "line", line, "message", message)
	}
}

// Realloc returns buf resized to size bytes, keeping its contents.
func (h *Host) Realloc(buf []byte, size int) []byte {
	if size <= cap(buf) {
		return buf[:size]
	}
	grown := make([]byte, size)
	copy(grown, buf)
	return grown
}

// Errors returns the errors reported so far.
func (h *Host) Errors() []*HostError {
	return h.errs
}

// run plays p and folds reported errors into the result.
func (h *Host) run(ctx context.Context, p Player) (err error) {
	if err := h.Setup(); err != nil {
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if serr := h.Shutdown(); serr != nil && err == nil {
			err = fmt.Errorf("failed to release image: %w", serr)
		}
	}()

	if err := p.Play(ctx, h); err != nil {
		if len(h.errs) > 0 {
			return errors.Join(err, h.errs[0])
		}
		return err
	}
	if len(h.errs) > 0 {
		return h.errs[0]
	}
	return nil
}
