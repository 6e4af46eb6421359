package fpgacfg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/moffa90/go-ordb3/jtag"
)

// ImageSource supplies a configuration image stored in flash. It is
// satisfied by *bitstream.Pager.
type ImageSource interface {
	io.Reader
	io.ByteReader

	// Setup opens the flash and primes the read pipeline
	Setup() error

	// Teardown releases the flash
	Teardown() error

	// StreamLength is the number of bytes to shift, or -1 to read until
	// the source returns io.EOF
	StreamLength() int64
}

// Configurator loads configuration images into one FPGA.
//
// Configurator is not safe for concurrent use; it owns the shifter for the
// duration of a call.
type Configurator struct {
	shifter *jtag.Shifter
	target  Target
	config  Config
}

// New creates a Configurator for target on the chain driven by shifter.
//
// Example:
//
//	shifter := jtag.NewShifter(pins)
//	cfg := fpgacfg.New(shifter, fpgacfg.EP4CE22, fpgacfg.WithLogger(logger))
//	err := cfg.ConfigureFromFlash(ctx, pager)
func New(shifter *jtag.Shifter, target Target, opts ...Option) *Configurator {
	if shifter == nil {
		panic("shifter cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Configurator{
		shifter: shifter,
		target:  target,
		config:  cfg,
	}
}

// Target returns the profile the configurator drives.
func (c *Configurator) Target() Target {
	return c.target
}

// ConfigureFromFlash opens src, configures the FPGA from it with the
// selected strategy and releases src again, whatever the outcome.
func (c *Configurator) ConfigureFromFlash(ctx context.Context, src ImageSource) (err error) {
	if src == nil {
		return fmt.Errorf("image source cannot be nil")
	}

	if c.config.Strategy == StrategyPlayer {
		if c.config.Player == nil {
			return ErrNoPlayer
		}
		h := NewHost(c.shifter, src, c.config)
		c.logInfo("running player", "target", c.target.Name)
		return h.run(ctx, c.config.Player)
	}

	if err := src.Setup(); err != nil {
		_ = src.Teardown()
		return fmt.Errorf("failed to open image: %w", err)
	}
	defer func() {
		if terr := src.Teardown(); terr != nil && err == nil {
			err = fmt.Errorf("failed to release image: %w", terr)
		}
	}()

	return c.Configure(ctx, src, src.StreamLength())
}

// Configure runs the direct configuration sequence, shifting length bytes
// from r into the device. A negative length streams until r returns io.EOF.
//
// It returns a *StatusError when the device does not report CONF_DONE. The
// operation can be cancelled via context between chunks; the TAP is left
// wherever it was and the next Configure resets it.
func (c *Configurator) Configure(ctx context.Context, r io.Reader, length int64) error {
	if r == nil {
		return fmt.Errorf("image reader cannot be nil")
	}
	if err := c.target.validate(); err != nil {
		return err
	}

	start := time.Now()
	t := c.target
	c.logInfo("configuring FPGA", "target", t.Name, "bytes", length)

	// Phase 1: Reset the TAP and put the device into configuration mode
	c.reportProgress(Progress{Phase: PhaseResetting, TotalBytes: length})
	c.resetTAP()
	c.loadIR(t.Program, false)
	c.shifter.JustClock(t.ResetClocks)

	// Phase 2: Stream the image into the PROGRAM data register
	c.enterShiftDR()
	sent, err := c.stream(ctx, r, length, start)
	if err != nil {
		c.logError("streaming failed", "target", t.Name, "sent", sent, "error", err)
		return err
	}
	c.exitShiftDR()
	c.logDebug("image streamed", "bytes", sent)

	// Phase 3: Read CONF_DONE through the status chain
	c.reportProgress(Progress{
		Phase:       PhaseChecking,
		BytesSent:   sent,
		TotalBytes:  length,
		Percentage:  95,
		ElapsedTime: time.Since(start),
	})
	c.loadIR(t.CheckStatus, true)
	c.shifter.JustClock(t.StatusClocks)
	c.pauseIRToShiftDR()
	done := c.shifter.CheckOneBit(t.StatusBits, t.ConfDoneBit)
	c.exitShiftDR()
	if !done {
		c.logError("CONF_DONE low", "target", t.Name, "bytes", sent)
		return &StatusError{Target: t.Name, Bit: t.ConfDoneBit, Bytes: sent}
	}

	// Phase 4: Start the device and park the chain in BYPASS
	c.reportProgress(Progress{
		Phase:       PhaseStarting,
		BytesSent:   sent,
		TotalBytes:  length,
		Percentage:  98,
		ElapsedTime: time.Since(start),
	})
	c.loadIR(t.Startup, false)
	c.shifter.JustClock(t.StartupClocks)
	c.loadIR(t.Bypass, false)
	c.shifter.JustClock(t.BypassClocks)

	c.reportProgress(Progress{
		Phase:       PhaseComplete,
		BytesSent:   sent,
		TotalBytes:  length,
		Percentage:  100,
		ElapsedTime: time.Since(start),
	})
	c.logInfo("FPGA configured", "target", t.Name, "bytes", sent, "elapsed", time.Since(start))
	return nil
}

// stream shifts the image with TMS held low. One chunk is read while the
// previous one is still being clocked out.
func (c *Configurator) stream(ctx context.Context, r io.Reader, length int64, start time.Time) (int64, error) {
	var bufs [2][]byte
	bufs[0] = make([]byte, c.config.ChunkSize)
	bufs[1] = make([]byte, c.config.ChunkSize)
	defer c.shifter.FinishShiftBytes()

	var sent int64
	for i := 0; length < 0 || sent < length; i ^= 1 {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		buf := bufs[i]
		if length >= 0 && length-sent < int64(len(buf)) {
			buf = buf[:length-sent]
		}
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			c.shifter.StartShiftBytes(buf[:n], nil)
			sent += int64(n)
		}
		if err != nil {
			if length < 0 && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
				break
			}
			return sent, fmt.Errorf("failed to read image at byte %d: %w", sent, err)
		}

		c.reportProgress(Progress{
			Phase:       PhaseStreaming,
			BytesSent:   sent,
			TotalBytes:  length,
			Percentage:  streamPercentage(sent, length),
			ElapsedTime: time.Since(start),
		})
	}
	return sent, nil
}

func streamPercentage(sent, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(sent) / float64(total) * 95
}

// resetTAP moves the TAP to Test-Logic-Reset from any state and then to
// Run-Test/Idle.
func (c *Configurator) resetTAP() {
	c.shifter.ShiftBits(0xff, 0xff, 8)
	c.shifter.ShiftBits(0xff, 0x00, 1)
}

// loadIR shifts op into the instruction register, starting and normally
// ending in Run-Test/Idle. With pause set it stops in Pause-IR instead.
func (c *Configurator) loadIR(op uint64, pause bool) {
	// Select-DR, Select-IR, Capture-IR, Shift-IR
	c.shifter.ShiftBits(0xff, 0b0011, 4)
	c.shiftLast(op, c.target.IRLength)
	if pause {
		c.shifter.ShiftBits(0xff, 0b0, 1)
		return
	}
	// Update-IR, Run-Test/Idle
	c.shifter.ShiftBits(0xff, 0b01, 2)
}

// shiftLast shifts the low n bits of v with TMS raised on the last one,
// leaving the TAP in Exit1.
func (c *Configurator) shiftLast(v uint64, n int) {
	for pos := 0; pos < n; pos += jtag.MaxBits {
		k := n - pos
		if k > jtag.MaxBits {
			k = jtag.MaxBits
		}
		var tms byte
		if pos+k == n {
			tms = 1 << uint(k-1)
		}
		c.shifter.ShiftBits(byte(v>>uint(pos)), tms, k)
	}
}

// enterShiftDR goes from Run-Test/Idle to Shift-DR.
func (c *Configurator) enterShiftDR() {
	c.shifter.ShiftBits(0xff, 0b001, 3)
}

// pauseIRToShiftDR goes from Pause-IR through Update-IR to Shift-DR.
func (c *Configurator) pauseIRToShiftDR() {
	c.shifter.ShiftBits(0xff, 0b00111, 5)
}

// exitShiftDR goes from Shift-DR through Update-DR to Run-Test/Idle. The
// exit clock shifts one padding bit.
func (c *Configurator) exitShiftDR() {
	c.shifter.ShiftBits(0xff, 0b011, 3)
}

// reportProgress calls the progress callback if configured.
func (c *Configurator) reportProgress(progress Progress) {
	if c.config.ProgressCallback != nil {
		c.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (c *Configurator) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (c *Configurator) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (c *Configurator) logError(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(msg, keysAndValues...)
	}
}
