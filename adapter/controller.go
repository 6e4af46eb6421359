package adapter

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/moffa90/go-ordb3/bitstream"
	"github.com/moffa90/go-ordb3/blaster"
	"github.com/moffa90/go-ordb3/flashproto"
	"github.com/moffa90/go-ordb3/jtag"
	"github.com/moffa90/go-ordb3/nand"
)

// commandFlag marks a pending FPGA command byte.
const commandFlag = 0x80

// Controller owns every piece of adapter state: the JTAG engine, the flash
// session and the event flags set by other goroutines.
//
// Poll and Run must be called from a single goroutine. The Notify methods,
// Tick, FPGACommand and HandleControl are safe for concurrent use.
type Controller struct {
	transport Transport
	shifter   *jtag.Shifter
	blaster   *blaster.Engine
	flash     flashSession
	sleeper   *Sleeper
	config    Config

	powered bool
	rx      [flashproto.MaxPacketSize]byte
	tx      []byte

	blasterRx  atomic.Bool
	tick       atomic.Bool
	bootloader atomic.Bool
	flashOpen  atomic.Bool
	command    atomic.Uint32
	latency    atomic.Int32
}

// New creates a Controller. The board is assumed powered, as it is after
// bring-up.
//
// Example:
//
//	ctl := adapter.New(transport, jtag.NewShifter(pins), nand.New(bus),
//	    adapter.WithBoard(pmic),
//	    adapter.WithConfigurator(fpgacfg.New(shifter, fpgacfg.EP4CE22)),
//	)
//	if err := ctl.Boot(ctx); err != nil {
//	    log.Printf("FPGA not configured: %v", err)
//	}
//	err := ctl.Run(ctx)
func New(t Transport, shifter *jtag.Shifter, flash *nand.Device, opts ...Option) *Controller {
	if t == nil || shifter == nil || flash == nil {
		panic("transport, shifter and flash cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Controller{
		transport: t,
		shifter:   shifter,
		blaster:   blaster.New(shifter),
		flash:     flashSession{dev: flash},
		sleeper:   NewSleeper(SleepLight),
		config:    cfg,
		powered:   true,
	}
	c.latency.Store(int32(cfg.Latency))
	return c
}

// Sleeper returns the controller's sleeper.
func (c *Controller) Sleeper() *Sleeper {
	return c.sleeper
}

// Latency returns the heartbeat period.
func (c *Controller) Latency() time.Duration {
	return time.Duration(c.latency.Load()) * time.Millisecond
}

// Powered reports whether the controller believes the FPGA is powered.
func (c *Controller) Powered() bool {
	return c.powered
}

// FlashRequest returns what remains of the current flash request.
func (c *Controller) FlashRequest() flashproto.Request {
	return c.flash.req
}

// Blaster returns the USB-Blaster frame state.
func (c *Controller) Blaster() blaster.State {
	return c.blaster.State()
}

// Boot probes the flash and, with a configurator set, loads the FPGA from
// it. It must run before USB traffic is served since both use the JTAG
// pins. A failure leaves the adapter usable; the caller decides whether to
// retry.
func (c *Controller) Boot(ctx context.Context) error {
	dev := c.flash.dev

	// Phase 1: Identify the flash
	info, err := dev.Identify()
	if err != nil {
		c.logError("flash probe failed", "error", err)
		return fmt.Errorf("flash probe: %w", err)
	}
	g, _ := dev.Geometry()
	c.logInfo("flash identified",
		"manufacturer", info.Manufacturer,
		"model", info.Model,
		"ecc", info.ECCEnabled,
		"geometry", g.String(),
	)

	// Phase 2: Configure the FPGA
	if c.config.Configurator == nil {
		return nil
	}
	pager := bitstream.New(dev, g, c.config.PagerOptions...)
	err = c.config.Configurator.ConfigureFromFlash(ctx, pager)
	c.shifter.Reset()
	if err != nil {
		c.logError("FPGA configuration failed", "error", err)
		return err
	}
	return nil
}

// NotifyReceive tells the loop that data arrived on an endpoint.
func (c *Controller) NotifyReceive(id EndpointID) {
	if id == EndpointBlaster {
		c.blasterRx.Store(true)
	}
	c.sleeper.Wake()
}

// NotifyState tells the loop that the connection state changed.
func (c *Controller) NotifyState() {
	c.sleeper.Wake()
}

// Tick marks a heartbeat period as elapsed.
func (c *Controller) Tick() {
	c.tick.Store(true)
	c.sleeper.Wake()
}

// FPGACommand queues a 7-bit command byte from the FPGA. It is dropped
// while a flash request owns the shared data lines.
func (c *Controller) FPGACommand(cmd byte) bool {
	if c.flashOpen.Load() {
		return false
	}
	c.command.Store(uint32(cmd) | commandFlag)
	c.sleeper.Wake()
	return true
}

// Poll runs one pass of the main loop. It returns ErrBootloader once the
// host requested the bootloader, and endpoint errors from the flash
// endpoint.
func (c *Controller) Poll() error {
	if c.bootloader.Load() {
		return c.enterBootloader()
	}

	if v := c.command.Swap(0); v&commandFlag != 0 && c.config.CommandSink != nil {
		c.config.CommandSink(byte(v &^ commandFlag))
	}

	switch c.transport.State() {
	case StateDisconnected:
		c.sleeper.SetMode(SleepDeep)

	case StateActive:
		if !c.powered {
			c.setPower(true)
		}
		c.sleeper.SetMode(SleepLight)
		return c.serve()

	case StateSuspended:
		if c.powered {
			c.setPower(false)
		}
		c.sleeper.SetMode(SleepLight)

	default:
		c.sleeper.SetMode(SleepLight)
	}
	return nil
}

// Run polls until ctx ends or Poll fails, sleeping between passes. A
// heartbeat goroutine calls Tick every latency period.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go c.heartbeat(ctx)

	c.logInfo("adapter running", "latency", c.Latency())
	for {
		if err := c.Poll(); err != nil {
			return err
		}
		if _, err := c.sleeper.Sleep(ctx); err != nil {
			return err
		}
	}
}

func (c *Controller) heartbeat(ctx context.Context) {
	t := time.NewTimer(c.Latency())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Tick()
			t.Reset(c.Latency())
		}
	}
}

// serve handles both endpoints while the bus is active.
func (c *Controller) serve() error {
	bl := c.transport.Endpoint(EndpointBlaster)
	fl := c.transport.Endpoint(EndpointFlash)

	// USB-Blaster traffic
	if c.blasterRx.Swap(false) || bl.Buffered() > 0 {
		for {
			n := bl.Receive(c.rx[:])
			if n == 0 {
				break
			}
			if out := c.blaster.ProcessBuffer(c.rx[:n]); out > 0 {
				if err := c.sendBlaster(bl, c.rx[:out]); err != nil {
					c.logDebug("blaster reply dropped", "error", err)
				}
			}
		}
	}

	// Flash transactions
	busy, err := c.flash.service(c, fl)
	if err != nil {
		return err
	}
	if busy || c.flash.req.ReadLength > 0 || fl.Buffered() > 0 {
		c.sleeper.StayAwake()
	}

	// Heartbeat: empty packets flush partial transfers on the host side.
	// A failed send only means one was not needed.
	if c.tick.Swap(false) {
		var status []byte
		if c.config.ModemStatus {
			status = ModemStatus[:]
		}
		_ = bl.Send(status)
		_ = fl.Send(nil)
	}
	return nil
}

// sendBlaster sends reply bytes, split into FTDI style packets when the
// modem status header is enabled.
func (c *Controller) sendBlaster(ep Endpoint, p []byte) error {
	if !c.config.ModemStatus {
		if err := ep.Send(p); err != nil {
			return &EndpointError{Endpoint: EndpointBlaster, Err: err}
		}
		return nil
	}

	const payload = flashproto.MaxPacketSize - len(ModemStatus)
	for len(p) > 0 {
		n := len(p)
		if n > payload {
			n = payload
		}
		c.tx = append(c.tx[:0], ModemStatus[:]...)
		c.tx = append(c.tx, p[:n]...)
		if err := ep.Send(c.tx); err != nil {
			return &EndpointError{Endpoint: EndpointBlaster, Err: err}
		}
		p = p[n:]
	}
	return nil
}

func (c *Controller) setPower(on bool) {
	c.powered = on
	if c.config.Board == nil {
		return
	}
	var err error
	if on {
		err = c.config.Board.PowerUp()
	} else {
		err = c.config.Board.PowerDown()
	}
	if err != nil {
		c.logError("FPGA power switch failed", "on", on, "error", err)
		return
	}
	c.logInfo("FPGA power switched", "on", on)
}

func (c *Controller) enterBootloader() error {
	c.flash.release(c)
	if c.config.Bootloader != nil {
		if err := c.config.Bootloader(); err != nil {
			return fmt.Errorf("%w: %v", ErrBootloader, err)
		}
	}
	return ErrBootloader
}

// logDebug logs a debug message if a logger is configured.
func (c *Controller) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (c *Controller) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (c *Controller) logError(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(msg, keysAndValues...)
	}
}
