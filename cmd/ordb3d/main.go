// Command ordb3d runs the ORDB3 USB-Blaster and flash adapter on a Linux
// board wired to the FPGA's JTAG chain, its configuration NAND and its
// power management chip.
//
// The two bulk pipes are the ports of a USB serial gadget (for example
// g_serial with n_ports=2). The wiring is read from a JSON board file:
//
//	{
//	  "target": "EP4CE22",
//	  "rpi": {"tck": 11, "tms": 25, "tdi": 10, "tdo": 9, "led": 24},
//	  "nand": {
//	    "data": ["GPIO0", "GPIO1", "GPIO2", "GPIO3", "GPIO4", "GPIO5", "GPIO6", "GPIO7"],
//	    "cle": "GPIO12", "ale": "GPIO13", "we": "GPIO16", "re": "GPIO19",
//	    "ce": "GPIO20", "rb": "GPIO21", "wp": "GPIO26"
//	  },
//	  "pmic": {"enable": "GPIO17"},
//	  "endpoints": {"blaster": "/dev/ttyGS0", "flash": "/dev/ttyGS1"}
//	}
//
// Usage:
//
//	ordb3d -board /etc/ordb3/board.json -v=1 -logtostderr
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
	"github.com/stianeikeland/go-rpio/v4"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"

	"github.com/moffa90/go-ordb3/adapter"
	"github.com/moffa90/go-ordb3/fpgacfg"
	"github.com/moffa90/go-ordb3/internal/glogger"
	"github.com/moffa90/go-ordb3/jtag"
	"github.com/moffa90/go-ordb3/nand"
)

var (
	boardPath = flag.String("board", "/etc/ordb3/board.json", "board description file")
	noBoot    = flag.Bool("no-boot", false, "skip the flash probe and FPGA configuration")
	bootTries = flag.Int("boot-tries", 3, "configuration attempts before serving USB anyway")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	if err := run(); err != nil {
		glog.Exitf("ordb3d: %v", err)
	}
}

func run() error {
	board, err := loadBoard(*boardPath)
	if err != nil {
		return err
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("host initialization failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// JTAG lines
	var pins jtag.Pins
	if board.RPi != nil {
		if err := rpio.Open(); err != nil {
			return fmt.Errorf("rpio: %w", err)
		}
		defer func() { _ = rpio.Close() }()
		rp := board.RPi.pins()
		rp.Setup()
		defer rp.Release()
		pins = rp.Pins()
	} else {
		gp, closeSPI, err := board.JTAG.open()
		if err != nil {
			return err
		}
		defer func() { _ = closeSPI() }()
		pins = gp.Pins()
	}
	shifter := jtag.NewShifter(pins)

	// Flash bus
	bus, err := board.NAND.open()
	if err != nil {
		return err
	}
	flash := nand.New(bus)

	opts := []adapter.Option{
		adapter.WithLogger(glogger.Logger{Prefix: "adapter: "}),
		adapter.WithModemStatus(board.ModemStatus),
		adapter.WithCommandSink(func(cmd byte) {
			glog.V(1).Infof("FPGA command 0x%02x", cmd)
		}),
	}
	if board.LatencyMS > 0 {
		opts = append(opts, adapter.WithLatency(board.LatencyMS))
	}

	// Power
	if board.PMIC != nil {
		pm, closeI2C, err := board.PMIC.open()
		if err != nil {
			return err
		}
		defer func() { _ = closeI2C() }()
		if err := pm.Init(); err != nil {
			return fmt.Errorf("pmic init: %w", err)
		}
		glog.Infof("%s initialized", pm)
		opts = append(opts, adapter.WithBoard(pm))
	}

	if board.Target != "" {
		copts := []fpgacfg.Option{fpgacfg.WithLogger(glogger.Logger{Prefix: "fpgacfg: "})}
		if board.ChunkSize > 0 {
			copts = append(copts, fpgacfg.WithChunkSize(board.ChunkSize))
		}
		target := fpgacfg.Targets[board.Target]
		opts = append(opts, adapter.WithConfigurator(fpgacfg.New(shifter, target, copts...)))
	}

	// Endpoints
	blPort, err := openPort(board.Endpoints.Blaster)
	if err != nil {
		return err
	}
	defer func() { _ = blPort.Close() }()
	flPort, err := openPort(board.Endpoints.Flash)
	if err != nil {
		return err
	}
	defer func() { _ = flPort.Close() }()

	tr := newPortTransport(blPort, flPort)
	ctl := adapter.New(tr, shifter, flash, opts...)

	if !*noBoot {
		boot(ctx, ctl, *bootTries)
	}
	return serve(ctx, ctl, tr)
}

// boot configures the FPGA, giving up after tries attempts. The adapter is
// served either way so the host can repair the flash.
func boot(ctx context.Context, ctl *adapter.Controller, tries int) {
	for i := 1; i <= tries; i++ {
		err := ctl.Boot(ctx)
		if err == nil {
			return
		}
		glog.Errorf("boot attempt %d/%d failed: %v", i, tries, err)
		if ctx.Err() != nil || nand.IsProbeError(err) {
			return
		}
	}
}

// serve runs the endpoint pumps and the main loop until a signal arrives
// or one of them fails.
func serve(ctx context.Context, ctl *adapter.Controller, tr *portTransport) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range []*portEndpoint{tr.blaster, tr.flash} {
		ep := ep
		g.Go(func() error {
			err := ep.pump(gctx, ctl.NotifyReceive)
			if err != nil {
				tr.fail(ctl)
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		tr.blaster.wake()
		tr.flash.wake()
		return nil
	})
	g.Go(func() error {
		err := ctl.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	err := g.Wait()
	if errors.Is(err, adapter.ErrBootloader) {
		glog.Info("bootloader requested, exiting")
		return nil
	}
	return err
}
