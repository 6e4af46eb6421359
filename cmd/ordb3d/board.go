package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"

	"github.com/moffa90/go-ordb3/fpgacfg"
	"github.com/moffa90/go-ordb3/jtag"
	"github.com/moffa90/go-ordb3/nand"
	"github.com/moffa90/go-ordb3/pmic"
)

// Board describes how the adapter is wired on the host. Pin names are
// periph.io names (e.g. "GPIO17"); RPi pins are BCM numbers.
type Board struct {
	// Target names the FPGA profile, e.g. "EP4CE22". Empty skips
	// configuration at boot.
	Target string `json:"target"`

	JTAG *JTAGPins `json:"jtag"`
	RPi  *RPiPins  `json:"rpi"`
	NAND NANDPins  `json:"nand"`
	PMIC *PMICPins `json:"pmic"`

	Endpoints Endpoints `json:"endpoints"`

	// ModemStatus prefixes blaster replies with the FTDI status bytes
	ModemStatus bool `json:"modem_status"`

	// LatencyMS is the initial heartbeat period
	LatencyMS int `json:"latency_ms"`

	// ChunkSize is the configuration stream chunk
	ChunkSize int `json:"chunk_size"`
}

// JTAGPins are periph.io JTAG lines. SPI names a spireg port wired to the
// same TCK/TDI/TDO nets for byte runs.
type JTAGPins struct {
	TCK   string `json:"tck"`
	TMS   string `json:"tms"`
	TDI   string `json:"tdi"`
	TDO   string `json:"tdo"`
	LED   string `json:"led"`
	SPI   string `json:"spi"`
	SPIHz int64  `json:"spi_hz"`
}

// RPiPins are JTAG lines driven through go-rpio.
type RPiPins struct {
	TCK   int  `json:"tck"`
	TMS   int  `json:"tms"`
	TDI   int  `json:"tdi"`
	TDO   int  `json:"tdo"`
	LED   *int `json:"led"`
	SPIHz int  `json:"spi_hz"`
}

type NANDPins struct {
	Data [8]string `json:"data"`
	CLE  string    `json:"cle"`
	ALE  string    `json:"ale"`
	WE   string    `json:"we"`
	RE   string    `json:"re"`
	CE   string    `json:"ce"`
	RB   string    `json:"rb"`
	WP   string    `json:"wp"`
}

type PMICPins struct {
	// Bus is the i2creg name; empty opens the first bus.
	Bus    string `json:"bus"`
	Enable string `json:"enable"`
	Button string `json:"button"`
}

// Endpoints are the gadget serial devices carrying the two bulk pipes.
type Endpoints struct {
	Blaster string `json:"blaster"`
	Flash   string `json:"flash"`
}

// loadBoard reads a board description from path.
func loadBoard(path string) (*Board, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open board file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return parseBoard(f)
}

func parseBoard(r io.Reader) (*Board, error) {
	b := &Board{}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(b); err != nil {
		return nil, fmt.Errorf("failed to parse board: %w", err)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Board) validate() error {
	switch {
	case b.JTAG == nil && b.RPi == nil:
		return errors.New("board: one of jtag or rpi is required")
	case b.JTAG != nil && b.RPi != nil:
		return errors.New("board: jtag and rpi are exclusive")
	case b.Endpoints.Blaster == "" || b.Endpoints.Flash == "":
		return errors.New("board: both endpoints are required")
	}
	if b.Target != "" {
		if _, ok := fpgacfg.Targets[b.Target]; !ok {
			return fmt.Errorf("board: unknown target %q", b.Target)
		}
	}
	return nil
}

// pin resolves a periph pin name. An empty name yields nil.
func pin(name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, nil
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("unknown pin %q", name)
	}
	return p, nil
}

// pins resolves several names at once, stopping at the first error.
func pins(names ...string) ([]gpio.PinIO, error) {
	out := make([]gpio.PinIO, len(names))
	for i, n := range names {
		p, err := pin(n)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// open builds periph JTAG pins. The returned closer releases the SPI
// port if one was opened.
func (j *JTAGPins) open() (*jtag.GPIOPins, func() error, error) {
	ps, err := pins(j.TCK, j.TMS, j.TDI, j.TDO, j.LED)
	if err != nil {
		return nil, nil, fmt.Errorf("jtag: %w", err)
	}
	cfg := jtag.GPIOConfig{TCK: ps[0], TMS: ps[1], TDI: ps[2], TDO: ps[3]}
	if ps[4] != nil {
		cfg.LED = ps[4]
	}

	closer := func() error { return nil }
	if j.SPI != "" {
		port, err := spireg.Open(j.SPI)
		if err != nil {
			return nil, nil, fmt.Errorf("jtag: open %s: %w", j.SPI, err)
		}
		hz := j.SPIHz
		if hz <= 0 {
			hz = 6000000
		}
		conn, err := port.Connect(physic.Frequency(hz)*physic.Hertz, spi.Mode0|spi.NoCS, 8)
		if err != nil {
			_ = port.Close()
			return nil, nil, fmt.Errorf("jtag: connect %s: %w", j.SPI, err)
		}
		cfg.SPI = conn
		closer = port.Close
	}

	gp, err := jtag.NewGPIOPins(cfg)
	if err != nil {
		_ = closer()
		return nil, nil, fmt.Errorf("jtag: %w", err)
	}
	return gp, closer, nil
}

func (r *RPiPins) pins() *jtag.RPiPins {
	p := &jtag.RPiPins{
		TCKPin:  rpio.Pin(r.TCK),
		TMSPin:  rpio.Pin(r.TMS),
		TDIPin:  rpio.Pin(r.TDI),
		TDOPin:  rpio.Pin(r.TDO),
		SpeedHz: r.SPIHz,
	}
	if r.LED != nil {
		p.LEDPin = rpio.Pin(*r.LED)
		p.HasLED = true
	}
	return p
}

func (n *NANDPins) open() (*nand.GPIOBus, error) {
	var cfg nand.GPIOConfig
	data, err := pins(n.Data[:]...)
	if err != nil {
		return nil, fmt.Errorf("nand: %w", err)
	}
	copy(cfg.Data[:], data)
	ctl, err := pins(n.CLE, n.ALE, n.WE, n.RE, n.CE, n.RB, n.WP)
	if err != nil {
		return nil, fmt.Errorf("nand: %w", err)
	}
	cfg.CLE, cfg.ALE, cfg.WE, cfg.RE, cfg.CE, cfg.RB = ctl[0], ctl[1], ctl[2], ctl[3], ctl[4], ctl[5]
	if ctl[6] != nil {
		cfg.WP = ctl[6]
	}
	bus, err := nand.NewGPIOBus(cfg)
	if err != nil {
		return nil, fmt.Errorf("nand: %w", err)
	}
	return bus, nil
}

// open returns the PMIC and a closer for its bus.
func (p *PMICPins) open() (*pmic.TPS65217, func() error, error) {
	bus, err := i2creg.Open(p.Bus)
	if err != nil {
		return nil, nil, fmt.Errorf("pmic: open i2c %q: %w", p.Bus, err)
	}
	ps, err := pins(p.Enable, p.Button)
	if err != nil {
		_ = bus.Close()
		return nil, nil, fmt.Errorf("pmic: %w", err)
	}
	var opts []pmic.Option
	if ps[0] != nil {
		opts = append(opts, pmic.WithEnablePin(ps[0]))
	}
	if ps[1] != nil {
		opts = append(opts, pmic.WithButton(ps[1]))
	}
	return pmic.New(bus, opts...), bus.Close, nil
}
