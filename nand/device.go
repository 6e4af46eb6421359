package nand

import "fmt"

// Info describes a probed chip.
type Info struct {
	// ID holds the five Read ID bytes at address 0x00.
	ID [5]byte

	// Known is true for the part the firmware knows how to configure.
	Known bool

	// ECCEnabled is true when ID byte 4 reported internal ECC on.
	ECCEnabled bool

	Manufacturer string
	Model        string
	Geometry     Geometry
}

// Device drives one NAND chip through a Bus.
//
// Device is not safe for concurrent use. The bus has a single owner at any
// time: the bitstream pager at boot, the flash endpoint afterwards.
type Device struct {
	bus    Bus
	config Config

	open  bool
	info  Info
	geom  Geometry
	valid bool

	one [1]byte
}

// New creates a device on bus. The bus is not touched until Open or Probe.
func New(bus Bus, opts ...Option) *Device {
	if bus == nil {
		panic("bus cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Device{bus: bus, config: cfg}
}

// Open takes the bus and selects the chip. Opening an open device is a
// no-op.
func (d *Device) Open() error {
	if d.open {
		return nil
	}
	if err := d.bus.Open(); err != nil {
		return fmt.Errorf("open nand bus: %w", err)
	}
	d.bus.SetCLE(false)
	d.bus.SetALE(false)
	d.open = true
	return nil
}

// Close deselects the chip and releases the bus.
func (d *Device) Close() error {
	if !d.open {
		return nil
	}
	d.open = false
	if err := d.bus.Close(); err != nil {
		return fmt.Errorf("close nand bus: %w", err)
	}
	return nil
}

// IsOpen reports whether the device holds the bus.
func (d *Device) IsOpen() bool {
	return d.open
}

// Geometry returns the geometry committed by the last successful probe.
func (d *Device) Geometry() (Geometry, bool) {
	return d.geom, d.valid
}

// Info returns what the last successful probe learned.
func (d *Device) Info() Info {
	return d.info
}

// Command latches one command byte.
func (d *Device) Command(cmd byte) {
	d.bus.SetCLE(true)
	d.one[0] = cmd
	d.bus.Write(d.one[:])
	d.bus.SetCLE(false)
}

// Address latches address bytes.
func (d *Device) Address(addr ...byte) {
	if len(addr) == 0 {
		return
	}
	d.bus.SetALE(true)
	d.bus.Write(addr)
	d.bus.SetALE(false)
}

// WriteData writes data bytes.
func (d *Device) WriteData(p []byte) {
	d.bus.Write(p)
}

// ReadData reads data bytes.
func (d *Device) ReadData(p []byte) {
	d.bus.Read(p)
}

// ReadByte reads one data byte.
func (d *Device) ReadByte() (byte, error) {
	if !d.open {
		return 0, ErrClosed
	}
	d.bus.Read(d.one[:])
	return d.one[0], nil
}

// Ready reports the ready/busy line without waiting.
func (d *Device) Ready() bool {
	return d.bus.Ready()
}

// WaitReady polls the ready/busy line up to the configured budget and
// reports whether the chip became ready.
func (d *Device) WaitReady() bool {
	for i := 0; i < d.config.ReadyPolls; i++ {
		if d.bus.Ready() {
			return true
		}
	}
	return d.bus.Ready()
}

// SetWriteProtect drives WP#. Program and erase fail while protected.
func (d *Device) SetWriteProtect(protect bool) {
	d.bus.SetWriteProtect(protect)
}

// ReadStatus returns the status byte. Bit 0 is the pass/fail result of
// the previous program or erase.
func (d *Device) ReadStatus() byte {
	d.Command(CmdReadStatus)
	d.bus.Read(d.one[:])
	return d.one[0]
}

// ResumeRead returns the chip to page data output after ReadStatus,
// continuing at the column where reading stopped.
func (d *Device) ResumeRead() {
	d.Command(CmdRead)
}

// LoadPage waits for the previous operation, then requests page with the
// given cache mode. It does not wait for the page; poll WaitReady before
// reading. Without a probed geometry a two column, three row cycle layout
// is assumed.
func (d *Device) LoadPage(page uint32, mode CacheMode) error {
	if !d.open {
		return ErrClosed
	}
	if !d.WaitReady() {
		return fmt.Errorf("load page %d: %w", page, ErrNotReady)
	}

	cols, rows := defaultColumnCycles, defaultRowCycles
	if d.valid {
		cols, rows = d.geom.ColumnCycles(), d.geom.RowCycles()
	}

	var buf [8]byte
	addr := appendAddress(buf[:0], cols, rows, page, 0)

	d.Command(CmdRead)
	d.Address(addr...)
	d.Command(byte(mode))
	return nil
}
