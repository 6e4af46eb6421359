// Package nandtest simulates an ONFI NAND chip behind a nand.Bus.
//
// Chip models the parts of the command set the adapter uses: reset, read
// ID, parameter page, features, status, uncached and cached page reads with
// separate data and cache registers, program and erase. Ready/busy is
// reported busy for a configurable number of polls after every operation
// so drivers that forget to wait read stale data.
package nandtest

import "github.com/moffa90/go-ordb3/nand"

// Load records one page read request.
type Load struct {
	Page uint32
	Mode nand.CacheMode
}

// SmallGeometry is a tiny layout that keeps tests fast: 64+8 byte pages,
// 4 pages per block, 32 blocks.
var SmallGeometry = nand.Geometry{
	BytesPerPage:      64,
	SpareBytesPerPage: 8,
	PagesPerBlock:     4,
	BlocksPerLUN:      32,
	LUNs:              1,
	AddressCycles:     0x23,
}

// ImageGeometry is the smallest test layout whose pages hold the flash
// directory: 256+16 byte pages, 4 pages per block, 16 blocks.
var ImageGeometry = nand.Geometry{
	BytesPerPage:      256,
	SpareBytesPerPage: 16,
	PagesPerBlock:     4,
	BlocksPerLUN:      16,
	LUNs:              1,
	AddressCycles:     0x23,
}

// MT29F2G08 is the layout of the part fitted to ORDB3 boards.
var MT29F2G08 = nand.Geometry{
	BytesPerPage:      2048,
	SpareBytesPerPage: 64,
	PartialPageBytes:  512,
	PartialSpareBytes: 16,
	PagesPerBlock:     64,
	BlocksPerLUN:      2048,
	LUNs:              1,
	AddressCycles:     0x23,
}

type output int

const (
	outNone output = iota
	outBytes
	outParam
	outStatus
	outData
)

// Chip is a simulated NAND chip. Exported fields may be changed by tests
// before the chip is used.
type Chip struct {
	Geometry nand.Geometry

	// ID is returned by Read ID at address 0x00. Bit 7 of byte 4 is
	// managed by the chip from the ECC state.
	ID [5]byte

	// Signature is returned by Read ID at address 0x20.
	Signature [4]byte

	// ParamPage is streamed by Read Parameter Page, repeated.
	ParamPage []byte

	// ECC is the state of internal ECC. LockECC makes set features ignore
	// the ECC enable bit.
	ECC     bool
	LockECC bool

	// BusyPolls is how many Ready polls report busy after an operation.
	BusyPolls int

	// Stall lists commands after which the chip never becomes ready.
	Stall map[byte]bool

	// BadBlocks carry a factory bad block marker and refuse program and
	// erase.
	BadBlocks map[uint32]bool

	// ECCFail lists pages that report a failed status once they reach the
	// cache register.
	ECCFail map[uint32]bool

	// Loads lists every page read in order.
	Loads []Load

	// Commands lists every latched command byte.
	Commands []byte

	// Opens and Closes count bus ownership changes.
	Opens, Closes int

	pages   map[uint32][]byte
	open    bool
	cle     bool
	ale     bool
	protect bool

	cmd     byte
	addr    []byte
	wdata   []byte
	feature [4]byte
	fail    bool
	busy    int

	out    output
	outBuf []byte
	outPos int

	dataReg  []byte
	dataPage uint32
	cache    []byte
	column   int
	prog     []byte
}

// New returns an erased Micron MT29F2G08-like chip with geometry g and
// internal ECC off.
func New(g nand.Geometry) *Chip {
	c := &Chip{
		Geometry:  g,
		ID:        [5]byte{nand.VendorMicron, nand.DeviceMT29F2G08ABAEA, 0x90, 0x95, 0x06},
		Signature: [4]byte{'O', 'N', 'F', 'I'},
		BusyPolls: 2,
		pages:     make(map[uint32][]byte),
	}
	c.ParamPage = nand.BuildParameterPage("MICRON", "MT29F2G08ABAEAWP", g)
	return c
}

// Page returns a copy of the raw page, main area followed by spare.
func (c *Chip) Page(page uint32) []byte {
	return append([]byte(nil), c.page(page)...)
}

// SetPage stores raw page contents directly, bypassing program rules.
func (c *Chip) SetPage(page uint32, data []byte) {
	p := c.blank()
	copy(p, data)
	c.pages[page] = p
}

// Hang makes the chip report busy until the next reset.
func (c *Chip) Hang() {
	c.busy = -1
}

// LoadsSince returns the loads recorded after the first n.
func (c *Chip) LoadsSince(n int) []Load {
	return append([]Load(nil), c.Loads[n:]...)
}

func (c *Chip) Open() error {
	c.open = true
	c.Opens++
	return nil
}

func (c *Chip) Close() error {
	c.open = false
	c.Closes++
	return nil
}

func (c *Chip) SetCLE(high bool) { c.cle = high }
func (c *Chip) SetALE(high bool) { c.ale = high }

func (c *Chip) SetWriteProtect(protect bool) { c.protect = protect }

func (c *Chip) Ready() bool {
	switch {
	case c.busy < 0:
		return false
	case c.busy > 0:
		c.busy--
		return false
	}
	return true
}

func (c *Chip) Write(p []byte) {
	if !c.open {
		return
	}
	for _, b := range p {
		switch {
		case c.cle:
			c.command(b)
		case c.ale:
			c.address(b)
		default:
			c.data(b)
		}
	}
}

func (c *Chip) Read(p []byte) {
	for i := range p {
		p[i] = c.readByte()
	}
}

func (c *Chip) readByte() byte {
	if !c.open {
		return 0xff
	}
	switch c.out {
	case outBytes:
		if c.outPos < len(c.outBuf) {
			c.outPos++
			return c.outBuf[c.outPos-1]
		}
		return 0
	case outParam:
		b := c.ParamPage[c.outPos%len(c.ParamPage)]
		c.outPos++
		return b
	case outStatus:
		return c.status()
	case outData:
		if c.column < len(c.cache) {
			c.column++
			return c.cache[c.column-1]
		}
		return 0xff
	}
	return 0xff
}

func (c *Chip) status() byte {
	var s byte
	if c.busy == 0 {
		s |= nand.StatusReady | nand.StatusArrayReady
	}
	if c.fail {
		s |= nand.StatusFail
	}
	if !c.protect {
		s |= nand.StatusWriteEnabled
	}
	return s
}

func (c *Chip) command(b byte) {
	c.Commands = append(c.Commands, b)

	switch b {
	case nand.CmdReset:
		c.cmd = b
		c.out = outNone
		c.fail = false
		c.busy = 0
		c.setBusy(b)

	case nand.CmdReadStatus:
		c.out = outStatus

	case nand.CmdRead:
		if c.out == outStatus && c.cmd == nand.CmdRead {
			c.out = outData
		}
		c.cmd = b
		c.addr = c.addr[:0]

	case byte(nand.Uncached), byte(nand.Cached), byte(nand.Last):
		c.pageRead(nand.CacheMode(b))

	case nand.CmdProgram:
		c.cmd = b
		c.addr = c.addr[:0]
		c.prog = c.blank()
		c.column = 0

	case nand.CmdProgramConfirm:
		if c.cmd == nand.CmdProgram {
			c.program()
		}

	case nand.CmdEraseConfirm:
		if c.cmd == nand.CmdErase {
			c.erase()
		}

	default:
		c.cmd = b
		c.addr = c.addr[:0]
		c.wdata = c.wdata[:0]
		c.out = outNone
	}
}

func (c *Chip) address(b byte) {
	c.addr = append(c.addr, b)

	switch c.cmd {
	case nand.CmdReadID:
		c.out = outBytes
		c.outPos = 0
		switch b {
		case nand.IDAddrONFI:
			c.outBuf = append([]byte(nil), c.Signature[:]...)
		case nand.IDAddrManufacturer:
			id := c.ID
			if c.ECC {
				id[4] |= nand.IDByteECCEnabled
			} else {
				id[4] &^= nand.IDByteECCEnabled
			}
			c.outBuf = id[:]
		default:
			c.outBuf = nil
		}

	case nand.CmdReadParamPage:
		c.out = outParam
		c.outPos = 0
		c.setBusy(c.cmd)

	case nand.CmdGetFeatures:
		c.out = outBytes
		c.outPos = 0
		c.outBuf = append([]byte(nil), c.feature[:]...)
		c.setBusy(c.cmd)

	case nand.CmdProgram:
		if len(c.addr) == c.Geometry.ColumnCycles() {
			c.column = int(le(c.addr))
		}
	}
}

func (c *Chip) data(b byte) {
	switch c.cmd {
	case nand.CmdSetFeatures:
		c.wdata = append(c.wdata, b)
		if len(c.wdata) == 4 {
			if len(c.addr) > 0 && c.addr[0] == nand.FeatureArrayMode {
				copy(c.feature[:], c.wdata)
				if !c.LockECC {
					c.ECC = c.wdata[0]&nand.ArrayModeECC != 0
				}
			}
			c.setBusy(c.cmd)
		}
	case nand.CmdProgram:
		if c.column < len(c.prog) {
			c.prog[c.column] = b
			c.column++
		}
	}
}

func (c *Chip) pageRead(mode nand.CacheMode) {
	col, row := c.split(c.addr)
	c.Loads = append(c.Loads, Load{Page: row, Mode: mode})

	cached := c.dataPage
	switch mode {
	case nand.Uncached:
		c.dataReg = c.Page(row)
		c.cache = append([]byte(nil), c.dataReg...)
		c.column = int(col)
		cached = row
	case nand.Cached:
		c.cache = c.dataReg
		c.dataReg = c.Page(row)
		c.column = 0
	case nand.Last:
		c.cache = c.dataReg
		c.column = 0
	}
	if mode != nand.Last {
		c.dataPage = row
	}
	c.fail = c.ECCFail[cached]
	c.cmd = nand.CmdRead
	c.out = outData
	c.setBusy(byte(mode))
}

func (c *Chip) program() {
	_, row := c.split(c.addr)
	c.cmd = 0
	c.fail = c.protect || c.BadBlocks[row/c.Geometry.PagesPerBlock]
	if !c.fail {
		p := c.page(row)
		next := make([]byte, len(p))
		for i := range p {
			next[i] = p[i] & c.prog[i]
		}
		c.pages[row] = next
	}
	c.setBusy(nand.CmdProgramConfirm)
}

func (c *Chip) erase() {
	row := uint32(le(c.addr))
	block := row / c.Geometry.PagesPerBlock
	c.cmd = 0
	c.fail = c.protect || c.BadBlocks[block]
	if !c.fail {
		first := block * c.Geometry.PagesPerBlock
		for p := first; p < first+c.Geometry.PagesPerBlock; p++ {
			delete(c.pages, p)
		}
	}
	c.setBusy(nand.CmdEraseConfirm)
}

func (c *Chip) setBusy(cmd byte) {
	if c.busy < 0 {
		return
	}
	if c.Stall[cmd] {
		c.busy = -1
		return
	}
	c.busy = c.BusyPolls
}

func (c *Chip) split(addr []byte) (col uint64, row uint32) {
	n := c.Geometry.ColumnCycles()
	if n > len(addr) {
		n = len(addr)
	}
	return le(addr[:n]), uint32(le(addr[n:]))
}

func (c *Chip) page(page uint32) []byte {
	if p, ok := c.pages[page]; ok {
		return p
	}
	p := c.blank()
	if c.BadBlocks[page/c.Geometry.PagesPerBlock] && page%c.Geometry.PagesPerBlock == 0 {
		p[c.Geometry.BytesPerPage] = 0
	}
	return p
}

func (c *Chip) blank() []byte {
	p := make([]byte, c.Geometry.RawPageSize())
	for i := range p {
		p[i] = 0xff
	}
	return p
}

func le(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}
