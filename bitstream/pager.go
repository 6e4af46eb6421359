package bitstream

import (
	"errors"
	"fmt"
	"io"

	"github.com/moffa90/go-ordb3/flashproto"
	"github.com/moffa90/go-ordb3/nand"
)

var (
	// ErrNoImage is returned by Setup when the directory does not list a
	// usable first block
	ErrNoImage = errors.New("bitstream: no image in flash directory")

	// ErrNotSetup is returned by reads before a successful Setup
	ErrNotSetup = errors.New("bitstream: pager not set up")
)

// ECCError reports a page the chip could not correct.
type ECCError struct {
	Page   uint32
	Status byte
}

func (e *ECCError) Error() string {
	return fmt.Sprintf("bitstream: uncorrectable page %d (status 0x%02X)", e.Page, e.Status)
}

// Device is the part of nand.Device the pager uses.
type Device interface {
	Open() error
	Close() error
	LoadPage(page uint32, mode nand.CacheMode) error
	WaitReady() bool
	ReadData(p []byte)
	ReadByte() (byte, error)
	ReadStatus() byte
	ResumeRead()
}

// Cursor is the pager position.
type Cursor struct {
	// BytesLeft is what remains of the page being drained.
	BytesLeft int

	// PageInBlock and BlockInList locate the most recently requested page.
	PageInBlock int
	BlockInList int
}

// Pager streams the configuration image out of NAND.
type Pager struct {
	dev    Device
	geom   nand.Geometry
	config Config

	dir    flashproto.Directory
	blocks []uint32
	total  int
	cur    Cursor

	requested int
	drained   int
	remaining int64
	lastPage  uint32
	inFlight  []uint32
	loads     int

	active  bool
	waiting bool
	closed  bool
	eof     bool
}

// New creates a pager over dev using the probed geometry g.
func New(dev Device, g nand.Geometry, opts ...Option) *Pager {
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Pager{dev: dev, geom: g, config: cfg}
}

// Setup opens the device, reads the directory and primes the pipeline with
// cached reads of the first two image pages. It fails without requesting
// any image page when the first directory entry is not a valid block.
func (p *Pager) Setup() error {
	*p = Pager{dev: p.dev, geom: p.geom, config: p.config}
	if err := p.geom.Validate(); err != nil {
		return fmt.Errorf("bitstream setup: %w", err)
	}
	if p.geom.RawPageSize() < flashproto.DirectorySize {
		return fmt.Errorf("bitstream setup: %d byte pages cannot hold the %d byte directory",
			p.geom.RawPageSize(), flashproto.DirectorySize)
	}
	if err := p.dev.Open(); err != nil {
		return fmt.Errorf("bitstream setup: %w", err)
	}

	if err := p.dev.LoadPage(flashproto.DirectoryPage, nand.Uncached); err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	if !p.dev.WaitReady() {
		return fmt.Errorf("load directory: %w", nand.ErrNotReady)
	}
	raw := make([]byte, flashproto.DirectorySize)
	p.dev.ReadData(raw)
	dir, err := flashproto.ParseDirectory(raw)
	if err != nil {
		return err
	}

	if !dir.FirstValid(p.geom.Blocks()) {
		return fmt.Errorf("%w: first entry %d", ErrNoImage, dir.Entries[0])
	}
	p.dir = dir
	p.blocks = dir.Blocks(p.geom.Blocks())
	p.total = len(p.blocks) * int(p.geom.PagesPerBlock)
	p.remaining = -1
	if dir.LengthKnown() {
		p.remaining = int64(dir.Length)
	}

	p.cur.BytesLeft = int(p.geom.BytesPerPage)
	p.active = true
	for i := 0; i < 2; i++ {
		if err := p.request(); err != nil {
			p.active = false
			return err
		}
	}
	if p.config.End == EndOfStream && p.remaining == 0 {
		return p.finish()
	}
	return nil
}

// Directory returns the directory read by Setup.
func (p *Pager) Directory() flashproto.Directory {
	return p.dir
}

// Blocks returns the usable block list.
func (p *Pager) Blocks() []uint32 {
	return p.blocks
}

// ImageLength returns the recorded image length, or -1.
func (p *Pager) ImageLength() int64 {
	if !p.dir.LengthKnown() {
		return -1
	}
	return int64(p.dir.Length)
}

// StreamLength returns how many bytes a consumer should take: the recorded
// image length, or every listed page when the length is unknown.
func (p *Pager) StreamLength() int64 {
	if n := p.ImageLength(); n >= 0 {
		return n
	}
	return int64(p.total) * int64(p.geom.BytesPerPage)
}

// Cursor returns the current position.
func (p *Pager) Cursor() Cursor {
	return p.cur
}

// Loads returns the number of image page requests issued since Setup. The
// directory read is not counted.
func (p *Pager) Loads() int {
	return p.loads
}

// ReadByte returns the next image byte. Crossing a page boundary issues
// the next lookahead request; the next call then waits for it.
func (p *Pager) ReadByte() (byte, error) {
	if !p.active {
		return 0, ErrNotSetup
	}
	if p.eof {
		return 0, io.EOF
	}
	if p.waiting {
		if err := p.settle(); err != nil {
			return 0, err
		}
	}

	b, err := p.dev.ReadByte()
	if err != nil {
		return 0, err
	}

	p.cur.BytesLeft--
	if p.remaining > 0 {
		p.remaining--
	}
	end := p.config.End == EndOfStream && p.remaining == 0
	if p.cur.BytesLeft == 0 {
		p.drained++
		if len(p.inFlight) > 0 {
			p.inFlight = p.inFlight[1:]
		}
		p.cur.BytesLeft = int(p.geom.BytesPerPage)
		end = end || (p.config.End == EndOfStream && p.drained >= p.total)
		if !end {
			if err := p.request(); err != nil {
				return b, err
			}
		}
	}
	if end {
		if err := p.finish(); err != nil {
			return b, err
		}
	}
	return b, nil
}

// Read implements io.Reader over ReadByte.
func (p *Pager) Read(buf []byte) (int, error) {
	for i := range buf {
		b, err := p.ReadByte()
		if err != nil {
			return i, err
		}
		buf[i] = b
	}
	return len(buf), nil
}

// Teardown closes the device and releases its pins.
func (p *Pager) Teardown() error {
	p.active = false
	return p.dev.Close()
}

// request issues the lookahead read for the next page in list order.
func (p *Pager) request() error {
	var idx int
	mode := nand.Cached
	switch {
	case p.requested < p.total:
		idx = p.requested
		p.requested++
	case p.config.End == EndRepeatLastPage:
		idx = p.total - 1
	case p.closed:
		return nil
	default:
		idx = p.total - 1
		mode = nand.Last
		p.closed = true
	}

	p.cur.BlockInList = idx / int(p.geom.PagesPerBlock)
	p.cur.PageInBlock = idx % int(p.geom.PagesPerBlock)
	page := p.geom.PageAddress(p.blocks[p.cur.BlockInList], uint32(p.cur.PageInBlock))

	if err := p.dev.LoadPage(page, mode); err != nil {
		return err
	}
	if mode == nand.Cached {
		p.inFlight = append(p.inFlight, page)
	}
	p.lastPage = page
	p.loads++
	p.waiting = true
	return nil
}

// finish marks the end of the stream and closes the cached-read sequence
// with a Last request if request has not already done so.
func (p *Pager) finish() error {
	p.eof = true
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.dev.LoadPage(p.lastPage, nand.Last); err != nil {
		return err
	}
	p.loads++
	p.waiting = true
	return nil
}

// settle waits for the outstanding request and checks the page now in the
// cache register.
func (p *Pager) settle() error {
	if !p.dev.WaitReady() {
		return fmt.Errorf("page %d: %w", p.lastPage, nand.ErrNotReady)
	}
	p.waiting = false

	if p.config.CheckECC {
		st := p.dev.ReadStatus()
		p.dev.ResumeRead()
		if st&nand.StatusFail != 0 {
			var page uint32
			if len(p.inFlight) > 0 {
				page = p.inFlight[0]
			}
			return &ECCError{Page: page, Status: st}
		}
	}
	return nil
}
