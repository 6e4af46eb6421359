package flashclient

import (
	"fmt"
	"io"

	"github.com/moffa90/go-ordb3/flashproto"
	"github.com/moffa90/go-ordb3/nand"
)

// Client issues flash requests over an adapter's flash endpoint.
type Client struct {
	dev    io.ReadWriter
	config Config
	geom   *nand.Geometry
}

// New creates a Client on dev, the host side of the flash endpoint.
//
// Example:
//
//	client := flashclient.New(ep,
//	    flashclient.WithLogger(logger),
//	    flashclient.WithRetries(10),
//	)
func New(dev io.ReadWriter, opts ...Option) *Client {
	if dev == nil {
		panic("device cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Client{
		dev:    dev,
		config: cfg,
	}
}

// Do sends one request: cmd latched as a NAND command, addr with ALE,
// then data. When readLen is positive the reply is read in full and
// returned. A request cannot both write and read.
//
// Example:
//
//	// Read the ONFI signature
//	sig, err := client.Do(0x90, []byte{0x20}, nil, 4)
func (c *Client) Do(cmd byte, addr, data []byte, readLen int) ([]byte, error) {
	frame, err := flashproto.BuildRequest(cmd, addr, data, readLen)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("cmd 0x%02X", cmd)

	for len(frame) > 0 {
		n := len(frame)
		if n > c.config.ChunkSize {
			n = c.config.ChunkSize
		}
		if _, err := c.dev.Write(frame[:n]); err != nil {
			return nil, &Error{Op: op, Err: fmt.Errorf("write request: %w", err)}
		}
		frame = frame[n:]
	}

	if readLen == 0 {
		return nil, nil
	}
	reply := make([]byte, readLen)
	if _, err := io.ReadFull(c.dev, reply); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("read reply: %w", err)}
	}
	return reply, nil
}

// Reset resets the chip and waits for it to become ready.
func (c *Client) Reset() error {
	if _, err := c.Do(nand.CmdReset, nil, nil, 0); err != nil {
		return err
	}
	_, err := c.waitReady("reset", 0)
	return err
}

// ReadID returns n bytes of Read ID output at addr: 0x00 for the
// manufacturer and device bytes, 0x20 for the ONFI signature.
func (c *Client) ReadID(addr byte, n int) ([]byte, error) {
	return c.Do(nand.CmdReadID, []byte{addr}, nil, n)
}

// ReadParameterPage reads all redundant parameter page copies and returns
// the first valid one.
func (c *Client) ReadParameterPage() (*nand.ParameterPage, error) {
	raw, err := c.Do(nand.CmdReadParamPage, []byte{0}, nil, nand.ParamPageSize*nand.ParamPageCopies)
	if err != nil {
		return nil, err
	}

	var last error
	for i := 0; i < nand.ParamPageCopies; i++ {
		pp, err := nand.ParseParameterPage(raw[i*nand.ParamPageSize : (i+1)*nand.ParamPageSize])
		if err == nil {
			if i > 0 {
				c.logDebug("using redundant parameter page", "copy", i)
			}
			return pp, nil
		}
		last = err
	}
	return nil, fmt.Errorf("no valid parameter page copy: %w", last)
}

// Geometry returns the chip layout, reading the parameter page on first
// use.
func (c *Client) Geometry() (nand.Geometry, error) {
	if c.geom != nil {
		return *c.geom, nil
	}
	pp, err := c.ReadParameterPage()
	if err != nil {
		return nand.Geometry{}, err
	}
	c.logInfo("flash identified",
		"manufacturer", pp.Manufacturer,
		"model", pp.Model,
		"geometry", pp.Geometry.String(),
	)
	c.geom = &pp.Geometry
	return pp.Geometry, nil
}

// ReadStatus returns the chip status register.
func (c *Client) ReadStatus() (byte, error) {
	b, err := c.Do(nand.CmdReadStatus, nil, nil, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadPage returns the main area of page.
func (c *Client) ReadPage(page uint32) ([]byte, error) {
	g, err := c.Geometry()
	if err != nil {
		return nil, err
	}
	return c.readAt(g, page, 0, int(g.BytesPerPage))
}

// ReadRaw returns n bytes of page starting at column. Columns past the
// main area address the spare area.
func (c *Client) ReadRaw(page, column uint32, n int) ([]byte, error) {
	g, err := c.Geometry()
	if err != nil {
		return nil, err
	}
	if int(column)+n > g.RawPageSize() {
		return nil, fmt.Errorf("read of %d bytes at column %d exceeds %d byte page", n, column, g.RawPageSize())
	}
	return c.readAt(g, page, column, n)
}

func (c *Client) readAt(g nand.Geometry, page, column uint32, n int) ([]byte, error) {
	if page >= g.Pages() {
		return nil, fmt.Errorf("page %d out of range (%d pages)", page, g.Pages())
	}
	if _, err := c.Do(nand.CmdRead, g.Address(page, column), nil, 0); err != nil {
		return nil, err
	}
	return c.Do(byte(nand.Uncached), nil, nil, n)
}

// ProgramPage programs data at the start of page. data may extend into the
// spare area. A failed program returns a *StatusError.
func (c *Client) ProgramPage(page uint32, data []byte) error {
	g, err := c.Geometry()
	if err != nil {
		return err
	}
	switch {
	case page >= g.Pages():
		return fmt.Errorf("page %d out of range (%d pages)", page, g.Pages())
	case len(data) > g.RawPageSize():
		return fmt.Errorf("%d bytes do not fit a %d byte page", len(data), g.RawPageSize())
	}

	if _, err := c.Do(nand.CmdProgram, g.Address(page, 0), data, 0); err != nil {
		return err
	}
	if _, err := c.Do(nand.CmdProgramConfirm, nil, nil, 0); err != nil {
		return err
	}
	_, err = c.waitReady("program", page)
	return err
}

// EraseBlock erases block. A failed erase returns a *StatusError.
func (c *Client) EraseBlock(block uint32) error {
	g, err := c.Geometry()
	if err != nil {
		return err
	}
	if block >= g.Blocks() {
		return fmt.Errorf("block %d out of range (%d blocks)", block, g.Blocks())
	}

	page := g.PageAddress(block, 0)
	row := g.Address(page, 0)[g.ColumnCycles():]
	if _, err := c.Do(nand.CmdErase, row, nil, 0); err != nil {
		return err
	}
	if _, err := c.Do(nand.CmdEraseConfirm, nil, nil, 0); err != nil {
		return err
	}
	_, err = c.waitReady("erase", page)
	return err
}

// IsBadBlock reports whether block carries a bad block marker: a first
// spare byte other than 0xFF in its first page.
func (c *Client) IsBadBlock(block uint32) (bool, error) {
	g, err := c.Geometry()
	if err != nil {
		return false, err
	}
	if block >= g.Blocks() {
		return false, fmt.Errorf("block %d out of range (%d blocks)", block, g.Blocks())
	}
	marker, err := c.readAt(g, g.PageAddress(block, 0), g.BytesPerPage, 1)
	if err != nil {
		return false, err
	}
	return marker[0] != 0xff, nil
}

// waitReady reads the status until the chip is ready and checks the
// result of the operation.
func (c *Client) waitReady(op string, page uint32) (byte, error) {
	var status byte
	for i := 0; i <= c.config.Retries; i++ {
		s, err := c.ReadStatus()
		if err != nil {
			return 0, err
		}
		status = s
		if status&nand.StatusReady == 0 {
			continue
		}
		if status&nand.StatusFail != 0 {
			return status, &StatusError{Op: op, Page: page, Status: status}
		}
		return status, nil
	}
	return status, &StatusError{Op: op, Page: page, Status: status}
}

// reportProgress calls the progress callback if configured.
func (c *Client) reportProgress(progress Progress) {
	if c.config.ProgressCallback != nil {
		c.config.ProgressCallback(progress)
	}
}

// logDebug logs a debug message if a logger is configured.
func (c *Client) logDebug(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is configured.
func (c *Client) logInfo(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if a logger is configured.
func (c *Client) logError(msg string, keysAndValues ...interface{}) {
	if c.config.Logger != nil {
		c.config.Logger.Error(msg, keysAndValues...)
	}
}
