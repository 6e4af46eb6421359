// Package bitstream replays the FPGA configuration image stored on NAND.
//
// The image is spread over the blocks listed in the flash directory (page
// 0). Pager reads it one byte at a time while keeping the chip busy on the
// page after the one being drained: every page is requested with a cached
// read two requests before it is consumed, so a consumer clocking bytes
// into JTAG never waits for a full array read.
//
//	p := bitstream.New(dev, geometry)
//	if err := p.Setup(); err != nil {
//	    return err // no image
//	}
//	defer p.Teardown()
//	b, err := p.ReadByte()
//
// When the block list runs out the default policy keeps re-reading the
// last listed page, which is what the boot ROM layout expects for images
// that fit their blocks. EndOfStream stops with io.EOF instead.
package bitstream
