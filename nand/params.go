package nand

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// ONFI parameter page layout.
const (
	// ParamPageSize is the size of one parameter page copy
	ParamPageSize = 256

	// ParamPageCopies is the number of redundant copies the chip returns
	ParamPageCopies = 3

	offManufacturer  = 32
	offModel         = 44
	offBytesPerPage  = 80
	offSparePerPage  = 84
	offPartialPage   = 86
	offPartialSpare  = 90
	offPagesPerBlock = 92
	offBlocksPerLUN  = 96
	offLUNs          = 100
	offAddrCycles    = 101
	offCRC           = 254

	// IDStringSize is the length of the manufacturer plus model text
	IDStringSize = offModel + 20 - offManufacturer

	crcInit = 0x4f4e
	crcPoly = 0x8005
)

// Geometry is the addressing layout of a chip, read from its parameter
// page.
type Geometry struct {
	BytesPerPage      uint32
	SpareBytesPerPage uint16
	PartialPageBytes  uint32
	PartialSpareBytes uint16
	PagesPerBlock     uint32
	BlocksPerLUN      uint32
	LUNs              uint8

	// AddressCycles holds the row address byte count in the low nibble and
	// the column address byte count in the high nibble.
	AddressCycles uint8
}

// RowCycles is the number of address bytes that select a page.
func (g Geometry) RowCycles() int { return int(g.AddressCycles & 0x0f) }

// ColumnCycles is the number of address bytes that select a byte in a page.
func (g Geometry) ColumnCycles() int { return int(g.AddressCycles >> 4) }

// Blocks is the total number of erase blocks.
func (g Geometry) Blocks() uint32 { return g.BlocksPerLUN * uint32(g.LUNs) }

// Pages is the total number of pages.
func (g Geometry) Pages() uint32 { return g.Blocks() * g.PagesPerBlock }

// PageAddress returns the row number of page in block.
func (g Geometry) PageAddress(block, page uint32) uint32 {
	return block*g.PagesPerBlock + page
}

// Address returns the address cycles selecting column in page, column
// bytes first, least significant byte first.
func (g Geometry) Address(page, column uint32) []byte {
	return appendAddress(nil, g.ColumnCycles(), g.RowCycles(), page, column)
}

func appendAddress(dst []byte, cols, rows int, page, column uint32) []byte {
	for i := 0; i < cols; i, column = i+1, column>>8 {
		dst = append(dst, byte(column))
	}
	for i := 0; i < rows; i, page = i+1, page>>8 {
		dst = append(dst, byte(page))
	}
	return dst
}

// RawPageSize is the page size including the spare area.
func (g Geometry) RawPageSize() int {
	return int(g.BytesPerPage) + int(g.SpareBytesPerPage)
}

// Size is the main array capacity in bytes.
func (g Geometry) Size() int64 {
	return int64(g.Pages()) * int64(g.BytesPerPage)
}

// Validate reports geometry values that cannot address a chip.
func (g Geometry) Validate() error {
	switch {
	case g.BytesPerPage == 0:
		return fmt.Errorf("bytes per page is zero")
	case g.PagesPerBlock == 0:
		return fmt.Errorf("pages per block is zero")
	case g.BlocksPerLUN == 0 || g.LUNs == 0:
		return fmt.Errorf("chip has no blocks")
	case g.RowCycles() == 0 || g.ColumnCycles() == 0 || g.RowCycles()+g.ColumnCycles() > 8:
		return fmt.Errorf("invalid address cycles 0x%02X", g.AddressCycles)
	}
	return nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%d+%d bytes/page, %d pages/block, %d blocks/lun, %d lun(s), %d col + %d row cycles",
		g.BytesPerPage, g.SpareBytesPerPage, g.PagesPerBlock, g.BlocksPerLUN, g.LUNs,
		g.ColumnCycles(), g.RowCycles())
}

// ParameterPage is a decoded ONFI parameter page.
type ParameterPage struct {
	Manufacturer string
	Model        string
	Geometry     Geometry
}

// ParamPageCRC computes the ONFI CRC-16 over p.
func ParamPageCRC(p []byte) uint16 {
	crc := uint16(crcInit)
	for _, b := range p {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPoly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// ParseParameterPage decodes one parameter page copy after checking its
// signature and CRC.
func ParseParameterPage(p []byte) (*ParameterPage, error) {
	if len(p) < ParamPageSize {
		return nil, fmt.Errorf("parameter page too short: got %d bytes, need %d", len(p), ParamPageSize)
	}
	if !bytes.Equal(p[:4], []byte(Signature)) {
		return nil, fmt.Errorf("parameter page signature %q, want %q", p[:4], Signature)
	}
	want := binary.LittleEndian.Uint16(p[offCRC:])
	if got := ParamPageCRC(p[:offCRC]); got != want {
		return nil, fmt.Errorf("parameter page CRC 0x%04X, stored 0x%04X", got, want)
	}

	le := binary.LittleEndian
	pp := &ParameterPage{
		Manufacturer: strings.TrimRight(string(p[offManufacturer:offModel]), " \x00"),
		Model:        strings.TrimRight(string(p[offModel:offModel+20]), " \x00"),
		Geometry: Geometry{
			BytesPerPage:      le.Uint32(p[offBytesPerPage:]),
			SpareBytesPerPage: le.Uint16(p[offSparePerPage:]),
			PartialPageBytes:  le.Uint32(p[offPartialPage:]),
			PartialSpareBytes: le.Uint16(p[offPartialSpare:]),
			PagesPerBlock:     le.Uint32(p[offPagesPerBlock:]),
			BlocksPerLUN:      le.Uint32(p[offBlocksPerLUN:]),
			LUNs:              p[offLUNs],
			AddressCycles:     p[offAddrCycles],
		},
	}
	if err := pp.Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("parameter page geometry: %w", err)
	}
	return pp, nil
}

// BuildParameterPage encodes a parameter page copy with a valid CRC. Text
// fields are space padded as on real parts.
func BuildParameterPage(manufacturer, model string, g Geometry) []byte {
	p := make([]byte, ParamPageSize)
	copy(p, Signature)
	pad := func(dst []byte, s string) {
		for i := range dst {
			dst[i] = ' '
		}
		copy(dst, s)
	}
	pad(p[offManufacturer:offModel], manufacturer)
	pad(p[offModel:offModel+20], model)

	le := binary.LittleEndian
	le.PutUint32(p[offBytesPerPage:], g.BytesPerPage)
	le.PutUint16(p[offSparePerPage:], g.SpareBytesPerPage)
	le.PutUint32(p[offPartialPage:], g.PartialPageBytes)
	le.PutUint16(p[offPartialSpare:], g.PartialSpareBytes)
	le.PutUint32(p[offPagesPerBlock:], g.PagesPerBlock)
	le.PutUint32(p[offBlocksPerLUN:], g.BlocksPerLUN)
	p[offLUNs] = g.LUNs
	p[offAddrCycles] = g.AddressCycles
	le.PutUint16(p[offCRC:], ParamPageCRC(p[:offCRC]))
	return p
}
