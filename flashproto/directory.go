package flashproto

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Directory is the image directory stored in DirectoryPage.
type Directory struct {
	// Entries are the raw block numbers. Erased slots read as -1.
	Entries [MaxBlocks]int32

	// Length is the image length in bytes, or UnknownLength.
	Length uint32
}

// NewDirectory builds a directory for an image stored in blocks.
func NewDirectory(blocks []uint32, length uint32) (Directory, error) {
	d := Directory{Length: length}
	if len(blocks) == 0 {
		return d, errors.New("directory needs at least one block")
	}
	if len(blocks) > MaxBlocks {
		return d, fmt.Errorf("directory holds at most %d blocks, got %d", MaxBlocks, len(blocks))
	}
	for i := range d.Entries {
		d.Entries[i] = unusedEntry
	}
	for i, b := range blocks {
		switch {
		case b == 0:
			return d, errors.New("block 0 holds the directory and cannot be listed")
		case b > 0x7fffffff:
			return d, fmt.Errorf("block %d out of range", b)
		}
		d.Entries[i] = int32(b)
	}
	return d, nil
}

// ParseDirectory decodes the start of a directory page.
func ParseDirectory(page []byte) (Directory, error) {
	var d Directory
	if len(page) < DirectorySize {
		return d, fmt.Errorf("directory too short: got %d bytes, need %d", len(page), DirectorySize)
	}
	for i := range d.Entries {
		d.Entries[i] = int32(binary.LittleEndian.Uint32(page[i*4:]))
	}
	d.Length = binary.LittleEndian.Uint32(page[LengthOffset:])
	return d, nil
}

// MarshalBinary encodes the directory in DirectorySize bytes.
func (d Directory) MarshalBinary() ([]byte, error) {
	p := make([]byte, DirectorySize)
	for i, e := range d.Entries {
		binary.LittleEndian.PutUint32(p[i*4:], uint32(e))
	}
	binary.LittleEndian.PutUint32(p[LengthOffset:], d.Length)
	return p, nil
}

// validEntry reports whether e names a block other than the directory
// block on a chip with total blocks.
func validEntry(e int32, total uint32) bool {
	return e > 0 && uint32(e) < total
}

// FirstValid reports whether the first entry is usable. Without it there
// is no image.
func (d Directory) FirstValid(total uint32) bool {
	return validEntry(d.Entries[0], total)
}

// Blocks returns the listed blocks up to the first unusable entry.
func (d Directory) Blocks(total uint32) []uint32 {
	var out []uint32
	for _, e := range d.Entries {
		if !validEntry(e, total) {
			break
		}
		out = append(out, uint32(e))
	}
	return out
}

// LengthKnown reports whether the image length was recorded.
func (d Directory) LengthKnown() bool {
	return d.Length != UnknownLength
}
