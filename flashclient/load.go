package flashclient

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"
)

// LoadImage reads a configuration image from path. Files ending in .hex
// or .ihex are Intel HEX and are flattened with ParseHex; anything else,
// typically a raw binary .rbf, is used as is.
//
// Example:
//
//	img, err := flashclient.LoadImage("output_files/top.rbf")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadImage(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex":
		return ParseHex(f)
	}

	img, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(img) == 0 {
		return nil, fmt.Errorf("empty file")
	}
	return img, nil
}

// ParseHex flattens Intel HEX records into one image starting at the
// lowest address. Gaps between segments read as 0xFF, like erased flash.
func ParseHex(r io.Reader) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("failed to parse hex: %w", err)
	}

	segs := mem.GetDataSegments()
	if len(segs) == 0 {
		return nil, fmt.Errorf("hex file holds no data")
	}
	low, high := segs[0].Address, segs[0].Address
	for _, s := range segs {
		if s.Address < low {
			low = s.Address
		}
		if end := s.Address + uint32(len(s.Data)); end > high {
			high = end
		}
	}
	return mem.ToBinary(low, high-low, 0xff), nil
}

// WriteHex encodes img as Intel HEX records at address 0.
func WriteHex(w io.Writer, img []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(0, img); err != nil {
		return err
	}
	return mem.DumpIntelHex(w, 16)
}
