package flashproto

import (
	"strings"
	"testing"
)

func TestDirectoryRoundTrip(t *testing.T) {
	d, err := NewDirectory([]uint32{5, 6, 9}, 12345)
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	raw, _ := d.MarshalBinary()
	if len(raw) != DirectorySize {
		t.Fatalf("len = %d, want %d", len(raw), DirectorySize)
	}
	for _, b := range raw[12:LengthOffset] {
		if b != 0xff {
			t.Fatalf("unused entries not erased: % X", raw[12:LengthOffset])
		}
	}

	got, err := ParseDirectory(raw)
	if err != nil {
		t.Fatalf("ParseDirectory() error = %v", err)
	}
	if got != d {
		t.Errorf("ParseDirectory() = %+v, want %+v", got, d)
	}
	blocks := got.Blocks(2048)
	if len(blocks) != 3 || blocks[0] != 5 || blocks[2] != 9 {
		t.Errorf("Blocks() = %v", blocks)
	}
	if !got.LengthKnown() || got.Length != 12345 {
		t.Errorf("Length = %d", got.Length)
	}
}

func TestDirectoryValidity(t *testing.T) {
	tests := []struct {
		name       string
		entries    []int32
		total      uint32
		firstValid bool
		blocks     int
	}{
		{name: "erased page", entries: []int32{-1}, total: 32, firstValid: false, blocks: 0},
		{name: "zero first", entries: []int32{0, 4}, total: 32, firstValid: false, blocks: 0},
		{name: "first too large", entries: []int32{32}, total: 32, firstValid: false, blocks: 0},
		{name: "last block", entries: []int32{31, -1}, total: 32, firstValid: true, blocks: 1},
		{name: "stops at invalid", entries: []int32{3, 4, 0, 5}, total: 32, firstValid: true, blocks: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Directory
			for i := range d.Entries {
				d.Entries[i] = -1
			}
			copy(d.Entries[:], tt.entries)

			if got := d.FirstValid(tt.total); got != tt.firstValid {
				t.Errorf("FirstValid() = %v, want %v", got, tt.firstValid)
			}
			if got := len(d.Blocks(tt.total)); got != tt.blocks {
				t.Errorf("len(Blocks()) = %d, want %d", got, tt.blocks)
			}
		})
	}
}

func TestNewDirectoryErrors(t *testing.T) {
	tests := []struct {
		name   string
		blocks []uint32
		errMsg string
	}{
		{name: "empty", blocks: nil, errMsg: "at least one block"},
		{name: "directory block", blocks: []uint32{1, 0}, errMsg: "block 0"},
		{name: "too many", blocks: make([]uint32, 33), errMsg: "at most 32"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDirectory(tt.blocks, UnknownLength)
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("NewDirectory() error = %v, want %q", err, tt.errMsg)
			}
		})
	}
}

func TestParseDirectoryShort(t *testing.T) {
	if _, err := ParseDirectory(make([]byte, 100)); err == nil {
		t.Error("ParseDirectory() accepted a short page")
	}
}
