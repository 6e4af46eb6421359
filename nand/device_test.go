package nand_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/moffa90/go-ordb3/nand"
	"github.com/moffa90/go-ordb3/nand/nandtest"
)

func newProbed(t *testing.T, g nand.Geometry) (*nand.Device, *nandtest.Chip) {
	t.Helper()
	chip := nandtest.New(g)
	dev := nand.New(chip, nand.WithReadyPolls(10))
	if _, err := dev.Identify(); err != nil {
		t.Fatalf("Identify() error = %v", err)
	}
	return dev, chip
}

func fill(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = seed + byte(i)
	}
	return p
}

func TestLoadPageRequiresOpen(t *testing.T) {
	dev := nand.New(nandtest.New(nandtest.SmallGeometry))
	if err := dev.LoadPage(0, nand.Uncached); !errors.Is(err, nand.ErrClosed) {
		t.Errorf("LoadPage() on closed device error = %v", err)
	}
	if _, err := dev.ReadByte(); !errors.Is(err, nand.ErrClosed) {
		t.Errorf("ReadByte() on closed device error = %v", err)
	}
}

func TestLoadPageAddressCycles(t *testing.T) {
	dev, chip := newProbed(t, nandtest.MT29F2G08)

	if err := dev.LoadPage(0x012345, nand.Uncached); err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	loads := chip.Loads
	if len(loads) != 1 || loads[0] != (nandtest.Load{Page: 0x012345, Mode: nand.Uncached}) {
		t.Errorf("Loads = %+v", loads)
	}

	tail := chip.Commands[len(chip.Commands)-2:]
	if !bytes.Equal(tail, []byte{nand.CmdRead, byte(nand.Uncached)}) {
		t.Errorf("command tail = % X", tail)
	}
}

func TestLoadPageDoesNotWaitAtExit(t *testing.T) {
	dev, chip := newProbed(t, nandtest.SmallGeometry)
	chip.BusyPolls = 5

	if err := dev.LoadPage(3, nand.Uncached); err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	if dev.Ready() {
		t.Error("chip ready immediately after LoadPage; the load was waited on")
	}
	if !dev.WaitReady() {
		t.Error("WaitReady() = false")
	}
}

func TestLoadPageWaitsAtEntry(t *testing.T) {
	dev, chip := newProbed(t, nandtest.SmallGeometry)
	chip.Hang()

	if err := dev.LoadPage(1, nand.Uncached); !errors.Is(err, nand.ErrNotReady) {
		t.Errorf("LoadPage() error = %v, want ErrNotReady", err)
	}
	if len(chip.Loads) != 0 {
		t.Error("page requested while the chip was busy")
	}
}

func TestCachedReadPipeline(t *testing.T) {
	dev, chip := newProbed(t, nandtest.SmallGeometry)
	g := nandtest.SmallGeometry
	for p := uint32(0); p < 4; p++ {
		chip.SetPage(p, fill(int(g.BytesPerPage), byte(p*16)))
	}

	read := func() []byte {
		t.Helper()
		if !dev.WaitReady() {
			t.Fatal("WaitReady() = false")
		}
		buf := make([]byte, 4)
		dev.ReadData(buf)
		return buf
	}

	dev.LoadPage(0, nand.Uncached)
	if got := read(); got[0] != 0x00 {
		t.Errorf("uncached page 0 starts 0x%02X", got[0])
	}

	dev.LoadPage(1, nand.Cached)
	if got := read(); got[0] != 0x00 {
		t.Errorf("after caching page 1 the cache holds 0x%02X, want page 0", got[0])
	}
	dev.LoadPage(2, nand.Cached)
	if got := read(); got[0] != 0x10 {
		t.Errorf("after caching page 2 the cache holds 0x%02X, want page 1", got[0])
	}
	dev.LoadPage(2, nand.Last)
	if got := read(); got[0] != 0x20 {
		t.Errorf("after last the cache holds 0x%02X, want page 2", got[0])
	}
}

func TestReadStatusAndResume(t *testing.T) {
	dev, chip := newProbed(t, nandtest.SmallGeometry)
	chip.SetPage(5, fill(64, 0x40))

	dev.LoadPage(5, nand.Uncached)
	dev.WaitReady()

	b, _ := dev.ReadByte()
	if b != 0x40 {
		t.Fatalf("first byte = 0x%02X", b)
	}
	st := dev.ReadStatus()
	if st&nand.StatusReady == 0 || st&nand.StatusFail != 0 {
		t.Errorf("status = 0x%02X", st)
	}
	dev.ResumeRead()
	if b, _ = dev.ReadByte(); b != 0x41 {
		t.Errorf("byte after resume = 0x%02X, want 0x41", b)
	}
}

func TestOpenClose(t *testing.T) {
	chip := nandtest.New(nandtest.SmallGeometry)
	dev := nand.New(chip)

	if err := dev.Open(); err != nil {
		t.Fatal(err)
	}
	dev.Open()
	if chip.Opens != 1 || !dev.IsOpen() {
		t.Errorf("Opens = %d, IsOpen() = %v", chip.Opens, dev.IsOpen())
	}
	dev.Close()
	dev.Close()
	if chip.Closes != 1 || dev.IsOpen() {
		t.Errorf("Closes = %d, IsOpen() = %v", chip.Closes, dev.IsOpen())
	}
}
