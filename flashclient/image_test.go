package flashclient_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/marcinbor85/gohex"

	"github.com/moffa90/go-ordb3/flashclient"
	"github.com/moffa90/go-ordb3/flashproto"
)

func TestWriteReadImage(t *testing.T) {
	tests := []struct {
		name       string
		bad        map[uint32]bool
		wantBlocks []uint32
	}{
		{"clean flash", nil, []uint32{1, 2, 3}},
		{"bad block skipped", map[uint32]bool{2: true}, []uint32{1, 3, 4}},
		{"adjacent bad blocks", map[uint32]bool{1: true, 2: true}, []uint32{3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, chip := newClient(t)
			chip.BadBlocks = tt.bad
			img := pattern(2600, 3)

			dir, err := client.WriteImage(context.Background(), img)
			if err != nil {
				t.Fatalf("WriteImage() error = %v", err)
			}
			if got := dir.Blocks(geom.Blocks()); !reflect.DeepEqual(got, tt.wantBlocks) {
				t.Errorf("directory blocks = %v, want %v", got, tt.wantBlocks)
			}
			if dir.Length != uint32(len(img)) {
				t.Errorf("directory length = %d, want %d", dir.Length, len(img))
			}

			stored, err := flashproto.ParseDirectory(chip.Page(flashproto.DirectoryPage))
			if err != nil {
				t.Fatalf("ParseDirectory() error = %v", err)
			}
			if stored != dir {
				t.Error("directory page differs from the returned directory")
			}

			got, err := client.ReadImage(context.Background())
			if err != nil {
				t.Fatalf("ReadImage() error = %v", err)
			}
			if !bytes.Equal(got, img) {
				t.Errorf("ReadImage() returned %d bytes, not the written image", len(got))
			}
		})
	}
}

func TestWriteImageErrors(t *testing.T) {
	t.Run("empty image", func(t *testing.T) {
		client, _ := newClient(t)
		if _, err := client.WriteImage(context.Background(), nil); err == nil {
			t.Error("WriteImage(nil) error = nil")
		}
	})

	t.Run("out of blocks", func(t *testing.T) {
		client, _ := newClient(t)
		img := make([]byte, int(geom.Blocks())*int(geom.BytesPerPage*geom.PagesPerBlock))
		if _, err := client.WriteImage(context.Background(), img); err == nil {
			t.Error("WriteImage() error = nil for an image larger than the chip")
		}
	})

	t.Run("directory block bad", func(t *testing.T) {
		client, chip := newClient(t)
		chip.BadBlocks = map[uint32]bool{0: true}
		_, err := client.WriteImage(context.Background(), pattern(300, 1))
		var be *flashclient.BadBlockError
		if !errors.As(err, &be) || be.Block != 0 {
			t.Errorf("WriteImage() error = %v, want BadBlockError for block 0", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		client, chip := newClient(t)
		chip.SetPage(0, []byte{1, 0, 0, 0})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := client.WriteImage(ctx, pattern(300, 1)); !errors.Is(err, context.Canceled) {
			t.Errorf("WriteImage() error = %v, want context.Canceled", err)
		}
		if chip.Page(0)[0] != 1 {
			t.Error("directory block touched by a cancelled write")
		}
	})
}

func TestWriteImageProgress(t *testing.T) {
	var updates []flashclient.Progress
	client, _ := newClient(t, flashclient.WithProgressCallback(func(p flashclient.Progress) {
		updates = append(updates, p)
	}))
	img := pattern(1500, 7)

	if _, err := client.WriteImage(context.Background(), img); err != nil {
		t.Fatalf("WriteImage() error = %v", err)
	}
	if len(updates) == 0 {
		t.Fatal("no progress reported")
	}
	if updates[0].Phase != flashclient.PhaseErasing {
		t.Errorf("first phase = %q, want %q", updates[0].Phase, flashclient.PhaseErasing)
	}
	last := updates[len(updates)-1]
	if last.Phase != flashclient.PhaseComplete || last.BytesDone != len(img) || last.Percentage != 100 {
		t.Errorf("last update = %+v", last)
	}

	seen := map[string]bool{}
	done := 0
	for _, p := range updates {
		seen[p.Phase] = true
		if p.BytesDone < done {
			t.Errorf("BytesDone went back from %d to %d", done, p.BytesDone)
		}
		done = p.BytesDone
	}
	for _, phase := range []string{flashclient.PhaseProgramming, flashclient.PhaseDirectory} {
		if !seen[phase] {
			t.Errorf("phase %q not reported", phase)
		}
	}
}

// storeDirectory writes a directory page straight into the chip.
func storeDirectory(t *testing.T, client *flashclient.Client, blocks []uint32, length uint32) {
	t.Helper()
	dir, err := flashproto.NewDirectory(blocks, length)
	if err != nil {
		t.Fatalf("NewDirectory() error = %v", err)
	}
	raw, _ := dir.MarshalBinary()
	if err := client.ProgramPage(flashproto.DirectoryPage, raw); err != nil {
		t.Fatalf("ProgramPage(directory) error = %v", err)
	}
}

func TestReadImage(t *testing.T) {
	t.Run("no image", func(t *testing.T) {
		client, _ := newClient(t)
		if _, err := client.ReadImage(context.Background()); !errors.Is(err, flashclient.ErrNoImage) {
			t.Errorf("ReadImage() error = %v, want ErrNoImage", err)
		}
	})

	t.Run("unknown length reads whole blocks", func(t *testing.T) {
		client, chip := newClient(t)
		storeDirectory(t, client, []uint32{7}, flashproto.UnknownLength)
		page := pattern(int(geom.BytesPerPage), 4)
		chip.SetPage(geom.PageAddress(7, 0), page)

		got, err := client.ReadImage(context.Background())
		if err != nil {
			t.Fatalf("ReadImage() error = %v", err)
		}
		if len(got) != int(geom.BytesPerPage*geom.PagesPerBlock) {
			t.Fatalf("ReadImage() returned %d bytes", len(got))
		}
		if !bytes.Equal(got[:len(page)], page) {
			t.Error("first page differs")
		}
	})

	t.Run("length beyond blocks", func(t *testing.T) {
		client, _ := newClient(t)
		storeDirectory(t, client, []uint32{7}, 5000)
		if _, err := client.ReadImage(context.Background()); err == nil {
			t.Error("ReadImage() error = nil")
		}
	})

	t.Run("listed block bad", func(t *testing.T) {
		client, chip := newClient(t)
		storeDirectory(t, client, []uint32{7, 9}, 2000)
		chip.BadBlocks = map[uint32]bool{9: true}
		_, err := client.ReadImage(context.Background())
		var be *flashclient.BadBlockError
		if !errors.As(err, &be) || be.Block != 9 {
			t.Errorf("ReadImage() error = %v, want BadBlockError for block 9", err)
		}
	})
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	img := pattern(700, 2)

	rbf := filepath.Join(dir, "top.rbf")
	if err := os.WriteFile(rbf, img, 0o644); err != nil {
		t.Fatal(err)
	}
	var hexBuf bytes.Buffer
	if err := flashclient.WriteHex(&hexBuf, img); err != nil {
		t.Fatalf("WriteHex() error = %v", err)
	}
	hexPath := filepath.Join(dir, "top.hex")
	if err := os.WriteFile(hexPath, hexBuf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.rbf")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"raw binary", rbf, false},
		{"intel hex", hexPath, false},
		{"empty file", empty, true},
		{"missing file", filepath.Join(dir, "nope.rbf"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := flashclient.LoadImage(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadImage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, img) {
				t.Errorf("LoadImage() returned %d bytes, want the %d byte image", len(got), len(img))
			}
		})
	}
}

func TestParseHexFillsGaps(t *testing.T) {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(0x100, []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if err := mem.AddBinary(0x104, []byte{3}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := mem.DumpIntelHex(&buf, 16); err != nil {
		t.Fatal(err)
	}

	got, err := flashclient.ParseHex(&buf)
	if err != nil {
		t.Fatalf("ParseHex() error = %v", err)
	}
	want := []byte{1, 2, 0xff, 0xff, 3}
	if !bytes.Equal(got, want) {
		t.Errorf("ParseHex() = % x, want % x", got, want)
	}

	if _, err := flashclient.ParseHex(bytes.NewReader([]byte(":00000001FF\n"))); err == nil {
		t.Error("ParseHex() error = nil for a file without data")
	}
}
