package flashclient

import (
	"context"
	"fmt"
	"time"

	"github.com/moffa90/go-ordb3/flashproto"
	"github.com/moffa90/go-ordb3/nand"
)

// WriteImage stores img in whole blocks from block 1 upwards and then
// writes the directory listing them into block 0.
//
// Blocks with a bad block marker are skipped. A block whose erase or
// program reports failure is abandoned and its data goes to the next
// block. The operation can be cancelled via context between pages. The
// directory is written last, so a cancelled call leaves block 0 untouched.
//
// Example:
//
//	img, _ := flashclient.LoadImage("top.rbf")
//	dir, err := client.WriteImage(ctx, img)
//	fmt.Println(dir.Blocks(2048))
func (c *Client) WriteImage(ctx context.Context, img []byte) (flashproto.Directory, error) {
	if len(img) == 0 {
		return flashproto.Directory{}, fmt.Errorf("image cannot be empty")
	}
	g, err := c.Geometry()
	if err != nil {
		return flashproto.Directory{}, err
	}
	if g.RawPageSize() < flashproto.DirectorySize {
		return flashproto.Directory{}, fmt.Errorf("%d byte pages cannot hold the %d byte directory",
			g.RawPageSize(), flashproto.DirectorySize)
	}

	blockBytes := int(g.BytesPerPage * g.PagesPerBlock)
	need := (len(img) + blockBytes - 1) / blockBytes
	if need > flashproto.MaxBlocks {
		return flashproto.Directory{}, fmt.Errorf("image needs %d blocks, directory holds %d", need, flashproto.MaxBlocks)
	}

	w := &imageWriter{c: c, g: g, img: img, need: need, start: time.Now()}
	c.logInfo("writing image", "bytes", len(img), "blocks", need)

	// Phase 1: Store the image, one block at a time
	next := uint32(1)
	for i := 0; i < need; i++ {
		chunk := img[i*blockBytes:]
		if len(chunk) > blockBytes {
			chunk = chunk[:blockBytes]
		}
		for {
			if next >= g.Blocks() {
				return flashproto.Directory{}, fmt.Errorf("out of good blocks after %d of %d image blocks", i, need)
			}
			b := next
			next++
			ok, err := w.block(ctx, b, chunk)
			if err != nil {
				return flashproto.Directory{}, err
			}
			if ok {
				w.blocks = append(w.blocks, b)
				w.done += len(chunk)
				break
			}
		}
	}

	// Phase 2: Write the directory
	dir, err := flashproto.NewDirectory(w.blocks, uint32(len(img)))
	if err != nil {
		return flashproto.Directory{}, err
	}
	c.reportProgress(w.progress(PhaseDirectory, 0))
	if err := c.writeDirectory(dir); err != nil {
		c.logError("directory write failed", "error", err)
		return flashproto.Directory{}, err
	}

	c.reportProgress(w.progress(PhaseComplete, 0))
	c.logInfo("image written",
		"bytes", len(img),
		"blocks", fmt.Sprint(w.blocks),
		"skipped", w.skipped,
		"elapsed", time.Since(w.start).String(),
	)
	return dir, nil
}

// writeDirectory erases block 0 and programs dir into its first page.
func (c *Client) writeDirectory(dir flashproto.Directory) error {
	bad, err := c.IsBadBlock(0)
	if err != nil {
		return err
	}
	if bad {
		return &BadBlockError{Block: 0}
	}
	if err := c.EraseBlock(0); err != nil {
		return fmt.Errorf("erase directory block: %w", err)
	}
	raw, err := dir.MarshalBinary()
	if err != nil {
		return err
	}
	if err := c.ProgramPage(flashproto.DirectoryPage, raw); err != nil {
		return fmt.Errorf("program directory: %w", err)
	}
	return nil
}

// imageWriter carries the state of one WriteImage call.
type imageWriter struct {
	c       *Client
	g       nand.Geometry
	img     []byte
	need    int
	blocks  []uint32
	skipped int
	done    int
	start   time.Time
}

// block erases b and programs chunk into it. It returns false when the
// block has to be skipped.
func (w *imageWriter) block(ctx context.Context, b uint32, chunk []byte) (bool, error) {
	c := w.c
	bad, err := c.IsBadBlock(b)
	if err != nil {
		return false, err
	}
	if bad {
		c.logDebug("skipping bad block", "block", b)
		w.skipped++
		return false, nil
	}

	c.reportProgress(w.progress(PhaseErasing, b))
	if err := c.EraseBlock(b); err != nil {
		if IsStatusError(err) {
			c.logError("erase failed, skipping block", "block", b, "error", err)
			w.skipped++
			return false, nil
		}
		return false, err
	}

	bpp := int(w.g.BytesPerPage)
	written := 0
	for pg := uint32(0); len(chunk) > 0; pg++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		data := chunk
		if len(data) > bpp {
			data = data[:bpp]
		}
		if err := c.ProgramPage(w.g.PageAddress(b, pg), data); err != nil {
			if IsStatusError(err) {
				c.logError("program failed, skipping block", "block", b, "error", err)
				w.skipped++
				return false, nil
			}
			return false, err
		}
		chunk = chunk[len(data):]
		written += len(data)

		p := w.progress(PhaseProgramming, b)
		p.BytesDone += written
		p.Percentage = float64(p.BytesDone) / float64(len(w.img)) * 100
		c.reportProgress(p)
	}
	return true, nil
}

func (w *imageWriter) progress(phase string, b uint32) Progress {
	p := Progress{
		Phase:       phase,
		Block:       b,
		TotalBlocks: w.need,
		BytesDone:   w.done,
		TotalBytes:  len(w.img),
		ElapsedTime: time.Since(w.start),
	}
	p.Percentage = float64(p.BytesDone) / float64(len(w.img)) * 100
	return p
}

// ReadImage reads the directory and returns the image it describes. When
// the directory records no length every listed block is read in full.
func (c *Client) ReadImage(ctx context.Context) ([]byte, error) {
	g, err := c.Geometry()
	if err != nil {
		return nil, err
	}
	raw, err := c.readAt(g, flashproto.DirectoryPage, 0, flashproto.DirectorySize)
	if err != nil {
		return nil, err
	}
	dir, err := flashproto.ParseDirectory(raw)
	if err != nil {
		return nil, err
	}
	if !dir.FirstValid(g.Blocks()) {
		return nil, fmt.Errorf("%w: first entry %d", ErrNoImage, dir.Entries[0])
	}

	blocks := dir.Blocks(g.Blocks())
	limit := len(blocks) * int(g.BytesPerPage*g.PagesPerBlock)
	total := -1
	if dir.LengthKnown() {
		if int64(dir.Length) > int64(limit) {
			return nil, fmt.Errorf("directory length %d exceeds its %d blocks", dir.Length, len(blocks))
		}
		limit = int(dir.Length)
		total = limit
	}

	start := time.Now()
	out := make([]byte, 0, limit)
	for _, b := range blocks {
		if len(out) >= limit {
			break
		}
		bad, err := c.IsBadBlock(b)
		if err != nil {
			return nil, err
		}
		if bad {
			return nil, &BadBlockError{Block: b}
		}
		for pg := uint32(0); pg < g.PagesPerBlock && len(out) < limit; pg++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := c.readAt(g, g.PageAddress(b, pg), 0, int(g.BytesPerPage))
			if err != nil {
				return nil, err
			}
			if n := limit - len(out); len(data) > n {
				data = data[:n]
			}
			out = append(out, data...)

			c.reportProgress(Progress{
				Phase:       PhaseReading,
				Block:       b,
				TotalBlocks: len(blocks),
				BytesDone:   len(out),
				TotalBytes:  total,
				Percentage:  float64(len(out)) / float64(limit) * 100,
				ElapsedTime: time.Since(start),
			})
		}
	}

	c.logInfo("image read", "bytes", len(out), "blocks", len(blocks), "elapsed", time.Since(start).String())
	return out, nil
}

