// Command ordb3flash reads and writes the configuration flash of an ORDB3
// adapter over its flash bulk pipe.
//
// Usage:
//
//	ordb3flash [flags] probe
//	ordb3flash [flags] read-page PAGE [OUT]
//	ordb3flash [flags] erase BLOCK
//	ordb3flash [flags] write-image IMAGE.rbf|IMAGE.hex
//	ordb3flash [flags] read-image OUT.rbf|OUT.hex
//
// Write-image stores the directory in block 0 and the image in the good
// blocks from 1 upward. The adapter loads it into the FPGA at its next
// boot.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/golang/glog"
	"github.com/google/gousb"

	"github.com/moffa90/go-ordb3/flashclient"
	"github.com/moffa90/go-ordb3/internal/glogger"
)

var (
	vid     = flag.Uint("vid", defaultVID, "adapter USB vendor ID")
	pid     = flag.Uint("pid", defaultPID, "adapter USB product ID")
	busAddr = flag.String("bus", "", "adapter USB address as BUS:ADDR")
	iface   = flag.Int("iface", flashIface, "interface carrying the flash pipe")
	epIn    = flag.Int("ep-in", flashEPIn, "flash bulk IN endpoint number")
	epOut   = flag.Int("ep-out", flashEPOut, "flash bulk OUT endpoint number")
	retries = flag.Int("retries", 3, "extra status polls per program or erase")
	chunk   = flag.Int("chunk", flashclient.DefaultChunkSize, "bulk OUT write size")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] probe|read-page|erase|write-image|read-image [args]\n", filepath.Base(os.Args[0]))
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		glog.Exitf("ordb3flash: %v", err)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	u, err := openUSB(gousb.ID(*vid), gousb.ID(*pid), *busAddr, *iface, *epIn, *epOut)
	if err != nil {
		return err
	}
	defer u.Close()
	glog.V(1).Infof("using %s", u)

	bar := newProgressBar()
	client := flashclient.New(u.pipe,
		flashclient.WithLogger(glogger.Logger{Prefix: "flash: "}),
		flashclient.WithProgressCallback(bar.update),
		flashclient.WithRetries(*retries),
		flashclient.WithChunkSize(*chunk),
	)
	if err := client.Reset(); err != nil {
		return err
	}

	switch cmd {
	case "probe":
		return probe(client)
	case "read-page":
		return readPage(client, args)
	case "erase":
		return erase(client, args)
	case "write-image":
		return writeImage(ctx, client, args)
	case "read-image":
		return readImage(ctx, client, args)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func probe(c *flashclient.Client) error {
	id, err := c.ReadID(0x00, 5)
	if err != nil {
		return err
	}
	onfi, err := c.ReadID(0x20, 4)
	if err != nil {
		return err
	}
	g, err := c.Geometry()
	if err != nil {
		return err
	}
	fmt.Printf("ID:       % X\n", id)
	fmt.Printf("ONFI:     %q\n", onfi)
	fmt.Printf("Geometry: %s\n", g)
	return nil
}

func readPage(c *flashclient.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("read-page needs a page number")
	}
	page, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("invalid page %q: %w", args[0], err)
	}
	data, err := c.ReadPage(uint32(page))
	if err != nil {
		return err
	}
	if len(args) > 1 {
		return os.WriteFile(args[1], data, 0o644)
	}
	fmt.Print(hex.Dump(data))
	return nil
}

func erase(c *flashclient.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("erase needs a block number")
	}
	block, err := strconv.ParseUint(args[0], 0, 32)
	if err != nil {
		return fmt.Errorf("invalid block %q: %w", args[0], err)
	}
	return c.EraseBlock(uint32(block))
}

func writeImage(ctx context.Context, c *flashclient.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("write-image needs an image file")
	}
	img, err := flashclient.LoadImage(args[0])
	if err != nil {
		return err
	}
	g, err := c.Geometry()
	if err != nil {
		return err
	}
	dir, err := c.WriteImage(ctx, img)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d bytes to blocks %v\n", len(img), dir.Blocks(g.Blocks()))
	return nil
}

func readImage(ctx context.Context, c *flashclient.Client, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("read-image needs an output file")
	}
	img, err := c.ReadImage(ctx)
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(args[0])) {
	case ".hex", ".ihex":
		err = flashclient.WriteHex(f, img)
	default:
		_, err = f.Write(img)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", args[0], err)
	}
	fmt.Printf("read %d bytes into %s\n", len(img), args[0])
	return nil
}
