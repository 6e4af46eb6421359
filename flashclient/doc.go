// Package flashclient drives the adapter's flash endpoint from the host.
//
// # Overview
//
// Every flash operation is a sequence of raw requests: a six byte header
// naming one NAND command, followed by its address bytes and write data,
// or answered by read data. Client builds those sequences for the common
// ONFI operations and for whole configuration images:
//   - Reading the ID, parameter page and status
//   - Reading and programming pages, erasing blocks
//   - Checking factory bad block markers
//   - Writing an image with its block directory, skipping bad blocks
//   - Reading an image back through the directory
//
// # Basic Usage
//
//	// The endpoint pair is any io.ReadWriter, e.g. a gousb endpoint pair
//	client := flashclient.New(ep)
//
//	img, err := flashclient.LoadImage("top.rbf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dir, err := client.WriteImage(context.Background(), img)
//
// # Progress Tracking
//
//	client := flashclient.New(ep,
//	    flashclient.WithProgressCallback(func(p flashclient.Progress) {
//	        fmt.Printf("[%s] %.1f%% block %d/%d\n",
//	            p.Phase, p.Percentage, p.Block, p.TotalBlocks)
//	    }),
//	)
//
// # Image Layout
//
// Block 0 holds the directory page (see package flashproto). The image is
// stored in whole blocks from block 1 upwards; blocks carrying a bad block
// marker, or failing erase or program, are left out of the directory.
//
// # Thread Safety
//
// A Client is not safe for concurrent use: requests on the endpoint must
// not interleave.
package flashclient
