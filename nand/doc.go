// Package nand drives a raw ONFI NAND flash chip over a bit-banged bus.
//
// A board supplies the Bus: data lines, the command/address latch enables
// and the ready/busy input. Device layers the ONFI command set on top:
// identification, parameter page decoding, on-die ECC enablement and cached
// page reads.
//
// # Probe Result
//
// Probe writes a diagnostic record into the caller's buffer and returns
// its length. The length alone tells which stage failed:
//
//	 0  caller buffer too small, or the chip never became ready
//	 4  no ONFI signature; the buffer holds "Fail"
//	 5  ECC enable was sent but the chip did not become ready
//	 6  the parameter page did not become ready
//	 7  no copy of the parameter page passed its CRC
//	37  success: "ONFI", vendor byte ('!' if unrecognized), 32 bytes of
//	    manufacturer and model text
//
// Geometry is only committed after a fully successful probe.
//
// # Page Reads
//
// LoadPage waits for the previous operation, issues the read and returns
// without waiting; callers poll WaitReady before reading data. With the
// Cached mode the chip moves the previously loaded page to its cache
// register while the new page loads, which is what the bitstream pager
// relies on.
package nand
