// Package flashproto implements the ORDB3 flash transaction protocol.
//
// The host drives the NAND chip through a second bulk endpoint pair. Each
// transaction starts with a fixed six byte header:
//
//	[CMD][ADDR_BYTES][WRITE_LEN_L][WRITE_LEN_H][READ_LEN_L][READ_LEN_H]
//
// Where:
//   - CMD is latched as a NAND command byte
//   - ADDR_BYTES address bytes follow the header and are latched with ALE
//   - WRITE_LEN data bytes follow the address bytes
//   - READ_LEN bytes are then produced by the adapter on the IN endpoint
//
// A transaction may write or read, never both. The adapter accepts a new
// header only when the previous transaction is complete; malformed headers
// are dropped together with the rest of their packet.
//
// # Image Directory
//
// Page 0 of the chip holds a Directory: the list of blocks that carry the
// FPGA configuration image, in order, and the image length.
//
//	[BLOCK_0 int32 LE]...[BLOCK_31 int32 LE][LENGTH uint32 LE]
//
// Unused entries are left erased (0xFFFFFFFF). A length of 0xFFFFFFFF means
// unknown.
package flashproto
