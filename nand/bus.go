package nand

// Bus is the board capability for one NAND chip.
//
// Open takes the lines, drives them as outputs (ready/busy stays an input
// with pull-up) and selects the chip. Close deselects the chip and releases
// every line so another bus master may use them.
//
// Write strobes each byte with WE# and Read strobes each byte with RE#.
// Whether a written byte is a command, address or data byte is decided by
// the CLE and ALE levels at the time.
type Bus interface {
	Open() error
	Close() error

	SetCLE(high bool)
	SetALE(high bool)
	SetWriteProtect(protect bool)

	Write(p []byte)
	Read(p []byte)

	// Ready reports the ready/busy line.
	Ready() bool
}
