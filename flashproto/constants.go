package flashproto

// Header layout.
const (
	// HeaderSize is the size of a request header in bytes
	HeaderSize = 6

	// MaxAddressBytes is the largest address cycle count a header may carry
	MaxAddressBytes = 7

	// MaxPacketSize is the full speed bulk packet size
	MaxPacketSize = 64

	// MaxPacketRead is the most read data the adapter puts in one packet
	MaxPacketRead = 62
)

// Image directory layout.
const (
	// DirectoryPage is the NAND page holding the directory
	DirectoryPage = 0

	// MaxBlocks is the capacity of the block list
	MaxBlocks = 32

	// LengthOffset is the byte offset of the image length
	LengthOffset = MaxBlocks * 4

	// DirectorySize is the encoded directory size
	DirectorySize = LengthOffset + 4

	// UnknownLength marks an image of unrecorded length
	UnknownLength = 0xffffffff

	// unusedEntry is an erased block list slot
	unusedEntry = -1
)
