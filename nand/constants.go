package nand

// ONFI command bytes.
const (
	// CmdRead starts a page read; the cache mode byte completes it
	CmdRead = 0x00

	// CmdReadID reads the ID at the following address byte
	CmdReadID = 0x90

	// CmdReadParamPage streams the parameter page copies
	CmdReadParamPage = 0xec

	// CmdReadStatus returns the status byte
	CmdReadStatus = 0x70

	// CmdSetFeatures writes a four byte feature value
	CmdSetFeatures = 0xef

	// CmdGetFeatures reads a four byte feature value
	CmdGetFeatures = 0xee

	// CmdProgram starts a page program
	CmdProgram = 0x80

	// CmdProgramConfirm commits a page program
	CmdProgramConfirm = 0x10

	// CmdErase starts a block erase
	CmdErase = 0x60

	// CmdEraseConfirm commits a block erase
	CmdEraseConfirm = 0xd0

	// CmdReset aborts any operation and resets the chip
	CmdReset = 0xff
)

// Read ID addresses.
const (
	// IDAddrManufacturer selects the JEDEC manufacturer and device ID
	IDAddrManufacturer = 0x00

	// IDAddrONFI selects the ONFI signature
	IDAddrONFI = 0x20
)

// Signature is returned by Read ID at IDAddrONFI on ONFI parts.
const Signature = "ONFI"

// Status register bits.
const (
	// StatusFail is set when the previous program or erase failed
	StatusFail = 0x01

	// StatusCacheFail is set when the previous cached operation failed
	StatusCacheFail = 0x02

	// StatusECCRewrite is set by Micron parts when ECC corrected enough
	// bits that the page should be rewritten
	StatusECCRewrite = 0x08

	// StatusArrayReady is set when the array is idle
	StatusArrayReady = 0x20

	// StatusReady is set when the chip accepts commands
	StatusReady = 0x40

	// StatusWriteEnabled is set when WP# is high
	StatusWriteEnabled = 0x80
)

// CacheMode is the byte that completes a page read.
type CacheMode byte

const (
	// Uncached reads one page into the data and cache registers
	Uncached CacheMode = 0x30

	// Cached moves the loaded page to the cache register and starts
	// loading the next one
	Cached CacheMode = 0x31

	// Last moves the loaded page to the cache register and ends a cached
	// sequence
	Last CacheMode = 0x3f
)

func (m CacheMode) String() string {
	switch m {
	case Uncached:
		return "uncached"
	case Cached:
		return "cached"
	case Last:
		return "last"
	}
	return "invalid"
}

// Micron on-die ECC.
const (
	// VendorMicron is the JEDEC manufacturer ID of Micron
	VendorMicron = 0x2c

	// DeviceMT29F2G08ABAEA is the 2 Gbit part fitted to ORDB3 boards
	DeviceMT29F2G08ABAEA = 0xda

	// FeatureArrayMode is the Micron array operation mode feature address
	FeatureArrayMode = 0x90

	// ArrayModeECC enables the internal ECC engine
	ArrayModeECC = 0x08

	// IDByteECCEnabled is set in ID byte 4 while internal ECC is on
	IDByteECCEnabled = 0x80
)

// Probe result lengths. See the package documentation.
const (
	ProbeNotReady     = 0
	ProbeNoSignature  = 4
	ProbeECCTimeout   = 5
	ProbeParamTimeout = 6
	ProbeParamCorrupt = 7
	ProbeResultSize   = 4 + 1 + IDStringSize
)

// ProbeUnknownVendor replaces the vendor byte of an unrecognized chip.
const ProbeUnknownVendor = '!'

const (
	probeFailMarker     = "Fail"
	defaultReadyPolls   = 1 << 20
	defaultECCAttempts  = 5
	defaultColumnCycles = 2
	defaultRowCycles    = 3
)
