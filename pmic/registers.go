package pmic

// Addr is the I2C address of the TPS65217.
const Addr = 0x24

// Registers.
const (
	RegChipID   = 0x00
	RegStatus   = 0x0a
	RegPassword = 0x0b
	RegDefDCDC1 = 0x0e
	RegDefDCDC2 = 0x0f
	RegDefDCDC3 = 0x10
	RegDefSlew  = 0x11
	RegDefLDO1  = 0x12
	RegDefLDO2  = 0x13
	RegDefLS1   = 0x14
	RegDefLS2   = 0x15
	RegEnable   = 0x16
	RegSeq6     = 0x1e
)

// PasswordKey is XORed with the register address to unlock a protected
// write.
const PasswordKey = 0x7d

// Chip numbers in the upper nibble of RegChipID.
const (
	ChipA = 0x7
	ChipB = 0xf
)

// Rail voltage codes.
const (
	DCDC1V1 = 0x08
	DCDC1V2 = 0x0c
	DCDC1V5 = 0x18
	DCDC3V3 = 0x38

	LDO1V1 = 0x01
	LDO3V3 = 0x0f

	// LSAsLDO turns a load switch into an LDO
	LSAsLDO = 0x20
	LS2V5   = 0x0f
	LS3V3   = 0x1f
)

// RegDefSlew bits.
const (
	SlewGo   = 0x80
	SlewFast = 0x06
)

// RegEnable bits.
const (
	EnableLS1  = 0x40
	EnableLS2  = 0x20
	EnableDC1  = 0x10
	EnableDC2  = 0x08
	EnableDC3  = 0x04
	EnableLDO1 = 0x02
	EnableLDO2 = 0x01

	EnableAll = EnableLS1 | EnableLS2 | EnableDC1 | EnableDC2 | EnableDC3 | EnableLDO1 | EnableLDO2
)

// RegSeq6 bits.
const (
	Seq6Up      = 0x04
	Seq6Down    = 0x02
	Seq6InstDwn = 0x01
)

// StatusPushButton is set in RegStatus while the push button is held.
const StatusPushButton = 0x01
