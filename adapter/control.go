package adapter

import "fmt"

// bmRequestType values.
const (
	RequestTypeVendorOut   = 0x40
	RequestTypeVendorIn    = 0xc0
	RequestTypeStandardOut = 0x00
)

// Request codes.
const (
	// RequestSetLatency sets the latency timer from wValue (FTDI SIO 9)
	RequestSetLatency = 9

	// RequestGetLatency returns the latency timer in one byte (FTDI SIO 10)
	RequestGetLatency = 10

	// RequestSetFeature is the standard SET_FEATURE request
	RequestSetFeature = 3

	// FeatureBootloader is the SET_FEATURE selector that enters the
	// bootloader
	FeatureBootloader = 1
)

// ModemStatus is the pair of status bytes an FTDI chip puts at the start of
// every IN packet.
var ModemStatus = [2]byte{0x31, 0x60}

// Setup is a USB control request.
type Setup struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

func (s Setup) String() string {
	return fmt.Sprintf("type=0x%02x req=%d value=0x%04x index=0x%04x len=%d",
		s.RequestType, s.Request, s.Value, s.Index, s.Length)
}

// HandleControl answers a control request and returns the data stage for
// IN requests. It may be called from any goroutine.
//
// Supported requests:
//   - vendor OUT 9: set the latency timer to wValue milliseconds
//   - vendor IN 10: read the latency timer
//   - any other vendor OUT request: acknowledged and ignored
//   - SET_FEATURE 1 to the device: acknowledged, then the main loop calls
//     the bootloader hook and stops with ErrBootloader
//
// Anything else returns ErrUnsupportedRequest and should be stalled.
func (c *Controller) HandleControl(s Setup, data []byte) ([]byte, error) {
	switch {
	case s.RequestType == RequestTypeVendorOut && s.Request == RequestSetLatency:
		ms := int32(s.Value & 0xff)
		if ms == 0 {
			ms = 1
		}
		c.latency.Store(ms)
		c.logDebug("latency timer set", "ms", ms)
		return nil, nil

	case s.RequestType == RequestTypeVendorIn && s.Request == RequestGetLatency:
		return []byte{byte(c.latency.Load())}, nil

	case s.RequestType == RequestTypeVendorOut:
		c.logDebug("vendor request ignored", "setup", s)
		return nil, nil

	case s.RequestType == RequestTypeStandardOut && s.Request == RequestSetFeature &&
		s.Value == FeatureBootloader && s.Index == 0:
		c.logInfo("bootloader requested")
		c.bootloader.Store(true)
		c.sleeper.Wake()
		return nil, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedRequest, s)
}
