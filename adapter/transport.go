package adapter

// ConnState is the USB connection state reported by a Transport.
type ConnState int

const (
	// StateDisconnected means no bus power
	StateDisconnected ConnState = iota

	// StateConnectedNoEnum means powered but not yet enumerated
	StateConnectedNoEnum

	// StateEnumInProgress means enumeration has started
	StateEnumInProgress

	// StateActive means enumerated and running
	StateActive

	// StateSuspended means enumerated and suspended by the host
	StateSuspended

	// StateNoEnumSuspended means suspended before enumeration finished
	StateNoEnumSuspended

	// StateError means the transport failed
	StateError
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnectedNoEnum:
		return "connected"
	case StateEnumInProgress:
		return "enumerating"
	case StateActive:
		return "active"
	case StateSuspended:
		return "suspended"
	case StateNoEnumSuspended:
		return "suspended-noenum"
	case StateError:
		return "error"
	}
	return "unknown"
}

// EndpointID names a logical bulk endpoint pair.
type EndpointID int

const (
	// EndpointBlaster carries the USB-Blaster byte stream
	EndpointBlaster EndpointID = iota

	// EndpointFlash carries flash transactions
	EndpointFlash
)

func (id EndpointID) String() string {
	switch id {
	case EndpointBlaster:
		return "blaster"
	case EndpointFlash:
		return "flash"
	}
	return "unknown"
}

// Endpoint is one bulk IN/OUT pair.
type Endpoint interface {
	// Buffered returns the number of received bytes waiting.
	Buffered() int

	// Receive copies up to len(p) waiting bytes into p without blocking.
	Receive(p []byte) int

	// Send queues one packet to the host. A zero-length p sends a
	// zero-length packet.
	Send(p []byte) error
}

// Transport is the USB device stack seen by the controller.
type Transport interface {
	State() ConnState
	Endpoint(id EndpointID) Endpoint
}

// Board switches the FPGA supply. It is satisfied by *pmic.TPS65217.
type Board interface {
	PowerUp() error
	PowerDown() error
}
