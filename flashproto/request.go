package flashproto

import (
	"encoding/binary"
	"fmt"
)

// Request is one flash transaction header.
type Request struct {
	// Command is latched as a NAND command
	Command byte

	// AddressBytes is the number of address bytes that follow the header
	AddressBytes int

	// WriteLength is the number of data bytes written after the address
	WriteLength int

	// ReadLength is the number of bytes the adapter returns
	ReadLength int
}

// Validate checks the limits a device enforces on a header.
func (r Request) Validate() error {
	switch {
	case r.AddressBytes < 0 || r.AddressBytes > MaxAddressBytes:
		return &RequestError{Request: r, Reason: fmt.Sprintf("address bytes must be 0-%d", MaxAddressBytes)}
	case r.WriteLength < 0 || r.WriteLength > 0xffff:
		return &RequestError{Request: r, Reason: "write length out of range"}
	case r.ReadLength < 0 || r.ReadLength > 0xffff:
		return &RequestError{Request: r, Reason: "read length out of range"}
	case r.WriteLength > 0 && r.ReadLength > 0:
		return &RequestError{Request: r, Reason: "write and read in one request"}
	}
	return nil
}

// Idle reports whether nothing remains to transfer.
func (r Request) Idle() bool {
	return r.AddressBytes == 0 && r.WriteLength == 0 && r.ReadLength == 0
}

func (r Request) String() string {
	return fmt.Sprintf("cmd=0x%02X addr=%d write=%d read=%d",
		r.Command, r.AddressBytes, r.WriteLength, r.ReadLength)
}

// BuildRequest encodes a request header followed by its address and write
// data. len(addr) sets the address byte count and len(data) the write
// length.
//
// Example:
//
//	// Read the first 256 bytes of the ONFI parameter page.
//	frame, err := flashproto.BuildRequest(0xec, []byte{0}, nil, 256)
func BuildRequest(cmd byte, addr, data []byte, readLen int) ([]byte, error) {
	r := Request{
		Command:      cmd,
		AddressBytes: len(addr),
		WriteLength:  len(data),
		ReadLength:   readLen,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(addr)+len(data))
	frame[0] = r.Command
	frame[1] = byte(r.AddressBytes)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(r.WriteLength))
	binary.LittleEndian.PutUint16(frame[4:6], uint16(r.ReadLength))
	frame = append(frame, addr...)
	frame = append(frame, data...)
	return frame, nil
}

// ParseRequest decodes and validates a header from the start of packet.
func ParseRequest(packet []byte) (Request, error) {
	if len(packet) < HeaderSize {
		return Request{}, fmt.Errorf("request too short: got %d bytes, need %d", len(packet), HeaderSize)
	}
	r := Request{
		Command:      packet[0],
		AddressBytes: int(packet[1]),
		WriteLength:  int(binary.LittleEndian.Uint16(packet[2:4])),
		ReadLength:   int(binary.LittleEndian.Uint16(packet[4:6])),
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}
