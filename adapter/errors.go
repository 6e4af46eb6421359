package adapter

import (
	"errors"
	"fmt"
)

// ErrBootloader is returned by Poll and Run after the host asked the
// adapter to jump into its bootloader.
var ErrBootloader = errors.New("adapter: bootloader requested")

// ErrUnsupportedRequest is returned by HandleControl for requests the
// adapter stalls.
var ErrUnsupportedRequest = errors.New("adapter: unsupported control request")

// EndpointError wraps a failed endpoint send.
type EndpointError struct {
	Endpoint EndpointID
	Err      error
}

func (e *EndpointError) Error() string {
	return fmt.Sprintf("%s endpoint: %v", e.Endpoint, e.Err)
}

func (e *EndpointError) Unwrap() error {
	return e.Err
}
