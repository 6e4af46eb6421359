package flashclient

import (
	"errors"
	"fmt"
)

// ErrNoImage is returned by ReadImage when the directory lists no block.
var ErrNoImage = errors.New("no image in flash")

// Error wraps a failed transfer on the endpoint.
type Error struct {
	// Op names the request, e.g. "cmd 0x70"
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("flash %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError indicates that the chip reported a failed operation or
// stayed busy.
type StatusError struct {
	Op     string
	Page   uint32
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed at page %d: status 0x%02X", e.Op, e.Page, e.Status)
}

// BadBlockError indicates that a block the operation needs carries a bad
// block marker.
type BadBlockError struct {
	Block uint32
}

func (e *BadBlockError) Error() string {
	return fmt.Sprintf("block %d is marked bad", e.Block)
}

// IsStatusError returns true if the error is a StatusError.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// IsBadBlockError returns true if the error is a BadBlockError.
func IsBadBlockError(err error) bool {
	var be *BadBlockError
	return errors.As(err, &be)
}
