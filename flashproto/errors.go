package flashproto

import (
	"errors"
	"fmt"
)

// RequestError reports a header the adapter would drop.
type RequestError struct {
	Request Request
	Reason  string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid flash request (%s): %s", e.Request, e.Reason)
}

// IsRequestError returns true if the error is a RequestError.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}
