package fpgacfg

import (
	"errors"
	"fmt"
)

// ErrNoPlayer is returned when StrategyPlayer is selected without a Player.
var ErrNoPlayer = errors.New("fpgacfg: player strategy needs a player")

// StatusError indicates that CONF_DONE stayed low after the image was
// streamed.
type StatusError struct {
	Target string
	Bit    int
	Bytes  int64
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s configuration failed: CONF_DONE (status bit %d) low after %d bytes",
		e.Target, e.Bit, e.Bytes)
}

// TargetError indicates an unusable Target profile.
type TargetError struct {
	Target string
	Reason string
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("invalid target %q: %s", e.Target, e.Reason)
}

// HostError is an error reported by a player through Host.ReportError.
type HostError struct {
	File    string
	Line    int
	Message string
}

func (e *HostError) Error() string {
	if e.File == "" {
		return "player: " + e.Message
	}
	return fmt.Sprintf("player: %s:%d: %s", e.File, e.Line, e.Message)
}
