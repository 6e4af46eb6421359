package nand

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when the ready/busy line stayed low for the
	// whole poll budget
	ErrNotReady = errors.New("nand: chip not ready")

	// ErrClosed is returned by operations that need an open device
	ErrClosed = errors.New("nand: device closed")

	// ErrNoGeometry is returned when page addressing is needed before a
	// successful probe
	ErrNoGeometry = errors.New("nand: geometry unknown, probe first")
)

// ProbeError reports the stage at which Probe stopped.
type ProbeError struct {
	// Code is the probe result length
	Code int
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("nand probe failed: %s (code %d)", probeStage(e.Code), e.Code)
}

// IsProbeError returns true if the error is a ProbeError.
func IsProbeError(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe)
}

func probeStage(code int) string {
	switch code {
	case ProbeNotReady:
		return "chip not ready"
	case ProbeNoSignature:
		return "no ONFI signature"
	case ProbeECCTimeout:
		return "ECC enable timed out"
	case ProbeParamTimeout:
		return "parameter page timed out"
	case ProbeParamCorrupt:
		return "parameter page corrupt"
	case ProbeResultSize:
		return "success"
	default:
		return "unknown stage"
	}
}
