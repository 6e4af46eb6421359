package fpgacfg

import "time"

// Configuration phases reported through Progress.
const (
	PhaseResetting = "resetting"
	PhaseStreaming = "streaming"
	PhaseChecking  = "checking"
	PhaseStarting  = "starting"
	PhaseComplete  = "complete"
)

// Progress contains information about the configuration progress.
type Progress struct {
	// Phase is one of the Phase constants
	Phase string

	// BytesSent is the number of image bytes clocked into the device
	BytesSent int64

	// TotalBytes is the number of image bytes to send, or -1 when the
	// stream runs until the source ends
	TotalBytes int64

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since configuration started
	ElapsedTime time.Duration
}

// ProgressCallback is called during configuration to report progress.
// Implementations should return quickly; the JTAG clock stops while the
// callback runs.
type ProgressCallback func(Progress)

// Logger is an optional logging interface. It matches the one used by the
// rest of the module, so one adapter serves every package.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
