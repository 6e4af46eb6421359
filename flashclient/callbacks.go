package flashclient

import "time"

// Progress phases.
const (
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhaseDirectory   = "directory"
	PhaseReading     = "reading"
	PhaseComplete    = "complete"
)

// Progress contains information about a running image transfer.
type Progress struct {
	// Phase is one of the Phase constants
	Phase string

	// Block is the flash block being worked on
	Block uint32

	// TotalBlocks is the number of image blocks
	TotalBlocks int

	// BytesDone is the number of image bytes transferred so far
	BytesDone int

	// TotalBytes is the image length, or -1 when not known
	TotalBytes int

	// Percentage is the completion percentage (0.0 to 100.0)
	Percentage float64

	// ElapsedTime is the time elapsed since the transfer started
	ElapsedTime time.Duration
}

// ProgressCallback is called after every page of an image transfer.
// Implementations should return quickly.
type ProgressCallback func(Progress)

// Logger is an optional logging interface.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}
