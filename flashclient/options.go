package flashclient

import "github.com/moffa90/go-ordb3/flashproto"

// DefaultChunkSize is the largest slice handed to one Write call.
const DefaultChunkSize = 4096

// Config holds the client configuration.
type Config struct {
	// ProgressCallback is called during image transfers (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// Retries is the number of extra status reads while the chip reports
	// busy after a program, erase or reset
	Retries int

	// ChunkSize bounds each Write on the endpoint
	ChunkSize int
}

func defaultConfig() Config {
	return Config{
		Retries:   3,
		ChunkSize: DefaultChunkSize,
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Config)

// WithProgressCallback sets a callback function to track image transfers.
//
// Example:
//
//	client := flashclient.New(ep,
//	    flashclient.WithProgressCallback(func(p flashclient.Progress) {
//	        fmt.Printf("%.1f%% complete\n", p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for client operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithRetries sets the number of extra status reads on a busy chip.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.Retries = retries
		}
	}
}

// WithChunkSize bounds each endpoint write. A header must arrive in one
// piece, so sizes below flashproto.HeaderSize are ignored, as are sizes
// above 65536.
//
// Example:
//
//	client := flashclient.New(ep, flashclient.WithChunkSize(64))
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size >= flashproto.HeaderSize && size <= 65536 {
			c.ChunkSize = size
		}
	}
}
