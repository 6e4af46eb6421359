package fpgacfg

import "time"

// Strategy selects how the image reaches the device.
type Strategy int

const (
	// StrategyDirect runs the built-in configuration sequence
	StrategyDirect Strategy = iota

	// StrategyPlayer delegates to an external Player
	StrategyPlayer
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyPlayer:
		return "player"
	}
	return "invalid"
}

// DefaultChunkSize matches one ONFI page of the boards' flash.
const DefaultChunkSize = 2048

// Config holds the configurator configuration.
type Config struct {
	// ProgressCallback is called during configuration (optional)
	ProgressCallback ProgressCallback

	// Logger is used for logging operations (optional)
	Logger Logger

	// ChunkSize is the number of image bytes handed to the shifter at once
	ChunkSize int

	// Strategy selects direct streaming or an external player
	Strategy Strategy

	// Player runs the image when Strategy is StrategyPlayer
	Player Player

	// Sleep is used by Host.Delay. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

func defaultConfig() Config {
	return Config{
		ChunkSize: DefaultChunkSize,
		Strategy:  StrategyDirect,
		Sleep:     time.Sleep,
	}
}

// Option is a functional option for configuring the Configurator.
type Option func(*Config)

// WithProgressCallback sets a callback function to track progress.
//
// Example:
//
//	cfg := fpgacfg.New(shifter, fpgacfg.EP4CE22,
//	    fpgacfg.WithProgressCallback(func(p fpgacfg.Progress) {
//	        fmt.Printf("[%s] %.1f%%\n", p.Phase, p.Percentage)
//	    }),
//	)
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets a logger for configuration operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithChunkSize sets how many image bytes are shifted per transfer.
// Values outside 1-65536 are ignored.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= 65536 {
			c.ChunkSize = size
		}
	}
}

// WithPlayer selects StrategyPlayer with the given player.
//
// Example:
//
//	cfg := fpgacfg.New(shifter, fpgacfg.EP4CE22, fpgacfg.WithPlayer(xsvfPlayer))
func WithPlayer(p Player) Option {
	return func(c *Config) {
		c.Player = p
		c.Strategy = StrategyPlayer
	}
}

// WithStrategy selects the configuration strategy.
func WithStrategy(s Strategy) Option {
	return func(c *Config) {
		if s == StrategyDirect || s == StrategyPlayer {
			c.Strategy = s
		}
	}
}

// WithSleep replaces the delay function used by Host.Delay.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Config) {
		if sleep != nil {
			c.Sleep = sleep
		}
	}
}
