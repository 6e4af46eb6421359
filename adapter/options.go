package adapter

import (
	"github.com/moffa90/go-ordb3/bitstream"
	"github.com/moffa90/go-ordb3/fpgacfg"
)

// DefaultLatency is the heartbeat period in milliseconds, as on the FTDI
// chips whose latency timer requests the adapter answers.
const DefaultLatency = 16

// Config holds the controller configuration.
type Config struct {
	// Logger is used for logging operations (optional)
	Logger Logger

	// Board switches FPGA power with the connection state (optional)
	Board Board

	// Configurator loads the FPGA from flash in Boot (optional)
	Configurator *fpgacfg.Configurator

	// PagerOptions are passed to the boot pager
	PagerOptions []bitstream.Option

	// ModemStatus prefixes every blaster reply packet with the two FTDI
	// modem status bytes
	ModemStatus bool

	// CommandSink receives FPGA command bytes (optional)
	CommandSink CommandSink

	// Bootloader is called when the host requests the bootloader, before
	// Run returns ErrBootloader (optional)
	Bootloader func() error

	// Latency is the initial heartbeat period in milliseconds
	Latency int
}

func defaultConfig() Config {
	return Config{Latency: DefaultLatency}
}

// Option is a functional option for configuring the Controller.
type Option func(*Config)

// WithLogger sets a logger for controller operations.
//
// Example:
//
//	ctl := adapter.New(transport, shifter, flash, adapter.WithLogger(myLogger))
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithBoard sets the board power switch.
func WithBoard(b Board) Option {
	return func(c *Config) {
		c.Board = b
	}
}

// WithConfigurator enables FPGA configuration from flash in Boot.
//
// Example:
//
//	cfg := fpgacfg.New(shifter, fpgacfg.EP4CE22)
//	ctl := adapter.New(transport, shifter, flash, adapter.WithConfigurator(cfg))
func WithConfigurator(cfg *fpgacfg.Configurator, opts ...bitstream.Option) Option {
	return func(c *Config) {
		c.Configurator = cfg
		c.PagerOptions = opts
	}
}

// WithModemStatus enables the FTDI modem status header on blaster replies.
func WithModemStatus(enabled bool) Option {
	return func(c *Config) {
		c.ModemStatus = enabled
	}
}

// WithCommandSink sets the receiver of FPGA command bytes.
func WithCommandSink(sink CommandSink) Option {
	return func(c *Config) {
		c.CommandSink = sink
	}
}

// WithBootloader sets the bootloader hook.
func WithBootloader(enter func() error) Option {
	return func(c *Config) {
		c.Bootloader = enter
	}
}

// WithLatency sets the initial heartbeat period in milliseconds (1-255).
func WithLatency(ms int) Option {
	return func(c *Config) {
		if ms > 0 && ms <= 255 {
			c.Latency = ms
		}
	}
}
