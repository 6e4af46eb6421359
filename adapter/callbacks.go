package adapter

// Logger is an optional logging interface that can be provided to the
// controller. This allows integration with any logging framework.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs
	Debug(msg string, keysAndValues ...interface{})

	// Info logs an info message with optional key-value pairs
	Info(msg string, keysAndValues ...interface{})

	// Error logs an error message with optional key-value pairs
	Error(msg string, keysAndValues ...interface{})
}

// CommandSink receives 7-bit command bytes sent by the FPGA over the
// shared flash data lines.
type CommandSink func(cmd byte)
