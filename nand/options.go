package nand

// Config holds the device configuration.
type Config struct {
	// ReadyPolls bounds every wait for the ready/busy line. The wait is
	// counted in polls, not time.
	ReadyPolls int

	// ECCAttempts is how many times Probe sends the ECC enable feature
	// before giving up on it
	ECCAttempts int

	// EnableECC turns on Micron internal ECC during Probe
	EnableECC bool
}

func defaultConfig() Config {
	return Config{
		ReadyPolls:  defaultReadyPolls,
		ECCAttempts: defaultECCAttempts,
		EnableECC:   true,
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithReadyPolls sets the ready/busy poll budget.
func WithReadyPolls(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ReadyPolls = n
		}
	}
}

// WithECCAttempts sets how often Probe retries enabling ECC.
func WithECCAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.ECCAttempts = n
		}
	}
}

// WithECC enables or disables turning on internal ECC during Probe.
// Default is true.
func WithECC(enable bool) Option {
	return func(c *Config) {
		c.EnableECC = enable
	}
}
