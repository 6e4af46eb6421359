package bitstream

// EndPolicy decides what the pager does after the last listed page.
type EndPolicy int

const (
	// EndRepeatLastPage keeps requesting the last listed page forever
	EndRepeatLastPage EndPolicy = iota

	// EndOfStream returns io.EOF once the last listed page, or the
	// recorded image length, has been consumed
	EndOfStream
)

func (p EndPolicy) String() string {
	switch p {
	case EndRepeatLastPage:
		return "repeat-last-page"
	case EndOfStream:
		return "end-of-stream"
	}
	return "invalid"
}

// Config holds the pager configuration.
type Config struct {
	// End is the end of list policy
	End EndPolicy

	// CheckECC reads the status register once each page is ready and
	// fails the read when the chip flagged an uncorrectable page
	CheckECC bool
}

func defaultConfig() Config {
	return Config{End: EndRepeatLastPage}
}

// Option is a functional option for configuring a Pager.
type Option func(*Config)

// WithEndPolicy sets the end of list policy.
func WithEndPolicy(p EndPolicy) Option {
	return func(c *Config) {
		if p == EndRepeatLastPage || p == EndOfStream {
			c.End = p
		}
	}
}

// WithECCCheck enables the per page status check.
func WithECCCheck(check bool) Option {
	return func(c *Config) {
		c.CheckECC = check
	}
}
