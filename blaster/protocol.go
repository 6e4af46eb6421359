package blaster

import "github.com/moffa90/go-ordb3/jtag"

// Bit-mode command bits.
const (
	// BitTCK drives the JTAG clock
	BitTCK = 0x01

	// BitTMS drives the mode select line
	BitTMS = 0x02

	// BitTDI drives the data line into the chain
	BitTDI = 0x10

	// BitLED drives the activity LED, output enable on some boards
	BitLED = 0x20

	// BitRead requests a reply for this byte, or for every data byte of a
	// byte-mode run
	BitRead = 0x40

	// BitByteMode marks a byte-mode header
	BitByteMode = 0x80

	// CountMask extracts the data byte count from a header
	CountMask = 0x3f
)

// MaxShiftCount is the largest data run one header can announce.
const MaxShiftCount = CountMask

// State is the framing state carried between bytes and packets.
type State struct {
	// BytesToShift is the number of raw data bytes still expected. A byte
	// is a command only when this is zero.
	BytesToShift int

	// ReadEnabled is the read flag of the last command byte.
	ReadEnabled bool
}

// Engine applies a USB-Blaster stream to a JTAG chain.
type Engine struct {
	shifter *jtag.Shifter
	state   State
	scratch [MaxShiftCount]byte
}

// New creates an engine in command mode.
func New(shifter *jtag.Shifter) *Engine {
	if shifter == nil {
		panic("shifter cannot be nil")
	}
	return &Engine{shifter: shifter}
}

// State returns the current framing state.
func (e *Engine) State() State {
	return e.state
}

// Reset drops any outstanding data count.
func (e *Engine) Reset() {
	e.state = State{}
}

// ProcessByte applies one byte and returns the reply byte. ok is false when
// the byte produces no reply.
func (e *Engine) ProcessByte(b byte) (reply byte, ok bool) {
	if e.state.BytesToShift > 0 {
		e.state.BytesToShift--
		e.scratch[0] = b
		e.shifter.ShiftBytes(e.scratch[:1], e.scratch[:1])
		return e.scratch[0], e.state.ReadEnabled
	}

	e.state.ReadEnabled = b&BitRead != 0
	if b&BitByteMode != 0 {
		e.state.BytesToShift = int(b & CountMask)
		return 0, false
	}

	p := e.shifter.Drive(Decode(b))
	if p.TDO {
		reply = 1
	}
	return reply, e.state.ReadEnabled
}

// ProcessBuffer applies a whole packet and compacts the reply bytes into
// the front of buf, returning how many there are. Contiguous data bytes are
// shifted with one byte-run call.
func (e *Engine) ProcessBuffer(buf []byte) int {
	out := 0
	for i := 0; i < len(buf); {
		if n := e.state.BytesToShift; n > 0 {
			if rest := len(buf) - i; n > rest {
				n = rest
			}
			run := buf[i : i+n]
			var in []byte
			if e.state.ReadEnabled {
				in = e.scratch[:n]
			}
			e.shifter.ShiftBytes(run, in)
			out += copy(buf[out:], in)
			e.state.BytesToShift -= n
			i += n
			continue
		}

		if r, ok := e.ProcessByte(buf[i]); ok {
			buf[out] = r
			out++
		}
		i++
	}
	return out
}

// Decode maps a bit-mode command byte to pin levels.
func Decode(b byte) jtag.PinState {
	return jtag.PinState{
		TCK: b&BitTCK != 0,
		TMS: b&BitTMS != 0,
		TDI: b&BitTDI != 0,
		LED: b&BitLED != 0,
	}
}

// Encode maps pin levels to a bit-mode command byte.
func Encode(p jtag.PinState, read bool) byte {
	var b byte
	if p.TCK {
		b |= BitTCK
	}
	if p.TMS {
		b |= BitTMS
	}
	if p.TDI {
		b |= BitTDI
	}
	if p.LED {
		b |= BitLED
	}
	if read {
		b |= BitRead
	}
	return b
}
