package fpgacfg

// Target describes the JTAG configuration interface of one FPGA.
type Target struct {
	// Name is used in logs and errors
	Name string

	// IRLength is the instruction register length in bits
	IRLength int

	// Instruction opcodes
	Program     uint64
	CheckStatus uint64
	Startup     uint64
	Bypass      uint64

	// ResetClocks is the idle time after loading PROGRAM, letting the
	// device clear its configuration memory
	ResetClocks int

	// StatusClocks is the Pause-IR time after loading CHECK_STATUS
	StatusClocks int

	// StartupClocks is the idle time the device needs to enter user mode
	StartupClocks int

	// BypassClocks is the idle time after the final BYPASS
	BypassClocks int

	// StatusBits is the length of the CHECK_STATUS scan chain and
	// ConfDoneBit the position of CONF_DONE in it
	StatusBits  int
	ConfDoneBit int
}

// EP4CE22 is the Cyclone IV E part fitted to ORDB3 boards.
var EP4CE22 = Target{
	Name:          "EP4CE22",
	IRLength:      10,
	Program:       0x002,
	CheckStatus:   0x004,
	Startup:       0x003,
	Bypass:        0x3ff,
	ResetClocks:   25000,
	StatusClocks:  125,
	StartupClocks: 4096,
	BypassClocks:  350,
	StatusBits:    732,
	ConfDoneBit:   286,
}

// Targets lists the built-in profiles by name.
var Targets = map[string]Target{
	EP4CE22.Name: EP4CE22,
}

func (t Target) validate() error {
	switch {
	case t.IRLength <= 0 || t.IRLength > 64:
		return &TargetError{Target: t.Name, Reason: "IR length must be 1-64"}
	case t.StatusBits <= 0:
		return &TargetError{Target: t.Name, Reason: "status chain length must be positive"}
	case t.ConfDoneBit < 0 || t.ConfDoneBit >= t.StatusBits:
		return &TargetError{Target: t.Name, Reason: "CONF_DONE bit outside the status chain"}
	}
	return nil
}
