// Package pmic drives the TPS65217 power management chip that feeds the
// FPGA rails on ORDB3 boards.
//
// The chip sits on I2C at address 0x24. Most configuration registers are
// password protected: the password register is written with 0x7D XOR the
// target register address right before the target write. Level 2
// registers (rail voltages, slew control) need that pair written twice.
//
// TPS65217 implements adapter.Board, so the adapter can cut FPGA power
// while the USB host is suspended:
//
//	bus, _ := i2creg.Open("")
//	pm := pmic.New(bus, pmic.WithEnablePin(gpioreg.ByName("GPIO17")))
//	if err := pm.Init(); err != nil {
//	    log.Fatal(err)
//	}
//	ctl := adapter.New(tr, shifter, flash, adapter.WithBoard(pm))
package pmic
