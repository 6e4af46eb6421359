// Package adapter runs the ORDB3 adapter: the main loop that serves the
// USB-Blaster and flash endpoints, answers vendor control requests and
// configures the FPGA from flash at boot.
//
// # Scheduling
//
// All protocol state lives in one Controller and is touched only by the
// goroutine calling Poll or Run. Other goroutines play the part of
// interrupt handlers: NotifyReceive, FPGACommand, Tick and HandleControl
// only set flags and wake the loop through the Sleeper, which never misses
// a wake that races with going to sleep.
//
// # Flash Endpoint
//
// The flash endpoint carries flashproto requests. A request is accepted only
// while the previous one is finished; its address and write bytes are fed to
// the NAND bus as they arrive and its read bytes are returned in packets of
// at most flashproto.MaxPacketRead bytes. A header that fails validation is
// dropped together with everything buffered behind it.
//
// # Connection States
//
// The FPGA is powered while the bus is enumerated and powered down when the
// host suspends it. See ConnState.
package adapter
