// Package fpgacfg loads an FPGA configuration image over JTAG.
//
// Two strategies are available:
//
//   - StrategyDirect walks the TAP through the configuration sequence
//     itself and streams the raw image into the PROGRAM data register,
//     then checks CONF_DONE through the status scan chain.
//   - StrategyPlayer hands a Host to an external bitstream format player
//     (an XSVF interpreter, for instance) which drives the pins through
//     the Host callbacks.
//
// # Direct Sequence
//
// For a Target the direct strategy performs:
//
//	reset -> IR PROGRAM -> RUNTEST ResetClocks
//	      -> DR <image bytes>
//	      -> IR CHECK_STATUS (end in Pause-IR) -> RUNTEST StatusClocks
//	      -> DR StatusBits, test bit ConfDoneBit
//	      -> IR STARTUP -> RUNTEST StartupClocks
//	      -> IR BYPASS -> RUNTEST BypassClocks
//
// The image is streamed in chunks through the shifter's byte engine; the
// next chunk is read from flash while the previous one is clocked out.
//
// The configurator does not retry. A caller that wants another attempt
// calls Configure again.
package fpgacfg
