// Package blaster interprets the USB-Blaster byte protocol.
//
// The host sends an opaque byte stream; each byte is either a bit-mode
// command that sets the JTAG lines directly or a byte-mode header followed
// by raw TDI bytes. Replies are produced only for bytes sent with the read
// flag set.
//
// # Wire Format
//
//	bit 7 = 0  bit mode:  bit0=TCK bit1=TMS bit4=TDI bit5=LED/OE bit6=read
//	           reply:     bit0=TDO
//	bit 7 = 1  byte mode: bits5:0 = count of following data bytes, bit6=read
//	           reply:     one TDO byte per data byte
//
// A header is only recognized when no data bytes are outstanding, and the
// state carries over from one USB packet to the next.
//
//	e := blaster.New(shifter)
//	n := e.ProcessBuffer(packet) // packet[:n] is the reply
//
// Encoder builds the same stream on the host side.
package blaster
