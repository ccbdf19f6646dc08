// Package lpf2 implements the LEGO Powered Up (LPF2) UART message format.
package lpf2

// A message starts with a header byte:
//
//	bit 7..6  kind: SYS, CMD, INFO, DATA
//	bit 5..3  length exponent e, the payload holds 1<<e bytes (1..128)
//	bit 2..0  command type (CMD), mode (INFO, DATA) or system type (SYS)
//
// INFO messages carry a second header byte with the info type, with 0x20
// set when the mode is 8..15. SYS messages are the single header byte.
// All other messages end with a checksum byte: 0xff XOR every preceding byte.
