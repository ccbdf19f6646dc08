package device

import "fmt"

// MakeVersion packs "major.minor.rev.build" into a BCD version word.
// major and minor are clamped to 0..9, rev to 0..99 and build to 0..9999.
func MakeVersion(major, minor, rev, build int) uint32 {
	major, minor = clamp(major, 0, 9), clamp(minor, 0, 9)
	rev, build = clamp(rev, 0, 99), clamp(build, 0, 9999)
	return bcd(major*10+minor)<<24 | bcd(rev)<<16 | bcd(build/100)<<8 | bcd(build%100)
}

func bcd(n int) uint32 {
	var v uint32
	for shift := uint(0); n > 0; shift += 4 {
		v |= uint32(n%10) << shift
		n /= 10
	}
	return v
}

// FormatVersion renders a version word made by MakeVersion.
func FormatVersion(ver uint32) string {
	nibble := func(shift uint) uint32 { return (ver >> shift) & 0xf }
	return fmt.Sprintf("%d.%d.%d%d.%d%d%d%d",
		nibble(28), nibble(24),
		nibble(20), nibble(16),
		nibble(12), nibble(8), nibble(4), nibble(0))
}
