package singlepass

import "fmt"

// CallingConvention identifies the native calling convention of a target. On arm64 every
// variant places parameters identically, so it only matters for other architectures.
type CallingConvention byte

const (
	CallingConventionSystemV CallingConvention = iota
	CallingConventionWindowsFastcall
	CallingConventionAppleAarch64
	CallingConventionAarch64
)

// String implements fmt.Stringer.
func (c CallingConvention) String() string {
	switch c {
	case CallingConventionSystemV:
		return "system_v"
	case CallingConventionWindowsFastcall:
		return "windows_fastcall"
	case CallingConventionAppleAarch64:
		return "apple_aarch64"
	case CallingConventionAarch64:
		return "aarch64"
	}
	return fmt.Sprintf("calling_convention(%d)", byte(c))
}

// ParseCallingConvention is the inverse of CallingConvention.String.
func ParseCallingConvention(s string) (CallingConvention, error) {
	for _, c := range []CallingConvention{
		CallingConventionSystemV, CallingConventionWindowsFastcall, CallingConventionAppleAarch64, CallingConventionAarch64,
	} {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown calling convention %q", s)
}
