package arm64

import (
	"fmt"

	"github.com/tetratelabs/singlepass/internal/asm"
)

// Arm64-specific register states.
// https://community.arm.com/arm-community-blogs/b/architectures-and-processors-blog/posts/condition-codes-1-condition-flags-and-codes
//
// The values are the 4-bit "cond" field of B.cond, CSEL, CSINC and FCSEL.
const (
	CondEQ asm.ConditionalRegisterState = iota
	CondNE
	CondHS
	CondLO
	CondMI
	CondPL
	CondVS
	CondVC
	CondHI
	CondLS
	CondGE
	CondLT
	CondGT
	CondLE
	CondAL
	CondNV
)

// CondCS and CondCC are the "carry" spellings of CondHS and CondLO.
const (
	CondCS = CondHS
	CondCC = CondLO
)

// InvertCond returns the condition which holds exactly when c does not.
func InvertCond(c asm.ConditionalRegisterState) asm.ConditionalRegisterState {
	return c ^ 1
}

// CondName returns the mnemonic of the condition.
func CondName(c asm.ConditionalRegisterState) string {
	switch c {
	case CondEQ:
		return "eq"
	case CondNE:
		return "ne"
	case CondHS:
		return "hs"
	case CondLO:
		return "lo"
	case CondMI:
		return "mi"
	case CondPL:
		return "pl"
	case CondVS:
		return "vs"
	case CondVC:
		return "vc"
	case CondHI:
		return "hi"
	case CondLS:
		return "ls"
	case CondGE:
		return "ge"
	case CondLT:
		return "lt"
	case CondGT:
		return "gt"
	case CondLE:
		return "le"
	case CondAL:
		return "al"
	case CondNV:
		return "nv"
	}
	return fmt.Sprintf("cond(%d)", c)
}

// Arm64-specific registers.
// https://developer.arm.com/documentation/dui0801/a/Overview-of-AArch64-state/Predeclared-core-register-names-in-AArch64-state
const (
	// Integer registers.

	RegR0 asm.Register = asm.NilRegister + 1 + iota
	RegR1
	RegR2
	RegR3
	RegR4
	RegR5
	RegR6
	RegR7
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	RegR16
	RegR17
	RegR18
	RegR19
	RegR20
	RegR21
	RegR22
	RegR23
	RegR24
	RegR25
	RegR26
	RegR27
	RegR28
	RegR29
	RegR30
	// RegRZR and RegSP share the encoding 31; which one an instruction
	// means depends on the operand position.
	RegRZR
	RegSP

	// Scalar floating point and vector registers.

	RegV0
	RegV1
	RegV2
	RegV3
	RegV4
	RegV5
	RegV6
	RegV7
	RegV8
	RegV9
	RegV10
	RegV11
	RegV12
	RegV13
	RegV14
	RegV15
	RegV16
	RegV17
	RegV18
	RegV19
	RegV20
	RegV21
	RegV22
	RegV23
	RegV24
	RegV25
	RegV26
	RegV27
	RegV28
	RegV29
	RegV30
	RegV31
)

// Aliases of the registers with dedicated roles in the AAPCS64.
const (
	RegFP = RegR29
	RegLR = RegR30
)

// IsIntRegister returns true if r is a general purpose register, including SP and the zero register.
func IsIntRegister(r asm.Register) bool {
	return RegR0 <= r && r <= RegSP
}

// IsVectorRegister returns true if r is a SIMD & FP register.
func IsVectorRegister(r asm.Register) bool {
	return RegV0 <= r && r <= RegV31
}

// RegisterNumber returns the 5-bit number of r used in instruction encodings.
func RegisterNumber(r asm.Register) uint32 {
	switch {
	case RegR0 <= r && r <= RegR30:
		return uint32(r - RegR0)
	case r == RegRZR, r == RegSP:
		return 31
	case IsVectorRegister(r):
		return uint32(r - RegV0)
	}
	panic(fmt.Sprintf("BUG: invalid register %d", r))
}

// IntRegister returns the general purpose register whose encoding number is n (0-30).
func IntRegister(n int) asm.Register {
	return RegR0 + asm.Register(n)
}

// VectorRegister returns the vector register whose encoding number is n (0-31).
func VectorRegister(n int) asm.Register {
	return RegV0 + asm.Register(n)
}

// RegisterName returns the name of the given register.
func RegisterName(r asm.Register) string {
	switch {
	case r == asm.NilRegister:
		return "nil"
	case RegR0 <= r && r <= RegR30:
		return fmt.Sprintf("x%d", r-RegR0)
	case r == RegRZR:
		return "xzr"
	case r == RegSP:
		return "sp"
	case IsVectorRegister(r):
		return fmt.Sprintf("v%d", r-RegV0)
	}
	return "unknown"
}
