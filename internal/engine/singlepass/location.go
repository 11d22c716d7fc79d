package singlepass

import (
	"fmt"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

// LocationKind is the tag of Location.
type LocationKind byte

const (
	LocationKindNone LocationKind = iota
	LocationKindGPR
	LocationKindSIMD
	LocationKindMemory
	LocationKindImm8
	LocationKindImm32
	LocationKindImm64
)

// String implements fmt.Stringer.
func (k LocationKind) String() string {
	switch k {
	case LocationKindGPR:
		return "GPR"
	case LocationKindSIMD:
		return "SIMD"
	case LocationKindMemory:
		return "Memory"
	case LocationKindImm8:
		return "Imm8"
	case LocationKindImm32:
		return "Imm32"
	case LocationKindImm64:
		return "Imm64"
	}
	return "None"
}

// Location describes where an operand currently lives: a register, a memory slot addressed
// relative to a base register, or an immediate.
//
// Location is comparable and two Locations are equal iff they describe the same place.
type Location struct {
	Kind LocationKind
	// Reg is the register of GPR and SIMD locations, and the base register of Memory locations.
	Reg asm.Register
	// Offset is the signed byte offset of Memory locations.
	Offset int32
	// Imm is the value of immediates.
	Imm uint64
}

// GPR returns the location of the general purpose register r.
func GPR(r asm.Register) Location { return Location{Kind: LocationKindGPR, Reg: r} }

// SIMD returns the location of the vector register r.
func SIMD(r asm.Register) Location { return Location{Kind: LocationKindSIMD, Reg: r} }

// Memory returns the location at base+offset.
func Memory(base asm.Register, offset int32) Location {
	return Location{Kind: LocationKindMemory, Reg: base, Offset: offset}
}

// Imm8 returns an 8-bit immediate.
func Imm8(v uint8) Location { return Location{Kind: LocationKindImm8, Imm: uint64(v)} }

// Imm32 returns a 32-bit immediate.
func Imm32(v uint32) Location { return Location{Kind: LocationKindImm32, Imm: uint64(v)} }

// Imm64 returns a 64-bit immediate.
func Imm64(v uint64) Location { return Location{Kind: LocationKindImm64, Imm: v} }

// IsGPR returns true if l is a general purpose register.
func (l Location) IsGPR() bool { return l.Kind == LocationKindGPR }

// IsSIMD returns true if l is a vector register.
func (l Location) IsSIMD() bool { return l.Kind == LocationKindSIMD }

// IsRegister returns true if l is any register.
func (l Location) IsRegister() bool { return l.IsGPR() || l.IsSIMD() }

// IsMemory returns true if l is a memory slot.
func (l Location) IsMemory() bool { return l.Kind == LocationKindMemory }

// IsImm returns true if l is an immediate of any width.
func (l Location) IsImm() bool {
	return l.Kind == LocationKindImm8 || l.Kind == LocationKindImm32 || l.Kind == LocationKindImm64
}

// String implements fmt.Stringer.
func (l Location) String() string {
	switch l.Kind {
	case LocationKindGPR, LocationKindSIMD:
		return fmt.Sprintf("%s(%s)", l.Kind, arm64.RegisterName(l.Reg))
	case LocationKindMemory:
		return fmt.Sprintf("Memory(%s, %d)", arm64.RegisterName(l.Reg), l.Offset)
	case LocationKindImm8, LocationKindImm32, LocationKindImm64:
		return fmt.Sprintf("%s(%#x)", l.Kind, l.Imm)
	}
	return "None"
}

// Size is the width of an operand or of a memory access.
type Size byte

const (
	S8  Size = 8
	S16 Size = 16
	S32 Size = 32
	S64 Size = 64
)

// Bits returns the width in bits.
func (s Size) Bits() byte { return byte(s) }

// Bytes returns the width in bytes.
func (s Size) Bytes() int64 { return int64(s) / 8 }

// Is64 returns true for S64.
func (s Size) Is64() bool { return s == S64 }

// String implements fmt.Stringer.
func (s Size) String() string {
	switch s {
	case S8, S16, S32, S64:
		return fmt.Sprintf("S%d", s)
	}
	return fmt.Sprintf("Size(%d)", byte(s))
}

// MemoryImmediate is the static part of a memory access: the byte offset added to the dynamic
// address, and the required alignment in bytes.
type MemoryImmediate struct {
	Offset uint32
	Align  uint32
}

// MemoryAccess bundles everything a bounds-checked memory operation needs besides its operands.
type MemoryAccess struct {
	Memarg MemoryImmediate
	// NeedCheck is true when the access must be checked against the current memory bound.
	NeedCheck bool
	// ImportedMemories is true when Offset locates a pointer to the memory definition rather than the definition itself.
	ImportedMemories bool
	// Offset is the offset of the memory definition (or of the pointer to it) in the VM context.
	Offset int32
	// HeapAccessOOB is the label of the out-of-bounds trap stub.
	HeapAccessOOB asm.Label
}
