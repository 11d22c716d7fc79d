package singlepass

import (
	"encoding/binary"
	"fmt"
)

// RelocationKind is the patching rule of a Relocation.
type RelocationKind byte

const (
	// RelocationKindArm64Movw0 patches bits [0, 16) of the target address into the imm16 of a MOVK.
	RelocationKindArm64Movw0 RelocationKind = iota
	// RelocationKindArm64Movw1 patches bits [16, 32).
	RelocationKindArm64Movw1
	// RelocationKindArm64Movw2 patches bits [32, 48).
	RelocationKindArm64Movw2
	// RelocationKindArm64Movw3 patches bits [48, 64).
	RelocationKindArm64Movw3
	// RelocationKindArm64Call patches the PC-relative imm26 of a BL.
	RelocationKindArm64Call
	// RelocationKindAbs8 writes the absolute 64-bit address.
	RelocationKindAbs8
)

// String implements fmt.Stringer.
func (k RelocationKind) String() string {
	switch k {
	case RelocationKindArm64Movw0:
		return "arm64_movw0"
	case RelocationKindArm64Movw1:
		return "arm64_movw1"
	case RelocationKindArm64Movw2:
		return "arm64_movw2"
	case RelocationKindArm64Movw3:
		return "arm64_movw3"
	case RelocationKindArm64Call:
		return "arm64_call"
	case RelocationKindAbs8:
		return "abs8"
	}
	return fmt.Sprintf("relocation_kind(%d)", byte(k))
}

// RelocationTargetKind tells what RelocationTarget.Index refers to.
type RelocationTargetKind byte

const (
	RelocationTargetLocalFunc RelocationTargetKind = iota
	RelocationTargetLibCall
	RelocationTargetCustomSection
)

// RelocationTarget is the symbol whose address is patched in.
type RelocationTarget struct {
	Kind  RelocationTargetKind
	Index uint32
}

// String implements fmt.Stringer.
func (t RelocationTarget) String() string {
	switch t.Kind {
	case RelocationTargetLocalFunc:
		return fmt.Sprintf("func[%d]", t.Index)
	case RelocationTargetLibCall:
		return fmt.Sprintf("libcall[%d]", t.Index)
	case RelocationTargetCustomSection:
		return fmt.Sprintf("section[%d]", t.Index)
	}
	return fmt.Sprintf("target(%d)[%d]", t.Kind, t.Index)
}

// Relocation is a place in a function body which refers to an address unknown at code generation time.
type Relocation struct {
	Kind   RelocationKind
	Target RelocationTarget
	// Offset is the byte offset of the instruction (or data) to patch, relative to the body.
	Offset uint32
	Addend int64
}

// ResolveRelocations patches code, which will live at the absolute address base, with the addresses
// returned by resolve.
func ResolveRelocations(code []byte, base uint64, relocations []Relocation, resolve func(RelocationTarget) (uint64, error)) error {
	for _, r := range relocations {
		target, err := resolve(r.Target)
		if err != nil {
			return fmt.Errorf("failed to resolve %s: %w", r.Target, err)
		}
		value := uint64(int64(target) + r.Addend)

		size := 4
		if r.Kind == RelocationKindAbs8 {
			size = 8
		}
		if int(r.Offset)+size > len(code) {
			return fmt.Errorf("%s relocation at %#x is outside of the code (size %d)", r.Kind, r.Offset, len(code))
		}
		at := code[r.Offset:]

		switch r.Kind {
		case RelocationKindArm64Movw0, RelocationKindArm64Movw1, RelocationKindArm64Movw2, RelocationKindArm64Movw3:
			shift := 16 * uint(r.Kind-RelocationKindArm64Movw0)
			imm16 := uint32(value>>shift) & 0xffff
			w := binary.LittleEndian.Uint32(at)
			w = w&^(0xffff<<5) | imm16<<5
			binary.LittleEndian.PutUint32(at, w)
		case RelocationKindArm64Call:
			diff := int64(value) - int64(base+uint64(r.Offset))
			if diff%4 != 0 || diff < -(1<<27) || diff >= 1<<27 {
				return fmt.Errorf("call at %#x to %s out of range: %d", r.Offset, r.Target, diff)
			}
			w := binary.LittleEndian.Uint32(at)
			w = w&^0x3ffffff | uint32(diff/4)&0x3ffffff
			binary.LittleEndian.PutUint32(at, w)
		case RelocationKindAbs8:
			binary.LittleEndian.PutUint64(at, value)
		default:
			return fmt.Errorf("unknown relocation kind %s", r.Kind)
		}
	}
	return nil
}
