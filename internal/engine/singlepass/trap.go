package singlepass

import (
	"fmt"
	"sort"
)

// TrapCode is the reason of a trap raised by generated code.
type TrapCode byte

const (
	TrapCodeStackOverflow TrapCode = iota
	TrapCodeHeapAccessOutOfBounds
	TrapCodeHeapMisaligned
	TrapCodeTableAccessOutOfBounds
	TrapCodeIndirectCallToNull
	TrapCodeBadSignature
	TrapCodeIntegerOverflow
	TrapCodeIntegerDivisionByZero
	TrapCodeBadConversionToInteger
	TrapCodeUnreachableCodeReached
	TrapCodeUnalignedAtomic
)

// String implements fmt.Stringer.
func (c TrapCode) String() string {
	switch c {
	case TrapCodeStackOverflow:
		return "stack_overflow"
	case TrapCodeHeapAccessOutOfBounds:
		return "heap_access_out_of_bounds"
	case TrapCodeHeapMisaligned:
		return "heap_misaligned"
	case TrapCodeTableAccessOutOfBounds:
		return "table_access_out_of_bounds"
	case TrapCodeIndirectCallToNull:
		return "indirect_call_to_null"
	case TrapCodeBadSignature:
		return "bad_signature"
	case TrapCodeIntegerOverflow:
		return "integer_overflow"
	case TrapCodeIntegerDivisionByZero:
		return "integer_division_by_zero"
	case TrapCodeBadConversionToInteger:
		return "bad_conversion_to_integer"
	case TrapCodeUnreachableCodeReached:
		return "unreachable_code_reached"
	case TrapCodeUnalignedAtomic:
		return "unaligned_atomic"
	}
	return fmt.Sprintf("trap_code(%d)", byte(c))
}

// TrapInformation tags one native code offset with the reason it may fault.
type TrapInformation struct {
	// CodeOffset is relative to the beginning of the function.
	CodeOffset uint32
	// SourceLoc is the source offset which was current when the offset was marked.
	SourceLoc uint32
	TrapCode  TrapCode
}

// InstructionAddressMap maps a range of native code back to the source offset it was generated for.
type InstructionAddressMap struct {
	SourceLoc  uint32
	CodeOffset int
	CodeLen    int
}

type trapEntry struct {
	code   TrapCode
	srcLoc uint32
}

// trapTable maps code offsets to their trap. Entries are never removed.
type trapTable struct {
	offsetToTrap map[int]trapEntry
}

func (t *trapTable) insert(offset int, code TrapCode, srcLoc uint32) {
	if t.offsetToTrap == nil {
		t.offsetToTrap = make(map[int]trapEntry)
	}
	t.offsetToTrap[offset] = trapEntry{code: code, srcLoc: srcLoc}
}

func (t *trapTable) reset() {
	t.offsetToTrap = nil
}

// collect returns the entries ordered by code offset.
func (t *trapTable) collect() []TrapInformation {
	offsets := make([]int, 0, len(t.offsetToTrap))
	for off := range t.offsetToTrap {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)
	ret := make([]TrapInformation, len(offsets))
	for i, off := range offsets {
		e := t.offsetToTrap[off]
		ret[i] = TrapInformation{CodeOffset: uint32(off), SourceLoc: e.srcLoc, TrapCode: e.code}
	}
	return ret
}
