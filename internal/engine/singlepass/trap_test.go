package singlepass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrapTable_collect(t *testing.T) {
	var tbl trapTable
	require.Empty(t, tbl.collect())

	tbl.insert(12, TrapCodeIntegerOverflow, 3)
	tbl.insert(4, TrapCodeHeapAccessOutOfBounds, 1)
	tbl.insert(8, TrapCodeIntegerDivisionByZero, 2)
	// Re-marking an offset keeps the latest code.
	tbl.insert(4, TrapCodeHeapMisaligned, 5)

	require.Equal(t, []TrapInformation{
		{CodeOffset: 4, SourceLoc: 5, TrapCode: TrapCodeHeapMisaligned},
		{CodeOffset: 8, SourceLoc: 2, TrapCode: TrapCodeIntegerDivisionByZero},
		{CodeOffset: 12, SourceLoc: 3, TrapCode: TrapCodeIntegerOverflow},
	}, tbl.collect())

	tbl.reset()
	require.Empty(t, tbl.collect())
}

func TestTrapCode_String(t *testing.T) {
	tests := []struct {
		code TrapCode
		exp  string
	}{
		{code: TrapCodeStackOverflow, exp: "stack_overflow"},
		{code: TrapCodeHeapAccessOutOfBounds, exp: "heap_access_out_of_bounds"},
		{code: TrapCodeHeapMisaligned, exp: "heap_misaligned"},
		{code: TrapCodeTableAccessOutOfBounds, exp: "table_access_out_of_bounds"},
		{code: TrapCodeIndirectCallToNull, exp: "indirect_call_to_null"},
		{code: TrapCodeBadSignature, exp: "bad_signature"},
		{code: TrapCodeIntegerOverflow, exp: "integer_overflow"},
		{code: TrapCodeIntegerDivisionByZero, exp: "integer_division_by_zero"},
		{code: TrapCodeBadConversionToInteger, exp: "bad_conversion_to_integer"},
		{code: TrapCodeUnreachableCodeReached, exp: "unreachable_code_reached"},
		{code: TrapCodeUnalignedAtomic, exp: "unaligned_atomic"},
		{code: TrapCode(100), exp: "trap_code(100)"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.exp, tc.code.String())
	}
}
