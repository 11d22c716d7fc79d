package singlepass

import (
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

func TestOperations(t *testing.T) {
	ops := Operations()
	require.True(t, sort.SliceIsSorted(ops, func(i, j int) bool { return ops[i] < ops[j] }))
	require.NotContains(t, ops, Operation("Supports"))
	require.Contains(t, ops, Operation("EmitBinopAdd32"))
	require.Contains(t, ops, Operation("I64AtomicCmpxchg32U"))
	require.Contains(t, ops, Operation("F32Nearest"))
	require.Contains(t, ops, Operation("MoveWithReloc"))

	seen := map[Operation]struct{}{}
	for _, op := range ops {
		_, dup := seen[op]
		require.False(t, dup, op)
		seen[op] = struct{}{}
	}
}

func TestMachineARM64_Supports(t *testing.T) {
	m := NewMachineARM64()
	for _, op := range Operations() {
		require.True(t, m.Supports(op), op)
	}
	require.False(t, m.Supports("V128Add"))
	require.False(t, m.Supports("Supports"))
}

func TestUnsupportedOperationError(t *testing.T) {
	err := unsupported("MoveLocation", []Size{S32}, GPR(arm64.RegR0), Imm32(1))
	require.EqualError(t, err, "unsupported operation MoveLocation (sizes [S32], locations [GPR(x0) Imm32(0x1)])")
	require.True(t, errors.Is(err, ErrUnsupported))

	wrapped := fmt.Errorf("function[3]: %w", err)
	require.ErrorIs(t, wrapped, ErrUnsupported)
	var target *UnsupportedOperationError
	require.True(t, errors.As(wrapped, &target))
	require.Equal(t, Operation("MoveLocation"), target.Operation)
}

func TestNewMachine(t *testing.T) {
	m, err := NewMachine("arm64")
	require.NoError(t, err)
	require.IsType(t, &MachineARM64{}, m)
	require.Equal(t, arm64.RegR28, m.VMContextRegister())

	_, err = NewMachine("x86")
	require.ErrorIs(t, err, ErrUnsupportedArchitecture)
	require.EqualError(t, err, "unsupported architecture: x86")
}
