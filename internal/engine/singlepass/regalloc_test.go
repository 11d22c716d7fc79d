package singlepass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

func TestRegisterAllocator_Pick(t *testing.T) {
	r := NewRegisterAllocator()

	reg, ok := r.Pick(RegisterClassGPR)
	require.True(t, ok)
	require.Equal(t, arm64.RegR0, reg)
	// Pick doesn't mark.
	require.False(t, r.IsUsed(reg))

	for _, c := range gprCandidates[:15] {
		r.Reserve(c)
	}
	reg, ok = r.Pick(RegisterClassGPR)
	require.True(t, ok)
	require.Equal(t, arm64.RegR15, reg)

	r.Reserve(arm64.RegR15)
	_, ok = r.Pick(RegisterClassGPR)
	require.False(t, ok)

	reg, ok = r.Pick(RegisterClassSIMD)
	require.True(t, ok)
	require.Equal(t, arm64.RegV8, reg)
}

func TestRegisterAllocator_AcquireTemp(t *testing.T) {
	r := NewRegisterAllocator()
	var got []asm.Register
	for {
		reg, ok := r.AcquireTemp(RegisterClassGPR)
		if !ok {
			break
		}
		require.True(t, r.IsUsed(reg))
		got = append(got, reg)
	}
	require.Equal(t, tempGPRs, got)

	r.Release(arm64.RegR3)
	reg, ok := r.AcquireTemp(RegisterClassGPR)
	require.True(t, ok)
	require.Equal(t, arm64.RegR3, reg)

	reg, ok = r.AcquireTemp(RegisterClassSIMD)
	require.True(t, ok)
	require.Equal(t, arm64.RegV0, reg)
}

func TestRegisterAllocator_Release(t *testing.T) {
	r := NewRegisterAllocator()
	require.PanicsWithValue(t, "BUG: releasing x0 which is not in use", func() { r.Release(arm64.RegR0) })
	require.PanicsWithValue(t, "BUG: releasing v2 which is not in use", func() { r.Release(arm64.RegV2) })

	r.Reserve(arm64.RegR0)
	r.Release(arm64.RegR0)
	require.False(t, r.IsUsed(arm64.RegR0))
}

func TestRegisterAllocator_ReserveUnusedTemp(t *testing.T) {
	r := NewRegisterAllocator()
	require.Equal(t, arm64.RegR4, r.ReserveUnusedTemp(arm64.RegR4))
	require.PanicsWithValue(t, "BUG: x4 is already in use", func() { r.ReserveUnusedTemp(arm64.RegR4) })
}

func TestRegisterAllocator_unallocatable(t *testing.T) {
	r := NewRegisterAllocator()
	require.PanicsWithValue(t, "BUG: sp cannot be allocated", func() { r.Reserve(arm64.RegSP) })
	require.PanicsWithValue(t, "BUG: xzr cannot be allocated", func() { r.IsUsed(arm64.RegRZR) })
}

func TestRegisterAllocator_Used(t *testing.T) {
	r := NewRegisterAllocator()
	require.Empty(t, r.Used(RegisterClassGPR))

	for _, reg := range []asm.Register{arm64.RegR9, arm64.RegR1, arm64.RegR25, arm64.RegV1, arm64.RegV0} {
		r.Reserve(reg)
	}
	require.Equal(t, []asm.Register{arm64.RegR1, arm64.RegR9, arm64.RegR25}, r.Used(RegisterClassGPR))
	require.Equal(t, []asm.Register{arm64.RegV0, arm64.RegV1}, r.Used(RegisterClassSIMD))
}

func TestRegisterAllocator_Snapshot(t *testing.T) {
	r := NewRegisterAllocator()
	empty := r.Snapshot()
	require.Equal(t, "[]", empty.String())

	r.Reserve(arm64.RegR0)
	r.Reserve(arm64.RegV1)
	snapshot := r.Snapshot()
	require.NotEqual(t, empty, snapshot)
	require.Equal(t, "[x0,v1]", snapshot.String())

	r.Reset()
	require.Equal(t, empty, r.Snapshot())
}

func TestRegisterClass_String(t *testing.T) {
	require.Equal(t, "gpr", RegisterClassGPR.String())
	require.Equal(t, "simd", RegisterClassSIMD.String())
}
