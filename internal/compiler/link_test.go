package compiler

import (
	"context"
	encbinary "encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/singlepass/internal/config"
	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/logging"
)

func compileTestModule(t *testing.T, src string) *CompiledModule {
	c, err := New(config.Default().Compiler, nil, logging.LogScopeNone)
	require.NoError(t, err)
	cm, err := c.CompileModule(context.Background(), parseTestModule(t, src))
	require.NoError(t, err)
	return cm
}

func TestLink(t *testing.T) {
	cm := compileTestModule(t, testModuleSource)
	const base = 0x7f00_0000_0000
	img, err := Link(cm, base)
	require.NoError(t, err)
	require.Equal(t, uint64(base), img.Base)

	var kinds []SymbolKind
	end := 0
	for _, s := range img.Symbols {
		kinds = append(kinds, s.Kind)
		require.Zero(t, s.Offset%16, "%s[%d]", s.Kind, s.Index)
		require.GreaterOrEqual(t, s.Offset, end)
		end = s.Offset + s.Size
	}
	require.Equal(t, len(img.Code), end)
	require.Equal(t, []SymbolKind{
		SymbolKindFunction, SymbolKindFunction, SymbolKindFunction,
		SymbolKindImportCall,
		SymbolKindEntryTrampoline, SymbolKindEntryTrampoline,
		SymbolKindDynamicImportTrampoline,
	}, kinds)

	sym, ok := img.Lookup(SymbolKindEntryTrampoline, 1)
	require.True(t, ok)
	require.Equal(t, "i32i32_i32", sym.Name)
	require.Equal(t, cm.Trampolines[1].Body, img.Code[sym.Offset:sym.Offset+sym.Size])

	_, ok = img.Lookup(SymbolKindFunction, 3)
	require.False(t, ok)

	// "run" calls the import and then "add": each call materializes the target address in four lanes.
	run, ok := img.Lookup(SymbolKindFunction, 1)
	require.True(t, ok)
	addresses := map[singlepass.RelocationTarget]uint64{}
	for _, r := range cm.Functions[1].Relocations {
		w := encbinary.LittleEndian.Uint32(img.Code[run.Offset+int(r.Offset):])
		shift := 16 * uint(r.Kind-singlepass.RelocationKindArm64Movw0)
		addresses[r.Target] |= uint64(w>>5&0xffff) << shift
	}
	importCall, _ := img.Lookup(SymbolKindImportCall, 0)
	add, _ := img.Lookup(SymbolKindFunction, 0)
	require.Equal(t, map[singlepass.RelocationTarget]uint64{
		{Kind: singlepass.RelocationTargetCustomSection, Index: 0}: base + uint64(importCall.Offset),
		{Kind: singlepass.RelocationTargetLocalFunc, Index: 0}:     base + uint64(add.Offset),
	}, addresses)
}

func TestLink_unresolved(t *testing.T) {
	tests := []struct {
		name   string
		target singlepass.RelocationTarget
		expErr string
	}{
		{
			name:   "library call",
			target: singlepass.RelocationTarget{Kind: singlepass.RelocationTargetLibCall, Index: 2},
			expErr: "failed to link function[0]: failed to resolve libcall[2]: unresolved relocation target: libcall[2]",
		},
		{
			name:   "missing function",
			target: singlepass.RelocationTarget{Kind: singlepass.RelocationTargetLocalFunc, Index: 9},
			expErr: "failed to link function[0]: failed to resolve func[9]: unresolved relocation target: func[9]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cm := &CompiledModule{Functions: []*CompiledFunction{{
				Body:        make([]byte, 16),
				Relocations: []singlepass.Relocation{{Kind: singlepass.RelocationKindAbs8, Target: tc.target}},
			}}}
			_, err := Link(cm, 0)
			require.ErrorIs(t, err, ErrUnresolved)
			require.EqualError(t, err, tc.expErr)
		})
	}
}
