package singlepass

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/arch/arm64/arm64asm"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

// hexWords splits code into little-endian instruction words rendered the way objdump prints raw bytes.
func hexWords(code []byte) []string {
	ret := make([]string, 0, len(code)/4)
	for off := 0; off+4 <= len(code); off += 4 {
		ret = append(ret, hex.EncodeToString(code[off:off+4]))
	}
	return ret
}

func finalize(t *testing.T, m *MachineARM64) []byte {
	code, err := m.AssemblerFinalize()
	require.NoError(t, err)
	return code
}

func TestMachineARM64_prologueEpilogue(t *testing.T) {
	m := NewMachineARM64()
	m.EmitFunctionPrologue()
	m.EmitFunctionEpilogue()
	m.EmitRet()
	require.Equal(t, []string{
		"fb7bbfa9", // stp x27, x30, [sp, #-16]!
		"fb030091", // mov x27, sp
		"7f030091", // mov sp, x27
		"fb7bc1a8", // ldp x27, x30, [sp], #16
		"c0035fd6", // ret
	}, hexWords(finalize(t, m)))
}

func TestMachineARM64_pushPopParity(t *testing.T) {
	m := NewMachineARM64()
	for _, r := range []asm.Register{arm64.RegR0, arm64.RegR1, arm64.RegR2} {
		m.EmitPush(S64, GPR(r))
	}
	require.True(t, m.pushed)
	for _, r := range []asm.Register{arm64.RegR2, arm64.RegR1, arm64.RegR0} {
		m.EmitPop(S64, GPR(r))
	}
	require.False(t, m.pushed)

	require.Equal(t, []string{
		"ff4300d1", // sub sp, sp, #16
		"e00300f9", // str x0, [sp]
		"e10700f9", // str x1, [sp, #8]
		"ff4300d1", // sub sp, sp, #16
		"e20300f9", // str x2, [sp]
		"e20340f9", // ldr x2, [sp]
		"ff430091", // add sp, sp, #16
		"e10740f9", // ldr x1, [sp, #8]
		"e00340f9", // ldr x0, [sp]
		"ff430091", // add sp, sp, #16
	}, hexWords(finalize(t, m)))
}

func TestMachineARM64_EmitPush_unsupported(t *testing.T) {
	m := NewMachineARM64()
	require.PanicsWithError(t, "unsupported operation EmitPush (sizes [S32], locations [GPR(x0)])", func() {
		m.EmitPush(S32, GPR(arm64.RegR0))
	})
	require.PanicsWithError(t, "unsupported operation EmitPop (sizes [S64], locations [Imm32(0x1)])", func() {
		m.EmitPop(S64, Imm32(1))
	})
}

func TestMachineARM64_MoveLocation_unsupported(t *testing.T) {
	m := NewMachineARM64()
	require.PanicsWithError(t,
		"unsupported operation MoveLocation (sizes [S32], locations [GPR(x0) Imm32(0x1)])",
		func() { m.MoveLocation(S32, GPR(arm64.RegR0), Imm32(1)) })
	require.PanicsWithError(t,
		"unsupported operation MoveLocation (sizes [S64], locations [Memory(x27, -8) Memory(x27, -16)])",
		func() { m.MoveLocation(S64, Memory(frameBaseRegister, -8), Memory(frameBaseRegister, -16)) })
}

func TestMachineARM64_relaxedOperationsReleaseTemps(t *testing.T) {
	locs := []Location{
		GPR(arm64.RegR9),
		Memory(frameBaseRegister, -16),
		Memory(frameBaseRegister, -4096),
		Imm32(0x1234),
		Imm64(0x1_0000_0001),
	}
	writable := []Location{GPR(arm64.RegR10), Memory(frameBaseRegister, -24)}

	type op struct {
		name string
		emit func(m *MachineARM64, sz Size, src, dst Location)
	}
	ops := []op{
		{"LocationAnd", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationAnd(sz, src, dst, false) }},
		{"LocationAnd(flags)", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationAnd(sz, src, dst, true) }},
		{"LocationOr", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationOr(sz, src, dst, false) }},
		{"LocationXor", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationXor(sz, src, dst, false) }},
		{"LocationAdd", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationAdd(sz, src, dst, false) }},
		{"LocationAdd(flags)", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationAdd(sz, src, dst, true) }},
		{"LocationSub", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationSub(sz, src, dst, false) }},
		{"LocationSub(flags)", func(m *MachineARM64, sz Size, src, dst Location) { m.LocationSub(sz, src, dst, true) }},
		{"LocationTest", (*MachineARM64).LocationTest},
		{"LocationCmp", (*MachineARM64).LocationCmp},
		{"EmitRelaxedCmp", (*MachineARM64).EmitRelaxedCmp},
		{"EmitRelaxedMov", (*MachineARM64).EmitRelaxedMov},
	}

	for _, o := range ops {
		for _, sz := range []Size{S32, S64} {
			for _, src := range locs {
				for _, dst := range writable {
					name := strings.Join([]string{o.name, sz.String(), src.String(), dst.String()}, "/")
					t.Run(name, func(t *testing.T) {
						m := NewMachineARM64()
						before := m.AllocatorSnapshot()
						o.emit(m, sz, src, dst)
						require.Equal(t, before, m.AllocatorSnapshot())
						require.NotZero(t, m.Offset())
						_ = finalize(t, m)
					})
				}
			}
		}
	}
}

func TestMachineARM64_relaxedBinop_unsupported(t *testing.T) {
	m := NewMachineARM64()
	require.PanicsWithError(t,
		"unsupported operation LocationAdd (sizes [S32], locations [GPR(x0) Imm32(0x1)])",
		func() { m.LocationAdd(S32, GPR(arm64.RegR0), Imm32(1), false) })
	require.PanicsWithError(t,
		"unsupported operation LocationAnd (sizes [S16], locations [GPR(x0) GPR(x1)])",
		func() { m.LocationAnd(S16, GPR(arm64.RegR0), GPR(arm64.RegR1), false) })
	require.PanicsWithError(t,
		"unsupported operation LocationCmp (sizes [S64], locations [SIMD(v0) GPR(x1)])",
		func() { m.LocationCmp(S64, SIMD(arm64.RegV0), GPR(arm64.RegR1)) })
}

func TestMachineARM64_MoveLocationExtend(t *testing.T) {
	tests := []struct {
		name     string
		sizeVal  Size
		signed   bool
		src      Location
		sizeOp   Size
		dst      Location
		expWords int
	}{
		{name: "gpr sign 8->32", sizeVal: S8, signed: true, src: GPR(arm64.RegR1), sizeOp: S32, dst: GPR(arm64.RegR0), expWords: 1},
		{name: "gpr zero 32->64", sizeVal: S32, src: GPR(arm64.RegR1), sizeOp: S64, dst: GPR(arm64.RegR0), expWords: 1},
		{name: "gpr same width", sizeVal: S64, src: GPR(arm64.RegR1), sizeOp: S64, dst: GPR(arm64.RegR0), expWords: 1},
		{name: "memory sign 16->64", sizeVal: S16, signed: true, src: Memory(frameBaseRegister, -16), sizeOp: S64, dst: GPR(arm64.RegR0), expWords: 1},
		{name: "imm to memory", sizeVal: S8, signed: true, src: Imm32(0xff), sizeOp: S64, dst: Memory(frameBaseRegister, -16), expWords: 0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachineARM64()
			m.MoveLocationExtend(tc.sizeVal, tc.signed, tc.src, tc.sizeOp, tc.dst)
			require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())
			code := finalize(t, m)
			if tc.expWords > 0 {
				require.Equal(t, tc.expWords*4, len(code))
			} else {
				require.NotEmpty(t, code)
			}
		})
	}
}

func TestExtendImmediate(t *testing.T) {
	require.Equal(t, uint64(0xffff_ffff_ffff_ffff), extendImmediate(0xff, S8, true))
	require.Equal(t, uint64(0xff), extendImmediate(0xff, S8, false))
	require.Equal(t, uint64(0x7fff), extendImmediate(0x1_7fff, S16, true))
	require.Equal(t, uint64(0xffff_ffff_8000_0000), extendImmediate(0x8000_0000, S32, true))
	require.Equal(t, uint64(0x1234), extendImmediate(0x1234, S64, true))
}

func TestMachineARM64_LocalLocation(t *testing.T) {
	m := NewMachineARM64()
	for i := 0; i < 8; i++ {
		require.False(t, m.IsLocalOnStack(i))
		require.Equal(t, GPR(localRegisters[i]), m.LocalLocation(i, 0))
	}
	require.True(t, m.IsLocalOnStack(8))
	require.Equal(t, Memory(frameBaseRegister, -8), m.LocalLocation(8, 0))
	require.Equal(t, Memory(frameBaseRegister, -40), m.LocalLocation(9, 24))
}

func TestMachineARM64_ParamLocation(t *testing.T) {
	m := NewMachineARM64()
	for i := 0; i < 8; i++ {
		require.Equal(t, GPR(arm64.IntRegister(i)), m.ParamLocation(i, CallingConventionAarch64))
	}
	require.Equal(t, Memory(frameBaseRegister, 16), m.ParamLocation(8, CallingConventionAarch64))
	require.Equal(t, Memory(frameBaseRegister, 32), m.ParamLocation(10, CallingConventionAppleAarch64))
}

func TestMachineARM64_divisionOffset(t *testing.T) {
	a, b, ret := GPR(arm64.RegR8), GPR(arm64.RegR9), GPR(arm64.RegR10)

	t.Run("udiv", func(t *testing.T) {
		m := NewMachineARM64()
		divByZero := m.NewLabel()
		offset := m.EmitBinopUdiv32(a, b, ret, divByZero)
		m.EmitLabel(divByZero)
		require.Equal(t, 4, offset) // after cbz
		code := finalize(t, m)
		// udiv w10, w8, w9
		require.Equal(t, uint32(0x1AC9090A), binary.LittleEndian.Uint32(code[offset:]))
	})

	t.Run("sdiv", func(t *testing.T) {
		m := NewMachineARM64()
		divByZero, overflow := m.NewLabel(), m.NewLabel()
		offset := m.EmitBinopSdiv64(a, b, ret, divByZero, overflow)
		m.EmitLabel(divByZero)
		m.EmitLabel(overflow)
		require.Equal(t, 20, offset) // after cbz, cmn, b.ne, cmp, b.vs
		_ = finalize(t, m)
	})

	t.Run("srem", func(t *testing.T) {
		m := NewMachineARM64()
		divByZero := m.NewLabel()
		offset := m.EmitBinopSrem32(a, b, ret, divByZero)
		m.EmitLabel(divByZero)
		require.Equal(t, 4, offset)
		require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())
		// cbz, sdiv, msub
		require.Equal(t, 12, len(finalize(t, m)))
	})
}

func TestMachineARM64_memoryOpTrapsAndAddressMap(t *testing.T) {
	m := NewMachineARM64()
	m.SetSourceLocation(42)
	oob := m.NewLabel()
	access := MemoryAccess{
		Memarg:        MemoryImmediate{Offset: 8, Align: 4},
		NeedCheck:     true,
		Offset:        int32(VMContextOffsets{LocalMemories: 1}.LocalMemory(0)),
		HeapAccessOOB: oob,
	}
	m.I32AtomicAdd(GPR(arm64.RegR9), GPR(arm64.RegR8), access, GPR(arm64.RegR10))
	m.EmitLabel(oob)
	require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())
	end := m.Offset()

	traps := m.CollectTrapInformation()
	require.NotEmpty(t, traps)
	for i, trap := range traps {
		require.Equal(t, TrapCodeHeapAccessOutOfBounds, trap.TrapCode)
		require.Equal(t, uint32(42), trap.SourceLoc)
		require.True(t, int(trap.CodeOffset) < end)
		require.Zero(t, trap.CodeOffset%4)
		if i > 0 {
			require.Equal(t, traps[i-1].CodeOffset+4, trap.CodeOffset)
		}
	}

	addrMap := m.InstructionsAddressMap()
	require.Equal(t, 1, len(addrMap))
	require.Equal(t, uint32(42), addrMap[0].SourceLoc)
	require.Equal(t, int(traps[0].CodeOffset), addrMap[0].CodeOffset)
	require.Equal(t, 4*len(traps), addrMap[0].CodeLen)

	lines, err := arm64.Disassemble(finalize(t, m))
	require.NoError(t, err)
	text := strings.Join(lines, "\n")
	require.Contains(t, text, "ldaxr")
	require.Contains(t, text, "stlxr")
}

func TestMachineARM64_memoryOpImportedMemory(t *testing.T) {
	offsets := VMContextOffsets{ImportedMemories: 1}
	m := NewMachineARM64()
	oob := m.NewLabel()
	m.I64Load(GPR(arm64.RegR8), MemoryAccess{
		Memarg:           MemoryImmediate{Offset: 0x10000},
		NeedCheck:        true,
		ImportedMemories: true,
		Offset:           int32(offsets.ImportedMemory(0)),
		HeapAccessOOB:    oob,
	}, GPR(arm64.RegR9))
	m.EmitLabel(oob)
	require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())
	require.Equal(t, 1, len(m.CollectTrapInformation()))
}

// decodeInstructions decodes every word of code, failing on words arm64asm does not know.
func decodeInstructions(t *testing.T, code []byte) []arm64asm.Inst {
	ret := make([]arm64asm.Inst, 0, len(code)/4)
	for off := 0; off+4 <= len(code); off += 4 {
		inst, err := arm64asm.Decode(code[off : off+4])
		require.NoError(t, err, "word at %#x", off)
		ret = append(ret, inst)
	}
	return ret
}

func TestMachineARM64_memoryOpCheckSequence(t *testing.T) {
	tests := []struct {
		name   string
		memarg MemoryImmediate
		emit   func(m *MachineARM64, access MemoryAccess)
		// expBound is the immediate subtracted from base+bound.
		expBound string
		// expBranches are the conditions of the branches to the trap stub, in emission order.
		expBranches []string
		expAccess   arm64asm.Op
	}{
		{
			name:   "i32.load offset=8",
			memarg: MemoryImmediate{Offset: 8, Align: 4},
			emit: func(m *MachineARM64, access MemoryAccess) {
				m.I32Load(GPR(arm64.RegR8), access, GPR(arm64.RegR9))
			},
			expBound:    "#0x4",
			expBranches: []string{"CS", "HI"},
			expAccess:   arm64asm.LDR,
		},
		{
			name:   "i64.load",
			memarg: MemoryImmediate{Align: 8},
			emit: func(m *MachineARM64, access MemoryAccess) {
				m.I64Load(GPR(arm64.RegR8), access, GPR(arm64.RegR9))
			},
			expBound:    "#0x8",
			expBranches: []string{"HI"},
			expAccess:   arm64asm.LDR,
		},
		{
			name:   "i32.atomic.load offset=8",
			memarg: MemoryImmediate{Offset: 8, Align: 4},
			emit: func(m *MachineARM64, access MemoryAccess) {
				m.I32AtomicLoad(GPR(arm64.RegR8), access, GPR(arm64.RegR9))
			},
			expBound:    "#0x4",
			expBranches: []string{"CS", "HI", "NE"},
			expAccess:   arm64asm.LDAR,
		},
	}

	// Each branch to the trap stub follows the instruction that sets its flags.
	flagSetters := map[string]arm64asm.Op{"CS": arm64asm.ADDS, "HI": arm64asm.CMP, "NE": arm64asm.TST}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachineARM64()
			m.SetSourceLocation(7)
			oob := m.NewLabel()
			tc.emit(m, MemoryAccess{
				Memarg:        tc.memarg,
				NeedCheck:     true,
				Offset:        int32(VMContextOffsets{LocalMemories: 1}.LocalMemory(0)),
				HeapAccessOOB: oob,
			})
			oobOffset := m.Offset()
			m.EmitLabel(oob)
			traps := m.CollectTrapInformation()
			insts := decodeInstructions(t, finalize(t, m))

			var boundFound bool
			var branches []string
			lastBranch := -1
			for i, inst := range insts {
				text := arm64asm.GNUSyntax(inst)
				if inst.Op == arm64asm.SUB && strings.HasPrefix(text, "sub x") && strings.HasSuffix(text, ", "+tc.expBound) {
					boundFound = true
				}
				if inst.Op != arm64asm.B {
					continue
				}
				cond, ok := inst.Args[0].(arm64asm.Cond)
				require.True(t, ok, text)
				branches = append(branches, cond.String())
				require.Equal(t, oobOffset, i*4+int(inst.Args[1].(arm64asm.PCRel)), text)
				require.True(t, i > 0)
				require.Equal(t, flagSetters[cond.String()], insts[i-1].Op, arm64asm.GNUSyntax(insts[i-1]))
				switch cond.String() {
				case "CS":
					// The static offset is added on 32 bits so that wrapping sets the carry.
					require.Equal(t, "adds w", arm64asm.GNUSyntax(insts[i-1])[:6])
					require.True(t, strings.HasSuffix(arm64asm.GNUSyntax(insts[i-1]), "#0x8"))
				case "NE":
					require.True(t, strings.HasSuffix(arm64asm.GNUSyntax(insts[i-1]), fmt.Sprintf("#%#x", tc.memarg.Align-1)))
				}
				lastBranch = i
			}
			require.True(t, boundFound, "missing bound adjustment by %s", tc.expBound)
			require.Equal(t, tc.expBranches, branches)

			require.Equal(t, 1, len(traps))
			trap := traps[0]
			require.Equal(t, TrapCodeHeapAccessOutOfBounds, trap.TrapCode)
			require.Equal(t, uint32(7), trap.SourceLoc)
			idx := int(trap.CodeOffset) / 4
			require.True(t, idx > lastBranch)
			require.Equal(t, tc.expAccess, insts[idx].Op, arm64asm.GNUSyntax(insts[idx]))
		})
	}
}

func TestMachineARM64_documentedSequences(t *testing.T) {
	t.Run("cmpxchg retries the exclusive store", func(t *testing.T) {
		m := NewMachineARM64()
		oob := m.NewLabel()
		m.I32AtomicCmpxchg(GPR(arm64.RegR9), GPR(arm64.RegR10), GPR(arm64.RegR8), MemoryAccess{
			Memarg:        MemoryImmediate{Align: 4},
			Offset:        int32(VMContextOffsets{LocalMemories: 1}.LocalMemory(0)),
			HeapAccessOOB: oob,
		}, GPR(arm64.RegR11))
		m.EmitLabel(oob)
		insts := decodeInstructions(t, finalize(t, m))

		i := 0
		for i < len(insts) && insts[i].Op != arm64asm.LDAXR {
			i++
		}
		require.True(t, i+4 < len(insts), "missing ldaxr")
		require.Equal(t, []arm64asm.Op{arm64asm.LDAXR, arm64asm.CMP, arm64asm.B, arm64asm.STLXR, arm64asm.CBNZ},
			[]arm64asm.Op{insts[i].Op, insts[i+1].Op, insts[i+2].Op, insts[i+3].Op, insts[i+4].Op})
		// A mismatch skips the store, and a failed store retries from the load.
		require.Equal(t, "NE", insts[i+2].Args[0].(arm64asm.Cond).String())
		require.Equal(t, (i+5)*4, (i+2)*4+int(insts[i+2].Args[1].(arm64asm.PCRel)))
		require.Equal(t, i*4, (i+4)*4+int(insts[i+4].Args[1].(arm64asm.PCRel)))
	})

	t.Run("canonicalize selects on unordered", func(t *testing.T) {
		m := NewMachineARM64()
		m.CanonicalizeNaN(S64, SIMD(arm64.RegV8), SIMD(arm64.RegV10))
		require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())
		insts := decodeInstructions(t, finalize(t, m))

		i := 0
		for i < len(insts) && insts[i].Op != arm64asm.FCMP {
			i++
		}
		require.True(t, i+1 < len(insts), "missing fcmp")
		require.Equal(t, "fcmp d8, d8", arm64asm.GNUSyntax(insts[i]))
		require.Equal(t, arm64asm.FCSEL, insts[i+1].Op)
		require.Equal(t, "VS", insts[i+1].Args[3].(arm64asm.Cond).String())
	})
}

func TestMachineARM64_everyOperationEncodes(t *testing.T) {
	m := NewMachineARM64()
	oob, divByZero, overflow := m.NewLabel(), m.NewLabel(), m.NewLabel()
	access := MemoryAccess{Memarg: MemoryImmediate{Align: 8}, NeedCheck: true, HeapAccessOOB: oob}
	x8, x9, x10 := GPR(arm64.RegR8), GPR(arm64.RegR9), GPR(arm64.RegR10)
	v8, v9, v10 := SIMD(arm64.RegV8), SIMD(arm64.RegV9), SIMD(arm64.RegV10)
	slot := Memory(frameBaseRegister, -16)

	m.EmitFunctionPrologue()
	m.EmitBinopAdd32(x8, Imm32(5), x10)
	m.EmitBinopMul64(slot, x9, slot)
	m.EmitBinopUrem64(x8, x9, x10, divByZero)
	m.EmitBinopSdiv32(x8, x9, x10, divByZero, overflow)
	m.I32CmpLtU(x8, x9, x10)
	m.I64CmpGeS(x8, Imm64(3), slot)
	m.I32Popcnt(x8, x10)
	m.I64Ctz(slot, x10)
	m.I32Rol(x8, Imm32(3), x10)
	m.I64Ror(x8, x9, x10)
	m.I64Sar(x8, Imm32(65), x10)
	m.I32Load16S(x8, access, x10)
	m.I64Save32(x9, access, x8)
	m.I64AtomicCmpxchg16U(x9, x10, x8, access, x10)
	m.I32AtomicXchg(x9, x8, access, x10)
	m.F64Load(x8, access, v8)
	m.F32Save(v8, access, x8, true)
	m.F64Add(v8, v9, v10)
	m.F32Min(v8, slot, v10)
	m.F64CmpLe(v8, v9, x10)
	m.F32Nearest(v8, v10)
	m.F64Sqrt(slot, slot)
	m.ConvertI32F64(v8, x10, true, false)
	m.ConvertI64F32(v8, x10, false, true)
	m.ConvertF64I32(x8, true, v10)
	m.ConvertF32F64(v8, v10)
	m.ConvertF64F32(v8, v10)
	m.CanonicalizeNaN(S64, v8, v10)
	m.EmitI64Copysign(arm64.RegR8, arm64.RegR9)
	m.LocationNeg(S32, true, x8, S64, x10)
	m.EmitImulImm32(S32, 7, arm64.RegR10)
	m.InitStackLoc(4, Memory(frameBaseRegister, -64))
	m.EmitMemoryFence()
	m.EmitFunctionReturnValue(wasm.ValueTypeF32, true, v8)
	m.EmitFunctionEpilogue()
	m.EmitRet()
	m.EmitLabel(oob)
	m.EmitLabel(divByZero)
	m.EmitLabel(overflow)
	m.EmitIllegalOp()

	require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())
	require.NotPanics(t, m.FinalizeFunction)

	code := finalize(t, m)
	lines, err := arm64.Disassemble(code)
	require.NoError(t, err)
	require.Equal(t, len(code)/4, len(lines))
	require.Contains(t, lines[len(lines)-1], ": 00000000  ") // udf #0
}

func TestMachineARM64_determinism(t *testing.T) {
	gen := func() []byte {
		m := NewMachineARM64()
		oob := m.NewLabel()
		m.EmitFunctionPrologue()
		m.I64Load8S(GPR(arm64.RegR0), MemoryAccess{NeedCheck: true, HeapAccessOOB: oob}, GPR(arm64.RegR8))
		m.F64Max(SIMD(arm64.RegV8), SIMD(arm64.RegV9), SIMD(arm64.RegV10))
		m.EmitFunctionEpilogue()
		m.EmitRet()
		m.EmitLabel(oob)
		m.EmitIllegalOp()
		code, err := m.AssemblerFinalize()
		require.NoError(t, err)
		return code
	}
	require.Equal(t, gen(), gen())
}

func TestMachineARM64_FinalizeFunction(t *testing.T) {
	m := NewMachineARM64()
	r, ok := m.AcquireTempGPR()
	require.True(t, ok)
	require.Equal(t, arm64.RegR0, r)
	require.PanicsWithValue(t, "BUG: temporary x0 is still in use at the end of the function", m.FinalizeFunction)

	m.ReleaseGPR(r)
	require.NotPanics(t, m.FinalizeFunction)
}

func TestMachineARM64_Reset(t *testing.T) {
	m := NewMachineARM64()
	m.SetSourceLocation(7)
	m.EmitPush(S64, GPR(arm64.RegR0))
	m.MarkAddressWithTrapCode(TrapCodeUnreachableCodeReached)
	m.EmitIllegalOp()
	m.ReserveGPR(arm64.RegR9)

	m.Reset()
	require.Zero(t, m.Offset())
	require.False(t, m.pushed)
	require.Empty(t, m.CollectTrapInformation())
	require.Empty(t, m.InstructionsAddressMap())
	require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())
}

func TestMachineARM64_InsertStackOverflow(t *testing.T) {
	m := NewMachineARM64()
	m.SetSourceLocation(3)
	m.InsertStackOverflow()
	require.Equal(t, []TrapInformation{
		{CodeOffset: 0, SourceLoc: 3, TrapCode: TrapCodeStackOverflow},
	}, m.CollectTrapInformation())
}

func TestMachineARM64_MoveWithReloc(t *testing.T) {
	m := NewMachineARM64()
	m.EmitFunctionPrologue()
	target := RelocationTarget{Kind: RelocationTargetLocalFunc, Index: 2}
	relocs := m.MoveWithReloc(target, nil)
	m.EmitCallRegister(m.GPRForCall())
	require.Equal(t, 4, len(relocs))
	for i, r := range relocs {
		require.Equal(t, RelocationKindArm64Movw0+RelocationKind(i), r.Kind)
		require.Equal(t, target, r.Target)
		require.Equal(t, uint32(8+4*i), r.Offset)
	}

	code := finalize(t, m)
	const addr = 0x1122_3344_5566_7788
	err := ResolveRelocations(code, 0x4000, relocs, func(RelocationTarget) (uint64, error) { return addr, nil })
	require.NoError(t, err)

	var got uint64
	for i := 0; i < 4; i++ {
		w := binary.LittleEndian.Uint32(code[8+4*i:])
		require.Equal(t, uint32(i), (w>>21)&0b11)
		got |= uint64((w>>5)&0xffff) << (16 * i)
	}
	require.Equal(t, uint64(addr), got)
}

func TestMachineARM64_EmitJmpToJumpTable(t *testing.T) {
	m := NewMachineARM64()
	table := m.NewLabel()
	m.EmitJmpToJumpTable(table, Memory(frameBaseRegister, -16))
	m.EmitLabel(table)
	targets := []asm.Label{m.NewLabel(), m.NewLabel()}
	for _, l := range targets {
		m.JmpUnconditional(l)
	}
	for _, l := range targets {
		m.EmitLabel(l)
		m.EmitRet()
	}
	require.Equal(t, AllocatorSnapshot{}, m.AllocatorSnapshot())

	lines, err := arm64.Disassemble(finalize(t, m))
	require.NoError(t, err)
	text := strings.Join(lines, "\n")
	require.Contains(t, text, "adr")
	require.Contains(t, text, "br x")
}
