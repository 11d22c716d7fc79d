package singlepass

import (
	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

// memoryOp computes the native address of the linear memory access at addr + access.Memarg.Offset into
// a temporary register, branching to access.HeapAccessOOB when the valueSize bytes there are out of bounds
// or, with checkAlignment, misaligned. cb emits the access itself with the address register.
//
// Every instruction emitted by cb is tagged with TrapCodeHeapAccessOutOfBounds.
func (m *MachineARM64) memoryOp(addr Location, access MemoryAccess, checkAlignment bool, valueSize int64, cb func(p asm.Register)) {
	tmpAddr := m.mustAcquireTempGPR()

	// The memory definition is {base, bound}.
	definition, offset := vmContextRegister, int64(access.Offset)
	if access.ImportedMemories {
		m.emitLoadStore(arm64.Load64, tmpAddr, vmContextRegister, offset)
		definition, offset = tmpAddr, 0
	}

	tmpBase := m.mustAcquireTempGPR()
	tmpBound := m.mustAcquireTempGPR()
	m.emitLoadStore(arm64.Load64, tmpBase, definition, offset)
	if access.NeedCheck {
		m.emitLoadStore(arm64.Load64, tmpBound, definition, offset+8)
		m.a.Add(true, tmpBound, tmpBound, tmpBase)
		// tmpBound is now the last address at which valueSize bytes fit.
		if valueSize < 256 {
			m.a.SubImm(true, tmpBound, tmpBound, uint64(valueSize))
		} else {
			tmpSize := m.mustAcquireTempGPR()
			m.a.MovImm(true, tmpSize, uint64(valueSize))
			m.a.Sub(true, tmpBound, tmpBound, tmpSize)
			m.alloc.Release(tmpSize)
		}
	}

	m.MoveLocationExtend(S32, false, addr, S64, GPR(tmpAddr))

	if off := uint64(access.Memarg.Offset); off != 0 {
		// Overflowing 32 bits is out of bounds even without a bound check.
		if arm64.AddSubImmediateFits(off) {
			m.a.AddsImm(false, tmpAddr, tmpAddr, off)
		} else {
			tmpOffset := m.mustAcquireTempGPR()
			m.a.MovImm(false, tmpOffset, off)
			m.a.Adds(false, tmpAddr, tmpAddr, tmpOffset)
			m.alloc.Release(tmpOffset)
		}
		m.a.BCond(arm64.CondCS, access.HeapAccessOOB)
	}

	m.a.Add(true, tmpAddr, tmpAddr, tmpBase)
	if access.NeedCheck {
		m.a.Cmp(true, tmpAddr, tmpBound)
		m.a.BCond(arm64.CondHI, access.HeapAccessOOB)
	}
	m.alloc.Release(tmpBound)
	m.alloc.Release(tmpBase)

	if align := access.Memarg.Align; checkAlignment && align > 1 {
		m.a.TstImm(true, tmpAddr, uint64(align-1))
		m.a.BCond(arm64.CondNE, access.HeapAccessOOB)
	}

	begin := m.a.Offset()
	cb(tmpAddr)
	m.MarkAddressRangeWithTrapCode(TrapCodeHeapAccessOutOfBounds, begin, m.a.Offset())

	m.alloc.Release(tmpAddr)
}

// emitLoad loads with kind into ret, which holds a value of size sz.
func (m *MachineARM64) emitLoad(kind arm64.LoadStoreKind, sz Size, addr Location, access MemoryAccess, ret Location) {
	m.memoryOp(addr, access, false, kind.Bytes(), func(p asm.Register) {
		if ret.IsSIMD() && (kind == arm64.LoadF32 || kind == arm64.LoadF64) {
			m.a.LoadStoreScaled(kind, ret.Reg, p, 0)
			return
		}
		if kind == arm64.LoadF32 || kind == arm64.LoadF64 {
			kind = loadKind(sz, false)
		}
		rd, temp := m.retGPR(ret)
		m.a.LoadStoreScaled(kind, rd, p, 0)
		m.storeRet(sz, rd, temp, ret)
	})
}

// emitSave stores the low bytes of value with kind.
func (m *MachineARM64) emitSave(kind arm64.LoadStoreKind, sz Size, value Location, access MemoryAccess, addr Location) {
	m.memoryOp(addr, access, false, kind.Bytes(), func(p asm.Register) {
		if value.IsSIMD() && kind.Bytes() == sz.Bytes() {
			m.a.LoadStoreScaled(storeKind(sz, true), value.Reg, p, 0)
			return
		}
		r, temp := m.useGPR(sz, value)
		m.a.LoadStoreScaled(kind, r, p, 0)
		m.releaseTemp(r, temp)
	})
}

func (m *MachineARM64) emitAtomicLoad(bits byte, sz Size, addr Location, access MemoryAccess, ret Location) {
	m.memoryOp(addr, access, true, int64(bits/8), func(p asm.Register) {
		rd, temp := m.retGPR(ret)
		m.a.Ldar(bits, rd, p)
		m.storeRet(sz, rd, temp, ret)
	})
}

func (m *MachineARM64) emitAtomicSave(bits byte, sz Size, value Location, access MemoryAccess, addr Location) {
	m.memoryOp(addr, access, true, int64(bits/8), func(p asm.Register) {
		r, temp := m.useGPR(sz, value)
		m.a.Stlr(bits, r, p)
		m.releaseTemp(r, temp)
	})
}

// atomicRMW computes the new value from the old one and the operand. A nil atomicRMW is an exchange.
type atomicRMW func(a *arm64.Assembler, _64bit bool, rd, rn, rm asm.Register)

var (
	atomicAdd atomicRMW = (*arm64.Assembler).Add
	atomicSub atomicRMW = (*arm64.Assembler).Sub
	atomicAnd           = atomicRMW(logical(arm64.LogicalAnd))
	atomicOr            = atomicRMW(logical(arm64.LogicalOrr))
	atomicXor           = atomicRMW(logical(arm64.LogicalEor))
)

// emitAtomicRMW emits a load-exclusive/store-exclusive loop applying op, and moves the old value into ret.
func (m *MachineARM64) emitAtomicRMW(op atomicRMW, bits byte, sz Size, value, addr Location, access MemoryAccess, ret Location) {
	m.memoryOp(addr, access, true, int64(bits/8), func(p asm.Register) {
		v, tmpV := m.useGPR(sz, value)
		old, status := m.mustAcquireTempGPR(), m.mustAcquireTempGPR()
		newValue := v
		if op != nil {
			newValue = m.mustAcquireTempGPR()
		}

		retry := m.a.NewLabel()
		m.a.BindLabel(retry)
		m.a.Ldaxr(bits, old, p)
		if op != nil {
			op(m.a, sz.Is64(), newValue, old, v)
		}
		m.a.Stlxr(bits, status, newValue, p)
		m.a.Cbnz(false, status, retry)

		m.MoveLocation(sz, GPR(old), ret)

		if newValue != v {
			m.alloc.Release(newValue)
		}
		m.alloc.Release(status)
		m.alloc.Release(old)
		m.releaseTemp(v, tmpV)
	})
}

// emitAtomicCmpxchg stores newValue if the current value equals the low bits of cmp, and moves the
// old value into ret either way.
func (m *MachineARM64) emitAtomicCmpxchg(bits byte, sz Size, newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.memoryOp(addr, access, true, int64(bits/8), func(p asm.Register) {
		n, tmpN := m.useGPR(sz, newValue)
		c, tmpC := m.useGPR(sz, cmp)
		expected := c
		if bits < sz.Bits() {
			expected = m.mustAcquireTempGPR()
			to := byte(32)
			if bits == 32 {
				to = 64
			}
			m.a.Extend(false, bits, to, expected, c)
		}
		old, status := m.mustAcquireTempGPR(), m.mustAcquireTempGPR()

		retry, done := m.a.NewLabel(), m.a.NewLabel()
		m.a.BindLabel(retry)
		m.a.Ldaxr(bits, old, p)
		m.a.Cmp(bits == 64, old, expected)
		m.a.BCond(arm64.CondNE, done)
		m.a.Stlxr(bits, status, n, p)
		m.a.Cbnz(false, status, retry)
		m.a.BindLabel(done)

		m.MoveLocation(sz, GPR(old), ret)

		m.alloc.Release(status)
		m.alloc.Release(old)
		if expected != c {
			m.alloc.Release(expected)
		}
		m.releaseTemp(c, tmpC)
		m.releaseTemp(n, tmpN)
	})
}

// I32Load loads 4 bytes. Plain accesses are bounds checked but may be unaligned.
func (m *MachineARM64) I32Load(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load32U, S32, addr, access, ret)
}

// I32Load8U implements Machine.I32Load8U
func (m *MachineARM64) I32Load8U(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load8U, S32, addr, access, ret)
}

// I32Load8S implements Machine.I32Load8S
func (m *MachineARM64) I32Load8S(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load8S32, S32, addr, access, ret)
}

// I32Load16U implements Machine.I32Load16U
func (m *MachineARM64) I32Load16U(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load16U, S32, addr, access, ret)
}

// I32Load16S implements Machine.I32Load16S
func (m *MachineARM64) I32Load16S(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load16S32, S32, addr, access, ret)
}

// I32AtomicLoad implements Machine.I32AtomicLoad
func (m *MachineARM64) I32AtomicLoad(addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicLoad(32, S32, addr, access, ret)
}

// I32AtomicLoad8U implements Machine.I32AtomicLoad8U
func (m *MachineARM64) I32AtomicLoad8U(addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicLoad(8, S32, addr, access, ret)
}

// I32AtomicLoad16U implements Machine.I32AtomicLoad16U
func (m *MachineARM64) I32AtomicLoad16U(addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicLoad(16, S32, addr, access, ret)
}

// I32Save implements Machine.I32Save
func (m *MachineARM64) I32Save(value Location, access MemoryAccess, addr Location) {
	m.emitSave(arm64.Store32, S32, value, access, addr)
}

// I32Save8 implements Machine.I32Save8
func (m *MachineARM64) I32Save8(value Location, access MemoryAccess, addr Location) {
	m.emitSave(arm64.Store8, S32, value, access, addr)
}

// I32Save16 implements Machine.I32Save16
func (m *MachineARM64) I32Save16(value Location, access MemoryAccess, addr Location) {
	m.emitSave(arm64.Store16, S32, value, access, addr)
}

// I32AtomicSave implements Machine.I32AtomicSave
func (m *MachineARM64) I32AtomicSave(value Location, access MemoryAccess, addr Location) {
	m.emitAtomicSave(32, S32, value, access, addr)
}

// I32AtomicSave8 implements Machine.I32AtomicSave8
func (m *MachineARM64) I32AtomicSave8(value Location, access MemoryAccess, addr Location) {
	m.emitAtomicSave(8, S32, value, access, addr)
}

// I32AtomicSave16 implements Machine.I32AtomicSave16
func (m *MachineARM64) I32AtomicSave16(value Location, access MemoryAccess, addr Location) {
	m.emitAtomicSave(16, S32, value, access, addr)
}

// I32AtomicAdd adds value to the word at addr and moves the previous word into ret. The
// ldaxr/stlxr pair is retried until the exclusive store succeeds.
func (m *MachineARM64) I32AtomicAdd(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAdd, 32, S32, value, addr, access, ret)
}

// I32AtomicAdd8U implements Machine.I32AtomicAdd8U
func (m *MachineARM64) I32AtomicAdd8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAdd, 8, S32, value, addr, access, ret)
}

// I32AtomicAdd16U implements Machine.I32AtomicAdd16U
func (m *MachineARM64) I32AtomicAdd16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAdd, 16, S32, value, addr, access, ret)
}

// I32AtomicSub implements Machine.I32AtomicSub
func (m *MachineARM64) I32AtomicSub(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicSub, 32, S32, value, addr, access, ret)
}

// I32AtomicSub8U implements Machine.I32AtomicSub8U
func (m *MachineARM64) I32AtomicSub8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicSub, 8, S32, value, addr, access, ret)
}

// I32AtomicSub16U implements Machine.I32AtomicSub16U
func (m *MachineARM64) I32AtomicSub16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicSub, 16, S32, value, addr, access, ret)
}

// I32AtomicAnd implements Machine.I32AtomicAnd
func (m *MachineARM64) I32AtomicAnd(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAnd, 32, S32, value, addr, access, ret)
}

// I32AtomicAnd8U implements Machine.I32AtomicAnd8U
func (m *MachineARM64) I32AtomicAnd8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAnd, 8, S32, value, addr, access, ret)
}

// I32AtomicAnd16U implements Machine.I32AtomicAnd16U
func (m *MachineARM64) I32AtomicAnd16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAnd, 16, S32, value, addr, access, ret)
}

// I32AtomicOr implements Machine.I32AtomicOr
func (m *MachineARM64) I32AtomicOr(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicOr, 32, S32, value, addr, access, ret)
}

// I32AtomicOr8U implements Machine.I32AtomicOr8U
func (m *MachineARM64) I32AtomicOr8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicOr, 8, S32, value, addr, access, ret)
}

// I32AtomicOr16U implements Machine.I32AtomicOr16U
func (m *MachineARM64) I32AtomicOr16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicOr, 16, S32, value, addr, access, ret)
}

// I32AtomicXor implements Machine.I32AtomicXor
func (m *MachineARM64) I32AtomicXor(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicXor, 32, S32, value, addr, access, ret)
}

// I32AtomicXor8U implements Machine.I32AtomicXor8U
func (m *MachineARM64) I32AtomicXor8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicXor, 8, S32, value, addr, access, ret)
}

// I32AtomicXor16U implements Machine.I32AtomicXor16U
func (m *MachineARM64) I32AtomicXor16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicXor, 16, S32, value, addr, access, ret)
}

// I32AtomicXchg implements Machine.I32AtomicXchg
func (m *MachineARM64) I32AtomicXchg(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(nil, 32, S32, value, addr, access, ret)
}

// I32AtomicXchg8U implements Machine.I32AtomicXchg8U
func (m *MachineARM64) I32AtomicXchg8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(nil, 8, S32, value, addr, access, ret)
}

// I32AtomicXchg16U implements Machine.I32AtomicXchg16U
func (m *MachineARM64) I32AtomicXchg16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(nil, 16, S32, value, addr, access, ret)
}

// I32AtomicCmpxchg stores newValue at addr only if the word there equals cmp. The old word
// lands in ret whether or not the store happened.
func (m *MachineARM64) I32AtomicCmpxchg(newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicCmpxchg(32, S32, newValue, cmp, addr, access, ret)
}

// I32AtomicCmpxchg8U implements Machine.I32AtomicCmpxchg8U
func (m *MachineARM64) I32AtomicCmpxchg8U(newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicCmpxchg(8, S32, newValue, cmp, addr, access, ret)
}

// I32AtomicCmpxchg16U implements Machine.I32AtomicCmpxchg16U
func (m *MachineARM64) I32AtomicCmpxchg16U(newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicCmpxchg(16, S32, newValue, cmp, addr, access, ret)
}

// I64Load implements Machine.I64Load
func (m *MachineARM64) I64Load(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load64, S64, addr, access, ret)
}

// I64Load8U implements Machine.I64Load8U
func (m *MachineARM64) I64Load8U(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load8U, S64, addr, access, ret)
}

// I64Load8S implements Machine.I64Load8S
func (m *MachineARM64) I64Load8S(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load8S64, S64, addr, access, ret)
}

// I64Load16U implements Machine.I64Load16U
func (m *MachineARM64) I64Load16U(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load16U, S64, addr, access, ret)
}

// I64Load16S implements Machine.I64Load16S
func (m *MachineARM64) I64Load16S(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load16S64, S64, addr, access, ret)
}

// I64Load32U implements Machine.I64Load32U
func (m *MachineARM64) I64Load32U(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load32U, S64, addr, access, ret)
}

// I64Load32S implements Machine.I64Load32S
func (m *MachineARM64) I64Load32S(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.Load32S64, S64, addr, access, ret)
}

// I64AtomicLoad implements Machine.I64AtomicLoad
func (m *MachineARM64) I64AtomicLoad(addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicLoad(64, S64, addr, access, ret)
}

// I64AtomicLoad8U implements Machine.I64AtomicLoad8U
func (m *MachineARM64) I64AtomicLoad8U(addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicLoad(8, S64, addr, access, ret)
}

// I64AtomicLoad16U implements Machine.I64AtomicLoad16U
func (m *MachineARM64) I64AtomicLoad16U(addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicLoad(16, S64, addr, access, ret)
}

// I64AtomicLoad32U implements Machine.I64AtomicLoad32U
func (m *MachineARM64) I64AtomicLoad32U(addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicLoad(32, S64, addr, access, ret)
}

// I64Save implements Machine.I64Save
func (m *MachineARM64) I64Save(value Location, access MemoryAccess, addr Location) {
	m.emitSave(arm64.Store64, S64, value, access, addr)
}

// I64Save8 implements Machine.I64Save8
func (m *MachineARM64) I64Save8(value Location, access MemoryAccess, addr Location) {
	m.emitSave(arm64.Store8, S64, value, access, addr)
}

// I64Save16 implements Machine.I64Save16
func (m *MachineARM64) I64Save16(value Location, access MemoryAccess, addr Location) {
	m.emitSave(arm64.Store16, S64, value, access, addr)
}

// I64Save32 implements Machine.I64Save32
func (m *MachineARM64) I64Save32(value Location, access MemoryAccess, addr Location) {
	m.emitSave(arm64.Store32, S64, value, access, addr)
}

// I64AtomicSave implements Machine.I64AtomicSave
func (m *MachineARM64) I64AtomicSave(value Location, access MemoryAccess, addr Location) {
	m.emitAtomicSave(64, S64, value, access, addr)
}

// I64AtomicSave8 implements Machine.I64AtomicSave8
func (m *MachineARM64) I64AtomicSave8(value Location, access MemoryAccess, addr Location) {
	m.emitAtomicSave(8, S64, value, access, addr)
}

// I64AtomicSave16 implements Machine.I64AtomicSave16
func (m *MachineARM64) I64AtomicSave16(value Location, access MemoryAccess, addr Location) {
	m.emitAtomicSave(16, S64, value, access, addr)
}

// I64AtomicSave32 implements Machine.I64AtomicSave32
func (m *MachineARM64) I64AtomicSave32(value Location, access MemoryAccess, addr Location) {
	m.emitAtomicSave(32, S64, value, access, addr)
}

// I64AtomicAdd implements Machine.I64AtomicAdd
func (m *MachineARM64) I64AtomicAdd(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAdd, 64, S64, value, addr, access, ret)
}

// I64AtomicAdd8U implements Machine.I64AtomicAdd8U
func (m *MachineARM64) I64AtomicAdd8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAdd, 8, S64, value, addr, access, ret)
}

// I64AtomicAdd16U implements Machine.I64AtomicAdd16U
func (m *MachineARM64) I64AtomicAdd16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAdd, 16, S64, value, addr, access, ret)
}

// I64AtomicAdd32U implements Machine.I64AtomicAdd32U
func (m *MachineARM64) I64AtomicAdd32U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAdd, 32, S64, value, addr, access, ret)
}

// I64AtomicSub implements Machine.I64AtomicSub
func (m *MachineARM64) I64AtomicSub(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicSub, 64, S64, value, addr, access, ret)
}

// I64AtomicSub8U implements Machine.I64AtomicSub8U
func (m *MachineARM64) I64AtomicSub8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicSub, 8, S64, value, addr, access, ret)
}

// I64AtomicSub16U implements Machine.I64AtomicSub16U
func (m *MachineARM64) I64AtomicSub16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicSub, 16, S64, value, addr, access, ret)
}

// I64AtomicSub32U implements Machine.I64AtomicSub32U
func (m *MachineARM64) I64AtomicSub32U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicSub, 32, S64, value, addr, access, ret)
}

// I64AtomicAnd implements Machine.I64AtomicAnd
func (m *MachineARM64) I64AtomicAnd(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAnd, 64, S64, value, addr, access, ret)
}

// I64AtomicAnd8U implements Machine.I64AtomicAnd8U
func (m *MachineARM64) I64AtomicAnd8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAnd, 8, S64, value, addr, access, ret)
}

// I64AtomicAnd16U implements Machine.I64AtomicAnd16U
func (m *MachineARM64) I64AtomicAnd16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAnd, 16, S64, value, addr, access, ret)
}

// I64AtomicAnd32U implements Machine.I64AtomicAnd32U
func (m *MachineARM64) I64AtomicAnd32U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicAnd, 32, S64, value, addr, access, ret)
}

// I64AtomicOr implements Machine.I64AtomicOr
func (m *MachineARM64) I64AtomicOr(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicOr, 64, S64, value, addr, access, ret)
}

// I64AtomicOr8U implements Machine.I64AtomicOr8U
func (m *MachineARM64) I64AtomicOr8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicOr, 8, S64, value, addr, access, ret)
}

// I64AtomicOr16U implements Machine.I64AtomicOr16U
func (m *MachineARM64) I64AtomicOr16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicOr, 16, S64, value, addr, access, ret)
}

// I64AtomicOr32U implements Machine.I64AtomicOr32U
func (m *MachineARM64) I64AtomicOr32U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicOr, 32, S64, value, addr, access, ret)
}

// I64AtomicXor implements Machine.I64AtomicXor
func (m *MachineARM64) I64AtomicXor(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicXor, 64, S64, value, addr, access, ret)
}

// I64AtomicXor8U implements Machine.I64AtomicXor8U
func (m *MachineARM64) I64AtomicXor8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicXor, 8, S64, value, addr, access, ret)
}

// I64AtomicXor16U implements Machine.I64AtomicXor16U
func (m *MachineARM64) I64AtomicXor16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicXor, 16, S64, value, addr, access, ret)
}

// I64AtomicXor32U implements Machine.I64AtomicXor32U
func (m *MachineARM64) I64AtomicXor32U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(atomicXor, 32, S64, value, addr, access, ret)
}

// I64AtomicXchg implements Machine.I64AtomicXchg
func (m *MachineARM64) I64AtomicXchg(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(nil, 64, S64, value, addr, access, ret)
}

// I64AtomicXchg8U implements Machine.I64AtomicXchg8U
func (m *MachineARM64) I64AtomicXchg8U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(nil, 8, S64, value, addr, access, ret)
}

// I64AtomicXchg16U implements Machine.I64AtomicXchg16U
func (m *MachineARM64) I64AtomicXchg16U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(nil, 16, S64, value, addr, access, ret)
}

// I64AtomicXchg32U implements Machine.I64AtomicXchg32U
func (m *MachineARM64) I64AtomicXchg32U(value, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicRMW(nil, 32, S64, value, addr, access, ret)
}

// I64AtomicCmpxchg implements Machine.I64AtomicCmpxchg
func (m *MachineARM64) I64AtomicCmpxchg(newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicCmpxchg(64, S64, newValue, cmp, addr, access, ret)
}

// I64AtomicCmpxchg8U implements Machine.I64AtomicCmpxchg8U
func (m *MachineARM64) I64AtomicCmpxchg8U(newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicCmpxchg(8, S64, newValue, cmp, addr, access, ret)
}

// I64AtomicCmpxchg16U implements Machine.I64AtomicCmpxchg16U
func (m *MachineARM64) I64AtomicCmpxchg16U(newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicCmpxchg(16, S64, newValue, cmp, addr, access, ret)
}

// I64AtomicCmpxchg32U implements Machine.I64AtomicCmpxchg32U
func (m *MachineARM64) I64AtomicCmpxchg32U(newValue, cmp, addr Location, access MemoryAccess, ret Location) {
	m.emitAtomicCmpxchg(32, S64, newValue, cmp, addr, access, ret)
}

// F32Load implements Machine.F32Load
func (m *MachineARM64) F32Load(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.LoadF32, S32, addr, access, ret)
}

// F64Load implements Machine.F64Load
func (m *MachineARM64) F64Load(addr Location, access MemoryAccess, ret Location) {
	m.emitLoad(arm64.LoadF64, S64, addr, access, ret)
}

// F32Save implements Machine.F32Save
func (m *MachineARM64) F32Save(value Location, access MemoryAccess, addr Location, canonicalize bool) {
	m.emitFloatSave(S32, value, access, addr, canonicalize)
}

// F64Save implements Machine.F64Save
func (m *MachineARM64) F64Save(value Location, access MemoryAccess, addr Location, canonicalize bool) {
	m.emitFloatSave(S64, value, access, addr, canonicalize)
}

func (m *MachineARM64) emitFloatSave(sz Size, value Location, access MemoryAccess, addr Location, canonicalize bool) {
	if !canonicalize {
		m.emitSave(storeKind(sz, false), sz, value, access, addr)
		return
	}
	m.memoryOp(addr, access, false, sz.Bytes(), func(p asm.Register) {
		v := m.mustAcquireTempSIMD()
		m.CanonicalizeNaN(sz, value, SIMD(v))
		m.a.LoadStoreScaled(storeKind(sz, true), v, p, 0)
		m.alloc.Release(v)
	})
}
