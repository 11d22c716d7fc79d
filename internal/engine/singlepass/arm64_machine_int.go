package singlepass

import (
	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

// emitBinop computes ret = a op b. op follows the "dst op= src" form of the relaxed helpers.
func (m *MachineARM64) emitBinop(sz Size, a, b, ret Location, op func(sz Size, src, dst Location)) {
	if a != ret {
		tmp := m.mustAcquireTempGPR()
		m.EmitRelaxedMov(sz, a, GPR(tmp))
		op(sz, b, GPR(tmp))
		m.EmitRelaxedMov(sz, GPR(tmp), ret)
		m.alloc.Release(tmp)
		return
	}
	op(sz, b, ret)
}

// emitThreeOperand calls emit with a, b and ret in general purpose registers.
func (m *MachineARM64) emitThreeOperand(sz Size, a, b, ret Location, emit func(rd, rn, rm asm.Register)) {
	rn, tmpA := m.useGPR(sz, a)
	rm, tmpB := m.useGPR(sz, b)
	rd, tmpRet := m.retGPR(ret)
	emit(rd, rn, rm)
	m.storeRet(sz, rd, tmpRet, ret)
	m.releaseTemp(rm, tmpB)
	m.releaseTemp(rn, tmpA)
}

// retGPR returns the register which receives a result destined to ret.
func (m *MachineARM64) retGPR(ret Location) (asm.Register, bool) {
	switch {
	case ret.IsGPR():
		return ret.Reg, false
	case ret.IsMemory() || ret.IsSIMD():
		return m.mustAcquireTempGPR(), true
	}
	panic(unsupported("retGPR", nil, ret))
}

func (m *MachineARM64) storeRet(sz Size, rd asm.Register, temp bool, ret Location) {
	if temp {
		m.MoveLocation(sz, GPR(rd), ret)
		m.alloc.Release(rd)
	}
}

func (m *MachineARM64) emitMul(sz Size, src, dst Location) {
	m.emitRelaxedBinop(relaxedBinop{op: "EmitBinopMul", writes: true, emit: (*arm64.Assembler).Mul}, sz, src, dst)
}

// EmitBinopAdd32 implements Machine.EmitBinopAdd32
func (m *MachineARM64) EmitBinopAdd32(a, b, ret Location) {
	m.emitBinop(S32, a, b, ret, func(sz Size, src, dst Location) { m.LocationAdd(sz, src, dst, false) })
}

// EmitBinopSub32 implements Machine.EmitBinopSub32
func (m *MachineARM64) EmitBinopSub32(a, b, ret Location) {
	m.emitBinop(S32, a, b, ret, func(sz Size, src, dst Location) { m.LocationSub(sz, src, dst, false) })
}

// EmitBinopMul32 implements Machine.EmitBinopMul32
func (m *MachineARM64) EmitBinopMul32(a, b, ret Location) { m.emitBinop(S32, a, b, ret, m.emitMul) }

// EmitBinopAnd32 implements Machine.EmitBinopAnd32
func (m *MachineARM64) EmitBinopAnd32(a, b, ret Location) {
	m.emitBinop(S32, a, b, ret, func(sz Size, src, dst Location) { m.LocationAnd(sz, src, dst, false) })
}

// EmitBinopOr32 implements Machine.EmitBinopOr32
func (m *MachineARM64) EmitBinopOr32(a, b, ret Location) {
	m.emitBinop(S32, a, b, ret, func(sz Size, src, dst Location) { m.LocationOr(sz, src, dst, false) })
}

// EmitBinopXor32 implements Machine.EmitBinopXor32
func (m *MachineARM64) EmitBinopXor32(a, b, ret Location) {
	m.emitBinop(S32, a, b, ret, func(sz Size, src, dst Location) { m.LocationXor(sz, src, dst, false) })
}

// EmitBinopAdd64 implements Machine.EmitBinopAdd64
func (m *MachineARM64) EmitBinopAdd64(a, b, ret Location) {
	m.emitBinop(S64, a, b, ret, func(sz Size, src, dst Location) { m.LocationAdd(sz, src, dst, false) })
}

// EmitBinopSub64 implements Machine.EmitBinopSub64
func (m *MachineARM64) EmitBinopSub64(a, b, ret Location) {
	m.emitBinop(S64, a, b, ret, func(sz Size, src, dst Location) { m.LocationSub(sz, src, dst, false) })
}

// EmitBinopMul64 implements Machine.EmitBinopMul64
func (m *MachineARM64) EmitBinopMul64(a, b, ret Location) { m.emitBinop(S64, a, b, ret, m.emitMul) }

// EmitBinopAnd64 implements Machine.EmitBinopAnd64
func (m *MachineARM64) EmitBinopAnd64(a, b, ret Location) {
	m.emitBinop(S64, a, b, ret, func(sz Size, src, dst Location) { m.LocationAnd(sz, src, dst, false) })
}

// EmitBinopOr64 implements Machine.EmitBinopOr64
func (m *MachineARM64) EmitBinopOr64(a, b, ret Location) {
	m.emitBinop(S64, a, b, ret, func(sz Size, src, dst Location) { m.LocationOr(sz, src, dst, false) })
}

// EmitBinopXor64 implements Machine.EmitBinopXor64
func (m *MachineARM64) EmitBinopXor64(a, b, ret Location) {
	m.emitBinop(S64, a, b, ret, func(sz Size, src, dst Location) { m.LocationXor(sz, src, dst, false) })
}

type divKind byte

const (
	divUnsigned divKind = iota
	divSigned
	remUnsigned
	remSigned
)

// emitDivRem emits a division or remainder. The zero check branches to divByZero and, for the signed
// division only, MinInt / -1 branches to overflow. The remainder is computed as a - (a / b) * b, which
// is 0 for MinInt % -1 without any check. It returns the offset of the divide instruction.
func (m *MachineARM64) emitDivRem(sz Size, kind divKind, a, b, ret Location, divByZero, overflow asm.Label) int {
	_64 := sz.Is64()
	rn, tmpA := m.useGPR(sz, a)
	rm, tmpB := m.useGPR(sz, b)
	rd, tmpRet := m.retGPR(ret)

	m.a.Cbz(_64, rm, divByZero)

	if kind == divSigned {
		// Only b == -1 && a == MinInt overflows: "cmp a, #1" sets V only for MinInt.
		ok := m.a.NewLabel()
		m.a.CmnImm(_64, rm, 1)
		m.a.BCond(arm64.CondNE, ok)
		m.a.CmpImm(_64, rn, 1)
		m.a.BCond(arm64.CondVS, overflow)
		m.a.BindLabel(ok)
	}

	// The quotient can't overwrite a before the multiply-subtract.
	q := rd
	if kind == remUnsigned || kind == remSigned {
		q = m.mustAcquireTempGPR()
	}

	offset := m.a.Offset()
	if kind == divSigned || kind == remSigned {
		m.a.Sdiv(_64, q, rn, rm)
	} else {
		m.a.Udiv(_64, q, rn, rm)
	}
	if q != rd {
		m.a.Msub(_64, rd, q, rm, rn)
		m.alloc.Release(q)
	}

	m.storeRet(sz, rd, tmpRet, ret)
	m.releaseTemp(rm, tmpB)
	m.releaseTemp(rn, tmpA)
	return offset
}

// EmitBinopUdiv32 implements Machine.EmitBinopUdiv32
func (m *MachineARM64) EmitBinopUdiv32(a, b, ret Location, divByZero asm.Label) int {
	return m.emitDivRem(S32, divUnsigned, a, b, ret, divByZero, asm.Label(0))
}

// EmitBinopSdiv32 emits a 32-bit signed division. SDIV traps neither on a zero divisor nor on
// MinInt32 / -1, so both are checked first. It returns the offset of the sdiv.
func (m *MachineARM64) EmitBinopSdiv32(a, b, ret Location, divByZero, overflow asm.Label) int {
	return m.emitDivRem(S32, divSigned, a, b, ret, divByZero, overflow)
}

// EmitBinopUrem32 implements Machine.EmitBinopUrem32
func (m *MachineARM64) EmitBinopUrem32(a, b, ret Location, divByZero asm.Label) int {
	return m.emitDivRem(S32, remUnsigned, a, b, ret, divByZero, asm.Label(0))
}

// EmitBinopSrem32 implements Machine.EmitBinopSrem32. MinInt32 % -1 yields 0 without an overflow check.
func (m *MachineARM64) EmitBinopSrem32(a, b, ret Location, divByZero asm.Label) int {
	return m.emitDivRem(S32, remSigned, a, b, ret, divByZero, asm.Label(0))
}

// EmitBinopUdiv64 implements Machine.EmitBinopUdiv64
func (m *MachineARM64) EmitBinopUdiv64(a, b, ret Location, divByZero asm.Label) int {
	return m.emitDivRem(S64, divUnsigned, a, b, ret, divByZero, asm.Label(0))
}

// EmitBinopSdiv64 is the 64-bit form of EmitBinopSdiv32.
func (m *MachineARM64) EmitBinopSdiv64(a, b, ret Location, divByZero, overflow asm.Label) int {
	return m.emitDivRem(S64, divSigned, a, b, ret, divByZero, overflow)
}

// EmitBinopUrem64 implements Machine.EmitBinopUrem64
func (m *MachineARM64) EmitBinopUrem64(a, b, ret Location, divByZero asm.Label) int {
	return m.emitDivRem(S64, remUnsigned, a, b, ret, divByZero, asm.Label(0))
}

// EmitBinopSrem64 implements Machine.EmitBinopSrem64
func (m *MachineARM64) EmitBinopSrem64(a, b, ret Location, divByZero asm.Label) int {
	return m.emitDivRem(S64, remSigned, a, b, ret, divByZero, asm.Label(0))
}

// emitCmp sets ret to 1 if "a cond b" holds, 0 otherwise.
func (m *MachineARM64) emitCmp(sz Size, cond asm.ConditionalRegisterState, a, b, ret Location) {
	rn, tmpA := m.useGPR(sz, a)
	rm, tmpB := m.useGPR(sz, b)
	m.a.Cmp(sz.Is64(), rn, rm)
	m.releaseTemp(rm, tmpB)
	m.releaseTemp(rn, tmpA)
	rd, tmpRet := m.retGPR(ret)
	m.a.Cset(false, rd, cond)
	m.storeRet(S32, rd, tmpRet, ret)
}

// I32CmpGeS implements Machine.I32CmpGeS
func (m *MachineARM64) I32CmpGeS(a, b, ret Location) { m.emitCmp(S32, arm64.CondGE, a, b, ret) }

// I32CmpGtS implements Machine.I32CmpGtS
func (m *MachineARM64) I32CmpGtS(a, b, ret Location) { m.emitCmp(S32, arm64.CondGT, a, b, ret) }

// I32CmpLeS implements Machine.I32CmpLeS
func (m *MachineARM64) I32CmpLeS(a, b, ret Location) { m.emitCmp(S32, arm64.CondLE, a, b, ret) }

// I32CmpLtS implements Machine.I32CmpLtS
func (m *MachineARM64) I32CmpLtS(a, b, ret Location) { m.emitCmp(S32, arm64.CondLT, a, b, ret) }

// I32CmpGeU implements Machine.I32CmpGeU
func (m *MachineARM64) I32CmpGeU(a, b, ret Location) { m.emitCmp(S32, arm64.CondHS, a, b, ret) }

// I32CmpGtU implements Machine.I32CmpGtU
func (m *MachineARM64) I32CmpGtU(a, b, ret Location) { m.emitCmp(S32, arm64.CondHI, a, b, ret) }

// I32CmpLeU implements Machine.I32CmpLeU
func (m *MachineARM64) I32CmpLeU(a, b, ret Location) { m.emitCmp(S32, arm64.CondLS, a, b, ret) }

// I32CmpLtU implements Machine.I32CmpLtU
func (m *MachineARM64) I32CmpLtU(a, b, ret Location) { m.emitCmp(S32, arm64.CondLO, a, b, ret) }

// I32CmpNe implements Machine.I32CmpNe
func (m *MachineARM64) I32CmpNe(a, b, ret Location) { m.emitCmp(S32, arm64.CondNE, a, b, ret) }

// I32CmpEq implements Machine.I32CmpEq
func (m *MachineARM64) I32CmpEq(a, b, ret Location) { m.emitCmp(S32, arm64.CondEQ, a, b, ret) }

// I64CmpGeS implements Machine.I64CmpGeS
func (m *MachineARM64) I64CmpGeS(a, b, ret Location) { m.emitCmp(S64, arm64.CondGE, a, b, ret) }

// I64CmpGtS implements Machine.I64CmpGtS
func (m *MachineARM64) I64CmpGtS(a, b, ret Location) { m.emitCmp(S64, arm64.CondGT, a, b, ret) }

// I64CmpLeS implements Machine.I64CmpLeS
func (m *MachineARM64) I64CmpLeS(a, b, ret Location) { m.emitCmp(S64, arm64.CondLE, a, b, ret) }

// I64CmpLtS implements Machine.I64CmpLtS
func (m *MachineARM64) I64CmpLtS(a, b, ret Location) { m.emitCmp(S64, arm64.CondLT, a, b, ret) }

// I64CmpGeU implements Machine.I64CmpGeU
func (m *MachineARM64) I64CmpGeU(a, b, ret Location) { m.emitCmp(S64, arm64.CondHS, a, b, ret) }

// I64CmpGtU implements Machine.I64CmpGtU
func (m *MachineARM64) I64CmpGtU(a, b, ret Location) { m.emitCmp(S64, arm64.CondHI, a, b, ret) }

// I64CmpLeU implements Machine.I64CmpLeU
func (m *MachineARM64) I64CmpLeU(a, b, ret Location) { m.emitCmp(S64, arm64.CondLS, a, b, ret) }

// I64CmpLtU implements Machine.I64CmpLtU
func (m *MachineARM64) I64CmpLtU(a, b, ret Location) { m.emitCmp(S64, arm64.CondLO, a, b, ret) }

// I64CmpNe implements Machine.I64CmpNe
func (m *MachineARM64) I64CmpNe(a, b, ret Location) { m.emitCmp(S64, arm64.CondNE, a, b, ret) }

// I64CmpEq implements Machine.I64CmpEq
func (m *MachineARM64) I64CmpEq(a, b, ret Location) { m.emitCmp(S64, arm64.CondEQ, a, b, ret) }

// emitUnary computes ret from loc with emit, all in general purpose registers.
func (m *MachineARM64) emitUnary(sz Size, loc, ret Location, emit func(rd, rn asm.Register)) {
	rn, tmpLoc := m.useGPR(sz, loc)
	rd, tmpRet := m.retGPR(ret)
	emit(rd, rn)
	m.storeRet(sz, rd, tmpRet, ret)
	m.releaseTemp(rn, tmpLoc)
}

func (m *MachineARM64) emitCtz(sz Size, loc, ret Location) {
	m.emitUnary(sz, loc, ret, func(rd, rn asm.Register) {
		m.a.Rbit(sz.Is64(), rd, rn)
		m.a.Clz(sz.Is64(), rd, rd)
	})
}

// emitPopcnt counts the bits with the vector unit: there is no scalar popcount on arm64.
func (m *MachineARM64) emitPopcnt(sz Size, loc, ret Location) {
	v := m.mustAcquireTempSIMD()
	m.emitUnary(sz, loc, ret, func(rd, rn asm.Register) {
		m.a.FmovFromGPR(sz.Is64(), v, rn)
		m.a.Cnt8B(v, v)
		m.a.Uaddlv8B(v, v)
		m.a.FmovToGPR(false, rd, v)
	})
	m.alloc.Release(v)
}

// I32Clz implements Machine.I32Clz
func (m *MachineARM64) I32Clz(loc, ret Location) {
	m.emitUnary(S32, loc, ret, func(rd, rn asm.Register) { m.a.Clz(false, rd, rn) })
}

// I32Ctz implements Machine.I32Ctz
func (m *MachineARM64) I32Ctz(loc, ret Location) { m.emitCtz(S32, loc, ret) }

// I32Popcnt implements Machine.I32Popcnt
func (m *MachineARM64) I32Popcnt(loc, ret Location) { m.emitPopcnt(S32, loc, ret) }

// I64Clz implements Machine.I64Clz
func (m *MachineARM64) I64Clz(loc, ret Location) {
	m.emitUnary(S64, loc, ret, func(rd, rn asm.Register) { m.a.Clz(true, rd, rn) })
}

// I64Ctz implements Machine.I64Ctz
func (m *MachineARM64) I64Ctz(loc, ret Location) { m.emitCtz(S64, loc, ret) }

// I64Popcnt implements Machine.I64Popcnt
func (m *MachineARM64) I64Popcnt(loc, ret Location) { m.emitPopcnt(S64, loc, ret) }

// emitShift computes ret = a op b. The hardware takes the amount modulo the width, as required.
func (m *MachineARM64) emitShift(sz Size, op arm64.ShiftOp, a, b, ret Location) {
	if b.IsImm() {
		amount := uint32(b.Imm) & uint32(sz.Bits()-1)
		m.emitUnary(sz, a, ret, func(rd, rn asm.Register) { m.a.ShiftImm(op, sz.Is64(), rd, rn, amount) })
		return
	}
	m.emitThreeOperand(sz, a, b, ret, func(rd, rn, rm asm.Register) { m.a.ShiftReg(op, sz.Is64(), rd, rn, rm) })
}

// emitRol rotates left by rotating right by the negated amount.
func (m *MachineARM64) emitRol(sz Size, a, b, ret Location) {
	if b.IsImm() {
		amount := (uint32(sz.Bits()) - uint32(b.Imm)&uint32(sz.Bits()-1)) & uint32(sz.Bits()-1)
		m.emitUnary(sz, a, ret, func(rd, rn asm.Register) { m.a.ShiftImm(arm64.ShiftROR, sz.Is64(), rd, rn, amount) })
		return
	}
	neg := m.mustAcquireTempGPR()
	m.EmitRelaxedMov(sz, b, GPR(neg))
	m.a.Neg(sz.Is64(), neg, neg)
	m.emitThreeOperand(sz, a, GPR(neg), ret, func(rd, rn, rm asm.Register) {
		m.a.ShiftReg(arm64.ShiftROR, sz.Is64(), rd, rn, rm)
	})
	m.alloc.Release(neg)
}

// I32Shl implements Machine.I32Shl
func (m *MachineARM64) I32Shl(a, b, ret Location) { m.emitShift(S32, arm64.ShiftLSL, a, b, ret) }

// I32Shr implements Machine.I32Shr
func (m *MachineARM64) I32Shr(a, b, ret Location) { m.emitShift(S32, arm64.ShiftLSR, a, b, ret) }

// I32Sar implements Machine.I32Sar
func (m *MachineARM64) I32Sar(a, b, ret Location) { m.emitShift(S32, arm64.ShiftASR, a, b, ret) }

// I32Rol implements Machine.I32Rol
func (m *MachineARM64) I32Rol(a, b, ret Location) { m.emitRol(S32, a, b, ret) }

// I32Ror implements Machine.I32Ror
func (m *MachineARM64) I32Ror(a, b, ret Location) { m.emitShift(S32, arm64.ShiftROR, a, b, ret) }

// I64Shl implements Machine.I64Shl
func (m *MachineARM64) I64Shl(a, b, ret Location) { m.emitShift(S64, arm64.ShiftLSL, a, b, ret) }

// I64Shr implements Machine.I64Shr
func (m *MachineARM64) I64Shr(a, b, ret Location) { m.emitShift(S64, arm64.ShiftLSR, a, b, ret) }

// I64Sar implements Machine.I64Sar
func (m *MachineARM64) I64Sar(a, b, ret Location) { m.emitShift(S64, arm64.ShiftASR, a, b, ret) }

// I64Rol implements Machine.I64Rol
func (m *MachineARM64) I64Rol(a, b, ret Location) { m.emitRol(S64, a, b, ret) }

// I64Ror implements Machine.I64Ror
func (m *MachineARM64) I64Ror(a, b, ret Location) { m.emitShift(S64, arm64.ShiftROR, a, b, ret) }
