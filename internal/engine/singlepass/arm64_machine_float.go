package singlepass

import (
	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

const (
	canonicalNaN32 = 0x7fc00000
	canonicalNaN64 = 0x7ff8000000000000
)

// useSIMD returns a vector register holding the value of loc, acquired for the purpose when temp is true.
func (m *MachineARM64) useSIMD(sz Size, loc Location) (r asm.Register, temp bool) {
	switch loc.Kind {
	case LocationKindSIMD:
		return loc.Reg, false
	case LocationKindGPR:
		r = m.mustAcquireTempSIMD()
		m.a.FmovFromGPR(sz.Is64(), r, loc.Reg)
	case LocationKindMemory:
		r = m.mustAcquireTempSIMD()
		m.emitLoadStore(loadKind(sz, true), r, loc.Reg, int64(loc.Offset))
	case LocationKindImm8, LocationKindImm32, LocationKindImm64:
		r = m.mustAcquireTempSIMD()
		tmp := m.mustAcquireTempGPR()
		m.a.MovImm(sz.Is64(), tmp, loc.Imm)
		m.a.FmovFromGPR(sz.Is64(), r, tmp)
		m.alloc.Release(tmp)
	default:
		panic(unsupported("useSIMD", []Size{sz}, loc))
	}
	return r, true
}

// retSIMD returns the vector register which receives a result destined to ret.
func (m *MachineARM64) retSIMD(ret Location) (asm.Register, bool) {
	switch {
	case ret.IsSIMD():
		return ret.Reg, false
	case ret.IsGPR() || ret.IsMemory():
		return m.mustAcquireTempSIMD(), true
	}
	panic(unsupported("retSIMD", nil, ret))
}

func (m *MachineARM64) storeRetSIMD(sz Size, rd asm.Register, temp bool, ret Location) {
	if temp {
		m.MoveLocation(sz, SIMD(rd), ret)
		m.alloc.Release(rd)
	}
}

func (m *MachineARM64) emitFpuUnary(sz Size, op arm64.FpuUniOp, loc, ret Location) {
	rn, tmpLoc := m.useSIMD(sz, loc)
	rd, tmpRet := m.retSIMD(ret)
	m.a.FpuRR(op, sz.Is64(), rd, rn)
	m.storeRetSIMD(sz, rd, tmpRet, ret)
	m.releaseSIMDTemp(rn, tmpLoc)
}

func (m *MachineARM64) emitFpuBinary(sz Size, op arm64.FpuBinOp, a, b, ret Location) {
	rn, tmpA := m.useSIMD(sz, a)
	rm, tmpB := m.useSIMD(sz, b)
	rd, tmpRet := m.retSIMD(ret)
	m.a.FpuRRR(op, sz.Is64(), rd, rn, rm)
	m.storeRetSIMD(sz, rd, tmpRet, ret)
	m.releaseSIMDTemp(rm, tmpB)
	m.releaseSIMDTemp(rn, tmpA)
}

func (m *MachineARM64) releaseSIMDTemp(r asm.Register, temp bool) {
	if temp {
		m.alloc.Release(r)
	}
}

// emitFpuCmp sets the 32-bit ret to 1 if "a cond b" holds. The conditions are chosen so that an unordered
// comparison yields 0 for all but "ne".
func (m *MachineARM64) emitFpuCmp(sz Size, cond asm.ConditionalRegisterState, a, b, ret Location) {
	rn, tmpA := m.useSIMD(sz, a)
	rm, tmpB := m.useSIMD(sz, b)
	m.a.Fcmp(sz.Is64(), rn, rm)
	m.releaseSIMDTemp(rm, tmpB)
	m.releaseSIMDTemp(rn, tmpA)
	rd, tmpRet := m.retGPR(ret)
	m.a.Cset(false, rd, cond)
	m.storeRet(S32, rd, tmpRet, ret)
}

// CanonicalizeNaN replaces a NaN input with the canonical quiet NaN of the same width. A value
// compares unordered with itself only when it is NaN, so fcsel picks the canonical bits on VS.
func (m *MachineARM64) CanonicalizeNaN(sz Size, input, output Location) {
	v, tmpV := m.useSIMD(sz, input)

	canonical := m.mustAcquireTempSIMD()
	tmp := m.mustAcquireTempGPR()
	if sz.Is64() {
		m.a.MovImm(true, tmp, canonicalNaN64)
	} else {
		m.a.MovImm(false, tmp, canonicalNaN32)
	}
	m.a.FmovFromGPR(sz.Is64(), canonical, tmp)
	m.alloc.Release(tmp)

	m.a.Fcmp(sz.Is64(), v, v)
	m.a.Fcsel(sz.Is64(), canonical, canonical, v, arm64.CondVS)
	m.MoveLocation(sz, SIMD(canonical), output)

	m.alloc.Release(canonical)
	m.releaseSIMDTemp(v, tmpV)
}

// emitCopysign sets the sign of tmp1 to the sign of tmp2, both holding raw float bits.
func (m *MachineARM64) emitCopysign(_64bit bool, tmp1, tmp2 asm.Register) {
	sign := uint64(1) << 31
	if _64bit {
		sign = 1 << 63
	}
	m.a.LogicalImm(arm64.LogicalAnd, _64bit, tmp1, tmp1, sign-1)
	m.a.LogicalImm(arm64.LogicalAnd, _64bit, tmp2, tmp2, sign)
	m.a.Logical(arm64.LogicalOrr, _64bit, tmp1, tmp1, tmp2)
}

// EmitI32Copysign implements Machine.EmitI32Copysign
func (m *MachineARM64) EmitI32Copysign(tmp1, tmp2 asm.Register) { m.emitCopysign(false, tmp1, tmp2) }

// EmitI64Copysign implements Machine.EmitI64Copysign
func (m *MachineARM64) EmitI64Copysign(tmp1, tmp2 asm.Register) { m.emitCopysign(true, tmp1, tmp2) }

// F64Neg implements Machine.F64Neg
func (m *MachineARM64) F64Neg(loc, ret Location) { m.emitFpuUnary(S64, arm64.FpuUniOpNeg, loc, ret) }

// F64Abs implements Machine.F64Abs
func (m *MachineARM64) F64Abs(loc, ret Location) { m.emitFpuUnary(S64, arm64.FpuUniOpAbs, loc, ret) }

// F64Sqrt implements Machine.F64Sqrt
func (m *MachineARM64) F64Sqrt(loc, ret Location) { m.emitFpuUnary(S64, arm64.FpuUniOpSqrt, loc, ret) }

// F64Trunc implements Machine.F64Trunc
func (m *MachineARM64) F64Trunc(loc, ret Location) {
	m.emitFpuUnary(S64, arm64.FpuUniOpRoundZero, loc, ret)
}

// F64Ceil implements Machine.F64Ceil
func (m *MachineARM64) F64Ceil(loc, ret Location) {
	m.emitFpuUnary(S64, arm64.FpuUniOpRoundPlus, loc, ret)
}

// F64Floor implements Machine.F64Floor
func (m *MachineARM64) F64Floor(loc, ret Location) {
	m.emitFpuUnary(S64, arm64.FpuUniOpRoundMinus, loc, ret)
}

// F64Nearest implements Machine.F64Nearest
func (m *MachineARM64) F64Nearest(loc, ret Location) {
	m.emitFpuUnary(S64, arm64.FpuUniOpRoundNearest, loc, ret)
}

// F64CmpGe implements Machine.F64CmpGe
func (m *MachineARM64) F64CmpGe(a, b, ret Location) { m.emitFpuCmp(S64, arm64.CondGE, a, b, ret) }

// F64CmpGt implements Machine.F64CmpGt
func (m *MachineARM64) F64CmpGt(a, b, ret Location) { m.emitFpuCmp(S64, arm64.CondGT, a, b, ret) }

// F64CmpLe implements Machine.F64CmpLe
func (m *MachineARM64) F64CmpLe(a, b, ret Location) { m.emitFpuCmp(S64, arm64.CondLS, a, b, ret) }

// F64CmpLt implements Machine.F64CmpLt
func (m *MachineARM64) F64CmpLt(a, b, ret Location) { m.emitFpuCmp(S64, arm64.CondMI, a, b, ret) }

// F64CmpNe implements Machine.F64CmpNe
func (m *MachineARM64) F64CmpNe(a, b, ret Location) { m.emitFpuCmp(S64, arm64.CondNE, a, b, ret) }

// F64CmpEq implements Machine.F64CmpEq
func (m *MachineARM64) F64CmpEq(a, b, ret Location) { m.emitFpuCmp(S64, arm64.CondEQ, a, b, ret) }

// F64Min implements Machine.F64Min
//
// fmin already returns NaN if either operand is NaN, and orders -0 below +0.
func (m *MachineARM64) F64Min(a, b, ret Location) { m.emitFpuBinary(S64, arm64.FpuBinOpMin, a, b, ret) }

// F64Max implements Machine.F64Max
func (m *MachineARM64) F64Max(a, b, ret Location) { m.emitFpuBinary(S64, arm64.FpuBinOpMax, a, b, ret) }

// F64Add implements Machine.F64Add
func (m *MachineARM64) F64Add(a, b, ret Location) { m.emitFpuBinary(S64, arm64.FpuBinOpAdd, a, b, ret) }

// F64Sub implements Machine.F64Sub
func (m *MachineARM64) F64Sub(a, b, ret Location) { m.emitFpuBinary(S64, arm64.FpuBinOpSub, a, b, ret) }

// F64Mul implements Machine.F64Mul
func (m *MachineARM64) F64Mul(a, b, ret Location) { m.emitFpuBinary(S64, arm64.FpuBinOpMul, a, b, ret) }

// F64Div implements Machine.F64Div
func (m *MachineARM64) F64Div(a, b, ret Location) { m.emitFpuBinary(S64, arm64.FpuBinOpDiv, a, b, ret) }

// F32Neg implements Machine.F32Neg
func (m *MachineARM64) F32Neg(loc, ret Location) { m.emitFpuUnary(S32, arm64.FpuUniOpNeg, loc, ret) }

// F32Abs implements Machine.F32Abs
func (m *MachineARM64) F32Abs(loc, ret Location) { m.emitFpuUnary(S32, arm64.FpuUniOpAbs, loc, ret) }

// F32Sqrt implements Machine.F32Sqrt
func (m *MachineARM64) F32Sqrt(loc, ret Location) { m.emitFpuUnary(S32, arm64.FpuUniOpSqrt, loc, ret) }

// F32Trunc implements Machine.F32Trunc
func (m *MachineARM64) F32Trunc(loc, ret Location) {
	m.emitFpuUnary(S32, arm64.FpuUniOpRoundZero, loc, ret)
}

// F32Ceil implements Machine.F32Ceil
func (m *MachineARM64) F32Ceil(loc, ret Location) {
	m.emitFpuUnary(S32, arm64.FpuUniOpRoundPlus, loc, ret)
}

// F32Floor implements Machine.F32Floor
func (m *MachineARM64) F32Floor(loc, ret Location) {
	m.emitFpuUnary(S32, arm64.FpuUniOpRoundMinus, loc, ret)
}

// F32Nearest implements Machine.F32Nearest
func (m *MachineARM64) F32Nearest(loc, ret Location) {
	m.emitFpuUnary(S32, arm64.FpuUniOpRoundNearest, loc, ret)
}

// F32CmpGe implements Machine.F32CmpGe
func (m *MachineARM64) F32CmpGe(a, b, ret Location) { m.emitFpuCmp(S32, arm64.CondGE, a, b, ret) }

// F32CmpGt implements Machine.F32CmpGt
func (m *MachineARM64) F32CmpGt(a, b, ret Location) { m.emitFpuCmp(S32, arm64.CondGT, a, b, ret) }

// F32CmpLe implements Machine.F32CmpLe
func (m *MachineARM64) F32CmpLe(a, b, ret Location) { m.emitFpuCmp(S32, arm64.CondLS, a, b, ret) }

// F32CmpLt implements Machine.F32CmpLt
func (m *MachineARM64) F32CmpLt(a, b, ret Location) { m.emitFpuCmp(S32, arm64.CondMI, a, b, ret) }

// F32CmpNe implements Machine.F32CmpNe
func (m *MachineARM64) F32CmpNe(a, b, ret Location) { m.emitFpuCmp(S32, arm64.CondNE, a, b, ret) }

// F32CmpEq implements Machine.F32CmpEq
func (m *MachineARM64) F32CmpEq(a, b, ret Location) { m.emitFpuCmp(S32, arm64.CondEQ, a, b, ret) }

// F32Min implements Machine.F32Min
func (m *MachineARM64) F32Min(a, b, ret Location) { m.emitFpuBinary(S32, arm64.FpuBinOpMin, a, b, ret) }

// F32Max implements Machine.F32Max
func (m *MachineARM64) F32Max(a, b, ret Location) { m.emitFpuBinary(S32, arm64.FpuBinOpMax, a, b, ret) }

// F32Add implements Machine.F32Add
func (m *MachineARM64) F32Add(a, b, ret Location) { m.emitFpuBinary(S32, arm64.FpuBinOpAdd, a, b, ret) }

// F32Sub implements Machine.F32Sub
func (m *MachineARM64) F32Sub(a, b, ret Location) { m.emitFpuBinary(S32, arm64.FpuBinOpSub, a, b, ret) }

// F32Mul implements Machine.F32Mul
func (m *MachineARM64) F32Mul(a, b, ret Location) { m.emitFpuBinary(S32, arm64.FpuBinOpMul, a, b, ret) }

// F32Div implements Machine.F32Div
func (m *MachineARM64) F32Div(a, b, ret Location) { m.emitFpuBinary(S32, arm64.FpuBinOpDiv, a, b, ret) }

func sizeFor(_64bit bool) Size {
	if _64bit {
		return S64
	}
	return S32
}

// emitIntToFloat converts the integer loc into a float.
func (m *MachineARM64) emitIntToFloat(intIs64, floatIs64, signed bool, loc, ret Location) {
	rn, tmpLoc := m.useGPR(sizeFor(intIs64), loc)
	rd, tmpRet := m.retSIMD(ret)
	m.a.Cvtf(signed, intIs64, floatIs64, rd, rn)
	m.storeRetSIMD(sizeFor(floatIs64), rd, tmpRet, ret)
	m.releaseTemp(rn, tmpLoc)
}

// emitFloatToInt converts the float loc into an integer rounding towards zero. The saturating form relies
// on the saturation of FCVTZ, where NaN converts to 0. The trapping form checks the invalid operation flag
// of FPSR and traps with either TrapCodeBadConversionToInteger (NaN) or TrapCodeIntegerOverflow.
func (m *MachineARM64) emitFloatToInt(intIs64, floatIs64, signed, sat bool, loc, ret Location) {
	rn, tmpLoc := m.useSIMD(sizeFor(floatIs64), loc)
	rd, tmpRet := m.retGPR(ret)

	if sat {
		m.a.Fcvtz(signed, intIs64, floatIs64, rd, rn)
	} else {
		m.a.MsrFPSR(arm64.RegRZR)
		m.a.Fcvtz(signed, intIs64, floatIs64, rd, rn)

		fpsr := m.mustAcquireTempGPR()
		m.a.MrsFPSR(fpsr)
		// IOC, the invalid operation cumulative flag.
		m.a.TstImm(true, fpsr, 1)
		m.alloc.Release(fpsr)

		ok, nan := m.a.NewLabel(), m.a.NewLabel()
		m.a.BCond(arm64.CondEQ, ok)
		m.a.Fcmp(floatIs64, rn, rn)
		m.a.BCond(arm64.CondVS, nan)
		m.MarkInstructionWithTrapCode(TrapCodeIntegerOverflow)
		m.EmitIllegalOp()
		m.a.BindLabel(nan)
		m.MarkInstructionWithTrapCode(TrapCodeBadConversionToInteger)
		m.EmitIllegalOp()
		m.a.BindLabel(ok)
	}

	m.storeRet(sizeFor(intIs64), rd, tmpRet, ret)
	m.releaseSIMDTemp(rn, tmpLoc)
}

// ConvertF64I64 implements Machine.ConvertF64I64
func (m *MachineARM64) ConvertF64I64(loc Location, signed bool, ret Location) {
	m.emitIntToFloat(true, true, signed, loc, ret)
}

// ConvertF64I32 implements Machine.ConvertF64I32
func (m *MachineARM64) ConvertF64I32(loc Location, signed bool, ret Location) {
	m.emitIntToFloat(false, true, signed, loc, ret)
}

// ConvertF32I64 implements Machine.ConvertF32I64
func (m *MachineARM64) ConvertF32I64(loc Location, signed bool, ret Location) {
	m.emitIntToFloat(true, false, signed, loc, ret)
}

// ConvertF32I32 implements Machine.ConvertF32I32
func (m *MachineARM64) ConvertF32I32(loc Location, signed bool, ret Location) {
	m.emitIntToFloat(false, false, signed, loc, ret)
}

// ConvertI64F64 implements Machine.ConvertI64F64
func (m *MachineARM64) ConvertI64F64(loc, ret Location, signed, sat bool) {
	m.emitFloatToInt(true, true, signed, sat, loc, ret)
}

// ConvertI32F64 truncates a float64 towards zero into an i32. Unless sat is set, out of range and
// NaN inputs trap once FPSR reports an invalid operation.
func (m *MachineARM64) ConvertI32F64(loc, ret Location, signed, sat bool) {
	m.emitFloatToInt(false, true, signed, sat, loc, ret)
}

// ConvertI64F32 implements Machine.ConvertI64F32
func (m *MachineARM64) ConvertI64F32(loc, ret Location, signed, sat bool) {
	m.emitFloatToInt(true, false, signed, sat, loc, ret)
}

// ConvertI32F32 implements Machine.ConvertI32F32
func (m *MachineARM64) ConvertI32F32(loc, ret Location, signed, sat bool) {
	m.emitFloatToInt(false, false, signed, sat, loc, ret)
}

// ConvertF64F32 implements Machine.ConvertF64F32
func (m *MachineARM64) ConvertF64F32(loc, ret Location) {
	rn, tmpLoc := m.useSIMD(S32, loc)
	rd, tmpRet := m.retSIMD(ret)
	m.a.FpuRR(arm64.FpuUniOpCvt, false, rd, rn)
	m.storeRetSIMD(S64, rd, tmpRet, ret)
	m.releaseSIMDTemp(rn, tmpLoc)
}

// ConvertF32F64 implements Machine.ConvertF32F64
func (m *MachineARM64) ConvertF32F64(loc, ret Location) {
	rn, tmpLoc := m.useSIMD(S64, loc)
	rd, tmpRet := m.retSIMD(ret)
	m.a.FpuRR(arm64.FpuUniOpCvt, true, rd, rn)
	m.storeRetSIMD(S32, rd, tmpRet, ret)
	m.releaseSIMDTemp(rn, tmpLoc)
}
