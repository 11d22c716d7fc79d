package singlepass

import (
	"fmt"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

func loadKind(sz Size, simd bool) arm64.LoadStoreKind {
	switch {
	case simd && sz == S32:
		return arm64.LoadF32
	case simd && sz == S64:
		return arm64.LoadF64
	case simd:
	case sz == S8:
		return arm64.Load8U
	case sz == S16:
		return arm64.Load16U
	case sz == S32:
		return arm64.Load32U
	case sz == S64:
		return arm64.Load64
	}
	panic(fmt.Sprintf("BUG: no load of %s into a simd=%v register", sz, simd))
}

func storeKind(sz Size, simd bool) arm64.LoadStoreKind {
	switch {
	case simd && sz == S32:
		return arm64.StoreF32
	case simd && sz == S64:
		return arm64.StoreF64
	case simd:
	case sz == S8:
		return arm64.Store8
	case sz == S16:
		return arm64.Store16
	case sz == S32:
		return arm64.Store32
	case sz == S64:
		return arm64.Store64
	}
	panic(fmt.Sprintf("BUG: no store of %s from a simd=%v register", sz, simd))
}

// extendingLoadKind returns the load of a sizeVal value widened to sizeOp.
func extendingLoadKind(sizeVal Size, signed bool, sizeOp Size) arm64.LoadStoreKind {
	if !signed || sizeVal >= sizeOp {
		return loadKind(sizeVal, false)
	}
	switch sizeVal {
	case S8:
		if sizeOp == S32 {
			return arm64.Load8S32
		}
		return arm64.Load8S64
	case S16:
		if sizeOp == S32 {
			return arm64.Load16S32
		}
		return arm64.Load16S64
	}
	return arm64.Load32S64
}

// emitLoadStore accesses [base, #offset] choosing the shortest encoding for the offset.
func (m *MachineARM64) emitLoadStore(kind arm64.LoadStoreKind, rt, base asm.Register, offset int64) {
	switch {
	case kind.OffsetFitsScaled(offset):
		m.a.LoadStoreScaled(kind, rt, base, offset)
	case arm64.OffsetFitsUnscaled(offset):
		m.a.LoadStoreUnscaled(kind, rt, base, offset)
	default:
		tmp := m.mustAcquireTempGPR()
		m.a.MovImm(true, tmp, uint64(offset))
		m.a.LoadStoreRegisterOffset(kind, rt, base, tmp)
		m.alloc.Release(tmp)
	}
}

// addOffset computes rd = base + offset.
func (m *MachineARM64) addOffset(rd, base asm.Register, offset int64) {
	switch {
	case offset == 0:
		m.a.MovRegister(true, rd, base)
	case offset > 0 && arm64.AddSubImmediateFits(uint64(offset)):
		m.a.AddImm(true, rd, base, uint64(offset))
	case offset < 0 && arm64.AddSubImmediateFits(uint64(-offset)):
		m.a.SubImm(true, rd, base, uint64(-offset))
	default:
		tmp := m.mustAcquireTempGPR()
		m.a.MovImm(true, tmp, uint64(offset))
		m.a.Add(true, rd, base, tmp)
		m.alloc.Release(tmp)
	}
}

// useGPR returns a general purpose register holding the value of loc. When temp is true the register
// was acquired for the purpose and must be released with releaseTemp.
func (m *MachineARM64) useGPR(sz Size, loc Location) (r asm.Register, temp bool) {
	switch loc.Kind {
	case LocationKindGPR:
		return loc.Reg, false
	case LocationKindMemory:
		r = m.mustAcquireTempGPR()
		m.emitLoadStore(loadKind(sz, false), r, loc.Reg, int64(loc.Offset))
	case LocationKindImm8, LocationKindImm32, LocationKindImm64:
		r = m.mustAcquireTempGPR()
		m.a.MovImm(sz.Is64(), r, loc.Imm)
	case LocationKindSIMD:
		r = m.mustAcquireTempGPR()
		m.a.FmovToGPR(sz.Is64(), r, loc.Reg)
	default:
		panic(fmt.Sprintf("BUG: %s has no value", loc))
	}
	return r, true
}

func (m *MachineARM64) releaseTemp(r asm.Register, temp bool) {
	if temp {
		m.alloc.Release(r)
	}
}

// MoveLocation implements Machine.MoveLocation
func (m *MachineARM64) MoveLocation(sz Size, src, dst Location) {
	switch {
	case src.IsGPR() && dst.IsGPR():
		m.a.MovRegister(sz.Is64(), dst.Reg, src.Reg)
	case src.IsGPR() && dst.IsSIMD():
		m.a.FmovFromGPR(sz.Is64(), dst.Reg, src.Reg)
	case src.IsSIMD() && dst.IsGPR():
		m.a.FmovToGPR(sz.Is64(), dst.Reg, src.Reg)
	case src.IsSIMD() && dst.IsSIMD():
		m.a.FpuRR(arm64.FpuUniOpMov, sz.Is64(), dst.Reg, src.Reg)
	case src.IsRegister() && dst.IsMemory():
		m.emitLoadStore(storeKind(sz, src.IsSIMD()), src.Reg, dst.Reg, int64(dst.Offset))
	case src.IsImm() && dst.IsGPR():
		m.a.MovImm(sz.Is64(), dst.Reg, src.Imm)
	case src.IsMemory() && dst.IsRegister():
		m.emitLoadStore(loadKind(sz, dst.IsSIMD()), dst.Reg, src.Reg, int64(src.Offset))
	default:
		panic(unsupported("MoveLocation", []Size{sz}, src, dst))
	}
}

// EmitRelaxedMov implements Machine.EmitRelaxedMov
//
// Unlike MoveLocation, any pair of locations is accepted as long as dst can be written.
func (m *MachineARM64) EmitRelaxedMov(sz Size, src, dst Location) {
	switch {
	case (src.IsMemory() || src.IsImm()) && dst.IsMemory(), src.IsImm() && dst.IsSIMD():
		tmp := m.mustAcquireTempGPR()
		m.MoveLocation(sz, src, GPR(tmp))
		m.MoveLocation(sz, GPR(tmp), dst)
		m.alloc.Release(tmp)
	default:
		m.MoveLocation(sz, src, dst)
	}
}

// MoveLocationExtend implements Machine.MoveLocationExtend
func (m *MachineARM64) MoveLocationExtend(sizeVal Size, signed bool, src Location, sizeOp Size, dst Location) {
	var rd asm.Register
	switch {
	case dst.IsGPR():
		rd = dst.Reg
	case dst.IsMemory():
		rd = m.mustAcquireTempGPR()
	default:
		panic(unsupported("MoveLocationExtend", []Size{sizeVal, sizeOp}, src, dst))
	}

	switch {
	case src.IsMemory():
		m.emitLoadStore(extendingLoadKind(sizeVal, signed, sizeOp), rd, src.Reg, int64(src.Offset))
	case src.IsGPR():
		if sizeVal >= sizeOp {
			m.a.MovRegister(sizeOp.Is64(), rd, src.Reg)
		} else {
			m.a.Extend(signed, sizeVal.Bits(), sizeOp.Bits(), rd, src.Reg)
		}
	case src.IsImm():
		m.a.MovImm(sizeOp.Is64(), rd, extendImmediate(src.Imm, sizeVal, signed))
	default:
		panic(unsupported("MoveLocationExtend", []Size{sizeVal, sizeOp}, src, dst))
	}

	if dst.IsMemory() {
		m.MoveLocation(sizeOp, GPR(rd), dst)
		m.alloc.Release(rd)
	}
}

// extendImmediate truncates v to sz and extends it back to 64 bits.
func extendImmediate(v uint64, sz Size, signed bool) uint64 {
	if sz == S64 {
		return v
	}
	shift := 64 - uint(sz.Bits())
	if signed {
		return uint64(int64(v<<shift) >> shift)
	}
	return v << shift >> shift
}

// EmitRelaxedZeroExtension implements Machine.EmitRelaxedZeroExtension
func (m *MachineARM64) EmitRelaxedZeroExtension(szSrc Size, src Location, szDst Size, dst Location) {
	m.MoveLocationExtend(szSrc, false, src, szDst, dst)
}

// EmitRelaxedSignExtension implements Machine.EmitRelaxedSignExtension
func (m *MachineARM64) EmitRelaxedSignExtension(szSrc Size, src Location, szDst Size, dst Location) {
	m.MoveLocationExtend(szSrc, true, src, szDst, dst)
}

// relaxedBinop is a "dst op= src" integer instruction.
type relaxedBinop struct {
	op Operation
	// writes is false for the comparisons which only update the flags.
	writes bool
	emit   func(a *arm64.Assembler, _64bit bool, rd, rn, rm asm.Register)
}

var (
	relaxedAnd  = relaxedBinop{op: "LocationAnd", writes: true, emit: logical(arm64.LogicalAnd)}
	relaxedAnds = relaxedBinop{op: "LocationAnd", writes: true, emit: logical(arm64.LogicalAnds)}
	relaxedOr   = relaxedBinop{op: "LocationOr", writes: true, emit: logical(arm64.LogicalOrr)}
	relaxedXor  = relaxedBinop{op: "LocationXor", writes: true, emit: logical(arm64.LogicalEor)}
	relaxedAdd  = relaxedBinop{op: "LocationAdd", writes: true, emit: (*arm64.Assembler).Add}
	relaxedAdds = relaxedBinop{op: "LocationAdd", writes: true, emit: (*arm64.Assembler).Adds}
	relaxedSub  = relaxedBinop{op: "LocationSub", writes: true, emit: (*arm64.Assembler).Sub}
	relaxedSubs = relaxedBinop{op: "LocationSub", writes: true, emit: (*arm64.Assembler).Subs}
	relaxedTest = relaxedBinop{op: "LocationTest", emit: func(a *arm64.Assembler, _64bit bool, _, rn, rm asm.Register) {
		a.Tst(_64bit, rn, rm)
	}}
	relaxedCmp = relaxedBinop{op: "LocationCmp", emit: func(a *arm64.Assembler, _64bit bool, _, rn, rm asm.Register) {
		a.Cmp(_64bit, rn, rm)
	}}
)

func logical(op arm64.LogicalOp) func(a *arm64.Assembler, _64bit bool, rd, rn, rm asm.Register) {
	return func(a *arm64.Assembler, _64bit bool, rd, rn, rm asm.Register) {
		a.Logical(op, _64bit, rd, rn, rm)
	}
}

func (m *MachineARM64) emitRelaxedBinop(b relaxedBinop, sz Size, src, dst Location) {
	if (sz != S32 && sz != S64) || src.IsSIMD() || dst.IsSIMD() || (b.writes && dst.IsImm()) {
		panic(unsupported(b.op, []Size{sz}, src, dst))
	}
	rm, tmpSrc := m.useGPR(sz, src)
	rd, tmpDst := m.useGPR(sz, dst)
	b.emit(m.a, sz.Is64(), rd, rd, rm)
	if tmpDst && b.writes {
		m.MoveLocation(sz, GPR(rd), dst)
	}
	m.releaseTemp(rd, tmpDst)
	m.releaseTemp(rm, tmpSrc)
}

// LocationAddress implements Machine.LocationAddress
func (m *MachineARM64) LocationAddress(sz Size, src, dst Location) {
	if !src.IsMemory() || sz != S64 {
		panic(unsupported("LocationAddress", []Size{sz}, src, dst))
	}
	switch {
	case dst.IsGPR():
		m.addOffset(dst.Reg, src.Reg, int64(src.Offset))
	case dst.IsMemory():
		tmp := m.mustAcquireTempGPR()
		m.addOffset(tmp, src.Reg, int64(src.Offset))
		m.MoveLocation(S64, GPR(tmp), dst)
		m.alloc.Release(tmp)
	default:
		panic(unsupported("LocationAddress", []Size{sz}, src, dst))
	}
}

// LocationAnd implements Machine.LocationAnd
func (m *MachineARM64) LocationAnd(sz Size, src, dst Location, flags bool) {
	if flags {
		m.emitRelaxedBinop(relaxedAnds, sz, src, dst)
	} else {
		m.emitRelaxedBinop(relaxedAnd, sz, src, dst)
	}
}

// LocationXor implements Machine.LocationXor
//
// arm64 has no flag-setting eor, so flags is ignored.
func (m *MachineARM64) LocationXor(sz Size, src, dst Location, _ bool) {
	m.emitRelaxedBinop(relaxedXor, sz, src, dst)
}

// LocationOr implements Machine.LocationOr
//
// arm64 has no flag-setting orr, so flags is ignored.
func (m *MachineARM64) LocationOr(sz Size, src, dst Location, _ bool) {
	m.emitRelaxedBinop(relaxedOr, sz, src, dst)
}

// LocationAdd implements Machine.LocationAdd
func (m *MachineARM64) LocationAdd(sz Size, src, dst Location, flags bool) {
	if flags {
		m.emitRelaxedBinop(relaxedAdds, sz, src, dst)
	} else {
		m.emitRelaxedBinop(relaxedAdd, sz, src, dst)
	}
}

// LocationSub implements Machine.LocationSub
func (m *MachineARM64) LocationSub(sz Size, src, dst Location, flags bool) {
	if flags {
		m.emitRelaxedBinop(relaxedSubs, sz, src, dst)
	} else {
		m.emitRelaxedBinop(relaxedSub, sz, src, dst)
	}
}

// LocationTest implements Machine.LocationTest
func (m *MachineARM64) LocationTest(sz Size, src, dst Location) {
	m.emitRelaxedBinop(relaxedTest, sz, src, dst)
}

// LocationCmp implements Machine.LocationCmp
func (m *MachineARM64) LocationCmp(sz Size, src, dst Location) {
	m.emitRelaxedBinop(relaxedCmp, sz, src, dst)
}

// EmitRelaxedCmp implements Machine.EmitRelaxedCmp
//
// The flags are those of dst - src.
func (m *MachineARM64) EmitRelaxedCmp(sz Size, src, dst Location) {
	m.emitRelaxedBinop(relaxedCmp, sz, src, dst)
}

// LocationNeg implements Machine.LocationNeg
func (m *MachineARM64) LocationNeg(sizeVal Size, signed bool, src Location, sizeOp Size, dst Location) {
	tmp := m.mustAcquireTempGPR()
	m.MoveLocationExtend(sizeVal, signed, src, sizeOp, GPR(tmp))
	m.a.Neg(sizeOp.Is64(), tmp, tmp)
	m.MoveLocation(sizeOp, GPR(tmp), dst)
	m.alloc.Release(tmp)
}

// EmitImulImm32 implements Machine.EmitImulImm32
func (m *MachineARM64) EmitImulImm32(sz Size, imm32 uint32, r asm.Register) {
	tmp := m.mustAcquireTempGPR()
	m.a.MovImm(sz.Is64(), tmp, uint64(imm32))
	m.a.Mul(sz.Is64(), r, r, tmp)
	m.alloc.Release(tmp)
}
