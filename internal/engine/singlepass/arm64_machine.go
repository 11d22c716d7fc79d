package singlepass

import (
	"fmt"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

// Register roles in generated code.
//
//	x0-x7    parameters 0-7, return value (x0), temporaries
//	x0-x15   value registers handed out by PickGPR
//	x18-x25  locals 0-7
//	x26      call target and return register
//	x27      frame base
//	x28      VM context
//	x30      link register
//
// The frame of a function body looks like this, the stack growing downwards:
//
//	   (high address)
//	+-----------------+
//	|   param N-1     | <- x27 + 16 + (N-9)*8
//	|      ...        |
//	|   param 8       | <- x27 + 16
//	|     x30         | <- x27 + 8
//	|     x27         | <- x27
//	| callee-saved    |
//	|   local 8       | <- x27 - 8 - callee-saved size
//	|      ...        |
//	| value stack     |
//	+-----------------+ <- sp
//	   (low address)
const (
	vmContextRegister = arm64.RegR28
	frameBaseRegister = arm64.RegR27
	callRegister      = arm64.RegR26
	// pushForNativeRegister carries immediates pushed for native calls.
	pushForNativeRegister = arm64.RegR4
)

var localRegisters = [...]asm.Register{
	arm64.RegR18, arm64.RegR19, arm64.RegR20, arm64.RegR21, arm64.RegR22, arm64.RegR23, arm64.RegR24, arm64.RegR25,
}

var paramRegisters = [...]asm.Register{
	arm64.RegR0, arm64.RegR1, arm64.RegR2, arm64.RegR3, arm64.RegR4, arm64.RegR5, arm64.RegR6, arm64.RegR7,
}

// MachineARM64 is the Machine for arm64.
type MachineARM64 struct {
	a     *arm64.Assembler
	alloc RegisterAllocator

	traps      trapTable
	addressMap []InstructionAddressMap
	srcLoc     uint32

	// pushed is true while the 16-byte slot at [sp] only holds one 8-byte value, at [sp, #0].
	pushed bool
}

var _ Machine = (*MachineARM64)(nil)

// NewMachineARM64 returns a MachineARM64 ready for the first function.
func NewMachineARM64() *MachineARM64 {
	return &MachineARM64{a: arm64.NewAssembler()}
}

var supportedOperationsARM64 = func() map[Operation]struct{} {
	ret := map[Operation]struct{}{}
	for _, op := range Operations() {
		ret[op] = struct{}{}
	}
	return ret
}()

// Supports implements Machine.Supports
func (m *MachineARM64) Supports(op Operation) bool {
	_, ok := supportedOperationsARM64[op]
	return ok
}

func (m *MachineARM64) mustAcquireTempGPR() asm.Register {
	r, ok := m.alloc.AcquireTemp(RegisterClassGPR)
	if !ok {
		panic("BUG: out of temporary general purpose registers")
	}
	return r
}

func (m *MachineARM64) mustAcquireTempSIMD() asm.Register {
	r, ok := m.alloc.AcquireTemp(RegisterClassSIMD)
	if !ok {
		panic("BUG: out of temporary vector registers")
	}
	return r
}

// mustPickTempGPR returns a free temporary without marking it, for use by a single instruction sequence
// which acquires nothing else.
func (m *MachineARM64) mustPickTempGPR() asm.Register {
	r, ok := m.alloc.PickTemp(RegisterClassGPR)
	if !ok {
		panic("BUG: out of temporary general purpose registers")
	}
	return r
}

// PickGPR implements Machine.PickGPR
func (m *MachineARM64) PickGPR() (asm.Register, bool) { return m.alloc.Pick(RegisterClassGPR) }

// PickTempGPR implements Machine.PickTempGPR
func (m *MachineARM64) PickTempGPR() (asm.Register, bool) { return m.alloc.PickTemp(RegisterClassGPR) }

// AcquireTempGPR implements Machine.AcquireTempGPR
func (m *MachineARM64) AcquireTempGPR() (asm.Register, bool) {
	return m.alloc.AcquireTemp(RegisterClassGPR)
}

// ReleaseGPR implements Machine.ReleaseGPR
func (m *MachineARM64) ReleaseGPR(r asm.Register) { m.alloc.Release(r) }

// ReserveUnusedTempGPR implements Machine.ReserveUnusedTempGPR
func (m *MachineARM64) ReserveUnusedTempGPR(r asm.Register) asm.Register {
	return m.alloc.ReserveUnusedTemp(r)
}

// ReserveGPR implements Machine.ReserveGPR
func (m *MachineARM64) ReserveGPR(r asm.Register) { m.alloc.Reserve(r) }

// PushUsedGPRs implements Machine.PushUsedGPRs
func (m *MachineARM64) PushUsedGPRs() {
	for _, r := range m.alloc.Used(RegisterClassGPR) {
		m.EmitPush(S64, GPR(r))
	}
}

// PopUsedGPRs implements Machine.PopUsedGPRs
func (m *MachineARM64) PopUsedGPRs() {
	used := m.alloc.Used(RegisterClassGPR)
	for i := len(used) - 1; i >= 0; i-- {
		m.EmitPop(S64, GPR(used[i]))
	}
}

// PickSIMD implements Machine.PickSIMD
func (m *MachineARM64) PickSIMD() (asm.Register, bool) { return m.alloc.Pick(RegisterClassSIMD) }

// PickTempSIMD implements Machine.PickTempSIMD
func (m *MachineARM64) PickTempSIMD() (asm.Register, bool) {
	return m.alloc.PickTemp(RegisterClassSIMD)
}

// AcquireTempSIMD implements Machine.AcquireTempSIMD
func (m *MachineARM64) AcquireTempSIMD() (asm.Register, bool) {
	return m.alloc.AcquireTemp(RegisterClassSIMD)
}

// ReserveSIMD implements Machine.ReserveSIMD
func (m *MachineARM64) ReserveSIMD(r asm.Register) { m.alloc.Reserve(r) }

// ReleaseSIMD implements Machine.ReleaseSIMD
func (m *MachineARM64) ReleaseSIMD(r asm.Register) { m.alloc.Release(r) }

func usedSIMDAreaSize(n int) uint32 {
	return uint32((n*8 + 15) &^ 15)
}

// PushUsedSIMDs implements Machine.PushUsedSIMDs
//
// The registers are stored in one area below sp rounded up to 16 bytes, so the parity is untouched.
func (m *MachineARM64) PushUsedSIMDs() {
	used := m.alloc.Used(RegisterClassSIMD)
	if len(used) == 0 {
		return
	}
	m.AdjustStack(usedSIMDAreaSize(len(used)))
	for i, r := range used {
		m.a.LoadStoreScaled(arm64.StoreF64, r, arm64.RegSP, int64(i*8))
	}
}

// PopUsedSIMDs implements Machine.PopUsedSIMDs
func (m *MachineARM64) PopUsedSIMDs() {
	used := m.alloc.Used(RegisterClassSIMD)
	if len(used) == 0 {
		return
	}
	for i, r := range used {
		m.a.LoadStoreScaled(arm64.LoadF64, r, arm64.RegSP, int64(i*8))
	}
	m.RestoreStack(usedSIMDAreaSize(len(used)))
}

// UsedGPRs implements Machine.UsedGPRs
func (m *MachineARM64) UsedGPRs() []asm.Register { return m.alloc.Used(RegisterClassGPR) }

// UsedSIMDs implements Machine.UsedSIMDs
func (m *MachineARM64) UsedSIMDs() []asm.Register { return m.alloc.Used(RegisterClassSIMD) }

// AllocatorSnapshot implements Machine.AllocatorSnapshot
func (m *MachineARM64) AllocatorSnapshot() AllocatorSnapshot { return m.alloc.Snapshot() }

// VMContextRegister implements Machine.VMContextRegister
func (m *MachineARM64) VMContextRegister() asm.Register { return vmContextRegister }

// SetSourceLocation implements Machine.SetSourceLocation
func (m *MachineARM64) SetSourceLocation(offset uint32) { m.srcLoc = offset }

// MarkAddressRangeWithTrapCode implements Machine.MarkAddressRangeWithTrapCode
//
// Every instruction in [begin, end) is tagged.
func (m *MachineARM64) MarkAddressRangeWithTrapCode(code TrapCode, begin, end int) {
	for off := begin; off < end; off += 4 {
		m.traps.insert(off, code, m.srcLoc)
	}
	m.MarkInstructionAddressEnd(begin)
}

// MarkAddressWithTrapCode implements Machine.MarkAddressWithTrapCode
func (m *MachineARM64) MarkAddressWithTrapCode(code TrapCode) {
	offset := m.a.Offset()
	m.traps.insert(offset, code, m.srcLoc)
	m.MarkInstructionAddressEnd(offset)
}

// MarkInstructionWithTrapCode implements Machine.MarkInstructionWithTrapCode
func (m *MachineARM64) MarkInstructionWithTrapCode(code TrapCode) int {
	offset := m.a.Offset()
	m.traps.insert(offset, code, m.srcLoc)
	return offset
}

// MarkInstructionAddressEnd implements Machine.MarkInstructionAddressEnd
func (m *MachineARM64) MarkInstructionAddressEnd(begin int) {
	m.addressMap = append(m.addressMap, InstructionAddressMap{
		SourceLoc:  m.srcLoc,
		CodeOffset: begin,
		CodeLen:    m.a.Offset() - begin,
	})
}

// InsertStackOverflow implements Machine.InsertStackOverflow
func (m *MachineARM64) InsertStackOverflow() {
	m.traps.insert(0, TrapCodeStackOverflow, m.srcLoc)
	m.MarkInstructionAddressEnd(0)
}

// CollectTrapInformation implements Machine.CollectTrapInformation
func (m *MachineARM64) CollectTrapInformation() []TrapInformation { return m.traps.collect() }

// InstructionsAddressMap implements Machine.InstructionsAddressMap
func (m *MachineARM64) InstructionsAddressMap() []InstructionAddressMap {
	return append([]InstructionAddressMap(nil), m.addressMap...)
}

// LocalOnStack implements Machine.LocalOnStack
func (m *MachineARM64) LocalOnStack(stackOffset int32) Location {
	return Memory(frameBaseRegister, -stackOffset)
}

// emitSPDelta moves sp by delta bytes, downwards if sub is true.
func (m *MachineARM64) emitSPDelta(sub bool, delta uint32) {
	if delta < 256 {
		if sub {
			m.a.SubImm(true, arm64.RegSP, arm64.RegSP, uint64(delta))
		} else {
			m.a.AddImm(true, arm64.RegSP, arm64.RegSP, uint64(delta))
		}
		return
	}
	tmp := m.mustPickTempGPR()
	m.a.MovImm(true, tmp, uint64(delta))
	if sub {
		m.a.Sub(true, arm64.RegSP, arm64.RegSP, tmp)
	} else {
		m.a.Add(true, arm64.RegSP, arm64.RegSP, tmp)
	}
}

// AdjustStack implements Machine.AdjustStack
func (m *MachineARM64) AdjustStack(delta uint32) { m.emitSPDelta(true, delta) }

// RestoreStack implements Machine.RestoreStack
func (m *MachineARM64) RestoreStack(delta uint32) { m.emitSPDelta(false, delta) }

// PushCalleeSaved implements Machine.PushCalleeSaved
//
// The prologue already saves everything arm64 needs.
func (m *MachineARM64) PushCalleeSaved() {}

// PopCalleeSaved implements Machine.PopCalleeSaved
func (m *MachineARM64) PopCalleeSaved() {}

// PopStackLocals implements Machine.PopStackLocals
func (m *MachineARM64) PopStackLocals(delta uint32) { m.emitSPDelta(false, delta) }

// PushLocationForNative implements Machine.PushLocationForNative
func (m *MachineARM64) PushLocationForNative(loc Location) {
	if loc.IsRegister() {
		m.EmitPush(S64, loc)
		return
	}
	m.ReserveUnusedTempGPR(pushForNativeRegister)
	m.EmitRelaxedMov(S64, loc, GPR(pushForNativeRegister))
	m.EmitPush(S64, GPR(pushForNativeRegister))
	m.ReleaseGPR(pushForNativeRegister)
}

// ZeroLocation implements Machine.ZeroLocation
func (m *MachineARM64) ZeroLocation(sz Size, loc Location) {
	switch loc.Kind {
	case LocationKindGPR:
		m.a.MovImm(sz.Is64(), loc.Reg, 0)
	case LocationKindSIMD:
		m.a.FmovFromGPR(sz.Is64(), loc.Reg, arm64.RegRZR)
	case LocationKindMemory:
		m.emitLoadStore(storeKind(sz, false), arm64.RegRZR, loc.Reg, int64(loc.Offset))
	default:
		panic(unsupported("ZeroLocation", []Size{sz}, loc))
	}
}

// LocalPointer implements Machine.LocalPointer
func (m *MachineARM64) LocalPointer() asm.Register { return frameBaseRegister }

// IsLocalOnStack implements Machine.IsLocalOnStack
func (m *MachineARM64) IsLocalOnStack(idx int) bool { return idx >= len(localRegisters) }

// LocalLocation implements Machine.LocalLocation
func (m *MachineARM64) LocalLocation(idx int, calleeSavedRegsSize int) Location {
	if idx < len(localRegisters) {
		return GPR(localRegisters[idx])
	}
	return Memory(frameBaseRegister, -int32((idx-7)*8+calleeSavedRegsSize))
}

// MoveLocal implements Machine.MoveLocal
func (m *MachineARM64) MoveLocal(stackOffset int32, loc Location) {
	if !loc.IsRegister() {
		panic(unsupported("MoveLocal", []Size{S64}, loc))
	}
	kind := storeKind(S64, loc.IsSIMD())
	if arm64.OffsetFitsUnscaled(-int64(stackOffset)) {
		m.a.LoadStoreUnscaled(kind, loc.Reg, frameBaseRegister, -int64(stackOffset))
		return
	}
	tmp := m.mustPickTempGPR()
	m.a.MovImm(true, tmp, uint64(int64(stackOffset)))
	m.a.Sub(true, tmp, frameBaseRegister, tmp)
	m.a.LoadStoreScaled(kind, loc.Reg, tmp, 0)
}

// ListToSave implements Machine.ListToSave
func (m *MachineARM64) ListToSave(CallingConvention) []Location { return nil }

// ParamLocation implements Machine.ParamLocation
func (m *MachineARM64) ParamLocation(idx int, _ CallingConvention) Location {
	if idx < len(paramRegisters) {
		return GPR(paramRegisters[idx])
	}
	return Memory(frameBaseRegister, int32(16+(idx-8)*8))
}

// LoadAddress implements Machine.LoadAddress
func (m *MachineARM64) LoadAddress(sz Size, reg, mem Location) {
	m.LocationAddress(sz, mem, reg)
}

// InitStackLoc implements Machine.InitStackLoc
func (m *MachineARM64) InitStackLoc(count uint64, last Location) {
	if !last.IsMemory() {
		panic(unsupported("InitStackLoc", []Size{S64}, last))
	}
	if count == 0 {
		return
	}
	addr, cnt := m.mustAcquireTempGPR(), m.mustAcquireTempGPR()
	m.addOffset(addr, last.Reg, int64(last.Offset))
	m.a.MovImm(true, cnt, count)
	loop := m.a.NewLabel()
	m.a.BindLabel(loop)
	m.a.LoadStorePostIndex(arm64.Store64, arm64.RegRZR, addr, 8)
	m.a.SubsImm(true, cnt, cnt, 1)
	m.a.BCond(arm64.CondNE, loop)
	m.alloc.Release(cnt)
	m.alloc.Release(addr)
}

// RestoreSavedArea implements Machine.RestoreSavedArea
func (m *MachineARM64) RestoreSavedArea(savedAreaOffset int32) {
	if savedAreaOffset >= 0 && savedAreaOffset < 256 {
		m.a.SubImm(true, arm64.RegSP, frameBaseRegister, uint64(savedAreaOffset))
		return
	}
	tmp := m.mustAcquireTempGPR()
	m.a.MovImm(true, tmp, uint64(int64(savedAreaOffset)))
	m.a.Sub(true, arm64.RegSP, frameBaseRegister, tmp)
	m.alloc.Release(tmp)
}

// PopLocation implements Machine.PopLocation
func (m *MachineARM64) PopLocation(loc Location) { m.EmitPop(S64, loc) }

// EmitPush implements Machine.EmitPush
//
// sp stays 16-byte aligned: an odd push allocates a fresh 16-byte slot and fills its low half,
// the next one fills the high half.
func (m *MachineARM64) EmitPush(sz Size, loc Location) {
	if sz != S64 || !loc.IsRegister() {
		panic(unsupported("EmitPush", []Size{sz}, loc))
	}
	var offset int64
	if m.pushed {
		offset = 8
	} else {
		m.a.SubImm(true, arm64.RegSP, arm64.RegSP, 16)
	}
	m.a.LoadStoreScaled(storeKind(S64, loc.IsSIMD()), loc.Reg, arm64.RegSP, offset)
	m.pushed = !m.pushed
}

// EmitPop implements Machine.EmitPop
func (m *MachineARM64) EmitPop(sz Size, loc Location) {
	if sz != S64 || !loc.IsRegister() {
		panic(unsupported("EmitPop", []Size{sz}, loc))
	}
	var offset int64 = 8
	if m.pushed {
		offset = 0
	}
	m.a.LoadStoreScaled(loadKind(S64, loc.IsSIMD()), loc.Reg, arm64.RegSP, offset)
	if m.pushed {
		m.a.AddImm(true, arm64.RegSP, arm64.RegSP, 16)
	}
	m.pushed = !m.pushed
}

// emitDoublePush pushes first then second, with a single stp when possible.
func (m *MachineARM64) emitDoublePush(sz Size, first, second Location) {
	if !m.pushed && sz == S64 && first.IsGPR() && second.IsGPR() {
		m.a.Stp(arm64.PairPreIndex, first.Reg, second.Reg, arm64.RegSP, -16)
		return
	}
	m.EmitPush(sz, first)
	m.EmitPush(sz, second)
}

// emitDoublePop is the inverse of emitDoublePush.
func (m *MachineARM64) emitDoublePop(sz Size, first, second Location) {
	if !m.pushed && sz == S64 && first.IsGPR() && second.IsGPR() {
		m.a.Ldp(arm64.PairPostIndex, first.Reg, second.Reg, arm64.RegSP, 16)
		return
	}
	m.EmitPop(sz, second)
	m.EmitPop(sz, first)
}

// EmitFunctionPrologue implements Machine.EmitFunctionPrologue
func (m *MachineARM64) EmitFunctionPrologue() {
	m.emitDoublePush(S64, GPR(frameBaseRegister), GPR(arm64.RegLR))
	m.MoveLocation(S64, GPR(arm64.RegSP), GPR(frameBaseRegister))
}

// EmitFunctionEpilogue implements Machine.EmitFunctionEpilogue
func (m *MachineARM64) EmitFunctionEpilogue() {
	m.MoveLocation(S64, GPR(frameBaseRegister), GPR(arm64.RegSP))
	m.emitDoublePop(S64, GPR(frameBaseRegister), GPR(arm64.RegLR))
}

// EmitFunctionReturnValue implements Machine.EmitFunctionReturnValue
func (m *MachineARM64) EmitFunctionReturnValue(ty wasm.ValueType, canonicalize bool, loc Location) {
	if canonicalize {
		switch ty {
		case wasm.ValueTypeF32:
			m.CanonicalizeNaN(S32, loc, GPR(arm64.RegR0))
			return
		case wasm.ValueTypeF64:
			m.CanonicalizeNaN(S64, loc, GPR(arm64.RegR0))
			return
		}
		panic(fmt.Sprintf("BUG: cannot canonicalize a %s return value", wasm.ValueTypeName(ty)))
	}
	m.EmitRelaxedMov(S64, loc, GPR(arm64.RegR0))
}

// EmitFunctionReturnFloat implements Machine.EmitFunctionReturnFloat
func (m *MachineARM64) EmitFunctionReturnFloat() {
	m.MoveLocation(S64, GPR(arm64.RegR0), SIMD(arm64.RegV0))
}

// ArchSupportsCanonicalizeNaN implements Machine.ArchSupportsCanonicalizeNaN
func (m *MachineARM64) ArchSupportsCanonicalizeNaN() bool { return true }

// EmitIllegalOp implements Machine.EmitIllegalOp
func (m *MachineARM64) EmitIllegalOp() { m.a.Udf(0) }

// NewLabel implements Machine.NewLabel
func (m *MachineARM64) NewLabel() asm.Label { return m.a.NewLabel() }

// EmitLabel implements Machine.EmitLabel
func (m *MachineARM64) EmitLabel(l asm.Label) { m.a.BindLabel(l) }

// GPRForCall implements Machine.GPRForCall
func (m *MachineARM64) GPRForCall() asm.Register { return callRegister }

// EmitCallRegister implements Machine.EmitCallRegister
func (m *MachineARM64) EmitCallRegister(r asm.Register) { m.a.Blr(r) }

// EmitCallLabel implements Machine.EmitCallLabel
func (m *MachineARM64) EmitCallLabel(l asm.Label) { m.a.Bl(l) }

// GPRForReturn implements Machine.GPRForReturn
func (m *MachineARM64) GPRForReturn() asm.Register { return callRegister }

// SIMDForReturn implements Machine.SIMDForReturn
func (m *MachineARM64) SIMDForReturn() asm.Register { return arm64.RegV0 }

// ArchRequiresIndirectCallTrampoline implements Machine.ArchRequiresIndirectCallTrampoline
func (m *MachineARM64) ArchRequiresIndirectCallTrampoline() bool { return false }

// ArchEmitIndirectCallWithTrampoline implements Machine.ArchEmitIndirectCallWithTrampoline
func (m *MachineARM64) ArchEmitIndirectCallWithTrampoline(loc Location) { m.EmitCallLocation(loc) }

// EmitCallLocation implements Machine.EmitCallLocation
func (m *MachineARM64) EmitCallLocation(loc Location) {
	if loc.IsGPR() {
		m.a.Blr(loc.Reg)
		return
	}
	m.EmitRelaxedMov(S64, loc, GPR(callRegister))
	m.a.Blr(callRegister)
}

// EmitRet implements Machine.EmitRet
func (m *MachineARM64) EmitRet() { m.a.Ret() }

// EmitMemoryFence implements Machine.EmitMemoryFence
func (m *MachineARM64) EmitMemoryFence() { m.a.DmbIsh() }

// AlignForLoop implements Machine.AlignForLoop
func (m *MachineARM64) AlignForLoop() {}

// EmitJmpToJumpTable implements Machine.EmitJmpToJumpTable
//
// The table at l is a sequence of 4-byte branches indexed by the 32-bit cond.
func (m *MachineARM64) EmitJmpToJumpTable(l asm.Label, cond Location) {
	target, index := m.mustAcquireTempGPR(), m.mustAcquireTempGPR()
	m.EmitRelaxedMov(S32, cond, GPR(index))
	m.a.Adr(target, l)
	m.a.AddShifted(true, target, target, index, arm64.ShiftLSL, 2)
	m.a.Br(target)
	m.alloc.Release(index)
	m.alloc.Release(target)
}

// MoveWithReloc implements Machine.MoveWithReloc
//
// The four MOVKs build the target address in the call register once the relocations are resolved.
func (m *MachineARM64) MoveWithReloc(target RelocationTarget, relocations []Relocation) []Relocation {
	for i := 0; i < 4; i++ {
		relocations = append(relocations, Relocation{
			Kind:   RelocationKindArm64Movw0 + RelocationKind(i),
			Target: target,
			Offset: uint32(m.a.Offset()),
		})
		m.a.Movk(true, callRegister, 0, uint8(i))
	}
	return relocations
}

// JmpUnconditional implements Machine.JmpUnconditional
func (m *MachineARM64) JmpUnconditional(l asm.Label) { m.a.B(l) }

// JmpOnEqual implements Machine.JmpOnEqual
func (m *MachineARM64) JmpOnEqual(l asm.Label) { m.a.BCond(arm64.CondEQ, l) }

// JmpOnDifferent implements Machine.JmpOnDifferent
func (m *MachineARM64) JmpOnDifferent(l asm.Label) { m.a.BCond(arm64.CondNE, l) }

// JmpOnAbove implements Machine.JmpOnAbove
func (m *MachineARM64) JmpOnAbove(l asm.Label) { m.a.BCond(arm64.CondHI, l) }

// JmpOnAboveEqual implements Machine.JmpOnAboveEqual
func (m *MachineARM64) JmpOnAboveEqual(l asm.Label) { m.a.BCond(arm64.CondHS, l) }

// JmpOnBelowEqual implements Machine.JmpOnBelowEqual
func (m *MachineARM64) JmpOnBelowEqual(l asm.Label) { m.a.BCond(arm64.CondLS, l) }

// JmpOnOverflow implements Machine.JmpOnOverflow
//
// Unsigned overflow sets the carry flag on arm64.
func (m *MachineARM64) JmpOnOverflow(l asm.Label) { m.a.BCond(arm64.CondCS, l) }

// AssemblerFinalize implements Machine.AssemblerFinalize
func (m *MachineARM64) AssemblerFinalize() ([]byte, error) {
	code, err := m.a.Assemble()
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), code...), nil
}

// FinalizeFunction implements Machine.FinalizeFunction
func (m *MachineARM64) FinalizeFunction() {
	for _, r := range tempGPRs {
		if m.alloc.IsUsed(r) {
			panic(fmt.Sprintf("BUG: temporary %s is still in use at the end of the function", arm64.RegisterName(r)))
		}
	}
	for _, r := range tempSIMDs {
		if m.alloc.IsUsed(r) {
			panic(fmt.Sprintf("BUG: temporary %s is still in use at the end of the function", arm64.RegisterName(r)))
		}
	}
}

// Offset implements Machine.Offset
func (m *MachineARM64) Offset() int { return m.a.Offset() }

// Reset implements Machine.Reset
func (m *MachineARM64) Reset() {
	m.a.Reset()
	m.alloc.Reset()
	m.traps.reset()
	m.addressMap = m.addressMap[:0]
	m.srcLoc = 0
	m.pushed = false
}
