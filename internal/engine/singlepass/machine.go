package singlepass

import (
	"errors"
	"fmt"
	"reflect"
	"sort"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

var (
	// ErrUnsupportedArchitecture is returned by NewMachine for targets without a backend.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")
	// ErrUnsupported matches every *UnsupportedOperationError with errors.Is.
	ErrUnsupported = errors.New("unsupported operation")
)

// Operation is the name of a Machine method, e.g. "EmitBinopAdd32".
type Operation string

// Operations returns every operation of the Machine interface in lexical order.
func Operations() []Operation {
	typ := reflect.TypeOf((*Machine)(nil)).Elem()
	ret := make([]Operation, 0, typ.NumMethod())
	for i := 0; i < typ.NumMethod(); i++ {
		if name := typ.Method(i).Name; name != "Supports" {
			ret = append(ret, Operation(name))
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i] < ret[j] })
	return ret
}

// UnsupportedOperationError is raised when a Machine is asked for an operation, or an operand
// combination, it cannot encode. Machines panic with it during code generation; drivers which
// consult Machine.Supports get it as a regular error before emitting anything.
type UnsupportedOperationError struct {
	Operation Operation
	Sizes     []Size
	Locations []Location
}

// Error implements error.
func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %s (sizes %v, locations %v)", e.Operation, e.Sizes, e.Locations)
}

// Is allows errors.Is(err, ErrUnsupported).
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupported
}

func unsupported(op Operation, sizes []Size, locs ...Location) *UnsupportedOperationError {
	return &UnsupportedOperationError{Operation: op, Sizes: sizes, Locations: locs}
}

// NewMachine returns the Machine for the given architecture ("arm64").
func NewMachine(arch string) (Machine, error) {
	switch arch {
	case "arm64":
		return NewMachineARM64(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedArchitecture, arch)
}

// Machine generates the native code of one function body at a time. A driver calls one method per
// virtual stack operation, with operands already resolved into Locations.
//
// Two-operand methods named Location* and EmitRelaxed* follow the "dst op= src" form. The three-operand
// Emit* and I32*, I64*, F32*, F64* methods compute ret from their operands.
//
// A Machine is not safe for concurrent use: compile functions in parallel with one Machine each.
type Machine interface {
	// Supports returns true if the operation is implemented by this Machine.
	Supports(op Operation) bool

	// Register allocator.

	PickGPR() (asm.Register, bool)
	PickTempGPR() (asm.Register, bool)
	AcquireTempGPR() (asm.Register, bool)
	ReleaseGPR(r asm.Register)
	ReserveUnusedTempGPR(r asm.Register) asm.Register
	ReserveGPR(r asm.Register)
	PushUsedGPRs()
	PopUsedGPRs()
	PickSIMD() (asm.Register, bool)
	PickTempSIMD() (asm.Register, bool)
	AcquireTempSIMD() (asm.Register, bool)
	ReserveSIMD(r asm.Register)
	ReleaseSIMD(r asm.Register)
	PushUsedSIMDs()
	PopUsedSIMDs()
	UsedGPRs() []asm.Register
	UsedSIMDs() []asm.Register
	AllocatorSnapshot() AllocatorSnapshot
	VMContextRegister() asm.Register

	// Trap table and address map.

	SetSourceLocation(offset uint32)
	MarkAddressRangeWithTrapCode(code TrapCode, begin, end int)
	MarkAddressWithTrapCode(code TrapCode)
	MarkInstructionWithTrapCode(code TrapCode) int
	MarkInstructionAddressEnd(begin int)
	InsertStackOverflow()
	CollectTrapInformation() []TrapInformation
	InstructionsAddressMap() []InstructionAddressMap

	// Stack frame.

	LocalOnStack(stackOffset int32) Location
	AdjustStack(delta uint32)
	RestoreStack(delta uint32)
	PushCalleeSaved()
	PopCalleeSaved()
	PopStackLocals(delta uint32)
	PushLocationForNative(loc Location)
	ZeroLocation(sz Size, loc Location)
	LocalPointer() asm.Register
	IsLocalOnStack(idx int) bool
	LocalLocation(idx int, calleeSavedRegsSize int) Location
	MoveLocal(stackOffset int32, loc Location)
	ListToSave(cc CallingConvention) []Location
	ParamLocation(idx int, cc CallingConvention) Location
	MoveLocation(sz Size, src, dst Location)
	MoveLocationExtend(sizeVal Size, signed bool, src Location, sizeOp Size, dst Location)
	LoadAddress(sz Size, reg, mem Location)
	InitStackLoc(count uint64, last Location)
	RestoreSavedArea(savedAreaOffset int32)
	PopLocation(loc Location)
	EmitPush(sz Size, loc Location)
	EmitPop(sz Size, loc Location)

	// Function boundary and calls.

	EmitFunctionPrologue()
	EmitFunctionEpilogue()
	EmitFunctionReturnValue(ty wasm.ValueType, canonicalize bool, loc Location)
	EmitFunctionReturnFloat()
	ArchSupportsCanonicalizeNaN() bool
	CanonicalizeNaN(sz Size, input, output Location)
	EmitIllegalOp()
	NewLabel() asm.Label
	EmitLabel(l asm.Label)
	GPRForCall() asm.Register
	EmitCallRegister(r asm.Register)
	EmitCallLabel(l asm.Label)
	GPRForReturn() asm.Register
	SIMDForReturn() asm.Register
	ArchRequiresIndirectCallTrampoline() bool
	ArchEmitIndirectCallWithTrampoline(loc Location)
	EmitCallLocation(loc Location)
	EmitRet()
	EmitMemoryFence()
	AlignForLoop()
	EmitJmpToJumpTable(l asm.Label, cond Location)
	MoveWithReloc(target RelocationTarget, relocations []Relocation) []Relocation

	// Jumps on the flags of the last comparison.

	JmpUnconditional(l asm.Label)
	JmpOnEqual(l asm.Label)
	JmpOnDifferent(l asm.Label)
	JmpOnAbove(l asm.Label)
	JmpOnAboveEqual(l asm.Label)
	JmpOnBelowEqual(l asm.Label)
	JmpOnOverflow(l asm.Label)

	// Two-operand location helpers.

	LocationAddress(sz Size, src, dst Location)
	LocationAnd(sz Size, src, dst Location, flags bool)
	LocationXor(sz Size, src, dst Location, flags bool)
	LocationOr(sz Size, src, dst Location, flags bool)
	LocationAdd(sz Size, src, dst Location, flags bool)
	LocationSub(sz Size, src, dst Location, flags bool)
	LocationTest(sz Size, src, dst Location)
	LocationCmp(sz Size, src, dst Location)
	LocationNeg(sizeVal Size, signed bool, src Location, sizeOp Size, dst Location)
	EmitImulImm32(sz Size, imm32 uint32, r asm.Register)
	EmitRelaxedMov(sz Size, src, dst Location)
	EmitRelaxedCmp(sz Size, src, dst Location)
	EmitRelaxedZeroExtension(szSrc Size, src Location, szDst Size, dst Location)
	EmitRelaxedSignExtension(szSrc Size, src Location, szDst Size, dst Location)

	// i32 arithmetic. Divisions return the offset of the divide instruction.

	EmitBinopAdd32(a, b, ret Location)
	EmitBinopSub32(a, b, ret Location)
	EmitBinopMul32(a, b, ret Location)
	EmitBinopUdiv32(a, b, ret Location, divByZero asm.Label) int
	EmitBinopSdiv32(a, b, ret Location, divByZero, overflow asm.Label) int
	EmitBinopUrem32(a, b, ret Location, divByZero asm.Label) int
	EmitBinopSrem32(a, b, ret Location, divByZero asm.Label) int
	EmitBinopAnd32(a, b, ret Location)
	EmitBinopOr32(a, b, ret Location)
	EmitBinopXor32(a, b, ret Location)
	I32CmpGeS(a, b, ret Location)
	I32CmpGtS(a, b, ret Location)
	I32CmpLeS(a, b, ret Location)
	I32CmpLtS(a, b, ret Location)
	I32CmpGeU(a, b, ret Location)
	I32CmpGtU(a, b, ret Location)
	I32CmpLeU(a, b, ret Location)
	I32CmpLtU(a, b, ret Location)
	I32CmpNe(a, b, ret Location)
	I32CmpEq(a, b, ret Location)
	I32Clz(loc, ret Location)
	I32Ctz(loc, ret Location)
	I32Popcnt(loc, ret Location)
	I32Shl(a, b, ret Location)
	I32Shr(a, b, ret Location)
	I32Sar(a, b, ret Location)
	I32Rol(a, b, ret Location)
	I32Ror(a, b, ret Location)

	// i32 memory.

	I32Load(addr Location, access MemoryAccess, ret Location)
	I32Load8U(addr Location, access MemoryAccess, ret Location)
	I32Load8S(addr Location, access MemoryAccess, ret Location)
	I32Load16U(addr Location, access MemoryAccess, ret Location)
	I32Load16S(addr Location, access MemoryAccess, ret Location)
	I32AtomicLoad(addr Location, access MemoryAccess, ret Location)
	I32AtomicLoad8U(addr Location, access MemoryAccess, ret Location)
	I32AtomicLoad16U(addr Location, access MemoryAccess, ret Location)
	I32Save(value Location, access MemoryAccess, addr Location)
	I32Save8(value Location, access MemoryAccess, addr Location)
	I32Save16(value Location, access MemoryAccess, addr Location)
	I32AtomicSave(value Location, access MemoryAccess, addr Location)
	I32AtomicSave8(value Location, access MemoryAccess, addr Location)
	I32AtomicSave16(value Location, access MemoryAccess, addr Location)
	I32AtomicAdd(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicAdd8U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicAdd16U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicSub(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicSub8U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicSub16U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicAnd(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicAnd8U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicAnd16U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicOr(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicOr8U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicOr16U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicXor(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicXor8U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicXor16U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicXchg(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicXchg8U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicXchg16U(value, addr Location, access MemoryAccess, ret Location)
	I32AtomicCmpxchg(newValue, cmp, addr Location, access MemoryAccess, ret Location)
	I32AtomicCmpxchg8U(newValue, cmp, addr Location, access MemoryAccess, ret Location)
	I32AtomicCmpxchg16U(newValue, cmp, addr Location, access MemoryAccess, ret Location)

	// i64 arithmetic.

	EmitBinopAdd64(a, b, ret Location)
	EmitBinopSub64(a, b, ret Location)
	EmitBinopMul64(a, b, ret Location)
	EmitBinopUdiv64(a, b, ret Location, divByZero asm.Label) int
	EmitBinopSdiv64(a, b, ret Location, divByZero, overflow asm.Label) int
	EmitBinopUrem64(a, b, ret Location, divByZero asm.Label) int
	EmitBinopSrem64(a, b, ret Location, divByZero asm.Label) int
	EmitBinopAnd64(a, b, ret Location)
	EmitBinopOr64(a, b, ret Location)
	EmitBinopXor64(a, b, ret Location)
	I64CmpGeS(a, b, ret Location)
	I64CmpGtS(a, b, ret Location)
	I64CmpLeS(a, b, ret Location)
	I64CmpLtS(a, b, ret Location)
	I64CmpGeU(a, b, ret Location)
	I64CmpGtU(a, b, ret Location)
	I64CmpLeU(a, b, ret Location)
	I64CmpLtU(a, b, ret Location)
	I64CmpNe(a, b, ret Location)
	I64CmpEq(a, b, ret Location)
	I64Clz(loc, ret Location)
	I64Ctz(loc, ret Location)
	I64Popcnt(loc, ret Location)
	I64Shl(a, b, ret Location)
	I64Shr(a, b, ret Location)
	I64Sar(a, b, ret Location)
	I64Rol(a, b, ret Location)
	I64Ror(a, b, ret Location)

	// i64 memory.

	I64Load(addr Location, access MemoryAccess, ret Location)
	I64Load8U(addr Location, access MemoryAccess, ret Location)
	I64Load8S(addr Location, access MemoryAccess, ret Location)
	I64Load16U(addr Location, access MemoryAccess, ret Location)
	I64Load16S(addr Location, access MemoryAccess, ret Location)
	I64Load32U(addr Location, access MemoryAccess, ret Location)
	I64Load32S(addr Location, access MemoryAccess, ret Location)
	I64AtomicLoad(addr Location, access MemoryAccess, ret Location)
	I64AtomicLoad8U(addr Location, access MemoryAccess, ret Location)
	I64AtomicLoad16U(addr Location, access MemoryAccess, ret Location)
	I64AtomicLoad32U(addr Location, access MemoryAccess, ret Location)
	I64Save(value Location, access MemoryAccess, addr Location)
	I64Save8(value Location, access MemoryAccess, addr Location)
	I64Save16(value Location, access MemoryAccess, addr Location)
	I64Save32(value Location, access MemoryAccess, addr Location)
	I64AtomicSave(value Location, access MemoryAccess, addr Location)
	I64AtomicSave8(value Location, access MemoryAccess, addr Location)
	I64AtomicSave16(value Location, access MemoryAccess, addr Location)
	I64AtomicSave32(value Location, access MemoryAccess, addr Location)
	I64AtomicAdd(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicAdd8U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicAdd16U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicAdd32U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicSub(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicSub8U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicSub16U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicSub32U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicAnd(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicAnd8U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicAnd16U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicAnd32U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicOr(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicOr8U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicOr16U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicOr32U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXor(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXor8U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXor16U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXor32U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXchg(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXchg8U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXchg16U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicXchg32U(value, addr Location, access MemoryAccess, ret Location)
	I64AtomicCmpxchg(newValue, cmp, addr Location, access MemoryAccess, ret Location)
	I64AtomicCmpxchg8U(newValue, cmp, addr Location, access MemoryAccess, ret Location)
	I64AtomicCmpxchg16U(newValue, cmp, addr Location, access MemoryAccess, ret Location)
	I64AtomicCmpxchg32U(newValue, cmp, addr Location, access MemoryAccess, ret Location)

	// Float memory.

	F32Load(addr Location, access MemoryAccess, ret Location)
	F32Save(value Location, access MemoryAccess, addr Location, canonicalize bool)
	F64Load(addr Location, access MemoryAccess, ret Location)
	F64Save(value Location, access MemoryAccess, addr Location, canonicalize bool)

	// Conversions. ConvertFxxIyy converts the integer loc into a float; ConvertIyyFxx converts the
	// float loc into an integer.

	ConvertF64I64(loc Location, signed bool, ret Location)
	ConvertF64I32(loc Location, signed bool, ret Location)
	ConvertF32I64(loc Location, signed bool, ret Location)
	ConvertF32I32(loc Location, signed bool, ret Location)
	ConvertI64F64(loc, ret Location, signed, sat bool)
	ConvertI32F64(loc, ret Location, signed, sat bool)
	ConvertI64F32(loc, ret Location, signed, sat bool)
	ConvertI32F32(loc, ret Location, signed, sat bool)
	// ConvertF64F32 promotes the f32 loc.
	ConvertF64F32(loc, ret Location)
	// ConvertF32F64 demotes the f64 loc.
	ConvertF32F64(loc, ret Location)

	// f64 arithmetic.

	F64Neg(loc, ret Location)
	F64Abs(loc, ret Location)
	EmitI64Copysign(tmp1, tmp2 asm.Register)
	F64Sqrt(loc, ret Location)
	F64Trunc(loc, ret Location)
	F64Ceil(loc, ret Location)
	F64Floor(loc, ret Location)
	F64Nearest(loc, ret Location)
	F64CmpGe(a, b, ret Location)
	F64CmpGt(a, b, ret Location)
	F64CmpLe(a, b, ret Location)
	F64CmpLt(a, b, ret Location)
	F64CmpNe(a, b, ret Location)
	F64CmpEq(a, b, ret Location)
	F64Min(a, b, ret Location)
	F64Max(a, b, ret Location)
	F64Add(a, b, ret Location)
	F64Sub(a, b, ret Location)
	F64Mul(a, b, ret Location)
	F64Div(a, b, ret Location)

	// f32 arithmetic.

	F32Neg(loc, ret Location)
	F32Abs(loc, ret Location)
	EmitI32Copysign(tmp1, tmp2 asm.Register)
	F32Sqrt(loc, ret Location)
	F32Trunc(loc, ret Location)
	F32Ceil(loc, ret Location)
	F32Floor(loc, ret Location)
	F32Nearest(loc, ret Location)
	F32CmpGe(a, b, ret Location)
	F32CmpGt(a, b, ret Location)
	F32CmpLe(a, b, ret Location)
	F32CmpLt(a, b, ret Location)
	F32CmpNe(a, b, ret Location)
	F32CmpEq(a, b, ret Location)
	F32Min(a, b, ret Location)
	F32Max(a, b, ret Location)
	F32Add(a, b, ret Location)
	F32Sub(a, b, ret Location)
	F32Mul(a, b, ret Location)
	F32Div(a, b, ret Location)

	// Finalization.

	// AssemblerFinalize resolves labels and returns a copy of the code.
	AssemblerFinalize() ([]byte, error)
	// FinalizeFunction checks that no temporary register outlives the function body.
	FinalizeFunction()
	Offset() int
	// Reset prepares the Machine for the next function.
	Reset()
}
