package compiler

import (
	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

type immediate byte

const (
	immediateNone immediate = iota
	immediateConst
	immediateIndex
	immediateMemarg
)

type location = singlepass.Location

// lowerFunc emits the code of an instruction whose operands were popped into args, bottom first, and
// whose result, if any, goes to ret.
type lowerFunc func(l *lowerer, ins *Instruction, args []location, ret location)

// instructionDef describes an instruction of the text format.
type instructionDef struct {
	imm    immediate
	params []wasm.ValueType
	// result is zero for instructions without result.
	result wasm.ValueType
	// width is the natural access size in bytes of memory instructions.
	width  uint32
	atomic bool
	// op is the Machine operation the instruction needs, checked with Machine.Supports before lowering.
	op    singlepass.Operation
	lower lowerFunc
	// special is set for the instructions whose stack effect depends on their immediate or operands.
	special func(l *lowerer, ins *Instruction) error
}

const (
	i32 = wasm.ValueTypeI32
	i64 = wasm.ValueTypeI64
	f32 = wasm.ValueTypeF32
	f64 = wasm.ValueTypeF64
)

func sizeOf(t wasm.ValueType) singlepass.Size {
	if t == i64 || t == f64 {
		return singlepass.S64
	}
	return singlepass.S32
}

func binary(t, result wasm.ValueType, op singlepass.Operation, f func(m singlepass.Machine, a, b, ret location)) *instructionDef {
	return &instructionDef{params: []wasm.ValueType{t, t}, result: result, op: op, lower: func(l *lowerer, _ *Instruction, args []location, ret location) {
		f(l.m, args[0], args[1], ret)
	}}
}

func unary(t, result wasm.ValueType, op singlepass.Operation, f func(m singlepass.Machine, loc, ret location)) *instructionDef {
	return &instructionDef{params: []wasm.ValueType{t}, result: result, op: op, lower: func(l *lowerer, _ *Instruction, args []location, ret location) {
		f(l.m, args[0], ret)
	}}
}

func divide(t wasm.ValueType, op singlepass.Operation, f func(m singlepass.Machine, a, b, ret location, divByZero asm.Label) int) *instructionDef {
	return &instructionDef{params: []wasm.ValueType{t, t}, result: t, op: op, lower: func(l *lowerer, _ *Instruction, args []location, ret location) {
		f(l.m, args[0], args[1], ret, l.trapLabel(singlepass.TrapCodeIntegerDivisionByZero))
	}}
}

func divideSigned(t wasm.ValueType, op singlepass.Operation, f func(m singlepass.Machine, a, b, ret location, divByZero, overflow asm.Label) int) *instructionDef {
	return &instructionDef{params: []wasm.ValueType{t, t}, result: t, op: op, lower: func(l *lowerer, _ *Instruction, args []location, ret location) {
		f(l.m, args[0], args[1], ret, l.trapLabel(singlepass.TrapCodeIntegerDivisionByZero), l.trapLabel(singlepass.TrapCodeIntegerOverflow))
	}}
}

func copysign(t wasm.ValueType, op singlepass.Operation, f func(m singlepass.Machine, tmp1, tmp2 asm.Register)) *instructionDef {
	return &instructionDef{params: []wasm.ValueType{t, t}, result: t, op: op, lower: func(l *lowerer, _ *Instruction, args []location, ret location) {
		sz := sizeOf(t)
		tmp1, tmp2 := l.mustAcquireTempGPR(), l.mustAcquireTempGPR()
		l.m.EmitRelaxedMov(sz, args[0], singlepass.GPR(tmp1))
		l.m.EmitRelaxedMov(sz, args[1], singlepass.GPR(tmp2))
		f(l.m, tmp1, tmp2)
		l.m.EmitRelaxedMov(sz, singlepass.GPR(tmp1), ret)
		l.m.ReleaseGPR(tmp2)
		l.m.ReleaseGPR(tmp1)
	}}
}

// move reinterprets or wraps the low sz bits of the operand.
func move(from, to wasm.ValueType, sz singlepass.Size) *instructionDef {
	return unary(from, to, "EmitRelaxedMov", func(m singlepass.Machine, loc, ret location) {
		m.EmitRelaxedMov(sz, loc, ret)
	})
}

func extend(from, to wasm.ValueType, szSrc singlepass.Size, signed bool) *instructionDef {
	if signed {
		return unary(from, to, "EmitRelaxedSignExtension", func(m singlepass.Machine, loc, ret location) {
			m.EmitRelaxedSignExtension(szSrc, loc, sizeOf(to), ret)
		})
	}
	return unary(from, to, "EmitRelaxedZeroExtension", func(m singlepass.Machine, loc, ret location) {
		m.EmitRelaxedZeroExtension(szSrc, loc, sizeOf(to), ret)
	})
}

func truncate(from, to wasm.ValueType, op singlepass.Operation, f func(m singlepass.Machine, loc, ret location, signed, sat bool), signed, sat bool) *instructionDef {
	return unary(from, to, op, func(m singlepass.Machine, loc, ret location) { f(m, loc, ret, signed, sat) })
}

func convert(from, to wasm.ValueType, op singlepass.Operation, f func(m singlepass.Machine, loc location, signed bool, ret location), signed bool) *instructionDef {
	return unary(from, to, op, func(m singlepass.Machine, loc, ret location) { f(m, loc, signed, ret) })
}

func load(t wasm.ValueType, width uint32, op singlepass.Operation, f func(m singlepass.Machine, addr location, access singlepass.MemoryAccess, ret location)) *instructionDef {
	return &instructionDef{imm: immediateMemarg, params: []wasm.ValueType{i32}, result: t, width: width, op: op,
		lower: func(l *lowerer, ins *Instruction, args []location, ret location) {
			f(l.m, args[0], l.memoryAccess(ins, false), ret)
		}}
}

func store(t wasm.ValueType, width uint32, op singlepass.Operation, f func(m singlepass.Machine, value location, access singlepass.MemoryAccess, addr location)) *instructionDef {
	return &instructionDef{imm: immediateMemarg, params: []wasm.ValueType{i32, t}, width: width, op: op,
		lower: func(l *lowerer, ins *Instruction, args []location, _ location) {
			f(l.m, args[1], l.memoryAccess(ins, false), args[0])
		}}
}

func floatStore(t wasm.ValueType, width uint32, op singlepass.Operation, f func(m singlepass.Machine, value location, access singlepass.MemoryAccess, addr location, canonicalize bool)) *instructionDef {
	return &instructionDef{imm: immediateMemarg, params: []wasm.ValueType{i32, t}, width: width, op: op,
		lower: func(l *lowerer, ins *Instruction, args []location, _ location) {
			f(l.m, args[1], l.memoryAccess(ins, false), args[0], l.canonicalizeNaNs())
		}}
}

func atomicLoad(t wasm.ValueType, width uint32, op singlepass.Operation, f func(m singlepass.Machine, addr location, access singlepass.MemoryAccess, ret location)) *instructionDef {
	return &instructionDef{imm: immediateMemarg, params: []wasm.ValueType{i32}, result: t, width: width, atomic: true, op: op,
		lower: func(l *lowerer, ins *Instruction, args []location, ret location) {
			f(l.m, args[0], l.memoryAccess(ins, true), ret)
		}}
}

func atomicStore(t wasm.ValueType, width uint32, op singlepass.Operation, f func(m singlepass.Machine, value location, access singlepass.MemoryAccess, addr location)) *instructionDef {
	return &instructionDef{imm: immediateMemarg, params: []wasm.ValueType{i32, t}, width: width, atomic: true, op: op,
		lower: func(l *lowerer, ins *Instruction, args []location, _ location) {
			f(l.m, args[1], l.memoryAccess(ins, true), args[0])
		}}
}

func atomicRMW(t wasm.ValueType, width uint32, op singlepass.Operation, f func(m singlepass.Machine, value, addr location, access singlepass.MemoryAccess, ret location)) *instructionDef {
	return &instructionDef{imm: immediateMemarg, params: []wasm.ValueType{i32, t}, result: t, width: width, atomic: true, op: op,
		lower: func(l *lowerer, ins *Instruction, args []location, ret location) {
			f(l.m, args[1], args[0], l.memoryAccess(ins, true), ret)
		}}
}

func atomicCmpxchg(t wasm.ValueType, width uint32, op singlepass.Operation, f func(m singlepass.Machine, newValue, cmp, addr location, access singlepass.MemoryAccess, ret location)) *instructionDef {
	return &instructionDef{imm: immediateMemarg, params: []wasm.ValueType{i32, t, t}, result: t, width: width, atomic: true, op: op,
		lower: func(l *lowerer, ins *Instruction, args []location, ret location) {
			f(l.m, args[2], args[1], args[0], l.memoryAccess(ins, true), ret)
		}}
}

func special(imm immediate, result wasm.ValueType, op singlepass.Operation, f func(l *lowerer, ins *Instruction) error) *instructionDef {
	return &instructionDef{imm: imm, result: result, op: op, special: f}
}

type machine = singlepass.Machine

// instructionSet is every instruction the text format knows, by name.
var instructionSet = map[string]*instructionDef{
	"nop": {},
	"unreachable": {op: "EmitIllegalOp", lower: func(l *lowerer, _ *Instruction, _ []location, _ location) {
		offset := l.m.MarkInstructionWithTrapCode(singlepass.TrapCodeUnreachableCodeReached)
		l.m.EmitIllegalOp()
		l.m.MarkInstructionAddressEnd(offset)
	}},
	"drop":         special(immediateNone, 0, "", (*lowerer).drop),
	"select":       special(immediateNone, 0, "EmitRelaxedCmp", (*lowerer).selectValue),
	"call":         special(immediateIndex, 0, "MoveWithReloc", (*lowerer).call),
	"local.get":    special(immediateIndex, 0, "EmitRelaxedMov", (*lowerer).localGet),
	"local.set":    special(immediateIndex, 0, "EmitRelaxedMov", (*lowerer).localSet),
	"local.tee":    special(immediateIndex, 0, "EmitRelaxedMov", (*lowerer).localTee),
	"global.get":   special(immediateIndex, 0, "EmitRelaxedMov", (*lowerer).globalGet),
	"global.set":   special(immediateIndex, 0, "EmitRelaxedMov", (*lowerer).globalSet),
	"i32.const":    special(immediateConst, i32, "", (*lowerer).constant),
	"i64.const":    special(immediateConst, i64, "", (*lowerer).constant),
	"f32.const":    special(immediateConst, f32, "", (*lowerer).constant),
	"f64.const":    special(immediateConst, f64, "", (*lowerer).constant),
	"atomic.fence": {op: "EmitMemoryFence", lower: func(l *lowerer, _ *Instruction, _ []location, _ location) { l.m.EmitMemoryFence() }},

	"i32.add":    binary(i32, i32, "EmitBinopAdd32", machine.EmitBinopAdd32),
	"i32.sub":    binary(i32, i32, "EmitBinopSub32", machine.EmitBinopSub32),
	"i32.mul":    binary(i32, i32, "EmitBinopMul32", machine.EmitBinopMul32),
	"i32.div_u":  divide(i32, "EmitBinopUdiv32", machine.EmitBinopUdiv32),
	"i32.div_s":  divideSigned(i32, "EmitBinopSdiv32", machine.EmitBinopSdiv32),
	"i32.rem_u":  divide(i32, "EmitBinopUrem32", machine.EmitBinopUrem32),
	"i32.rem_s":  divide(i32, "EmitBinopSrem32", machine.EmitBinopSrem32),
	"i32.and":    binary(i32, i32, "EmitBinopAnd32", machine.EmitBinopAnd32),
	"i32.or":     binary(i32, i32, "EmitBinopOr32", machine.EmitBinopOr32),
	"i32.xor":    binary(i32, i32, "EmitBinopXor32", machine.EmitBinopXor32),
	"i32.shl":    binary(i32, i32, "I32Shl", machine.I32Shl),
	"i32.shr_u":  binary(i32, i32, "I32Shr", machine.I32Shr),
	"i32.shr_s":  binary(i32, i32, "I32Sar", machine.I32Sar),
	"i32.rotl":   binary(i32, i32, "I32Rol", machine.I32Rol),
	"i32.rotr":   binary(i32, i32, "I32Ror", machine.I32Ror),
	"i32.eq":     binary(i32, i32, "I32CmpEq", machine.I32CmpEq),
	"i32.ne":     binary(i32, i32, "I32CmpNe", machine.I32CmpNe),
	"i32.lt_s":   binary(i32, i32, "I32CmpLtS", machine.I32CmpLtS),
	"i32.lt_u":   binary(i32, i32, "I32CmpLtU", machine.I32CmpLtU),
	"i32.gt_s":   binary(i32, i32, "I32CmpGtS", machine.I32CmpGtS),
	"i32.gt_u":   binary(i32, i32, "I32CmpGtU", machine.I32CmpGtU),
	"i32.le_s":   binary(i32, i32, "I32CmpLeS", machine.I32CmpLeS),
	"i32.le_u":   binary(i32, i32, "I32CmpLeU", machine.I32CmpLeU),
	"i32.ge_s":   binary(i32, i32, "I32CmpGeS", machine.I32CmpGeS),
	"i32.ge_u":   binary(i32, i32, "I32CmpGeU", machine.I32CmpGeU),
	"i32.clz":    unary(i32, i32, "I32Clz", machine.I32Clz),
	"i32.ctz":    unary(i32, i32, "I32Ctz", machine.I32Ctz),
	"i32.popcnt": unary(i32, i32, "I32Popcnt", machine.I32Popcnt),
	"i32.eqz": unary(i32, i32, "I32CmpEq", func(m singlepass.Machine, loc, ret location) {
		m.I32CmpEq(loc, singlepass.Imm32(0), ret)
	}),

	"i64.add":    binary(i64, i64, "EmitBinopAdd64", machine.EmitBinopAdd64),
	"i64.sub":    binary(i64, i64, "EmitBinopSub64", machine.EmitBinopSub64),
	"i64.mul":    binary(i64, i64, "EmitBinopMul64", machine.EmitBinopMul64),
	"i64.div_u":  divide(i64, "EmitBinopUdiv64", machine.EmitBinopUdiv64),
	"i64.div_s":  divideSigned(i64, "EmitBinopSdiv64", machine.EmitBinopSdiv64),
	"i64.rem_u":  divide(i64, "EmitBinopUrem64", machine.EmitBinopUrem64),
	"i64.rem_s":  divide(i64, "EmitBinopSrem64", machine.EmitBinopSrem64),
	"i64.and":    binary(i64, i64, "EmitBinopAnd64", machine.EmitBinopAnd64),
	"i64.or":     binary(i64, i64, "EmitBinopOr64", machine.EmitBinopOr64),
	"i64.xor":    binary(i64, i64, "EmitBinopXor64", machine.EmitBinopXor64),
	"i64.shl":    binary(i64, i64, "I64Shl", machine.I64Shl),
	"i64.shr_u":  binary(i64, i64, "I64Shr", machine.I64Shr),
	"i64.shr_s":  binary(i64, i64, "I64Sar", machine.I64Sar),
	"i64.rotl":   binary(i64, i64, "I64Rol", machine.I64Rol),
	"i64.rotr":   binary(i64, i64, "I64Ror", machine.I64Ror),
	"i64.eq":     binary(i64, i32, "I64CmpEq", machine.I64CmpEq),
	"i64.ne":     binary(i64, i32, "I64CmpNe", machine.I64CmpNe),
	"i64.lt_s":   binary(i64, i32, "I64CmpLtS", machine.I64CmpLtS),
	"i64.lt_u":   binary(i64, i32, "I64CmpLtU", machine.I64CmpLtU),
	"i64.gt_s":   binary(i64, i32, "I64CmpGtS", machine.I64CmpGtS),
	"i64.gt_u":   binary(i64, i32, "I64CmpGtU", machine.I64CmpGtU),
	"i64.le_s":   binary(i64, i32, "I64CmpLeS", machine.I64CmpLeS),
	"i64.le_u":   binary(i64, i32, "I64CmpLeU", machine.I64CmpLeU),
	"i64.ge_s":   binary(i64, i32, "I64CmpGeS", machine.I64CmpGeS),
	"i64.ge_u":   binary(i64, i32, "I64CmpGeU", machine.I64CmpGeU),
	"i64.clz":    unary(i64, i64, "I64Clz", machine.I64Clz),
	"i64.ctz":    unary(i64, i64, "I64Ctz", machine.I64Ctz),
	"i64.popcnt": unary(i64, i64, "I64Popcnt", machine.I64Popcnt),
	"i64.eqz": unary(i64, i32, "I64CmpEq", func(m singlepass.Machine, loc, ret location) {
		m.I64CmpEq(loc, singlepass.Imm64(0), ret)
	}),

	"f32.add":      binary(f32, f32, "F32Add", machine.F32Add),
	"f32.sub":      binary(f32, f32, "F32Sub", machine.F32Sub),
	"f32.mul":      binary(f32, f32, "F32Mul", machine.F32Mul),
	"f32.div":      binary(f32, f32, "F32Div", machine.F32Div),
	"f32.min":      binary(f32, f32, "F32Min", machine.F32Min),
	"f32.max":      binary(f32, f32, "F32Max", machine.F32Max),
	"f32.eq":       binary(f32, i32, "F32CmpEq", machine.F32CmpEq),
	"f32.ne":       binary(f32, i32, "F32CmpNe", machine.F32CmpNe),
	"f32.lt":       binary(f32, i32, "F32CmpLt", machine.F32CmpLt),
	"f32.gt":       binary(f32, i32, "F32CmpGt", machine.F32CmpGt),
	"f32.le":       binary(f32, i32, "F32CmpLe", machine.F32CmpLe),
	"f32.ge":       binary(f32, i32, "F32CmpGe", machine.F32CmpGe),
	"f32.abs":      unary(f32, f32, "F32Abs", machine.F32Abs),
	"f32.neg":      unary(f32, f32, "F32Neg", machine.F32Neg),
	"f32.sqrt":     unary(f32, f32, "F32Sqrt", machine.F32Sqrt),
	"f32.ceil":     unary(f32, f32, "F32Ceil", machine.F32Ceil),
	"f32.floor":    unary(f32, f32, "F32Floor", machine.F32Floor),
	"f32.trunc":    unary(f32, f32, "F32Trunc", machine.F32Trunc),
	"f32.nearest":  unary(f32, f32, "F32Nearest", machine.F32Nearest),
	"f32.copysign": copysign(f32, "EmitI32Copysign", machine.EmitI32Copysign),

	"f64.add":      binary(f64, f64, "F64Add", machine.F64Add),
	"f64.sub":      binary(f64, f64, "F64Sub", machine.F64Sub),
	"f64.mul":      binary(f64, f64, "F64Mul", machine.F64Mul),
	"f64.div":      binary(f64, f64, "F64Div", machine.F64Div),
	"f64.min":      binary(f64, f64, "F64Min", machine.F64Min),
	"f64.max":      binary(f64, f64, "F64Max", machine.F64Max),
	"f64.eq":       binary(f64, i32, "F64CmpEq", machine.F64CmpEq),
	"f64.ne":       binary(f64, i32, "F64CmpNe", machine.F64CmpNe),
	"f64.lt":       binary(f64, i32, "F64CmpLt", machine.F64CmpLt),
	"f64.gt":       binary(f64, i32, "F64CmpGt", machine.F64CmpGt),
	"f64.le":       binary(f64, i32, "F64CmpLe", machine.F64CmpLe),
	"f64.ge":       binary(f64, i32, "F64CmpGe", machine.F64CmpGe),
	"f64.abs":      unary(f64, f64, "F64Abs", machine.F64Abs),
	"f64.neg":      unary(f64, f64, "F64Neg", machine.F64Neg),
	"f64.sqrt":     unary(f64, f64, "F64Sqrt", machine.F64Sqrt),
	"f64.ceil":     unary(f64, f64, "F64Ceil", machine.F64Ceil),
	"f64.floor":    unary(f64, f64, "F64Floor", machine.F64Floor),
	"f64.trunc":    unary(f64, f64, "F64Trunc", machine.F64Trunc),
	"f64.nearest":  unary(f64, f64, "F64Nearest", machine.F64Nearest),
	"f64.copysign": copysign(f64, "EmitI64Copysign", machine.EmitI64Copysign),

	"i32.wrap_i64":        move(i64, i32, singlepass.S32),
	"i64.extend_i32_s":    extend(i32, i64, singlepass.S32, true),
	"i64.extend_i32_u":    extend(i32, i64, singlepass.S32, false),
	"i32.extend8_s":       extend(i32, i32, singlepass.S8, true),
	"i32.extend16_s":      extend(i32, i32, singlepass.S16, true),
	"i64.extend8_s":       extend(i64, i64, singlepass.S8, true),
	"i64.extend16_s":      extend(i64, i64, singlepass.S16, true),
	"i64.extend32_s":      extend(i64, i64, singlepass.S32, true),
	"i32.reinterpret_f32": move(f32, i32, singlepass.S32),
	"i64.reinterpret_f64": move(f64, i64, singlepass.S64),
	"f32.reinterpret_i32": move(i32, f32, singlepass.S32),
	"f64.reinterpret_i64": move(i64, f64, singlepass.S64),
	"f32.demote_f64":      unary(f64, f32, "ConvertF32F64", machine.ConvertF32F64),
	"f64.promote_f32":     unary(f32, f64, "ConvertF64F32", machine.ConvertF64F32),

	"i32.trunc_f32_s":     truncate(f32, i32, "ConvertI32F32", machine.ConvertI32F32, true, false),
	"i32.trunc_f32_u":     truncate(f32, i32, "ConvertI32F32", machine.ConvertI32F32, false, false),
	"i32.trunc_f64_s":     truncate(f64, i32, "ConvertI32F64", machine.ConvertI32F64, true, false),
	"i32.trunc_f64_u":     truncate(f64, i32, "ConvertI32F64", machine.ConvertI32F64, false, false),
	"i64.trunc_f32_s":     truncate(f32, i64, "ConvertI64F32", machine.ConvertI64F32, true, false),
	"i64.trunc_f32_u":     truncate(f32, i64, "ConvertI64F32", machine.ConvertI64F32, false, false),
	"i64.trunc_f64_s":     truncate(f64, i64, "ConvertI64F64", machine.ConvertI64F64, true, false),
	"i64.trunc_f64_u":     truncate(f64, i64, "ConvertI64F64", machine.ConvertI64F64, false, false),
	"i32.trunc_sat_f32_s": truncate(f32, i32, "ConvertI32F32", machine.ConvertI32F32, true, true),
	"i32.trunc_sat_f32_u": truncate(f32, i32, "ConvertI32F32", machine.ConvertI32F32, false, true),
	"i32.trunc_sat_f64_s": truncate(f64, i32, "ConvertI32F64", machine.ConvertI32F64, true, true),
	"i32.trunc_sat_f64_u": truncate(f64, i32, "ConvertI32F64", machine.ConvertI32F64, false, true),
	"i64.trunc_sat_f32_s": truncate(f32, i64, "ConvertI64F32", machine.ConvertI64F32, true, true),
	"i64.trunc_sat_f32_u": truncate(f32, i64, "ConvertI64F32", machine.ConvertI64F32, false, true),
	"i64.trunc_sat_f64_s": truncate(f64, i64, "ConvertI64F64", machine.ConvertI64F64, true, true),
	"i64.trunc_sat_f64_u": truncate(f64, i64, "ConvertI64F64", machine.ConvertI64F64, false, true),
	"f32.convert_i32_s":   convert(i32, f32, "ConvertF32I32", machine.ConvertF32I32, true),
	"f32.convert_i32_u":   convert(i32, f32, "ConvertF32I32", machine.ConvertF32I32, false),
	"f32.convert_i64_s":   convert(i64, f32, "ConvertF32I64", machine.ConvertF32I64, true),
	"f32.convert_i64_u":   convert(i64, f32, "ConvertF32I64", machine.ConvertF32I64, false),
	"f64.convert_i32_s":   convert(i32, f64, "ConvertF64I32", machine.ConvertF64I32, true),
	"f64.convert_i32_u":   convert(i32, f64, "ConvertF64I32", machine.ConvertF64I32, false),
	"f64.convert_i64_s":   convert(i64, f64, "ConvertF64I64", machine.ConvertF64I64, true),
	"f64.convert_i64_u":   convert(i64, f64, "ConvertF64I64", machine.ConvertF64I64, false),

	"i32.load":     load(i32, 4, "I32Load", machine.I32Load),
	"i32.load8_u":  load(i32, 1, "I32Load8U", machine.I32Load8U),
	"i32.load8_s":  load(i32, 1, "I32Load8S", machine.I32Load8S),
	"i32.load16_u": load(i32, 2, "I32Load16U", machine.I32Load16U),
	"i32.load16_s": load(i32, 2, "I32Load16S", machine.I32Load16S),
	"i64.load":     load(i64, 8, "I64Load", machine.I64Load),
	"i64.load8_u":  load(i64, 1, "I64Load8U", machine.I64Load8U),
	"i64.load8_s":  load(i64, 1, "I64Load8S", machine.I64Load8S),
	"i64.load16_u": load(i64, 2, "I64Load16U", machine.I64Load16U),
	"i64.load16_s": load(i64, 2, "I64Load16S", machine.I64Load16S),
	"i64.load32_u": load(i64, 4, "I64Load32U", machine.I64Load32U),
	"i64.load32_s": load(i64, 4, "I64Load32S", machine.I64Load32S),
	"f32.load":     load(f32, 4, "F32Load", machine.F32Load),
	"f64.load":     load(f64, 8, "F64Load", machine.F64Load),
	"i32.store":    store(i32, 4, "I32Save", machine.I32Save),
	"i32.store8":   store(i32, 1, "I32Save8", machine.I32Save8),
	"i32.store16":  store(i32, 2, "I32Save16", machine.I32Save16),
	"i64.store":    store(i64, 8, "I64Save", machine.I64Save),
	"i64.store8":   store(i64, 1, "I64Save8", machine.I64Save8),
	"i64.store16":  store(i64, 2, "I64Save16", machine.I64Save16),
	"i64.store32":  store(i64, 4, "I64Save32", machine.I64Save32),
	"f32.store":    floatStore(f32, 4, "F32Save", machine.F32Save),
	"f64.store":    floatStore(f64, 8, "F64Save", machine.F64Save),

	"i32.atomic.load":     atomicLoad(i32, 4, "I32AtomicLoad", machine.I32AtomicLoad),
	"i32.atomic.load8_u":  atomicLoad(i32, 1, "I32AtomicLoad8U", machine.I32AtomicLoad8U),
	"i32.atomic.load16_u": atomicLoad(i32, 2, "I32AtomicLoad16U", machine.I32AtomicLoad16U),
	"i64.atomic.load":     atomicLoad(i64, 8, "I64AtomicLoad", machine.I64AtomicLoad),
	"i64.atomic.load8_u":  atomicLoad(i64, 1, "I64AtomicLoad8U", machine.I64AtomicLoad8U),
	"i64.atomic.load16_u": atomicLoad(i64, 2, "I64AtomicLoad16U", machine.I64AtomicLoad16U),
	"i64.atomic.load32_u": atomicLoad(i64, 4, "I64AtomicLoad32U", machine.I64AtomicLoad32U),
	"i32.atomic.store":    atomicStore(i32, 4, "I32AtomicSave", machine.I32AtomicSave),
	"i32.atomic.store8":   atomicStore(i32, 1, "I32AtomicSave8", machine.I32AtomicSave8),
	"i32.atomic.store16":  atomicStore(i32, 2, "I32AtomicSave16", machine.I32AtomicSave16),
	"i64.atomic.store":    atomicStore(i64, 8, "I64AtomicSave", machine.I64AtomicSave),
	"i64.atomic.store8":   atomicStore(i64, 1, "I64AtomicSave8", machine.I64AtomicSave8),
	"i64.atomic.store16":  atomicStore(i64, 2, "I64AtomicSave16", machine.I64AtomicSave16),
	"i64.atomic.store32":  atomicStore(i64, 4, "I64AtomicSave32", machine.I64AtomicSave32),

	"i32.atomic.rmw.add":         atomicRMW(i32, 4, "I32AtomicAdd", machine.I32AtomicAdd),
	"i32.atomic.rmw8.add_u":      atomicRMW(i32, 1, "I32AtomicAdd8U", machine.I32AtomicAdd8U),
	"i32.atomic.rmw16.add_u":     atomicRMW(i32, 2, "I32AtomicAdd16U", machine.I32AtomicAdd16U),
	"i32.atomic.rmw.sub":         atomicRMW(i32, 4, "I32AtomicSub", machine.I32AtomicSub),
	"i32.atomic.rmw8.sub_u":      atomicRMW(i32, 1, "I32AtomicSub8U", machine.I32AtomicSub8U),
	"i32.atomic.rmw16.sub_u":     atomicRMW(i32, 2, "I32AtomicSub16U", machine.I32AtomicSub16U),
	"i32.atomic.rmw.and":         atomicRMW(i32, 4, "I32AtomicAnd", machine.I32AtomicAnd),
	"i32.atomic.rmw8.and_u":      atomicRMW(i32, 1, "I32AtomicAnd8U", machine.I32AtomicAnd8U),
	"i32.atomic.rmw16.and_u":     atomicRMW(i32, 2, "I32AtomicAnd16U", machine.I32AtomicAnd16U),
	"i32.atomic.rmw.or":          atomicRMW(i32, 4, "I32AtomicOr", machine.I32AtomicOr),
	"i32.atomic.rmw8.or_u":       atomicRMW(i32, 1, "I32AtomicOr8U", machine.I32AtomicOr8U),
	"i32.atomic.rmw16.or_u":      atomicRMW(i32, 2, "I32AtomicOr16U", machine.I32AtomicOr16U),
	"i32.atomic.rmw.xor":         atomicRMW(i32, 4, "I32AtomicXor", machine.I32AtomicXor),
	"i32.atomic.rmw8.xor_u":      atomicRMW(i32, 1, "I32AtomicXor8U", machine.I32AtomicXor8U),
	"i32.atomic.rmw16.xor_u":     atomicRMW(i32, 2, "I32AtomicXor16U", machine.I32AtomicXor16U),
	"i32.atomic.rmw.xchg":        atomicRMW(i32, 4, "I32AtomicXchg", machine.I32AtomicXchg),
	"i32.atomic.rmw8.xchg_u":     atomicRMW(i32, 1, "I32AtomicXchg8U", machine.I32AtomicXchg8U),
	"i32.atomic.rmw16.xchg_u":    atomicRMW(i32, 2, "I32AtomicXchg16U", machine.I32AtomicXchg16U),
	"i32.atomic.rmw.cmpxchg":     atomicCmpxchg(i32, 4, "I32AtomicCmpxchg", machine.I32AtomicCmpxchg),
	"i32.atomic.rmw8.cmpxchg_u":  atomicCmpxchg(i32, 1, "I32AtomicCmpxchg8U", machine.I32AtomicCmpxchg8U),
	"i32.atomic.rmw16.cmpxchg_u": atomicCmpxchg(i32, 2, "I32AtomicCmpxchg16U", machine.I32AtomicCmpxchg16U),

	"i64.atomic.rmw.add":         atomicRMW(i64, 8, "I64AtomicAdd", machine.I64AtomicAdd),
	"i64.atomic.rmw8.add_u":      atomicRMW(i64, 1, "I64AtomicAdd8U", machine.I64AtomicAdd8U),
	"i64.atomic.rmw16.add_u":     atomicRMW(i64, 2, "I64AtomicAdd16U", machine.I64AtomicAdd16U),
	"i64.atomic.rmw32.add_u":     atomicRMW(i64, 4, "I64AtomicAdd32U", machine.I64AtomicAdd32U),
	"i64.atomic.rmw.sub":         atomicRMW(i64, 8, "I64AtomicSub", machine.I64AtomicSub),
	"i64.atomic.rmw8.sub_u":      atomicRMW(i64, 1, "I64AtomicSub8U", machine.I64AtomicSub8U),
	"i64.atomic.rmw16.sub_u":     atomicRMW(i64, 2, "I64AtomicSub16U", machine.I64AtomicSub16U),
	"i64.atomic.rmw32.sub_u":     atomicRMW(i64, 4, "I64AtomicSub32U", machine.I64AtomicSub32U),
	"i64.atomic.rmw.and":         atomicRMW(i64, 8, "I64AtomicAnd", machine.I64AtomicAnd),
	"i64.atomic.rmw8.and_u":      atomicRMW(i64, 1, "I64AtomicAnd8U", machine.I64AtomicAnd8U),
	"i64.atomic.rmw16.and_u":     atomicRMW(i64, 2, "I64AtomicAnd16U", machine.I64AtomicAnd16U),
	"i64.atomic.rmw32.and_u":     atomicRMW(i64, 4, "I64AtomicAnd32U", machine.I64AtomicAnd32U),
	"i64.atomic.rmw.or":          atomicRMW(i64, 8, "I64AtomicOr", machine.I64AtomicOr),
	"i64.atomic.rmw8.or_u":       atomicRMW(i64, 1, "I64AtomicOr8U", machine.I64AtomicOr8U),
	"i64.atomic.rmw16.or_u":      atomicRMW(i64, 2, "I64AtomicOr16U", machine.I64AtomicOr16U),
	"i64.atomic.rmw32.or_u":      atomicRMW(i64, 4, "I64AtomicOr32U", machine.I64AtomicOr32U),
	"i64.atomic.rmw.xor":         atomicRMW(i64, 8, "I64AtomicXor", machine.I64AtomicXor),
	"i64.atomic.rmw8.xor_u":      atomicRMW(i64, 1, "I64AtomicXor8U", machine.I64AtomicXor8U),
	"i64.atomic.rmw16.xor_u":     atomicRMW(i64, 2, "I64AtomicXor16U", machine.I64AtomicXor16U),
	"i64.atomic.rmw32.xor_u":     atomicRMW(i64, 4, "I64AtomicXor32U", machine.I64AtomicXor32U),
	"i64.atomic.rmw.xchg":        atomicRMW(i64, 8, "I64AtomicXchg", machine.I64AtomicXchg),
	"i64.atomic.rmw8.xchg_u":     atomicRMW(i64, 1, "I64AtomicXchg8U", machine.I64AtomicXchg8U),
	"i64.atomic.rmw16.xchg_u":    atomicRMW(i64, 2, "I64AtomicXchg16U", machine.I64AtomicXchg16U),
	"i64.atomic.rmw32.xchg_u":    atomicRMW(i64, 4, "I64AtomicXchg32U", machine.I64AtomicXchg32U),
	"i64.atomic.rmw.cmpxchg":     atomicCmpxchg(i64, 8, "I64AtomicCmpxchg", machine.I64AtomicCmpxchg),
	"i64.atomic.rmw8.cmpxchg_u":  atomicCmpxchg(i64, 1, "I64AtomicCmpxchg8U", machine.I64AtomicCmpxchg8U),
	"i64.atomic.rmw16.cmpxchg_u": atomicCmpxchg(i64, 2, "I64AtomicCmpxchg16U", machine.I64AtomicCmpxchg16U),
	"i64.atomic.rmw32.cmpxchg_u": atomicCmpxchg(i64, 4, "I64AtomicCmpxchg32U", machine.I64AtomicCmpxchg32U),
}
