package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
	"github.com/tetratelabs/singlepass/internal/config"
	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

var (
	// ErrTypeMismatch is returned when the value stack does not hold what an instruction consumes.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrNoMemory is returned for memory instructions in a module without memory.
	ErrNoMemory = errors.New("module has no memory")
	// ErrIndexOutOfRange is returned for local, global and call immediates without target.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// Value registers. x0-x7 are left to the Machine's temporaries and to the call sequence, v0-v7 to its
// vector temporaries.
var (
	valueGPRs = []asm.Register{
		arm64.RegR8, arm64.RegR9, arm64.RegR10, arm64.RegR11, arm64.RegR12, arm64.RegR13, arm64.RegR14, arm64.RegR15,
	}
	valueSIMDs = []asm.Register{
		arm64.RegV8, arm64.RegV9, arm64.RegV10, arm64.RegV11, arm64.RegV12,
	}
)

// stackValue is one entry of the value stack.
type stackValue struct {
	loc location
	typ wasm.ValueType
}

// CompiledFunction is the output of lowering one function body.
type CompiledFunction struct {
	Name        string
	Body        []byte
	Relocations []singlepass.Relocation
	Traps       []singlepass.TrapInformation
	AddressMap  []singlepass.InstructionAddressMap
}

// lowerer drives a Machine through one function body. Values live in registers while some are free and
// in 16-byte stack slots below the locals otherwise.
type lowerer struct {
	m       singlepass.Machine
	cfg     config.Compiler
	cc      singlepass.CallingConvention
	mod     *Module
	offsets singlepass.VMContextOffsets
	fn      *Function

	// locals holds the types of the parameters followed by the declared locals.
	locals    []wasm.ValueType
	saved     []location
	savedSize int

	stack []stackValue
	inUse map[asm.Register]bool

	// frameSize is the distance between the frame base and sp between two instructions.
	frameSize int32
	// freeSlots are the frame base offsets of spill slots ready for reuse.
	freeSlots []int32

	relocations []singlepass.Relocation
	trapLabels  map[singlepass.TrapCode]asm.Label
	trapOrder   []singlepass.TrapCode
}

// lowerFunction generates the code of the index-th defined function of mod with m, which must be fresh.
func lowerFunction(m singlepass.Machine, cfg config.Compiler, cc singlepass.CallingConvention, mod *Module, index int) (cf *CompiledFunction, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("code generation failed: %w", e)
			} else {
				err = fmt.Errorf("code generation failed: %v", r)
			}
		}
	}()

	fn := mod.Functions[index]
	l := &lowerer{
		m:          m,
		cfg:        cfg,
		cc:         cc,
		mod:        mod,
		offsets:    mod.VMContextOffsets(),
		fn:         fn,
		inUse:      map[asm.Register]bool{},
		trapLabels: map[singlepass.TrapCode]asm.Label{},
	}
	l.locals = append(append(l.locals, fn.Type.Params...), fn.Locals...)

	l.emitPrologue()
	for i := range fn.Body {
		ins := &fn.Body[i]
		m.SetSourceLocation(uint32(i))
		if err = l.lowerInstruction(ins); err != nil {
			return nil, fmt.Errorf("%s at body[%d]: %w", ins, i, err)
		}
	}
	m.SetSourceLocation(uint32(len(fn.Body)))
	if err = l.emitEpilogue(); err != nil {
		return nil, err
	}
	l.emitTrapStubs()

	m.FinalizeFunction()
	body, err := m.AssemblerFinalize()
	if err != nil {
		return nil, err
	}
	return &CompiledFunction{
		Name:        fn.Name,
		Body:        body,
		Relocations: l.relocations,
		Traps:       m.CollectTrapInformation(),
		AddressMap:  m.InstructionsAddressMap(),
	}, nil
}

func (l *lowerer) lowerInstruction(ins *Instruction) error {
	def, ok := instructionSet[ins.Op]
	if !ok {
		return fmt.Errorf("unknown instruction %q", ins.Op)
	}
	if def.op != "" && !l.m.Supports(def.op) {
		return &singlepass.UnsupportedOperationError{Operation: def.op}
	}
	if def.special != nil {
		return def.special(l, ins)
	}
	if def.width != 0 && l.mod.Memory == nil {
		return ErrNoMemory
	}

	args, err := l.popTyped(def.params)
	if err != nil {
		return err
	}
	var ret location
	if def.result != 0 {
		ret = l.allocate(def.result)
	}
	if def.lower != nil {
		def.lower(l, ins, args, ret)
	}
	for _, arg := range args {
		l.release(arg)
	}
	if def.result != 0 {
		l.push(ret, def.result)
	}
	return nil
}

// emitPrologue saves the callee-saved registers used for locals and the VM context, then moves the
// parameters into their local slots and zeroes the other locals.
func (l *lowerer) emitPrologue() {
	m := l.m
	m.InsertStackOverflow()
	m.EmitFunctionPrologue()

	for i := 0; i < len(l.locals) && !m.IsLocalOnStack(i); i++ {
		l.saved = append(l.saved, m.LocalLocation(i, 0))
	}
	l.saved = append(l.saved, singlepass.GPR(m.VMContextRegister()))
	if len(l.saved)%2 == 1 {
		l.saved = append(l.saved, singlepass.GPR(m.LocalPointer()))
	}
	for _, loc := range l.saved {
		m.EmitPush(singlepass.S64, loc)
	}
	l.savedSize = 8 * len(l.saved)
	l.frameSize = int32(l.savedSize)

	m.MoveLocation(singlepass.S64, m.ParamLocation(0, l.cc), singlepass.GPR(m.VMContextRegister()))

	var onStack int
	for i := range l.locals {
		if m.IsLocalOnStack(i) {
			onStack++
		}
	}
	if onStack > 0 {
		area := align16(int32(onStack * 8))
		m.AdjustStack(uint32(area))
		l.frameSize += area
	}

	params := len(l.fn.Type.Params)
	for i := 0; i < params; i++ {
		m.EmitRelaxedMov(singlepass.S64, m.ParamLocation(i+1, l.cc), m.LocalLocation(i, l.savedSize))
	}
	var zeroed uint64
	for i := params; i < len(l.locals); i++ {
		if m.IsLocalOnStack(i) {
			zeroed++
			continue
		}
		m.ZeroLocation(singlepass.S64, m.LocalLocation(i, l.savedSize))
	}
	// Zeroing goes up from the last local, which has the lowest address.
	if zeroed > 0 {
		m.InitStackLoc(zeroed, m.LocalLocation(len(l.locals)-1, l.savedSize))
	}
}

func (l *lowerer) emitEpilogue() error {
	m := l.m
	results := l.fn.Type.Results
	if len(l.stack) != len(results) {
		return fmt.Errorf("%w: function ends with %d values on the stack but returns %d", ErrTypeMismatch, len(l.stack), len(results))
	}
	if len(results) == 1 {
		v := l.stack[0]
		if v.typ != results[0] {
			return fmt.Errorf("%w: function returns %s but the stack holds %s", ErrTypeMismatch,
				wasm.ValueTypeName(results[0]), wasm.ValueTypeName(v.typ))
		}
		canonicalize := l.canonicalizeNaNs() && wasm.IsFloat(v.typ)
		m.EmitFunctionReturnValue(v.typ, canonicalize, v.loc)
		if wasm.IsFloat(v.typ) {
			m.EmitFunctionReturnFloat()
		}
		l.release(v.loc)
		l.stack = l.stack[:0]
	}

	m.RestoreSavedArea(int32(l.savedSize))
	for i := len(l.saved) - 1; i >= 0; i-- {
		m.EmitPop(singlepass.S64, l.saved[i])
	}
	m.EmitFunctionEpilogue()
	m.EmitRet()
	return nil
}

// emitTrapStubs emits one faulting instruction per trap code branched to by the body.
func (l *lowerer) emitTrapStubs() {
	for _, code := range l.trapOrder {
		l.m.EmitLabel(l.trapLabels[code])
		offset := l.m.MarkInstructionWithTrapCode(code)
		l.m.EmitIllegalOp()
		l.m.MarkInstructionAddressEnd(offset)
	}
}

func (l *lowerer) trapLabel(code singlepass.TrapCode) asm.Label {
	if label, ok := l.trapLabels[code]; ok {
		return label
	}
	label := l.m.NewLabel()
	l.trapLabels[code] = label
	l.trapOrder = append(l.trapOrder, code)
	return label
}

func (l *lowerer) canonicalizeNaNs() bool {
	return l.cfg.CanonicalizeNaNs && l.m.ArchSupportsCanonicalizeNaN()
}

func (l *lowerer) memoryAccess(ins *Instruction, atomic bool) singlepass.MemoryAccess {
	access := singlepass.MemoryAccess{Memarg: ins.Memarg, NeedCheck: l.cfg.EnableBoundsChecks}
	if atomic && !l.cfg.EnableAlignmentChecks {
		access.Memarg.Align = 1
	}
	if l.mod.Memory.Imported {
		access.ImportedMemories = true
		access.Offset = int32(l.offsets.ImportedMemory(0))
	} else {
		access.Offset = int32(l.offsets.LocalMemory(0))
	}
	// A non-zero offset is checked for 32-bit overflow even without bounds checks.
	if access.NeedCheck || access.Memarg.Offset != 0 || (atomic && access.Memarg.Align > 1) {
		access.HeapAccessOOB = l.trapLabel(singlepass.TrapCodeHeapAccessOutOfBounds)
	}
	return access
}

func (l *lowerer) mustAcquireTempGPR() asm.Register {
	r, ok := l.m.AcquireTempGPR()
	if !ok {
		panic("BUG: out of temporary general purpose registers")
	}
	return r
}

func align16(n int32) int32 { return (n + 15) &^ 15 }

// allocate returns a free location for a value of type t.
func (l *lowerer) allocate(t wasm.ValueType) location {
	candidates := valueGPRs
	if wasm.IsFloat(t) {
		candidates = valueSIMDs
	}
	for _, r := range candidates {
		if l.inUse[r] {
			continue
		}
		l.inUse[r] = true
		if wasm.IsFloat(t) {
			l.m.ReserveSIMD(r)
			return singlepass.SIMD(r)
		}
		l.m.ReserveGPR(r)
		return singlepass.GPR(r)
	}
	return l.spillSlot()
}

// spillSlot returns an 8-byte frame slot. Slots are carved in pairs so sp stays 16-byte aligned, and
// are given back to sp only by the epilogue.
func (l *lowerer) spillSlot() location {
	base := l.m.LocalPointer()
	if n := len(l.freeSlots); n > 0 {
		offset := l.freeSlots[n-1]
		l.freeSlots = l.freeSlots[:n-1]
		return singlepass.Memory(base, offset)
	}
	l.m.AdjustStack(16)
	l.frameSize += 16
	l.freeSlots = append(l.freeSlots, -l.frameSize+8)
	return singlepass.Memory(base, -l.frameSize)
}

func (l *lowerer) release(loc location) {
	switch {
	case loc.IsGPR():
		delete(l.inUse, loc.Reg)
		l.m.ReleaseGPR(loc.Reg)
	case loc.IsSIMD():
		delete(l.inUse, loc.Reg)
		l.m.ReleaseSIMD(loc.Reg)
	case loc.IsMemory():
		l.freeSlots = append(l.freeSlots, loc.Offset)
	}
}

func (l *lowerer) push(loc location, t wasm.ValueType) {
	l.stack = append(l.stack, stackValue{loc: loc, typ: t})
}

// popTyped pops len(types) values, checking their types, and returns their locations bottom first.
func (l *lowerer) popTyped(types []wasm.ValueType) ([]location, error) {
	if len(l.stack) < len(types) {
		return nil, fmt.Errorf("%w: expected %d values but the stack holds %d", ErrTypeMismatch, len(types), len(l.stack))
	}
	base := len(l.stack) - len(types)
	locs := make([]location, len(types))
	for i, t := range types {
		v := l.stack[base+i]
		if v.typ != t {
			return nil, fmt.Errorf("%w: expected %s but got %s", ErrTypeMismatch, wasm.ValueTypeName(t), wasm.ValueTypeName(v.typ))
		}
		locs[i] = v.loc
	}
	l.stack = l.stack[:base]
	return locs, nil
}

func (l *lowerer) pop() (stackValue, error) {
	if len(l.stack) == 0 {
		return stackValue{}, fmt.Errorf("%w: the stack is empty", ErrTypeMismatch)
	}
	v := l.stack[len(l.stack)-1]
	l.stack = l.stack[:len(l.stack)-1]
	return v, nil
}

func (l *lowerer) constant(ins *Instruction) error {
	t, err := wasm.ParseValueType(strings.TrimSuffix(ins.Op, ".const"))
	if err != nil {
		return err
	}
	if sizeOf(t) == singlepass.S64 {
		l.push(singlepass.Imm64(ins.Const), t)
	} else {
		l.push(singlepass.Imm32(uint32(ins.Const)), t)
	}
	return nil
}

func (l *lowerer) drop(*Instruction) error {
	v, err := l.pop()
	if err != nil {
		return err
	}
	l.release(v.loc)
	return nil
}

// selectValue implements select: the first operand when the condition is non-zero, the second otherwise.
func (l *lowerer) selectValue(*Instruction) error {
	cond, err := l.popTyped([]wasm.ValueType{i32})
	if err != nil {
		return err
	}
	b, err := l.pop()
	if err != nil {
		return err
	}
	a, err := l.pop()
	if err != nil {
		return err
	}
	if a.typ != b.typ {
		return fmt.Errorf("%w: select operands are %s and %s", ErrTypeMismatch, wasm.ValueTypeName(a.typ), wasm.ValueTypeName(b.typ))
	}

	sz := sizeOf(a.typ)
	ret := l.allocate(a.typ)
	keep := l.m.NewLabel()
	l.m.EmitRelaxedMov(sz, a.loc, ret)
	l.m.EmitRelaxedCmp(singlepass.S32, singlepass.Imm32(0), cond[0])
	l.m.JmpOnDifferent(keep)
	l.m.EmitRelaxedMov(sz, b.loc, ret)
	l.m.EmitLabel(keep)

	l.release(cond[0])
	l.release(b.loc)
	l.release(a.loc)
	l.push(ret, a.typ)
	return nil
}

func (l *lowerer) local(ins *Instruction) (location, wasm.ValueType, error) {
	if int(ins.Index) >= len(l.locals) {
		return location{}, 0, fmt.Errorf("%w: local %d", ErrIndexOutOfRange, ins.Index)
	}
	return l.m.LocalLocation(int(ins.Index), l.savedSize), l.locals[ins.Index], nil
}

func (l *lowerer) localGet(ins *Instruction) error {
	loc, t, err := l.local(ins)
	if err != nil {
		return err
	}
	ret := l.allocate(t)
	l.m.EmitRelaxedMov(sizeOf(t), loc, ret)
	l.push(ret, t)
	return nil
}

func (l *lowerer) localSet(ins *Instruction) error {
	loc, t, err := l.local(ins)
	if err != nil {
		return err
	}
	v, err := l.popTyped([]wasm.ValueType{t})
	if err != nil {
		return err
	}
	l.m.EmitRelaxedMov(sizeOf(t), v[0], loc)
	l.release(v[0])
	return nil
}

func (l *lowerer) localTee(ins *Instruction) error {
	loc, t, err := l.local(ins)
	if err != nil {
		return err
	}
	v, err := l.popTyped([]wasm.ValueType{t})
	if err != nil {
		return err
	}
	l.m.EmitRelaxedMov(sizeOf(t), v[0], loc)
	l.push(v[0], t)
	return nil
}

// globalCell loads the address of the cell of the global at index into a temporary.
func (l *lowerer) globalCell(index uint32) (*wasm.Global, asm.Register, error) {
	if int(index) >= len(l.mod.Globals) {
		return nil, 0, fmt.Errorf("%w: global %d", ErrIndexOutOfRange, index)
	}
	tmp := l.mustAcquireTempGPR()
	cell := singlepass.Memory(l.m.VMContextRegister(), int32(l.offsets.Global(index)))
	l.m.EmitRelaxedMov(singlepass.S64, cell, singlepass.GPR(tmp))
	return l.mod.Globals[index], tmp, nil
}

func (l *lowerer) globalGet(ins *Instruction) error {
	g, tmp, err := l.globalCell(ins.Index)
	if err != nil {
		return err
	}
	t := g.Type.ValType
	ret := l.allocate(t)
	l.m.EmitRelaxedMov(sizeOf(t), singlepass.Memory(tmp, 0), ret)
	l.m.ReleaseGPR(tmp)
	l.push(ret, t)
	return nil
}

func (l *lowerer) globalSet(ins *Instruction) error {
	if int(ins.Index) >= len(l.mod.Globals) {
		return fmt.Errorf("%w: global %d", ErrIndexOutOfRange, ins.Index)
	}
	if !l.mod.Globals[ins.Index].Type.Mutable {
		return fmt.Errorf("global %d: %w", ins.Index, wasm.ErrImmutableGlobal)
	}
	t := l.mod.Globals[ins.Index].Type.ValType
	v, err := l.popTyped([]wasm.ValueType{t})
	if err != nil {
		return err
	}
	_, tmp, err := l.globalCell(ins.Index)
	if err != nil {
		return err
	}
	l.m.EmitRelaxedMov(sizeOf(t), v[0], singlepass.Memory(tmp, 0))
	l.m.ReleaseGPR(tmp)
	l.release(v[0])
	return nil
}

// call emits a call through the call register, patched by the linker with the address of the callee or
// of the import call trampoline of an imported function.
//
// Live values are saved around the call since every value register is caller-saved.
func (l *lowerer) call(ins *Instruction) error {
	typ, ok := l.mod.FunctionType(ins.Index)
	if !ok {
		return fmt.Errorf("%w: function %d", ErrIndexOutOfRange, ins.Index)
	}
	args, err := l.popTyped(typ.Params)
	if err != nil {
		return err
	}
	// The arguments are still read below, but nothing is allocated until the call returns.
	for _, arg := range args {
		l.release(arg)
	}

	m := l.m
	m.PushUsedGPRs()
	m.PushUsedSIMDs()

	registerParams := 0
	for m.ParamLocation(registerParams+1, l.cc).IsRegister() {
		registerParams++
	}
	var area uint32
	if n := len(args); n > registerParams {
		area = uint32(align16(int32((n - registerParams) * 8)))
		m.AdjustStack(area)
		for i := registerParams; i < n; i++ {
			m.EmitRelaxedMov(singlepass.S64, args[i], singlepass.Memory(arm64.RegSP, int32((i-registerParams)*8)))
		}
	}
	var reserved []asm.Register
	for i := 0; i < len(args) && i < registerParams; i++ {
		dst := m.ParamLocation(i+1, l.cc)
		m.ReserveGPR(dst.Reg)
		reserved = append(reserved, dst.Reg)
		m.EmitRelaxedMov(singlepass.S64, args[i], dst)
	}
	m.MoveLocation(singlepass.S64, singlepass.GPR(m.VMContextRegister()), m.ParamLocation(0, l.cc))

	target := singlepass.RelocationTarget{Kind: singlepass.RelocationTargetLocalFunc, Index: ins.Index - uint32(len(l.mod.Imports))}
	if int(ins.Index) < len(l.mod.Imports) {
		target = singlepass.RelocationTarget{Kind: singlepass.RelocationTargetCustomSection, Index: ins.Index}
	}
	l.relocations = m.MoveWithReloc(target, l.relocations)
	begin := m.Offset()
	m.EmitCallRegister(m.GPRForCall())
	m.MarkInstructionAddressEnd(begin)

	for _, r := range reserved {
		m.ReleaseGPR(r)
	}
	if len(typ.Results) > 0 {
		// Restoring the stack may need x0.
		m.MoveLocation(singlepass.S64, m.ParamLocation(0, l.cc), singlepass.GPR(m.GPRForReturn()))
	}
	if area > 0 {
		m.RestoreStack(area)
	}
	m.PopUsedSIMDs()
	m.PopUsedGPRs()

	if len(typ.Results) > 0 {
		t := typ.Results[0]
		ret := l.allocate(t)
		m.EmitRelaxedMov(sizeOf(t), singlepass.GPR(m.GPRForReturn()), ret)
		l.push(ret, t)
	}
	return nil
}
