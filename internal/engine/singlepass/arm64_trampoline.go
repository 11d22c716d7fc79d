package singlepass

import (
	"fmt"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

// FunctionBody is a standalone piece of generated code.
type FunctionBody struct {
	Body []byte
}

// CustomSectionProtection is the memory protection a CustomSection needs at runtime.
type CustomSectionProtection byte

const (
	CustomSectionProtectionRead CustomSectionProtection = iota
	CustomSectionProtectionReadExecute
)

// String implements fmt.Stringer.
func (p CustomSectionProtection) String() string {
	switch p {
	case CustomSectionProtectionRead:
		return "r"
	case CustomSectionProtectionReadExecute:
		return "rx"
	}
	return fmt.Sprintf("protection(%d)", byte(p))
}

// CustomSection is a blob laid out by the linker next to the function bodies.
type CustomSection struct {
	Protection  CustomSectionProtection
	Bytes       []byte
	Relocations []Relocation
}

// valueSlotSize is the size of one entry of the values array of the host-call convention.
const valueSlotSize = 16

// Scratch registers of the trampolines. x16 and x17 are the intra-procedure-call registers which
// generated function bodies never allocate.
const (
	trampolineValues   = arm64.RegR25
	trampolineCallee   = arm64.RegR26
	trampolineScratch  = arm64.RegR16
	trampolineScratch2 = arm64.RegR17
)

func align16(n int64) int64 { return (n + 15) &^ 15 }

// hostCallRegisterParams is the number of guest parameters passed in registers: x0 carries the VM
// context, so parameters go to x1-x7.
const hostCallRegisterParams = 7

func mustAssemble(a *arm64.Assembler) []byte {
	code, err := a.Assemble()
	if err != nil {
		panic(fmt.Sprintf("BUG: trampoline failed to assemble: %v", err))
	}
	return append([]byte(nil), code...)
}

// loadStoreAt is emitLoadStore for code without a register allocator: large offsets go through scratch.
func loadStoreAt(a *arm64.Assembler, kind arm64.LoadStoreKind, rt, base asm.Register, offset int64, scratch asm.Register) {
	if kind.OffsetFitsScaled(offset) {
		a.LoadStoreScaled(kind, rt, base, offset)
		return
	}
	a.MovImm(true, scratch, uint64(offset))
	a.LoadStoreRegisterOffset(kind, rt, base, scratch)
}

// GenStdTrampoline generates the entry trampoline for functions of type sig. The trampoline is called
// with the VM context in x0, the function body address in x1 and the values array in x2. Parameters
// are read from the array, and the result, if any, is written back to its first slot.
func GenStdTrampoline(sig *wasm.FunctionType, _ CallingConvention) FunctionBody {
	a := arm64.NewAssembler()

	a.Stp(arm64.PairPreIndex, arm64.RegFP, arm64.RegLR, arm64.RegSP, -16)
	a.MovRegister(true, arm64.RegFP, arm64.RegSP)
	a.Stp(arm64.PairPreIndex, trampolineValues, trampolineCallee, arm64.RegSP, -16)
	a.MovRegister(true, trampolineValues, arm64.RegR2)
	a.MovRegister(true, trampolineCallee, arm64.RegR1)

	var stackArgs int64
	if n := len(sig.Params); n > hostCallRegisterParams {
		stackArgs = align16(int64(n-hostCallRegisterParams) * 8)
	}
	if stackArgs > 0 {
		adjustSP(a, true, stackArgs)
	}

	for i := range sig.Params {
		slot := int64(i) * valueSlotSize
		if i < hostCallRegisterParams {
			loadStoreAt(a, arm64.Load64, arm64.IntRegister(i+1), trampolineValues, slot, trampolineScratch)
			continue
		}
		loadStoreAt(a, arm64.Load64, trampolineScratch2, trampolineValues, slot, trampolineScratch)
		loadStoreAt(a, arm64.Store64, trampolineScratch2, arm64.RegSP, int64(i-hostCallRegisterParams)*8, trampolineScratch)
	}

	a.Blr(trampolineCallee)

	if stackArgs > 0 {
		adjustSP(a, false, stackArgs)
	}
	if len(sig.Results) > 0 {
		a.LoadStoreScaled(arm64.Store64, arm64.RegR0, trampolineValues, 0)
	}

	a.Ldp(arm64.PairPostIndex, trampolineValues, trampolineCallee, arm64.RegSP, 16)
	a.Ldp(arm64.PairPostIndex, arm64.RegFP, arm64.RegLR, arm64.RegSP, 16)
	a.Ret()
	return FunctionBody{Body: mustAssemble(a)}
}

// GenStdDynamicImportTrampoline generates the body called in place of a host function of type sig.
// It spills the parameters into a values array on its own frame and calls the host function found
// at the dynamic function context address of the VM context in x0, with x0 unchanged and the values
// array in x1. The host writes the result to the first slot.
func GenStdDynamicImportTrampoline(offsets VMContextOffsets, sig *wasm.FunctionType, _ CallingConvention) FunctionBody {
	a := arm64.NewAssembler()

	a.Stp(arm64.PairPreIndex, arm64.RegFP, arm64.RegLR, arm64.RegSP, -16)
	a.MovRegister(true, arm64.RegFP, arm64.RegSP)

	slots := len(sig.Params)
	if len(sig.Results) > slots {
		slots = len(sig.Results)
	}
	area := align16(int64(slots) * valueSlotSize)
	if area > 0 {
		adjustSP(a, true, area)
	}

	for i := range sig.Params {
		slot := int64(i) * valueSlotSize
		if i < hostCallRegisterParams {
			loadStoreAt(a, arm64.Store64, arm64.IntRegister(i+1), arm64.RegSP, slot, trampolineScratch)
			continue
		}
		// The caller's stack arguments start right above the saved x29 and x30.
		loadStoreAt(a, arm64.Load64, trampolineScratch2, arm64.RegFP, 16+int64(i-hostCallRegisterParams)*8, trampolineScratch)
		loadStoreAt(a, arm64.Store64, trampolineScratch2, arm64.RegSP, slot, trampolineScratch)
	}

	loadStoreAt(a, arm64.Load64, trampolineScratch2, arm64.RegR0, offsets.DynamicFunctionContextAddress().I64(), trampolineScratch)
	a.MovRegister(true, arm64.RegR1, arm64.RegSP)
	a.Blr(trampolineScratch2)

	if len(sig.Results) > 0 {
		a.LoadStoreScaled(arm64.Load64, arm64.RegR0, arm64.RegSP, 0)
		if wasm.IsFloat(sig.Results[0]) {
			a.LoadStoreScaled(arm64.LoadF64, arm64.RegV0, arm64.RegSP, 0)
		}
	}

	a.MovRegister(true, arm64.RegSP, arm64.RegFP)
	a.Ldp(arm64.PairPostIndex, arm64.RegFP, arm64.RegLR, arm64.RegSP, 16)
	a.Ret()
	return FunctionBody{Body: mustAssemble(a)}
}

// adjustSP moves sp by delta bytes, downwards if sub is true. trampolineScratch holds
// delta only when it does not fit an add/sub immediate.
func adjustSP(a *arm64.Assembler, sub bool, delta int64) {
	if arm64.AddSubImmediateFits(uint64(delta)) {
		if sub {
			a.SubImm(true, arm64.RegSP, arm64.RegSP, uint64(delta))
		} else {
			a.AddImm(true, arm64.RegSP, arm64.RegSP, uint64(delta))
		}
		return
	}
	a.MovImm(true, trampolineScratch, uint64(delta))
	if sub {
		a.Sub(true, arm64.RegSP, arm64.RegSP, trampolineScratch)
	} else {
		a.Add(true, arm64.RegSP, arm64.RegSP, trampolineScratch)
	}
}

// GenImportCallTrampoline generates the thunk through which generated code calls the index-th imported
// function: it loads the body address and the VM context of the import from the caller's VM context
// in x0 and branches to the body.
func GenImportCallTrampoline(offsets VMContextOffsets, index uint32, _ *wasm.FunctionType, _ CallingConvention) CustomSection {
	a := arm64.NewAssembler()

	offset := offsets.ImportedFunction(index).I64()
	if arm64.Load64.OffsetFitsScaled(offset + 8) {
		a.LoadStoreScaled(arm64.Load64, trampolineScratch2, arm64.RegR0, offset)
		a.LoadStoreScaled(arm64.Load64, arm64.RegR0, arm64.RegR0, offset+8)
	} else {
		a.MovImm(true, trampolineScratch, uint64(offset))
		a.Add(true, trampolineScratch, arm64.RegR0, trampolineScratch)
		a.LoadStoreScaled(arm64.Load64, trampolineScratch2, trampolineScratch, 0)
		a.LoadStoreScaled(arm64.Load64, arm64.RegR0, trampolineScratch, 8)
	}
	a.Br(trampolineScratch2)

	return CustomSection{Protection: CustomSectionProtectionReadExecute, Bytes: mustAssemble(a)}
}
