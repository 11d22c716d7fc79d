package arm64

import (
	"fmt"

	"github.com/tetratelabs/singlepass/internal/asm"
)

// ShiftOp is the kind of a shift or rotation.
type ShiftOp byte

const (
	ShiftLSL ShiftOp = iota
	ShiftLSR
	ShiftASR
	ShiftROR
)

// FpuBinOp is a scalar floating point operation with two sources.
type FpuBinOp byte

const (
	FpuBinOpAdd FpuBinOp = iota
	FpuBinOpSub
	FpuBinOpMul
	FpuBinOpDiv
	FpuBinOpMax
	FpuBinOpMin
)

// FpuUniOp is a scalar floating point operation with one source.
type FpuUniOp byte

const (
	FpuUniOpMov FpuUniOp = iota
	FpuUniOpAbs
	FpuUniOpNeg
	FpuUniOpSqrt
	// FpuUniOpCvt converts between precisions: the 64-bit flag selects the source precision.
	FpuUniOpCvt
	FpuUniOpRoundNearest
	FpuUniOpRoundPlus
	FpuUniOpRoundMinus
	FpuUniOpRoundZero
)

// LoadStoreKind selects the width, signedness and register class of a single register load or store.
type LoadStoreKind byte

const (
	Load8U LoadStoreKind = iota
	Load8S32
	Load8S64
	Load16U
	Load16S32
	Load16S64
	Load32U
	Load32S64
	Load64
	LoadF32
	LoadF64
	Store8
	Store16
	Store32
	Store64
	StoreF32
	StoreF64
)

var loadStoreKinds = [...]struct {
	_22to31 uint32
	bytes   int64
	vector  bool
	name    string
}{
	Load8U:    {_22to31: 0b0011100001, bytes: 1, name: "ldrb"},
	Load8S32:  {_22to31: 0b0011100011, bytes: 1, name: "ldrsb(w)"},
	Load8S64:  {_22to31: 0b0011100010, bytes: 1, name: "ldrsb"},
	Load16U:   {_22to31: 0b0111100001, bytes: 2, name: "ldrh"},
	Load16S32: {_22to31: 0b0111100011, bytes: 2, name: "ldrsh(w)"},
	Load16S64: {_22to31: 0b0111100010, bytes: 2, name: "ldrsh"},
	Load32U:   {_22to31: 0b1011100001, bytes: 4, name: "ldr(w)"},
	Load32S64: {_22to31: 0b1011100010, bytes: 4, name: "ldrsw"},
	Load64:    {_22to31: 0b1111100001, bytes: 8, name: "ldr"},
	LoadF32:   {_22to31: 0b1011110001, bytes: 4, vector: true, name: "ldr(s)"},
	LoadF64:   {_22to31: 0b1111110001, bytes: 8, vector: true, name: "ldr(d)"},
	Store8:    {_22to31: 0b0011100000, bytes: 1, name: "strb"},
	Store16:   {_22to31: 0b0111100000, bytes: 2, name: "strh"},
	Store32:   {_22to31: 0b1011100000, bytes: 4, name: "str(w)"},
	Store64:   {_22to31: 0b1111100000, bytes: 8, name: "str"},
	StoreF32:  {_22to31: 0b1011110000, bytes: 4, vector: true, name: "str(s)"},
	StoreF64:  {_22to31: 0b1111110000, bytes: 8, vector: true, name: "str(d)"},
}

// String implements fmt.Stringer.
func (k LoadStoreKind) String() string {
	if int(k) < len(loadStoreKinds) {
		return loadStoreKinds[k].name
	}
	return fmt.Sprintf("LoadStoreKind(%d)", k)
}

// Bytes returns the access size of k.
func (k LoadStoreKind) Bytes() int64 {
	return loadStoreKinds[k].bytes
}

// OffsetFitsScaled returns true if offset can be encoded as the unsigned scaled 12-bit immediate of k.
func (k LoadStoreKind) OffsetFitsScaled(offset int64) bool {
	b := loadStoreKinds[k].bytes
	return offset >= 0 && offset%b == 0 && offset/b < 1<<12
}

// OffsetFitsUnscaled returns true if offset can be encoded as the signed 9-bit immediate.
func OffsetFitsUnscaled(offset int64) bool {
	return offset >= -256 && offset <= 255
}

// AddSubImmediateFits returns true if imm is encodable by ADD/SUB (immediate), optionally shifted by 12.
func AddSubImmediateFits(imm uint64) bool {
	return imm < 1<<12 || (imm&0xfff == 0 && imm < 1<<24)
}

// IsBitMaskImmediate returns true if imm is encodable as the logical immediate of a 32 or 64-bit instruction.
func IsBitMaskImmediate(imm uint64, _64bit bool) bool {
	return isBitMaskImmediate(imm, _64bit)
}

type fixupKind byte

const (
	fixupBranch26 fixupKind = iota
	fixupBranch19
	fixupADR
)

type fixup struct {
	offset int
	label  asm.Label
	kind   fixupKind
}

// Assembler emits arm64 instructions directly into a code buffer, one call per instruction.
//
// Operands follow the order of the assembly syntax: destination first. Invalid operands are
// bugs in the caller and result in panics; Assemble reports unresolvable labels as errors.
type Assembler struct {
	buf asm.Buffer
	// labels holds the bound offset of each label, or -1 while unbound.
	labels []int
	fixups []fixup
}

// NewAssembler returns a new Assembler writing to a fresh buffer.
func NewAssembler() *Assembler {
	return &Assembler{buf: asm.NewBuffer()}
}

// Reset clears the emitted code and labels for reuse.
func (a *Assembler) Reset() {
	a.buf.Reset()
	a.labels = a.labels[:0]
	a.fixups = a.fixups[:0]
}

// Offset returns the current offset in bytes, i.e. the offset of the next instruction.
func (a *Assembler) Offset() int {
	return a.buf.Len()
}

// Bytes returns the emitted code. Branches to labels are only patched by Assemble.
func (a *Assembler) Bytes() []byte {
	return a.buf.Bytes()
}

// Emit4Bytes appends one raw instruction word.
func (a *Assembler) Emit4Bytes(w uint32) {
	a.buf.WriteUint32(w)
}

// InstructionAt returns the instruction word at the given offset.
func (a *Assembler) InstructionAt(offset int) uint32 {
	return a.buf.Uint32At(offset)
}

// NewLabel allocates a new unbound label.
func (a *Assembler) NewLabel() asm.Label {
	a.labels = append(a.labels, -1)
	return asm.Label(len(a.labels) - 1)
}

// BindLabel binds the label to the current offset.
func (a *Assembler) BindLabel(l asm.Label) {
	if int(l) >= len(a.labels) {
		panic(fmt.Sprintf("BUG: unknown label %s", l))
	}
	if a.labels[l] >= 0 {
		panic(fmt.Sprintf("BUG: label %s bound twice", l))
	}
	a.labels[l] = a.Offset()
}

// LabelOffset returns the bound offset of l, or -1.
func (a *Assembler) LabelOffset(l asm.Label) int {
	if int(l) >= len(a.labels) {
		return -1
	}
	return a.labels[l]
}

func (a *Assembler) addFixup(l asm.Label, kind fixupKind) {
	if int(l) >= len(a.labels) {
		panic(fmt.Sprintf("BUG: unknown label %s", l))
	}
	a.fixups = append(a.fixups, fixup{offset: a.Offset(), label: l, kind: kind})
}

// Assemble resolves every label reference and returns the code.
func (a *Assembler) Assemble() ([]byte, error) {
	for _, f := range a.fixups {
		target := a.labels[f.label]
		if target < 0 {
			return nil, fmt.Errorf("label %s referenced at %#x is never bound", f.label, f.offset)
		}
		disp := int64(target - f.offset)
		w := a.buf.Uint32At(f.offset)
		switch f.kind {
		case fixupBranch26:
			if disp < -(1<<27) || disp >= 1<<27 {
				return nil, fmt.Errorf("branch at %#x to %s out of range: %d", f.offset, f.label, disp)
			}
			w |= uint32(disp/4) & 0x3ffffff
		case fixupBranch19:
			if disp < -(1<<20) || disp >= 1<<20 {
				return nil, fmt.Errorf("conditional branch at %#x to %s out of range: %d", f.offset, f.label, disp)
			}
			w |= (uint32(disp/4) & 0x7ffff) << 5
		case fixupADR:
			if disp < -(1<<20) || disp >= 1<<20 {
				return nil, fmt.Errorf("adr at %#x to %s out of range: %d", f.offset, f.label, disp)
			}
			w = encodeADR(w&0x1f, disp)
		}
		a.buf.PutUint32At(f.offset, w)
	}
	a.fixups = a.fixups[:0]
	return a.buf.Bytes(), nil
}

func intReg(r asm.Register) uint32 {
	if !IsIntRegister(r) {
		panic(fmt.Sprintf("BUG: %s is not a general purpose register", RegisterName(r)))
	}
	return RegisterNumber(r)
}

// intRegNoSP is for operand positions where 31 denotes the zero register.
func intRegNoSP(r asm.Register) uint32 {
	if r == RegSP {
		panic("BUG: sp is not allowed in this position")
	}
	return intReg(r)
}

// intRegNoZR is for operand positions where 31 denotes SP.
func intRegNoZR(r asm.Register) uint32 {
	if r == RegRZR {
		panic("BUG: xzr is not allowed in this position")
	}
	return intReg(r)
}

func vecReg(r asm.Register) uint32 {
	if !IsVectorRegister(r) {
		panic(fmt.Sprintf("BUG: %s is not a vector register", RegisterName(r)))
	}
	return RegisterNumber(r)
}

// MovRegister emits "mov rd, rn".
func (a *Assembler) MovRegister(_64bit bool, rd, rn asm.Register) {
	if rd == RegSP || rn == RegSP {
		// This is an alias of ADD (immediate):
		// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/MOV--to-from-SP---Move-between-register-and-stack-pointer--an-alias-of-ADD--immediate--
		a.Emit4Bytes(encodeAddSubtractImmediate(sfBit(_64bit)<<2, 0, 0, intRegNoZR(rn), intRegNoZR(rd)))
		return
	}
	// This is an alias of ORR (shifted register):
	// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/MOV--register---Move--register---an-alias-of-ORR--shifted-register--
	a.Emit4Bytes(encodeLogicalShiftedRegister(sfBit(_64bit)<<2|0b01, 0, intReg(rn), 0, 31, intRegNoSP(rd)))
}

// Movz emits "movz rd, #imm16, lsl #(shift*16)".
func (a *Assembler) Movz(_64bit bool, rd asm.Register, imm16 uint16, shift uint8) {
	a.Emit4Bytes(encodeMoveWideImmediate(0b10, intRegNoSP(rd), uint64(imm16), uint64(shift), _64bit))
}

// Movk emits "movk rd, #imm16, lsl #(shift*16)".
func (a *Assembler) Movk(_64bit bool, rd asm.Register, imm16 uint16, shift uint8) {
	a.Emit4Bytes(encodeMoveWideImmediate(0b11, intRegNoSP(rd), uint64(imm16), uint64(shift), _64bit))
}

// Movn emits "movn rd, #imm16, lsl #(shift*16)".
func (a *Assembler) Movn(_64bit bool, rd asm.Register, imm16 uint16, shift uint8) {
	a.Emit4Bytes(encodeMoveWideImmediate(0b00, intRegNoSP(rd), uint64(imm16), uint64(shift), _64bit))
}

// MovImm materializes an arbitrary constant in rd with the shortest of: a single MOVZ/MOVN,
// ORR with a bitmask immediate, or MOVZ/MOVN followed by MOVKs.
func (a *Assembler) MovImm(_64bit bool, rd asm.Register, c uint64) {
	if !_64bit {
		c &= 0xffffffff
	}
	if c == 0 {
		a.Movz(_64bit, rd, 0, 0)
		return
	}
	if !_64bit {
		lo, hi := uint16(c), uint16(c>>16)
		switch {
		case hi == 0:
			a.Movz(false, rd, lo, 0)
		case lo == 0:
			a.Movz(false, rd, hi, 1)
		case hi == 0xffff:
			a.Movn(false, rd, ^lo, 0)
		case lo == 0xffff:
			a.Movn(false, rd, ^hi, 1)
		case isBitMaskImmediate(c, false):
			a.Emit4Bytes(encodeLogicalImmediate(0b001, intRegNoSP(rd), 31, c, false))
		default:
			a.Movz(false, rd, lo, 0)
			a.Movk(false, rd, hi, 1)
		}
		return
	}
	var zeros, negs int
	for i := 0; i < 4; i++ {
		switch (c >> uint(i*16)) & 0xffff {
		case 0:
			zeros++
		case 0xffff:
			negs++
		}
	}
	if zeros < 3 && negs < 3 && isBitMaskImmediate(c, true) {
		// ORR (immediate) with the zero register.
		// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/ORR--immediate---Bitwise-OR--immediate--?lang=en
		a.Emit4Bytes(encodeLogicalImmediate(0b101, intRegNoSP(rd), 31, c, true))
		return
	}
	a.load64bitConst(c, rd)
}

// load64bitConst loads a 64-bit constant into the register, following the same logic to decide how to load large 64-bit
// consts as in the Go assembler.
//
// See https://github.com/golang/go/blob/release-branch.go1.15/src/cmd/internal/obj/arm64/asm7.go#L6632-L6759
func (a *Assembler) load64bitConst(c uint64, rd asm.Register) {
	var bits [4]uint64
	var zeros, negs int
	for i := 0; i < 4; i++ {
		bits[i] = (c >> uint(i*16)) & 0xffff
		if v := bits[i]; v == 0 {
			zeros++
		} else if v == 0xffff {
			negs++
		}
	}

	if negs == 4 {
		a.Movn(true, rd, 0, 0)
		return
	}

	if negs > zeros {
		// One MOVN, then MOVK for every other half-word which is not all ones.
		var movn bool
		for i, v := range bits {
			if !movn && v != 0xffff {
				a.Movn(true, rd, uint16(^v), uint8(i))
				movn = true
			} else if v != 0xffff {
				a.Movk(true, rd, uint16(v), uint8(i))
			}
		}
		return
	}

	// One MOVZ, then MOVK for every other non-zero half-word.
	var movz bool
	for i, v := range bits {
		if !movz && v != 0 {
			a.Movz(true, rd, uint16(v), uint8(i))
			movz = true
		} else if v != 0 {
			a.Movk(true, rd, uint16(v), uint8(i))
		}
	}
}

func addSubOp(sub, setFlags bool) uint32 {
	var op uint32
	if sub {
		op |= 0b10
	}
	if setFlags {
		op |= 0b01
	}
	return op
}

func splitAddSubImmediate(imm uint64) (imm12 uint32, sh uint32) {
	if imm < 1<<12 {
		return uint32(imm), 0
	}
	if imm&0xfff == 0 && imm < 1<<24 {
		return uint32(imm >> 12), 1
	}
	panic(fmt.Sprintf("BUG: immediate %#x is not encodable by add/sub", imm))
}

func (a *Assembler) addSubImm(sub, setFlags, _64bit bool, rd, rn asm.Register, imm uint64) {
	imm12, sh := splitAddSubImmediate(imm)
	// Rd is the zero register for adds/subs (cmn/cmp) and SP otherwise.
	var d uint32
	if setFlags {
		d = intRegNoSP(rd)
	} else {
		d = intRegNoZR(rd)
	}
	a.Emit4Bytes(encodeAddSubtractImmediate(sfBit(_64bit)<<2|addSubOp(sub, setFlags), sh, imm12, intRegNoZR(rn), d))
}

func (a *Assembler) addSubReg(sub, setFlags, _64bit bool, rd, rn, rm asm.Register) {
	op := sfBit(_64bit)<<2 | addSubOp(sub, setFlags)
	if rn == RegSP || (rd == RegSP && !setFlags) {
		a.Emit4Bytes(encodeAddSubtractExtendedRegister(op, intRegNoSP(rm), intRegNoZR(rn), intReg(rd)))
		return
	}
	a.Emit4Bytes(encodeAddSubtractShiftedRegister(op, 0, intRegNoSP(rm), 0, intRegNoSP(rn), intRegNoSP(rd)))
}

// AddImm emits "add rd, rn, #imm".
func (a *Assembler) AddImm(_64bit bool, rd, rn asm.Register, imm uint64) {
	a.addSubImm(false, false, _64bit, rd, rn, imm)
}

// AddsImm emits "adds rd, rn, #imm".
func (a *Assembler) AddsImm(_64bit bool, rd, rn asm.Register, imm uint64) {
	a.addSubImm(false, true, _64bit, rd, rn, imm)
}

// SubImm emits "sub rd, rn, #imm".
func (a *Assembler) SubImm(_64bit bool, rd, rn asm.Register, imm uint64) {
	a.addSubImm(true, false, _64bit, rd, rn, imm)
}

// SubsImm emits "subs rd, rn, #imm".
func (a *Assembler) SubsImm(_64bit bool, rd, rn asm.Register, imm uint64) {
	a.addSubImm(true, true, _64bit, rd, rn, imm)
}

// Add emits "add rd, rn, rm".
func (a *Assembler) Add(_64bit bool, rd, rn, rm asm.Register) {
	a.addSubReg(false, false, _64bit, rd, rn, rm)
}

// Adds emits "adds rd, rn, rm".
func (a *Assembler) Adds(_64bit bool, rd, rn, rm asm.Register) {
	a.addSubReg(false, true, _64bit, rd, rn, rm)
}

// Sub emits "sub rd, rn, rm".
func (a *Assembler) Sub(_64bit bool, rd, rn, rm asm.Register) {
	a.addSubReg(true, false, _64bit, rd, rn, rm)
}

// Subs emits "subs rd, rn, rm".
func (a *Assembler) Subs(_64bit bool, rd, rn, rm asm.Register) {
	a.addSubReg(true, true, _64bit, rd, rn, rm)
}

// AddShifted emits "add rd, rn, rm, <shift> #amount".
func (a *Assembler) AddShifted(_64bit bool, rd, rn, rm asm.Register, shift ShiftOp, amount uint32) {
	if shift == ShiftROR {
		panic("BUG: ror is not a valid add/sub shift")
	}
	a.Emit4Bytes(encodeAddSubtractShiftedRegister(sfBit(_64bit)<<2, uint32(shift), intRegNoSP(rm), amount, intRegNoSP(rn), intRegNoSP(rd)))
}

// CmpImm emits "cmp rn, #imm".
func (a *Assembler) CmpImm(_64bit bool, rn asm.Register, imm uint64) {
	a.SubsImm(_64bit, RegRZR, rn, imm)
}

// CmnImm emits "cmn rn, #imm".
func (a *Assembler) CmnImm(_64bit bool, rn asm.Register, imm uint64) {
	a.AddsImm(_64bit, RegRZR, rn, imm)
}

// Cmp emits "cmp rn, rm".
func (a *Assembler) Cmp(_64bit bool, rn, rm asm.Register) {
	a.Subs(_64bit, RegRZR, rn, rm)
}

// Neg emits "neg rd, rm".
func (a *Assembler) Neg(_64bit bool, rd, rm asm.Register) {
	a.Sub(_64bit, rd, RegRZR, rm)
}

// LogicalOp is the kind of a bitwise operation.
type LogicalOp byte

const (
	LogicalAnd LogicalOp = iota
	LogicalOrr
	LogicalEor
	LogicalAnds
)

// Logical emits "and|orr|eor|ands rd, rn, rm".
func (a *Assembler) Logical(op LogicalOp, _64bit bool, rd, rn, rm asm.Register) {
	a.Emit4Bytes(encodeLogicalShiftedRegister(sfBit(_64bit)<<2|uint32(op), 0, intRegNoSP(rm), 0, intRegNoSP(rn), intRegNoSP(rd)))
}

// LogicalImm emits "and|orr|eor|ands rd, rn, #imm". imm must be a bitmask immediate.
func (a *Assembler) LogicalImm(op LogicalOp, _64bit bool, rd, rn asm.Register, imm uint64) {
	if !isBitMaskImmediate(imm, _64bit) {
		panic(fmt.Sprintf("BUG: %#x is not a bitmask immediate", imm))
	}
	// Rd is the zero register for ands (tst) and SP for the others.
	var d uint32
	if op == LogicalAnds {
		d = intRegNoSP(rd)
	} else {
		d = intRegNoZR(rd)
	}
	a.Emit4Bytes(encodeLogicalImmediate(sfBit(_64bit)<<2|uint32(op), d, intRegNoSP(rn), imm, _64bit))
}

// Tst emits "tst rn, rm".
func (a *Assembler) Tst(_64bit bool, rn, rm asm.Register) {
	a.Logical(LogicalAnds, _64bit, RegRZR, rn, rm)
}

// TstImm emits "tst rn, #imm".
func (a *Assembler) TstImm(_64bit bool, rn asm.Register, imm uint64) {
	a.LogicalImm(LogicalAnds, _64bit, RegRZR, rn, imm)
}

// ShiftReg emits "lslv|lsrv|asrv|rorv rd, rn, rm".
func (a *Assembler) ShiftReg(op ShiftOp, _64bit bool, rd, rn, rm asm.Register) {
	a.Emit4Bytes(encodeDataProcessing2Source(0b001000|uint32(op), intRegNoSP(rd), intRegNoSP(rn), intRegNoSP(rm), _64bit))
}

// ShiftImm emits "lsl|lsr|asr|ror rd, rn, #amount".
func (a *Assembler) ShiftImm(op ShiftOp, _64bit bool, rd, rn asm.Register, amount uint32) {
	a.Emit4Bytes(encodeShiftImmediate(op, intRegNoSP(rd), intRegNoSP(rn), amount, _64bit))
}

// Udiv emits "udiv rd, rn, rm".
func (a *Assembler) Udiv(_64bit bool, rd, rn, rm asm.Register) {
	a.Emit4Bytes(encodeDataProcessing2Source(0b000010, intRegNoSP(rd), intRegNoSP(rn), intRegNoSP(rm), _64bit))
}

// Sdiv emits "sdiv rd, rn, rm".
func (a *Assembler) Sdiv(_64bit bool, rd, rn, rm asm.Register) {
	a.Emit4Bytes(encodeDataProcessing2Source(0b000011, intRegNoSP(rd), intRegNoSP(rn), intRegNoSP(rm), _64bit))
}

// Madd emits "madd rd, rn, rm, ra".
func (a *Assembler) Madd(_64bit bool, rd, rn, rm, ra asm.Register) {
	a.Emit4Bytes(encodeDataProcessing3Source(0, intRegNoSP(rd), intRegNoSP(rn), intRegNoSP(rm), intRegNoSP(ra), _64bit))
}

// Msub emits "msub rd, rn, rm, ra", i.e. rd = ra - rn*rm.
func (a *Assembler) Msub(_64bit bool, rd, rn, rm, ra asm.Register) {
	a.Emit4Bytes(encodeDataProcessing3Source(1, intRegNoSP(rd), intRegNoSP(rn), intRegNoSP(rm), intRegNoSP(ra), _64bit))
}

// Mul emits "mul rd, rn, rm".
func (a *Assembler) Mul(_64bit bool, rd, rn, rm asm.Register) {
	a.Madd(_64bit, rd, rn, rm, RegRZR)
}

// Clz emits "clz rd, rn".
func (a *Assembler) Clz(_64bit bool, rd, rn asm.Register) {
	a.Emit4Bytes(encodeDataProcessing1Source(0b000100, intRegNoSP(rd), intRegNoSP(rn), _64bit))
}

// Rbit emits "rbit rd, rn".
func (a *Assembler) Rbit(_64bit bool, rd, rn asm.Register) {
	a.Emit4Bytes(encodeDataProcessing1Source(0b000000, intRegNoSP(rd), intRegNoSP(rn), _64bit))
}

// Cset emits "cset rd, cond".
func (a *Assembler) Cset(_64bit bool, rd asm.Register, cond asm.ConditionalRegisterState) {
	// https://developer.arm.com/documentation/ddi0602/2022-06/Base-Instructions/CSET--Conditional-Set--an-alias-of-CSINC-
	a.Emit4Bytes(encodeConditionalSelect(0b01, intRegNoSP(rd), 31, 31, uint32(InvertCond(cond)), _64bit))
}

// Csel emits "csel rd, rn, rm, cond".
func (a *Assembler) Csel(_64bit bool, rd, rn, rm asm.Register, cond asm.ConditionalRegisterState) {
	a.Emit4Bytes(encodeConditionalSelect(0b00, intRegNoSP(rd), intRegNoSP(rn), intRegNoSP(rm), uint32(cond), _64bit))
}

// Extend emits sxtb/sxth/sxtw/uxtb/uxth or "mov wd, wn" (zero-extension from 32 bits).
func (a *Assembler) Extend(signed bool, fromBits, toBits byte, rd, rn asm.Register) {
	a.Emit4Bytes(encodeExtend(signed, fromBits, toBits, intRegNoSP(rd), intRegNoSP(rn)))
}

func loadStoreRt(kind LoadStoreKind, rt asm.Register) uint32 {
	if loadStoreKinds[kind].vector {
		return vecReg(rt)
	}
	return intRegNoSP(rt)
}

// LoadStoreScaled emits a load or store with the unsigned scaled 12-bit offset, e.g. "ldr rt, [rn, #offset]".
func (a *Assembler) LoadStoreScaled(kind LoadStoreKind, rt, rn asm.Register, offset int64) {
	if !kind.OffsetFitsScaled(offset) {
		panic(fmt.Sprintf("BUG: offset %d is not encodable for %s", offset, kind))
	}
	a.Emit4Bytes(encodeLoadOrStoreUnsignedImm12(loadStoreKinds[kind]._22to31, intRegNoZR(rn), loadStoreRt(kind, rt),
		uint32(offset/kind.Bytes())))
}

// LoadStoreUnscaled emits a load or store with the signed unscaled 9-bit offset, e.g. "ldur rt, [rn, #offset]".
func (a *Assembler) LoadStoreUnscaled(kind LoadStoreKind, rt, rn asm.Register, offset int64) {
	if !OffsetFitsUnscaled(offset) {
		panic(fmt.Sprintf("BUG: offset %d is not encodable for unscaled %s", offset, kind))
	}
	a.Emit4Bytes(encodeLoadOrStoreSIMM9(loadStoreKinds[kind]._22to31, 0b00, intRegNoZR(rn), loadStoreRt(kind, rt), offset))
}

// LoadStorePostIndex emits e.g. "str rt, [rn], #offset".
func (a *Assembler) LoadStorePostIndex(kind LoadStoreKind, rt, rn asm.Register, offset int64) {
	if !OffsetFitsUnscaled(offset) {
		panic(fmt.Sprintf("BUG: offset %d is not encodable for post-index %s", offset, kind))
	}
	a.Emit4Bytes(encodeLoadOrStoreSIMM9(loadStoreKinds[kind]._22to31, 0b01, intRegNoZR(rn), loadStoreRt(kind, rt), offset))
}

// LoadStorePreIndex emits e.g. "str rt, [rn, #offset]!".
func (a *Assembler) LoadStorePreIndex(kind LoadStoreKind, rt, rn asm.Register, offset int64) {
	if !OffsetFitsUnscaled(offset) {
		panic(fmt.Sprintf("BUG: offset %d is not encodable for pre-index %s", offset, kind))
	}
	a.Emit4Bytes(encodeLoadOrStoreSIMM9(loadStoreKinds[kind]._22to31, 0b11, intRegNoZR(rn), loadStoreRt(kind, rt), offset))
}

// LoadStoreRegisterOffset emits e.g. "ldr rt, [rn, rm]".
func (a *Assembler) LoadStoreRegisterOffset(kind LoadStoreKind, rt, rn, rm asm.Register) {
	a.Emit4Bytes(encodeLoadOrStoreRegisterOffset(loadStoreKinds[kind]._22to31, intRegNoZR(rn), intRegNoSP(rm), loadStoreRt(kind, rt)))
}

// PairMode is the addressing mode of LDP/STP.
type PairMode byte

const (
	PairPostIndex PairMode = 0b001
	PairOffset    PairMode = 0b010
	PairPreIndex  PairMode = 0b011
)

// Stp emits the 64-bit "stp rt, rt2, [rn, #offset]" in the given mode.
func (a *Assembler) Stp(mode PairMode, rt, rt2, rn asm.Register, offset int64) {
	a.Emit4Bytes(encodeLoadOrStorePair64(uint32(mode), false, intRegNoZR(rn), intRegNoSP(rt), intRegNoSP(rt2), offset))
}

// Ldp emits the 64-bit "ldp rt, rt2, [rn, #offset]" in the given mode.
func (a *Assembler) Ldp(mode PairMode, rt, rt2, rn asm.Register, offset int64) {
	a.Emit4Bytes(encodeLoadOrStorePair64(uint32(mode), true, intRegNoZR(rn), intRegNoSP(rt), intRegNoSP(rt2), offset))
}

func exclusiveSize(bits byte) uint32 {
	switch bits {
	case 8:
		return 0
	case 16:
		return 1
	case 32:
		return 2
	case 64:
		return 3
	}
	panic(fmt.Sprintf("BUG: invalid exclusive access size %d", bits))
}

// Ldaxr emits "ldaxr{b,h} rt, [rn]".
func (a *Assembler) Ldaxr(bits byte, rt, rn asm.Register) {
	a.Emit4Bytes(encodeLoadStoreExclusive(exclusiveSize(bits), 0, 1, 1, 31, intRegNoZR(rn), intRegNoSP(rt)))
}

// Stlxr emits "stlxr{b,h} ws, rt, [rn]". ws receives 0 on success.
func (a *Assembler) Stlxr(bits byte, ws, rt, rn asm.Register) {
	a.Emit4Bytes(encodeLoadStoreExclusive(exclusiveSize(bits), 0, 0, 1, intRegNoSP(ws), intRegNoZR(rn), intRegNoSP(rt)))
}

// Ldar emits "ldar{b,h} rt, [rn]".
func (a *Assembler) Ldar(bits byte, rt, rn asm.Register) {
	a.Emit4Bytes(encodeLoadStoreExclusive(exclusiveSize(bits), 1, 1, 1, 31, intRegNoZR(rn), intRegNoSP(rt)))
}

// Stlr emits "stlr{b,h} rt, [rn]".
func (a *Assembler) Stlr(bits byte, rt, rn asm.Register) {
	a.Emit4Bytes(encodeLoadStoreExclusive(exclusiveSize(bits), 1, 0, 1, 31, intRegNoZR(rn), intRegNoSP(rt)))
}

// B emits "b label".
func (a *Assembler) B(l asm.Label) {
	a.addFixup(l, fixupBranch26)
	a.Emit4Bytes(encodeUnconditionalBranch(false, 0))
}

// Bl emits "bl label".
func (a *Assembler) Bl(l asm.Label) {
	a.addFixup(l, fixupBranch26)
	a.Emit4Bytes(encodeUnconditionalBranch(true, 0))
}

// BCond emits "b.cond label".
func (a *Assembler) BCond(cond asm.ConditionalRegisterState, l asm.Label) {
	a.addFixup(l, fixupBranch19)
	a.Emit4Bytes(encodeConditionalBranch(uint32(cond), 0))
}

// Cbz emits "cbz rt, label".
func (a *Assembler) Cbz(_64bit bool, rt asm.Register, l asm.Label) {
	a.addFixup(l, fixupBranch19)
	a.Emit4Bytes(encodeCBZCBNZ(intRegNoSP(rt), false, 0, _64bit))
}

// Cbnz emits "cbnz rt, label".
func (a *Assembler) Cbnz(_64bit bool, rt asm.Register, l asm.Label) {
	a.addFixup(l, fixupBranch19)
	a.Emit4Bytes(encodeCBZCBNZ(intRegNoSP(rt), true, 0, _64bit))
}

// Adr emits "adr rd, label".
func (a *Assembler) Adr(rd asm.Register, l asm.Label) {
	a.addFixup(l, fixupADR)
	a.Emit4Bytes(encodeADR(intRegNoSP(rd), 0))
}

// Br emits "br rn".
func (a *Assembler) Br(rn asm.Register) {
	a.Emit4Bytes(encodeUnconditionalBranchRegister(0b0000, intRegNoSP(rn)))
}

// Blr emits "blr rn".
func (a *Assembler) Blr(rn asm.Register) {
	a.Emit4Bytes(encodeUnconditionalBranchRegister(0b0001, intRegNoSP(rn)))
}

// Ret emits "ret" returning to the link register.
func (a *Assembler) Ret() {
	// https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/RET--Return-from-subroutine-?lang=en
	a.Emit4Bytes(encodeUnconditionalBranchRegister(0b0010, RegisterNumber(RegLR)))
}

// Udf emits "udf #imm16", which raises an undefined instruction exception.
func (a *Assembler) Udf(imm16 uint16) {
	// https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/UDF--Permanently-Undefined-?lang=en
	a.Emit4Bytes(uint32(imm16))
}

// Brk emits "brk #imm16".
func (a *Assembler) Brk(imm16 uint16) {
	a.Emit4Bytes(0xd4200000 | uint32(imm16)<<5)
}

// Nop emits "nop".
func (a *Assembler) Nop() {
	a.Emit4Bytes(0xd503201f)
}

// DmbIsh emits "dmb ish".
func (a *Assembler) DmbIsh() {
	a.Emit4Bytes(0xd5033bbf)
}

// MrsFPSR emits "mrs rt, fpsr".
func (a *Assembler) MrsFPSR(rt asm.Register) {
	a.Emit4Bytes(encodeSystemRegisterMove(1, intRegNoSP(rt)))
}

// MsrFPSR emits "msr fpsr, rt".
func (a *Assembler) MsrFPSR(rt asm.Register) {
	a.Emit4Bytes(encodeSystemRegisterMove(0, intRegNoSP(rt)))
}

// FpuRRR emits a scalar "fadd|fsub|fmul|fdiv|fmax|fmin rd, rn, rm".
func (a *Assembler) FpuRRR(op FpuBinOp, _64bit bool, rd, rn, rm asm.Register) {
	a.Emit4Bytes(encodeFpuRRR(op, vecReg(rd), vecReg(rn), vecReg(rm), _64bit))
}

// FpuRR emits a scalar one-source operation like "fneg rd, rn".
func (a *Assembler) FpuRR(op FpuUniOp, _64bit bool, rd, rn asm.Register) {
	a.Emit4Bytes(encodeFpuRR(op, vecReg(rd), vecReg(rn), _64bit))
}

// Fcmp emits "fcmp rn, rm".
func (a *Assembler) Fcmp(_64bit bool, rn, rm asm.Register) {
	a.Emit4Bytes(encodeFpuCmp(vecReg(rn), vecReg(rm), _64bit))
}

// Fcsel emits "fcsel rd, rn, rm, cond".
func (a *Assembler) Fcsel(_64bit bool, rd, rn, rm asm.Register, cond asm.ConditionalRegisterState) {
	a.Emit4Bytes(encodeFpuCSel(vecReg(rd), vecReg(rn), vecReg(rm), uint32(cond), _64bit))
}

// FmovToGPR emits "fmov wd, sn" or "fmov xd, dn".
func (a *Assembler) FmovToGPR(_64bit bool, rd, rn asm.Register) {
	a.Emit4Bytes(encodeFpuIntConversion(0b00, 0b110, intRegNoSP(rd), vecReg(rn), _64bit, _64bit))
}

// FmovFromGPR emits "fmov sd, wn" or "fmov dd, xn".
func (a *Assembler) FmovFromGPR(_64bit bool, rd, rn asm.Register) {
	a.Emit4Bytes(encodeFpuIntConversion(0b00, 0b111, vecReg(rd), intRegNoSP(rn), _64bit, _64bit))
}

// Fcvtz emits "fcvtzs|fcvtzu rd, rn" converting the float in rn into an integer rounding towards zero.
func (a *Assembler) Fcvtz(signed, intIs64, floatIs64 bool, rd, rn asm.Register) {
	opcode := uint32(0b001)
	if signed {
		opcode = 0b000
	}
	a.Emit4Bytes(encodeFpuIntConversion(0b11, opcode, intRegNoSP(rd), vecReg(rn), intIs64, floatIs64))
}

// Cvtf emits "scvtf|ucvtf rd, rn" converting the integer in rn into a float.
func (a *Assembler) Cvtf(signed, intIs64, floatIs64 bool, rd, rn asm.Register) {
	opcode := uint32(0b011)
	if signed {
		opcode = 0b010
	}
	a.Emit4Bytes(encodeFpuIntConversion(0b00, opcode, vecReg(rd), intRegNoSP(rn), intIs64, floatIs64))
}

// Cnt8B emits "cnt vd.8b, vn.8b".
func (a *Assembler) Cnt8B(rd, rn asm.Register) {
	a.Emit4Bytes(0x0e205800 | vecReg(rn)<<5 | vecReg(rd))
}

// Uaddlv8B emits "uaddlv hd, vn.8b".
func (a *Assembler) Uaddlv8B(rd, rn asm.Register) {
	a.Emit4Bytes(0x2e303800 | vecReg(rn)<<5 | vecReg(rd))
}
