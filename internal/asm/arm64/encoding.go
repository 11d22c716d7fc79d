package arm64

import "fmt"

// This file holds pure functions returning the 32-bit instruction words.
// Register arguments are already the 5-bit encoding numbers.

func sfBit(_64bit bool) uint32 {
	if _64bit {
		return 1
	}
	return 0
}

// encodeLogicalShiftedRegister encodes as Logical (shifted register) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Register?lang=en
func encodeLogicalShiftedRegister(sf_opc uint32, shift_N uint32, rm uint32, imm6 uint32, rn, rd uint32) (ret uint32) {
	ret = sf_opc << 29
	ret |= 0b01010 << 24
	ret |= shift_N << 21
	ret |= rm << 16
	ret |= imm6 << 10
	ret |= rn << 5
	ret |= rd
	return
}

// encodeAddSubtractImmediate encodes as Add/subtract (immediate) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Immediate?lang=en
func encodeAddSubtractImmediate(sf_op_s uint32, sh uint32, imm12 uint32, rn, rd uint32) (ret uint32) {
	ret = sf_op_s << 29
	ret |= 0b100010 << 23
	ret |= sh << 22
	ret |= (imm12 & 0xfff) << 10
	ret |= rn << 5
	ret |= rd
	return
}

// encodeAddSubtractShiftedRegister encodes as Add/subtract (shifted register) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Register?lang=en#addsub_shift
func encodeAddSubtractShiftedRegister(sf_op_s uint32, shift uint32, rm, amount, rn, rd uint32) uint32 {
	return sf_op_s<<29 | 0b01011<<24 | shift<<22 | rm<<16 | (amount&0b111111)<<10 | rn<<5 | rd
}

// encodeAddSubtractExtendedRegister encodes as Add/subtract (extended register) with UXTX (64-bit)
// or UXTW (32-bit) and no shift, which is the only form accepting SP as the first operand.
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Register?lang=en#addsub_ext
func encodeAddSubtractExtendedRegister(sf_op_s uint32, rm, rn, rd uint32) uint32 {
	option := uint32(0b010)
	if sf_op_s&0b100 != 0 {
		option = 0b011
	}
	return sf_op_s<<29 | 0b01011_001<<21 | rm<<16 | option<<13 | rn<<5 | rd
}

// encodeLogicalImmediate encodes as Logical (immediate) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Immediate?lang=en
//
// imm must satisfy isBitMaskImmediate for the given width.
func encodeLogicalImmediate(sf_opc uint32, rd, rn uint32, imm uint64, _64bit bool) uint32 {
	n, immr, imms := bitmaskImmediate(imm, _64bit)
	return sf_opc<<29 | 0b100100<<23 | n<<22 | immr<<16 | imms<<10 | rn<<5 | rd
}

// encodeMoveWideImmediate encodes as either MOVZ, MOVN or MOVK, as Move wide (immediate) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Immediate?lang=en
//
// "shift" must have been divided by 16 at this point.
func encodeMoveWideImmediate(opc uint32, rd uint32, imm, shift uint64, _64bit bool) (ret uint32) {
	ret = rd
	ret |= uint32(imm&0xffff) << 5
	ret |= uint32(shift) << 21
	ret |= 0b100101 << 23
	ret |= opc << 29
	ret |= sfBit(_64bit) << 31
	return
}

// encodeBitfield encodes as "Bitfield" (SBFM/BFM/UBFM) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Immediate?lang=en#bitfield
func encodeBitfield(opc uint32, rd, rn, immr, imms uint32, _64bit bool) uint32 {
	sf := sfBit(_64bit)
	return sf<<31 | opc<<29 | 0b100110<<23 | sf<<22 | immr<<16 | imms<<10 | rn<<5 | rd
}

// encodeShiftImmediate encodes LSL/LSR/ASR (immediate) as the bitfield aliases.
func encodeShiftImmediate(op ShiftOp, rd, rn, amount uint32, _64bit bool) uint32 {
	width := uint32(32)
	if _64bit {
		width = 64
	}
	amount &= width - 1
	switch op {
	case ShiftLSL:
		// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/LSL--immediate---Logical-Shift-Left--immediate---an-alias-of-UBFM-?lang=en
		return encodeBitfield(0b10, rd, rn, (width-amount)&(width-1), width-1-amount, _64bit)
	case ShiftLSR:
		// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/LSR--immediate---Logical-Shift-Right--immediate---an-alias-of-UBFM-?lang=en
		return encodeBitfield(0b10, rd, rn, amount, width-1, _64bit)
	case ShiftASR:
		// https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/SBFM--Signed-Bitfield-Move-?lang=en
		return encodeBitfield(0b00, rd, rn, amount, width-1, _64bit)
	case ShiftROR:
		// ROR (immediate) is an alias of EXTR with both sources equal.
		// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/EXTR--Extract-register-
		sf := sfBit(_64bit)
		return sf<<31 | 0b00100111<<23 | sf<<22 | rn<<16 | amount<<10 | rn<<5 | rd
	}
	panic(fmt.Sprintf("BUG: invalid shift op %d", op))
}

// encodeExtend encodes extension instructions.
func encodeExtend(signed bool, from, to byte, rd, rn uint32) uint32 {
	// UTXB: https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/UXTB--Unsigned-Extend-Byte--an-alias-of-UBFM-?lang=en
	// UTXH: https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/UXTH--Unsigned-Extend-Halfword--an-alias-of-UBFM-?lang=en
	// STXB: https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/SXTB--Signed-Extend-Byte--an-alias-of-SBFM-
	// STXH: https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/SXTH--Sign-Extend-Halfword--an-alias-of-SBFM-
	// STXW: https://developer.arm.com/documentation/ddi0596/2020-12/Base-Instructions/SXTW--Sign-Extend-Word--an-alias-of-SBFM-
	switch {
	case !signed && (to == 32 || to == 64) && (from == 8 || from == 16):
		// The 32-bit form zeroes the upper half, so it serves both widths.
		return encodeBitfield(0b10, rd, rn, 0, uint32(from)-1, false)
	case !signed && from == 32 && to == 64:
		return encodeLogicalShiftedRegister(0b001, 0, rn, 0, 31, rd)
	case signed && to == 32 && (from == 8 || from == 16):
		return encodeBitfield(0b00, rd, rn, 0, uint32(from)-1, false)
	case signed && to == 64 && (from == 8 || from == 16 || from == 32):
		return encodeBitfield(0b00, rd, rn, 0, uint32(from)-1, true)
	}
	panic(fmt.Sprintf("BUG: invalid extension from %d to %d (signed=%v)", from, to, signed))
}

// encodeDataProcessing2Source encodes as Data-processing (2 source) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Register?lang=en
func encodeDataProcessing2Source(opcode uint32, rd, rn, rm uint32, _64bit bool) uint32 {
	return sfBit(_64bit)<<31 | 0b0_0_11010110<<21 | rm<<16 | opcode<<10 | rn<<5 | rd
}

// encodeDataProcessing1Source encodes as Data-processing (1 source) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Register?lang=en
func encodeDataProcessing1Source(opcode uint32, rd, rn uint32, _64bit bool) uint32 {
	return sfBit(_64bit)<<31 | 0b1_0_11010110<<21 | opcode<<10 | rn<<5 | rd
}

// encodeDataProcessing3Source encodes MADD (o0=0) and MSUB (o0=1) as Data-processing (3 source) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Register?lang=en
func encodeDataProcessing3Source(o0 uint32, rd, rn, rm, ra uint32, _64bit bool) uint32 {
	return sfBit(_64bit)<<31 | 0b11011<<24 | rm<<16 | o0<<15 | ra<<10 | rn<<5 | rd
}

// encodeConditionalSelect encodes as "Conditional select" in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Register?lang=en#condsel
//
// op2 is 0b00 for CSEL and 0b01 for CSINC.
func encodeConditionalSelect(op2 uint32, rd, rn, rm uint32, cond uint32, _64bit bool) uint32 {
	return sfBit(_64bit)<<31 | 0b11010100<<21 | rm<<16 | cond<<12 | op2<<10 | rn<<5 | rd
}

// encodeLoadOrStoreUnsignedImm12 encodes as "unsigned immediate" in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Loads-and-Stores?lang=en
//
// imm12 is already divided by the access size.
func encodeLoadOrStoreUnsignedImm12(_22to31 uint32, rn, rt uint32, imm12 uint32) uint32 {
	return _22to31<<22 | 0b1<<24 | (imm12&0xfff)<<10 | rn<<5 | rt
}

// encodeLoadOrStoreSIMM9 encodes store/load instruction as one of post-index, pre-index or unscaled immediate as in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Loads-and-Stores?lang=en
func encodeLoadOrStoreSIMM9(_22to31, _1011 uint32, rn, rt uint32, imm9 int64) uint32 {
	return _22to31<<22 | (uint32(imm9)&0b111111111)<<12 | _1011<<10 | rn<<5 | rt
}

// encodeLoadOrStoreRegisterOffset encodes store/load instruction as "register offset" with LSL #0 in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Loads-and-Stores?lang=en
func encodeLoadOrStoreRegisterOffset(_22to31 uint32, rn, rm, rt uint32) uint32 {
	return _22to31<<22 | 0b1<<21 | rm<<16 | 0b011<<13 | 0b10<<10 | rn<<5 | rt
}

// encodeLoadOrStorePair64 encodes 64-bit LDP/STP. mode is 0b001 for post-index, 0b010 for signed offset and
// 0b011 for pre-index.
// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/LDP--Load-Pair-of-Registers-
// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/STP--Store-Pair-of-Registers-
func encodeLoadOrStorePair64(mode uint32, load bool, rn, rt, rt2 uint32, imm7 int64) (ret uint32) {
	if imm7%8 != 0 {
		panic("BUG: imm7 for pair load/store must be a multiple of 8")
	}
	imm7 /= 8
	ret = rt
	ret |= rn << 5
	ret |= rt2 << 10
	ret |= (uint32(imm7) & 0b1111111) << 15
	if load {
		ret |= 0b1 << 22
	}
	ret |= mode << 23
	ret |= 0b10_101_0_000 << 23
	return
}

// encodeLoadStoreExclusive encodes LDAXR/STLXR/LDAR/STLR as "Load/store exclusive" in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Loads-and-Stores?lang=en
//
// size is log2 of the access size in bytes.
func encodeLoadStoreExclusive(size uint32, o2, l, o0 uint32, rs, rn, rt uint32) uint32 {
	return size<<30 | 0b001000<<24 | o2<<23 | l<<22 | rs<<16 | o0<<15 | 0b11111<<10 | rn<<5 | rt
}

// encodeUnconditionalBranch encodes as B or BL instructions:
// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/B--Branch-
// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/BL--Branch-with-Link-
func encodeUnconditionalBranch(link bool, imm26 int64) (ret uint32) {
	if imm26%4 != 0 {
		panic("BUG: imm26 for branch must be a multiple of 4")
	}
	imm26 /= 4
	ret = uint32(imm26 & 0b11_11111111_11111111_11111111)
	ret |= 0b101 << 26
	if link {
		ret |= 0b1 << 31
	}
	return
}

// encodeConditionalBranch encodes B.cond:
// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/B-cond--Branch-conditionally-
func encodeConditionalBranch(cond uint32, imm19 int64) uint32 {
	return 0b01010100<<24 | (uint32(imm19/4)&0x7ffff)<<5 | cond
}

// encodeCBZCBNZ encodes as either CBZ or CBNZ:
// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/CBZ--Compare-and-Branch-on-Zero-
// https://developer.arm.com/documentation/ddi0596/2021-12/Base-Instructions/CBNZ--Compare-and-Branch-on-Nonzero-
func encodeCBZCBNZ(rt uint32, nz bool, imm19 int64, _64bit bool) (ret uint32) {
	ret = rt
	ret |= (uint32(imm19/4) & 0x7ffff) << 5
	if nz {
		ret |= 1 << 24
	}
	ret |= 0b11010 << 25
	ret |= sfBit(_64bit) << 31
	return
}

// encodeUnconditionalBranchRegister encodes BR (opc=0b0000), BLR (0b0001) and RET (0b0010).
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Branches--Exception-Generating-and-System-instructions?lang=en
func encodeUnconditionalBranchRegister(opc uint32, rn uint32) uint32 {
	return 0b1101011<<25 | opc<<21 | 0b11111<<16 | rn<<5
}

// encodeADR encodes ADR with a byte offset.
// https://developer.arm.com/documentation/ddi0602/2022-06/Base-Instructions/ADR--Form-PC-relative-address-
func encodeADR(rd uint32, off int64) uint32 {
	u := uint32(off)
	return (u&0b11)<<29 | 0b1<<28 | ((u>>2)&0x7ffff)<<5 | rd
}

// encodeFpuRRR encodes as single or double precision (depending on `_64bit`) of Floating-point data-processing (2 source) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Scalar-Floating-Point-and-Advanced-SIMD?lang=en
func encodeFpuRRR(op FpuBinOp, rd, rn, rm uint32, _64bit bool) (ret uint32) {
	var opcode uint32
	switch op {
	case FpuBinOpAdd:
		opcode = 0b0010
	case FpuBinOpSub:
		opcode = 0b0011
	case FpuBinOpMul:
		opcode = 0b0000
	case FpuBinOpDiv:
		opcode = 0b0001
	case FpuBinOpMax:
		opcode = 0b0100
	case FpuBinOpMin:
		opcode = 0b0101
	default:
		panic("BUG")
	}
	return 0b1111<<25 | sfBit(_64bit)<<22 | 0b1<<21 | rm<<16 | opcode<<12 | 0b1<<11 | rn<<5 | rd
}

// encodeFpuRR encodes as Floating-point data-processing (1 source) in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Scalar-Floating-Point-and-Advanced-SIMD?lang=en
func encodeFpuRR(op FpuUniOp, rd, rn uint32, _64bit bool) uint32 {
	var opcode uint32
	ftype := sfBit(_64bit)
	switch op {
	case FpuUniOpMov:
		opcode = 0b000000
	case FpuUniOpAbs:
		opcode = 0b000001
	case FpuUniOpNeg:
		opcode = 0b000010
	case FpuUniOpSqrt:
		opcode = 0b000011
	case FpuUniOpCvt:
		// The source precision is the ftype, the destination the opcode.
		if _64bit {
			opcode = 0b000100
		} else {
			opcode = 0b000101
		}
	case FpuUniOpRoundNearest:
		opcode = 0b001000
	case FpuUniOpRoundPlus:
		opcode = 0b001001
	case FpuUniOpRoundMinus:
		opcode = 0b001010
	case FpuUniOpRoundZero:
		opcode = 0b001011
	default:
		panic("BUG")
	}
	return 0b1111<<25 | ftype<<22 | 0b1<<21 | opcode<<15 | 0b10000<<10 | rn<<5 | rd
}

// encodeFpuCmp encodes FCMP (register).
// https://developer.arm.com/documentation/ddi0596/2020-12/SIMD-FP-Instructions/FCMP--Floating-point-quiet-Compare--scalar--?lang=en
func encodeFpuCmp(rn, rm uint32, _64bit bool) uint32 {
	return 0b1111<<25 | sfBit(_64bit)<<22 | 1<<21 | rm<<16 | 0b1<<13 | rn<<5
}

func encodeFpuCSel(rd, rn, rm uint32, cond uint32, _64bit bool) uint32 {
	return 0b1111<<25 | sfBit(_64bit)<<22 | 0b1<<21 | rm<<16 | cond<<12 | 0b11<<10 | rn<<5 | rd
}

// encodeFpuIntConversion encodes as Conversion between floating-point and integer in
// https://developer.arm.com/documentation/ddi0596/2020-12/Index-by-Encoding/Data-Processing----Scalar-Floating-Point-and-Advanced-SIMD?lang=en
func encodeFpuIntConversion(rmode, opcode uint32, rd, rn uint32, intIs64, floatIs64 bool) uint32 {
	return sfBit(intIs64)<<31 | 0b11110<<24 | sfBit(floatIs64)<<22 | 1<<21 | rmode<<19 | opcode<<16 | rn<<5 | rd
}

// encodeSystemRegisterMove encodes MRS (l=1) and MSR (l=0) for FPSR (op0=3, op1=3, CRn=4, CRm=4, op2=1).
// https://developer.arm.com/documentation/ddi0595/2021-12/AArch64-Registers/FPSR--Floating-point-Status-Register
func encodeSystemRegisterMove(l uint32, rt uint32) uint32 {
	return 0b1101010100<<22 | l<<21 | 0b1<<20 | 0b1<<19 | 0b011<<16 | 0b0100<<12 | 0b0100<<8 | 0b001<<5 | rt
}

// isBitMaskImmediate determines if the value can be encoded as "bitmask immediate".
//
//	Such an immediate is a 32-bit or 64-bit pattern viewed as a vector of identical elements of size e = 2, 4, 8, 16, 32, or 64 bits.
//	Each element contains the same sub-pattern: a single run of 1 to e-1 non-zero bits, rotated by 0 to e-1 bits.
//
// See https://developer.arm.com/documentation/dui0802/b/A64-General-Instructions/MOV--bitmask-immediate-
func isBitMaskImmediate(x uint64, _64bit bool) bool {
	if !_64bit {
		x &= 0xffffffff
		x |= x << 32
	}
	// All zeros and ones are not "bitmask immediate" by definition.
	if x == 0 || x == 0xffff_ffff_ffff_ffff {
		return false
	}

	switch {
	case x != x>>32|x<<32:
		// e = 64
	case x != x>>16|x<<48:
		// e = 32 (x == x>>32|x<<32).
		// e.g. 0x00ff_ff00_00ff_ff00
		x = uint64(int32(x))
	case x != x>>8|x<<56:
		// e = 16 (x == x>>16|x<<48).
		// e.g. 0x00ff_00ff_00ff_00ff
		x = uint64(int16(x))
	case x != x>>4|x<<60:
		// e = 8 (x == x>>8|x<<56).
		// e.g. 0x0f0f_0f0f_0f0f_0f0f
		x = uint64(int8(x))
	default:
		// e = 4 or 2.
		return true
	}
	return sequenceOfSetbits(x) || sequenceOfSetbits(^x)
}

// sequenceOfSetbits returns true if the number's binary representation is the sequence set bit (1).
// For example: 0b1110 -> true, 0b1010 -> false
func sequenceOfSetbits(x uint64) bool {
	y := getLowestBit(x)
	// If x is a sequence of set bit, this should results in the number
	// with only one set bit (i.e. power of two).
	y += x
	return (y-1)&y == 0
}

func getLowestBit(x uint64) uint64 {
	// See https://stackoverflow.com/questions/12247186/find-the-lowest-set-bit
	return x & (^x + 1)
}

// bitmaskImmediate returns the N, immr and imms fields for c, which must satisfy isBitMaskImmediate.
//
// See the following article for understanding the encoding.
// https://dinfuehr.github.io/blog/encoding-of-immediate-values-on-aarch64/
func bitmaskImmediate(c uint64, _64bit bool) (n, immr, imms uint32) {
	if !_64bit {
		c &= 0xffffffff
		c |= c << 32
	}
	var size uint32
	switch {
	case c != c>>32|c<<32:
		size = 64
	case c != c>>16|c<<48:
		size = 32
		c = uint64(int32(c))
	case c != c>>8|c<<56:
		size = 16
		c = uint64(int16(c))
	case c != c>>4|c<<60:
		size = 8
		c = uint64(int8(c))
	case c != c>>2|c<<62:
		size = 4
		c = uint64(int64(c<<60) >> 60)
	default:
		size = 2
		c = uint64(int64(c<<62) >> 62)
	}

	neg := false
	if int64(c) < 0 {
		c = ^c
		neg = true
	}

	onesSize, nonZeroPos := getOnesSequenceSize(c)
	if neg {
		nonZeroPos = onesSize + nonZeroPos
		onesSize = size - onesSize
	}

	if size == 64 {
		n = 1
	}
	immr = (size - nonZeroPos) & (size - 1)
	imms = (onesSize - 1) | 63&^(size<<1-1)
	return
}

func getOnesSequenceSize(x uint64) (size, nonZeroPos uint32) {
	// Take 0b00111000 for example:
	y := getLowestBit(x)               // = 0b0000100
	nonZeroPos = setBitPos(y)          // = 2
	size = setBitPos(x+y) - nonZeroPos // = setBitPos(0b0100000) - 2 = 5 - 2 = 3
	return
}

func setBitPos(x uint64) (ret uint32) {
	for ; ; ret++ {
		if x == 0b1 {
			break
		}
		x = x >> 1
	}
	return
}
