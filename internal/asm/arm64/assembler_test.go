package arm64

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	goarm64 "github.com/twitchyliquid64/golang-asm/obj/arm64"
	"golang.org/x/arch/arm64/arm64asm"

	"github.com/tetratelabs/singlepass/internal/asm"
)

func TestAssembler_encode(t *testing.T) {
	tests := []struct {
		want  string
		setup func(a *Assembler)
	}{
		{want: "e00301aa", setup: func(a *Assembler) { a.MovRegister(true, RegR0, RegR1) }}, // mov x0, x1
		{want: "e303042a", setup: func(a *Assembler) { a.MovRegister(false, RegR3, RegR4) }}, // mov w3, w4
		{want: "7f030091", setup: func(a *Assembler) { a.MovRegister(true, RegSP, RegR27) }}, // mov sp, x27
		{want: "fd030091", setup: func(a *Assembler) { a.MovRegister(true, RegR29, RegSP) }}, // mov x29, sp
		{want: "8046a2d2", setup: func(a *Assembler) { a.Movz(true, RegR0, 0x1234, 1) }}, // movz x0, #0x1234, lsl #16
		{want: "1a00e0f2", setup: func(a *Assembler) { a.Movk(true, RegR26, 0, 3) }}, // movk x26, #0, lsl #48
		{want: "e5008012", setup: func(a *Assembler) { a.Movn(false, RegR5, 7, 0) }}, // movn w5, #7
		{want: "20400091", setup: func(a *Assembler) { a.AddImm(true, RegR0, RegR1, 16) }}, // add x0, x1, #16
		{want: "20044091", setup: func(a *Assembler) { a.AddImm(true, RegR0, RegR1, 4096) }}, // add x0, x1, #4096
		{want: "ff4300d1", setup: func(a *Assembler) { a.SubImm(true, RegSP, RegSP, 16) }}, // sub sp, sp, #16
		{want: "62fc0371", setup: func(a *Assembler) { a.SubsImm(false, RegR2, RegR3, 255) }}, // subs w2, w3, #255
		{want: "2000028b", setup: func(a *Assembler) { a.Add(true, RegR0, RegR1, RegR2) }}, // add x0, x1, x2
		{want: "ff63218b", setup: func(a *Assembler) { a.Add(true, RegSP, RegSP, RegR1) }}, // add sp, sp, x1
		{want: "e36324cb", setup: func(a *Assembler) { a.Sub(true, RegR3, RegSP, RegR4) }}, // sub x3, sp, x4
		{want: "2000022b", setup: func(a *Assembler) { a.Adds(false, RegR0, RegR1, RegR2) }}, // adds w0, w1, w2
		{want: "200002eb", setup: func(a *Assembler) { a.Subs(true, RegR0, RegR1, RegR2) }}, // subs x0, x1, x2
		{want: "2008028b", setup: func(a *Assembler) { a.AddShifted(true, RegR0, RegR1, RegR2, ShiftLSL, 2) }}, // add x0, x1, x2, lsl #2
		{want: "bf0000f1", setup: func(a *Assembler) { a.CmpImm(true, RegR5, 0) }}, // cmp x5, #0
		{want: "3f00026b", setup: func(a *Assembler) { a.Cmp(false, RegR1, RegR2) }}, // cmp w1, w2
		{want: "3f0400b1", setup: func(a *Assembler) { a.CmnImm(true, RegR1, 1) }}, // cmn x1, #1
		{want: "7f040031", setup: func(a *Assembler) { a.CmnImm(false, RegR3, 1) }}, // cmn w3, #1
		{want: "e00301cb", setup: func(a *Assembler) { a.Neg(true, RegR0, RegR1) }}, // neg x0, x1
		{want: "2000028a", setup: func(a *Assembler) { a.Logical(LogicalAnd, true, RegR0, RegR1, RegR2) }}, // and x0, x1, x2
		{want: "2000022a", setup: func(a *Assembler) { a.Logical(LogicalOrr, false, RegR0, RegR1, RegR2) }}, // orr w0, w1, w2
		{want: "830005ca", setup: func(a *Assembler) { a.Logical(LogicalEor, true, RegR3, RegR4, RegR5) }}, // eor x3, x4, x5
		{want: "1f0001ea", setup: func(a *Assembler) { a.Tst(true, RegR0, RegR1) }}, // tst x0, x1
		{want: "1f040072", setup: func(a *Assembler) { a.TstImm(false, RegR0, 3) }}, // tst w0, #3
		{want: "3f0440f2", setup: func(a *Assembler) { a.TstImm(true, RegR1, 3) }}, // tst x1, #3
		{want: "21780012", setup: func(a *Assembler) { a.LogicalImm(LogicalAnd, false, RegR1, RegR1, 0x7fffffff) }}, // and w1, w1, #0x7fffffff
		{want: "21004192", setup: func(a *Assembler) { a.LogicalImm(LogicalAnd, true, RegR1, RegR1, 0x8000000000000000) }}, // and x1, x1, #0x8000000000000000
		{want: "219c08b2", setup: func(a *Assembler) { a.LogicalImm(LogicalOrr, true, RegR1, RegR1, 0xff00ff00ff00ff00) }}, // orr x1, x1, #0xff00ff00ff00ff00
		{want: "2020c21a", setup: func(a *Assembler) { a.ShiftReg(ShiftLSL, false, RegR0, RegR1, RegR2) }}, // lsl w0, w1, w2
		{want: "2024c29a", setup: func(a *Assembler) { a.ShiftReg(ShiftLSR, true, RegR0, RegR1, RegR2) }}, // lsr x0, x1, x2
		{want: "2028c29a", setup: func(a *Assembler) { a.ShiftReg(ShiftASR, true, RegR0, RegR1, RegR2) }}, // asr x0, x1, x2
		{want: "202cc21a", setup: func(a *Assembler) { a.ShiftReg(ShiftROR, false, RegR0, RegR1, RegR2) }}, // ror w0, w1, w2
		{want: "20ec7cd3", setup: func(a *Assembler) { a.ShiftImm(ShiftLSL, true, RegR0, RegR1, 4) }}, // lsl x0, x1, #4
		{want: "207c0353", setup: func(a *Assembler) { a.ShiftImm(ShiftLSR, false, RegR0, RegR1, 3) }}, // lsr w0, w1, #3
		{want: "20fc7f93", setup: func(a *Assembler) { a.ShiftImm(ShiftASR, true, RegR0, RegR1, 63) }}, // asr x0, x1, #63
		{want: "200c8113", setup: func(a *Assembler) { a.ShiftImm(ShiftROR, false, RegR0, RegR1, 3) }}, // ror w0, w1, #3
		{want: "2008c21a", setup: func(a *Assembler) { a.Udiv(false, RegR0, RegR1, RegR2) }}, // udiv w0, w1, w2
		{want: "200cc29a", setup: func(a *Assembler) { a.Sdiv(true, RegR0, RegR1, RegR2) }}, // sdiv x0, x1, x2
		{want: "207c029b", setup: func(a *Assembler) { a.Mul(true, RegR0, RegR1, RegR2) }}, // mul x0, x1, x2
		{want: "208c021b", setup: func(a *Assembler) { a.Msub(false, RegR0, RegR1, RegR2, RegR3) }}, // msub w0, w1, w2, w3
		{want: "2010c0da", setup: func(a *Assembler) { a.Clz(true, RegR0, RegR1) }}, // clz x0, x1
		{want: "2000c05a", setup: func(a *Assembler) { a.Rbit(false, RegR0, RegR1) }}, // rbit w0, w1
		{want: "e0179f1a", setup: func(a *Assembler) { a.Cset(false, RegR0, CondEQ) }}, // cset w0, eq
		{want: "e0979f9a", setup: func(a *Assembler) { a.Cset(true, RegR0, CondHI) }}, // cset x0, hi
		{want: "2010829a", setup: func(a *Assembler) { a.Csel(true, RegR0, RegR1, RegR2, CondNE) }}, // csel x0, x1, x2, ne
		{want: "201c0053", setup: func(a *Assembler) { a.Extend(false, 8, 32, RegR0, RegR1) }}, // uxtb w0, w1
		{want: "203c0053", setup: func(a *Assembler) { a.Extend(false, 16, 64, RegR0, RegR1) }}, // uxth w0, w1
		{want: "201c0013", setup: func(a *Assembler) { a.Extend(true, 8, 32, RegR0, RegR1) }}, // sxtb w0, w1
		{want: "203c4093", setup: func(a *Assembler) { a.Extend(true, 16, 64, RegR0, RegR1) }}, // sxth x0, w1
		{want: "207c4093", setup: func(a *Assembler) { a.Extend(true, 32, 64, RegR0, RegR1) }}, // sxtw x0, w1
		{want: "e003012a", setup: func(a *Assembler) { a.Extend(false, 32, 64, RegR0, RegR1) }}, // mov w0, w1
		{want: "200440f9", setup: func(a *Assembler) { a.LoadStoreScaled(Load64, RegR0, RegR1, 8) }}, // ldr x0, [x1, #8]
		{want: "801340b9", setup: func(a *Assembler) { a.LoadStoreScaled(Load32U, RegR0, RegR28, 16) }}, // ldr w0, [x28, #16]
		{want: "20004039", setup: func(a *Assembler) { a.LoadStoreScaled(Load8U, RegR0, RegR1, 0) }}, // ldrb w0, [x1]
		{want: "2004c039", setup: func(a *Assembler) { a.LoadStoreScaled(Load8S32, RegR0, RegR1, 1) }}, // ldrsb w0, [x1, #1]
		{want: "20048039", setup: func(a *Assembler) { a.LoadStoreScaled(Load8S64, RegR0, RegR1, 1) }}, // ldrsb x0, [x1, #1]
		{want: "2004c079", setup: func(a *Assembler) { a.LoadStoreScaled(Load16S32, RegR0, RegR1, 2) }}, // ldrsh w0, [x1, #2]
		{want: "200480b9", setup: func(a *Assembler) { a.LoadStoreScaled(Load32S64, RegR0, RegR1, 4) }}, // ldrsw x0, [x1, #4]
		{want: "20040079", setup: func(a *Assembler) { a.LoadStoreScaled(Store16, RegR0, RegR1, 2) }}, // strh w0, [x1, #2]
		{want: "e00700f9", setup: func(a *Assembler) { a.LoadStoreScaled(Store64, RegR0, RegSP, 8) }}, // str x0, [sp, #8]
		{want: "e00700fd", setup: func(a *Assembler) { a.LoadStoreScaled(StoreF64, RegV0, RegSP, 8) }}, // str d0, [sp, #8]
		{want: "410440bd", setup: func(a *Assembler) { a.LoadStoreScaled(LoadF32, RegV1, RegR2, 4) }}, // ldr s1, [x2, #4]
		{want: "60035ff8", setup: func(a *Assembler) { a.LoadStoreUnscaled(Load64, RegR0, RegR27, -16) }}, // ldur x0, [x27, #-16]
		{want: "61c31fb8", setup: func(a *Assembler) { a.LoadStoreUnscaled(Store32, RegR1, RegR27, -4) }}, // stur w1, [x27, #-4]
		{want: "1f8400f8", setup: func(a *Assembler) { a.LoadStorePostIndex(Store64, RegRZR, RegR0, 8) }}, // str xzr, [x0], #8
		{want: "e10f1ff8", setup: func(a *Assembler) { a.LoadStorePreIndex(Store64, RegR1, RegSP, -16) }}, // str x1, [sp, #-16]!
		{want: "206862f8", setup: func(a *Assembler) { a.LoadStoreRegisterOffset(Load64, RegR0, RegR1, RegR2) }}, // ldr x0, [x1, x2]
		{want: "20682238", setup: func(a *Assembler) { a.LoadStoreRegisterOffset(Store8, RegR0, RegR1, RegR2) }}, // strb w0, [x1, x2]
		{want: "fb7bbfa9", setup: func(a *Assembler) { a.Stp(PairPreIndex, RegR27, RegR30, RegSP, -16) }}, // stp x27, x30, [sp, #-16]!
		{want: "fb7bc1a8", setup: func(a *Assembler) { a.Ldp(PairPostIndex, RegR27, RegR30, RegSP, 16) }}, // ldp x27, x30, [sp], #16
		{want: "fd7b01a9", setup: func(a *Assembler) { a.Stp(PairOffset, RegR29, RegR30, RegSP, 16) }}, // stp x29, x30, [sp, #16]
		{want: "20fc5fc8", setup: func(a *Assembler) { a.Ldaxr(64, RegR0, RegR1) }}, // ldaxr x0, [x1]
		{want: "20fc5f08", setup: func(a *Assembler) { a.Ldaxr(8, RegR0, RegR1) }}, // ldaxrb w0, [x1]
		{want: "20fc5f48", setup: func(a *Assembler) { a.Ldaxr(16, RegR0, RegR1) }}, // ldaxrh w0, [x1]
		{want: "20fc02c8", setup: func(a *Assembler) { a.Stlxr(64, RegR2, RegR0, RegR1) }}, // stlxr w2, x0, [x1]
		{want: "20fc0208", setup: func(a *Assembler) { a.Stlxr(8, RegR2, RegR0, RegR1) }}, // stlxrb w2, w0, [x1]
		{want: "20fcdf88", setup: func(a *Assembler) { a.Ldar(32, RegR0, RegR1) }}, // ldar w0, [x1]
		{want: "20fc9fc8", setup: func(a *Assembler) { a.Stlr(64, RegR0, RegR1) }}, // stlr x0, [x1]
		{want: "20021fd6", setup: func(a *Assembler) { a.Br(RegR17) }}, // br x17
		{want: "40033fd6", setup: func(a *Assembler) { a.Blr(RegR26) }}, // blr x26
		{want: "c0035fd6", setup: func(a *Assembler) { a.Ret() }}, // ret
		{want: "000020d4", setup: func(a *Assembler) { a.Brk(0) }}, // brk #0
		{want: "1f2003d5", setup: func(a *Assembler) { a.Nop() }}, // nop
		{want: "bf3b03d5", setup: func(a *Assembler) { a.DmbIsh() }}, // dmb ish
		{want: "20443bd5", setup: func(a *Assembler) { a.MrsFPSR(RegR0) }}, // mrs x0, fpsr
		{want: "3f441bd5", setup: func(a *Assembler) { a.MsrFPSR(RegRZR) }}, // msr fpsr, xzr
		{want: "2028221e", setup: func(a *Assembler) { a.FpuRRR(FpuBinOpAdd, false, RegV0, RegV1, RegV2) }}, // fadd s0, s1, s2
		{want: "2038621e", setup: func(a *Assembler) { a.FpuRRR(FpuBinOpSub, true, RegV0, RegV1, RegV2) }}, // fsub d0, d1, d2
		{want: "8308651e", setup: func(a *Assembler) { a.FpuRRR(FpuBinOpMul, true, RegV3, RegV4, RegV5) }}, // fmul d3, d4, d5
		{want: "2018221e", setup: func(a *Assembler) { a.FpuRRR(FpuBinOpDiv, false, RegV0, RegV1, RegV2) }}, // fdiv s0, s1, s2
		{want: "2048621e", setup: func(a *Assembler) { a.FpuRRR(FpuBinOpMax, true, RegV0, RegV1, RegV2) }}, // fmax d0, d1, d2
		{want: "2058221e", setup: func(a *Assembler) { a.FpuRRR(FpuBinOpMin, false, RegV0, RegV1, RegV2) }}, // fmin s0, s1, s2
		{want: "2040601e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpMov, true, RegV0, RegV1) }}, // fmov d0, d1
		{want: "20c0201e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpAbs, false, RegV0, RegV1) }}, // fabs s0, s1
		{want: "2040611e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpNeg, true, RegV0, RegV1) }}, // fneg d0, d1
		{want: "20c0211e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpSqrt, false, RegV0, RegV1) }}, // fsqrt s0, s1
		{want: "20c0221e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpCvt, false, RegV0, RegV1) }}, // fcvt d0, s1
		{want: "2040621e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpCvt, true, RegV0, RegV1) }}, // fcvt s0, d1
		{want: "2040641e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpRoundNearest, true, RegV0, RegV1) }}, // frintn d0, d1
		{want: "20c0241e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpRoundPlus, false, RegV0, RegV1) }}, // frintp s0, s1
		{want: "2040651e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpRoundMinus, true, RegV0, RegV1) }}, // frintm d0, d1
		{want: "20c0251e", setup: func(a *Assembler) { a.FpuRR(FpuUniOpRoundZero, false, RegV0, RegV1) }}, // frintz s0, s1
		{want: "0020611e", setup: func(a *Assembler) { a.Fcmp(true, RegV0, RegV1) }}, // fcmp d0, d1
		{want: "4020231e", setup: func(a *Assembler) { a.Fcmp(false, RegV2, RegV3) }}, // fcmp s2, s3
		{want: "206c621e", setup: func(a *Assembler) { a.Fcsel(true, RegV0, RegV1, RegV2, CondVS) }}, // fcsel d0, d1, d2, vs
		{want: "2000261e", setup: func(a *Assembler) { a.FmovToGPR(false, RegR0, RegV1) }}, // fmov w0, s1
		{want: "2000669e", setup: func(a *Assembler) { a.FmovToGPR(true, RegR0, RegV1) }}, // fmov x0, d1
		{want: "2000271e", setup: func(a *Assembler) { a.FmovFromGPR(false, RegV0, RegR1) }}, // fmov s0, w1
		{want: "2000679e", setup: func(a *Assembler) { a.FmovFromGPR(true, RegV0, RegR1) }}, // fmov d0, x1
		{want: "2000381e", setup: func(a *Assembler) { a.Fcvtz(true, false, false, RegR0, RegV1) }}, // fcvtzs w0, s1
		{want: "2000799e", setup: func(a *Assembler) { a.Fcvtz(false, true, true, RegR0, RegV1) }}, // fcvtzu x0, d1
		{want: "2000389e", setup: func(a *Assembler) { a.Fcvtz(true, true, false, RegR0, RegV1) }}, // fcvtzs x0, s1
		{want: "2000791e", setup: func(a *Assembler) { a.Fcvtz(false, false, true, RegR0, RegV1) }}, // fcvtzu w0, d1
		{want: "2000221e", setup: func(a *Assembler) { a.Cvtf(true, false, false, RegV0, RegR1) }}, // scvtf s0, w1
		{want: "2000639e", setup: func(a *Assembler) { a.Cvtf(false, true, true, RegV0, RegR1) }}, // ucvtf d0, x1
		{want: "2000621e", setup: func(a *Assembler) { a.Cvtf(true, false, true, RegV0, RegR1) }}, // scvtf d0, w1
		{want: "2000239e", setup: func(a *Assembler) { a.Cvtf(false, true, false, RegV0, RegR1) }}, // ucvtf s0, x1
		{want: "2058200e", setup: func(a *Assembler) { a.Cnt8B(RegV0, RegV1) }}, // cnt v0.8b, v1.8b
		{want: "2038302e", setup: func(a *Assembler) { a.Uaddlv8B(RegV0, RegV1) }}, // uaddlv h0, v1.8b
	}

	for _, tc := range tests {
		tc := tc
		a := NewAssembler()
		tc.setup(a)
		actual, err := a.Assemble()
		require.NoError(t, err)
		require.Equal(t, tc.want, hex.EncodeToString(actual))
	}
}

func TestAssembler_MovImm(t *testing.T) {
	tests := []struct {
		want  string
		setup func(a *Assembler)
	}{
		{want: "00008092", setup: func(a *Assembler) { a.MovImm(true, RegR0, 0xffffffffffffffff) }}, // mov x0, #-1
		{want: "00008012", setup: func(a *Assembler) { a.MovImm(false, RegR0, 0xffffffff) }}, // mov w0, #-1
		{want: "e07f40b2", setup: func(a *Assembler) { a.MovImm(true, RegR0, 0xffffffff) }}, // mov x0, #0xffffffff
		{want: "010080d2", setup: func(a *Assembler) { a.MovImm(true, RegR1, 0) }}, // movz x1, #0
		{want: "02028052", setup: func(a *Assembler) { a.MovImm(false, RegR2, 0x10) }}, // movz w2, #0x10
		{want: "0200b052", setup: func(a *Assembler) { a.MovImm(false, RegR2, 0x80000000) }}, // movz w2, #0x8000, lsl #16
		{want: "0200f0d2", setup: func(a *Assembler) { a.MovImm(true, RegR2, 0x8000000000000000) }}, // movz x2, #0x8000, lsl #48
		{want: "03cf8a528346a272", setup: func(a *Assembler) { a.MovImm(false, RegR3, 0x12345678) }}, // movz w3, #0x5678; movk w3, #0x1234, lsl #16
		{want: "04008092", setup: func(a *Assembler) { a.MovImm(true, RegR4, 0xffffffffffffffff) }}, // movn x4, #0
		{want: "64468292", setup: func(a *Assembler) { a.MovImm(true, RegR4, 0xffffffffffffedcc) }}, // movn x4, #0x1233
		{want: "05de9bd28557b3f205cfcaf28546e2f2", setup: func(a *Assembler) { a.MovImm(true, RegR5, 0x123456789abcdef0) }}, // movz x5, #0xdef0; movk x5, #0x9abc, lsl #16; movk x5, #0x5678, lsl #32; movk x5, #0x1234, lsl #48
		{want: "260080928646c2f2", setup: func(a *Assembler) { a.MovImm(true, RegR6, 0xffff1234fffffffe) }}, // movn x6, #0x1; movk x6, #0x1234, lsl #32
		{want: "e7f300b2", setup: func(a *Assembler) { a.MovImm(true, RegR7, 0x5555555555555555) }}, // orr x7, xzr, #0x5555555555555555
		{want: "e79f0032", setup: func(a *Assembler) { a.MovImm(false, RegR7, 0x00ff00ff) }}, // orr w7, wzr, #0x00ff00ff
	}

	for _, tc := range tests {
		tc := tc
		a := NewAssembler()
		tc.setup(a)
		require.Equal(t, tc.want, hex.EncodeToString(a.Bytes()))
	}
}

func TestAssembler_labels(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		offset int
		setup  func(a *Assembler)
	}{
		{
			name: "b forward", want: "03000014", offset: 0,
			setup: func(a *Assembler) {
				l := a.NewLabel()
				a.B(l)
				a.Nop()
				a.Nop()
				a.BindLabel(l)
				a.Nop()
			},
		},
		{
			name: "b.ne backward", want: "e1ffff54", offset: 4,
			setup: func(a *Assembler) {
				l := a.NewLabel()
				a.BindLabel(l)
				a.Nop()
				a.BCond(CondNE, l)
			},
		},
		{
			name: "cbz forward", want: "410000b4", offset: 0,
			setup: func(a *Assembler) {
				l := a.NewLabel()
				a.Cbz(true, RegR1, l)
				a.Nop()
				a.BindLabel(l)
			},
		},
		{
			name: "cbnz backward", want: "c2ffff35", offset: 8,
			setup: func(a *Assembler) {
				l := a.NewLabel()
				a.BindLabel(l)
				a.Nop()
				a.Nop()
				a.Cbnz(false, RegR2, l)
			},
		},
		{
			name: "adr forward", want: "40000010", offset: 0,
			setup: func(a *Assembler) {
				l := a.NewLabel()
				a.Adr(RegR0, l)
				a.Nop()
				a.BindLabel(l)
			},
		},
		{
			name: "adr backward", want: "e3ffff10", offset: 4,
			setup: func(a *Assembler) {
				l := a.NewLabel()
				a.BindLabel(l)
				a.Nop()
				a.Adr(RegR3, l)
			},
		},
		{
			name: "bl self", want: "00000094", offset: 0,
			setup: func(a *Assembler) {
				l := a.NewLabel()
				a.BindLabel(l)
				a.Bl(l)
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssembler()
			tc.setup(a)
			code, err := a.Assemble()
			require.NoError(t, err)
			require.Equal(t, tc.want, hex.EncodeToString(code[tc.offset:tc.offset+4]))
		})
	}
}

func TestAssembler_Assemble_errors(t *testing.T) {
	t.Run("unbound", func(t *testing.T) {
		a := NewAssembler()
		a.Nop()
		a.B(a.NewLabel())
		_, err := a.Assemble()
		require.EqualError(t, err, "label L0 referenced at 0x4 is never bound")
	})
	t.Run("conditional branch out of range", func(t *testing.T) {
		a := NewAssembler()
		l := a.NewLabel()
		a.BCond(CondEQ, l)
		for i := 0; i < 1<<18; i++ {
			a.Nop()
		}
		a.BindLabel(l)
		_, err := a.Assemble()
		require.EqualError(t, err, "conditional branch at 0x0 to L0 out of range: 1048580")
	})
}

func TestAssembler_BindLabel_twice(t *testing.T) {
	a := NewAssembler()
	l := a.NewLabel()
	a.BindLabel(l)
	require.PanicsWithValue(t, "BUG: label L0 bound twice", func() { a.BindLabel(l) })
}

func TestAssembler_Reset(t *testing.T) {
	a := NewAssembler()
	l := a.NewLabel()
	a.B(l)
	a.Reset()
	require.Equal(t, 0, a.Offset())
	require.Equal(t, -1, a.LabelOffset(l))

	// Fixups of the previous round must be gone.
	code, err := a.Assemble()
	require.NoError(t, err)
	require.Empty(t, code)
}

func TestAssembler_invalidOperands(t *testing.T) {
	tests := []struct {
		name  string
		exp   string
		setup func(a *Assembler)
	}{
		{
			name:  "sp as add source with flags",
			exp:   "BUG: sp is not allowed in this position",
			setup: func(a *Assembler) { a.Adds(true, RegR0, RegR1, RegSP) },
		},
		{
			name:  "xzr as load base",
			exp:   "BUG: xzr is not allowed in this position",
			setup: func(a *Assembler) { a.LoadStoreScaled(Load64, RegR0, RegRZR, 0) },
		},
		{
			name:  "vector register as integer",
			exp:   "BUG: v0 is not a general purpose register",
			setup: func(a *Assembler) { a.Add(true, RegV0, RegR1, RegR2) },
		},
		{
			name:  "integer register as vector",
			exp:   "BUG: x1 is not a vector register",
			setup: func(a *Assembler) { a.Fcmp(true, RegR1, RegV1) },
		},
		{
			name:  "unencodable add immediate",
			exp:   "BUG: immediate 0x1001 is not encodable by add/sub",
			setup: func(a *Assembler) { a.AddImm(true, RegR0, RegR0, 0x1001) },
		},
		{
			name:  "unencodable bitmask",
			exp:   "BUG: 0x5 is not a bitmask immediate",
			setup: func(a *Assembler) { a.LogicalImm(LogicalAnd, true, RegR0, RegR0, 5) },
		},
		{
			name:  "misaligned scaled offset",
			exp:   "BUG: offset 4 is not encodable for ldr",
			setup: func(a *Assembler) { a.LoadStoreScaled(Load64, RegR0, RegR1, 4) },
		},
		{
			name:  "unscaled offset too large",
			exp:   "BUG: offset 256 is not encodable for unscaled strb",
			setup: func(a *Assembler) { a.LoadStoreUnscaled(Store8, RegR0, RegR1, 256) },
		},
		{
			name:  "exclusive size",
			exp:   "BUG: invalid exclusive access size 128",
			setup: func(a *Assembler) { a.Ldaxr(128, RegR0, RegR1) },
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			a := NewAssembler()
			require.PanicsWithValue(t, tc.exp, func() { tc.setup(a) })
		})
	}
}

func TestAssembler_immediateHelpers(t *testing.T) {
	require.True(t, AddSubImmediateFits(0xfff))
	require.True(t, AddSubImmediateFits(0xfff000))
	require.False(t, AddSubImmediateFits(0x1001))
	require.False(t, AddSubImmediateFits(0x1000000))

	require.True(t, IsBitMaskImmediate(0x7fffffff, false))
	require.True(t, IsBitMaskImmediate(0x8000000000000000, true))
	require.True(t, IsBitMaskImmediate(0x00ff00ff00ff00ff, true))
	require.False(t, IsBitMaskImmediate(0, true))
	require.False(t, IsBitMaskImmediate(0xffffffffffffffff, true))
	require.False(t, IsBitMaskImmediate(0x12345678, false))

	require.True(t, OffsetFitsUnscaled(-256))
	require.False(t, OffsetFitsUnscaled(256))
	require.True(t, Load32U.OffsetFitsScaled(16380))
	require.False(t, Load32U.OffsetFitsScaled(16384))
	require.False(t, Load16U.OffsetFitsScaled(3))
	require.False(t, Store64.OffsetFitsScaled(-8))
}

// TestAssembler_golangAsm cross-checks the three register ALU encodings against golang-asm.
func TestAssembler_golangAsm(t *testing.T) {
	regs := []asm.Register{RegR0, RegR1, RegR10, RegR17, RegR30}
	toGoasm := func(r asm.Register) int16 { return goarm64.REG_R0 + int16(RegisterNumber(r)) }

	tests := []struct {
		as   obj.As
		emit func(a *Assembler, rd, rn, rm asm.Register)
	}{
		{as: goarm64.AADD, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Add(true, rd, rn, rm) }},
		{as: goarm64.AADDW, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Add(false, rd, rn, rm) }},
		{as: goarm64.ASUB, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Sub(true, rd, rn, rm) }},
		{as: goarm64.ASUBW, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Sub(false, rd, rn, rm) }},
		{as: goarm64.AAND, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Logical(LogicalAnd, true, rd, rn, rm) }},
		{as: goarm64.AORRW, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Logical(LogicalOrr, false, rd, rn, rm) }},
		{as: goarm64.AEOR, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Logical(LogicalEor, true, rd, rn, rm) }},
		{as: goarm64.AMUL, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Mul(true, rd, rn, rm) }},
		{as: goarm64.AMULW, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Mul(false, rd, rn, rm) }},
		{as: goarm64.ASDIV, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Sdiv(true, rd, rn, rm) }},
		{as: goarm64.AUDIVW, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.Udiv(false, rd, rn, rm) }},
		{as: goarm64.ALSL, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.ShiftReg(ShiftLSL, true, rd, rn, rm) }},
		{as: goarm64.ALSRW, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.ShiftReg(ShiftLSR, false, rd, rn, rm) }},
		{as: goarm64.AASR, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.ShiftReg(ShiftASR, true, rd, rn, rm) }},
		{as: goarm64.AROR, emit: func(a *Assembler, rd, rn, rm asm.Register) { a.ShiftReg(ShiftROR, true, rd, rn, rm) }},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.as.String(), func(t *testing.T) {
			for _, rd := range regs {
				for _, rn := range regs {
					for _, rm := range regs {
						b, err := goasm.NewBuilder("arm64", 1024)
						require.NoError(t, err)
						// The first instruction is consumed as the function header.
						nop := b.NewProg()
						nop.As = obj.ANOP
						b.AddInstruction(nop)

						p := b.NewProg()
						p.As = tc.as
						p.To.Type = obj.TYPE_REG
						p.To.Reg = toGoasm(rd)
						p.From.Type = obj.TYPE_REG
						p.From.Reg = toGoasm(rm)
						p.Reg = toGoasm(rn)
						b.AddInstruction(p)
						expected := b.Assemble()

						a := NewAssembler()
						tc.emit(a, rd, rn, rm)
						actual, err := a.Assemble()
						require.NoError(t, err)
						require.True(t, len(expected) >= len(actual))
						require.Equal(t, expected[:len(actual)], actual,
							"%s %s, %s, %s", tc.as, RegisterName(rd), RegisterName(rn), RegisterName(rm))
					}
				}
			}
		})
	}
}

func TestAssembler_decodes(t *testing.T) {
	a := NewAssembler()
	a.AddImm(true, RegSP, RegSP, 16)
	a.Stp(PairPreIndex, RegR27, RegR30, RegSP, -16)
	a.Ldp(PairPostIndex, RegR27, RegR30, RegSP, 16)
	a.MovImm(true, RegR5, 0x123456789abcdef0)
	a.LoadStoreRegisterOffset(Load32U, RegR0, RegR1, RegR2)
	a.Fcvtz(true, true, true, RegR0, RegV1)
	a.Ret()
	code, err := a.Assemble()
	require.NoError(t, err)

	// Mnemonic prefixes only: the exact operand syntax is the decoder's business.
	exp := []string{"add", "stp", "ldp", "mov", "movk", "movk", "movk", "ldr", "fcvtzs", "ret"}
	require.Equal(t, len(exp)*4, len(code))
	for i := range exp {
		inst, err := arm64asm.Decode(code[i*4:])
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(arm64asm.GNUSyntax(inst), exp[i]), arm64asm.GNUSyntax(inst))
	}
}
