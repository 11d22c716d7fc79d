package singlepass

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/asm/arm64"
)

// RegisterClass is either general purpose or vector.
type RegisterClass byte

const (
	RegisterClassGPR RegisterClass = iota
	RegisterClassSIMD
)

// String implements fmt.Stringer.
func (c RegisterClass) String() string {
	if c == RegisterClassSIMD {
		return "simd"
	}
	return "gpr"
}

var (
	// gprCandidates are handed out for values by Pick.
	gprCandidates = []asm.Register{
		arm64.RegR0, arm64.RegR1, arm64.RegR2, arm64.RegR3, arm64.RegR4, arm64.RegR5, arm64.RegR6, arm64.RegR7,
		arm64.RegR8, arm64.RegR9, arm64.RegR10, arm64.RegR11, arm64.RegR12, arm64.RegR13, arm64.RegR14, arm64.RegR15,
	}
	// tempGPRs are handed out for scratch use inside a single operation. They never overlap
	// the locals (x18-x25), the call register (x26), the frame base (x27) or the VM context (x28).
	tempGPRs = []asm.Register{
		arm64.RegR0, arm64.RegR1, arm64.RegR2, arm64.RegR3, arm64.RegR4, arm64.RegR5, arm64.RegR6, arm64.RegR7,
	}
	simdCandidates = []asm.Register{
		arm64.RegV8, arm64.RegV9, arm64.RegV10, arm64.RegV11, arm64.RegV12,
	}
	tempSIMDs = []asm.Register{
		arm64.RegV0, arm64.RegV1, arm64.RegV2, arm64.RegV3, arm64.RegV4, arm64.RegV5, arm64.RegV6, arm64.RegV7,
	}
)

// registerSet is a bitset indexed by the encoding number of the register.
type registerSet uint32

func (s registerSet) has(n uint32) bool { return s&(1<<n) != 0 }

func (s *registerSet) add(n uint32) { *s |= 1 << n }

func (s *registerSet) remove(n uint32) { *s &^= 1 << n }

// AllocatorSnapshot is a comparable copy of the allocator state.
type AllocatorSnapshot struct {
	GPR, SIMD uint32
}

// String implements fmt.Stringer.
func (s AllocatorSnapshot) String() string {
	var regs []string
	for n := 0; n < 32; n++ {
		if s.GPR&(1<<n) != 0 {
			regs = append(regs, fmt.Sprintf("x%d", n))
		}
	}
	for n := 0; n < 32; n++ {
		if s.SIMD&(1<<n) != 0 {
			regs = append(regs, fmt.Sprintf("v%d", n))
		}
	}
	return "[" + strings.Join(regs, ",") + "]"
}

// RegisterAllocator is the free-list allocator: it only knows which registers are currently held.
// The zero value holds nothing.
type RegisterAllocator struct {
	gpr, simd registerSet
}

// NewRegisterAllocator returns an allocator holding no register.
func NewRegisterAllocator() *RegisterAllocator {
	return &RegisterAllocator{}
}

// Reset releases every register.
func (r *RegisterAllocator) Reset() {
	r.gpr, r.simd = 0, 0
}

func (r *RegisterAllocator) set(reg asm.Register) *registerSet {
	switch {
	case arm64.IsVectorRegister(reg):
		return &r.simd
	case arm64.RegR0 <= reg && reg <= arm64.RegR30:
		return &r.gpr
	}
	panic(fmt.Sprintf("BUG: %s cannot be allocated", arm64.RegisterName(reg)))
}

func (r *RegisterAllocator) pickFrom(candidates []asm.Register) (asm.Register, bool) {
	for _, c := range candidates {
		if !r.IsUsed(c) {
			return c, true
		}
	}
	return asm.NilRegister, false
}

// Pick returns the first free register of the class without marking it.
func (r *RegisterAllocator) Pick(class RegisterClass) (asm.Register, bool) {
	if class == RegisterClassSIMD {
		return r.pickFrom(simdCandidates)
	}
	return r.pickFrom(gprCandidates)
}

// PickTemp returns the first free temporary register of the class without marking it.
func (r *RegisterAllocator) PickTemp(class RegisterClass) (asm.Register, bool) {
	if class == RegisterClassSIMD {
		return r.pickFrom(tempSIMDs)
	}
	return r.pickFrom(tempGPRs)
}

// AcquireTemp picks a temporary register and marks it used.
func (r *RegisterAllocator) AcquireTemp(class RegisterClass) (asm.Register, bool) {
	reg, ok := r.PickTemp(class)
	if ok {
		r.set(reg).add(arm64.RegisterNumber(reg))
	}
	return reg, ok
}

// Release unmarks reg, which must be held.
func (r *RegisterAllocator) Release(reg asm.Register) {
	s, n := r.set(reg), arm64.RegisterNumber(reg)
	if !s.has(n) {
		panic(fmt.Sprintf("BUG: releasing %s which is not in use", arm64.RegisterName(reg)))
	}
	s.remove(n)
}

// Reserve marks reg used regardless of its current state.
func (r *RegisterAllocator) Reserve(reg asm.Register) {
	r.set(reg).add(arm64.RegisterNumber(reg))
}

// ReserveUnusedTemp marks reg used. reg must be free.
func (r *RegisterAllocator) ReserveUnusedTemp(reg asm.Register) asm.Register {
	if r.IsUsed(reg) {
		panic(fmt.Sprintf("BUG: %s is already in use", arm64.RegisterName(reg)))
	}
	r.Reserve(reg)
	return reg
}

// IsUsed returns true if reg is held.
func (r *RegisterAllocator) IsUsed(reg asm.Register) bool {
	return r.set(reg).has(arm64.RegisterNumber(reg))
}

// Used returns the held registers of the class in ascending order.
func (r *RegisterAllocator) Used(class RegisterClass) []asm.Register {
	var ret []asm.Register
	if class == RegisterClassSIMD {
		for n := 0; n < 32; n++ {
			if r.simd.has(uint32(n)) {
				ret = append(ret, arm64.VectorRegister(n))
			}
		}
		return ret
	}
	for n := 0; n < 31; n++ {
		if r.gpr.has(uint32(n)) {
			ret = append(ret, arm64.IntRegister(n))
		}
	}
	return ret
}

// Snapshot returns the current state.
func (r *RegisterAllocator) Snapshot() AllocatorSnapshot {
	return AllocatorSnapshot{GPR: uint32(r.gpr), SIMD: uint32(r.simd)}
}
