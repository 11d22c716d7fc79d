package compiler

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

// Instruction is one line of a function body, e.g. "i32.load offset=8 align=4".
type Instruction struct {
	Op string
	// Index is the immediate of local.*, global.* and call.
	Index uint32
	// Const holds the raw bits of the immediate of const instructions.
	Const uint64
	// Memarg is the immediate of memory instructions.
	Memarg singlepass.MemoryImmediate
}

// ParseInstruction parses one line of a function body. Text following ";;" is a comment, and a
// blank line yields an Instruction with an empty Op.
func ParseInstruction(line string) (Instruction, error) {
	if i := strings.Index(line, ";;"); i >= 0 {
		line = line[:i]
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Instruction{}, nil
	}

	ins := Instruction{Op: fields[0]}
	def, ok := instructionSet[ins.Op]
	if !ok {
		return ins, fmt.Errorf("unknown instruction %q", ins.Op)
	}
	args := fields[1:]

	switch def.imm {
	case immediateNone:
		if len(args) != 0 {
			return ins, fmt.Errorf("%s takes no immediate", ins.Op)
		}
	case immediateConst:
		if len(args) != 1 {
			return ins, fmt.Errorf("%s takes one immediate", ins.Op)
		}
		v, err := parseConst(def.result, args[0])
		if err != nil {
			return ins, err
		}
		ins.Const = v
	case immediateIndex:
		if len(args) != 1 {
			return ins, fmt.Errorf("%s takes one immediate", ins.Op)
		}
		v, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return ins, fmt.Errorf("invalid index %q", args[0])
		}
		ins.Index = uint32(v)
	case immediateMemarg:
		ins.Memarg.Align = def.width
		for _, arg := range args {
			key, value, ok := strings.Cut(arg, "=")
			if !ok {
				return ins, fmt.Errorf("invalid memory immediate %q", arg)
			}
			v, err := strconv.ParseUint(value, 0, 32)
			if err != nil {
				return ins, fmt.Errorf("invalid memory immediate %q", arg)
			}
			switch key {
			case "offset":
				ins.Memarg.Offset = uint32(v)
			case "align":
				ins.Memarg.Align = uint32(v)
			default:
				return ins, fmt.Errorf("invalid memory immediate %q", arg)
			}
		}
		if a := ins.Memarg.Align; a == 0 || bits.OnesCount32(a) != 1 || a > def.width {
			return ins, fmt.Errorf("alignment %d of %s must be a power of two not larger than %d", a, ins.Op, def.width)
		}
	}
	return ins, nil
}

// String implements fmt.Stringer
func (ins Instruction) String() string {
	def, ok := instructionSet[ins.Op]
	if !ok {
		return ins.Op
	}
	switch def.imm {
	case immediateConst:
		return fmt.Sprintf("%s %s", ins.Op, wasm.Value{Type: def.result, Bits: ins.Const})
	case immediateIndex:
		return fmt.Sprintf("%s %d", ins.Op, ins.Index)
	case immediateMemarg:
		s := ins.Op
		if ins.Memarg.Offset != 0 {
			s += fmt.Sprintf(" offset=%d", ins.Memarg.Offset)
		}
		if ins.Memarg.Align != def.width {
			s += fmt.Sprintf(" align=%d", ins.Memarg.Align)
		}
		return s
	}
	return ins.Op
}
