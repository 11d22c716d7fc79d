package compiler

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

// program is the TOML form of a Module:
//
//	[memory]
//	imported = false
//
//	[[import]]
//	module = "env"
//	name = "log"
//	params = ["i32"]
//
//	[[global]]
//	type = "i64"
//	mutable = true
//	value = "42"
//
//	[[function]]
//	name = "add"
//	params = ["i32", "i32"]
//	results = ["i32"]
//	body = ["local.get 0", "local.get 1", "i32.add"]
type program struct {
	Memory    *programMemory    `toml:"memory"`
	Imports   []programImport   `toml:"import"`
	Globals   []programGlobal   `toml:"global"`
	Functions []programFunction `toml:"function"`
}

type programMemory struct {
	Imported bool `toml:"imported"`
}

type programImport struct {
	Module  string   `toml:"module"`
	Name    string   `toml:"name"`
	Params  []string `toml:"params"`
	Results []string `toml:"results"`
}

type programGlobal struct {
	Type    string `toml:"type"`
	Mutable bool   `toml:"mutable"`
	Value   string `toml:"value"`
}

type programFunction struct {
	Name    string   `toml:"name"`
	Params  []string `toml:"params"`
	Results []string `toml:"results"`
	Locals  []string `toml:"locals"`
	Body    []string `toml:"body"`
}

// Module is a parsed program ready to compile.
type Module struct {
	// Memory is nil when the module has no linear memory.
	Memory    *Memory
	Imports   []*Import
	Globals   []*wasm.Global
	Functions []*Function
}

// Memory describes the only linear memory of a module.
type Memory struct {
	// Imported is true when the VM context holds a pointer to the memory definition instead of the definition.
	Imported bool
}

// Import is an imported function. Imports come first in the function index space.
type Import struct {
	Module, Name string
	Type         *wasm.FunctionType
}

// Function is a function defined by the module.
type Function struct {
	Name   string
	Type   *wasm.FunctionType
	Locals []wasm.ValueType
	Body   []Instruction
}

// LoadModule reads and parses the program at path.
func LoadModule(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	return ParseModule(data)
}

// ParseModule parses and validates a program in its TOML form.
func ParseModule(data []byte) (*Module, error) {
	var p program
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}

	mod := &Module{}
	if p.Memory != nil {
		mod.Memory = &Memory{Imported: p.Memory.Imported}
	}

	for i, imp := range p.Imports {
		typ, err := parseFunctionType(imp.Params, imp.Results)
		if err != nil {
			return nil, fmt.Errorf("import[%d]: %w", i, err)
		}
		mod.Imports = append(mod.Imports, &Import{Module: imp.Module, Name: imp.Name, Type: typ})
	}

	for i, g := range p.Globals {
		v, err := parseValue(g.Type, g.Value)
		if err != nil {
			return nil, fmt.Errorf("global[%d]: %w", i, err)
		}
		if g.Mutable {
			mod.Globals = append(mod.Globals, wasm.NewMutableGlobal(v))
		} else {
			mod.Globals = append(mod.Globals, wasm.NewGlobal(v))
		}
	}

	for i, f := range p.Functions {
		fn, err := parseFunction(f)
		if err != nil {
			return nil, fmt.Errorf("func[%d]: %w", i, err)
		}
		mod.Functions = append(mod.Functions, fn)
	}
	return mod, nil
}

// FunctionType returns the type of the function at index in the function index space.
func (m *Module) FunctionType(index uint32) (*wasm.FunctionType, bool) {
	if n := uint32(len(m.Imports)); index < n {
		return m.Imports[index].Type, true
	} else if index-n < uint32(len(m.Functions)) {
		return m.Functions[index-n].Type, true
	}
	return nil, false
}

// VMContextOffsets returns the layout of the VM context of instances of m.
func (m *Module) VMContextOffsets() singlepass.VMContextOffsets {
	offsets := singlepass.VMContextOffsets{
		ImportedFunctions: uint32(len(m.Imports)),
		Globals:           uint32(len(m.Globals)),
	}
	if m.Memory != nil {
		if m.Memory.Imported {
			offsets.ImportedMemories = 1
		} else {
			offsets.LocalMemories = 1
		}
	}
	return offsets
}

func parseFunction(f programFunction) (*Function, error) {
	typ, err := parseFunctionType(f.Params, f.Results)
	if err != nil {
		return nil, err
	}
	locals, err := parseValueTypes(f.Locals)
	if err != nil {
		return nil, fmt.Errorf("locals: %w", err)
	}
	fn := &Function{Name: f.Name, Type: typ, Locals: locals}
	for i, line := range f.Body {
		ins, err := ParseInstruction(line)
		if err != nil {
			return nil, fmt.Errorf("body[%d]: %w", i, err)
		}
		if ins.Op == "" {
			continue
		}
		fn.Body = append(fn.Body, ins)
	}
	return fn, nil
}

func parseFunctionType(params, results []string) (*wasm.FunctionType, error) {
	p, err := parseValueTypes(params)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	r, err := parseValueTypes(results)
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	if len(r) > 1 {
		return nil, fmt.Errorf("multiple results are not supported: %v", results)
	}
	return &wasm.FunctionType{Params: p, Results: r}, nil
}

func parseValueTypes(names []string) ([]wasm.ValueType, error) {
	var ret []wasm.ValueType
	for _, name := range names {
		t, err := wasm.ParseValueType(name)
		if err != nil {
			return nil, err
		}
		ret = append(ret, t)
	}
	return ret, nil
}

func parseValue(typ, s string) (wasm.Value, error) {
	t, err := wasm.ParseValueType(typ)
	if err != nil {
		return wasm.Value{}, err
	}
	if s == "" {
		return wasm.Value{Type: t}, nil
	}
	bits, err := parseConst(t, s)
	if err != nil {
		return wasm.Value{}, err
	}
	return wasm.Value{Type: t, Bits: bits}, nil
}

// parseConst parses the immediate of a const instruction of type t. Integers accept both signed and
// unsigned notations in any base strconv understands, floats accept "nan" and "inf" too.
func parseConst(t wasm.ValueType, s string) (uint64, error) {
	s = strings.ReplaceAll(s, "_", "")
	switch t {
	case wasm.ValueTypeI32, wasm.ValueTypeI64:
		bitSize := 32
		if t == wasm.ValueTypeI64 {
			bitSize = 64
		}
		var v uint64
		if strings.HasPrefix(s, "-") {
			i, err := strconv.ParseInt(s, 0, bitSize)
			if err != nil {
				return 0, fmt.Errorf("invalid %s constant %q", wasm.ValueTypeName(t), s)
			}
			v = uint64(i)
		} else {
			u, err := strconv.ParseUint(s, 0, bitSize)
			if err != nil {
				return 0, fmt.Errorf("invalid %s constant %q", wasm.ValueTypeName(t), s)
			}
			v = u
		}
		if bitSize == 32 {
			v = uint64(uint32(v))
		}
		return v, nil
	case wasm.ValueTypeF32:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid f32 constant %q", s)
		}
		return uint64(math.Float32bits(float32(f))), nil
	case wasm.ValueTypeF64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid f64 constant %q", s)
		}
		return math.Float64bits(f), nil
	}
	return 0, fmt.Errorf("invalid constant type %#x", t)
}
