package wasm

import (
	"fmt"
	"math"
)

// Index is the offset in an index namespace, not necessarily an absolute position in a module section.
type Index = uint32

// ValueType is the binary encoding of a type such as i32
// See https://www.w3.org/TR/wasm-core-1/#binary-valtype
//
// Note: This is a type alias as it is easier to encode and decode in the binary format.
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the type name of the given ValueType as a string.
// These type names match the names used in the WebAssembly text format.
// Note that ValueTypeName returns "unknown", if an undefined ValueType value is passed.
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// ParseValueType is the inverse of ValueTypeName.
func ParseValueType(name string) (ValueType, error) {
	switch name {
	case "i32":
		return ValueTypeI32, nil
	case "i64":
		return ValueTypeI64, nil
	case "f32":
		return ValueTypeF32, nil
	case "f64":
		return ValueTypeF64, nil
	}
	return 0, fmt.Errorf("unknown value type %q", name)
}

// IsFloat returns true for f32 and f64.
func IsFloat(t ValueType) bool {
	return t == ValueTypeF32 || t == ValueTypeF64
}

// FunctionType is a possibly empty function signature.
//
// See https://www.w3.org/TR/wasm-core-1/#function-types%E2%91%A0
type FunctionType struct {
	// Params are the possibly empty sequence of value types accepted by a function with this signature.
	Params []ValueType

	// Results are the possibly empty sequence of value types returned by a function with this signature.
	//
	// Note: Generated code returns at most one result, in x0 (and d0 for floats).
	Results []ValueType
}

// String renders the signature as e.g. "i32i64_f32", using "null" for an empty side. The result is
// used as the key when deduplicating signatures.
func (t *FunctionType) String() (ret string) {
	for _, b := range t.Params {
		ret += ValueTypeName(b)
	}
	if len(t.Params) == 0 {
		ret += "null"
	}
	ret += "_"
	for _, b := range t.Results {
		ret += ValueTypeName(b)
	}
	if len(t.Results) == 0 {
		ret += "null"
	}
	return
}

// GlobalType is the type of a global: its value type and whether it can be set after instantiation.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// Value is a typed raw value. Floats are stored as their IEEE 754 bits.
type Value struct {
	Type ValueType
	Bits uint64
}

// ValueI32 returns an i32 Value.
func ValueI32(v int32) Value { return Value{Type: ValueTypeI32, Bits: uint64(uint32(v))} }

// ValueI64 returns an i64 Value.
func ValueI64(v int64) Value { return Value{Type: ValueTypeI64, Bits: uint64(v)} }

// ValueF32 returns an f32 Value.
func ValueF32(v float32) Value { return Value{Type: ValueTypeF32, Bits: uint64(math.Float32bits(v))} }

// ValueF64 returns an f64 Value.
func ValueF64(v float64) Value { return Value{Type: ValueTypeF64, Bits: math.Float64bits(v)} }

// String implements fmt.Stringer
func (v Value) String() string {
	switch v.Type {
	case ValueTypeI32:
		return fmt.Sprintf("%d", int32(v.Bits))
	case ValueTypeI64:
		return fmt.Sprintf("%d", int64(v.Bits))
	case ValueTypeF32:
		return fmt.Sprintf("%f", math.Float32frombits(uint32(v.Bits)))
	case ValueTypeF64:
		return fmt.Sprintf("%f", math.Float64frombits(v.Bits))
	}
	panic(fmt.Errorf("BUG: unknown value type %X", v.Type))
}
