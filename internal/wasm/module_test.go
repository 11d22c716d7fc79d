package wasm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFunctionType_String(t *testing.T) {
	tests := []struct {
		functype *FunctionType
		exp      string
	}{
		{functype: &FunctionType{}, exp: "null_null"},
		{functype: &FunctionType{Params: []ValueType{ValueTypeI32}}, exp: "i32_null"},
		{functype: &FunctionType{Params: []ValueType{ValueTypeI32, ValueTypeF64}}, exp: "i32f64_null"},
		{functype: &FunctionType{Results: []ValueType{ValueTypeI64}}, exp: "null_i64"},
		{
			functype: &FunctionType{Params: []ValueType{ValueTypeF32, ValueTypeI64}, Results: []ValueType{ValueTypeF64}},
			exp:      "f32i64_f64",
		},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.exp, func(t *testing.T) {
			require.Equal(t, tc.exp, tc.functype.String())
		})
	}
}

func TestParseValueType(t *testing.T) {
	for _, vt := range []ValueType{ValueTypeI32, ValueTypeI64, ValueTypeF32, ValueTypeF64} {
		name := ValueTypeName(vt)
		t.Run(name, func(t *testing.T) {
			parsed, err := ParseValueType(name)
			require.NoError(t, err)
			require.Equal(t, vt, parsed)
		})
	}

	require.Equal(t, "unknown", ValueTypeName(0x40))
	_, err := ParseValueType("v128")
	require.EqualError(t, err, `unknown value type "v128"`)
}

func TestIsFloat(t *testing.T) {
	require.False(t, IsFloat(ValueTypeI32))
	require.False(t, IsFloat(ValueTypeI64))
	require.True(t, IsFloat(ValueTypeF32))
	require.True(t, IsFloat(ValueTypeF64))
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		value Value
		exp   string
	}{
		{value: ValueI32(-7), exp: "-7"},
		{value: ValueI32(math.MinInt32), exp: "-2147483648"},
		{value: ValueI64(math.MaxInt64), exp: "9223372036854775807"},
		{value: ValueF32(0.5), exp: "0.500000"},
		{value: ValueF64(math.Inf(-1)), exp: "-Inf"},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.exp, func(t *testing.T) {
			require.Equal(t, tc.exp, tc.value.String())
		})
	}

	require.Panics(t, func() { _ = Value{Type: 0x40}.String() })
}
