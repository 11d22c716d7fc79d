package arm64

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisassemble(t *testing.T) {
	a := NewAssembler()
	a.Nop()
	a.Ret()
	a.Udf(0)
	lines, err := Disassemble(a.Bytes())
	require.NoError(t, err)
	require.Equal(t, 3, len(lines))
	require.Equal(t, "0x0000: d503201f  nop", lines[0])
	require.Equal(t, "0x0004: d65f03c0  ret", lines[1])
	require.True(t, strings.HasPrefix(lines[2], "0x0008: 00000000  .word 0x"), lines[2])

	_, err = Disassemble([]byte{1, 2, 3})
	require.EqualError(t, err, "code length 3 is not a multiple of 4")
}
