package compiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSummary(t *testing.T) {
	cm := compileTestModule(t, testModuleSource)
	img, err := Link(cm, 0)
	require.NoError(t, err)

	summary := Summary(cm, img)
	require.True(t, strings.HasPrefix(summary, "module\n"), summary)
	for _, exp := range []string{
		"functions",
		"add (",
		"run (",
		"trap stack_overflow at +0x0 (body[0])",
		"trap heap_access_out_of_bounds at",
		"relocation arm64_movw0 -> section[0] at",
		"relocation arm64_movw3 -> func[0] at",
		"section[0] rx (",
		"i32_i64 (",
		"i32i32_i32 (",
		"import[0] (",
		"0x28",
		"mut global(3)",
		"vmctx (48 bytes)",
	} {
		require.Contains(t, summary, exp)
	}
}
