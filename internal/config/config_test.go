package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/logging"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "singlepass.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[compiler]
enable_bounds_checks = false
canonicalize_nans = true
parallelism = 3
calling_convention = "apple_aarch64"

[log]
level = "debug"
development = true
scopes = "all"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, &Config{
		Compiler: Compiler{
			Architecture:          "arm64",
			CallingConvention:     "apple_aarch64",
			EnableBoundsChecks:    false,
			EnableAlignmentChecks: true,
			CanonicalizeNaNs:      true,
			Parallelism:           3,
		},
		Log: Log{Level: "debug", Development: true, Scopes: "all"},
	}, cfg)
	require.Equal(t, logging.LogScopeAll, cfg.Log.LogScopes())

	cc, err := cfg.Compiler.ParsedCallingConvention()
	require.NoError(t, err)
	require.Equal(t, singlepass.CallingConventionAppleAarch64, cc)
	require.Equal(t, 3, cfg.Compiler.Workers())
}

func TestLoad_errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Contains(t, err.Error(), "failed to read config file: ")

	tests := []struct {
		name   string
		input  string
		expErr string
	}{
		{name: "syntax", input: "[compiler\n", expErr: "failed to parse config file: "},
		{name: "type", input: "[compiler]\nparallelism = \"two\"\n", expErr: "failed to parse config file: "},
		{name: "calling convention", input: "[compiler]\ncalling_convention = \"cdecl\"\n", expErr: `invalid compiler.calling_convention: unknown calling convention "cdecl"`},
		{name: "parallelism", input: "[compiler]\nparallelism = -1\n", expErr: "invalid compiler.parallelism: -1"},
		{name: "log level", input: "[log]\nlevel = \"trace\"\n", expErr: `invalid log.level: "trace"`},
		{name: "log scopes", input: "[log]\nscopes = \"gc\"\n", expErr: `invalid log scope: "gc"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expErr)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, runtime.GOMAXPROCS(0), cfg.Compiler.Workers())
	require.Equal(t, logging.LogScopeCompile|logging.LogScopeLink, cfg.Log.LogScopes())
}
