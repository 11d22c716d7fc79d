// Package config loads the TOML configuration of the compiler and of its logger.
package config

import (
	"fmt"
	"os"
	"runtime"

	"github.com/pelletier/go-toml/v2"

	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/logging"
)

// Config is the root of a configuration file:
//
//	[compiler]
//	architecture = "arm64"
//	enable_bounds_checks = true
//
//	[log]
//	level = "debug"
type Config struct {
	Compiler Compiler `toml:"compiler"`
	Log      Log      `toml:"log"`
}

// Compiler configures code generation.
type Compiler struct {
	// Architecture selects the Machine, see singlepass.NewMachine.
	Architecture string `toml:"architecture"`
	// CallingConvention is passed to trampoline generation, e.g. "aarch64" or "apple_aarch64".
	CallingConvention string `toml:"calling_convention"`
	// EnableBoundsChecks emits an explicit check against the memory bound before each access. Without it,
	// the runtime must reserve a guard region covering every address a 32-bit index plus offset can reach.
	EnableBoundsChecks bool `toml:"enable_bounds_checks"`
	// EnableAlignmentChecks makes atomic accesses trap on addresses which are not aligned to their width.
	EnableAlignmentChecks bool `toml:"enable_alignment_checks"`
	// CanonicalizeNaNs replaces every NaN stored to memory or returned from a function by the canonical NaN.
	CanonicalizeNaNs bool `toml:"canonicalize_nans"`
	// Parallelism is the maximum number of functions compiled at once. Zero means GOMAXPROCS.
	Parallelism int `toml:"parallelism"`
}

// Log configures the logger built by logging.New.
type Log struct {
	// Level is one of "debug", "info", "warn" or "error".
	Level string `toml:"level"`
	// Development switches to the human-friendly console encoder.
	Development bool `toml:"development"`
	// Scopes is a comma separated list of the events to log, see logging.ParseLogScopes.
	Scopes string `toml:"scopes"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Compiler: Compiler{
			Architecture:          "arm64",
			CallingConvention:     singlepass.CallingConventionAarch64.String(),
			EnableBoundsChecks:    true,
			EnableAlignmentChecks: true,
		},
		Log: Log{Level: "info", Scopes: "compile,link"},
	}
}

// Load reads the file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns an error describing the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Compiler.ParsedCallingConvention(); err != nil {
		return fmt.Errorf("invalid compiler.calling_convention: %w", err)
	}
	if c.Compiler.Parallelism < 0 {
		return fmt.Errorf("invalid compiler.parallelism: %d", c.Compiler.Parallelism)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}
	if _, err := logging.ParseLogScopes(c.Log.Scopes); err != nil {
		return err
	}
	return nil
}

// ParsedCallingConvention returns CallingConvention as a singlepass.CallingConvention.
func (c Compiler) ParsedCallingConvention() (singlepass.CallingConvention, error) {
	return singlepass.ParseCallingConvention(c.CallingConvention)
}

// LogScopes returns Scopes parsed.
func (l Log) LogScopes() logging.LogScopes {
	scopes, _ := logging.ParseLogScopes(l.Scopes)
	return scopes
}

// Workers returns the effective parallelism.
func (c Compiler) Workers() int {
	if c.Parallelism > 0 {
		return c.Parallelism
	}
	return runtime.GOMAXPROCS(0)
}
