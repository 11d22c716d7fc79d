// Package logging builds the zap logger used by the compiler and the CLI, and the scopes which select
// which compilation events are logged. This is in an independent package to avoid dependency cycles.
package logging

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogScopes uint64

const (
	LogScopeNone              = LogScopes(0)
	LogScopeCompile LogScopes = 1 << iota
	LogScopeTrampoline
	LogScopeLink
	LogScopeAll = LogScopes(0xffffffffffffffff)
)

func scopeName(s LogScopes) string {
	switch s {
	case LogScopeCompile:
		return "compile"
	case LogScopeTrampoline:
		return "trampoline"
	case LogScopeLink:
		return "link"
	default:
		return fmt.Sprintf("<unknown=%d>", s)
	}
}

// IsEnabled returns true if the scope (or group of scopes) is enabled.
func (f LogScopes) IsEnabled(scope LogScopes) bool {
	return f&scope != 0
}

// String implements fmt.Stringer by returning each enabled log scope.
func (f LogScopes) String() string {
	if f == LogScopeAll {
		return "all"
	}
	var builder strings.Builder
	for i := 0; i <= 63; i++ {
		target := LogScopes(1 << i)
		if f.IsEnabled(target) {
			if builder.Len() > 0 {
				builder.WriteByte('|')
			}
			builder.WriteString(scopeName(target))
		}
	}
	return builder.String()
}

// ParseLogScopes parses a comma separated list of scope names, such as "compile,link". "all" enables
// every scope and the empty string none.
func ParseLogScopes(s string) (LogScopes, error) {
	var scopes LogScopes
	for _, name := range strings.Split(s, ",") {
		switch strings.TrimSpace(name) {
		case "":
		case "all":
			scopes |= LogScopeAll
		case "compile":
			scopes |= LogScopeCompile
		case "trampoline":
			scopes |= LogScopeTrampoline
		case "link":
			scopes |= LogScopeLink
		default:
			return 0, fmt.Errorf("invalid log scope: %q", name)
		}
	}
	return scopes, nil
}

// New returns a logger writing to w at the given level ("debug", "info", "warn" or "error"). The
// development logger uses the console encoder, otherwise entries are JSON.
func New(w io.Writer, level string, development bool) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	var encoderConfig zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if development {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.TimeKey = ""
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = ""
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), lvl)
	opts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(w))}
	if development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}

// Scoped returns logger when scope is enabled in scopes, and a no-op logger otherwise.
func Scoped(logger *zap.Logger, scopes, scope LogScopes) *zap.Logger {
	if logger == nil || !scopes.IsEnabled(scope) {
		return zap.NewNop()
	}
	return logger.Named(scopeName(scope))
}
