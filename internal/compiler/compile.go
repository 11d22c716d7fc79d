// Package compiler drives the singlepass Machine over the functions of a small text program and links the
// results into one relocated code image.
package compiler

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tetratelabs/singlepass/internal/config"
	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
	"github.com/tetratelabs/singlepass/internal/logging"
	"github.com/tetratelabs/singlepass/internal/wasm"
)

// CompileError is returned by CompileModule when a function fails to compile.
type CompileError struct {
	// FuncIndex is the index of the function among the defined ones.
	FuncIndex int
	Err       error
}

// Error implements error.
func (e *CompileError) Error() string {
	return fmt.Sprintf("failed to compile func[%d]: %v", e.FuncIndex, e.Err)
}

// Unwrap returns the cause.
func (e *CompileError) Unwrap() error { return e.Err }

// Trampoline is the entry trampoline shared by every defined function of one signature.
type Trampoline struct {
	Type *wasm.FunctionType
	singlepass.FunctionBody
}

// CompiledModule is the unlinked output of CompileModule. Every slice is in index order.
type CompiledModule struct {
	Functions []*CompiledFunction
	// Trampolines are sorted by signature.
	Trampolines []Trampoline
	// DynamicImportTrampolines has one entry per import, to be installed when the host provides a
	// function through the dynamic calling convention.
	DynamicImportTrampolines []singlepass.FunctionBody
	// CustomSections has the import call trampoline of each import, at the import's index.
	CustomSections []singlepass.CustomSection
	Globals        []*wasm.Global
	Offsets        singlepass.VMContextOffsets
}

// Compiler compiles modules for one configuration. It is safe for concurrent use.
type Compiler struct {
	cfg              config.Compiler
	cc               singlepass.CallingConvention
	logger           *zap.Logger
	trampolineLogger *zap.Logger
}

// New validates cfg and returns a Compiler logging the events enabled in scopes.
func New(cfg config.Compiler, logger *zap.Logger, scopes logging.LogScopes) (*Compiler, error) {
	cc, err := cfg.ParsedCallingConvention()
	if err != nil {
		return nil, err
	}
	if _, err = singlepass.NewMachine(cfg.Architecture); err != nil {
		return nil, err
	}
	return &Compiler{
		cfg:              cfg,
		cc:               cc,
		logger:           logging.Scoped(logger, scopes, logging.LogScopeCompile),
		trampolineLogger: logging.Scoped(logger, scopes, logging.LogScopeTrampoline),
	}, nil
}

// CompileModule compiles the functions of mod in parallel, one Machine per function, and generates the
// trampolines the module needs. The result does not depend on the scheduling of the workers.
func (c *Compiler) CompileModule(ctx context.Context, mod *Module) (*CompiledModule, error) {
	functions := make([]*CompiledFunction, len(mod.Functions))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers())
	for i := range mod.Functions {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := singlepass.NewMachine(c.cfg.Architecture)
			if err != nil {
				return err
			}
			cf, err := lowerFunction(m, c.cfg, c.cc, mod, i)
			if err != nil {
				return &CompileError{FuncIndex: i, Err: err}
			}
			functions[i] = cf
			c.logger.Debug("compiled function",
				zap.Int("index", i),
				zap.String("name", cf.Name),
				zap.Int("size", len(cf.Body)),
				zap.Int("relocations", len(cf.Relocations)),
				zap.Int("traps", len(cf.Traps)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	offsets := mod.VMContextOffsets()
	cm := &CompiledModule{Functions: functions, Globals: mod.Globals, Offsets: offsets}
	cm.Trampolines = c.trampolines(mod)
	for i, imp := range mod.Imports {
		cm.DynamicImportTrampolines = append(cm.DynamicImportTrampolines, singlepass.GenStdDynamicImportTrampoline(offsets, imp.Type, c.cc))
		cm.CustomSections = append(cm.CustomSections, singlepass.GenImportCallTrampoline(offsets, uint32(i), imp.Type, c.cc))
		c.trampolineLogger.Debug("generated import trampolines",
			zap.String("module", imp.Module), zap.String("name", imp.Name), zap.Stringer("type", imp.Type))
	}
	return cm, nil
}

// trampolines returns one entry trampoline per distinct signature of the defined functions.
func (c *Compiler) trampolines(mod *Module) []Trampoline {
	seen := map[string]*wasm.FunctionType{}
	for _, fn := range mod.Functions {
		seen[fn.Type.String()] = fn.Type
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ret := make([]Trampoline, 0, len(keys))
	for _, k := range keys {
		typ := seen[k]
		ret = append(ret, Trampoline{Type: typ, FunctionBody: singlepass.GenStdTrampoline(typ, c.cc)})
		c.trampolineLogger.Debug("generated entry trampoline", zap.String("type", k))
	}
	return ret
}
