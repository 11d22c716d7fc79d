package compiler

import (
	"errors"
	"fmt"

	"github.com/tetratelabs/singlepass/internal/asm"
	"github.com/tetratelabs/singlepass/internal/engine/singlepass"
)

// ErrUnresolved is returned by Link for relocations whose target is not part of the image.
var ErrUnresolved = errors.New("unresolved relocation target")

// SymbolKind is the kind of code a Symbol points to.
type SymbolKind byte

const (
	SymbolKindFunction SymbolKind = iota
	SymbolKindImportCall
	SymbolKindEntryTrampoline
	SymbolKindDynamicImportTrampoline
)

// String implements fmt.Stringer.
func (k SymbolKind) String() string {
	switch k {
	case SymbolKindFunction:
		return "function"
	case SymbolKindImportCall:
		return "import_call"
	case SymbolKindEntryTrampoline:
		return "entry_trampoline"
	case SymbolKindDynamicImportTrampoline:
		return "dynamic_import_trampoline"
	}
	return fmt.Sprintf("symbol_kind(%d)", byte(k))
}

// Symbol locates one piece of code in an Image.
type Symbol struct {
	Kind SymbolKind
	// Index is the index of the piece among those of the same kind.
	Index int
	Name  string
	// Offset is relative to the beginning of Image.Code and 16-byte aligned.
	Offset, Size int
}

// Image is a linked module, ready to be mapped at Base.
type Image struct {
	Base    uint64
	Code    []byte
	Symbols []Symbol
}

// Lookup returns the symbol of the given kind and index.
func (img *Image) Lookup(kind SymbolKind, index int) (Symbol, bool) {
	for _, s := range img.Symbols {
		if s.Kind == kind && s.Index == index {
			return s, true
		}
	}
	return Symbol{}, false
}

// Link lays out every function body and trampoline of cm in one code segment, as if mapped at base, and
// resolves the relocations against that layout. Library calls cannot be resolved by Link.
func Link(cm *CompiledModule, base uint64) (*Image, error) {
	var seg asm.CodeSegment
	img := &Image{Base: base}
	place := func(kind SymbolKind, index int, name string, body []byte) {
		buf := seg.Next()
		img.Symbols = append(img.Symbols, Symbol{Kind: kind, Index: index, Name: name, Offset: seg.Size(), Size: len(body)})
		_, _ = buf.Write(body)
	}

	for i, f := range cm.Functions {
		place(SymbolKindFunction, i, f.Name, f.Body)
	}
	for i, s := range cm.CustomSections {
		place(SymbolKindImportCall, i, "", s.Bytes)
	}
	for i, t := range cm.Trampolines {
		place(SymbolKindEntryTrampoline, i, t.Type.String(), t.Body)
	}
	for i, t := range cm.DynamicImportTrampolines {
		place(SymbolKindDynamicImportTrampoline, i, "", t.Body)
	}
	img.Code = seg.Bytes()

	resolve := func(target singlepass.RelocationTarget) (uint64, error) {
		var kind SymbolKind
		switch target.Kind {
		case singlepass.RelocationTargetLocalFunc:
			kind = SymbolKindFunction
		case singlepass.RelocationTargetCustomSection:
			kind = SymbolKindImportCall
		default:
			return 0, fmt.Errorf("%w: %s", ErrUnresolved, target)
		}
		s, ok := img.Lookup(kind, int(target.Index))
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrUnresolved, target)
		}
		return base + uint64(s.Offset), nil
	}
	patch := func(s Symbol, relocations []singlepass.Relocation) error {
		code := img.Code[s.Offset : s.Offset+s.Size]
		return singlepass.ResolveRelocations(code, base+uint64(s.Offset), relocations, resolve)
	}

	for _, s := range img.Symbols {
		var err error
		switch s.Kind {
		case SymbolKindFunction:
			err = patch(s, cm.Functions[s.Index].Relocations)
		case SymbolKindImportCall:
			err = patch(s, cm.CustomSections[s.Index].Relocations)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to link %s[%d]: %w", s.Kind, s.Index, err)
		}
	}
	return img, nil
}
