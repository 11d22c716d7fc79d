package compiler

import (
	"fmt"

	"github.com/xlab/treeprint"
)

// Summary renders the layout of a linked module as a tree:
//
//	module
//	├── functions
//	│   └── [0x0000]  add (64 bytes)
//	│       ├── trap stack_overflow at +0x0 (body[0])
//	│       └── relocation arm64_movw0 -> func[1] at +0x20
//	├── import calls
//	├── entry trampolines
//	├── dynamic import trampolines
//	├── globals
//	└── vmctx (24 bytes)
func Summary(cm *CompiledModule, img *Image) string {
	tree := treeprint.New()
	tree.SetValue("module")

	functions := tree.AddBranch("functions")
	imports := tree.AddBranch("import calls")
	entries := tree.AddBranch("entry trampolines")
	dynamics := tree.AddBranch("dynamic import trampolines")
	for _, s := range img.Symbols {
		meta := fmt.Sprintf("0x%04x", s.Offset)
		switch s.Kind {
		case SymbolKindFunction:
			f := cm.Functions[s.Index]
			name := f.Name
			if name == "" {
				name = fmt.Sprintf("func[%d]", s.Index)
			}
			b := functions.AddMetaBranch(meta, fmt.Sprintf("%s (%d bytes)", name, s.Size))
			for _, t := range f.Traps {
				b.AddNode(fmt.Sprintf("trap %s at +%#x (body[%d])", t.TrapCode, t.CodeOffset, t.SourceLoc))
			}
			for _, r := range f.Relocations {
				b.AddNode(fmt.Sprintf("relocation %s -> %s at +%#x", r.Kind, r.Target, r.Offset))
			}
		case SymbolKindImportCall:
			imports.AddMetaNode(meta, fmt.Sprintf("section[%d] %s (%d bytes)", s.Index, cm.CustomSections[s.Index].Protection, s.Size))
		case SymbolKindEntryTrampoline:
			entries.AddMetaNode(meta, fmt.Sprintf("%s (%d bytes)", s.Name, s.Size))
		case SymbolKindDynamicImportTrampoline:
			dynamics.AddMetaNode(meta, fmt.Sprintf("import[%d] (%d bytes)", s.Index, s.Size))
		}
	}

	globals := tree.AddBranch("globals")
	for i, g := range cm.Globals {
		mutability := "const"
		if g.Type.Mutable {
			mutability = "mut"
		}
		globals.AddMetaNode(fmt.Sprintf("%#x", cm.Offsets.Global(uint32(i))), fmt.Sprintf("%s %s", mutability, g))
	}
	tree.AddNode(fmt.Sprintf("vmctx (%d bytes)", cm.Offsets.Size()))
	return tree.String()
}
