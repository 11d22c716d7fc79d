package singlepass

// Offset represents an offset of a field in the VM context.
type Offset int32

// U32 encodes an Offset as uint32 for convenience.
func (o Offset) U32() uint32 {
	return uint32(o)
}

// I64 encodes an Offset as int64 for convenience.
func (o Offset) I64() int64 {
	return int64(o)
}

// VMContextOffsets describes the layout of the VM context pointed to by x28 in generated code:
//
//	[dynamic function context address]           8 bytes
//	[imported function 0 body, vmctx] ...        16 bytes each
//	[imported memory 0 definition pointer] ...   8 bytes each
//	[local memory 0 {base, bound}] ...           16 bytes each
//	[global 0 cell pointer] ...                  8 bytes each
//
// A memory definition is always {base, bound}: the bound is the current length in bytes.
type VMContextOffsets struct {
	ImportedFunctions uint32
	ImportedMemories  uint32
	LocalMemories     uint32
	Globals           uint32
}

// DynamicFunctionContextAddress is the offset of the host function address used by dynamic import trampolines.
func (o VMContextOffsets) DynamicFunctionContextAddress() Offset {
	return 0
}

func (o VMContextOffsets) importedFunctionsBegin() Offset { return 8 }

func (o VMContextOffsets) importedMemoriesBegin() Offset {
	return o.importedFunctionsBegin() + Offset(o.ImportedFunctions)*16
}

func (o VMContextOffsets) localMemoriesBegin() Offset {
	return o.importedMemoriesBegin() + Offset(o.ImportedMemories)*8
}

func (o VMContextOffsets) globalsBegin() Offset {
	return o.localMemoriesBegin() + Offset(o.LocalMemories)*16
}

// ImportedFunction returns the offset of the {body, vmctx} pair of the index-th imported function.
func (o VMContextOffsets) ImportedFunction(index uint32) Offset {
	return o.importedFunctionsBegin() + Offset(index)*16
}

// ImportedMemory returns the offset of the pointer to the index-th imported memory definition.
func (o VMContextOffsets) ImportedMemory(index uint32) Offset {
	return o.importedMemoriesBegin() + Offset(index)*8
}

// LocalMemory returns the offset of the index-th local memory definition.
func (o VMContextOffsets) LocalMemory(index uint32) Offset {
	return o.localMemoriesBegin() + Offset(index)*16
}

// Global returns the offset of the pointer to the index-th global cell.
func (o VMContextOffsets) Global(index uint32) Offset {
	return o.globalsBegin() + Offset(index)*8
}

// Size returns the size of the whole context in bytes.
func (o VMContextOffsets) Size() int {
	return int(o.globalsBegin()) + int(o.Globals)*8
}
