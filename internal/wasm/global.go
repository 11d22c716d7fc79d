package wasm

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrImmutableGlobal is returned by Global.Set on a global which is not mutable.
	ErrImmutableGlobal = errors.New("global is immutable")
	// ErrGlobalTypeMismatch is returned by Global.Set when the value type differs from the global's.
	ErrGlobalTypeMismatch = errors.New("global type mismatch")
)

// globalStorage is the cell shared by every Global cloned from the same origin.
type globalStorage struct {
	mux sync.RWMutex
	val uint64
}

// Global is a typed value cell. Copies made with Clone share the same storage, so a write through any of
// them is visible to all. Mutability is checked on every write.
type Global struct {
	Type    GlobalType
	storage *globalStorage
}

// NewGlobal returns an immutable global holding v.
func NewGlobal(v Value) *Global {
	return &Global{Type: GlobalType{ValType: v.Type}, storage: &globalStorage{val: v.Bits}}
}

// NewMutableGlobal returns a mutable global initially holding v.
func NewMutableGlobal(v Value) *Global {
	return &Global{Type: GlobalType{ValType: v.Type, Mutable: true}, storage: &globalStorage{val: v.Bits}}
}

// Get returns the current value.
func (g *Global) Get() Value {
	g.storage.mux.RLock()
	defer g.storage.mux.RUnlock()
	return Value{Type: g.Type.ValType, Bits: g.storage.val}
}

// Set replaces the current value.
func (g *Global) Set(v Value) error {
	if !g.Type.Mutable {
		return ErrImmutableGlobal
	}
	if v.Type != g.Type.ValType {
		return fmt.Errorf("%w: expected %s but got %s", ErrGlobalTypeMismatch,
			ValueTypeName(g.Type.ValType), ValueTypeName(v.Type))
	}
	g.storage.mux.Lock()
	defer g.storage.mux.Unlock()
	g.storage.val = v.Bits
	return nil
}

// Clone returns another handle to the same storage.
func (g *Global) Clone() *Global {
	return &Global{Type: g.Type, storage: g.storage}
}

// String implements fmt.Stringer
func (g *Global) String() string {
	return fmt.Sprintf("global(%s)", g.Get())
}
