package cfg

import (
	"borrowck/internal/source"
	"borrowck/internal/types"
)

type BlockID int32
type LocalID int32
type ScopeID int32

const (
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
	NoScopeID ScopeID = -1
)

// BodyScope is the outermost scope of every function. It is open on entry
// and closed by Return.
const BodyScope ScopeID = 0

type LocalFlags uint8

const (
	// LocalFlagParam marks parameters; they are initialized on entry.
	LocalFlagParam LocalFlags = 1 << iota
	// LocalFlagTemp marks compiler temporaries.
	LocalFlagTemp
	// LocalFlagDropFlag marks synthetic booleans inserted by the drop scheduler.
	LocalFlagDropFlag
	// LocalFlagMut marks bindings declared mutable.
	LocalFlagMut
)

// Local is a storage slot of a function. Declaration order inside a scope
// is the LocalID order.
type Local struct {
	Name  string
	Type  types.TypeID
	Flags LocalFlags
	Scope ScopeID
	Span  source.Span
}

// Scope mirrors lexical block nesting.
type Scope struct {
	ID     ScopeID
	Parent ScopeID
	Span   source.Span
}

type Block struct {
	ID     BlockID
	Instrs []Instr
	Term   Terminator
}

func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term.Kind != TermNone
}

type Func struct {
	Name string
	Span source.Span

	Result types.TypeID

	Locals []Local
	Params []LocalID
	Scopes []Scope
	Blocks []Block
	Entry  BlockID
}

// Module groups the functions of one compilation unit.
type Module struct {
	Name  string
	Funcs []*Func
}

// LocalName returns the display name of a local, falling back to `_N`.
func (f *Func) LocalName(id LocalID) string {
	if f == nil || id < 0 || int(id) >= len(f.Locals) {
		return "?"
	}
	if name := f.Locals[id].Name; name != "" {
		return name
	}
	return "_" + itoa(int(id))
}

// LocalByName resolves a local by display name.
func (f *Func) LocalByName(name string) (LocalID, bool) {
	for i := range f.Locals {
		if f.LocalName(LocalID(i)) == name {
			return LocalID(i), true
		}
	}
	return NoLocalID, false
}

// ScopeParent returns the parent scope, or NoScopeID for the body scope.
func (f *Func) ScopeParent(id ScopeID) ScopeID {
	if id < 0 || int(id) >= len(f.Scopes) {
		return NoScopeID
	}
	return f.Scopes[id].Parent
}

// ScopeLocals lists locals declared directly in scope id in declaration order.
func (f *Func) ScopeLocals(id ScopeID) []LocalID {
	var out []LocalID
	for i := range f.Locals {
		if f.Locals[i].Scope == id {
			out = append(out, LocalID(i))
		}
	}
	return out
}

// IsParam reports whether id is a parameter slot.
func (f *Func) IsParam(id LocalID) bool {
	return id >= 0 && int(id) < len(f.Locals) && f.Locals[id].Flags&LocalFlagParam != 0
}

// IsMutable reports whether id may be written after initialization and
// borrowed mutably. Compiler temporaries always may.
func (f *Func) IsMutable(id LocalID) bool {
	if id < 0 || int(id) >= len(f.Locals) {
		return false
	}
	return f.Locals[id].Flags&(LocalFlagMut|LocalFlagTemp|LocalFlagDropFlag) != 0
}

// AddLocal appends a local and returns its id.
func (f *Func) AddLocal(l Local) LocalID {
	f.Locals = append(f.Locals, l)
	return LocalID(len(f.Locals) - 1)
}
