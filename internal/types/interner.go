package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Unit   TypeID
	Bool   TypeID
	Int    TypeID
	Float  TypeID
	String TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors and
// owns the nominal side tables. It is the type table handed over by the
// type checker and must not be mutated once analysis starts.
type Interner struct {
	types    []Type
	index    map[Type]TypeID
	builtins Builtins
	tuples   []TupleInfo
	structs  []StructInfo
	enums    []EnumInfo
	closures []ClosureInfo
	names    map[string]TypeID
	funcs    map[string]*FuncSig
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[Type]TypeID, 64),
		names: make(map[string]TypeID, 16),
		funcs: make(map[string]*FuncSig, 16),
	}
	in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Int = in.Intern(Type{Kind: KindInt})
	in.builtins.Float = in.Intern(Type{Kind: KindFloat})
	in.builtins.String = in.Intern(Type{Kind: KindString})
	in.names["unit"] = in.builtins.Unit
	in.names["bool"] = in.builtins.Bool
	in.names["int"] = in.builtins.Int
	in.names["float"] = in.builtins.Float
	in.names["string"] = in.builtins.String
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided structural descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if id, ok := in.index[t]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[t] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if in == nil || id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Named returns the type registered under name (builtins included).
func (in *Interner) Named(name string) (TypeID, bool) {
	if in == nil {
		return NoTypeID, false
	}
	id, ok := in.names[name]
	return id, ok
}

// Len reports the number of interned types including the invalid sentinel.
func (in *Interner) Len() int {
	if in == nil {
		return 0
	}
	return len(in.types)
}

func (in *Interner) bindName(name string, id TypeID) {
	if name != "" {
		in.names[name] = id
	}
}

func slotOf(n int) uint32 {
	slot, err := safecast.Conv[uint32](n)
	if err != nil {
		panic(fmt.Errorf("side table overflow: %w", err))
	}
	return slot
}
