package types

import (
	"strconv"
)

// IsCopy reports whether values of the given type are duplicated on use
// instead of moved. This mirrors the type checker's classification:
// primitives, shared references, fixed arrays and tuples of Copy types,
// and nominal types the checker marked @copy.
func (in *Interner) IsCopy(id TypeID) bool {
	return in.isCopy(id, make(map[TypeID]bool))
}

func (in *Interner) isCopy(id TypeID, seen map[TypeID]bool) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	if done, visiting := seen[id]; visiting {
		return done
	}
	seen[id] = true
	switch tt.Kind {
	case KindUnit, KindBool, KindInt, KindFloat:
		return true
	case KindReference:
		return !tt.Mutable
	case KindArray:
		if tt.Count == ArrayDynamicLength {
			return false
		}
		return in.isCopy(tt.Elem, seen)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		for _, el := range info.Elems {
			if !in.isCopy(el, seen) {
				return false
			}
		}
		return true
	case KindStruct:
		info, _ := in.StructInfo(id)
		return info.Copy && !info.Drop
	case KindEnum:
		info, _ := in.EnumInfo(id)
		return info.Copy && !info.Drop
	case KindClosure:
		info, _ := in.ClosureInfo(id)
		for _, c := range info.Captures {
			if !in.isCopy(c, seen) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// NeedsDrop reports whether destroying a value of the type has an
// observable effect, i.e. the type owns a destructor somewhere inside.
func (in *Interner) NeedsDrop(id TypeID) bool {
	return in.needsDrop(id, make(map[TypeID]struct{}))
}

func (in *Interner) needsDrop(id TypeID, seen map[TypeID]struct{}) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	if _, visiting := seen[id]; visiting {
		return false
	}
	seen[id] = struct{}{}
	switch tt.Kind {
	case KindString:
		return true
	case KindArray:
		return tt.Count == ArrayDynamicLength || in.needsDrop(tt.Elem, seen)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		for _, el := range info.Elems {
			if in.needsDrop(el, seen) {
				return true
			}
		}
	case KindStruct:
		info, _ := in.StructInfo(id)
		if info.Drop {
			return true
		}
		for _, f := range info.Fields {
			if in.needsDrop(f.Type, seen) {
				return true
			}
		}
	case KindEnum:
		info, _ := in.EnumInfo(id)
		if info.Drop {
			return true
		}
		for _, v := range info.Variants {
			for _, f := range v.Fields {
				if in.needsDrop(f, seen) {
					return true
				}
			}
		}
	case KindClosure:
		info, _ := in.ClosureInfo(id)
		for _, c := range info.Captures {
			if in.needsDrop(c, seen) {
				return true
			}
		}
	}
	return false
}

// ContainsRef reports whether a value of the type may carry a reference.
func (in *Interner) ContainsRef(id TypeID) bool {
	return in.containsRef(id, make(map[TypeID]struct{}))
}

func (in *Interner) containsRef(id TypeID, seen map[TypeID]struct{}) bool {
	tt, ok := in.Lookup(id)
	if !ok {
		return false
	}
	if _, visiting := seen[id]; visiting {
		return false
	}
	seen[id] = struct{}{}
	switch tt.Kind {
	case KindReference:
		return true
	case KindArray:
		return in.containsRef(tt.Elem, seen)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		for _, el := range info.Elems {
			if in.containsRef(el, seen) {
				return true
			}
		}
	case KindStruct:
		info, _ := in.StructInfo(id)
		for _, f := range info.Fields {
			if in.containsRef(f.Type, seen) {
				return true
			}
		}
	case KindEnum:
		info, _ := in.EnumInfo(id)
		for _, v := range info.Variants {
			for _, f := range v.Fields {
				if in.containsRef(f, seen) {
					return true
				}
			}
		}
	case KindClosure:
		info, _ := in.ClosureInfo(id)
		for _, c := range info.Captures {
			if in.containsRef(c, seen) {
				return true
			}
		}
	}
	return false
}

// IsReference reports whether id is `ref T` or `mut ref T`.
func (in *Interner) IsReference(id TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == KindReference
}

// Deref returns the referent of a reference type.
func (in *Interner) Deref(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindReference {
		return NoTypeID, false
	}
	return tt.Elem, true
}

// Field resolves a named field of a struct or a positional field of a tuple.
func (in *Interner) Field(id TypeID, name string) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return NoTypeID, false
	}
	switch tt.Kind {
	case KindStruct:
		info, _ := in.StructInfo(id)
		for _, f := range info.Fields {
			if f.Name == name {
				return f.Type, true
			}
		}
	case KindTuple:
		info, _ := in.TupleInfo(id)
		idx, err := strconv.Atoi(name)
		if err == nil && idx >= 0 && idx < len(info.Elems) {
			return info.Elems[idx], true
		}
	}
	return NoTypeID, false
}

// FieldNames lists field projections of a struct or tuple in declaration order.
func (in *Interner) FieldNames(id TypeID) []string {
	tt, ok := in.Lookup(id)
	if !ok {
		return nil
	}
	switch tt.Kind {
	case KindStruct:
		info, _ := in.StructInfo(id)
		out := make([]string, len(info.Fields))
		for i, f := range info.Fields {
			out[i] = f.Name
		}
		return out
	case KindTuple:
		info, _ := in.TupleInfo(id)
		out := make([]string, len(info.Elems))
		for i := range info.Elems {
			out[i] = strconv.Itoa(i)
		}
		return out
	}
	return nil
}

// HasDestructor reports whether the nominal type itself declares a destructor;
// such values cannot be destructured by partial moves.
func (in *Interner) HasDestructor(id TypeID) bool {
	if info, ok := in.StructInfo(id); ok {
		return info.Drop
	}
	if info, ok := in.EnumInfo(id); ok {
		return info.Drop
	}
	return false
}

// VariantField resolves positional payload field idx of an enum variant.
func (in *Interner) VariantField(id TypeID, variant string, idx int) (TypeID, bool) {
	v, ok := in.Variant(id, variant)
	if !ok || idx < 0 || idx >= len(v.Fields) {
		return NoTypeID, false
	}
	return v.Fields[idx], true
}
