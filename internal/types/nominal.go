package types

import "slices"

// TupleInfo stores the element types for a tuple type.
type TupleInfo struct {
	Elems []TypeID
}

// StructField describes a single field inside a nominal struct type.
type StructField struct {
	Name string
	Type TypeID
}

// StructInfo stores metadata for a struct type.
type StructInfo struct {
	Name   string
	Fields []StructField
	// Copy is the type checker's verdict for @copy structs.
	Copy bool
	// Drop marks types with a user-defined destructor.
	Drop bool
}

// EnumVariant is a single tagged alternative with positional payload.
type EnumVariant struct {
	Name   string
	Fields []TypeID
}

// EnumInfo stores metadata for an enum (tagged union) type.
type EnumInfo struct {
	Name     string
	Variants []EnumVariant
	Copy     bool
	Drop     bool
}

// ClosureInfo records the types of captured values. A by-reference
// capture is recorded as the corresponding reference type.
type ClosureInfo struct {
	Captures []TypeID
}

// RegisterTuple creates a tuple type with the given elements.
func (in *Interner) RegisterTuple(elems []TypeID) TypeID {
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind == KindTuple && slices.Equal(in.tuples[tt.Payload].Elems, elems) {
			return id
		}
	}
	in.tuples = append(in.tuples, TupleInfo{Elems: slices.Clone(elems)})
	return in.internRaw(Type{Kind: KindTuple, Payload: slotOf(len(in.tuples) - 1)})
}

// RegisterStruct allocates a nominal struct type and binds its name.
func (in *Interner) RegisterStruct(info StructInfo) TypeID {
	info.Fields = slices.Clone(info.Fields)
	in.structs = append(in.structs, info)
	id := in.internRaw(Type{Kind: KindStruct, Payload: slotOf(len(in.structs) - 1)})
	in.bindName(info.Name, id)
	return id
}

// SetStructFields replaces the field list; used to close recursive declarations.
func (in *Interner) SetStructFields(id TypeID, fields []StructField) {
	if info, ok := in.StructInfo(id); ok {
		info.Fields = slices.Clone(fields)
	}
}

// RegisterEnum allocates a nominal enum type and binds its name.
func (in *Interner) RegisterEnum(info EnumInfo) TypeID {
	variants := make([]EnumVariant, len(info.Variants))
	for i, v := range info.Variants {
		variants[i] = EnumVariant{Name: v.Name, Fields: slices.Clone(v.Fields)}
	}
	info.Variants = variants
	in.enums = append(in.enums, info)
	id := in.internRaw(Type{Kind: KindEnum, Payload: slotOf(len(in.enums) - 1)})
	in.bindName(info.Name, id)
	return id
}

// SetEnumVariants replaces the variant list of an enum declared ahead of
// its payload types.
func (in *Interner) SetEnumVariants(id TypeID, variants []EnumVariant) {
	info, ok := in.EnumInfo(id)
	if !ok {
		return
	}
	info.Variants = make([]EnumVariant, len(variants))
	for i, v := range variants {
		info.Variants[i] = EnumVariant{Name: v.Name, Fields: slices.Clone(v.Fields)}
	}
}

// RegisterClosure allocates a fresh closure type; closures are never deduplicated.
func (in *Interner) RegisterClosure(captures []TypeID) TypeID {
	in.closures = append(in.closures, ClosureInfo{Captures: slices.Clone(captures)})
	return in.internRaw(Type{Kind: KindClosure, Payload: slotOf(len(in.closures) - 1)})
}

// TupleInfo returns the element types for a tuple TypeID.
func (in *Interner) TupleInfo(id TypeID) (*TupleInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindTuple || int(tt.Payload) >= len(in.tuples) {
		return nil, false
	}
	return &in.tuples[tt.Payload], true
}

// StructInfo returns metadata for the provided struct TypeID.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindStruct || int(tt.Payload) >= len(in.structs) {
		return nil, false
	}
	return &in.structs[tt.Payload], true
}

// EnumInfo returns metadata for the provided enum TypeID.
func (in *Interner) EnumInfo(id TypeID) (*EnumInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindEnum || int(tt.Payload) >= len(in.enums) {
		return nil, false
	}
	return &in.enums[tt.Payload], true
}

// ClosureInfo returns capture metadata for a closure TypeID.
func (in *Interner) ClosureInfo(id TypeID) (*ClosureInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindClosure || int(tt.Payload) >= len(in.closures) {
		return nil, false
	}
	return &in.closures[tt.Payload], true
}

// Variant returns the enum variant by name.
func (in *Interner) Variant(id TypeID, name string) (*EnumVariant, bool) {
	info, ok := in.EnumInfo(id)
	if !ok {
		return nil, false
	}
	for i := range info.Variants {
		if info.Variants[i].Name == name {
			return &info.Variants[i], true
		}
	}
	return nil, false
}

// SetClosureCaptures replaces the capture list of a closure type.
func (in *Interner) SetClosureCaptures(id TypeID, captures []TypeID) {
	if info, ok := in.ClosureInfo(id); ok {
		info.Captures = slices.Clone(captures)
	}
}
