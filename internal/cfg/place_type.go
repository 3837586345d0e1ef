package cfg

import (
	"strconv"

	"borrowck/internal/types"
)

// PlaceType computes the type denoted by p by walking its projections.
func (f *Func) PlaceType(typesIn *types.Interner, p Place) (types.TypeID, bool) {
	if !f.validLocal(p.Local) || typesIn == nil {
		return types.NoTypeID, false
	}
	ty := f.Locals[p.Local].Type
	variant := ""
	for _, pr := range p.Proj {
		switch pr.Kind {
		case ProjDeref:
			elem, ok := typesIn.Deref(ty)
			if !ok {
				return types.NoTypeID, false
			}
			ty = elem
		case ProjField:
			if variant != "" {
				idx, err := strconv.Atoi(pr.Field)
				if err != nil {
					return types.NoTypeID, false
				}
				fty, ok := typesIn.VariantField(ty, variant, idx)
				if !ok {
					return types.NoTypeID, false
				}
				ty, variant = fty, ""
				continue
			}
			fty, ok := typesIn.Field(ty, pr.Field)
			if !ok {
				return types.NoTypeID, false
			}
			ty = fty
		case ProjIndex:
			tt, ok := typesIn.Lookup(ty)
			if !ok || tt.Kind != types.KindArray {
				return types.NoTypeID, false
			}
			ty = tt.Elem
		case ProjVariant:
			if _, ok := typesIn.Variant(ty, pr.Variant); !ok {
				return types.NoTypeID, false
			}
			variant = pr.Variant
		}
	}
	// A trailing downcast keeps the enum type.
	return ty, true
}
