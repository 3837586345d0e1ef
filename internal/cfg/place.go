package cfg

import (
	"slices"
	"strconv"
	"strings"
)

type ProjKind uint8

const (
	ProjDeref ProjKind = iota
	ProjField
	ProjIndex
	// ProjVariant downcasts an enum place to one of its variants.
	ProjVariant
)

// Proj is one step of an access path. Field holds the field name (tuple
// fields are numbered), Variant the downcast target. Index projections use
// IndexLocal when the index is a variable and Const otherwise.
type Proj struct {
	Kind ProjKind

	Field      string
	Variant    string
	IndexLocal LocalID
	Const      int64
}

// Place is a rooted access path. Places are immutable values; projection
// helpers always copy.
type Place struct {
	Local LocalID
	Proj  []Proj
}

func LocalPlace(id LocalID) Place { return Place{Local: id} }

func (p Place) IsValid() bool { return p.Local != NoLocalID }

// IsLocal reports whether p has no projections.
func (p Place) IsLocal() bool { return len(p.Proj) == 0 }

func (p Place) project(pr Proj) Place {
	proj := make([]Proj, len(p.Proj), len(p.Proj)+1)
	copy(proj, p.Proj)
	return Place{Local: p.Local, Proj: append(proj, pr)}
}

func (p Place) Field(name string) Place {
	return p.project(Proj{Kind: ProjField, Field: name, IndexLocal: NoLocalID})
}
func (p Place) Deref() Place { return p.project(Proj{Kind: ProjDeref, IndexLocal: NoLocalID}) }
func (p Place) Variant(name string) Place {
	return p.project(Proj{Kind: ProjVariant, Variant: name, IndexLocal: NoLocalID})
}
func (p Place) Index(local LocalID) Place {
	return p.project(Proj{Kind: ProjIndex, IndexLocal: local})
}
func (p Place) ConstIndex(n int64) Place {
	return p.project(Proj{Kind: ProjIndex, IndexLocal: NoLocalID, Const: n})
}

// Parent drops the last projection.
func (p Place) Parent() (Place, bool) {
	if len(p.Proj) == 0 {
		return p, false
	}
	return Place{Local: p.Local, Proj: slices.Clone(p.Proj[:len(p.Proj)-1])}, true
}

// Prefix returns p truncated to n projections.
func (p Place) Prefix(n int) Place {
	if n >= len(p.Proj) {
		return p
	}
	return Place{Local: p.Local, Proj: slices.Clone(p.Proj[:n])}
}

// HasDeref reports whether any projection dereferences a pointer.
func (p Place) HasDeref() bool {
	return slices.ContainsFunc(p.Proj, func(pr Proj) bool { return pr.Kind == ProjDeref })
}

// FirstDeref returns the index of the first Deref projection or -1.
func (p Place) FirstDeref() int {
	return slices.IndexFunc(p.Proj, func(pr Proj) bool { return pr.Kind == ProjDeref })
}

func (p Place) Equal(o Place) bool {
	return p.Local == o.Local && len(p.Proj) == len(o.Proj) && p.IsPrefixOf(o)
}

// IsPrefixOf reports whether p is a (non-strict) prefix of o: o is p or a
// projection path below it.
func (p Place) IsPrefixOf(o Place) bool {
	if p.Local != o.Local || len(p.Proj) > len(o.Proj) {
		return false
	}
	for i := range p.Proj {
		if !projSame(p.Proj[i], o.Proj[i]) {
			return false
		}
	}
	return true
}

// Disjoint reports whether the two places can never denote overlapping
// storage. Different roots are disjoint. Paths that diverge at a field or
// variant projection are disjoint unless both continue through a deref
// afterwards, since two distinct pointers may point at the same value.
// Index projections never prove disjointness.
func Disjoint(a, b Place) bool {
	if a.Local != b.Local {
		return true
	}
	n := min(len(a.Proj), len(b.Proj))
	for i := 0; i < n; i++ {
		pa, pb := a.Proj[i], b.Proj[i]
		if projSame(pa, pb) {
			continue
		}
		if pa.Kind != pb.Kind {
			return false
		}
		switch pa.Kind {
		case ProjField, ProjVariant:
			return !(hasDerefFrom(a, i+1) && hasDerefFrom(b, i+1))
		default:
			// Indices may alias; keep walking conservatively.
			continue
		}
	}
	return false
}

// Overlaps is the negation of Disjoint.
func Overlaps(a, b Place) bool { return !Disjoint(a, b) }

func hasDerefFrom(p Place, from int) bool {
	for _, pr := range p.Proj[from:] {
		if pr.Kind == ProjDeref {
			return true
		}
	}
	return false
}

func projSame(a, b Proj) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ProjField:
		return a.Field == b.Field
	case ProjVariant:
		return a.Variant == b.Variant
	case ProjIndex:
		return a.IndexLocal == b.IndexLocal && (a.IndexLocal != NoLocalID || a.Const == b.Const)
	default:
		return true
	}
}

// Key renders a stable textual key usable for interning.
func (p Place) Key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(p.Local)))
	for _, pr := range p.Proj {
		switch pr.Kind {
		case ProjDeref:
			sb.WriteString("|*")
		case ProjField:
			sb.WriteString("|.")
			sb.WriteString(pr.Field)
		case ProjVariant:
			sb.WriteString("|@")
			sb.WriteString(pr.Variant)
		case ProjIndex:
			if pr.IndexLocal != NoLocalID {
				sb.WriteString("|[L")
				sb.WriteString(strconv.Itoa(int(pr.IndexLocal)))
			} else {
				sb.WriteString("|[")
				sb.WriteString(strconv.FormatInt(pr.Const, 10))
			}
		}
	}
	return sb.String()
}

// PlaceString renders p with the function's local names, e.g. `c.items`,
// `*r`, `(*r).x`, `data[i]`, `o@Some.0`.
func (f *Func) PlaceString(p Place) string {
	s := f.LocalName(p.Local)
	for i, pr := range p.Proj {
		switch pr.Kind {
		case ProjDeref:
			s = "*" + s
			if i+1 < len(p.Proj) {
				s = "(" + s + ")"
			}
		case ProjField:
			s += "." + pr.Field
		case ProjVariant:
			s += "@" + pr.Variant
		case ProjIndex:
			if pr.IndexLocal != NoLocalID {
				s += "[" + f.LocalName(pr.IndexLocal) + "]"
			} else {
				s += "[" + strconv.FormatInt(pr.Const, 10) + "]"
			}
		}
	}
	return s
}

func itoa(n int) string { return strconv.Itoa(n) }
