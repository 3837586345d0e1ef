package types

import (
	"fmt"
	"strings"
)

// Format renders a type the way diagnostics and dumps show it.
func (in *Interner) Format(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch tt.Kind {
	case KindUnit, KindBool, KindInt, KindFloat, KindString:
		return tt.Kind.String()
	case KindArray:
		if tt.Count == ArrayDynamicLength {
			return in.Format(tt.Elem) + "[]"
		}
		return fmt.Sprintf("%s[%d]", in.Format(tt.Elem), tt.Count)
	case KindReference:
		if tt.Mutable {
			return "mut ref " + in.Format(tt.Elem)
		}
		return "ref " + in.Format(tt.Elem)
	case KindTuple:
		info, _ := in.TupleInfo(id)
		parts := make([]string, len(info.Elems))
		for i, el := range info.Elems {
			parts[i] = in.Format(el)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindStruct:
		info, _ := in.StructInfo(id)
		return info.Name
	case KindEnum:
		info, _ := in.EnumInfo(id)
		return info.Name
	case KindClosure:
		return fmt.Sprintf("closure#%d", tt.Payload)
	default:
		return tt.Kind.String()
	}
}

// Parse resolves a textual type: a registered name, `ref T`, `mut ref T`,
// `T[]`, `T[N]` or a tuple `(A, B)`.
func (in *Interner) Parse(s string) (TypeID, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return NoTypeID, fmt.Errorf("empty type")
	case strings.HasPrefix(s, "mut ref "):
		elem, err := in.Parse(s[len("mut ref "):])
		if err != nil {
			return NoTypeID, err
		}
		return in.Intern(MakeReference(elem, true)), nil
	case strings.HasPrefix(s, "ref "):
		elem, err := in.Parse(s[len("ref "):])
		if err != nil {
			return NoTypeID, err
		}
		return in.Intern(MakeReference(elem, false)), nil
	case strings.HasSuffix(s, "]"):
		open := strings.LastIndexByte(s, '[')
		if open <= 0 {
			return NoTypeID, fmt.Errorf("malformed array type %q", s)
		}
		elem, err := in.Parse(s[:open])
		if err != nil {
			return NoTypeID, err
		}
		countStr := s[open+1 : len(s)-1]
		if countStr == "" {
			return in.Intern(MakeArray(elem, ArrayDynamicLength)), nil
		}
		var count uint32
		if _, err := fmt.Sscanf(countStr, "%d", &count); err != nil {
			return NoTypeID, fmt.Errorf("malformed array length in %q: %w", s, err)
		}
		return in.Intern(MakeArray(elem, count)), nil
	case strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
		inner := strings.TrimSpace(s[1 : len(s)-1])
		if inner == "" {
			return in.builtins.Unit, nil
		}
		var elems []TypeID
		for _, part := range splitTopLevel(inner) {
			el, err := in.Parse(part)
			if err != nil {
				return NoTypeID, err
			}
			elems = append(elems, el)
		}
		return in.RegisterTuple(elems), nil
	}
	if id, ok := in.Named(s); ok {
		return id, nil
	}
	return NoTypeID, fmt.Errorf("unknown type %q", s)
}

func splitTopLevel(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
