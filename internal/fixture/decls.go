package fixture

import (
	"fmt"
	"strings"

	"borrowck/internal/types"
)

func declareTypes(in *types.Interner, decls []typeDecl) error {
	ids := make([]types.TypeID, len(decls))
	for i, d := range decls {
		if d.Name == "" {
			return fmt.Errorf("type #%d: missing name", i)
		}
		if _, ok := in.Named(d.Name); ok {
			return fmt.Errorf("type %q declared twice", d.Name)
		}
		switch d.Kind {
		case "struct", "":
			ids[i] = in.RegisterStruct(types.StructInfo{Name: d.Name, Copy: d.Copy, Drop: d.Drop})
		case "enum":
			ids[i] = in.RegisterEnum(types.EnumInfo{Name: d.Name, Copy: d.Copy, Drop: d.Drop})
		default:
			return fmt.Errorf("type %q: unknown kind %q", d.Name, d.Kind)
		}
	}
	// Bodies are resolved after every name is known so declarations may
	// refer to each other in any order.
	for i, d := range decls {
		if d.Kind == "enum" {
			variants := make([]types.EnumVariant, 0, len(d.Variants))
			for _, v := range d.Variants {
				ev, err := parseVariant(in, v)
				if err != nil {
					return fmt.Errorf("type %q: %w", d.Name, err)
				}
				variants = append(variants, ev)
			}
			in.SetEnumVariants(ids[i], variants)
			continue
		}
		fields := make([]types.StructField, 0, len(d.Fields))
		for _, f := range d.Fields {
			name, tyText, ok := strings.Cut(f, ":")
			if !ok {
				return fmt.Errorf("type %q: field %q: want `name: type`", d.Name, f)
			}
			ty, err := in.Parse(tyText)
			if err != nil {
				return fmt.Errorf("type %q: field %q: %w", d.Name, f, err)
			}
			fields = append(fields, types.StructField{Name: strings.TrimSpace(name), Type: ty})
		}
		in.SetStructFields(ids[i], fields)
	}
	return nil
}

// parseVariant reads `Name` or `Name(T1, T2)`.
func parseVariant(in *types.Interner, s string) (types.EnumVariant, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return types.EnumVariant{Name: s}, nil
	}
	if !strings.HasSuffix(s, ")") {
		return types.EnumVariant{}, fmt.Errorf("variant %q: missing `)`", s)
	}
	v := types.EnumVariant{Name: strings.TrimSpace(s[:open])}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return v, nil
	}
	for _, part := range splitList(inner) {
		ty, err := in.Parse(part)
		if err != nil {
			return types.EnumVariant{}, fmt.Errorf("variant %q: %w", s, err)
		}
		v.Fields = append(v.Fields, ty)
	}
	return v, nil
}

func parseRecv(s string) (types.RecvKind, error) {
	switch strings.Join(strings.Fields(s), " ") {
	case "", "none":
		return types.RecvNone, nil
	case "this":
		return types.RecvThis, nil
	case "ref this", "ref":
		return types.RecvRef, nil
	case "mut ref this", "mut":
		return types.RecvRefMut, nil
	default:
		return types.RecvNone, fmt.Errorf("unknown receiver kind %q", s)
	}
}

func declareSigs(in *types.Interner, decls []sigDecl) error {
	for _, d := range decls {
		recv, err := parseRecv(d.Recv)
		if err != nil {
			return fmt.Errorf("fn_sig %q: %w", d.Name, err)
		}
		sig := types.FuncSig{Name: d.Name, Recv: recv, ResultFrom: d.ResultFrom, Result: in.Builtins().Unit}
		for _, p := range d.Params {
			ty, err := in.Parse(p)
			if err != nil {
				return fmt.Errorf("fn_sig %q: %w", d.Name, err)
			}
			sig.Params = append(sig.Params, ty)
		}
		if d.Result != "" {
			if sig.Result, err = in.Parse(d.Result); err != nil {
				return fmt.Errorf("fn_sig %q: %w", d.Name, err)
			}
		}
		in.RegisterFunc(sig)
	}
	return nil
}
