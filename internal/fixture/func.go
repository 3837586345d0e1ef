package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"borrowck/internal/cfg"
	"borrowck/internal/types"
)

func buildFunc(in *types.Interner, loc *locator, d *funcDecl) (*cfg.Func, error) {
	if d.Name == "" {
		return nil, fmt.Errorf("missing name")
	}
	f := &cfg.Func{
		Name:   d.Name,
		Result: in.Builtins().Unit,
		Entry:  0,
	}
	if d.Result != "" {
		ty, err := in.Parse(d.Result)
		if err != nil {
			return nil, fmt.Errorf("result: %w", err)
		}
		f.Result = ty
	}
	scopes, err := parseScopes(d.Scopes)
	if err != nil {
		return nil, err
	}
	f.Scopes = scopes

	for _, p := range d.Params {
		l, err := parseLocal(in, p)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", p, err)
		}
		l.Flags |= cfg.LocalFlagParam
		l.Scope = cfg.BodyScope
		l.Span = loc.spanOf(p)
		f.Params = append(f.Params, f.AddLocal(l))
	}
	for _, s := range d.Locals {
		l, err := parseLocal(in, s)
		if err != nil {
			return nil, fmt.Errorf("local %q: %w", s, err)
		}
		l.Span = loc.spanOf(s)
		if _, dup := f.LocalByName(l.Name); dup {
			return nil, fmt.Errorf("local %q declared twice", l.Name)
		}
		f.AddLocal(l)
	}

	base := -1
	if off, ok := loc.find(d.Body); ok {
		base = off
		f.Span = loc.span(off, len(d.Body))
		loc.advance(off + len(d.Body))
	}
	bp := &bodyParser{f: f, types: in, loc: loc, base: base}
	if err := bp.parse(d.Body); err != nil {
		return nil, err
	}
	return f, nil
}

// parseScopes reads entries of the form `N` or `N parent=M`. Scope ids
// must be dense and start at 1; scope 0 is the body.
func parseScopes(decls []string) ([]cfg.Scope, error) {
	out := make([]cfg.Scope, len(decls)+1)
	out[0] = cfg.Scope{ID: cfg.BodyScope, Parent: cfg.NoScopeID}
	seen := make([]bool, len(decls)+1)
	for _, s := range decls {
		fields := strings.Fields(s)
		if len(fields) == 0 || len(fields) > 2 {
			return nil, fmt.Errorf("scope %q: want `N [parent=M]`", s)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil || id < 1 || id > len(decls) {
			return nil, fmt.Errorf("scope %q: id must be in 1..%d", s, len(decls))
		}
		if seen[id] {
			return nil, fmt.Errorf("scope %d declared twice", id)
		}
		seen[id] = true
		parent := 0
		if len(fields) == 2 {
			v, ok := strings.CutPrefix(fields[1], "parent=")
			if !ok {
				return nil, fmt.Errorf("scope %q: want `parent=M`", s)
			}
			if parent, err = strconv.Atoi(v); err != nil {
				return nil, fmt.Errorf("scope %q: %w", s, err)
			}
		}
		out[id] = cfg.Scope{ID: cfg.ScopeID(id), Parent: cfg.ScopeID(parent)}
	}
	return out, nil
}

// parseLocal reads `name: type [scope=N] [mut] [temp]`. The literal type
// `closure` allocates a fresh closure type whose captures are filled in
// by the closure rvalue that initializes it.
func parseLocal(in *types.Interner, s string) (cfg.Local, error) {
	name, rest, ok := strings.Cut(s, ":")
	if !ok {
		return cfg.Local{}, fmt.Errorf("want `name: type`")
	}
	l := cfg.Local{Name: strings.TrimSpace(name), Scope: cfg.BodyScope}
	if l.Name == "" {
		return cfg.Local{}, fmt.Errorf("empty name")
	}
	tokens := strings.Fields(rest)
strip:
	for len(tokens) > 1 {
		last := tokens[len(tokens)-1]
		switch {
		case last == "mut":
			l.Flags |= cfg.LocalFlagMut
		case last == "temp":
			l.Flags |= cfg.LocalFlagTemp
		case strings.HasPrefix(last, "scope="):
			n, err := strconv.Atoi(strings.TrimPrefix(last, "scope="))
			if err != nil {
				return cfg.Local{}, fmt.Errorf("bad scope: %w", err)
			}
			l.Scope = cfg.ScopeID(n)
		default:
			break strip
		}
		tokens = tokens[:len(tokens)-1]
	}
	tyText := strings.Join(tokens, " ")
	if tyText == "closure" {
		l.Type = in.RegisterClosure(nil)
		return l, nil
	}
	ty, err := in.Parse(tyText)
	if err != nil {
		return cfg.Local{}, err
	}
	l.Type = ty
	return l, nil
}
