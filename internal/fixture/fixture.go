// Package fixture reads programs for the borrow checker from a TOML
// document: type declarations, callee signatures and function bodies in
// the textual CFG syntax printed by cfg.DumpFunc.
//
//	module = "demo"
//
//	[[type]]
//	name = "S"
//	kind = "struct"
//	fields = ["items: int[]", "meta: string"]
//
//	[[fn_sig]]
//	name = "push"
//	recv = "mut ref this"
//	params = ["int"]
//
//	[[func]]
//	name = "main"
//	locals = ["c: S", "r: mut ref int[]"]
//	body = """
//	bb0:
//	  r = &mut c.items
//	  call push(recv *r, 4)
//	  return
//	"""
package fixture

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"

	"borrowck/internal/cfg"
	"borrowck/internal/source"
	"borrowck/internal/types"
)

// Program is a parsed fixture.
type Program struct {
	Module *cfg.Module
	Types  *types.Interner
	File   source.FileID
}

// Func returns the function called name.
func (p *Program) Func(name string) (*cfg.Func, bool) {
	for _, f := range p.Module.Funcs {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

type document struct {
	Module string     `toml:"module"`
	Types  []typeDecl `toml:"type"`
	Sigs   []sigDecl  `toml:"fn_sig"`
	Funcs  []funcDecl `toml:"func"`
}

type typeDecl struct {
	Name     string   `toml:"name"`
	Kind     string   `toml:"kind"`
	Fields   []string `toml:"fields"`
	Variants []string `toml:"variants"`
	Copy     bool     `toml:"copy"`
	Drop     bool     `toml:"drop"`
}

type sigDecl struct {
	Name       string   `toml:"name"`
	Recv       string   `toml:"recv"`
	Params     []string `toml:"params"`
	Result     string   `toml:"result"`
	ResultFrom []int    `toml:"result_from"`
}

type funcDecl struct {
	Name   string   `toml:"name"`
	Result string   `toml:"result"`
	Params []string `toml:"params"`
	Locals []string `toml:"locals"`
	Scopes []string `toml:"scopes"`
	Body   string   `toml:"body"`
}

// Load reads and parses the fixture at path, registering it in fs.
func Load(fs *source.FileSet, path string) (*Program, error) {
	id, err := fs.Load(path)
	if err != nil {
		return nil, err
	}
	return parse(fs, id)
}

// Parse parses content registered in fs under the virtual name.
func Parse(fs *source.FileSet, name string, content []byte) (*Program, error) {
	return parse(fs, fs.AddVirtual(name, content))
}

// MustParse is Parse for tests; it panics on error.
func MustParse(src string) *Program {
	p, err := Parse(source.NewFileSet(), "fixture.toml", []byte(src))
	if err != nil {
		panic(err)
	}
	return p
}

func parse(fs *source.FileSet, id source.FileID) (*Program, error) {
	file := fs.Get(id)
	var doc document
	meta, err := toml.Decode(string(file.Content), &doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%s: unknown keys: %s", file.Path, strings.Join(keys, ", "))
	}

	in := types.NewInterner()
	if err := declareTypes(in, doc.Types); err != nil {
		return nil, fmt.Errorf("%s: %w", file.Path, err)
	}
	if err := declareSigs(in, doc.Sigs); err != nil {
		return nil, fmt.Errorf("%s: %w", file.Path, err)
	}

	mod := &cfg.Module{Name: doc.Module}
	if mod.Name == "" {
		mod.Name = strings.TrimSuffix(file.Path, ".toml")
	}
	loc := &locator{file: id, content: file.Content}
	var errs []error
	for i := range doc.Funcs {
		f, err := buildFunc(in, loc, &doc.Funcs[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: func %q: %w", file.Path, doc.Funcs[i].Name, err))
			continue
		}
		mod.Funcs = append(mod.Funcs, f)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &Program{Module: mod, Types: in, File: id}, nil
}

// locator finds the byte offsets of decoded strings in the raw document so
// that spans point at real text. Searches advance monotonically because
// functions appear in document order.
type locator struct {
	file    source.FileID
	content []byte
	cursor  int
}

func (l *locator) find(text string) (int, bool) {
	if text == "" {
		return 0, false
	}
	if i := bytes.Index(l.content[l.cursor:], []byte(text)); i >= 0 {
		return l.cursor + i, true
	}
	if i := bytes.Index(l.content, []byte(text)); i >= 0 {
		return i, true
	}
	return 0, false
}

func (l *locator) span(start, length int) source.Span {
	lo, err := safecast.Conv[uint32](start)
	if err != nil {
		return source.Span{File: l.file}
	}
	hi, err := safecast.Conv[uint32](start + length)
	if err != nil {
		hi = lo
	}
	return source.Span{File: l.file, Start: lo, End: hi}
}

// spanOf returns the span of text, or an empty span at the cursor.
func (l *locator) spanOf(text string) source.Span {
	if off, ok := l.find(text); ok {
		return l.span(off, len(text))
	}
	return l.span(l.cursor, 0)
}

func (l *locator) advance(to int) {
	if to > l.cursor {
		l.cursor = to
	}
}
