package testkit

import (
	"strings"
	"testing"

	"borrowck/internal/cfg"
	"borrowck/internal/source"
)

func TestCheckSpanInvariants(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("x.toml", []byte("a = copy b\nreturn\n"))
	sf := fs.Get(id)
	good := func() *cfg.Func {
		return &cfg.Func{
			Name: "f",
			Span: source.Span{File: id, Start: 0, End: 17},
			Blocks: []cfg.Block{{
				Instrs: []cfg.Instr{{Kind: cfg.InstrNop, Span: source.Span{File: id, Start: 0, End: 10}}},
				Term:   cfg.Terminator{Kind: cfg.TermReturn, Span: source.Span{File: id, Start: 11, End: 17}},
			}},
		}
	}
	if err := CheckSpanInvariants(good(), sf); err != nil {
		t.Fatalf("valid function rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(f *cfg.Func)
		want   string
	}{
		{"other file", func(f *cfg.Func) { f.Blocks[0].Instrs[0].Span.File = id + 1 }, "different file"},
		{"past end", func(f *cfg.Func) { f.Span.End = 100 }, "out of file bounds"},
		{"escapes func", func(f *cfg.Func) { f.Span = source.Span{File: id, Start: 11, End: 17} }, "escapes function span"},
		{"overlap", func(f *cfg.Func) {
			f.Blocks[0].Instrs = append(f.Blocks[0].Instrs, cfg.Instr{Kind: cfg.InstrNop, Span: source.Span{File: id, Start: 5, End: 9}})
		}, "overlaps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := good()
			tt.mutate(f)
			err := CheckSpanInvariants(f, sf)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
	if err := CheckSpanInvariants(nil, sf); err == nil {
		t.Fatal("nil function accepted")
	}
}
