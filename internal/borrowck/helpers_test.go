package borrowck_test

import (
	"context"
	"strings"
	"testing"

	"borrowck/internal/borrowck"
	"borrowck/internal/cfg"
	"borrowck/internal/diag"
	"borrowck/internal/fixture"
	"borrowck/internal/source"
)

const prelude = `
[[type]]
name = "S"
fields = ["v: string"]

[[type]]
name = "Vec"
fields = ["items: int[]", "meta: string"]

[[type]]
name = "Pair"
fields = ["a: S", "b: S"]

[[fn_sig]]
name = "push"
recv = "mut ref this"
params = ["int"]

[[fn_sig]]
name = "len"
recv = "ref this"
result = "int"

[[fn_sig]]
name = "append"
recv = "mut ref this"
params = ["int"]
result = "mut ref Vec"
result_from = [0]

[[fn_sig]]
name = "into_inner"
recv = "this"
result = "string"
`

func parse(t testing.TB, src string) *fixture.Program {
	t.Helper()
	p, err := fixture.Parse(source.NewFileSet(), "case.toml", []byte(prelude+src))
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return p
}

func analyzeWith(t testing.TB, src string, opts borrowck.Options) *borrowck.Outcome {
	t.Helper()
	p := parse(t, src)
	out, err := borrowck.Analyze(context.Background(), p.Module.Funcs[0], p.Types, opts)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	return out
}

func analyze(t testing.TB, src string) *borrowck.Outcome {
	t.Helper()
	return analyzeWith(t, src, borrowck.DefaultOptions())
}

func codes(out *borrowck.Outcome) []string {
	ids := make([]string, len(out.Diagnostics))
	for i, d := range out.Diagnostics {
		ids[i] = d.Code.ID()
	}
	return ids
}

func render(out *borrowck.Outcome) string {
	var sb strings.Builder
	for _, d := range out.Diagnostics {
		sb.WriteString(d.Code.ID() + " " + d.Point.String() + " " + d.Message + "\n")
		for _, n := range d.Notes {
			sb.WriteString("  note " + n.Point.String() + ": " + n.Msg + "\n")
		}
	}
	return sb.String()
}

func dropPlaces(out *borrowck.Outcome) []string {
	places := make([]string, len(out.Drops))
	for i, d := range out.Drops {
		places[i] = d.Place
		if d.Flag != "" {
			places[i] += "?"
		}
	}
	return places
}

func blockText(f *cfg.Func, b int) []string {
	bb := &f.Blocks[b]
	lines := make([]string, 0, len(bb.Instrs)+1)
	for i := range bb.Instrs {
		lines = append(lines, f.FormatInstr(&bb.Instrs[i]))
	}
	return append(lines, f.FormatTerm(&bb.Term))
}

func pt(b, i int32) diag.Point { return diag.Point{Block: b, Index: i} }
