package fixture_test

import (
	"strings"
	"testing"

	"borrowck/internal/cfg"
	"borrowck/internal/fixture"
	"borrowck/internal/source"
	"borrowck/internal/testkit"
)

const header = `
module = "demo"

[[type]]
name = "Vec"
fields = ["items: int[]", "meta: string"]

[[type]]
name = "Opt"
kind = "enum"
variants = ["Some(string)", "None"]

[[fn_sig]]
name = "push"
recv = "mut ref this"
params = ["int"]

[[func]]
name = "main"
params = ["n: int"]
locals = ["c: Vec", "r: mut ref int[]", "o: Opt scope=1", "s: string scope=1", "k: closure", "b: bool", "i: int"]
scopes = ["1"]
`

const body = `bb0:
  scope_enter 1
  c = struct (items: copy n, meta: "x")
  r = &mut c.items
  call push(recv *r, 4)
  o = variant Some ("y")
  b = copy n < 3
  if copy b bb1 bb2
bb1:
  s = move o@Some.0
  k = closure [ref c.meta, move s]
  i = neg copy n
  goto bb2
bb2:
  switch copy o Some:bb3 _:bb3
bb3:
  scope_exit 1
  return
`

func program(t *testing.T, b string) *fixture.Program {
	t.Helper()
	src := header + "body = \"\"\"\n" + b + "\"\"\"\n"
	p, err := fixture.Parse(source.NewFileSet(), "demo.toml", []byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return p
}

func dump(t *testing.T, p *fixture.Program) string {
	t.Helper()
	f, ok := p.Func("main")
	if !ok {
		t.Fatal("main not found")
	}
	var sb strings.Builder
	if err := cfg.DumpFunc(&sb, f, p.Types, cfg.DumpOptions{}); err != nil {
		t.Fatalf("dump: %v", err)
	}
	return sb.String()
}

func TestParseShapes(t *testing.T) {
	p := program(t, body)
	f, _ := p.Func("main")
	if err := cfg.ValidateFunc(f, p.Types); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if len(f.Blocks) != 4 || len(f.Params) != 1 || len(f.Scopes) != 2 {
		t.Fatalf("blocks=%d params=%d scopes=%d", len(f.Blocks), len(f.Params), len(f.Scopes))
	}
	call := f.Blocks[0].Instrs[3]
	if call.Kind != cfg.InstrCall || !call.Call.HasRecv || f.PlaceString(call.Call.Recv) != "*r" {
		t.Fatalf("call parsed as %s", f.FormatInstr(&call))
	}
	k, _ := f.LocalByName("k")
	info, ok := p.Types.ClosureInfo(f.Locals[k].Type)
	if !ok || len(info.Captures) != 2 {
		t.Fatalf("closure captures not recorded: %+v", info)
	}
	if got := p.Types.Format(info.Captures[0]); got != "ref string" {
		t.Fatalf("capture[0] type = %s, want ref string", got)
	}
}

// Dumped blocks parse back to the same function.
func TestDumpRoundTrip(t *testing.T) {
	first := dump(t, program(t, body))
	idx := strings.Index(first, "  bb0:")
	if idx < 0 {
		t.Fatalf("no blocks in dump:\n%s", first)
	}
	second := dump(t, program(t, first[idx:]))
	if first != second {
		t.Fatalf("round trip differs:\n--- first\n%s\n--- second\n%s", first, second)
	}
}

func TestSpansPointAtLines(t *testing.T) {
	fs := source.NewFileSet()
	src := header + "body = \"\"\"\n" + body + "\"\"\"\n"
	p, err := fixture.Parse(fs, "demo.toml", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	f, _ := p.Func("main")
	if err := testkit.CheckSpanInvariants(f, fs.Get(p.File)); err != nil {
		t.Fatal(err)
	}
	content := fs.Get(p.File).Content
	ins := f.Blocks[0].Instrs[2]
	if got := string(content[ins.Span.Start:ins.Span.End]); got != "r = &mut c.items" {
		t.Fatalf("span text = %q", got)
	}
	term := f.Blocks[3].Term
	if got := string(content[term.Span.Start:term.Span.End]); got != "return" {
		t.Fatalf("terminator span text = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"unknown key", "bogus = 1\n", "unknown keys"},
		{"unknown local", `
[[func]]
name = "f"
body = """
bb0:
  x = copy y
  return
"""
`, "unknown local"},
		{"after terminator", `
[[func]]
name = "f"
locals = ["x: int"]
body = """
bb0:
  return
  x = 1
"""
`, "after terminator"},
		{"out of order", `
[[func]]
name = "f"
body = """
bb1:
  return
"""
`, "out of order"},
		{"unknown type", `
[[func]]
name = "f"
locals = ["x: Missing"]
body = """
bb0:
  return
"""
`, "unknown type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixture.Parse(source.NewFileSet(), "bad.toml", []byte(tt.src))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}
