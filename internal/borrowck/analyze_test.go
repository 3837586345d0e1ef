package borrowck_test

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"strings"
	"testing"

	"borrowck/internal/borrowck"
	"borrowck/internal/cfg"
	"borrowck/internal/diag"
	"borrowck/internal/fixture"
)

type scenario struct {
	name  string
	fn    string
	codes []string
	at    []diag.Point
}

func TestAnalyzeScenarios(t *testing.T) {
	cases := []scenario{
		{
			name: "use after move",
			fn: `
[[func]]
name = "f"
locals = ["s: S", "t: S"]
body = """
bb0:
  s = struct (v: "a")
  t = move s
  call consume(move s)
  return
"""
`,
			codes: []string{"B0001"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "borrow ends at last use",
			fn: `
[[func]]
name = "f"
params = ["data: int[]"]
locals = ["r: ref int"]
body = """
bb0:
  r = &data[0]
  call print(copy r)
  call push(recv data, 4)
  return
"""
`,
		},
		{
			name: "borrow still used",
			fn: `
[[func]]
name = "f"
params = ["data: int[]"]
locals = ["r: ref int"]
body = """
bb0:
  r = &data[0]
  call push(recv data, 4)
  call print(copy r)
  return
"""
`,
			codes: []string{"B0007"},
			at:    []diag.Point{pt(0, 1)},
		},
		{
			name: "disjoint fields",
			fn: `
[[func]]
name = "f"
params = ["c: Vec"]
locals = ["a: mut ref int[]", "m: ref string"]
body = """
bb0:
  a = &mut c.items
  m = &c.meta
  call use(copy a, copy m)
  return
"""
`,
		},
		{
			name: "same field twice",
			fn: `
[[func]]
name = "f"
params = ["c: Vec"]
locals = ["a: mut ref int[]", "b: mut ref int[]"]
body = """
bb0:
  a = &mut c.items
  b = &mut c.items
  call use(copy a, copy b)
  return
"""
`,
			codes: []string{"B0008"},
			at:    []diag.Point{pt(0, 1)},
		},
		{
			name: "append chain",
			fn: `
[[func]]
name = "f"
params = ["b: Vec"]
locals = ["t1: mut ref Vec", "t2: mut ref Vec"]
body = """
bb0:
  t1 = call append(recv b, 1)
  t2 = call append(recv *t1, 2)
  call use(copy t2)
  return
"""
`,
		},
		{
			name: "read while chained borrow lives",
			fn: `
[[func]]
name = "f"
params = ["b: Vec"]
locals = ["t1: mut ref Vec", "n: int"]
body = """
bb0:
  t1 = call append(recv b, 1)
  n = call len(recv b)
  call use(copy t1)
  return
"""
`,
			codes: []string{"B0009"},
			at:    []diag.Point{pt(0, 1)},
		},
		{
			name: "two-phase reservation",
			fn: `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["t: mut ref int[]", "n: int"]
body = """
bb0:
  t = &2ph v
  n = call len(recv v)
  call push(recv *t, copy n)
  return
"""
`,
		},
		{
			name: "two-phase activation conflict",
			fn: `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["t: mut ref int[]", "r: ref int[]"]
body = """
bb0:
  t = &2ph v
  r = &v
  call push(recv *t, copy r)
  return
"""
`,
			codes: []string{"B0012"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "two-phase across loop",
			fn: `
[[func]]
name = "f"
params = ["v: int[]", "k: bool"]
locals = ["t: mut ref int[]", "r: ref int[]"]
body = """
bb0:
  t = &2ph v
  goto bb1
bb1:
  r = &v
  if copy k bb1 bb2
bb2:
  call push(recv *t, 1)
  return
"""
`,
			codes: []string{"B0009"},
			at:    []diag.Point{pt(1, 0)},
		},
		{
			name: "whole use after partial move",
			fn: `
[[func]]
name = "f"
locals = ["p: Pair", "x: S"]
body = """
bb0:
  p = struct (a: "1", b: "2")
  x = move p.a
  call consume(move p)
  return
"""
`,
			codes: []string{"B0011"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "partial move restored",
			fn: `
[[func]]
name = "f"
locals = ["p: Pair", "x: S", "y: S"]
body = """
bb0:
  p = struct (a: "1", b: "2")
  y = struct (v: "y")
  x = move p.a
  p.a = move y
  call consume(move p)
  return
"""
`,
		},
		{
			name: "field assign into moved value",
			fn: `
[[func]]
name = "f"
locals = ["p: Pair", "x: Pair", "y: S"]
body = """
bb0:
  p = struct (a: "1", b: "2")
  y = struct (v: "y")
  x = move p
  p.a = move y
  return
"""
`,
			codes: []string{"B0016"},
			at:    []diag.Point{pt(0, 3)},
		},
		{
			name: "return reference to local",
			fn: `
[[func]]
name = "f"
result = "ref S"
locals = ["s: S", "r: ref S"]
body = """
bb0:
  s = struct (v: "x")
  r = &s
  return copy r
"""
`,
			codes: []string{"B0010"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "return parameter reference",
			fn: `
[[func]]
name = "f"
result = "ref S"
params = ["x: ref S"]
body = """
bb0:
  return copy x
"""
`,
		},
		{
			name: "return reborrow",
			fn: `
[[func]]
name = "f"
result = "ref S"
params = ["x: ref Pair"]
locals = ["r: ref S"]
body = """
bb0:
  r = &(*x).a
  return copy r
"""
`,
		},
		{
			name: "borrow outlives scope",
			fn: `
[[func]]
name = "f"
scopes = ["1"]
locals = ["r: ref S", "s: S scope=1"]
body = """
bb0:
  scope_enter 1
  s = struct (v: "x")
  r = &s
  scope_exit 1
  call use(copy r)
  return
"""
`,
			codes: []string{"B0017"},
			at:    []diag.Point{pt(0, 3)},
		},
		{
			name: "read while closure holds mutable capture",
			fn: `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["k: closure"]
body = """
bb0:
  k = closure [mut v]
  call use(copy v)
  call run(copy k)
  return
"""
`,
			codes: []string{"B0013"},
			at:    []diag.Point{pt(0, 1)},
		},
		{
			name: "capture conflicts with borrow",
			fn: `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["r: mut ref int[]", "k: closure"]
body = """
bb0:
  r = &mut v
  k = closure [ref v]
  call use(copy r, copy k)
  return
"""
`,
			codes: []string{"B0015"},
			at:    []diag.Point{pt(0, 1)},
		},
		{
			name: "capture of moved value",
			fn: `
[[func]]
name = "f"
locals = ["s: S", "k: closure"]
body = """
bb0:
  s = struct (v: "x")
  call consume(move s)
  k = closure [ref s]
  return
"""
`,
			codes: []string{"B0014"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "move in loop",
			fn: `
[[func]]
name = "f"
params = ["k: bool"]
locals = ["s: S"]
body = """
bb0:
  s = struct (v: "x")
  goto bb1
bb1:
  if copy k bb2 bb3
bb2:
  call consume(move s)
  goto bb1
bb3:
  return
"""
`,
			codes: []string{"B0001"},
			at:    []diag.Point{pt(2, 0)},
		},
		{
			name: "consuming receiver",
			fn: `
[[func]]
name = "f"
locals = ["s: S", "x: string"]
body = """
bb0:
  s = struct (v: "x")
  x = call into_inner(recv s)
  call use(copy s)
  return
"""
`,
			codes: []string{"B0001"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "unknown callee borrows receiver shared",
			fn: `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["r: ref int[]"]
body = """
bb0:
  r = &v
  call inspect(recv v)
  call use(copy r)
  return
"""
`,
		},
		{
			name: "use before init",
			fn: `
[[func]]
name = "f"
locals = ["s: S"]
body = """
bb0:
  call use(copy s)
  return
"""
`,
			codes: []string{"B0001"},
			at:    []diag.Point{pt(0, 0)},
		},
		{
			name: "borrow of moved value",
			fn: `
[[func]]
name = "f"
locals = ["s: S", "r: ref S"]
body = """
bb0:
  s = struct (v: "x")
  call consume(move s)
  r = &s
  return
"""
`,
			codes: []string{"B0005"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "receiver borrow ends before the result is stored",
			fn: `
[[fn_sig]]
name = "cloned"
recv = "ref this"
result = "S"

[[func]]
name = "f"
locals = ["s: S"]
body = """
bb0:
  s = struct (v: "a")
  s = call cloned(recv s)
  return
"""
`,
		},
		{
			name: "stored receiver borrow still blocks the write",
			fn: `
[[func]]
name = "f"
params = ["v: Vec", "w: Vec"]
locals = ["r: mut ref Vec"]
body = """
bb0:
  r = call append(recv v, 1)
  v = move w
  call push(recv *r, 2)
  return
"""
`,
			codes: []string{"B0004"},
			at:    []diag.Point{pt(0, 1)},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := analyze(t, tc.fn)
			if got := codes(out); !slices.Equal(got, tc.codes) {
				t.Fatalf("codes = %v, want %v\n%s", got, tc.codes, render(out))
			}
			for i, want := range tc.at {
				if got := out.Diagnostics[i].Point; got != want {
					t.Errorf("diagnostic %d at %s, want %s", i, got, want)
				}
			}
			if (len(tc.codes) == 0) != (out.Annotated != nil) {
				t.Errorf("annotated = %v with %d diagnostics", out.Annotated != nil, len(out.Diagnostics))
			}
		})
	}
}

func TestMoveDiagnosticNotes(t *testing.T) {
	out := analyze(t, `
[[func]]
name = "f"
locals = ["s: S", "t: S"]
body = """
bb0:
  s = struct (v: "a")
  t = move s
  call consume(move s)
  return
"""
`)
	if len(out.Diagnostics) != 1 {
		t.Fatalf("diagnostics:\n%s", render(out))
	}
	d := out.Diagnostics[0]
	if d.Message != "use of moved value `s`" || d.Place != "s" || d.Func != "f" {
		t.Fatalf("unexpected diagnostic:\n%s", render(out))
	}
	if len(d.Notes) != 1 || d.Notes[0].Point != pt(0, 1) || d.Notes[0].Msg != "`s` moved here" {
		t.Fatalf("notes:\n%s", render(out))
	}
	if len(d.Fixes) == 0 {
		t.Fatalf("expected a borrow suggestion")
	}
}

func TestClosureMoveNote(t *testing.T) {
	out := analyze(t, `
[[func]]
name = "f"
locals = ["s: S", "k: closure"]
body = """
bb0:
  s = struct (v: "x")
  k = closure [move s]
  call use(copy s)
  return
"""
`)
	if got := codes(out); !slices.Equal(got, []string{"B0001"}) {
		t.Fatalf("codes = %v\n%s", got, render(out))
	}
	if n := out.Diagnostics[0].Notes; len(n) != 1 || n[0].Msg != "`s` moved into closure here" || n[0].Point != pt(0, 1) {
		t.Fatalf("notes:\n%s", render(out))
	}
}

func TestTwoPhaseDisabled(t *testing.T) {
	fn := `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["t: mut ref int[]", "n: int"]
body = """
bb0:
  t = &2ph v
  n = call len(recv v)
  call push(recv *t, copy n)
  return
"""
`
	opts := borrowck.DefaultOptions()
	opts.TwoPhase = false
	out := analyzeWith(t, fn, opts)
	if got := codes(out); !slices.Equal(got, []string{"B0009"}) {
		t.Fatalf("codes = %v\n%s", got, render(out))
	}

	out = analyze(t, fn)
	if len(out.Loans) == 0 || out.Loans[0].Activation == nil {
		t.Fatalf("loans = %+v", out.Loans)
	}
	if got := *out.Loans[0].Activation; got != (borrowck.Point{Block: 0, Index: 2}) {
		t.Fatalf("activation at %s", got)
	}
	if got := blockText(out.Annotated, 0)[0]; got != "t = &mut v" {
		t.Fatalf("two-phase borrow not lowered: %q", got)
	}
}

func TestLoanRegion(t *testing.T) {
	out := analyze(t, `
[[func]]
name = "f"
params = ["data: int[]"]
locals = ["r: ref int"]
body = """
bb0:
  r = &data[0]
  call print(copy r)
  call push(recv data, 4)
  return
"""
`)
	if len(out.Loans) != 2 {
		t.Fatalf("loans = %+v", out.Loans)
	}
	l := out.Loans[0]
	if l.Place != "data[0]" || !slices.Equal(l.Holders, []string{"r"}) {
		t.Fatalf("loan = %+v", l)
	}
	want := []borrowck.Point{{Block: 0, Index: 0}, {Block: 0, Index: 1}}
	if !reflect.DeepEqual(l.Region, want) {
		t.Fatalf("region = %v, want %v", l.Region, want)
	}
}

func TestMaxDiagnostics(t *testing.T) {
	fn := `
[[func]]
name = "f"
locals = ["a: S", "b: S"]
body = """
bb0:
  call use(copy a)
  call use(copy b)
  return
"""
`
	if out := analyze(t, fn); len(out.Diagnostics) != 2 {
		t.Fatalf("diagnostics:\n%s", render(out))
	}
	opts := borrowck.DefaultOptions()
	opts.MaxDiagnostics = 1
	if out := analyzeWith(t, fn, opts); len(out.Diagnostics) != 1 {
		t.Fatalf("cap ignored:\n%s", render(out))
	}
}

func TestMalformedScopes(t *testing.T) {
	for name, fn := range map[string]string{
		"exit without enter": `
[[func]]
name = "f"
scopes = ["1"]
body = """
bb0:
  scope_exit 1
  return
"""
`,
		"stacks disagree at join": `
[[func]]
name = "f"
params = ["k: bool"]
scopes = ["1"]
body = """
bb0:
  if copy k bb1 bb2
bb1:
  scope_enter 1
  goto bb2
bb2:
  return
"""
`,
	} {
		t.Run(name, func(t *testing.T) {
			p := parse(t, fn)
			out, err := borrowck.Analyze(context.Background(), p.Module.Funcs[0], p.Types, borrowck.DefaultOptions())
			if !errors.Is(err, borrowck.ErrMalformedCFG) {
				t.Fatalf("err = %v", err)
			}
			if out == nil || len(out.Diagnostics) == 0 {
				t.Fatalf("expected fatal diagnostics")
			}
			d := out.Diagnostics[0]
			if d.Code.ID() != "B0900" || d.Severity != diag.SevFatal {
				t.Fatalf("diagnostic = %s %s", d.Severity, d.Code.ID())
			}
			if out.Annotated != nil {
				t.Fatalf("annotated output for malformed scopes")
			}
		})
	}
}

func TestInvalidCFG(t *testing.T) {
	p := parse(t, `
[[func]]
name = "f"
body = """
bb0:
  goto bb9
"""
`)
	out, err := borrowck.Analyze(context.Background(), p.Module.Funcs[0], p.Types, borrowck.DefaultOptions())
	if !errors.Is(err, borrowck.ErrMalformedCFG) || out != nil {
		t.Fatalf("out = %v, err = %v", out, err)
	}
	if _, err := borrowck.Analyze(context.Background(), nil, p.Types, borrowck.DefaultOptions()); !errors.Is(err, borrowck.ErrMalformedCFG) {
		t.Fatalf("nil func: %v", err)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	fns := []string{
		`
[[func]]
name = "f"
params = ["k: bool", "v: int[]"]
locals = ["s: S", "p: Pair", "x: S", "t: mut ref int[]"]
body = """
bb0:
  s = struct (v: "x")
  p = struct (a: "1", b: "2")
  t = &2ph v
  if copy k bb1 bb2
bb1:
  call consume(move s)
  x = move p.b
  goto bb2
bb2:
  call push(recv *t, 1)
  return
"""
`,
		`
[[func]]
name = "f"
locals = ["s: S", "t: S"]
body = """
bb0:
  s = struct (v: "a")
  t = move s
  call consume(move s)
  call consume(move s)
  return
"""
`,
	}
	for i, fn := range fns {
		p := parse(t, fn)
		f := p.Module.Funcs[0]
		before := dump(t, f, p)
		first, err := borrowck.Analyze(context.Background(), f, p.Types, borrowck.DefaultOptions())
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		second, err := borrowck.Analyze(context.Background(), f, p.Types, borrowck.DefaultOptions())
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("case %d: outcomes differ", i)
		}
		if after := dump(t, f, p); after != before {
			t.Fatalf("case %d: input modified:\n%s\n---\n%s", i, before, after)
		}
	}
}

func dump(t testing.TB, f *cfg.Func, p *fixture.Program) string {
	t.Helper()
	var sb strings.Builder
	if err := cfg.DumpFunc(&sb, f, p.Types, cfg.DumpOptions{}); err != nil {
		t.Fatal(err)
	}
	return sb.String()
}

func TestTwoPhaseStaysReservedOnReads(t *testing.T) {
	out := analyze(t, `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["t: mut ref int[]", "n: int", "m: int"]
body = """
bb0:
  t = &2ph v
  n = call len(recv *t)
  m = call len(recv v)
  call push(recv *t, copy n)
  return
"""
`)
	if len(out.Diagnostics) != 0 {
		t.Fatalf("diagnostics:\n%s", render(out))
	}
	act := out.Loans[0].Activation
	if act == nil || *act != (borrowck.Point{Block: 0, Index: 3}) {
		t.Fatalf("activation = %v", act)
	}
}

func TestMutability(t *testing.T) {
	cases := []struct {
		name  string
		fn    string
		codes []string
		at    []diag.Point
	}{
		{
			name: "reassign immutable",
			fn: `
[[func]]
name = "f"
locals = ["s: S"]
body = """
bb0:
  s = struct (v: "a")
  s = struct (v: "b")
  return
"""
`,
			codes: []string{"B0003"},
			at:    []diag.Point{pt(0, 1)},
		},
		{
			name: "reassign mut",
			fn: `
[[func]]
name = "f"
locals = ["s: S mut"]
body = """
bb0:
  s = struct (v: "a")
  s = struct (v: "b")
  return
"""
`,
		},
		{
			name: "field write into immutable",
			fn: `
[[func]]
name = "f"
locals = ["p: Pair", "y: S"]
body = """
bb0:
  p = struct (a: "1", b: "2")
  y = struct (v: "y")
  p.a = move y
  return
"""
`,
			codes: []string{"B0003"},
			at:    []diag.Point{pt(0, 2)},
		},
		{
			name: "mut receiver of immutable parameter",
			fn: `
[[func]]
name = "f"
params = ["v: int[]"]
body = """
bb0:
  call push(recv v, 1)
  return
"""
`,
			codes: []string{"B0006"},
			at:    []diag.Point{pt(0, 0)},
		},
		{
			name: "mut receiver of mut parameter",
			fn: `
[[func]]
name = "f"
params = ["v: int[] mut"]
body = """
bb0:
  call push(recv v, 1)
  return
"""
`,
		},
		{
			name: "reborrow through mutable reference",
			fn: `
[[func]]
name = "f"
params = ["m: mut ref int[]"]
body = """
bb0:
  call push(recv *m, 1)
  return
"""
`,
		},
		{
			name: "mutable borrow of immutable local",
			fn: `
[[func]]
name = "f"
locals = ["s: S", "r: mut ref S"]
body = """
bb0:
  s = struct (v: "a")
  r = &mut s
  return
"""
`,
			codes: []string{"B0006"},
			at:    []diag.Point{pt(0, 1)},
		},
		{
			name: "two-phase reservation of immutable parameter",
			fn: `
[[func]]
name = "f"
params = ["v: int[]"]
locals = ["t: mut ref int[]"]
body = """
bb0:
  t = &2ph v
  call push(recv *t, 1)
  return
"""
`,
			codes: []string{"B0006"},
			at:    []diag.Point{pt(0, 0)},
		},
	}
	opts := borrowck.DefaultOptions()
	opts.Mutability = true
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := analyzeWith(t, tc.fn, opts)
			if got := codes(out); !slices.Equal(got, tc.codes) {
				t.Fatalf("codes = %v, want %v\n%s", got, tc.codes, render(out))
			}
			for i, want := range tc.at {
				if got := out.Diagnostics[i].Point; got != want {
					t.Errorf("diagnostic %d at %s, want %s", i, got, want)
				}
			}
			for _, d := range out.Diagnostics {
				if len(d.Notes) != 1 || d.Notes[0].Point != diag.NoPoint || !strings.HasSuffix(d.Notes[0].Msg, " declared here") {
					t.Errorf("notes:\n%s", render(out))
				}
				if len(d.Fixes) != 1 || !strings.HasPrefix(d.Fixes[0].Title, "consider declaring `") {
					t.Errorf("fixes = %+v", d.Fixes)
				}
			}
		})
	}

	// Off by default: the same writes are accepted.
	if out := analyze(t, cases[0].fn); len(out.Diagnostics) != 0 {
		t.Fatalf("diagnostics without the option:\n%s", render(out))
	}
}
