package borrowck_test

import (
	"slices"
	"testing"

	"borrowck/internal/borrowck"
	"borrowck/internal/cfg"
)

func TestDropOrder(t *testing.T) {
	cases := []struct {
		name  string
		fn    string
		drops []string
		cause borrowck.DropCause
	}{
		{
			name: "reverse declaration order",
			fn: `
[[func]]
name = "f"
scopes = ["1"]
locals = ["a: S scope=1", "b: S scope=1", "c: S scope=1"]
body = """
bb0:
  scope_enter 1
  a = struct (v: "a")
  b = struct (v: "b")
  c = struct (v: "c")
  scope_exit 1
  return
"""
`,
			drops: []string{"c", "b", "a"},
			cause: borrowck.DropScopeExit,
		},
		{
			name: "moved local skipped",
			fn: `
[[func]]
name = "f"
scopes = ["1"]
locals = ["a: S scope=1", "b: S scope=1", "c: S scope=1"]
body = """
bb0:
  scope_enter 1
  a = struct (v: "a")
  b = struct (v: "b")
  c = struct (v: "c")
  call consume(move b)
  scope_exit 1
  return
"""
`,
			drops: []string{"c", "a"},
			cause: borrowck.DropScopeExit,
		},
		{
			name: "return closes inner scopes first",
			fn: `
[[func]]
name = "f"
scopes = ["1", "2 parent=1"]
locals = ["a: S scope=1", "b: S scope=2"]
body = """
bb0:
  scope_enter 1
  a = struct (v: "a")
  scope_enter 2
  b = struct (v: "b")
  return
"""
`,
			drops: []string{"b", "a"},
			cause: borrowck.DropReturn,
		},
		{
			name: "remaining fields after partial move",
			fn: `
[[func]]
name = "f"
locals = ["p: Pair", "x: S"]
body = """
bb0:
  p = struct (a: "1", b: "2")
  x = move p.a
  return
"""
`,
			drops: []string{"x", "p.b"},
			cause: borrowck.DropReturn,
		},
		{
			name: "copy types need no drop",
			fn: `
[[func]]
name = "f"
params = ["n: int"]
locals = ["m: int", "r: ref int"]
body = """
bb0:
  m = copy n
  r = &m
  return
"""
`,
			drops: []string{},
			cause: borrowck.DropReturn,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := analyze(t, tc.fn)
			if len(out.Diagnostics) != 0 {
				t.Fatalf("diagnostics:\n%s", render(out))
			}
			if got := dropPlaces(out); !slices.Equal(got, tc.drops) {
				t.Fatalf("drops = %v, want %v", got, tc.drops)
			}
			for _, d := range out.Drops {
				if d.Cause != tc.cause {
					t.Errorf("drop of %s caused by %s, want %s", d.Place, d.Cause, tc.cause)
				}
			}
		})
	}
}

func TestScopeExitDropsInAnnotatedCFG(t *testing.T) {
	out := analyze(t, `
[[func]]
name = "f"
scopes = ["1"]
locals = ["a: S scope=1", "b: S scope=1"]
body = """
bb0:
  scope_enter 1
  a = struct (v: "a")
  b = struct (v: "b")
  scope_exit 1
  return
"""
`)
	want := []string{
		"scope_enter 1",
		`a = struct (v: "a")`,
		`b = struct (v: "b")`,
		"drop b",
		"drop a",
		"scope_exit 1",
		"return",
	}
	if got := blockText(out.Annotated, 0); !slices.Equal(got, want) {
		t.Fatalf("annotated bb0:\n%q\nwant:\n%q", got, want)
	}
	for _, d := range out.Drops {
		if d.Point != (borrowck.Point{Block: 0, Index: 3}) {
			t.Errorf("drop of %s at %s", d.Place, d.Point)
		}
	}
}

func TestConditionalDrop(t *testing.T) {
	fn := `
[[func]]
name = "f"
params = ["k: bool"]
locals = ["s: S"]
body = """
bb0:
  s = struct (v: "x")
  if copy k bb1 bb2
bb1:
  call consume(move s)
  goto bb2
bb2:
  return
"""
`
	out := analyze(t, fn)
	if len(out.Diagnostics) != 0 {
		t.Fatalf("diagnostics:\n%s", render(out))
	}
	if len(out.Drops) != 1 {
		t.Fatalf("drops = %+v", out.Drops)
	}
	d := out.Drops[0]
	if d.Place != "s" || d.Flag != "flag$s" || d.Cause != borrowck.DropReturn || d.Point != (borrowck.Point{Block: 2, Index: 0}) {
		t.Fatalf("drop = %+v", d)
	}
	if out.Stats.DropFlags != 1 {
		t.Fatalf("flags = %d", out.Stats.DropFlags)
	}

	f := out.Annotated
	flag := f.Locals[len(f.Locals)-1]
	if flag.Name != "flag$s" || flag.Flags&cfg.LocalFlagDropFlag == 0 {
		t.Fatalf("flag local = %+v", flag)
	}
	wantBlocks := [][]string{
		{"set_flag flag$s false", `s = struct (v: "x")`, "set_flag flag$s true", "if copy k bb1 bb2"},
		{"call consume(move s)", "set_flag flag$s false", "goto bb2"},
		{"drop s if flag$s", "return"},
	}
	for b, want := range wantBlocks {
		if got := blockText(f, b); !slices.Equal(got, want) {
			t.Errorf("bb%d:\n%q\nwant:\n%q", b, got, want)
		}
	}

	opts := borrowck.DefaultOptions()
	opts.DropFlags = false
	out = analyzeWith(t, fn, opts)
	if len(out.Drops) != 0 || out.Stats.LeakedDrops != 1 || out.Stats.DropFlags != 0 {
		t.Fatalf("drops = %+v, stats = %+v", out.Drops, out.Stats)
	}
}

func TestConditionalPartialDrop(t *testing.T) {
	out := analyze(t, `
[[func]]
name = "f"
params = ["k: bool"]
locals = ["p: Pair", "x: S"]
body = """
bb0:
  p = struct (a: "1", b: "2")
  if copy k bb1 bb2
bb1:
  x = move p.a
  goto bb2
bb2:
  return
"""
`)
	if len(out.Diagnostics) != 0 {
		t.Fatalf("diagnostics:\n%s", render(out))
	}
	if got, want := dropPlaces(out), []string{"x?", "p.b", "p.a?"}; !slices.Equal(got, want) {
		t.Fatalf("drops = %v, want %v", got, want)
	}
	if got := out.Drops[2].Flag; got != "flag$p.a" {
		t.Fatalf("flag = %q", got)
	}
}

func TestReassignDropsOldValue(t *testing.T) {
	fn := `
[[func]]
name = "f"
locals = ["s: S"]
body = """
bb0:
  s = struct (v: "a")
  s = struct (v: "b")
  return
"""
`
	out := analyze(t, fn)
	want := []string{`s = struct (v: "a")`, "drop s", `s = struct (v: "b")`, "drop s", "return"}
	if got := blockText(out.Annotated, 0); !slices.Equal(got, want) {
		t.Fatalf("annotated bb0:\n%q\nwant:\n%q", got, want)
	}
	if out.Drops[0].Cause != borrowck.DropReplace || out.Drops[1].Cause != borrowck.DropReturn {
		t.Fatalf("drops = %+v", out.Drops)
	}

	opts := borrowck.DefaultOptions()
	opts.ReassignDrops = false
	out = analyzeWith(t, fn, opts)
	if len(out.Drops) != 1 {
		t.Fatalf("drops = %+v", out.Drops)
	}
}

func TestDropCauseString(t *testing.T) {
	for c, want := range map[borrowck.DropCause]string{
		borrowck.DropScopeExit: "scope_exit",
		borrowck.DropReturn:    "return",
		borrowck.DropReplace:   "replace",
	} {
		if got := c.String(); got != want {
			t.Errorf("%d: %q, want %q", c, got, want)
		}
	}
}

func TestDropNeverPrecedesRead(t *testing.T) {
	cases := []struct {
		name  string
		fn    string
		want  []string
		temps []string
	}{
		{
			name: "replace reads a field of the old value",
			fn: `
[[fn_sig]]
name = "wrap"
params = ["string"]
result = "S"

[[func]]
name = "f"
locals = ["s: S"]
body = """
bb0:
  s = struct (v: "a")
  s = call wrap(copy s.v)
  return
"""
`,
			want: []string{
				`s = struct (v: "a")`,
				"tmp$s = call wrap(copy s.v)",
				"drop s",
				"s = move tmp$s",
				"drop s",
				"return",
			},
			temps: []string{"tmp$s"},
		},
		{
			name: "replace borrows the old value as receiver",
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
			want: []string{
				`s = struct (v: "a")`,
				"tmp$s = call cloned(recv s)",
				"drop s",
				"s = move tmp$s",
				"drop s",
				"return",
			},
			temps: []string{"tmp$s"},
		},
		{
			name: "replace from unrelated value",
			fn: `
[[func]]
name = "f"
locals = ["s: S", "u: S"]
body = """
bb0:
  s = struct (v: "a")
  u = struct (v: "b")
  s = move u
  return
"""
`,
			want: []string{
				`s = struct (v: "a")`,
				`u = struct (v: "b")`,
				"drop s",
				"s = move u",
				"drop s",
				"return",
			},
		},
		{
			name: "return a field of a droppable local",
			fn: `
[[type]]
name = "T"
fields = ["n: int", "s: string"]

[[func]]
name = "f"
result = "int"
locals = ["t: T"]
body = """
bb0:
  t = struct (n: 1, s: "x")
  return copy t.n
"""
`,
			want: []string{
				`t = struct (n: 1, s: "x")`,
				"ret$ = copy t.n",
				"drop t",
				"return move ret$",
			},
			temps: []string{"ret$"},
		},
		{
			name: "return moves the only droppable local",
			fn: `
[[func]]
name = "f"
result = "S"
locals = ["s: S"]
body = """
bb0:
  s = struct (v: "a")
  return move s
"""
`,
			want: []string{
				`s = struct (v: "a")`,
				"return move s",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := analyze(t, tc.fn)
			if len(out.Diagnostics) != 0 {
				t.Fatalf("diagnostics:\n%s", render(out))
			}
			f := out.Annotated
			if got := blockText(f, 0); !slices.Equal(got, tc.want) {
				t.Fatalf("annotated bb0:\n%q\nwant:\n%q", got, tc.want)
			}
			var temps []string
			for _, l := range f.Locals {
				if l.Flags&cfg.LocalFlagTemp != 0 && l.Flags&cfg.LocalFlagDropFlag == 0 {
					temps = append(temps, l.Name)
				}
			}
			if !slices.Equal(temps, tc.temps) {
				t.Fatalf("temps = %v, want %v", temps, tc.temps)
			}
		})
	}
}
