package dcache_test

import (
	"context"
	"strings"
	"testing"

	"borrowck/internal/borrowck"
	"borrowck/internal/cfg"
	"borrowck/internal/dcache"
	"borrowck/internal/fixture"
)

const src = `
[[type]]
name = "S"
fields = ["v: string"]

[[func]]
name = "clean"
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

[[func]]
name = "broken"
locals = ["s: S", "t: S"]
body = """
bb0:
  s = struct (v: "x")
  t = move s
  call consume(move s)
  return
"""
`

func dump(t *testing.T, f *cfg.Func, p *fixture.Program) string {
	t.Helper()
	var sb strings.Builder
	if err := cfg.DumpFunc(&sb, f, p.Types, cfg.DumpOptions{}); err != nil {
		t.Fatal(err)
	}
	return sb.String()
}

func TestRoundTrip(t *testing.T) {
	p := fixture.MustParse(src)
	c, err := dcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := borrowck.DefaultOptions()
	for _, f := range p.Module.Funcs {
		out, err := borrowck.Analyze(context.Background(), f, p.Types, opts)
		if err != nil {
			t.Fatal(err)
		}
		key, err := dcache.KeyFor(f, p.Types, opts)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok, err := c.Get(key); ok || err != nil {
			t.Fatalf("%s: unexpected hit (%v)", f.Name, err)
		}
		if err := c.Put(key, out); err != nil {
			t.Fatal(err)
		}
		got, ok, err := c.Get(key)
		if !ok || err != nil {
			t.Fatalf("%s: miss after put (%v)", f.Name, err)
		}
		if got.Func != out.Func || len(got.Diagnostics) != len(out.Diagnostics) || len(got.Drops) != len(out.Drops) {
			t.Fatalf("%s: restored %+v", f.Name, got)
		}
		for i := range out.Diagnostics {
			if got.Diagnostics[i].Code != out.Diagnostics[i].Code || got.Diagnostics[i].Point != out.Diagnostics[i].Point {
				t.Errorf("%s: diagnostic %d = %+v", f.Name, i, got.Diagnostics[i])
			}
		}
		if (got.Annotated == nil) != (out.Annotated == nil) {
			t.Fatalf("%s: annotated presence changed", f.Name)
		}
		if out.Annotated != nil && dump(t, got.Annotated, p) != dump(t, out.Annotated, p) {
			t.Fatalf("%s: annotated CFG changed", f.Name)
		}
	}

	if err := c.DropAll(); err != nil {
		t.Fatal(err)
	}
	key, _ := dcache.KeyFor(p.Module.Funcs[0], p.Types, opts)
	if _, ok, _ := c.Get(key); ok {
		t.Fatalf("hit after DropAll")
	}
}

func TestKeyDependsOnInputs(t *testing.T) {
	p := fixture.MustParse(src)
	opts := borrowck.DefaultOptions()
	clean, broken := p.Module.Funcs[0], p.Module.Funcs[1]

	k1, _ := dcache.KeyFor(clean, p.Types, opts)
	k2, _ := dcache.KeyFor(clean, p.Types, opts)
	if k1 != k2 {
		t.Fatalf("key not stable")
	}
	if k3, _ := dcache.KeyFor(broken, p.Types, opts); k3 == k1 {
		t.Fatalf("different functions share a key")
	}
	opts.DropFlags = false
	if k4, _ := dcache.KeyFor(clean, p.Types, opts); k4 == k1 {
		t.Fatalf("options do not affect the key")
	}
}
