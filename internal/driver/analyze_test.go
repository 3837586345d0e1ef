package driver_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"

	"borrowck/internal/borrowck"
	"borrowck/internal/dcache"
	"borrowck/internal/driver"
	"borrowck/internal/fixture"
	"borrowck/internal/observ"
	"borrowck/internal/source"
)

const module = `
module = "demo"

[[type]]
name = "S"
fields = ["v: string"]

[[func]]
name = "moved"
locals = ["s: S", "t: S"]
body = """
bb0:
  s = struct (v: "a")
  t = move s
  call consume(move s)
  return
"""

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
name = "uninit"
locals = ["a: S", "b: S"]
body = """
bb0:
  call use(copy a)
  call use(copy b)
  return
"""
`

type recorder struct {
	mu     sync.Mutex
	events []driver.Event
}

func (r *recorder) OnEvent(ev driver.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) final(key string) (driver.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Key() == key {
			return r.events[i], true
		}
	}
	return driver.Event{}, false
}

func codesByFunc(t *testing.T, mr *driver.ModuleResult) map[string][]string {
	t.Helper()
	out := make(map[string][]string)
	for _, fr := range mr.Funcs {
		if fr.Outcome == nil {
			t.Fatalf("%s: no outcome", fr.Name)
		}
		ids := []string{}
		for _, d := range fr.Outcome.Diagnostics {
			ids = append(ids, d.Code.ID())
		}
		out[fr.Name] = ids
	}
	return out
}

func TestAnalyzeModuleOrderAndJobs(t *testing.T) {
	p := fixture.MustParse(module)
	want := map[string][]string{
		"moved":  {"B0001"},
		"clean":  {},
		"uninit": {"B0001", "B0001"},
	}
	for _, jobs := range []int{1, 2, 8} {
		rec := &recorder{}
		mr, err := driver.AnalyzeModule(context.Background(), p.Module, p.Types, driver.Options{
			Analysis: borrowck.DefaultOptions(),
			Jobs:     jobs,
			Progress: rec,
		})
		if err != nil {
			t.Fatalf("jobs=%d: %v", jobs, err)
		}
		names := make([]string, len(mr.Funcs))
		for i, fr := range mr.Funcs {
			names[i] = fr.Name
		}
		if !slices.Equal(names, []string{"moved", "clean", "uninit"}) {
			t.Fatalf("jobs=%d: order %v", jobs, names)
		}
		got := codesByFunc(t, mr)
		for name, codes := range want {
			if !slices.Equal(got[name], codes) {
				t.Errorf("jobs=%d: %s codes = %v, want %v", jobs, name, got[name], codes)
			}
		}
		if n := len(mr.Diagnostics()); n != 3 || !mr.HasErrors() {
			t.Errorf("jobs=%d: %d diagnostics", jobs, n)
		}
		for _, name := range names {
			ev, ok := rec.final("demo::" + name)
			if !ok || ev.Status != driver.StatusDone {
				t.Errorf("jobs=%d: %s final event %+v", jobs, name, ev)
			}
		}
	}
}

func TestAnalyzeModuleCache(t *testing.T) {
	p := fixture.MustParse(module)
	cache, err := dcache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := driver.Options{Analysis: borrowck.DefaultOptions(), Cache: cache, Timer: observ.NewTimer()}

	first, err := driver.AnalyzeModule(context.Background(), p.Module, p.Types, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := driver.AnalyzeModule(context.Background(), p.Module, p.Types, opts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range second.Funcs {
		if first.Funcs[i].Cached || !second.Funcs[i].Cached {
			t.Errorf("%s: cached first=%v second=%v", second.Funcs[i].Name, first.Funcs[i].Cached, second.Funcs[i].Cached)
		}
	}
	if !slices.Equal(codeList(first), codeList(second)) {
		t.Fatalf("cached diagnostics differ: %v vs %v", codeList(first), codeList(second))
	}
	if got := len(opts.Timer.Report().Phases); got != 6 {
		t.Fatalf("timer phases = %d", got)
	}
}

func codeList(mr *driver.ModuleResult) []string {
	var out []string
	for _, d := range mr.Diagnostics() {
		out = append(out, d.Func+":"+d.Code.ID()+"@"+d.Point.String())
	}
	return out
}

func TestAnalyzeModuleMalformed(t *testing.T) {
	p := fixture.MustParse(module + `
[[func]]
name = "bad"
scopes = ["1"]
body = """
bb0:
  scope_exit 1
  return
"""
`)
	mr, err := driver.AnalyzeModule(context.Background(), p.Module, p.Types, driver.Options{Analysis: borrowck.DefaultOptions(), Jobs: 1})
	if !errors.Is(err, borrowck.ErrMalformedCFG) {
		t.Fatalf("err = %v", err)
	}
	if mr == nil || len(mr.Funcs) != 4 {
		t.Fatalf("result = %+v", mr)
	}
	if bad := mr.Funcs[3]; bad.Outcome == nil || len(bad.Outcome.Diagnostics) == 0 {
		t.Fatalf("malformed function lost its fatal diagnostic")
	}
}

func TestCheckFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.toml")
	if err := os.WriteFile(path, []byte(module), 0o600); err != nil {
		t.Fatal(err)
	}
	fs := source.NewFileSet()
	res, err := driver.CheckFile(context.Background(), fs, path, driver.Options{Analysis: borrowck.DefaultOptions()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Path != path || len(res.Module.Funcs) != 3 {
		t.Fatalf("result = %+v", res)
	}
	d := res.Module.Diagnostics()[0]
	if f := fs.Get(d.Primary.File); f == nil || f.Path != path {
		t.Fatalf("diagnostic span not in %s", path)
	}

	if _, err := driver.CheckFile(context.Background(), fs, filepath.Join(t.TempDir(), "missing.toml"), driver.Options{}); err == nil {
		t.Fatalf("missing file accepted")
	}
}
