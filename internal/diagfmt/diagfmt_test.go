package diagfmt

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"borrowck/internal/diag"
	"borrowck/internal/source"
)

const sample = "[[func]]\nname = \"f\"\nbody = \"\"\"\n  s = move t\n  call consume(move s)\n\"\"\"\n"

func sampleDiags(t *testing.T) (*source.FileSet, []diag.Diagnostic) {
	t.Helper()
	fs := source.NewFileSet()
	id := fs.AddVirtual("/work/proj/case.toml", []byte(sample))
	useAt := uint32(strings.Index(sample, "call consume"))
	moveAt := uint32(strings.Index(sample, "move t"))

	d := diag.NewError(diag.BorrowUseAfterMove,
		source.Span{File: id, Start: useAt, End: useAt + uint32(len("call consume(move s)"))},
		"use of moved value `s`")
	d.Func = "f"
	d.Place = "s"
	d.Point = diag.Point{Block: 0, Index: 1}
	d = d.WithNote(source.Span{File: id, Start: moveAt, End: moveAt + 6}, diag.Point{Block: 0, Index: 0}, "`s` moved here")
	d = d.WithFix("consider borrowing `s` instead of moving it",
		diag.FixEdit{Span: source.Span{File: id, Start: moveAt, End: moveAt + 4}, NewText: "&"})
	return fs, []diag.Diagnostic{d}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"pretty", "short", "json"} {
		if f, err := ParseFormat(s); err != nil || string(f) != s {
			t.Fatalf("ParseFormat(%q) = %q, %v", s, f, err)
		}
	}
	if _, err := ParseFormat("sarif"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPrettyPlain(t *testing.T) {
	fs, diags := sampleDiags(t)
	var buf bytes.Buffer
	if err := Pretty(&buf, diags, fs, PrettyOpts{ShowNotes: true, ShowFixes: true}); err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"error[B0001]: use of moved value `s`",
		" --> /work/proj/case.toml:5:3 (f@bb0[1])",
		"  |",
		"5 |   call consume(move s)",
		"  |   ^^^^^^^^^^^^^^^^^^^^",
		"  = note: `s` moved here (bb0[0]) at /work/proj/case.toml:4:7",
		"  = help: consider borrowing `s` instead of moving it",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		t.Fatalf("pretty output mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrettyHidesNotesAndFixes(t *testing.T) {
	fs, diags := sampleDiags(t)
	var buf bytes.Buffer
	if err := Pretty(&buf, diags, fs, PrettyOpts{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Contains(out, "note:") || strings.Contains(out, "help:") {
		t.Fatalf("notes/fixes leaked:\n%s", out)
	}
}

func TestPrettyPathModes(t *testing.T) {
	fs, diags := sampleDiags(t)
	tests := []struct {
		name string
		opts PrettyOpts
		want string
	}{
		{"basename", PrettyOpts{PathMode: PathModeBasename}, "--> case.toml:5:3"},
		{"relative", PrettyOpts{PathMode: PathModeRelative, BaseDir: "/work"}, "--> proj/case.toml:5:3"},
		{"auto", PrettyOpts{}, "--> /work/proj/case.toml:5:3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Pretty(&buf, diags, fs, tt.opts); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(buf.String(), tt.want) {
				t.Fatalf("output lacks %q:\n%s", tt.want, buf.String())
			}
		})
	}
}

func TestPrettyWidth(t *testing.T) {
	fs, diags := sampleDiags(t)
	var buf bytes.Buffer
	if err := Pretty(&buf, diags, fs, PrettyOpts{Width: 20}); err != nil {
		t.Fatal(err)
	}
	for line := range strings.SplitSeq(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		if len([]rune(line)) > 20 {
			t.Fatalf("line %q wider than 20 cells", line)
		}
	}
}

func TestPrettyWithoutSource(t *testing.T) {
	d := diag.NewError(diag.BorrowMalformedScopes, source.Span{}, "scope_exit 1 without scope_enter")
	d.Severity = diag.SevFatal
	d.Func = "g"
	var buf bytes.Buffer
	if err := Pretty(&buf, []diag.Diagnostic{d}, nil, PrettyOpts{}); err != nil {
		t.Fatal(err)
	}
	want := "fatal[B0900]: scope_exit 1 without scope_enter\n --> <unknown> (g)\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestShortMatchesGolden(t *testing.T) {
	fs, diags := sampleDiags(t)
	var buf bytes.Buffer
	if err := Short(&buf, diags, fs, true); err != nil {
		t.Fatal(err)
	}
	if buf.String() != diag.FormatShortDiagnostics(diags, fs, true) {
		t.Fatalf("short output diverges from golden form:\n%s", buf.String())
	}
}

func TestJSON(t *testing.T) {
	fs, diags := sampleDiags(t)
	var buf bytes.Buffer
	opts := JSONOpts{IncludePositions: true, PathMode: PathModeBasename, IncludeNotes: true, IncludeFixes: true}
	if err := JSON(&buf, diags, fs, opts); err != nil {
		t.Fatal(err)
	}
	var out DiagnosticsOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if out.Count != 1 || len(out.Diagnostics) != 1 {
		t.Fatalf("count = %d, diagnostics = %d", out.Count, len(out.Diagnostics))
	}
	d := out.Diagnostics[0]
	if d.Code != "B0001" || d.Kind != "UseOfMovedValue" || d.Severity != "error" {
		t.Fatalf("unexpected header: %+v", d)
	}
	if d.Func != "f" || d.Point != "bb0[1]" || d.Place != "s" {
		t.Fatalf("unexpected location fields: %+v", d)
	}
	if d.Location == nil || d.Location.File != "case.toml" || d.Location.StartLine != 5 || d.Location.StartCol != 3 {
		t.Fatalf("unexpected location: %+v", d.Location)
	}
	if len(d.Notes) != 1 || d.Notes[0].Point != "bb0[0]" {
		t.Fatalf("unexpected notes: %+v", d.Notes)
	}
	if len(d.Fixes) != 1 || len(d.Fixes[0].Edits) != 1 {
		t.Fatalf("unexpected fixes: %+v", d.Fixes)
	}
	if e := d.Fixes[0].Edits[0]; e.OldText != "move" || e.NewText != "&" {
		t.Fatalf("unexpected edit: %+v", e)
	}
}

func TestJSONMax(t *testing.T) {
	fs, diags := sampleDiags(t)
	diags = append(diags, diags[0])
	out := BuildDiagnosticsOutput(diags, fs, JSONOpts{Max: 1})
	if out.Count != 1 {
		t.Fatalf("Max not applied: %d", out.Count)
	}
	if out.Diagnostics[0].Notes != nil || out.Diagnostics[0].Fixes != nil {
		t.Fatal("notes and fixes must be opt-in")
	}
	if out.Diagnostics[0].Location.StartLine != 0 {
		t.Fatal("positions must be opt-in")
	}
}
