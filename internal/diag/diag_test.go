package diag

import (
	"strings"
	"testing"

	"borrowck/internal/source"
)

func mk(fn string, code Code, b, i int32, place string) Diagnostic {
	d := NewError(code, source.Span{}, code.Title())
	d.Func = fn
	d.Point = Point{Block: b, Index: i}
	d.Place = place
	return d
}

func TestBagLimitKeepsFatal(t *testing.T) {
	bag := NewBag(1)
	if !bag.Add(mk("f", BorrowUseAfterMove, 0, 0, "s")) {
		t.Fatal("first diagnostic rejected")
	}
	if bag.Add(mk("f", BorrowDoubleMut, 0, 1, "s")) {
		t.Fatal("limit not applied")
	}
	fatal := mk("f", BorrowMalformedScopes, 0, 2, "")
	fatal.Severity = SevFatal
	if !bag.Add(fatal) {
		t.Fatal("fatal diagnostics must always fit")
	}
	if bag.Len() != 2 || !bag.HasFatal() || !bag.HasErrors() {
		t.Fatalf("len=%d fatal=%v errors=%v", bag.Len(), bag.HasFatal(), bag.HasErrors())
	}
}

func TestBagSortAndDedup(t *testing.T) {
	bag := NewBag(0)
	bag.Add(mk("g", BorrowUseAfterMove, 0, 0, "a"))
	bag.Add(mk("f", BorrowSharedWhileMut, 1, 0, "b"))
	bag.Add(mk("f", BorrowDoubleMut, 0, 3, "b"))
	bag.Add(mk("f", BorrowUseAfterMove, 0, 3, "b"))
	bag.Add(mk("f", BorrowUseAfterMove, 0, 3, "b"))
	bag.Sort()
	bag.Dedup()

	var got []string
	for _, d := range bag.Items() {
		got = append(got, d.Func+"@"+d.Point.String()+":"+d.Code.ID())
	}
	want := "f@bb0[3]:B0001 f@bb0[3]:B0008 f@bb1[0]:B0009 g@bb0[0]:B0001"
	if strings.Join(got, " ") != want {
		t.Fatalf("order = %v, want %s", got, want)
	}
}

func TestMergeWidensLimit(t *testing.T) {
	a, b := NewBag(1), NewBag(0)
	a.Add(mk("f", BorrowUseAfterMove, 0, 0, "x"))
	b.Add(mk("g", BorrowUseAfterMove, 0, 0, "y"))
	a.Merge(b)
	if a.Len() != 2 || a.Cap() != 2 {
		t.Fatalf("len=%d cap=%d", a.Len(), a.Cap())
	}
}

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	d := mk("f", BorrowMutWhileShared, 2, 1, "v")
	r.Report(d)
	r.Report(d)
	NewReportBuilder(r, mk("f", BorrowMutWhileShared, 2, 1, "w")).
		WithNote(Note{Point: Point{Block: 1, Index: 0}, Msg: "borrow of `w` created here"}).
		WithFix("clone `w` first").
		Emit()
	if bag.Len() != 2 {
		t.Fatalf("len = %d, want 2", bag.Len())
	}
	second := bag.Items()[1]
	if len(second.Notes) != 1 || len(second.Fixes) != 1 {
		t.Fatalf("builder lost details: %+v", second)
	}
}

func TestReportBuilderEmitsOnce(t *testing.T) {
	bag := NewBag(0)
	b := NewReportBuilder(BagReporter{Bag: bag}, mk("f", BorrowUseAfterMove, 0, 0, "s"))
	b.Emit()
	b.Emit()
	if bag.Len() != 1 {
		t.Fatalf("len = %d", bag.Len())
	}
	var nilBuilder *ReportBuilder
	nilBuilder.WithNote(Note{}).Emit()
}

func TestCodes(t *testing.T) {
	codes := Codes()
	if len(codes) != 18 {
		t.Fatalf("codes = %d, want 18", len(codes))
	}
	for _, c := range codes {
		if c.Kind() == KindUnknown {
			t.Fatalf("%s has no kind", c.ID())
		}
		back, err := ParseCode(c.ID())
		if err != nil || back != c {
			t.Fatalf("ParseCode(%s) = %v, %v", c.ID(), back, err)
		}
	}
	if BorrowMalformedScopes.Kind() != KindNonExhaustiveDropOrder || !BorrowMalformedScopes.Kind().Fatal() {
		t.Fatal("B0900 must be fatal")
	}
	for _, bad := range []string{"", "B", "B0003", "x12"} {
		if _, err := ParseCode(bad); err == nil {
			t.Fatalf("ParseCode(%q) accepted", bad)
		}
	}
}

func TestFormatShortDiagnostics(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("m.toml", []byte("x\n  call f(move s)\n"))
	d := NewError(BorrowUseAfterMove, source.Span{File: id, Start: 4, End: 19}, "use of moved value `s`")
	d.Func = "main"
	d.Point = Point{Block: 0, Index: 2}
	d = d.WithNote(source.Span{}, Point{Block: 0, Index: 1}, "`s` moved here")

	got := FormatShortDiagnostics([]Diagnostic{d}, fs, true)
	want := "m.toml:2:3: error B0001 main@bb0[2]: use of moved value `s`\n" +
		"  note <unknown>@bb0[1]: `s` moved here\n"
	if got != want {
		t.Fatalf("got %q\nwant %q", got, want)
	}
	if NoPoint.Valid() || NoPoint.String() != "-" {
		t.Fatal("NoPoint must be invalid")
	}
}
