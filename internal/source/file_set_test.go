package source

import "testing"

func TestResolveLineCol(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.toml", []byte("first\nsecond line\nthird"))

	tests := []struct {
		off  uint32
		want LineCol
	}{
		{0, LineCol{Line: 1, Col: 1}},
		{4, LineCol{Line: 1, Col: 5}},
		{6, LineCol{Line: 2, Col: 1}},
		{13, LineCol{Line: 2, Col: 8}},
		{18, LineCol{Line: 3, Col: 1}},
	}
	for _, tt := range tests {
		start, _, ok := fs.Resolve(Span{File: id, Start: tt.off, End: tt.off})
		if !ok {
			t.Fatalf("resolve failed for %d", tt.off)
		}
		if start != tt.want {
			t.Errorf("offset %d: got %+v, want %+v", tt.off, start, tt.want)
		}
	}
}

func TestGetLine(t *testing.T) {
	fs := NewFileSet()
	id := fs.AddVirtual("a.toml", []byte("first\nsecond line\nthird"))
	f := fs.Get(id)
	if got := f.GetLine(2); got != "second line" {
		t.Fatalf("line 2 = %q", got)
	}
	if got := f.GetLine(3); got != "third" {
		t.Fatalf("line 3 = %q", got)
	}
	if got := f.GetLine(9); got != "" {
		t.Fatalf("line 9 = %q, want empty", got)
	}
}

func TestSpanCover(t *testing.T) {
	a := Span{File: 1, Start: 4, End: 8}
	b := Span{File: 1, Start: 2, End: 6}
	if got := a.Cover(b); got.Start != 2 || got.End != 8 {
		t.Fatalf("cover = %v", got)
	}
	if got := a.Cover(Span{File: 2, Start: 0, End: 1}); got != a {
		t.Fatalf("cover across files must keep receiver, got %v", got)
	}
	if got := (Span{}).Cover(b); got != b {
		t.Fatalf("empty cover = %v", got)
	}
}
