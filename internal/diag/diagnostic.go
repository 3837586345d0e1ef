package diag

import (
	"fmt"

	"borrowck/internal/source"
)

// Point locates a diagnostic inside a function's CFG. Index equal to the
// number of instructions in the block addresses the terminator.
type Point struct {
	Block int32
	Index int32
}

// NoPoint marks notes without a CFG location.
var NoPoint = Point{Block: -1, Index: -1}

func (p Point) Valid() bool { return p.Block >= 0 }

func (p Point) String() string {
	if !p.Valid() {
		return "-"
	}
	return fmt.Sprintf("bb%d[%d]", p.Block, p.Index)
}

type Note struct {
	Span  source.Span
	Point Point
	Msg   string
}

type FixEdit struct {
	Span    source.Span
	NewText string
}

type Fix struct {
	Title string
	Edits []FixEdit
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	// Func names the analyzed function.
	Func    string
	Primary source.Span
	Point   Point
	// Place is the rendered place the violation is about, e.g. `c.items`.
	Place string
	// Loan is the index of the conflicting loan, or -1.
	Loan  int
	Notes []Note
	Fixes []Fix
}

// Kind maps the diagnostic onto the closed taxonomy.
func (d *Diagnostic) Kind() Kind {
	return d.Code.Kind()
}

func New(sev Severity, code Code, primary source.Span, msg string) Diagnostic {
	return Diagnostic{
		Severity: sev,
		Code:     code,
		Primary:  primary,
		Point:    NoPoint,
		Loan:     -1,
		Message:  msg,
	}
}

func NewError(code Code, primary source.Span, msg string) Diagnostic {
	return New(SevError, code, primary, msg)
}

func (d Diagnostic) WithNote(sp source.Span, pt Point, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Span: sp, Point: pt, Msg: msg})
	return d
}

func (d Diagnostic) WithFix(title string, edits ...FixEdit) Diagnostic {
	d.Fixes = append(d.Fixes, Fix{Title: title, Edits: edits})
	return d
}
