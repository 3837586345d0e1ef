package borrowck

import (
	"fmt"
	"slices"

	"borrowck/internal/cfg"
	"borrowck/internal/diag"
)

// emitter maps violations onto diagnostics. It never fails.
type emitter struct {
	f  *cfg.Func
	fs *factSet
	r  diag.Reporter
}

func (e *emitter) place(p cfg.Place) string {
	return e.f.PlaceString(p)
}

func (e *emitter) base(code diag.Code, v *violation, msg string) diag.Diagnostic {
	d := diag.NewError(code, v.span, msg)
	d.Func = e.f.Name
	d.Point = e.fs.points.diagPoint(v.point)
	d.Place = e.place(v.place)
	d.Loan = int(v.loan)
	return d
}

func (e *emitter) violation(v *violation) {
	p := "`" + e.place(v.place) + "`"
	var msg string
	switch v.code {
	case diag.BorrowUseAfterMove:
		msg = fmt.Sprintf("use of %s %s", e.reasonAdjective(v.reasons), p)
	case diag.BorrowMovedBorrow:
		msg = fmt.Sprintf("cannot borrow %s %s", e.reasonAdjective(v.reasons), p)
	case diag.BorrowPartialMoveUse:
		msg = fmt.Sprintf("use of partially moved value %s", p)
	case diag.BorrowClosureMovedValue:
		msg = fmt.Sprintf("closure captures %s %s", e.reasonAdjective(v.reasons), p)
	case diag.BorrowAssignIntoMoved:
		msg = fmt.Sprintf("assignment to %s, but its owner is %s", p, e.reasonAdjective(v.reasons))
	case diag.BorrowMoveWhileBorrowed:
		msg = fmt.Sprintf("cannot move out of %s because it is borrowed", p)
	case diag.BorrowAssignWhileBorrowed:
		msg = fmt.Sprintf("cannot assign to %s because it is borrowed", p)
	case diag.BorrowAssignImmutable:
		msg = fmt.Sprintf("cannot assign twice to immutable %s", p)
	case diag.BorrowMutOfImmutable:
		msg = fmt.Sprintf("cannot borrow %s as mutable, as it is not declared as mutable", p)
	case diag.BorrowMutWhileShared:
		msg = fmt.Sprintf("cannot borrow %s as mutable because it is also borrowed as shared", p)
	case diag.BorrowDoubleMut:
		msg = fmt.Sprintf("cannot borrow %s as mutable more than once at a time", p)
	case diag.BorrowSharedWhileMut:
		msg = fmt.Sprintf("cannot borrow %s as shared because it is also borrowed as mutable", p)
	case diag.BorrowTwoPhaseConflict:
		msg = fmt.Sprintf("reserved mutable borrow of %s cannot be activated while it is borrowed", p)
	case diag.BorrowReadWhileMutBorrowed:
		msg = fmt.Sprintf("cannot use %s because it is mutably borrowed", p)
	case diag.BorrowClosureConflict:
		msg = fmt.Sprintf("closure cannot capture %s because it is borrowed", p)
	case diag.BorrowReturnLocalRef:
		msg = fmt.Sprintf("cannot return reference to local data %s", p)
	case diag.BorrowOutlivesOwner:
		msg = fmt.Sprintf("`%s` does not live long enough", e.f.LocalName(v.dying))
	default:
		msg = v.code.Title()
	}

	b := diag.NewReportBuilder(e.r, e.base(v.code, v, msg))
	e.reasonNotes(b, v.reasons)
	if v.newLoan != NoLoan {
		nl := e.fs.loans.get(v.newLoan)
		if nl.Point != v.point {
			b.WithNote(e.loanNote(nl, "new borrow"))
		}
	}
	if v.loan != NoLoan {
		l := e.fs.loans.get(v.loan)
		b.WithNote(e.loanNote(l, ""))
		if l.Kind == LoanTwoPhase && l.Activation != NoPoint && v.code != diag.BorrowTwoPhaseConflict {
			b.WithNote(diag.Note{
				Span:  e.fs.spanAt(l.Activation),
				Point: e.fs.points.diagPoint(l.Activation),
				Msg:   "reserved borrow is activated here",
			})
		}
	}
	switch v.code {
	case diag.BorrowOutlivesOwner:
		b.WithNote(diag.Note{
			Span:  v.span,
			Point: e.fs.points.diagPoint(v.point),
			Msg:   fmt.Sprintf("`%s` dropped here while still borrowed", e.f.LocalName(v.dying)),
		})
	case diag.BorrowUseAfterMove, diag.BorrowMovedBorrow, diag.BorrowClosureMovedValue:
		if e.hasMoveReason(v.reasons) {
			b.WithFix("consider borrowing the value instead of moving it")
		}
	case diag.BorrowReturnLocalRef:
		b.WithFix("return an owned value instead of a reference")
	case diag.BorrowAssignImmutable, diag.BorrowMutOfImmutable:
		name := e.f.LocalName(v.place.Local)
		b.WithNote(diag.Note{Span: e.f.Locals[v.place.Local].Span, Point: diag.NoPoint, Msg: fmt.Sprintf("`%s` declared here", name)})
		b.WithFix(fmt.Sprintf("consider declaring `%s` as mutable", name))
	case diag.BorrowDoubleMut, diag.BorrowMutWhileShared, diag.BorrowSharedWhileMut, diag.BorrowReadWhileMutBorrowed:
		b.WithFix("move the last use of the earlier borrow before this point")
	}
	b.Emit()
}

func (e *emitter) reasonAdjective(reasons []int) string {
	moved, other := false, false
	for _, r := range reasons {
		if e.fs.reasons[r].kind == reasonMove {
			moved = true
		} else {
			other = true
		}
	}
	switch {
	case moved && !other:
		return "moved value"
	case moved:
		return "possibly moved value"
	default:
		return "possibly-uninitialized"
	}
}

func (e *emitter) hasMoveReason(reasons []int) bool {
	return slices.ContainsFunc(reasons, func(r int) bool { return e.fs.reasons[r].kind == reasonMove })
}

func (e *emitter) reasonNotes(b *diag.ReportBuilder, reasons []int) {
	sorted := slices.Clone(reasons)
	slices.SortFunc(sorted, func(a, c int) int {
		pa, pc := e.fs.reasons[a].point, e.fs.reasons[c].point
		if pa != pc {
			return int(pa) - int(pc)
		}
		return a - c
	})
	for _, r := range sorted {
		rs := e.fs.reasons[r]
		name := e.place(e.fs.paths.place(rs.path))
		switch rs.kind {
		case reasonMove:
			msg := fmt.Sprintf("`%s` moved here", name)
			if rs.capture {
				msg = fmt.Sprintf("`%s` moved into closure here", name)
			}
			b.WithNote(diag.Note{Span: e.fs.spanAt(rs.point), Point: e.fs.points.diagPoint(rs.point), Msg: msg})
		case reasonUninit:
			l := e.fs.paths.local(rs.path)
			b.WithNote(diag.Note{Span: e.f.Locals[l].Span, Point: diag.NoPoint, Msg: fmt.Sprintf("`%s` declared here without a value", name)})
		case reasonDead:
			l := e.fs.paths.local(rs.path)
			b.WithNote(diag.Note{Span: e.f.Locals[l].Span, Point: diag.NoPoint, Msg: fmt.Sprintf("`%s` went out of scope", name)})
		}
	}
}

func (e *emitter) loanNote(l *Loan, what string) diag.Note {
	msg := fmt.Sprintf("%s borrow of `%s` created here", l.Kind, e.place(l.Place))
	switch l.Origin {
	case OriginReceiver:
		msg = fmt.Sprintf("`%s` borrowed as method receiver here", e.place(l.Place))
	case OriginCapture:
		msg = fmt.Sprintf("`%s` captured by reference here", e.place(l.Place))
	}
	if what != "" {
		msg = what + ": " + msg
	}
	return diag.Note{Span: l.Span, Point: e.fs.points.diagPoint(l.Point), Msg: msg}
}

func (e *emitter) scopeError(se scopeError) diag.Diagnostic {
	d := diag.New(diag.SevFatal, diag.BorrowMalformedScopes, e.fs.spanAt(se.point), "malformed scope structure: "+se.msg)
	d.Func = e.f.Name
	d.Point = e.fs.points.diagPoint(se.point)
	return d
}
