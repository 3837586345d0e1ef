package borrowck

import (
	"slices"

	"borrowck/internal/cfg"
	"borrowck/internal/diag"
	"borrowck/internal/source"
	"borrowck/internal/types"
)

// violation is an internal record of a detected problem; the emitter maps
// it onto a diagnostic.
type violation struct {
	code  diag.Code
	point PointID
	span  source.Span
	place cfg.Place
	// loan is the conflicting (already active) loan.
	loan LoanID
	// newLoan is the loan being created, for borrow conflicts.
	newLoan LoanID
	reasons []int
	dying   cfg.LocalID
}

type checker struct {
	f     *cfg.Func
	types *types.Interner
	fs    *factSet
	ia    *initAnalysis
	rg    *regions
	opts  Options
	out   []violation
}

// checkConflicts sweeps every reachable point once, in point order, and
// applies the conflict rules to each fact.
func checkConflicts(f *cfg.Func, typesIn *types.Interner, fs *factSet, ia *initAnalysis, rg *regions, opts Options) []violation {
	c := &checker{f: f, types: typesIn, fs: fs, ia: ia, rg: rg, opts: opts}
	for p := 0; p < fs.points.len(); p++ {
		if ia.reached[p] {
			c.point(PointID(p))
		}
	}
	return c.out
}

type pointState struct {
	p         PointID
	init      initState
	active    []LoanID
	activated map[LoanID]bool
}

func (c *checker) point(p PointID) {
	ps := &pointState{p: p, activated: make(map[LoanID]bool)}
	ps.init.copyFrom(&c.ia.onEntry[p])
	ps.active = c.rg.liveLoans(p)

	activationsDone := false
	facts := c.fs.byPoint[p]
	for k := range facts {
		ft := &facts[k]
		if !activationsDone && ft.kind != factRead && ft.kind != factMove {
			c.activate(ps)
			activationsDone = true
		}
		c.fact(ps, ft)
		c.ia.apply(&ps.init, ft)
	}
	if !activationsDone {
		c.activate(ps)
	}
}

func (c *checker) report(v violation) {
	c.out = append(c.out, v)
}

func (c *checker) mutableAt(ps *pointState, id LoanID) bool {
	l := c.fs.loans.get(id)
	switch l.Kind {
	case LoanMutable:
		return true
	case LoanTwoPhase:
		return ps.activated[id] || c.rg.activated[ps.p].Has(int(id))
	default:
		return false
	}
}

// exempt reports whether access to p goes through a holder of loan id,
// i.e. is made through the reference the loan produced.
func (c *checker) exempt(id LoanID, p cfg.Place) bool {
	return p.HasDeref() && c.rg.isHolder(id, p.Local)
}

// firstConflict returns the lowest active loan overlapping p that satisfies
// pred, or NoLoan.
func (c *checker) firstConflict(ps *pointState, p cfg.Place, pred func(LoanID) bool) LoanID {
	for _, id := range ps.active {
		l := c.fs.loans.get(id)
		if cfg.Disjoint(l.Place, p) || c.exempt(id, p) {
			continue
		}
		if pred(id) {
			return id
		}
	}
	return NoLoan
}

func (c *checker) activate(ps *pointState) {
	for _, id := range c.rg.activations[ps.p] {
		l := c.fs.loans.get(id)
		other := c.firstConflict(ps, l.Place, func(o LoanID) bool { return o != id })
		if other != NoLoan {
			c.report(violation{
				code: diag.BorrowTwoPhaseConflict, point: ps.p, span: l.Span,
				place: l.Place, loan: other, newLoan: id,
			})
		}
		ps.activated[id] = true
	}
}

func (c *checker) fact(ps *pointState, ft *fact) {
	switch ft.kind {
	case factRead:
		if c.checkInit(ps, ft, diag.BorrowUseAfterMove) {
			return
		}
		code := diag.BorrowReadWhileMutBorrowed
		if ft.capture {
			code = diag.BorrowClosureConflict
		}
		if id := c.firstConflict(ps, ft.place, func(o LoanID) bool { return c.mutableAt(ps, o) }); id != NoLoan {
			c.report(violation{code: code, point: ps.p, span: ft.span, place: ft.place, loan: id, newLoan: NoLoan})
		}
	case factMove:
		if c.checkInit(ps, ft, diag.BorrowUseAfterMove) {
			return
		}
		code := diag.BorrowMoveWhileBorrowed
		if ft.capture {
			code = diag.BorrowClosureConflict
		}
		if id := c.firstConflict(ps, ft.place, func(LoanID) bool { return true }); id != NoLoan {
			c.report(violation{code: code, point: ps.p, span: ft.span, place: ft.place, loan: id, newLoan: NoLoan})
		}
	case factBorrow:
		c.borrow(ps, ft)
	case factAssign:
		c.retireTemporaries(ps)
		c.assign(ps, ft)
	case factScopeExit:
		c.scopeExit(ps, ft)
	case factReturn:
		c.ret(ps, ft)
	}
}

// checkInit applies rule 1: the place must be initialized on every path.
func (c *checker) checkInit(ps *pointState, ft *fact, code diag.Code) bool {
	whole, partial := c.ia.uninitReasons(&ps.init, ft.path)
	switch {
	case len(whole) > 0:
	case len(partial) > 0:
		code = diag.BorrowPartialMoveUse
		whole = partial
	default:
		return false
	}
	if ft.capture {
		code = diag.BorrowClosureMovedValue
	}
	c.report(violation{code: code, point: ps.p, span: ft.span, place: ft.place, loan: NoLoan, newLoan: NoLoan, reasons: whole})
	return true
}

func (c *checker) borrow(ps *pointState, ft *fact) {
	defer func() { ps.active = append(ps.active, ft.loan) }()
	if c.checkInit(ps, ft, diag.BorrowMovedBorrow) {
		return
	}
	nl := c.fs.loans.get(ft.loan)
	if c.opts.Mutability && nl.Kind != LoanShared && !nl.reborrow() && !c.f.IsMutable(nl.Place.Local) {
		c.report(violation{code: diag.BorrowMutOfImmutable, point: ps.p, span: ft.span, place: nl.Place, loan: NoLoan, newLoan: NoLoan})
		return
	}
	var (
		id   LoanID
		code diag.Code
	)
	if nl.Kind == LoanMutable {
		id = c.firstConflict(ps, nl.Place, func(LoanID) bool { return true })
		if id != NoLoan {
			code = diag.BorrowMutWhileShared
			if c.mutableAt(ps, id) {
				code = diag.BorrowDoubleMut
			}
		}
	} else {
		// Shared loans and two-phase reservations only clash with
		// loans that already act mutably.
		id = c.firstConflict(ps, nl.Place, func(o LoanID) bool { return c.mutableAt(ps, o) })
		code = diag.BorrowSharedWhileMut
	}
	if id == NoLoan {
		return
	}
	if ft.capture {
		code = diag.BorrowClosureConflict
	}
	c.report(violation{code: code, point: ps.p, span: ft.span, place: nl.Place, loan: id, newLoan: ft.loan})
}

func (c *checker) assign(ps *pointState, ft *fact) {
	if ft.through {
		cut := ft.place.Proj[len(c.fs.paths.place(ft.path).Proj)]
		code := diag.BorrowUseAfterMove
		if cut.Kind == cfg.ProjIndex {
			code = diag.BorrowAssignIntoMoved
		}
		whole, _ := c.ia.uninitReasons(&ps.init, ft.path)
		if len(whole) > 0 {
			c.report(violation{code: code, point: ps.p, span: ft.span, place: ft.place, loan: NoLoan, newLoan: NoLoan, reasons: whole})
			return
		}
	} else if reasons := c.ancestorReasons(&ps.init, ft.path); len(reasons) > 0 {
		c.report(violation{code: diag.BorrowAssignIntoMoved, point: ps.p, span: ft.span, place: ft.place, loan: NoLoan, newLoan: NoLoan, reasons: reasons})
		return
	} else if c.opts.Mutability && !c.f.IsMutable(ft.place.Local) && !c.ia.definitelyUninit(&ps.init, ft.path) {
		// The first write initializes; any later one mutates.
		c.report(violation{code: diag.BorrowAssignImmutable, point: ps.p, span: ft.span, place: ft.place, loan: NoLoan, newLoan: NoLoan})
		return
	}
	id := c.firstConflict(ps, ft.place, func(o LoanID) bool {
		return !overwritesPointer(ft.place, c.fs.loans.get(o).Place)
	})
	if id != NoLoan {
		c.report(violation{code: diag.BorrowAssignWhileBorrowed, point: ps.p, span: ft.span, place: ft.place, loan: id, newLoan: NoLoan})
	}
}

// retireTemporaries ends the loans created at this point whose reference
// is never stored. They only exist while the operands are evaluated, so
// the write of the result is already past them.
func (c *checker) retireTemporaries(ps *pointState) {
	ps.active = slices.DeleteFunc(ps.active, func(id LoanID) bool {
		return c.fs.loans.get(id).Point == ps.p && len(c.rg.holders[id]) == 0
	})
}

// overwritesPointer reports whether writing w only replaces a pointer the
// borrowed place b dereferences; the referent itself stays intact.
func overwritesPointer(w, b cfg.Place) bool {
	if !w.IsPrefixOf(b) {
		return false
	}
	for _, pr := range b.Proj[len(w.Proj):] {
		if pr.Kind == cfg.ProjDeref {
			return true
		}
	}
	return false
}

// ancestorReasons returns reasons covering a strict ancestor of path.
func (c *checker) ancestorReasons(st *initState, path MovePathID) []int {
	mp := c.fs.paths
	ancestors := mp.ancestors(nil, path)
	if len(ancestors) == 0 {
		return nil
	}
	var out []int
	for _, r := range st.maybe.AppendTo(nil) {
		if slices.Contains(ancestors, c.fs.reasons[r].path) {
			out = append(out, r)
		}
	}
	return out
}

// scopeExit applies rule 5 to locals dying here: a loan of their storage
// must not be live past this point.
func (c *checker) scopeExit(ps *pointState, ft *fact) {
	for _, l := range c.ia.scopeLocals[ft.scope] {
		for _, id := range ps.active {
			ln := c.fs.loans.get(id)
			if ln.Place.Local != l || ln.reborrow() {
				continue
			}
			c.report(violation{code: diag.BorrowOutlivesOwner, point: ps.p, span: ft.span, place: ln.Place, loan: id, newLoan: NoLoan, dying: l})
			break
		}
	}
}

// ret rejects returning references into the function's own storage.
func (c *checker) ret(ps *pointState, ft *fact) {
	if !ft.hasVal {
		return
	}
	ty, _ := c.f.PlaceType(c.types, ft.place)
	if !c.types.ContainsRef(ty) {
		return
	}
	for _, id := range c.rg.loansOf[ft.place.Local].AppendTo(nil) {
		ln := c.fs.loans.get(LoanID(id))
		if ln.reborrow() {
			continue
		}
		c.report(violation{code: diag.BorrowReturnLocalRef, point: ps.p, span: ft.span, place: ln.Place, loan: ln.ID, newLoan: NoLoan, dying: ln.Place.Local})
		return
	}
}
