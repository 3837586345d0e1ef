package borrowck

import (
	"slices"

	"borrowck/internal/cfg"
	"borrowck/internal/source"
	"borrowck/internal/types"
)

type factKind uint8

const (
	// factRead copies a place or inspects its discriminant.
	factRead factKind = iota
	// factMove transfers ownership out of a place.
	factMove
	// factBorrow creates a loan.
	factBorrow
	// factAssign writes a place.
	factAssign
	factScopeEnter
	factScopeExit
	// factReturn leaves the function, optionally handing a value back.
	factReturn
)

func (k factKind) String() string {
	switch k {
	case factRead:
		return "read"
	case factMove:
		return "move"
	case factBorrow:
		return "borrow"
	case factAssign:
		return "assign"
	case factScopeEnter:
		return "scope_enter"
	case factScopeExit:
		return "scope_exit"
	case factReturn:
		return "return"
	default:
		return "?"
	}
}

// fact is one place-level event at a program point. Facts of a point are
// ordered as they happen at run time.
type fact struct {
	kind  factKind
	place cfg.Place
	// path is the move path of the trackable prefix of place.
	path MovePathID
	// through is set when place continues past path via Deref or Index.
	through bool
	loan    LoanID
	scope   cfg.ScopeID
	// reason is the move reason created by a factMove.
	reason  int
	capture bool
	hasVal  bool
	span    source.Span
}

// flowEdge says that references held by src may end up in dst.
type flowEdge struct {
	dst, src cfg.LocalID
}

// factSet is the output of the facts builder.
type factSet struct {
	points  *pointIndex
	paths   *movePaths
	loans   loanTable
	reasons []reason
	byPoint [][]fact
	flows   []flowEdge
	// uses[p] / defs[p] list locals read and fully overwritten at p.
	uses [][]cfg.LocalID
	defs [][]cfg.LocalID
	// mutUses[p] lists locals whose reference is exercised mutably at p:
	// written or mutably reborrowed through, or handed on by value.
	mutUses [][]cfg.LocalID
}

type factBuilder struct {
	f       *cfg.Func
	types   *types.Interner
	opts    Options
	out     *factSet
	point   PointID
	span    source.Span
	pending []fact
}

// buildFacts walks the CFG once and extracts every place-level event.
func buildFacts(f *cfg.Func, typesIn *types.Interner, opts Options) *factSet {
	fs := &factSet{
		points: newPointIndex(f),
		paths:  newMovePaths(f),
	}
	fs.reasons = initialReasons(f)
	n := fs.points.len()
	fs.byPoint = make([][]fact, n)
	fs.uses = make([][]cfg.LocalID, n)
	fs.defs = make([][]cfg.LocalID, n)
	fs.mutUses = make([][]cfg.LocalID, n)

	b := &factBuilder{f: f, types: typesIn, opts: opts, out: fs}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			b.begin(fs.points.id(cfg.BlockID(i), j), bb.Instrs[j].Span)
			b.instr(&bb.Instrs[j])
			b.finish()
		}
		b.begin(fs.points.id(cfg.BlockID(i), len(bb.Instrs)), bb.Term.Span)
		b.term(&bb.Term)
		b.finish()
	}
	return fs
}

func (b *factBuilder) begin(p PointID, sp source.Span) {
	b.point = p
	b.span = sp
	b.pending = b.pending[:0]
}

func (b *factBuilder) finish() {
	facts := make([]fact, len(b.pending))
	copy(facts, b.pending)
	b.out.byPoint[b.point] = facts

	var uses, defs []cfg.LocalID
	for _, ft := range facts {
		switch ft.kind {
		case factScopeEnter, factScopeExit:
			continue
		case factReturn:
			if !ft.hasVal {
				continue
			}
		case factAssign:
			if ft.place.IsLocal() {
				defs = appendUnique(defs, ft.place.Local)
				continue
			}
		}
		uses = appendUnique(uses, ft.place.Local)
		for _, pr := range ft.place.Proj {
			if pr.Kind == cfg.ProjIndex && pr.IndexLocal != cfg.NoLocalID {
				uses = appendUnique(uses, pr.IndexLocal)
			}
		}
	}
	b.out.uses[b.point] = uses
	b.out.defs[b.point] = defs

	var mutUses []cfg.LocalID
	for _, ft := range facts {
		if b.mutableUse(&ft) {
			mutUses = appendUnique(mutUses, ft.place.Local)
		}
	}
	b.out.mutUses[b.point] = mutUses
}

// mutableUse reports whether ft exercises the reference stored in the
// root local of its place as a mutable one.
func (b *factBuilder) mutableUse(ft *fact) bool {
	if !ft.place.IsValid() {
		return false
	}
	switch ft.kind {
	case factBorrow:
		return ft.place.HasDeref() && b.out.loans.get(ft.loan).Kind != LoanShared
	case factAssign:
		return ft.place.HasDeref()
	case factRead, factMove:
		return !ft.place.HasDeref()
	default:
		return false
	}
}

func appendUnique(xs []cfg.LocalID, x cfg.LocalID) []cfg.LocalID {
	for _, y := range xs {
		if y == x {
			return xs
		}
	}
	return append(xs, x)
}

func (b *factBuilder) emit(ft fact) {
	ft.span = b.span
	if ft.kind != factScopeEnter && ft.kind != factScopeExit && ft.place.IsValid() {
		ft.path = b.out.paths.intern(ft.place)
		_, ft.through = trackable(ft.place)
	} else {
		ft.path = NoMovePath
	}
	if ft.kind == factMove {
		if ft.through {
			// Storage behind a pointer or inside an array element is
			// not owned here; treat the use as a read of the owner.
			ft.kind = factRead
		} else {
			ft.reason = b.out.addReason(reason{kind: reasonMove, path: ft.path, point: b.point, capture: ft.capture})
		}
	}
	b.pending = append(b.pending, ft)
}

func (b *factBuilder) placeType(p cfg.Place) types.TypeID {
	ty, _ := b.f.PlaceType(b.types, p)
	return ty
}

func (b *factBuilder) carriesRefs(p cfg.Place) bool {
	return b.types.ContainsRef(b.placeType(p))
}

// indexReads emits reads of index locals mentioned by p.
func (b *factBuilder) indexReads(p cfg.Place) {
	for _, pr := range p.Proj {
		if pr.Kind == cfg.ProjIndex && pr.IndexLocal != cfg.NoLocalID {
			b.emit(fact{kind: factRead, place: cfg.LocalPlace(pr.IndexLocal)})
		}
	}
}

// operand emits the read or move of an operand and records reference
// flow into dst when the operand carries references.
func (b *factBuilder) operand(op cfg.Operand, dst cfg.LocalID) {
	if !op.HasPlace() {
		return
	}
	b.indexReads(op.Place)
	kind := factRead
	if op.Kind == cfg.OperandMove && !b.types.IsCopy(b.placeType(op.Place)) {
		kind = factMove
	}
	b.emit(fact{kind: kind, place: op.Place})
	b.flow(dst, op.Place)
}

func (b *factBuilder) flow(dst cfg.LocalID, src cfg.Place) {
	if dst == cfg.NoLocalID || !b.carriesRefs(src) {
		return
	}
	b.out.flows = append(b.out.flows, flowEdge{dst: dst, src: src.Local})
}

func (b *factBuilder) borrow(kind cfg.BorrowKind, p cfg.Place, holder cfg.LocalID, origin LoanOrigin) LoanID {
	b.indexReads(p)
	lk := LoanShared
	switch kind {
	case cfg.BorrowMut:
		lk = LoanMutable
	case cfg.BorrowTwoPhase:
		lk = LoanTwoPhase
		if !b.opts.TwoPhase {
			lk = LoanMutable
		}
	}
	id := b.out.loans.add(&Loan{
		Point:  b.point,
		Place:  p,
		Kind:   lk,
		Origin: origin,
		Holder: holder,
		Span:   b.span,
	})
	b.emit(fact{kind: factBorrow, place: p, loan: id, capture: origin == OriginCapture})
	if p.HasDeref() && holder != cfg.NoLocalID {
		// A reborrow keeps the loans of the pointer it goes through alive.
		b.out.flows = append(b.out.flows, flowEdge{dst: holder, src: p.Local})
	}
	return id
}

func (b *factBuilder) assign(dst cfg.Place) {
	b.indexReads(dst)
	b.emit(fact{kind: factAssign, place: dst})
}

func (b *factBuilder) instr(ins *cfg.Instr) {
	switch ins.Kind {
	case cfg.InstrAssign:
		dst := ins.Assign.Dst
		src := &ins.Assign.Src
		switch src.Kind {
		case cfg.RValueRef:
			b.borrow(src.Ref.Kind, src.Ref.Place, dst.Local, OriginRef)
		case cfg.RValueClosure:
			b.closure(&src.Closure, dst.Local)
		default:
			for _, op := range src.Operands() {
				b.operand(op, dst.Local)
			}
		}
		b.assign(dst)
	case cfg.InstrCall:
		b.call(&ins.Call)
	case cfg.InstrScopeEnter:
		b.emit(fact{kind: factScopeEnter, scope: ins.Scope})
	case cfg.InstrScopeExit:
		b.emit(fact{kind: factScopeExit, scope: ins.Scope})
	case cfg.InstrDrop:
		// Already-annotated input: a drop consumes the place.
		b.emit(fact{kind: factMove, place: ins.Drop.Place})
	}
}

func (b *factBuilder) closure(cl *cfg.ClosureRValue, dst cfg.LocalID) {
	for _, c := range cl.Captures {
		switch c.Mode {
		case cfg.CaptureRef:
			b.borrow(cfg.BorrowShared, c.Place, dst, OriginCapture)
		case cfg.CaptureRefMut:
			b.borrow(cfg.BorrowMut, c.Place, dst, OriginCapture)
		default:
			b.indexReads(c.Place)
			kind := factRead
			if c.Mode == cfg.CaptureMove && !b.types.IsCopy(b.placeType(c.Place)) {
				kind = factMove
			}
			b.emit(fact{kind: kind, place: c.Place, capture: true})
			b.flow(dst, c.Place)
		}
	}
}

// call emits argument uses, then the receiver adjustment dictated by the
// callee's declared receiver kind, then the write of the result.
func (b *factBuilder) call(call *cfg.CallInstr) {
	sig, _ := b.types.Func(call.Callee)
	dst := cfg.NoLocalID
	if call.HasDst && b.carriesRefs(call.Dst) {
		dst = call.Dst.Local
	}

	recvOffset := 0
	if call.HasRecv {
		recvOffset = 1
	}
	// flowsTo reports whether argument position pos may flow into the
	// result. Without an explicit list every argument may.
	flowsTo := func(pos int) bool {
		if dst == cfg.NoLocalID {
			return false
		}
		if sig == nil || len(sig.ResultFrom) == 0 {
			return true
		}
		return slices.Contains(sig.ResultFrom, pos)
	}

	for i, arg := range call.Args {
		to := cfg.NoLocalID
		if flowsTo(i + recvOffset) {
			to = dst
		}
		b.operand(arg, to)
	}

	if call.HasRecv {
		recvKind := types.RecvRef
		if sig != nil && sig.Recv != types.RecvNone {
			recvKind = sig.Recv
		}
		holder := cfg.NoLocalID
		if flowsTo(0) {
			holder = dst
		}
		switch recvKind {
		case types.RecvThis:
			b.operand(cfg.Operand{Kind: cfg.OperandMove, Place: call.Recv}, holder)
		case types.RecvRefMut:
			b.borrow(cfg.BorrowMut, call.Recv, holder, OriginReceiver)
		default:
			b.borrow(cfg.BorrowShared, call.Recv, holder, OriginReceiver)
		}
	}

	if call.HasDst {
		b.assign(call.Dst)
	}
}

func (b *factBuilder) term(t *cfg.Terminator) {
	switch t.Kind {
	case cfg.TermIf:
		b.operand(t.If.Cond, cfg.NoLocalID)
	case cfg.TermSwitch:
		if t.Switch.Value.HasPlace() {
			b.indexReads(t.Switch.Value.Place)
			b.emit(fact{kind: factRead, place: t.Switch.Value.Place})
		}
	case cfg.TermReturn:
		if t.Return.HasValue && t.Return.Value.HasPlace() {
			b.operand(t.Return.Value, cfg.NoLocalID)
			b.emit(fact{kind: factReturn, place: t.Return.Value.Place, hasVal: true})
			return
		}
		b.emit(fact{kind: factReturn, place: cfg.Place{Local: cfg.NoLocalID}})
	}
}
