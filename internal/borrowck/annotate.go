package borrowck

import (
	"borrowck/internal/cfg"
	"borrowck/internal/source"
	"borrowck/internal/types"
)

// annotator produces the output CFG: a copy of the input with drops and
// drop flag updates inserted and two-phase borrows lowered to plain
// mutable ones.
type annotator struct {
	src   *cfg.Func
	out   *cfg.Func
	types *types.Interner
	fs    *factSet
	plan  *dropPlan
	flags map[MovePathID]cfg.LocalID
	drops []Drop
}

func annotate(f *cfg.Func, typesIn *types.Interner, fs *factSet, plan *dropPlan) (*cfg.Func, []Drop) {
	a := &annotator{
		src:   f,
		out:   f.Clone(),
		types: typesIn,
		fs:    fs,
		plan:  plan,
		flags: make(map[MovePathID]cfg.LocalID, len(plan.flagged)),
	}
	for _, path := range plan.flagged {
		place := fs.paths.place(path)
		a.flags[path] = a.out.AddLocal(cfg.Local{
			Name:  "flag$" + f.PlaceString(place),
			Type:  typesIn.Builtins().Bool,
			Flags: cfg.LocalFlagDropFlag | cfg.LocalFlagTemp,
			Scope: cfg.BodyScope,
			Span:  f.Locals[place.Local].Span,
		})
	}
	for i := range a.out.Blocks {
		a.block(cfg.BlockID(i))
	}
	return a.out, a.drops
}

func (a *annotator) block(b cfg.BlockID) {
	pi := a.fs.points
	bb := &a.out.Blocks[b]
	instrs := make([]cfg.Instr, 0, len(bb.Instrs))
	if b == a.out.Entry {
		for _, path := range a.plan.flagged {
			init := a.src.IsParam(a.fs.paths.local(path))
			instrs = append(instrs, a.setFlag(path, init, a.src.Span))
		}
	}
	for j := range bb.Instrs {
		p := pi.id(b, j)
		ins := bb.Instrs[j]
		lowerTwoPhase(&ins)
		if a.readsDropped(p, instrReads(&ins)) {
			// The old value is still an input: compute the new one into
			// a temporary, destroy the old one, then store.
			var store cfg.Instr
			ins, store = a.spillInstr(ins)
			instrs = append(instrs, ins)
			instrs = a.emitDrops(instrs, p)
			instrs = append(instrs, store)
		} else {
			instrs = a.emitDrops(instrs, p)
			instrs = append(instrs, ins)
		}
		instrs = a.flagUpdates(instrs, p)
	}
	p := pi.id(b, len(bb.Instrs))
	if ret := &bb.Term.Return; bb.Term.Kind == cfg.TermReturn && ret.HasValue && ret.Value.HasPlace() && len(a.plan.before[p]) > 0 {
		// Locals die before the function leaves; the result has to be
		// taken out of them first.
		tmp := a.temp("ret$", a.operandType(ret.Value), bb.Term.Span)
		instrs = append(instrs, cfg.Instr{
			Kind:   cfg.InstrAssign,
			Span:   bb.Term.Span,
			Assign: cfg.AssignInstr{Dst: cfg.LocalPlace(tmp), Src: cfg.RValue{Kind: cfg.RValueUse, Use: ret.Value}},
		})
		ret.Value = cfg.Move(cfg.LocalPlace(tmp))
	}
	instrs = a.emitDrops(instrs, p)
	bb.Instrs = instrs
}

// readsDropped reports whether any place read by the instruction at p
// overlaps a place dropped right before it.
func (a *annotator) readsDropped(p PointID, reads []cfg.Place) bool {
	for _, act := range a.plan.before[p] {
		for _, r := range reads {
			if cfg.Overlaps(act.place, r) {
				return true
			}
		}
	}
	return false
}

// instrReads lists the places an assign or call reads before writing its
// destination.
func instrReads(ins *cfg.Instr) []cfg.Place {
	var out []cfg.Place
	add := func(op cfg.Operand) {
		if op.HasPlace() {
			out = append(out, op.Place)
		}
	}
	switch ins.Kind {
	case cfg.InstrAssign:
		src := &ins.Assign.Src
		switch src.Kind {
		case cfg.RValueRef:
			out = append(out, src.Ref.Place)
		case cfg.RValueClosure:
			for _, c := range src.Closure.Captures {
				out = append(out, c.Place)
			}
		default:
			for _, op := range src.Operands() {
				add(op)
			}
		}
	case cfg.InstrCall:
		for _, op := range ins.Call.Args {
			add(op)
		}
		if ins.Call.HasRecv {
			out = append(out, ins.Call.Recv)
		}
	}
	return out
}

// spillInstr redirects the destination of ins into a fresh temporary and
// returns the rewritten instruction with the store that moves the
// temporary into the original destination.
func (a *annotator) spillInstr(ins cfg.Instr) (cfg.Instr, cfg.Instr) {
	dst := &ins.Assign.Dst
	if ins.Kind == cfg.InstrCall {
		dst = &ins.Call.Dst
	}
	orig := *dst
	ty, _ := a.src.PlaceType(a.types, orig)
	tmp := a.temp("tmp$"+a.src.PlaceString(orig), ty, ins.Span)
	*dst = cfg.LocalPlace(tmp)
	store := cfg.Instr{
		Kind:   cfg.InstrAssign,
		Span:   ins.Span,
		Assign: cfg.AssignInstr{Dst: orig, Src: cfg.RValue{Kind: cfg.RValueUse, Use: cfg.Move(cfg.LocalPlace(tmp))}},
	}
	return ins, store
}

func (a *annotator) operandType(op cfg.Operand) types.TypeID {
	ty, _ := a.src.PlaceType(a.types, op.Place)
	return ty
}

func (a *annotator) temp(name string, ty types.TypeID, sp source.Span) cfg.LocalID {
	return a.out.AddLocal(cfg.Local{
		Name:  name,
		Type:  ty,
		Flags: cfg.LocalFlagTemp,
		Scope: cfg.BodyScope,
		Span:  sp,
	})
}

func (a *annotator) emitDrops(instrs []cfg.Instr, p PointID) []cfg.Instr {
	sp := a.fs.spanAt(p)
	for _, act := range a.plan.before[p] {
		flag := cfg.NoLocalID
		rec := Drop{Point: a.fs.points.point(p), Place: a.src.PlaceString(act.place), Cause: act.cause}
		if act.flag != NoMovePath {
			flag = a.flags[act.flag]
			rec.Flag = a.out.LocalName(flag)
		}
		instrs = append(instrs, cfg.Instr{
			Kind: cfg.InstrDrop,
			Span: sp,
			Drop: cfg.DropInstr{Place: act.place, Flag: flag},
		})
		a.drops = append(a.drops, rec)
	}
	return instrs
}

func (a *annotator) setFlag(path MovePathID, v bool, sp source.Span) cfg.Instr {
	return cfg.Instr{
		Kind:    cfg.InstrSetFlag,
		Span:    sp,
		SetFlag: cfg.SetFlagInstr{Flag: a.flags[path], Value: v},
	}
}

// flagUpdates keeps flags in sync with the facts of p: initializing a
// place or one of its ancestors sets its flag, moving any part of it or an
// ancestor clears the flag, entering a scope clears its locals' flags.
func (a *annotator) flagUpdates(instrs []cfg.Instr, p PointID) []cfg.Instr {
	if len(a.plan.flagged) == 0 {
		return instrs
	}
	mp := a.fs.paths
	sp := a.fs.spanAt(p)
	for k := range a.fs.byPoint[p] {
		ft := &a.fs.byPoint[p][k]
		for _, x := range a.plan.flagged {
			switch ft.kind {
			case factMove:
				if mp.isAncestorOrSelf(ft.path, x) || mp.isAncestorOrSelf(x, ft.path) {
					instrs = append(instrs, a.setFlag(x, false, sp))
				}
			case factAssign:
				if !ft.through && mp.isAncestorOrSelf(ft.path, x) {
					instrs = append(instrs, a.setFlag(x, true, sp))
				}
			case factScopeEnter:
				if a.src.Locals[mp.local(x)].Scope == ft.scope {
					instrs = append(instrs, a.setFlag(x, false, sp))
				}
			}
		}
	}
	return instrs
}

// spanAt returns the span of the instruction or terminator at p.
func (fs *factSet) spanAt(p PointID) source.Span {
	pt := fs.points.point(p)
	bb := &fs.points.f.Blocks[pt.Block]
	if pt.Index < len(bb.Instrs) {
		return bb.Instrs[pt.Index].Span
	}
	return bb.Term.Span
}

func lowerTwoPhase(ins *cfg.Instr) {
	if ins.Kind == cfg.InstrAssign && ins.Assign.Src.Kind == cfg.RValueRef && ins.Assign.Src.Ref.Kind == cfg.BorrowTwoPhase {
		ins.Assign.Src.Ref.Kind = cfg.BorrowMut
	}
}
