package borrowck

import (
	"slices"

	"borrowck/internal/cfg"
	"borrowck/internal/types"
)

// DropCause says why a drop was scheduled.
type DropCause uint8

const (
	DropScopeExit DropCause = iota
	DropReturn
	// DropReplace destroys the old value right before it is overwritten.
	DropReplace
)

func (c DropCause) String() string {
	switch c {
	case DropScopeExit:
		return "scope_exit"
	case DropReturn:
		return "return"
	case DropReplace:
		return "replace"
	default:
		return "?"
	}
}

// Drop is one scheduled destruction, reported in the outcome.
type Drop struct {
	Point Point
	Place string
	// Flag names the guarding drop flag; empty for unconditional drops.
	Flag  string
	Cause DropCause
}

type dropAction struct {
	place cfg.Place
	// flag is the move path whose flag guards the drop, or NoMovePath.
	flag  MovePathID
	cause DropCause
}

type dropPlan struct {
	before map[PointID][]dropAction
	// flagged lists paths that need a runtime flag, ascending.
	flagged []MovePathID
	// leaked counts maybe-moved places skipped because flags are off.
	leaked int
}

type dropScheduler struct {
	f     *cfg.Func
	types *types.Interner
	fs    *factSet
	ia    *initAnalysis
	ss    *scopeStacks
	opts  Options
	plan  *dropPlan
}

// scheduleDrops decides, for every scope exit, return and (optionally)
// overwrite, which places to destroy and whether a drop flag must guard
// the destruction.
func scheduleDrops(f *cfg.Func, typesIn *types.Interner, fs *factSet, ia *initAnalysis, ss *scopeStacks, opts Options) *dropPlan {
	d := &dropScheduler{
		f: f, types: typesIn, fs: fs, ia: ia, ss: ss, opts: opts,
		plan: &dropPlan{before: make(map[PointID][]dropAction)},
	}
	var st initState
	for p := 0; p < fs.points.len(); p++ {
		pid := PointID(p)
		if !ia.reached[pid] {
			continue
		}
		st.copyFrom(&ia.onEntry[pid])
		for k := range fs.byPoint[pid] {
			ft := &fs.byPoint[pid][k]
			switch ft.kind {
			case factScopeExit:
				d.scope(pid, &st, ft.scope, DropScopeExit)
			case factReturn:
				stack := ss.at(pid)
				for i := len(stack) - 1; i >= 0; i-- {
					d.scope(pid, &st, stack[i], DropReturn)
				}
			case factAssign:
				if opts.ReassignDrops {
					d.replace(pid, &st, ft)
				}
			}
			ia.apply(&st, ft)
		}
	}
	slices.Sort(d.plan.flagged)
	d.plan.flagged = slices.Compact(d.plan.flagged)
	return d.plan
}

func (d *dropScheduler) scope(p PointID, st *initState, s cfg.ScopeID, cause DropCause) {
	locals := d.ia.scopeLocals[s]
	for i := len(locals) - 1; i >= 0; i-- {
		d.path(p, st, MovePathID(locals[i]), false, cause)
	}
}

func (d *dropScheduler) replace(p PointID, st *initState, ft *fact) {
	if ft.through {
		ty, _ := d.f.PlaceType(d.types, ft.place)
		if d.types.NeedsDrop(ty) {
			d.add(p, dropAction{place: ft.place, flag: NoMovePath, cause: DropReplace})
		}
		return
	}
	d.path(p, st, ft.path, false, DropReplace)
}

func (d *dropScheduler) add(p PointID, a dropAction) {
	d.plan.before[p] = append(d.plan.before[p], a)
	if a.flag != NoMovePath {
		d.plan.flagged = append(d.plan.flagged, a.flag)
	}
}

// path plans the drop of one move path in state st. Partially moved
// aggregates are broken down into their remaining fields, last field first.
func (d *dropScheduler) path(p PointID, st *initState, path MovePathID, inherited bool, cause DropCause) {
	mp := d.fs.paths
	place := mp.place(path)
	ty, _ := d.f.PlaceType(d.types, place)
	if !d.types.NeedsDrop(ty) || d.ia.definitelyUninit(st, path) {
		return
	}
	whole, partial := d.ia.uninitReasons(st, path)
	fields := d.types.FieldNames(ty)
	if len(partial) == 0 || len(fields) == 0 || d.types.HasDestructor(ty) {
		if len(whole) == 0 && !inherited {
			d.add(p, dropAction{place: place, flag: NoMovePath, cause: cause})
			return
		}
		if !d.opts.DropFlags {
			d.plan.leaked++
			return
		}
		d.add(p, dropAction{place: place, flag: path, cause: cause})
		return
	}
	for i := len(fields) - 1; i >= 0; i-- {
		child := mp.intern(place.Field(fields[i]))
		d.path(p, st, child, inherited || len(whole) > 0, cause)
	}
}
