package borrowck

import (
	"golang.org/x/tools/container/intsets"

	"borrowck/internal/cfg"
)

type reasonKind uint8

const (
	// reasonMove: the path was moved out at point.
	reasonMove reasonKind = iota
	// reasonUninit: the local has not been assigned yet.
	reasonUninit
	// reasonDead: the local's scope was exited.
	reasonDead
)

// reason explains why a path may be uninitialized. The first two reasons
// of every local are its uninit and dead reasons.
type reason struct {
	kind    reasonKind
	path    MovePathID
	point   PointID
	capture bool
}

func initialReasons(f *cfg.Func) []reason {
	out := make([]reason, 0, 2*len(f.Locals))
	for i := range f.Locals {
		path := MovePathID(i)
		out = append(out,
			reason{kind: reasonUninit, path: path, point: NoPoint},
			reason{kind: reasonDead, path: path, point: NoPoint},
		)
	}
	return out
}

func uninitReason(l cfg.LocalID) int { return 2 * int(l) }
func deadReason(l cfg.LocalID) int   { return 2*int(l) + 1 }

func (fs *factSet) addReason(r reason) int {
	fs.reasons = append(fs.reasons, r)
	return len(fs.reasons) - 1
}

// initState is the initialization lattice element at a point: maybe holds
// reasons a path may be uninitialized (union at joins), must holds paths
// that are uninitialized on every path (intersection at joins).
type initState struct {
	maybe intsets.Sparse
	must  intsets.Sparse
}

func (st *initState) copyFrom(o *initState) {
	st.maybe.Copy(&o.maybe)
	st.must.Copy(&o.must)
}

type initAnalysis struct {
	f      *cfg.Func
	fs     *factSet
	byPath map[MovePathID][]int
	// scopeLocals caches locals per scope for enter/exit transfer.
	scopeLocals map[cfg.ScopeID][]cfg.LocalID

	onEntry    []initState
	reached    []bool
	iterations int
}

// computeInit runs the forward initialization analysis to a fixpoint and
// records the state on entry to every reachable point.
func computeInit(f *cfg.Func, fs *factSet) *initAnalysis {
	ia := &initAnalysis{
		f:           f,
		fs:          fs,
		byPath:      make(map[MovePathID][]int),
		scopeLocals: make(map[cfg.ScopeID][]cfg.LocalID),
		onEntry:     make([]initState, fs.points.len()),
		reached:     make([]bool, fs.points.len()),
	}
	for i, r := range fs.reasons {
		ia.byPath[r.path] = append(ia.byPath[r.path], i)
	}
	for i := range f.Scopes {
		id := cfg.ScopeID(i)
		ia.scopeLocals[id] = f.ScopeLocals(id)
	}

	blockIn := make([]initState, len(f.Blocks))
	visited := make([]bool, len(f.Blocks))
	entry := &blockIn[f.Entry]
	for i := range f.Locals {
		l := cfg.LocalID(i)
		if f.IsParam(l) {
			continue
		}
		entry.maybe.Insert(uninitReason(l))
		ia.markMust(entry, MovePathID(l))
	}
	visited[f.Entry] = true

	rpo := f.ReversePostorder()
	var st initState
	for changed := true; changed; {
		changed = false
		ia.iterations++
		for _, b := range rpo {
			if !visited[b] {
				continue
			}
			st.copyFrom(&blockIn[b])
			ia.replayBlock(b, &st, false)
			for _, to := range f.Blocks[b].Term.Successors() {
				in := &blockIn[to]
				if !visited[to] {
					visited[to] = true
					in.copyFrom(&st)
					changed = true
					continue
				}
				if in.maybe.UnionWith(&st.maybe) {
					changed = true
				}
				before := in.must.Len()
				in.must.IntersectionWith(&st.must)
				if in.must.Len() != before {
					changed = true
				}
			}
		}
	}

	for _, b := range rpo {
		st.copyFrom(&blockIn[b])
		ia.replayBlock(b, &st, true)
	}
	return ia
}

func (ia *initAnalysis) replayBlock(b cfg.BlockID, st *initState, record bool) {
	n := len(ia.f.Blocks[b].Instrs)
	for j := 0; j <= n; j++ {
		p := ia.fs.points.id(b, j)
		if record {
			ia.onEntry[p].copyFrom(st)
			ia.reached[p] = true
		}
		for k := range ia.fs.byPoint[p] {
			ia.apply(st, &ia.fs.byPoint[p][k])
		}
	}
}

// apply is the transfer function of a single fact.
func (ia *initAnalysis) apply(st *initState, ft *fact) {
	switch ft.kind {
	case factMove:
		st.maybe.Insert(ft.reason)
		ia.markMust(st, ft.path)
	case factAssign:
		if ft.through {
			return
		}
		ia.kill(st, ft.path)
	case factScopeEnter, factScopeExit:
		for _, l := range ia.scopeLocals[ft.scope] {
			ia.kill(st, MovePathID(l))
			if ft.kind == factScopeEnter {
				st.maybe.Insert(uninitReason(l))
			} else {
				st.maybe.Insert(deadReason(l))
			}
			ia.markMust(st, MovePathID(l))
		}
	}
}

// kill marks path and everything below it as initialized.
func (ia *initAnalysis) kill(st *initState, path MovePathID) {
	for _, d := range ia.fs.paths.descendants(nil, path) {
		for _, r := range ia.byPath[d] {
			st.maybe.Remove(r)
		}
		st.must.Remove(int(d))
	}
}

func (ia *initAnalysis) markMust(st *initState, path MovePathID) {
	for _, d := range ia.fs.paths.descendants(nil, path) {
		st.must.Insert(int(d))
	}
}

// uninitReasons splits the reasons of st relevant to path into those that
// cover path entirely (reason on path or an ancestor) and those that only
// cover a part of it (reason on a strict descendant).
func (ia *initAnalysis) uninitReasons(st *initState, path MovePathID) (whole, partial []int) {
	mp := ia.fs.paths
	for _, r := range st.maybe.AppendTo(nil) {
		rp := ia.fs.reasons[r].path
		switch {
		case mp.isAncestorOrSelf(rp, path):
			whole = append(whole, r)
		case mp.isAncestorOrSelf(path, rp):
			partial = append(partial, r)
		}
	}
	return whole, partial
}

// definitelyUninit reports whether path or one of its ancestors is
// uninitialized on every path reaching st.
func (ia *initAnalysis) definitelyUninit(st *initState, path MovePathID) bool {
	mp := ia.fs.paths
	for cur := path; cur != NoMovePath; cur = mp.paths[cur].parent {
		if st.must.Has(int(cur)) {
			return true
		}
	}
	return false
}
