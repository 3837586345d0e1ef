package borrowck

import (
	"slices"

	"golang.org/x/tools/container/intsets"

	"borrowck/internal/cfg"
)

// regions is the result of loan region inference.
type regions struct {
	// loansOf[l] are the loans whose references local l may hold.
	loansOf []intsets.Sparse
	holders [][]cfg.LocalID
	// onEntry[p] are the loans live on entry to p.
	onEntry []intsets.Sparse
	// activated[p] are the two-phase loans already activated on entry to p.
	activated []intsets.Sparse
	// activations lists the two-phase loans that activate at a point.
	activations map[PointID][]LoanID
	holderIters int
}

const (
	phaseReserved uint8 = 1 << iota
	phaseActive
)

// computeRegions infers the region of every loan: the creation point plus
// every point reachable from it at which some holder of the loan is live.
func computeRegions(f *cfg.Func, fs *factSet, lv *liveness) *regions {
	pi := fs.points
	rg := &regions{
		loansOf:     make([]intsets.Sparse, len(f.Locals)),
		holders:     make([][]cfg.LocalID, fs.loans.len()),
		onEntry:     make([]intsets.Sparse, pi.len()),
		activated:   make([]intsets.Sparse, pi.len()),
		activations: make(map[PointID][]LoanID),
	}
	rg.propagateHolders(fs)

	back := f.BackEdges()
	isBack := func(from, to PointID) bool {
		if !pi.isTerminator(from) {
			return false
		}
		return back[cfg.Edge{From: pi.point(from).Block, To: pi.point(to).Block}]
	}

	for _, l := range fs.loans.loans {
		holders := rg.holders[l.ID]
		live := func(p PointID) bool {
			for _, h := range holders {
				if lv.liveAt(p, h) {
					return true
				}
			}
			return false
		}
		l.Region.Insert(int(l.Point))
		var entered intsets.Sparse
		work := slices.Clone(pi.succs[l.Point])
		for len(work) > 0 {
			q := work[len(work)-1]
			work = work[:len(work)-1]
			if entered.Has(int(q)) || !live(q) {
				continue
			}
			entered.Insert(int(q))
			l.Region.Insert(int(q))
			rg.onEntry[q].Insert(int(l.ID))
			work = append(work, pi.succs[q]...)
		}
		if l.Kind == LoanTwoPhase {
			rg.twoPhase(l, &entered, fs, isBack)
		}
	}
	return rg
}

type phaseItem struct {
	p     PointID
	phase uint8
}

// twoPhase walks the region of a reservation. The reservation turns into a
// mutable loan at the first mutable use of a holder, or when it is carried
// across a loop back-edge. Reading through a holder keeps it reserved.
func (rg *regions) twoPhase(l *Loan, entered *intsets.Sparse, fs *factSet, isBack func(from, to PointID) bool) {
	pi := fs.points
	holders := rg.holders[l.ID]
	usedAt := func(p PointID) bool {
		for _, u := range fs.mutUses[p] {
			if slices.Contains(holders, u) {
				return true
			}
		}
		return false
	}
	state := make(map[PointID]uint8)
	activate := func(p PointID) {
		if !slices.Contains(rg.activations[p], l.ID) {
			rg.activations[p] = append(rg.activations[p], l.ID)
		}
		if l.Activation == NoPoint || p < l.Activation {
			l.Activation = p
		}
	}

	var work []phaseItem
	push := func(from PointID, phase uint8) {
		for _, s := range pi.succs[from] {
			if !entered.Has(int(s)) {
				continue
			}
			ph := phase
			if ph == phaseReserved && isBack(from, s) {
				ph = phaseActive
				activate(s)
			}
			work = append(work, phaseItem{p: s, phase: ph})
		}
	}
	push(l.Point, phaseReserved)
	for len(work) > 0 {
		it := work[len(work)-1]
		work = work[:len(work)-1]
		if state[it.p]&it.phase != 0 {
			continue
		}
		state[it.p] |= it.phase
		out := it.phase
		if it.phase == phaseActive {
			rg.activated[it.p].Insert(int(l.ID))
		} else if usedAt(it.p) {
			activate(it.p)
			out = phaseActive
		}
		push(it.p, out)
	}
}

// propagateHolders computes, flow-insensitively, which locals may hold a
// reference produced by each loan.
func (rg *regions) propagateHolders(fs *factSet) {
	for _, l := range fs.loans.loans {
		if l.Holder != cfg.NoLocalID {
			rg.loansOf[l.Holder].Insert(int(l.ID))
		}
	}
	for changed := true; changed; {
		changed = false
		rg.holderIters++
		for _, e := range fs.flows {
			if e.dst == e.src {
				continue
			}
			if rg.loansOf[e.dst].UnionWith(&rg.loansOf[e.src]) {
				changed = true
			}
		}
	}
	for i := range rg.loansOf {
		for _, id := range rg.loansOf[i].AppendTo(nil) {
			rg.holders[id] = append(rg.holders[id], cfg.LocalID(i))
		}
	}
}

// liveLoans returns the loans live on entry to p in ascending id order.
func (rg *regions) liveLoans(p PointID) []LoanID {
	ids := rg.onEntry[p].AppendTo(nil)
	out := make([]LoanID, len(ids))
	for i, id := range ids {
		out[i] = LoanID(id)
	}
	return out
}

func (rg *regions) isHolder(id LoanID, l cfg.LocalID) bool {
	return slices.Contains(rg.holders[id], l)
}
