package borrowck

import (
	"golang.org/x/tools/container/intsets"

	"borrowck/internal/cfg"
)

// liveness holds, per point, the locals that may be used later without an
// intervening full overwrite.
type liveness struct {
	liveIn     []intsets.Sparse
	iterations int
}

// computeLiveness is a standard backward may-analysis over points:
// in(p) = uses(p) ∪ (out(p) \ defs(p)), out(p) = ∪ in(succ).
func computeLiveness(f *cfg.Func, fs *factSet) *liveness {
	pi := fs.points
	lv := &liveness{liveIn: make([]intsets.Sparse, pi.len())}
	po := f.Postorder()

	var out, in intsets.Sparse
	for changed := true; changed; {
		changed = false
		lv.iterations++
		for _, b := range po {
			n := len(f.Blocks[b].Instrs)
			for j := n; j >= 0; j-- {
				p := pi.id(b, j)
				out.Clear()
				for _, s := range pi.succs[p] {
					out.UnionWith(&lv.liveIn[s])
				}
				in.Copy(&out)
				for _, d := range fs.defs[p] {
					in.Remove(int(d))
				}
				for _, u := range fs.uses[p] {
					in.Insert(int(u))
				}
				if !in.Equals(&lv.liveIn[p]) {
					lv.liveIn[p].Copy(&in)
					changed = true
				}
			}
		}
	}
	return lv
}

func (lv *liveness) liveAt(p PointID, l cfg.LocalID) bool {
	return lv.liveIn[p].Has(int(l))
}
