package cfg

// This file computes traversal orders over the block graph.

type blockAndIndex struct {
	b     BlockID
	index int // number of successor edges of b already explored
}

// Postorder returns a DFS postorder of the blocks reachable from Entry.
// Unreachable blocks do not appear.
func (f *Func) Postorder() []BlockID {
	if f == nil || !f.validBlock(f.Entry) {
		return nil
	}
	seen := make([]bool, len(f.Blocks))
	order := make([]BlockID, 0, len(f.Blocks))
	s := make([]blockAndIndex, 0, 32)
	s = append(s, blockAndIndex{b: f.Entry})
	seen[f.Entry] = true
	for len(s) > 0 {
		tos := len(s) - 1
		x := s[tos]
		succs := f.Blocks[x.b].Term.Successors()
		if i := x.index; i < len(succs) {
			s[tos].index++
			next := succs[i]
			if f.validBlock(next) && !seen[next] {
				seen[next] = true
				s = append(s, blockAndIndex{b: next})
			}
			continue
		}
		s = s[:tos]
		order = append(order, x.b)
	}
	return order
}

// ReversePostorder is the iteration order used by forward dataflow.
func (f *Func) ReversePostorder() []BlockID {
	po := f.Postorder()
	for i, j := 0, len(po)-1; i < j; i, j = i+1, j-1 {
		po[i], po[j] = po[j], po[i]
	}
	return po
}

// Predecessors returns, per block, the list of predecessor blocks in
// ascending order (duplicates for parallel edges are kept once).
func (f *Func) Predecessors() [][]BlockID {
	preds := make([][]BlockID, len(f.Blocks))
	for i := range f.Blocks {
		from := BlockID(i)
		for _, to := range f.Blocks[i].Term.Successors() {
			if !f.validBlock(to) {
				continue
			}
			if n := len(preds[to]); n > 0 && preds[to][n-1] == from {
				continue
			}
			preds[to] = append(preds[to], from)
		}
	}
	return preds
}

// Reachable marks blocks reachable from Entry.
func (f *Func) Reachable() []bool {
	out := make([]bool, len(f.Blocks))
	for _, b := range f.Postorder() {
		out[b] = true
	}
	return out
}

// Edge is a directed block-graph edge.
type Edge struct {
	From, To BlockID
}

// BackEdges returns the edges whose target is an ancestor of the source on
// the DFS tree, i.e. the edges closing a loop.
func (f *Func) BackEdges() map[Edge]bool {
	out := make(map[Edge]bool)
	if f == nil || !f.validBlock(f.Entry) {
		return out
	}
	const (
		white = iota
		grey
		black
	)
	color := make([]uint8, len(f.Blocks))
	s := make([]blockAndIndex, 0, 32)
	s = append(s, blockAndIndex{b: f.Entry})
	color[f.Entry] = grey
	for len(s) > 0 {
		tos := len(s) - 1
		x := s[tos]
		succs := f.Blocks[x.b].Term.Successors()
		if i := x.index; i < len(succs) {
			s[tos].index++
			next := succs[i]
			if !f.validBlock(next) {
				continue
			}
			switch color[next] {
			case white:
				color[next] = grey
				s = append(s, blockAndIndex{b: next})
			case grey:
				out[Edge{From: x.b, To: next}] = true
			}
			continue
		}
		color[x.b] = black
		s = s[:tos]
	}
	return out
}

func (f *Func) validBlock(id BlockID) bool {
	return id >= 0 && int(id) < len(f.Blocks)
}
