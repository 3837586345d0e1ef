package borrowck

import (
	"fmt"
	"slices"

	"borrowck/internal/cfg"
)

// scopeError describes a malformed scope structure. These are contract
// violations of the upstream builder, never user errors.
type scopeError struct {
	point PointID
	msg   string
}

// scopeStacks holds the stack of open scopes on entry to every point,
// innermost last. Unreachable points keep a nil stack.
type scopeStacks struct {
	atPoint [][]cfg.ScopeID
}

// computeScopeStacks propagates the open-scope stack along the CFG and
// checks that enter/exit pairs nest and that all paths into a block agree.
func computeScopeStacks(f *cfg.Func, fs *factSet) (*scopeStacks, []scopeError) {
	pi := fs.points
	ss := &scopeStacks{atPoint: make([][]cfg.ScopeID, pi.len())}
	entry := make([][]cfg.ScopeID, len(f.Blocks))
	seen := make([]bool, len(f.Blocks))
	var errs []scopeError

	seen[f.Entry] = true
	entry[f.Entry] = []cfg.ScopeID{cfg.BodyScope}
	work := []cfg.BlockID{f.Entry}
	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		stack := entry[b]
		bb := &f.Blocks[b]
		for j := 0; j <= len(bb.Instrs); j++ {
			p := pi.id(b, j)
			ss.atPoint[p] = stack
			for _, ft := range fs.byPoint[p] {
				switch ft.kind {
				case factScopeEnter:
					if slices.Contains(stack, ft.scope) {
						errs = append(errs, scopeError{p, fmt.Sprintf("scope %d entered while already open", ft.scope)})
						continue
					}
					if parent := f.ScopeParent(ft.scope); parent != stack[len(stack)-1] {
						errs = append(errs, scopeError{p, fmt.Sprintf("scope %d entered inside scope %d, expected parent %d",
							ft.scope, stack[len(stack)-1], parent)})
					}
					stack = append(slices.Clone(stack), ft.scope)
				case factScopeExit:
					if len(stack) <= 1 || stack[len(stack)-1] != ft.scope {
						errs = append(errs, scopeError{p, fmt.Sprintf("scope %d exited but innermost open scope is %d",
							ft.scope, stack[len(stack)-1])})
						continue
					}
					stack = slices.Clip(stack[:len(stack)-1])
				}
			}
		}
		for _, to := range bb.Term.Successors() {
			if !seen[to] {
				seen[to] = true
				entry[to] = stack
				work = append(work, to)
				continue
			}
			if !slices.Equal(entry[to], stack) {
				errs = append(errs, scopeError{pi.id(b, len(bb.Instrs)),
					fmt.Sprintf("open scopes disagree on edge bb%d -> bb%d: %v vs %v", b, to, stack, entry[to])})
			}
		}
	}
	return ss, errs
}

// at returns the open scopes on entry to p.
func (ss *scopeStacks) at(p PointID) []cfg.ScopeID {
	return ss.atPoint[p]
}
