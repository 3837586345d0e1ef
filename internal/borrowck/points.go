package borrowck

import (
	"fmt"

	"fortio.org/safecast"

	"borrowck/internal/cfg"
	"borrowck/internal/diag"
)

// PointID is a flattened program point. Every block owns one point per
// instruction followed by one point for its terminator.
type PointID int32

// NoPoint marks an absent point.
const NoPoint PointID = -1

// Point is the structured form of a PointID.
type Point struct {
	Block cfg.BlockID
	Index int
}

func (p Point) String() string {
	return fmt.Sprintf("bb%d[%d]", p.Block, p.Index)
}

type pointIndex struct {
	f       *cfg.Func
	start   []PointID
	blockOf []cfg.BlockID
	succs   [][]PointID
	preds   [][]PointID
}

func toPoint(n int) PointID {
	id, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("point id overflow: %w", err))
	}
	return PointID(id)
}

func newPointIndex(f *cfg.Func) *pointIndex {
	pi := &pointIndex{f: f, start: make([]PointID, len(f.Blocks))}
	total := 0
	for i := range f.Blocks {
		pi.start[i] = toPoint(total)
		total += len(f.Blocks[i].Instrs) + 1
	}
	pi.blockOf = make([]cfg.BlockID, total)
	for i := range f.Blocks {
		n := len(f.Blocks[i].Instrs) + 1
		for j := 0; j < n; j++ {
			pi.blockOf[int(pi.start[i])+j] = cfg.BlockID(i)
		}
	}
	pi.succs = make([][]PointID, total)
	pi.preds = make([][]PointID, total)
	for i := range f.Blocks {
		b := cfg.BlockID(i)
		n := len(f.Blocks[i].Instrs)
		for j := 0; j < n; j++ {
			pi.succs[pi.id(b, j)] = []PointID{pi.id(b, j+1)}
		}
		term := pi.id(b, n)
		seen := make(map[cfg.BlockID]bool, 2)
		for _, to := range f.Blocks[i].Term.Successors() {
			if seen[to] {
				continue
			}
			seen[to] = true
			pi.succs[term] = append(pi.succs[term], pi.start[to])
		}
	}
	for p, ss := range pi.succs {
		for _, s := range ss {
			pi.preds[s] = append(pi.preds[s], PointID(p))
		}
	}
	return pi
}

func (pi *pointIndex) len() int { return len(pi.blockOf) }

func (pi *pointIndex) id(b cfg.BlockID, index int) PointID {
	return pi.start[b] + toPoint(index)
}

func (pi *pointIndex) point(id PointID) Point {
	b := pi.blockOf[id]
	return Point{Block: b, Index: int(id - pi.start[b])}
}

func (pi *pointIndex) isTerminator(id PointID) bool {
	p := pi.point(id)
	return p.Index == len(pi.f.Blocks[p.Block].Instrs)
}

func (pi *pointIndex) diagPoint(id PointID) diag.Point {
	if id == NoPoint {
		return diag.NoPoint
	}
	p := pi.point(id)
	return diag.Point{Block: int32(p.Block), Index: int32(p.Index)}
}
