package borrowck

import (
	"fmt"

	"fortio.org/safecast"

	"borrowck/internal/cfg"
)

// MovePathID identifies a place whose initialization state is tracked.
// The first len(Locals) ids are the locals themselves.
type MovePathID int32

const NoMovePath MovePathID = -1

type movePath struct {
	place    cfg.Place
	parent   MovePathID
	children []MovePathID
}

// movePaths interns the field/variant paths mentioned by a function.
// Paths stop at the first Deref or Index projection: storage behind a
// pointer is not owned by the function, and elements of an array are not
// told apart.
type movePaths struct {
	paths []movePath
	byKey map[string]MovePathID
}

func newMovePaths(f *cfg.Func) *movePaths {
	mp := &movePaths{byKey: make(map[string]MovePathID, len(f.Locals)*2)}
	for i := range f.Locals {
		p := cfg.LocalPlace(cfg.LocalID(i))
		mp.add(p, NoMovePath)
	}
	return mp
}

func (mp *movePaths) add(p cfg.Place, parent MovePathID) MovePathID {
	n, err := safecast.Conv[int32](len(mp.paths))
	if err != nil {
		panic(fmt.Errorf("move path overflow: %w", err))
	}
	id := MovePathID(n)
	mp.paths = append(mp.paths, movePath{place: p, parent: parent})
	mp.byKey[p.Key()] = id
	if parent != NoMovePath {
		mp.paths[parent].children = append(mp.paths[parent].children, id)
	}
	return id
}

// trackable truncates p at its first Deref or Index projection. The bool
// reports whether anything was cut off.
func trackable(p cfg.Place) (cfg.Place, bool) {
	for i, pr := range p.Proj {
		if pr.Kind == cfg.ProjDeref || pr.Kind == cfg.ProjIndex {
			return p.Prefix(i), true
		}
	}
	return p, false
}

// intern returns the path for the trackable prefix of p, creating the
// path and all its ancestors when missing.
func (mp *movePaths) intern(p cfg.Place) MovePathID {
	base, _ := trackable(p)
	if id, ok := mp.byKey[base.Key()]; ok {
		return id
	}
	cur := MovePathID(base.Local)
	for i := range base.Proj {
		prefix := base.Prefix(i + 1)
		if id, ok := mp.byKey[prefix.Key()]; ok {
			cur = id
			continue
		}
		cur = mp.add(prefix, cur)
	}
	return cur
}

// lookup finds an existing path without creating it.
func (mp *movePaths) lookup(p cfg.Place) (MovePathID, bool) {
	id, ok := mp.byKey[p.Key()]
	return id, ok
}

func (mp *movePaths) len() int { return len(mp.paths) }

func (mp *movePaths) place(id MovePathID) cfg.Place { return mp.paths[id].place }

func (mp *movePaths) local(id MovePathID) cfg.LocalID { return mp.paths[id].place.Local }

// isAncestorOrSelf reports whether a equals b or is one of b's ancestors.
func (mp *movePaths) isAncestorOrSelf(a, b MovePathID) bool {
	for cur := b; cur != NoMovePath; cur = mp.paths[cur].parent {
		if cur == a {
			return true
		}
	}
	return false
}

// descendants appends b and every path below it.
func (mp *movePaths) descendants(dst []MovePathID, id MovePathID) []MovePathID {
	dst = append(dst, id)
	for _, c := range mp.paths[id].children {
		dst = mp.descendants(dst, c)
	}
	return dst
}

// ancestors appends the strict ancestors of id, nearest first.
func (mp *movePaths) ancestors(dst []MovePathID, id MovePathID) []MovePathID {
	for cur := mp.paths[id].parent; cur != NoMovePath; cur = mp.paths[cur].parent {
		dst = append(dst, cur)
	}
	return dst
}
