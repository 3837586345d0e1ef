// Package testkit holds checks shared by tests of several packages.
package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"borrowck/internal/cfg"
	"borrowck/internal/source"
)

// CheckSpanInvariants runs a minimal set of span invariants on a parsed function:
// 1) every non-empty span points into sf and lies within its content
// 2) f.Span, when known, contains the spans of all instructions and terminators
// 3) instruction spans within a block are ordered and do not overlap
func CheckSpanInvariants(f *cfg.Func, sf *source.File) error {
	if f == nil || sf == nil {
		return fmt.Errorf("nil function or file")
	}
	size, err := safecast.Conv[uint32](len(sf.Content))
	if err != nil {
		return fmt.Errorf("file too large: %w", err)
	}
	inFile := func(what string, sp source.Span) error {
		if sp.Empty() {
			return nil
		}
		if sp.File != sf.ID {
			return fmt.Errorf("%s: span points to different file id: got=%d want=%d", what, sp.File, sf.ID)
		}
		if sp.Start > sp.End || sp.End > size {
			return fmt.Errorf("%s: span %v out of bounds (file size %d)", what, sp, size)
		}
		if !f.Span.Empty() && (sp.Start < f.Span.Start || sp.End > f.Span.End) {
			return fmt.Errorf("%s: span %v escapes function span %v", what, sp, f.Span)
		}
		return nil
	}

	if !f.Span.Empty() {
		if f.Span.File != sf.ID || f.Span.End > size {
			return fmt.Errorf("function span %v out of file bounds", f.Span)
		}
	}
	for _, l := range f.Locals {
		if l.Span.File != sf.ID && !l.Span.Empty() {
			return fmt.Errorf("local %s: span in file %d", l.Name, l.Span.File)
		}
	}
	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		var prevEnd uint32
		for ii := range b.Instrs {
			sp := b.Instrs[ii].Span
			what := fmt.Sprintf("bb%d[%d]", b.ID, ii)
			if err := inFile(what, sp); err != nil {
				return err
			}
			if sp.Empty() {
				continue
			}
			if sp.Start < prevEnd {
				return fmt.Errorf("%s: span %v overlaps previous instruction", what, sp)
			}
			prevEnd = sp.End
		}
		if err := inFile(fmt.Sprintf("bb%d terminator", b.ID), b.Term.Span); err != nil {
			return err
		}
	}
	return nil
}
