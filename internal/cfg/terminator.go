package cfg

import "borrowck/internal/source"

type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermGoto
	TermIf
	TermSwitch
	TermUnreachable
)

type Terminator struct {
	Kind TermKind
	Span source.Span

	Return ReturnTerm
	Goto   GotoTerm
	If     IfTerm
	Switch SwitchTerm
}

type ReturnTerm struct {
	HasValue bool
	Value    Operand
}

type GotoTerm struct {
	Target BlockID
}

type IfTerm struct {
	Cond Operand
	Then BlockID
	Else BlockID
}

type SwitchCase struct {
	Variant string
	Target  BlockID
}

// SwitchTerm branches on the variant of an enum operand. Default may be
// NoBlockID when the cases are exhaustive.
type SwitchTerm struct {
	Value   Operand
	Cases   []SwitchCase
	Default BlockID
}

// Successors lists the targets of the terminator in edge order.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermIf:
		return []BlockID{t.If.Then, t.If.Else}
	case TermSwitch:
		out := make([]BlockID, 0, len(t.Switch.Cases)+1)
		for _, c := range t.Switch.Cases {
			out = append(out, c.Target)
		}
		if t.Switch.Default != NoBlockID {
			out = append(out, t.Switch.Default)
		}
		return out
	default:
		return nil
	}
}

// Operands lists operands read by the terminator.
func (t *Terminator) Operands() []Operand {
	switch t.Kind {
	case TermReturn:
		if t.Return.HasValue {
			return []Operand{t.Return.Value}
		}
	case TermIf:
		return []Operand{t.If.Cond}
	case TermSwitch:
		return []Operand{t.Switch.Value}
	}
	return nil
}
