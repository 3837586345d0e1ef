package cfg

import "slices"

// Clone deep-copies a function so the annotated output never aliases
// the input graph.
func (f *Func) Clone() *Func {
	if f == nil {
		return nil
	}
	out := *f
	out.Locals = slices.Clone(f.Locals)
	out.Params = slices.Clone(f.Params)
	out.Scopes = slices.Clone(f.Scopes)
	out.Blocks = make([]Block, len(f.Blocks))
	for i := range f.Blocks {
		b := f.Blocks[i]
		instrs := make([]Instr, len(b.Instrs))
		for j := range b.Instrs {
			instrs[j] = cloneInstr(b.Instrs[j])
		}
		b.Instrs = instrs
		b.Term = cloneTerm(b.Term)
		out.Blocks[i] = b
	}
	return &out
}

func clonePlace(p Place) Place {
	return Place{Local: p.Local, Proj: slices.Clone(p.Proj)}
}

func cloneOperand(op Operand) Operand {
	op.Place = clonePlace(op.Place)
	return op
}

func cloneInstr(ins Instr) Instr {
	switch ins.Kind {
	case InstrAssign:
		ins.Assign.Dst = clonePlace(ins.Assign.Dst)
		ins.Assign.Src = cloneRValue(ins.Assign.Src)
	case InstrCall:
		ins.Call.Dst = clonePlace(ins.Call.Dst)
		ins.Call.Recv = clonePlace(ins.Call.Recv)
		args := make([]Operand, len(ins.Call.Args))
		for i, a := range ins.Call.Args {
			args[i] = cloneOperand(a)
		}
		ins.Call.Args = args
	case InstrDrop:
		ins.Drop.Place = clonePlace(ins.Drop.Place)
	}
	return ins
}

func cloneRValue(rv RValue) RValue {
	rv.Use = cloneOperand(rv.Use)
	rv.Ref.Place = clonePlace(rv.Ref.Place)
	rv.Unary.Operand = cloneOperand(rv.Unary.Operand)
	rv.Binary.Left = cloneOperand(rv.Binary.Left)
	rv.Binary.Right = cloneOperand(rv.Binary.Right)
	if rv.Aggregate.Fields != nil {
		fields := make([]AggregateField, len(rv.Aggregate.Fields))
		for i, f := range rv.Aggregate.Fields {
			fields[i] = AggregateField{Name: f.Name, Value: cloneOperand(f.Value)}
		}
		rv.Aggregate.Fields = fields
	}
	if rv.Closure.Captures != nil {
		caps := make([]Capture, len(rv.Closure.Captures))
		for i, c := range rv.Closure.Captures {
			caps[i] = Capture{Mode: c.Mode, Place: clonePlace(c.Place)}
		}
		rv.Closure.Captures = caps
	}
	return rv
}

func cloneTerm(t Terminator) Terminator {
	t.Return.Value = cloneOperand(t.Return.Value)
	t.If.Cond = cloneOperand(t.If.Cond)
	t.Switch.Value = cloneOperand(t.Switch.Value)
	t.Switch.Cases = slices.Clone(t.Switch.Cases)
	return t
}
