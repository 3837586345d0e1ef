package cfg

import (
	"fmt"
	"io"
	"strings"

	"borrowck/internal/types"
)

// DumpOptions configures dumping.
type DumpOptions struct {
	// Spans appends the source span of every instruction.
	Spans bool
}

// DumpModule writes a human-readable representation of a module, in
// function order.
func DumpModule(w io.Writer, m *Module, typesIn *types.Interner, opts DumpOptions) error {
	if w == nil || m == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "module %s funcs=%d\n", m.Name, len(m.Funcs)); err != nil {
		return err
	}
	for _, f := range m.Funcs {
		if err := DumpFunc(w, f, typesIn, opts); err != nil {
			return err
		}
	}
	return nil
}

// DumpFunc writes one function. The output is the canonical form used for
// content digests, so it must stay deterministic.
func DumpFunc(w io.Writer, f *Func, typesIn *types.Interner, opts DumpOptions) error {
	if w == nil || f == nil {
		return nil
	}
	var sb strings.Builder
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = f.LocalName(p)
	}
	fmt.Fprintf(&sb, "\nfn %s(%s) -> %s:\n", f.Name, strings.Join(params, ", "), typeStr(typesIn, f.Result))

	sb.WriteString("  locals:\n")
	for i := range f.Locals {
		l := f.Locals[i]
		fmt.Fprintf(&sb, "    L%d %s: %s scope=%d", i, f.LocalName(LocalID(i)), typeStr(typesIn, l.Type), l.Scope)
		if flags := formatLocalFlags(l.Flags); flags != "" {
			sb.WriteString(" " + flags)
		}
		sb.WriteByte('\n')
	}
	if len(f.Scopes) > 1 {
		sb.WriteString("  scopes:\n")
		for _, sc := range f.Scopes[1:] {
			fmt.Fprintf(&sb, "    S%d parent=S%d\n", sc.ID, sc.Parent)
		}
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		marker := ""
		if bb.ID == f.Entry {
			marker = " (entry)"
		}
		fmt.Fprintf(&sb, "  bb%d:%s\n", bb.ID, marker)
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			line := f.FormatInstr(ins)
			if opts.Spans {
				line += "  @" + ins.Span.String()
			}
			fmt.Fprintf(&sb, "    %s\n", line)
		}
		fmt.Fprintf(&sb, "    %s\n", f.FormatTerm(&bb.Term))
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

func typeStr(typesIn *types.Interner, id types.TypeID) string {
	if typesIn == nil {
		return fmt.Sprintf("type#%d", id)
	}
	return typesIn.Format(id)
}

func formatLocalFlags(f LocalFlags) string {
	var parts []string
	if f&LocalFlagParam != 0 {
		parts = append(parts, "param")
	}
	if f&LocalFlagMut != 0 {
		parts = append(parts, "mut")
	}
	if f&LocalFlagTemp != 0 {
		parts = append(parts, "temp")
	}
	if f&LocalFlagDropFlag != 0 {
		parts = append(parts, "dropflag")
	}
	return strings.Join(parts, " ")
}

// FormatOperand renders an operand in the textual instruction syntax.
func (f *Func) FormatOperand(op Operand) string {
	switch op.Kind {
	case OperandCopy:
		return "copy " + f.PlaceString(op.Place)
	case OperandMove:
		return "move " + f.PlaceString(op.Place)
	default:
		if op.Const.Text == "" {
			return "()"
		}
		return op.Const.Text
	}
}

func (f *Func) formatOperands(ops []Operand) string {
	parts := make([]string, len(ops))
	for i, op := range ops {
		parts[i] = f.FormatOperand(op)
	}
	return strings.Join(parts, ", ")
}

// FormatRValue renders an rvalue in the textual instruction syntax.
func (f *Func) FormatRValue(rv *RValue) string {
	switch rv.Kind {
	case RValueUse:
		return f.FormatOperand(rv.Use)
	case RValueRef:
		switch rv.Ref.Kind {
		case BorrowMut:
			return "&mut " + f.PlaceString(rv.Ref.Place)
		case BorrowTwoPhase:
			return "&2ph " + f.PlaceString(rv.Ref.Place)
		default:
			return "&" + f.PlaceString(rv.Ref.Place)
		}
	case RValueUnary:
		return rv.Unary.Op + " " + f.FormatOperand(rv.Unary.Operand)
	case RValueBinary:
		return f.FormatOperand(rv.Binary.Left) + " " + rv.Binary.Op + " " + f.FormatOperand(rv.Binary.Right)
	case RValueAggregate:
		agg := &rv.Aggregate
		parts := make([]string, len(agg.Fields))
		for i, fld := range agg.Fields {
			if fld.Name != "" {
				parts[i] = fld.Name + ": " + f.FormatOperand(fld.Value)
			} else {
				parts[i] = f.FormatOperand(fld.Value)
			}
		}
		body := "(" + strings.Join(parts, ", ") + ")"
		switch agg.Kind {
		case AggStruct:
			return "struct " + body
		case AggTuple:
			return "tuple " + body
		case AggArray:
			return "array " + body
		default:
			return "variant " + agg.Variant + " " + body
		}
	case RValueClosure:
		parts := make([]string, len(rv.Closure.Captures))
		for i, c := range rv.Closure.Captures {
			parts[i] = c.Mode.String() + " " + f.PlaceString(c.Place)
		}
		return "closure [" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}

// FormatInstr renders an instruction in the textual instruction syntax.
func (f *Func) FormatInstr(ins *Instr) string {
	switch ins.Kind {
	case InstrAssign:
		return f.PlaceString(ins.Assign.Dst) + " = " + f.FormatRValue(&ins.Assign.Src)
	case InstrCall:
		var sb strings.Builder
		if ins.Call.HasDst {
			sb.WriteString(f.PlaceString(ins.Call.Dst))
			sb.WriteString(" = ")
		}
		sb.WriteString("call ")
		sb.WriteString(ins.Call.Callee)
		sb.WriteByte('(')
		args := f.formatOperands(ins.Call.Args)
		if ins.Call.HasRecv {
			sb.WriteString("recv ")
			sb.WriteString(f.PlaceString(ins.Call.Recv))
			if args != "" {
				sb.WriteString(", ")
			}
		}
		sb.WriteString(args)
		sb.WriteByte(')')
		return sb.String()
	case InstrScopeEnter:
		return fmt.Sprintf("scope_enter %d", ins.Scope)
	case InstrScopeExit:
		return fmt.Sprintf("scope_exit %d", ins.Scope)
	case InstrDrop:
		if ins.Drop.Flag != NoLocalID {
			return "drop " + f.PlaceString(ins.Drop.Place) + " if " + f.LocalName(ins.Drop.Flag)
		}
		return "drop " + f.PlaceString(ins.Drop.Place)
	case InstrSetFlag:
		return fmt.Sprintf("set_flag %s %t", f.LocalName(ins.SetFlag.Flag), ins.SetFlag.Value)
	case InstrNop:
		return "nop"
	default:
		return "?"
	}
}

// FormatTerm renders a terminator in the textual instruction syntax.
func (f *Func) FormatTerm(t *Terminator) string {
	switch t.Kind {
	case TermReturn:
		if t.Return.HasValue {
			return "return " + f.FormatOperand(t.Return.Value)
		}
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d", t.Goto.Target)
	case TermIf:
		return fmt.Sprintf("if %s bb%d bb%d", f.FormatOperand(t.If.Cond), t.If.Then, t.If.Else)
	case TermSwitch:
		var sb strings.Builder
		sb.WriteString("switch ")
		sb.WriteString(f.FormatOperand(t.Switch.Value))
		for _, c := range t.Switch.Cases {
			fmt.Fprintf(&sb, " %s:bb%d", c.Variant, c.Target)
		}
		if t.Switch.Default != NoBlockID {
			fmt.Fprintf(&sb, " _:bb%d", t.Switch.Default)
		}
		return sb.String()
	case TermUnreachable:
		return "unreachable"
	default:
		return "<unterminated>"
	}
}
