package fixture

import (
	"fmt"
	"strconv"
	"strings"

	"borrowck/internal/cfg"
	"borrowck/internal/source"
	"borrowck/internal/types"
)

// bodyParser reads blocks written in the textual CFG syntax.
type bodyParser struct {
	f     *cfg.Func
	types *types.Interner
	loc   *locator
	// base is the offset of the body text in the document, or -1.
	base int
	cur  *cfg.Block
	line int
}

func (p *bodyParser) errorf(format string, args ...any) error {
	return fmt.Errorf("body line %d: %s", p.line, fmt.Sprintf(format, args...))
}

func (p *bodyParser) parse(body string) error {
	offset := 0
	entrySet := false
	for i, raw := range strings.Split(body, "\n") {
		p.line = i + 1
		lineOff := offset
		offset += len(raw) + 1

		text := strings.TrimSpace(raw)
		if hash := strings.Index(text, "#"); hash >= 0 && !strings.Contains(text[:hash], "\"") {
			text = strings.TrimSpace(text[:hash])
		}
		if text == "" {
			continue
		}
		sp := p.span(lineOff+strings.Index(raw, text), len(text))

		if hdr, ok := strings.CutSuffix(strings.TrimSuffix(text, " (entry)"), ":"); ok && strings.HasPrefix(hdr, "bb") {
			id, err := parseBlockRef(hdr)
			if err != nil {
				return p.errorf("%v", err)
			}
			if int(id) != len(p.f.Blocks) {
				return p.errorf("block %s out of order, expected bb%d", hdr, len(p.f.Blocks))
			}
			p.f.Blocks = append(p.f.Blocks, cfg.Block{ID: id})
			p.cur = &p.f.Blocks[len(p.f.Blocks)-1]
			if strings.HasSuffix(text, "(entry)") {
				if entrySet {
					return p.errorf("second entry block")
				}
				p.f.Entry = id
				entrySet = true
			}
			continue
		}
		if p.cur == nil {
			return p.errorf("instruction outside of a block")
		}
		if p.cur.Terminated() {
			return p.errorf("bb%d: instruction after terminator", p.cur.ID)
		}
		if isTerminator(text) {
			t, err := p.term(text)
			if err != nil {
				return p.errorf("%v", err)
			}
			t.Span = sp
			p.cur.Term = t
			continue
		}
		ins, err := p.instr(text)
		if err != nil {
			return p.errorf("%v", err)
		}
		ins.Span = sp
		p.cur.Instrs = append(p.cur.Instrs, ins)
	}
	if len(p.f.Blocks) == 0 {
		return fmt.Errorf("empty body")
	}
	return nil
}

func (p *bodyParser) span(off, n int) source.Span {
	if p.base < 0 {
		return p.loc.span(0, 0)
	}
	return p.loc.span(p.base+off, n)
}

func isTerminator(text string) bool {
	word, _, _ := strings.Cut(text, " ")
	switch word {
	case "return", "goto", "if", "switch", "unreachable":
		return true
	}
	return false
}

func parseBlockRef(s string) (cfg.BlockID, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "bb"))
	if err != nil || !strings.HasPrefix(s, "bb") || n < 0 {
		return cfg.NoBlockID, fmt.Errorf("bad block reference %q", s)
	}
	return cfg.BlockID(n), nil
}

func (p *bodyParser) term(text string) (cfg.Terminator, error) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "return":
		t := cfg.Terminator{Kind: cfg.TermReturn}
		if rest := strings.TrimSpace(strings.TrimPrefix(text, "return")); rest != "" {
			op, err := p.operand(rest)
			if err != nil {
				return t, err
			}
			t.Return = cfg.ReturnTerm{HasValue: true, Value: op}
		}
		return t, nil
	case "unreachable":
		return cfg.Terminator{Kind: cfg.TermUnreachable}, nil
	case "goto":
		if len(fields) != 2 {
			return cfg.Terminator{}, fmt.Errorf("want `goto bbN`")
		}
		to, err := parseBlockRef(fields[1])
		return cfg.Terminator{Kind: cfg.TermGoto, Goto: cfg.GotoTerm{Target: to}}, err
	case "if":
		if len(fields) < 4 {
			return cfg.Terminator{}, fmt.Errorf("want `if OPERAND bbA bbB`")
		}
		then, err := parseBlockRef(fields[len(fields)-2])
		if err != nil {
			return cfg.Terminator{}, err
		}
		els, err := parseBlockRef(fields[len(fields)-1])
		if err != nil {
			return cfg.Terminator{}, err
		}
		cond, err := p.operand(strings.Join(fields[1:len(fields)-2], " "))
		if err != nil {
			return cfg.Terminator{}, err
		}
		return cfg.Terminator{Kind: cfg.TermIf, If: cfg.IfTerm{Cond: cond, Then: then, Else: els}}, nil
	case "switch":
		sw := cfg.SwitchTerm{Default: cfg.NoBlockID}
		end := len(fields)
		for end > 1 && strings.Contains(fields[end-1], ":bb") {
			end--
		}
		for _, c := range fields[end:] {
			variant, target, _ := strings.Cut(c, ":")
			to, err := parseBlockRef(target)
			if err != nil {
				return cfg.Terminator{}, err
			}
			if variant == "_" {
				sw.Default = to
				continue
			}
			sw.Cases = append(sw.Cases, cfg.SwitchCase{Variant: variant, Target: to})
		}
		val, err := p.operand(strings.Join(fields[1:end], " "))
		if err != nil {
			return cfg.Terminator{}, err
		}
		sw.Value = val
		return cfg.Terminator{Kind: cfg.TermSwitch, Switch: sw}, nil
	}
	return cfg.Terminator{}, fmt.Errorf("unknown terminator %q", text)
}

func (p *bodyParser) instr(text string) (cfg.Instr, error) {
	word, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)
	switch word {
	case "nop":
		return cfg.Instr{Kind: cfg.InstrNop}, nil
	case "scope_enter", "scope_exit":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return cfg.Instr{}, fmt.Errorf("%s: bad scope %q", word, rest)
		}
		kind := cfg.InstrScopeEnter
		if word == "scope_exit" {
			kind = cfg.InstrScopeExit
		}
		return cfg.Instr{Kind: kind, Scope: cfg.ScopeID(n)}, nil
	case "drop":
		placeText, flagName, guarded := strings.Cut(rest, " if ")
		pl, err := p.place(placeText)
		if err != nil {
			return cfg.Instr{}, err
		}
		d := cfg.DropInstr{Place: pl, Flag: cfg.NoLocalID}
		if guarded {
			if d.Flag, err = p.local(strings.TrimSpace(flagName)); err != nil {
				return cfg.Instr{}, err
			}
		}
		return cfg.Instr{Kind: cfg.InstrDrop, Drop: d}, nil
	case "set_flag":
		name, val, ok := strings.Cut(rest, " ")
		if !ok {
			return cfg.Instr{}, fmt.Errorf("want `set_flag FLAG true|false`")
		}
		flag, err := p.local(name)
		if err != nil {
			return cfg.Instr{}, err
		}
		v, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return cfg.Instr{}, fmt.Errorf("set_flag: %w", err)
		}
		return cfg.Instr{Kind: cfg.InstrSetFlag, SetFlag: cfg.SetFlagInstr{Flag: flag, Value: v}}, nil
	case "call":
		call, err := p.call(rest)
		return cfg.Instr{Kind: cfg.InstrCall, Call: call}, err
	}

	lhs, rhs, ok := strings.Cut(text, " = ")
	if !ok {
		return cfg.Instr{}, fmt.Errorf("unknown instruction %q", text)
	}
	dst, err := p.place(lhs)
	if err != nil {
		return cfg.Instr{}, err
	}
	rhs = strings.TrimSpace(rhs)
	if callText, isCall := strings.CutPrefix(rhs, "call "); isCall {
		call, err := p.call(callText)
		call.HasDst = true
		call.Dst = dst
		return cfg.Instr{Kind: cfg.InstrCall, Call: call}, err
	}
	rv, err := p.rvalue(dst, rhs)
	if err != nil {
		return cfg.Instr{}, err
	}
	return cfg.Instr{Kind: cfg.InstrAssign, Assign: cfg.AssignInstr{Dst: dst, Src: rv}}, nil
}

// call reads `name(recv P, args...)`.
func (p *bodyParser) call(text string) (cfg.CallInstr, error) {
	open := strings.IndexByte(text, '(')
	if open <= 0 || !strings.HasSuffix(text, ")") {
		return cfg.CallInstr{}, fmt.Errorf("want `call name(args)`, got %q", text)
	}
	call := cfg.CallInstr{Callee: strings.TrimSpace(text[:open])}
	inner := strings.TrimSpace(text[open+1 : len(text)-1])
	if inner == "" {
		return call, nil
	}
	for i, arg := range splitList(inner) {
		if recv, ok := strings.CutPrefix(arg, "recv "); ok {
			if i != 0 {
				return call, fmt.Errorf("receiver must come first in %q", text)
			}
			pl, err := p.place(recv)
			if err != nil {
				return call, err
			}
			call.HasRecv = true
			call.Recv = pl
			continue
		}
		op, err := p.operand(arg)
		if err != nil {
			return call, err
		}
		call.Args = append(call.Args, op)
	}
	return call, nil
}

var unaryOps = map[string]bool{"-": true, "!": true, "not": true, "neg": true, "len": true}

func (p *bodyParser) rvalue(dst cfg.Place, s string) (cfg.RValue, error) {
	switch {
	case strings.HasPrefix(s, "&"):
		kind := cfg.BorrowShared
		rest := s[1:]
		if r, ok := strings.CutPrefix(rest, "mut "); ok {
			kind, rest = cfg.BorrowMut, r
		} else if r, ok := strings.CutPrefix(rest, "2ph "); ok {
			kind, rest = cfg.BorrowTwoPhase, r
		}
		pl, err := p.place(rest)
		if err != nil {
			return cfg.RValue{}, err
		}
		return cfg.RValue{Kind: cfg.RValueRef, Ref: cfg.RefRValue{Kind: kind, Place: pl}}, nil
	case strings.HasPrefix(s, "closure "):
		return p.closure(dst, strings.TrimSpace(strings.TrimPrefix(s, "closure ")))
	}

	word, rest, _ := strings.Cut(s, " ")
	switch word {
	case "struct", "tuple", "array", "variant":
		return p.aggregate(dst, word, strings.TrimSpace(rest))
	}
	if unaryOps[word] && rest != "" {
		op, err := p.operand(rest)
		if err != nil {
			return cfg.RValue{}, err
		}
		return cfg.RValue{Kind: cfg.RValueUnary, Unary: cfg.UnaryOp{Op: word, Operand: op}}, nil
	}

	first, tail := splitOperand(s)
	if tail == "" {
		op, err := p.operand(first)
		if err != nil {
			return cfg.RValue{}, err
		}
		return cfg.RValue{Kind: cfg.RValueUse, Use: op}, nil
	}
	opText, right, ok := strings.Cut(tail, " ")
	if !ok {
		return cfg.RValue{}, fmt.Errorf("malformed rvalue %q", s)
	}
	l, err := p.operand(first)
	if err != nil {
		return cfg.RValue{}, err
	}
	r, err := p.operand(strings.TrimSpace(right))
	if err != nil {
		return cfg.RValue{}, err
	}
	return cfg.RValue{Kind: cfg.RValueBinary, Binary: cfg.BinaryOp{Op: opText, Left: l, Right: r}}, nil
}

func (p *bodyParser) aggregate(dst cfg.Place, word, rest string) (cfg.RValue, error) {
	agg := cfg.Aggregate{}
	switch word {
	case "struct":
		agg.Kind = cfg.AggStruct
	case "tuple":
		agg.Kind = cfg.AggTuple
	case "array":
		agg.Kind = cfg.AggArray
	case "variant":
		agg.Kind = cfg.AggVariant
		name, body, ok := strings.Cut(rest, " ")
		if !ok {
			name, body = rest, "()"
		}
		agg.Variant = name
		rest = strings.TrimSpace(body)
	}
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return cfg.RValue{}, fmt.Errorf("%s: want parenthesized fields, got %q", word, rest)
	}
	agg.Type, _ = p.f.PlaceType(p.types, dst)
	inner := strings.TrimSpace(rest[1 : len(rest)-1])
	if inner != "" {
		for _, part := range splitList(inner) {
			fld := cfg.AggregateField{}
			if agg.Kind == cfg.AggStruct {
				name, val, ok := strings.Cut(part, ": ")
				if !ok {
					return cfg.RValue{}, fmt.Errorf("struct field %q: want `name: operand`", part)
				}
				fld.Name = strings.TrimSpace(name)
				part = val
			}
			op, err := p.operand(part)
			if err != nil {
				return cfg.RValue{}, err
			}
			fld.Value = op
			agg.Fields = append(agg.Fields, fld)
		}
	}
	return cfg.RValue{Kind: cfg.RValueAggregate, Aggregate: agg}, nil
}

// closure reads `[mode place, ...]` and records the capture types on the
// destination's closure type.
func (p *bodyParser) closure(dst cfg.Place, s string) (cfg.RValue, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return cfg.RValue{}, fmt.Errorf("closure: want `[mode place, ...]`, got %q", s)
	}
	ty, _ := p.f.PlaceType(p.types, dst)
	if _, ok := p.types.ClosureInfo(ty); !ok {
		return cfg.RValue{}, fmt.Errorf("closure assigned to %s of non-closure type", p.f.PlaceString(dst))
	}
	cl := cfg.ClosureRValue{Type: ty}
	var capTypes []types.TypeID
	inner := strings.TrimSpace(s[1 : len(s)-1])
	if inner != "" {
		for _, part := range splitList(inner) {
			modeText, placeText, ok := strings.Cut(part, " ")
			if !ok {
				return cfg.RValue{}, fmt.Errorf("capture %q: want `mode place`", part)
			}
			c := cfg.Capture{}
			switch modeText {
			case "move":
				c.Mode = cfg.CaptureMove
			case "copy":
				c.Mode = cfg.CaptureCopy
			case "ref":
				c.Mode = cfg.CaptureRef
			case "mut":
				c.Mode = cfg.CaptureRefMut
			default:
				return cfg.RValue{}, fmt.Errorf("capture %q: unknown mode %q", part, modeText)
			}
			pl, err := p.place(placeText)
			if err != nil {
				return cfg.RValue{}, err
			}
			c.Place = pl
			cl.Captures = append(cl.Captures, c)

			pty, _ := p.f.PlaceType(p.types, pl)
			switch c.Mode {
			case cfg.CaptureRef:
				pty = p.types.Intern(types.MakeReference(pty, false))
			case cfg.CaptureRefMut:
				pty = p.types.Intern(types.MakeReference(pty, true))
			}
			capTypes = append(capTypes, pty)
		}
	}
	p.types.SetClosureCaptures(ty, capTypes)
	return cfg.RValue{Kind: cfg.RValueClosure, Closure: cl}, nil
}
