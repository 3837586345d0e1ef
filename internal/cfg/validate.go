package cfg

import (
	"errors"
	"fmt"

	"borrowck/internal/types"
)

// Validate checks module invariants the borrow checker relies on.
// Returns error if any invariant is violated.
func Validate(m *Module, typesIn *types.Interner) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs {
		if f == nil {
			continue
		}
		if err := ValidateFunc(f, typesIn); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunc checks a single function.
func ValidateFunc(f *Func, typesIn *types.Interner) error {
	if f == nil {
		return nil
	}
	var errs []error
	if !f.validBlock(f.Entry) {
		errs = append(errs, fmt.Errorf("entry block bb%d does not exist", f.Entry))
	}
	if err := validateBlocks(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateScopes(f); err != nil {
		errs = append(errs, err)
	}
	if err := validateLocals(f, typesIn); err != nil {
		errs = append(errs, err)
	}
	if err := validateReferences(f); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// validateBlocks checks ids, terminators and branch targets.
func validateBlocks(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if bb.ID != BlockID(i) {
			errs = append(errs, fmt.Errorf("bb%d: block id mismatch (bb%d)", i, bb.ID))
		}
		if bb.Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
		for _, to := range bb.Term.Successors() {
			if !f.validBlock(to) {
				errs = append(errs, fmt.Errorf("bb%d: branch target bb%d does not exist", i, to))
			}
		}
		if bb.Term.Kind == TermSwitch {
			seen := make(map[string]bool, len(bb.Term.Switch.Cases))
			for _, c := range bb.Term.Switch.Cases {
				if seen[c.Variant] {
					errs = append(errs, fmt.Errorf("bb%d: switch has duplicate case for %s", i, c.Variant))
				}
				seen[c.Variant] = true
			}
		}
	}
	return errors.Join(errs...)
}

// validateScopes checks that the scope list forms a tree rooted at BodyScope.
func validateScopes(f *Func) error {
	if len(f.Scopes) == 0 {
		return fmt.Errorf("missing body scope")
	}
	var errs []error
	for i, sc := range f.Scopes {
		if sc.ID != ScopeID(i) {
			errs = append(errs, fmt.Errorf("scope %d: id mismatch (%d)", i, sc.ID))
		}
		switch {
		case i == int(BodyScope):
			if sc.Parent != NoScopeID {
				errs = append(errs, fmt.Errorf("body scope must not have a parent"))
			}
		case sc.Parent < 0 || int(sc.Parent) >= i:
			// Parents precede children, which also rules out cycles.
			errs = append(errs, fmt.Errorf("scope %d: invalid parent %d", i, sc.Parent))
		}
	}
	return errors.Join(errs...)
}

func validateLocals(f *Func, typesIn *types.Interner) error {
	var errs []error
	for i, loc := range f.Locals {
		if loc.Type == types.NoTypeID {
			errs = append(errs, fmt.Errorf("local L%d (%s): unknown type", i, loc.Name))
		} else if typesIn != nil {
			if _, ok := typesIn.Lookup(loc.Type); !ok {
				errs = append(errs, fmt.Errorf("local L%d (%s): type %d is not in the type table", i, loc.Name, loc.Type))
			}
		}
		if loc.Scope < 0 || int(loc.Scope) >= len(f.Scopes) {
			errs = append(errs, fmt.Errorf("local L%d (%s): scope %d does not exist", i, loc.Name, loc.Scope))
		}
	}
	for _, p := range f.Params {
		if !f.validLocal(p) {
			errs = append(errs, fmt.Errorf("param L%d does not exist", p))
			continue
		}
		if f.Locals[p].Flags&LocalFlagParam == 0 {
			errs = append(errs, fmt.Errorf("param L%d (%s) is not flagged as parameter", p, f.Locals[p].Name))
		}
		if f.Locals[p].Scope != BodyScope {
			errs = append(errs, fmt.Errorf("param L%d (%s) must live in the body scope", p, f.Locals[p].Name))
		}
	}
	return errors.Join(errs...)
}

// validateReferences checks every LocalID and ScopeID used by instructions.
func validateReferences(f *Func) error {
	var errs []error

	checkPlace := func(p Place, context string) {
		if !f.validLocal(p.Local) {
			errs = append(errs, fmt.Errorf("%s: local L%d does not exist", context, p.Local))
		}
		for _, proj := range p.Proj {
			if proj.Kind == ProjIndex && proj.IndexLocal != NoLocalID && !f.validLocal(proj.IndexLocal) {
				errs = append(errs, fmt.Errorf("%s: index local L%d does not exist", context, proj.IndexLocal))
			}
		}
	}
	checkOperand := func(op Operand, context string) {
		if op.HasPlace() {
			checkPlace(op.Place, context)
		}
	}
	checkScope := func(id ScopeID, context string) {
		if id <= BodyScope || int(id) >= len(f.Scopes) {
			errs = append(errs, fmt.Errorf("%s: scope %d cannot be entered or exited", context, id))
		}
	}
	checkFlag := func(id LocalID, context string) {
		if !f.validLocal(id) || f.Locals[id].Flags&LocalFlagDropFlag == 0 {
			errs = append(errs, fmt.Errorf("%s: L%d is not a drop flag", context, id))
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			ctx := fmt.Sprintf("bb%d instr %d", i, j)
			switch ins.Kind {
			case InstrAssign:
				checkPlace(ins.Assign.Dst, ctx)
				src := &ins.Assign.Src
				for _, op := range src.Operands() {
					checkOperand(op, ctx)
				}
				switch src.Kind {
				case RValueRef:
					checkPlace(src.Ref.Place, ctx)
				case RValueClosure:
					for _, c := range src.Closure.Captures {
						checkPlace(c.Place, ctx)
					}
				}
			case InstrCall:
				if ins.Call.HasDst {
					checkPlace(ins.Call.Dst, ctx)
				}
				if ins.Call.HasRecv {
					checkPlace(ins.Call.Recv, ctx)
				}
				for _, arg := range ins.Call.Args {
					checkOperand(arg, ctx)
				}
			case InstrScopeEnter, InstrScopeExit:
				checkScope(ins.Scope, ctx)
			case InstrDrop:
				checkPlace(ins.Drop.Place, ctx)
				if ins.Drop.Flag != NoLocalID {
					checkFlag(ins.Drop.Flag, ctx)
				}
			case InstrSetFlag:
				checkFlag(ins.SetFlag.Flag, ctx)
			}
		}
		ctx := fmt.Sprintf("bb%d terminator", i)
		for _, op := range bb.Term.Operands() {
			checkOperand(op, ctx)
		}
	}
	return errors.Join(errs...)
}

func (f *Func) validLocal(id LocalID) bool {
	return id >= 0 && int(id) < len(f.Locals)
}
