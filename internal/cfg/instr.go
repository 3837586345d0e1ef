package cfg

import (
	"borrowck/internal/source"
	"borrowck/internal/types"
)

// InstrKind enumerates instruction kinds of the typed CFG.
type InstrKind uint8

const (
	// InstrAssign writes an rvalue into a place.
	InstrAssign InstrKind = iota
	// InstrCall calls a named function.
	InstrCall
	// InstrScopeEnter opens a lexical scope.
	InstrScopeEnter
	// InstrScopeExit closes a lexical scope; its locals die here.
	InstrScopeExit
	// InstrDrop destroys a place. Only present in annotated output.
	InstrDrop
	// InstrSetFlag writes a drop flag. Only present in annotated output.
	InstrSetFlag
	// InstrNop does nothing.
	InstrNop
)

func (k InstrKind) String() string {
	switch k {
	case InstrAssign:
		return "assign"
	case InstrCall:
		return "call"
	case InstrScopeEnter:
		return "scope_enter"
	case InstrScopeExit:
		return "scope_exit"
	case InstrDrop:
		return "drop"
	case InstrSetFlag:
		return "set_flag"
	case InstrNop:
		return "nop"
	default:
		return "?"
	}
}

// Instr is a single place-level operation.
type Instr struct {
	Kind InstrKind
	Span source.Span

	Assign  AssignInstr
	Call    CallInstr
	Scope   ScopeID
	Drop    DropInstr
	SetFlag SetFlagInstr
}

// AssignInstr represents `Dst = Src`.
type AssignInstr struct {
	Dst Place
	Src RValue
}

// CallInstr represents `[Dst =] Callee([recv Recv,] Args...)`. The receiver
// is adjusted according to the callee's declared receiver kind.
type CallInstr struct {
	HasDst  bool
	Dst     Place
	Callee  string
	HasRecv bool
	Recv    Place
	Args    []Operand
}

// DropInstr destroys Place. When Flag is a valid local the drop only
// happens if the flag holds true at run time.
type DropInstr struct {
	Place Place
	Flag  LocalID
}

// SetFlagInstr writes Value into drop flag Flag.
type SetFlagInstr struct {
	Flag  LocalID
	Value bool
}

// OperandKind distinguishes operand types.
type OperandKind uint8

const (
	// OperandConst is a literal.
	OperandConst OperandKind = iota
	// OperandCopy reads a place without invalidating it.
	OperandCopy
	// OperandMove transfers ownership out of a place.
	OperandMove
)

// Operand is an input of an rvalue, call or terminator.
type Operand struct {
	Kind  OperandKind
	Place Place
	Const Const
}

// Const is a literal value. Text keeps the literal as written.
type Const struct {
	Type types.TypeID
	Text string
}

func Copy(p Place) Operand { return Operand{Kind: OperandCopy, Place: p} }
func Move(p Place) Operand { return Operand{Kind: OperandMove, Place: p} }
func ConstOp(ty types.TypeID, text string) Operand {
	return Operand{Kind: OperandConst, Const: Const{Type: ty, Text: text}}
}

// HasPlace reports whether the operand reads a place.
func (op Operand) HasPlace() bool {
	return op.Kind == OperandCopy || op.Kind == OperandMove
}

// BorrowKind is the flavor of a reference-producing rvalue.
type BorrowKind uint8

const (
	BorrowShared BorrowKind = iota
	BorrowMut
	// BorrowTwoPhase reserves a mutable borrow that acts shared until first use.
	BorrowTwoPhase
)

func (k BorrowKind) String() string {
	switch k {
	case BorrowShared:
		return "shared"
	case BorrowMut:
		return "mutable"
	case BorrowTwoPhase:
		return "two-phase"
	default:
		return "?"
	}
}

// RValueKind distinguishes right-hand value kinds.
type RValueKind uint8

const (
	// RValueUse reads an operand.
	RValueUse RValueKind = iota
	// RValueRef creates a reference to a place.
	RValueRef
	// RValueUnary applies a unary operator.
	RValueUnary
	// RValueBinary applies a binary operator.
	RValueBinary
	// RValueAggregate builds a struct, tuple, array or enum variant.
	RValueAggregate
	// RValueClosure creates a closure capturing places.
	RValueClosure
)

// RValue represents a right-hand value.
type RValue struct {
	Kind RValueKind

	Use       Operand
	Ref       RefRValue
	Unary     UnaryOp
	Binary    BinaryOp
	Aggregate Aggregate
	Closure   ClosureRValue
}

// RefRValue is `&Place`, `&mut Place` or a two-phase reservation.
type RefRValue struct {
	Kind  BorrowKind
	Place Place
}

type UnaryOp struct {
	Op      string
	Operand Operand
}

type BinaryOp struct {
	Op    string
	Left  Operand
	Right Operand
}

type AggregateKind uint8

const (
	AggStruct AggregateKind = iota
	AggTuple
	AggArray
	AggVariant
)

// AggregateField names the field an operand initializes; tuple, array and
// variant payload fields are positional and leave Name empty.
type AggregateField struct {
	Name  string
	Value Operand
}

type Aggregate struct {
	Kind    AggregateKind
	Type    types.TypeID
	Variant string
	Fields  []AggregateField
}

// CaptureMode says how a closure captures a place.
type CaptureMode uint8

const (
	CaptureMove CaptureMode = iota
	CaptureCopy
	CaptureRef
	CaptureRefMut
)

func (m CaptureMode) String() string {
	switch m {
	case CaptureMove:
		return "move"
	case CaptureCopy:
		return "copy"
	case CaptureRef:
		return "ref"
	case CaptureRefMut:
		return "mut"
	default:
		return "?"
	}
}

type Capture struct {
	Mode  CaptureMode
	Place Place
}

type ClosureRValue struct {
	Type     types.TypeID
	Captures []Capture
}

// Operands returns every operand read by the rvalue, in evaluation order.
func (rv *RValue) Operands() []Operand {
	switch rv.Kind {
	case RValueUse:
		return []Operand{rv.Use}
	case RValueUnary:
		return []Operand{rv.Unary.Operand}
	case RValueBinary:
		return []Operand{rv.Binary.Left, rv.Binary.Right}
	case RValueAggregate:
		out := make([]Operand, len(rv.Aggregate.Fields))
		for i, f := range rv.Aggregate.Fields {
			out[i] = f.Value
		}
		return out
	default:
		return nil
	}
}
