package types

import "slices"

// RecvKind is the declared receiver mode of a method.
type RecvKind uint8

const (
	// RecvNone marks free functions.
	RecvNone RecvKind = iota
	// RecvThis takes the receiver by value (`this`).
	RecvThis
	// RecvRef takes a shared reference (`ref this`).
	RecvRef
	// RecvRefMut takes a mutable reference (`mut ref this`).
	RecvRefMut
)

func (k RecvKind) String() string {
	switch k {
	case RecvNone:
		return "none"
	case RecvThis:
		return "this"
	case RecvRef:
		return "ref this"
	case RecvRefMut:
		return "mut ref this"
	default:
		return "?"
	}
}

// FuncSig is the callee metadata the borrow checker needs at call sites.
type FuncSig struct {
	Name   string
	Recv   RecvKind
	Params []TypeID
	Result TypeID
	// ResultFrom lists argument positions (receiver is position 0 when
	// Recv != RecvNone) whose loans flow into the result. When empty and
	// the result carries references, every reference argument flows.
	ResultFrom []int
}

// RegisterFunc stores a signature under its name; later registrations win.
func (in *Interner) RegisterFunc(sig FuncSig) *FuncSig {
	sig.Params = slices.Clone(sig.Params)
	sig.ResultFrom = slices.Clone(sig.ResultFrom)
	s := &sig
	in.funcs[sig.Name] = s
	return s
}

// Func looks up a signature by name.
func (in *Interner) Func(name string) (*FuncSig, bool) {
	if in == nil {
		return nil, false
	}
	sig, ok := in.funcs[name]
	return sig, ok
}

// FuncNames returns registered signature names in sorted order.
func (in *Interner) FuncNames() []string {
	out := make([]string, 0, len(in.funcs))
	for name := range in.funcs {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
