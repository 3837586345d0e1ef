package diag

// Kind is the closed taxonomy every borrow-check violation maps onto.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindUseOfMovedValue: a place is used without definite initialization.
	KindUseOfMovedValue
	// KindBorrowConflict: incompatible loans overlap, or the owner is used
	// while a loan is active.
	KindBorrowConflict
	// KindDanglingReference: a reference would outlive its owner.
	KindDanglingReference
	// KindNonExhaustiveDropOrder: the scope tree handed over by the upstream
	// builder is malformed. Internal and fatal.
	KindNonExhaustiveDropOrder
)

func (k Kind) String() string {
	switch k {
	case KindUseOfMovedValue:
		return "UseOfMovedValue"
	case KindBorrowConflict:
		return "BorrowConflict"
	case KindDanglingReference:
		return "DanglingReference"
	case KindNonExhaustiveDropOrder:
		return "NonExhaustiveDropOrder"
	default:
		return "Unknown"
	}
}

// Fatal reports whether diagnostics of this kind abort compilation.
func (k Kind) Fatal() bool {
	return k == KindNonExhaustiveDropOrder
}
