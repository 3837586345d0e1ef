package diag

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Перемещения
	BorrowUseAfterMove      Code = 1
	BorrowMovedBorrow       Code = 5
	BorrowPartialMoveUse    Code = 11
	BorrowClosureMovedValue Code = 14
	BorrowAssignIntoMoved   Code = 16

	// Конфликты заимствований
	BorrowMoveWhileBorrowed    Code = 2
	BorrowAssignImmutable      Code = 3
	BorrowAssignWhileBorrowed  Code = 4
	BorrowMutOfImmutable       Code = 6
	BorrowMutWhileShared       Code = 7
	BorrowDoubleMut            Code = 8
	BorrowSharedWhileMut       Code = 9
	BorrowTwoPhaseConflict     Code = 12
	BorrowReadWhileMutBorrowed Code = 13
	BorrowClosureConflict      Code = 15

	// Висячие ссылки
	BorrowReturnLocalRef Code = 10
	BorrowOutlivesOwner  Code = 17

	// Внутренние ошибки
	BorrowMalformedScopes Code = 900
)

var codeInfo = map[Code]struct {
	kind  Kind
	title string
}{
	UnknownCode:                {KindUnknown, "Unknown error"},
	BorrowUseAfterMove:         {KindUseOfMovedValue, "use of moved value"},
	BorrowMovedBorrow:          {KindUseOfMovedValue, "borrow of moved value"},
	BorrowPartialMoveUse:       {KindUseOfMovedValue, "use of partially moved value"},
	BorrowClosureMovedValue:    {KindUseOfMovedValue, "closure captures moved value"},
	BorrowAssignIntoMoved:      {KindUseOfMovedValue, "assignment to part of moved value"},
	BorrowMoveWhileBorrowed:    {KindBorrowConflict, "cannot move out while borrowed"},
	BorrowAssignImmutable:      {KindBorrowConflict, "cannot assign twice to immutable variable"},
	BorrowAssignWhileBorrowed:  {KindBorrowConflict, "cannot assign while borrowed"},
	BorrowMutOfImmutable:       {KindBorrowConflict, "cannot borrow immutable variable as mutable"},
	BorrowMutWhileShared:       {KindBorrowConflict, "cannot borrow as mutable because it is also borrowed as immutable"},
	BorrowDoubleMut:            {KindBorrowConflict, "cannot borrow as mutable more than once at a time"},
	BorrowSharedWhileMut:       {KindBorrowConflict, "cannot borrow as immutable because it is also borrowed as mutable"},
	BorrowTwoPhaseConflict:     {KindBorrowConflict, "two-phase borrow activated while another borrow is active"},
	BorrowReadWhileMutBorrowed: {KindBorrowConflict, "cannot use value while mutably borrowed"},
	BorrowClosureConflict:      {KindBorrowConflict, "closure capture conflicts with an active borrow"},
	BorrowReturnLocalRef:       {KindDanglingReference, "cannot return reference to local data"},
	BorrowOutlivesOwner:        {KindDanglingReference, "borrowed value does not live long enough"},
	BorrowMalformedScopes:      {KindNonExhaustiveDropOrder, "malformed scope tree"},
}

func (c Code) ID() string {
	if _, ok := codeInfo[c]; !ok || c == UnknownCode {
		return "B0000"
	}
	return fmt.Sprintf("B%04d", uint16(c))
}

func (c Code) Title() string {
	info, ok := codeInfo[c]
	if !ok {
		return codeInfo[UnknownCode].title
	}
	return info.title
}

// Kind maps a code onto the closed taxonomy.
func (c Code) Kind() Kind {
	return codeInfo[c].kind
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}

// Codes lists every known code in ascending order.
func Codes() []Code {
	out := make([]Code, 0, len(codeInfo))
	for c := range codeInfo {
		if c != UnknownCode {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// ParseCode accepts "B0001", "b1" or "1".
func ParseCode(s string) (Code, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "B")
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return UnknownCode, fmt.Errorf("invalid diagnostic code %q", s)
	}
	c := Code(n)
	if _, ok := codeInfo[c]; !ok || c == UnknownCode {
		return UnknownCode, fmt.Errorf("unknown diagnostic code B%04d", n)
	}
	return c, nil
}
