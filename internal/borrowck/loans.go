package borrowck

import (
	"fmt"

	"fortio.org/safecast"
	"golang.org/x/tools/container/intsets"

	"borrowck/internal/cfg"
	"borrowck/internal/source"
)

// LoanID identifies a borrow inside one function.
type LoanID int32

const NoLoan LoanID = -1

// LoanKind is the flavor of a loan.
type LoanKind uint8

const (
	LoanShared LoanKind = iota
	LoanMutable
	// LoanTwoPhase acts as shared until its activation point.
	LoanTwoPhase
)

func (k LoanKind) String() string {
	switch k {
	case LoanShared:
		return "shared"
	case LoanMutable:
		return "mutable"
	case LoanTwoPhase:
		return "two-phase"
	default:
		return "?"
	}
}

// LoanOrigin records which construct created the loan.
type LoanOrigin uint8

const (
	OriginRef LoanOrigin = iota
	OriginReceiver
	OriginCapture
)

// Loan is a single borrow. Region is filled by region inference and not
// touched afterwards.
type Loan struct {
	ID     LoanID
	Point  PointID
	Place  cfg.Place
	Kind   LoanKind
	Origin LoanOrigin
	// Holder is the local the reference is stored into, or NoLocalID for
	// temporaries that die at the creation point.
	Holder cfg.LocalID
	Span   source.Span

	// Region is the set of points the loan is live at, creation included.
	Region intsets.Sparse
	// Activation is the earliest activation point of a two-phase loan.
	Activation PointID
}

// reborrow reports whether the loan borrows through a dereference.
func (l *Loan) reborrow() bool {
	return l.Place.HasDeref()
}

type loanTable struct {
	loans []*Loan
}

func (lt *loanTable) add(l *Loan) LoanID {
	n, err := safecast.Conv[int32](len(lt.loans))
	if err != nil {
		panic(fmt.Errorf("loan id overflow: %w", err))
	}
	l.ID = LoanID(n)
	l.Activation = NoPoint
	lt.loans = append(lt.loans, l)
	return l.ID
}

func (lt *loanTable) get(id LoanID) *Loan { return lt.loans[id] }

func (lt *loanTable) len() int { return len(lt.loans) }
