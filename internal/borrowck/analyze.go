package borrowck

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"borrowck/internal/cfg"
	"borrowck/internal/diag"
	"borrowck/internal/trace"
	"borrowck/internal/types"
)

// ErrMalformedCFG is wrapped by every error Analyze returns. It marks a
// broken input contract, never a user error.
var ErrMalformedCFG = errors.New("malformed cfg")

// Options tune the analysis.
type Options struct {
	// TwoPhase enables two-phase borrows; when off `&2ph` is a plain
	// mutable borrow.
	TwoPhase bool
	// MaxDiagnostics caps diagnostics per function; <= 0 means unlimited.
	MaxDiagnostics int
	// DropFlags allows conditional drops guarded by runtime flags. When
	// off, places that are moved on some paths only are not dropped.
	DropFlags bool
	// ReassignDrops drops the old value before overwriting an
	// initialized place.
	ReassignDrops bool
	// Mutability rejects reassigning and mutably borrowing locals that
	// are not declared mut.
	Mutability bool
}

func DefaultOptions() Options {
	return Options{
		TwoPhase:       true,
		MaxDiagnostics: 100,
		DropFlags:      true,
		ReassignDrops:  true,
	}
}

// LoanInfo describes a loan for dumps and tests.
type LoanInfo struct {
	ID      LoanID
	Point   Point
	Place   string
	Kind    LoanKind
	Origin  LoanOrigin
	Holders []string
	// Region is sorted by point id.
	Region     []Point
	Activation *Point
}

type Stats struct {
	Points      int
	MovePaths   int
	Loans       int
	InitIters   int
	LiveIters   int
	HolderIters int
	DropFlags   int
	LeakedDrops int
	Diagnostics int
}

// Outcome is the result of analyzing one function. Annotated is nil when
// the function has error diagnostics; code generation must not proceed.
type Outcome struct {
	Func        string
	Annotated   *cfg.Func
	Diagnostics []diag.Diagnostic
	Loans       []LoanInfo
	Drops       []Drop
	Stats       Stats
}

// HasErrors reports whether any diagnostic is an error or worse.
func (o *Outcome) HasErrors() bool {
	for i := range o.Diagnostics {
		if o.Diagnostics[i].Severity >= diag.SevError {
			return true
		}
	}
	return false
}

// Analyze runs the ownership and borrow analysis of one function. User
// violations are reported as diagnostics; the error is non-nil only for
// a malformed input and then wraps ErrMalformedCFG. f is not modified.
func Analyze(ctx context.Context, f *cfg.Func, typesIn *types.Interner, opts Options) (*Outcome, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil function", ErrMalformedCFG)
	}
	if err := cfg.ValidateFunc(f, typesIn); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCFG, err)
	}
	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID
	fnSpan := trace.Begin(tracer, trace.ScopeFunc, "borrowck:"+f.Name, parent)
	defer fnSpan.End("")
	pass := func(name string) *trace.Span {
		return trace.Begin(tracer, trace.ScopePass, name, fnSpan.ID())
	}

	out := &Outcome{Func: f.Name}
	bag := diag.NewBag(opts.MaxDiagnostics)
	rep := diag.NewDedupReporter(diag.BagReporter{Bag: bag})

	sp := pass("facts")
	fs := buildFacts(f, typesIn, opts)
	sp.WithExtra("points", strconv.Itoa(fs.points.len())).
		WithExtra("loans", strconv.Itoa(fs.loans.len())).End("")

	em := &emitter{f: f, fs: fs, r: rep}
	ss, scopeErrs := computeScopeStacks(f, fs)
	if len(scopeErrs) > 0 {
		errs := make([]error, 0, len(scopeErrs))
		for _, se := range scopeErrs {
			d := em.scopeError(se)
			bag.Add(d)
			errs = append(errs, fmt.Errorf("%s %s: %s", f.Name, fs.points.point(se.point), se.msg))
		}
		out.Diagnostics = bag.Items()
		return out, fmt.Errorf("%w: %w", ErrMalformedCFG, errors.Join(errs...))
	}

	sp = pass("init")
	ia := computeInit(f, fs)
	sp.WithExtra("iterations", strconv.Itoa(ia.iterations)).End("")

	sp = pass("liveness")
	lv := computeLiveness(f, fs)
	sp.WithExtra("iterations", strconv.Itoa(lv.iterations)).End("")

	sp = pass("nll")
	rg := computeRegions(f, fs, lv)
	sp.WithExtra("holder_iterations", strconv.Itoa(rg.holderIters)).End("")

	sp = pass("conflicts")
	violations := checkConflicts(f, typesIn, fs, ia, rg, opts)
	for i := range violations {
		em.violation(&violations[i])
	}
	sp.WithExtra("violations", strconv.Itoa(len(violations))).End("")

	bag.Sort()
	out.Diagnostics = bag.Items()
	out.Loans = loanInfos(f, fs, rg)

	sp = pass("drops")
	plan := scheduleDrops(f, typesIn, fs, ia, ss, opts)
	annotated, drops := annotate(f, typesIn, fs, plan)
	out.Drops = drops
	if !out.HasErrors() {
		out.Annotated = annotated
	}
	sp.WithExtra("drops", strconv.Itoa(len(drops))).
		WithExtra("flags", strconv.Itoa(len(plan.flagged))).End("")

	out.Stats = Stats{
		Points:      fs.points.len(),
		MovePaths:   fs.paths.len(),
		Loans:       fs.loans.len(),
		InitIters:   ia.iterations,
		LiveIters:   lv.iterations,
		HolderIters: rg.holderIters,
		DropFlags:   len(plan.flagged),
		LeakedDrops: plan.leaked,
		Diagnostics: len(out.Diagnostics),
	}
	return out, nil
}

func loanInfos(f *cfg.Func, fs *factSet, rg *regions) []LoanInfo {
	out := make([]LoanInfo, 0, fs.loans.len())
	for _, l := range fs.loans.loans {
		info := LoanInfo{
			ID:     l.ID,
			Point:  fs.points.point(l.Point),
			Place:  f.PlaceString(l.Place),
			Kind:   l.Kind,
			Origin: l.Origin,
		}
		for _, h := range rg.holders[l.ID] {
			info.Holders = append(info.Holders, f.LocalName(h))
		}
		for _, p := range l.Region.AppendTo(nil) {
			info.Region = append(info.Region, fs.points.point(PointID(p)))
		}
		if l.Activation != NoPoint {
			pt := fs.points.point(l.Activation)
			info.Activation = &pt
		}
		out = append(out, info)
	}
	return out
}
