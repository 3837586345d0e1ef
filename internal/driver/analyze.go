package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"borrowck/internal/borrowck"
	"borrowck/internal/cfg"
	"borrowck/internal/dcache"
	"borrowck/internal/diag"
	"borrowck/internal/observ"
	"borrowck/internal/trace"
	"borrowck/internal/types"
)

// Options configure a driver run.
type Options struct {
	Analysis borrowck.Options
	// Jobs bounds the functions analyzed at once; <= 0 means GOMAXPROCS.
	Jobs int
	// Cache, when set, stores outcomes keyed by function content.
	Cache    *dcache.Cache
	Progress ProgressSink
	// Timer, when set, receives one phase per parsed file and analyzed
	// function.
	Timer *observ.Timer
}

// FuncResult is the analysis result of one function.
type FuncResult struct {
	Name    string
	Outcome *borrowck.Outcome
	Cached  bool
	Elapsed time.Duration
}

// ModuleResult holds per-function results in function order.
type ModuleResult struct {
	Module *cfg.Module
	Funcs  []FuncResult
}

// Diagnostics concatenates the diagnostics of all analyzed functions.
func (r *ModuleResult) Diagnostics() []diag.Diagnostic {
	if r == nil {
		return nil
	}
	var out []diag.Diagnostic
	for i := range r.Funcs {
		if o := r.Funcs[i].Outcome; o != nil {
			out = append(out, o.Diagnostics...)
		}
	}
	return out
}

// HasErrors reports whether any function has error diagnostics.
func (r *ModuleResult) HasErrors() bool {
	if r == nil {
		return false
	}
	for i := range r.Funcs {
		if o := r.Funcs[i].Outcome; o != nil && o.HasErrors() {
			return true
		}
	}
	return false
}

// AnalyzeModule analyzes every function of mod concurrently. Results keep
// function order regardless of completion order. The first malformed
// function cancels work that has not started yet; its error is returned
// together with the partial result.
func AnalyzeModule(ctx context.Context, mod *cfg.Module, typesIn *types.Interner, opts Options) (*ModuleResult, error) {
	if mod == nil {
		return nil, errors.New("driver: nil module")
	}
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "analyze_module", trace.CurrentSpan(ctx).SpanID).
		WithExtra("module", mod.Name).
		WithExtra("funcs", strconv.Itoa(len(mod.Funcs)))
	ctx = trace.WithSpan(ctx, span)

	res := &ModuleResult{Module: mod, Funcs: make([]FuncResult, len(mod.Funcs))}
	for i, f := range mod.Funcs {
		res.Funcs[i].Name = f.Name
		emit(opts.Progress, Event{Module: mod.Name, Func: f.Name, Stage: StageAnalyze, Status: StatusQueued})
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// Результаты пишутся по уникальным индексам, мьютекс не нужен.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(mod.Funcs))))
	for i, f := range mod.Funcs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fr, err := analyzeFunc(gctx, mod.Name, f, typesIn, &opts)
			res.Funcs[i] = fr
			return err
		})
	}
	err := g.Wait()

	detail := "ok"
	if err != nil {
		detail = err.Error()
	}
	span.WithExtra("diagnostics", strconv.Itoa(len(res.Diagnostics()))).End(detail)
	return res, err
}

func analyzeFunc(ctx context.Context, module string, f *cfg.Func, typesIn *types.Interner, opts *Options) (FuncResult, error) {
	start := time.Now()
	fr := FuncResult{Name: f.Name}
	tracer := trace.FromContext(ctx)
	parent := trace.CurrentSpan(ctx).SpanID
	event := func(stage Stage, status Status) Event {
		return Event{Module: module, Func: f.Name, Stage: stage, Status: status}
	}

	var key dcache.Digest
	if opts.Cache != nil {
		emit(opts.Progress, event(StageCache, StatusWorking))
		k, err := dcache.KeyFor(f, typesIn, opts.Analysis)
		if err == nil {
			key = k
			out, ok, err := opts.Cache.Get(k)
			switch {
			case err != nil:
				// Повреждённая запись: пересчитаем и перезапишем.
				trace.Point(tracer, trace.ScopeDriver, "cache_corrupt", err.Error(), parent)
			case ok:
				fr.Outcome, fr.Cached = out, true
				fr.Elapsed = time.Since(start)
				opts.Timer.Record("analyze "+f.Name, fr.Elapsed, "cached")
				ev := event(StageCache, StatusDone)
				ev.Cached, ev.Elapsed, ev.Diagnostics = true, fr.Elapsed, len(out.Diagnostics)
				emit(opts.Progress, ev)
				return fr, nil
			}
		}
	}

	emit(opts.Progress, event(StageAnalyze, StatusWorking))
	out, err := borrowck.Analyze(ctx, f, typesIn, opts.Analysis)
	fr.Outcome = out
	fr.Elapsed = time.Since(start)
	if err != nil {
		opts.Timer.Record("analyze "+f.Name, fr.Elapsed, "malformed")
		ev := event(StageAnalyze, StatusError)
		ev.Err, ev.Elapsed = err, fr.Elapsed
		emit(opts.Progress, ev)
		return fr, fmt.Errorf("%s: %w", f.Name, err)
	}
	opts.Timer.Record("analyze "+f.Name, fr.Elapsed, fmt.Sprintf("points=%d loans=%d diags=%d", out.Stats.Points, out.Stats.Loans, out.Stats.Diagnostics))

	if opts.Cache != nil && key != (dcache.Digest{}) {
		if err := opts.Cache.Put(key, out); err != nil {
			trace.Point(tracer, trace.ScopeDriver, "cache_put_failed", err.Error(), parent)
		}
	}
	ev := event(StageAnalyze, StatusDone)
	ev.Elapsed, ev.Diagnostics = fr.Elapsed, len(out.Diagnostics)
	emit(opts.Progress, ev)
	return fr, nil
}
