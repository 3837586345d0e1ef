package driver

import (
	"context"
	"fmt"

	"borrowck/internal/fixture"
	"borrowck/internal/source"
	"borrowck/internal/trace"
)

// FileResult is the outcome of checking one fixture file.
type FileResult struct {
	Path    string
	Program *fixture.Program
	Module  *ModuleResult
}

// CheckFile loads the fixture at path into fs and analyzes its module.
// A load error returns a nil result.
func CheckFile(ctx context.Context, fs *source.FileSet, path string, opts Options) (*FileResult, error) {
	tracer := trace.FromContext(ctx)
	span := trace.Begin(tracer, trace.ScopeDriver, "check_file", trace.CurrentSpan(ctx).SpanID).WithExtra("path", path)
	ctx = trace.WithSpan(ctx, span)

	idx := opts.Timer.Begin("parse " + path)
	emit(opts.Progress, Event{Module: path, Stage: StageParse, Status: StatusWorking})
	prog, err := fixture.Load(fs, path)
	if err != nil {
		opts.Timer.End(idx, "error")
		emit(opts.Progress, Event{Module: path, Stage: StageParse, Status: StatusError, Err: err})
		span.End(err.Error())
		return nil, err
	}
	opts.Timer.End(idx, fmt.Sprintf("funcs=%d", len(prog.Module.Funcs)))
	emit(opts.Progress, Event{Module: path, Stage: StageParse, Status: StatusDone})

	mr, err := AnalyzeModule(ctx, prog.Module, prog.Types, opts)
	span.End("")
	return &FileResult{Path: path, Program: prog, Module: mr}, err
}
