// Package engine plans and executes file copies and moves.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// Env holds the collaborators an invocation talks to. Every field is
// optional.
type Env struct {
	Events   event.Handler
	Prompter Prompter
	Progress Progress
	Rename   Renamer // moves only
}

// Result is the outcome of an invocation.
type Result struct {
	Failures []*OpError
	Stats    stats.Snapshot
}

// OK reports whether every planned operation succeeded.
func (r Result) OK() bool { return len(r.Failures) == 0 }

// Err joins every failure, or returns nil.
func (r Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

func (r Result) merge(o Result) Result {
	return Result{
		Failures: append(r.Failures, o.Failures...),
		Stats:    r.Stats.Add(o.Stats),
	}
}

func newLimiter(bytesPerSec int64) *rate.Limiter {
	if bytesPerSec <= 0 {
		return nil
	}
	return NewBWLimiter(bytesPerSec)
}

// Copy copies every target, continuing past failures.
func Copy(ctx context.Context, targets []Target, opts CopyOptions, env Env) Result {
	resolver := NewConflictResolver(opts, env.Prompter)
	planner := NewPlanner(opts)
	written := make(writtenSet)
	exec := NewCopyExecutor(ExecutorConfig{
		Resolver: resolver,
		Events:   event.Multi(written, handlerOrDiscard(env.Events)),
		Limiter:  newLimiter(opts.BWLimit),
		Verb:     "copy",
		Preserve: opts.Preserve,
	})

	driver := stats.NewCollector()
	events := event.Multi(driver, handlerOrDiscard(env.Events))

	var res Result
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, newOpError("copy", t.Src, t.Dst, err))
			break
		}

		plan, err := planner.Plan(ctx, t.Src, t.Dst)
		if err != nil {
			opErr := asOpError("copy", t.Src, t.Dst, err)
			res.Failures = append(res.Failures, opErr)
			events.Handle(event.Event{Type: event.Failed, Src: t.Src, Dst: t.Dst, Error: opErr, Timestamp: time.Now()})
			continue
		}
		if n := len(plan.Failures()); n > 0 {
			slog.Debug("planned with unreadable entries", "src", t.Src, "count", n)
		}

		res = res.merge(exec.Execute(ctx, plan))
		if written.has(t.Dst) {
			resolver.MarkCreated(t.Dst)
		}
	}

	res.Stats = res.Stats.Add(driver.Snapshot())
	return res
}

// Move moves every target, continuing past failures. Unless asked to
// prompt, to keep existing files or to back them up, a move replaces its
// destination.
func Move(ctx context.Context, targets []Target, opts MoveOptions, env Env) Result {
	opts.Recursive = true
	if !opts.Interactive && !opts.NoClobber && !opts.Backup.Enabled() {
		opts.Force = true
	}

	resolver := NewConflictResolver(opts.CopyOptions, env.Prompter)
	written := make(writtenSet)
	m := NewMoveEngine(MoveConfig{
		Resolver: resolver,
		Events:   event.Multi(written, handlerOrDiscard(env.Events)),
		Progress: env.Progress,
		Rename:   env.Rename,
		Limiter:  newLimiter(opts.BWLimit),
		Options:  opts,
	})

	var res Result
	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, newOpError("move", t.Src, t.Dst, err))
			break
		}
		r := m.Move(ctx, t.Src, t.Dst)
		res = res.merge(r.Result)
		if written.has(t.Dst) {
			resolver.MarkCreated(t.Dst)
		}
	}
	return res
}

// writtenSet collects the destinations an invocation has put something at.
type writtenSet map[string]struct{}

func (w writtenSet) Handle(e event.Event) {
	switch e.Type {
	case event.FileCopied, event.DirCreated, event.SymlinkCreated, event.SpecialCreated, event.Renamed:
		w[e.Dst] = struct{}{}
	default:
	}
}

func (w writtenSet) has(dst string) bool {
	_, ok := w[dst]
	return ok
}

func handlerOrDiscard(h event.Handler) event.Handler {
	if h == nil {
		return event.Discard
	}
	return h
}
