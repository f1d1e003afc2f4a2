package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/stats"
)

// MoveState is a step of the move state machine.
type MoveState int

const (
	MoveInit MoveState = iota
	MoveRenameAttempted
	MoveCopyPhase
	MoveDeletePhase
	MoveDone
	MoveFailed
)

func (s MoveState) String() string {
	switch s {
	case MoveInit:
		return "init"
	case MoveRenameAttempted:
		return "rename-attempted"
	case MoveCopyPhase:
		return "copy"
	case MoveDeletePhase:
		return "delete"
	case MoveDone:
		return "done"
	case MoveFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Renamer performs the rename step of a move.
type Renamer func(oldpath, newpath string) error

// MoveConfig configures a MoveEngine.
type MoveConfig struct {
	Resolver *ConflictResolver
	Events   event.Handler
	Progress Progress
	Rename   Renamer // os.Rename when nil
	Limiter  *rate.Limiter
	Options  MoveOptions
}

// MoveEngine moves one source at a time: a rename when the filesystem
// allows it, otherwise a full-fidelity copy followed by removal of the
// source.
type MoveEngine struct {
	cfg MoveConfig
}

// MoveResult is the outcome of moving one source.
type MoveResult struct {
	Result
	State       MoveState
	CrossDevice bool
}

// NewMoveEngine creates a move engine.
func NewMoveEngine(cfg MoveConfig) *MoveEngine {
	if cfg.Resolver == nil {
		cfg.Resolver = NewConflictResolver(cfg.Options.CopyOptions, nil)
	}
	if cfg.Events == nil {
		cfg.Events = event.Discard
	}
	if cfg.Progress == nil {
		cfg.Progress = nopProgress{}
	}
	if cfg.Rename == nil {
		cfg.Rename = os.Rename
	}
	return &MoveEngine{cfg: cfg}
}

// move holds the state of one Move call.
type move struct {
	m        *MoveEngine
	events   event.Handler
	src, dst string
	res      MoveResult
}

// Move moves src to dst. The source is removed only after every byte and
// attribute has been copied; a failed copy leaves it intact.
func (m *MoveEngine) Move(ctx context.Context, src, dst string) MoveResult {
	collector := stats.NewCollector()
	mv := &move{
		m:      m,
		events: event.Multi(collector, m.cfg.Events),
		src:    src,
		dst:    dst,
	}
	mv.res.State = MoveInit

	mv.run(ctx)

	if err := m.cfg.Progress.Clear(); err != nil {
		slog.Debug("progress clear failed", "error", err)
	}
	mv.res.Stats = collector.Snapshot().Add(mv.res.Stats)
	return mv.res
}

func (mv *move) run(ctx context.Context) {
	cl, err := (PathClassifier{Policy: DontFollow}).Classify(mv.src, true, nil)
	if err != nil {
		mv.fail(err)
		return
	}
	if err := checkSameFile(cl, mv.dst); err != nil {
		mv.fail(newOpError("move", mv.src, mv.dst, err))
		return
	}
	if cl.Kind == Directory {
		if err := checkIntoItself(mv.src, mv.dst); err != nil {
			mv.fail(newOpError("move", mv.src, mv.dst, err))
			return
		}
	}

	mv.progress(0, "moving")
	if !mv.m.cfg.Options.TryRename {
		mv.copyThenRemove(ctx)
		return
	}

	mv.res.State = MoveRenameAttempted
	renamed, err := mv.tryRename(cl.Kind)
	switch {
	case err == nil && renamed:
		mv.res.State = MoveDone
	case err == nil:
		mv.res.State = MoveDone // destination kept
	case KindOf(err) == CrossDeviceLink:
		slog.Debug("rename crosses filesystems; copying", "src", mv.src, "dst", mv.dst)
		mv.res.CrossDevice = true
		mv.copyThenRemove(ctx)
	default:
		mv.fail(err)
	}
}

// tryRename resolves the destination and renames src over it. renamed is
// false when the destination was kept.
func (mv *move) tryRename(kind FileKind) (bool, error) {
	status, err := statDest(mv.dst)
	if err != nil {
		return false, newOpError("move", mv.src, mv.dst, err)
	}
	d, err := mv.m.cfg.Resolver.Resolve(mv.dst, kind, status)
	if err != nil {
		return false, newOpError("move", mv.src, mv.dst, err)
	}
	if d.Action == SkipDest {
		mv.emit(event.Event{Type: event.Skipped, Src: mv.src, Dst: mv.dst})
		return false, nil
	}
	if err := takeBackup(d, mv.dst); err != nil {
		return false, newOpError("move", mv.src, mv.dst, err)
	}
	if d.Action == Backup {
		mv.emit(event.Event{Type: event.BackupCreated, Src: mv.dst, Dst: d.BackupPath})
	}

	err = mv.m.cfg.Rename(mv.src, mv.dst)
	if err != nil && d.Replace && !errors.Is(err, unix.EXDEV) {
		// rename(2) cannot replace every kind of entry; clear it and retry once.
		if rmErr := os.Remove(mv.dst); rmErr == nil {
			err = mv.m.cfg.Rename(mv.src, mv.dst)
		}
	}
	if err != nil {
		return false, newOpError("move", mv.src, mv.dst, err)
	}

	mv.emit(event.Event{Type: event.Renamed, Src: mv.src, Dst: mv.dst, Backup: d.BackupPath})
	return true, nil
}

func (mv *move) copyThenRemove(ctx context.Context) {
	mv.res.State = MoveCopyPhase

	planner := &TraversalPlanner{
		Classifier: PathClassifier{Policy: DontFollow},
		Verb:       "move",
		Recursive:  true,
	}
	plan, err := planner.Plan(ctx, mv.src, mv.dst)
	if err != nil {
		mv.fail(err)
		return
	}

	exec := NewCopyExecutor(ExecutorConfig{
		Resolver: mv.m.cfg.Resolver,
		Events:   mv.m.cfg.Events,
		Limiter:  mv.m.cfg.Limiter,
		Verb:     "move",
		Preserve: PreserveAll,
	})
	copied := exec.Execute(ctx, plan)
	mv.res.Stats = copied.Stats
	if len(copied.Failures) > 0 {
		mv.res.Failures = append(mv.res.Failures, copied.Failures...)
		mv.res.State = MoveFailed
		slog.Debug("copy phase failed; source kept", "src", mv.src, "failures", len(copied.Failures))
		return
	}
	if copied.Stats.Skipped > 0 {
		// Something was kept at the destination, so the source is not redundant.
		mv.res.State = MoveDone
		return
	}

	mv.progress(1, "copied")
	mv.res.State = MoveDeletePhase
	_, err = RemoveTree(ctx, RemoveConfig{Root: mv.src, Events: mv.events})
	if err != nil {
		mv.fail(err)
		return
	}
	mv.progress(2, "removed")
	mv.res.State = MoveDone
}

// progress reports how far the move has got: phase 1 once the copy is
// complete, phase 2 once the source is gone.
func (mv *move) progress(phase int, verb string) {
	label := fmt.Sprintf("%s '%s'", verb, mv.src)
	if err := mv.m.cfg.Progress.Show(phase, 2, label); err != nil {
		slog.Debug("progress update failed", "error", err)
	}
}

func (mv *move) emit(e event.Event) {
	e.Timestamp = time.Now()
	mv.events.Handle(e)
}

func (mv *move) fail(err error) {
	opErr := asOpError("move", mv.src, mv.dst, err)
	mv.res.Failures = append(mv.res.Failures, opErr)
	mv.res.State = MoveFailed
	mv.emit(event.Event{Type: event.Failed, Src: mv.src, Dst: mv.dst, Error: opErr})
}
