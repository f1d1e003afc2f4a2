package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"

	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/platform"
	"github.com/bamsammich/ferry/internal/stats"
)

// ExecutorConfig controls executor behavior.
type ExecutorConfig struct {
	Resolver *ConflictResolver
	Events   event.Handler
	Limiter  *rate.Limiter // nil = unlimited
	Verb     string        // "copy" or "move"; used in error messages
	Preserve Preserve
}

// CopyExecutor applies plans to the filesystem, one operation at a time and
// in plan order.
type CopyExecutor struct {
	cfg ExecutorConfig
}

// NewCopyExecutor creates an executor. A nil Resolver refuses every
// conflict; nil Events drops notifications.
func NewCopyExecutor(cfg ExecutorConfig) *CopyExecutor {
	if cfg.Resolver == nil {
		cfg.Resolver = NewConflictResolver(CopyOptions{}, nil)
	}
	if cfg.Events == nil {
		cfg.Events = event.Discard
	}
	if cfg.Verb == "" {
		cfg.Verb = "copy"
	}
	return &CopyExecutor{cfg: cfg}
}

// dirFixup is a directory whose attributes are applied after its subtree,
// since writing children would otherwise disturb its mtime and a read-only
// mode would block them.
type dirFixup struct {
	op        Operation
	finalMode os.FileMode // mode to restore when it was widened for writing
	restore   bool
}

// execution holds the state of one Execute call.
type execution struct {
	ctx        context.Context //nolint:containedctx // scoped to one Execute call
	e          *CopyExecutor
	events     event.Handler
	fixups   []dirFixup
	pruned   []string // directories whose subtree is not written
	failures []*OpError
}

// Execute runs every operation in plan. A failed operation is recorded and
// execution continues with the next one; operations beneath a directory
// that could not be created, or that was skipped, are dropped silently.
func (e *CopyExecutor) Execute(ctx context.Context, plan *Plan) Result {
	collector := stats.NewCollector()
	x := &execution{
		ctx:    ctx,
		e:      e,
		events: event.Multi(collector, e.cfg.Events),
	}

	for _, op := range plan.Ops {
		if err := ctx.Err(); err != nil {
			x.fail(op, err)
			break
		}
		if x.beneathPruned(op.DstPath) {
			slog.Debug("skipping beneath pruned directory", "dst", op.DstPath)
			continue
		}

		if err := x.run(op); err != nil {
			x.fail(op, err)
			if op.Kind == CreateDir {
				x.pruned = append(x.pruned, op.DstPath)
			}
		}
	}

	x.applyDirFixups()

	return Result{Stats: collector.Snapshot(), Failures: x.failures}
}

func (x *execution) emit(e event.Event) {
	e.Timestamp = time.Now()
	x.events.Handle(e)
}

func (x *execution) fail(op Operation, err error) {
	opErr := asOpError(x.e.cfg.Verb, op.SrcPath, op.DstPath, err)
	x.failures = append(x.failures, opErr)
	x.emit(event.Event{Type: event.Failed, Src: op.SrcPath, Dst: op.DstPath, Error: opErr})
	slog.Debug("operation failed", "op", op.Kind, "src", op.SrcPath, "dst", op.DstPath, "error", err)
}

func (x *execution) beneathPruned(dst string) bool {
	for _, dir := range x.pruned {
		if strings.HasPrefix(dst, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (x *execution) run(op Operation) error {
	switch op.Kind {
	case Skip:
		if op.Reason != nil {
			return op.Reason
		}
		x.emit(event.Event{Type: event.Skipped, Src: op.SrcPath, Dst: op.DstPath})
		return nil
	case CreateDir:
		return x.createDir(op)
	case CopyFile:
		return x.copyFile(op)
	case CreateSymlink:
		return x.createSymlink(op)
	case CreateSpecial:
		return x.createSpecial(op)
	default:
		return fmt.Errorf("unknown operation %d for %s", op.Kind, op.SrcPath)
	}
}

// prepare consults the resolver for op's destination and takes a backup if
// one was decided. ok is false when the destination is to be left alone.
func (x *execution) prepare(op Operation, kind FileKind) (ConflictDecision, bool, error) {
	status, err := statDest(op.DstPath)
	if err != nil {
		return ConflictDecision{}, false, err
	}
	d, err := x.e.cfg.Resolver.Resolve(op.DstPath, kind, status)
	if err != nil {
		return ConflictDecision{}, false, err
	}
	if d.Action == SkipDest {
		x.emit(event.Event{Type: event.Skipped, Src: op.SrcPath, Dst: op.DstPath})
		return d, false, nil
	}
	if err := takeBackup(d, op.DstPath); err != nil {
		return ConflictDecision{}, false, err
	}
	if d.Action == Backup {
		x.emit(event.Event{Type: event.BackupCreated, Src: op.DstPath, Dst: d.BackupPath})
	}
	return d, true, nil
}

func (x *execution) createDir(op Operation) error {
	d, ok, err := x.prepare(op, Directory)
	if err != nil {
		return err
	}
	if !ok {
		// Whatever stands at the destination is kept, so nothing goes under it.
		x.pruned = append(x.pruned, op.DstPath)
		return nil
	}

	fix := dirFixup{op: op}
	if !d.Merge {
		if err := os.Mkdir(op.DstPath, op.Meta.Mode.Perm()); err != nil {
			return fmt.Errorf("mkdir %s: %w", op.DstPath, err)
		}
		x.emit(event.Event{Type: event.DirCreated, Src: op.SrcPath, Dst: op.DstPath})
	}

	// Children must be writable even when the source directory is not.
	info, err := os.Lstat(op.DstPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", op.DstPath, err)
	}
	if mode := info.Mode().Perm(); mode&0o700 != 0o700 {
		if err := os.Chmod(op.DstPath, mode|0o700); err != nil {
			return fmt.Errorf("chmod %s: %w", op.DstPath, err)
		}
		fix.finalMode, fix.restore = mode, true
	}

	x.fixups = append(x.fixups, fix)
	return nil
}

func (x *execution) copyFile(op Operation) error {
	d, ok, err := x.prepare(op, RegularFile)
	if err != nil || !ok {
		return err
	}

	src, err := os.Open(op.SrcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	var written int64
	err = stageAndRename(op.DstPath, func(tmp string) error {
		tmpFd, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, op.Meta.Mode.Perm())
		if err != nil {
			return fmt.Errorf("create tmp %s: %w", tmp, err)
		}

		result, err := platform.CopyFile(platform.CopyFileParams{
			Src:  src,
			Dst:  tmpFd,
			Size: op.Meta.Size,
			Wrap: x.wrapWriter(),
		})
		written = result.BytesWritten
		if err != nil {
			tmpFd.Close()
			return fmt.Errorf("copy data: %w", err)
		}
		if written != op.Meta.Size {
			tmpFd.Close()
			return fmt.Errorf("%w: wrote %d of %d bytes", ErrTruncated, written, op.Meta.Size)
		}

		if err := x.setFileMetadata(op, tmpFd); err != nil {
			tmpFd.Close()
			return err
		}
		if err := tmpFd.Close(); err != nil {
			return fmt.Errorf("close tmp %s: %w", tmp, err)
		}
		if x.e.cfg.Preserve.Has(PreserveTimestamps) {
			return setPathTimes(tmp, op.Meta.AccTime, op.Meta.ModTime, false)
		}
		return nil
	})
	if err != nil {
		return err
	}

	x.emit(event.Event{
		Type:   event.FileCopied,
		Src:    op.SrcPath,
		Dst:    op.DstPath,
		Size:   written,
		Backup: d.BackupPath,
	})
	return nil
}

func (x *execution) createSymlink(op Operation) error {
	d, ok, err := x.prepare(op, Symlink)
	if err != nil || !ok {
		return err
	}

	err = stageAndRename(op.DstPath, func(tmp string) error {
		if err := os.Symlink(op.LinkTarget, tmp); err != nil {
			return err
		}
		if x.e.cfg.Preserve.Has(PreserveOwnership) {
			if err := ignoreEPERM(unix.Lchown(tmp, int(op.Meta.UID), int(op.Meta.GID))); err != nil {
				return fmt.Errorf("lchown: %w", err)
			}
		}
		if x.e.cfg.Preserve.Has(PreserveTimestamps) {
			return setPathTimes(tmp, op.Meta.AccTime, op.Meta.ModTime, true)
		}
		return nil
	})
	if err != nil {
		return err
	}

	x.emit(event.Event{Type: event.SymlinkCreated, Src: op.SrcPath, Dst: op.DstPath, Backup: d.BackupPath})
	return nil
}

func (x *execution) createSpecial(op Operation) error {
	d, ok, err := x.prepare(op, Special)
	if err != nil || !ok {
		return err
	}

	err = stageAndRename(op.DstPath, func(tmp string) error {
		//nolint:gosec // rdev round-trips a value the kernel reported
		if err := unix.Mknod(tmp, unixMode(op.Meta.Mode), int(op.Meta.Rdev)); err != nil {
			return fmt.Errorf("mknod: %w", err)
		}
		return x.setPathMetadata(op, tmp, op.Meta.Mode.Perm(), false)
	})
	if err != nil {
		return err
	}

	x.emit(event.Event{Type: event.SpecialCreated, Src: op.SrcPath, Dst: op.DstPath, Backup: d.BackupPath})
	return nil
}

func (x *execution) wrapWriter() func(io.Writer) io.Writer {
	lim := x.e.cfg.Limiter
	if lim == nil {
		return nil
	}
	return func(w io.Writer) io.Writer {
		return newRateLimitedWriter(x.ctx, w, lim)
	}
}

// setFileMetadata applies ownership then mode to an open file. Ownership
// goes first because chown clears the set-id bits.
func (x *execution) setFileMetadata(op Operation, fd *os.File) error {
	rawFd := int(fd.Fd())
	if x.e.cfg.Preserve.Has(PreserveOwnership) {
		if err := ignoreEPERM(unix.Fchown(rawFd, int(op.Meta.UID), int(op.Meta.GID))); err != nil {
			return fmt.Errorf("fchown: %w", err)
		}
	}
	if x.e.cfg.Preserve.Has(PreserveMode) {
		if err := unix.Fchmod(rawFd, unixMode(op.Meta.Mode)&0o7777); err != nil {
			return fmt.Errorf("fchmod: %w", err)
		}
	}
	return nil
}

// setPathMetadata applies the preserved attributes to path in the order
// ownership, mode, timestamps. fallbackMode is applied when the mode is not
// preserved and restore is set.
func (x *execution) setPathMetadata(op Operation, path string, fallbackMode os.FileMode, restore bool) error {
	pres := x.e.cfg.Preserve
	if pres.Has(PreserveOwnership) {
		if err := ignoreEPERM(unix.Lchown(path, int(op.Meta.UID), int(op.Meta.GID))); err != nil {
			return fmt.Errorf("lchown: %w", err)
		}
	}
	switch {
	case pres.Has(PreserveMode):
		if err := unix.Chmod(path, unixMode(op.Meta.Mode)&0o7777); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	case restore:
		if err := os.Chmod(path, fallbackMode); err != nil {
			return fmt.Errorf("chmod: %w", err)
		}
	}
	if pres.Has(PreserveTimestamps) {
		return setPathTimes(path, op.Meta.AccTime, op.Meta.ModTime, false)
	}
	return nil
}

// applyDirFixups applies deferred directory attributes, deepest first.
func (x *execution) applyDirFixups() {
	for i := len(x.fixups) - 1; i >= 0; i-- {
		fix := x.fixups[i]
		if err := x.setPathMetadata(fix.op, fix.op.DstPath, fix.finalMode, fix.restore); err != nil {
			x.fail(fix.op, err)
		}
	}
	x.fixups = nil
}

// ignoreEPERM drops the error an unprivileged chown returns; ownership is
// preserved only where the caller is allowed to give it away.
func ignoreEPERM(err error) error {
	if errors.Is(err, unix.EPERM) {
		slog.Debug("ownership not preserved", "error", err)
		return nil
	}
	return err
}
