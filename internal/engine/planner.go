package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// TraversalPlanner walks a source tree depth-first and produces a Plan.
// Descent uses an explicit stack, so deep or adversarial trees cannot
// exhaust the goroutine stack.
type TraversalPlanner struct {
	Classifier    PathClassifier
	Verb          string // "copy" unless set; used in error messages
	Recursive     bool
	OneFileSystem bool
}

// NewPlanner builds a planner from copy options.
func NewPlanner(opts CopyOptions) *TraversalPlanner {
	return &TraversalPlanner{
		Classifier:    PathClassifier{Policy: opts.Symlinks},
		Recursive:     opts.Recursive,
		OneFileSystem: opts.OneFileSystem,
	}
}

// pending is one entry waiting on the work stack.
type pending struct {
	visited *VisitedSet // directories above this entry
	src     string
	dst     string
	rel     string
}

// Plan builds the operation plan for copying src to dst. A returned error
// means nothing may be executed for this source. Failures on individual
// entries inside the tree are recorded as Skip operations carrying a Reason
// and do not stop the walk.
func (p *TraversalPlanner) Plan(ctx context.Context, src, dst string) (*Plan, error) {
	root, err := p.Classifier.Classify(src, true, nil)
	if err != nil {
		return nil, err
	}

	if root.Effective == Directory && !p.Recursive {
		return nil, newOpError(p.verb(), src, dst, ErrIsDirectory)
	}
	if err := checkSameFile(root, dst); err != nil {
		return nil, newOpError(p.verb(), src, dst, err)
	}
	if root.Effective == Directory {
		if err := checkIntoItself(src, dst); err != nil {
			return nil, newOpError(p.verb(), src, dst, err)
		}
	}

	plan := &Plan{Src: src, Dst: dst, Recursive: p.Recursive}
	rootDev := root.Meta.DevIno.Dev

	stack := []pending{{src: src, dst: dst}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return plan, err
		}

		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		cl := root
		if item.rel != "" {
			cl, err = p.Classifier.Classify(item.src, false, item.visited)
			if err != nil {
				plan.Ops = append(plan.Ops, p.skipOp(item, err))
				slog.Debug("plan skip", "src", item.src, "error", err)
				continue
			}
		}

		switch cl.Effective {
		case Directory:
			plan.Ops = append(plan.Ops, Operation{
				Kind:    CreateDir,
				SrcPath: item.src,
				DstPath: item.dst,
				RelPath: item.rel,
				Meta:    cl.Meta,
			})

			if p.OneFileSystem && item.rel != "" && cl.Meta.DevIno.Dev != rootDev {
				slog.Debug("not crossing filesystem boundary", "src", item.src)
				continue
			}

			entries, err := os.ReadDir(item.src)
			if err != nil {
				plan.Ops = append(plan.Ops, p.skipOp(item, newOpError("read directory", item.src, "", err)))
				continue
			}

			visited := item.visited.With(cl.Meta.DevIno)
			for i := len(entries) - 1; i >= 0; i-- {
				name := entries[i].Name()
				stack = append(stack, pending{
					src:     filepath.Join(item.src, name),
					dst:     filepath.Join(item.dst, name),
					rel:     filepath.Join(item.rel, name),
					visited: visited,
				})
			}

		case RegularFile:
			plan.Ops = append(plan.Ops, Operation{
				Kind:    CopyFile,
				SrcPath: item.src,
				DstPath: item.dst,
				RelPath: item.rel,
				Meta:    cl.Meta,
			})

		case Symlink:
			plan.Ops = append(plan.Ops, Operation{
				Kind:       CreateSymlink,
				SrcPath:    item.src,
				DstPath:    item.dst,
				RelPath:    item.rel,
				LinkTarget: cl.LinkTarget,
				Meta:       cl.Meta,
			})

		case Special:
			if cl.Meta.Mode&os.ModeSocket != 0 {
				// A socket only means something to the process listening on it.
				slog.Debug("not copying socket", "src", item.src)
				plan.Ops = append(plan.Ops, Operation{
					Kind:    Skip,
					SrcPath: item.src,
					DstPath: item.dst,
					RelPath: item.rel,
					Meta:    cl.Meta,
				})
				continue
			}
			plan.Ops = append(plan.Ops, Operation{
				Kind:    CreateSpecial,
				SrcPath: item.src,
				DstPath: item.dst,
				RelPath: item.rel,
				Meta:    cl.Meta,
			})
		}
	}

	return plan, nil
}

func (p *TraversalPlanner) verb() string {
	if p.Verb == "" {
		return "copy"
	}
	return p.Verb
}

func (p *TraversalPlanner) skipOp(item pending, err error) Operation {
	return Operation{
		Kind:    Skip,
		SrcPath: item.src,
		DstPath: item.dst,
		RelPath: item.rel,
		Reason:  asOpError(p.verb(), item.src, item.dst, err),
	}
}

// checkSameFile rejects a destination that already is the source.
func checkSameFile(src Classification, dst string) error {
	var (
		info os.FileInfo
		err  error
	)
	if src.Kind == Symlink && !src.Followed {
		info, err = os.Lstat(dst)
	} else {
		info, err = os.Stat(dst)
	}
	if err != nil {
		return nil //nolint:nilerr // an unreadable destination is the executor's problem
	}
	meta, err := metadataFromInfo(info)
	if err != nil {
		return nil //nolint:nilerr // unknown stat type: cannot compare
	}
	if meta.DevIno == src.Meta.DevIno {
		return ErrSameFile
	}
	return nil
}

// checkIntoItself rejects copying a directory into its own subtree.
func checkIntoItself(src, dst string) error {
	srcReal := resolvePath(src)
	dstReal := resolvePath(dst)
	if dstReal == srcReal || strings.HasPrefix(dstReal, srcReal+string(filepath.Separator)) {
		return ErrIntoItself
	}
	return nil
}

// resolvePath returns an absolute, symlink-free form of path. The final
// component may not exist yet.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	} else if !errors.Is(err, os.ErrNotExist) {
		return abs
	}
	parent, err := filepath.EvalSymlinks(filepath.Dir(abs))
	if err != nil {
		return abs
	}
	return filepath.Join(parent, filepath.Base(abs))
}
