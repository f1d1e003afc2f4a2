package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Action is what happens to an existing destination.
type Action int

const (
	Proceed Action = iota
	SkipDest
	Backup
)

func (a Action) String() string {
	switch a {
	case Proceed:
		return "proceed"
	case SkipDest:
		return "skip"
	case Backup:
		return "backup"
	default:
		return "unknown"
	}
}

// ConflictDecision is the resolved outcome for one destination path.
type ConflictDecision struct {
	BackupPath string // Backup only
	Action     Action
	Replace    bool // the existing entry is replaced rather than merged into
	Merge      bool // directory onto directory
}

// DestStatus describes what currently occupies a destination path.
type DestStatus struct {
	Kind    FileKind
	Present bool
}

// statDest lstats dst. A missing destination is not an error.
func statDest(dst string) (DestStatus, error) {
	info, err := os.Lstat(dst)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DestStatus{}, nil
		}
		return DestStatus{}, err
	}
	return DestStatus{Present: true, Kind: kindFromMode(info.Mode())}, nil
}

// ConflictResolver decides what to do with existing destinations. Decisions
// are cached per destination path for the resolver's lifetime, which is one
// invocation, so the operator is never asked twice about the same path.
type ConflictResolver struct {
	prompter Prompter
	cache    map[string]ConflictDecision
	created  map[string]struct{}
	opts     CopyOptions
}

// NewConflictResolver creates a resolver. A nil prompter answers no.
func NewConflictResolver(opts CopyOptions, prompter Prompter) *ConflictResolver {
	if prompter == nil {
		prompter = denyPrompter{}
	}
	return &ConflictResolver{
		opts:     opts,
		prompter: prompter,
		cache:    make(map[string]ConflictDecision),
		created:  make(map[string]struct{}),
	}
}

// MarkCreated records that a top-level destination was written by this
// invocation, whether or not something stood there before. A later source
// mapping onto it is refused.
func (r *ConflictResolver) MarkCreated(dst string) {
	r.created[dst] = struct{}{}
}

// Resolve decides the fate of dst given its current status and the kind of
// entry about to be written there.
func (r *ConflictResolver) Resolve(dst string, src FileKind, status DestStatus) (ConflictDecision, error) {
	if !status.Present {
		return ConflictDecision{Action: Proceed}, nil
	}
	if _, ok := r.created[dst]; ok && (src != Directory || status.Kind != Directory) {
		return ConflictDecision{}, ErrJustCreated
	}
	if d, ok := r.cache[dst]; ok {
		if d.Action != Backup {
			return d, nil
		}
		// The previous backup may now occupy the name picked last time.
		name, err := r.opts.Backup.Name(dst)
		if err != nil {
			return ConflictDecision{}, err
		}
		d.BackupPath = name
		return d, nil
	}

	d, err := r.decide(dst, src, status)
	if err != nil {
		return ConflictDecision{}, err
	}
	r.cache[dst] = d
	slog.Debug("conflict resolved", "dst", dst, "action", d.Action, "replace", d.Replace, "merge", d.Merge)
	return d, nil
}

func (r *ConflictResolver) decide(dst string, src FileKind, status DestStatus) (ConflictDecision, error) {
	srcDir := src == Directory
	dstDir := status.Kind == Directory
	if srcDir && dstDir {
		if !r.opts.Recursive {
			return ConflictDecision{}, ErrIsDirectory
		}
		return ConflictDecision{Action: Proceed, Merge: true}, nil
	}
	if r.opts.NoClobber {
		return ConflictDecision{Action: SkipDest}, nil
	}
	switch {
	case srcDir:
		return ConflictDecision{}, ErrOverwriteNonDir
	case dstDir:
		return ConflictDecision{}, ErrOverwriteDir
	}

	if r.opts.Interactive && !r.opts.Force && !r.prompter.PromptOverwrite(dst) {
		return ConflictDecision{Action: SkipDest}, nil
	}
	if r.opts.Force {
		return ConflictDecision{Action: Proceed, Replace: true}, nil
	}
	if r.opts.Backup.Enabled() {
		name, err := r.opts.Backup.Name(dst)
		if err != nil {
			return ConflictDecision{}, err
		}
		return ConflictDecision{Action: Backup, BackupPath: name, Replace: true}, nil
	}
	if r.opts.Interactive {
		return ConflictDecision{Action: Proceed, Replace: true}, nil
	}
	return ConflictDecision{}, ErrDestinationExists
}

// takeBackup moves the existing destination aside. It is a no-op when the
// destination has already gone.
func takeBackup(d ConflictDecision, dst string) error {
	if d.Action != Backup {
		return nil
	}
	if err := os.Rename(dst, d.BackupPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("backup %s -> %s: %w", dst, d.BackupPath, err)
	}
	slog.Debug("backup taken", "dst", dst, "backup", d.BackupPath)
	return nil
}
