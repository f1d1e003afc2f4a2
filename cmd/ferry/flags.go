package main

import (
	"strconv"

	"github.com/spf13/pflag"

	"github.com/bamsammich/ferry/internal/backup"
	"github.com/bamsammich/ferry/internal/engine"
)

// conflictMode is what to do about existing destinations. The last of -f,
// -i and -n on the command line wins.
type conflictMode int

const (
	conflictDefault conflictMode = iota
	conflictForce
	conflictInteractive
	conflictNoClobber
)

// modeFlag is a boolean flag that stores mode into a shared target, so the
// flags writing the same target override each other in command-line order.
type modeFlag[T comparable] struct {
	target *T
	mode   T
	zero   T
	set    bool
}

func (f *modeFlag[T]) String() string {
	return strconv.FormatBool(f.set && *f.target == f.mode)
}

func (f *modeFlag[T]) Set(val string) error {
	on, err := strconv.ParseBool(val)
	if err != nil {
		return err
	}
	f.set = true
	switch {
	case on:
		*f.target = f.mode
	case *f.target == f.mode:
		*f.target = f.zero
	}
	return nil
}

func (*modeFlag[T]) Type() string { return "bool" }

func addModeFlag[T comparable](fs *pflag.FlagSet, target *T, mode, zero T, name, short, usage string) {
	flag := fs.VarPF(&modeFlag[T]{target: target, mode: mode, zero: zero}, name, short, usage)
	flag.NoOptDefVal = "true"
}

// preserveFlag adds attributes to a shared set; --no-preserve removes them.
type preserveFlag struct {
	target *engine.Preserve
	remove bool
}

func (f *preserveFlag) String() string {
	if f.remove || f.target == nil {
		return ""
	}
	return f.target.String()
}

func (f *preserveFlag) Set(val string) error {
	p, err := engine.ParsePreserve(val)
	if err != nil {
		return err
	}
	if f.remove {
		*f.target &^= p
	} else {
		*f.target |= p
	}
	return nil
}

func (*preserveFlag) Type() string { return "list" }

// archiveFlag expands -a into -R -P --preserve=all at its position on the
// command line, so a later -L still takes effect.
type archiveFlag struct {
	opts *copyFlags
}

func (f *archiveFlag) String() string { return "false" }

func (f *archiveFlag) Set(val string) error {
	on, err := strconv.ParseBool(val)
	if err != nil || !on {
		return err
	}
	f.opts.recursive = true
	f.opts.symlinks = engine.DontFollow
	f.opts.preserve |= engine.PreserveAll
	return nil
}

func (*archiveFlag) Type() string { return "bool" }

// backupDefault stands for "no method given": VERSION_CONTROL decides,
// falling back to existing.
const backupDefault = "default"

// backupFlag enables backups with an optional method.
type backupFlag struct {
	method backup.Method
	set    bool
}

func (f *backupFlag) String() string {
	if !f.set {
		return ""
	}
	return f.method.String()
}

func (f *backupFlag) Set(val string) error {
	if val == backupDefault {
		val = ""
	}
	m, err := backup.ParseMethod(val)
	if err != nil {
		return err
	}
	f.method, f.set = m, true
	return nil
}

func (*backupFlag) Type() string { return "method" }
