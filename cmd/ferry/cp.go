package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/ferry/internal/engine"
	"github.com/bamsammich/ferry/internal/ui"
)

// copyFlags are the flags of cp.
type copyFlags struct {
	commonFlags
	preserve  engine.Preserve
	symlinks  engine.SymlinkPolicy
	recursive bool
	oneFS     bool
}

func (f *copyFlags) register(fs *pflag.FlagSet, verb string) {
	f.commonFlags.register(fs, verb)

	fs.BoolVarP(&f.recursive, "recursive", "r", false, "copy directories recursively")
	fs.BoolVarP(&f.recursive, "recursive-R", "R", false, "same as -r")
	_ = fs.MarkHidden("recursive-R") //nolint:errcheck // flag registered above

	a := fs.VarPF(&archiveFlag{opts: f}, "archive", "a", "same as -R -P --preserve=all")
	a.NoOptDefVal = "true"

	p := fs.VarPF(&preserveFlag{target: &f.preserve}, "preserve", "p",
		"preserve the listed attributes (mode, ownership, timestamps, all)")
	p.NoOptDefVal = "mode,ownership,timestamps"
	fs.Var(&preserveFlag{target: &f.preserve, remove: true}, "no-preserve",
		"do not preserve the listed attributes")

	addModeFlag(fs, &f.symlinks, engine.FollowCommandLineOnly, engine.DontFollow,
		"dereference-command-line", "H", "follow symbolic links given on the command line")
	addModeFlag(fs, &f.symlinks, engine.FollowAll, engine.DontFollow,
		"dereference", "L", "always follow symbolic links in SOURCE")
	addModeFlag(fs, &f.symlinks, engine.DontFollow, engine.DontFollow,
		"no-dereference", "P", "never follow symbolic links in SOURCE")

	fs.BoolVarP(&f.oneFS, "one-file-system", "x", false, "stay on this file system")
}

func (f *copyFlags) copyOptions(fs *pflag.FlagSet) (engine.CopyOptions, error) {
	opts, err := f.options(fs)
	if err != nil {
		return opts, err
	}
	opts.Recursive = f.recursive
	opts.Symlinks = f.symlinks
	opts.Preserve = f.preserve
	opts.OneFileSystem = f.oneFS
	return opts, nil
}

func newCopyCmd(name string) *cobra.Command {
	var flags copyFlags

	cmd := &cobra.Command{
		Use:   name + " [flags] SOURCE... DEST",
		Short: "Copy files and directories",
		Long: `Copy SOURCE to DEST, or multiple SOURCEs into a directory.

Every file is written to a temporary name beside its destination and renamed
into place, so an interrupted copy never leaves a half-written file behind.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy(cmd, args, &flags)
		},
	}
	flags.register(cmd.Flags(), "copy")
	return cmd
}

func runCopy(cmd *cobra.Command, args []string, flags *copyFlags) error {
	if flags.version {
		printVersion(os.Stdout, cmd.Name())
		return nil
	}

	s, err := startSession(cmd, &flags.commonFlags, ui.CopyMode)
	if err != nil {
		return err
	}

	fs := cmd.Flags()
	attrGiven := fs.Changed("preserve") || fs.Changed("no-preserve") || fs.Changed("archive")
	if d := s.defaults.Preserve; d != nil && !attrGiven {
		p, err := engine.ParsePreserve(*d)
		if err != nil {
			return s.operandError(err)
		}
		flags.preserve |= p
	}

	opts, err := flags.copyOptions(fs)
	if err != nil {
		return s.operandError(err)
	}
	targets, err := engine.ResolveTargets(args, opts.TargetDir, opts.NoTargetDir)
	if err != nil {
		return s.operandError(err)
	}

	slog.Debug("starting copy",
		"targets", len(targets),
		"recursive", opts.Recursive,
		"symlinks", opts.Symlinks,
		"preserve", opts.Preserve,
		"backup", opts.Backup.Method,
	)

	env := s.env()
	res := runEngine(cmd.Context(), func(ctx context.Context) engine.Result {
		return engine.Copy(ctx, targets, opts, env)
	})
	return s.finish(res)
}
