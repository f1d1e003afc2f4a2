package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bamsammich/ferry/internal/engine"
	"github.com/bamsammich/ferry/internal/ui"
)

func newMoveCmd(name string) *cobra.Command {
	var flags copyFlags

	cmd := &cobra.Command{
		Use:   name + " [flags] SOURCE... DEST",
		Short: "Move (rename) files and directories",
		Long: `Rename SOURCE to DEST, or move multiple SOURCEs into a directory.

When SOURCE and DEST are on different file systems the tree is copied with
every attribute preserved and the source is removed only once the copy has
fully succeeded. The recursion, preservation and symlink flags of cp are
accepted and have no effect: a move always takes the whole tree as it is.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMove(cmd, args, &flags)
		},
	}
	flags.register(cmd.Flags(), "move")
	return cmd
}

func runMove(cmd *cobra.Command, args []string, flags *copyFlags) error {
	if flags.version {
		printVersion(os.Stdout, cmd.Name())
		return nil
	}

	s, err := startSession(cmd, &flags.commonFlags, ui.MoveMode)
	if err != nil {
		return err
	}

	copyOpts, err := flags.copyOptions(cmd.Flags())
	if err != nil {
		return s.operandError(err)
	}
	opts := engine.MoveOptions{CopyOptions: copyOpts, TryRename: true}

	targets, err := engine.ResolveTargets(args, opts.TargetDir, opts.NoTargetDir)
	if err != nil {
		return s.operandError(err)
	}

	slog.Debug("starting move", "targets", len(targets), "backup", opts.Backup.Method)

	env := s.env()
	if s.isTTY && !flags.verbose {
		env.Progress = ui.NewLineProgress(os.Stderr, ui.TermWidth(os.Stderr.Fd()))
	}
	res := runEngine(cmd.Context(), func(ctx context.Context) engine.Result {
		return engine.Move(ctx, targets, opts, env)
	})
	return s.finish(res)
}
