package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/ferry/internal/backup"
	"github.com/bamsammich/ferry/internal/config"
	"github.com/bamsammich/ferry/internal/engine"
	"github.com/bamsammich/ferry/internal/event"
	"github.com/bamsammich/ferry/internal/ui"
)

// commonFlags are the flags cp and mv share.
type commonFlags struct {
	backup      backupFlag
	suffix      string
	targetDir   string
	bwlimit     string
	logFile     string
	conflict    conflictMode
	noTargetDir bool
	verbose     bool
	version     bool
}

func (c *commonFlags) register(fs *pflag.FlagSet, verb string) {
	addModeFlag(fs, &c.conflict, conflictForce, conflictDefault,
		"force", "f", "replace existing destinations without asking")
	addModeFlag(fs, &c.conflict, conflictInteractive, conflictDefault,
		"interactive", "i", "prompt before overwrite")
	addModeFlag(fs, &c.conflict, conflictNoClobber, conflictDefault,
		"no-clobber", "n", "do not overwrite an existing file")

	b := fs.VarPF(&c.backup, "backup", "b",
		"back up each existing destination (none, numbered, existing, simple; default $VERSION_CONTROL or existing)")
	b.NoOptDefVal = backupDefault

	fs.StringVarP(&c.suffix, "suffix", "S", "", "backup suffix (default $SIMPLE_BACKUP_SUFFIX or ~)")
	fs.StringVarP(&c.targetDir, "target-directory", "t", "", verb+" every SOURCE into DIRECTORY")
	fs.BoolVarP(&c.noTargetDir, "no-target-directory", "T", false, "treat DEST as a normal file")
	fs.BoolVarP(&c.verbose, "verbose", "v", false, "explain what is being done")
	fs.StringVar(&c.bwlimit, "bwlimit", "", "bandwidth limit per second (e.g. 100M, 1G)")
	fs.StringVar(&c.logFile, "log", "", "write structured JSON log to FILE")
	fs.BoolVar(&c.version, "version", false, "print version and exit")
}

// applyDefaults fills in config file defaults for flags not given on the
// command line.
func (c *commonFlags) applyDefaults(fs *pflag.FlagSet, d config.DefaultsConfig) error {
	if !fs.Changed("backup") && d.Backup != nil {
		if err := c.backup.Set(*d.Backup); err != nil {
			return fmt.Errorf("config backup: %w", err)
		}
	}
	if !fs.Changed("suffix") && d.Suffix != nil {
		c.suffix = *d.Suffix
	}
	if !fs.Changed("bwlimit") && d.BWLimit != nil {
		c.bwlimit = *d.BWLimit
	}
	if !fs.Changed("verbose") && d.Verbose != nil {
		c.verbose = *d.Verbose
	}
	conflictGiven := fs.Changed("force") || fs.Changed("interactive") || fs.Changed("no-clobber")
	if !conflictGiven && d.Interactive != nil && *d.Interactive {
		c.conflict = conflictInteractive
	}
	return nil
}

// options converts the shared flags into engine options.
func (c *commonFlags) options(fs *pflag.FlagSet) (engine.CopyOptions, error) {
	opts := engine.CopyOptions{
		TargetDir:   c.targetDir,
		NoTargetDir: c.noTargetDir,
		Verbose:     c.verbose,
	}

	switch c.conflict {
	case conflictForce:
		opts.Force = true
	case conflictInteractive:
		opts.Interactive = true
	case conflictNoClobber:
		opts.NoClobber = true
	case conflictDefault:
	}

	// A suffix on its own asks for backups.
	if !c.backup.set && fs.Changed("suffix") {
		if err := c.backup.Set(backupDefault); err != nil {
			return opts, err
		}
	}
	if c.backup.set {
		suffix := c.suffix
		if suffix == "" {
			suffix = backup.SuffixFromEnv()
		}
		opts.Backup = backup.Policy{Method: c.backup.method, Suffix: suffix}
	}

	if c.bwlimit != "" {
		n, err := config.ParseSize(c.bwlimit)
		if err != nil {
			return opts, fmt.Errorf("invalid --bwlimit: %w", err)
		}
		opts.BWLimit = n
	}
	return opts, nil
}

// session is the per-invocation runtime shared by cp and mv: logging,
// event presentation and the operator prompt.
type session struct {
	presenter *ui.Presenter
	defaults  config.DefaultsConfig
	eventLog  *slog.Logger // nil without --log
	logFile   io.Closer
	program   string
	isTTY     bool
}

// startSession loads the config file, applies its defaults and sets up
// logging and presentation.
func startSession(cmd *cobra.Command, c *commonFlags, mode ui.Mode) (*session, error) {
	fs := cmd.Flags()

	cfg, cfgErr := config.Load()
	if err := c.applyDefaults(fs, cfg.Defaults); err != nil {
		return nil, err
	}
	ui.ApplyTheme(cfg.Theme)

	s := &session{
		program:  cmd.Name(),
		defaults: cfg.Defaults,
		isTTY:    ui.IsTTY(os.Stderr.Fd()),
	}

	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	if c.logFile != "" {
		lf, err := os.Create(c.logFile)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
		handler = ui.NewMultiHandler(handler, jsonHandler)
		s.logFile = lf
		s.eventLog = slog.New(jsonHandler)
	}
	slog.SetDefault(slog.New(handler))

	if cfgErr != nil {
		slog.Warn("failed to load config", "path", config.Path(), "error", cfgErr)
	}

	s.presenter = ui.NewPresenter(ui.Config{
		Out:     os.Stdout,
		ErrOut:  os.Stderr,
		Program: s.program,
		Mode:    mode,
		Verbose: c.verbose,
		Color:   s.isTTY,
	})
	return s, nil
}

// env assembles the engine collaborators for this session.
func (s *session) env() engine.Env {
	var events event.Handler = s.presenter
	if s.eventLog != nil {
		events = event.Multi(s.presenter, event.HandlerFunc(s.logEvent))
	}
	return engine.Env{
		Events:   events,
		Prompter: ui.NewLinePrompter(s.program, os.Stdin, os.Stderr),
	}
}

func (s *session) logEvent(e event.Event) {
	attrs := []slog.Attr{
		slog.String("type", e.Type.String()),
		slog.String("src", e.Src),
		slog.String("dst", e.Dst),
	}
	if e.Size > 0 {
		attrs = append(attrs, slog.Int64("size", e.Size))
	}
	if e.Backup != "" {
		attrs = append(attrs, slog.String("backup", e.Backup))
	}
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}
	s.eventLog.LogAttrs(context.Background(), slog.LevelInfo, "ferry.event", attrs...)
}

// finish records the run summary and maps the result onto an exit status.
func (s *session) finish(res engine.Result) error {
	if s.eventLog != nil {
		s.eventLog.Info("ferry.summary", "summary", ui.Summary(res.Stats), "stats", res.Stats.String())
	}
	s.closeLog()
	if !res.OK() {
		slog.Debug("finished with failures", "count", len(res.Failures))
		return &exitError{code: 1}
	}
	return nil
}

// runEngine runs fn under a context cancelled by SIGINT or SIGTERM. Temp
// files left by an interrupted run are removed before returning.
func runEngine(parent context.Context, fn func(context.Context) engine.Result) engine.Result {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := fn(ctx)
	if ctx.Err() != nil {
		n := engine.CleanupTmpFiles()
		slog.Debug("interrupted", "tmp_files_removed", n)
	}
	return res
}

// operandError reports an argument error the way cp and mv do and fails
// the run.
func (s *session) operandError(err error) error {
	s.presenter.Errorf("%v", err)
	fmt.Fprintf(os.Stderr, "Try '%s --help' for more information.\n", s.program)
	s.closeLog()
	return &exitError{code: 1}
}

func (s *session) closeLog() {
	if s.logFile == nil {
		return
	}
	if err := s.logFile.Close(); err != nil {
		slog.Warn("close log file", "error", err)
	}
	s.logFile = nil
}

func printVersion(w io.Writer, program string) {
	fmt.Fprintf(w, "%s (ferry) %s\n", program, version)
}
