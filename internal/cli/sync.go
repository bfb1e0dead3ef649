package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Ning0612/mirrorsync/internal/domain"
	"github.com/Ning0612/mirrorsync/internal/interactive"
	"github.com/Ning0612/mirrorsync/internal/lock"
	"github.com/Ning0612/mirrorsync/internal/logger"
	"github.com/Ning0612/mirrorsync/internal/progress"
	"github.com/Ning0612/mirrorsync/internal/report"
	"github.com/Ning0612/mirrorsync/internal/service"
)

// syncFlags holds the flags that are not config overrides
type syncFlags struct {
	dryRun      bool
	interactive bool
}

func (a *App) newSyncCommand() *cobra.Command {
	var f syncFlags
	cmd := &cobra.Command{
		Use:   "sync SOURCE DEST",
		Short: "Mirror SOURCE onto DEST",
		Long: `Mirror SOURCE onto DEST.

Included source entries that are missing or differ (size, or mtime beyond
the tolerance) are copied; destination entries without an included source
counterpart are deleted after every copy has finished. Excluded destination
entries are kept unless --delete-excluded is given. The .git directory is
never touched.

Exit status is 0 on success, on success with warnings (23 partial, 24
vanished) and when another run holds the lock. Otherwise it is 1 for bad
configuration, 2 when SOURCE is missing, 3 when DEST is not writable, and
11, 20 or 30 for file I/O errors, signals and timeouts.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := domain.ModeApply
			if f.dryRun {
				mode = domain.ModeDryRun
			}
			return a.runSync(cmd.Context(), args[0], args[1], mode, f.interactive)
		},
	}

	addSyncFlags(cmd)
	cmd.Flags().BoolVarP(&f.dryRun, "dry-run", "n", false, "show what would change without touching DEST")
	cmd.Flags().Bool("progress", false, "show a progress bar when stdout is a terminal")
	cmd.Flags().BoolVarP(&f.interactive, "interactive", "i", false, "offer to resume an interrupted run and wait for a key before exiting")
	bindFlag(cmd.Flags(), "progress", "progress")
	return cmd
}

func (a *App) newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan SOURCE DEST",
		Short: "Show the changes sync would make",
		Long:  `Compute and log the change plan for SOURCE and DEST without modifying DEST. Same as sync --dry-run.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSync(cmd.Context(), args[0], args[1], domain.ModeDryRun, false)
		},
	}
	addSyncFlags(cmd)
	return cmd
}

// addSyncFlags registers the flags that override sync config keys
func addSyncFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringP("filter", "f", "", "include/exclude rule file, one +pattern or -pattern per line")
	fs.BoolP("checksum", "c", false, "compare content hashes of files with equal size")
	fs.Bool("delete-excluded", false, "also delete excluded entries from DEST")
	fs.Duration("tolerance", 0, "mtime difference still treated as equal (default 2s)")
	fs.Duration("timeout", 0, "abort the run after this long (0 = no limit)")
	fs.String("report", "", "write a YAML run report to this file")

	bindFlag(fs, "filter", "filter_file")
	bindFlag(fs, "checksum", "checksum")
	bindFlag(fs, "delete-excluded", "delete_excluded")
	bindFlag(fs, "tolerance", "mtime_tolerance")
	bindFlag(fs, "timeout", "timeout")
	bindFlag(fs, "report", "report_file")
}

func (a *App) runSync(ctx context.Context, source, dest string, mode domain.Mode, interactiveMode bool) error {
	locks, err := lock.New(a.cfg.LockDir)
	if err != nil {
		return err
	}
	svc, err := service.NewSyncService(locks)
	if err != nil {
		return err
	}

	req := service.Request{
		Source:     source,
		Dest:       dest,
		FilterFile: a.cfg.FilterFile,
		Mode:       mode,
		Verbose:    a.verbose,
		Options:    a.cfg.Options(),
	}

	var session *interactive.Session
	if interactiveMode {
		session = interactive.New(a.stdin, a.stdout)
	}

	for {
		svc.SetProgressReporter(a.reporter(mode))
		res := a.runOnce(ctx, svc, req)

		if session.AfterRun(res.Outcome) == interactive.ActionResume {
			logger.Get().Info("resuming", "source", source, "dest", dest)
			continue
		}
		if code := res.Outcome.ExitCode(); code != domain.ExitOK {
			return &ExitError{Code: code}
		}
		return nil
	}
}

// runOnce runs one attempt under its own signal scope so that an
// interrupted attempt can be resumed.
func (a *App) runOnce(ctx context.Context, svc *service.SyncService, req service.Request) *service.Result {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := svc.Run(ctx, req)
	a.writeReport(res)
	return res
}

func (a *App) reporter(mode domain.Mode) progress.Reporter {
	if mode == domain.ModeDryRun {
		return progress.NullReporter{}
	}
	out, ok := a.stdout.(*os.File)
	if !ok {
		return progress.NullReporter{}
	}
	return progress.Select(a.cfg.Progress, out)
}

func (a *App) writeReport(res *service.Result) {
	if a.cfg.ReportFile == "" {
		return
	}
	r := report.New(res.Job, res.Plan, res.Status, res.Outcome, res.StartedAt)
	if err := report.Write(a.cfg.ReportFile, r); err != nil {
		logger.Get().Warn("failed to write report", "path", a.cfg.ReportFile, "error", err)
		return
	}
	logger.Get().Debug("report written", "path", a.cfg.ReportFile, "run_id", r.RunID)
}
