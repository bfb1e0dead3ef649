package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Ning0612/mirrorsync/internal/adapter"
	"github.com/Ning0612/mirrorsync/internal/adapter/local"
	"github.com/Ning0612/mirrorsync/internal/core/checksum"
	"github.com/Ning0612/mirrorsync/internal/core/filter"
	"github.com/Ning0612/mirrorsync/internal/core/outcome"
	"github.com/Ning0612/mirrorsync/internal/core/planner"
	"github.com/Ning0612/mirrorsync/internal/core/scan"
	"github.com/Ning0612/mirrorsync/internal/domain"
	"github.com/Ning0612/mirrorsync/internal/lock"
	"github.com/Ning0612/mirrorsync/internal/logger"
	"github.com/Ning0612/mirrorsync/internal/paths"
	"github.com/Ning0612/mirrorsync/internal/progress"
)

// Request is the validated input of one run
type Request struct {
	Source     string
	Dest       string
	FilterFile string
	Mode       domain.Mode
	Verbose    bool
	Options    domain.Options
}

// Result is everything a caller may report about a finished run.
// Outcome is always set; the other fields are filled as far as the run got.
type Result struct {
	Job         *domain.SyncJob
	Plan        *domain.Plan
	Status      *domain.ExecStatus
	Outcome     domain.RunOutcome
	Diagnostics []filter.Diagnostic
	StartedAt   time.Time
}

// SyncService orchestrates sync operations:
// resolve, lock, load rules, scan, plan, apply, classify.
type SyncService struct {
	locks    *lock.Manager
	reporter progress.Reporter
	hasher   *checksum.Hasher

	// open creates the adapter for a tree root
	open func(root string) (adapter.Adapter, error)
}

// NewSyncService creates a new sync service
func NewSyncService(locks *lock.Manager) (*SyncService, error) {
	if locks == nil {
		return nil, fmt.Errorf("lock manager cannot be nil")
	}
	return &SyncService{
		locks:  locks,
		hasher: checksum.NewDefault(),
		open:   openLocal,
	}, nil
}

func openLocal(root string) (adapter.Adapter, error) {
	a, err := local.New(root)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetProgressReporter sets the progress reporter for sync operations
func (s *SyncService) SetProgressReporter(reporter progress.Reporter) {
	s.reporter = reporter
}

// getReporter returns the current progress reporter or a null reporter
func (s *SyncService) getReporter() progress.Reporter {
	if s.reporter != nil {
		return s.reporter
	}
	return progress.NullReporter{}
}

// Run executes one job end to end. Errors never escape: they are folded
// into Result.Outcome.
func (s *SyncService) Run(ctx context.Context, req Request) *Result {
	res := &Result{StartedAt: time.Now()}
	st := s.run(ctx, req, res)
	res.Status = &st
	res.Outcome = outcome.Classify(st)

	log := logger.Get()
	switch res.Outcome.Class {
	case domain.OutcomeFatal:
		log.Error(outcome.Describe(res.Outcome), "code", res.Outcome.Code)
	case domain.OutcomeWithWarnings:
		log.Warn(outcome.Describe(res.Outcome), "code", res.Outcome.Code)
	default:
		log.Info(outcome.Describe(res.Outcome), "elapsed", time.Since(res.StartedAt).Round(time.Millisecond))
	}
	return res
}

func (s *SyncService) run(ctx context.Context, req Request, res *Result) domain.ExecStatus {
	log := logger.Get()

	job, err := s.resolve(req)
	if err != nil {
		return domain.ExecStatus{Err: err}
	}
	res.Job = job
	log = logger.ForRun(job.ID)
	log.Info("sync started",
		"source", job.Source.Abs(),
		"dest", job.Dest.Abs(),
		"mode", job.Mode,
	)

	key := paths.JobKey(job.Source)
	lk, err := s.locks.Acquire(key)
	if err != nil {
		var le *lock.LockError
		if errors.As(err, &le) && le.Holder != nil {
			log.Info("another run holds the lock",
				"job_key", key,
				"pid", le.Holder.PID,
				"host", le.Holder.Hostname,
				"since", le.Holder.StartTime.Format(time.RFC3339),
			)
		}
		return domain.ExecStatus{Err: err}
	}
	defer func() {
		if err := lk.Release(); err != nil {
			log.Warn("failed to release lock", "job_key", key, "error", err)
		}
	}()
	log.Debug("lock acquired", "job_key", key, "path", lk.Path())

	if !job.DryRun() {
		if err := paths.PrepareDest(job.Dest); err != nil {
			return domain.ExecStatus{Err: err}
		}
	}

	rules, diags, err := loadRules(req.FilterFile)
	if err != nil {
		return domain.ExecStatus{Err: err}
	}
	job.Rules = rules
	res.Diagnostics = diags

	if job.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Options.Timeout)
		defer cancel()
	}

	srcAdp, err := s.open(job.Source.Abs())
	if err != nil {
		return domain.ExecStatus{Err: fmt.Errorf("%w: %v", domain.ErrPathNotFound, err)}
	}
	defer srcAdp.Close()

	plan, dstAdp, partials, warnings, err := s.plan(ctx, job, srcAdp)
	if dstAdp != nil {
		defer dstAdp.Close()
	}
	if err != nil {
		return domain.ExecStatus{Err: wrapCtx(err), Warnings: warnings}
	}
	res.Plan = plan

	if job.DryRun() {
		logPlan(plan)
		return domain.ExecStatus{Warnings: warnings}
	}

	ex := &executor{src: srcAdp, dst: dstAdp, reporter: s.getReporter(), verbose: job.Verbose}
	ex.status.Warnings = warnings
	ex.removePartials(ctx, partials)
	return ex.apply(ctx, plan)
}

// resolve validates the request and builds the job. Nothing on disk is
// modified; the destination is prepared only once the lock is held.
func (s *SyncService) resolve(req Request) (*domain.SyncJob, error) {
	if req.Mode == "" {
		req.Mode = domain.ModeApply
	}
	if !req.Mode.IsValid() {
		return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrConfigInvalid, req.Mode)
	}
	if req.Options.Tolerance < 0 {
		return nil, fmt.Errorf("%w: negative mtime tolerance", domain.ErrConfigInvalid)
	}

	src, err := paths.ResolveSource(req.Source)
	if err != nil {
		return nil, err
	}
	dst, err := paths.ResolveDest(req.Dest)
	if err != nil {
		return nil, err
	}
	if src.Abs() == dst.Abs() {
		return nil, fmt.Errorf("%w: source and destination are the same directory", domain.ErrConfigInvalid)
	}

	return &domain.SyncJob{
		ID:      uuid.NewString(),
		Source:  src,
		Dest:    dst,
		Mode:    req.Mode,
		Verbose: req.Verbose,
		Options: req.Options,
	}, nil
}

func loadRules(file string) (filter.Rules, []filter.Diagnostic, error) {
	log := logger.Get()
	if file == "" {
		log.Info("no filter file given, only the metadata directory is excluded")
		return nil, nil, nil
	}

	rules, diags, err := filter.Load(file)
	if errors.Is(err, filter.ErrRulesFileMissing) {
		log.Warn("filter file not found, only the metadata directory is excluded", "file", file)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrConfigInvalid, err)
	}

	for _, d := range diags {
		log.Warn("filter line ignored", "file", file, "line", d.Line, "kind", d.Kind, "text", d.Text, "reason", d.Msg)
	}
	log.Info("filter loaded", "file", file, "rules", len(rules), "ignored", len(diags))
	return rules, diags, nil
}

// plan scans both trees and computes the change list. The destination
// adapter is nil when the destination does not exist yet (dry-run only).
func (s *SyncService) plan(ctx context.Context, job *domain.SyncJob, srcAdp adapter.Adapter) (*domain.Plan, adapter.Adapter, []string, []domain.Warning, error) {
	log := logger.Get()

	src, err := scan.Walk(ctx, srcAdp, scan.Options{Rules: job.Rules})
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("scanning source: %w", err)
	}
	warnings := append([]domain.Warning(nil), src.Warnings...)
	log.Debug("source scanned", "entries", len(src.Entries), "warnings", len(src.Warnings))

	dst := &scan.Result{
		Entries:  map[string]domain.FileInfo{},
		Excluded: map[string]domain.FileInfo{},
	}
	var dstAdp adapter.Adapter
	if _, statErr := os.Stat(job.Dest.Abs()); statErr == nil {
		a, err := s.open(job.Dest.Abs())
		if err != nil {
			return nil, nil, nil, warnings, fmt.Errorf("%w: %v", domain.ErrPathNotCreatable, err)
		}
		dstAdp = a
		dst, err = scan.Walk(ctx, dstAdp, scan.Options{
			Rules:           job.Rules,
			CollectExcluded: true,
		})
		if err != nil {
			return nil, dstAdp, nil, warnings, fmt.Errorf("scanning destination: %w", err)
		}
		warnings = append(warnings, dst.Warnings...)
		log.Debug("destination scanned", "entries", len(dst.Entries), "excluded", len(dst.Excluded))
	} else if !job.DryRun() {
		return nil, nil, nil, warnings, fmt.Errorf("%w: %v", domain.ErrPathNotCreatable, statErr)
	}

	if job.Options.Checksum && dstAdp != nil {
		if err := scan.FillChecksums(ctx, s.hasher, srcAdp, dstAdp, src, dst); err != nil {
			return nil, dstAdp, nil, warnings, err
		}
	}

	plan := planner.New(job.Options).Plan(src, dst)
	log.Info("sync plan created",
		"dirs_to_create", plan.Stats.DirsToCreate,
		"files_to_create", plan.Stats.FilesToCreate,
		"files_to_update", plan.Stats.FilesToUpdate,
		"to_delete", plan.Stats.ToDelete,
		"bytes_to_sync", plan.Stats.BytesToSync,
	)
	return plan, dstAdp, dst.Partials, warnings, nil
}

func logPlan(plan *domain.Plan) {
	log := logger.Get()
	for _, it := range plan.Items {
		log.Info("would "+string(it.Kind), "path", it.Path, "type", it.Type, "reason", it.Reason)
	}
	log.Info("dry run, destination not modified", "changes", plan.Len())
}

// wrapCtx tags cancellation so it is reported as a signal
func wrapCtx(err error) error {
	if errors.Is(err, context.Canceled) && !errors.Is(err, domain.ErrInterrupted) {
		return fmt.Errorf("%w: %w", domain.ErrInterrupted, err)
	}
	return err
}
