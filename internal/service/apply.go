package service

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/Ning0612/mirrorsync/internal/adapter"
	"github.com/Ning0612/mirrorsync/internal/domain"
	"github.com/Ning0612/mirrorsync/internal/logger"
	"github.com/Ning0612/mirrorsync/internal/progress"
)

// errSourceVanished marks a source entry that disappeared between the scan
// and its transfer.
var errSourceVanished = errors.New("source vanished")

// executor applies a plan to the destination adapter
type executor struct {
	src      adapter.Adapter
	dst      adapter.Adapter
	reporter progress.Reporter
	status   domain.ExecStatus

	// verbose logs every applied item at info level
	verbose bool
}

// removePartials deletes staging files left by an interrupted run.
// Failures are logged and otherwise ignored; the next run retries.
func (e *executor) removePartials(ctx context.Context, partials []string) {
	log := logger.Get()
	for _, p := range partials {
		if err := e.dst.Delete(ctx, p); err != nil && !errors.Is(err, domain.ErrNotFound) {
			log.Warn("failed to remove stale partial file", "path", p, "error", err)
			continue
		}
		log.Debug("removed stale partial file", "path", p)
	}
}

// apply executes items in plan order. Plans order every create and update
// before the first delete, so deletions only start once all writes are done.
func (e *executor) apply(ctx context.Context, plan *domain.Plan) domain.ExecStatus {
	log := logger.Get()
	e.reporter.SetTotal(plan.Stats.FilesToCreate+plan.Stats.FilesToUpdate, plan.Stats.BytesToSync)
	defer e.reporter.Finish()

	for _, item := range plan.Items {
		if err := ctx.Err(); err != nil {
			e.status.Err = wrapCtx(err)
			return e.status
		}

		err := e.applyItem(ctx, item)
		switch {
		case err == nil:
			e.status.Applied = append(e.status.Applied, item)
			if e.verbose {
				log.Info(string(item.Kind), "path", item.Path, "type", item.Type)
			} else {
				log.Debug(string(item.Kind), "path", item.Path, "type", item.Type)
			}

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			e.status.Err = wrapCtx(err)
			return e.status

		case errors.Is(err, domain.ErrAttrNotPreserved):
			e.status.Applied = append(e.status.Applied, item)
			e.warn(item, domain.CodePartial, err)

		case errors.Is(err, errSourceVanished):
			e.warn(item, domain.CodeVanished, err)

		default:
			e.status.Err = &domain.TransferError{
				Op:   item.Kind,
				Path: item.Path,
				Code: domain.CodeFileIO,
				Err:  err,
			}
			log.Error("transfer failed", "op", item.Kind, "path", item.Path, "error", err)
			return e.status
		}
	}

	return e.status
}

func (e *executor) warn(item domain.ChangeItem, code int, err error) {
	e.status.Warnings = append(e.status.Warnings, domain.Warning{
		Path: item.Path,
		Op:   item.Kind,
		Code: code,
		Err:  err,
	})
	logger.Get().Warn("skipped "+string(item.Kind), "path", item.Path, "code", code, "error", err)
}

func (e *executor) applyItem(ctx context.Context, item domain.ChangeItem) error {
	if item.Kind == domain.ChangeDelete {
		return e.remove(ctx, item)
	}

	if item.Replace {
		if err := e.dst.RemoveAll(ctx, item.Path); err != nil {
			return fmt.Errorf("removing %s before replace: %w", item.Path, err)
		}
	}

	switch item.Type {
	case domain.FileTypeDirectory:
		return e.dst.Mkdir(ctx, item.Path)
	case domain.FileTypeSymlink:
		return e.dst.Symlink(ctx, item.LinkTarget, item.Path)
	default:
		return e.copyFile(ctx, item)
	}
}

// copyFile streams one regular file through the staged write path. A
// source that vanished or stopped being a regular file since the scan is
// skipped with a warning.
func (e *executor) copyFile(ctx context.Context, item domain.ChangeItem) error {
	fi, err := e.src.Stat(ctx, item.Path)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%w: %s: %v", errSourceVanished, item.Path, err)
	case err != nil:
		return fmt.Errorf("reading source: %w", err)
	case !fi.IsFile():
		return fmt.Errorf("%w: %s is now a %s", errSourceVanished, item.Path, fi.Type)
	}

	r, err := e.src.Read(ctx, item.Path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrNotFile) {
			return fmt.Errorf("%w: %s: %v", errSourceVanished, item.Path, err)
		}
		return fmt.Errorf("reading source: %w", err)
	}
	defer r.Close()

	e.reporter.Start(path.Base(item.Path), item.Size)
	pr := progress.NewProgressReader(r, e.reporter)

	n, err := e.dst.WriteStaged(ctx, item.Path, pr, item.ModTime)
	if n > 0 {
		e.status.BytesTransferred += n
	}
	if err != nil && !errors.Is(err, domain.ErrAttrNotPreserved) {
		e.reporter.Error(err)
		return err
	}
	e.reporter.Complete()
	return err
}

func (e *executor) remove(ctx context.Context, item domain.ChangeItem) error {
	var err error
	if item.Type == domain.FileTypeDirectory {
		err = e.dst.RemoveAll(ctx, item.Path)
	} else {
		err = e.dst.Delete(ctx, item.Path)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	return err
}
