// Package scan walks a tree through an adapter and applies the filter rules
// to every entry, producing the maps the planner compares.
package scan

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/Ning0612/mirrorsync/internal/adapter"
	"github.com/Ning0612/mirrorsync/internal/core/filter"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

// Options controls a walk
type Options struct {
	Rules filter.Rules

	// CollectExcluded records entries hidden by the rules in
	// Result.Excluded. Excluded directories are recorded once and not
	// descended when they are prunable.
	CollectExcluded bool
}

// Result is the filtered view of one tree
type Result struct {
	// Entries maps relative path to info for every included entry
	Entries map[string]domain.FileInfo

	// Excluded maps relative path to info for excluded entries,
	// only filled with Options.CollectExcluded. The metadata directory
	// never appears here.
	Excluded map[string]domain.FileInfo

	// Protected lists metadata directories found below the root, only
	// filled with Options.CollectExcluded
	Protected []string

	// Partials lists staging files left behind by an interrupted run
	Partials []string

	// Unlisted lists directories whose listing failed. Nothing is known
	// about their contents, so the planner deletes nothing beneath them.
	Unlisted []string

	// Warnings collected for subtrees that could not be listed and for
	// entries that vanished while being listed
	Warnings []domain.Warning
}

// Walk lists the whole tree below the adapter root. The root itself must
// be listable; failures below it are recorded as warnings and in
// Result.Unlisted.
func Walk(ctx context.Context, adp adapter.Adapter, opts Options) (*Result, error) {
	res := &Result{
		Entries:  make(map[string]domain.FileInfo),
		Excluded: make(map[string]domain.FileInfo),
	}

	w := walker{adp: adp, opts: opts, res: res}
	if _, err := w.walk(ctx, "", filter.Decision{Verdict: filter.Include, Index: -1}, true); err != nil {
		return nil, err
	}

	return res, nil
}

type walker struct {
	adp  adapter.Adapter
	opts Options
	res  *Result
}

// walk lists dir and recurses. It reports whether anything beneath dir
// was included.
func (w *walker) walk(ctx context.Context, dir string, parent filter.Decision, root bool) (bool, error) {
	items, err := w.adp.List(ctx, dir)
	var ve *adapter.VanishedError
	if errors.As(err, &ve) {
		for _, p := range ve.Paths {
			w.res.Warnings = append(w.res.Warnings, domain.Warning{
				Path: p,
				Code: domain.CodeVanished,
				Err:  fmt.Errorf("%s vanished while listing %q: %w", p, dir, domain.ErrNotFound),
			})
		}
		err = nil
	}
	if err != nil {
		if root || isCtxErr(err) {
			return false, err
		}
		w.warn(dir, err)
		w.res.Unlisted = append(w.res.Unlisted, dir)
		return false, nil
	}

	included := false
	for _, item := range items {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		default:
		}

		name := path.Base(item.Path)
		if adapter.IsPartial(name) {
			w.res.Partials = append(w.res.Partials, item.Path)
			continue
		}
		if filter.IsMetadata(item.Path) {
			if w.opts.CollectExcluded {
				w.res.Protected = append(w.res.Protected, item.Path)
			}
			continue
		}

		dec := w.opts.Rules.Inherit(parent, item.Path, item.IsDir())

		if !item.IsDir() {
			if dec.Excluded() {
				w.exclude(item)
				continue
			}
			w.res.Entries[item.Path] = item
			included = true
			continue
		}

		if dec.Excluded() {
			if w.opts.Rules.Prunable(dec) {
				w.exclude(item)
				continue
			}
			// A later include rule may re-include something beneath
			found, err := w.walk(ctx, item.Path, dec, false)
			if err != nil {
				return false, err
			}
			if found {
				w.res.Entries[item.Path] = item
				included = true
			} else {
				w.exclude(item)
			}
			continue
		}

		w.res.Entries[item.Path] = item
		included = true
		if _, err := w.walk(ctx, item.Path, dec, false); err != nil {
			return false, err
		}
	}

	return included, nil
}

func (w *walker) exclude(item domain.FileInfo) {
	if w.opts.CollectExcluded {
		w.res.Excluded[item.Path] = item
	}
}

func (w *walker) warn(dir string, err error) {
	code := domain.CodePartial
	if errors.Is(err, domain.ErrNotFound) {
		code = domain.CodeVanished
	}
	w.res.Warnings = append(w.res.Warnings, domain.Warning{
		Path: dir,
		Code: code,
		Err:  fmt.Errorf("listing %s: %w", dir, err),
	})
}

func isCtxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
