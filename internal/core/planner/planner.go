package planner

import (
	"sort"
	"strings"

	"github.com/Ning0612/mirrorsync/internal/core/diff"
	"github.com/Ning0612/mirrorsync/internal/core/scan"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

// Planner turns two filtered trees into an ordered change list
type Planner struct {
	Differ *diff.Comparer

	// DeleteExcluded removes destination entries hidden by the rules
	DeleteExcluded bool
}

// New creates a planner from job options
func New(opts domain.Options) *Planner {
	return &Planner{
		Differ:         diff.NewComparer(opts),
		DeleteExcluded: opts.DeleteExcluded,
	}
}

// Plan compares a scanned source and destination
func (p *Planner) Plan(src, dst *scan.Result) *domain.Plan {
	return p.PlanOneWay(src.Entries, dst.Entries, dst.Excluded, src.Unlisted, dst.Protected...)
}

// PlanOneWay generates the changes that make toMap reflect fromMap.
// excluded holds destination entries hidden by the rules; they are left
// alone unless DeleteExcluded is set, and a directory holding any of them
// is never deleted while they stay. unlisted names source directories whose
// contents are unknown: nothing at or beneath them is deleted as missing
// from the source. Directories above a protected or unlisted path are kept
// whatever the options.
func (p *Planner) PlanOneWay(fromMap, toMap, excluded map[string]domain.FileInfo, unlisted []string, protected ...string) *domain.Plan {
	plan := &domain.Plan{Items: make([]domain.ChangeItem, 0)}
	replaced := make(map[string]bool)

	// Comparison pass: entries to create or update
	for path, fromInfo := range fromMap {
		toInfo, exists := toMap[path]
		var toPtr *domain.FileInfo
		if exists {
			toPtr = &toInfo
		}

		result := p.Differ.Compare(&fromInfo, toPtr)
		switch result {
		case diff.FileOnlyInSource:
			kind := domain.ChangeCreate
			if fromInfo.IsDir() {
				kind = domain.ChangeMkdir
			}
			plan.Items = append(plan.Items, changeFrom(kind, fromInfo, result))
		case diff.TypeChanged:
			item := changeFrom(domain.ChangeUpdate, fromInfo, result)
			item.Replace = true
			plan.Items = append(plan.Items, item)
			replaced[path] = true
		case diff.FileModified:
			plan.Items = append(plan.Items, changeFrom(domain.ChangeUpdate, fromInfo, result))
		}
	}

	// Deletion pass: destination entries without an included source counterpart
	keep := make(map[string]bool)
	for _, path := range protected {
		markAncestors(keep, path)
	}
	unknown := make(map[string]bool, len(unlisted))
	for _, path := range unlisted {
		unknown[path] = true
		keep[path] = true
		markAncestors(keep, path)
	}
	if p.DeleteExcluded {
		for path, info := range excluded {
			if underAny(path, replaced) {
				continue
			}
			plan.Items = append(plan.Items, deleteOf(info, "excluded"))
		}
	} else {
		for path := range excluded {
			markAncestors(keep, path)
		}
	}

	for path, toInfo := range toMap {
		if _, exists := fromMap[path]; exists {
			continue
		}
		if keep[path] || underAny(path, replaced) || underAny(path, unknown) {
			continue
		}
		plan.Items = append(plan.Items, deleteOf(toInfo, "not in source"))
	}

	sortItems(plan.Items)
	calculateStats(plan)
	return plan
}

func changeFrom(kind domain.ChangeKind, info domain.FileInfo, result diff.DiffResult) domain.ChangeItem {
	return domain.ChangeItem{
		Kind:       kind,
		Path:       info.Path,
		Type:       info.Type,
		Size:       info.Size,
		ModTime:    info.ModTime,
		LinkTarget: info.LinkTarget,
		Reason:     result.String(),
	}
}

func deleteOf(info domain.FileInfo, reason string) domain.ChangeItem {
	return domain.ChangeItem{
		Kind:   domain.ChangeDelete,
		Path:   info.Path,
		Type:   info.Type,
		Reason: reason,
	}
}

// markAncestors records every ancestor directory of path
func markAncestors(set map[string]bool, path string) {
	for {
		i := strings.LastIndexByte(path, '/')
		if i < 0 {
			return
		}
		path = path[:i]
		set[path] = true
	}
}

// underAny reports whether path lies strictly beneath one of roots
func underAny(path string, roots map[string]bool) bool {
	for {
		i := strings.LastIndexByte(path, '/')
		if i < 0 {
			return false
		}
		path = path[:i]
		if roots[path] {
			return true
		}
	}
}

// sortItems establishes execution order:
// 1. directories (mkdir, and updates replacing something with a directory),
// shallow first
// 2. files and symlinks (create/update), shallow first
// 3. deletes, deep first
func sortItems(items []domain.ChangeItem) {
	sort.Slice(items, func(i, j int) bool {
		pi, pj := phase(items[i]), phase(items[j])
		if pi != pj {
			return pi < pj
		}

		di := strings.Count(items[i].Path, "/")
		dj := strings.Count(items[j].Path, "/")
		if di != dj {
			if items[i].Kind == domain.ChangeDelete {
				return di > dj
			}
			return di < dj
		}

		return items[i].Path < items[j].Path
	})
}

func phase(item domain.ChangeItem) int {
	switch {
	case item.Kind == domain.ChangeDelete:
		return 3
	case item.Kind == domain.ChangeMkdir, item.Type == domain.FileTypeDirectory:
		return 1
	default:
		return 2
	}
}

// calculateStats computes summary statistics for a plan
func calculateStats(plan *domain.Plan) {
	plan.Stats = domain.PlanStats{}
	for _, item := range plan.Items {
		switch item.Kind {
		case domain.ChangeMkdir:
			plan.Stats.DirsToCreate++
		case domain.ChangeCreate:
			plan.Stats.FilesToCreate++
			plan.Stats.BytesToSync += item.Size
		case domain.ChangeUpdate:
			if item.Type == domain.FileTypeDirectory {
				plan.Stats.DirsToCreate++
				continue
			}
			plan.Stats.FilesToUpdate++
			plan.Stats.BytesToSync += item.Size
		case domain.ChangeDelete:
			plan.Stats.ToDelete++
		}
	}
}
