package domain

import (
	"time"

	"github.com/Ning0612/mirrorsync/internal/core/filter"
)

// Mode selects whether a job mutates the destination
type Mode string

const (
	// ModeDryRun computes the plan without touching the destination
	ModeDryRun Mode = "dry-run"

	// ModeApply computes and applies the plan
	ModeApply Mode = "apply"
)

// IsValid checks if the mode is a known value
func (m Mode) IsValid() bool {
	switch m {
	case ModeDryRun, ModeApply:
		return true
	}
	return false
}

// Options tunes change detection and deletion
type Options struct {
	// Tolerance is the inclusive mtime window within which two files
	// of equal size are considered identical
	Tolerance time.Duration

	// Checksum compares content hashes of equal sized files
	Checksum bool

	// DeleteExcluded also removes destination entries hidden by the filter.
	// The version-control metadata directory is never removed.
	DeleteExcluded bool

	// Timeout bounds the whole run (0 = unlimited)
	Timeout time.Duration
}

// SyncJob describes one run. It is built once from validated input and is
// read-only afterwards.
type SyncJob struct {
	ID      string
	Source  ResolvedPath
	Dest    ResolvedPath
	Rules   filter.Rules
	Mode    Mode
	Verbose bool
	Options Options
}

// DryRun reports whether the job must leave the destination untouched
func (j *SyncJob) DryRun() bool {
	return j.Mode == ModeDryRun
}

// ChangeKind is the kind of a planned filesystem action
type ChangeKind string

const (
	ChangeMkdir  ChangeKind = "mkdir"
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// ChangeItem represents one planned or executed filesystem action
type ChangeItem struct {
	// Kind of action to perform
	Kind ChangeKind

	// Path is the slash separated path relative to both tree roots
	Path string

	// Type of the entry being written (or removed, for deletes)
	Type FileType

	// Size and ModTime of the source entry for create/update
	Size    int64
	ModTime time.Time

	// LinkTarget for symlink creates/updates
	LinkTarget string

	// Replace is set when the destination holds an entry of another type
	// that must be swapped out
	Replace bool

	// Reason explains why this item was planned
	Reason string
}

// PlanStats provides summary statistics for a plan
type PlanStats struct {
	DirsToCreate  int
	FilesToCreate int
	FilesToUpdate int
	ToDelete      int
	BytesToSync   int64
}

// Plan is the ordered list of changes for one job.
// Order: mkdir, then create/update, then delete.
type Plan struct {
	Items []ChangeItem
	Stats PlanStats
}

// Len returns the number of items
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Items)
}

// Empty reports whether the destination is already in sync
func (p *Plan) Empty() bool {
	return p.Len() == 0
}

// Warning is a benign per-entry anomaly that does not fail the run
type Warning struct {
	Path string
	Op   ChangeKind
	Code int
	Err  error
}

// ExecStatus is the terminal state of the executor handed to the classifier
type ExecStatus struct {
	// Applied lists the items executed, in execution order
	Applied []ChangeItem

	// Warnings collected while walking or applying
	Warnings []Warning

	// Err is the fatal error that stopped the run, if any
	Err error

	// BytesTransferred counts file content written
	BytesTransferred int64
}
