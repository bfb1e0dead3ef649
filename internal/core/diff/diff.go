package diff

import (
	"time"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// DefaultTolerance is the mtime window used when none is configured.
// FAT and SMB shares round timestamps to two seconds.
const DefaultTolerance = 2 * time.Second

// DiffResult represents the comparison result between two entries
type DiffResult int

const (
	// FilesIdentical indicates the destination is up to date
	FilesIdentical DiffResult = iota
	// FileModified indicates the entry exists in both but differs
	FileModified
	// FileOnlyInSource indicates the entry only exists in source
	FileOnlyInSource
	// FileOnlyInTarget indicates the entry only exists in the destination
	FileOnlyInTarget
	// TypeChanged indicates both sides exist with different types
	TypeChanged
)

// String returns a short description used as the plan reason
func (r DiffResult) String() string {
	switch r {
	case FilesIdentical:
		return "identical"
	case FileModified:
		return "modified"
	case FileOnlyInSource:
		return "new"
	case FileOnlyInTarget:
		return "extraneous"
	case TypeChanged:
		return "type changed"
	default:
		return "unknown"
	}
}

// Comparer decides whether a destination entry reflects its source entry.
//
// A regular file is up to date when the sizes are equal and the
// modification times differ by at most Tolerance. With Checksum set, equal
// sized files are compared by content hash instead of mtime, provided both
// sides carry one.
type Comparer struct {
	Tolerance time.Duration
	Checksum  bool
}

// NewComparer creates a Comparer from job options
func NewComparer(opts domain.Options) *Comparer {
	tol := opts.Tolerance
	if tol < 0 {
		tol = 0
	}
	return &Comparer{Tolerance: tol, Checksum: opts.Checksum}
}

// Compare compares source and destination info
func (c *Comparer) Compare(src, tgt *domain.FileInfo) DiffResult {
	if src == nil && tgt == nil {
		return FilesIdentical
	}
	if tgt == nil {
		return FileOnlyInSource
	}
	if src == nil {
		return FileOnlyInTarget
	}

	if src.Type != tgt.Type {
		return TypeChanged
	}

	switch src.Type {
	case domain.FileTypeDirectory:
		// Directory timestamps change with every child write; existence is enough
		return FilesIdentical
	case domain.FileTypeSymlink:
		if src.LinkTarget != tgt.LinkTarget {
			return FileModified
		}
		return FilesIdentical
	}

	if src.Size != tgt.Size {
		return FileModified
	}

	if c.Checksum && src.Checksum != "" && tgt.Checksum != "" {
		if src.Checksum == tgt.Checksum {
			return FilesIdentical
		}
		return FileModified
	}

	if c.WithinTolerance(src.ModTime, tgt.ModTime) {
		return FilesIdentical
	}
	return FileModified
}

// WithinTolerance reports whether |a-b| <= Tolerance
func (c *Comparer) WithinTolerance(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= c.Tolerance
}
