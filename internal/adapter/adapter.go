package adapter

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// PartialSuffix marks staging files. A file is written as
// ".<name>" + PartialSuffix next to its final path and renamed into place
// once complete, so the final path never holds half-written content.
const PartialSuffix = ".mirrorsync-partial"

// PartialName returns the staging file name for a final base name
func PartialName(name string) string {
	return "." + name + PartialSuffix
}

// IsPartial reports whether a base name is a staging file
func IsPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, PartialSuffix) &&
		len(name) > len(PartialSuffix)+1
}

// VanishedError is returned by List together with the entries it could
// read when some children disappeared while the directory was listed.
type VanishedError struct {
	// Paths of the vanished children, relative to the adapter root
	Paths []string
}

func (e *VanishedError) Error() string {
	return fmt.Sprintf("%d entries vanished while listing: %s", len(e.Paths), strings.Join(e.Paths, ", "))
}

// Unwrap lets errors.Is(err, domain.ErrNotFound) match
func (e *VanishedError) Unwrap() error {
	return domain.ErrNotFound
}

// Adapter defines the interface for storage backends.
// Paths are slash separated and relative to the adapter's root; the empty
// path is the root itself. Implementations return domain-level errors.
type Adapter interface {
	// List returns the direct children of a directory.
	// Symlinks are reported as symlinks, never followed.
	// Children removed mid-listing are left out and named by a
	// *VanishedError returned with the remaining entries.
	// Returns domain.ErrNotFound if path doesn't exist
	// Returns domain.ErrNotDirectory if path is not a directory
	List(ctx context.Context, path string) ([]domain.FileInfo, error)

	// Read opens a regular file for reading
	// Caller is responsible for closing the reader
	// Returns domain.ErrNotFound if file doesn't exist
	// Returns domain.ErrNotFile if path is not a regular file
	Read(ctx context.Context, path string) (io.ReadCloser, error)

	// WriteStaged streams r to a staging file beside path, syncs it, sets
	// its mtime and renames it over path. The number of bytes written is
	// returned. If only the mtime could not be set the file is still
	// installed and an error wrapping domain.ErrAttrNotPreserved is
	// returned. On any other failure, including context cancellation, the
	// staging file is removed and path is left untouched.
	WriteStaged(ctx context.Context, path string, r io.Reader, mtime time.Time) (int64, error)

	// Symlink creates a symbolic link at path pointing to target,
	// replacing an existing link
	Symlink(ctx context.Context, target, path string) error

	// Delete removes a file, symlink or empty directory
	// Returns domain.ErrNotFound if path doesn't exist
	Delete(ctx context.Context, path string) error

	// RemoveAll removes path and everything beneath it.
	// A missing path is not an error.
	RemoveAll(ctx context.Context, path string) error

	// Stat returns metadata for a single path without following symlinks
	// Returns domain.ErrNotFound if path doesn't exist
	Stat(ctx context.Context, path string) (domain.FileInfo, error)

	// Mkdir creates a directory and any necessary parents
	// No error if directory already exists
	Mkdir(ctx context.Context, path string) error

	// Root returns the absolute root of the adapter
	Root() string

	// Close releases any resources held by the adapter
	Close() error
}
