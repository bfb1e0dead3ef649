package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Ning0612/mirrorsync/internal/adapter"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

const copyChunk = 256 * 1024

// Adapter implements the adapter.Adapter interface for local and
// network-mounted filesystems
type Adapter struct {
	root string
}

var _ adapter.Adapter = (*Adapter)(nil)

// New creates a new local filesystem adapter
// root must be an absolute path to an existing directory
func New(root string) (*Adapter, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, mapError(err)
	}
	if !info.IsDir() {
		return nil, domain.ErrNotDirectory
	}

	return &Adapter{root: absRoot}, nil
}

// resolvePath safely resolves a relative path to absolute path within root
// Returns error if path attempts to escape root directory
func (a *Adapter) resolvePath(relPath string) (string, error) {
	if relPath == "" || relPath == "." {
		return a.root, nil
	}

	relPath = filepath.Clean(filepath.FromSlash(relPath))
	if filepath.IsAbs(relPath) {
		return "", domain.ErrPermissionDenied
	}

	fullPath := filepath.Join(a.root, relPath)

	// filepath.Rel handles root="C:\root" vs fullPath="C:\root2"
	rel, err := filepath.Rel(a.root, fullPath)
	if err != nil {
		return "", domain.ErrPermissionDenied
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.ErrPermissionDenied
	}

	return fullPath, nil
}

// List returns the direct children of a directory
func (a *Adapter) List(ctx context.Context, path string) ([]domain.FileInfo, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, mapError(err)
	}

	result := make([]domain.FileInfo, 0, len(entries))
	var vanished []string
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entryPath := joinRel(path, entry.Name())
		info, err := entry.Info()
		if err == nil {
			var fi domain.FileInfo
			fi, err = a.fileInfoFromOS(entryPath, filepath.Join(fullPath, entry.Name()), info)
			if err == nil {
				result = append(result, fi)
				continue
			}
		}

		// Removed between ReadDir and Lstat or Readlink
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, domain.ErrNotFound) {
			vanished = append(vanished, entryPath)
			continue
		}
		return nil, mapError(err)
	}

	if len(vanished) > 0 {
		return result, &adapter.VanishedError{Paths: vanished}
	}
	return result, nil
}

// Read opens a file for reading
func (a *Adapter) Read(ctx context.Context, path string) (io.ReadCloser, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(fullPath)
	if err != nil {
		return nil, mapError(err)
	}
	if !info.Mode().IsRegular() {
		return nil, domain.ErrNotFile
	}

	file, err := os.Open(fullPath)
	if err != nil {
		return nil, mapError(err)
	}

	return file, nil
}

// WriteStaged writes through a staging file and renames it into place
func (a *Adapter) WriteStaged(ctx context.Context, path string, r io.Reader, mtime time.Time) (int64, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return 0, err
	}

	dir, base := filepath.Split(fullPath)
	tempPath := filepath.Join(dir, adapter.PartialName(base))

	file, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, mapError(err)
	}

	n, copyErr := copyContext(ctx, file, r)
	if copyErr == nil {
		copyErr = file.Sync()
	}
	closeErr := file.Close()

	if copyErr != nil {
		os.Remove(tempPath)
		return n, mapError(copyErr)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return n, mapError(closeErr)
	}

	var attrErr error
	if !mtime.IsZero() {
		if err := os.Chtimes(tempPath, mtime, mtime); err != nil {
			attrErr = fmt.Errorf("%w: %s: %v", domain.ErrAttrNotPreserved, path, err)
		}
	}

	// The last chance to honor cancellation before the final path changes
	if err := ctx.Err(); err != nil {
		os.Remove(tempPath)
		return n, err
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return n, mapError(err)
	}

	return n, attrErr
}

// Symlink creates a symbolic link, replacing an existing link at path
func (a *Adapter) Symlink(ctx context.Context, target, path string) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}

	if info, err := os.Lstat(fullPath); err == nil {
		if info.Mode()&os.ModeSymlink == 0 {
			return domain.ErrAlreadyExists
		}
		if err := os.Remove(fullPath); err != nil {
			return mapError(err)
		}
	}

	return mapError(os.Symlink(filepath.FromSlash(target), fullPath))
}

// Delete removes a file, symlink or empty directory
func (a *Adapter) Delete(ctx context.Context, path string) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return domain.ErrPermissionDenied
	}

	return mapError(os.Remove(fullPath))
}

// RemoveAll removes path and its contents
func (a *Adapter) RemoveAll(ctx context.Context, path string) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}
	if fullPath == a.root {
		return domain.ErrPermissionDenied
	}

	return mapError(os.RemoveAll(fullPath))
}

// Stat returns metadata for a single path without following symlinks
func (a *Adapter) Stat(ctx context.Context, path string) (domain.FileInfo, error) {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return domain.FileInfo{}, err
	}

	info, err := os.Lstat(fullPath)
	if err != nil {
		return domain.FileInfo{}, mapError(err)
	}

	return a.fileInfoFromOS(path, fullPath, info)
}

// Mkdir creates a directory and any necessary parents
func (a *Adapter) Mkdir(ctx context.Context, path string) error {
	fullPath, err := a.resolvePath(path)
	if err != nil {
		return err
	}

	return mapError(os.MkdirAll(fullPath, 0755))
}

// Close releases any resources (no-op for local adapter)
func (a *Adapter) Close() error {
	return nil
}

// Root returns the root path of this adapter
func (a *Adapter) Root() string {
	return a.root
}

func (a *Adapter) fileInfoFromOS(rel, full string, info os.FileInfo) (domain.FileInfo, error) {
	fi := domain.FileInfo{
		Path:    filepath.ToSlash(rel),
		Type:    domain.FileTypeRegular,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	switch {
	case info.IsDir():
		fi.Type = domain.FileTypeDirectory
		fi.Size = 0
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(full)
		if err != nil {
			return fi, mapError(err)
		}
		fi.Type = domain.FileTypeSymlink
		fi.LinkTarget = filepath.ToSlash(target)
		fi.Size = 0
	}

	return fi, nil
}

func joinRel(dir, name string) string {
	if dir == "" || dir == "." {
		return name
	}
	return dir + "/" + name
}

// copyContext copies in chunks so a cancelled context stops the transfer
// between chunks
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, copyChunk)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			total += int64(w)
			if werr != nil {
				return total, werr
			}
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}

// mapError converts OS errors to domain errors, keeping the original
// error in the chain
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch {
	case errors.Is(err, syscall.EROFS):
		return fmt.Errorf("%w: %v", domain.ErrReadOnly, err)
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	case errors.Is(err, os.ErrExist):
		return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, err)
	case errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: %v", domain.ErrNotDirectory, err)
	}

	return err
}
