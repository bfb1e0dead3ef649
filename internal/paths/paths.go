// Package paths turns user supplied paths into canonical absolute locations.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ning0612/mirrorsync/internal/adapter"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

// probePattern names the file CheckWritable creates. It is a staging file
// name, so a probe left behind by a crash is swept like any stale partial.
var probePattern = ".mirrorsync-probe-*" + adapter.PartialSuffix

// ExpandHome expands a leading "~" or "~/" to the user's home directory.
// Other forms such as "~user" are returned unchanged.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, "~"+string(filepath.Separator)) {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

// absolute expands the home shorthand and makes raw absolute against the
// current working directory.
func absolute(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty path", domain.ErrConfigInvalid)
	}
	expanded, err := ExpandHome(raw)
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// ResolveSource resolves a source tree root. The path must exist and be a
// directory; symlinks are dereferenced.
func ResolveSource(raw string) (domain.ResolvedPath, error) {
	abs, err := absolute(raw)
	if err != nil {
		return domain.ResolvedPath{}, err
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ResolvedPath{}, fmt.Errorf("%w: %s", domain.ErrPathNotFound, raw)
		}
		return domain.ResolvedPath{}, fmt.Errorf("%w: %s: %v", domain.ErrPathNotFound, raw, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return domain.ResolvedPath{}, fmt.Errorf("%w: %s: %v", domain.ErrPathNotFound, raw, err)
	}
	if !info.IsDir() {
		return domain.ResolvedPath{}, fmt.Errorf("%w: %w: %s", domain.ErrPathNotFound, domain.ErrNotDirectory, raw)
	}

	return domain.NewResolvedPath(raw, canonical), nil
}

// ResolveDest resolves a destination tree root without touching the disk.
// A missing destination is accepted when its nearest existing ancestor is a
// directory. The existing prefix is canonicalized and the missing tail
// joined lexically, so no unresolvable link is ever followed.
func ResolveDest(raw string) (domain.ResolvedPath, error) {
	abs, err := absolute(raw)
	if err != nil {
		return domain.ResolvedPath{}, err
	}

	existing, tail := splitExisting(abs)
	canonical, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return domain.ResolvedPath{}, fmt.Errorf("%w: %s: %v", domain.ErrPathNotCreatable, raw, err)
	}
	info, err := os.Stat(canonical)
	if err != nil {
		return domain.ResolvedPath{}, fmt.Errorf("%w: %s: %v", domain.ErrPathNotCreatable, raw, err)
	}
	if !info.IsDir() {
		if tail == "" {
			return domain.ResolvedPath{}, fmt.Errorf("%w: %w: %s", domain.ErrPathNotCreatable, domain.ErrNotDirectory, raw)
		}
		return domain.ResolvedPath{}, fmt.Errorf("%w: %s: %s is not a directory", domain.ErrPathNotCreatable, raw, existing)
	}

	return domain.NewResolvedPath(raw, filepath.Join(canonical, tail)), nil
}

// PrepareDest creates a missing destination chain and checks that the
// destination accepts writes. Callers hold the job lock.
func PrepareDest(dest domain.ResolvedPath) error {
	if err := os.MkdirAll(dest.Abs(), 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrPathNotCreatable, dest.Raw(), err)
	}
	return CheckWritable(dest)
}

// splitExisting splits abs into its longest existing prefix and the
// remaining (non-existing) tail.
func splitExisting(abs string) (string, string) {
	existing := abs
	var tail []string
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}
	return existing, filepath.Join(tail...)
}

// CheckWritable verifies the destination accepts writes by creating and
// removing a probe file. A read-only file system yields ErrDestNotWritable.
func CheckWritable(dest domain.ResolvedPath) error {
	f, err := os.CreateTemp(dest.Abs(), probePattern)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrDestNotWritable, dest.Raw(), err)
	}
	f.Close()
	if err := os.Remove(f.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s: %v", domain.ErrDestNotWritable, dest.Raw(), err)
	}
	return nil
}

// JobKey derives a stable lock identifier from the source tree: a slug of its
// base name plus a short hash of the absolute path.
func JobKey(source domain.ResolvedPath) string {
	sum := sha256.Sum256([]byte(source.Abs()))
	return slug(filepath.Base(source.Abs())) + "-" + hex.EncodeToString(sum[:])[:12]
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "root"
	}
	return s
}
