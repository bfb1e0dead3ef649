//go:build !windows

package mount

import (
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// isMountPoint compares the device of target with that of its parent.
// A missing target is reported as not mounted.
func isMountPoint(target string) (bool, error) {
	var st, parent unix.Stat_t
	if err := unix.Stat(target, &st); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", target, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return false, fmt.Errorf("%w: %s", domain.ErrNotDirectory, target)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return false, err
	}
	if err := unix.Stat(filepath.Dir(abs), &parent); err != nil {
		return false, fmt.Errorf("stat %s: %w", filepath.Dir(abs), err)
	}

	// "/" is its own parent
	if st.Dev == parent.Dev && st.Ino == parent.Ino {
		return true, nil
	}
	return st.Dev != parent.Dev, nil
}
