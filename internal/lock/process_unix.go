//go:build !windows

package lock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processExists probes pid with signal 0. EPERM still means the process
// is alive, it just belongs to someone else.
func processExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
