package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/Ning0612/mirrorsync/internal/domain"
)

// LockFileSuffix is appended to the job key to form the lock file name
const LockFileSuffix = ".lock"

var (
	// errWouldBlock is returned by tryLock when another handle holds the lock
	errWouldBlock = errors.New("lock would block")

	// errNoHolder means the lock file holds no record: it was released, or
	// the holder has not written its info yet
	errNoHolder = errors.New("no holder recorded")

	errBadRecord = errors.New("invalid lock file format")
)

// LockInfo contains metadata about the lock holder.
// It is informational only; the OS lock is the source of truth.
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
	JobKey    string    `json:"job_key"`
}

// Manager hands out per-job locks stored in one directory
type Manager struct {
	dir string
}

// New creates a lock manager. An empty lockDir selects the per-user
// runtime directory.
func New(lockDir string) (*Manager, error) {
	if lockDir == "" {
		lockDir = DefaultDir()
	}

	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	return &Manager{dir: lockDir}, nil
}

// DefaultDir returns the default lock directory
func DefaultDir() string {
	return filepath.Join(xdg.RuntimeDir, "mirrorsync", "locks")
}

// Dir returns the lock directory
func (m *Manager) Dir() string {
	return m.dir
}

// Path returns the lock file path for a job key
func (m *Manager) Path(jobKey string) string {
	return filepath.Join(m.dir, jobKey+LockFileSuffix)
}

// Acquire takes the job lock without waiting. If another process (or
// another handle in this process) holds it, a *LockError wrapping
// domain.ErrLockBusy is returned immediately.
func (m *Manager) Acquire(jobKey string) (*Lock, error) {
	if jobKey == "" {
		return nil, fmt.Errorf("%w: empty job key", domain.ErrConfigInvalid)
	}

	path := m.Path(jobKey)
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := tryLock(file); err != nil {
		file.Close()
		if errors.Is(err, errWouldBlock) {
			holder, _ := readInfo(path)
			return nil, &LockError{Holder: holder, Reason: "lock is held by another run"}
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	hostname, _ := os.Hostname()
	info := LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
		JobKey:    jobKey,
	}

	if err := writeInfo(file, &info); err != nil {
		unlock(file)
		file.Close()
		return nil, fmt.Errorf("failed to write lock info: %w", err)
	}

	return &Lock{file: file, path: path, info: info}, nil
}

// Status describes the current state of a job lock
type Status struct {
	// Holder is the last recorded holder, nil if none was recorded
	Holder *LockInfo

	// Held reports whether a live holder is recorded
	Held bool

	// ProcessAlive reports whether the recorded PID runs on this host.
	// It is false for holders on other hosts.
	ProcessAlive bool
}

// Holder inspects a job lock from its recorded holder. It never takes the
// OS lock, so an Acquire racing with it is not turned away. A record left
// by a crashed holder on this host reads as not held.
func (m *Manager) Holder(jobKey string) (*Status, error) {
	info, err := readInfo(m.Path(jobKey))
	switch {
	case errors.Is(err, os.ErrNotExist), errors.Is(err, errNoHolder):
		return &Status{}, nil
	case errors.Is(err, errBadRecord):
		// A holder is writing its record right now
		return &Status{Held: true}, nil
	case err != nil:
		return nil, err
	}

	st := &Status{Holder: info, Held: true}
	hostname, _ := os.Hostname()
	if info.Hostname == hostname {
		st.ProcessAlive = processExists(info.PID)
		st.Held = st.ProcessAlive
	}
	return st, nil
}

// Lock is a held job lock. The OS drops it when the process exits for any
// reason; Release drops it earlier.
type Lock struct {
	mu   sync.Mutex
	file *os.File
	path string
	info LockInfo
}

// Info returns the holder metadata written at acquisition
func (l *Lock) Info() LockInfo {
	return l.info
}

// Path returns the lock file path
func (l *Lock) Path() string {
	return l.path
}

// Release clears the holder info and drops the lock.
// The lock file stays in place. Calling Release twice is a no-op.
func (l *Lock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	truncErr := l.file.Truncate(0)
	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(truncErr, unlockErr, closeErr)
}

func writeInfo(file *os.File, info *LockInfo) error {
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if err := file.Truncate(0); err != nil {
		return err
	}
	if _, err := file.WriteAt(data, 0); err != nil {
		return err
	}
	return file.Sync()
}

func readInfo(path string) (*LockInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errNoHolder
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRecord, err)
	}
	return &info, nil
}

// LockError represents an error when lock cannot be acquired
type LockError struct {
	Holder *LockInfo
	Reason string
}

func (e *LockError) Error() string {
	if e.Holder != nil {
		return fmt.Sprintf("cannot acquire lock: %s (held by PID %d on %s since %s, job: %s)",
			e.Reason,
			e.Holder.PID,
			e.Holder.Hostname,
			e.Holder.StartTime.Format(time.RFC3339),
			e.Holder.JobKey,
		)
	}
	return fmt.Sprintf("cannot acquire lock: %s", e.Reason)
}

// Unwrap lets errors.Is(err, domain.ErrLockBusy) match
func (e *LockError) Unwrap() error {
	return domain.ErrLockBusy
}
