package domain

import (
	"errors"
	"fmt"
)

// Adapter errors
var (
	// ErrNotFound indicates the requested resource does not exist
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrPermissionDenied indicates insufficient permissions
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotDirectory indicates expected a directory but got a file
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile indicates expected a file but got a directory
	ErrNotFile = errors.New("not a file")

	// ErrReadOnly indicates the filesystem rejected a write
	ErrReadOnly = errors.New("read-only file system")

	// ErrAttrNotPreserved indicates content was written but timestamps
	// could not be replicated
	ErrAttrNotPreserved = errors.New("attributes not preserved")
)

// Path errors
var (
	// ErrPathNotFound indicates a source path does not exist
	ErrPathNotFound = errors.New("source missing")

	// ErrPathNotCreatable indicates the destination parent chain cannot be created
	ErrPathNotCreatable = errors.New("destination not creatable")

	// ErrDestNotWritable indicates the destination exists but rejects writes
	ErrDestNotWritable = errors.New("destination not writable")
)

// Sync errors
var (
	// ErrLockBusy indicates another run holds the job lock.
	// Callers treat it as a clean no-op, not a failure.
	ErrLockBusy = errors.New("lock held by another run")

	// ErrTransferFatal indicates reconciliation could not proceed
	ErrTransferFatal = errors.New("transfer failed")

	// ErrInterrupted indicates the run was stopped by a signal
	ErrInterrupted = errors.New("interrupted by signal")
)

// Config errors
var (
	// ErrConfigNotFound indicates config file not found
	ErrConfigNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates a bad or missing required setting
	ErrConfigInvalid = errors.New("invalid config")
)

// Collaborator errors
var (
	// ErrNoChanges indicates a commit had nothing to record
	ErrNoChanges = errors.New("no changes")

	// ErrNoRemote indicates a push target is not configured
	ErrNoRemote = errors.New("no remote")

	// ErrPushRejected indicates the remote refused the update
	ErrPushRejected = errors.New("push rejected")

	// ErrNotMounted indicates the share is not mounted
	ErrNotMounted = errors.New("share not mounted")
)

// TransferError carries the failing path and the numeric cause of a fatal
// reconciliation error.
type TransferError struct {
	Op   ChangeKind
	Path string
	Code int
	Err  error
}

func (e *TransferError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s (code %d): %v", ErrTransferFatal, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (code %d): %v", e.Op, e.Path, e.Code, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransferFatal) match any TransferError.
func (e *TransferError) Is(target error) bool {
	return target == ErrTransferFatal
}
