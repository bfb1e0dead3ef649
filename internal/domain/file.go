package domain

import "time"

// FileType represents the type of a filesystem entry
type FileType int

const (
	FileTypeRegular FileType = iota
	FileTypeDirectory
	FileTypeSymlink
)

// String returns a short name for the file type
func (t FileType) String() string {
	switch t {
	case FileTypeRegular:
		return "file"
	case FileTypeDirectory:
		return "dir"
	case FileTypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// FileInfo represents metadata about a file, directory or symlink
type FileInfo struct {
	// Path is the relative path from the tree root, always slash separated
	Path string

	// Type indicates if this is a file, directory, or symlink
	Type FileType

	// Size in bytes (0 for directories)
	Size int64

	// ModTime is the last modification time
	ModTime time.Time

	// LinkTarget is the symlink target (symlinks only)
	LinkTarget string

	// Checksum is the content hash, filled only in checksum mode
	Checksum string
}

// IsDir returns true if this is a directory
func (f FileInfo) IsDir() bool {
	return f.Type == FileTypeDirectory
}

// IsFile returns true if this is a regular file
func (f FileInfo) IsFile() bool {
	return f.Type == FileTypeRegular
}

// IsSymlink returns true if this is a symbolic link
func (f FileInfo) IsSymlink() bool {
	return f.Type == FileTypeSymlink
}

// ResolvedPath is an absolute, symlink-aware location together with the raw
// input it was derived from. It is immutable after construction.
type ResolvedPath struct {
	raw string
	abs string
}

// NewResolvedPath builds a ResolvedPath. Only the path resolver should call it.
func NewResolvedPath(raw, abs string) ResolvedPath {
	return ResolvedPath{raw: raw, abs: abs}
}

// Raw returns the user supplied input
func (p ResolvedPath) Raw() string { return p.raw }

// Abs returns the canonical absolute path
func (p ResolvedPath) Abs() string { return p.abs }

// String implements fmt.Stringer
func (p ResolvedPath) String() string { return p.abs }

// IsZero reports whether the path was never resolved
func (p ResolvedPath) IsZero() bool { return p.abs == "" }
