package checksum

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
)

// Algorithm represents the hashing algorithm to use
type Algorithm string

const (
	// MD5 is faster and sufficient for change detection
	MD5 Algorithm = "md5"
	// SHA256 is the default
	SHA256 Algorithm = "sha256"
)

// DefaultBufferSize is the read chunk used while streaming
const DefaultBufferSize = 32 * 1024

// Hasher computes content digests for checksum mode comparisons.
// Content is streamed so memory use does not depend on file size.
type Hasher struct {
	algo    Algorithm
	bufSize int
}

// New creates a Hasher for the given algorithm
func New(algo Algorithm) (*Hasher, error) {
	if !IsSupported(algo) {
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}
	return &Hasher{algo: algo, bufSize: DefaultBufferSize}, nil
}

// NewDefault creates a SHA256 Hasher
func NewDefault() *Hasher {
	return &Hasher{algo: SHA256, bufSize: DefaultBufferSize}
}

// WithBufferSize returns a copy of h reading in chunks of n bytes
func (h *Hasher) WithBufferSize(n int) *Hasher {
	if n <= 0 {
		n = DefaultBufferSize
	}
	return &Hasher{algo: h.algo, bufSize: n}
}

// Algorithm returns the configured algorithm
func (h *Hasher) Algorithm() Algorithm {
	return h.algo
}

// Sum streams r through the hash and returns the hex digest.
// The context is checked between chunks.
func (h *Hasher) Sum(ctx context.Context, r io.Reader) (string, error) {
	d := newDigest(h.algo)
	buf := make([]byte, h.bufSize)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(buf)
		if n > 0 {
			// hash.Hash.Write never returns an error
			d.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(d.Sum(nil)), nil
}

// SumFile opens a reader with open, hashes it and closes it
func (h *Hasher) SumFile(ctx context.Context, open func() (io.ReadCloser, error)) (string, error) {
	rc, err := open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return h.Sum(ctx, rc)
}

func newDigest(algo Algorithm) hash.Hash {
	if algo == MD5 {
		return md5.New()
	}
	return sha256.New()
}

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	switch algo {
	case MD5, SHA256:
		return true
	default:
		return false
	}
}
